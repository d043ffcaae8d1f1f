package ingest

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/insights/pkg/insights"
	"github.com/papercomputeco/insights/pkg/storage"
	"github.com/papercomputeco/insights/pkg/storage/inmemory"
)

// failingDriver rejects every write.
type failingDriver struct {
	storage.Driver
}

func (failingDriver) Put(context.Context, storage.Batch) error {
	return errors.New("disk full")
}

// blockingDriver holds every write until release is closed.
type blockingDriver struct {
	storage.Driver
	release chan struct{}
}

func (d blockingDriver) Put(ctx context.Context, batch storage.Batch) error {
	<-d.release
	return d.Driver.Put(ctx, batch)
}

func sessionBatch(project string, ids ...string) storage.Batch {
	batch := storage.Batch{Project: project}
	for _, id := range ids {
		batch.Sessions = append(batch.Sessions, insights.Session{
			ID:        id,
			StartedAt: insights.At(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)),
			Platform:  "ios",
		})
	}
	return batch
}

var _ = Describe("Ingest Pool", func() {
	var (
		ctx    context.Context
		driver *inmemory.Driver
	)

	BeforeEach(func() {
		ctx = context.Background()
		driver = inmemory.NewDriver()
	})

	It("requires a driver", func() {
		_, err := NewPool(&Config{})
		Expect(err).To(HaveOccurred())
	})

	It("applies default sizing", func() {
		c := &Config{Driver: driver}
		p, err := NewPool(c)
		Expect(err).NotTo(HaveOccurred())
		defer p.Close()

		Expect(c.NumWorkers).To(Equal(defaultNumWorkers))
		Expect(c.QueueSize).To(Equal(defaultJobQueueSize))
		Expect(c.Logger).NotTo(BeNil())
	})

	Describe("Enqueue", func() {
		It("stores queued batches once the pool drains", func() {
			p, err := NewPool(&Config{Driver: driver})
			Expect(err).NotTo(HaveOccurred())

			Expect(p.Enqueue(sessionBatch("web", "s1", "s2"))).To(BeTrue())
			Expect(p.Enqueue(sessionBatch("web", "s3"))).To(BeTrue())
			p.Close()

			sessions, err := driver.ListSessions(ctx, storage.Query{Project: "web"})
			Expect(err).NotTo(HaveOccurred())
			Expect(sessions).To(HaveLen(3))

			stats := p.Stats()
			Expect(stats.Stored).To(Equal(uint64(2)))
			Expect(stats.Records).To(Equal(uint64(3)))
			Expect(stats.Dropped).To(BeZero())
		})

		It("drops batches when the queue is full", func() {
			release := make(chan struct{})
			p, err := NewPool(&Config{
				Driver:     blockingDriver{Driver: driver, release: release},
				NumWorkers: 1,
				QueueSize:  1,
			})
			Expect(err).NotTo(HaveOccurred())

			// The single worker picks up the first batch and blocks; the
			// second fills the queue.
			Expect(p.Enqueue(sessionBatch("web", "s1"))).To(BeTrue())
			Eventually(func() int { return len(p.queue) }).Should(BeZero())
			Expect(p.Enqueue(sessionBatch("web", "s2"))).To(BeTrue())
			Expect(p.Enqueue(sessionBatch("web", "s3"))).To(BeFalse())

			close(release)
			p.Close()

			Expect(p.Stats().Dropped).To(Equal(uint64(1)))
			count, err := driver.Count(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(2))
		})

		It("drops batches after Close", func() {
			p, err := NewPool(&Config{Driver: driver})
			Expect(err).NotTo(HaveOccurred())
			p.Close()
			p.Close()

			Expect(p.Enqueue(sessionBatch("web", "s1"))).To(BeFalse())
			Expect(p.Stats().Dropped).To(Equal(uint64(1)))
		})

		It("skips empty batches", func() {
			p, err := NewPool(&Config{Driver: driver})
			Expect(err).NotTo(HaveOccurred())

			Expect(p.Enqueue(storage.Batch{Project: "web"})).To(BeTrue())
			p.Close()

			Expect(p.Stats().Stored).To(BeZero())
			count, err := driver.Count(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(BeZero())
		})
	})

	Describe("Submit", func() {
		It("waits for the batch to be stored", func() {
			p, err := NewPool(&Config{Driver: driver})
			Expect(err).NotTo(HaveOccurred())
			defer p.Close()

			Expect(p.Submit(ctx, sessionBatch("web", "s1"))).To(Succeed())

			session, err := driver.GetSession(ctx, "web", "s1")
			Expect(err).NotTo(HaveOccurred())
			Expect(session.Platform).To(Equal("ios"))
		})

		It("returns storage failures", func() {
			p, err := NewPool(&Config{Driver: failingDriver{Driver: driver}})
			Expect(err).NotTo(HaveOccurred())
			defer p.Close()

			err = p.Submit(ctx, sessionBatch("web", "s1"))
			Expect(err).To(MatchError(ContainSubstring("disk full")))
			Expect(err).To(MatchError(ContainSubstring("project web")))
			Expect(p.Stats().Failed).To(Equal(uint64(1)))
		})

		It("returns ErrClosed after Close", func() {
			p, err := NewPool(&Config{Driver: driver})
			Expect(err).NotTo(HaveOccurred())
			p.Close()

			Expect(p.Submit(ctx, sessionBatch("web", "s1"))).To(MatchError(ErrClosed))
		})

		It("honors context cancellation while waiting", func() {
			release := make(chan struct{})
			p, err := NewPool(&Config{
				Driver:     blockingDriver{Driver: driver, release: release},
				NumWorkers: 1,
			})
			Expect(err).NotTo(HaveOccurred())

			cctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
			defer cancel()
			Expect(p.Submit(cctx, sessionBatch("web", "s1"))).To(MatchError(context.DeadlineExceeded))

			close(release)
			p.Close()
		})
	})
})
