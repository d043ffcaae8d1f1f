// Package storagetest holds the shared behavior every storage.Driver must
// satisfy. Driver test suites call ItBehavesLikeADriver from a Describe block.
package storagetest

import (
	"context"
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/insights/pkg/insights"
	"github.com/papercomputeco/insights/pkg/storage"
)

var epoch = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func testSession(id string, hoursAgo int) insights.Session {
	return insights.Session{
		ID:               id,
		UserID:           "user-" + id,
		StartedAt:        insights.At(epoch.Add(-time.Duration(hoursAgo) * time.Hour)),
		DurationSeconds:  42,
		Platform:         "ios",
		CrashCount:       1,
		InteractionScore: 77.5,
		ScreensVisited:   []string{"home", "checkout"},
	}
}

// ItBehavesLikeADriver registers the driver conformance specs. newDriver is
// called before each test and must return an empty store.
func ItBehavesLikeADriver(newDriver func() storage.Driver) {
	var (
		ctx    context.Context
		driver storage.Driver
	)

	BeforeEach(func() {
		ctx = context.Background()
		driver = newDriver()
		DeferCleanup(func() {
			Expect(driver.Close()).To(Succeed())
		})
	})

	It("round trips sessions through Put and GetSession", func() {
		Expect(driver.Put(ctx, storage.Batch{Project: "web", Sessions: []insights.Session{testSession("s1", 1)}})).To(Succeed())

		got, err := driver.GetSession(ctx, "web", "s1")
		Expect(err).NotTo(HaveOccurred())
		Expect(got.ID).To(Equal("s1"))
		Expect(got.StartedAt.Equal(epoch.Add(-time.Hour))).To(BeTrue())
		Expect(got.CrashCount).To(Equal(insights.Count(1)))
		Expect(got.InteractionScore).To(Equal(insights.Count(77.5)))
		Expect(got.ScreensVisited).To(Equal([]string{"home", "checkout"}))
	})

	It("returns NotFoundError for unknown sessions", func() {
		_, err := driver.GetSession(ctx, "web", "missing")
		Expect(err).To(MatchError(storage.NotFoundError{ID: "missing"}))
	})

	It("lists sessions newest first within the range and limit", func() {
		sessions := []insights.Session{}
		for i := range 5 {
			sessions = append(sessions, testSession(fmt.Sprintf("s%d", i), i*24))
		}
		Expect(driver.Put(ctx, storage.Batch{Sessions: sessions})).To(Succeed())

		got, err := driver.ListSessions(ctx, storage.Query{Since: epoch.Add(-72 * time.Hour)})
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(HaveLen(4))
		Expect(got[0].ID).To(Equal("s0"))
		Expect(got[3].ID).To(Equal("s3"))

		got, err = driver.ListSessions(ctx, storage.Query{Limit: 2})
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(HaveLen(2))
		Expect(got[1].ID).To(Equal("s1"))
	})

	It("upserts by id", func() {
		first := testSession("s1", 1)
		Expect(driver.Put(ctx, storage.Batch{Sessions: []insights.Session{first}})).To(Succeed())

		updated := first
		updated.CrashCount = 9
		Expect(driver.Put(ctx, storage.Batch{Sessions: []insights.Session{updated, updated}})).To(Succeed())

		got, err := driver.ListSessions(ctx, storage.Query{})
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(HaveLen(1))
		Expect(got[0].CrashCount).To(Equal(insights.Count(9)))
	})

	It("assigns ids to sessions without one", func() {
		anonymous := testSession("", 1)
		Expect(driver.Put(ctx, storage.Batch{Sessions: []insights.Session{anonymous, anonymous}})).To(Succeed())

		got, err := driver.ListSessions(ctx, storage.Query{})
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(HaveLen(2))
		Expect(got[0].ID).NotTo(BeEmpty())
		Expect(got[0].ID).NotTo(Equal(got[1].ID))
	})

	It("keeps projects apart", func() {
		Expect(driver.Put(ctx, storage.Batch{Project: "a", Sessions: []insights.Session{testSession("s1", 1)}})).To(Succeed())
		Expect(driver.Put(ctx, storage.Batch{Project: "b", Sessions: []insights.Session{testSession("s2", 1)}})).To(Succeed())

		got, err := driver.ListSessions(ctx, storage.Query{Project: "a"})
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(HaveLen(1))
		Expect(got[0].ID).To(Equal("s1"))

		Expect(driver.Reset(ctx, "a")).To(Succeed())
		count, err := driver.Count(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(count).To(Equal(1))
	})

	It("lists issues most recently seen first", func() {
		issues := []insights.Issue{
			{ID: "old", Title: "Old", IssueType: insights.IssueTypeError, LastSeen: insights.At(epoch.Add(-48 * time.Hour))},
			{ID: "new", Title: "New", IssueType: insights.IssueTypeCrash, LastSeen: insights.At(epoch),
				DailyEvents: map[string]insights.Count{"2024-05-01": 3}},
		}
		Expect(driver.Put(ctx, storage.Batch{Issues: issues})).To(Succeed())

		got, err := driver.ListIssues(ctx, storage.Query{})
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(HaveLen(2))
		Expect(got[0].ID).To(Equal("new"))
		Expect(got[0].DailyEvents).To(HaveKeyWithValue("2024-05-01", insights.Count(3)))

		got, err = driver.ListIssues(ctx, storage.Query{Since: epoch.Add(-time.Hour)})
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(HaveLen(1))
	})

	It("lists daily trends oldest first and keeps the latest rows under a limit", func() {
		rows := []insights.DailyTrendRow{
			{Date: "2024-04-29", Sessions: 1},
			{Date: "2024-05-01", Sessions: 3},
			{Date: "2024-04-30", Sessions: 2},
			{Sessions: 99},
		}
		Expect(driver.Put(ctx, storage.Batch{DailyTrends: rows})).To(Succeed())

		got, err := driver.ListDailyTrends(ctx, storage.Query{})
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(HaveLen(3))
		Expect(got[0].Date).To(Equal("2024-04-29"))
		Expect(got[2].Date).To(Equal("2024-05-01"))

		got, err = driver.ListDailyTrends(ctx, storage.Query{Limit: 2})
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(HaveLen(2))
		Expect(got[0].Date).To(Equal("2024-04-30"))

		got, err = driver.ListDailyTrends(ctx, storage.Query{Since: time.Date(2024, 4, 30, 18, 0, 0, 0, time.UTC)})
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(HaveLen(2))
	})

	It("returns empty lists for an unknown project", func() {
		sessions, err := driver.ListSessions(ctx, storage.Query{Project: "nope"})
		Expect(err).NotTo(HaveOccurred())
		Expect(sessions).To(BeEmpty())

		count, err := driver.Count(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(count).To(BeZero())
	})
}
