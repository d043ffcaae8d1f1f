package seedcmder

import (
	"bytes"
	"context"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/insights/cmd/insights/cmdsetup"
	"github.com/papercomputeco/insights/pkg/storage"
	"github.com/papercomputeco/insights/pkg/storage/sqlite"
)

var _ = Describe("seed command", func() {
	var (
		ctx       context.Context
		configDir string
		dbPath    string
	)

	BeforeEach(func() {
		ctx = context.Background()
		tmp := GinkgoT().TempDir()
		configDir = filepath.Join(tmp, ".insights")
		dbPath = filepath.Join(tmp, "insights.db")
	})

	execute := func(args ...string) (string, error) {
		root := &cobra.Command{Use: "insights", SilenceUsage: true, SilenceErrors: true}
		root.PersistentFlags().Bool(cmdsetup.FlagDebug, false, "")
		root.PersistentFlags().String(cmdsetup.FlagConfigDir, "", "")
		root.AddCommand(NewSeedCmd())

		buf := &bytes.Buffer{}
		root.SetOut(buf)
		root.SetErr(buf)
		root.SetArgs(append([]string{"seed", "--config-dir", configDir, "--sqlite", dbPath}, args...))
		err := root.Execute()
		return buf.String(), err
	}

	countSessions := func(project string) int {
		driver, err := sqlite.NewDriver(ctx, dbPath)
		Expect(err).NotTo(HaveOccurred())
		defer driver.Close()

		sessions, err := driver.ListSessions(ctx, storage.Query{Project: project})
		Expect(err).NotTo(HaveOccurred())
		return len(sessions)
	}

	It("seeds the demo project into sqlite", func() {
		out, err := execute()
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("Seeding demo data"))
		Expect(out).To(ContainSubstring("Seeded"))
		Expect(countSessions("demo")).To(BeNumerically(">", 0))
	})

	It("seeds a named project", func() {
		_, err := execute("--project", "checkout")
		Expect(err).NotTo(HaveOccurred())
		Expect(countSessions("checkout")).To(BeNumerically(">", 0))
		Expect(countSessions("demo")).To(BeZero())
	})

	It("refuses to seed a store that already has records", func() {
		_, err := execute()
		Expect(err).NotTo(HaveOccurred())

		_, err = execute()
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("use --overwrite"))
	})

	It("reseeds with --overwrite", func() {
		_, err := execute()
		Expect(err).NotTo(HaveOccurred())
		first := countSessions("demo")

		_, err = execute("--overwrite")
		Expect(err).NotTo(HaveOccurred())
		Expect(countSessions("demo")).To(Equal(first))
	})

	It("requires brokers to publish", func() {
		_, err := execute("--publish")
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("eventstream.brokers"))
	})

	It("rejects an unknown storage driver", func() {
		_, err := execute("--storage-driver", "mysql")
		Expect(err).To(HaveOccurred())
	})
})
