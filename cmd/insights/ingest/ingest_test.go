package ingestcmder

import (
	"bytes"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/insights/cmd/insights/cmdsetup"
)

var _ = Describe("ingest command", func() {
	var configDir string

	BeforeEach(func() {
		configDir = filepath.Join(GinkgoT().TempDir(), ".insights")
	})

	execute := func(args ...string) error {
		root := &cobra.Command{Use: "insights", SilenceUsage: true, SilenceErrors: true}
		root.PersistentFlags().Bool(cmdsetup.FlagDebug, false, "")
		root.PersistentFlags().String(cmdsetup.FlagConfigDir, "", "")
		root.AddCommand(NewIngestCmd())

		root.SetOut(&bytes.Buffer{})
		root.SetErr(&bytes.Buffer{})
		root.SetArgs(append([]string{"ingest", "--config-dir", configDir}, args...))
		return root.Execute()
	}

	It("registers its flags", func() {
		cmd := NewIngestCmd()
		for _, name := range []string{"storage-driver", "sqlite", "postgres-dsn", "brokers", "ingest-topic", "group-id", "workers", "queue-size", "log-file"} {
			Expect(cmd.Flags().Lookup(name)).NotTo(BeNil(), name)
		}
		Expect(cmd.Flags().Lookup("workers").DefValue).To(Equal("3"))
	})

	It("requires brokers", func() {
		err := execute("--storage-driver", "memory")
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("eventstream.brokers"))
	})

	It("rejects malformed brokers", func() {
		err := execute("--storage-driver", "memory", "--brokers", "localhost")
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("eventstream.brokers"))
	})

	It("creates the log file before failing", func() {
		logFile := filepath.Join(GinkgoT().TempDir(), "logs", "ingest.log")
		err := execute("--storage-driver", "memory", "--log-file", logFile)
		Expect(err).To(HaveOccurred())
		Expect(logFile).To(BeAnExistingFile())
	})
})
