// Package derivecmder provides the derive command, which turns stored records
// into a dashboard document.
package derivecmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/insights/cmd/insights/cmdsetup"
	"github.com/papercomputeco/insights/cmd/insights/storeopen"
	"github.com/papercomputeco/insights/pkg/cliui"
	"github.com/papercomputeco/insights/pkg/config"
	"github.com/papercomputeco/insights/pkg/deck"
	"github.com/papercomputeco/insights/pkg/dotdir"
	"github.com/papercomputeco/insights/pkg/eventstream"
	"github.com/papercomputeco/insights/pkg/eventstream/kafka"
	"github.com/papercomputeco/insights/pkg/eventstream/nop"
	"github.com/papercomputeco/insights/pkg/storage"
)

const deriveLongDesc string = `Derive the insights dashboard for a project and time range.

Reads sessions, issues and daily trends from storage and writes the dashboard
as JSON: recommended sessions, retention cohorts, momentum and issue
sparklines. Inputs that fail to load are listed under "degraded" while every
other widget is still derived.

With --watch, the dashboard is derived again whenever config.toml changes
(for example after "insights config set dashboard.range 7d") and, with
--interval, on a timer. A derivation that is overtaken by a newer one is
discarded.

Examples:
  insights derive
  insights derive --project checkout --range 7d
  insights derive -o dashboard.json --watch --interval 1m
  insights derive --publish --brokers localhost:9092`

const deriveShortDesc string = "Derive the insights dashboard"

// deriveFlags are the registry flags derive binds into its config.
var deriveFlags = []string{
	config.FlagStorageDriver,
	config.FlagSQLite,
	config.FlagPostgresDSN,
	config.FlagProject,
	config.FlagRange,
	config.FlagSessionLimit,
	config.FlagRecLimit,
	config.FlagCohortCount,
	config.FlagCohortWeeks,
	config.FlagBrokers,
	config.FlagTopic,
	config.FlagIngestTopic,
}

type deriveCommander struct {
	flags struct {
		storageDriver string
		sqlite        string
		postgresDSN   string
		project       string
		timeRange     string
		sessionLimit  uint
		recLimit      uint
		cohortCount   uint
		cohortWeeks   uint
		brokers       string
		topic         string
		ingestTopic   string
	}

	output   string
	compact  bool
	publish  bool
	watch    bool
	interval time.Duration

	configDir string
	out       io.Writer
	errOut    io.Writer
	logger    *slog.Logger
	ddm       *dotdir.Manager
	publisher eventstream.Publisher
}

func NewDeriveCmd() *cobra.Command {
	cmder := &deriveCommander{}

	cmd := &cobra.Command{
		Use:   "derive",
		Short: deriveShortDesc,
		Long:  deriveLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd)
		},
	}

	f := &cmder.flags
	config.AddStringFlag(cmd, config.Flags, config.FlagStorageDriver, &f.storageDriver)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &f.sqlite)
	config.AddStringFlag(cmd, config.Flags, config.FlagPostgresDSN, &f.postgresDSN)
	config.AddStringFlag(cmd, config.Flags, config.FlagProject, &f.project)
	config.AddStringFlag(cmd, config.Flags, config.FlagRange, &f.timeRange)
	config.AddUintFlag(cmd, config.Flags, config.FlagSessionLimit, &f.sessionLimit)
	config.AddUintFlag(cmd, config.Flags, config.FlagRecLimit, &f.recLimit)
	config.AddUintFlag(cmd, config.Flags, config.FlagCohortCount, &f.cohortCount)
	config.AddUintFlag(cmd, config.Flags, config.FlagCohortWeeks, &f.cohortWeeks)
	config.AddStringFlag(cmd, config.Flags, config.FlagBrokers, &f.brokers)
	config.AddStringFlag(cmd, config.Flags, config.FlagTopic, &f.topic)
	config.AddStringFlag(cmd, config.Flags, config.FlagIngestTopic, &f.ingestTopic)

	cmd.Flags().StringVarP(&cmder.output, "output", "o", "", "Write the dashboard to this file instead of stdout")
	cmd.Flags().BoolVar(&cmder.compact, "compact", false, "Write compact JSON")
	cmd.Flags().BoolVar(&cmder.publish, "publish", false, "Publish insights.dashboard.derived events to Kafka")
	cmd.Flags().BoolVarP(&cmder.watch, "watch", "w", false, "Derive again when config.toml changes")
	cmd.Flags().DurationVar(&cmder.interval, "interval", 0, "With --watch, also derive on this interval (e.g. 1m)")

	return cmd
}

func (c *deriveCommander) run(cmd *cobra.Command) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c.configDir = cmdsetup.ConfigDir(cmd)
	c.out = cmd.OutOrStdout()
	c.errOut = cmd.ErrOrStderr()
	c.logger = cmdsetup.Logger(cmd)
	c.ddm = dotdir.NewManager()

	cfg, err := cmdsetup.LoadConfig(cmd, deriveFlags)
	if err != nil {
		return err
	}

	driver, err := storeopen.Open(ctx, cfg.Storage, c.logger)
	if err != nil {
		return err
	}
	defer driver.Close()

	c.publisher, err = c.newPublisher(cfg)
	if err != nil {
		return err
	}
	defer c.publisher.Close()

	state, err := c.ddm.LoadDeriveState(c.configDir)
	if err != nil {
		return err
	}
	var generation uint64
	if state != nil {
		generation = state.Generation
	}
	tracker := deck.NewTracker(generation)

	if !c.watch {
		return c.derive(ctx, cfg, driver, tracker)
	}
	return c.watchConfig(ctx, cmd, cfg, driver, tracker)
}

func (c *deriveCommander) newPublisher(cfg *config.Config) (eventstream.Publisher, error) {
	if !c.publish {
		return nop.NewPublisher(), nil
	}

	brokers := cfg.EventStream.BrokerList()
	if len(brokers) == 0 {
		return nil, errors.New("--publish requires eventstream.brokers (set --brokers or INSIGHTS_EVENTSTREAM_BROKERS)")
	}

	return kafka.NewPublisher(kafka.PublisherConfig{
		Brokers:        brokers,
		DashboardTopic: cfg.EventStream.Topic,
		RecordsTopic:   cfg.EventStream.IngestTopic,
		Logger:         c.logger,
	})
}

// derive loads one dashboard and emits it if it is still the latest load.
func (c *deriveCommander) derive(ctx context.Context, cfg *config.Config, reader storage.Reader, tracker *deck.Tracker) error {
	timeRange, err := deck.ParseTimeRange(cfg.Dashboard.Range)
	if err != nil {
		return err
	}

	loader := deck.NewLoader(reader,
		deck.WithSessionLimit(int(cfg.Dashboard.SessionLimit)),
		deck.WithRecommendationLimit(int(cfg.Dashboard.RecommendationLimit)),
		deck.WithCohortShape(int(cfg.Dashboard.CohortCount), int(cfg.Dashboard.CohortWeeks)),
		deck.WithLogger(c.logger),
	)

	var emitErr error
	_, err = loader.Refresh(ctx, tracker, deck.Selection{
		Project: cfg.Dashboard.Project,
		Range:   timeRange,
	}, func(ticket deck.Ticket, d *deck.Dashboard) {
		emitErr = c.emit(ctx, ticket, d)
	})
	if err != nil {
		return err
	}
	return emitErr
}

// emit writes the dashboard, records the derive state and publishes it.
func (c *deriveCommander) emit(ctx context.Context, ticket deck.Ticket, d *deck.Dashboard) error {
	var (
		payload []byte
		err     error
	)
	if c.compact {
		payload, err = json.Marshal(d)
	} else {
		payload, err = json.MarshalIndent(d, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("encoding dashboard: %w", err)
	}
	payload = append(payload, '\n')

	if c.output == "" {
		if _, err := c.out.Write(payload); err != nil {
			return fmt.Errorf("writing dashboard: %w", err)
		}
	} else if err := os.WriteFile(c.output, payload, 0o644); err != nil {
		return fmt.Errorf("writing dashboard to %s: %w", c.output, err)
	}

	if d.IsDegraded() {
		fmt.Fprint(c.errOut, cliui.Warnings(d.Degraded))
	}

	if err := c.ddm.SaveDeriveState(&dotdir.DeriveState{
		Key:         d.Key,
		Generation:  ticket.Generation,
		GeneratedAt: d.GeneratedAt,
		Degraded:    d.Degraded,
	}, c.configDir); err != nil {
		return err
	}

	if err := c.publisher.PublishDashboard(ctx, eventstream.NewDashboardDerivedEvent(d, ticket.Generation, d.GeneratedAt)); err != nil {
		return err
	}

	c.logger.Info("dashboard derived",
		"key", d.Key,
		"generation", ticket.Generation,
		"recommendations", len(d.Recommendations),
		"degraded", len(d.Degraded),
	)
	return nil
}

// watchConfig derives once, then again on every config.toml change and
// interval tick until ctx is done. Derivations run concurrently; the tracker
// keeps only the newest one.
func (c *deriveCommander) watchConfig(ctx context.Context, cmd *cobra.Command, cfg *config.Config, driver storage.Driver, tracker *deck.Tracker) error {
	dir, err := c.ddm.Target(c.configDir)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating config watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	var tick <-chan time.Time
	if c.interval > 0 {
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	var wg sync.WaitGroup
	defer wg.Wait()

	launch := func(cfg *config.Config) {
		wg.Go(func() {
			if err := c.derive(ctx, cfg, driver, tracker); err != nil && ctx.Err() == nil {
				c.logger.Error("derive failed", "error", err)
			}
		})
	}

	c.logger.Info("watching for config changes", "dir", dir)
	launch(cfg)

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-tick:
			launch(cfg)

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != "config.toml" {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			next, err := cmdsetup.LoadConfig(cmd, deriveFlags)
			if err != nil {
				c.logger.Warn("ignoring invalid config change", "error", err)
				continue
			}
			if next.Storage != cfg.Storage {
				c.logger.Warn("storage settings changed; restart derive to switch storage")
			}
			cfg = next
			launch(cfg)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			c.logger.Warn("config watcher error", "error", err)
		}
	}
}
