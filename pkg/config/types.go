package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Config represents the persistent insights configuration stored as config.toml
// in the .insights/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version     int               `toml:"version"`
	Storage     StorageConfig     `toml:"storage"`
	Dashboard   DashboardConfig   `toml:"dashboard"`
	EventStream EventStreamConfig `toml:"eventstream"`
}

// StorageConfig selects and locates the record store.
type StorageConfig struct {
	Driver      string `toml:"driver,omitempty" validate:"oneof=sqlite postgres memory"`
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	PostgresDSN string `toml:"postgres_dsn,omitempty" validate:"required_if=Driver postgres"`
}

// DashboardConfig holds the selection and sizing of a derived dashboard.
// Project and Range together form the selection key.
type DashboardConfig struct {
	Project             string `toml:"project,omitempty" validate:"required"`
	Range               string `toml:"range,omitempty" validate:"oneof=24h 7d 30d 90d all"`
	SessionLimit        uint   `toml:"session_limit,omitempty" validate:"min=1,max=1000"`
	RecommendationLimit uint   `toml:"recommendation_limit,omitempty" validate:"min=1,max=100"`
	CohortCount         uint   `toml:"cohort_count,omitempty" validate:"min=1,max=52"`
	CohortWeeks         uint   `toml:"cohort_weeks,omitempty" validate:"min=1,max=52"`
}

// EventStreamConfig holds Kafka settings. Brokers is a comma-separated list of
// host:port pairs; an empty list disables the event stream.
type EventStreamConfig struct {
	Brokers     string `toml:"brokers,omitempty" validate:"omitempty,brokers"`
	Topic       string `toml:"topic,omitempty" validate:"required"`
	IngestTopic string `toml:"ingest_topic,omitempty" validate:"required"`
	GroupID     string `toml:"group_id,omitempty" validate:"required"`
}

// BrokerList splits Brokers into trimmed, non-empty addresses.
func (e EventStreamConfig) BrokerList() []string {
	return splitBrokers(e.Brokers)
}

func splitBrokers(raw string) []string {
	var brokers []string
	for _, broker := range strings.Split(raw, ",") {
		if broker = strings.TrimSpace(broker); broker != "" {
			brokers = append(brokers, broker)
		}
	}
	return brokers
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func uintKey(key string, field func(c *Config) *uint) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if *field(c) == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(*field(c)), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", key, err)
			}
			*field(c) = uint(n)
			return nil
		},
	}
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"storage.driver": {
		get: func(c *Config) string { return c.Storage.Driver },
		set: func(c *Config, v string) error { c.Storage.Driver = v; return nil },
	},
	"storage.sqlite_path": {
		get: func(c *Config) string { return c.Storage.SQLitePath },
		set: func(c *Config, v string) error { c.Storage.SQLitePath = v; return nil },
	},
	"storage.postgres_dsn": {
		get: func(c *Config) string { return c.Storage.PostgresDSN },
		set: func(c *Config, v string) error { c.Storage.PostgresDSN = v; return nil },
	},
	"dashboard.project": {
		get: func(c *Config) string { return c.Dashboard.Project },
		set: func(c *Config, v string) error { c.Dashboard.Project = v; return nil },
	},
	"dashboard.range": {
		get: func(c *Config) string { return c.Dashboard.Range },
		set: func(c *Config, v string) error { c.Dashboard.Range = v; return nil },
	},
	"dashboard.session_limit": uintKey("dashboard.session_limit", func(c *Config) *uint {
		return &c.Dashboard.SessionLimit
	}),
	"dashboard.recommendation_limit": uintKey("dashboard.recommendation_limit", func(c *Config) *uint {
		return &c.Dashboard.RecommendationLimit
	}),
	"dashboard.cohort_count": uintKey("dashboard.cohort_count", func(c *Config) *uint {
		return &c.Dashboard.CohortCount
	}),
	"dashboard.cohort_weeks": uintKey("dashboard.cohort_weeks", func(c *Config) *uint {
		return &c.Dashboard.CohortWeeks
	}),
	"eventstream.brokers": {
		get: func(c *Config) string { return c.EventStream.Brokers },
		set: func(c *Config, v string) error { c.EventStream.Brokers = v; return nil },
	},
	"eventstream.topic": {
		get: func(c *Config) string { return c.EventStream.Topic },
		set: func(c *Config, v string) error { c.EventStream.Topic = v; return nil },
	},
	"eventstream.ingest_topic": {
		get: func(c *Config) string { return c.EventStream.IngestTopic },
		set: func(c *Config, v string) error { c.EventStream.IngestTopic = v; return nil },
	},
	"eventstream.group_id": {
		get: func(c *Config) string { return c.EventStream.GroupID },
		set: func(c *Config, v string) error { c.EventStream.GroupID = v; return nil },
	},
}
