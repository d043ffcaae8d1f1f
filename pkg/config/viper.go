package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/papercomputeco/insights/pkg/dotdir"
)

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the INSIGHTS_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (INSIGHTS_DASHBOARD_RANGE, INSIGHTS_STORAGE_DRIVER, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	// 1. Register all defaults from NewDefaultConfig().
	setViperDefaults(v)

	// 2. Config file discovery via dotdir resolution.
	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// 3. Environment variables: INSIGHTS_DASHBOARD_PROJECT, INSIGHTS_STORAGE_SQLITE_PATH, etc.
	v.SetEnvPrefix("INSIGHTS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	// Storage
	v.SetDefault("storage.driver", d.Storage.Driver)
	v.SetDefault("storage.sqlite_path", d.Storage.SQLitePath)
	v.SetDefault("storage.postgres_dsn", d.Storage.PostgresDSN)

	// Dashboard
	v.SetDefault("dashboard.project", d.Dashboard.Project)
	v.SetDefault("dashboard.range", d.Dashboard.Range)
	v.SetDefault("dashboard.session_limit", d.Dashboard.SessionLimit)
	v.SetDefault("dashboard.recommendation_limit", d.Dashboard.RecommendationLimit)
	v.SetDefault("dashboard.cohort_count", d.Dashboard.CohortCount)
	v.SetDefault("dashboard.cohort_weeks", d.Dashboard.CohortWeeks)

	// Event stream
	v.SetDefault("eventstream.brokers", d.EventStream.Brokers)
	v.SetDefault("eventstream.topic", d.EventStream.Topic)
	v.SetDefault("eventstream.ingest_topic", d.EventStream.IngestTopic)
	v.SetDefault("eventstream.group_id", d.EventStream.GroupID)
}

// FromViper assembles a Config from the resolved viper values, so flags and
// environment variables take part alongside the file and defaults.
func FromViper(v *viper.Viper) *Config {
	return &Config{
		Version: v.GetInt("version"),
		Storage: StorageConfig{
			Driver:      v.GetString("storage.driver"),
			SQLitePath:  v.GetString("storage.sqlite_path"),
			PostgresDSN: v.GetString("storage.postgres_dsn"),
		},
		Dashboard: DashboardConfig{
			Project:             v.GetString("dashboard.project"),
			Range:               v.GetString("dashboard.range"),
			SessionLimit:        v.GetUint("dashboard.session_limit"),
			RecommendationLimit: v.GetUint("dashboard.recommendation_limit"),
			CohortCount:         v.GetUint("dashboard.cohort_count"),
			CohortWeeks:         v.GetUint("dashboard.cohort_weeks"),
		},
		EventStream: EventStreamConfig{
			Brokers:     v.GetString("eventstream.brokers"),
			Topic:       v.GetString("eventstream.topic"),
			IngestTopic: v.GetString("eventstream.ingest_topic"),
			GroupID:     v.GetString("eventstream.group_id"),
		},
	}
}
