package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline. This prevents flag drift
// when the same logical flag appears on multiple commands (e.g., --project
// on "insights derive", "insights seed" and "insights ingest").
type Flag struct {
	// Name is the long flag name (e.g. "range").
	Name string

	// Shorthand is the one-letter short flag (e.g. "r"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "dashboard.range").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of flag names to Flag structs that hold their name,
// shorthand, viper key, etc.
type FlagSet map[string]Flag

// Flag registry keys.
// Use these constants when calling AddStringFlag, AddUintFlag,
// and BindRegisteredFlags to avoid typos or drift from one command to another.
const (
	FlagStorageDriver = "storage-driver"
	FlagSQLite        = "sqlite"
	FlagPostgresDSN   = "postgres-dsn"
	FlagProject       = "project"
	FlagRange         = "range"
	FlagSessionLimit  = "session-limit"
	FlagRecLimit      = "recommendation-limit"
	FlagCohortCount   = "cohort-count"
	FlagCohortWeeks   = "cohort-weeks"
	FlagBrokers       = "brokers"
	FlagTopic         = "topic"
	FlagIngestTopic   = "ingest-topic"
	FlagGroupID       = "group-id"
)

// Flags is the registry shared by every insights command.
var Flags = FlagSet{
	FlagStorageDriver: {
		Name:        "storage-driver",
		ViperKey:    "storage.driver",
		Description: "Storage driver: sqlite, postgres or memory",
	},
	FlagSQLite: {
		Name:        "sqlite",
		Shorthand:   "s",
		ViperKey:    "storage.sqlite_path",
		Description: "Path to the SQLite database",
	},
	FlagPostgresDSN: {
		Name:        "postgres-dsn",
		ViperKey:    "storage.postgres_dsn",
		Description: "PostgreSQL connection string",
	},
	FlagProject: {
		Name:        "project",
		Shorthand:   "p",
		ViperKey:    "dashboard.project",
		Description: "Project the records belong to",
	},
	FlagRange: {
		Name:        "range",
		Shorthand:   "r",
		ViperKey:    "dashboard.range",
		Description: "Time range: 24h, 7d, 30d, 90d or all",
	},
	FlagSessionLimit: {
		Name:        "session-limit",
		ViperKey:    "dashboard.session_limit",
		Description: "Maximum sessions loaded per dashboard",
	},
	FlagRecLimit: {
		Name:        "recommendation-limit",
		ViperKey:    "dashboard.recommendation_limit",
		Description: "Maximum recommended sessions",
	},
	FlagCohortCount: {
		Name:        "cohort-count",
		ViperKey:    "dashboard.cohort_count",
		Description: "Number of weekly cohorts reported",
	},
	FlagCohortWeeks: {
		Name:        "cohort-weeks",
		ViperKey:    "dashboard.cohort_weeks",
		Description: "Weeks of retention tracked per cohort",
	},
	FlagBrokers: {
		Name:        "brokers",
		ViperKey:    "eventstream.brokers",
		Description: "Comma-separated Kafka brokers (host:port)",
	},
	FlagTopic: {
		Name:        "topic",
		ViperKey:    "eventstream.topic",
		Description: "Kafka topic for derived dashboard events",
	},
	FlagIngestTopic: {
		Name:        "ingest-topic",
		ViperKey:    "eventstream.ingest_topic",
		Description: "Kafka topic carrying record batches",
	},
	FlagGroupID: {
		Name:        "group-id",
		ViperKey:    "eventstream.group_id",
		Description: "Kafka consumer group for ingestion",
	},
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddUintFlag registers a uint flag on cmd from the given FlagSet.
func AddUintFlag(cmd *cobra.Command, fs FlagSet, registryKey string, target *uint) {
	def, ok := fs[registryKey]
	if !ok {
		return
	}

	defaultVal := defaultUint(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().UintVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().UintVar(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

// defaultString returns the default string value for a viper key from NewDefaultConfig.
func defaultString(viperKey string) string {
	v := viper.New()
	setViperDefaults(v)
	return v.GetString(viperKey)
}

// defaultUint returns the default uint value for a viper key from NewDefaultConfig.
func defaultUint(viperKey string) uint {
	v := viper.New()
	setViperDefaults(v)
	return v.GetUint(viperKey)
}
