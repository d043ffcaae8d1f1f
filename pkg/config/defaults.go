package config

const (
	defaultStorageDriver = "sqlite"

	defaultProject             = "default"
	defaultRange               = "30d"
	defaultSessionLimit        = 120
	defaultRecommendationLimit = 24
	defaultCohortCount         = 6
	defaultCohortWeeks         = 6

	defaultTopic       = "insights.dashboards"
	defaultIngestTopic = "insights.records"
	defaultGroupID     = "insights-ingest"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Storage: StorageConfig{
			Driver: defaultStorageDriver,
		},
		Dashboard: DashboardConfig{
			Project:             defaultProject,
			Range:               defaultRange,
			SessionLimit:        defaultSessionLimit,
			RecommendationLimit: defaultRecommendationLimit,
			CohortCount:         defaultCohortCount,
			CohortWeeks:         defaultCohortWeeks,
		},
		EventStream: EventStreamConfig{
			Topic:       defaultTopic,
			IngestTopic: defaultIngestTopic,
			GroupID:     defaultGroupID,
		},
	}
}
