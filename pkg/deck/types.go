package deck

import (
	"time"

	"github.com/papercomputeco/insights/pkg/insights"
)

// Widget names reported in Dashboard.Degraded when their input could not be
// loaded.
const (
	WidgetRecommendations = "recommended sessions unavailable"
	WidgetCohorts         = "retention cohorts unavailable"
	WidgetSparklines      = "issue sparklines unavailable"
	WidgetMomentum        = "momentum unavailable"
)

// Selection identifies what a dashboard is derived for. Project and Range
// together form the selection key.
type Selection struct {
	Project string    `json:"project"`
	Range   TimeRange `json:"range"`
}

// Key returns the selection key, e.g. "checkout/30d".
func (s Selection) Key() string {
	return s.Project + "/" + string(s.Range)
}

// Dashboard is every insight derived for one selection.
type Dashboard struct {
	Key         string    `json:"key"`
	Selection   Selection `json:"selection"`
	GeneratedAt time.Time `json:"generatedAt"`

	Recommendations []insights.Recommendation    `json:"recommendations"`
	Cohorts         []insights.CohortRow         `json:"cohorts"`
	CohortSummary   insights.CohortSummary       `json:"cohortSummary"`
	Momentum        *insights.MomentumComparison `json:"momentum"`
	Directions      insights.MomentumDirections  `json:"directions"`
	IssueSparklines []insights.IssueSparkline    `json:"issueSparklines"`

	// Degraded names the widgets whose input failed to load. Every other
	// widget is still populated.
	Degraded []string `json:"degraded,omitempty"`
}

// IsDegraded reports whether any widget input failed to load.
func (d *Dashboard) IsDegraded() bool {
	return len(d.Degraded) > 0
}
