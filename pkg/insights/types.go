package insights

import (
	"bytes"
	"math"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

// Count is a numeric telemetry field decoded leniently from upstream
// payloads. Numbers, quoted numbers, null and garbage all decode without
// error; anything that is not a number becomes 0.
type Count float64

func (c *Count) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 1 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			*c = 0
			return nil
		}
		data = []byte(strings.TrimSpace(s))
	}

	value, err := strconv.ParseFloat(string(data), 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		*c = 0
		return nil
	}

	*c = Count(value)
	return nil
}

// countOrZero is the single read path for telemetry counters: non-finite and
// negative values read as 0.
func countOrZero(c Count) float64 {
	v := float64(c)
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Timestamp is an instant decoded leniently from upstream payloads. The zero
// Timestamp means the source value was missing or could not be parsed.
type Timestamp struct {
	time.Time
}

// At wraps t as a Timestamp.
func At(t time.Time) Timestamp {
	return Timestamp{Time: t}
}

// Valid reports whether the timestamp was resolved to a real instant.
func (ts Timestamp) Valid() bool {
	return !ts.IsZero()
}

// ParseTimestamp resolves value with the supported layouts, falling back to
// epoch milliseconds. It returns the zero Timestamp when nothing matches.
func ParseTimestamp(value string) Timestamp {
	value = strings.TrimSpace(value)
	if value == "" {
		return Timestamp{}
	}

	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return Timestamp{Time: parsed.UTC()}
		}
	}

	if millis, err := strconv.ParseFloat(value, 64); err == nil && !math.IsNaN(millis) && !math.IsInf(millis, 0) {
		return Timestamp{Time: time.UnixMilli(int64(millis)).UTC()}
	}

	return Timestamp{}
}

func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			*ts = Timestamp{}
			return nil
		}
		*ts = ParseTimestamp(s)
		return nil
	}

	*ts = ParseTimestamp(string(data))
	return nil
}

func (ts Timestamp) MarshalJSON() ([]byte, error) {
	if !ts.Valid() {
		return []byte("null"), nil
	}
	return json.Marshal(ts.UTC().Format(time.RFC3339Nano))
}

// Platform is the client platform a session was recorded on.
type Platform string

const (
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
	PlatformOther   Platform = "other"
)

// NormalizePlatform folds free-form platform strings into the known set.
func NormalizePlatform(value string) Platform {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "ios", "iphone", "ipad", "ipados":
		return PlatformIOS
	case "android":
		return PlatformAndroid
	default:
		return PlatformOther
	}
}

// Session is a single recorded user interaction with its behavioral telemetry.
type Session struct {
	ID              string    `json:"id"`
	StartedAt       Timestamp `json:"startedAt"`
	DurationSeconds Count     `json:"durationSeconds"`
	Platform        string    `json:"platform"`

	UserID               string `json:"userId,omitempty"`
	AnonymousID          string `json:"anonymousId,omitempty"`
	AnonymousDisplayName string `json:"anonymousDisplayName,omitempty"`
	DeviceID             string `json:"deviceId,omitempty"`

	ErrorCount       Count `json:"errorCount"`
	CrashCount       Count `json:"crashCount"`
	ANRCount         Count `json:"anrCount"`
	RageTapCount     Count `json:"rageTapCount"`
	DeadTapCount     Count `json:"deadTapCount"`
	APIErrorCount    Count `json:"apiErrorCount"`
	APITotalCount    Count `json:"apiTotalCount"`
	APIAvgResponseMs Count `json:"apiAvgResponseMs"`
	TouchCount       Count `json:"touchCount"`
	AppStartupTimeMs Count `json:"appStartupTimeMs"`

	InteractionScore Count    `json:"interactionScore"`
	ExplorationScore Count    `json:"explorationScore"`
	ScreensVisited   []string `json:"screensVisited,omitempty"`

	IsConstrained      bool   `json:"isConstrained"`
	IsExpensive        bool   `json:"isExpensive"`
	CellularGeneration string `json:"cellularGeneration,omitempty"`

	// ReplayPromoted is nil when upstream did not say; only an explicit false
	// removes the session from the replay pool.
	ReplayPromoted  *bool `json:"replayPromoted,omitempty"`
	IsReplayExpired bool  `json:"isReplayExpired"`
}

// IssueType classifies an issue aggregate.
type IssueType string

const (
	IssueTypeError       IssueType = "error"
	IssueTypeCrash       IssueType = "crash"
	IssueTypeANR         IssueType = "anr"
	IssueTypeRageTap     IssueType = "rage_tap"
	IssueTypeAPILatency  IssueType = "api_latency"
	IssueTypeUXFriction  IssueType = "ux_friction"
	IssueTypePerformance IssueType = "performance"
)

// Issue is a named, classified defect aggregate.
type Issue struct {
	ID          string           `json:"id"`
	Title       string           `json:"title"`
	IssueType   IssueType        `json:"issueType"`
	EventCount  Count            `json:"eventCount"`
	UserCount   Count            `json:"userCount"`
	LastSeen    Timestamp        `json:"lastSeen"`
	DailyEvents map[string]Count `json:"dailyEvents,omitempty"`
}

// DailyTrendRow is one calendar day of aggregate metrics.
type DailyTrendRow struct {
	Date               string `json:"date"`
	Sessions           Count  `json:"sessions"`
	Crashes            Count  `json:"crashes"`
	Errors             Count  `json:"errors"`
	APIErrorRate       Count  `json:"apiErrorRate"`
	APICalls           Count  `json:"apiCalls"`
	DAU                Count  `json:"dau"`
	MAU                Count  `json:"mau"`
	AvgSessionDuration Count  `json:"avgSessionDuration"`
}

// Priority orders recommendation cards.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityWatch    Priority = "watch"
	PriorityBaseline Priority = "baseline"
)

// Recommendation is a session picked for manual replay review.
type Recommendation struct {
	Session  Session  `json:"session"`
	Category string   `json:"category"`
	Priority Priority `json:"priority"`
	Reason   string   `json:"reason"`
}

// CohortRow is the retention of one weekly cohort. A nil retention entry is a
// week that has not been observed yet.
type CohortRow struct {
	CohortWeekStart string     `json:"cohortWeekStart"`
	UserCount       int        `json:"userCount"`
	Retention       []*float64 `json:"retention"`
}

// MomentumSnapshot aggregates one analysis window.
type MomentumSnapshot struct {
	Days               int     `json:"days"`
	StartDate          string  `json:"startDate"`
	EndDate            string  `json:"endDate"`
	TotalSessions      float64 `json:"totalSessions"`
	AvgDAU             float64 `json:"avgDau"`
	AvgRetention       float64 `json:"avgRetention"`
	APIErrorRate       float64 `json:"apiErrorRate"`
	CrashRate          float64 `json:"crashRate"`
	AvgSessionDuration float64 `json:"avgSessionDuration"`
}

// MomentumDeltas compares the current window against the prior one. A nil
// field means there is no prior value to compare against.
type MomentumDeltas struct {
	SessionsPct     *float64 `json:"sessionsPct"`
	DAUPct          *float64 `json:"dauPct"`
	RetentionPts    *float64 `json:"retentionPts"`
	APIErrorRatePts *float64 `json:"apiErrorRatePts"`
	CrashRatePts    *float64 `json:"crashRatePts"`
	DurationPct     *float64 `json:"durationPct"`
}

// MomentumComparison pairs the current and prior windows.
type MomentumComparison struct {
	WindowSize int               `json:"windowSize"`
	Current    MomentumSnapshot  `json:"current"`
	Previous   *MomentumSnapshot `json:"previous"`
	Deltas     MomentumDeltas    `json:"deltas"`
}
