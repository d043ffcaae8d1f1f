package insights

// MaxWindowDays caps the momentum window.
const MaxWindowDays = 14

// CompareWindows aggregates the trailing window of rows and compares it to the
// equally sized window before it. rows must be sorted ascending by date. It
// returns nil when rows is empty.
func CompareWindows(rows []DailyTrendRow) *MomentumComparison {
	if len(rows) == 0 {
		return nil
	}

	size := min(max(len(rows)/2, 1), MaxWindowDays)
	current := rows[len(rows)-size:]

	comparison := &MomentumComparison{
		WindowSize: size,
		Current:    snapshot(current),
	}

	prevStart := max(len(rows)-2*size, 0)
	previous := rows[prevStart : len(rows)-size]
	if len(previous) == 0 {
		return comparison
	}

	prev := snapshot(previous)
	comparison.Previous = &prev
	comparison.Deltas = MomentumDeltas{
		SessionsPct:     percentChange(comparison.Current.TotalSessions, prev.TotalSessions),
		DAUPct:          percentChange(comparison.Current.AvgDAU, prev.AvgDAU),
		RetentionPts:    ptr(comparison.Current.AvgRetention - prev.AvgRetention),
		APIErrorRatePts: ptr(comparison.Current.APIErrorRate - prev.APIErrorRate),
		CrashRatePts:    ptr(comparison.Current.CrashRate - prev.CrashRate),
		DurationPct:     percentChange(comparison.Current.AvgSessionDuration, prev.AvgSessionDuration),
	}
	return comparison
}

func snapshot(rows []DailyTrendRow) MomentumSnapshot {
	snap := MomentumSnapshot{
		Days:      len(rows),
		StartDate: rows[0].Date,
		EndDate:   rows[len(rows)-1].Date,
	}

	var (
		dau, retention          float64
		crashes, durationWeight float64
		calls, weightedErrors   float64
		errorRates              float64
	)
	for _, row := range rows {
		sessions := countOrZero(row.Sessions)
		snap.TotalSessions += sessions
		dau += countOrZero(row.DAU)

		if mau := countOrZero(row.MAU); mau > 0 {
			retention += countOrZero(row.DAU) / mau * 100
		}

		crashes += countOrZero(row.Crashes)
		durationWeight += countOrZero(row.AvgSessionDuration) * sessions

		rate := countOrZero(row.APIErrorRate)
		errorRates += rate
		calls += countOrZero(row.APICalls)
		weightedErrors += rate * countOrZero(row.APICalls)
	}

	days := float64(len(rows))
	snap.AvgDAU = dau / days
	snap.AvgRetention = retention / days

	if calls > 0 {
		snap.APIErrorRate = weightedErrors / calls
	} else {
		snap.APIErrorRate = errorRates / days
	}

	if snap.TotalSessions > 0 {
		snap.CrashRate = crashes / snap.TotalSessions * 100
		snap.AvgSessionDuration = durationWeight / snap.TotalSessions
	}
	return snap
}

func percentChange(current, previous float64) *float64 {
	if previous <= 0 {
		return nil
	}
	return ptr((current - previous) / previous * 100)
}

// Direction is the qualitative reading of a delta.
type Direction string

const (
	DirectionUp      Direction = "up"
	DirectionDown    Direction = "down"
	DirectionFlat    Direction = "flat"
	DirectionUnknown Direction = "unknown"

	directionDeadband = 0.01
)

// DirectionOf classifies delta. A nil delta has no prior window to compare
// against and reads as unknown, never flat.
func DirectionOf(delta *float64) Direction {
	switch {
	case delta == nil:
		return DirectionUnknown
	case *delta > directionDeadband:
		return DirectionUp
	case *delta < -directionDeadband:
		return DirectionDown
	default:
		return DirectionFlat
	}
}

// MomentumDirections holds the direction of each delta.
type MomentumDirections struct {
	Sessions     Direction `json:"sessions"`
	DAU          Direction `json:"dau"`
	Retention    Direction `json:"retention"`
	APIErrorRate Direction `json:"apiErrorRate"`
	CrashRate    Direction `json:"crashRate"`
	Duration     Direction `json:"duration"`
}

func (m *MomentumComparison) Directions() MomentumDirections {
	if m == nil {
		return MomentumDirections{
			Sessions:     DirectionUnknown,
			DAU:          DirectionUnknown,
			Retention:    DirectionUnknown,
			APIErrorRate: DirectionUnknown,
			CrashRate:    DirectionUnknown,
			Duration:     DirectionUnknown,
		}
	}
	return MomentumDirections{
		Sessions:     DirectionOf(m.Deltas.SessionsPct),
		DAU:          DirectionOf(m.Deltas.DAUPct),
		Retention:    DirectionOf(m.Deltas.RetentionPts),
		APIErrorRate: DirectionOf(m.Deltas.APIErrorRatePts),
		CrashRate:    DirectionOf(m.Deltas.CrashRatePts),
		Duration:     DirectionOf(m.Deltas.DurationPct),
	}
}
