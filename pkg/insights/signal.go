package insights

import (
	"math"
	"strings"
)

// SignalCount is the session's negative-outcome total: errors, crashes, ANRs
// and rage taps.
func SignalCount(s Session) int {
	total := countOrZero(s.ErrorCount) +
		countOrZero(s.CrashCount) +
		countOrZero(s.ANRCount) +
		countOrZero(s.RageTapCount)
	if total >= math.MaxInt32 {
		return math.MaxInt32
	}
	return int(total)
}

// UserKey resolves the identity a session is attributed to. Anonymous hints
// are not reconciled with each other: two anonymous ids are two users.
func UserKey(s Session) string {
	for _, candidate := range []string{s.UserID, s.AnonymousID, s.AnonymousDisplayName, s.DeviceID, s.ID} {
		if key := strings.TrimSpace(candidate); key != "" {
			return key
		}
	}
	return ""
}

func sessionPlatform(s Session) Platform {
	return NormalizePlatform(s.Platform)
}

func screenCount(s Session) int {
	count := 0
	for _, screen := range s.ScreensVisited {
		if strings.TrimSpace(screen) != "" {
			count++
		}
	}
	return count
}

func isAnonymous(s Session) bool {
	return strings.TrimSpace(s.UserID) == ""
}

func isSlowNetwork(s Session) bool {
	if s.IsConstrained || s.IsExpensive {
		return true
	}
	switch strings.ToLower(strings.TrimSpace(s.CellularGeneration)) {
	case "2g", "3g", "edge", "gprs":
		return true
	}
	return false
}

func inReplayPool(s Session) bool {
	promoted := s.ReplayPromoted == nil || *s.ReplayPromoted
	return promoted && !s.IsReplayExpired
}
