package insights

import (
	"fmt"
	"time"
)

// RelativeLabel renders ts relative to now for card subtitles. Instants in the
// future or under a minute old read as "just now"; anything older than a week
// is shown as its date.
func RelativeLabel(ts Timestamp, now time.Time) string {
	if !ts.Valid() {
		return "unknown"
	}

	elapsed := now.Sub(ts.Time)
	switch {
	case elapsed < time.Minute:
		return "just now"
	case elapsed < time.Hour:
		return fmt.Sprintf("%dm ago", int(elapsed/time.Minute))
	case elapsed < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(elapsed/time.Hour))
	case elapsed < week:
		return fmt.Sprintf("%dd ago", int(elapsed/(24*time.Hour)))
	default:
		return ts.UTC().Format(dateLayout)
	}
}
