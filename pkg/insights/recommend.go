package insights

import (
	"cmp"
	"slices"
	"strings"
	"time"
)

const (
	// DefaultRecommendationLimit caps the shortlist handed to presentation.
	DefaultRecommendationLimit = 24

	// DefaultRemainderLimit is how many generic picks fill in after the rules.
	DefaultRemainderLimit = 8

	CategoryAdditionalRisk   = "Additional Risk Session"
	CategoryAdditionalSample = "Additional User Sample"

	reasonAdditionalRisk   = "Unreviewed session that still carries error, crash, ANR or rage tap signal"
	reasonAdditionalSample = "Unreviewed session kept as a representative user sample"
)

// SelectorOption configures a Selector.
type SelectorOption func(*Selector)

// WithLimit caps the number of recommendations returned.
func WithLimit(limit int) SelectorOption {
	return func(s *Selector) {
		if limit > 0 {
			s.limit = limit
		}
	}
}

// WithRemainderLimit sets how many generic picks follow the rule picks.
func WithRemainderLimit(limit int) SelectorOption {
	return func(s *Selector) {
		if limit >= 0 {
			s.remainder = limit
		}
	}
}

// Selector builds the recommended-session shortlist. It holds no state
// between calls and is safe for concurrent use.
type Selector struct {
	limit     int
	remainder int
	rules     []rule
}

func NewSelector(opts ...SelectorOption) *Selector {
	s := &Selector{
		limit:     DefaultRecommendationLimit,
		remainder: DefaultRemainderLimit,
		rules:     recommendationRules(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Select runs the default selector over sessions.
func Select(sessions []Session) []Recommendation {
	return NewSelector().Select(sessions)
}

// Select returns at most the configured number of recommendations, in rule
// order, never referencing the same session twice.
func (s *Selector) Select(sessions []Session) []Recommendation {
	if len(sessions) == 0 {
		return []Recommendation{}
	}

	sel := newSelection(replayPool(sessions))
	for _, r := range s.rules {
		sel.apply(r)
	}
	sel.fillRemainder(s.remainder)

	if len(sel.out) > s.limit {
		sel.out = sel.out[:s.limit]
	}
	return sel.out
}

// replayPool keeps sessions that still have a watchable replay, falling back
// to everything when none do.
func replayPool(sessions []Session) []Session {
	pool := make([]Session, 0, len(sessions))
	for _, session := range sessions {
		if inReplayPool(session) {
			pool = append(pool, session)
		}
	}
	if len(pool) == 0 {
		return sessions
	}
	return pool
}

type candidate struct {
	index   int
	key     string
	user    string
	signal  int
	started time.Time
	session Session
}

type userStats struct {
	sessions int
	best     candidate
	latest   candidate
	earliest candidate
}

type selection struct {
	pool      []candidate
	users     map[string]*userStats
	userOrder []string
	used      map[string]bool
	out       []Recommendation
}

func newSelection(sessions []Session) *selection {
	sel := &selection{
		pool:  make([]candidate, 0, len(sessions)),
		users: map[string]*userStats{},
		used:  map[string]bool{},
	}

	for i, session := range sessions {
		// Without an id there is nothing to open or to key exclusivity on.
		if strings.TrimSpace(session.ID) == "" {
			continue
		}
		c := candidate{
			index:   i,
			key:     session.ID,
			user:    UserKey(session),
			signal:  SignalCount(session),
			session: session,
		}
		if session.StartedAt.Valid() {
			c.started = session.StartedAt.Time
		}
		sel.pool = append(sel.pool, c)
		sel.track(c)
	}

	return sel
}

func (sel *selection) track(c candidate) {
	if c.user == "" {
		return
	}

	stats, ok := sel.users[c.user]
	if !ok {
		sel.users[c.user] = &userStats{sessions: 1, best: c, latest: c, earliest: c}
		sel.userOrder = append(sel.userOrder, c.user)
		return
	}

	stats.sessions++
	if c.signal > stats.best.signal {
		stats.best = c
	}
	if newerThan(c.started, stats.latest.started) {
		stats.latest = c
	}
	if olderThan(c.started, stats.earliest.started) {
		stats.earliest = c
	}
}

func (sel *selection) userSessions(c candidate) int {
	if stats, ok := sel.users[c.user]; ok {
		return stats.sessions
	}
	return 0
}

func (sel *selection) isUserLatest(c candidate) bool {
	stats, ok := sel.users[c.user]
	return ok && stats.latest.index == c.index
}

func (sel *selection) isUserEarliest(c candidate) bool {
	stats, ok := sel.users[c.user]
	return ok && stats.earliest.index == c.index
}

func (sel *selection) apply(r rule) {
	var (
		picked candidate
		ok     bool
	)
	if r.choose != nil {
		picked, ok = r.choose(sel)
	} else {
		picked, ok = sel.pick(r)
	}
	if !ok {
		return
	}
	sel.take(picked, r.category, r.priority, r.reason)
}

func (sel *selection) pick(r rule) (candidate, bool) {
	matches := make([]candidate, 0, len(sel.pool))
	for _, c := range sel.pool {
		if sel.used[c.key] {
			continue
		}
		if r.match != nil && !r.match(sel, c) {
			continue
		}
		matches = append(matches, c)
	}
	if len(matches) == 0 {
		return candidate{}, false
	}

	if r.order != nil {
		slices.SortStableFunc(matches, r.order)
	}

	top := matches[0]
	if r.accept != nil && !r.accept(top) {
		return candidate{}, false
	}
	return top, true
}

func (sel *selection) take(c candidate, category string, priority Priority, reason string) {
	sel.used[c.key] = true
	sel.out = append(sel.out, Recommendation{
		Session:  c.session,
		Category: category,
		Priority: priority,
		Reason:   reason,
	})
}

func (sel *selection) fillRemainder(limit int) {
	rest := make([]candidate, 0, len(sel.pool))
	for _, c := range sel.pool {
		if !sel.used[c.key] {
			rest = append(rest, c)
		}
	}

	slices.SortStableFunc(rest, func(a, b candidate) int {
		if n := cmp.Compare(b.signal, a.signal); n != 0 {
			return n
		}
		if n := cmp.Compare(countOrZero(b.session.InteractionScore), countOrZero(a.session.InteractionScore)); n != 0 {
			return n
		}
		return mostRecent(a, b)
	})

	for i, c := range rest {
		if i >= limit {
			break
		}
		if c.signal > 0 {
			sel.take(c, CategoryAdditionalRisk, PriorityHigh, reasonAdditionalRisk)
		} else {
			sel.take(c, CategoryAdditionalSample, PriorityWatch, reasonAdditionalSample)
		}
	}
}

// promoteFrequentUser picks the best-signal session of the user with the
// most sessions. Ties go to the user seen first.
func promoteFrequentUser(sel *selection) (candidate, bool) {
	var top *userStats
	for _, user := range sel.userOrder {
		stats := sel.users[user]
		if top == nil || stats.sessions > top.sessions {
			top = stats
		}
	}
	if top == nil || top.sessions <= 1 {
		return candidate{}, false
	}
	if sel.used[top.best.key] {
		return candidate{}, false
	}
	return top.best, true
}

// mostRecent orders newer sessions first; unparseable start times sort last.
func mostRecent(a, b candidate) int {
	switch {
	case newerThan(a.started, b.started):
		return -1
	case newerThan(b.started, a.started):
		return 1
	default:
		return 0
	}
}

func newerThan(a, b time.Time) bool {
	if a.IsZero() {
		return false
	}
	return b.IsZero() || a.After(b)
}

func olderThan(a, b time.Time) bool {
	if a.IsZero() {
		return false
	}
	return b.IsZero() || a.Before(b)
}

func descending(metric func(candidate) float64) func(a, b candidate) int {
	return func(a, b candidate) int {
		return cmp.Compare(metric(b), metric(a))
	}
}
