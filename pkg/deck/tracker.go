package deck

import "sync"

// Ticket is the identity of one dashboard load, captured when the load is
// issued.
type Ticket struct {
	Generation uint64
	Key        string
}

// Tracker decides whether a finished load may still be applied. Every Issue
// supersedes the tickets before it, so a slow load for an old selection can
// never overwrite a newer one.
type Tracker struct {
	mu         sync.Mutex
	generation uint64
	key        string
	applied    uint64
	stale      uint64
}

// NewTracker returns a Tracker whose generations continue after start, so
// generations keep increasing across runs that persist the last one.
func NewTracker(start uint64) *Tracker {
	return &Tracker{generation: start}
}

// Issue starts a new load for key and returns its ticket.
func (t *Tracker) Issue(key string) Ticket {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.generation++
	t.key = key
	return Ticket{Generation: t.generation, Key: key}
}

// Current reports whether ticket is the most recently issued one.
func (t *Tracker) Current(ticket Ticket) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.isCurrent(ticket)
}

func (t *Tracker) isCurrent(ticket Ticket) bool {
	return ticket.Generation == t.generation && ticket.Key == t.key
}

// Apply runs fn if ticket is still current and reports whether it ran. Stale
// results are discarded and counted. fn runs under the tracker lock, so no
// newer ticket can be issued while it applies.
func (t *Tracker) Apply(ticket Ticket, fn func()) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.isCurrent(ticket) {
		t.stale++
		return false
	}

	fn()
	t.applied++
	return true
}

// Generation returns the latest issued generation.
func (t *Tracker) Generation() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.generation
}

// Stale returns how many results were discarded by Apply.
func (t *Tracker) Stale() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.stale
}

// Applied returns how many results Apply accepted.
func (t *Tracker) Applied() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.applied
}
