package insights

// rule picks at most one unused session from the pool. When choose is set it
// replaces the match/order/accept pipeline entirely.
type rule struct {
	category string
	priority Priority
	reason   string

	match  func(sel *selection, c candidate) bool
	order  func(a, b candidate) int
	accept func(c candidate) bool
	choose func(sel *selection) (candidate, bool)
}

const (
	slowAPIResponseMs   = 1000
	slowStartupMs       = 3000
	longSessionMinScore = 50
	dropOffMinScore     = 40
	powerUserSessions   = 5
	fastBounceSeconds   = 10
	ghostSessionSeconds = 3
	rageQuitSeconds     = 30
	confusionMaxTouches = 5
	confusionMinScreens = 5
	frictionMinSignal   = 3
	highAPIVolume       = 100
)

func signalOf(c candidate) float64 { return float64(c.signal) }
func crashesOf(c candidate) float64 { return countOrZero(c.session.CrashCount) }
func errorsOf(c candidate) float64 { return countOrZero(c.session.ErrorCount) }
func anrsOf(c candidate) float64 { return countOrZero(c.session.ANRCount) }
func rageTapsOf(c candidate) float64 { return countOrZero(c.session.RageTapCount) }
func deadTapsOf(c candidate) float64 { return countOrZero(c.session.DeadTapCount) }
func apiErrorsOf(c candidate) float64 { return countOrZero(c.session.APIErrorCount) }
func apiCallsOf(c candidate) float64 { return countOrZero(c.session.APITotalCount) }
func apiLatencyOf(c candidate) float64 { return countOrZero(c.session.APIAvgResponseMs) }
func touchesOf(c candidate) float64 { return countOrZero(c.session.TouchCount) }
func startupOf(c candidate) float64 { return countOrZero(c.session.AppStartupTimeMs) }
func interactionOf(c candidate) float64 { return countOrZero(c.session.InteractionScore) }
func explorationOf(c candidate) float64 { return countOrZero(c.session.ExplorationScore) }
func durationOf(c candidate) float64 { return countOrZero(c.session.DurationSeconds) }
func screensOf(c candidate) float64 { return float64(screenCount(c.session)) }
func signalPerMinute(c candidate) float64 {
	minutes := durationOf(c) / 60
	if minutes < 1 {
		minutes = 1
	}
	return signalOf(c) / minutes
}

func atLeast(metric func(candidate) float64, floor float64) func(candidate) bool {
	return func(c candidate) bool {
		return metric(c) >= floor
	}
}

func positive(metric func(candidate) float64) func(candidate) bool {
	return func(c candidate) bool {
		return metric(c) > 0
	}
}

func having(metric func(candidate) float64) func(*selection, candidate) bool {
	return func(_ *selection, c candidate) bool {
		return metric(c) > 0
	}
}

func onPlatform(p Platform) func(*selection, candidate) bool {
	return func(_ *selection, c candidate) bool {
		return sessionPlatform(c.session) == p
	}
}

// recommendationRules is evaluated top to bottom; its order is the priority
// order of the resulting shortlist.
func recommendationRules() []rule {
	return []rule{
		{
			category: "High Friction Journey",
			priority: PriorityCritical,
			reason:   "Highest combined errors, crashes, ANRs and rage taps in the window",
			order:    descending(signalOf),
			accept:   positive(signalOf),
		},
		{
			category: "Recent Crash",
			priority: PriorityCritical,
			reason:   "Most recent session that ended in a crash",
			match:    having(crashesOf),
			order:    mostRecent,
		},
		{
			category: "Recent ANR",
			priority: PriorityCritical,
			reason:   "Most recent session where the app stopped responding",
			match:    having(anrsOf),
			order:    mostRecent,
		},
		{
			category: "API Failure Hotspot",
			priority: PriorityCritical,
			reason:   "Most failed API calls in a single session",
			order:    descending(apiErrorsOf),
			accept:   positive(apiErrorsOf),
		},
		{
			category: "Healthy Engaged Baseline",
			priority: PriorityBaseline,
			reason:   "Highly engaged session with no negative signal, useful as a control",
			match: func(_ *selection, c candidate) bool {
				return c.signal == 0
			},
			order:  descending(interactionOf),
			accept: positive(interactionOf),
		},
		{
			category: "Frequent Returning User",
			priority: PriorityHigh,
			reason:   "Worst session of the user who came back most often",
			choose:   promoteFrequentUser,
		},
		{
			category: "Rage Tap Spike",
			priority: PriorityHigh,
			reason:   "Most rage taps in a single session",
			order:    descending(rageTapsOf),
			accept:   positive(rageTapsOf),
		},
		{
			category: "Slow API Responses",
			priority: PriorityHigh,
			reason:   "Slowest average API response time",
			order:    descending(apiLatencyOf),
			accept:   atLeast(apiLatencyOf, slowAPIResponseMs),
		},
		{
			category: "Long Engaged Session",
			priority: PriorityWatch,
			reason:   "Longest session among highly interactive users",
			match: func(_ *selection, c candidate) bool {
				return interactionOf(c) >= longSessionMinScore
			},
			order:  descending(durationOf),
			accept: positive(durationOf),
		},
		{
			category: "First-Time User",
			priority: PriorityWatch,
			reason:   "Validate the onboarding path of a brand new user",
			match: func(sel *selection, c candidate) bool {
				return sel.userSessions(c) == 1
			},
			order: mostRecent,
		},
		{
			category: "Returning User Sample",
			priority: PriorityWatch,
			reason:   "Latest visit of a returning user",
			match: func(sel *selection, c candidate) bool {
				return sel.userSessions(c) > 1 && sel.isUserLatest(c)
			},
			order: mostRecent,
		},
		{
			category: "Anonymous Visitor",
			priority: PriorityWatch,
			reason:   "Recent visitor who never identified",
			match: func(_ *selection, c candidate) bool {
				return isAnonymous(c.session)
			},
			order: mostRecent,
		},
		{
			category: "Power User",
			priority: PriorityWatch,
			reason:   "Most engaged session from a heavy user",
			match: func(sel *selection, c candidate) bool {
				return sel.userSessions(c) >= powerUserSessions
			},
			order: descending(interactionOf),
		},
		{
			category: "Fast Bounce",
			priority: PriorityWatch,
			reason:   "User left within seconds of opening the app",
			match: func(_ *selection, c candidate) bool {
				return durationOf(c) < fastBounceSeconds
			},
			order: mostRecent,
		},
		{
			category: "iOS Sample",
			priority: PriorityWatch,
			reason:   "Recent iOS session",
			match:    onPlatform(PlatformIOS),
			order:    mostRecent,
		},
		{
			category: "Android Sample",
			priority: PriorityWatch,
			reason:   "Recent Android session",
			match:    onPlatform(PlatformAndroid),
			order:    mostRecent,
		},
		{
			category: "Constrained Network",
			priority: PriorityHigh,
			reason:   "Recent session on a constrained, metered or slow cellular network",
			match: func(_ *selection, c candidate) bool {
				return isSlowNetwork(c.session)
			},
			order: mostRecent,
		},
		{
			category: "Deep Explorer",
			priority: PriorityWatch,
			reason:   "Highest exploration score",
			order:    descending(explorationOf),
			accept:   positive(explorationOf),
		},
		{
			category: "Ghost Session",
			priority: PriorityWatch,
			reason:   "Near-zero duration with no interaction",
			match: func(_ *selection, c candidate) bool {
				return durationOf(c) < ghostSessionSeconds && touchesOf(c) == 0
			},
			order: mostRecent,
		},
		{
			category: "Funnel Drop-Off",
			priority: PriorityHigh,
			reason:   "Highly interactive session that ended in a failure",
			match: func(_ *selection, c candidate) bool {
				return interactionOf(c) >= dropOffMinScore && crashesOf(c)+errorsOf(c) > 0
			},
			order: descending(interactionOf),
		},
		{
			category: "Slow Startup",
			priority: PriorityHigh,
			reason:   "Slowest app startup",
			order:    descending(startupOf),
			accept:   atLeast(startupOf, slowStartupMs),
		},
		{
			category: "Dead Tap Confusion",
			priority: PriorityHigh,
			reason:   "Most taps on non-interactive elements",
			order:    descending(deadTapsOf),
			accept:   positive(deadTapsOf),
		},
		{
			category: "First Session Crash",
			priority: PriorityCritical,
			reason:   "User crashed in their first recorded session",
			match: func(sel *selection, c candidate) bool {
				return crashesOf(c) > 0 && sel.isUserEarliest(c)
			},
			order: mostRecent,
		},
		{
			category: "ANR Freeze",
			priority: PriorityCritical,
			reason:   "Most freezes in a single session",
			order:    descending(anrsOf),
			accept:   positive(anrsOf),
		},
		{
			category: "Navigation Confusion",
			priority: PriorityWatch,
			reason:   "Many screens visited with almost no interaction",
			match: func(_ *selection, c candidate) bool {
				return touchesOf(c) <= confusionMaxTouches && screensOf(c) >= confusionMinScreens
			},
			order: descending(screensOf),
		},
		{
			category: "Friction Cluster",
			priority: PriorityHigh,
			reason:   "Negative signal packed into a short span",
			match: func(_ *selection, c candidate) bool {
				return c.signal >= frictionMinSignal
			},
			order:  descending(signalPerMinute),
			accept: positive(signalPerMinute),
		},
		{
			category: "High API Volume",
			priority: PriorityWatch,
			reason:   "Heaviest API traffic in a single session",
			order:    descending(apiCallsOf),
			accept:   atLeast(apiCallsOf, highAPIVolume),
		},
		{
			category: "Rage Quit",
			priority: PriorityHigh,
			reason:   "Rage taps followed by a quick exit",
			match: func(_ *selection, c candidate) bool {
				return rageTapsOf(c) > 0 && durationOf(c) < rageQuitSeconds
			},
			order: mostRecent,
		},
	}
}
