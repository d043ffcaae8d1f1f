package insights

import (
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var ruleClock = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

// quietSession is an identified session that no threshold rule matches on its own.
func quietSession(id, user string, hoursAgo int, tweak func(*Session)) Session {
	s := Session{
		ID:              id,
		UserID:          user,
		StartedAt:       At(ruleClock.Add(-time.Duration(hoursAgo) * time.Hour)),
		DurationSeconds: 120,
		Platform:        "web",
		TouchCount:      20,
	}
	if tweak != nil {
		tweak(&s)
	}
	return s
}

func screens(n int) []string {
	out := make([]string, n)
	for i := range n {
		out[i] = fmt.Sprintf("Screen%d", i+1)
	}
	return out
}

func ruleFor(category string) rule {
	for _, r := range recommendationRules() {
		if r.category == category {
			return r
		}
	}
	Fail("no rule for " + category)
	return rule{}
}

// applyOne runs a single rule against a fresh pool.
func applyOne(category string, sessions []Session) []Recommendation {
	sel := newSelection(sessions)
	sel.apply(ruleFor(category))
	return sel.out
}

var _ = Describe("recommendation rules", func() {
	It("runs in a fixed order", func() {
		categories := []string{}
		for _, r := range recommendationRules() {
			categories = append(categories, r.category)
		}
		Expect(categories).To(Equal([]string{
			"High Friction Journey", "Recent Crash", "Recent ANR", "API Failure Hotspot",
			"Healthy Engaged Baseline", "Frequent Returning User", "Rage Tap Spike",
			"Slow API Responses", "Long Engaged Session", "First-Time User",
			"Returning User Sample", "Anonymous Visitor", "Power User", "Fast Bounce",
			"iOS Sample", "Android Sample", "Constrained Network", "Deep Explorer",
			"Ghost Session", "Funnel Drop-Off", "Slow Startup", "Dead Tap Confusion",
			"First Session Crash", "ANR Freeze", "Navigation Confusion", "Friction Cluster",
			"High API Volume", "Rage Quit",
		}))
	})

	DescribeTable("picks the expected session",
		func(category string, priority Priority, sessions []Session, want string) {
			out := applyOne(category, sessions)
			Expect(out).To(HaveLen(1))
			Expect(out[0].Session.ID).To(Equal(want))
			Expect(out[0].Category).To(Equal(category))
			Expect(out[0].Priority).To(Equal(priority))
			Expect(out[0].Reason).NotTo(BeEmpty())
		},
		Entry("High Friction Journey takes the highest signal", "High Friction Journey", PriorityCritical, []Session{
			quietSession("a", "u1", 0, func(s *Session) { s.ErrorCount = 1 }),
			quietSession("b", "u2", 1, func(s *Session) { s.ErrorCount = 2; s.CrashCount = 1 }),
		}, "b"),
		Entry("Recent Crash takes the newest crash", "Recent Crash", PriorityCritical, []Session{
			quietSession("a", "u1", 5, func(s *Session) { s.CrashCount = 3 }),
			quietSession("b", "u2", 1, func(s *Session) { s.CrashCount = 1 }),
			quietSession("c", "u3", 0, nil),
		}, "b"),
		Entry("Recent ANR takes the newest freeze", "Recent ANR", PriorityCritical, []Session{
			quietSession("a", "u1", 3, func(s *Session) { s.ANRCount = 4 }),
			quietSession("b", "u2", 1, func(s *Session) { s.ANRCount = 1 }),
			quietSession("c", "u3", 0, nil),
		}, "b"),
		Entry("API Failure Hotspot takes the most API errors", "API Failure Hotspot", PriorityCritical, []Session{
			quietSession("a", "u1", 0, func(s *Session) { s.APIErrorCount = 2 }),
			quietSession("b", "u2", 1, func(s *Session) { s.APIErrorCount = 7 }),
		}, "b"),
		Entry("Healthy Engaged Baseline skips sessions with signal", "Healthy Engaged Baseline", PriorityBaseline, []Session{
			quietSession("a", "u1", 0, func(s *Session) { s.InteractionScore = 90; s.ErrorCount = 1 }),
			quietSession("b", "u2", 1, func(s *Session) { s.InteractionScore = 60 }),
			quietSession("c", "u3", 2, func(s *Session) { s.InteractionScore = 30 }),
		}, "b"),
		Entry("Frequent Returning User takes the worst session of the most frequent user", "Frequent Returning User", PriorityHigh, []Session{
			quietSession("u1-calm", "u1", 0, nil),
			quietSession("u1-rough", "u1", 1, func(s *Session) { s.ErrorCount = 3 }),
			quietSession("u2-only", "u2", 2, func(s *Session) { s.ErrorCount = 5 }),
		}, "u1-rough"),
		Entry("Rage Tap Spike takes the most rage taps", "Rage Tap Spike", PriorityHigh, []Session{
			quietSession("a", "u1", 0, func(s *Session) { s.RageTapCount = 2 }),
			quietSession("b", "u2", 1, func(s *Session) { s.RageTapCount = 6 }),
		}, "b"),
		Entry("Slow API Responses takes the slowest average", "Slow API Responses", PriorityHigh, []Session{
			quietSession("a", "u1", 0, func(s *Session) { s.APIAvgResponseMs = 800 }),
			quietSession("b", "u2", 1, func(s *Session) { s.APIAvgResponseMs = 1500 }),
		}, "b"),
		Entry("Long Engaged Session takes the longest engaged session", "Long Engaged Session", PriorityWatch, []Session{
			quietSession("a", "u1", 0, func(s *Session) { s.InteractionScore = 80; s.DurationSeconds = 100 }),
			quietSession("b", "u2", 1, func(s *Session) { s.InteractionScore = 55; s.DurationSeconds = 600 }),
			quietSession("c", "u3", 2, func(s *Session) { s.InteractionScore = 10; s.DurationSeconds = 9000 }),
		}, "b"),
		Entry("First-Time User takes a single-session user", "First-Time User", PriorityWatch, []Session{
			quietSession("u1-a", "u1", 0, nil),
			quietSession("u1-b", "u1", 1, nil),
			quietSession("u2-a", "u2", 5, nil),
		}, "u2-a"),
		Entry("Returning User Sample takes the latest visit of a returning user", "Returning User Sample", PriorityWatch, []Session{
			quietSession("u1-old", "u1", 5, nil),
			quietSession("u1-new", "u1", 2, nil),
			quietSession("u2-only", "u2", 0, nil),
		}, "u1-new"),
		Entry("Anonymous Visitor takes a session without a user id", "Anonymous Visitor", PriorityWatch, []Session{
			quietSession("a", "u1", 0, nil),
			quietSession("b", "", 2, func(s *Session) { s.AnonymousID = "anon-1" }),
		}, "b"),
		Entry("Anonymous Visitor treats a whitespace user id as missing", "Anonymous Visitor", PriorityWatch, []Session{
			quietSession("a", "u1", 0, nil),
			quietSession("b", "  ", 2, func(s *Session) { s.DeviceID = "device-9" }),
		}, "b"),
		Entry("Power User takes the most engaged session of a heavy user", "Power User", PriorityWatch, []Session{
			quietSession("p1", "u1", 1, func(s *Session) { s.InteractionScore = 10 }),
			quietSession("p2", "u1", 2, func(s *Session) { s.InteractionScore = 20 }),
			quietSession("p3", "u1", 3, func(s *Session) { s.InteractionScore = 70 }),
			quietSession("p4", "u1", 4, func(s *Session) { s.InteractionScore = 30 }),
			quietSession("p5", "u1", 5, func(s *Session) { s.InteractionScore = 40 }),
			quietSession("solo", "u2", 0, func(s *Session) { s.InteractionScore = 99 }),
		}, "p3"),
		Entry("Fast Bounce takes a session under ten seconds", "Fast Bounce", PriorityWatch, []Session{
			quietSession("a", "u1", 0, func(s *Session) { s.DurationSeconds = 30 }),
			quietSession("b", "u2", 2, func(s *Session) { s.DurationSeconds = 4 }),
		}, "b"),
		Entry("iOS Sample takes the newest iOS session", "iOS Sample", PriorityWatch, []Session{
			quietSession("a", "u1", 0, func(s *Session) { s.Platform = "android" }),
			quietSession("b", "u2", 1, func(s *Session) { s.Platform = "iPhone" }),
			quietSession("c", "u3", 3, func(s *Session) { s.Platform = "ios" }),
		}, "b"),
		Entry("Android Sample takes the newest Android session", "Android Sample", PriorityWatch, []Session{
			quietSession("a", "u1", 0, func(s *Session) { s.Platform = "ios" }),
			quietSession("b", "u2", 1, func(s *Session) { s.Platform = "Android" }),
			quietSession("c", "u3", 3, func(s *Session) { s.Platform = "android" }),
		}, "b"),
		Entry("Constrained Network takes a 3g session", "Constrained Network", PriorityHigh, []Session{
			quietSession("a", "u1", 0, func(s *Session) { s.CellularGeneration = "4g" }),
			quietSession("b", "u2", 2, func(s *Session) { s.CellularGeneration = "3G" }),
		}, "b"),
		Entry("Constrained Network takes a 2g session", "Constrained Network", PriorityHigh, []Session{
			quietSession("a", "u1", 0, func(s *Session) { s.CellularGeneration = "5g" }),
			quietSession("b", "u2", 2, func(s *Session) { s.CellularGeneration = "2g" }),
		}, "b"),
		Entry("Constrained Network takes a low data mode session", "Constrained Network", PriorityHigh, []Session{
			quietSession("a", "u1", 0, nil),
			quietSession("b", "u2", 2, func(s *Session) { s.IsConstrained = true }),
		}, "b"),
		Entry("Deep Explorer takes the highest exploration score", "Deep Explorer", PriorityWatch, []Session{
			quietSession("a", "u1", 0, func(s *Session) { s.ExplorationScore = 3 }),
			quietSession("b", "u2", 1, func(s *Session) { s.ExplorationScore = 8 }),
		}, "b"),
		Entry("Ghost Session needs a near-zero duration and no touches", "Ghost Session", PriorityWatch, []Session{
			quietSession("a", "u1", 0, func(s *Session) { s.DurationSeconds = 2; s.TouchCount = 3 }),
			quietSession("b", "u2", 1, func(s *Session) { s.DurationSeconds = 1; s.TouchCount = 0 }),
			quietSession("c", "u3", 2, func(s *Session) { s.DurationSeconds = 5; s.TouchCount = 0 }),
		}, "b"),
		Entry("Funnel Drop-Off takes the most engaged failing session", "Funnel Drop-Off", PriorityHigh, []Session{
			quietSession("a", "u1", 0, func(s *Session) { s.InteractionScore = 45; s.ErrorCount = 1 }),
			quietSession("b", "u2", 1, func(s *Session) { s.InteractionScore = 70; s.CrashCount = 1 }),
			quietSession("c", "u3", 2, func(s *Session) { s.InteractionScore = 90 }),
		}, "b"),
		Entry("Slow Startup takes the slowest startup", "Slow Startup", PriorityHigh, []Session{
			quietSession("a", "u1", 0, func(s *Session) { s.AppStartupTimeMs = 2500 }),
			quietSession("b", "u2", 1, func(s *Session) { s.AppStartupTimeMs = 4000 }),
		}, "b"),
		Entry("Dead Tap Confusion takes the most dead taps", "Dead Tap Confusion", PriorityHigh, []Session{
			quietSession("a", "u1", 0, func(s *Session) { s.DeadTapCount = 1 }),
			quietSession("b", "u2", 1, func(s *Session) { s.DeadTapCount = 4 }),
		}, "b"),
		Entry("First Session Crash takes a crash in a user's earliest session", "First Session Crash", PriorityCritical, []Session{
			quietSession("u1-first", "u1", 10, func(s *Session) { s.CrashCount = 1 }),
			quietSession("u1-later", "u1", 1, func(s *Session) { s.CrashCount = 1 }),
			quietSession("u2-first", "u2", 8, nil),
			quietSession("u2-later", "u2", 0, func(s *Session) { s.CrashCount = 2 }),
		}, "u1-first"),
		Entry("ANR Freeze takes the most freezes", "ANR Freeze", PriorityCritical, []Session{
			quietSession("a", "u1", 0, func(s *Session) { s.ANRCount = 1 }),
			quietSession("b", "u2", 1, func(s *Session) { s.ANRCount = 3 }),
		}, "b"),
		Entry("Navigation Confusion takes many screens with few touches", "Navigation Confusion", PriorityWatch, []Session{
			quietSession("a", "u1", 0, func(s *Session) { s.TouchCount = 2; s.ScreensVisited = screens(6) }),
			quietSession("b", "u2", 1, func(s *Session) { s.TouchCount = 5; s.ScreensVisited = screens(9) }),
			quietSession("c", "u3", 2, func(s *Session) { s.TouchCount = 20; s.ScreensVisited = screens(12) }),
		}, "b"),
		Entry("Friction Cluster takes the densest signal per minute", "Friction Cluster", PriorityHigh, []Session{
			quietSession("a", "u1", 0, func(s *Session) { s.ErrorCount = 3; s.DurationSeconds = 600 }),
			quietSession("b", "u2", 1, func(s *Session) { s.ErrorCount = 4; s.DurationSeconds = 60 }),
			quietSession("c", "u3", 2, func(s *Session) { s.ErrorCount = 10; s.DurationSeconds = 6000 }),
			quietSession("d", "u4", 3, func(s *Session) { s.ErrorCount = 2; s.DurationSeconds = 1 }),
		}, "b"),
		Entry("High API Volume takes the heaviest traffic", "High API Volume", PriorityWatch, []Session{
			quietSession("a", "u1", 0, func(s *Session) { s.APITotalCount = 80 }),
			quietSession("b", "u2", 1, func(s *Session) { s.APITotalCount = 150 }),
		}, "b"),
		Entry("Rage Quit takes the newest short session with rage taps", "Rage Quit", PriorityHigh, []Session{
			quietSession("a", "u1", 0, func(s *Session) { s.RageTapCount = 2; s.DurationSeconds = 45 }),
			quietSession("b", "u2", 3, func(s *Session) { s.RageTapCount = 1; s.DurationSeconds = 12 }),
			quietSession("c", "u3", 1, func(s *Session) { s.RageTapCount = 3; s.DurationSeconds = 20 }),
		}, "c"),
	)

	DescribeTable("picks nothing below the threshold",
		func(category string, sessions []Session) {
			Expect(applyOne(category, sessions)).To(BeEmpty())
		},
		Entry("API latency just under a second", "Slow API Responses", []Session{
			quietSession("a", "u1", 0, func(s *Session) { s.APIAvgResponseMs = 999 }),
		}),
		Entry("startup just under three seconds", "Slow Startup", []Session{
			quietSession("a", "u1", 0, func(s *Session) { s.AppStartupTimeMs = 2999 }),
		}),
		Entry("API volume just under a hundred", "High API Volume", []Session{
			quietSession("a", "u1", 0, func(s *Session) { s.APITotalCount = 99 }),
		}),
		Entry("a ghost at exactly three seconds", "Ghost Session", []Session{
			quietSession("a", "u1", 0, func(s *Session) { s.DurationSeconds = 3; s.TouchCount = 0 }),
		}),
		Entry("four screens with no touches", "Navigation Confusion", []Session{
			quietSession("a", "u1", 0, func(s *Session) { s.TouchCount = 0; s.ScreensVisited = screens(4) }),
		}),
		Entry("blank screen names", "Navigation Confusion", []Session{
			quietSession("a", "u1", 0, func(s *Session) { s.TouchCount = 0; s.ScreensVisited = []string{"Home", " ", "", "Cart", "Pay"} }),
		}),
		Entry("a user with four sessions", "Power User", []Session{
			quietSession("a", "u1", 0, nil), quietSession("b", "u1", 1, nil), quietSession("c", "u1", 2, nil), quietSession("d", "u1", 3, nil),
		}),
		Entry("a single visit per user", "Returning User Sample", []Session{
			quietSession("a", "u1", 0, nil), quietSession("b", "u2", 1, nil),
		}),
		Entry("a crash after the first session", "First Session Crash", []Session{
			quietSession("first", "u1", 5, nil),
			quietSession("later", "u1", 1, func(s *Session) { s.CrashCount = 1 }),
		}),
		Entry("fast 4g", "Constrained Network", []Session{
			quietSession("a", "u1", 0, func(s *Session) { s.CellularGeneration = "4g" }),
			quietSession("b", "u2", 1, func(s *Session) { s.CellularGeneration = "lte" }),
		}),
		Entry("signal below three", "Friction Cluster", []Session{
			quietSession("a", "u1", 0, func(s *Session) { s.ErrorCount = 2; s.DurationSeconds = 5 }),
		}),
		Entry("rage taps at exactly thirty seconds", "Rage Quit", []Session{
			quietSession("a", "u1", 0, func(s *Session) { s.RageTapCount = 2; s.DurationSeconds = 30 }),
		}),
		Entry("no signal anywhere", "High Friction Journey", []Session{
			quietSession("a", "u1", 0, nil),
		}),
		Entry("no engagement", "Healthy Engaged Baseline", []Session{
			quietSession("a", "u1", 0, nil),
		}),
		Entry("every user seen once", "Frequent Returning User", []Session{
			quietSession("a", "u1", 0, nil), quietSession("b", "u2", 1, nil),
		}),
	)

	It("skips sessions already taken by an earlier rule", func() {
		sel := newSelection([]Session{
			quietSession("a", "u1", 0, func(s *Session) { s.CrashCount = 1 }),
			quietSession("b", "u2", 1, func(s *Session) { s.CrashCount = 1 }),
		})
		sel.apply(ruleFor("Recent Crash"))
		sel.apply(ruleFor("Recent Crash"))
		sel.apply(ruleFor("Recent Crash"))

		Expect(sel.out).To(HaveLen(2))
		Expect(sel.out[0].Session.ID).To(Equal("a"))
		Expect(sel.out[1].Session.ID).To(Equal("b"))
	})
})

var _ = Describe("remainder fill", func() {
	var sessions []Session

	BeforeEach(func() {
		sessions = []Session{
			quietSession("quiet-old", "u1", 6, func(s *Session) { s.InteractionScore = 50 }),
			quietSession("risky-low", "u2", 5, func(s *Session) { s.ErrorCount = 2; s.InteractionScore = 10 }),
			quietSession("quiet-top", "u3", 4, func(s *Session) { s.InteractionScore = 70 }),
			quietSession("risky-high", "u4", 7, func(s *Session) { s.CrashCount = 5 }),
			quietSession("quiet-new", "u5", 1, func(s *Session) { s.InteractionScore = 50 }),
			quietSession("risky-mid", "u6", 8, func(s *Session) { s.RageTapCount = 2; s.InteractionScore = 40 }),
		}
	})

	It("orders by signal, then interaction, then recency", func() {
		sel := newSelection(sessions)
		sel.fillRemainder(DefaultRemainderLimit)

		got := []string{}
		for _, rec := range sel.out {
			got = append(got, rec.Session.ID)
		}
		Expect(got).To(Equal([]string{"risky-high", "risky-mid", "risky-low", "quiet-top", "quiet-new", "quiet-old"}))
	})

	It("labels sessions that still carry signal as additional risk", func() {
		sel := newSelection(sessions)
		sel.fillRemainder(DefaultRemainderLimit)

		for _, rec := range sel.out[:3] {
			Expect(rec.Category).To(Equal(CategoryAdditionalRisk))
			Expect(rec.Priority).To(Equal(PriorityHigh))
			Expect(rec.Reason).To(Equal(reasonAdditionalRisk))
		}
		for _, rec := range sel.out[3:] {
			Expect(rec.Category).To(Equal(CategoryAdditionalSample))
			Expect(rec.Priority).To(Equal(PriorityWatch))
			Expect(rec.Reason).To(Equal(reasonAdditionalSample))
		}
	})

	It("stops at the limit and skips used sessions", func() {
		sel := newSelection(sessions)
		sel.used["risky-high"] = true
		sel.fillRemainder(2)

		Expect(sel.out).To(HaveLen(2))
		Expect(sel.out[0].Session.ID).To(Equal("risky-mid"))
		Expect(sel.out[1].Session.ID).To(Equal("risky-low"))
	})
})
