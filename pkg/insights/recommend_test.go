package insights_test

import (
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/insights/pkg/insights"
)

var base = time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)

func session(id, user string, offset time.Duration) insights.Session {
	return insights.Session{
		ID:              id,
		UserID:          user,
		StartedAt:       insights.At(base.Add(offset)),
		DurationSeconds: 120,
		Platform:        "web",
		TouchCount:      20,
	}
}

func ids(recs []insights.Recommendation) []string {
	out := make([]string, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.Session.ID)
	}
	return out
}

// mixedSessions builds a varied, deterministic population that triggers most rules.
func mixedSessions(n int) []insights.Session {
	sessions := make([]insights.Session, 0, n)
	platforms := []string{"ios", "android", "web"}
	for i := range n {
		s := session(fmt.Sprintf("s-%03d", i), fmt.Sprintf("user-%d", i%7), time.Duration(i)*time.Hour)
		s.Platform = platforms[i%3]
		s.ErrorCount = insights.Count(i % 4)
		s.CrashCount = insights.Count(i % 9 / 8)
		s.ANRCount = insights.Count(i % 11 / 10)
		s.RageTapCount = insights.Count(i % 5 / 3)
		s.DeadTapCount = insights.Count(i % 6)
		s.APIErrorCount = insights.Count(i % 13)
		s.APITotalCount = insights.Count(i * 3)
		s.APIAvgResponseMs = insights.Count(i * 20)
		s.AppStartupTimeMs = insights.Count(i * 50)
		s.InteractionScore = insights.Count(i % 100)
		s.ExplorationScore = insights.Count(i % 17)
		s.DurationSeconds = insights.Count(i % 40)
		s.TouchCount = insights.Count(i % 8)
		if i%10 == 0 {
			s.UserID = ""
			s.AnonymousID = fmt.Sprintf("anon-%d", i)
		}
		if i%12 == 0 {
			s.IsConstrained = true
		}
		sessions = append(sessions, s)
	}
	return sessions
}

var _ = Describe("Select", func() {
	It("returns an empty, non-nil list for no sessions", func() {
		recs := insights.Select(nil)
		Expect(recs).NotTo(BeNil())
		Expect(recs).To(BeEmpty())
	})

	It("is deterministic", func() {
		sessions := mixedSessions(150)
		Expect(insights.Select(sessions)).To(Equal(insights.Select(sessions)))
	})

	It("never recommends the same session twice", func() {
		recs := insights.Select(mixedSessions(200))
		Expect(recs).NotTo(BeEmpty())

		seen := map[string]bool{}
		for _, id := range ids(recs) {
			Expect(seen).NotTo(HaveKey(id))
			seen[id] = true
		}
	})

	It("caps the shortlist at 24 entries", func() {
		Expect(len(insights.Select(mixedSessions(300)))).To(BeNumerically("<=", insights.DefaultRecommendationLimit))
	})

	It("honors a custom limit", func() {
		recs := insights.NewSelector(insights.WithLimit(3)).Select(mixedSessions(50))
		Expect(recs).To(HaveLen(3))
	})

	It("lets the highest friction session lead and the frequent returning user follow", func() {
		a := session("a", "u1", 0)
		a.ErrorCount = 3
		b := session("b", "u1", time.Hour)
		c := session("c", "u2", 2*time.Hour)
		c.ErrorCount = 5

		recs := insights.Select([]insights.Session{a, b, c})
		Expect(len(recs)).To(BeNumerically(">=", 2))

		Expect(recs[0].Session.ID).To(Equal("c"))
		Expect(recs[0].Category).To(Equal("High Friction Journey"))
		Expect(recs[0].Priority).To(Equal(insights.PriorityCritical))

		Expect(recs[1].Session.ID).To(Equal("a"))
		Expect(recs[1].Category).To(Equal("Frequent Returning User"))
		Expect(recs[1].Priority).To(Equal(insights.PriorityHigh))
	})

	It("picks the most recent crash once the friction leader is taken", func() {
		worst := session("worst", "u1", 0)
		worst.ErrorCount = 10
		older := session("older-crash", "u2", time.Hour)
		older.CrashCount = 1
		newer := session("newer-crash", "u3", 2*time.Hour)
		newer.CrashCount = 1

		recs := insights.Select([]insights.Session{worst, older, newer})
		Expect(recs[0].Session.ID).To(Equal("worst"))
		Expect(recs[1].Session.ID).To(Equal("newer-crash"))
		Expect(recs[1].Category).To(Equal("Recent Crash"))
	})

	It("skips a rule whose best candidate misses the threshold", func() {
		slow := session("slow", "u1", 0)
		slow.APIAvgResponseMs = 900

		recs := insights.Select([]insights.Session{slow})
		for _, rec := range recs {
			Expect(rec.Category).NotTo(Equal("Slow API Responses"))
		}
	})

	It("only draws from sessions with a watchable replay", func() {
		expired := session("expired", "u1", 0)
		expired.ErrorCount = 50
		expired.IsReplayExpired = true
		demoted := session("demoted", "u2", time.Hour)
		demoted.CrashCount = 4
		demoted.ReplayPromoted = new(bool)
		kept := session("kept", "u3", 2*time.Hour)

		recs := insights.Select([]insights.Session{expired, demoted, kept})
		Expect(ids(recs)).To(ConsistOf("kept"))
	})

	It("falls back to the full input when no replay is watchable", func() {
		sessions := mixedSessions(10)
		for i := range sessions {
			sessions[i].IsReplayExpired = true
		}

		recs := insights.Select(sessions)
		Expect(recs).NotTo(BeEmpty())
	})

	It("labels leftover sessions by whether they still carry signal", func() {
		sessions := []insights.Session{}
		for i := range 3 {
			s := session(fmt.Sprintf("s%d", i), "", time.Duration(i)*time.Minute)
			s.DeviceID = fmt.Sprintf("device-%d", i)
			sessions = append(sessions, s)
		}

		recs := insights.NewSelector(insights.WithRemainderLimit(8)).Select(sessions)
		Expect(recs).To(HaveLen(3))
		for _, rec := range recs {
			Expect(rec.Category).NotTo(Equal(insights.CategoryAdditionalRisk))
		}
	})

	It("never recommends sessions without ids", func() {
		first := session("", "u1", 0)
		first.ErrorCount = 2
		second := session("  ", "u2", time.Hour)
		second.CrashCount = 1
		third := session("s3", "u3", 2*time.Hour)
		third.CrashCount = 1

		recs := insights.Select([]insights.Session{first, second, third})
		Expect(ids(recs)).To(Equal([]string{"s3"}))
	})

	It("returns nothing when no session has an id", func() {
		first := session("", "u1", 0)
		first.ErrorCount = 2

		Expect(insights.Select([]insights.Session{first})).To(BeEmpty())
	})
})
