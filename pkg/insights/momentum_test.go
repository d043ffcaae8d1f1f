package insights_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/insights/pkg/insights"
)

func day(date string, sessions, crashes float64) insights.DailyTrendRow {
	return insights.DailyTrendRow{
		Date:     date,
		Sessions: insights.Count(sessions),
		Crashes:  insights.Count(crashes),
	}
}

var _ = Describe("CompareWindows", func() {
	It("returns nil for no rows", func() {
		Expect(insights.CompareWindows(nil)).To(BeNil())
	})

	It("reports a single day with no prior window", func() {
		cmp := insights.CompareWindows([]insights.DailyTrendRow{day("2024-03-01", 12, 1)})
		Expect(cmp).NotTo(BeNil())
		Expect(cmp.WindowSize).To(Equal(1))
		Expect(cmp.Current.TotalSessions).To(Equal(12.0))
		Expect(cmp.Previous).To(BeNil())
		Expect(cmp.Deltas).To(Equal(insights.MomentumDeltas{}))
	})

	It("weights the crash rate by session volume", func() {
		cmp := insights.CompareWindows([]insights.DailyTrendRow{
			day("2024-03-01", 5, 0),
			day("2024-03-02", 5, 0),
			day("2024-03-03", 10, 1),
			day("2024-03-04", 30, 0),
		})

		Expect(cmp.WindowSize).To(Equal(2))
		Expect(cmp.Current.StartDate).To(Equal("2024-03-03"))
		Expect(cmp.Current.EndDate).To(Equal("2024-03-04"))
		Expect(cmp.Current.CrashRate).To(BeNumerically("~", 2.5, 1e-9))
		Expect(cmp.Previous.CrashRate).To(Equal(0.0))
		Expect(*cmp.Deltas.CrashRatePts).To(BeNumerically("~", 2.5, 1e-9))
		Expect(*cmp.Deltas.SessionsPct).To(BeNumerically("~", 300, 1e-9))
	})

	It("caps the window at fourteen days", func() {
		rows := make([]insights.DailyTrendRow, 40)
		for i := range rows {
			rows[i] = day("d", 1, 0)
		}

		cmp := insights.CompareWindows(rows)
		Expect(cmp.WindowSize).To(Equal(insights.MaxWindowDays))
		Expect(cmp.Current.Days).To(Equal(14))
		Expect(cmp.Previous.Days).To(Equal(14))
	})

	It("counts days without monthly actives as zero retention", func() {
		cmp := insights.CompareWindows([]insights.DailyTrendRow{
			{Date: "2024-03-01", DAU: 5, MAU: 0},
			{Date: "2024-03-02", DAU: 5, MAU: 10},
			{Date: "2024-03-03", DAU: 5, MAU: 0},
			{Date: "2024-03-04", DAU: 5, MAU: 10},
		})
		Expect(cmp.Current.AvgRetention).To(Equal(25.0))
		Expect(cmp.Current.AvgDAU).To(Equal(5.0))
		Expect(*cmp.Deltas.RetentionPts).To(Equal(0.0))
	})

	It("weights the API error rate by call volume", func() {
		cmp := insights.CompareWindows([]insights.DailyTrendRow{
			{Date: "2024-03-01", APIErrorRate: 10, APICalls: 100},
			{Date: "2024-03-02", APIErrorRate: 0, APICalls: 300},
		})
		Expect(cmp.Current.APIErrorRate).To(Equal(0.0))
		Expect(cmp.Previous.APIErrorRate).To(Equal(10.0))

		cmp = insights.CompareWindows([]insights.DailyTrendRow{
			{Date: "2024-03-01"},
			{Date: "2024-03-02"},
			{Date: "2024-03-03", APIErrorRate: 10, APICalls: 100},
			{Date: "2024-03-04", APIErrorRate: 0, APICalls: 300},
		})
		Expect(cmp.Current.APIErrorRate).To(Equal(2.5))
	})

	It("falls back to the plain mean when no calls were recorded", func() {
		cmp := insights.CompareWindows([]insights.DailyTrendRow{
			{Date: "2024-03-01"},
			{Date: "2024-03-02"},
			{Date: "2024-03-03", APIErrorRate: 10},
			{Date: "2024-03-04", APIErrorRate: 0},
		})
		Expect(cmp.Current.APIErrorRate).To(Equal(5.0))
	})

	It("weights session duration by session count", func() {
		cmp := insights.CompareWindows([]insights.DailyTrendRow{
			{Date: "2024-03-01", Sessions: 1, AvgSessionDuration: 100},
			{Date: "2024-03-02", Sessions: 3, AvgSessionDuration: 20},
		})
		Expect(cmp.Current.AvgSessionDuration).To(Equal(20.0))

		cmp = insights.CompareWindows([]insights.DailyTrendRow{
			{Date: "2024-03-01", Sessions: 1, AvgSessionDuration: 100},
			{Date: "2024-03-02", Sessions: 3, AvgSessionDuration: 20},
			{Date: "2024-03-03", Sessions: 1, AvgSessionDuration: 100},
			{Date: "2024-03-04", Sessions: 3, AvgSessionDuration: 20},
		})
		Expect(cmp.Current.AvgSessionDuration).To(Equal(40.0))
	})

	It("leaves percent changes undefined when the prior value is zero", func() {
		cmp := insights.CompareWindows([]insights.DailyTrendRow{
			day("2024-03-01", 0, 0),
			day("2024-03-02", 8, 0),
		})
		Expect(cmp.Previous).NotTo(BeNil())
		Expect(cmp.Deltas.SessionsPct).To(BeNil())
		Expect(cmp.Deltas.DAUPct).To(BeNil())
		Expect(cmp.Deltas.DurationPct).To(BeNil())
		Expect(cmp.Deltas.CrashRatePts).NotTo(BeNil())
	})

	It("is deterministic", func() {
		rows := []insights.DailyTrendRow{day("a", 3, 1), day("b", 4, 0), day("c", 9, 2)}
		Expect(insights.CompareWindows(rows)).To(Equal(insights.CompareWindows(rows)))
	})
})

var _ = Describe("Directions", func() {
	It("reads nil deltas as unknown", func() {
		cmp := insights.CompareWindows([]insights.DailyTrendRow{day("2024-03-01", 1, 0)})
		dirs := cmp.Directions()
		Expect(dirs.Sessions).To(Equal(insights.DirectionUnknown))
		Expect(dirs.CrashRate).To(Equal(insights.DirectionUnknown))
	})

	It("classifies deltas around a small deadband", func() {
		up, down, flat := 3.0, -0.5, 0.005
		Expect(insights.DirectionOf(&up)).To(Equal(insights.DirectionUp))
		Expect(insights.DirectionOf(&down)).To(Equal(insights.DirectionDown))
		Expect(insights.DirectionOf(&flat)).To(Equal(insights.DirectionFlat))
		Expect(insights.DirectionOf(nil)).To(Equal(insights.DirectionUnknown))
	})

	It("tolerates a nil comparison", func() {
		var cmp *insights.MomentumComparison
		Expect(cmp.Directions().Duration).To(Equal(insights.DirectionUnknown))
	})
})
