package core_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikey/scan-insights/internal/core"
)

var testNow = time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC)

func rec(age time.Duration, class core.Classification, scanType core.ScanType, scamType string) core.ScanRecord {
	return core.ScanRecord{
		ID:             fmt.Sprintf("r-%d-%s", age, class),
		CreatedAt:      testNow.Add(-age),
		ScanType:       scanType,
		Classification: class,
		ScamType:       scamType,
	}
}

func days(n int) time.Duration { return time.Duration(n) * 24 * time.Hour }

func newCalculator() *core.Calculator {
	return core.NewCalculator(core.DefaultThresholds())
}

func TestDailyTrends_WindowShape(t *testing.T) {
	calc := newCalculator()

	records := []core.ScanRecord{
		rec(time.Hour, core.ClassificationScam, core.ScanTypeURL, "phishing"),
		rec(days(2), core.ClassificationSafe, core.ScanTypeText, ""),
		rec(days(2)+time.Hour, core.ClassificationSuspicious, core.ScanTypeImage, ""),
		rec(days(45), core.ClassificationScam, core.ScanTypeURL, "phishing"), // outside window
	}

	trends := calc.DailyTrends(records, testNow)
	require.Len(t, trends, 30)

	seen := make(map[string]bool)
	for i, tr := range trends {
		key := tr.Date.Format(time.DateOnly)
		assert.False(t, seen[key], "duplicate date %s", key)
		seen[key] = true
		if i > 0 {
			assert.True(t, tr.Date.After(trends[i-1].Date), "dates not ascending at %d", i)
		}
	}

	today := trends[len(trends)-1]
	assert.Equal(t, 1, today.ScamCount)
	twoDaysAgo := trends[len(trends)-3]
	assert.Equal(t, 1, twoDaysAgo.SafeCount)
	assert.Equal(t, 1, twoDaysAgo.SuspiciousCount)
}

func TestDailyTrends_EmptyHistoryStillFullWindow(t *testing.T) {
	trends := newCalculator().DailyTrends(nil, testNow)
	require.Len(t, trends, 30)
	for _, tr := range trends {
		assert.Zero(t, tr.ScamCount)
		assert.Zero(t, tr.SuspiciousCount)
		assert.Zero(t, tr.SafeCount)
	}
}

func TestScanTypeDistribution_Empty(t *testing.T) {
	dist := newCalculator().ScanTypeDistribution(nil)
	for _, st := range core.ScanTypes {
		assert.Equal(t, core.ScanTypeStat{}, dist[st])
	}
}

func TestScanTypeDistribution_PercentagesIndependent(t *testing.T) {
	records := []core.ScanRecord{
		rec(time.Hour, core.ClassificationSafe, core.ScanTypeImage, ""),
		rec(2*time.Hour, core.ClassificationSafe, core.ScanTypeURL, ""),
		rec(3*time.Hour, core.ClassificationSafe, core.ScanTypeText, ""),
	}

	dist := newCalculator().ScanTypeDistribution(records)
	for _, st := range core.ScanTypes {
		assert.Equal(t, 1, dist[st].Count)
		// round(1/3*100) = 33; the three do not sum to 100
		assert.Equal(t, 33, dist[st].Percentage)
		assert.GreaterOrEqual(t, dist[st].Percentage, 0)
		assert.LessOrEqual(t, dist[st].Percentage, 100)
	}
}

func TestScamTypeBreakdown_NormalizesAndCounts(t *testing.T) {
	records := []core.ScanRecord{
		rec(time.Hour, core.ClassificationScam, core.ScanTypeURL, "Phishing"),
		rec(2*time.Hour, core.ClassificationScam, core.ScanTypeText, "phishing "),
		rec(3*time.Hour, core.ClassificationScam, core.ScanTypeText, "Fake Shop"),
		rec(4*time.Hour, core.ClassificationSuspicious, core.ScanTypeText, ""), // not a scam
		rec(days(40), core.ClassificationScam, core.ScanTypeURL, "Phishing"),   // outside window
	}

	breakdown := newCalculator().ScamTypeBreakdown(records, testNow)
	require.Len(t, breakdown, 2)
	assert.Equal(t, 2, breakdown["phishing"].Count)
	assert.Equal(t, "Phishing", breakdown["phishing"].Label)
	assert.Equal(t, 1, breakdown["fake-shop"].Count)
	assert.Equal(t, "Fake Shop", breakdown["fake-shop"].Label)
}

func TestPeakTimes_EmptyWindow(t *testing.T) {
	peaks := newCalculator().PeakTimes([]core.ScanRecord{
		rec(time.Hour, core.ClassificationSafe, core.ScanTypeText, ""),
	}, testNow)
	assert.Nil(t, peaks.PeakHour)
	assert.Nil(t, peaks.PeakDay)
}

func TestPeakTimes_PicksBusiestBuckets(t *testing.T) {
	// testNow is a Sunday; two scams at 09:00 Sunday, one suspicious at
	// 11:00 Saturday.
	records := []core.ScanRecord{
		{ID: "a", CreatedAt: time.Date(2025, time.June, 15, 9, 10, 0, 0, time.UTC), ScanType: core.ScanTypeURL, Classification: core.ClassificationScam, ScamType: "phishing"},
		{ID: "b", CreatedAt: time.Date(2025, time.June, 15, 9, 40, 0, 0, time.UTC), ScanType: core.ScanTypeURL, Classification: core.ClassificationScam, ScamType: "phishing"},
		{ID: "c", CreatedAt: time.Date(2025, time.June, 14, 11, 0, 0, 0, time.UTC), ScanType: core.ScanTypeText, Classification: core.ClassificationSuspicious},
	}

	peaks := newCalculator().PeakTimes(records, testNow)
	require.NotNil(t, peaks.PeakHour)
	require.NotNil(t, peaks.PeakDay)
	assert.Equal(t, 9, *peaks.PeakHour)
	assert.Equal(t, "Sunday", *peaks.PeakDay)
}

func TestPeakTimes_TiesBreakToEarliest(t *testing.T) {
	// One qualifying record at 14:00 and one at 08:00 on different days:
	// every bucket count is 1, so the earliest hour and weekday win.
	records := []core.ScanRecord{
		{ID: "a", CreatedAt: time.Date(2025, time.June, 13, 14, 0, 0, 0, time.UTC), ScanType: core.ScanTypeURL, Classification: core.ClassificationScam, ScamType: "x"},
		{ID: "b", CreatedAt: time.Date(2025, time.June, 11, 8, 0, 0, 0, time.UTC), ScanType: core.ScanTypeURL, Classification: core.ClassificationSuspicious},
	}

	peaks := newCalculator().PeakTimes(records, testNow)
	require.NotNil(t, peaks.PeakHour)
	require.NotNil(t, peaks.PeakDay)
	assert.Equal(t, 8, *peaks.PeakHour)
	// June 11 2025 is a Wednesday, June 13 a Friday; Wednesday comes
	// first in Sunday..Saturday order.
	assert.Equal(t, "Wednesday", *peaks.PeakDay)
}

func TestRiskLevel_EmptyIsLow(t *testing.T) {
	assert.Equal(t, core.RiskLow, newCalculator().RiskLevel(nil, testNow))
}

func TestRiskLevel_HighScenario(t *testing.T) {
	// 20 records in the last 7 days, 15 of them scams.
	var records []core.ScanRecord
	for i := 0; i < 15; i++ {
		records = append(records, rec(time.Duration(i+1)*time.Hour, core.ClassificationScam, core.ScanTypeURL, "phishing"))
	}
	for i := 0; i < 5; i++ {
		records = append(records, rec(days(i+1), core.ClassificationSafe, core.ScanTypeText, ""))
	}

	assert.Equal(t, core.RiskHigh, newCalculator().RiskLevel(records, testNow))
}

func TestRiskLevel_Thresholds(t *testing.T) {
	build := func(flagged, safe int) []core.ScanRecord {
		var records []core.ScanRecord
		for i := 0; i < flagged; i++ {
			records = append(records, rec(time.Duration(i+1)*time.Minute, core.ClassificationSuspicious, core.ScanTypeText, ""))
		}
		for i := 0; i < safe; i++ {
			records = append(records, rec(time.Duration(flagged+i+1)*time.Minute, core.ClassificationSafe, core.ScanTypeText, ""))
		}
		return records
	}

	calc := newCalculator()
	assert.Equal(t, core.RiskLow, calc.RiskLevel(build(1, 9), testNow))
	assert.Equal(t, core.RiskMedium, calc.RiskLevel(build(2, 8), testNow))
	assert.Equal(t, core.RiskMedium, calc.RiskLevel(build(4, 6), testNow))
	assert.Equal(t, core.RiskHigh, calc.RiskLevel(build(5, 5), testNow))
	assert.Equal(t, core.RiskHigh, calc.RiskLevel(build(10, 0), testNow))
}

// Risk is monotone: raising the flagged proportion never lowers the level.
func TestRiskLevel_Monotone(t *testing.T) {
	calc := newCalculator()
	rank := map[core.RiskLevel]int{core.RiskLow: 0, core.RiskMedium: 1, core.RiskHigh: 2}

	prev := core.RiskLow
	for flagged := 0; flagged <= 10; flagged++ {
		var records []core.ScanRecord
		for i := 0; i < flagged; i++ {
			records = append(records, rec(time.Duration(i+1)*time.Minute, core.ClassificationScam, core.ScanTypeURL, "x"))
		}
		for i := flagged; i < 10; i++ {
			records = append(records, rec(time.Duration(i+1)*time.Minute, core.ClassificationSafe, core.ScanTypeText, ""))
		}
		level := calc.RiskLevel(records, testNow)
		assert.GreaterOrEqual(t, rank[level], rank[prev], "level dropped at flagged=%d", flagged)
		prev = level
	}
}

func TestWeeklyComparison_PercentageChange(t *testing.T) {
	records := []core.ScanRecord{
		// This week: 3 scams.
		rec(days(1), core.ClassificationScam, core.ScanTypeURL, "phishing"),
		rec(days(2), core.ClassificationScam, core.ScanTypeURL, "phishing"),
		rec(days(3), core.ClassificationScam, core.ScanTypeText, "crypto"),
		// Last week: 1 scam, 1 safe.
		rec(days(8), core.ClassificationScam, core.ScanTypeURL, "phishing"),
		rec(days(9), core.ClassificationSafe, core.ScanTypeText, ""),
	}

	cmp := newCalculator().WeeklyComparison(records, testNow)
	assert.Equal(t, core.WeekStats{Total: 3, Scams: 3}, cmp.ThisWeek)
	assert.Equal(t, core.WeekStats{Total: 2, Scams: 1}, cmp.LastWeek)
	assert.Equal(t, 200, cmp.PercentageChanges.Scams)
	assert.Equal(t, 50, cmp.PercentageChanges.Total)
}

func TestWeeklyComparison_ZeroLastWeek(t *testing.T) {
	records := []core.ScanRecord{
		rec(days(1), core.ClassificationScam, core.ScanTypeURL, "phishing"),
	}

	cmp := newCalculator().WeeklyComparison(records, testNow)
	assert.Equal(t, 0, cmp.PercentageChanges.Total)
	assert.Equal(t, 0, cmp.PercentageChanges.Scams)
}

func TestSnapshot_SkipsMalformedRecords(t *testing.T) {
	records := []core.ScanRecord{
		rec(time.Hour, core.ClassificationScam, core.ScanTypeURL, "phishing"),
		{ID: "bad-class", CreatedAt: testNow.Add(-time.Hour), ScanType: core.ScanTypeURL, Classification: "garbage"},
		{ID: "no-time", ScanType: core.ScanTypeText, Classification: core.ClassificationSafe},
	}

	snap := newCalculator().Snapshot(records, testNow)
	assert.Equal(t, 1, snap.TotalScans)
	assert.Equal(t, 1, snap.AllTimeScams)
}

func TestSnapshot_Deterministic(t *testing.T) {
	records := []core.ScanRecord{
		rec(days(3), core.ClassificationScam, core.ScanTypeURL, "Phishing"),
		rec(time.Hour, core.ClassificationSuspicious, core.ScanTypeImage, ""),
		rec(days(10), core.ClassificationSafe, core.ScanTypeText, ""),
	}

	calc := newCalculator()
	first := calc.Snapshot(records, testNow)
	second := calc.Snapshot(records, testNow)
	assert.Equal(t, first, second)
}

func TestSnapshot_InputOrderIrrelevant(t *testing.T) {
	a := rec(days(3), core.ClassificationScam, core.ScanTypeURL, "Phishing")
	b := rec(time.Hour, core.ClassificationSuspicious, core.ScanTypeImage, "")
	c := rec(days(10), core.ClassificationSafe, core.ScanTypeText, "")

	calc := newCalculator()
	forward := calc.Snapshot([]core.ScanRecord{a, b, c}, testNow)
	backward := calc.Snapshot([]core.ScanRecord{c, b, a}, testNow)
	assert.Equal(t, forward, backward)
}
