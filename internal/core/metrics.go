package core

import (
	"math"
	"sort"
	"time"

	"github.com/mikey/scan-insights/internal/utils"
)

// Thresholds holds the tunable policy knobs for metrics and alerting.
// The values are policy choices, not laws; they come from configuration.
type Thresholds struct {
	// TrendWindowDays is the trailing window for breakdown, trends,
	// peak times and risk level
	TrendWindowDays int
	// HighRiskRatio is the scam+suspicious proportion at or above which
	// the risk level is high
	HighRiskRatio float64
	// MediumRiskRatio is the proportion at or above which the risk
	// level is at least medium
	MediumRiskRatio float64
	// SpikePercent is the week-over-week scam increase (in percent)
	// above which a spike alert fires
	SpikePercent int
	// WeeklyActivityLimit is the scans-per-week count above which a
	// high-activity alert fires
	WeeklyActivityLimit int
}

// DefaultThresholds returns the standard policy values
func DefaultThresholds() Thresholds {
	return Thresholds{
		TrendWindowDays:     30,
		HighRiskRatio:       0.5,
		MediumRiskRatio:     0.2,
		SpikePercent:        30,
		WeeklyActivityLimit: 10,
	}
}

// Calculator derives aggregate metrics from a scan history. All methods
// are pure: given the same records and the same now, they return the
// same result, with no side effects. Input order does not matter and
// malformed records (unknown classification or zero timestamp) are
// skipped rather than aborting the computation.
type Calculator struct {
	thresholds Thresholds
}

// NewCalculator creates a calculator with the given policy thresholds
func NewCalculator(thresholds Thresholds) *Calculator {
	if thresholds.TrendWindowDays <= 0 {
		thresholds.TrendWindowDays = DefaultThresholds().TrendWindowDays
	}
	return &Calculator{thresholds: thresholds}
}

// Thresholds returns the policy values the calculator was built with
func (c *Calculator) Thresholds() Thresholds {
	return c.thresholds
}

// Snapshot computes the full metrics snapshot for a history at a given
// reference time
func (c *Calculator) Snapshot(records []ScanRecord, now time.Time) MetricsSnapshot {
	valid := wellFormed(records)
	sort.SliceStable(valid, func(i, j int) bool {
		return valid[i].CreatedAt.Before(valid[j].CreatedAt)
	})

	allTimeScams := 0
	for _, r := range valid {
		if r.Classification == ClassificationScam {
			allTimeScams++
		}
	}

	return MetricsSnapshot{
		GeneratedAt:          now,
		TotalScans:           len(valid),
		AllTimeScams:         allTimeScams,
		ScamTypeBreakdown:    c.ScamTypeBreakdown(valid, now),
		DailyTrends:          c.DailyTrends(valid, now),
		ScanTypeDistribution: c.ScanTypeDistribution(valid),
		PeakTimes:            c.PeakTimes(valid, now),
		RiskLevel:            c.RiskLevel(valid, now),
		WeeklyComparison:     c.WeeklyComparison(valid, now),
	}
}

// ScamTypeBreakdown counts scam records per normalized scam type over
// the trailing window. The map is keyed by the normalized label; the
// first trimmed original spelling is kept for display.
func (c *Calculator) ScamTypeBreakdown(records []ScanRecord, now time.Time) map[string]ScamTypeCount {
	breakdown := make(map[string]ScamTypeCount)
	start := now.AddDate(0, 0, -c.thresholds.TrendWindowDays)

	for _, r := range wellFormed(records) {
		if r.Classification != ClassificationScam {
			continue
		}
		if !inWindow(r.CreatedAt, start, now) {
			continue
		}
		key := utils.NormalizeScamType(r.ScamType)
		if key == "" {
			continue
		}
		entry, ok := breakdown[key]
		if !ok {
			entry.Label = utils.DisplayScamType(r.ScamType)
		}
		entry.Count++
		breakdown[key] = entry
	}

	return breakdown
}

// DailyTrends returns exactly TrendWindowDays entries, one per calendar
// day ending today inclusive, ascending by date. Days with no activity
// appear with zero counts.
func (c *Calculator) DailyTrends(records []ScanRecord, now time.Time) []DailyTrend {
	days := c.thresholds.TrendWindowDays
	today := startOfDay(now)

	trends := make([]DailyTrend, days)
	index := make(map[string]int, days)
	for i := range trends {
		trends[i].Date = today.AddDate(0, 0, i-days+1)
		index[trends[i].Date.Format(time.DateOnly)] = i
	}

	for _, r := range wellFormed(records) {
		day := r.CreatedAt.In(now.Location()).Format(time.DateOnly)
		idx, ok := index[day]
		if !ok {
			continue
		}
		switch r.Classification {
		case ClassificationScam:
			trends[idx].ScamCount++
		case ClassificationSuspicious:
			trends[idx].SuspiciousCount++
		case ClassificationSafe:
			trends[idx].SafeCount++
		}
	}

	return trends
}

// ScanTypeDistribution counts records by scan type over everything it is
// given; windowing is the caller's choice. Each percentage is rounded
// independently and all are zero when the input is empty.
func (c *Calculator) ScanTypeDistribution(records []ScanRecord) map[ScanType]ScanTypeStat {
	dist := make(map[ScanType]ScanTypeStat, len(ScanTypes))
	total := 0

	counts := make(map[ScanType]int, len(ScanTypes))
	for _, r := range wellFormed(records) {
		counts[r.ScanType]++
		total++
	}

	for _, st := range ScanTypes {
		stat := ScanTypeStat{Count: counts[st]}
		if total > 0 {
			stat.Percentage = int(math.Round(float64(stat.Count) / float64(total) * 100))
		}
		dist[st] = stat
	}

	return dist
}

// PeakTimes buckets scam and suspicious records in the trailing window
// by hour of day and by weekday, returning the busiest of each. Ties go
// to the earliest hour and the earliest weekday in Sunday..Saturday
// order. Both fields are nil when no record qualifies.
func (c *Calculator) PeakTimes(records []ScanRecord, now time.Time) PeakTimes {
	var hourCounts [24]int
	var dayCounts [7]int
	start := now.AddDate(0, 0, -c.thresholds.TrendWindowDays)
	qualifying := 0

	for _, r := range wellFormed(records) {
		if r.Classification != ClassificationScam && r.Classification != ClassificationSuspicious {
			continue
		}
		if !inWindow(r.CreatedAt, start, now) {
			continue
		}
		local := r.CreatedAt.In(now.Location())
		hourCounts[local.Hour()]++
		dayCounts[int(local.Weekday())]++
		qualifying++
	}

	if qualifying == 0 {
		return PeakTimes{}
	}

	peakHour := 0
	for h := 1; h < len(hourCounts); h++ {
		if hourCounts[h] > hourCounts[peakHour] {
			peakHour = h
		}
	}
	peakDay := 0
	for d := 1; d < len(dayCounts); d++ {
		if dayCounts[d] > dayCounts[peakDay] {
			peakDay = d
		}
	}

	dayName := time.Weekday(peakDay).String()
	return PeakTimes{PeakHour: &peakHour, PeakDay: &dayName}
}

// RiskLevel classifies the scam+suspicious proportion of the trailing
// window: at or above HighRiskRatio is high, at or above MediumRiskRatio
// is medium, otherwise low. An empty window is low.
func (c *Calculator) RiskLevel(records []ScanRecord, now time.Time) RiskLevel {
	start := now.AddDate(0, 0, -c.thresholds.TrendWindowDays)
	total := 0
	flagged := 0

	for _, r := range wellFormed(records) {
		if !inWindow(r.CreatedAt, start, now) {
			continue
		}
		total++
		if r.Classification == ClassificationScam || r.Classification == ClassificationSuspicious {
			flagged++
		}
	}

	if total == 0 {
		return RiskLow
	}

	ratio := float64(flagged) / float64(total)
	switch {
	case ratio >= c.thresholds.HighRiskRatio:
		return RiskHigh
	case ratio >= c.thresholds.MediumRiskRatio:
		return RiskMedium
	default:
		return RiskLow
	}
}

// WeeklyComparison splits the trailing 14 days into this week and last
// week and reports totals, scam counts and integer percentage changes.
// A change against an empty last week is reported as 0 to avoid
// division by zero.
func (c *Calculator) WeeklyComparison(records []ScanRecord, now time.Time) WeeklyComparison {
	weekAgo := now.AddDate(0, 0, -7)
	twoWeeksAgo := now.AddDate(0, 0, -14)

	var cmp WeeklyComparison
	for _, r := range wellFormed(records) {
		switch {
		case inWindow(r.CreatedAt, weekAgo, now):
			cmp.ThisWeek.Total++
			if r.Classification == ClassificationScam {
				cmp.ThisWeek.Scams++
			}
		case inWindow(r.CreatedAt, twoWeeksAgo, weekAgo):
			cmp.LastWeek.Total++
			if r.Classification == ClassificationScam {
				cmp.LastWeek.Scams++
			}
		}
	}

	cmp.PercentageChanges.Total = percentageChange(cmp.ThisWeek.Total, cmp.LastWeek.Total)
	cmp.PercentageChanges.Scams = percentageChange(cmp.ThisWeek.Scams, cmp.LastWeek.Scams)
	return cmp
}

// percentageChange is ((this-last)/last)*100 rounded to the nearest
// integer, with 0 when last is 0
func percentageChange(this, last int) int {
	if last == 0 {
		return 0
	}
	return int(math.Round(float64(this-last) / float64(last) * 100))
}

// wellFormed filters out records the aggregate functions cannot place:
// unknown classification or missing timestamp
func wellFormed(records []ScanRecord) []ScanRecord {
	valid := make([]ScanRecord, 0, len(records))
	for _, r := range records {
		if !r.Classification.Valid() || r.CreatedAt.IsZero() {
			continue
		}
		valid = append(valid, r)
	}
	return valid
}

// inWindow reports whether t falls in the half-open window (start, end]
func inWindow(t, start, end time.Time) bool {
	return t.After(start) && !t.After(end)
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
