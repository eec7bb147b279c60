package core

import (
	"time"
)

// ScanType identifies what kind of content was scanned
type ScanType string

const (
	ScanTypeImage ScanType = "image"
	ScanTypeURL   ScanType = "url"
	ScanTypeText  ScanType = "text"
)

// ScanTypes lists the known scan types in canonical order
var ScanTypes = []ScanType{ScanTypeImage, ScanTypeURL, ScanTypeText}

// Classification is the verdict attached to a scan by the analysis pipeline
type Classification string

const (
	ClassificationSafe       Classification = "safe"
	ClassificationSuspicious Classification = "suspicious"
	ClassificationScam       Classification = "scam"
)

// Valid reports whether the classification is one of the known values
func (c Classification) Valid() bool {
	switch c {
	case ClassificationSafe, ClassificationSuspicious, ClassificationScam:
		return true
	}
	return false
}

// ScanRecord is one completed content-safety scan. Records are owned by
// the external storage collaborator and are read-only to this engine.
// ScamType is non-empty only when Classification is scam.
type ScanRecord struct {
	ID             string         `json:"id"`
	CreatedAt      time.Time      `json:"createdAt"`
	ScanType       ScanType       `json:"scanType"`
	Classification Classification `json:"classification"`
	ScamType       string         `json:"scamType,omitempty"`
}

// RiskLevel is a coarse summary of how often recent scans were scam or suspicious
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// ScamTypeCount pairs a display label with an occurrence count.
// The breakdown map is keyed by the normalized form of the label.
type ScamTypeCount struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// DailyTrend is one calendar day of scan activity
type DailyTrend struct {
	Date            time.Time `json:"date"`
	ScamCount       int       `json:"scamCount"`
	SuspiciousCount int       `json:"suspiciousCount"`
	SafeCount       int       `json:"safeCount"`
}

// ScanTypeStat is the per-scan-type share of all records. Percentages are
// rounded independently and are not forced to sum to 100.
type ScanTypeStat struct {
	Count      int `json:"count"`
	Percentage int `json:"percentage"`
}

// PeakTimes identifies the busiest hour of day and day of week for
// scam and suspicious activity. Both are nil when the window holds no
// qualifying records.
type PeakTimes struct {
	PeakHour *int    `json:"peakHour"`
	PeakDay  *string `json:"peakDay"`
}

// WeekStats counts scans within one 7-day bucket
type WeekStats struct {
	Total int `json:"total"`
	Scams int `json:"scams"`
}

// WeeklyChanges holds integer percentage changes between the two buckets
type WeeklyChanges struct {
	Total int `json:"total"`
	Scams int `json:"scams"`
}

// WeeklyComparison contrasts the trailing 7 days with the 7 days before
type WeeklyComparison struct {
	ThisWeek          WeekStats     `json:"thisWeek"`
	LastWeek          WeekStats     `json:"lastWeek"`
	PercentageChanges WeeklyChanges `json:"percentageChanges"`
}

// MetricsSnapshot is the full set of derived analytics for one user.
// It is recomputed from scratch on every change and never persisted.
type MetricsSnapshot struct {
	GeneratedAt          time.Time                 `json:"generatedAt"`
	TotalScans           int                       `json:"totalScans"`
	AllTimeScams         int                       `json:"allTimeScams"`
	ScamTypeBreakdown    map[string]ScamTypeCount  `json:"scamTypeBreakdown"`
	DailyTrends          []DailyTrend              `json:"dailyTrends"`
	ScanTypeDistribution map[ScanType]ScanTypeStat `json:"scanTypeDistribution"`
	PeakTimes            PeakTimes                 `json:"peakTimes"`
	RiskLevel            RiskLevel                 `json:"riskLevel"`
	WeeklyComparison     WeeklyComparison          `json:"weeklyComparison"`
}

// AlertType categorizes which rule produced an alert
type AlertType string

const (
	AlertTypeWelcome     AlertType = "welcome"
	AlertTypeRiskLevel   AlertType = "risk-level"
	AlertTypeSpike       AlertType = "spike"
	AlertTypeActivity    AlertType = "activity"
	AlertTypeNewScamType AlertType = "new-scam-type"
	AlertTypeMilestone   AlertType = "milestone"
)

// Severity is the display weight of an alert
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Well-known alert ids. Ids are deterministic so that dismissal state
// recorded by one process matches alerts generated by another.
const (
	AlertIDWelcome        = "welcome-new-user"
	AlertIDHighRisk       = "high-risk"
	AlertIDMediumRisk     = "medium-risk"
	AlertIDScamSpike      = "scam-spike"
	AlertIDHighActivity   = "high-activity"
	AlertIDFirstScam      = "first-scam"
	alertIDNewScamTypePfx = "new-scam-type-"
)

// NewScamTypeAlertID builds the id for a new-scam-type alert from the
// normalized type key
func NewScamTypeAlertID(normalizedType string) string {
	return alertIDNewScamTypePfx + normalizedType
}

// Alert is a user-facing notification derived from current metrics.
// Risk-level alerts are never dismissible; all others are.
type Alert struct {
	ID          string    `json:"id"`
	Type        AlertType `json:"type"`
	Severity    Severity  `json:"severity"`
	Message     string    `json:"message"`
	Dismissible bool      `json:"dismissible"`
}
