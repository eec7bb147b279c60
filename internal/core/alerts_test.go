package core_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/scan-insights/internal/adapters/store"
	"github.com/mikey/scan-insights/internal/core"
)

func newGenerator(t *testing.T) (*core.Generator, *store.MemoryStore) {
	t.Helper()
	repo := store.NewMemoryStore(zap.NewNop())
	return core.NewGenerator(repo, core.DefaultThresholds(), zap.NewNop()), repo
}

func alertIDs(alerts []core.Alert) []string {
	ids := make([]string, 0, len(alerts))
	for _, a := range alerts {
		ids = append(ids, a.ID)
	}
	return ids
}

func emptySnapshot() core.MetricsSnapshot {
	return core.MetricsSnapshot{
		GeneratedAt:       testNow,
		RiskLevel:         core.RiskLow,
		ScamTypeBreakdown: map[string]core.ScamTypeCount{},
	}
}

func TestGenerate_EmptyHistoryWelcomeOnly(t *testing.T) {
	gen, _ := newGenerator(t)

	alerts := gen.Generate(context.Background(), "u1", emptySnapshot())
	require.Len(t, alerts, 1)
	assert.Equal(t, core.AlertIDWelcome, alerts[0].ID)
	assert.True(t, alerts[0].Dismissible)
}

func TestGenerate_WelcomeSuppressedAfterDismissal(t *testing.T) {
	gen, repo := newGenerator(t)
	ctx := context.Background()

	require.NoError(t, repo.MarkDismissed(ctx, "u1", core.AlertIDWelcome))
	assert.Empty(t, gen.Generate(ctx, "u1", emptySnapshot()))
}

func TestGenerate_RiskAlertIgnoresDismissal(t *testing.T) {
	gen, repo := newGenerator(t)
	ctx := context.Background()

	snap := emptySnapshot()
	snap.TotalScans = 10
	snap.RiskLevel = core.RiskHigh

	// Even a recorded dismissal for the risk id has no effect: the
	// alert tracks the live level only.
	require.NoError(t, repo.MarkDismissed(ctx, "u1", core.AlertIDHighRisk))

	alerts := gen.Generate(ctx, "u1", snap)
	require.NotEmpty(t, alerts)
	assert.Equal(t, core.AlertIDHighRisk, alerts[0].ID)
	assert.False(t, alerts[0].Dismissible)
	assert.Equal(t, core.SeverityError, alerts[0].Severity)
}

func TestGenerate_RiskAlertTracksCurrentLevel(t *testing.T) {
	gen, _ := newGenerator(t)
	ctx := context.Background()

	snap := emptySnapshot()
	snap.TotalScans = 10

	snap.RiskLevel = core.RiskMedium
	assert.Contains(t, alertIDs(gen.Generate(ctx, "u1", snap)), core.AlertIDMediumRisk)

	snap.RiskLevel = core.RiskHigh
	ids := alertIDs(gen.Generate(ctx, "u1", snap))
	assert.Contains(t, ids, core.AlertIDHighRisk)
	assert.NotContains(t, ids, core.AlertIDMediumRisk)

	snap.RiskLevel = core.RiskLow
	ids = alertIDs(gen.Generate(ctx, "u1", snap))
	assert.NotContains(t, ids, core.AlertIDHighRisk)
	assert.NotContains(t, ids, core.AlertIDMediumRisk)
}

func TestGenerate_ScamSpike(t *testing.T) {
	gen, repo := newGenerator(t)
	ctx := context.Background()

	snap := emptySnapshot()
	snap.TotalScans = 10
	snap.AllTimeScams = 4
	snap.WeeklyComparison = core.WeeklyComparison{
		ThisWeek:          core.WeekStats{Total: 5, Scams: 3},
		LastWeek:          core.WeekStats{Total: 2, Scams: 1},
		PercentageChanges: core.WeeklyChanges{Total: 150, Scams: 200},
	}

	alerts := gen.Generate(ctx, "u1", snap)
	require.Contains(t, alertIDs(alerts), core.AlertIDScamSpike)

	require.NoError(t, repo.MarkDismissed(ctx, "u1", core.AlertIDScamSpike))
	assert.NotContains(t, alertIDs(gen.Generate(ctx, "u1", snap)), core.AlertIDScamSpike)
}

func TestGenerate_NoSpikeOnSingleScam(t *testing.T) {
	gen, _ := newGenerator(t)

	// 1 scam this week vs 0 last week is not a spike even though the
	// ratio condition alone would scream.
	snap := emptySnapshot()
	snap.TotalScans = 3
	snap.WeeklyComparison = core.WeeklyComparison{
		ThisWeek:          core.WeekStats{Total: 2, Scams: 1},
		PercentageChanges: core.WeeklyChanges{Scams: 0},
	}

	assert.NotContains(t, alertIDs(gen.Generate(context.Background(), "u1", snap)), core.AlertIDScamSpike)
}

func TestGenerate_HighActivity(t *testing.T) {
	gen, repo := newGenerator(t)
	ctx := context.Background()

	snap := emptySnapshot()
	snap.TotalScans = 11
	snap.WeeklyComparison.ThisWeek = core.WeekStats{Total: 11}

	require.Contains(t, alertIDs(gen.Generate(ctx, "u1", snap)), core.AlertIDHighActivity)

	require.NoError(t, repo.MarkDismissed(ctx, "u1", core.AlertIDHighActivity))
	assert.NotContains(t, alertIDs(gen.Generate(ctx, "u1", snap)), core.AlertIDHighActivity)
}

func TestGenerate_NewScamTypeFiresOncePerType(t *testing.T) {
	gen, _ := newGenerator(t)
	ctx := context.Background()

	snap := emptySnapshot()
	snap.TotalScans = 5
	snap.AllTimeScams = 2
	snap.ScamTypeBreakdown = map[string]core.ScamTypeCount{
		"phishing": {Label: "Phishing", Count: 2},
	}

	first := gen.Generate(ctx, "u1", snap)
	require.Contains(t, alertIDs(first), core.NewScamTypeAlertID("phishing"))

	// The type was marked seen by generation itself; it never fires
	// again, viewed or not.
	second := gen.Generate(ctx, "u1", snap)
	assert.NotContains(t, alertIDs(second), core.NewScamTypeAlertID("phishing"))
}

func TestGenerate_NewScamTypeMarkedSeenEvenWhenDismissed(t *testing.T) {
	gen, repo := newGenerator(t)
	ctx := context.Background()

	require.NoError(t, repo.MarkDismissed(ctx, "u1", core.NewScamTypeAlertID("phishing")))

	snap := emptySnapshot()
	snap.TotalScans = 5
	snap.AllTimeScams = 2
	snap.ScamTypeBreakdown = map[string]core.ScamTypeCount{
		"phishing": {Label: "Phishing", Count: 2},
	}

	assert.NotContains(t, alertIDs(gen.Generate(ctx, "u1", snap)), core.NewScamTypeAlertID("phishing"))

	seen, err := repo.HasSeenScamType(ctx, "u1", "phishing")
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestGenerate_CaseFoldedTypesProduceOneAlert(t *testing.T) {
	// "Phishing" and "phishing" normalize to the same key, so the
	// calculator merges them and exactly one alert ever fires.
	calc := newCalculator()
	gen, _ := newGenerator(t)
	ctx := context.Background()

	records := []core.ScanRecord{
		rec(time.Hour, core.ClassificationScam, core.ScanTypeURL, "Phishing"),
		rec(2*time.Hour, core.ClassificationScam, core.ScanTypeText, "phishing"),
	}
	snap := calc.Snapshot(records, testNow)

	var newTypeAlerts []core.Alert
	for _, a := range gen.Generate(ctx, "u1", snap) {
		if a.Type == core.AlertTypeNewScamType {
			newTypeAlerts = append(newTypeAlerts, a)
		}
	}
	require.Len(t, newTypeAlerts, 1)
	assert.Equal(t, core.NewScamTypeAlertID("phishing"), newTypeAlerts[0].ID)
}

func TestGenerate_FirstScamMilestone(t *testing.T) {
	gen, _ := newGenerator(t)
	ctx := context.Background()

	snap := emptySnapshot()
	snap.TotalScans = 3
	snap.AllTimeScams = 1
	assert.Contains(t, alertIDs(gen.Generate(ctx, "u1", snap)), core.AlertIDFirstScam)

	snap.AllTimeScams = 2
	assert.NotContains(t, alertIDs(gen.Generate(ctx, "u1", snap)), core.AlertIDFirstScam)
}

func TestGenerate_RiskAlertsSortFirst(t *testing.T) {
	gen, _ := newGenerator(t)

	snap := emptySnapshot()
	snap.TotalScans = 12
	snap.AllTimeScams = 1
	snap.RiskLevel = core.RiskHigh
	snap.WeeklyComparison = core.WeeklyComparison{
		ThisWeek:          core.WeekStats{Total: 12, Scams: 3},
		LastWeek:          core.WeekStats{Total: 4, Scams: 1},
		PercentageChanges: core.WeeklyChanges{Total: 200, Scams: 200},
	}
	snap.ScamTypeBreakdown = map[string]core.ScamTypeCount{
		"phishing": {Label: "Phishing", Count: 3},
	}

	alerts := gen.Generate(context.Background(), "u1", snap)
	require.Equal(t, []string{
		core.AlertIDHighRisk,
		core.AlertIDScamSpike,
		core.AlertIDHighActivity,
		core.NewScamTypeAlertID("phishing"),
		core.AlertIDFirstScam,
	}, alertIDs(alerts))
}

func TestGenerate_DismissAllRoundTrip(t *testing.T) {
	gen, repo := newGenerator(t)
	ctx := context.Background()

	snap := emptySnapshot()
	snap.TotalScans = 12
	snap.AllTimeScams = 1
	snap.RiskLevel = core.RiskMedium
	snap.WeeklyComparison = core.WeeklyComparison{
		ThisWeek:          core.WeekStats{Total: 12, Scams: 3},
		LastWeek:          core.WeekStats{Total: 4, Scams: 1},
		PercentageChanges: core.WeeklyChanges{Total: 200, Scams: 200},
	}
	snap.ScamTypeBreakdown = map[string]core.ScamTypeCount{
		"phishing": {Label: "Phishing", Count: 3},
	}

	for _, a := range gen.Generate(ctx, "u1", snap) {
		if a.Dismissible {
			require.NoError(t, repo.MarkDismissed(ctx, "u1", a.ID))
		}
	}

	remaining := gen.Generate(ctx, "u1", snap)
	require.Len(t, remaining, 1)
	assert.Equal(t, core.AlertIDMediumRisk, remaining[0].ID)
	assert.False(t, remaining[0].Dismissible)
}

// brokenStore fails every operation, standing in for an unreachable
// persistence medium.
type brokenStore struct{}

var errStoreDown = errors.New("store unavailable")

func (brokenStore) IsDismissed(context.Context, string, string) (bool, error) {
	return false, errStoreDown
}
func (brokenStore) MarkDismissed(context.Context, string, string) error { return errStoreDown }
func (brokenStore) HasSeenScamType(context.Context, string, string) (bool, error) {
	return false, errStoreDown
}
func (brokenStore) MarkScamTypeSeen(context.Context, string, string) error { return errStoreDown }
func (brokenStore) LastRiskLevel(context.Context, string) (core.RiskLevel, error) {
	return "", errStoreDown
}
func (brokenStore) SetLastRiskLevel(context.Context, string, core.RiskLevel) error {
	return errStoreDown
}

func TestGenerate_FailsOpenWhenStoreDown(t *testing.T) {
	gen := core.NewGenerator(brokenStore{}, core.DefaultThresholds(), zap.NewNop())

	snap := emptySnapshot()
	snap.TotalScans = 5
	snap.AllTimeScams = 1
	snap.ScamTypeBreakdown = map[string]core.ScamTypeCount{
		"phishing": {Label: "Phishing", Count: 1},
	}

	// Over-notify rather than crash: everything fires as if nothing
	// were dismissed or seen.
	ids := alertIDs(gen.Generate(context.Background(), "u1", snap))
	assert.Contains(t, ids, core.NewScamTypeAlertID("phishing"))
	assert.Contains(t, ids, core.AlertIDFirstScam)
}
