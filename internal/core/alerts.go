package core

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// Generator turns a metrics snapshot into the current alert list for a
// user. It consults the dismissal repository for suppression state; a
// failing repository degrades to "nothing dismissed, nothing seen" so
// the pipeline over-notifies instead of crashing.
type Generator struct {
	dismissals DismissalRepository
	thresholds Thresholds
	logger     *zap.Logger
}

// NewGenerator creates an alert generator
func NewGenerator(dismissals DismissalRepository, thresholds Thresholds, logger *zap.Logger) *Generator {
	return &Generator{
		dismissals: dismissals,
		thresholds: thresholds,
		logger:     logger,
	}
}

// Generate produces the alert list for a user from a metrics snapshot.
// Risk alerts come first, then the remaining rules in evaluation order;
// no further reordering happens. Calling Generate twice with the same
// snapshot and the same stored state yields the same list, except that
// new-scam-type alerts fire at most once per type ever.
func (g *Generator) Generate(ctx context.Context, userID string, metrics MetricsSnapshot) []Alert {
	// An empty history short-circuits every other rule.
	if metrics.TotalScans == 0 {
		if g.isDismissed(ctx, userID, AlertIDWelcome) {
			return []Alert{}
		}
		return []Alert{{
			ID:          AlertIDWelcome,
			Type:        AlertTypeWelcome,
			Severity:    SeverityInfo,
			Message:     "Welcome! Scan suspicious messages, links and images to build up your safety insights.",
			Dismissible: true,
		}}
	}

	alerts := make([]Alert, 0, 4)

	// Risk alerts track the live level only. Dismissal state is never
	// consulted: the alert is visible exactly while the level holds.
	switch metrics.RiskLevel {
	case RiskHigh:
		alerts = append(alerts, Alert{
			ID:          AlertIDHighRisk,
			Type:        AlertTypeRiskLevel,
			Severity:    SeverityError,
			Message:     "High risk: most of your recent scans were scams or suspicious. Be extra careful with unknown senders.",
			Dismissible: false,
		})
	case RiskMedium:
		alerts = append(alerts, Alert{
			ID:          AlertIDMediumRisk,
			Type:        AlertTypeRiskLevel,
			Severity:    SeverityWarning,
			Message:     "Elevated risk: a notable share of your recent scans were scams or suspicious.",
			Dismissible: false,
		})
	}

	wk := metrics.WeeklyComparison
	if wk.ThisWeek.Scams > 1 && wk.PercentageChanges.Scams > g.thresholds.SpikePercent {
		if !g.isDismissed(ctx, userID, AlertIDScamSpike) {
			alerts = append(alerts, Alert{
				ID:          AlertIDScamSpike,
				Type:        AlertTypeSpike,
				Severity:    SeverityWarning,
				Message:     fmt.Sprintf("Scam detections are up %d%% this week (%d vs %d last week).", wk.PercentageChanges.Scams, wk.ThisWeek.Scams, wk.LastWeek.Scams),
				Dismissible: true,
			})
		}
	}

	if wk.ThisWeek.Total > g.thresholds.WeeklyActivityLimit {
		if !g.isDismissed(ctx, userID, AlertIDHighActivity) {
			alerts = append(alerts, Alert{
				ID:          AlertIDHighActivity,
				Type:        AlertTypeActivity,
				Severity:    SeverityInfo,
				Message:     fmt.Sprintf("You ran %d scans this week. Nice work staying vigilant.", wk.ThisWeek.Total),
				Dismissible: true,
			})
		}
	}

	alerts = append(alerts, g.newScamTypeAlerts(ctx, userID, metrics.ScamTypeBreakdown)...)

	if metrics.AllTimeScams == 1 {
		if !g.isDismissed(ctx, userID, AlertIDFirstScam) {
			alerts = append(alerts, Alert{
				ID:          AlertIDFirstScam,
				Type:        AlertTypeMilestone,
				Severity:    SeverityInfo,
				Message:     "You caught your first scam. Your scans are paying off.",
				Dismissible: true,
			})
		}
	}

	return alerts
}

// newScamTypeAlerts emits one alert per scam type the user has never
// been notified about. Types are marked seen immediately, whether or
// not the alert survives dismissal filtering, so each type fires at
// most once ever. Keys are walked in sorted order for deterministic
// output.
func (g *Generator) newScamTypeAlerts(ctx context.Context, userID string, breakdown map[string]ScamTypeCount) []Alert {
	keys := make([]string, 0, len(breakdown))
	for key := range breakdown {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var alerts []Alert
	for _, key := range keys {
		if g.hasSeen(ctx, userID, key) {
			continue
		}
		if err := g.dismissals.MarkScamTypeSeen(ctx, userID, key); err != nil {
			g.logger.Warn("Failed to mark scam type as seen",
				zap.Error(err),
				zap.String("user_id", userID),
				zap.String("scam_type", key))
		}
		alertID := NewScamTypeAlertID(key)
		if g.isDismissed(ctx, userID, alertID) {
			continue
		}
		alerts = append(alerts, Alert{
			ID:          alertID,
			Type:        AlertTypeNewScamType,
			Severity:    SeverityWarning,
			Message:     fmt.Sprintf("New scam type detected: %s.", breakdown[key].Label),
			Dismissible: true,
		})
	}
	return alerts
}

// isDismissed fails open: a broken store means not dismissed
func (g *Generator) isDismissed(ctx context.Context, userID, alertID string) bool {
	dismissed, err := g.dismissals.IsDismissed(ctx, userID, alertID)
	if err != nil {
		g.logger.Warn("Failed to read dismissal state, treating as not dismissed",
			zap.Error(err),
			zap.String("user_id", userID),
			zap.String("alert_id", alertID))
		return false
	}
	return dismissed
}

// hasSeen fails open: a broken store means not seen
func (g *Generator) hasSeen(ctx context.Context, userID, normalizedType string) bool {
	seen, err := g.dismissals.HasSeenScamType(ctx, userID, normalizedType)
	if err != nil {
		g.logger.Warn("Failed to read seen scam types, treating as unseen",
			zap.Error(err),
			zap.String("user_id", userID),
			zap.String("scam_type", normalizedType))
		return false
	}
	return seen
}
