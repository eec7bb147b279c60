package ports

import (
	"context"

	"github.com/mikey/scan-insights/internal/core"
)

// AlertNotifier delivers a published alert list to an out-of-band
// channel such as email. Notifiers are best-effort: a failed delivery
// is logged by the implementation and never propagates into the engine.
type AlertNotifier interface {
	// Notify delivers the current alert list for a user
	Notify(ctx context.Context, userID string, alerts []core.Alert) error
}
