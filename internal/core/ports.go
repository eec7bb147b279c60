package core

import (
	"context"
)

// HistoryRepository provides read access to a user's scan history.
// The engine always refetches the full history on a change signal and
// never trusts a delta.
type HistoryRepository interface {
	// FetchScanHistory returns all scan records for a user
	FetchScanHistory(ctx context.Context, userID string) ([]ScanRecord, error)
}

// ChangeFeed notifies the engine that a user's scan history changed.
// Callbacks carry no payload; a notification means "re-check", not a
// delta. Delivery order and exactly-once delivery are not guaranteed.
type ChangeFeed interface {
	// Subscribe registers a callback for history changes for one user
	// and returns an unsubscribe handle
	Subscribe(userID string, fn func()) (unsubscribe func(), err error)
}

// DismissalRepository persists per-user alert suppression state: the set
// of dismissed alert ids, the append-only set of seen scam types and the
// last computed risk level. All writes are idempotent set inserts.
type DismissalRepository interface {
	// IsDismissed reports whether the user dismissed the given alert id
	IsDismissed(ctx context.Context, userID, alertID string) (bool, error)

	// MarkDismissed records a dismissal; dismissing an already-dismissed
	// id is a no-op
	MarkDismissed(ctx context.Context, userID, alertID string) error

	// HasSeenScamType reports whether the user was already notified
	// about the given normalized scam type
	HasSeenScamType(ctx context.Context, userID, normalizedType string) (bool, error)

	// MarkScamTypeSeen records a scam type as seen; entries are never removed
	MarkScamTypeSeen(ctx context.Context, userID, normalizedType string) error

	// LastRiskLevel returns the previously stored risk level, or "" when
	// none was recorded yet
	LastRiskLevel(ctx context.Context, userID string) (RiskLevel, error)

	// SetLastRiskLevel stores the current risk level
	SetLastRiskLevel(ctx context.Context, userID string, level RiskLevel) error
}
