package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/mikey/scan-insights/internal/core"
	"go.uber.org/zap"
)

// SQLiteStore is a SQLite implementation of the DismissalRepository
// interface. All keys are namespaced by user id; writes are idempotent
// set inserts, so retries and replays are harmless.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLiteStore opens (or creates) the dismissal database at dbPath
func NewSQLiteStore(dbPath string, logger *zap.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS dismissed_alerts (
			user_id TEXT NOT NULL,
			alert_id TEXT NOT NULL,
			dismissed_at TIMESTAMP NOT NULL,
			PRIMARY KEY (user_id, alert_id)
		)`,
		`CREATE TABLE IF NOT EXISTS seen_scam_types (
			user_id TEXT NOT NULL,
			scam_type TEXT NOT NULL,
			first_seen TIMESTAMP NOT NULL,
			PRIMARY KEY (user_id, scam_type)
		)`,
		`CREATE TABLE IF NOT EXISTS user_risk_levels (
			user_id TEXT PRIMARY KEY,
			risk_level TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create table: %w", err)
		}
	}

	return &SQLiteStore{db: db, logger: logger}, nil
}

// IsDismissed reports whether the user dismissed the given alert id
func (s *SQLiteStore) IsDismissed(ctx context.Context, userID, alertID string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(1) FROM dismissed_alerts
		WHERE user_id = ? AND alert_id = ?
	`, userID, alertID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to query dismissed alerts: %w", err)
	}
	return count > 0, nil
}

// MarkDismissed records a dismissal; repeats are no-ops
func (s *SQLiteStore) MarkDismissed(ctx context.Context, userID, alertID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO dismissed_alerts (user_id, alert_id, dismissed_at)
		VALUES (?, ?, ?)
	`, userID, alertID, time.Now().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to insert dismissal: %w", err)
	}
	return nil
}

// HasSeenScamType reports whether the user was already notified about
// the given normalized scam type
func (s *SQLiteStore) HasSeenScamType(ctx context.Context, userID, normalizedType string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(1) FROM seen_scam_types
		WHERE user_id = ? AND scam_type = ?
	`, userID, normalizedType).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to query seen scam types: %w", err)
	}
	return count > 0, nil
}

// MarkScamTypeSeen records a scam type as seen; the set only grows
func (s *SQLiteStore) MarkScamTypeSeen(ctx context.Context, userID, normalizedType string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO seen_scam_types (user_id, scam_type, first_seen)
		VALUES (?, ?, ?)
	`, userID, normalizedType, time.Now().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to insert seen scam type: %w", err)
	}
	return nil
}

// LastRiskLevel returns the stored level, or "" when none was recorded
func (s *SQLiteStore) LastRiskLevel(ctx context.Context, userID string) (core.RiskLevel, error) {
	var level string
	err := s.db.QueryRowContext(ctx, `
		SELECT risk_level FROM user_risk_levels WHERE user_id = ?
	`, userID).Scan(&level)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", fmt.Errorf("failed to query risk level: %w", err)
	}
	return core.RiskLevel(level), nil
}

// SetLastRiskLevel stores the current risk level
func (s *SQLiteStore) SetLastRiskLevel(ctx context.Context, userID string, level core.RiskLevel) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO user_risk_levels (user_id, risk_level, updated_at)
		VALUES (?, ?, ?)
	`, userID, string(level), time.Now().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to store risk level: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() {
	if err := s.db.Close(); err != nil {
		s.logger.Error("Failed to close SQLite database", zap.Error(err))
	}
}
