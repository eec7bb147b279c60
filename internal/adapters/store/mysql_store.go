package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	"github.com/mikey/scan-insights/internal/core"
	"go.uber.org/zap"
)

// MySQLStore is a MySQL implementation of the DismissalRepository
// interface, for deployments that already keep scan history in MySQL
type MySQLStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewMySQLStore connects to MySQL and bootstraps the dismissal tables
func NewMySQLStore(dsn string, logger *zap.Logger) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS dismissed_alerts (
			user_id VARCHAR(128) NOT NULL,
			alert_id VARCHAR(255) NOT NULL,
			dismissed_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (user_id, alert_id)
		)`,
		`CREATE TABLE IF NOT EXISTS seen_scam_types (
			user_id VARCHAR(128) NOT NULL,
			scam_type VARCHAR(255) NOT NULL,
			first_seen TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (user_id, scam_type)
		)`,
		`CREATE TABLE IF NOT EXISTS user_risk_levels (
			user_id VARCHAR(128) PRIMARY KEY,
			risk_level VARCHAR(16) NOT NULL,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create table: %w", err)
		}
	}

	return &MySQLStore{db: db, logger: logger}, nil
}

// IsDismissed reports whether the user dismissed the given alert id
func (s *MySQLStore) IsDismissed(ctx context.Context, userID, alertID string) (bool, error) {
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
func (s *MySQLStore) MarkDismissed(ctx context.Context, userID, alertID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT IGNORE INTO dismissed_alerts (user_id, alert_id)
		VALUES (?, ?)
	`, userID, alertID)
	if err != nil {
		return fmt.Errorf("failed to insert dismissal: %w", err)
	}
	return nil
}

// HasSeenScamType reports whether the user was already notified about
// the given normalized scam type
func (s *MySQLStore) HasSeenScamType(ctx context.Context, userID, normalizedType string) (bool, error) {
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
func (s *MySQLStore) MarkScamTypeSeen(ctx context.Context, userID, normalizedType string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT IGNORE INTO seen_scam_types (user_id, scam_type)
		VALUES (?, ?)
	`, userID, normalizedType)
	if err != nil {
		return fmt.Errorf("failed to insert seen scam type: %w", err)
	}
	return nil
}

// LastRiskLevel returns the stored level, or "" when none was recorded
func (s *MySQLStore) LastRiskLevel(ctx context.Context, userID string) (core.RiskLevel, error) {
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
func (s *MySQLStore) SetLastRiskLevel(ctx context.Context, userID string, level core.RiskLevel) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_risk_levels (user_id, risk_level)
		VALUES (?, ?)
		ON DUPLICATE KEY UPDATE risk_level = VALUES(risk_level)
	`, userID, string(level))
	if err != nil {
		return fmt.Errorf("failed to store risk level: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *MySQLStore) Close() {
	if err := s.db.Close(); err != nil {
		s.logger.Error("Failed to close MySQL database", zap.Error(err))
	}
}
