package history

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/mikey/scan-insights/internal/core"
	"go.uber.org/zap"
)

// MySQLHistory reads scan history from a MySQL scan_history table owned
// by the external analysis pipeline, and emulates a change feed by
// polling a cheap per-user version stamp (row count plus last update).
// The external store offers no push channel, so a notification here
// still only means "re-check"; the engine refetches the full history.
type MySQLHistory struct {
	db       *sql.DB
	logger   *zap.Logger
	pollFreq time.Duration

	mu          sync.Mutex
	subscribers map[string]map[int]func()
	versions    map[string]string
	nextSubID   int
	stopCh      chan struct{}
	started     bool
}

// NewMySQLHistory connects to the external scan-history database
func NewMySQLHistory(dsn string, logger *zap.Logger, pollFreq time.Duration) (*MySQLHistory, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}

	return &MySQLHistory{
		db:          db,
		logger:      logger,
		pollFreq:    pollFreq,
		subscribers: make(map[string]map[int]func()),
		versions:    make(map[string]string),
		stopCh:      make(chan struct{}),
	}, nil
}

// FetchScanHistory returns all scan records for a user, newest last.
// Rows with values the engine cannot place are still returned; the
// calculator skips malformed records itself.
func (h *MySQLHistory) FetchScanHistory(ctx context.Context, userID string) ([]core.ScanRecord, error) {
	rows, err := h.db.QueryContext(ctx, `
		SELECT id, created_at, scan_type, classification, COALESCE(scam_type, '')
		FROM scan_history
		WHERE user_id = ?
		ORDER BY created_at ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query scan history: %w", err)
	}
	defer rows.Close()

	var records []core.ScanRecord
	for rows.Next() {
		var r core.ScanRecord
		var createdAt string
		if err := rows.Scan(&r.ID, &createdAt, &r.ScanType, &r.Classification, &r.ScamType); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		r.CreatedAt, err = time.Parse("2006-01-02 15:04:05", createdAt)
		if err != nil {
			// Leave the timestamp zero; the calculator drops the record.
			h.logger.Warn("Unparseable created_at in scan history",
				zap.String("user_id", userID), zap.String("value", createdAt))
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read scan history: %w", err)
	}

	return records, nil
}

// Subscribe registers a change callback for one user and lazily starts
// the polling loop
func (h *MySQLHistory) Subscribe(userID string, fn func()) (func(), error) {
	h.mu.Lock()
	if h.subscribers[userID] == nil {
		h.subscribers[userID] = make(map[int]func())
	}
	id := h.nextSubID
	h.nextSubID++
	h.subscribers[userID][id] = fn
	if !h.started {
		h.started = true
		go h.startPollTask()
	}
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if subs, ok := h.subscribers[userID]; ok {
			delete(subs, id)
			if len(subs) == 0 {
				delete(h.subscribers, userID)
				delete(h.versions, userID)
			}
		}
	}, nil
}

// startPollTask watches the version stamp of every subscribed user
func (h *MySQLHistory) startPollTask() {
	ticker := time.NewTicker(h.pollFreq)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			h.pollOnce()
		case <-h.stopCh:
			return
		}
	}
}

func (h *MySQLHistory) pollOnce() {
	h.mu.Lock()
	userIDs := make([]string, 0, len(h.subscribers))
	for userID := range h.subscribers {
		userIDs = append(userIDs, userID)
	}
	h.mu.Unlock()

	for _, userID := range userIDs {
		version, err := h.version(userID)
		if err != nil {
			// A transient read failure just delays detection one tick.
			h.logger.Warn("Failed to poll scan history version",
				zap.Error(err), zap.String("user_id", userID))
			continue
		}

		h.mu.Lock()
		prev, known := h.versions[userID]
		h.versions[userID] = version
		var fns []func()
		if known && prev != version {
			for _, fn := range h.subscribers[userID] {
				fns = append(fns, fn)
			}
		}
		h.mu.Unlock()

		for _, fn := range fns {
			fn()
		}
	}
}

// version computes the per-user change stamp: row count plus the
// latest updated_at. Inserts and deletes move the count, updates move
// the timestamp.
func (h *MySQLHistory) version(userID string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var count int
	var lastUpdated sql.NullString
	err := h.db.QueryRowContext(ctx, `
		SELECT COUNT(1), MAX(updated_at) FROM scan_history WHERE user_id = ?
	`, userID).Scan(&count, &lastUpdated)
	if err != nil {
		return "", fmt.Errorf("failed to query history version: %w", err)
	}
	return fmt.Sprintf("%d:%s", count, lastUpdated.String), nil
}

// Stop stops the polling loop and closes the database connection
func (h *MySQLHistory) Stop() {
	close(h.stopCh)
	if err := h.db.Close(); err != nil {
		h.logger.Error("Failed to close MySQL database", zap.Error(err))
	}
}
