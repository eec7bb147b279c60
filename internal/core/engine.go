package core

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/scan-insights/internal/metrics"
)

// sessionState tracks where a user session is in its lifecycle
type sessionState int

const (
	stateLoading sessionState = iota
	stateReady
)

// session is the per-user unit of engine state. A single worker
// goroutine owns recomputation for the session; signals are coalesced
// through a one-slot channel and stale fetches are discarded via the
// fetch token.
type session struct {
	userID string
	state  sessionState

	// fetchSeq increases on every change signal; a recompute captures
	// it before fetching and only publishes if it is still current.
	fetchSeq  uint64
	alerts    []Alert
	snapshot  *MetricsSnapshot
	riskLevel RiskLevel
	hasRisk   bool

	subscribers map[int]func([]Alert)
	nextSubID   int

	pending     chan struct{}
	stop        chan struct{}
	done        chan struct{}
	unsubscribe func()
}

// Engine orchestrates the insights pipeline: on every change signal it
// refetches the full scan history, recomputes metrics, regenerates the
// alert list and publishes it to subscribers. One engine instance holds
// its own lifecycle state; there is no global module state.
type Engine struct {
	history    HistoryRepository
	feed       ChangeFeed
	dismissals DismissalRepository
	calculator *Calculator
	generator  *Generator
	logger     *zap.Logger

	resyncInterval time.Duration
	fetchTimeout   time.Duration
	now            func() time.Time
	publishHook    func(userID string, alerts []Alert)

	mu       sync.Mutex
	sessions map[string]*session
	stopped  bool
}

// EngineOption customizes engine construction
type EngineOption func(*Engine)

// WithResyncInterval enables scheduled re-evaluation in addition to
// change-driven recomputation. Zero disables the ticker.
func WithResyncInterval(d time.Duration) EngineOption {
	return func(e *Engine) { e.resyncInterval = d }
}

// WithFetchTimeout bounds a single history fetch
func WithFetchTimeout(d time.Duration) EngineOption {
	return func(e *Engine) { e.fetchTimeout = d }
}

// WithPublishHook registers a callback invoked after every publish, in
// addition to per-user subscribers. Used to drive outbound notifiers.
func WithPublishHook(fn func(userID string, alerts []Alert)) EngineOption {
	return func(e *Engine) { e.publishHook = fn }
}

// WithClock overrides the time source. Tests use this to pin "now".
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an insights engine
func NewEngine(
	history HistoryRepository,
	feed ChangeFeed,
	dismissals DismissalRepository,
	calculator *Calculator,
	generator *Generator,
	logger *zap.Logger,
	opts ...EngineOption,
) *Engine {
	e := &Engine{
		history:      history,
		feed:         feed,
		dismissals:   dismissals,
		calculator:   calculator,
		generator:    generator,
		logger:       logger,
		fetchTimeout: 30 * time.Second,
		now:          time.Now,
		sessions:     make(map[string]*session),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// StartSession begins tracking a user: subscribes to the change feed
// and kicks off the initial load. Starting an already-active session is
// a no-op.
func (e *Engine) StartSession(userID string) {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return
	}
	if _, ok := e.sessions[userID]; ok {
		e.mu.Unlock()
		return
	}

	s := &session{
		userID:      userID,
		state:       stateLoading,
		subscribers: make(map[int]func([]Alert)),
		pending:     make(chan struct{}, 1),
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
	e.sessions[userID] = s
	metrics.ActiveSessions.Inc()
	e.mu.Unlock()

	if e.feed != nil {
		unsub, err := e.feed.Subscribe(userID, func() { e.NotifyChange(userID) })
		if err != nil {
			// Without a feed the session still works on resync and
			// explicit signals.
			e.logger.Warn("Failed to subscribe to change feed",
				zap.Error(err), zap.String("user_id", userID))
		} else {
			e.mu.Lock()
			s.unsubscribe = unsub
			e.mu.Unlock()
		}
	}

	go e.runSession(s)
	e.NotifyChange(userID)

	e.logger.Info("Session started", zap.String("user_id", userID))
}

// EndSession stops tracking a user. In-memory alerts and risk memory
// are discarded; persisted dismissal and seen-type state is untouched.
func (e *Engine) EndSession(userID string) {
	e.mu.Lock()
	s, ok := e.sessions[userID]
	if !ok {
		e.mu.Unlock()
		return
	}
	delete(e.sessions, userID)
	metrics.ActiveSessions.Dec()
	unsub := s.unsubscribe
	e.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	close(s.stop)
	<-s.done

	e.logger.Info("Session ended", zap.String("user_id", userID))
}

// HandleSessionChange is the adapter for session-change notifications:
// a non-empty user id starts that session and ends all others, an empty
// id ends everything.
func (e *Engine) HandleSessionChange(userID string) {
	e.mu.Lock()
	var stale []string
	for id := range e.sessions {
		if id != userID {
			stale = append(stale, id)
		}
	}
	e.mu.Unlock()

	for _, id := range stale {
		e.EndSession(id)
	}
	if userID != "" {
		e.StartSession(userID)
	}
}

// NotifyChange signals that the user's scan history changed. Signals
// arriving while a recompute is in flight are coalesced; the token bump
// guarantees the in-flight result is discarded rather than published.
func (e *Engine) NotifyChange(userID string) {
	e.mu.Lock()
	s, ok := e.sessions[userID]
	if !ok {
		e.mu.Unlock()
		return
	}
	s.fetchSeq++
	e.mu.Unlock()

	select {
	case s.pending <- struct{}{}:
	default:
	}
}

// SubscribeAlerts registers a callback receiving the current alert list
// whenever it changes, starting the session if needed. The callback is
// invoked immediately with the current list when one has already been
// published. Returns an unsubscribe handle.
func (e *Engine) SubscribeAlerts(userID string, fn func([]Alert)) func() {
	e.StartSession(userID)

	e.mu.Lock()
	s, ok := e.sessions[userID]
	if !ok {
		e.mu.Unlock()
		return func() {}
	}
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn
	var current []Alert
	ready := s.state == stateReady
	if ready {
		current = append([]Alert(nil), s.alerts...)
	}
	e.mu.Unlock()

	if ready {
		fn(current)
	}

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if s, ok := e.sessions[userID]; ok {
			delete(s.subscribers, id)
		}
	}
}

// DismissAlert suppresses a dismissible alert for good. Unknown ids and
// non-dismissible ids are silently ignored. The store write completes
// before the alert list is regenerated, so the next cycle can never
// re-emit a just-dismissed alert.
func (e *Engine) DismissAlert(ctx context.Context, userID, alertID string) {
	e.mu.Lock()
	s, ok := e.sessions[userID]
	if !ok {
		e.mu.Unlock()
		return
	}
	var target Alert
	found := false
	for _, a := range s.alerts {
		if a.ID == alertID {
			target = a
			found = true
			break
		}
	}
	snapshot := s.snapshot
	e.mu.Unlock()

	if !found || !target.Dismissible {
		return
	}

	if err := e.dismissals.MarkDismissed(ctx, userID, alertID); err != nil {
		// Fail soft. The alert stays visible until the write succeeds
		// on a later attempt.
		e.logger.Warn("Failed to persist dismissal",
			zap.Error(err),
			zap.String("user_id", userID),
			zap.String("alert_id", alertID))
		return
	}
	metrics.DismissalsTotal.Inc()

	// Regenerate from the last snapshot; no refetch needed since the
	// underlying history did not change.
	if snapshot != nil {
		alerts := e.generator.Generate(ctx, userID, *snapshot)
		e.publish(userID, *snapshot, alerts)
	}
}

// CurrentRiskLevel returns the last computed risk level for a user.
// The second return is false while no snapshot has been computed yet or
// the session is unknown.
func (e *Engine) CurrentRiskLevel(userID string) (RiskLevel, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.sessions[userID]
	if !ok || !s.hasRisk {
		return "", false
	}
	return s.riskLevel, true
}

// CurrentAlerts returns the most recently published alert list for a
// user, or nil when the session is unknown or not ready yet
func (e *Engine) CurrentAlerts(userID string) []Alert {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.sessions[userID]
	if !ok || s.state != stateReady {
		return nil
	}
	return append([]Alert(nil), s.alerts...)
}

// CurrentSnapshot returns the most recently computed metrics snapshot
// for a user, or nil when none exists yet
func (e *Engine) CurrentSnapshot(userID string) *MetricsSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.sessions[userID]
	if !ok || s.snapshot == nil {
		return nil
	}
	snap := *s.snapshot
	return &snap
}

// Stop ends every session and stops the engine
func (e *Engine) Stop() {
	e.mu.Lock()
	e.stopped = true
	ids := make([]string, 0, len(e.sessions))
	for id := range e.sessions {
		ids = append(ids, id)
	}
	e.mu.Unlock()

	for _, id := range ids {
		e.EndSession(id)
	}
}

// runSession is the per-session worker loop. It is the only goroutine
// that recomputes for this user, which keeps publishes ordered without
// any further locking.
func (e *Engine) runSession(s *session) {
	defer close(s.done)

	var resync <-chan time.Time
	if e.resyncInterval > 0 {
		ticker := time.NewTicker(e.resyncInterval)
		defer ticker.Stop()
		resync = ticker.C
	}

	for {
		select {
		case <-s.pending:
			e.recompute(s)
		case <-resync:
			e.recompute(s)
		case <-s.stop:
			return
		}
	}
}

// recompute runs one fetch+compute+publish cycle for a session
func (e *Engine) recompute(s *session) {
	metrics.RecomputesTotal.Inc()

	e.mu.Lock()
	token := s.fetchSeq
	s.state = stateLoading
	e.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), e.fetchTimeout)
	defer cancel()

	records, err := e.history.FetchScanHistory(ctx, s.userID)
	if err != nil {
		// Degraded ready: keep whatever was last published. The next
		// signal retries from scratch.
		metrics.RecomputeFailures.WithLabelValues("fetch").Inc()
		e.logger.Warn("History fetch failed, keeping previous alerts",
			zap.Error(err), zap.String("user_id", s.userID))
		e.mu.Lock()
		s.state = stateReady
		e.mu.Unlock()
		return
	}

	snapshot := e.calculator.Snapshot(records, e.now())
	alerts := e.generator.Generate(ctx, s.userID, snapshot)

	e.mu.Lock()
	if s.fetchSeq != token {
		// A newer signal arrived while this fetch was in flight; its
		// recompute is already queued. Publishing now would let a stale
		// result win.
		e.mu.Unlock()
		metrics.StaleResultsDiscarded.Inc()
		e.logger.Debug("Discarding stale recompute result",
			zap.String("user_id", s.userID))
		return
	}
	e.mu.Unlock()

	e.recordRiskTransition(ctx, s, snapshot.RiskLevel)
	e.publish(s.userID, snapshot, alerts)
}

// publish installs a new snapshot and alert list and fans it out to
// subscribers and the publish hook
func (e *Engine) publish(userID string, snapshot MetricsSnapshot, alerts []Alert) {
	e.mu.Lock()
	s, ok := e.sessions[userID]
	if !ok {
		e.mu.Unlock()
		return
	}
	s.state = stateReady
	s.snapshot = &snapshot
	s.alerts = alerts
	s.riskLevel = snapshot.RiskLevel
	s.hasRisk = true
	subs := make([]func([]Alert), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		subs = append(subs, fn)
	}
	e.mu.Unlock()

	for _, a := range alerts {
		metrics.AlertsPublished.WithLabelValues(string(a.Type)).Inc()
	}

	for _, fn := range subs {
		fn(append([]Alert(nil), alerts...))
	}
	if e.publishHook != nil {
		e.publishHook(userID, append([]Alert(nil), alerts...))
	}
}

// recordRiskTransition logs level changes and persists the new level so
// a future session can tell a transition from a steady state. Current
// visibility never depends on this value.
func (e *Engine) recordRiskTransition(ctx context.Context, s *session, level RiskLevel) {
	e.mu.Lock()
	prev := s.riskLevel
	had := s.hasRisk
	e.mu.Unlock()

	if had && prev == level {
		return
	}
	if had {
		e.logger.Info("Risk level changed",
			zap.String("user_id", s.userID),
			zap.String("from", string(prev)),
			zap.String("to", string(level)))
	}
	if err := e.dismissals.SetLastRiskLevel(ctx, s.userID, level); err != nil {
		e.logger.Warn("Failed to persist risk level",
			zap.Error(err), zap.String("user_id", s.userID))
	}
}
