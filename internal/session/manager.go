// Package session runs import and execute batches as asynchronous,
// pollable sessions. Each session is driven by exactly one goroutine; pollers
// only ever receive deep copies of published snapshots.
package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"fjacquet/stmt-import/internal/commit"
	"fjacquet/stmt-import/internal/logging"
	"fjacquet/stmt-import/internal/models"
	"fjacquet/stmt-import/internal/oracle"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned for an unknown session id.
	ErrNotFound = errors.New("session not found")

	// ErrClosed is returned when submitting to a closed Manager.
	ErrClosed = errors.New("session manager is closed")
)

// EntityProvider supplies the entity lookup and alias table, read fresh at
// the start of every import session.
type EntityProvider interface {
	ListEntities(ctx context.Context) (models.EntityLookup, error)
	ListAliases(ctx context.Context) (models.AliasTable, error)
}

// RuleStore finds and records applications of correction rules.
type RuleStore interface {
	FindMatchingRule(ctx context.Context, description string) (*models.CorrectionRule, error)
	RecordApplication(ctx context.Context, ruleID string) error
}

// History reports whether a checksum has already been committed.
type History interface {
	HasTransaction(ctx context.Context, checksum string) (bool, error)
}

// Committer commits one confirmed transaction.
type Committer interface {
	Commit(ctx context.Context, txn models.ConfirmedTransaction) (commit.Outcome, error)
}

// Recorder persists session snapshots so progress outlives the process.
type Recorder interface {
	SaveSession(ctx context.Context, s *models.ImportSession) error
	LoadSession(ctx context.Context, id string) (*models.ImportSession, error)
}

// Deps are the collaborators of a Manager. Oracle, History and Recorder are
// optional.
type Deps struct {
	Entities  EntityProvider
	Rules     RuleStore
	Oracle    oracle.Oracle
	History   History
	Committer Committer
	Recorder  Recorder
}

// Manager owns all sessions of the process.
type Manager struct {
	deps      Deps
	threshold float64
	logger    logging.Logger
	now       func() time.Time

	mu       sync.RWMutex
	sessions map[string]*models.ImportSession
	done     map[string]chan struct{}
	closed   bool
	wg       sync.WaitGroup
}

// NewManager creates a Manager. Oracle proposals below confidenceThreshold
// are treated as misses.
func NewManager(deps Deps, confidenceThreshold float64, logger logging.Logger) *Manager {
	if logger == nil {
		logger = logging.NewDiscardLogger()
	}
	return &Manager{
		deps:      deps,
		threshold: confidenceThreshold,
		logger:    logger,
		now:       time.Now,
		sessions:  make(map[string]*models.ImportSession),
		done:      make(map[string]chan struct{}),
	}
}

// GetImportProgress returns a snapshot of the session. Sessions from earlier
// processes are loaded from the Recorder when one is configured.
func (m *Manager) GetImportProgress(ctx context.Context, sessionID string) (*models.ImportSession, error) {
	m.mu.RLock()
	s, ok := m.sessions[sessionID]
	m.mu.RUnlock()
	if ok {
		return s.Clone(), nil
	}

	if m.deps.Recorder != nil {
		s, err := m.deps.Recorder.LoadSession(ctx, sessionID)
		if err == nil {
			return s, nil
		}
		m.logger.WithError(err).Debug("Session not found in recorder",
			logging.F(logging.FieldSessionID, sessionID))
	}
	return nil, fmt.Errorf("%s: %w", sessionID, ErrNotFound)
}

// List returns snapshots of every in-process session, oldest first.
func (m *Manager) List() []*models.ImportSession {
	m.mu.RLock()
	out := make([]*models.ImportSession, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s.Clone())
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].SessionID < out[j].SessionID
	})
	return out
}

// Wait blocks until the session is terminal or ctx is done, and returns the
// final snapshot.
func (m *Manager) Wait(ctx context.Context, sessionID string) (*models.ImportSession, error) {
	m.mu.RLock()
	done, ok := m.done[sessionID]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%s: %w", sessionID, ErrNotFound)
	}

	select {
	case <-done:
		return m.GetImportProgress(ctx, sessionID)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops accepting sessions and waits for running ones to finish.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// worker is the single owner of one session's live state.
type worker struct {
	m    *Manager
	live *models.ImportSession
	log  logging.Logger
}

// start registers a pending session, schedules run on its own goroutine and
// returns the session id. s belongs to the worker afterwards.
func (m *Manager) start(ctx context.Context, s *models.ImportSession, run func(ctx context.Context, w *worker) error) (string, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return "", ErrClosed
	}
	s.SessionID = uuid.NewString()
	s.Status = models.SessionStatusPending
	s.CreatedAt = m.now().UTC()
	s.UpdatedAt = s.CreatedAt
	m.sessions[s.SessionID] = s.Clone()
	done := make(chan struct{})
	m.done[s.SessionID] = done
	m.wg.Add(1)
	m.mu.Unlock()

	id := s.SessionID
	w := &worker{
		m:    m,
		live: s,
		log: m.logger.WithFields(
			logging.F(logging.FieldSessionID, s.SessionID),
			logging.F(logging.FieldSessionKind, s.Kind)),
	}
	w.record(ctx)
	w.log.Info("Session created", logging.F(logging.FieldTotal, s.Total))

	// The caller's request ends before the session does.
	bg := context.WithoutCancel(ctx)
	go func() {
		defer m.wg.Done()
		defer close(done)
		w.drive(bg, run)
	}()
	return id, nil
}

func (w *worker) drive(ctx context.Context, run func(ctx context.Context, w *worker) error) {
	started := time.Now()
	defer func() {
		if r := recover(); r != nil {
			w.fail(ctx, fmt.Errorf("internal error: %v", r))
		}
		w.log.Debug("Session finished",
			logging.F(logging.FieldStatus, w.live.Status),
			logging.F(logging.FieldDuration, time.Since(started)))
	}()

	w.live.Status = models.SessionStatusProcessing
	w.publish()

	if err := run(ctx, w); err != nil {
		w.fail(ctx, err)
		return
	}
	w.complete(ctx)
}

// publish makes the live state visible to pollers. The published view
// shares the append-only buckets with the live state, so publishing costs
// the same for every item; readers deep-copy it in GetImportProgress.
func (w *worker) publish() {
	w.live.UpdatedAt = w.m.now().UTC()
	snapshot := w.live.View()
	w.m.mu.Lock()
	w.m.sessions[snapshot.SessionID] = snapshot
	w.m.mu.Unlock()
}

func (w *worker) record(ctx context.Context) {
	if w.m.deps.Recorder == nil {
		return
	}
	if err := w.m.deps.Recorder.SaveSession(ctx, w.live.Clone()); err != nil {
		w.log.WithError(err).Warn("Failed to record session")
	}
}

func (w *worker) complete(ctx context.Context) {
	now := w.m.now().UTC()
	w.live.Status = models.SessionStatusCompleted
	w.live.CompletedAt = &now
	w.publish()
	w.record(ctx)
	w.log.Info("Session completed",
		logging.F(logging.FieldCount, w.live.ProcessedCount),
		logging.F(logging.FieldTotal, w.live.Total))
}

func (w *worker) fail(ctx context.Context, err error) {
	now := w.m.now().UTC()
	w.live.Status = models.SessionStatusFailed
	w.live.Error = err.Error()
	w.live.CompletedAt = &now
	w.publish()
	w.record(ctx)
	w.log.WithError(err).Error("Session failed",
		logging.F(logging.FieldCount, w.live.ProcessedCount),
		logging.F(logging.FieldTotal, w.live.Total))
}
