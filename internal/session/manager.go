package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/mind-engage/mindengage-learn/internal/course"
	"github.com/mind-engage/mindengage-learn/internal/platform/logger"
)

var ErrNotFound = errors.New("session: not found")

// Manager owns every open session. Sessions idle longer than the TTL are
// closed by Sweep, which also retries unacknowledged completions.
type Manager struct {
	deps    Deps
	idleTTL time.Duration
	log     *logger.Logger
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
	cron     *cron.Cron
}

func NewManager(deps Deps, idleTTL time.Duration) *Manager {
	if idleTTL <= 0 {
		idleTTL = 30 * time.Minute
	}
	return &Manager{
		deps:     deps,
		idleTTL:  idleTTL,
		log:      logger.OrNop(deps.Log),
		now:      time.Now,
		sessions: map[string]*Session{},
	}
}

func (m *Manager) Open(ctx context.Context, who Identity, courseID course.CourseID) (*Session, error) {
	id := uuid.NewString()
	s, err := Open(ctx, id, m.deps, who, courseID)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.sessions[id] = s
	n := len(m.sessions)
	m.mu.Unlock()
	m.log.Info("session opened", "session_id", id, "course_id", courseID, "subject", who.Subject, "open_sessions", n)
	return s, nil
}

// Get returns the session if who opened it, with the same token. A session
// owned by someone else is reported as missing.
func (m *Manager) Get(id string, who Identity) (*Session, error) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok || !s.ownedBy(who) {
		return nil, ErrNotFound
	}
	s.touch()
	return s, nil
}

func (m *Manager) Close(id string, who Identity) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if !ok || !s.ownedBy(who) {
		m.mu.Unlock()
		return ErrNotFound
	}
	delete(m.sessions, id)
	m.mu.Unlock()
	s.Close()
	return nil
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// SweepResult summarizes one Sweep pass.
type SweepResult struct {
	Expired    int
	Reconciled int
	Failed     int
}

// Sweep closes idle sessions and retries failed completions on the rest.
// An expiring session gets one last reconcile attempt before it is closed.
func (m *Manager) Sweep(ctx context.Context) SweepResult {
	cutoff := m.now().Add(-m.idleTTL)
	m.mu.Lock()
	var live, expired []*Session
	for id, s := range m.sessions {
		if s.idleSince().Before(cutoff) {
			expired = append(expired, s)
			delete(m.sessions, id)
			continue
		}
		live = append(live, s)
	}
	m.mu.Unlock()

	var res SweepResult
	for _, s := range append(live, expired...) {
		n, err := s.Reconcile(ctx)
		res.Reconciled += n
		if err != nil {
			res.Failed++
			m.log.Debug("reconcile incomplete", "session_id", s.ID, "error", err)
		}
	}
	for _, s := range expired {
		s.Close()
		res.Expired++
	}
	if res.Expired > 0 || res.Reconciled > 0 || res.Failed > 0 {
		m.log.Info("session sweep", "expired", res.Expired, "reconciled", res.Reconciled, "failed", res.Failed)
	}
	return res
}

// Start runs Sweep on the cron schedule until Stop.
func (m *Manager) Start(schedule string) error {
	c := cron.New()
	if _, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		m.Sweep(ctx)
	}); err != nil {
		return err
	}
	m.mu.Lock()
	m.cron = c
	m.mu.Unlock()
	c.Start()
	m.log.Info("session sweeper started", "schedule", schedule)
	return nil
}

// Stop halts the sweeper, waits for a running sweep, and closes every
// session.
func (m *Manager) Stop() {
	m.mu.Lock()
	c := m.cron
	m.cron = nil
	all := make([]*Session, 0, len(m.sessions))
	for id, s := range m.sessions {
		all = append(all, s)
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}
	for _, s := range all {
		s.Close()
	}
}
