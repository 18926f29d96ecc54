package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/transcribot/transcribot/internal/logger"
)

const DefaultIdleTimeout = 15 * time.Minute

type userLock struct {
	mu   sync.Mutex
	refs int
}

// Manager owns every user's session. A user with no entry is Idle.
type Manager struct {
	mu       sync.Mutex
	sessions map[int64]*Session

	locksMu sync.Mutex
	locks   map[int64]*userLock

	idleTimeout time.Duration
	onExpire    func(Session)
	now         func() time.Time

	started  atomic.Bool
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func NewManager(idleTimeout time.Duration) *Manager {
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	return &Manager{
		sessions:    make(map[int64]*Session),
		locks:       make(map[int64]*userLock),
		idleTimeout: idleTimeout,
		now:         time.Now,
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
}

// OnExpire registers a hook called for every session dropped by the janitor.
// Must be set before Start.
func (m *Manager) OnExpire(fn func(Session)) {
	m.onExpire = fn
}

// Lock serializes event handling for one user. Call the returned func to
// release it.
func (m *Manager) Lock(userID int64) func() {
	l := m.acquireEntry(userID)
	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		m.releaseEntry(userID, l)
	}
}

func (m *Manager) tryLock(userID int64) (func(), bool) {
	l := m.acquireEntry(userID)
	if !l.mu.TryLock() {
		m.releaseEntry(userID, l)
		return nil, false
	}
	return func() {
		l.mu.Unlock()
		m.releaseEntry(userID, l)
	}, true
}

func (m *Manager) acquireEntry(userID int64) *userLock {
	m.locksMu.Lock()
	defer m.locksMu.Unlock()

	l, ok := m.locks[userID]
	if !ok {
		l = &userLock{}
		m.locks[userID] = l
	}
	l.refs++
	return l
}

func (m *Manager) releaseEntry(userID int64, l *userLock) {
	m.locksMu.Lock()
	defer m.locksMu.Unlock()

	l.refs--
	if l.refs == 0 {
		delete(m.locks, userID)
	}
}

// Get returns the user's session, or an Idle session if there is none
func (m *Manager) Get(userID int64) Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[userID]; ok {
		return s.clone()
	}
	return Session{UserID: userID, State: Idle}
}

// Begin starts a new job. From AwaitingFile or AwaitingLanguageChoice it
// starts over and drops whatever was collected.
func (m *Manager) Begin(userID int64) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[userID]; ok && s.State == Processing {
		return s.clone(), ErrBusy
	}

	now := m.now()
	s := &Session{
		UserID:    userID,
		State:     AwaitingFile,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.sessions[userID] = s
	return s.clone(), nil
}

// AttachFile records a validated upload: AwaitingFile → AwaitingLanguageChoice
func (m *Manager) AttachFile(userID int64, file File) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.expect(userID, AwaitingFile, "attach a file")
	if err != nil {
		return m.snapshot(userID), err
	}

	s.File = &file
	s.Targets = nil
	s.State = AwaitingLanguageChoice
	s.UpdatedAt = m.now()
	return s.clone(), nil
}

// ToggleTarget adds or removes a target language
func (m *Manager) ToggleTarget(userID int64, lang string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.expect(userID, AwaitingLanguageChoice, "choose a language")
	if err != nil {
		return m.snapshot(userID), err
	}

	kept := s.Targets[:0]
	removed := false
	for _, t := range s.Targets {
		if t == lang {
			removed = true
			continue
		}
		kept = append(kept, t)
	}
	s.Targets = kept
	if !removed {
		s.Targets = append(s.Targets, lang)
	}
	s.UpdatedAt = m.now()
	return s.clone(), nil
}

// SetMessageID remembers the message carrying the language keyboard
func (m *Manager) SetMessageID(userID int64, messageID int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[userID]; ok {
		s.MessageID = messageID
	}
}

// Submit moves AwaitingLanguageChoice → Processing and assigns a job id.
// It is the only way into Processing.
func (m *Manager) Submit(userID int64) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.expect(userID, AwaitingLanguageChoice, "submit")
	if err != nil {
		return m.snapshot(userID), err
	}

	s.State = Processing
	s.JobID = uuid.NewString()
	s.UpdatedAt = m.now()
	return s.clone(), nil
}

// Complete ends the job and returns the user to Idle. It reports false if
// the session no longer runs jobID, in which case the result must not be
// delivered.
func (m *Manager) Complete(userID int64, jobID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[userID]
	if !ok || s.State != Processing || s.JobID != jobID {
		return false
	}
	delete(m.sessions, userID)
	return true
}

// Cancel discards the session from any state and returns the state it was in
func (m *Manager) Cancel(userID int64) State {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[userID]
	if !ok {
		return Idle
	}
	delete(m.sessions, userID)
	return s.State
}

// Count returns the number of non-idle sessions
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) expect(userID int64, want State, event string) (*Session, error) {
	s, ok := m.sessions[userID]
	if !ok {
		return nil, &TransitionError{From: Idle, Event: event}
	}
	if s.State == want {
		return s, nil
	}
	if s.State == Processing {
		return nil, ErrBusy
	}
	return nil, &TransitionError{From: s.State, Event: event}
}

func (m *Manager) snapshot(userID int64) Session {
	if s, ok := m.sessions[userID]; ok {
		return s.clone()
	}
	return Session{UserID: userID, State: Idle}
}

// Start runs the idle janitor until ctx is done or Stop is called
func (m *Manager) Start(ctx context.Context) {
	if !m.started.CompareAndSwap(false, true) {
		return
	}

	interval := m.idleTimeout / 4
	if interval < time.Second {
		interval = time.Second
	}

	go func() {
		defer close(m.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				m.ExpireIdle()
			case <-ctx.Done():
				return
			case <-m.stop:
				return
			}
		}
	}()
}

// Stop halts the janitor started by Start
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		close(m.stop)
	})
	if m.started.Load() {
		<-m.done
	}
}

// ExpireIdle drops sessions idle longer than the timeout. Sessions in
// Processing and users whose events are being handled right now are skipped.
func (m *Manager) ExpireIdle() []Session {
	now := m.now()

	m.mu.Lock()
	var candidates []int64
	for id, s := range m.sessions {
		if s.State != Processing && now.Sub(s.UpdatedAt) > m.idleTimeout {
			candidates = append(candidates, id)
		}
	}
	m.mu.Unlock()

	var expired []Session
	for _, id := range candidates {
		unlock, ok := m.tryLock(id)
		if !ok {
			continue
		}

		m.mu.Lock()
		s, exists := m.sessions[id]
		if exists && s.State != Processing && now.Sub(s.UpdatedAt) > m.idleTimeout {
			delete(m.sessions, id)
			expired = append(expired, s.clone())
		}
		m.mu.Unlock()
		unlock()
	}

	for _, s := range expired {
		logger.Debug("Session expired", map[string]interface{}{
			"user_id": s.UserID,
			"state":   s.State.String(),
		})
		if m.onExpire != nil {
			m.onExpire(s)
		}
	}

	return expired
}
