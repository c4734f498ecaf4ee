// Package session holds the per-viewer state behind the slider UI.
//
// Every session owns its own model cache, so one session's loaded model
// never leaks into another. Requests within a session run one at a time.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"

	"github.com/kartoza/topology-explorer/internal/modelcache"
	"github.com/kartoza/topology-explorer/internal/nn"
	"github.com/kartoza/topology-explorer/internal/topology"
)

// DefaultID names the session used by requests that carry no session id
const DefaultID = "default"

// Session is one viewer's model handle and last request
type Session struct {
	ID        string    `json:"id"`
	ModelPath string    `json:"model_path"`
	CreatedAt time.Time `json:"created_at"`

	mu       sync.Mutex
	loader   *modelcache.Loader
	shape    topology.Shape
	last     topology.Params
	lastUsed time.Time
}

func newSession(id, modelPath string, shape topology.Shape, loader *modelcache.Loader) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:        id,
		ModelPath: modelPath,
		CreatedAt: now,
		loader:    loader,
		shape:     shape,
		last:      topology.DefaultParams(),
		lastUsed:  now,
	}
}

// Model loads (or returns the cached) model for this session
func (s *Session) Model() (nn.Model, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loader.Load(s.ModelPath)
}

// Predict loads the model if needed and predicts the grid for p.
// A load failure aborts before any prediction is attempted.
func (s *Session) Predict(p topology.Params) (*topology.Grid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastUsed = time.Now().UTC()

	model, err := s.loader.Load(s.ModelPath)
	if err != nil {
		return nil, err
	}

	grid, err := topology.PredictShape(model, p, s.shape)
	if err != nil {
		return nil, err
	}
	s.last = p
	return grid, nil
}

// ModelLoaded reports whether the session's model is already in memory
func (s *Session) ModelLoaded() bool {
	return s.loader.Cached(s.ModelPath)
}

// LastParams returns the parameters of the last successful prediction
func (s *Session) LastParams() topology.Params {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// LastUsed returns when the session last served a prediction
func (s *Session) LastUsed() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

// LoaderFactory builds the model cache for a new session
type LoaderFactory func() *modelcache.Loader

// Config holds session manager configuration
type Config struct {
	ModelPath   string
	Shape       topology.Shape
	MaxSessions int
	IdleTimeout time.Duration
	NewLoader   LoaderFactory
}

// Manager creates and tracks sessions. Named sessions expire after IdleTimeout
// without use and the least recently used one is evicted once MaxSessions is
// reached. The default session is held outside that bound and lives until the
// default model changes.
type Manager struct {
	mu       sync.Mutex
	cfg      Config
	sessions *expirable.LRU[string, *Session]
	def      *Session
}

// NewManager creates a session manager
func NewManager(cfg Config) *Manager {
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = 16
	}
	if cfg.Shape.Size() == 0 {
		cfg.Shape = topology.DefaultShape
	}
	if cfg.NewLoader == nil {
		cfg.NewLoader = modelcache.New
	}

	onEvict := func(id string, s *Session) {
		logrus.Debugf("Session %s evicted (model %s)", id, s.ModelPath)
	}

	return &Manager{
		cfg:      cfg,
		sessions: expirable.NewLRU[string, *Session](cfg.MaxSessions, onEvict, cfg.IdleTimeout),
	}
}

// Create starts a new session for modelPath, or the default model when empty
func (m *Manager) Create(modelPath string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if modelPath == "" {
		modelPath = m.cfg.ModelPath
	}
	s := newSession(uuid.New().String(), modelPath, m.cfg.Shape, m.cfg.NewLoader())
	m.sessions.Add(s.ID, s)
	logrus.Infof("Session %s created for model %s", s.ID, modelPath)
	return s
}

// Get returns a live session and restarts its idle timer
func (m *Manager) Get(id string) (*Session, bool) {
	if id == DefaultID {
		return m.Default(), true
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions.Get(id)
	if !ok {
		return nil, false
	}
	// Re-adding resets the expiry, which the LRU otherwise counts from insertion
	m.sessions.Add(id, s)
	return s, true
}

// Delete ends a session. It reports whether the session existed.
func (m *Manager) Delete(id string) bool {
	if id == DefaultID {
		return false
	}
	return m.sessions.Remove(id)
}

// Default returns the shared session used when a request names none
func (m *Manager) Default() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.def == nil {
		m.def = newSession(DefaultID, m.cfg.ModelPath, m.cfg.Shape, m.cfg.NewLoader())
	}
	return m.def
}

// ModelPath returns the model path new sessions start with
func (m *Manager) ModelPath() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg.ModelPath
}

// SetModelPath switches the default model and drops every session bound to the old one
func (m *Manager) SetModelPath(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cfg.ModelPath = path
	m.def = nil
	m.sessions.Purge()
	logrus.Infof("Default model switched to %s", path)
}

// Len returns the number of live named sessions
func (m *Manager) Len() int {
	return m.sessions.Len()
}
