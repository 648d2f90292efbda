// Package session owns the per-session runtime: one interpreter context,
// one reactive-state registry, one streamed-target registry, one mount
// manager, and the interaction loop that drives them against one LLM,
// wired together the way a single persistent, cooperative evaluation
// context is meant to be shared for a session's lifetime.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fenced-run/agentrt/internal/interaction"
	"github.com/fenced-run/agentrt/internal/interpreter"
	"github.com/fenced-run/agentrt/internal/llmprovider"
	"github.com/fenced-run/agentrt/internal/metrics"
	"github.com/fenced-run/agentrt/internal/mount"
	"github.com/fenced-run/agentrt/internal/reactive"
	"github.com/fenced-run/agentrt/internal/streamedtarget"
	"github.com/fenced-run/agentrt/internal/tracing"
)

// Manager holds every live session for this process. There is no
// persistence layer: a session's entire state lives in memory until Close
// removes it, per spec's "persistent storage (there is none)".
type Manager struct {
	logger *zap.Logger
	sinks  *tracing.SinkRegistry

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates an empty Manager. sinks may be nil, in which case
// interactions still run but their spans produce no trace envelopes; the
// loop's own code trace envelopes are unaffected.
func NewManager(logger *zap.Logger, sinks *tracing.SinkRegistry) *Manager {
	return &Manager{logger: logger, sinks: sinks, sessions: make(map[string]*Session)}
}

// NewSessionParams supplies everything CreateSession needs to wire a new
// session's runtime: the transport-facing outbound sink, the mount
// payload/patch forwarding hooks, and the chat client plus system prompt
// the LLM object is built from.
type NewSessionParams struct {
	Outbound       interaction.Outbound
	OnMountPayload func(mount.Payload)
	OnMountPatch   func(mountID string, patches []reactive.Patch)
	ChatClient     llmprovider.ChatClient
	SystemPrompt   string
	SkillGlobals   interpreter.Globals
	MaxTurns       int
	RunCeiling     time.Duration
}

// CreateSession builds a new Session: constructs its interpreter, registry
// trio, mount manager, and LLM, binds the core globals onto the
// interpreter, and wraps them all in an interaction.Loop.
func (m *Manager) CreateSession(p NewSessionParams) *Session {
	id := uuid.NewString()

	records := reactive.NewRegistry()
	targets := streamedtarget.NewRegistry()
	mounts := mount.NewManager(p.OnMountPayload, p.OnMountPatch)

	globals := interpreter.Globals{}
	for name, val := range p.SkillGlobals {
		globals[name] = val
	}
	ip := interpreter.New(globals)

	bindings := newRuntimeBindings(ip, records, targets, mounts)
	ip.Bind(bindings.attach)

	llm := llmprovider.NewChatLLM(p.ChatClient, p.SystemPrompt)

	loop := interaction.New(interaction.Params{
		Interpreter: ip,
		LLM:         llm,
		Targets:     targets,
		Outbound:    p.Outbound,
		MaxTurns:    p.MaxTurns,
		RunCeiling:  p.RunCeiling,
	})

	sess := &Session{
		ID:          id,
		CreatedAt:   time.Now(),
		Interpreter: ip,
		Records:     records,
		Targets:     targets,
		Mounts:      mounts,
		Loop:        loop,
	}

	m.mu.Lock()
	m.sessions[id] = sess
	m.mu.Unlock()

	if m.sinks != nil {
		m.sinks.Register(id, p.Outbound)
	}
	metrics.SessionsCreated.Inc()
	metrics.SessionsActive.Inc()

	if m.logger != nil {
		m.logger.Info("session created", zap.String("session_id", id))
	}
	return sess
}

// Get returns the session registered under id, if any.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// Close stops id's interaction loop and removes it from the Manager. A
// session that does not exist is a no-op, matching "incoming frames after
// stop are ignored" — closing twice is harmless.
func (m *Manager) Close(id string) {
	m.mu.Lock()
	sess, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return
	}
	sess.Stop()
	if m.sinks != nil {
		m.sinks.Unregister(id)
	}
	metrics.SessionsActive.Dec()
	metrics.SessionsClosed.WithLabelValues("disconnect_grace_expired").Inc()
	if m.logger != nil {
		m.logger.Info("session closed", zap.String("session_id", id))
	}
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
