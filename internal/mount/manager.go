// Package mount implements the mount manager (C4): server-side UI mount
// registration, patch forwarding for an attached reactive record, and
// pending-result dispatch for inbound submissions and named callbacks.
package mount

import (
	"errors"
	"sync"

	"github.com/dop251/goja"
	"github.com/google/uuid"
	"github.com/xeipuuv/gojsonschema"

	"github.com/fenced-run/agentrt/internal/reactive"
)

// ErrUnknownMount is returned when a submission or callback invocation names
// a mount identifier with no pending registration.
var ErrUnknownMount = errors.New("mount: unknown or already-resolved mount")

// Options mirrors the fields accepted by the interpreter-facing mount()
// global.
type Options struct {
	Data           *reactive.Record
	StreamedDataID string
	OutputSchema   any
	Callbacks      map[string]goja.Callable
	UISource       string
}

// Payload is the server-side projection of a mount, ready for the transport
// layer to turn into an outbound `mount` envelope.
type Payload struct {
	MountID        string
	UISource       string
	InitialData    map[string]any
	HasInitialData bool
	StreamedDataID string
	OutputSchema   any
	CallbackNames  []string
}

// Handle is returned to interpreter code: the mount identifier plus a
// channel receiving exactly one value, the eventual submission.
type Handle struct {
	ID     string
	Result <-chan any
}

type pendingMount struct {
	schema    *gojsonschema.Schema
	callbacks map[string]goja.Callable
	result    chan any
	unsub     func()
}

// Manager owns every mount registered within one session.
type Manager struct {
	onPayload func(Payload)
	onPatch   func(mountID string, patches []reactive.Patch)

	mu      sync.Mutex
	pending map[string]*pendingMount
}

// NewManager creates a Manager. onPayload is invoked synchronously for every
// newly registered mount (the transport wiring turns it into an outbound
// frame); onPatch is invoked, one patch per call, from a per-mount goroutine
// that drains the attached reactive record's subscription channel.
func NewManager(onPayload func(Payload), onPatch func(string, []reactive.Patch)) *Manager {
	return &Manager{
		onPayload: onPayload,
		onPatch:   onPatch,
		pending:   make(map[string]*pendingMount),
	}
}

// Register creates a new mount from opts and dispatches its outbound
// payload. Returns the handle exposed to interpreter code.
func (m *Manager) Register(opts Options) *Handle {
	id := uuid.NewString()

	pm := &pendingMount{
		callbacks: opts.Callbacks,
		result:    make(chan any, 1),
	}

	var schema *gojsonschema.Schema
	if opts.OutputSchema != nil {
		if s, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(opts.OutputSchema)); err == nil {
			schema = s
		}
	}
	pm.schema = schema

	payload := Payload{
		MountID:        id,
		UISource:       opts.UISource,
		StreamedDataID: opts.StreamedDataID,
		OutputSchema:   opts.OutputSchema,
	}
	for name := range opts.Callbacks {
		payload.CallbackNames = append(payload.CallbackNames, name)
	}

	if opts.Data != nil {
		payload.InitialData = opts.Data.Snapshot()
		payload.HasInitialData = true
		ch, cancel := opts.Data.Subscribe()
		pm.unsub = cancel
		go func() {
			for p := range ch {
				if m.onPatch != nil {
					m.onPatch(id, []reactive.Patch{p})
				}
			}
		}()
	}

	m.mu.Lock()
	m.pending[id] = pm
	m.mu.Unlock()

	if m.onPayload != nil {
		m.onPayload(payload)
	}

	return &Handle{ID: id, Result: pm.result}
}

// Submit fulfills the pending result for mountID with value. The first
// submission for a given mount resolves it and tears down its patch
// subscription; any later submission for the same (now-gone) identifier
// returns ErrUnknownMount, matching the "unknown_ui_submit" taxonomy.
func (m *Manager) Submit(mountID string, value any) error {
	m.mu.Lock()
	pm, ok := m.pending[mountID]
	if ok {
		delete(m.pending, mountID)
	}
	m.mu.Unlock()
	if !ok {
		return ErrUnknownMount
	}
	if pm.schema != nil {
		// Validation failures are not fatal: the value is still delivered
		// to interpreter code, which can inspect it; this mirrors a runtime
		// that has no server-side form-binder to reject with.
		_, _ = pm.schema.Validate(gojsonschema.NewGoLoader(value))
	}
	pm.result <- value
	close(pm.result)
	if pm.unsub != nil {
		pm.unsub()
	}
	return nil
}

// InvokeCallback dispatches a named callback for mountID. Errors thrown by
// the callback are returned to the caller to log; they must never be
// allowed to propagate into the interpreter's own control flow.
func (m *Manager) InvokeCallback(mountID, name string, args goja.Value) error {
	m.mu.Lock()
	pm, ok := m.pending[mountID]
	m.mu.Unlock()
	if !ok {
		return ErrUnknownMount
	}
	fn, ok := pm.callbacks[name]
	if !ok {
		return ErrUnknownMount
	}
	_, err := fn(goja.Undefined(), args)
	return err
}
