package session

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/dop251/goja"

	"github.com/fenced-run/agentrt/internal/interaction"
	"github.com/fenced-run/agentrt/internal/interpreter"
	"github.com/fenced-run/agentrt/internal/metrics"
	"github.com/fenced-run/agentrt/internal/mount"
	"github.com/fenced-run/agentrt/internal/reactive"
	"github.com/fenced-run/agentrt/internal/streamedtarget"
	"github.com/fenced-run/agentrt/internal/tracing"
)

// ErrSessionNotFound is returned when a session ID has no live session.
var ErrSessionNotFound = errors.New("session: not found")

// ErrInteractionInProgress is returned when a second interaction is started
// on a session that already has one running; interactions within a session
// are serialized.
var ErrInteractionInProgress = errors.New("session: an interaction is already in progress")

// Session owns exactly one of each core resource: the persistent
// interpreter context, the reactive-state registry, the streamed-target
// registry, and the mount manager, plus the interaction loop that drives
// them against one LLM. A session's interactions are serialized; Session
// enforces that with a simple busy flag rather than a queue, since nothing
// in the spec calls for queuing a second interaction behind the first.
type Session struct {
	ID        string
	CreatedAt time.Time

	Interpreter *interpreter.Interpreter
	Records     *reactive.Registry
	Targets     *streamedtarget.Registry
	Mounts      *mount.Manager
	Loop        *interaction.Loop

	hist history
	busy atomic.Bool
}

// RunInteraction drives one interaction on this session, rejecting a second
// concurrent attempt per "the runtime rejects a second concurrent start;
// interactions are therefore serialized."
func (s *Session) RunInteraction(ctx context.Context, interactionID, userText string) error {
	if !s.busy.CompareAndSwap(false, true) {
		return ErrInteractionInProgress
	}
	defer s.busy.Store(false)

	metrics.InteractionsStarted.Inc()
	start := time.Now()
	ctx, span := tracing.StartSpan(ctx, "interaction", s.ID, interactionID)
	defer span.End()

	err := s.Loop.Run(ctx, interactionID, userText)

	outcome := "ok"
	if err != nil {
		outcome = "error"
		span.RecordError(err)
	}
	metrics.RecordInteraction(outcome, time.Since(start).Seconds(), s.Loop.LastTurns())
	return err
}

// Stop cancels any in-flight interaction on this session.
func (s *Session) Stop() {
	s.Loop.Stop()
}

// HandleUISubmit forwards an inbound ui_submit envelope to the mount
// manager. Missing/already-resolved mounts surface as
// mount.ErrUnknownMount, which callers log as unknown_ui_submit per §7.
func (s *Session) HandleUISubmit(mountID string, value any) error {
	return s.Mounts.Submit(mountID, value)
}

// HandleCallbackInvoke forwards an inbound callback_invoke envelope to the
// mount manager. args is a plain decoded-JSON value (map/slice/scalar); it
// is marshaled onto the interpreter's runtime via RunOnLoop before the
// callback runs, since a goja.Runtime is not safe to touch from an
// arbitrary goroutine. onError fires, off the caller's goroutine, if the
// mount or callback name is unknown or the callback itself returns an
// error; it must never propagate back into the
// interpreter's own control flow.
func (s *Session) HandleCallbackInvoke(mountID, name string, args any, onError func(error)) {
	s.Interpreter.RunOnLoop(func(vm *goja.Runtime) {
		val := vm.ToValue(args)
		if err := s.Mounts.InvokeCallback(mountID, name, val); err != nil && onError != nil {
			onError(err)
		}
	})
}

// RecordMessage appends msg to the session's bounded client-facing history.
// This is distinct from the model's own prompt history, which lives inside
// the LLM object the interaction loop drives and is never exposed here.
func (s *Session) RecordMessage(msg Message) {
	s.hist.append(msg)
}

// RecentHistory returns the n most recent client-facing messages, oldest
// first.
func (s *Session) RecentHistory(n int) []Message {
	return s.hist.recent(n)
}

// Message is one turn of user-visible interaction history.
type Message struct {
	ID        string
	Role      string
	Content   string
	Timestamp time.Time
}

const maxHistory = 200

// history is a bounded ring of recent Messages for client reconnection and
// operator inspection; it has no bearing on what the model sees.
type history struct {
	messages []Message
}

func (h *history) append(msg Message) {
	h.messages = append(h.messages, msg)
	if len(h.messages) > maxHistory {
		h.messages = h.messages[len(h.messages)-maxHistory:]
	}
}

func (h *history) recent(n int) []Message {
	if n >= len(h.messages) {
		return append([]Message(nil), h.messages...)
	}
	return append([]Message(nil), h.messages[len(h.messages)-n:]...)
}
