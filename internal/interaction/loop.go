package interaction

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/fenced-run/agentrt/internal/fence"
	"github.com/fenced-run/agentrt/internal/interpreter"
	"github.com/fenced-run/agentrt/internal/llmprovider"
	"github.com/fenced-run/agentrt/internal/streamedtarget"
)

// DefaultMaxTurns is the hard ceiling on model turns within one interaction.
// Exceeding it ends the interaction as if the last turn's transcript had
// been empty.
const DefaultMaxTurns = 15

// DefaultRunCeiling bounds any single code fence's execution.
const DefaultRunCeiling = 60 * time.Second

// Params configures a Loop. All fields are required except MaxTurns and
// RunCeiling, which default to DefaultMaxTurns and DefaultRunCeiling.
type Params struct {
	Interpreter *interpreter.Interpreter
	LLM         llmprovider.LLM
	Targets     *streamedtarget.Registry
	Outbound    Outbound
	MaxTurns    int
	RunCeiling  time.Duration
}

// Loop drives one session's interactions against shared, session-owned
// resources (interpreter, targets, outbound sink). Loop itself does not guard
// against concurrent Run calls; callers serialize them (session.Session
// rejects a second concurrent interaction), matching the "interactions are
// therefore serialized" scheduling rule.
type Loop struct {
	p Params

	stopped   atomic.Bool
	lastTurns atomic.Int64
}

// New creates a Loop. Zero-value MaxTurns/RunCeiling are replaced with their
// defaults.
func New(p Params) *Loop {
	if p.MaxTurns <= 0 {
		p.MaxTurns = DefaultMaxTurns
	}
	if p.RunCeiling <= 0 {
		p.RunCeiling = DefaultRunCeiling
	}
	return &Loop{p: p}
}

// Stop sets the session-level cancellation flag observed at the next segment
// boundary or turn boundary, and aborts any in-flight interpreter run.
func (l *Loop) Stop() {
	l.stopped.Store(true)
	l.p.Interpreter.Stop()
}

// Run drives one interaction to completion: TURN(0) with userText, looping
// on non-empty transcripts until the model falls silent, a turn produces an
// empty transcript, the turn cap is reached, or stop() is observed.
func (l *Loop) Run(ctx context.Context, interactionID, userText string) error {
	var transcript llmprovider.Transcript

	for turn := 0; turn < l.p.MaxTurns; turn++ {
		if l.stopped.Load() {
			l.lastTurns.Store(int64(turn))
			return nil
		}

		var stream <-chan string
		var err error
		if turn == 0 {
			stream, err = l.p.LLM.First(ctx, userText)
		} else {
			stream, err = l.p.LLM.Next(ctx, transcript)
		}
		if err != nil {
			l.p.Outbound.LogLine("error", "llm_provider_failure", map[string]any{"turn": turn, "err": err.Error()})
			l.lastTurns.Store(int64(turn + 1))
			return err
		}

		nextTranscript, more := l.runTurn(ctx, interactionID, stream)
		if l.stopped.Load() || !more {
			l.lastTurns.Store(int64(turn + 1))
			return nil
		}
		transcript = nextTranscript
	}

	l.lastTurns.Store(int64(l.p.MaxTurns))
	return nil
}

// LastTurns returns the number of model turns the most recently completed
// (or in-flight) Run call reached. Used for metrics only.
func (l *Loop) LastTurns() int {
	return int(l.lastTurns.Load())
}

// runTurn parses one model stream into segments, dispatches each per its
// kind, and collects the turn's transcript. It returns (transcript, true) if
// the transcript is non-empty (loop should continue to TURN(k+1)), or
// (zero, false) if the interaction should end.
func (l *Loop) runTurn(ctx context.Context, interactionID string, modelStream <-chan string) (llmprovider.Transcript, bool) {
	parser := fence.New()
	go parser.Run(ctx, modelStream)

	messageID := uuid.NewString()

	var pending sync.WaitGroup
	var lastCode <-chan struct{}

	var turnLogs, turnErr strings.Builder
	var logsMu sync.Mutex
	turnFailed := false

	appendResult := func(res interpreter.RunResult) {
		logsMu.Lock()
		defer logsMu.Unlock()
		turnLogs.WriteString(res.Logs)
		if res.Error != "" {
			turnErr.WriteString(res.Error)
			turnFailed = true
		}
	}

	for seg := range parser.Out() {
		if l.stopped.Load() {
			drainSegment(seg)
			continue
		}

		switch seg.Kind {
		case fence.KindProse:
			pending.Add(1)
			go func(seg fence.Segment) {
				defer pending.Done()
				for tok := range seg.Body {
					l.p.Outbound.MarkdownChunk(interactionID, messageID, tok)
				}
			}(seg)

		case fence.KindData:
			pending.Add(1)
			go func(seg fence.Segment) {
				defer pending.Done()
				l.dispatchData(seg)
			}(seg)

		case fence.KindCode:
			pending.Wait()
			if lastCode != nil {
				<-lastCode
			}
			if turnFailed {
				done := make(chan struct{})
				close(done)
				lastCode = done
				drainSegment(seg)
				continue
			}
			done := make(chan struct{})
			lastCode = done
			go func(seg fence.Segment) {
				defer close(done)
				l.runCode(ctx, interactionID, messageID, seg, appendResult)
			}(seg)
		}
	}

	pending.Wait()
	if lastCode != nil {
		<-lastCode
	}

	transcript, nonEmpty := llmprovider.NormalizeTranscript(turnLogs.String(), turnErr.String())
	return transcript, nonEmpty
}

// dispatchData implements the data-segment dispatch rule: unknown target is
// logged and the segment dropped; a known target's JSON body is teed to the
// outbound sink while concurrently concatenated, then parsed and swapped in
// wholesale once the sub-stream closes.
func (l *Loop) dispatchData(seg fence.Segment) {
	if _, ok := l.p.Targets.Lookup(seg.Target); !ok {
		l.p.Outbound.LogLine("error", "unknown_target", map[string]any{"target": seg.Target, "blockIndex": seg.Index})
		drainSegment(seg)
		return
	}

	l.p.Targets.BeginStreaming(seg.Target)
	l.p.Outbound.StreamedDataReset(seg.Target)

	var concat strings.Builder
	for tok := range seg.Body {
		concat.WriteString(tok)
		l.p.Targets.AppendChunk(seg.Target, tok)
		l.p.Outbound.StreamedDataChunk(seg.Target, tok)
	}

	var value any
	if err := json.Unmarshal([]byte(concat.String()), &value); err != nil {
		l.p.Outbound.LogLine("error", "json_error", map[string]any{"target": seg.Target, "blockIndex": seg.Index})
		return
	}
	l.p.Targets.Replace(seg.Target, value)
}

// runCode starts an interpreter run against seg's body, forwards its
// per-statement events to the outbound sink as trace frames, and folds the
// resolved RunResult into the turn transcript via record.
func (l *Loop) runCode(ctx context.Context, interactionID, messageID string, seg fence.Segment, record func(interpreter.RunResult)) {
	events, results, err := l.p.Interpreter.Start(ctx, seg.Body, l.p.RunCeiling)
	if err != nil {
		l.p.Outbound.LogLine("error", "run_already_in_progress", map[string]any{"blockIndex": seg.Index})
		drainSegment(seg)
		return
	}

	for ev := range events {
		l.p.Outbound.Trace(interactionID, messageID, ev.Delta, "code")
		if ev.Err != "" {
			code := "block_failed"
			if strings.Contains(ev.Err, "timed out after") {
				code = "run_timeout"
			}
			l.p.Outbound.LogLine("error", code, map[string]any{"blockIndex": seg.Index, "src": ev.Source})
		}
	}

	record(<-results)
}

// drainSegment discards seg's body without acting on it, keeping the parser
// goroutine unblocked when a segment is being skipped rather than dispatched.
func drainSegment(seg fence.Segment) {
	for range seg.Body {
	}
}
