package interaction

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fenced-run/agentrt/internal/interpreter"
	"github.com/fenced-run/agentrt/internal/llmprovider"
	"github.com/fenced-run/agentrt/internal/streamedtarget"
)

// fakeLLM scripts one model-stream body per turn. Once the script is
// exhausted it yields an empty stream, matching an interaction that should
// end. It records every transcript passed to Next for assertions.
type fakeLLM struct {
	mu         sync.Mutex
	scripts    []string
	turn       int
	transcript []llmprovider.Transcript
}

func (f *fakeLLM) First(ctx context.Context, userText string) (<-chan string, error) {
	return f.stream(), nil
}

func (f *fakeLLM) Next(ctx context.Context, t llmprovider.Transcript) (<-chan string, error) {
	f.mu.Lock()
	f.transcript = append(f.transcript, t)
	f.mu.Unlock()
	return f.stream(), nil
}

func (f *fakeLLM) stream() <-chan string {
	f.mu.Lock()
	idx := f.turn
	f.turn++
	var body string
	if idx < len(f.scripts) {
		body = f.scripts[idx]
	}
	f.mu.Unlock()

	out := make(chan string, 1)
	go func() {
		defer close(out)
		if body != "" {
			out <- body
		}
	}()
	return out
}

// fakeOutbound records every frame the loop emits.
type fakeOutbound struct {
	mu       sync.Mutex
	chunks   []string
	traces   []string
	logs     []string
	streamed []string
}

func (f *fakeOutbound) MarkdownChunk(interactionID, messageID, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chunks = append(f.chunks, text)
}

func (f *fakeOutbound) StreamedDataReset(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.streamed = append(f.streamed, "reset:"+id)
}

func (f *fakeOutbound) StreamedDataChunk(id, chunk string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.streamed = append(f.streamed, "chunk:"+chunk)
}

func (f *fakeOutbound) Trace(interactionID, messageID, text, category string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.traces = append(f.traces, text)
}

func (f *fakeOutbound) LogLine(lvl, code string, fields map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs = append(f.logs, code)
}

func (f *fakeOutbound) snapshotChunks() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.chunks))
	copy(out, f.chunks)
	return out
}

func (f *fakeOutbound) snapshotLogs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.logs))
	copy(out, f.logs)
	return out
}

// S1 — echo loop termination: a plain-prose model stream produces zero code
// segments and an empty transcript, ending the interaction after turn 0.
func TestEchoLoopTerminatesAfterTurnZero(t *testing.T) {
	llm := &fakeLLM{scripts: []string{"Hi"}}
	outbound := &fakeOutbound{}
	loop := New(Params{
		Interpreter: interpreter.New(nil),
		LLM:         llm,
		Targets:     streamedtarget.NewRegistry(),
		Outbound:    outbound,
	})

	err := loop.Run(context.Background(), "itx-1", "hello")
	require.NoError(t, err)
	require.Equal(t, "Hi", strings.Join(outbound.snapshotChunks(), ""))
	require.Equal(t, 1, llm.turn, "Next must never be called: turn 0 already ended the interaction")
}

// #16 — a data fence naming an unregistered target logs unknown_target
// exactly once and the interaction still ends normally (no later segment in
// the turn is affected since there isn't one).
func TestUnknownTargetLogsOnceAndInteractionEnds(t *testing.T) {
	script := "before\n```json agent.data => \"missing\"\n{\"a\":1}\n```\nafter"
	llm := &fakeLLM{scripts: []string{script}}
	outbound := &fakeOutbound{}
	loop := New(Params{
		Interpreter: interpreter.New(nil),
		LLM:         llm,
		Targets:     streamedtarget.NewRegistry(),
		Outbound:    outbound,
	})

	err := loop.Run(context.Background(), "itx-2", "hello")
	require.NoError(t, err)

	logs := outbound.snapshotLogs()
	count := 0
	for _, c := range logs {
		if c == "unknown_target" {
			count++
		}
	}
	require.Equal(t, 1, count)
}

// A code fence that logs via console.log feeds a non-empty transcript into
// turn 1; once turn 1's stream is plain prose, the interaction ends there.
func TestCodeExecutionFeedsNextTurnTranscript(t *testing.T) {
	turn0 := "```tsx agent.run\nconsole.log(\"3\");\n```\n"
	llm := &fakeLLM{scripts: []string{turn0, "done"}}
	outbound := &fakeOutbound{}
	loop := New(Params{
		Interpreter: interpreter.New(nil),
		LLM:         llm,
		Targets:     streamedtarget.NewRegistry(),
		Outbound:    outbound,
		RunCeiling:  5 * time.Second,
	})

	err := loop.Run(context.Background(), "itx-3", "hello")
	require.NoError(t, err)

	llm.mu.Lock()
	defer llm.mu.Unlock()
	require.Len(t, llm.transcript, 1)
	require.Equal(t, "3", llm.transcript[0].Logs)
}

// #14 — termination: a model that always emits a console-logging code fence
// (an unbounded-looking stream) still terminates within MaxTurns turns.
func TestMaxTurnsCapBoundsTheLoop(t *testing.T) {
	turn := "```tsx agent.run\nconsole.log(\"x\");\n```\n"
	scripts := make([]string, 20)
	for i := range scripts {
		scripts[i] = turn
	}
	llm := &fakeLLM{scripts: scripts}
	outbound := &fakeOutbound{}
	loop := New(Params{
		Interpreter: interpreter.New(nil),
		LLM:         llm,
		Targets:     streamedtarget.NewRegistry(),
		Outbound:    outbound,
		MaxTurns:    3,
		RunCeiling:  5 * time.Second,
	})

	err := loop.Run(context.Background(), "itx-4", "hello")
	require.NoError(t, err)
	require.LessOrEqual(t, llm.turn, 3)
}

// Stop() ends the loop promptly: subsequent segments are drained, not
// dispatched, and the interaction returns without error.
func TestStopEndsLoopPromptly(t *testing.T) {
	turn := "```tsx agent.run\nconsole.log(\"x\");\n```\n"
	scripts := make([]string, 20)
	for i := range scripts {
		scripts[i] = turn
	}
	llm := &fakeLLM{scripts: scripts}
	outbound := &fakeOutbound{}
	loop := New(Params{
		Interpreter: interpreter.New(nil),
		LLM:         llm,
		Targets:     streamedtarget.NewRegistry(),
		Outbound:    outbound,
		RunCeiling:  5 * time.Second,
	})

	go func() {
		time.Sleep(10 * time.Millisecond)
		loop.Stop()
	}()

	err := loop.Run(context.Background(), "itx-5", "hello")
	require.NoError(t, err)
}
