// Package interpreter implements the streaming code interpreter (C3): a
// persistent, shared-scope evaluation context that executes statements as
// their source text streams in, hoisting top-level bindings, capturing
// console output, and enforcing run timeouts.
package interpreter

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/console"
	"github.com/dop251/goja_nodejs/eventloop"
	"github.com/dop251/goja_nodejs/require"
)

// ErrRunInProgress is returned by Start when a run is already active; the
// scheduling model permits at most one run per interpreter at a time.
var ErrRunInProgress = errors.New("interpreter: run already in progress")

// StatementEvent reports the outcome of one executed statement.
type StatementEvent struct {
	Source string
	Delta  string
	Err    string
}

// RunResult is the concatenation of all statement deltas and, if execution
// failed, the formatted error of the first failing statement.
type RunResult struct {
	Logs  string
	Error string
}

// Globals are host-provided identifiers injected into the shared context at
// construction time, such as credential-holding skill globals. The core
// mount()/wrap() family is bound separately through Bind; no Data or
// StreamedData global is defined by this package or its callers.
type Globals map[string]any

// Interpreter is a single persistent, cooperative evaluation context shared
// by every run within one session.
type Interpreter struct {
	globals Globals
	bind    func(vm *goja.Runtime)

	initOnce sync.Once
	loop     *eventloop.EventLoop
	printer  *capturePrinter

	mu      sync.Mutex
	running bool
	vm      *goja.Runtime
}

// New creates an Interpreter. The shared context is not built until the
// first Start call.
func New(globals Globals) *Interpreter {
	return &Interpreter{globals: globals, printer: &capturePrinter{}}
}

// Bind registers a callback invoked once, with the live runtime, right
// after the static Globals are set. Use it for host identifiers that need
// the runtime itself to construct (objects, bound methods) rather than a
// plain value — the mount()/wrap() family. Must be called before the first
// Start; a call after initialization has no effect.
func (ip *Interpreter) Bind(fn func(vm *goja.Runtime)) {
	ip.bind = fn
}

func (ip *Interpreter) ensureInitialized() {
	ip.initOnce.Do(func() {
		registry := new(require.Registry)
		registry.RegisterNativeModule(console.ModuleName, console.RequireWithPrinter(ip.printer))
		ip.loop = eventloop.NewEventLoop(eventloop.WithRegistry(registry))
		ip.loop.Run(func(vm *goja.Runtime) {
			console.Enable(vm)
			for name, val := range ip.globals {
				vm.Set(name, val)
			}
			if ip.bind != nil {
				ip.bind(vm)
			}
			ip.mu.Lock()
			ip.vm = vm
			ip.mu.Unlock()
		})
	})
}

// Start begins a new run against body, a stream of source text tokens
// (typically a code segment's sub-stream). It returns immediately with two
// channels: one reporting each completed statement, the other receiving
// exactly one RunResult when the run resolves (then both are closed). It
// returns ErrRunInProgress synchronously if a run is already active.
func (ip *Interpreter) Start(ctx context.Context, body <-chan string, ceiling time.Duration) (<-chan StatementEvent, <-chan RunResult, error) {
	ip.mu.Lock()
	if ip.running {
		ip.mu.Unlock()
		return nil, nil, ErrRunInProgress
	}
	ip.running = true
	ip.mu.Unlock()

	ip.ensureInitialized()

	events := make(chan StatementEvent, 16)
	results := make(chan RunResult, 1)

	go ip.drive(ctx, body, ceiling, events, results)
	return events, results, nil
}

// RunOnLoop schedules fn to run on the interpreter's single cooperative
// goroutine without blocking the caller. Host bindings that fire from
// arbitrary goroutines (a mount's pending result resolving, a reactive
// record's patch reaching a subscribe listener) use this rather than
// touching the runtime directly, since a goja.Runtime is not safe for
// concurrent use.
func (ip *Interpreter) RunOnLoop(fn func(vm *goja.Runtime)) {
	ip.ensureInitialized()
	ip.loop.RunOnLoop(fn)
}

// Stop aborts the current run, if any. Any in-flight statement rejects with
// "Execution stopped" and the run resolves with that as its error. A call
// with no run in progress is a no-op.
func (ip *Interpreter) Stop() {
	ip.mu.Lock()
	vm := ip.vm
	running := ip.running
	ip.mu.Unlock()
	if running && vm != nil {
		vm.Interrupt("Execution stopped")
	}
}

func (ip *Interpreter) drive(ctx context.Context, body <-chan string, ceiling time.Duration, events chan StatementEvent, results chan RunResult) {
	defer func() {
		ip.mu.Lock()
		ip.running = false
		ip.mu.Unlock()
		close(events)
	}()

	var scanner statementScanner
	var logs, execErr string
	failed := false

	timer := time.AfterFunc(ceiling, func() {
		ip.mu.Lock()
		vm := ip.vm
		ip.mu.Unlock()
		if vm != nil {
			vm.Interrupt(fmt.Sprintf("timed out after %dms", ceiling.Milliseconds()))
		}
	})
	defer timer.Stop()

drainLoop:
	for {
		select {
		case <-ctx.Done():
			failed = true
			execErr = "Execution stopped"
			break drainLoop
		case chunk, ok := <-body:
			if !ok {
				break drainLoop
			}
			if failed {
				continue // discard remaining text once a statement has failed
			}
			for i := 0; i < len(chunk); i++ {
				if !scanner.feedByte(chunk[i]) {
					continue
				}
				src := scanner.pending()
				delta, stmtErr, ranOK, incomplete := ip.execute(src)
				if incomplete {
					// Probe failed to compile: the trigger ';' sits inside a
					// string, template literal, regex, or block comment.
					// Keep accumulating rather than treating this as a
					// failed statement (spec §4.3).
					continue
				}
				logs += delta
				events <- StatementEvent{Source: src, Delta: delta, Err: stmtErr}
				scanner.reset()
				if !ranOK {
					failed = true
					execErr = stmtErr
					break
				}
			}
		}
	}

	if !failed {
		// Any remaining buffer at stream end gets exactly one execution
		// attempt regardless of probe outcome: there is no more input to
		// accumulate into it, so an incomplete tail here is a genuine
		// failure, not a deferral.
		if tail := scanner.pending(); len(tail) > 0 {
			delta, stmtErr, ranOK, incomplete := ip.execute(tail)
			if incomplete {
				stmtErr = "Incomplete statement"
			}
			logs += delta
			events <- StatementEvent{Source: tail, Delta: delta, Err: stmtErr}
			if !ranOK {
				failed = true
				execErr = stmtErr
			}
		}
	}

	ip.mu.Lock()
	if ip.vm != nil {
		ip.vm.ClearInterrupt()
	}
	ip.mu.Unlock()

	results <- RunResult{Logs: logs, Error: execErr}
	close(results)
}

// execute probes src for syntactic completeness; if incomplete it returns
// incomplete=true without touching the shared context at all — the caller
// is expected to keep accumulating bytes and retry once more arrives,
// matching how a ';' inside a string, template literal, regex, or block
// comment naturally defers the statement boundary. If complete, it wraps
// and executes src against the shared runtime, returning the console delta
// produced and any execution error.
func (ip *Interpreter) execute(src string) (delta string, errMsg string, ranOK bool, incomplete bool) {
	kind, names := classifyStatement(src)
	wrapped := wrapStatement(src, kind, names)

	if _, err := goja.Compile("probe", wrapped, false); err != nil {
		return "", "", false, true
	}

	ip.mu.Lock()
	vm := ip.vm
	ip.mu.Unlock()

	var promiseVal goja.Value
	var syncErr error
	ip.loop.Run(func(vm *goja.Runtime) {
		v, err := vm.RunString(wrapped)
		if err != nil {
			syncErr = err
			return
		}
		promiseVal = v
	})

	delta = ip.printer.drain()

	if syncErr != nil {
		if ie, ok := syncErr.(*goja.InterruptedError); ok {
			return delta, fmt.Sprint(ie.Value()), false, false
		}
		return delta, syncErr.Error(), false, false
	}

	if promiseVal == nil {
		return delta, "", true, false
	}
	p, ok := promiseVal.Export().(*goja.Promise)
	if !ok {
		return delta, "", true, false
	}
	switch p.State() {
	case goja.PromiseStateRejected:
		return delta, formatError(vm, p.Result()), false, false
	default:
		if kind != stmtOther {
			hoist(vm, p.Result(), names)
		}
		return delta, "", true, false
	}
}

func hoist(vm *goja.Runtime, result goja.Value, names []string) {
	if vm == nil || result == nil || len(names) == 0 {
		return
	}
	obj, ok := result.(*goja.Object)
	if !ok {
		if len(names) == 1 {
			vm.Set(names[0], result)
		}
		return
	}
	for _, name := range names {
		vm.Set(name, obj.Get(name))
	}
}

func formatError(vm *goja.Runtime, val goja.Value) string {
	if val == nil {
		return ""
	}
	if obj, ok := val.(*goja.Object); ok {
		if m := obj.Get("message"); m != nil && !goja.IsUndefined(m) {
			return m.String()
		}
	}
	return val.String()
}

// wrapStatement produces the IIFE-wrapped source for one statement per the
// three execution-envelope cases: declaration (hoist bound names via a
// returned object), named function declaration (hoist the function itself),
// or plain execution.
func wrapStatement(src string, kind statementKind, names []string) string {
	switch kind {
	case stmtDeclaration:
		fields := ""
		for i, n := range names {
			if i > 0 {
				fields += ", "
			}
			fields += n + ": " + n
		}
		return "(async () => {\n" + src + "\nreturn {" + fields + "};\n})()"
	case stmtFunction:
		name := names[0]
		return "(async () => {\n" + src + "\nreturn " + name + ";\n})()"
	default:
		return "(async () => {\n" + src + "\n})()"
	}
}
