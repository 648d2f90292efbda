package session

import (
	"sync"

	"github.com/dop251/goja"
	"github.com/google/uuid"

	"github.com/fenced-run/agentrt/internal/interpreter"
	"github.com/fenced-run/agentrt/internal/mount"
	"github.com/fenced-run/agentrt/internal/reactive"
	"github.com/fenced-run/agentrt/internal/streamedtarget"
)

// runtimeBindings wires the core-provided interpreter globals (`mount`,
// `wrap`, `identityOf`, `snapshot`, `subscribe`) onto a live goja runtime.
// No `Data` or `StreamedData` global is bound; the streamed-target registry
// is reached from interpreter code only through mount's `streamedData`
// option. One runtimeBindings is constructed per session and attached
// via Interpreter.Bind.
type runtimeBindings struct {
	ip       *interpreter.Interpreter
	records  *reactive.Registry
	targets  *streamedtarget.Registry
	mounts   *mount.Manager

	mu       sync.Mutex
	byObject map[*goja.Object]*reactive.Record
}

func newRuntimeBindings(ip *interpreter.Interpreter, records *reactive.Registry, targets *streamedtarget.Registry, mounts *mount.Manager) *runtimeBindings {
	return &runtimeBindings{
		ip:       ip,
		records:  records,
		targets:  targets,
		mounts:   mounts,
		byObject: make(map[*goja.Object]*reactive.Record),
	}
}

// attach registers every core global on vm. Called once, from inside
// Interpreter.Bind, with the live runtime.
func (b *runtimeBindings) attach(vm *goja.Runtime) {
	vm.Set("wrap", b.wrap(vm))
	vm.Set("identityOf", b.identityOf(vm))
	vm.Set("snapshot", b.snapshot(vm))
	vm.Set("subscribe", b.subscribe(vm))
	vm.Set("mount", b.mount(vm))
}

// wrap(initial) returns a plain JS object carrying initial's own properties
// (so reads need no proxy) plus two hidden-from-enumeration-by-convention
// mutator methods, set(path, value) and delete(path), that are the only
// sanctioned way to mutate it: every call through them produces an
// observable patch. identityOf/snapshot/subscribe key off the returned
// object's identity via a side table rather than a visible property, so the
// identifier is never enumerable on the object itself — trivially
// satisfying "snapshots never contain the identifier" since no snapshot
// path ever touches this table.
func (b *runtimeBindings) wrap(vm *goja.Runtime) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		initial := map[string]any{}
		if arg := call.Argument(0); arg != nil && !goja.IsUndefined(arg) {
			if m, ok := arg.Export().(map[string]any); ok {
				initial = m
			}
		}

		record := b.records.Wrap(uuid.NewString(), initial)
		obj := vm.NewObject()

		refresh := func() {
			snap := record.Snapshot()
			for k, v := range snap {
				obj.Set(k, v)
			}
		}
		refresh()

		obj.Set("set", func(inner goja.FunctionCall) goja.Value {
			path := pathArg(inner.Argument(0))
			record.Set(path, inner.Argument(1).Export())
			refresh()
			return goja.Undefined()
		})
		obj.Set("delete", func(inner goja.FunctionCall) goja.Value {
			path := pathArg(inner.Argument(0))
			record.Delete(path)
			if len(path) == 1 {
				obj.Delete(path[0])
			} else {
				refresh()
			}
			return goja.Undefined()
		})

		b.mu.Lock()
		b.byObject[obj] = record
		b.mu.Unlock()

		return obj
	}
}

func (b *runtimeBindings) recordFor(v goja.Value) *reactive.Record {
	if v == nil || goja.IsUndefined(v) {
		return nil
	}
	obj, ok := v.(*goja.Object)
	if !ok {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.byObject[obj]
}

func (b *runtimeBindings) identityOf(vm *goja.Runtime) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		record := b.recordFor(call.Argument(0))
		if record == nil {
			return goja.Undefined()
		}
		return vm.ToValue(record.ID())
	}
}

func (b *runtimeBindings) snapshot(vm *goja.Runtime) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		record := b.recordFor(call.Argument(0))
		if record == nil {
			return goja.Undefined()
		}
		return vm.ToValue(record.Snapshot())
	}
}

// subscribe(obj, listener) attaches listener(op, path, value, prev) to
// obj's record. Patches arrive on an arbitrary goroutine (the interaction
// loop's data dispatch, a callback invocation); delivery into the listener
// is marshaled back onto the interpreter's single cooperative goroutine via
// RunOnLoop, since the runtime is not safe to touch from elsewhere.
func (b *runtimeBindings) subscribe(vm *goja.Runtime) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		record := b.recordFor(call.Argument(0))
		listener, ok := goja.AssertFunction(call.Argument(1))
		if record == nil || !ok {
			return goja.Undefined()
		}

		ch, cancel := record.Subscribe()
		go func() {
			for p := range ch {
				patch := p
				b.ip.RunOnLoop(func(vm *goja.Runtime) {
					pathVals := make([]any, len(patch.Path))
					for i, seg := range patch.Path {
						pathVals[i] = seg
					}
					_, _ = listener(goja.Undefined(),
						vm.ToValue(string(patch.Op)),
						vm.ToValue(pathVals),
						vm.ToValue(patch.Value),
						vm.ToValue(patch.Prev),
					)
				})
			}
		}()

		return vm.ToValue(func() { cancel() })
	}
}

// mount(options) registers a UI mount via the session's mount.Manager and
// returns { mountId, result }, result being a Promise that resolves exactly
// once, when an inbound submission for this mount arrives.
func (b *runtimeBindings) mount(vm *goja.Runtime) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		opts := mount.Options{}

		optsObj, _ := call.Argument(0).(*goja.Object)
		if optsObj != nil {
			if rec := b.recordFor(optsObj.Get("data")); rec != nil {
				opts.Data = rec
			}
			if sd := optsObj.Get("streamedData"); sd != nil && !goja.IsUndefined(sd) {
				id := sd.String()
				b.targets.Register(id)
				opts.StreamedDataID = id
			}
			if schema := optsObj.Get("outputSchema"); schema != nil && !goja.IsUndefined(schema) {
				opts.OutputSchema = schema.Export()
			}
			if cbVal := optsObj.Get("callbacks"); cbVal != nil && !goja.IsUndefined(cbVal) {
				if cbObj, ok := cbVal.(*goja.Object); ok {
					opts.Callbacks = make(map[string]goja.Callable)
					for _, key := range cbObj.Keys() {
						if fn, ok := goja.AssertFunction(cbObj.Get(key)); ok {
							opts.Callbacks[key] = fn
						}
					}
				}
			}
			if uiVal := optsObj.Get("ui"); uiVal != nil && !goja.IsUndefined(uiVal) {
				opts.UISource = uiVal.ToString().String()
			}
		}

		handle := b.mounts.Register(opts)

		promise, resolve, _ := vm.NewPromise()
		go func() {
			v := <-handle.Result
			b.ip.RunOnLoop(func(vm *goja.Runtime) {
				resolve(vm.ToValue(v))
			})
		}()

		result := vm.NewObject()
		result.Set("mountId", handle.ID)
		result.Set("result", promise)
		return result
	}
}

// pathArg accepts either a single string key or an array of string keys for
// set(path, value)/delete(path).
func pathArg(v goja.Value) []string {
	if v == nil || goja.IsUndefined(v) {
		return nil
	}
	switch exported := v.Export().(type) {
	case string:
		return []string{exported}
	case []any:
		out := make([]string, 0, len(exported))
		for _, e := range exported {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
