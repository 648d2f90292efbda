package interpreter

import (
	"strings"
	"sync"
)

// capturePrinter implements goja_nodejs/console.Printer, routing every
// console write into an in-run log buffer instead of the process's own
// stdout/stderr, per the interpreter's output-capture contract.
type capturePrinter struct {
	mu  sync.Mutex
	buf strings.Builder
}

func (p *capturePrinter) Log(s string)   { p.append(s) }
func (p *capturePrinter) Warn(s string)  { p.append(s) }
func (p *capturePrinter) Error(s string) { p.append(s) }

func (p *capturePrinter) append(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.buf.WriteString(s)
	p.buf.WriteByte('\n')
}

// drain returns everything written since the last drain and resets the
// buffer, giving the caller the delta attributable to one statement.
func (p *capturePrinter) drain() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.buf.String()
	p.buf.Reset()
	return s
}
