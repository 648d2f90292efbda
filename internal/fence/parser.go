package fence

import (
	"bytes"
	"context"
	"regexp"
	"strings"
)

const sentinel = "```"

// dataHeaderRe matches `json agent.data => "id"` (or with single quotes),
// tolerant of extra whitespace around the arrow and the id.
var dataHeaderRe = regexp.MustCompile(`(?i)^json\s+agent\.data\s*=>\s*(["'])([^"']+)\1$`)

func classifyHeader(line string) (kind Kind, target string, ok bool) {
	trimmed := strings.TrimSpace(line)
	if fields := strings.Fields(trimmed); len(fields) == 2 &&
		strings.EqualFold(fields[0], "tsx") && strings.EqualFold(fields[1], "agent.run") {
		return KindCode, "", true
	}
	if m := dataHeaderRe.FindStringSubmatch(trimmed); m != nil {
		return KindData, m[2], true
	}
	return 0, "", false
}

func isAllWhitespace(b []byte) bool {
	for _, c := range b {
		switch c {
		case ' ', '\t', '\n', '\r', '\v', '\f':
		default:
			return false
		}
	}
	return true
}

func lastNonWSByte(s string) byte {
	for i := len(s) - 1; i >= 0; i-- {
		c := s[i]
		switch c {
		case ' ', '\t', '\n', '\r', '\v', '\f':
		default:
			return c
		}
	}
	return 0
}

type mode int

const (
	modeProse mode = iota
	modeHeader
	modeBody
)

// Parser segments an incoming byte stream into prose/code/data Segments per
// the fence grammar, without ever buffering to the end of the stream. Feed
// chunks in order via Run; read Segments (and drain their Body sub-streams)
// from Out() as they arrive.
type Parser struct {
	out chan Segment

	mode mode
	buf  []byte

	// prose run state
	proseBody                 chan string
	pendingWS                 []byte
	runStartedAfterKnownFence bool

	// header-collection state
	// (header bytes live directly in buf until the terminating '\n' is found)

	// body state (known code/data fence, or passthrough)
	passthrough   bool
	bodyKind      Kind
	bodyTarget    string
	bodyBody      chan string
	bodyLastNonWS byte

	codeIndex int
}

// New creates a Parser. Call Run to drive it from an input channel.
func New() *Parser {
	return &Parser{
		out:  make(chan Segment),
		mode: modeProse,
	}
}

// Out returns the channel of Segments produced by the parser. It is closed
// once the input channel passed to Run is closed (or ctx is done) and all
// trailing state has been flushed.
func (p *Parser) Out() <-chan Segment {
	return p.out
}

// Run consumes chunks from in, driving the state machine, until in is closed
// or ctx is cancelled. It must be called exactly once, and should run in its
// own goroutine since sends to Out() and to segment Body channels block
// until a consumer drains them.
func (p *Parser) Run(ctx context.Context, in <-chan string) {
	defer close(p.out)
	for {
		select {
		case <-ctx.Done():
			p.abandon()
			return
		case chunk, ok := <-in:
			if !ok {
				p.finish()
				return
			}
			p.feed(chunk)
		}
	}
}

func (p *Parser) feed(chunk string) {
	p.buf = append(p.buf, chunk...)
	for p.step() {
	}
}

// step attempts to make progress with the current buffer. It returns true if
// it consumed or emitted something and should be called again; false if the
// buffer is ambiguous and more input is required.
func (p *Parser) step() bool {
	switch p.mode {
	case modeProse:
		return p.stepProse()
	case modeHeader:
		return p.stepHeader()
	case modeBody:
		return p.stepBody()
	}
	return false
}

func (p *Parser) stepProse() bool {
	idx := bytes.Index(p.buf, []byte(sentinel))
	if idx == -1 {
		safe := len(p.buf) - (len(sentinel) - 1)
		if safe <= 0 {
			return false
		}
		chunk := p.buf[:safe]
		p.buf = p.buf[safe:]
		p.emitProse(string(chunk))
		return true
	}
	if idx > 0 {
		p.emitProse(string(p.buf[:idx]))
	}
	p.buf = p.buf[idx+len(sentinel):]
	p.mode = modeHeader
	return true
}

func (p *Parser) stepHeader() bool {
	idx := bytes.IndexByte(p.buf, '\n')
	if idx == -1 {
		return false
	}
	raw := p.buf[:idx]
	p.buf = p.buf[idx+1:]
	match := raw
	if len(match) > 0 && match[len(match)-1] == '\r' {
		match = match[:len(match)-1]
	}
	kind, target, ok := classifyHeader(string(match))
	if ok {
		p.endProseRun(true)
		p.beginKnownBody(kind, target)
	} else {
		p.passthrough = true
		p.emitProse(sentinel + string(raw) + "\n")
	}
	p.mode = modeBody
	return true
}

func (p *Parser) stepBody() bool {
	idx := bytes.Index(p.buf, []byte(sentinel))
	if idx == -1 {
		safe := len(p.buf) - (len(sentinel) - 1)
		if safe <= 0 {
			return false
		}
		chunk := p.buf[:safe]
		p.buf = p.buf[safe:]
		p.emitBodyContent(string(chunk))
		return true
	}
	if idx > 0 {
		p.emitBodyContent(string(p.buf[:idx]))
	}
	p.buf = p.buf[idx+len(sentinel):]
	p.closeBody()
	p.mode = modeProse
	return true
}

func (p *Parser) beginKnownBody(kind Kind, target string) {
	p.bodyKind = kind
	p.bodyTarget = target
	p.bodyLastNonWS = 0
	p.bodyBody = make(chan string)
	idx := p.codeIndex
	p.codeIndex++
	p.out <- Segment{Kind: kind, Index: idx, Target: target, Body: p.bodyBody}
}

func (p *Parser) emitBodyContent(s string) {
	if s == "" {
		return
	}
	if p.passthrough {
		p.emitProse(s)
		return
	}
	if p.bodyKind == KindCode {
		if c := lastNonWSByte(s); c != 0 {
			p.bodyLastNonWS = c
		}
	}
	p.bodyBody <- s
}

func (p *Parser) closeBody() {
	if p.passthrough {
		p.passthrough = false
		p.emitProse(sentinel)
		return
	}
	if p.bodyKind == KindCode && p.bodyLastNonWS != ';' {
		p.bodyBody <- ";"
	}
	close(p.bodyBody)
	p.bodyBody = nil
	p.runStartedAfterKnownFence = true
}

// emitProse feeds s into the current prose run, deferring the
// whitespace-only-suppression decision until either non-whitespace content
// appears (the run is opened immediately) or the run ends.
func (p *Parser) emitProse(s string) {
	if s == "" {
		return
	}
	if p.proseBody != nil {
		p.proseBody <- s
		return
	}
	if isAllWhitespace(p.pendingWS) && isAllWhitespace([]byte(s)) {
		p.pendingWS = append(p.pendingWS, s...)
		return
	}
	p.openProseSegment()
	first := string(p.pendingWS) + s
	p.pendingWS = nil
	p.proseBody <- first
}

func (p *Parser) openProseSegment() {
	p.proseBody = make(chan string)
	p.out <- Segment{Kind: KindProse, Index: -1, Body: p.proseBody}
}

// endProseRun closes out the current prose run. endingIntoKnownFence is true
// when the run ends because a code/data fence is about to open; false at end
// of stream. Whitespace-only suppression applies only when the run both
// started right after a known fence closed and ends into another one.
func (p *Parser) endProseRun(endingIntoKnownFence bool) {
	if p.proseBody == nil {
		if len(p.pendingWS) > 0 {
			suppress := p.runStartedAfterKnownFence && endingIntoKnownFence
			if !suppress {
				p.openProseSegment()
				p.proseBody <- string(p.pendingWS)
			}
		}
		p.pendingWS = nil
	}
	if p.proseBody != nil {
		close(p.proseBody)
		p.proseBody = nil
	}
	p.runStartedAfterKnownFence = endingIntoKnownFence
}

func (p *Parser) finish() {
	switch p.mode {
	case modeProse:
		p.emitProse(string(p.buf))
		p.buf = nil
		p.endProseRun(false)
	case modeHeader:
		p.emitProse(sentinel + string(p.buf))
		p.buf = nil
		p.endProseRun(false)
	case modeBody:
		if p.passthrough {
			p.emitProse(string(p.buf))
			p.buf = nil
			p.passthrough = false
			p.endProseRun(false)
		} else {
			if len(p.buf) > 0 {
				p.emitBodyContent(string(p.buf))
				p.buf = nil
			}
			if p.bodyKind == KindCode && p.bodyLastNonWS != ';' {
				p.bodyBody <- ";"
			}
			close(p.bodyBody)
			p.bodyBody = nil
		}
	}
}

// abandon closes out any open channels without further emission, used when
// the context is cancelled mid-stream.
func (p *Parser) abandon() {
	if p.proseBody != nil {
		close(p.proseBody)
		p.proseBody = nil
	}
	if p.bodyBody != nil {
		close(p.bodyBody)
		p.bodyBody = nil
	}
}
