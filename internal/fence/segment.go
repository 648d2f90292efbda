// Package fence implements the incremental fenced-markdown parser (C1):
// it segments a live token stream into prose, code, and data segments
// without ever buffering to the end of the stream.
package fence

// Kind identifies the variant of a Segment.
type Kind int

const (
	// KindProse carries ordinary markdown prose.
	KindProse Kind = iota
	// KindCode carries the body of a ```tsx agent.run fence.
	KindCode
	// KindData carries the body of a ```json agent.data => "id" fence.
	KindData
)

func (k Kind) String() string {
	switch k {
	case KindProse:
		return "prose"
	case KindCode:
		return "code"
	case KindData:
		return "data"
	default:
		return "unknown"
	}
}

// Segment is the unit produced by the parser. Body is a lazy sub-stream:
// callers must fully drain it (or deliberately abandon it) before the next
// Segment is expected to arrive on the enclosing channel, since the parser
// goroutine blocks sending into Body until it is received.
type Segment struct {
	Kind Kind
	// Index is the monotonically increasing block counter; -1 for prose.
	Index int
	// Target is the streamed-target identifier; only set for KindData.
	Target string
	// Body yields the segment's text in emission order. Closed when the
	// segment ends (fence close, or, for code/data, end of stream).
	Body <-chan string
}
