package transport

import (
	"sync"

	"github.com/fenced-run/agentrt/internal/util"
)

// maxWireFieldLen bounds any single trace/log_line text field before it goes
// out over the wire, so one runaway console.log or error string can't balloon
// a single envelope.
const maxWireFieldLen = 4000

// hubOutbound is the interaction.Outbound bound to a session at creation
// time, for its entire lifetime — independent of which Conn, if any, is
// currently attached. Every frame it produces goes through the session's
// hub, which retains and rebroadcasts it regardless of whether a client is
// connected at the moment it was produced.
type hubOutbound struct {
	hub *hub

	mu       sync.Mutex
	messages map[string]*messageBuf // messageID -> accumulated markdown, for assistant_message synthesis
}

type messageBuf struct {
	interactionID string
	text          string
}

func newHubOutbound(hb *hub) *hubOutbound {
	return &hubOutbound{hub: hb, messages: make(map[string]*messageBuf)}
}

func (o *hubOutbound) MarkdownChunk(interactionID, messageID, text string) {
	o.mu.Lock()
	buf, ok := o.messages[messageID]
	if !ok {
		buf = &messageBuf{interactionID: interactionID}
		o.messages[messageID] = buf
	}
	buf.text += text
	o.mu.Unlock()

	o.hub.pushEnvelope(TypeMarkdownChunk, MarkdownChunkPayload{InteractionID: interactionID, MessageID: messageID, Text: text})
}

func (o *hubOutbound) StreamedDataReset(streamedDataID string) {
	o.hub.pushEnvelope(TypeStreamedDataReset, StreamedDataResetPayload{StreamedDataID: streamedDataID})
}

func (o *hubOutbound) StreamedDataChunk(streamedDataID, chunk string) {
	o.hub.pushEnvelope(TypeStreamedDataChunk, StreamedDataChunkPayload{StreamedDataID: streamedDataID, Chunk: chunk})
}

func (o *hubOutbound) Trace(interactionID, messageID, text, category string) {
	text = util.TruncateString(text, maxWireFieldLen, true)
	o.hub.pushEnvelope(TypeTrace, TracePayload{InteractionID: interactionID, MessageID: messageID, Text: text, Category: category})
}

func (o *hubOutbound) LogLine(lvl, code string, fields map[string]any) {
	o.hub.pushEnvelope(TypeLogLine, LogLinePayload{Lvl: lvl, Code: code, Data: truncateStringFields(fields)})
}

// truncateStringFields returns a shallow copy of fields with every string
// value bounded to maxWireFieldLen — a captured error message or interpreter
// source snippet is otherwise unbounded.
func truncateStringFields(fields map[string]any) map[string]any {
	if fields == nil {
		return nil
	}
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if s, ok := v.(string); ok {
			v = util.TruncateString(s, maxWireFieldLen, true)
		}
		out[k] = v
	}
	return out
}

// flushAssistantMessage synthesizes one assistant_message envelope per
// messageID accumulated during interactionID's run, then forgets them — the
// per-segment markdown_chunk stream already delivered the content
// incrementally; this is a convenience snapshot for a client that only
// wants the settled result (e.g. a late joiner replaying history).
func (o *hubOutbound) flushAssistantMessage(interactionID string) {
	o.mu.Lock()
	var done []struct {
		id   string
		text string
	}
	for id, buf := range o.messages {
		if buf.interactionID == interactionID {
			done = append(done, struct {
				id   string
				text string
			}{id, buf.text})
			delete(o.messages, id)
		}
	}
	o.mu.Unlock()

	for _, d := range done {
		o.hub.pushEnvelope(TypeAssistantMessage, AssistantMessagePayload{
			InteractionID: interactionID,
			MessageID:     d.id,
			Markdown:      d.text,
			Blocks:        []any{},
		})
	}
}
