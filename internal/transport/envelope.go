// Package transport implements the external interface (spec's one
// long-lived full-duplex message channel per session): a websocket
// connection carrying length-delimited UTF-8 JSON envelopes of shape
// {type, payload}, wired against a session.Session.
package transport

import (
	"encoding/json"
	"errors"
)

// Envelope is the wire shape of every frame in both directions. Seq is set
// only on outbound frames (the hub stamps it at push time); it is the
// resume token a reconnecting client echoes back as last_seq, mirroring the
// teacher's StreamID-on-every-event convention for Last-Event-ID resume.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
	Seq     uint64          `json:"seq,omitempty"`
}

// Outbound envelope type names (spec §6).
const (
	TypeSession            = "session"
	TypeAssistantMessage    = "assistant_message"
	TypeMarkdownChunk       = "markdown_chunk"
	TypeMount               = "mount"
	TypeDataPatch           = "data_patch"
	TypeStreamedDataReset   = "streamed_data_reset"
	TypeStreamedDataChunk   = "streamed_data_chunk"
	TypeTrace               = "trace"
	TypeLogLine             = "log_line"
)

// Inbound envelope type names (spec §6).
const (
	TypeUserMessage    = "user_message"
	TypeUISubmit       = "ui_submit"
	TypeCallbackInvoke = "callback_invoke"
	TypeClientLog      = "client_log"
)

// Error codes logged when an inbound frame is rejected (spec §6).
const (
	ErrCodeInvalidJSON        = "invalid_json"
	ErrCodeInvalidEnvelope    = "invalid_envelope"
	ErrCodeMissingType        = "missing_type"
	ErrCodeMissingPayload     = "missing_payload"
	ErrCodeUnsupportedEnvelope = "unsupported_envelope"
	ErrCodeUnknownUISubmit    = "unknown_ui_submit"
)

var errMissingType = errors.New("transport: envelope missing type")

// --- Outbound payloads ---

type SessionPayload struct {
	ID            string   `json:"id"`
	CreatedAt     string   `json:"createdAt"`
	SchemaVersion string   `json:"schemaVersion,omitempty"`
	Capabilities  []string `json:"capabilities,omitempty"`
}

type AssistantMessagePayload struct {
	InteractionID string `json:"interactionId"`
	MessageID     string `json:"messageId"`
	Markdown      string `json:"markdown"`
	Blocks        []any  `json:"blocks"`
}

type MarkdownChunkPayload struct {
	InteractionID string `json:"interactionId"`
	MessageID     string `json:"messageId"`
	Text          string `json:"text"`
}

type MountPayload struct {
	MountID        string   `json:"mountId"`
	UISource       string   `json:"uiSource"`
	InitialData    any      `json:"initialData,omitempty"`
	StreamedDataID string   `json:"streamedDataId,omitempty"`
	OutputSchema   any      `json:"outputSchema"`
	CallbackNames  []string `json:"callbackNames,omitempty"`
}

// patchEntry mirrors spec §6's [op, path, value, prev] tuple shape for one
// reactive.Patch.
type patchEntry [4]any

type DataPatchPayload struct {
	MountID string       `json:"mountId"`
	Patches []patchEntry `json:"patches"`
}

type StreamedDataResetPayload struct {
	StreamedDataID string `json:"streamedDataId"`
}

type StreamedDataChunkPayload struct {
	StreamedDataID string `json:"streamedDataId"`
	Chunk          string `json:"chunk"`
}

type TracePayload struct {
	InteractionID string `json:"interactionId"`
	MessageID     string `json:"messageId"`
	Text          string `json:"text"`
	Category      string `json:"category"`
}

type LogLinePayload struct {
	T          string         `json:"t,omitempty"`
	Lvl        string         `json:"lvl"`
	Msg        string         `json:"msg,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
	Code       string         `json:"code,omitempty"`
	RunID      string         `json:"runId,omitempty"`
	BlockIndex int            `json:"blockIndex,omitempty"`
	Src        string         `json:"src,omitempty"`
}

// --- Inbound payloads ---

type UserMessagePayload struct {
	Text          string `json:"text"`
	InteractionID string `json:"interactionId,omitempty"`
}

type UISubmitPayload struct {
	MountID string `json:"mountId"`
	Value   any    `json:"value"`
}

type CallbackInvokePayload struct {
	MountID string `json:"mountId"`
	Name    string `json:"name"`
	Args    any    `json:"args"`
}

type ClientLogPayload struct {
	Lvl  string         `json:"lvl"`
	Msg  string         `json:"msg,omitempty"`
	Data map[string]any `json:"data,omitempty"`
}

// encode marshals payload into an Envelope of the given type.
func encode(typ string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: typ, Payload: body})
}

// decodeEnvelope parses raw bytes as an Envelope, validating type/payload
// presence per spec §6's rejection taxonomy.
func decodeEnvelope(raw []byte) (Envelope, string, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return env, ErrCodeInvalidJSON, err
	}
	if env.Type == "" {
		return env, ErrCodeMissingType, errMissingType
	}
	if len(env.Payload) == 0 {
		return env, ErrCodeMissingPayload, errors.New("transport: envelope missing payload")
	}
	return env, "", nil
}
