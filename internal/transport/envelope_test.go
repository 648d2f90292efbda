package transport

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []struct {
		name    string
		typ     string
		payload any
	}{
		{"session", TypeSession, SessionPayload{ID: "s-1", CreatedAt: "2026-07-30T00:00:00Z", SchemaVersion: "1"}},
		{"assistant_message", TypeAssistantMessage, AssistantMessagePayload{InteractionID: "i-1", MessageID: "m-1", Markdown: "hi", Blocks: []any{}}},
		{"markdown_chunk", TypeMarkdownChunk, MarkdownChunkPayload{InteractionID: "i-1", MessageID: "m-1", Text: "hi"}},
		{"mount", TypeMount, MountPayload{MountID: "mt-1", UISource: "<div/>", OutputSchema: map[string]any{"type": "object"}}},
		{"data_patch", TypeDataPatch, DataPatchPayload{MountID: "mt-1", Patches: []patchEntry{{"set", "/a", 1.0, nil}}}},
		{"streamed_data_reset", TypeStreamedDataReset, StreamedDataResetPayload{StreamedDataID: "sd-1"}},
		{"streamed_data_chunk", TypeStreamedDataChunk, StreamedDataChunkPayload{StreamedDataID: "sd-1", Chunk: "x"}},
		{"trace", TypeTrace, TracePayload{InteractionID: "i-1", MessageID: "m-1", Text: "step", Category: "tool"}},
		{"log_line", TypeLogLine, LogLinePayload{Lvl: "warn", Code: "unsupported_envelope"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			raw, err := encode(tc.typ, tc.payload)
			require.NoError(t, err)

			env, code, err := decodeEnvelope(raw)
			require.NoError(t, err)
			require.Empty(t, code)
			require.Equal(t, tc.typ, env.Type)
			require.NotEmpty(t, env.Payload)

			want, err := json.Marshal(tc.payload)
			require.NoError(t, err)
			require.JSONEq(t, string(want), string(env.Payload))
		})
	}
}

func TestDecodeEnvelopeRejectsInvalidJSON(t *testing.T) {
	_, code, err := decodeEnvelope([]byte("{not json"))
	require.Error(t, err)
	require.Equal(t, ErrCodeInvalidJSON, code)
}

func TestDecodeEnvelopeRejectsMissingType(t *testing.T) {
	_, code, err := decodeEnvelope([]byte(`{"payload":{"text":"hi"}}`))
	require.Error(t, err)
	require.Equal(t, ErrCodeMissingType, code)
}

func TestDecodeEnvelopeRejectsMissingPayload(t *testing.T) {
	_, code, err := decodeEnvelope([]byte(`{"type":"user_message"}`))
	require.Error(t, err)
	require.Equal(t, ErrCodeMissingPayload, code)
}

func TestDecodeEnvelopeAcceptsWellFormedFrame(t *testing.T) {
	env, code, err := decodeEnvelope([]byte(`{"type":"user_message","payload":{"text":"hi"}}`))
	require.NoError(t, err)
	require.Empty(t, code)
	require.Equal(t, TypeUserMessage, env.Type)

	var p UserMessagePayload
	require.NoError(t, unmarshalPayload(env.Payload, &p))
	require.Equal(t, "hi", p.Text)
}
