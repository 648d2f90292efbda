// Package interaction implements the interaction loop (C5): the
// TURN/PARSE/DISPATCH/COLLECT state machine that drives one user interaction
// from the model's streamed markdown to its resolution, feeding transcripts
// back for subsequent turns until the model falls silent or the turn cap is
// reached.
package interaction

// Outbound is the transport-facing sink the loop writes client frames to.
// The transport layer implements this against the session's wire codec; the
// loop never constructs envelopes itself. Mount registration and its patch
// forwarding are wired independently, straight from the session's
// mount.Manager to the transport, since mounts outlive any one interaction.
type Outbound interface {
	MarkdownChunk(interactionID, messageID, text string)
	StreamedDataReset(streamedDataID string)
	StreamedDataChunk(streamedDataID, chunk string)
	Trace(interactionID, messageID, text, category string)
	LogLine(lvl, code string, fields map[string]any)
}
