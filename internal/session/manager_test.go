package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fenced-run/agentrt/internal/llmprovider"
	"github.com/fenced-run/agentrt/internal/mount"
)

// fakeChatClient streams a fixed reply for every call; it never touches a
// real provider, matching the style of the interpreter/interaction package
// tests that avoid any network dependency.
type fakeChatClient struct {
	reply string
}

func (f *fakeChatClient) Stream(ctx context.Context, system string, messages []llmprovider.Message) (<-chan string, error) {
	out := make(chan string, 1)
	out <- f.reply
	close(out)
	return out, nil
}

type noopOutbound struct{}

func (noopOutbound) MarkdownChunk(interactionID, messageID, text string)      {}
func (noopOutbound) StreamedDataReset(id string)                             {}
func (noopOutbound) StreamedDataChunk(id, chunk string)                      {}
func (noopOutbound) Trace(interactionID, messageID, text, category string)   {}
func (noopOutbound) LogLine(lvl, code string, fields map[string]any)         {}

func newTestSession(t *testing.T, mgr *Manager, reply string) *Session {
	t.Helper()
	return mgr.CreateSession(NewSessionParams{
		Outbound:   noopOutbound{},
		ChatClient: &fakeChatClient{reply: reply},
		MaxTurns:   3,
		RunCeiling: 5 * time.Second,
	})
}

func TestCreateSessionRegistersAndGetReturnsIt(t *testing.T) {
	mgr := NewManager(zap.NewNop(), nil)
	sess := newTestSession(t, mgr, "hi")

	got, err := mgr.Get(sess.ID)
	require.NoError(t, err)
	require.Same(t, sess, got)
	require.Equal(t, 1, mgr.Count())
}

func TestGetUnknownSessionReturnsNotFound(t *testing.T) {
	mgr := NewManager(zap.NewNop(), nil)
	_, err := mgr.Get("does-not-exist")
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestCloseRemovesSessionAndStopsLoop(t *testing.T) {
	mgr := NewManager(zap.NewNop(), nil)
	sess := newTestSession(t, mgr, "hi")

	mgr.Close(sess.ID)
	_, err := mgr.Get(sess.ID)
	require.ErrorIs(t, err, ErrSessionNotFound)

	// Closing an already-closed session is a no-op, not a panic.
	mgr.Close(sess.ID)
}

func TestRunInteractionRejectsConcurrentSecondRun(t *testing.T) {
	mgr := NewManager(zap.NewNop(), nil)
	sess := newTestSession(t, mgr, "hi")

	// Manually mark the session busy to simulate an in-flight interaction.
	require.True(t, sess.busy.CompareAndSwap(false, true))
	err := sess.RunInteraction(context.Background(), "itx-1", "hello")
	require.ErrorIs(t, err, ErrInteractionInProgress)
	sess.busy.Store(false)
}

func TestHandleUISubmitUnknownMount(t *testing.T) {
	mgr := NewManager(zap.NewNop(), nil)
	sess := newTestSession(t, mgr, "hi")

	err := sess.HandleUISubmit("no-such-mount", map[string]any{"x": 1})
	require.ErrorIs(t, err, mount.ErrUnknownMount)
}

func TestRecordMessageKeepsBoundedHistory(t *testing.T) {
	mgr := NewManager(zap.NewNop(), nil)
	sess := newTestSession(t, mgr, "hi")

	for i := 0; i < maxHistory+10; i++ {
		sess.RecordMessage(Message{ID: "m", Role: "user", Content: "x", Timestamp: time.Now()})
	}
	require.Len(t, sess.RecentHistory(maxHistory+10), maxHistory)
}
