package transport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func drain(t *testing.T, ch <-chan []byte, n int) [][]byte {
	t.Helper()
	var got [][]byte
	for i := 0; i < n; i++ {
		select {
		case raw := <-ch:
			got = append(got, raw)
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for frame %d/%d", i+1, n)
		}
	}
	return got
}

func TestHubSubscribeFromZeroReplaysEverything(t *testing.T) {
	h := newHub(8)
	h.push([]byte("a"))
	h.push([]byte("b"))

	ch, cancel := h.subscribeFrom(0, 4)
	defer cancel()

	got := drain(t, ch, 2)
	require.Equal(t, [][]byte{[]byte("a"), []byte("b")}, got)
}

func TestHubSubscribeFromLastSeqOnlyReplaysNewer(t *testing.T) {
	h := newHub(8)
	h.push([]byte("a"))
	seqB := h.push([]byte("b"))
	h.push([]byte("c"))

	ch, cancel := h.subscribeFrom(seqB, 4)
	defer cancel()

	got := drain(t, ch, 1)
	require.Equal(t, [][]byte{[]byte("c")}, got)
}

func TestHubLiveSubscriberReceivesFramesPushedAfterSubscribe(t *testing.T) {
	h := newHub(8)
	ch, cancel := h.subscribeFrom(0, 4)
	defer cancel()

	h.push([]byte("live"))

	got := drain(t, ch, 1)
	require.Equal(t, [][]byte{[]byte("live")}, got)
}

func TestHubCapacityTrimsOldestFrames(t *testing.T) {
	h := newHub(2)
	h.push([]byte("a"))
	h.push([]byte("b"))
	h.push([]byte("c"))

	ch, cancel := h.subscribeFrom(0, 4)
	defer cancel()

	got := drain(t, ch, 2)
	require.Equal(t, [][]byte{[]byte("b"), []byte("c")}, got)
}

func TestHubFullSubscriberChannelDropsRatherThanBlocks(t *testing.T) {
	h := newHub(8)
	ch, cancel := h.subscribeFrom(0, 1)
	defer cancel()

	done := make(chan struct{})
	go func() {
		h.push([]byte("1"))
		h.push([]byte("2"))
		h.push([]byte("3"))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("push blocked on a full subscriber channel instead of dropping")
	}

	// The channel's single slot holds whichever frame landed first; later
	// pushes found it full and were dropped rather than delivered.
	require.Len(t, ch, 1)
}

func TestHubUnsubscribeStopsDelivery(t *testing.T) {
	h := newHub(8)
	ch, cancel := h.subscribeFrom(0, 4)
	cancel()

	h.push([]byte("after-cancel"))

	select {
	case raw, ok := <-ch:
		if ok {
			t.Fatalf("expected no delivery after cancel, got %q", raw)
		}
	case <-time.After(100 * time.Millisecond):
	}
}
