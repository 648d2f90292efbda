package mount

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fenced-run/agentrt/internal/reactive"
)

func TestRegisterDispatchesPayload(t *testing.T) {
	var got Payload
	m := NewManager(func(p Payload) { got = p }, nil)
	h := m.Register(Options{UISource: "function(){}"})
	require.NotEmpty(t, h.ID)
	require.Equal(t, h.ID, got.MountID)
	require.Equal(t, "function(){}", got.UISource)
	require.False(t, got.HasInitialData)
}

func TestSubmitResolvesResultOnce(t *testing.T) {
	m := NewManager(func(Payload) {}, nil)
	h := m.Register(Options{})

	require.NoError(t, m.Submit(h.ID, map[string]any{"n": 1}))

	select {
	case v := <-h.Result:
		require.Equal(t, map[string]any{"n": 1}, v)
	case <-time.After(time.Second):
		t.Fatal("result never delivered")
	}

	require.ErrorIs(t, m.Submit(h.ID, "again"), ErrUnknownMount)
}

func TestSubmitUnknownMount(t *testing.T) {
	m := NewManager(func(Payload) {}, nil)
	require.ErrorIs(t, m.Submit("ghost", nil), ErrUnknownMount)
}

func TestRegisterWithDataForwardsInitialSnapshotAndPatches(t *testing.T) {
	reg := reactive.NewRegistry()
	rec := reg.Wrap("s1", map[string]any{"n": 0})

	var payload Payload
	patches := make(chan []reactive.Patch, 4)
	m := NewManager(
		func(p Payload) { payload = p },
		func(mountID string, ps []reactive.Patch) { patches <- ps },
	)

	h := m.Register(Options{Data: rec})
	require.Equal(t, h.ID, payload.MountID)
	require.True(t, payload.HasInitialData)
	require.Equal(t, 0, payload.InitialData["n"])

	rec.Set([]string{"n"}, 7)

	select {
	case ps := <-patches:
		require.Len(t, ps, 1)
		require.Equal(t, reactive.OpSet, ps[0].Op)
		require.Equal(t, 7, ps[0].Value)
		require.Equal(t, 0, ps[0].Prev)
	case <-time.After(time.Second):
		t.Fatal("patch never forwarded")
	}
}

func TestInvokeCallbackUnknownMount(t *testing.T) {
	m := NewManager(func(Payload) {}, nil)
	require.ErrorIs(t, m.InvokeCallback("ghost", "onClick", nil), ErrUnknownMount)
}
