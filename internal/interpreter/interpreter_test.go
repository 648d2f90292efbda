package interpreter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Property 9 (end-to-end): a ';' inside a string must defer the statement
// boundary all the way through drive/execute, not just at the scanner.
func TestDriveDefersSemicolonInsideStringUntilStatementCompletes(t *testing.T) {
	ip := New(nil)
	body := make(chan string, 1)
	body <- `const x = "a;b"; console.log(x);`
	close(body)

	events, results, err := ip.Start(context.Background(), body, time.Second)
	require.NoError(t, err)

	var deltas []string
	for ev := range events {
		require.Empty(t, ev.Err, "no statement should report an error")
		deltas = append(deltas, ev.Delta)
	}

	res := <-results
	require.Empty(t, res.Error)
	require.Contains(t, res.Logs, "a;b")
}

func TestDriveRunsMultipleStatementsFedAcrossChunks(t *testing.T) {
	ip := New(nil)
	body := make(chan string, 4)
	body <- `const a = 1;`
	body <- `console.log(a + 1);`
	close(body)

	events, results, err := ip.Start(context.Background(), body, time.Second)
	require.NoError(t, err)

	count := 0
	for range events {
		count++
	}
	require.Equal(t, 2, count)

	res := <-results
	require.Empty(t, res.Error)
	require.Contains(t, res.Logs, "2")
}

func TestDriveStopsOnGenuineRuntimeError(t *testing.T) {
	ip := New(nil)
	body := make(chan string, 1)
	body <- `throw new Error("boom");`
	close(body)

	_, results, err := ip.Start(context.Background(), body, time.Second)
	require.NoError(t, err)

	res := <-results
	require.Contains(t, res.Error, "boom")
}
