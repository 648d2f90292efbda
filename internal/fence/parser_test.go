package fence

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type collected struct {
	kind   Kind
	index  int
	target string
	body   string
}

func run(t *testing.T, chunks []string) []collected {
	t.Helper()
	p := New()
	in := make(chan string)
	ctx := context.Background()
	done := make(chan struct{})
	var got []collected
	go func() {
		defer close(done)
		for seg := range p.Out() {
			var b string
			for tok := range seg.Body {
				b += tok
			}
			got = append(got, collected{kind: seg.Kind, index: seg.Index, target: seg.Target, body: b})
		}
	}()
	go p.Run(ctx, in)
	for _, c := range chunks {
		in <- c
	}
	close(in)
	<-done
	return got
}

func TestSimpleProse(t *testing.T) {
	got := run(t, []string{"Hi"})
	require.Len(t, got, 1)
	require.Equal(t, KindProse, got[0].kind)
	require.Equal(t, "Hi", got[0].body)
}

func TestCodeFenceAutoSemicolon(t *testing.T) {
	input := "A\n```tsx agent.run\nconsole.log('x')\n```\nZ"
	got := run(t, []string{input})
	require.Len(t, got, 3)
	require.Equal(t, KindProse, got[0].kind)
	require.Equal(t, "A\n", got[0].body)
	require.Equal(t, KindCode, got[1].kind)
	require.Equal(t, 0, got[1].index)
	require.Equal(t, "console.log('x')\n;", got[1].body)
	require.Equal(t, KindProse, got[2].kind)
	require.Equal(t, "\nZ", got[2].body)
}

func TestCodeFenceTerminatorNotDuplicated(t *testing.T) {
	input := "```tsx agent.run\nconsole.log('x');\n```"
	got := run(t, []string{input})
	require.Len(t, got, 1)
	require.Equal(t, "console.log('x');\n", got[0].body)
}

// S6: a chunk split across the fence header and body must reconstruct
// identically to the single-chunk case.
func TestChunkSplitAcrossFence(t *testing.T) {
	chunks := []string{"A\n``", "`tsx agent.run\nconsole.log('x');\n`", "``\nZ"}
	got := run(t, chunks)
	require.Len(t, got, 3)
	require.Equal(t, "A\n", got[0].body)
	require.Equal(t, KindCode, got[1].kind)
	require.Equal(t, "console.log('x');\n", got[1].body)
	require.Equal(t, "\nZ", got[2].body)
}

func TestDataFence(t *testing.T) {
	input := "```json agent.data => \"counter\"\n{\"n\":1}\n```"
	got := run(t, []string{input})
	require.Len(t, got, 1)
	require.Equal(t, KindData, got[0].kind)
	require.Equal(t, "counter", got[0].target)
	require.Equal(t, "{\"n\":1}\n", got[0].body)
}

func TestDataFenceSingleQuote(t *testing.T) {
	input := "```json agent.data => 'counter'\n{}\n```"
	got := run(t, []string{input})
	require.Len(t, got, 1)
	require.Equal(t, "counter", got[0].target)
}

func TestUnknownFencePassesThroughAsProse(t *testing.T) {
	input := "before\n```python\nprint(1)\n```\nafter"
	got := run(t, []string{input})
	require.Len(t, got, 1)
	require.Equal(t, KindProse, got[0].kind)
	require.Equal(t, input, got[0].body)
}

func TestWhitespaceOnlyGapBetweenKnownFencesIsSuppressed(t *testing.T) {
	input := "```tsx agent.run\nconsole.log(1);\n```\n```tsx agent.run\nconsole.log(2);\n```"
	got := run(t, []string{input})
	require.Len(t, got, 2)
	require.Equal(t, KindCode, got[0].kind)
	require.Equal(t, KindCode, got[1].kind)
	require.Equal(t, 0, got[0].index)
	require.Equal(t, 1, got[1].index)
}

func TestLeadingWhitespaceOnlyProseIsNotSuppressed(t *testing.T) {
	got := run(t, []string{"   \n```tsx agent.run\nconsole.log(1);\n```"})
	require.Len(t, got, 2)
	require.Equal(t, KindProse, got[0].kind)
	require.Equal(t, "   \n", got[0].body)
	require.Equal(t, KindCode, got[1].kind)
}

func TestTrailingWhitespaceOnlyProseIsNotSuppressed(t *testing.T) {
	got := run(t, []string{"```tsx agent.run\nconsole.log(1);\n```\n  "})
	require.Len(t, got, 2)
	require.Equal(t, KindCode, got[0].kind)
	require.Equal(t, KindProse, got[1].kind)
	require.Equal(t, "\n  ", got[1].body)
}

func TestUnterminatedCodeFenceFlushedAsBody(t *testing.T) {
	got := run(t, []string{"```tsx agent.run\nconsole.log(1)"})
	require.Len(t, got, 1)
	require.Equal(t, KindCode, got[0].kind)
	require.Equal(t, "console.log(1);", got[0].body)
}

func TestUnterminatedUnknownFenceFlushedAsProse(t *testing.T) {
	got := run(t, []string{"text ``` py"})
	require.Len(t, got, 1)
	require.Equal(t, KindProse, got[0].kind)
	require.Equal(t, "text ``` py", got[0].body)
}

func TestByteAtATimeChunking(t *testing.T) {
	input := "A\n```tsx agent.run\nconsole.log('x');\n```\nZ"
	chunks := make([]string, 0, len(input))
	for _, c := range input {
		chunks = append(chunks, string(c))
	}
	got := run(t, chunks)
	require.Len(t, got, 3)
	require.Equal(t, "A\n", got[0].body)
	require.Equal(t, "console.log('x');\n", got[1].body)
	require.Equal(t, "\nZ", got[2].body)
}
