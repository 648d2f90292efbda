package llmprovider

import (
	"context"
	"fmt"
)

// ChatClient streams one assistant turn's text given the system prompt and
// the message history so far. Concrete adapters (openai.go, anthropic.go)
// implement this against their respective SDKs.
type ChatClient interface {
	Stream(ctx context.Context, system string, messages []Message) (<-chan string, error)
}

// LLM is the interface the interaction loop drives: two stream-yielding
// entry points per turn, one for the user's first message and one for
// subsequent transcript-driven turns.
type LLM interface {
	First(ctx context.Context, userText string) (<-chan string, error)
	Next(ctx context.Context, transcript Transcript) (<-chan string, error)
}

// ChatLLM adapts a ChatClient into an LLM, owning the history's
// append-on-success/rollback-on-error contract so the interaction loop
// never touches message bookkeeping directly.
type ChatLLM struct {
	client  ChatClient
	history *History
}

// NewChatLLM creates a ChatLLM with a system prompt assembled by the caller
// (base template plus per-skill snippets).
func NewChatLLM(client ChatClient, systemPrompt string) *ChatLLM {
	return &ChatLLM{client: client, history: NewHistory(systemPrompt)}
}

func (l *ChatLLM) First(ctx context.Context, userText string) (<-chan string, error) {
	return l.turn(ctx, RoleUser, userText)
}

func (l *ChatLLM) Next(ctx context.Context, transcript Transcript) (<-chan string, error) {
	content := transcript.Logs
	if transcript.Error != "" {
		if content != "" {
			content += "\n"
		}
		content += "error: " + transcript.Error
	}
	return l.turn(ctx, RoleUser, content)
}

func (l *ChatLLM) turn(ctx context.Context, role Role, content string) (<-chan string, error) {
	mark := l.history.BeginTurn(role, content)
	system, messages := l.history.Snapshot()

	raw, err := l.client.Stream(ctx, system, messages)
	if err != nil {
		l.history.Rollback(mark)
		return nil, fmt.Errorf("llmprovider: stream start: %w", err)
	}

	out := make(chan string)
	go func() {
		defer close(out)
		var assembled string
		for chunk := range raw {
			assembled += chunk
			select {
			case out <- chunk:
			case <-ctx.Done():
				l.history.Rollback(mark)
				return
			}
		}
		l.history.Commit(assembled)
	}()
	return out, nil
}
