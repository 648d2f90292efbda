package llmprovider

import "fmt"

// NewClient builds the ChatClient appropriate for model, per DetectProvider.
func NewClient(model, apiKey string) (ChatClient, error) {
	switch DetectProvider(model) {
	case "anthropic":
		return NewAnthropicClient(apiKey, model), nil
	case "openai":
		return NewOpenAIClient(apiKey, model), nil
	default:
		return nil, fmt.Errorf("llmprovider: no adapter for model %q", model)
	}
}
