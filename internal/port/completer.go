package port

import "context"

// CompletionRequest carries a single-turn chat completion.
type CompletionRequest struct {
	SystemPrompt string
	UserContent  string
	Model        string
}

// Completer abstracts an LLM chat-completion API.
type Completer interface {
	// Complete returns the assistant text for one request.
	Complete(ctx context.Context, req CompletionRequest) (string, error)
	// ListModels lists the models visible to the configured credential.
	ListModels(ctx context.Context) ([]string, error)
}
