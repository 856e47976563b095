// Package llm defines the Provider interface for the completion oracle used
// by the extraction stage.
//
// A provider wraps a remote or local model API (e.g., OpenAI, or any backend
// supported by any-llm-go) behind a single text-in/text-out capability so the
// extraction client never couples to a specific SDK. The oracle's output is
// untrusted; callers must validate everything it returns.
//
// Implementations must be safe for concurrent use and must propagate context
// cancellation promptly.
package llm

import "context"

// Usage holds token accounting information returned by the backend.
// Counts are in the model's native token unit and may differ between
// providers for the same textual content.
type Usage struct {
	// PromptTokens is the number of tokens consumed by the system prompt and
	// user content.
	PromptTokens int

	// CompletionTokens is the number of tokens generated in the response.
	CompletionTokens int

	// TotalTokens is PromptTokens + CompletionTokens.
	TotalTokens int
}

// Request carries everything the oracle needs to produce a completion.
type Request struct {
	// SystemPrompt is a high-priority instruction injected before the user
	// content. Providers that lack a dedicated system slot prepend it as a
	// system-role message.
	SystemPrompt string

	// Prompt is the user content driving the completion.
	Prompt string

	// Temperature controls output randomness in [0.0, 2.0]. Extraction wants
	// determinism, so callers typically leave this at 0.
	Temperature float64

	// MaxTokens caps the completion length. Zero means provider default.
	MaxTokens int
}

// Response is the oracle's completion.
type Response struct {
	// Content is the full text of the model's reply.
	Content string

	// Usage contains token accounting for this request/response pair.
	Usage Usage
}

// Provider is the abstraction over any completion backend.
//
// Implementations must be safe for concurrent use from multiple goroutines.
type Provider interface {
	// Complete sends req to the model and waits for the full response.
	// Returns an error if the request fails or ctx is cancelled before the
	// completion arrives.
	Complete(ctx context.Context, req Request) (*Response, error)

	// ModelID returns the provider-specific model identifier
	// (e.g., "gpt-4o-mini"). Useful for logging and analytics records.
	ModelID() string
}
