package resilience

import (
	"context"
	"errors"
	"testing"

	"github.com/Zchasse63/voice-fit-sub008/pkg/provider/llm"
	llmmock "github.com/Zchasse63/voice-fit-sub008/pkg/provider/llm/mock"
)

func TestLLMFallback_PrimarySuccess(t *testing.T) {
	primary := &llmmock.Provider{
		CompleteResponse: &llm.Response{Content: "primary reply"},
		Model:            "primary-model",
	}
	secondary := &llmmock.Provider{
		CompleteResponse: &llm.Response{Content: "secondary reply"},
	}

	f := NewLLMFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	f.AddFallback("secondary", secondary)

	resp, err := f.Complete(context.Background(), llm.Request{Prompt: "hello"})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "primary reply" {
		t.Errorf("Content = %q, want primary reply", resp.Content)
	}
	if len(secondary.Calls()) != 0 {
		t.Error("secondary was called while primary is healthy")
	}
	if got := f.ModelID(); got != "primary-model" {
		t.Errorf("ModelID = %q, want primary-model", got)
	}
}

func TestLLMFallback_FailsOverToSecondary(t *testing.T) {
	primary := &llmmock.Provider{CompleteErr: errors.New("rate limited")}
	secondary := &llmmock.Provider{
		CompleteResponse: &llm.Response{Content: "secondary reply"},
	}

	f := NewLLMFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	f.AddFallback("secondary", secondary)

	resp, err := f.Complete(context.Background(), llm.Request{Prompt: "hello"})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "secondary reply" {
		t.Errorf("Content = %q, want secondary reply", resp.Content)
	}
	if len(primary.Calls()) != 1 {
		t.Errorf("primary called %d times, want 1", len(primary.Calls()))
	}
}

func TestLLMFallback_AllFail(t *testing.T) {
	primary := &llmmock.Provider{CompleteErr: errors.New("down")}
	secondary := &llmmock.Provider{CompleteErr: errors.New("also down")}

	f := NewLLMFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	f.AddFallback("secondary", secondary)

	_, err := f.Complete(context.Background(), llm.Request{Prompt: "hello"})
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
}

func TestLLMFallback_OpenBreakerSkipsPrimary(t *testing.T) {
	primary := &llmmock.Provider{CompleteErr: errors.New("down")}
	secondary := &llmmock.Provider{
		CompleteResponse: &llm.Response{Content: "secondary reply"},
	}

	f := NewLLMFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 1},
	})
	f.AddFallback("secondary", secondary)
	ctx := context.Background()

	// First call trips the primary's breaker.
	if _, err := f.Complete(ctx, llm.Request{Prompt: "a"}); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if _, err := f.Complete(ctx, llm.Request{Prompt: "b"}); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	// The open breaker must have kept the second call away from the primary.
	if got := len(primary.Calls()); got != 1 {
		t.Errorf("primary called %d times, want 1", got)
	}
	if got := len(secondary.Calls()); got != 2 {
		t.Errorf("secondary called %d times, want 2", got)
	}
}
