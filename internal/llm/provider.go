// Package llm unifies heterogeneous streaming chat-completion APIs behind a
// single Provider interface. Adapters translate the conversation history into
// the provider's wire shape, forward tokens as they arrive, and capture usage
// counters when the stream reports them.
package llm

import (
	"context"
	"errors"
	"fmt"
)

// Message is one turn of conversation history, in the order it was persisted.
// Role is "user" or "assistant"; adapters translate role names where the
// provider uses different ones.
type Message struct {
	Role    string
	Content string
}

// StreamResult is the outcome of a completed stream. Token counts are zero,
// never negative, when the provider reports no usage.
type StreamResult struct {
	Content      string
	InputTokens  int
	OutputTokens int
}

// TokenFunc receives each incremental chunk in arrival order, before Stream
// returns. It may perform I/O; a non-nil error aborts the stream.
type TokenFunc func(token string) error

// Provider is one streaming chat-completion backend.
//
// Implementations must not reorder or batch chunks beyond what the underlying
// stream does, and must surface provider errors to the caller unmodified.
type Provider interface {
	Stream(ctx context.Context, providerModelID string, history []Message, onToken TokenFunc) (*StreamResult, error)
}

// ErrUnknownProvider means a catalog row references a provider tag with no
// registered adapter. That is a configuration inconsistency, not a retryable
// condition.
var ErrUnknownProvider = errors.New("unknown provider")

// Registry maps a model's provider tag to its adapter. Selection is a pure
// lookup; adding a provider means registering a new entry, not editing shared
// logic.
type Registry map[string]Provider

// ForTag resolves the adapter for a provider tag.
func (r Registry) ForTag(tag string) (Provider, error) {
	p, ok := r[tag]
	if !ok || p == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, tag)
	}
	return p, nil
}
