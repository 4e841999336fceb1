// Package llm abstracts the language model used for verification reasoning,
// reply classification, and outreach drafting.
package llm

import (
	"context"
)

// Message is one turn of a chat exchange.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client is the minimal chat surface the engine depends on. Implementations
// must be safe for concurrent use.
type Client interface {
	Chat(ctx context.Context, messages []Message, options *SamplingOptions) (*Response, error)
}

// SamplingOptions tunes generation. Classification runs at temperature 0 so
// bucket labels stay stable across retries.
type SamplingOptions struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
	Seed        int64   `json:"seed"`
}

// Response is the model's reply.
type Response struct {
	Content string `json:"content"`
}
