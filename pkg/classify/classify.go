// Package classify sorts inbound rider replies into the fixed action
// taxonomy: acknowledgment, question, update, escalation. Ambiguity always
// falls toward escalation so an unhappy rider is never silently archived.
package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/joyax/pool-patrol/pkg/contracts"
	"github.com/joyax/pool-patrol/pkg/llm"
)

// Classifier buckets an inbound reply body.
type Classifier interface {
	Classify(ctx context.Context, subject, body string) (contracts.Bucket, error)
}

const systemPrompt = `You classify a rider's reply to a vanpool eligibility email into exactly one bucket:
- acknowledgment: the rider simply confirms receipt or agrees, no action needed
- question: the rider asks for clarification and expects an answer
- update: the rider reports changed circumstances (new shift, new address, leaving the vanpool)
- escalation: the rider is upset, disputes the finding, threatens complaint, or asks for a human

Respond with JSON only: {"bucket": "<label>", "reasoning": "<one sentence>"}`

type llmVerdict struct {
	Bucket    string `json:"bucket"`
	Reasoning string `json:"reasoning"`
}

// LLM classifies with a language model at temperature 0. Any transport
// failure, parse failure, or out-of-taxonomy label falls back to escalation.
type LLM struct {
	client llm.Client
	logger *slog.Logger
}

// NewLLM creates a model-backed classifier.
func NewLLM(client llm.Client, logger *slog.Logger) *LLM {
	if logger == nil {
		logger = slog.Default()
	}
	return &LLM{client: client, logger: logger}
}

func (c *LLM) Classify(ctx context.Context, subject, body string) (contracts.Bucket, error) {
	resp, err := c.client.Chat(ctx, []llm.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: fmt.Sprintf("Subject: %s\n\n%s", subject, body)},
	}, &llm.SamplingOptions{Temperature: 0})
	if err != nil {
		c.logger.Warn("classifier transport failure, escalating", "error", err)
		return contracts.BucketEscalation, nil
	}

	var verdict llmVerdict
	if err := json.Unmarshal([]byte(stripFences(resp.Content)), &verdict); err != nil {
		c.logger.Warn("unparseable classifier output, escalating", "error", err)
		return contracts.BucketEscalation, nil
	}

	bucket := contracts.Bucket(strings.ToLower(strings.TrimSpace(verdict.Bucket)))
	if !contracts.ValidBucket(bucket) {
		c.logger.Warn("classifier returned unknown bucket, escalating", "bucket", verdict.Bucket)
		return contracts.BucketEscalation, nil
	}
	return bucket, nil
}

// stripFences removes a markdown code fence the model may wrap its JSON in.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// Keyword is a deterministic classifier used when no model is configured and
// as the taxonomy of record in tests. Escalation phrasing wins over anything
// else in the same reply.
type Keyword struct{}

// NewKeyword creates the heuristic classifier.
func NewKeyword() *Keyword { return &Keyword{} }

var (
	escalationMarkers = []string{
		"unacceptable", "complaint", "dispute", "unfair", "wrong",
		"manager", "supervisor", "lawyer", "hr ", "speak to a human",
		"this is ridiculous", "i refuse",
	}
	questionMarkers = []string{
		"?", "what ", "when ", "how ", "which ", "could you clarify",
		"can you explain",
	}
	updateMarkers = []string{
		"i moved", "new address", "changed my shift", "new shift",
		"switched to", "transferring", "i am leaving", "i'm leaving",
		"no longer ride", "quit the vanpool",
	}
	ackMarkers = []string{
		"thanks", "thank you", "got it", "understood", "ok", "okay",
		"will do", "sounds good", "received",
	}
)

func (c *Keyword) Classify(ctx context.Context, subject, body string) (contracts.Bucket, error) {
	text := strings.ToLower(subject + " " + body)

	for _, m := range escalationMarkers {
		if strings.Contains(text, m) {
			return contracts.BucketEscalation, nil
		}
	}
	for _, m := range updateMarkers {
		if strings.Contains(text, m) {
			return contracts.BucketUpdate, nil
		}
	}
	for _, m := range questionMarkers {
		if strings.Contains(text, m) {
			return contracts.BucketQuestion, nil
		}
	}
	for _, m := range ackMarkers {
		if strings.Contains(text, m) {
			return contracts.BucketAcknowledgment, nil
		}
	}
	// Nothing matched: fail safe.
	return contracts.BucketEscalation, nil
}

var (
	_ Classifier = (*LLM)(nil)
	_ Classifier = (*Keyword)(nil)
)
