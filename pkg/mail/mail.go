// Package mail sends outreach email. The production transport is Resend's
// HTTP API; tests and dry runs use the in-memory sender.
package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// DefaultFrom is the program's sending identity.
const DefaultFrom = "Pool Patrol <contact@send.joyax.co>"

// ErrNoAPIKey is returned when the transport has no credentials. Callers
// record the message as unsent instead of failing the whole cycle.
var ErrNoAPIKey = errors.New("mail: no API key configured")

// Outgoing is one email to deliver.
type Outgoing struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Body    string   `json:"text"`
}

// Sender delivers email. Send returns the provider's message id.
type Sender interface {
	Send(ctx context.Context, msg Outgoing) (providerID string, err error)
}

// Resend delivers through the Resend HTTP API.
type Resend struct {
	apiKey  string
	baseURL string
	httpc   *http.Client
}

// NewResend creates the Resend transport. An empty apiKey is allowed; Send
// then returns ErrNoAPIKey so local runs degrade to drafts.
func NewResend(apiKey string) *Resend {
	return &Resend{
		apiKey:  apiKey,
		baseURL: "https://api.resend.com",
		httpc:   &http.Client{Timeout: 15 * time.Second},
	}
}

// WithBaseURL overrides the API endpoint.
func (r *Resend) WithBaseURL(baseURL string) *Resend {
	r.baseURL = baseURL
	return r
}

type resendResponse struct {
	ID string `json:"id"`
}

func (r *Resend) Send(ctx context.Context, msg Outgoing) (string, error) {
	if r.apiKey == "" {
		return "", ErrNoAPIKey
	}
	if msg.From == "" {
		msg.From = DefaultFrom
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("mail: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", r.baseURL+"/emails", bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("mail: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+r.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("mail: send: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("mail: provider returned %d: %s", resp.StatusCode, detail)
	}

	var parsed resendResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("mail: decode response: %w", err)
	}
	return parsed.ID, nil
}

// Memory records sent mail for tests.
type Memory struct {
	mu   sync.Mutex
	sent []Outgoing
	err  error
}

// NewMemory creates an in-memory sender.
func NewMemory() *Memory { return &Memory{} }

// FailWith makes every subsequent Send return err.
func (m *Memory) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *Memory) Send(ctx context.Context, msg Outgoing) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	if msg.From == "" {
		msg.From = DefaultFrom
	}
	m.sent = append(m.sent, msg)
	return fmt.Sprintf("mem-%d", len(m.sent)), nil
}

// Sent returns a copy of everything delivered so far.
func (m *Memory) Sent() []Outgoing {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Outgoing(nil), m.sent...)
}

var (
	_ Sender = (*Resend)(nil)
	_ Sender = (*Memory)(nil)
)
