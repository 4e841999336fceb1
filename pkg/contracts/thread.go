package contracts

import "time"

// ThreadStatus tracks the state of an email conversation.
type ThreadStatus string

const (
	ThreadActive   ThreadStatus = "active"
	ThreadClosed   ThreadStatus = "closed"
	ThreadArchived ThreadStatus = "archived"
)

// MessageDirection distinguishes rider replies from outreach sends.
type MessageDirection string

const (
	DirectionInbound  MessageDirection = "inbound"
	DirectionOutbound MessageDirection = "outbound"
)

// MessageStatus tracks a message's delivery state. Only DRAFT messages are
// mutable; SENT messages are append-only history.
type MessageStatus string

const (
	MessageDraft    MessageStatus = "draft"
	MessageSent     MessageStatus = "sent"
	MessageRead     MessageStatus = "read"
	MessageArchived MessageStatus = "archived"
)

// Bucket is the classification label for an inbound reply.
type Bucket string

const (
	BucketAcknowledgment Bucket = "acknowledgment"
	BucketQuestion       Bucket = "question"
	BucketUpdate         Bucket = "update"
	BucketEscalation     Bucket = "escalation"
)

// ValidBucket reports whether b is one of the fixed taxonomy labels.
func ValidBucket(b Bucket) bool {
	switch b {
	case BucketAcknowledgment, BucketQuestion, BucketUpdate, BucketEscalation:
		return true
	}
	return false
}

// EmailThread is the single conversation attached to a case (1:1, created
// lazily on first outreach).
type EmailThread struct {
	ThreadID  string       `json:"thread_id"`
	CaseID    string       `json:"case_id"`
	VanpoolID string       `json:"vanpool_id"`
	Subject   string       `json:"subject"`
	Status    ThreadStatus `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
}

// Message is one communication turn in a thread. Insertion order is
// chronological and causal; no out-of-order delivery is assumed.
type Message struct {
	MessageID string           `json:"message_id"`
	ThreadID  string           `json:"thread_id"`
	From      string           `json:"from"`
	To        []string         `json:"to"`
	Body      string           `json:"body"`
	Direction MessageDirection `json:"direction"`
	Status    MessageStatus    `json:"status"`

	// TransportID is the provider's id for a delivered outbound message,
	// recorded when the transport accepts it.
	TransportID string `json:"transport_id,omitempty"`

	// Classification is set only on inbound messages, after the classifier
	// has seen them.
	Classification *Bucket `json:"classification,omitempty"`

	SentAt    *time.Time `json:"sent_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}
