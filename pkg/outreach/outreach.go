// Package outreach runs the email side of an investigation: it opens the
// case's thread lazily, sends the initial notice, classifies rider replies,
// and answers them. Escalation replies are the one send that must pass the
// human approval gate.
package outreach

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joyax/pool-patrol/pkg/approval"
	"github.com/joyax/pool-patrol/pkg/classify"
	"github.com/joyax/pool-patrol/pkg/contracts"
	"github.com/joyax/pool-patrol/pkg/mail"
	"github.com/joyax/pool-patrol/pkg/store"
	"github.com/joyax/pool-patrol/pkg/templates"
)

// Context carries what one outreach pass needs to know about its case.
type Context struct {
	Case   *contracts.Case
	Roster *contracts.Roster

	// Details from the verification cycle, interpolated into the initial
	// outreach copy.
	ShiftDetails    string
	LocationDetails string
}

// Orchestrator handles one outreach pass per investigation cycle.
type Orchestrator struct {
	threads    store.ThreadStore
	classifier classify.Classifier
	sender     mail.Sender
	registry   *templates.Registry
	gate       *approval.Gate
	logger     *slog.Logger
	clock      func() time.Time
}

// NewOrchestrator wires the outreach sub-orchestrator.
func NewOrchestrator(threads store.ThreadStore, classifier classify.Classifier, sender mail.Sender, registry *templates.Registry, gate *approval.Gate, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		threads:    threads,
		classifier: classifier,
		sender:     sender,
		registry:   registry,
		gate:       gate,
		logger:     logger.With("component", "outreach"),
		clock:      time.Now,
	}
}

// WithClock overrides the clock for deterministic testing.
func (o *Orchestrator) WithClock(clock func() time.Time) *Orchestrator {
	o.clock = clock
	return o
}

// Handle runs one outreach pass for the case. Transport failures are
// reported in the result, never as an error: the case keeps its status and
// the send retries on the next cycle.
func (o *Orchestrator) Handle(ctx context.Context, octx Context) (*contracts.OutreachResult, error) {
	thread, err := o.loadOrCreateThread(ctx, octx)
	if err != nil {
		return nil, err
	}
	result := &contracts.OutreachResult{ThreadID: thread.ThreadID}

	msgs, err := o.threads.ListMessages(ctx, thread.ThreadID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	if len(msgs) == 0 {
		return o.sendInitial(ctx, octx, thread, result)
	}

	latest := latestInbound(msgs)
	if latest == nil || latest.Classification != nil {
		// Still waiting on the rider; nothing new to answer.
		return result, nil
	}

	bucket, err := o.classifier.Classify(ctx, thread.Subject, latest.Body)
	if err != nil {
		return nil, fmt.Errorf("classify reply: %w", err)
	}
	result.Bucket = &bucket

	subject := "Re: " + thread.Subject
	body := replyBody(bucket, octx.Case.VanpoolID)
	to := []string{latest.From}

	if bucket == contracts.BucketEscalation {
		res, err := o.suspendEscalation(ctx, octx, thread, result, to, subject, body)
		if err != nil {
			return nil, err
		}
		return res, o.recordClassification(ctx, latest, bucket)
	}

	res, err := o.send(ctx, thread, result, to, subject, body)
	if err != nil {
		return nil, err
	}
	if !res.Sent {
		// Transport failed; leave the reply unclassified so the next cycle
		// retries the whole classify-and-answer step.
		return res, nil
	}
	return res, o.recordClassification(ctx, latest, bucket)
}

// ExecuteEscalation delivers an approved (possibly edited) escalation reply
// and promotes its retained draft to SENT.
func (o *Orchestrator) ExecuteEscalation(ctx context.Context, caseID string, args contracts.ActionArgs) (string, error) {
	thread, err := o.threads.GetThreadByCase(ctx, caseID)
	if err != nil {
		return "", fmt.Errorf("load thread for case %s: %w", caseID, err)
	}

	providerID, err := o.sender.Send(ctx, mail.Outgoing{
		To:      args.To,
		Subject: args.Subject,
		Body:    args.Body,
	})
	if err != nil {
		return "", fmt.Errorf("send approved escalation: %w", err)
	}

	now := o.clock().UTC()
	if args.DraftMessageID != "" {
		msgs, err := o.threads.ListMessages(ctx, thread.ThreadID)
		if err != nil {
			return "", fmt.Errorf("list messages: %w", err)
		}
		for _, m := range msgs {
			if m.MessageID == args.DraftMessageID {
				m.Status = contracts.MessageSent
				m.Body = args.Body
				m.To = args.To
				m.TransportID = providerID
				m.SentAt = &now
				if err := o.threads.UpdateMessage(ctx, m); err != nil {
					return "", fmt.Errorf("promote draft: %w", err)
				}
				return m.MessageID, nil
			}
		}
	}

	// No draft to promote (e.g. it was pruned); record the send fresh.
	msg := &contracts.Message{
		MessageID:   store.NewMessageID(),
		ThreadID:    thread.ThreadID,
		From:        mail.DefaultFrom,
		To:          args.To,
		Body:        args.Body,
		Direction:   contracts.DirectionOutbound,
		Status:      contracts.MessageSent,
		TransportID: providerID,
		SentAt:      &now,
		CreatedAt:   now,
	}
	if err := o.threads.AppendMessage(ctx, msg); err != nil {
		return "", fmt.Errorf("persist sent message: %w", err)
	}
	return msg.MessageID, nil
}

func (o *Orchestrator) loadOrCreateThread(ctx context.Context, octx Context) (*contracts.EmailThread, error) {
	thread, err := o.threads.GetThreadByCase(ctx, octx.Case.CaseID)
	if err == nil {
		return thread, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("load thread: %w", err)
	}

	email, err := o.renderInitial(octx)
	if err != nil {
		return nil, err
	}
	thread = &contracts.EmailThread{
		ThreadID:  store.NewThreadID(),
		CaseID:    octx.Case.CaseID,
		VanpoolID: octx.Case.VanpoolID,
		Subject:   email.Subject,
		Status:    contracts.ThreadActive,
		CreatedAt: o.clock().UTC(),
	}
	if err := o.threads.CreateThread(ctx, thread); err != nil {
		return nil, fmt.Errorf("create thread: %w", err)
	}
	o.logger.Info("thread opened", "thread_id", thread.ThreadID, "case_id", octx.Case.CaseID)
	return thread, nil
}

func (o *Orchestrator) renderInitial(octx Context) (*templates.Email, error) {
	key := templates.KeyFor(
		hasCheck(octx.Case.Metadata.FailedChecks, contracts.CheckShift),
		hasCheck(octx.Case.Metadata.FailedChecks, contracts.CheckLocation),
	)
	email, err := o.registry.Render(key, templates.Params{
		VanpoolID:       octx.Case.VanpoolID,
		ShiftDetails:    octx.ShiftDetails,
		LocationDetails: octx.LocationDetails,
	})
	if err != nil {
		return nil, fmt.Errorf("render outreach template: %w", err)
	}
	return email, nil
}

func (o *Orchestrator) sendInitial(ctx context.Context, octx Context, thread *contracts.EmailThread, result *contracts.OutreachResult) (*contracts.OutreachResult, error) {
	email, err := o.renderInitial(octx)
	if err != nil {
		return nil, err
	}
	return o.send(ctx, thread, result, octx.Roster.RiderEmails(), email.Subject, email.Body)
}

func (o *Orchestrator) send(ctx context.Context, thread *contracts.EmailThread, result *contracts.OutreachResult, to []string, subject, body string) (*contracts.OutreachResult, error) {
	providerID, err := o.sender.Send(ctx, mail.Outgoing{To: to, Subject: subject, Body: body})
	if err != nil {
		o.logger.Warn("send failed, will retry next cycle",
			"thread_id", thread.ThreadID, "error", err)
		result.Sent = false
		result.Error = err.Error()
		return result, nil
	}

	now := o.clock().UTC()
	msg := &contracts.Message{
		MessageID:   store.NewMessageID(),
		ThreadID:    thread.ThreadID,
		From:        mail.DefaultFrom,
		To:          to,
		Body:        body,
		Direction:   contracts.DirectionOutbound,
		Status:      contracts.MessageSent,
		TransportID: providerID,
		SentAt:      &now,
		CreatedAt:   now,
	}
	if err := o.threads.AppendMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("persist sent message: %w", err)
	}

	result.Sent = true
	result.MessageID = msg.MessageID
	o.logger.Info("outreach sent",
		"thread_id", thread.ThreadID, "message_id", msg.MessageID, "recipients", len(to))
	return result, nil
}

func (o *Orchestrator) suspendEscalation(ctx context.Context, octx Context, thread *contracts.EmailThread, result *contracts.OutreachResult, to []string, subject, body string) (*contracts.OutreachResult, error) {
	draft := &contracts.Message{
		MessageID: store.NewMessageID(),
		ThreadID:  thread.ThreadID,
		From:      mail.DefaultFrom,
		To:        to,
		Body:      body,
		Direction: contracts.DirectionOutbound,
		Status:    contracts.MessageDraft,
		CreatedAt: o.clock().UTC(),
	}
	if err := o.threads.AppendMessage(ctx, draft); err != nil {
		return nil, fmt.Errorf("persist draft: %w", err)
	}

	cp, err := o.gate.Request(ctx, octx.Case.CaseID, octx.Case.VanpoolID, contracts.ActionSendEscalation,
		contracts.ActionArgs{To: to, Subject: subject, Body: body, DraftMessageID: draft.MessageID})
	if err != nil {
		if errors.Is(err, store.ErrCheckpointPending) {
			// A sensitive action is already held for this case; this cycle
			// must not queue a second one.
			return nil, err
		}
		return nil, fmt.Errorf("suspend escalation: %w", err)
	}

	result.HITLRequired = true
	result.Sent = false
	result.MessageID = draft.MessageID
	result.CheckpointID = cp.CheckpointID
	return result, nil
}

func (o *Orchestrator) recordClassification(ctx context.Context, msg *contracts.Message, bucket contracts.Bucket) error {
	msg.Classification = &bucket
	if msg.Status == contracts.MessageSent {
		msg.Status = contracts.MessageRead
	}
	if err := o.threads.UpdateMessage(ctx, msg); err != nil {
		return fmt.Errorf("record classification: %w", err)
	}
	return nil
}

func latestInbound(msgs []*contracts.Message) *contracts.Message {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Direction == contracts.DirectionInbound {
			return msgs[i]
		}
	}
	return nil
}

func hasCheck(checks []string, name string) bool {
	for _, c := range checks {
		if c == name {
			return true
		}
	}
	return false
}

func replyBody(bucket contracts.Bucket, vanpoolID string) string {
	switch bucket {
	case contracts.BucketAcknowledgment:
		return fmt.Sprintf(`Thank you for confirming receipt of our eligibility review notice for %s.

No further action is needed from you at this time. We will follow up once the review completes.

Pool Patrol Team`, vanpoolID)
	case contracts.BucketQuestion:
		return fmt.Sprintf(`Thank you for your question regarding the %s eligibility review.

A program coordinator will follow up with specifics shortly. In the meantime, the quickest way to resolve the review is to confirm your current home address and work shift assignment by replying to this thread.

Pool Patrol Team`, vanpoolID)
	case contracts.BucketUpdate:
		return fmt.Sprintf(`Thank you for the update regarding %s.

We have recorded the change you described and will re-run the eligibility checks against the updated information in the next review cycle.

Pool Patrol Team`, vanpoolID)
	default: // escalation
		return fmt.Sprintf(`Thank you for raising your concerns about the %s eligibility review.

We understand this process can be frustrating. Your case has been forwarded to a program coordinator for personal review, and someone will contact you directly before any changes are made to your vanpool membership.

Pool Patrol Team`, vanpoolID)
	}
}
