package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/aws/aws-lambda-go/events"
	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/imrishuroy/digital-marketplace/internal/email"
	"github.com/imrishuroy/digital-marketplace/internal/idempotency"
)

// ErrInProgress is returned when another consumer holds the record of an
// email. The message is retried after the visibility timeout.
var ErrInProgress = errors.New("email delivery in progress")

// EmailSender delivers a rendered message and returns the provider message id.
type EmailSender interface {
	Send(ctx context.Context, msg *email.Message) (string, error)
}

// Processor turns queued order-received notifications into exactly one email
// per order.
type Processor struct {
	idempStore *idempotency.Store
	sender     EmailSender
	validate   *validatorv10.Validate
}

// NewProcessor creates a new worker processor.
func NewProcessor(idempStore *idempotency.Store, sender EmailSender) *Processor {
	return &Processor{
		idempStore: idempStore,
		sender:     sender,
		validate:   validatorv10.New(),
	}
}

// Handle receives an SQS batch event and processes each message.
func (p *Processor) Handle(ctx context.Context, ev events.SQSEvent) error {
	log.Printf("[worker] received %d SQS messages", len(ev.Records))
	for _, rec := range ev.Records {
		if err := p.processMessage(ctx, rec); err != nil {
			// Return error: Lambda will retry. If failed too many times, message goes to DLQ.
			log.Printf("[worker] message=%s error: %v", rec.MessageId, err)
			return err
		}
	}
	return nil
}

func (p *Processor) processMessage(ctx context.Context, rec events.SQSMessage) error {
	if attr, ok := rec.MessageAttributes["kind"]; ok && attr.StringValue != nil && *attr.StringValue != kindOrderReceived {
		log.Printf("[worker] skipping message=%s kind=%s", rec.MessageId, *attr.StringValue)
		return nil
	}

	var msg WorkerMessage
	if err := json.Unmarshal([]byte(rec.Body), &msg); err != nil {
		return fmt.Errorf("invalid message body: %w", err)
	}
	if err := p.validate.Struct(msg); err != nil {
		return fmt.Errorf("invalid message: %w", err)
	}

	key := idempotency.OrderReceivedKey(msg.OrderID)
	log.Printf("[worker] received order=%s idempotency_key=%s corr=%s", msg.OrderID, key, correlationID(rec))

	proceed, err := p.claim(ctx, key, msg.OrderID)
	if err != nil || !proceed {
		return err
	}

	rendered, err := email.RenderOrderReceived(msg)
	if err != nil {
		return p.fail(ctx, key, err)
	}
	sesID, err := p.sender.Send(ctx, rendered)
	if err != nil {
		return p.fail(ctx, key, err)
	}

	if err := p.idempStore.MarkDone(ctx, key, sesID); err != nil {
		// the email went out; the record stays IN_PROGRESS and blocks resends
		log.Printf("[worker] mark done failed order=%s ses_id=%s: %v", msg.OrderID, sesID, err)
		return nil
	}
	log.Printf("[worker] email sent order=%s ses_id=%s", msg.OrderID, sesID)
	return nil
}

// claim takes ownership of the email for key. It reports false if the email
// was already sent.
func (p *Processor) claim(ctx context.Context, key, orderID string) (bool, error) {
	created, err := p.idempStore.CreateIfNotExists(ctx, key, orderID)
	if err != nil {
		return false, fmt.Errorf("create idempotency record: %w", err)
	}
	if created {
		return true, nil
	}

	rec, err := p.idempStore.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("get idempotency record: %w", err)
	}
	if rec == nil {
		return false, fmt.Errorf("idempotency record %s vanished", key)
	}

	switch rec.Status {
	case idempotency.StatusDone:
		log.Printf("[worker] already sent order=%s ses_id=%s", orderID, rec.Response)
		return false, nil
	case idempotency.StatusInProgress:
		return false, fmt.Errorf("%w: order=%s", ErrInProgress, orderID)
	case idempotency.StatusFailed:
		err := p.idempStore.Reclaim(ctx, key, rec.Attempts+1)
		if errors.Is(err, idempotency.ErrConditionFailed) {
			return false, fmt.Errorf("%w: order=%s reclaimed elsewhere", ErrInProgress, orderID)
		}
		if err != nil {
			return false, fmt.Errorf("reclaim idempotency record: %w", err)
		}
		log.Printf("[worker] retrying order=%s attempt=%d", orderID, rec.Attempts+1)
		return true, nil
	default:
		return false, fmt.Errorf("unexpected idempotency status for order=%s: %s", orderID, rec.Status)
	}
}

func (p *Processor) fail(ctx context.Context, key string, cause error) error {
	if err := p.idempStore.MarkFailed(ctx, key, cause.Error()); err != nil {
		log.Printf("[worker] mark failed key=%s: %v", key, err)
	}
	return fmt.Errorf("send order-received email: %w", cause)
}

func correlationID(rec events.SQSMessage) string {
	if attr, ok := rec.MessageAttributes["correlation_id"]; ok && attr.StringValue != nil {
		return *attr.StringValue
	}
	return ""
}
