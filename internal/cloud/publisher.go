package cloud

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/ahmedsayedsa/orderbot/internal/session"
)

// OutcomePublisher mirrors terminal session outcomes onto an SQS queue so
// downstream consumers (fulfilment, analytics) see decisions without polling
// the backend. Publishing is best-effort and entirely optional: a publisher
// with an empty queue URL is a no-op.
type OutcomePublisher struct {
	SQS      SQSAPI
	QueueURL string
}

// NewOutcomePublisher returns a publisher bound to a queue URL.
func NewOutcomePublisher(sqsClient SQSAPI, queueURL string) *OutcomePublisher {
	return &OutcomePublisher{SQS: sqsClient, QueueURL: queueURL}
}

// outcomeMessage is the queue payload for one terminal transition.
type outcomeMessage struct {
	OrderID       string    `json:"order_id"`
	Status        string    `json:"status"`
	CustomerPhone string    `json:"customer_phone"`
	CustomerName  string    `json:"customer_name"`
	DecidedAt     time.Time `json:"decided_at"`
}

// PublishOutcome sends one terminal outcome to the queue.
func (p *OutcomePublisher) PublishOutcome(ctx context.Context, out session.Outcome, correlationID string) error {
	if p == nil || p.QueueURL == "" || p.SQS == nil {
		return nil
	}

	body, err := json.Marshal(outcomeMessage{
		OrderID:       out.Session.OrderID,
		Status:        out.Status,
		CustomerPhone: out.Session.CustomerPhone,
		CustomerName:  out.Session.CustomerName,
		DecidedAt:     time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal outcome: %w", err)
	}

	msgBody := string(body)
	input := &sqs.SendMessageInput{
		QueueUrl:    &p.QueueURL,
		MessageBody: &msgBody,
	}
	attrs := map[string]string{
		"order_id": out.Session.OrderID,
		"status":   out.Status,
	}
	if correlationID != "" {
		attrs["correlation_id"] = correlationID
	}
	msgAttrs := map[string]sqstypes.MessageAttributeValue{}
	for k, v := range attrs {
		v := v
		msgAttrs[k] = sqstypes.MessageAttributeValue{
			DataType:    awsString("String"),
			StringValue: &v,
		}
	}
	input.MessageAttributes = msgAttrs

	if _, err := p.SQS.SendMessage(ctx, input); err != nil {
		return fmt.Errorf("send outcome message: %w", err)
	}
	return nil
}

func awsString(s string) *string { return &s }
