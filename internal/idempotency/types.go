package idempotency

import "time"

// Status values for idempotency entries
const (
	StatusInProgress = "IN_PROGRESS"
	StatusDone       = "DONE"
	StatusFailed     = "FAILED"
)

// Record is the shape persisted in the idempotency DynamoDB table. One record
// guards one side effect, e.g. the order-received email of an order.
type Record struct {
	IdempotencyKey string    `dynamodbav:"idempotency_key"` // PK
	Status         string    `dynamodbav:"status"`
	Subject        string    `dynamodbav:"subject,omitempty"`  // order id the effect belongs to
	Response       string    `dynamodbav:"response,omitempty"` // e.g. SES message id
	Attempts       int       `dynamodbav:"attempts"`
	CreatedAt      time.Time `dynamodbav:"created_at"`
	UpdatedAt      time.Time `dynamodbav:"updated_at"`
	ExpiresAt      int64     `dynamodbav:"expires_at"` // TTL epoch seconds
	Note           string    `dynamodbav:"note,omitempty"`
}

// OrderReceivedKey is the key guarding the order-received email of an order.
func OrderReceivedKey(orderID string) string {
	return "order-received:" + orderID
}
