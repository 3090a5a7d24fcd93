package idempotency

import "time"

// Record states. A record is written IN_PROGRESS together with its order and moves to DONE once the
// response has been stored.
const (
	StatusInProgress = "IN_PROGRESS"
	StatusDone       = "DONE"
)

// IdempotencyRecord is one POST /orders request remembered under its Idempotency-Key.
type IdempotencyRecord struct {
	IdempotencyKey string    `dynamodbav:"idempotency_key"` // PK
	Status         string    `dynamodbav:"status"`
	OrderID        string    `dynamodbav:"order_id,omitempty"`
	RequestHash    string    `dynamodbav:"request_hash,omitempty"`
	ResponseBody   string    `dynamodbav:"response_body,omitempty"` // the created order, as returned
	ResponseStatus int       `dynamodbav:"response_status,omitempty"`
	CreatedAt      time.Time `dynamodbav:"created_at"`
	UpdatedAt      time.Time `dynamodbav:"updated_at"`
	ExpiresAt      int64     `dynamodbav:"expires_at"` // TTL epoch seconds
}

// Matches reports whether a request with the given fingerprint may replay this record. Records
// written without a fingerprint match any request.
func (r *IdempotencyRecord) Matches(requestHash string) bool {
	return r.RequestHash == "" || r.RequestHash == requestHash
}
