package amqp

import (
	"encoding/json"
	"time"
)

// Posting event operations.
const (
	OpPost    = "post"
	OpReverse = "reverse"
)

// PostingEvent records one signed balance adjustment applied to an account.
// The stream of these events is an append-only ledger from which any account
// balance can be recomputed.
type PostingEvent struct {
	TransactionID string    `json:"transaction_id"`
	UserID        string    `json:"user_id"`
	AccountID     string    `json:"account_id"`
	DeltaCents    int64     `json:"delta_cents"`
	Op            string    `json:"op"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewPostingEvent creates a posting event stamped with the current time.
func NewPostingEvent(txID, userID, accountID string, deltaCents int64, op string) *PostingEvent {
	return &PostingEvent{
		TransactionID: txID,
		UserID:        userID,
		AccountID:     accountID,
		DeltaCents:    deltaCents,
		Op:            op,
		Timestamp:     time.Now(),
	}
}

// ToJSON converts the event to JSON bytes
func (e *PostingEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// PostingEventFromJSON creates an event from JSON bytes
func PostingEventFromJSON(data []byte) (*PostingEvent, error) {
	var ev PostingEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}
