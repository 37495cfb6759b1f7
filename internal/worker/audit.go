package worker

import (
	"context"
	"fmt"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/log"
)

// EventStore is the slice of the repository the audit worker needs.
type EventStore interface {
	RecordPostingEvent(ctx context.Context, txID, userID, accountID string, deltaCents int64, op string, recordedAt time.Time) error
}

// AuditWorker persists posting events published by the API so balance
// mutations stay traceable after the fact.
type AuditWorker struct {
	store  EventStore
	logger *log.Logger
}

func NewAuditWorker(store EventStore, logger *log.Logger) *AuditWorker {
	return &AuditWorker{
		store:  store,
		logger: logger.WithComponent(log.ComponentWorker),
	}
}

// HandlePostingEvent processes a single posting event from the queue.
// Returning an error nacks the message so it is redelivered.
func (w *AuditWorker) HandlePostingEvent(ctx context.Context, ev *amqp.PostingEvent) error {
	if ev.TransactionID == "" || ev.AccountID == "" {
		// malformed events are logged and dropped, requeueing would loop forever
		w.logger.WarnContext(ctx, "Dropping malformed posting event",
			log.FieldTxID, ev.TransactionID,
			log.FieldAccountID, ev.AccountID)
		return nil
	}

	recordedAt := ev.Timestamp
	if recordedAt.IsZero() {
		recordedAt = time.Now().UTC()
	}

	if err := w.store.RecordPostingEvent(ctx, ev.TransactionID, ev.UserID, ev.AccountID, ev.DeltaCents, ev.Op, recordedAt); err != nil {
		return fmt.Errorf("record posting event: %w", err)
	}

	w.logger.InfoContext(ctx, "Posting event recorded",
		log.FieldTxID, ev.TransactionID,
		log.FieldAccountID, ev.AccountID,
		log.FieldAmountCents, ev.DeltaCents,
		log.FieldOperation, ev.Op)
	return nil
}
