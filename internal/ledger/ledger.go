// Package ledger keeps account balances consistent with the set of live
// transactions attributed to them. Every create, update and delete of a
// transaction flows through the Poster, which applies the transaction's
// signed effect to exactly one owning account inside a single storage
// transaction.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/log"
)

// Tx is the set of store operations available inside one atomic unit of work.
// Lookups scoped with an owner ID must only return entities belonging to that
// owner; a missing or foreign entity surfaces as the package-level not-found
// sentinel of internal/core.
type Tx interface {
	// ActiveAccountOwned returns an active account owned by the user.
	ActiveAccountOwned(ctx context.Context, accountID, userID string) (*core.Account, error)
	// AccountOwned returns an account owned by the user, active or not.
	AccountOwned(ctx context.Context, accountID, userID string) (*core.Account, error)
	// AccountByID returns an account regardless of owner or active flag.
	AccountByID(ctx context.Context, accountID string) (*core.Account, error)
	SetAccountBalance(ctx context.Context, accountID string, balance core.Money) error

	TransactionOwned(ctx context.Context, txID, userID string) (*core.Transaction, error)
	InsertTransaction(ctx context.Context, t *core.Transaction) error
	UpdateTransaction(ctx context.Context, t *core.Transaction) error
	DeleteTransaction(ctx context.Context, txID string) error
}

// Store runs a function inside one atomic storage transaction. If fn returns
// an error the whole unit of work is rolled back, so an operation never
// leaves an orphaned balance adjustment or transaction record behind.
type Store interface {
	InTx(ctx context.Context, fn func(Tx) error) error
}

// EventPublisher emits posting events for the audit trail.
type EventPublisher interface {
	PublishPosting(ctx context.Context, ev *amqp.PostingEvent) error
}

// Poster applies transaction effects to account balances.
type Poster struct {
	store  Store
	events EventPublisher // nil disables posting events
	logger *log.Logger
}

func NewPoster(store Store, events EventPublisher, logger *log.Logger) *Poster {
	return &Poster{
		store:  store,
		events: events,
		logger: logger.WithComponent(log.ComponentLedger),
	}
}

// PostInput carries the fields of a new transaction. Amount is a raw
// magnitude; the stored signed amount is always derived from Type.
type PostInput struct {
	UserID      string
	AccountID   string
	Amount      core.Money
	Type        core.TransactionType
	Description string
	Category    string
	Date        time.Time
}

// RepostInput carries a partial update. Nil fields are left untouched.
// Amount, Type and AccountID affect balances; the rest is descriptive.
type RepostInput struct {
	Amount      *core.Money
	Type        *core.TransactionType
	AccountID   *string
	Description *string
	Category    *string
	Date        *time.Time
}

func (in RepostInput) touchesBalance() bool {
	return in.Amount != nil || in.Type != nil || in.AccountID != nil
}

// Post creates a transaction against an active account owned by the caller
// and adds its signed amount to the account balance.
func (p *Poster) Post(ctx context.Context, in PostInput) (*core.Transaction, error) {
	if in.Amount.Abs() == 0 {
		return nil, core.ErrInvalidAmount
	}
	if !in.Type.Valid() {
		return nil, core.ErrInvalidTxType
	}

	now := time.Now().UTC()
	t := &core.Transaction{
		ID:          uuid.NewString(),
		UserID:      in.UserID,
		AccountID:   in.AccountID,
		Amount:      core.SignedAmount(in.Type, in.Amount),
		Type:        in.Type,
		Description: in.Description,
		Category:    in.Category,
		Date:        in.Date,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}

	err := p.store.InTx(ctx, func(tx Tx) error {
		acct, err := tx.ActiveAccountOwned(ctx, in.AccountID, in.UserID)
		if err != nil {
			return err
		}
		if err := tx.InsertTransaction(ctx, t); err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}
		if err := tx.SetAccountBalance(ctx, acct.ID, acct.Balance+t.Amount); err != nil {
			return fmt.Errorf("update balance: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	p.logger.InfoContext(ctx, "Transaction posted",
		log.FieldOperation, log.OpPost,
		log.FieldTxID, t.ID,
		log.FieldAccountID, t.AccountID,
		log.FieldAmountCents, t.Amount.Cents())

	p.publish(ctx, t.ID, in.UserID, t.AccountID, t.Amount, amqp.OpPost)
	return t, nil
}

// Repost updates a transaction. When amount, type or account change, the
// current signed amount is reversed from the current account, the new signed
// amount recomputed and applied to the (possibly new) target account.
// Descriptive-only updates never touch any balance.
func (p *Poster) Repost(ctx context.Context, txID, userID string, in RepostInput) (*core.Transaction, error) {
	var (
		updated  *core.Transaction
		reversed core.Money
		oldAcct  string
		// which balance writes actually landed; skipped adjustments must
		// not appear in the audit trail
		reverseApplied bool
		applyApplied   bool
	)

	err := p.store.InTx(ctx, func(tx Tx) error {
		t, err := tx.TransactionOwned(ctx, txID, userID)
		if err != nil {
			return err
		}

		if in.touchesBalance() {
			oldAmount := t.Amount
			oldAcct = t.AccountID

			newType := t.Type
			if in.Type != nil {
				if !in.Type.Valid() {
					return core.ErrInvalidTxType
				}
				newType = *in.Type
			}
			magnitude := t.Amount.Abs()
			if in.Amount != nil {
				if in.Amount.Abs() == 0 {
					return core.ErrInvalidAmount
				}
				magnitude = *in.Amount
			}
			newAmount := core.SignedAmount(newType, magnitude)

			targetID := t.AccountID
			if in.AccountID != nil {
				targetID = *in.AccountID
			}

			old, err := tx.AccountByID(ctx, t.AccountID)
			if err != nil && !errors.Is(err, core.ErrAccountNotFound) {
				return err
			}

			if targetID == t.AccountID {
				// Same account: reversal and reapplication collapse into one write.
				if old == nil {
					p.logger.WarnContext(ctx, "Account missing, skipping balance adjustment",
						log.FieldTxID, t.ID, log.FieldAccountID, t.AccountID)
				} else {
					if err := tx.SetAccountBalance(ctx, old.ID, old.Balance-oldAmount+newAmount); err != nil {
						return fmt.Errorf("update balance: %w", err)
					}
					reverseApplied = true
					applyApplied = true
				}
			} else {
				// Reassignment: the target must exist and belong to the caller.
				target, err := tx.AccountOwned(ctx, targetID, userID)
				if err != nil {
					return err
				}
				if old == nil {
					p.logger.WarnContext(ctx, "Old account missing, skipping reversal",
						log.FieldTxID, t.ID, log.FieldAccountID, t.AccountID)
				} else {
					if err := tx.SetAccountBalance(ctx, old.ID, old.Balance-oldAmount); err != nil {
						return fmt.Errorf("reverse balance: %w", err)
					}
					reverseApplied = true
				}
				if err := tx.SetAccountBalance(ctx, target.ID, target.Balance+newAmount); err != nil {
					return fmt.Errorf("apply balance: %w", err)
				}
				applyApplied = true
			}

			reversed = oldAmount
			t.AccountID = targetID
			t.Type = newType
			t.Amount = newAmount
		}

		if in.Description != nil {
			t.Description = *in.Description
		}
		if in.Category != nil {
			t.Category = *in.Category
		}
		if in.Date != nil {
			t.Date = *in.Date
		}
		t.UpdatedAt = time.Now().UTC()

		if err := t.Validate(); err != nil {
			return err
		}
		if err := tx.UpdateTransaction(ctx, t); err != nil {
			return fmt.Errorf("update transaction: %w", err)
		}
		updated = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	if in.touchesBalance() {
		p.logger.InfoContext(ctx, "Transaction reposted",
			log.FieldOperation, log.OpRepost,
			log.FieldTxID, updated.ID,
			log.FieldAccountID, updated.AccountID,
			log.FieldAmountCents, updated.Amount.Cents())

		if reverseApplied {
			p.publish(ctx, updated.ID, userID, oldAcct, -reversed, amqp.OpReverse)
		}
		if applyApplied {
			p.publish(ctx, updated.ID, userID, updated.AccountID, updated.Amount, amqp.OpPost)
		}
	}
	return updated, nil
}

// Unpost deletes a transaction, reversing its signed amount from the
// referenced account if that account still exists.
func (p *Poster) Unpost(ctx context.Context, txID, userID string) error {
	var (
		amount   core.Money
		acctID   string
		reversed bool
	)

	err := p.store.InTx(ctx, func(tx Tx) error {
		t, err := tx.TransactionOwned(ctx, txID, userID)
		if err != nil {
			return err
		}
		amount = t.Amount
		acctID = t.AccountID

		acct, err := tx.AccountByID(ctx, t.AccountID)
		if err != nil && !errors.Is(err, core.ErrAccountNotFound) {
			return err
		}
		if acct == nil {
			p.logger.WarnContext(ctx, "Account missing, skipping reversal",
				log.FieldTxID, t.ID, log.FieldAccountID, t.AccountID)
		} else {
			if err := tx.SetAccountBalance(ctx, acct.ID, acct.Balance-t.Amount); err != nil {
				return fmt.Errorf("reverse balance: %w", err)
			}
			reversed = true
		}

		if err := tx.DeleteTransaction(ctx, t.ID); err != nil {
			return fmt.Errorf("delete transaction: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	p.logger.InfoContext(ctx, "Transaction unposted",
		log.FieldOperation, log.OpUnpost,
		log.FieldTxID, txID,
		log.FieldAccountID, acctID,
		log.FieldAmountCents, amount.Cents())

	if reversed {
		p.publish(ctx, txID, userID, acctID, -amount, amqp.OpReverse)
	}
	return nil
}

// publish emits a posting event. Events are best effort: the balance write
// already committed, so a publish failure is logged and swallowed.
func (p *Poster) publish(ctx context.Context, txID, userID, accountID string, delta core.Money, op string) {
	if p.events == nil {
		return
	}
	if err := p.events.PublishPosting(ctx, amqp.NewPostingEvent(txID, userID, accountID, delta.Cents(), op)); err != nil {
		p.logger.ErrorContext(ctx, "Failed to publish posting event",
			log.FieldError, err,
			log.FieldTxID, txID,
			log.FieldAccountID, accountID)
	}
}
