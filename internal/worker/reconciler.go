package worker

import (
	"context"
	"fmt"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/log"
)

// BalanceStore is the slice of the repository the reconciler needs.
type BalanceStore interface {
	AllAccounts(ctx context.Context) ([]core.Account, error)
	SumAccountTransactions(ctx context.Context, accountID string) (core.Money, error)
}

// Reconciler periodically compares each account's stored balance against the
// signed sum of its live transactions and reports any drift. It never writes:
// drift means a bug elsewhere, and silently repairing it would hide it.
type Reconciler struct {
	store    BalanceStore
	logger   *log.Logger
	interval time.Duration
}

func NewReconciler(store BalanceStore, logger *log.Logger, interval time.Duration) *Reconciler {
	return &Reconciler{
		store:    store,
		logger:   logger.WithComponent(log.ComponentWorker),
		interval: interval,
	}
}

// Run executes a reconciliation pass on every tick until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.InfoContext(ctx, "Reconciler started", "interval", r.interval.String())

	for {
		select {
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "Reconciler stopped", log.FieldOperation, log.OpShutdown)
			return ctx.Err()
		case <-ticker.C:
			if _, err := r.ReconcileOnce(ctx); err != nil {
				r.logger.ErrorContext(ctx, "Reconciliation pass failed", log.FieldError, err)
			}
		}
	}
}

// ReconcileOnce checks every account once and returns the number of accounts
// whose balance disagrees with the sum of their transactions.
func (r *Reconciler) ReconcileOnce(ctx context.Context) (int, error) {
	accounts, err := r.store.AllAccounts(ctx)
	if err != nil {
		return 0, fmt.Errorf("list accounts: %w", err)
	}

	drifted := 0
	for _, a := range accounts {
		sum, err := r.store.SumAccountTransactions(ctx, a.ID)
		if err != nil {
			r.logger.ErrorContext(ctx, "Failed to sum transactions",
				log.FieldAccountID, a.ID, log.FieldError, err)
			continue
		}
		if sum != a.Balance {
			drifted++
			r.logger.ErrorContext(ctx, "Balance drift detected",
				log.FieldOperation, log.OpReconcile,
				log.FieldAccountID, a.ID,
				log.FieldUserID, a.UserID,
				log.FieldBalance, a.Balance.Cents(),
				"transaction_sum_cents", sum.Cents(),
				"drift_cents", (a.Balance - sum).Cents())
		}
	}

	r.logger.InfoContext(ctx, "Reconciliation pass completed",
		log.FieldOperation, log.OpReconcile,
		"accounts", len(accounts),
		"drifted", drifted)
	return drifted, nil
}
