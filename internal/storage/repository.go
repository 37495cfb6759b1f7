package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/ledger"

	_ "modernc.org/sqlite"
)

// SQLiteRepository is the single persistence layer behind users, accounts,
// transactions, budgets, goals and the posting audit trail.
type SQLiteRepository struct {
	db *sql.DB
	q  queries
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// A single connection serializes writers, so concurrent postings against
	// the same account cannot interleave their read-modify-write steps.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, q: queries{db: db}}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// InTx implements ledger.Store. The callback's writes either all commit or
// all roll back, so a posting can never leave a half-applied balance.
func (r *SQLiteRepository) InTx(ctx context.Context, fn func(ledger.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(txQueries{queries{db: tx}}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback after %w: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// txQueries adapts the shared query helpers to the ledger.Tx contract.
type txQueries struct {
	q queries
}

func (t txQueries) ActiveAccountOwned(ctx context.Context, accountID, userID string) (*core.Account, error) {
	return t.q.accountRow(ctx, "id = ? AND user_id = ? AND is_active = 1", accountID, userID)
}

func (t txQueries) AccountOwned(ctx context.Context, accountID, userID string) (*core.Account, error) {
	return t.q.accountRow(ctx, "id = ? AND user_id = ?", accountID, userID)
}

func (t txQueries) AccountByID(ctx context.Context, accountID string) (*core.Account, error) {
	return t.q.accountRow(ctx, "id = ?", accountID)
}

func (t txQueries) SetAccountBalance(ctx context.Context, accountID string, balance core.Money) error {
	return t.q.setAccountBalance(ctx, accountID, balance)
}

func (t txQueries) TransactionOwned(ctx context.Context, txID, userID string) (*core.Transaction, error) {
	return t.q.transactionOwned(ctx, txID, userID)
}

func (t txQueries) InsertTransaction(ctx context.Context, tr *core.Transaction) error {
	return t.q.insertTransaction(ctx, tr)
}

func (t txQueries) UpdateTransaction(ctx context.Context, tr *core.Transaction) error {
	return t.q.updateTransaction(ctx, tr)
}

func (t txQueries) DeleteTransaction(ctx context.Context, txID string) error {
	return t.q.deleteTransaction(ctx, txID)
}

// users

func (r *SQLiteRepository) CreateUser(ctx context.Context, u *core.User) error {
	return r.q.insertUser(ctx, u)
}

func (r *SQLiteRepository) UserByEmail(ctx context.Context, email string) (*core.User, error) {
	return r.q.userByEmail(ctx, email)
}

func (r *SQLiteRepository) UserByID(ctx context.Context, id string) (*core.User, error) {
	return r.q.userByID(ctx, id)
}

// accounts

func (r *SQLiteRepository) CreateAccount(ctx context.Context, a *core.Account) error {
	return r.q.insertAccount(ctx, a)
}

// ActiveAccountsByUser lists the caller's accounts, hiding soft-deleted ones.
func (r *SQLiteRepository) ActiveAccountsByUser(ctx context.Context, userID string) ([]core.Account, error) {
	return r.q.accountsByUser(ctx, userID, true)
}

func (r *SQLiteRepository) AccountOwned(ctx context.Context, accountID, userID string) (*core.Account, error) {
	return r.q.accountRow(ctx, "id = ? AND user_id = ?", accountID, userID)
}

func (r *SQLiteRepository) UpdateAccount(ctx context.Context, a *core.Account) error {
	return r.q.updateAccount(ctx, a)
}

// AllAccounts is used by the reconciler; it crosses user boundaries and must
// not be exposed through any request path.
func (r *SQLiteRepository) AllAccounts(ctx context.Context) ([]core.Account, error) {
	return r.q.allAccounts(ctx)
}

// transactions

// TxFilter narrows transaction listings. Zero values mean "no filter".
type TxFilter struct {
	AccountID string
	Type      core.TransactionType
	Category  string
	StartDate *time.Time
	EndDate   *time.Time
}

func (r *SQLiteRepository) TransactionOwned(ctx context.Context, txID, userID string) (*core.Transaction, error) {
	return r.q.transactionOwned(ctx, txID, userID)
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context, userID string, f TxFilter) ([]core.Transaction, error) {
	return r.q.listTransactions(ctx, userID, f)
}

// Summary returns the signed income and expense totals over all of a user's
// transactions. Income is non-negative, expense non-positive.
func (r *SQLiteRepository) Summary(ctx context.Context, userID string) (income, expense core.Money, err error) {
	return r.q.sumByType(ctx, userID)
}

// SumAccountTransactions returns the signed sum of all transactions
// referencing an account, i.e. what the stored balance should be.
func (r *SQLiteRepository) SumAccountTransactions(ctx context.Context, accountID string) (core.Money, error) {
	return r.q.sumAccountTransactions(ctx, accountID)
}

// budgets

func (r *SQLiteRepository) CreateBudget(ctx context.Context, b *core.Budget) error {
	return r.q.insertBudget(ctx, b)
}

func (r *SQLiteRepository) BudgetOwned(ctx context.Context, id, userID string) (*core.Budget, error) {
	return r.q.budgetOwned(ctx, id, userID)
}

func (r *SQLiteRepository) BudgetsByUser(ctx context.Context, userID, month string) ([]core.Budget, error) {
	return r.q.budgetsByUser(ctx, userID, month)
}

func (r *SQLiteRepository) UpdateBudget(ctx context.Context, b *core.Budget) error {
	return r.q.updateBudget(ctx, b)
}

func (r *SQLiteRepository) DeleteBudget(ctx context.Context, id, userID string) error {
	return r.q.deleteBudget(ctx, id, userID)
}

// goals

func (r *SQLiteRepository) CreateGoal(ctx context.Context, g *core.Goal) error {
	return r.q.insertGoal(ctx, g)
}

func (r *SQLiteRepository) GoalOwned(ctx context.Context, id, userID string) (*core.Goal, error) {
	return r.q.goalOwned(ctx, id, userID)
}

func (r *SQLiteRepository) GoalsByUser(ctx context.Context, userID string) ([]core.Goal, error) {
	return r.q.goalsByUser(ctx, userID)
}

func (r *SQLiteRepository) UpdateGoal(ctx context.Context, g *core.Goal) error {
	return r.q.updateGoal(ctx, g)
}

func (r *SQLiteRepository) DeleteGoal(ctx context.Context, id, userID string) error {
	return r.q.deleteGoal(ctx, id, userID)
}

// posting events

func (r *SQLiteRepository) RecordPostingEvent(ctx context.Context, txID, userID, accountID string, deltaCents int64, op string, recordedAt time.Time) error {
	return r.q.insertPostingEvent(ctx, txID, userID, accountID, deltaCents, op, recordedAt)
}
