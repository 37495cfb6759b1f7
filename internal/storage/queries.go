package storage

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"fintrack/internal/core"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx so the same query helpers
// serve plain reads and transactional writes.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type queries struct {
	db dbtx
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// users

const userColumns = "id, name, email, password_hash, avatar, created_at"

func scanUser(row *sql.Row) (*core.User, error) {
	var u core.User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Avatar, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (q queries) insertUser(ctx context.Context, u *core.User) error {
	_, err := q.db.ExecContext(ctx,
		"INSERT INTO users (id, name, email, password_hash, avatar, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		u.ID, u.Name, u.Email, u.PasswordHash, u.Avatar, u.CreatedAt)
	if isUniqueViolation(err) {
		return core.ErrEmailTaken
	}
	return err
}

func (q queries) userByEmail(ctx context.Context, email string) (*core.User, error) {
	u, err := scanUser(q.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email = ?", email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrUserNotFound
	}
	return u, err
}

func (q queries) userByID(ctx context.Context, id string) (*core.User, error) {
	u, err := scanUser(q.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrUserNotFound
	}
	return u, err
}

// accounts

const accountColumns = "id, user_id, name, type, balance_cents, is_active, created_at, updated_at"

func scanAccount(scan func(...any) error) (*core.Account, error) {
	var a core.Account
	var balance int64
	err := scan(&a.ID, &a.UserID, &a.Name, &a.Type, &balance, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	a.Balance = core.Money(balance)
	return &a, nil
}

func (q queries) insertAccount(ctx context.Context, a *core.Account) error {
	_, err := q.db.ExecContext(ctx,
		"INSERT INTO accounts (id, user_id, name, type, balance_cents, is_active, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		a.ID, a.UserID, a.Name, a.Type, a.Balance.Cents(), a.IsActive, a.CreatedAt, a.UpdatedAt)
	return err
}

func (q queries) accountRow(ctx context.Context, where string, args ...any) (*core.Account, error) {
	row := q.db.QueryRowContext(ctx, "SELECT "+accountColumns+" FROM accounts WHERE "+where, args...)
	a, err := scanAccount(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrAccountNotFound
	}
	return a, err
}

func (q queries) accountsByUser(ctx context.Context, userID string, activeOnly bool) ([]core.Account, error) {
	query := "SELECT " + accountColumns + " FROM accounts WHERE user_id = ?"
	if activeOnly {
		query += " AND is_active = 1"
	}
	query += " ORDER BY created_at"

	rows, err := q.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []core.Account
	for rows.Next() {
		a, err := scanAccount(rows.Scan)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *a)
	}
	return accounts, rows.Err()
}

func (q queries) allAccounts(ctx context.Context) ([]core.Account, error) {
	rows, err := q.db.QueryContext(ctx, "SELECT "+accountColumns+" FROM accounts ORDER BY created_at")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []core.Account
	for rows.Next() {
		a, err := scanAccount(rows.Scan)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *a)
	}
	return accounts, rows.Err()
}

func (q queries) updateAccount(ctx context.Context, a *core.Account) error {
	res, err := q.db.ExecContext(ctx,
		"UPDATE accounts SET name = ?, type = ?, balance_cents = ?, is_active = ?, updated_at = ? WHERE id = ?",
		a.Name, a.Type, a.Balance.Cents(), a.IsActive, time.Now().UTC(), a.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return core.ErrAccountNotFound
	}
	return err
}

func (q queries) setAccountBalance(ctx context.Context, accountID string, balance core.Money) error {
	res, err := q.db.ExecContext(ctx,
		"UPDATE accounts SET balance_cents = ?, updated_at = ? WHERE id = ?",
		balance.Cents(), time.Now().UTC(), accountID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return core.ErrAccountNotFound
	}
	return err
}

// transactions

const txColumns = "id, user_id, account_id, amount_cents, type, description, category, occurred_on, created_at, updated_at"

func scanTransaction(scan func(...any) error) (*core.Transaction, error) {
	var t core.Transaction
	var amount int64
	err := scan(&t.ID, &t.UserID, &t.AccountID, &amount, &t.Type, &t.Description, &t.Category, &t.Date, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.Amount = core.Money(amount)
	return &t, nil
}

func (q queries) insertTransaction(ctx context.Context, t *core.Transaction) error {
	_, err := q.db.ExecContext(ctx,
		"INSERT INTO transactions (id, user_id, account_id, amount_cents, type, description, category, occurred_on, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		t.ID, t.UserID, t.AccountID, t.Amount.Cents(), t.Type, t.Description, t.Category, t.Date, t.CreatedAt, t.UpdatedAt)
	return err
}

func (q queries) transactionOwned(ctx context.Context, txID, userID string) (*core.Transaction, error) {
	row := q.db.QueryRowContext(ctx,
		"SELECT "+txColumns+" FROM transactions WHERE id = ? AND user_id = ?", txID, userID)
	t, err := scanTransaction(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrTransactionNotFound
	}
	return t, err
}

func (q queries) updateTransaction(ctx context.Context, t *core.Transaction) error {
	res, err := q.db.ExecContext(ctx,
		"UPDATE transactions SET account_id = ?, amount_cents = ?, type = ?, description = ?, category = ?, occurred_on = ?, updated_at = ? WHERE id = ?",
		t.AccountID, t.Amount.Cents(), t.Type, t.Description, t.Category, t.Date, t.UpdatedAt, t.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return core.ErrTransactionNotFound
	}
	return err
}

func (q queries) deleteTransaction(ctx context.Context, txID string) error {
	res, err := q.db.ExecContext(ctx, "DELETE FROM transactions WHERE id = ?", txID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return core.ErrTransactionNotFound
	}
	return err
}

func (q queries) listTransactions(ctx context.Context, userID string, f TxFilter) ([]core.Transaction, error) {
	query := "SELECT " + txColumns + " FROM transactions WHERE user_id = ?"
	args := []any{userID}

	if f.AccountID != "" {
		query += " AND account_id = ?"
		args = append(args, f.AccountID)
	}
	if f.Type != "" {
		query += " AND type = ?"
		args = append(args, f.Type)
	}
	if f.Category != "" {
		query += " AND category = ?"
		args = append(args, f.Category)
	}
	if f.StartDate != nil {
		query += " AND occurred_on >= ?"
		args = append(args, *f.StartDate)
	}
	if f.EndDate != nil {
		query += " AND occurred_on <= ?"
		args = append(args, *f.EndDate)
	}
	query += " ORDER BY occurred_on DESC"

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows.Scan)
		if err != nil {
			return nil, err
		}
		txs = append(txs, *t)
	}
	return txs, rows.Err()
}

func (q queries) sumByType(ctx context.Context, userID string) (income, expense core.Money, err error) {
	rows, err := q.db.QueryContext(ctx,
		"SELECT type, COALESCE(SUM(amount_cents), 0) FROM transactions WHERE user_id = ? GROUP BY type", userID)
	if err != nil {
		return 0, 0, err
	}
	defer rows.Close()

	for rows.Next() {
		var txType string
		var total int64
		if err := rows.Scan(&txType, &total); err != nil {
			return 0, 0, err
		}
		switch core.TransactionType(txType) {
		case core.Income:
			income = core.Money(total)
		case core.Expense:
			expense = core.Money(total)
		}
	}
	return income, expense, rows.Err()
}

func (q queries) sumAccountTransactions(ctx context.Context, accountID string) (core.Money, error) {
	var total int64
	err := q.db.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(amount_cents), 0) FROM transactions WHERE account_id = ?", accountID).Scan(&total)
	return core.Money(total), err
}

// budgets

const budgetColumns = "id, user_id, category, amount_cents, month, created_at, updated_at"

func scanBudget(scan func(...any) error) (*core.Budget, error) {
	var b core.Budget
	var amount int64
	err := scan(&b.ID, &b.UserID, &b.Category, &amount, &b.Month, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	b.Amount = core.Money(amount)
	return &b, nil
}

func (q queries) insertBudget(ctx context.Context, b *core.Budget) error {
	_, err := q.db.ExecContext(ctx,
		"INSERT INTO budgets (id, user_id, category, amount_cents, month, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		b.ID, b.UserID, b.Category, b.Amount.Cents(), b.Month, b.CreatedAt, b.UpdatedAt)
	return err
}

func (q queries) budgetOwned(ctx context.Context, id, userID string) (*core.Budget, error) {
	row := q.db.QueryRowContext(ctx,
		"SELECT "+budgetColumns+" FROM budgets WHERE id = ? AND user_id = ?", id, userID)
	b, err := scanBudget(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrBudgetNotFound
	}
	return b, err
}

func (q queries) budgetsByUser(ctx context.Context, userID, month string) ([]core.Budget, error) {
	query := "SELECT " + budgetColumns + " FROM budgets WHERE user_id = ?"
	args := []any{userID}
	if month != "" {
		query += " AND month = ?"
		args = append(args, month)
	}
	query += " ORDER BY month DESC, category"

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var budgets []core.Budget
	for rows.Next() {
		b, err := scanBudget(rows.Scan)
		if err != nil {
			return nil, err
		}
		budgets = append(budgets, *b)
	}
	return budgets, rows.Err()
}

func (q queries) updateBudget(ctx context.Context, b *core.Budget) error {
	res, err := q.db.ExecContext(ctx,
		"UPDATE budgets SET category = ?, amount_cents = ?, month = ?, updated_at = ? WHERE id = ?",
		b.Category, b.Amount.Cents(), b.Month, time.Now().UTC(), b.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return core.ErrBudgetNotFound
	}
	return err
}

func (q queries) deleteBudget(ctx context.Context, id, userID string) error {
	res, err := q.db.ExecContext(ctx, "DELETE FROM budgets WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return core.ErrBudgetNotFound
	}
	return err
}

// goals

const goalColumns = "id, user_id, title, target_cents, current_cents, deadline, status, created_at, updated_at"

func scanGoal(scan func(...any) error) (*core.Goal, error) {
	var g core.Goal
	var target, current int64
	err := scan(&g.ID, &g.UserID, &g.Title, &target, &current, &g.Deadline, &g.Status, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return nil, err
	}
	g.TargetAmount = core.Money(target)
	g.CurrentAmount = core.Money(current)
	return &g, nil
}

func (q queries) insertGoal(ctx context.Context, g *core.Goal) error {
	_, err := q.db.ExecContext(ctx,
		"INSERT INTO goals (id, user_id, title, target_cents, current_cents, deadline, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		g.ID, g.UserID, g.Title, g.TargetAmount.Cents(), g.CurrentAmount.Cents(), g.Deadline, g.Status, g.CreatedAt, g.UpdatedAt)
	return err
}

func (q queries) goalOwned(ctx context.Context, id, userID string) (*core.Goal, error) {
	row := q.db.QueryRowContext(ctx,
		"SELECT "+goalColumns+" FROM goals WHERE id = ? AND user_id = ?", id, userID)
	g, err := scanGoal(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrGoalNotFound
	}
	return g, err
}

func (q queries) goalsByUser(ctx context.Context, userID string) ([]core.Goal, error) {
	rows, err := q.db.QueryContext(ctx,
		"SELECT "+goalColumns+" FROM goals WHERE user_id = ? ORDER BY deadline", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var goals []core.Goal
	for rows.Next() {
		g, err := scanGoal(rows.Scan)
		if err != nil {
			return nil, err
		}
		goals = append(goals, *g)
	}
	return goals, rows.Err()
}

func (q queries) updateGoal(ctx context.Context, g *core.Goal) error {
	res, err := q.db.ExecContext(ctx,
		"UPDATE goals SET title = ?, target_cents = ?, current_cents = ?, deadline = ?, status = ?, updated_at = ? WHERE id = ?",
		g.Title, g.TargetAmount.Cents(), g.CurrentAmount.Cents(), g.Deadline, g.Status, time.Now().UTC(), g.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return core.ErrGoalNotFound
	}
	return err
}

func (q queries) deleteGoal(ctx context.Context, id, userID string) error {
	res, err := q.db.ExecContext(ctx, "DELETE FROM goals WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return core.ErrGoalNotFound
	}
	return err
}

// posting events

func (q queries) insertPostingEvent(ctx context.Context, txID, userID, accountID string, deltaCents int64, op string, recordedAt time.Time) error {
	_, err := q.db.ExecContext(ctx,
		"INSERT INTO posting_events (transaction_id, user_id, account_id, delta_cents, op, recorded_at) VALUES (?, ?, ?, ?, ?, ?)",
		txID, userID, accountID, deltaCents, op, recordedAt)
	return err
}
