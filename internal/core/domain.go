package core

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

const (
	Checking AccountType = "checking"
	Savings  AccountType = "savings"
	Credit   AccountType = "credit"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

const (
	GoalInProgress GoalStatus = "in-progress"
	GoalAchieved   GoalStatus = "achieved"
	GoalFailed     GoalStatus = "failed"
)

type (
	AccountType     string
	TransactionType string
	GoalStatus      string

	User struct {
		ID           string
		Name         string
		Email        string
		PasswordHash string
		Avatar       string
		CreatedAt    time.Time
	}

	Account struct {
		ID        string
		UserID    string
		Name      string
		Type      AccountType
		Balance   Money // signed running balance
		IsActive  bool
		CreatedAt time.Time
		UpdatedAt time.Time
	}

	Transaction struct {
		ID          string
		UserID      string
		AccountID   string
		Amount      Money // signed: negative for expense, positive for income
		Type        TransactionType
		Description string
		Category    string
		Date        time.Time
		CreatedAt   time.Time
		UpdatedAt   time.Time
	}

	Budget struct {
		ID        string
		UserID    string
		Category  string
		Amount    Money
		Month     string // YYYY-MM
		CreatedAt time.Time
		UpdatedAt time.Time
	}

	Goal struct {
		ID            string
		UserID        string
		Title         string
		TargetAmount  Money
		CurrentAmount Money
		Deadline      time.Time
		Status        GoalStatus
		CreatedAt     time.Time
		UpdatedAt     time.Time
	}
)

var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidAccountType = errors.New("invalid account type")
	ErrInvalidTxType      = errors.New("invalid transaction type")
	ErrInvalidGoalStatus  = errors.New("invalid goal status")
	ErrInvalidMonth       = errors.New("invalid month")
	ErrInvalidEmail       = errors.New("invalid email")
	ErrEmptyName          = errors.New("empty name")
	ErrEmptyDescription   = errors.New("empty description")
	ErrEmptyCategory      = errors.New("empty category")
	ErrEmptyTitle         = errors.New("empty title")
	ErrZeroDate           = errors.New("date cannot be zero")

	ErrAccountNotFound     = errors.New("account not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrBudgetNotFound      = errors.New("budget not found")
	ErrGoalNotFound        = errors.New("goal not found")
	ErrUserNotFound        = errors.New("user not found")
	ErrEmailTaken          = errors.New("email already registered")
)

var (
	emailRe = regexp.MustCompile(`^[\w.+-]+@[\w-]+(\.[\w-]+)+$`)
	monthRe = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)
)

func (t AccountType) Valid() bool {
	switch t {
	case Checking, Savings, Credit:
		return true
	}
	return false
}

func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

func (s GoalStatus) Valid() bool {
	switch s {
	case GoalInProgress, GoalAchieved, GoalFailed:
		return true
	}
	return false
}

// SignedAmount derives the stored amount from a transaction type and a raw
// magnitude. The sign always comes from the type: expenses are stored
// non-positive, income non-negative, regardless of the sign the caller sent.
func SignedAmount(t TransactionType, magnitude Money) Money {
	if t == Expense {
		return -magnitude.Abs()
	}
	return magnitude.Abs()
}

func (u User) Validate() error {
	name := strings.TrimSpace(u.Name)
	if len(name) < 2 || len(name) > 50 {
		return ErrEmptyName
	}
	if !emailRe.MatchString(u.Email) {
		return ErrInvalidEmail
	}
	return nil
}

func (a Account) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return ErrEmptyName
	}
	if !a.Type.Valid() {
		return ErrInvalidAccountType
	}
	return nil
}

func (t Transaction) Validate() error {
	if !t.Type.Valid() {
		return ErrInvalidTxType
	}
	if t.Amount == 0 {
		return ErrInvalidAmount
	}
	// sign must agree with type
	if t.Type == Expense && t.Amount > 0 {
		return ErrInvalidAmount
	}
	if t.Type == Income && t.Amount < 0 {
		return ErrInvalidAmount
	}
	if strings.TrimSpace(t.Description) == "" {
		return ErrEmptyDescription
	}
	if len(t.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	if t.Date.IsZero() {
		return ErrZeroDate
	}
	return nil
}

func (b Budget) Validate() error {
	if strings.TrimSpace(b.Category) == "" {
		return ErrEmptyCategory
	}
	if b.Amount <= 0 {
		return ErrInvalidAmount
	}
	if !monthRe.MatchString(b.Month) {
		return ErrInvalidMonth
	}
	return nil
}

func (g Goal) Validate() error {
	if strings.TrimSpace(g.Title) == "" {
		return ErrEmptyTitle
	}
	if g.TargetAmount <= 0 {
		return ErrInvalidAmount
	}
	if g.CurrentAmount < 0 {
		return ErrInvalidAmount
	}
	if g.Deadline.IsZero() {
		return ErrZeroDate
	}
	if !g.Status.Valid() {
		return ErrInvalidGoalStatus
	}
	return nil
}
