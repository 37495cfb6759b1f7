package core

import (
	"testing"
	"time"
)

func TestSignedAmount(t *testing.T) {
	cases := []struct {
		txType    TransactionType
		magnitude Money
		want      Money
	}{
		{Income, 5000, 5000},
		{Expense, 2000, -2000},
		// caller-supplied signs are never trusted
		{Income, -5000, 5000},
		{Expense, -2000, -2000},
	}
	for i, tc := range cases {
		if got := SignedAmount(tc.txType, tc.magnitude); got != tc.want {
			t.Fatalf("case %d: SignedAmount(%s, %d) = %d, want %d", i, tc.txType, tc.magnitude, got, tc.want)
		}
	}
}

func TestTransactionValidate(t *testing.T) {
	good := Transaction{
		Type:        Expense,
		Amount:      -2000,
		Description: "groceries",
		Category:    "food",
		Date:        time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []Transaction{
		{Type: "transfer", Amount: 100, Description: "a", Category: "c", Date: good.Date},
		{Type: Income, Amount: 0, Description: "a", Category: "c", Date: good.Date},
		{Type: Expense, Amount: 2000, Description: "a", Category: "c", Date: good.Date}, // sign disagrees
		{Type: Income, Amount: -100, Description: "a", Category: "c", Date: good.Date}, // sign disagrees
		{Type: Income, Amount: 100, Description: "", Category: "c", Date: good.Date},
		{Type: Income, Amount: 100, Description: "a", Category: "", Date: good.Date},
		{Type: Income, Amount: 100, Description: "a", Category: "c"}, // zero date
	}
	for i, tx := range bads {
		if err := tx.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestAccountValidate(t *testing.T) {
	good := Account{Name: "Checking", Type: Checking}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Account{Name: "", Type: Checking}).Validate(); err == nil {
		t.Fatal("expected error for empty name")
	}
	if err := (Account{Name: "x", Type: "loan"}).Validate(); err == nil {
		t.Fatal("expected error for bad type")
	}
}

func TestBudgetValidate(t *testing.T) {
	good := Budget{Category: "food", Amount: 30000, Month: "2025-06"}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	bads := []Budget{
		{Category: "", Amount: 100, Month: "2025-06"},
		{Category: "food", Amount: 0, Month: "2025-06"},
		{Category: "food", Amount: 100, Month: "2025-13"},
		{Category: "food", Amount: 100, Month: "25-06"},
	}
	for i, b := range bads {
		if err := b.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestGoalValidate(t *testing.T) {
	deadline := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	good := Goal{Title: "Vacation", TargetAmount: 100000, CurrentAmount: 0, Deadline: deadline, Status: GoalInProgress}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	bads := []Goal{
		{Title: "", TargetAmount: 1, Deadline: deadline, Status: GoalInProgress},
		{Title: "x", TargetAmount: 0, Deadline: deadline, Status: GoalInProgress},
		{Title: "x", TargetAmount: 1, CurrentAmount: -1, Deadline: deadline, Status: GoalInProgress},
		{Title: "x", TargetAmount: 1, Status: GoalInProgress}, // zero deadline
		{Title: "x", TargetAmount: 1, Deadline: deadline, Status: "done"},
	}
	for i, g := range bads {
		if err := g.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestUserValidate(t *testing.T) {
	good := User{Name: "Alice", Email: "alice@example.com"}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	bads := []User{
		{Name: "A", Email: "alice@example.com"},
		{Name: "Alice", Email: "not-an-email"},
	}
	for i, u := range bads {
		if err := u.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}
