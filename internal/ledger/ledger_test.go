package ledger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/log"
)

// fakeStore is an in-memory Store with copy-on-write rollback, so failed
// units of work leave no trace, mirroring the SQLite implementation.
type fakeStore struct {
	accounts map[string]core.Account
	txs      map[string]core.Transaction
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		accounts: make(map[string]core.Account),
		txs:      make(map[string]core.Transaction),
	}
}

func (s *fakeStore) InTx(ctx context.Context, fn func(Tx) error) error {
	snapshot := &fakeStore{
		accounts: make(map[string]core.Account, len(s.accounts)),
		txs:      make(map[string]core.Transaction, len(s.txs)),
	}
	for k, v := range s.accounts {
		snapshot.accounts[k] = v
	}
	for k, v := range s.txs {
		snapshot.txs[k] = v
	}

	if err := fn(fakeTx{s}); err != nil {
		s.accounts = snapshot.accounts
		s.txs = snapshot.txs
		return err
	}
	return nil
}

type fakeTx struct {
	s *fakeStore
}

func (t fakeTx) ActiveAccountOwned(_ context.Context, accountID, userID string) (*core.Account, error) {
	a, ok := t.s.accounts[accountID]
	if !ok || a.UserID != userID || !a.IsActive {
		return nil, core.ErrAccountNotFound
	}
	return &a, nil
}

func (t fakeTx) AccountOwned(_ context.Context, accountID, userID string) (*core.Account, error) {
	a, ok := t.s.accounts[accountID]
	if !ok || a.UserID != userID {
		return nil, core.ErrAccountNotFound
	}
	return &a, nil
}

func (t fakeTx) AccountByID(_ context.Context, accountID string) (*core.Account, error) {
	a, ok := t.s.accounts[accountID]
	if !ok {
		return nil, core.ErrAccountNotFound
	}
	return &a, nil
}

func (t fakeTx) SetAccountBalance(_ context.Context, accountID string, balance core.Money) error {
	a, ok := t.s.accounts[accountID]
	if !ok {
		return core.ErrAccountNotFound
	}
	a.Balance = balance
	t.s.accounts[accountID] = a
	return nil
}

func (t fakeTx) TransactionOwned(_ context.Context, txID, userID string) (*core.Transaction, error) {
	tr, ok := t.s.txs[txID]
	if !ok || tr.UserID != userID {
		return nil, core.ErrTransactionNotFound
	}
	return &tr, nil
}

func (t fakeTx) InsertTransaction(_ context.Context, tr *core.Transaction) error {
	t.s.txs[tr.ID] = *tr
	return nil
}

func (t fakeTx) UpdateTransaction(_ context.Context, tr *core.Transaction) error {
	if _, ok := t.s.txs[tr.ID]; !ok {
		return core.ErrTransactionNotFound
	}
	t.s.txs[tr.ID] = *tr
	return nil
}

func (t fakeTx) DeleteTransaction(_ context.Context, txID string) error {
	if _, ok := t.s.txs[txID]; !ok {
		return core.ErrTransactionNotFound
	}
	delete(t.s.txs, txID)
	return nil
}

// sumLive returns the signed sum of live transactions referencing an account.
func (s *fakeStore) sumLive(accountID string) core.Money {
	var sum core.Money
	for _, t := range s.txs {
		if t.AccountID == accountID {
			sum += t.Amount
		}
	}
	return sum
}

func (s *fakeStore) balance(t *testing.T, accountID string) core.Money {
	t.Helper()
	a, ok := s.accounts[accountID]
	if !ok {
		t.Fatalf("account %s missing", accountID)
	}
	return a.Balance
}

const (
	userA = "user-a"
	userB = "user-b"
)

func testPoster(s *fakeStore) *Poster {
	logger := log.New(log.Config{Handler: slog.NewTextHandler(io.Discard, nil)})
	return NewPoster(s, nil, logger)
}

func addAccount(s *fakeStore, id, userID string, balance core.Money, active bool) {
	s.accounts[id] = core.Account{
		ID: id, UserID: userID, Name: id, Type: core.Checking,
		Balance: balance, IsActive: active,
	}
}

func postInput(accountID string, amount core.Money, txType core.TransactionType) PostInput {
	return PostInput{
		UserID:      userA,
		AccountID:   accountID,
		Amount:      amount,
		Type:        txType,
		Description: "test",
		Category:    "misc",
		Date:        time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}
}

func strPtr(s string) *string                             { return &s }
func moneyPtr(m core.Money) *core.Money                   { return &m }
func typePtr(t core.TransactionType) *core.TransactionType { return &t }

func TestPostSignDerivation(t *testing.T) {
	// income yields +m, expense yields -m, regardless of caller-supplied sign
	cases := []struct {
		txType core.TransactionType
		amount core.Money
		want   core.Money
	}{
		{core.Income, 5000, 5000},
		{core.Expense, 2000, -2000},
		{core.Income, -5000, 5000},
		{core.Expense, -2000, -2000},
	}
	for i, tc := range cases {
		store := newFakeStore()
		addAccount(store, "acct", userA, 0, true)
		poster := testPoster(store)

		tx, err := poster.Post(context.Background(), postInput("acct", tc.amount, tc.txType))
		if err != nil {
			t.Fatalf("case %d: post: %v", i, err)
		}
		if tx.Amount != tc.want {
			t.Fatalf("case %d: amount = %d, want %d", i, tx.Amount, tc.want)
		}
		if got := store.balance(t, "acct"); got != tc.want {
			t.Fatalf("case %d: balance = %d, want %d", i, got, tc.want)
		}
	}
}

func TestPostUnpostInverse(t *testing.T) {
	store := newFakeStore()
	addAccount(store, "acct", userA, 7700, true)
	poster := testPoster(store)

	tx, err := poster.Post(context.Background(), postInput("acct", 2500, core.Expense))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if got := store.balance(t, "acct"); got != 5200 {
		t.Fatalf("balance after post = %d, want 5200", got)
	}

	if err := poster.Unpost(context.Background(), tx.ID, userA); err != nil {
		t.Fatalf("unpost: %v", err)
	}
	if got := store.balance(t, "acct"); got != 7700 {
		t.Fatalf("balance after unpost = %d, want 7700", got)
	}
	if _, ok := store.txs[tx.ID]; ok {
		t.Fatal("transaction should be gone after unpost")
	}
}

// TestBalanceEqualsLiveSum drives a mixed sequence of operations and checks
// the invariant after every step.
func TestBalanceEqualsLiveSum(t *testing.T) {
	store := newFakeStore()
	addAccount(store, "a", userA, 0, true)
	addAccount(store, "b", userA, 0, true)
	poster := testPoster(store)
	ctx := context.Background()

	check := func(step string) {
		t.Helper()
		for _, id := range []string{"a", "b"} {
			if got, want := store.balance(t, id), store.sumLive(id); got != want {
				t.Fatalf("%s: balance(%s) = %d, live sum = %d", step, id, got, want)
			}
		}
	}

	tx1, err := poster.Post(ctx, postInput("a", 10000, core.Income))
	if err != nil {
		t.Fatal(err)
	}
	check("post income a")

	tx2, err := poster.Post(ctx, postInput("a", 3000, core.Expense))
	if err != nil {
		t.Fatal(err)
	}
	check("post expense a")

	if _, err := poster.Post(ctx, postInput("b", 500, core.Expense)); err != nil {
		t.Fatal(err)
	}
	check("post expense b")

	if _, err := poster.Repost(ctx, tx2.ID, userA, RepostInput{Amount: moneyPtr(4500)}); err != nil {
		t.Fatal(err)
	}
	check("repost amount")

	if _, err := poster.Repost(ctx, tx1.ID, userA, RepostInput{AccountID: strPtr("b")}); err != nil {
		t.Fatal(err)
	}
	check("repost move")

	if _, err := poster.Repost(ctx, tx2.ID, userA, RepostInput{Type: typePtr(core.Income)}); err != nil {
		t.Fatal(err)
	}
	check("repost type flip")

	if err := poster.Unpost(ctx, tx1.ID, userA); err != nil {
		t.Fatal(err)
	}
	check("unpost")
}

func TestRepostReassignmentConservation(t *testing.T) {
	store := newFakeStore()
	addAccount(store, "a", userA, 0, true)
	addAccount(store, "b", userA, 0, true)
	poster := testPoster(store)
	ctx := context.Background()

	tx, err := poster.Post(ctx, postInput("a", 1000, core.Income))
	if err != nil {
		t.Fatal(err)
	}

	before := store.balance(t, "a") + store.balance(t, "b")

	// move to b and change the amount at the same time
	if _, err := poster.Repost(ctx, tx.ID, userA, RepostInput{
		AccountID: strPtr("b"),
		Amount:    moneyPtr(2500),
	}); err != nil {
		t.Fatal(err)
	}

	if got := store.balance(t, "a"); got != 0 {
		t.Fatalf("balance(a) = %d, want 0", got)
	}
	if got := store.balance(t, "b"); got != 2500 {
		t.Fatalf("balance(b) = %d, want 2500", got)
	}
	// sum changed by exactly new - old
	after := store.balance(t, "a") + store.balance(t, "b")
	if after-before != 2500-1000 {
		t.Fatalf("sum delta = %d, want 1500", after-before)
	}
}

func TestRepostDescriptiveOnlyIsBalanceNeutral(t *testing.T) {
	store := newFakeStore()
	addAccount(store, "acct", userA, 0, true)
	poster := testPoster(store)
	ctx := context.Background()

	tx, err := poster.Post(ctx, postInput("acct", 2000, core.Expense))
	if err != nil {
		t.Fatal(err)
	}

	newDate := time.Date(2025, 7, 2, 0, 0, 0, 0, time.UTC)
	updated, err := poster.Repost(ctx, tx.ID, userA, RepostInput{
		Description: strPtr("renamed"),
		Category:    strPtr("travel"),
		Date:        &newDate,
	})
	if err != nil {
		t.Fatal(err)
	}

	if updated.Amount != tx.Amount {
		t.Fatalf("signed amount changed: %d -> %d", tx.Amount, updated.Amount)
	}
	if got := store.balance(t, "acct"); got != -2000 {
		t.Fatalf("balance = %d, want -2000", got)
	}
	if updated.Description != "renamed" || updated.Category != "travel" || !updated.Date.Equal(newDate) {
		t.Fatalf("descriptive fields not applied: %+v", updated)
	}
}

// The six end-to-end scenarios.
func TestLedgerScenarios(t *testing.T) {
	store := newFakeStore()
	addAccount(store, "checking", userA, 0, true)
	poster := testPoster(store)
	ctx := context.Background()

	// 1. post income 50 -> balance 50.00
	tx1, err := poster.Post(ctx, postInput("checking", 5000, core.Income))
	if err != nil {
		t.Fatal(err)
	}
	if tx1.Amount != 5000 {
		t.Fatalf("tx1 amount = %d, want 5000", tx1.Amount)
	}
	if got := store.balance(t, "checking"); got != 5000 {
		t.Fatalf("scenario 1: balance = %d, want 5000", got)
	}

	// 2. post expense 20 -> balance 30.00
	tx2, err := poster.Post(ctx, postInput("checking", 2000, core.Expense))
	if err != nil {
		t.Fatal(err)
	}
	if got := store.balance(t, "checking"); got != 3000 {
		t.Fatalf("scenario 2: balance = %d, want 3000", got)
	}

	// 3. repost tx2 magnitude 5 -> balance 45.00
	if _, err := poster.Repost(ctx, tx2.ID, userA, RepostInput{Amount: moneyPtr(500)}); err != nil {
		t.Fatal(err)
	}
	if got := store.balance(t, "checking"); got != 4500 {
		t.Fatalf("scenario 3: balance = %d, want 4500", got)
	}

	// 4. unpost tx1 -> balance -5.00
	if err := poster.Unpost(ctx, tx1.ID, userA); err != nil {
		t.Fatal(err)
	}
	if got := store.balance(t, "checking"); got != -500 {
		t.Fatalf("scenario 4: balance = %d, want -500", got)
	}

	// 5. move a posting between two fresh accounts
	addAccount(store, "a", userA, 0, true)
	addAccount(store, "b", userA, 0, true)
	tx5, err := poster.Post(ctx, postInput("a", 1000, core.Income))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := poster.Repost(ctx, tx5.ID, userA, RepostInput{AccountID: strPtr("b")}); err != nil {
		t.Fatal(err)
	}
	if got := store.balance(t, "a"); got != 0 {
		t.Fatalf("scenario 5: balance(a) = %d, want 0", got)
	}
	if got := store.balance(t, "b"); got != 1000 {
		t.Fatalf("scenario 5: balance(b) = %d, want 1000", got)
	}

	// 6. post against an inactive account fails with not-found
	addAccount(store, "closed", userA, 0, false)
	if _, err := poster.Post(ctx, postInput("closed", 1000, core.Income)); !errors.Is(err, core.ErrAccountNotFound) {
		t.Fatalf("scenario 6: err = %v, want ErrAccountNotFound", err)
	}
	if got := store.balance(t, "closed"); got != 0 {
		t.Fatalf("scenario 6: balance = %d, want 0", got)
	}
}

func TestPostValidation(t *testing.T) {
	store := newFakeStore()
	addAccount(store, "acct", userA, 0, true)
	poster := testPoster(store)
	ctx := context.Background()

	if _, err := poster.Post(ctx, postInput("acct", 0, core.Income)); !errors.Is(err, core.ErrInvalidAmount) {
		t.Fatalf("zero amount: err = %v, want ErrInvalidAmount", err)
	}

	in := postInput("acct", 100, "transfer")
	if _, err := poster.Post(ctx, in); !errors.Is(err, core.ErrInvalidTxType) {
		t.Fatalf("bad type: err = %v, want ErrInvalidTxType", err)
	}

	in = postInput("acct", 100, core.Income)
	in.Description = ""
	if _, err := poster.Post(ctx, in); !errors.Is(err, core.ErrEmptyDescription) {
		t.Fatalf("empty description: err = %v, want ErrEmptyDescription", err)
	}

	// no state touched by failed posts
	if got := store.balance(t, "acct"); got != 0 {
		t.Fatalf("balance = %d, want 0", got)
	}
	if len(store.txs) != 0 {
		t.Fatalf("expected no transactions, got %d", len(store.txs))
	}
}

func TestOwnershipChecks(t *testing.T) {
	store := newFakeStore()
	addAccount(store, "mine", userA, 0, true)
	addAccount(store, "theirs", userB, 0, true)
	poster := testPoster(store)
	ctx := context.Background()

	// posting against someone else's account looks like a missing account
	if _, err := poster.Post(ctx, postInput("theirs", 1000, core.Income)); !errors.Is(err, core.ErrAccountNotFound) {
		t.Fatalf("foreign account: err = %v, want ErrAccountNotFound", err)
	}

	tx, err := poster.Post(ctx, postInput("mine", 1000, core.Income))
	if err != nil {
		t.Fatal(err)
	}

	// a foreign caller cannot touch the transaction
	if _, err := poster.Repost(ctx, tx.ID, userB, RepostInput{Amount: moneyPtr(1)}); !errors.Is(err, core.ErrTransactionNotFound) {
		t.Fatalf("foreign repost: err = %v, want ErrTransactionNotFound", err)
	}
	if err := poster.Unpost(ctx, tx.ID, userB); !errors.Is(err, core.ErrTransactionNotFound) {
		t.Fatalf("foreign unpost: err = %v, want ErrTransactionNotFound", err)
	}

	// reassignment to a foreign account is refused before any mutation
	if _, err := poster.Repost(ctx, tx.ID, userA, RepostInput{AccountID: strPtr("theirs")}); !errors.Is(err, core.ErrAccountNotFound) {
		t.Fatalf("foreign reassignment: err = %v, want ErrAccountNotFound", err)
	}
	if got := store.balance(t, "mine"); got != 1000 {
		t.Fatalf("balance(mine) = %d, want 1000", got)
	}
	if got := store.balance(t, "theirs"); got != 0 {
		t.Fatalf("balance(theirs) = %d, want 0", got)
	}
}

func TestRepostNotFound(t *testing.T) {
	store := newFakeStore()
	poster := testPoster(store)

	if _, err := poster.Repost(context.Background(), "nope", userA, RepostInput{}); !errors.Is(err, core.ErrTransactionNotFound) {
		t.Fatalf("err = %v, want ErrTransactionNotFound", err)
	}
	if err := poster.Unpost(context.Background(), "nope", userA); !errors.Is(err, core.ErrTransactionNotFound) {
		t.Fatalf("err = %v, want ErrTransactionNotFound", err)
	}
}

// A vanished old account skips the reversal instead of failing the update.
func TestRepostOldAccountMissingSkipsReversal(t *testing.T) {
	store := newFakeStore()
	addAccount(store, "gone", userA, 0, true)
	addAccount(store, "b", userA, 0, true)
	poster := testPoster(store)
	ctx := context.Background()

	tx, err := poster.Post(ctx, postInput("gone", 1000, core.Income))
	if err != nil {
		t.Fatal(err)
	}
	delete(store.accounts, "gone")

	updated, err := poster.Repost(ctx, tx.ID, userA, RepostInput{AccountID: strPtr("b")})
	if err != nil {
		t.Fatalf("repost: %v", err)
	}
	if updated.AccountID != "b" {
		t.Fatalf("account = %s, want b", updated.AccountID)
	}
	if got := store.balance(t, "b"); got != 1000 {
		t.Fatalf("balance(b) = %d, want 1000", got)
	}
}

func TestUnpostAccountMissingStillDeletes(t *testing.T) {
	store := newFakeStore()
	addAccount(store, "gone", userA, 0, true)
	poster := testPoster(store)
	ctx := context.Background()

	tx, err := poster.Post(ctx, postInput("gone", 1000, core.Income))
	if err != nil {
		t.Fatal(err)
	}
	delete(store.accounts, "gone")

	if err := poster.Unpost(ctx, tx.ID, userA); err != nil {
		t.Fatalf("unpost: %v", err)
	}
	if len(store.txs) != 0 {
		t.Fatal("transaction should be deleted even when the account is gone")
	}
}

// fakePublisher records posting events so tests can assert the audit trail.
type fakePublisher struct {
	events []*amqp.PostingEvent
}

func (p *fakePublisher) PublishPosting(_ context.Context, ev *amqp.PostingEvent) error {
	p.events = append(p.events, ev)
	return nil
}

func TestPostingEventTrail(t *testing.T) {
	store := newFakeStore()
	addAccount(store, "acct", userA, 0, true)
	pub := &fakePublisher{}
	logger := log.New(log.Config{Handler: slog.NewTextHandler(io.Discard, nil)})
	poster := NewPoster(store, pub, logger)
	ctx := context.Background()

	tx, err := poster.Post(ctx, postInput("acct", 2000, core.Expense))
	if err != nil {
		t.Fatal(err)
	}
	if len(pub.events) != 1 {
		t.Fatalf("events after post = %d, want 1", len(pub.events))
	}
	if ev := pub.events[0]; ev.Op != amqp.OpPost || ev.DeltaCents != -2000 || ev.AccountID != "acct" {
		t.Fatalf("unexpected post event: %+v", ev)
	}

	if _, err := poster.Repost(ctx, tx.ID, userA, RepostInput{Amount: moneyPtr(3000)}); err != nil {
		t.Fatal(err)
	}
	if len(pub.events) != 3 {
		t.Fatalf("events after repost = %d, want 3", len(pub.events))
	}
	if ev := pub.events[1]; ev.Op != amqp.OpReverse || ev.DeltaCents != 2000 {
		t.Fatalf("unexpected reverse event: %+v", ev)
	}
	if ev := pub.events[2]; ev.Op != amqp.OpPost || ev.DeltaCents != -3000 {
		t.Fatalf("unexpected apply event: %+v", ev)
	}

	if err := poster.Unpost(ctx, tx.ID, userA); err != nil {
		t.Fatal(err)
	}
	if len(pub.events) != 4 {
		t.Fatalf("events after unpost = %d, want 4", len(pub.events))
	}
	if ev := pub.events[3]; ev.Op != amqp.OpReverse || ev.DeltaCents != 3000 {
		t.Fatalf("unexpected unpost event: %+v", ev)
	}
}

// A skipped reversal must not show up in the audit trail: the event stream
// records only balance writes that actually landed.
func TestSkippedReversalEmitsNoEvent(t *testing.T) {
	store := newFakeStore()
	addAccount(store, "gone", userA, 0, true)
	addAccount(store, "b", userA, 0, true)
	pub := &fakePublisher{}
	logger := log.New(log.Config{Handler: slog.NewTextHandler(io.Discard, nil)})
	poster := NewPoster(store, pub, logger)
	ctx := context.Background()

	tx, err := poster.Post(ctx, postInput("gone", 1000, core.Income))
	if err != nil {
		t.Fatal(err)
	}
	delete(store.accounts, "gone")
	pub.events = nil

	// move off the vanished account: only the apply on b is recorded
	if _, err := poster.Repost(ctx, tx.ID, userA, RepostInput{AccountID: strPtr("b")}); err != nil {
		t.Fatal(err)
	}
	if len(pub.events) != 1 {
		t.Fatalf("events after repost = %d, want 1", len(pub.events))
	}
	if ev := pub.events[0]; ev.Op != amqp.OpPost || ev.AccountID != "b" || ev.DeltaCents != 1000 {
		t.Fatalf("unexpected event: %+v", ev)
	}

	// amount change on a vanished account: nothing landed, nothing recorded
	tx2, err := poster.Post(ctx, postInput("b", 500, core.Expense))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := poster.Repost(ctx, tx2.ID, userA, RepostInput{AccountID: strPtr("gone")}); !errors.Is(err, core.ErrAccountNotFound) {
		t.Fatalf("err = %v, want ErrAccountNotFound", err)
	}
	delete(store.accounts, "b")
	pub.events = nil
	if _, err := poster.Repost(ctx, tx2.ID, userA, RepostInput{Amount: moneyPtr(700)}); err != nil {
		t.Fatal(err)
	}
	if len(pub.events) != 0 {
		t.Fatalf("events after same-account repost on missing account = %d, want 0", len(pub.events))
	}

	// unpost with the account gone deletes the row but records nothing
	if err := poster.Unpost(ctx, tx2.ID, userA); err != nil {
		t.Fatal(err)
	}
	if len(pub.events) != 0 {
		t.Fatalf("events after unpost on missing account = %d, want 0", len(pub.events))
	}
}

// A failure inside the unit of work must leave no partial effect.
func TestFailedRepostRollsBack(t *testing.T) {
	store := newFakeStore()
	addAccount(store, "acct", userA, 0, true)
	poster := testPoster(store)
	ctx := context.Background()

	tx, err := poster.Post(ctx, postInput("acct", 2000, core.Expense))
	if err != nil {
		t.Fatal(err)
	}

	// invalid new amount fails after the lookup but before commit
	if _, err := poster.Repost(ctx, tx.ID, userA, RepostInput{Amount: moneyPtr(0)}); !errors.Is(err, core.ErrInvalidAmount) {
		t.Fatalf("err = %v, want ErrInvalidAmount", err)
	}
	if got := store.balance(t, "acct"); got != -2000 {
		t.Fatalf("balance = %d, want -2000 (unchanged)", got)
	}
	if got := store.txs[tx.ID].Amount; got != -2000 {
		t.Fatalf("stored amount = %d, want -2000 (unchanged)", got)
	}
}
