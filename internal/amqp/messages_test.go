package amqp

import (
	"testing"
	"time"
)

func TestPostingEventJSON(t *testing.T) {
	ev := NewPostingEvent("tx-1", "user-1", "acct-1", -2000, OpReverse)

	data, err := ev.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}

	decoded, err := PostingEventFromJSON(data)
	if err != nil {
		t.Fatalf("FromJSON: %v", err)
	}

	if decoded.TransactionID != "tx-1" {
		t.Errorf("TransactionID = %q, want tx-1", decoded.TransactionID)
	}
	if decoded.AccountID != "acct-1" {
		t.Errorf("AccountID = %q, want acct-1", decoded.AccountID)
	}
	if decoded.DeltaCents != -2000 {
		t.Errorf("DeltaCents = %d, want -2000", decoded.DeltaCents)
	}
	if decoded.Op != OpReverse {
		t.Errorf("Op = %q, want %q", decoded.Op, OpReverse)
	}
	if decoded.Timestamp.IsZero() {
		t.Error("Timestamp should be set")
	}
	if time.Since(decoded.Timestamp) > time.Minute {
		t.Error("Timestamp should be recent")
	}
}

func TestPostingEventFromJSONInvalid(t *testing.T) {
	if _, err := PostingEventFromJSON([]byte("{not json")); err == nil {
		t.Fatal("expected error for malformed payload")
	}
}
