package core

import (
	"testing"
)

func TestNewID_UniqueAndNonEmpty(t *testing.T) {
	seen := map[ID]bool{}
	for i := 0; i < 100; i++ {
		id := NewID()
		if id.IsEmpty() {
			t.Fatal("NewID returned empty ID")
		}
		if seen[id] {
			t.Fatalf("duplicate ID generated: %s", id)
		}
		seen[id] = true
	}
}

func TestTypedIDs_NonEmptyAndDistinct(t *testing.T) {
	run := NewRunID()
	res := NewResolutionID()
	if run.String() == "" || res.String() == "" {
		t.Fatal("typed IDs must not be empty")
	}
	if run.String() == res.String() {
		t.Error("typed IDs must be unique")
	}
}

func TestParseRunID(t *testing.T) {
	if _, err := ParseRunID(""); err == nil {
		t.Error("empty run ID should be rejected")
	}
	if _, err := ParseRunID("   "); err == nil {
		t.Error("blank run ID should be rejected")
	}

	id, err := ParseRunID("run-123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id.String() != "run-123" {
		t.Errorf("round trip mismatch: %s", id)
	}
}

func TestErrorPredicates(t *testing.T) {
	notFound := NewNotFoundError("order date")
	if !IsNotFoundError(notFound) {
		t.Error("IsNotFoundError should match wrapped ErrEntryNotFound")
	}
	if IsCorruptStoreError(notFound) {
		t.Error("not-found is not corruption")
	}

	corrupt := NewCorruptStoreError("/tmp/kb.db", ErrStoreClosed)
	if !IsCorruptStoreError(corrupt) {
		t.Error("IsCorruptStoreError should match wrapped ErrStoreCorrupt")
	}
}
