package memory

import (
	"context"
	"testing"

	"duorico/internal/core"
)

func sample(id string) core.Transaction {
	return core.Transaction{
		ID:          id,
		OwnerID:     "user-1",
		Type:        core.Expense,
		Description: "Groceries",
		Amount:      core.Money{Cents: 4200},
		Category:    "groceries",
		Period:      core.Period{Month: 6, Year: 2025},
	}
}

func TestAppendAndRemove(t *testing.T) {
	s := New()
	ctx := context.Background()

	ref, err := s.Append(ctx, sample("a"))
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if ref != "mem:a" {
		t.Errorf("Append() ref = %q, want mem:a", ref)
	}
	if _, err := s.Append(ctx, sample("b")); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	// Re-appending the same id overwrites, not duplicates.
	updated := sample("a")
	updated.Description = "Groceries (edited)"
	if _, err := s.Append(ctx, updated); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	all := s.All()
	if len(all) != 2 {
		t.Fatalf("All() length = %d, want 2", len(all))
	}
	if all[0].Description != "Groceries (edited)" {
		t.Errorf("overwritten description = %q", all[0].Description)
	}

	if err := s.Remove(ctx, []string{"a", "missing"}); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	all = s.All()
	if len(all) != 1 || all[0].ID != "b" {
		t.Fatalf("after Remove() All() = %v, want only b", all)
	}
}

func TestAppendRejectsInvalid(t *testing.T) {
	s := New()
	bad := sample("c")
	bad.Amount = core.Money{Cents: 0}
	if _, err := s.Append(context.Background(), bad); err == nil {
		t.Fatal("Append() expected validation error")
	}
}
