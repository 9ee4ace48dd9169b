package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"duorico/internal/core"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func seedUser(t *testing.T, repo *Repository, email string) User {
	t.Helper()
	u, err := repo.CreateUser(context.Background(), email, "Test User", "hash")
	if err != nil {
		t.Fatalf("create user %s: %v", email, err)
	}
	return u
}

func seedTransaction(t *testing.T, repo *Repository, tx core.Transaction) core.Transaction {
	t.Helper()
	stored, err := repo.InsertTransaction(context.Background(), tx)
	if err != nil {
		t.Fatalf("insert transaction: %v", err)
	}
	return stored
}

func TestUserLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	u := seedUser(t, repo, "alice@example.com")
	if u.ID == "" || u.CreatedAt.IsZero() {
		t.Fatalf("user missing assigned fields: %+v", u)
	}

	byEmail, err := repo.GetUserByEmail(ctx, "alice@example.com")
	if err != nil || byEmail.ID != u.ID {
		t.Fatalf("get by email: %v, %+v", err, byEmail)
	}

	if _, err := repo.GetUserByEmail(ctx, "nobody@example.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	// Duplicate email must hit the unique constraint.
	if _, err := repo.CreateUser(ctx, "alice@example.com", "Dup", "hash"); err == nil {
		t.Fatal("expected duplicate email error")
	}

	if err := repo.SetCoupleID(ctx, u.ID, "couple-1"); err != nil {
		t.Fatalf("set couple id: %v", err)
	}
	paired, _ := repo.GetUserByID(ctx, u.ID)
	if paired.CoupleID != "couple-1" {
		t.Fatalf("couple id not stored: %+v", paired)
	}

	if err := repo.SetCoupleID(ctx, u.ID, ""); err != nil {
		t.Fatalf("clear couple id: %v", err)
	}
	unpaired, _ := repo.GetUserByID(ctx, u.ID)
	if unpaired.CoupleID != "" {
		t.Fatalf("couple id not cleared: %+v", unpaired)
	}
}

func baseTx(ownerID string) core.Transaction {
	return core.Transaction{
		OwnerID:     ownerID,
		Type:        core.Expense,
		Description: "rent",
		Amount:      core.Money{Cents: 150000},
		Category:    "rent_mortgage",
		Period:      core.Period{Month: 4, Year: 2024},
	}
}

func TestInsertGetRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	alice := seedUser(t, repo, "alice@example.com")

	stored := seedTransaction(t, repo, baseTx(alice.ID))
	if stored.ID == "" || stored.CreatedAt.IsZero() {
		t.Fatalf("gateway did not assign id/created_at: %+v", stored)
	}

	got, err := repo.GetTransaction(ctx, stored.ID)
	if err != nil {
		t.Fatalf("get transaction: %v", err)
	}
	if got != stored {
		t.Fatalf("retrieved record differs:\n got %+v\nwant %+v", got, stored)
	}
}

func TestListTransactionsScoping(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	alice := seedUser(t, repo, "alice@example.com")
	bob := seedUser(t, repo, "bob@example.com")

	own := seedTransaction(t, repo, baseTx(alice.ID))

	shared := baseTx(bob.ID)
	shared.CoupleID = "couple-1"
	sharedStored := seedTransaction(t, repo, shared)

	foreign := baseTx(bob.ID)
	foreign.Description = "bob private"
	seedTransaction(t, repo, foreign)

	claimed := baseTx(alice.ID)
	claimed.CoupleID = "couple-2"
	seedTransaction(t, repo, claimed)

	got, err := repo.ListTransactions(ctx, core.Viewer{ID: alice.ID, CoupleID: "couple-1"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	ids := map[string]bool{}
	for _, tx := range got {
		ids[tx.ID] = true
	}
	if len(got) != 2 || !ids[own.ID] || !ids[sharedStored.ID] {
		t.Fatalf("wrong scoping, got %d records: %+v", len(got), got)
	}

	// Unpaired viewer sees only unclaimed own records.
	solo, err := repo.ListTransactions(ctx, core.Viewer{ID: alice.ID})
	if err != nil {
		t.Fatalf("list solo: %v", err)
	}
	if len(solo) != 1 || solo[0].ID != own.ID {
		t.Fatalf("solo scoping wrong: %+v", solo)
	}
}

func TestDeleteTransaction(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	alice := seedUser(t, repo, "alice@example.com")
	stored := seedTransaction(t, repo, baseTx(alice.ID))

	ok, err := repo.DeleteTransaction(ctx, stored.ID)
	if err != nil || !ok {
		t.Fatalf("delete: ok=%v err=%v", ok, err)
	}
	ok, err = repo.DeleteTransaction(ctx, stored.ID)
	if err != nil || ok {
		t.Fatalf("second delete should report no rows: ok=%v err=%v", ok, err)
	}
	if _, err := repo.GetTransaction(ctx, stored.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func seedSeries(t *testing.T, repo *Repository, ownerID string) []core.Transaction {
	t.Helper()
	series, err := core.ExpandSeries(core.SeriesTemplate{
		OwnerID:     ownerID,
		Type:        core.Expense,
		Description: "car loan",
		Amount:      core.Money{Cents: 40000},
		Category:    "debt_payment",
	}, core.Period{Month: 11, Year: 2024}, 4, "group-1")
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	stored := make([]core.Transaction, len(series))
	for i, tx := range series {
		stored[i] = seedTransaction(t, repo, tx)
	}
	return stored
}

func TestDeleteSeriesOnOrAfter(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	alice := seedUser(t, repo, "alice@example.com")
	seedSeries(t, repo, alice.ID)

	// Delete from 2025-01 onward: keeps Nov and Dec 2024, drops Jan and Feb 2025.
	ok, err := repo.DeleteSeriesOnOrAfter(ctx, "group-1", core.Period{Month: 1, Year: 2025})
	if err != nil || !ok {
		t.Fatalf("delete series: ok=%v err=%v", ok, err)
	}

	left, err := repo.ListSeries(ctx, "group-1")
	if err != nil {
		t.Fatalf("list series: %v", err)
	}
	if len(left) != 2 {
		t.Fatalf("expected 2 remaining installments, got %d", len(left))
	}
	for _, tx := range left {
		if tx.Period.Year != 2024 {
			t.Errorf("unexpected survivor: %+v", tx.Period)
		}
	}
}

func TestPendingSyncBookkeeping(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	alice := seedUser(t, repo, "alice@example.com")

	first := seedTransaction(t, repo, baseTx(alice.ID))
	second := seedTransaction(t, repo, baseTx(alice.ID))

	pending, err := repo.GetPendingSync(ctx, 10)
	if err != nil || len(pending) != 2 {
		t.Fatalf("pending: %v, %d records", err, len(pending))
	}

	if err := repo.MarkSynced(ctx, first.ID); err != nil {
		t.Fatalf("mark synced: %v", err)
	}
	if err := repo.MarkSyncError(ctx, second.ID); err != nil {
		t.Fatalf("mark sync error: %v", err)
	}

	// Errored rows stay eligible so the periodic sweep retries them.
	pending, err = repo.GetPendingSync(ctx, 10)
	if err != nil || len(pending) != 1 || pending[0].ID != second.ID {
		t.Fatalf("expected the errored record to remain pending, got %d records (err=%v)", len(pending), err)
	}

	if err := repo.MarkSynced(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing id, got %v", err)
	}
}
