// Package storage is the persistence gateway: SQLite-backed user and
// transaction repositories behind the contract the service layer consumes.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"duorico/internal/core"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Sync states for the sheet mirror.
const (
	SyncPending = "pending"
	SyncDone    = "synced"
	SyncError   = "error"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("not found")

// User is an account row. CoupleID is empty for unpaired accounts.
type User struct {
	ID           string
	Email        string
	FullName     string
	PasswordHash string
	CoupleID     string
	CreatedAt    time.Time
}

type Repository struct {
	db *sql.DB
}

func New(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// SQLite allows one writer at a time; a single pooled connection
	// makes concurrent writers queue instead of failing SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	_, _ = db.Exec("PRAGMA journal_mode = WAL;")
	_, _ = db.Exec("PRAGMA busy_timeout = 5000;")
	_, _ = db.Exec("PRAGMA foreign_keys = ON;")

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database can serve traffic.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Users

// CreateUser inserts a new account, assigning id and created_at. The email
// unique constraint surfaces as a wrapped error.
func (r *Repository) CreateUser(ctx context.Context, email, fullName, passwordHash string) (User, error) {
	u := User{
		ID:           uuid.NewString(),
		Email:        email,
		FullName:     fullName,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, email, full_name, password_hash, couple_id, created_at)
		 VALUES (?, ?, ?, ?, NULL, ?)`,
		u.ID, u.Email, u.FullName, u.PasswordHash, u.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return User{}, fmt.Errorf("insert user: %w", err)
	}

	slog.InfoContext(ctx, "User created", "id", u.ID, "email", u.Email)
	return u, nil
}

func (r *Repository) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return r.getUser(ctx, `SELECT id, email, full_name, password_hash, couple_id, created_at FROM users WHERE email = ?`, email)
}

func (r *Repository) GetUserByID(ctx context.Context, id string) (User, error) {
	return r.getUser(ctx, `SELECT id, email, full_name, password_hash, couple_id, created_at FROM users WHERE id = ?`, id)
}

func (r *Repository) getUser(ctx context.Context, query string, arg any) (User, error) {
	var (
		u         User
		coupleID  sql.NullString
		createdAt string
	)
	err := r.db.QueryRowContext(ctx, query, arg).
		Scan(&u.ID, &u.Email, &u.FullName, &u.PasswordHash, &coupleID, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("query user: %w", err)
	}
	u.CoupleID = coupleID.String
	if u.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return User{}, fmt.Errorf("parse user created_at: %w", err)
	}
	return u, nil
}

// SetCoupleID assigns (or, with an empty id, clears) a user's couple scope.
func (r *Repository) SetCoupleID(ctx context.Context, userID, coupleID string) error {
	var value sql.NullString
	if coupleID != "" {
		value = sql.NullString{String: coupleID, Valid: true}
	}
	res, err := r.db.ExecContext(ctx, `UPDATE users SET couple_id = ? WHERE id = ?`, value, userID)
	if err != nil {
		return fmt.Errorf("set couple id: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, email, full_name, password_hash, couple_id, created_at FROM users ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var (
			u         User
			coupleID  sql.NullString
			createdAt string
		)
		if err := rows.Scan(&u.ID, &u.Email, &u.FullName, &u.PasswordHash, &coupleID, &createdAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		u.CoupleID = coupleID.String
		if u.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("parse user created_at: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// Transactions

const transactionColumns = `id, owner_id, couple_id, type, description, amount_cents,
	category, month, year, created_at, is_recurring, recurring_group_id,
	installment_number, total_installments`

// InsertTransaction persists one record, assigning id and created_at, and
// returns the stored entity.
func (r *Repository) InsertTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	t.ID = uuid.NewString()
	t.CreatedAt = time.Now().UTC()
	row := rowFromTransaction(t)

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (`+transactionColumns+`, sync_status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		row.ID, row.OwnerID, row.CoupleID, row.Type, row.Description, row.AmountCents,
		row.Category, row.Month, row.Year, row.CreatedAt, row.IsRecurring,
		row.RecurringGroupID, row.InstallmentNumber, row.TotalInstallments, SyncPending)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved",
		"id", t.ID,
		"type", t.Type,
		"amount_cents", t.Amount.Cents,
		"month", t.Period.Month,
		"year", t.Period.Year,
		"recurring", t.IsRecurring)
	return t, nil
}

// UpdateTransaction replaces the mutable columns of an existing record,
// matched by id. The stored created_at is preserved.
func (r *Repository) UpdateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	existing, err := r.GetTransaction(ctx, t.ID)
	if err != nil {
		return core.Transaction{}, err
	}
	t.CreatedAt = existing.CreatedAt
	row := rowFromTransaction(t)

	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET
			owner_id = ?, couple_id = ?, type = ?, description = ?, amount_cents = ?,
			category = ?, month = ?, year = ?, is_recurring = ?, recurring_group_id = ?,
			installment_number = ?, total_installments = ?, sync_status = ?
		 WHERE id = ?`,
		row.OwnerID, row.CoupleID, row.Type, row.Description, row.AmountCents,
		row.Category, row.Month, row.Year, row.IsRecurring, row.RecurringGroupID,
		row.InstallmentNumber, row.TotalInstallments, SyncPending, row.ID)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.Transaction{}, ErrNotFound
	}
	return t, nil
}

// DeleteTransaction removes one record. Returns false when no row matched.
func (r *Repository) DeleteTransaction(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete transaction: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// DeleteSeriesOnOrAfter removes every record of a recurring group whose
// (year, month) is on or after the given period.
func (r *Repository) DeleteSeriesOnOrAfter(ctx context.Context, groupID string, from core.Period) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM transactions
		 WHERE recurring_group_id = ?
		   AND (year > ? OR (year = ? AND month >= ?))`,
		groupID, from.Year, from.Year, from.Month)
	if err != nil {
		return false, fmt.Errorf("delete series: %w", err)
	}
	n, _ := res.RowsAffected()
	slog.InfoContext(ctx, "Series records deleted",
		"group_id", groupID, "from_month", from.Month, "from_year", from.Year, "deleted", n)
	return n > 0, nil
}

// DeleteSeries removes every record of a recurring group.
func (r *Repository) DeleteSeries(ctx context.Context, groupID string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM transactions WHERE recurring_group_id = ?`, groupID)
	if err != nil {
		return false, fmt.Errorf("delete series: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r *Repository) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, ErrNotFound
	}
	return t, err
}

// ListTransactions returns every record the viewer's credentials permit:
// records in the viewer's couple scope, plus the viewer's own records not
// claimed by another couple. This is the server-side enforcement the
// core.Visible predicate mirrors.
func (r *Repository) ListTransactions(ctx context.Context, viewer core.Viewer) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		 WHERE (?1 != '' AND couple_id = ?1)
		    OR (owner_id = ?2 AND (couple_id IS NULL OR couple_id = ?1))
		 ORDER BY year, month, created_at`,
		viewer.CoupleID, viewer.ID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()
	return collectTransactions(rows)
}

// ListSeries returns every record sharing a recurring group id, ordered by
// installment number.
func (r *Repository) ListSeries(ctx context.Context, groupID string) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		 WHERE recurring_group_id = ? ORDER BY installment_number`, groupID)
	if err != nil {
		return nil, fmt.Errorf("list series: %w", err)
	}
	defer rows.Close()
	return collectTransactions(rows)
}

// Sheet-mirror bookkeeping

// GetPendingSync returns up to limit transactions not yet mirrored to the
// couple's spreadsheet, oldest first. Rows that errored on a previous
// attempt are included so sweeps retry them.
func (r *Repository) GetPendingSync(ctx context.Context, limit int) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		 WHERE sync_status IN (?, ?) ORDER BY created_at LIMIT ?`, SyncPending, SyncError, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending sync transactions: %w", err)
	}
	defer rows.Close()
	return collectTransactions(rows)
}

func (r *Repository) MarkSynced(ctx context.Context, id string) error {
	if err := r.setSyncStatus(ctx, id, SyncDone); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Transaction marked as synced", "id", id)
	return nil
}

func (r *Repository) MarkSyncError(ctx context.Context, id string) error {
	if err := r.setSyncStatus(ctx, id, SyncError); err != nil {
		return err
	}
	slog.WarnContext(ctx, "Transaction marked with sync error", "id", id)
	return nil
}

func (r *Repository) setSyncStatus(ctx context.Context, id, status string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET sync_status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("set sync status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Scanning helpers

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(s rowScanner) (core.Transaction, error) {
	var row transactionRow
	err := s.Scan(&row.ID, &row.OwnerID, &row.CoupleID, &row.Type, &row.Description,
		&row.AmountCents, &row.Category, &row.Month, &row.Year, &row.CreatedAt,
		&row.IsRecurring, &row.RecurringGroupID, &row.InstallmentNumber, &row.TotalInstallments)
	if err != nil {
		return core.Transaction{}, err
	}
	return row.toTransaction()
}

func collectTransactions(rows *sql.Rows) ([]core.Transaction, error) {
	var txs []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}
