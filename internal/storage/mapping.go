package storage

import (
	"database/sql"
	"fmt"
	"time"

	"duorico/internal/core"
)

// transactionRow is the wire schema of the transactions table: snake_case
// columns, nullable series fields. rowFromTransaction and
// (transactionRow).toTransaction form one explicit, total, bidirectional
// mapping between this schema and the domain entity; nothing else in the
// repo translates the two shapes.
type transactionRow struct {
	ID                string
	OwnerID           string
	CoupleID          sql.NullString
	Type              string
	Description       string
	AmountCents       int64
	Category          string
	Month             int64
	Year              int64
	CreatedAt         string // RFC 3339 UTC
	IsRecurring       bool
	RecurringGroupID  sql.NullString
	InstallmentNumber sql.NullInt64
	TotalInstallments sql.NullInt64
}

func rowFromTransaction(t core.Transaction) transactionRow {
	r := transactionRow{
		ID:          t.ID,
		OwnerID:     t.OwnerID,
		Type:        string(t.Type),
		Description: t.Description,
		AmountCents: t.Amount.Cents,
		Category:    t.Category,
		Month:       int64(t.Period.Month),
		Year:        int64(t.Period.Year),
		CreatedAt:   t.CreatedAt.UTC().Format(time.RFC3339Nano),
		IsRecurring: t.IsRecurring,
	}
	if t.CoupleID != "" {
		r.CoupleID = sql.NullString{String: t.CoupleID, Valid: true}
	}
	if t.IsRecurring {
		r.RecurringGroupID = sql.NullString{String: t.RecurringGroupID, Valid: true}
		r.InstallmentNumber = sql.NullInt64{Int64: int64(t.InstallmentNumber), Valid: true}
		r.TotalInstallments = sql.NullInt64{Int64: int64(t.TotalInstallments), Valid: true}
	}
	return r
}

func (r transactionRow) toTransaction() (core.Transaction, error) {
	createdAt, err := time.Parse(time.RFC3339Nano, r.CreatedAt)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parse created_at %q: %w", r.CreatedAt, err)
	}
	t := core.Transaction{
		ID:          r.ID,
		OwnerID:     r.OwnerID,
		CoupleID:    r.CoupleID.String,
		Type:        core.TransactionType(r.Type),
		Description: r.Description,
		Amount:      core.Money{Cents: r.AmountCents},
		Category:    r.Category,
		Period:      core.Period{Month: int(r.Month), Year: int(r.Year)},
		CreatedAt:   createdAt,
		IsRecurring: r.IsRecurring,
	}
	if r.IsRecurring {
		t.RecurringGroupID = r.RecurringGroupID.String
		t.InstallmentNumber = int(r.InstallmentNumber.Int64)
		t.TotalInstallments = int(r.TotalInstallments.Int64)
	}
	return t, nil
}
