// Package core holds the Duo Rico domain model: transactions, accounting
// periods, the recurring-series expander, the visibility filter and the
// period aggregator. Everything in this package is pure: no I/O, no clocks,
// no hidden state.
package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

// MaxInstallments bounds the length of a recurring series.
const MaxInstallments = 48

type (
	// TransactionType is a closed set: income or expense.
	TransactionType string

	// Period is the accounting month a transaction is attributed to,
	// independent of when it was recorded.
	Period struct {
		Month int // 1-12
		Year  int
	}

	// Money is an amount in cents. Arithmetic stays in int64; parsing and
	// formatting live in money.go.
	Money struct {
		Cents int64
	}

	// Viewer identifies the authenticated account performing an operation.
	// CoupleID is empty for accounts not paired into a couple scope.
	Viewer struct {
		ID       string
		CoupleID string
	}

	// Transaction is one financial event. ID and CreatedAt are assigned by
	// the persistence gateway at insert time and are zero before that.
	Transaction struct {
		ID          string
		OwnerID     string
		CoupleID    string // empty for individual-only records
		Type        TransactionType
		Description string
		Amount      Money
		Category    string
		Period      Period
		CreatedAt   time.Time

		// Series fields: all set iff IsRecurring, all zero otherwise.
		IsRecurring       bool
		RecurringGroupID  string
		InstallmentNumber int
		TotalInstallments int
	}
)

var (
	ErrInvalidType         = errors.New("invalid transaction type")
	ErrInvalidMonth        = errors.New("month must be between 1 and 12")
	ErrInvalidYear         = errors.New("invalid year")
	ErrInvalidAmount       = errors.New("amount must be a positive finite value")
	ErrEmptyDescription    = errors.New("empty description")
	ErrEmptyCategory       = errors.New("empty category")
	ErrMissingOwner        = errors.New("missing owner id")
	ErrInvalidInstallments = errors.New("installments must be between 1 and 48")
	ErrInconsistentSeries  = errors.New("inconsistent recurring series fields")
	ErrMissingGroupID      = errors.New("missing recurring group id")
)

func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

func (p Period) Validate() error {
	if p.Month < 1 || p.Month > 12 {
		return ErrInvalidMonth
	}
	if p.Year < 1 {
		return ErrInvalidYear
	}
	return nil
}

// AddMonths advances the period by n calendar months, wrapping the year at
// December. n may be zero; the receiver is not modified.
func (p Period) AddMonths(n int) Period {
	m := p.Year*12 + (p.Month - 1) + n
	return Period{Month: m%12 + 1, Year: m / 12}
}

// Before reports whether p precedes q, comparing year first, then month.
func (p Period) Before(q Period) bool {
	if p.Year != q.Year {
		return p.Year < q.Year
	}
	return p.Month < q.Month
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Validate checks every model invariant from the data model: positive amount,
// valid period, and recurring-series consistency (group id, installment
// position and series length all present iff IsRecurring).
func (t Transaction) Validate() error {
	if !t.Type.Valid() {
		return ErrInvalidType
	}
	if t.OwnerID == "" {
		return ErrMissingOwner
	}
	if strings.TrimSpace(t.Description) == "" {
		return ErrEmptyDescription
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if err := t.Period.Validate(); err != nil {
		return err
	}
	if t.IsRecurring {
		if t.RecurringGroupID == "" {
			return ErrMissingGroupID
		}
		if t.TotalInstallments < 1 || t.TotalInstallments > MaxInstallments {
			return ErrInvalidInstallments
		}
		if t.InstallmentNumber < 1 || t.InstallmentNumber > t.TotalInstallments {
			return ErrInconsistentSeries
		}
		return nil
	}
	if t.RecurringGroupID != "" || t.InstallmentNumber != 0 || t.TotalInstallments != 0 {
		return ErrInconsistentSeries
	}
	return nil
}
