package storage

import (
	"testing"
	"time"

	"duorico/internal/core"
)

func TestTransactionRowRoundTrip(t *testing.T) {
	createdAt := time.Date(2024, 3, 15, 9, 30, 0, 123456000, time.UTC)

	cases := []struct {
		name string
		tx   core.Transaction
	}{
		{
			name: "individual single record",
			tx: core.Transaction{
				ID:          "tx-1",
				OwnerID:     "user-1",
				Type:        core.Expense,
				Description: "groceries run",
				Amount:      core.Money{Cents: 12345},
				Category:    "groceries",
				Period:      core.Period{Month: 3, Year: 2024},
				CreatedAt:   createdAt,
			},
		},
		{
			name: "couple-scoped installment",
			tx: core.Transaction{
				ID:                "tx-2",
				OwnerID:           "user-1",
				CoupleID:          "couple-1",
				Type:              core.Income,
				Description:       "consulting fee",
				Amount:            core.Money{Cents: 250000},
				Category:          "freelance",
				Period:            core.Period{Month: 12, Year: 2024},
				CreatedAt:         createdAt,
				IsRecurring:       true,
				RecurringGroupID:  "group-1",
				InstallmentNumber: 3,
				TotalInstallments: 12,
			},
		},
		{
			name: "one-installment series",
			tx: core.Transaction{
				ID:                "tx-3",
				OwnerID:           "user-2",
				Type:              core.Expense,
				Description:       "annual insurance",
				Amount:            core.Money{Cents: 90000},
				Category:          "other",
				Period:            core.Period{Month: 1, Year: 2025},
				CreatedAt:         createdAt,
				IsRecurring:       true,
				RecurringGroupID:  "group-2",
				InstallmentNumber: 1,
				TotalInstallments: 1,
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			row := rowFromTransaction(tc.tx)
			got, err := row.toTransaction()
			if err != nil {
				t.Fatalf("toTransaction: %v", err)
			}
			if got != tc.tx {
				t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, tc.tx)
			}
		})
	}
}

func TestRowFromTransactionNullability(t *testing.T) {
	tx := core.Transaction{
		ID:          "tx-1",
		OwnerID:     "user-1",
		Type:        core.Expense,
		Description: "coffee",
		Amount:      core.Money{Cents: 450},
		Category:    "other",
		Period:      core.Period{Month: 5, Year: 2025},
		CreatedAt:   time.Now().UTC(),
	}
	row := rowFromTransaction(tx)
	if row.CoupleID.Valid {
		t.Error("empty couple id must map to NULL")
	}
	if row.RecurringGroupID.Valid || row.InstallmentNumber.Valid || row.TotalInstallments.Valid {
		t.Error("non-recurring record must map series fields to NULL")
	}
}
