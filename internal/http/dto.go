package http

import (
	"time"

	"duorico/internal/catalog"
	"duorico/internal/core"
	"duorico/internal/storage"
)

// transactionJSON is the wire shape of a transaction. Amounts travel as
// decimal strings; cents never cross the API boundary.
type transactionJSON struct {
	ID            string `json:"id"`
	Type          string `json:"type"`
	Description   string `json:"description"`
	Amount        string `json:"amount"`
	Category      string `json:"category"`
	CategoryLabel string `json:"category_label"`
	Month         int    `json:"month"`
	Year          int    `json:"year"`
	Shared        bool   `json:"shared"`
	OwnerID       string `json:"owner_id"`
	CoupleID      string `json:"couple_id,omitempty"`
	CreatedAt     string `json:"created_at"`

	IsRecurring       bool   `json:"is_recurring"`
	RecurringGroupID  string `json:"recurring_group_id,omitempty"`
	InstallmentNumber int    `json:"installment_number,omitempty"`
	TotalInstallments int    `json:"total_installments,omitempty"`
}

func toTransactionJSON(t core.Transaction) transactionJSON {
	label, err := catalog.Label(t.Category, t.Type)
	if err != nil {
		label = t.Category
	}
	return transactionJSON{
		ID:            t.ID,
		Type:          string(t.Type),
		Description:   t.Description,
		Amount:        t.Amount.String(),
		Category:      t.Category,
		CategoryLabel: label,
		Month:         t.Period.Month,
		Year:          t.Period.Year,
		Shared:        t.CoupleID != "",
		OwnerID:       t.OwnerID,
		CoupleID:      t.CoupleID,
		CreatedAt:     t.CreatedAt.UTC().Format(time.RFC3339Nano),

		IsRecurring:       t.IsRecurring,
		RecurringGroupID:  t.RecurringGroupID,
		InstallmentNumber: t.InstallmentNumber,
		TotalInstallments: t.TotalInstallments,
	}
}

func toTransactionListJSON(txs []core.Transaction) []transactionJSON {
	out := make([]transactionJSON, len(txs))
	for i, t := range txs {
		out[i] = toTransactionJSON(t)
	}
	return out
}

type userJSON struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FullName  string `json:"full_name"`
	CoupleID  string `json:"couple_id,omitempty"`
	CreatedAt string `json:"created_at"`
}

func toUserJSON(u storage.User) userJSON {
	return userJSON{
		ID:        u.ID,
		Email:     u.Email,
		FullName:  u.FullName,
		CoupleID:  u.CoupleID,
		CreatedAt: u.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

type summaryJSON struct {
	Month          int               `json:"month"`
	Year           int               `json:"year"`
	TotalIncome    string            `json:"total_income"`
	TotalExpenses  string            `json:"total_expenses"`
	Balance        string            `json:"balance"`
	RecentExpenses []transactionJSON `json:"recent_expenses"`
}

func toSummaryJSON(s core.PeriodSummary) summaryJSON {
	return summaryJSON{
		Month:          s.Period.Month,
		Year:           s.Period.Year,
		TotalIncome:    s.TotalIncome.String(),
		TotalExpenses:  s.TotalExpenses.String(),
		Balance:        s.Balance.String(),
		RecentExpenses: toTransactionListJSON(s.RecentExpenses),
	}
}
