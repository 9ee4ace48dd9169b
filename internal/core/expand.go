package core

import "strings"

// SeriesTemplate carries the fields shared by every installment of a
// recurring series. Period and installment position are supplied by
// ExpandSeries; ID and CreatedAt belong to the persistence gateway.
type SeriesTemplate struct {
	OwnerID     string
	CoupleID    string
	Type        TransactionType
	Description string
	Amount      Money
	Category    string
}

func (tpl SeriesTemplate) validate() error {
	if !tpl.Type.Valid() {
		return ErrInvalidType
	}
	if tpl.OwnerID == "" {
		return ErrMissingOwner
	}
	if strings.TrimSpace(tpl.Description) == "" {
		return ErrEmptyDescription
	}
	if strings.TrimSpace(tpl.Category) == "" {
		return ErrEmptyCategory
	}
	return tpl.Amount.Validate()
}

// ExpandSeries turns one template plus an installment count into the full
// ordered series. Installment i (0-based) lands on start advanced by i
// calendar months, carries installment number i+1, and shares groupID with
// the rest of the series. The expander performs no I/O; persisting the
// returned records is the caller's job.
//
// groupID is required: pass a fresh one when creating a series, or the
// existing one when regenerating a series that is being edited.
func ExpandSeries(tpl SeriesTemplate, start Period, totalInstallments int, groupID string) ([]Transaction, error) {
	if err := tpl.validate(); err != nil {
		return nil, err
	}
	if err := start.Validate(); err != nil {
		return nil, err
	}
	if totalInstallments < 1 || totalInstallments > MaxInstallments {
		return nil, ErrInvalidInstallments
	}
	if groupID == "" {
		return nil, ErrMissingGroupID
	}

	series := make([]Transaction, totalInstallments)
	for i := 0; i < totalInstallments; i++ {
		series[i] = Transaction{
			OwnerID:           tpl.OwnerID,
			CoupleID:          tpl.CoupleID,
			Type:              tpl.Type,
			Description:       tpl.Description,
			Amount:            tpl.Amount,
			Category:          tpl.Category,
			Period:            start.AddMonths(i),
			IsRecurring:       true,
			RecurringGroupID:  groupID,
			InstallmentNumber: i + 1,
			TotalInstallments: totalInstallments,
		}
	}
	return series, nil
}
