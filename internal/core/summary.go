package core

import "sort"

// recentExpenseCount is how many latest expenses the dashboard shows.
const recentExpenseCount = 3

// PeriodSummary is the dashboard view of one accounting month.
type PeriodSummary struct {
	Period         Period
	TotalIncome    Money
	TotalExpenses  Money
	Balance        Money // TotalIncome - TotalExpenses, may be negative
	RecentExpenses []Transaction
}

// Summarize computes the summary for one period from an already-filtered
// transaction set. Records outside the period are ignored. RecentExpenses
// holds up to three matching expenses ordered by CreatedAt descending; ties
// keep their input order. Empty input yields zero totals, not an error.
func Summarize(txs []Transaction, p Period) PeriodSummary {
	s := PeriodSummary{Period: p}

	var expenses []Transaction
	for _, t := range txs {
		if t.Period != p {
			continue
		}
		switch t.Type {
		case Income:
			s.TotalIncome = s.TotalIncome.Add(t.Amount)
		case Expense:
			s.TotalExpenses = s.TotalExpenses.Add(t.Amount)
			expenses = append(expenses, t)
		}
	}
	s.Balance = s.TotalIncome.Sub(s.TotalExpenses)

	sort.SliceStable(expenses, func(i, j int) bool {
		return expenses[i].CreatedAt.After(expenses[j].CreatedAt)
	})
	if len(expenses) > recentExpenseCount {
		expenses = expenses[:recentExpenseCount]
	}
	s.RecentExpenses = expenses
	return s
}
