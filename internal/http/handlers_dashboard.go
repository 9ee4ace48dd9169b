package http

import (
	"net/http"

	"duorico/internal/catalog"
	"duorico/internal/core"
)

// handleDashboard serves the monthly overview: income and expense totals,
// balance, and the three latest expenses of the requested period. Without
// month/year parameters it answers for the current month.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	period, err := periodFromQuery(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	txs, err := s.transactions.List(r.Context(), viewerFrom(r))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toSummaryJSON(core.Summarize(txs, period)))
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	typ := core.TransactionType(r.URL.Query().Get("type"))
	if typ == "" {
		income, _ := catalog.List(core.Income)
		expense, _ := catalog.List(core.Expense)
		writeJSON(w, http.StatusOK, map[string]any{
			"income":  income,
			"expense": expense,
		})
		return
	}

	cats, err := catalog.List(typ)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{string(typ): cats})
}
