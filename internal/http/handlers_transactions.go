package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"duorico/internal/core"
	"duorico/internal/services"

	"github.com/go-chi/chi/v5"
)

type transactionRequest struct {
	Type              string `json:"type"`
	Description       string `json:"description"`
	Amount            string `json:"amount"`
	Category          string `json:"category"`
	Month             int    `json:"month"`
	Year              int    `json:"year"`
	Shared            bool   `json:"shared"`
	IsRecurring       bool   `json:"is_recurring"`
	TotalInstallments int    `json:"total_installments"`
}

func (req transactionRequest) toInput() services.NewTransactionInput {
	return services.NewTransactionInput{
		Type:              core.TransactionType(req.Type),
		Description:       req.Description,
		Amount:            req.Amount,
		Category:          req.Category,
		Period:            core.Period{Month: req.Month, Year: req.Year},
		Shared:            req.Shared,
		IsRecurring:       req.IsRecurring,
		TotalInstallments: req.TotalInstallments,
	}
}

// handleListTransactions lists everything visible to the viewer, optionally
// narrowed by month, year and type query parameters.
func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := s.transactions.List(r.Context(), viewerFrom(r))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	q := r.URL.Query()
	if t := q.Get("type"); t != "" {
		typ := core.TransactionType(t)
		if !typ.Valid() {
			writeDomainError(w, r, core.ErrInvalidType)
			return
		}
		txs = filterTransactions(txs, func(tx core.Transaction) bool { return tx.Type == typ })
	}
	if m := q.Get("month"); m != "" {
		month, err := strconv.Atoi(m)
		if err != nil {
			writeDomainError(w, r, core.ErrInvalidMonth)
			return
		}
		txs = filterTransactions(txs, func(tx core.Transaction) bool { return tx.Period.Month == month })
	}
	if y := q.Get("year"); y != "" {
		year, err := strconv.Atoi(y)
		if err != nil {
			writeDomainError(w, r, core.ErrInvalidYear)
			return
		}
		txs = filterTransactions(txs, func(tx core.Transaction) bool { return tx.Period.Year == year })
	}

	writeJSON(w, http.StatusOK, map[string]any{"transactions": toTransactionListJSON(txs)})
}

func filterTransactions(txs []core.Transaction, keep func(core.Transaction) bool) []core.Transaction {
	out := txs[:0]
	for _, t := range txs {
		if keep(t) {
			out = append(out, t)
		}
	}
	return out
}

// handleCreateTransaction records a transaction, expanding recurring ones
// into their full series. A series where only some installments persisted
// answers 207 with the saved records and the failed positions.
func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	created, err := s.transactions.Create(r.Context(), viewerFrom(r), req.toInput())

	var partial *services.PartialSeriesFailure
	if errors.As(err, &partial) {
		writeJSON(w, http.StatusMultiStatus, map[string]any{
			"transactions":        toTransactionListJSON(partial.Persisted),
			"failed_installments": partial.FailedInstallments,
			"error":               partial.Error(),
		})
		return
	}
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"transactions": toTransactionListJSON(created)})
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	t, err := s.transactions.Get(r.Context(), viewerFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transaction": toTransactionJSON(t)})
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	t, err := s.transactions.Update(r.Context(), viewerFrom(r), chi.URLParam(r, "id"), services.UpdateInput{
		Description: req.Description,
		Amount:      req.Amount,
		Category:    req.Category,
		Period:      core.Period{Month: req.Month, Year: req.Year},
		Shared:      req.Shared,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transaction": toTransactionJSON(t)})
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := s.transactions.Delete(r.Context(), viewerFrom(r), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleUpdateSeries rewrites a whole recurring series from an edited
// template, keeping the group id.
func (s *Server) handleUpdateSeries(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	regenerated, err := s.transactions.UpdateSeries(r.Context(), viewerFrom(r), chi.URLParam(r, "groupID"), req.toInput())

	var partial *services.PartialSeriesFailure
	if errors.As(err, &partial) {
		writeJSON(w, http.StatusMultiStatus, map[string]any{
			"transactions":        toTransactionListJSON(partial.Persisted),
			"failed_installments": partial.FailedInstallments,
			"error":               partial.Error(),
		})
		return
	}
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": toTransactionListJSON(regenerated)})
}

// handleDeleteFutureInstallments drops every installment of a series from
// the given month onward; past installments stay on the books.
func (s *Server) handleDeleteFutureInstallments(w http.ResponseWriter, r *http.Request) {
	from, err := periodFromQuery(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if err := s.transactions.DeleteFutureInstallments(r.Context(), viewerFrom(r), chi.URLParam(r, "groupID"), from); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
