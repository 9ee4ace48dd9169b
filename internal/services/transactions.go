// Package services holds the application layer: visibility-gated transaction
// CRUD, recurring-series creation with concurrent installment persistence,
// and best-effort hand-off to the sheet-mirror queue.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"duorico/internal/core"
	"duorico/internal/metrics"
	"duorico/internal/storage"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

var (
	ErrNotFound            = errors.New("transaction not found")
	ErrNotSeries           = errors.New("transaction is not part of a recurring series")
	ErrSharedWithoutCouple = errors.New("cannot record a shared transaction without a paired couple")
)

// TransactionGateway is the persistence port the service writes through.
// *storage.Repository satisfies it.
type TransactionGateway interface {
	InsertTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
	UpdateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
	DeleteTransaction(ctx context.Context, id string) (bool, error)
	DeleteSeriesOnOrAfter(ctx context.Context, groupID string, from core.Period) (bool, error)
	DeleteSeries(ctx context.Context, groupID string) (bool, error)
	GetTransaction(ctx context.Context, id string) (core.Transaction, error)
	ListTransactions(ctx context.Context, viewer core.Viewer) ([]core.Transaction, error)
	ListSeries(ctx context.Context, groupID string) ([]core.Transaction, error)
}

// SyncPublisher hands persisted changes to the mirror queue. Publishing is
// best effort: the worker catches up from sync_status on the next sweep, so
// a publish failure is logged, never surfaced.
type SyncPublisher interface {
	PublishTransactionSync(ctx context.Context, transactionID string) error
	PublishTransactionDelete(ctx context.Context, transactionIDs []string) error
}

// PartialSeriesFailure reports a series creation where some installments were
// persisted and others were not. Persisted carries what made it to storage;
// FailedInstallments lists the 1-based positions that did not.
type PartialSeriesFailure struct {
	Persisted          []core.Transaction
	FailedInstallments []int
	Errs               []error
}

func (e *PartialSeriesFailure) Error() string {
	return fmt.Sprintf("series partially created: %d of %d installments failed",
		len(e.FailedInstallments), len(e.FailedInstallments)+len(e.Persisted))
}

func (e *PartialSeriesFailure) Unwrap() []error { return e.Errs }

// NewTransactionInput is what callers supply to record a transaction. Amount
// is the decimal string from the request, not cents.
type NewTransactionInput struct {
	Type              core.TransactionType
	Description       string
	Amount            string
	Category          string
	Period            core.Period
	Shared            bool
	IsRecurring       bool
	TotalInstallments int
}

type TransactionService struct {
	gateway   TransactionGateway
	publisher SyncPublisher
}

// NewTransactionService wires the service. publisher may be nil when no
// broker is configured; the worker then relies on sync_status sweeps alone.
func NewTransactionService(gateway TransactionGateway, publisher SyncPublisher) *TransactionService {
	return &TransactionService{gateway: gateway, publisher: publisher}
}

func (s *TransactionService) buildTemplate(viewer core.Viewer, in NewTransactionInput) (core.SeriesTemplate, error) {
	amount, err := core.ParseAmount(in.Amount)
	if err != nil {
		return core.SeriesTemplate{}, err
	}
	// Unknown category codes are accepted and rendered with a fallback
	// label, but an empty one is not.
	if strings.TrimSpace(in.Category) == "" {
		return core.SeriesTemplate{}, core.ErrEmptyCategory
	}
	coupleID := ""
	if in.Shared {
		if viewer.CoupleID == "" {
			return core.SeriesTemplate{}, ErrSharedWithoutCouple
		}
		coupleID = viewer.CoupleID
	}
	return core.SeriesTemplate{
		OwnerID:     viewer.ID,
		CoupleID:    coupleID,
		Type:        in.Type,
		Description: in.Description,
		Amount:      amount,
		Category:    in.Category,
	}, nil
}

// Create records a transaction. With IsRecurring set it expands the series
// and persists every installment; otherwise it inserts a single record.
func (s *TransactionService) Create(ctx context.Context, viewer core.Viewer, in NewTransactionInput) ([]core.Transaction, error) {
	tpl, err := s.buildTemplate(viewer, in)
	if err != nil {
		return nil, err
	}

	if !in.IsRecurring {
		t := core.Transaction{
			OwnerID:     tpl.OwnerID,
			CoupleID:    tpl.CoupleID,
			Type:        tpl.Type,
			Description: tpl.Description,
			Amount:      tpl.Amount,
			Category:    tpl.Category,
			Period:      in.Period,
		}
		if err := t.Validate(); err != nil {
			return nil, err
		}
		saved, err := s.gateway.InsertTransaction(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("insert transaction: %w", err)
		}
		metrics.TransactionsCreated.WithLabelValues(string(saved.Type)).Inc()
		s.publishSync(ctx, saved.ID)
		return []core.Transaction{saved}, nil
	}

	return s.createSeries(ctx, tpl, in.Period, in.TotalInstallments, uuid.NewString())
}

// createSeries expands and persists a series under groupID. Installments are
// inserted concurrently; a mix of successes and failures comes back as a
// *PartialSeriesFailure alongside the persisted records.
func (s *TransactionService) createSeries(ctx context.Context, tpl core.SeriesTemplate, start core.Period, total int, groupID string) ([]core.Transaction, error) {
	installments, err := core.ExpandSeries(tpl, start, total, groupID)
	if err != nil {
		return nil, err
	}

	type result struct {
		saved core.Transaction
		pos   int
		err   error
	}

	results := make([]result, len(installments))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, inst := range installments {
		g.Go(func() error {
			saved, err := s.gateway.InsertTransaction(gctx, inst)
			results[i] = result{saved: saved, pos: inst.InstallmentNumber, err: err}
			// Collect per-installment outcomes instead of cancelling siblings.
			return nil
		})
	}
	g.Wait()

	var persisted []core.Transaction
	var failed []int
	var errs []error
	for _, r := range results {
		if r.err != nil {
			failed = append(failed, r.pos)
			errs = append(errs, fmt.Errorf("installment %d: %w", r.pos, r.err))
			continue
		}
		persisted = append(persisted, r.saved)
	}
	sort.Slice(persisted, func(i, j int) bool {
		return persisted[i].InstallmentNumber < persisted[j].InstallmentNumber
	})
	sort.Ints(failed)

	for _, t := range persisted {
		metrics.TransactionsCreated.WithLabelValues(string(t.Type)).Inc()
		s.publishSync(ctx, t.ID)
	}

	if len(failed) > 0 {
		slog.ErrorContext(ctx, "Series partially created",
			"group_id", groupID,
			"persisted", len(persisted),
			"failed", failed)
		return persisted, &PartialSeriesFailure{Persisted: persisted, FailedInstallments: failed, Errs: errs}
	}

	slog.InfoContext(ctx, "Series created",
		"group_id", groupID, "installments", len(persisted))
	return persisted, nil
}

// Get returns one transaction if the viewer may see it.
func (s *TransactionService) Get(ctx context.Context, viewer core.Viewer, id string) (core.Transaction, error) {
	t, err := s.gateway.GetTransaction(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return core.Transaction{}, ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	if !core.Visible(&viewer, t) {
		// Invisible records read as absent so ids cannot be probed.
		return core.Transaction{}, ErrNotFound
	}
	return t, nil
}

// List returns every transaction visible to the viewer.
func (s *TransactionService) List(ctx context.Context, viewer core.Viewer) ([]core.Transaction, error) {
	txs, err := s.gateway.ListTransactions(ctx, viewer)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}

// UpdateInput carries the mutable fields of a transaction edit.
type UpdateInput struct {
	Description string
	Amount      string
	Category    string
	Period      core.Period
	Shared      bool
}

// Update edits a single transaction in place. Editing an installment of a
// recurring series touches only that installment; use UpdateSeries to rewrite
// a whole group.
func (s *TransactionService) Update(ctx context.Context, viewer core.Viewer, id string, in UpdateInput) (core.Transaction, error) {
	current, err := s.Get(ctx, viewer, id)
	if err != nil {
		return core.Transaction{}, err
	}

	amount, err := core.ParseAmount(in.Amount)
	if err != nil {
		return core.Transaction{}, err
	}
	coupleID := ""
	if in.Shared {
		if viewer.CoupleID == "" {
			return core.Transaction{}, ErrSharedWithoutCouple
		}
		coupleID = viewer.CoupleID
	}

	updated := current
	updated.Description = in.Description
	updated.Amount = amount
	updated.Category = in.Category
	updated.Period = in.Period
	updated.CoupleID = coupleID

	if err := updated.Validate(); err != nil {
		return core.Transaction{}, err
	}
	saved, err := s.gateway.UpdateTransaction(ctx, updated)
	if errors.Is(err, storage.ErrNotFound) {
		return core.Transaction{}, ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}
	s.publishSync(ctx, saved.ID)
	return saved, nil
}

// UpdateSeries rewrites an entire recurring series: every existing
// installment in the group is deleted and the series is regenerated from the
// edited template under the same group id, anchored at the earliest period of
// the old series.
func (s *TransactionService) UpdateSeries(ctx context.Context, viewer core.Viewer, groupID string, in NewTransactionInput) ([]core.Transaction, error) {
	old, err := s.visibleSeries(ctx, viewer, groupID)
	if err != nil {
		return nil, err
	}

	start := old[0].Period
	for _, t := range old[1:] {
		if t.Period.Before(start) {
			start = t.Period
		}
	}
	total := in.TotalInstallments
	if total == 0 {
		total = old[0].TotalInstallments
	}

	tpl, err := s.buildTemplate(viewer, in)
	if err != nil {
		return nil, err
	}
	// Validate the new shape before destroying the old one.
	if _, err := core.ExpandSeries(tpl, start, total, groupID); err != nil {
		return nil, err
	}

	oldIDs := make([]string, len(old))
	for i, t := range old {
		oldIDs[i] = t.ID
	}
	if _, err := s.gateway.DeleteSeries(ctx, groupID); err != nil {
		return nil, fmt.Errorf("delete series: %w", err)
	}
	s.publishDelete(ctx, oldIDs)

	return s.createSeries(ctx, tpl, start, total, groupID)
}

// Delete removes a single transaction. Deleting one installment leaves the
// rest of its series untouched.
func (s *TransactionService) Delete(ctx context.Context, viewer core.Viewer, id string) error {
	if _, err := s.Get(ctx, viewer, id); err != nil {
		return err
	}
	deleted, err := s.gateway.DeleteTransaction(ctx, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if !deleted {
		return ErrNotFound
	}
	metrics.TransactionsDeleted.Inc()
	s.publishDelete(ctx, []string{id})
	return nil
}

// DeleteFutureInstallments removes every installment of a series attributed
// to the given period or later. Past installments stay.
func (s *TransactionService) DeleteFutureInstallments(ctx context.Context, viewer core.Viewer, groupID string, from core.Period) error {
	if err := from.Validate(); err != nil {
		return err
	}
	series, err := s.visibleSeries(ctx, viewer, groupID)
	if err != nil {
		return err
	}

	var toRemove []string
	for _, t := range series {
		if !t.Period.Before(from) {
			toRemove = append(toRemove, t.ID)
		}
	}

	if _, err := s.gateway.DeleteSeriesOnOrAfter(ctx, groupID, from); err != nil {
		return fmt.Errorf("delete future installments: %w", err)
	}
	metrics.TransactionsDeleted.Add(float64(len(toRemove)))
	s.publishDelete(ctx, toRemove)
	slog.InfoContext(ctx, "Deleted future installments",
		"group_id", groupID, "from_year", from.Year, "from_month", from.Month,
		"count", len(toRemove))
	return nil
}

// visibleSeries loads a group and checks the viewer can see it. Series
// membership is homogeneous, so checking the first installment suffices.
func (s *TransactionService) visibleSeries(ctx context.Context, viewer core.Viewer, groupID string) ([]core.Transaction, error) {
	if groupID == "" {
		return nil, ErrNotSeries
	}
	series, err := s.gateway.ListSeries(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("list series: %w", err)
	}
	if len(series) == 0 {
		return nil, ErrNotFound
	}
	if !core.Visible(&viewer, series[0]) {
		return nil, ErrNotFound
	}
	return series, nil
}

func (s *TransactionService) publishSync(ctx context.Context, id string) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishTransactionSync(ctx, id); err != nil {
		metrics.SyncPublishFailures.Inc()
		slog.WarnContext(ctx, "Failed to publish sync message, worker sweep will catch up",
			"transaction_id", id, "error", err)
	}
}

func (s *TransactionService) publishDelete(ctx context.Context, ids []string) {
	if s.publisher == nil || len(ids) == 0 {
		return
	}
	if err := s.publisher.PublishTransactionDelete(ctx, ids); err != nil {
		metrics.SyncPublishFailures.Inc()
		slog.WarnContext(ctx, "Failed to publish delete message",
			"count", len(ids), "error", err)
	}
}
