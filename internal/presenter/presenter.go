// Package presenter sequences the history screen: fetch the raw feed, run
// the pure reconciliation, hold the resulting rows for the current visit.
package presenter

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/mbbsolutions/com.shovibam-sub000/internal/history"
	"github.com/mbbsolutions/com.shovibam-sub000/internal/reconcile"
	"github.com/mbbsolutions/com.shovibam-sub000/internal/types"
)

// ErrStale is returned when a refresh finished after a newer refresh had
// already started; its result was discarded.
var ErrStale = errors.New("history refresh superseded by a newer request")

// Presenter drives one history screen. View state lives for a single screen
// visit: each Refresh replaces it, Reset discards it.
type Presenter struct {
	source history.Source
	logger *log.Logger
	limit  int

	mu      sync.Mutex
	gen     uint64
	grouped []types.GroupedTransaction
}

// New creates a presenter over the given history source. limit is passed to
// the backend as the raw fetch size, not the rendered row count.
func New(source history.Source, logger *log.Logger, limit int) *Presenter {
	return &Presenter{
		source: source,
		logger: logger,
		limit:  limit,
	}
}

// Refresh fetches and reconciles history for one account. When refreshes
// overlap, only the newest one may publish its rows; earlier ones finish
// with ErrStale and leave the view state alone.
func (p *Presenter) Refresh(ctx context.Context, customerID, accountNo string) ([]types.GroupedTransaction, error) {
	p.mu.Lock()
	p.gen++
	gen := p.gen
	p.mu.Unlock()

	resp, err := p.source.FetchHistory(ctx, history.Request{
		CustomerID: customerID,
		AccountNo:  accountNo,
		Limit:      p.limit,
	})
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("history fetch rejected: %s", resp.Error)
	}

	result := reconcile.ReconcileAll(resp.Transactions)
	if result.DroppedUnknown > 0 || len(result.UnmatchedFees) > 0 {
		p.logger.Debug("Reconciled history with leftovers",
			"account_no", accountNo,
			"rows", len(result.Grouped),
			"dropped_unknown", result.DroppedUnknown,
			"unmatched_fees", len(result.UnmatchedFees))
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.gen {
		return nil, ErrStale
	}
	p.grouped = result.Grouped

	return result.Grouped, nil
}

// Current returns the rows from the latest completed refresh
func (p *Presenter) Current() []types.GroupedTransaction {
	p.mu.Lock()
	defer p.mu.Unlock()

	rows := make([]types.GroupedTransaction, len(p.grouped))
	copy(rows, p.grouped)
	return rows
}

// Select returns the row at index, for opening a detail view
func (p *Presenter) Select(index int) (types.GroupedTransaction, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if index < 0 || index >= len(p.grouped) {
		return types.GroupedTransaction{}, false
	}
	return p.grouped[index], true
}

// Reset discards the view state, as on screen unmount
func (p *Presenter) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.gen++
	p.grouped = nil
}
