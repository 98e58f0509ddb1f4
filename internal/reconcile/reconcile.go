// Package reconcile groups a flat account-history feed into dashboard rows.
//
// The backend returns one flat list mixing main transactions with the fee
// records charged for them. Fees are not linked by id: a fee belongs to the
// transaction that shares its reference, timestamp and (within a small
// tolerance) amount. This package owns that matching, the duplicate
// suppression around it, and the newest-first capped ordering the dashboard
// shows.
package reconcile

import (
	"github.com/shopspring/decimal"
	"golang.org/x/exp/slices"

	"github.com/mbbsolutions/com.shovibam-sub000/internal/types"
)

// MaxGrouped is the number of history rows kept after sorting
const MaxGrouped = 10

// feeAmountTolerance is the strict upper bound on the amount difference
// between a fee and its parent transaction. A difference of exactly 0.01
// does not match.
var feeAmountTolerance = decimal.NewFromFloat(0.01)

// Result is the full output of a reconciliation pass. Grouped is the list
// the dashboard renders; the remaining fields are diagnostics only and never
// change what is displayed.
type Result struct {
	Grouped []types.GroupedTransaction

	// UnmatchedFees are fee records that matched no main transaction
	UnmatchedFees []types.RawRecord

	// DroppedUnknown counts records whose type the client does not recognize
	DroppedUnknown int
}

// Reconcile groups raw history records into at most MaxGrouped transactions,
// newest first, each carrying its matched fees. It is a pure function: a nil
// or empty input yields an empty list, and malformed fields never cause an
// error (missing amounts count as zero, unparseable dates as epoch zero).
func Reconcile(records []types.RawRecord) []types.GroupedTransaction {
	return ReconcileAll(records).Grouped
}

// ReconcileAll is Reconcile plus diagnostics about dropped and unmatched
// records, for callers that want to log what the dashboard will not show.
func ReconcileAll(records []types.RawRecord) Result {
	grouped := make([]types.GroupedTransaction, 0, len(records))
	seen := make(map[string]bool, len(records))
	var fees []types.RawRecord
	dropped := 0

	// Pass 1: classify and collapse duplicate main transactions. Grouping
	// order is first appearance in the feed, which also fixes the order
	// fees probe candidates in below.
	for _, r := range records {
		switch r.Kind() {
		case types.KindTransaction:
			key := r.GroupKey()
			if seen[key] {
				continue
			}
			seen[key] = true

			id := r.ID
			if id == "" {
				id = key
			}
			grouped = append(grouped, types.GroupedTransaction{
				ID:             id,
				Record:         r,
				AssociatedFees: []types.RawRecord{},
			})
		case types.KindFee:
			fees = append(fees, r)
		default:
			dropped++
		}
	}

	// Pass 2: attach each fee to the first transaction it matches. A fee
	// belongs to at most one transaction even when several would match.
	var unmatched []types.RawRecord
	for _, fee := range fees {
		if !attach(grouped, fee) {
			unmatched = append(unmatched, fee)
		}
	}

	// Newest first; a stable sort keeps feed order for equal timestamps.
	// Truncation happens after sorting so the cap keeps the most recent
	// rows, not the first ten scanned.
	slices.SortStableFunc(grouped, func(a, b types.GroupedTransaction) int {
		am := ParseInstantMillis(a.Record.TransactionDate)
		bm := ParseInstantMillis(b.Record.TransactionDate)
		switch {
		case bm < am:
			return -1
		case bm > am:
			return 1
		default:
			return 0
		}
	})
	if len(grouped) > MaxGrouped {
		grouped = grouped[:MaxGrouped]
	}

	return Result{
		Grouped:        grouped,
		UnmatchedFees:  unmatched,
		DroppedUnknown: dropped,
	}
}

// attach adds fee to the first transaction satisfying the match predicate.
// It reports whether any transaction claimed the fee; a fee suppressed as an
// exact duplicate of one already attached still counts as claimed.
func attach(grouped []types.GroupedTransaction, fee types.RawRecord) bool {
	feeMillis := ParseInstantMillis(fee.TransactionDate)
	feeAmount := ParseAmount(fee.Amount)

	for i := range grouped {
		tx := grouped[i].Record

		if tx.Reference != fee.Reference {
			continue
		}
		if ParseInstantMillis(tx.TransactionDate) != feeMillis {
			continue
		}
		if ParseAmount(tx.Amount).Sub(feeAmount).Abs().GreaterThanOrEqual(feeAmountTolerance) {
			continue
		}

		if !containsFee(grouped[i].AssociatedFees, fee) {
			grouped[i].AssociatedFees = append(grouped[i].AssociatedFees, fee)
		}
		return true
	}

	return false
}

// containsFee checks for an exact duplicate on the raw reference, date and
// amount fields. Fees differing in any of the three are both kept.
func containsFee(fees []types.RawRecord, fee types.RawRecord) bool {
	for _, f := range fees {
		if f.Reference == fee.Reference &&
			f.TransactionDate == fee.TransactionDate &&
			f.Amount == fee.Amount {
			return true
		}
	}
	return false
}
