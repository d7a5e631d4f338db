package inventory

import (
	"context"
	"fmt"

	"github.com/safar/go-shop-orders/internal/apperr"
)

// Decrementer applies one conditional decrement: subtract t.Quantity only
// where the counter still holds at least that much. ok is false when the
// condition matched no row.
type Decrementer interface {
	DecrementStock(ctx context.Context, t Target) (remaining int, ok bool, err error)
}

type Restocker interface {
	RestockStock(ctx context.Context, t Target) error
}

type StockLevel struct {
	Target    Target
	Remaining int
}

type CommitResult struct {
	Submitted int
	Matched   int
	Levels    []StockLevel
	Lost      []Target
}

// Low returns the committed counters at or below threshold. A threshold of
// zero or less disables the report.
func (r CommitResult) Low(threshold int) []StockLevel {
	if threshold <= 0 {
		return nil
	}
	var low []StockLevel
	for _, l := range r.Levels {
		if l.Remaining <= threshold {
			low = append(low, l)
		}
	}
	return low
}

// Commit submits every target as an independent conditional write and then
// compares matched against submitted. A shortfall means another checkout
// took the stock after Resolve ran; the caller is expected to abort the
// surrounding transaction.
func Commit(ctx context.Context, d Decrementer, targets []Target) (CommitResult, error) {
	res := CommitResult{Submitted: len(targets)}

	for _, t := range targets {
		remaining, ok, err := d.DecrementStock(ctx, t)
		if err != nil {
			return res, fmt.Errorf("decrement %s: %w", t, err)
		}
		if !ok {
			res.Lost = append(res.Lost, t)
			continue
		}
		res.Matched++
		res.Levels = append(res.Levels, StockLevel{Target: t, Remaining: remaining})
	}

	if res.Matched != res.Submitted {
		return res, apperr.Newf(apperr.KindIntegrity, apperr.CodePartialOversell,
			"Stock changed while placing the order: %d of %d items are no longer available", len(res.Lost), res.Submitted)
	}
	return res, nil
}

// Restock returns the quantities of targets to their counters.
func Restock(ctx context.Context, r Restocker, targets []Target) error {
	for _, t := range targets {
		if err := r.RestockStock(ctx, t); err != nil {
			return fmt.Errorf("restock %s: %w", t, err)
		}
	}
	return nil
}
