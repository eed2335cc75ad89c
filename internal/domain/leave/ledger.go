package leave

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"hrerp/internal/domain/employee"
)

// Ledger is the per employee, leave type and year balance book.
type Ledger struct {
	store BalanceStore
}

func NewLedger(store BalanceStore) *Ledger {
	return &Ledger{store: store}
}

func (l *Ledger) Get(ctx context.Context, key BalanceKey) (Balance, error) {
	return l.store.GetBalance(ctx, key)
}

// GetOrInit returns the row, creating it with zeroed counters when absent.
func (l *Ledger) GetOrInit(ctx context.Context, key BalanceKey) (Balance, error) {
	return l.store.InitBalance(ctx, key)
}

// Adjust applies delta atomically. The row must exist.
func (l *Ledger) Adjust(ctx context.Context, key BalanceKey, delta Delta) (Balance, error) {
	if delta.IsZero() {
		return l.store.GetBalance(ctx, key)
	}
	return l.store.AdjustBalance(ctx, key, delta)
}

// applyDecided adjusts a row after a transition has already been committed.
// Failures are logged and swallowed; the transition stands.
func (l *Ledger) applyDecided(ctx context.Context, requestID string, key BalanceKey, delta Delta) {
	if delta.IsZero() {
		return
	}
	if _, err := l.store.AdjustBalance(ctx, key, delta); err != nil {
		slog.Warn("leave balance adjustment failed",
			"requestId", requestID,
			"employeeId", key.EmployeeID,
			"leaveTypeId", key.LeaveTypeID,
			"year", key.Year,
			"err", err,
		)
	}
}

// Reserve books days as pending if the row's remaining covers them.
func (l *Ledger) Reserve(ctx context.Context, key BalanceKey, days float64) (Balance, error) {
	return l.store.ReserveBalance(ctx, key, days)
}

func (l *Ledger) List(ctx context.Context, employeeID employee.ID, year int) ([]Balance, error) {
	return l.store.ListBalances(ctx, employeeID, year)
}

// Allocate initialises the row if needed, adds days to allocated and
// optionally overwrites carryOver.
func (l *Ledger) Allocate(ctx context.Context, key BalanceKey, days float64, carryOver *float64) (Balance, error) {
	bal, err := l.store.InitBalance(ctx, key)
	if err != nil {
		return Balance{}, err
	}
	if days != 0 {
		if bal, err = l.store.AdjustBalance(ctx, key, Delta{Allocated: days}); err != nil {
			return Balance{}, err
		}
	}
	if carryOver != nil {
		if bal, err = l.store.SetCarryOver(ctx, key, *carryOver); err != nil {
			return Balance{}, err
		}
	}
	return bal, nil
}

// TopUp initialises the row if needed and raises allocated until the year's
// grant, consumed days included, reaches target.
func (l *Ledger) TopUp(ctx context.Context, key BalanceKey, target float64) (Balance, error) {
	if _, err := l.store.InitBalance(ctx, key); err != nil {
		return Balance{}, err
	}
	return l.store.TopUpAllocation(ctx, key, target)
}

// CarryForward sets carryOver on key from the positive remaining of the prior
// year's row. A missing prior row carries nothing.
func (l *Ledger) CarryForward(ctx context.Context, key BalanceKey) (Balance, error) {
	prevKey := key
	prevKey.Year--
	carry := 0.0
	prev, err := l.store.GetBalance(ctx, prevKey)
	switch {
	case err == nil:
		if r := prev.Remaining(); r > 0 {
			carry = r
		}
	case errors.Is(err, ErrNoBalanceFound):
	default:
		return Balance{}, err
	}
	return l.store.SetCarryOver(ctx, key, carry)
}

func shortfall(days float64, bal Balance) error {
	return fmt.Errorf("%w: requested %g, remaining %g", ErrInsufficientBalance, days, bal.Remaining())
}
