package leave

import (
	"context"

	"hrerp/internal/domain/auth"
	"hrerp/internal/domain/employee"
)

type TypeStore interface {
	ListTypes(ctx context.Context, includeInactive bool) ([]LeaveType, error)
	GetType(ctx context.Context, id string) (LeaveType, error)
	GetTypeByName(ctx context.Context, name string) (LeaveType, error)
	CreateType(ctx context.Context, lt LeaveType) (LeaveType, error)
	UpdateType(ctx context.Context, lt LeaveType) (LeaveType, error)
	DeactivateType(ctx context.Context, id string) error
}

// BalanceStore persists ledger rows. AdjustBalance, ReserveBalance and
// TopUpAllocation must be single atomic statements; callers never
// read-modify-write a row.
type BalanceStore interface {
	GetBalance(ctx context.Context, key BalanceKey) (Balance, error)
	InitBalance(ctx context.Context, key BalanceKey) (Balance, error)
	AdjustBalance(ctx context.Context, key BalanceKey, delta Delta) (Balance, error)
	// ReserveBalance adds days to pending if remaining covers them, failing
	// with ErrNoBalanceFound or ErrInsufficientBalance otherwise.
	ReserveBalance(ctx context.Context, key BalanceKey, days float64) (Balance, error)
	// TopUpAllocation raises allocated so that allocated + used reaches target.
	TopUpAllocation(ctx context.Context, key BalanceKey, target float64) (Balance, error)
	SetCarryOver(ctx context.Context, key BalanceKey, carryOver float64) (Balance, error)
	ListBalances(ctx context.Context, employeeID employee.ID, year int) ([]Balance, error)
	ExportBalances(ctx context.Context, year int) ([]BalanceExportRow, error)
}

type RequestStore interface {
	CreateRequest(ctx context.Context, req Request) (Request, error)
	GetRequest(ctx context.Context, id string) (Request, error)
	// UpdateRequest writes the mutable fields only if the stored status still
	// equals expected, returning ErrRequestNotActionable otherwise.
	UpdateRequest(ctx context.Context, req Request, expected Status) (Request, error)
	// DeleteRequest removes the request only if its status still equals expected.
	DeleteRequest(ctx context.Context, id string, expected Status) error
	ActiveDatedRequests(ctx context.Context, userID auth.UserID) ([]Request, error)
	ListRequests(ctx context.Context, filter RequestFilter) (RequestListResult, error)
}

// Store bundles the three persistence concerns of the leave workflow.
type Store interface {
	TypeStore
	BalanceStore
	RequestStore
}

// UserLookup resolves login identities for supervisor checks and fan-out.
type UserLookup interface {
	GetUser(ctx context.Context, userID auth.UserID) (auth.User, error)
	UserIDsByRole(ctx context.Context, role string) ([]auth.UserID, error)
}

// Notifier receives fire-and-forget side effects. Implementations must not
// block the caller or report failures back to it.
type Notifier interface {
	Notify(recipient auth.UserID, kind string, payload map[string]any)
	SendStatusChangeEmail(toEmail string, fields map[string]string)
}

type noopNotifier struct{}

func (noopNotifier) Notify(auth.UserID, string, map[string]any) {}
func (noopNotifier) SendStatusChangeEmail(string, map[string]string) {}
