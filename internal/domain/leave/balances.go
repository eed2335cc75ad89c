package leave

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"hrerp/internal/domain/auth"
	"hrerp/internal/domain/employee"
)

// MyBalances lists the caller's ledger rows for year.
func (s *Service) MyBalances(ctx context.Context, caller auth.Identity, year int) ([]Balance, error) {
	emp, err := s.requester(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}
	return s.ledger.List(ctx, emp.ID, year)
}

// EmployeeBalances lists another employee's rows. Admins see everyone;
// others only themselves and their direct reports.
func (s *Service) EmployeeBalances(ctx context.Context, caller auth.Identity, employeeID employee.ID, year int) ([]Balance, error) {
	target, err := s.directory.FindByID(ctx, employeeID)
	if err != nil {
		if errors.Is(err, employee.ErrNotFound) {
			return nil, ErrEmployeeNotFound
		}
		return nil, err
	}
	if !caller.IsAdmin() {
		self, err := s.directory.EmployeeFor(ctx, caller.UserID)
		if err != nil && !errors.Is(err, employee.ErrNotFound) {
			return nil, err
		}
		if err != nil || (self.ID != target.ID && target.ManagerID != self.ID) {
			return nil, ErrForbidden
		}
	}
	return s.ledger.List(ctx, target.ID, year)
}

type AllocateInput struct {
	EmployeeID  employee.ID
	LeaveTypeID string
	Year        int
	Days        float64
	CarryOver   *float64
}

// Allocate adds days to a row, creating it first when needed.
func (s *Service) Allocate(ctx context.Context, in AllocateInput) (Balance, error) {
	if in.EmployeeID == "" || in.LeaveTypeID == "" {
		return Balance{}, fmt.Errorf("%w: employeeId and leaveTypeId are required", ErrValidation)
	}
	if in.CarryOver != nil && *in.CarryOver < 0 {
		return Balance{}, fmt.Errorf("%w: carryOver must not be negative", ErrValidation)
	}
	if in.Year == 0 {
		in.Year = s.now().Year()
	}
	if _, err := s.directory.FindByID(ctx, in.EmployeeID); err != nil {
		if errors.Is(err, employee.ErrNotFound) {
			return Balance{}, ErrEmployeeNotFound
		}
		return Balance{}, err
	}
	if _, err := s.types.GetType(ctx, in.LeaveTypeID); err != nil {
		return Balance{}, err
	}
	key := BalanceKey{EmployeeID: in.EmployeeID, LeaveTypeID: in.LeaveTypeID, Year: in.Year}
	return s.ledger.Allocate(ctx, key, in.Days, in.CarryOver)
}

// Onboard creates one ledger row per active leave type for a new employee,
// allocated with the type's default days.
func (s *Service) Onboard(ctx context.Context, emp employee.Employee) (int, error) {
	types, err := s.types.ListTypes(ctx, false)
	if err != nil {
		return 0, err
	}
	year := s.now().Year()
	created := 0
	for _, lt := range types {
		key := BalanceKey{EmployeeID: emp.ID, LeaveTypeID: lt.ID, Year: year}
		if _, err := s.ledger.Allocate(ctx, key, lt.DefaultDays, nil); err != nil {
			slog.Warn("leave onboarding allocation failed", "employeeId", emp.ID, "leaveTypeId", lt.ID, "err", err)
			continue
		}
		created++
	}
	return created, nil
}

type RolloverSummary struct {
	Year             int `json:"year"`
	EmployeesScanned int `json:"employeesScanned"`
	RowsToppedUp     int `json:"rowsToppedUp"`
	RowsCarried      int `json:"rowsCarried"`
	Failures         int `json:"failures"`
}

// Rollover tops every active employee's rows for year up to the type
// defaults and carries forward the previous year's unused balance. Running it
// twice for the same year changes nothing.
func (s *Service) Rollover(ctx context.Context, year int) (RolloverSummary, error) {
	if year == 0 {
		year = s.now().Year()
	}
	summary := RolloverSummary{Year: year}
	types, err := s.types.ListTypes(ctx, false)
	if err != nil {
		return summary, err
	}
	employees, err := s.directory.ListActive(ctx)
	if err != nil {
		return summary, err
	}

	for _, emp := range employees {
		summary.EmployeesScanned++
		for _, lt := range types {
			if lt.DefaultDays <= 0 {
				continue
			}
			key := BalanceKey{EmployeeID: emp.ID, LeaveTypeID: lt.ID, Year: year}
			if _, err := s.ledger.TopUp(ctx, key, lt.DefaultDays); err != nil {
				slog.Warn("leave rollover top-up failed", "employeeId", emp.ID, "leaveTypeId", lt.ID, "year", year, "err", err)
				summary.Failures++
				continue
			}
			summary.RowsToppedUp++
			if !lt.RequiresBalance {
				continue
			}
			if _, err := s.ledger.CarryForward(ctx, key); err != nil {
				slog.Warn("leave rollover carry-over failed", "employeeId", emp.ID, "leaveTypeId", lt.ID, "year", year, "err", err)
				summary.Failures++
				continue
			}
			summary.RowsCarried++
		}
	}
	return summary, nil
}

func (s *Service) ExportRows(ctx context.Context, year int) ([]BalanceExportRow, error) {
	if year == 0 {
		year = s.now().Year()
	}
	return s.ledger.store.ExportBalances(ctx, year)
}
