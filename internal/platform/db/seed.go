package db

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"hrerp/internal/domain/auth"
	"hrerp/internal/domain/employee"
	"hrerp/internal/domain/leave"
	"hrerp/internal/platform/config"
)

// Seed makes a fresh database usable: one admin account with an employee
// profile and the two stock leave types. Existing rows are left alone.
func Seed(ctx context.Context, pool *pgxpool.Pool, cfg config.Config) error {
	if err := ensureLeaveTypes(ctx, leave.NewStore(pool)); err != nil {
		return err
	}
	if strings.TrimSpace(cfg.SeedAdminEmail) == "" || cfg.SeedAdminPassword == "" {
		slog.Info("seed admin skipped", "reason", "SEED_ADMIN_EMAIL or SEED_ADMIN_PASSWORD empty")
		return nil
	}
	return ensureAdminUser(ctx, employee.NewStore(pool), cfg.SeedAdminEmail, cfg.SeedAdminPassword)
}

func ensureAdminUser(ctx context.Context, store employee.Creator, email, password string) error {
	emp, err := employee.Register(ctx, store, employee.CreateInput{
		Email:    email,
		Password: password,
		Role:     auth.RoleAdmin,
		Name:     "Administrator",
	})
	if errors.Is(err, employee.ErrDuplicateEmail) {
		return nil
	}
	if err != nil {
		return err
	}
	slog.Info("seed admin created", "employeeId", emp.ID)
	return nil
}

type leaveTypeSeeder interface {
	ListTypes(ctx context.Context, includeInactive bool) ([]leave.LeaveType, error)
	CreateType(ctx context.Context, lt leave.LeaveType) (leave.LeaveType, error)
}

func defaultLeaveTypes() []leave.LeaveType {
	retro := 30
	return []leave.LeaveType{
		{
			Name:                    "Annual",
			DefaultDays:             20,
			RequiresBalance:         true,
			RequiresDates:           true,
			AllowFutureApplications: true,
			RequiresApproval:        true,
			IsActive:                true,
		},
		{
			Name:               "Sick",
			RequiresDates:      false,
			IsOpenEndedAllowed: true,
			MaxRetroactiveDays: &retro,
			RequiresApproval:   true,
			IsActive:           true,
		},
	}
}

func ensureLeaveTypes(ctx context.Context, store leaveTypeSeeder) error {
	existing, err := store.ListTypes(ctx, true)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}
	for _, lt := range defaultLeaveTypes() {
		if _, err := store.CreateType(ctx, lt); err != nil && !errors.Is(err, leave.ErrDuplicateLeaveType) {
			return err
		}
	}
	return nil
}
