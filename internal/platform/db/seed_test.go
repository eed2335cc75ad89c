package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hrerp/internal/domain/auth"
	"hrerp/internal/domain/employee"
	"hrerp/internal/domain/leave/leavetest"
)

type creatorFunc func(context.Context, employee.NewEmployee) (employee.Employee, error)

func (f creatorFunc) Create(ctx context.Context, in employee.NewEmployee) (employee.Employee, error) {
	return f(ctx, in)
}

func TestEnsureAdminUser(t *testing.T) {
	var got employee.NewEmployee
	store := creatorFunc(func(_ context.Context, in employee.NewEmployee) (employee.Employee, error) {
		got = in
		return employee.Employee{ID: "e1"}, nil
	})
	require.NoError(t, ensureAdminUser(context.Background(), store, "admin@example.com", "password123"))
	assert.Equal(t, auth.RoleAdmin, got.Role)
	assert.NotEqual(t, "password123", got.PasswordHash)
	assert.NoError(t, auth.CheckPassword(got.PasswordHash, "password123"))

	duplicate := creatorFunc(func(context.Context, employee.NewEmployee) (employee.Employee, error) {
		return employee.Employee{}, employee.ErrDuplicateEmail
	})
	assert.NoError(t, ensureAdminUser(context.Background(), duplicate, "admin@example.com", "password123"))
}

func TestEnsureLeaveTypesOnlyOnEmptyRegistry(t *testing.T) {
	ctx := context.Background()
	store := leavetest.NewStore()
	require.NoError(t, ensureLeaveTypes(ctx, store))
	types, err := store.ListTypes(ctx, true)
	require.NoError(t, err)
	assert.Len(t, types, 2)

	require.NoError(t, ensureLeaveTypes(ctx, store))
	types, err = store.ListTypes(ctx, true)
	require.NoError(t, err)
	assert.Len(t, types, 2)
	sick, err := store.GetTypeByName(ctx, "sick")
	require.NoError(t, err)
	assert.False(t, sick.RequiresDates)
	assert.True(t, sick.IsOpenEndedAllowed)
}
