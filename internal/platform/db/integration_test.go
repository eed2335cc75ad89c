package db

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hrerp/internal/domain/employee"
	"hrerp/internal/domain/leave"
	"hrerp/internal/platform/config"
)

func integrationPool(t *testing.T) *Pool {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := Connect(ctx, config.Config{DatabaseURL: url})
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, Migrate(ctx, pool, "../../../migrations"))
	require.NoError(t, Seed(ctx, pool, config.Config{}))
	return pool
}

func TestSeededTypesAndConcurrentLedgerAdjust(t *testing.T) {
	pool := integrationPool(t)
	ctx := context.Background()
	store := leave.NewStore(pool)

	annual, err := store.GetTypeByName(ctx, "annual")
	require.NoError(t, err)
	assert.True(t, annual.RequiresBalance)
	assert.Equal(t, 20.0, annual.DefaultDays)

	emp, err := employee.Register(ctx, employee.NewStore(pool), employee.CreateInput{
		Email:    "ledger-" + uuid.NewString()[:8] + "@example.com",
		Password: "integration-pass",
		Name:     "Ledger Tester",
	})
	require.NoError(t, err)

	key := leave.BalanceKey{EmployeeID: emp.ID, LeaveTypeID: annual.ID, Year: 2031}
	_, err = store.InitBalance(ctx, key)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.AdjustBalance(ctx, key, leave.Delta{Pending: 1})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	bal, err := store.GetBalance(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 10.0, bal.Pending)

	again, err := store.InitBalance(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 10.0, again.Pending)
}

func TestConcurrentReserveNeverOverdraws(t *testing.T) {
	pool := integrationPool(t)
	ctx := context.Background()
	store := leave.NewStore(pool)

	annual, err := store.GetTypeByName(ctx, "annual")
	require.NoError(t, err)
	emp, err := employee.Register(ctx, employee.NewStore(pool), employee.CreateInput{
		Email:    "reserve-" + uuid.NewString()[:8] + "@example.com",
		Password: "integration-pass",
		Name:     "Reserve Tester",
	})
	require.NoError(t, err)

	key := leave.BalanceKey{EmployeeID: emp.ID, LeaveTypeID: annual.ID, Year: 2032}
	_, err = leave.NewLedger(store).Allocate(ctx, key, 4, nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	var granted atomic.Int32
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.ReserveBalance(ctx, key, 1)
			if err == nil {
				granted.Add(1)
				return
			}
			assert.ErrorIs(t, err, leave.ErrInsufficientBalance)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(4), granted.Load())
	bal, err := store.GetBalance(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 4.0, bal.Pending)
	assert.Zero(t, bal.Remaining())

	key.Year = 2040
	_, err = store.ReserveBalance(ctx, key, 1)
	assert.ErrorIs(t, err, leave.ErrNoBalanceFound)
}
