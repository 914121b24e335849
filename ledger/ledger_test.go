package ledger

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/mstgnz/storepay/infra/conn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	db, err := conn.Open(ctx, conn.DriverSQLite, filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate(ctx))
	return NewStore(db)
}

func createOrder(t *testing.T, s *Store, tenantID int64) *Order {
	t.Helper()
	o, err := s.CreateOrder(context.Background(), NewOrder{
		TenantID:  tenantID,
		ProductID: 9,
		Provider:  "robokassa",
		Amount:    decimal.RequireFromString("100.00"),
	})
	require.NoError(t, err)
	return o
}

func TestDecide(t *testing.T) {
	tests := []struct {
		current Status
		target  Status
		want    Decision
	}{
		{StatusPending, StatusPaid, Apply},
		{StatusPending, StatusFailed, Apply},
		{StatusPaid, StatusPaid, NoOp},
		{StatusFailed, StatusFailed, NoOp},
		{StatusPaid, StatusFailed, Conflict},
		{StatusFailed, StatusPaid, Conflict},
	}

	for _, tt := range tests {
		t.Run(string(tt.current)+"_to_"+string(tt.target), func(t *testing.T) {
			assert.Equal(t, tt.want, Decide(tt.current, tt.target))
		})
	}
}

func TestStatus(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	assert.True(t, StatusPaid.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.True(t, StatusPending.Valid())
	assert.False(t, Status("refunded").Valid())
}

func TestStore_CreateOrder(t *testing.T) {
	s := newTestStore(t)

	first := createOrder(t, s, 1)
	second := createOrder(t, s, 1)

	assert.Equal(t, StatusPending, first.Status)
	assert.Equal(t, int64(1), first.TenantID)
	assert.Equal(t, "robokassa", first.Provider)
	assert.True(t, decimal.RequireFromString("100").Equal(first.Amount))
	assert.True(t, first.CreatedAt.Equal(first.UpdatedAt))
	assert.Greater(t, second.ID, first.ID)
	assert.Empty(t, first.BuyerRef)

	withBuyer, err := s.CreateOrder(context.Background(), NewOrder{
		TenantID: 1, ProductID: 9, BuyerRef: "5550123", Amount: decimal.RequireFromString("1.00"),
	})
	require.NoError(t, err)
	assert.Equal(t, "5550123", withBuyer.BuyerRef)

	_, err = s.CreateOrder(context.Background(), NewOrder{TenantID: 1, ProductID: 1, Amount: decimal.NewFromInt(-1)})
	assert.Error(t, err)
}

func TestStore_Get_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Get(context.Background(), 404)
	assert.True(t, errors.Is(err, ErrOrderNotFound))
}

func TestStore_GetForTenant(t *testing.T) {
	s := newTestStore(t)
	o := createOrder(t, s, 1)

	got, err := s.GetForTenant(context.Background(), 1, o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.ID, got.ID)

	_, err = s.GetForTenant(context.Background(), 2, o.ID)
	assert.True(t, errors.Is(err, ErrOrderNotFound))
}

func TestStore_Settle_Table(t *testing.T) {
	tests := []struct {
		name       string
		first      Status
		second     Status
		wantStatus Status
		wantApply  bool
		wantConf   bool
	}{
		{"paid_then_paid", StatusPaid, StatusPaid, StatusPaid, false, false},
		{"failed_then_failed", StatusFailed, StatusFailed, StatusFailed, false, false},
		{"paid_then_failed", StatusPaid, StatusFailed, StatusPaid, false, true},
		{"failed_then_paid", StatusFailed, StatusPaid, StatusFailed, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t)
			ctx := context.Background()
			o := createOrder(t, s, 1)

			first, err := s.Settle(ctx, o.ID, tt.first)
			require.NoError(t, err)
			assert.True(t, first.Applied)
			assert.Equal(t, tt.first, first.Order.Status)

			second, err := s.Settle(ctx, o.ID, tt.second)
			require.NoError(t, err)
			assert.Equal(t, tt.wantApply, second.Applied)
			assert.Equal(t, tt.wantConf, second.Conflict)
			assert.Equal(t, tt.wantStatus, second.Order.Status)
			assert.True(t, o.CreatedAt.Equal(second.Order.CreatedAt), "created_at must not change")
		})
	}
}

func TestStore_Settle_Errors(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Settle(ctx, 999, StatusPaid)
	assert.True(t, errors.Is(err, ErrOrderNotFound))

	o := createOrder(t, s, 1)
	_, err = s.Settle(ctx, o.ID, StatusPending)
	assert.True(t, errors.Is(err, ErrInvalidTransition))
}

func TestStore_Settle_UpdatesTimestamp(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s.now = func() time.Time { return base }
	o := createOrder(t, s, 1)

	s.now = func() time.Time { return base.Add(time.Minute) }
	res, err := s.Settle(context.Background(), o.ID, StatusPaid)
	require.NoError(t, err)

	assert.True(t, res.Order.CreatedAt.Equal(base))
	assert.True(t, res.Order.UpdatedAt.Equal(base.Add(time.Minute)))
}

func TestStore_Settle_ConcurrentDuplicates(t *testing.T) {
	s := newTestStore(t)
	o := createOrder(t, s, 1)

	const workers = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		applied int
		noops   int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := s.Settle(context.Background(), o.ID, StatusPaid)
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if res.Applied {
				applied++
			} else {
				noops++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, applied)
	assert.Equal(t, workers-1, noops)
}

func TestStore_ListByTenant(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		createOrder(t, s, 1)
	}
	createOrder(t, s, 2)

	all, err := s.ListByTenant(ctx, 1, 0, 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)

	page, err := s.ListByTenant(ctx, 1, 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, all[2].ID, page[0].ID)
	assert.Equal(t, all[3].ID, page[1].ID)

	none, err := s.ListByTenant(ctx, 3, 0, 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestStore_AttachProvider(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	o := createOrder(t, s, 1)

	require.NoError(t, s.AttachProvider(ctx, o.ID, "coinpayments"))
	got, err := s.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, "coinpayments", got.Provider)

	_, err = s.Settle(ctx, o.ID, StatusPaid)
	require.NoError(t, err)
	require.NoError(t, s.AttachProvider(ctx, o.ID, "robokassa"))
	got, err = s.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, "coinpayments", got.Provider, "settled orders keep their provider")
}

func TestStore_SweepPending(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	setup := func(t *testing.T) (*Store, *Order, *Order, *Order) {
		s := newTestStore(t)
		s.now = func() time.Time { return base.Add(-48 * time.Hour) }
		stale := createOrder(t, s, 1)
		settled := createOrder(t, s, 1)
		_, err := s.Settle(ctx, settled.ID, StatusPaid)
		require.NoError(t, err)
		s.now = func() time.Time { return base.Add(-time.Hour) }
		fresh := createOrder(t, s, 1)
		s.now = func() time.Time { return base }
		return s, stale, settled, fresh
	}

	t.Run("keep", func(t *testing.T) {
		s, stale, _, _ := setup(t)
		report, err := s.SweepPending(ctx, 24*time.Hour, SweepKeep)
		require.NoError(t, err)
		assert.Equal(t, 1, report.Stale)
		assert.Empty(t, report.Failed)

		got, err := s.Get(ctx, stale.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusPending, got.Status)
	})

	t.Run("fail", func(t *testing.T) {
		s, stale, settled, fresh := setup(t)
		report, err := s.SweepPending(ctx, 24*time.Hour, SweepFail)
		require.NoError(t, err)
		assert.Equal(t, 1, report.Stale)
		assert.Equal(t, []int64{stale.ID}, report.Failed)

		for id, want := range map[int64]Status{stale.ID: StatusFailed, settled.ID: StatusPaid, fresh.ID: StatusPending} {
			got, err := s.Get(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, want, got.Status)
		}
	})
}

func TestParseSweepPolicy(t *testing.T) {
	assert.Equal(t, SweepFail, ParseSweepPolicy(" FAIL "))
	assert.Equal(t, SweepKeep, ParseSweepPolicy("keep"))
	assert.Equal(t, SweepKeep, ParseSweepPolicy("whatever"))
	assert.Equal(t, SweepKeep, ParseSweepPolicy(""))
}
