package reminders

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/homevisit-scheduler/internal/appointments"
)

func TestStoreLedgerClaimOnce(t *testing.T) {
	f := newFixture(t, at(8, 0))
	a := f.seed(t, 1, 10, at(9, 0), appointments.StatusPending)
	ledger := NewStoreLedger(f.repo)
	ctx := context.Background()

	ok, err := ledger.Claim(ctx, a, f.now)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = ledger.Claim(ctx, a, f.now)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, ledger.Release(ctx, a))
	ok, err = ledger.Claim(ctx, a, f.now)
	require.NoError(t, err)
	assert.True(t, ok)
}

func newRedisLedger(t *testing.T) (*RedisLedger, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisLedger(client, time.Hour), mr
}

func TestRedisLedgerClaimOnce(t *testing.T) {
	ledger, mr := newRedisLedger(t)
	ctx := context.Background()
	a := appointments.Appointment{ID: 7, ScheduledAt: at(9, 0)}

	ok, err := ledger.Claim(ctx, a, at(8, 0))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, time.Hour, mr.TTL(redisKey(a)))

	ok, err = ledger.Claim(ctx, a, at(8, 1))
	require.NoError(t, err)
	assert.False(t, ok)

	moved := a
	moved.ScheduledAt = at(10, 0)
	ok, err = ledger.Claim(ctx, moved, at(8, 1))
	require.NoError(t, err)
	assert.True(t, ok, "rescheduled visit gets its own claim")

	require.NoError(t, ledger.Release(ctx, a))
	assert.False(t, mr.Exists(redisKey(a)))
}

func TestRedisLedgerExpiry(t *testing.T) {
	ledger, mr := newRedisLedger(t)
	ctx := context.Background()
	a := appointments.Appointment{ID: 8, ScheduledAt: at(9, 0)}

	_, err := ledger.Claim(ctx, a, at(8, 0))
	require.NoError(t, err)
	mr.FastForward(2 * time.Hour)

	ok, err := ledger.Claim(ctx, a, at(8, 0))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLedgerUnavailable(t *testing.T) {
	ledger, mr := newRedisLedger(t)
	mr.Close()

	_, err := ledger.Claim(context.Background(), appointments.Appointment{ID: 1}, at(8, 0))
	assert.Error(t, err)
}
