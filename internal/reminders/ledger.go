package reminders

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/homevisit-scheduler/internal/appointments"
)

// Ledger records which appointments have been reminded. Claim reports
// false when another pass already took the appointment.
type Ledger interface {
	Claim(ctx context.Context, a appointments.Appointment, at time.Time) (bool, error)
	Release(ctx context.Context, a appointments.Appointment) error
}

// StoreLedger keeps the guard on the appointment row itself.
type StoreLedger struct {
	repo appointments.Repository
}

func NewStoreLedger(repo appointments.Repository) *StoreLedger {
	return &StoreLedger{repo: repo}
}

func (l *StoreLedger) Claim(ctx context.Context, a appointments.Appointment, at time.Time) (bool, error) {
	return l.repo.MarkReminded(ctx, a.ID, at)
}

func (l *StoreLedger) Release(ctx context.Context, a appointments.Appointment) error {
	return l.repo.ClearReminded(ctx, a.ID)
}

// DefaultLedgerTTL keeps Redis claims well past the reminder window.
const DefaultLedgerTTL = 48 * time.Hour

const redisKeyPrefix = "homevisit:reminder:"

// RedisLedger claims with SETNX. The key includes the visit timestamp so
// a rescheduled appointment is reminded again.
type RedisLedger struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisLedger(client *redis.Client, ttl time.Duration) *RedisLedger {
	if client == nil {
		panic("reminders: redis client required")
	}
	if ttl <= 0 {
		ttl = DefaultLedgerTTL
	}
	return &RedisLedger{client: client, ttl: ttl}
}

func redisKey(a appointments.Appointment) string {
	return fmt.Sprintf("%s%d:%d", redisKeyPrefix, a.ID, a.ScheduledAt.Unix())
}

func (l *RedisLedger) Claim(ctx context.Context, a appointments.Appointment, at time.Time) (bool, error) {
	ok, err := l.client.SetNX(ctx, redisKey(a), at.UTC().Format(time.RFC3339), l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("reminders: redis claim: %w", err)
	}
	return ok, nil
}

func (l *RedisLedger) Release(ctx context.Context, a appointments.Appointment) error {
	if err := l.client.Del(ctx, redisKey(a)).Err(); err != nil {
		return fmt.Errorf("reminders: redis release: %w", err)
	}
	return nil
}

var (
	_ Ledger = (*StoreLedger)(nil)
	_ Ledger = (*RedisLedger)(nil)
)
