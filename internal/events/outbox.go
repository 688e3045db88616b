package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/wolfman30/homevisit-scheduler/pkg/logging"
)

// OutboxEntry is an event waiting for downstream delivery.
type OutboxEntry struct {
	ID        uuid.UUID
	Type      Type
	Payload   json.RawMessage
	CreatedAt time.Time
}

// Event decodes the stored payload.
func (e OutboxEntry) Event() (AppointmentEventV1, error) {
	var evt AppointmentEventV1
	if err := json.Unmarshal(e.Payload, &evt); err != nil {
		return AppointmentEventV1{}, fmt.Errorf("events: decode outbox %s: %w", e.ID, err)
	}
	return evt, nil
}

type outboxDB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// OutboxStore persists events for reliable delivery.
type OutboxStore struct {
	db outboxDB
}

// NewOutboxStore accepts a *pgxpool.Pool or anything with the same Exec and
// Query methods.
func NewOutboxStore(db outboxDB) *OutboxStore {
	if db == nil {
		panic("events: pgx pool required")
	}
	return &OutboxStore{db: db}
}

// Publish records the event; it satisfies Publisher so services can write to
// the outbox instead of the queue.
func (s *OutboxStore) Publish(ctx context.Context, evt AppointmentEventV1) error {
	_, err := s.Insert(ctx, evt)
	return err
}

func (s *OutboxStore) Insert(ctx context.Context, evt AppointmentEventV1) (uuid.UUID, error) {
	data, err := json.Marshal(evt)
	if err != nil {
		return uuid.Nil, fmt.Errorf("events: marshal payload: %w", err)
	}
	id := uuid.New()
	query := `
		INSERT INTO event_outbox (id, appointment_id, type, payload)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := s.db.Exec(ctx, query, id, evt.AppointmentID, string(evt.Type), data); err != nil {
		return uuid.Nil, fmt.Errorf("events: insert outbox: %w", err)
	}
	return id, nil
}

func (s *OutboxStore) FetchPending(ctx context.Context, limit int32) ([]OutboxEntry, error) {
	query := `
		SELECT id, type, payload, created_at
		FROM event_outbox
		WHERE delivered_at IS NULL
		ORDER BY created_at
		LIMIT $1
	`
	rows, err := s.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("events: fetch pending: %w", err)
	}
	defer rows.Close()

	var entries []OutboxEntry
	for rows.Next() {
		var entry OutboxEntry
		var typ string
		var payload []byte
		if err := rows.Scan(&entry.ID, &typ, &payload, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("events: scan outbox: %w", err)
		}
		entry.Type = Type(typ)
		entry.Payload = append([]byte(nil), payload...)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (s *OutboxStore) MarkDelivered(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE event_outbox
		SET delivered_at = now()
		WHERE id = $1 AND delivered_at IS NULL
	`
	ct, err := s.db.Exec(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("events: mark delivered: %w", err)
	}
	return ct.RowsAffected() == 1, nil
}

var _ Publisher = (*OutboxStore)(nil)

// Deliverer polls the outbox and forwards entries to a downstream publisher.
type Deliverer struct {
	store     *OutboxStore
	sink      Publisher
	logger    *logging.Logger
	batchSize int32
	interval  time.Duration
}

func NewDeliverer(store *OutboxStore, sink Publisher, logger *logging.Logger) *Deliverer {
	if logger == nil {
		logger = logging.Default()
	}
	return &Deliverer{
		store:     store,
		sink:      sink,
		logger:    logger.Component("outbox"),
		batchSize: 25,
		interval:  2 * time.Second,
	}
}

func (d *Deliverer) WithBatchSize(size int32) *Deliverer {
	if size > 0 {
		d.batchSize = size
	}
	return d
}

func (d *Deliverer) WithInterval(interval time.Duration) *Deliverer {
	if interval > 0 {
		d.interval = interval
	}
	return d
}

// Start drains the outbox every interval until ctx is cancelled.
func (d *Deliverer) Start(ctx context.Context) {
	if d.store == nil || d.sink == nil {
		return
	}
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.Drain(ctx)
		}
	}
}

// Drain delivers one batch and returns how many entries were marked delivered.
func (d *Deliverer) Drain(ctx context.Context) int {
	entries, err := d.store.FetchPending(ctx, d.batchSize)
	if err != nil {
		d.logger.Error("outbox fetch failed", "error", err)
		return 0
	}
	delivered := 0
	for _, entry := range entries {
		evt, err := entry.Event()
		if err != nil {
			// a payload that cannot decode never will; retire it so it does not
			// occupy every batch
			d.logger.Error("outbox entry unreadable, discarding", "error", err, "event_id", entry.ID, "type", entry.Type)
			if _, err := d.store.MarkDelivered(ctx, entry.ID); err != nil {
				d.logger.Error("failed to retire unreadable outbox entry", "error", err, "event_id", entry.ID)
			}
			continue
		}
		if err := d.sink.Publish(ctx, evt); err != nil {
			d.logger.Error("outbox delivery failed", "error", err, "event_id", entry.ID, "type", entry.Type)
			continue
		}
		if ok, err := d.store.MarkDelivered(ctx, entry.ID); err != nil {
			d.logger.Error("failed to mark outbox delivered", "error", err, "event_id", entry.ID)
		} else if ok {
			delivered++
			d.logger.Debug("outbox delivered", "event_id", entry.ID, "type", entry.Type)
		}
	}
	return delivered
}
