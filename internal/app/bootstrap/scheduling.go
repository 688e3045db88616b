package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/homevisit-scheduler/internal/appointments"
	appconfig "github.com/wolfman30/homevisit-scheduler/internal/config"
	"github.com/wolfman30/homevisit-scheduler/internal/events"
	"github.com/wolfman30/homevisit-scheduler/internal/identity"
	"github.com/wolfman30/homevisit-scheduler/internal/notify"
	"github.com/wolfman30/homevisit-scheduler/internal/reminders"
	"github.com/wolfman30/homevisit-scheduler/pkg/logging"
)

// Stores bundles the persistence layer.
type Stores struct {
	Appointments appointments.Repository
	Identities   identity.Store
	// Ping checks the backing database; nil for memory stores.
	Ping func(ctx context.Context) error
	// Pool is nil for memory stores.
	Pool  *pgxpool.Pool
	Close func()
}

// BuildStores connects Postgres, or returns empty memory stores when
// USE_MEMORY_STORE is set.
func BuildStores(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*Stores, error) {
	if cfg.UseMemoryStore {
		logger.Warn("using in-memory stores; data is lost on restart")
		return &Stores{
			Appointments: appointments.NewMemoryRepository(),
			Identities:   identity.NewMemoryStore(),
			Close:        func() {},
		}, nil
	}

	pool, err := ConnectPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	db, err := OpenIdentityDB(ctx, cfg.DatabaseURL)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return &Stores{
		Appointments: appointments.NewPostgresRepository(pool),
		Identities:   identity.NewPostgresStore(db),
		Pool:         pool,
		Ping: func(ctx context.Context) error {
			return errors.Join(pool.Ping(ctx), db.PingContext(ctx))
		},
		Close: func() {
			pool.Close()
			_ = db.Close()
		},
	}, nil
}

// BuildLedger selects the reminder guard named by REMINDER_LEDGER.
func BuildLedger(cfg *appconfig.Config, repo appointments.Repository, redisClient *redis.Client) (reminders.Ledger, error) {
	switch cfg.ReminderLedger {
	case appconfig.LedgerRedis:
		if redisClient == nil {
			return nil, errors.New("bootstrap: redis ledger requested but redis is unavailable")
		}
		return reminders.NewRedisLedger(redisClient, reminders.DefaultLedgerTTL), nil
	case appconfig.LedgerStore, "":
		return reminders.NewStoreLedger(repo), nil
	default:
		return nil, fmt.Errorf("bootstrap: unknown reminder ledger %q", cfg.ReminderLedger)
	}
}

// BuildPublisher fans events out to SQS, when a queue is configured, and
// to the extra publishers (the websocket hub). With a Postgres pool the SQS
// leg goes through the event outbox and the returned Deliverer must be
// started; otherwise the Deliverer is nil.
func BuildPublisher(cfg *appconfig.Config, awsCfg *aws.Config, pool *pgxpool.Pool, logger *logging.Logger, extra ...events.Publisher) (events.Publisher, *events.Deliverer) {
	fanout := events.Fanout{}
	var deliverer *events.Deliverer
	if cfg.EventsQueueURL != "" && awsCfg != nil {
		queue := events.NewSQSPublisher(sqs.NewFromConfig(*awsCfg), cfg.EventsQueueURL)
		if pool != nil {
			outbox := events.NewOutboxStore(pool)
			deliverer = events.NewDeliverer(outbox, queue, logger)
			fanout = append(fanout, outbox)
		} else {
			fanout = append(fanout, queue)
		}
		logger.Info("publishing appointment events to sqs", "queue_url", cfg.EventsQueueURL, "outbox", pool != nil)
	}
	fanout = append(fanout, extra...)
	return fanout, deliverer
}

// BuildEmailSender maps the EMAIL_* settings onto the notify factory.
func BuildEmailSender(cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) (notify.EmailSender, error) {
	return notify.NewEmailSender(notify.Config{
		Provider:  cfg.EmailProvider,
		FromEmail: cfg.MailFrom,
		FromName:  cfg.MailFromName,
		SMTP: notify.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPass,
		},
		SendGridAPIKey: cfg.SendGridAPIKey,
	}, awsCfg, logger)
}
