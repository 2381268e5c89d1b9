package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/rs/zerolog"
)

// DeliveryArgs is the River job payload for a notification push.
type DeliveryArgs struct {
	Delivery
}

func (DeliveryArgs) Kind() string {
	return "notification_delivery"
}

// InsertOpts limits every job to a single attempt; pushes are never retried.
func (DeliveryArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{MaxAttempts: 1}
}

type deliveryWorker struct {
	river.WorkerDefaults[DeliveryArgs]
	handler DeliveryHandler
	timeout time.Duration
	logger  zerolog.Logger
}

func (w *deliveryWorker) Work(ctx context.Context, job *river.Job[DeliveryArgs]) error {
	if err := w.handler.Deliver(ctx, job.Args.Delivery); err != nil {
		w.logger.Warn().Err(err).
			Int64("notification_id", job.Args.NotificationID).
			Int64("recipient_id", job.Args.RecipientID).
			Msg("notification delivery failed")
		return river.JobCancel(err)
	}
	return nil
}

func (w *deliveryWorker) Timeout(*river.Job[DeliveryArgs]) time.Duration {
	return w.timeout
}

// RiverDispatcher queues deliveries as River jobs in PostgreSQL. River's own
// tables must already exist; see MigrateRiver.
type RiverDispatcher struct {
	client *river.Client[pgx.Tx]
}

func NewRiverDispatcher(pool *pgxpool.Pool, handler DeliveryHandler, workers int, timeout time.Duration, logger zerolog.Logger) (*RiverDispatcher, error) {
	if workers <= 0 {
		workers = 1
	}

	ws := river.NewWorkers()
	river.AddWorker(ws, &deliveryWorker{
		handler: handler,
		timeout: timeout,
		logger:  logger.With().Str("component", "notify_river").Logger(),
	})

	client, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: workers},
		},
		Workers: ws,
	})
	if err != nil {
		return nil, fmt.Errorf("create river client: %w", err)
	}

	return &RiverDispatcher{client: client}, nil
}

func (r *RiverDispatcher) Start(ctx context.Context) error {
	return r.client.Start(ctx)
}

func (r *RiverDispatcher) Stop(ctx context.Context) error {
	return r.client.Stop(ctx)
}

func (r *RiverDispatcher) Dispatch(ctx context.Context, d Delivery) error {
	if _, err := r.client.Insert(ctx, DeliveryArgs{Delivery: d}, nil); err != nil {
		return fmt.Errorf("queue notification %d: %w", d.NotificationID, err)
	}
	return nil
}

// MigrateRiver creates or upgrades River's job tables.
func MigrateRiver(ctx context.Context, pool *pgxpool.Pool) error {
	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		return fmt.Errorf("create river migrator: %w", err)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		return fmt.Errorf("migrate river: %w", err)
	}
	return nil
}

var _ Dispatcher = (*RiverDispatcher)(nil)
