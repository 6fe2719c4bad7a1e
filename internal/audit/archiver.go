package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"forest/internal/game"

	"github.com/jackc/pgx/v5/pgxpool"
)

const queueDepth = 256

// Connect opens the archive database pool.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = 20
	cfg.MinConns = 2
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 10 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return pool, nil
}

// Archiver writes committed transactions to Postgres, off the coordinator's
// goroutine. The archive is write-only: game state never reads back from it,
// so an insert failure costs a log line, not a command.
type Archiver struct {
	pool  *pgxpool.Pool
	log   *slog.Logger
	queue chan game.Transaction
	done  chan struct{}
}

func New(pool *pgxpool.Pool, logger *slog.Logger) *Archiver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Archiver{
		pool:  pool,
		log:   logger,
		queue: make(chan game.Transaction, queueDepth),
		done:  make(chan struct{}),
	}
}

// Record enqueues a transaction for archival. Never blocks: when the queue
// is full the transaction is dropped and logged.
func (a *Archiver) Record(tx game.Transaction) {
	select {
	case a.queue <- tx:
	default:
		a.log.Warn("audit queue full, transaction dropped", "tx_id", tx.ID)
	}
}

// Start bootstraps the schema and drains the queue until ctx is cancelled.
func (a *Archiver) Start(ctx context.Context) error {
	if err := a.bootstrap(ctx); err != nil {
		return err
	}
	go a.drain(ctx)
	return nil
}

func (a *Archiver) bootstrap(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	statements := []string{
		`CREATE SCHEMA IF NOT EXISTS forest`,
		`CREATE TABLE IF NOT EXISTS forest.transactions (
			id         text PRIMARY KEY,
			created_at timestamptz NOT NULL,
			kind       text NOT NULL,
			from_room  text NOT NULL,
			to_room    text NOT NULL,
			amount     bigint NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if _, err := a.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrap audit schema: %w", err)
		}
	}
	return nil
}

func (a *Archiver) drain(ctx context.Context) {
	defer close(a.done)
	for {
		select {
		case <-ctx.Done():
			return
		case tx := <-a.queue:
			a.insert(ctx, tx)
		}
	}
}

func (a *Archiver) insert(ctx context.Context, tx game.Transaction) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := a.pool.Exec(ctx,
		`INSERT INTO forest.transactions (id, created_at, kind, from_room, to_room, amount)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO NOTHING`,
		tx.ID, tx.Timestamp, string(tx.Kind), tx.From, tx.To, tx.Amount,
	)
	if err != nil {
		a.log.Warn("archive transaction failed", "tx_id", tx.ID, "error", err)
	}
}

// Done reports drain-loop completion, for shutdown sequencing.
func (a *Archiver) Done() <-chan struct{} {
	return a.done
}
