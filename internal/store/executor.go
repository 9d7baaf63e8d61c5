/**
 * @description
 * The transactional executor: runs a unit of work inside one database
 * transaction with a bounded acquire wait, a per-attempt execution timeout,
 * and a conflict-retry loop. Ledger-mutating work runs at SERIALIZABLE
 * isolation so the database aborts one of two conflicting balance updates
 * instead of allowing a lost update; aborted attempts are retried with
 * backoff and the whole unit of work re-executes from scratch.
 *
 * Retryability is a closed classification of the store adapter's error
 * surface (SQLSTATE classes and transport errors), never string matching on
 * error text.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5: Transaction control and isolation levels.
 * - github.com/jackc/pgx/v5/pgconn: SQLSTATE inspection and SafeToRetry.
 * - github.com/jackc/pgx/v5/pgxpool: Connection pool.
 */

package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ExecutorConfig bounds a unit of work. Zero fields fall back to the defaults
// below.
type ExecutorConfig struct {
	AcquireTimeout    time.Duration
	ExecTimeout       time.Duration
	LedgerExecTimeout time.Duration
	MaxAttempts       int
	BackoffBase       time.Duration
}

const (
	defaultAcquireTimeout    = 5 * time.Second
	defaultExecTimeout       = 10 * time.Second
	defaultLedgerExecTimeout = 15 * time.Second
	defaultMaxAttempts       = 3
	defaultBackoffBase       = 100 * time.Millisecond
)

func (c ExecutorConfig) withDefaults() ExecutorConfig {
	if c.AcquireTimeout <= 0 {
		c.AcquireTimeout = defaultAcquireTimeout
	}
	if c.ExecTimeout <= 0 {
		c.ExecTimeout = defaultExecTimeout
	}
	if c.LedgerExecTimeout <= 0 {
		c.LedgerExecTimeout = defaultLedgerExecTimeout
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaultMaxAttempts
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = defaultBackoffBase
	}
	return c
}

// TxExecutor owns the pool and the retry policy. It is the only component
// allowed to hand out LedgerTx handles.
type TxExecutor struct {
	pool *pgxpool.Pool
	cfg  ExecutorConfig
}

// NewTxExecutor creates an executor over an established pool.
func NewTxExecutor(pool *pgxpool.Pool, cfg ExecutorConfig) *TxExecutor {
	return &TxExecutor{pool: pool, cfg: cfg.withDefaults()}
}

// RunLedger executes fn at SERIALIZABLE isolation with the ledger timeout.
func (e *TxExecutor) RunLedger(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	return e.run(ctx, pgx.Serializable, e.cfg.LedgerExecTimeout, fn)
}

// Run executes fn at READ COMMITTED isolation with the default timeout.
func (e *TxExecutor) Run(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	return e.run(ctx, pgx.ReadCommitted, e.cfg.ExecTimeout, fn)
}

func (e *TxExecutor) run(ctx context.Context, iso pgx.TxIsoLevel, timeout time.Duration, fn func(ctx context.Context, tx pgx.Tx) error) error {
	return e.withRetry(ctx, func(ctx context.Context) error {
		return e.runOnce(ctx, iso, timeout, fn)
	})
}

func (e *TxExecutor) runOnce(ctx context.Context, iso pgx.TxIsoLevel, timeout time.Duration, fn func(ctx context.Context, tx pgx.Tx) error) error {
	acquireCtx, cancelAcquire := context.WithTimeout(ctx, e.cfg.AcquireTimeout)
	conn, err := e.pool.Acquire(acquireCtx)
	cancelAcquire()
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	execCtx, cancelExec := context.WithTimeout(ctx, timeout)
	defer cancelExec()

	tx, err := conn.BeginTx(execCtx, pgx.TxOptions{IsoLevel: iso})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(execCtx)

	if err := fn(execCtx, tx); err != nil {
		return err
	}
	if err := tx.Commit(execCtx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// withRetry re-executes fn while it fails retryably, up to MaxAttempts, with
// backoff of attempt multiplied by BackoffBase between attempts. A fatal error
// propagates immediately; exhaustion surfaces ErrRetryExhausted wrapping the
// last cause.
func (e *TxExecutor) withRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= e.cfg.MaxAttempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !isRetryable(lastErr) {
			return lastErr
		}
		if attempt == e.cfg.MaxAttempts {
			break
		}
		delay := time.Duration(attempt) * e.cfg.BackoffBase
		log.Printf("level=warn component=tx_executor msg=\"retryable failure; backing off\" attempt=%d delay=%s err=%v", attempt, delay, lastErr)
		select {
		case <-ctx.Done():
			return fmt.Errorf("unit of work aborted: %w", ctx.Err())
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("%w after %d attempts: %v", ErrRetryExhausted, e.cfg.MaxAttempts, lastErr)
}

// isRetryable is the closed retryability classification. Serialization
// failures, deadlocks, connection-class errors, admin shutdown, per-attempt
// timeouts, and transport errors retry; domain and validation failures never
// do.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	// Domain outcomes are never retried, whatever wrapped them.
	if errors.Is(err, ErrInsufficientFunds) || errors.Is(err, ErrRetryExhausted) {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01": // serialization_failure, deadlock_detected
			return true
		case "57P01": // admin_shutdown
			return true
		}
		// Class 08: connection exceptions.
		return len(pgErr.Code) == 5 && pgErr.Code[:2] == "08"
	}

	if pgconn.SafeToRetry(err) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	// A per-attempt execution timeout aborts and rolls back the attempt; the
	// whole unit of work is safe to re-run.
	return errors.Is(err, context.DeadlineExceeded)
}
