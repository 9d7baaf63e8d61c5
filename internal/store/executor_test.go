package store

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

func testExecutor(maxAttempts int) *TxExecutor {
	return &TxExecutor{cfg: ExecutorConfig{
		MaxAttempts: maxAttempts,
		BackoffBase: time.Millisecond,
	}.withDefaults()}
}

func serializationFailure() error {
	return &pgconn.PgError{Code: "40001", Message: "could not serialize access due to concurrent update"}
}

func TestWithRetry_SerializationFailureEventuallySucceeds(t *testing.T) {
	e := testExecutor(3)

	attempts := 0
	err := e.withRetry(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return serializationFailure()
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestWithRetry_FatalErrorPropagatesImmediately(t *testing.T) {
	e := testExecutor(3)

	attempts := 0
	err := e.withRetry(context.Background(), func(ctx context.Context) error {
		attempts++
		return ErrInsufficientFunds
	})
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected a single attempt for a fatal error, got %d", attempts)
	}
}

func TestWithRetry_ExhaustionWrapsLastCause(t *testing.T) {
	e := testExecutor(3)

	attempts := 0
	err := e.withRetry(context.Background(), func(ctx context.Context) error {
		attempts++
		return serializationFailure()
	})
	if !errors.Is(err, ErrRetryExhausted) {
		t.Fatalf("expected ErrRetryExhausted, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", attempts)
	}
	// An exhausted unit of work must not be treated as retryable again.
	if isRetryable(err) {
		t.Fatal("expected exhaustion error to be fatal")
	}
}

func TestWithRetry_ContextCancelledDuringBackoff(t *testing.T) {
	e := &TxExecutor{cfg: ExecutorConfig{
		MaxAttempts: 3,
		BackoffBase: time.Second,
	}.withDefaults()}

	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	err := e.withRetry(ctx, func(ctx context.Context) error {
		attempts++
		return serializationFailure()
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation to abort the backoff, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected cancellation before the second attempt, got %d attempts", attempts)
	}
}

func TestIsRetryable_Classification(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"serialization failure", &pgconn.PgError{Code: "40001"}, true},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, true},
		{"admin shutdown", &pgconn.PgError{Code: "57P01"}, true},
		{"connection failure class 08", &pgconn.PgError{Code: "08006"}, true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"check violation", &pgconn.PgError{Code: "23514"}, false},
		{"insufficient funds", ErrInsufficientFunds, false},
		{"wrapped insufficient funds", &wrappedError{ErrInsufficientFunds}, false},
		{"retry exhausted", ErrRetryExhausted, false},
		{"net error", &net.OpError{Op: "read", Err: errors.New("connection reset")}, true},
		{"attempt deadline", context.DeadlineExceeded, true},
		{"plain error", errors.New("boom"), false},
	}
	for _, tc := range cases {
		if got := isRetryable(tc.err); got != tc.want {
			t.Errorf("%s: isRetryable=%t, want %t", tc.name, got, tc.want)
		}
	}
}

type wrappedError struct{ inner error }

func (w *wrappedError) Error() string { return "wrapped: " + w.inner.Error() }
func (w *wrappedError) Unwrap() error { return w.inner }
