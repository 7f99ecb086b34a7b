package connection

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sony/gobreaker"
)

// Retryable is implemented by adapter errors that know whether a repeat
// of the same call can succeed.
type Retryable interface {
	Retryable() bool
}

// IsRetryable reports whether err is a transient storage failure.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false
	}

	var r Retryable
	if errors.As(err, &r) {
		return r.Retryable()
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case len(pgErr.Code) >= 2 && pgErr.Code[:2] == "08":
			return true
		case pgErr.Code == "40001", pgErr.Code == "40P01", pgErr.Code == "57P01":
			return true
		}
		return false
	}
	if pgconn.Timeout(err) {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}

// WithRetry runs fn up to attempts times while it fails with a retryable
// error, sleeping backoff*n between tries.
func WithRetry(ctx context.Context, attempts int, backoff time.Duration, fn func(context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 1; i <= attempts; i++ {
		if err = fn(ctx); err == nil || !IsRetryable(err) || i == attempts {
			return err
		}

		select {
		case <-ctx.Done():
			return err
		case <-time.After(backoff * time.Duration(i)):
		}
	}
	return err
}
