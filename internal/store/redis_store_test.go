package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/redis/go-redis/v9"
)

func TestTranslateTxConflict_abortBecomesSentinel(t *testing.T) {
	got := translateTxConflict(redis.TxFailedErr, ErrRequestNotPending)
	if !errors.Is(got, ErrRequestNotPending) {
		t.Fatalf("expected ErrRequestNotPending, got %v", got)
	}

	wrapped := fmt.Errorf("resolve: %w", redis.TxFailedErr)
	got = translateTxConflict(wrapped, ErrDuplicatePending)
	if !errors.Is(got, ErrDuplicatePending) {
		t.Fatalf("expected ErrDuplicatePending for wrapped abort, got %v", got)
	}
}

func TestTranslateTxConflict_otherErrorsPassThrough(t *testing.T) {
	cause := errors.New("connection reset")
	if got := translateTxConflict(cause, ErrRequestNotPending); got != cause {
		t.Fatalf("expected passthrough, got %v", got)
	}

	// Sentinels raised inside the watch body are not conflicts.
	if got := translateTxConflict(ErrDuplicatePending, ErrDuplicatePending); !errors.Is(got, ErrDuplicatePending) {
		t.Fatalf("expected ErrDuplicatePending, got %v", got)
	}
	if got := translateTxConflict(ErrRequestNotFound, ErrRequestNotPending); !errors.Is(got, ErrRequestNotFound) {
		t.Fatalf("expected ErrRequestNotFound, got %v", got)
	}
}
