package types

import (
	"context"
	"errors"
	"iter"
)

var (
	ErrNotFound         = errors.New("record not found")
	ErrConflict         = errors.New("record version conflict")
	ErrTransientFailure = errors.New("transient store failure")
)

type OrderStore interface {
	Get(ctx context.Context, subscriberID int64) (*Record, error)
	// CompareAndSwap writes rec if the stored version equals expectedVersion.
	// An expectedVersion of 0 requires that no record exists yet.
	CompareAndSwap(ctx context.Context, subscriberID int64, expectedVersion int64, rec *Record) error
	All(ctx context.Context) iter.Seq2[*Record, error]
	Ping(ctx context.Context) error
	Close() error
}

type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}
