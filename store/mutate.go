package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/BatmanBruc/vip-orders-bot/types"
)

const DefaultAttempts = 5

// MutateFunc edits rec in place. exists is false when no record was stored
// yet and rec is a fresh zero record for the subscriber. Returning an error
// aborts the mutation without writing.
type MutateFunc func(rec *types.Record, exists bool) error

// Mutate runs a read-modify-write cycle against s using CompareAndSwap. On a
// version conflict the whole cycle is retried from a fresh read, up to
// attempts times, after which types.ErrTransientFailure is returned.
func Mutate(ctx context.Context, s types.OrderStore, subscriberID int64, attempts int, fn MutateFunc) (*types.Record, error) {
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	for i := 0; i < attempts; i++ {
		rec, err := s.Get(ctx, subscriberID)
		exists := true
		var version int64
		switch {
		case errors.Is(err, types.ErrNotFound):
			exists = false
			rec = &types.Record{SubscriberID: subscriberID}
		case err != nil:
			return nil, err
		default:
			version = rec.Version
		}

		if err := fn(rec, exists); err != nil {
			return nil, err
		}

		err = s.CompareAndSwap(ctx, subscriberID, version, rec)
		if err == nil {
			return rec, nil
		}
		if !errors.Is(err, types.ErrConflict) {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("subscriber %d after %d attempts: %w", subscriberID, attempts, types.ErrTransientFailure)
}
