package store

import (
	"context"
	"errors"
	"iter"
	"slices"
	"sync"

	"github.com/BatmanBruc/vip-orders-bot/types"
)

// MemoryStore keeps records in process memory. Nothing survives a restart.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[int64]*types.Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[int64]*types.Record)}
}

func (s *MemoryStore) Get(ctx context.Context, subscriberID int64) (*types.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[subscriberID]
	if !ok {
		return nil, types.ErrNotFound
	}
	return rec.Clone(), nil
}

func (s *MemoryStore) CompareAndSwap(ctx context.Context, subscriberID int64, expectedVersion int64, rec *types.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rec == nil {
		return types.ErrNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var current int64
	if existing, ok := s.records[subscriberID]; ok {
		current = existing.Version
	}
	if current != expectedVersion {
		return types.ErrConflict
	}

	stored := rec.Clone()
	stored.SubscriberID = subscriberID
	stored.Version = expectedVersion + 1
	s.records[subscriberID] = stored

	rec.SubscriberID = subscriberID
	rec.Version = stored.Version
	return nil
}

// All walks a snapshot of the keys and reads each record individually, so
// concurrent writers are never blocked for the whole iteration.
func (s *MemoryStore) All(ctx context.Context) iter.Seq2[*types.Record, error] {
	return func(yield func(*types.Record, error) bool) {
		s.mu.RLock()
		ids := make([]int64, 0, len(s.records))
		for id := range s.records {
			ids = append(ids, id)
		}
		s.mu.RUnlock()
		slices.Sort(ids)

		for _, id := range ids {
			rec, err := s.Get(ctx, id)
			if errors.Is(err, types.ErrNotFound) {
				continue
			}
			if !yield(rec, err) || err != nil {
				return
			}
		}
	}
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *MemoryStore) Close() error {
	return nil
}
