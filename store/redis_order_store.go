package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"strconv"

	"github.com/BatmanBruc/vip-orders-bot/types"
	"github.com/go-redis/redis/v8"
)

// redisEnvelope is the value stored under each subscriber key. The version
// lives next to the document so WATCH covers both.
type redisEnvelope struct {
	Version int64           `json:"version"`
	Record  json.RawMessage `json:"record"`
}

type RedisOrderStore struct {
	client *RedisClient
}

func NewRedisOrderStore(redisClient *RedisClient) *RedisOrderStore {
	return &RedisOrderStore{client: redisClient}
}

func (s *RedisOrderStore) key(subscriberID int64) string {
	return s.client.generateKey("subscriber", strconv.FormatInt(subscriberID, 10))
}

func (s *RedisOrderStore) load(ctx context.Context, cmd redis.Cmdable, key string) (*types.Record, error) {
	data, err := cmd.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var env redisEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return decodeRecord(env.Record, env.Version)
}

func (s *RedisOrderStore) Get(ctx context.Context, subscriberID int64) (*types.Record, error) {
	return s.load(ctx, s.client.client, s.key(subscriberID))
}

func (s *RedisOrderStore) CompareAndSwap(ctx context.Context, subscriberID int64, expectedVersion int64, rec *types.Record) error {
	doc, err := encodeRecord(subscriberID, rec)
	if err != nil {
		return err
	}
	data, err := json.Marshal(redisEnvelope{Version: expectedVersion + 1, Record: doc})
	if err != nil {
		return err
	}
	key := s.key(subscriberID)

	err = s.client.client.Watch(ctx, func(tx *redis.Tx) error {
		var current int64
		existing, err := s.load(ctx, tx, key)
		switch {
		case errors.Is(err, types.ErrNotFound):
		case err != nil:
			return err
		default:
			current = existing.Version
		}
		if current != expectedVersion {
			return types.ErrConflict
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return types.ErrConflict
	}
	if err != nil {
		return err
	}
	rec.Version = expectedVersion + 1
	return nil
}

func (s *RedisOrderStore) All(ctx context.Context) iter.Seq2[*types.Record, error] {
	return func(yield func(*types.Record, error) bool) {
		pattern := s.client.generateKey("subscriber", "*")
		seen := make(map[string]struct{})
		var cursor uint64
		for {
			keys, next, err := s.client.client.Scan(ctx, cursor, pattern, pageSize).Result()
			if err != nil {
				yield(nil, err)
				return
			}
			for _, key := range keys {
				if _, dup := seen[key]; dup {
					continue
				}
				seen[key] = struct{}{}
				rec, err := s.load(ctx, s.client.client, key)
				if errors.Is(err, types.ErrNotFound) {
					continue
				}
				if !yield(rec, err) || err != nil {
					return
				}
			}
			if next == 0 {
				return
			}
			cursor = next
		}
	}
}

func (s *RedisOrderStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx)
}

func (s *RedisOrderStore) Close() error {
	return s.client.Close()
}
