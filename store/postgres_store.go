package store

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/BatmanBruc/vip-orders-bot/types"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

const queryTimeout = 5 * time.Second

func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	s := &PostgresStore{pool: pool}
	if err := s.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

func (s *PostgresStore) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDB(*s.pool.Config().ConnConfig)
	defer db.Close()
	return runMigrations(ctx, db, goose.DialectPostgres, "migrations/postgres")
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Get(ctx context.Context, subscriberID int64) (*types.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	var (
		doc     []byte
		version int64
	)
	err := s.pool.QueryRow(ctx, `
SELECT doc, version
FROM subscribers
WHERE subscriber_id = $1
`, subscriberID).Scan(&doc, &version)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeRecord(doc, version)
}

func (s *PostgresStore) CompareAndSwap(ctx context.Context, subscriberID int64, expectedVersion int64, rec *types.Record) error {
	doc, err := encodeRecord(subscriberID, rec)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var rows int64
	if expectedVersion == 0 {
		tag, err := s.pool.Exec(ctx, `
INSERT INTO subscribers (subscriber_id, version, doc)
VALUES ($1, 1, $2)
ON CONFLICT (subscriber_id) DO NOTHING
`, subscriberID, string(doc))
		if err != nil {
			return err
		}
		rows = tag.RowsAffected()
	} else {
		tag, err := s.pool.Exec(ctx, `
UPDATE subscribers
SET version = version + 1, doc = $2, updated_at = NOW()
WHERE subscriber_id = $1 AND version = $3
`, subscriberID, string(doc), expectedVersion)
		if err != nil {
			return err
		}
		rows = tag.RowsAffected()
	}
	if rows == 0 {
		return types.ErrConflict
	}
	rec.Version = expectedVersion + 1
	return nil
}

func (s *PostgresStore) All(ctx context.Context) iter.Seq2[*types.Record, error] {
	return func(yield func(*types.Record, error) bool) {
		var after *int64
		for {
			page, err := s.page(ctx, after)
			if err != nil {
				yield(nil, err)
				return
			}
			for _, rec := range page {
				if !yield(rec, nil) {
					return
				}
			}
			if len(page) < pageSize {
				return
			}
			last := page[len(page)-1].SubscriberID
			after = &last
		}
	}
}

func (s *PostgresStore) page(ctx context.Context, after *int64) ([]*types.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var (
		rows pgx.Rows
		err  error
	)
	if after == nil {
		rows, err = s.pool.Query(ctx, `
SELECT subscriber_id, doc, version
FROM subscribers
ORDER BY subscriber_id
LIMIT $1
`, pageSize)
	} else {
		rows, err = s.pool.Query(ctx, `
SELECT subscriber_id, doc, version
FROM subscribers
WHERE subscriber_id > $1
ORDER BY subscriber_id
LIMIT $2
`, *after, pageSize)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]*types.Record, 0, pageSize)
	for rows.Next() {
		var (
			id      int64
			doc     []byte
			version int64
		)
		if err := rows.Scan(&id, &doc, &version); err != nil {
			return nil, err
		}
		rec, err := decodeRecord(doc, version)
		if err != nil {
			return nil, fmt.Errorf("subscriber %d: %w", id, err)
		}
		rec.SubscriberID = id
		out = append(out, rec)
	}
	return out, rows.Err()
}
