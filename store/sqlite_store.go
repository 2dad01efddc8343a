package store

import (
	"context"
	"database/sql"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BatmanBruc/vip-orders-bot/types"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	cleanPath := filepath.Clean(path)
	if dir := filepath.Dir(cleanPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}

	dsn := "file:" + cleanPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// sqlite has a single writer; one connection keeps writes ordered.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := runMigrations(ctx, db, goose.DialectSQLite3, "migrations/sqlite"); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Get(ctx context.Context, subscriberID int64) (*types.Record, error) {
	var (
		doc     string
		version int64
	)
	err := s.db.QueryRowContext(ctx, `
SELECT doc, version
FROM subscribers
WHERE subscriber_id = ?
`, subscriberID).Scan(&doc, &version)
	if err == sql.ErrNoRows {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeRecord([]byte(doc), version)
}

func (s *SQLiteStore) CompareAndSwap(ctx context.Context, subscriberID int64, expectedVersion int64, rec *types.Record) error {
	doc, err := encodeRecord(subscriberID, rec)
	if err != nil {
		return err
	}
	now := time.Now().UTC().UnixMilli()

	var res sql.Result
	if expectedVersion == 0 {
		res, err = s.db.ExecContext(ctx, `
INSERT INTO subscribers (subscriber_id, version, doc, updated_at)
VALUES (?, 1, ?, ?)
ON CONFLICT (subscriber_id) DO NOTHING
`, subscriberID, string(doc), now)
	} else {
		res, err = s.db.ExecContext(ctx, `
UPDATE subscribers
SET version = version + 1, doc = ?, updated_at = ?
WHERE subscriber_id = ? AND version = ?
`, string(doc), now, subscriberID, expectedVersion)
	}
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return types.ErrConflict
	}
	rec.Version = expectedVersion + 1
	return nil
}

func (s *SQLiteStore) All(ctx context.Context) iter.Seq2[*types.Record, error] {
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

// page reads one keyset page and releases the connection before returning,
// so callers may write while iterating.
func (s *SQLiteStore) page(ctx context.Context, after *int64) ([]*types.Record, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if after == nil {
		rows, err = s.db.QueryContext(ctx, `
SELECT subscriber_id, doc, version
FROM subscribers
ORDER BY subscriber_id
LIMIT ?
`, pageSize)
	} else {
		rows, err = s.db.QueryContext(ctx, `
SELECT subscriber_id, doc, version
FROM subscribers
WHERE subscriber_id > ?
ORDER BY subscriber_id
LIMIT ?
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
			doc     string
			version int64
		)
		if err := rows.Scan(&id, &doc, &version); err != nil {
			return nil, err
		}
		rec, err := decodeRecord([]byte(doc), version)
		if err != nil {
			return nil, fmt.Errorf("subscriber %d: %w", id, err)
		}
		rec.SubscriberID = id
		out = append(out, rec)
	}
	return out, rows.Err()
}
