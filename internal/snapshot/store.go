package snapshot

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/truemargin/truemargin/internal/shared"
)

// Store reads and writes snapshots in Postgres.
type Store interface {
	Get(ctx context.Context, storeID int64, rangeKey string) (*Snapshot, error)
	Upsert(ctx context.Context, snap *Snapshot) error
	Invalidate(ctx context.Context, storeID int64) error
	Evict(ctx context.Context, now time.Time) (int64, error)
}

type pgStore struct {
	pool *pgxpool.Pool
}

// NewStore constructs a pgx-backed snapshot store.
func NewStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

func (s *pgStore) Get(ctx context.Context, storeID int64, rangeKey string) (*Snapshot, error) {
	snap := &Snapshot{StoreID: storeID, RangeKey: rangeKey}
	err := s.pool.QueryRow(ctx,
		`SELECT range_from, range_to, payload, created_at
		 FROM profit_snapshots
		 WHERE store_id = $1 AND range_key = $2`,
		storeID, rangeKey,
	).Scan(&snap.From, &snap.To, &snap.Payload, &snap.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// Upsert writes the snapshot in one statement so concurrent computations of
// the same range cannot interleave a delete and an insert.
func (s *pgStore) Upsert(ctx context.Context, snap *Snapshot) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO profit_snapshots (store_id, range_key, range_from, range_to, payload, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (store_id, range_key)
		 DO UPDATE SET payload = EXCLUDED.payload, created_at = EXCLUDED.created_at`,
		snap.StoreID, snap.RangeKey, snap.From, snap.To, snap.Payload, snap.CreatedAt)
	return err
}

func (s *pgStore) Invalidate(ctx context.Context, storeID int64) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM profit_snapshots WHERE store_id = $1`, storeID)
	return err
}

// Evict removes snapshots older than MaxAge by creation time and returns the
// number of rows deleted.
func (s *pgStore) Evict(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM profit_snapshots WHERE created_at < $1`, now.Add(-MaxAge))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
