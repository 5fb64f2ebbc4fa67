package stores

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/truemargin/truemargin/internal/shared"
)

// Repository reads the store registry.
type Repository interface {
	Get(ctx context.Context, id int64) (*Store, error)
	ListActive(ctx context.Context) ([]Store, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a pgx-backed store repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const storeColumns = `id, account_id, name, domain, access_token, currency, timezone_offset_minutes, ad_account_id, ad_account_active, active`

func (r *repository) Get(ctx context.Context, id int64) (*Store, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+storeColumns+` FROM stores WHERE id = $1`, id)
	store, err := scanStore(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return store, nil
}

func (r *repository) ListActive(ctx context.Context) ([]Store, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+storeColumns+` FROM stores WHERE active ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Store, 0)
	for rows.Next() {
		store, err := scanStore(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *store)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func scanStore(row pgx.Row) (*Store, error) {
	var s Store
	if err := row.Scan(
		&s.ID,
		&s.AccountID,
		&s.Name,
		&s.Domain,
		&s.AccessToken,
		&s.Currency,
		&s.TimezoneOffset,
		&s.AdAccountID,
		&s.AdAccountActive,
		&s.Active,
	); err != nil {
		return nil, err
	}
	return &s, nil
}
