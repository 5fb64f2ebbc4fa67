package costmodel

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository loads the cost model for a store.
type Repository interface {
	Load(ctx context.Context, storeID int64) (*Model, error)
}

type repository struct {
	pool       *pgxpool.Pool
	logger     *slog.Logger
	defaultFee ProcessingFee
}

// NewRepository constructs a pgx-backed cost-model repository. defaultFee is
// applied when the store has no processing-fee row.
func NewRepository(pool *pgxpool.Pool, logger *slog.Logger, defaultFee ProcessingFee) Repository {
	return &repository{pool: pool, logger: logger, defaultFee: defaultFee}
}

func (r *repository) Load(ctx context.Context, storeID int64) (*Model, error) {
	model := &Model{
		COGS:     make(map[string]float64),
		Shipping: make(map[string]*ShippingMatrix),
		Fee:      r.defaultFee,
	}

	if err := r.loadCOGS(ctx, storeID, model); err != nil {
		return nil, err
	}
	if err := r.loadShipping(ctx, storeID, model); err != nil {
		return nil, err
	}
	if err := r.loadFee(ctx, storeID, model); err != nil {
		return nil, err
	}
	if err := r.loadExpenses(ctx, storeID, model); err != nil {
		return nil, err
	}
	return model, nil
}

func (r *repository) loadCOGS(ctx context.Context, storeID int64, model *Model) error {
	rows, err := r.pool.Query(ctx, `SELECT item_key, unit_cost FROM cogs_entries WHERE store_id = $1`, storeID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var key, rawCost string
		if err := rows.Scan(&key, &rawCost); err != nil {
			return err
		}
		model.COGS[key] = ParseUnitCost(rawCost)
	}
	return rows.Err()
}

func (r *repository) loadShipping(ctx context.Context, storeID int64, model *Model) error {
	rows, err := r.pool.Query(ctx, `SELECT item_key, config FROM shipping_configs WHERE store_id = $1`, storeID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var raw []byte
		if err := rows.Scan(&key, &raw); err != nil {
			return err
		}
		matrix, err := ParseShippingConfig(raw)
		if err != nil {
			// A broken entry disables shipping cost for that product only.
			r.log().Warn("skipping malformed shipping config",
				slog.Int64("store_id", storeID),
				slog.String("item_key", key),
				slog.Any("error", err))
			continue
		}
		if matrix != nil {
			model.Shipping[key] = matrix
		}
	}
	return rows.Err()
}

func (r *repository) loadFee(ctx context.Context, storeID int64, model *Model) error {
	var percent, fixed float64
	err := r.pool.QueryRow(ctx,
		`SELECT fee_percent, fee_fixed FROM processing_fee_configs WHERE store_id = $1`, storeID,
	).Scan(&percent, &fixed)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}
	model.Fee = ProcessingFee{Percent: percent, Fixed: fixed}
	return nil
}

func (r *repository) loadExpenses(ctx context.Context, storeID int64, model *Model) error {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, expense_type, amount, currency, start_date, end_date
		 FROM operational_expenses WHERE store_id = $1 ORDER BY start_date`, storeID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var e OperationalExpense
		var end *time.Time
		if err := rows.Scan(&e.ID, &e.Name, &e.Type, &e.Amount, &e.Currency, &e.StartDate, &end); err != nil {
			return err
		}
		e.EndDate = end
		model.Expenses = append(model.Expenses, e)
	}
	return rows.Err()
}

func (r *repository) log() *slog.Logger {
	if r.logger != nil {
		return r.logger
	}
	return slog.Default()
}
