package profit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/truemargin/truemargin/internal/adspend"
	"github.com/truemargin/truemargin/internal/costmodel"
	"github.com/truemargin/truemargin/internal/shared"
	"github.com/truemargin/truemargin/internal/storefront"
	"github.com/truemargin/truemargin/internal/stores"
)

// OrderSource supplies the raw orders for a window.
type OrderSource interface {
	ListOrders(ctx context.Context, store *stores.Store, window shared.Window) ([]storefront.Order, error)
}

// DisputeSource supplies lost disputes directly, used when the ledger cannot
// be reconciled.
type DisputeSource interface {
	ListLostDisputes(ctx context.Context, store *stores.Store, window shared.Window) ([]storefront.Dispute, error)
}

// AdSpendSource supplies advertising spend for a range.
type AdSpendSource interface {
	TotalSpend(ctx context.Context, accountID string, rng shared.DateRange) (adspend.Spend, error)
}

// RateSource supplies the EUR→USD conversion rate.
type RateSource interface {
	EURToUSD(ctx context.Context) float64
}

// Engine computes profit reports by combining orders, the cost model, the
// payments ledger, and ad spend.
type Engine struct {
	orders     OrderSource
	reconciler *Reconciler
	disputes   DisputeSource
	ads        AdSpendSource
	rates      RateSource
	costModels costmodel.Repository
	logger     *slog.Logger
	clock      func() time.Time
}

// NewEngine wires the engine's collaborators.
func NewEngine(orders OrderSource, reconciler *Reconciler, disputes DisputeSource, ads AdSpendSource, rates RateSource, costModels costmodel.Repository, logger *slog.Logger) *Engine {
	return &Engine{
		orders:     orders,
		reconciler: reconciler,
		disputes:   disputes,
		ads:        ads,
		rates:      rates,
		costModels: costModels,
		logger:     logger,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// WithClock overrides the engine clock.
func (e *Engine) WithClock(clock func() time.Time) *Engine {
	if clock != nil {
		e.clock = clock
	}
	return e
}

// Compute builds the profit report for one store and range. The order fetch
// is the only fatal upstream: ledger reconciliation and ad spend degrade to
// the fee estimate and zero spend respectively.
func (e *Engine) Compute(ctx context.Context, store *stores.Store, rng shared.DateRange) (*Report, error) {
	rate := e.rates.EURToUSD(ctx)

	model, err := e.costModels.Load(ctx, store.ID)
	if err != nil {
		return nil, fmt.Errorf("load cost model: %w", err)
	}

	orders, err := e.orders.ListOrders(ctx, store, rng.UTCWindow(store.TimezoneOffset))
	if err != nil {
		return nil, fmt.Errorf("fetch orders: %w", err)
	}

	var (
		recon    Reconciliation
		degraded bool
		spend    adspend.Spend
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		result, err := e.reconciler.Reconcile(gctx, store, rng, rate)
		if err != nil {
			degraded = true
			recon = Reconciliation{Fees: map[int64]float64{}}
			if errors.Is(err, shared.ErrFeatureUnavailable) {
				e.log().Debug("ledger not enabled, using fee estimate", slog.Int64("store_id", store.ID))
			} else {
				// Real failures are logged loudly so they can be alerted on,
				// but the report still renders with estimated fees.
				e.log().Error("reconcile_degraded",
					slog.Int64("store_id", store.ID), slog.Any("error", err))
			}
			// Without the ledger, lost disputes can still come from the
			// dispute feed. Best effort only.
			recon.Disputes = e.lostDisputes(gctx, store, rng, rate)
			return nil
		}
		recon = result
		return nil
	})
	g.Go(func() error {
		accountID := ""
		if store.AdAccountActive {
			accountID = store.AdAccountID
		}
		result, err := e.ads.TotalSpend(gctx, accountID, rng)
		if err != nil {
			e.log().Warn("ad spend unavailable, reporting zero",
				slog.Int64("store_id", store.ID), slog.Any("error", err))
			return nil
		}
		spend = result
		return nil
	})
	_ = g.Wait()

	adSpendUSD := spend.Amount
	if strings.EqualFold(spend.Currency, "EUR") {
		adSpendUSD *= rate
	}

	processed := ProcessOrders(orders, model, recon.Fees, rate)
	opex := AmortizeExpenses(model.Expenses, rng, rate)

	report := e.aggregate(store, rng, processed, recon, adSpendUSD, opex)
	report.ReconcileDegraded = degraded
	return report, nil
}

// aggregate folds the processed orders and period-level totals into the final
// report. Recovered dispute amounts are reported but never added back into
// net profit: revenue was never removed for a won dispute, so there is
// nothing to reinstate.
func (e *Engine) aggregate(store *stores.Store, rng shared.DateRange, processed ProcessedOrders, recon Reconciliation, adSpend, opex float64) *Report {
	report := &Report{
		ComputationID:       uuid.NewString(),
		StoreID:             store.ID,
		GeneratedAt:         e.clock(),
		OrderCount:          len(processed.Orders),
		Orders:              processed.Orders,
		Revenue:             processed.Revenue,
		Discounts:           processed.Discounts,
		Tips:                processed.Tips,
		ShippingRevenue:     processed.ShippingRevenue,
		COGS:                processed.COGS,
		ShippingCost:        processed.ShippingCost,
		ProcessingFees:      processed.ProcessingFees,
		AdSpend:             adSpend,
		Refunds:             recon.Refunds,
		Disputes:            recon.Disputes,
		OperationalExpenses: opex,
	}
	report.SetRange(rng)

	report.NetProfit = report.Revenue -
		report.COGS -
		report.ShippingCost -
		report.ProcessingFees -
		report.AdSpend -
		report.Disputes.LostValue -
		report.Disputes.LostFee -
		report.Refunds -
		report.OperationalExpenses

	if len(processed.Orders) > 0 {
		var marginSum, profitSum float64
		for _, order := range processed.Orders {
			profit := order.Profit()
			profitSum += profit
			if order.Revenue != 0 {
				marginSum += profit / order.Revenue
			}
		}
		report.AvgMargin = marginSum / float64(len(processed.Orders))
		report.AvgOrderProfit = profitSum / float64(len(processed.Orders))
	}
	if report.AdSpend > 0 {
		report.ROAS = report.Revenue / report.AdSpend
	}
	return report
}

// lostDisputes queries the dispute feed directly. Fees are unknown on this
// path; only the disputed values are recovered.
func (e *Engine) lostDisputes(ctx context.Context, store *stores.Store, rng shared.DateRange, rate float64) DisputeTotals {
	var totals DisputeTotals
	if e.disputes == nil {
		return totals
	}
	disputes, err := e.disputes.ListLostDisputes(ctx, store, rng.UTCWindow(store.TimezoneOffset))
	if err != nil {
		e.log().Warn("dispute feed unavailable",
			slog.Int64("store_id", store.ID), slog.Any("error", err))
		return totals
	}
	for _, d := range disputes {
		amount := d.Amount
		if strings.EqualFold(d.Currency, "EUR") {
			amount *= rate
		}
		totals.LostValue += amount
		totals.LostCount++
	}
	return totals
}

func (e *Engine) log() *slog.Logger {
	if e.logger != nil {
		return e.logger
	}
	return slog.Default()
}
