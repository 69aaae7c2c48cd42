// Package performance folds logged trades into per-strategy aggregates and
// runs the risk limits against the result.
package performance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/kjannette/aete-backend/internal/docstore"
	"github.com/kjannette/aete-backend/internal/logging"
	"github.com/kjannette/aete-backend/internal/models"
	"github.com/kjannette/aete-backend/internal/risk"
)

// Trade fields read by the updater. All are optional.
const (
	TradePnL          = "pnl"
	TradeQuantity     = "quantity"
	TradePrice        = "price"
	TradePositionSize = "position_size"
)

type Notifier interface {
	Send(msg string)
}

type Updater struct {
	guardian *risk.Guardian
	notifier Notifier
	log      *logrus.Entry
	now      func() time.Time
}

// NewUpdater builds the trade hook. A nil guardian disables risk checks and
// a nil notifier only logs breaches.
func NewUpdater(guardian *risk.Guardian, notifier Notifier) *Updater {
	if guardian == nil {
		guardian = risk.NewGuardian(risk.Limits{})
	}
	return &Updater{
		guardian: guardian,
		notifier: notifier,
		log:      logging.For("performance"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// UpdatePerformance reads the strategy, folds the trade in and merge-writes
// the new aggregate. The read and the write are separate round-trips, so two
// trades for the same strategy landing together can lose one update.
func (u *Updater) UpdatePerformance(ctx context.Context, store docstore.Store, strategyID string, trade models.Document) error {
	log := u.log.WithField("strategy_id", strategyID)

	strategy, err := store.Get(ctx, models.CollectionStrategies, strategyID)
	switch {
	case errors.Is(err, docstore.ErrNotFound):
		strategy = models.Document{}
	case err != nil:
		return fmt.Errorf("read strategy %s: %w", strategyID, err)
	}

	prev, _ := strategy.Sub(models.FieldPerformance)
	capital, _ := strategy.Decimal(models.FieldInitialCapital)

	next, breaches := Apply(models.PerformanceFrom(prev), capital, trade, u.guardian)
	now := u.now()
	next.LastTradeAt = &now

	if len(breaches) > 0 {
		next.RiskBreached = true
		next.RiskBreachReason = strings.Join(breaches, "; ")
		log.WithField("reason", next.RiskBreachReason).Warn("Risk limit breached")
		if u.notifier != nil {
			u.notifier.Send(fmt.Sprintf("strategy %s: %s", strategyID, next.RiskBreachReason))
		}
	}

	patch := models.Document{
		models.FieldPerformance: next.Document(),
		models.FieldUpdatedAt:   docstore.ServerTimestamp,
	}
	if err := store.MergeSet(ctx, models.CollectionStrategies, strategyID, patch); err != nil {
		return fmt.Errorf("write performance for %s: %w", strategyID, err)
	}

	log.WithField("trade_count", next.TradeCount).Debug("Performance updated")
	return nil
}

// Apply folds one trade into p. Equity is initialCapital plus cumulative PnL.
// It returns the new aggregate and the breach messages raised by g, if any.
// A previous breach flag is kept; a new breach replaces the reason.
func Apply(p models.Performance, initialCapital decimal.Decimal, trade models.Document, g *risk.Guardian) (models.Performance, []string) {
	prevEquity := initialCapital.Add(decimal.NewFromFloat(p.TotalPnL))
	totalPnL := decimal.NewFromFloat(p.TotalPnL)
	volume := decimal.NewFromFloat(p.TotalVolume)

	p.TradeCount++
	if pnl, ok := trade.Decimal(TradePnL); ok {
		totalPnL = totalPnL.Add(pnl)
		switch pnl.Sign() {
		case 1:
			p.WinCount++
		case -1:
			p.LossCount++
		}
	}

	notional, hasNotional := tradeNotional(trade)
	if hasNotional {
		volume = volume.Add(notional)
	}

	equity := initialCapital.Add(totalPnL)
	peak := decimal.Max(decimal.NewFromFloat(p.PeakEquity), initialCapital, equity)
	drawdown := decimal.Zero
	if peak.IsPositive() && equity.LessThan(peak) {
		drawdown = peak.Sub(equity).Div(peak)
	}

	if decided := p.WinCount + p.LossCount; decided > 0 {
		p.WinRate = decimal.NewFromInt(p.WinCount).Div(decimal.NewFromInt(decided)).InexactFloat64()
	}
	p.TotalPnL = totalPnL.InexactFloat64()
	p.TotalVolume = volume.InexactFloat64()
	p.Equity = equity.InexactFloat64()
	p.PeakEquity = peak.InexactFloat64()
	p.CurrentDrawdown = drawdown.InexactFloat64()
	p.MaxDrawdown = max(p.MaxDrawdown, p.CurrentDrawdown)

	if g == nil {
		return p, nil
	}

	var breaches []string
	if fraction, ok := positionFraction(trade, notional, hasNotional, prevEquity); ok {
		if err := g.PositionCheck(fraction); err != nil {
			breaches = append(breaches, err.Error())
		}
	}
	if err := g.DrawdownCheck(p.CurrentDrawdown); err != nil {
		breaches = append(breaches, err.Error())
	}
	return p, breaches
}

func tradeNotional(trade models.Document) (decimal.Decimal, bool) {
	qty, okQty := trade.Decimal(TradeQuantity)
	price, okPrice := trade.Decimal(TradePrice)
	if !okQty || !okPrice {
		return decimal.Zero, false
	}
	return qty.Mul(price).Abs(), true
}

// positionFraction prefers an explicit position_size. Otherwise it derives
// the fraction from the trade notional over equity before the trade.
func positionFraction(trade models.Document, notional decimal.Decimal, hasNotional bool, equity decimal.Decimal) (float64, bool) {
	if v, ok := trade.Decimal(TradePositionSize); ok {
		return v.InexactFloat64(), true
	}
	if !hasNotional || !equity.IsPositive() {
		return 0, false
	}
	return notional.Div(equity).InexactFloat64(), true
}
