package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/kjannette/aete-backend/internal/docstore"
	"github.com/kjannette/aete-backend/internal/models"
)

// LogTrade appends a trade under a store-generated key and returns that key.
// Trades that name a strategy_id also update the strategy's performance;
// that update is best-effort and never fails the trade. strategy_id may be a
// string or an integral number; any other type is ErrInvalidInput.
func (g *Gateway) LogTrade(ctx context.Context, data models.Document) (string, error) {
	log := g.log.WithField("op", "log_trade")

	store, err := g.connected()
	if err != nil {
		log.Error("Persistence gateway not connected")
		return "", err
	}

	strategyID, err := tradeStrategyID(data)
	if err != nil {
		log.WithError(err).Error("Trade rejected")
		return "", fmt.Errorf("%w: log trade: %w", ErrInvalidInput, err)
	}

	trade := data.Clone()
	if trade == nil {
		trade = models.Document{}
	}
	trade[models.FieldLoggedAt] = docstore.ServerTimestamp
	trade[models.FieldEcosystemVersion] = models.EcosystemVersion

	id, err := store.Add(ctx, models.CollectionTrades, trade)
	if err != nil {
		log.WithError(err).Error("Failed to log trade")
		return "", fmt.Errorf("%w: log trade: %w", ErrOperationFailed, err)
	}
	log = log.WithField("trade_id", id)

	if strategyID != "" && g.hook != nil {
		// The hook sees what was written, with logged_at still a sentinel.
		if err := g.hook.UpdatePerformance(ctx, store, strategyID, trade); err != nil {
			log.WithError(err).WithField("strategy_id", strategyID).
				Warnf("Performance update failed for strategy %s", strategyID)
		}
	}

	log.Debug("Trade logged")
	return id, nil
}

// tradeStrategyID returns the trade's strategy_id as a string, or "" when the
// trade names no strategy.
func tradeStrategyID(d models.Document) (string, error) {
	switch t := d[models.FieldStrategyID].(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case int:
		return strconv.Itoa(t), nil
	case int32:
		return strconv.FormatInt(int64(t), 10), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return strconv.FormatInt(n, 10), nil
		}
	case float64:
		if !math.IsInf(t, 0) && t == math.Trunc(t) && math.Abs(t) < 1<<53 {
			return strconv.FormatInt(int64(t), 10), nil
		}
	}
	return "", fmt.Errorf("strategy_id must be a string or an integer, got %v (%T)",
		d[models.FieldStrategyID], d[models.FieldStrategyID])
}
