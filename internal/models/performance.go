package models

import "time"

// Performance is the aggregate stored under a strategy's "performance" field.
type Performance struct {
	TradeCount       int64      `json:"trade_count"`
	WinCount         int64      `json:"win_count"`
	LossCount        int64      `json:"loss_count"`
	WinRate          float64    `json:"win_rate"`
	TotalPnL         float64    `json:"total_pnl"`
	TotalVolume      float64    `json:"total_volume"`
	Equity           float64    `json:"equity"`
	PeakEquity       float64    `json:"peak_equity"`
	CurrentDrawdown  float64    `json:"current_drawdown"`
	MaxDrawdown      float64    `json:"max_drawdown"`
	RiskBreached     bool       `json:"risk_breached"`
	RiskBreachReason string     `json:"risk_breach_reason,omitempty"`
	LastTradeAt      *time.Time `json:"last_trade_at,omitempty"`
}

// PerformanceFrom reads a Performance back out of a stored document field.
// Missing keys are left at their zero value.
func PerformanceFrom(d Document) Performance {
	var p Performance
	if d == nil {
		return p
	}
	p.TradeCount, _ = d.Int("trade_count")
	p.WinCount, _ = d.Int("win_count")
	p.LossCount, _ = d.Int("loss_count")
	p.WinRate, _ = d.Float("win_rate")
	p.TotalPnL, _ = d.Float("total_pnl")
	p.TotalVolume, _ = d.Float("total_volume")
	p.Equity, _ = d.Float("equity")
	p.PeakEquity, _ = d.Float("peak_equity")
	p.CurrentDrawdown, _ = d.Float("current_drawdown")
	p.MaxDrawdown, _ = d.Float("max_drawdown")
	p.RiskBreached, _ = d["risk_breached"].(bool)
	p.RiskBreachReason, _ = d.String("risk_breach_reason")
	if ts, ok := d.Time("last_trade_at"); ok {
		p.LastTradeAt = &ts
	}
	return p
}

// Document converts p into the map form written to the store.
func (p Performance) Document() Document {
	d := Document{
		"trade_count":      p.TradeCount,
		"win_count":        p.WinCount,
		"loss_count":       p.LossCount,
		"win_rate":         p.WinRate,
		"total_pnl":        p.TotalPnL,
		"total_volume":     p.TotalVolume,
		"equity":           p.Equity,
		"peak_equity":      p.PeakEquity,
		"current_drawdown": p.CurrentDrawdown,
		"max_drawdown":     p.MaxDrawdown,
		"risk_breached":    p.RiskBreached,
	}
	if p.RiskBreachReason != "" {
		d["risk_breach_reason"] = p.RiskBreachReason
	}
	if p.LastTradeAt != nil {
		d["last_trade_at"] = *p.LastTradeAt
	}
	return d
}
