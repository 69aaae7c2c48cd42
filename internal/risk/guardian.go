package risk

import (
	"errors"
	"fmt"
)

// ErrLimitBreached is wrapped by every error a check returns.
var ErrLimitBreached = errors.New("risk limit breached")

// Limits holds the risk thresholds from config, both as fractions of equity.
// A zero value for any field means that check is disabled.
type Limits struct {
	MaxPositionSize float64
	MaxDrawdown     float64
}

type Guardian struct {
	limits Limits
}

func NewGuardian(limits Limits) *Guardian {
	return &Guardian{limits: limits}
}

func (g *Guardian) Limits() Limits {
	return g.limits
}

// PositionCheck validates a single position before it is taken or recorded.
// fraction is the position value over current equity (0.1 means 10%).
// Returns nil if the position is allowed, a descriptive error if blocked.
func (g *Guardian) PositionCheck(fraction float64) error {
	if g.limits.MaxPositionSize > 0 && fraction > g.limits.MaxPositionSize {
		return fmt.Errorf("%w: position size %.2f%% exceeds max %.2f%%",
			ErrLimitBreached, fraction*100, g.limits.MaxPositionSize*100)
	}
	return nil
}

// DrawdownCheck is the portfolio-level circuit breaker.
// drawdown is the fall from peak equity as a fraction (0.2 means down 20%).
// Returns nil if trading should continue, a descriptive error if it tripped.
func (g *Guardian) DrawdownCheck(drawdown float64) error {
	if g.limits.MaxDrawdown > 0 && drawdown >= g.limits.MaxDrawdown {
		return fmt.Errorf("%w: MAX-DRAWDOWN triggered: down %.2f%% from peak (threshold: %.2f%%)",
			ErrLimitBreached, drawdown*100, g.limits.MaxDrawdown*100)
	}
	return nil
}
