package execution

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/copytrade/internal/domain"
)

// RiskLimits are the hard ceilings applied to every execution attempt.
type RiskLimits struct {
	// MaxPositionSize caps the quote value of a single trade.
	MaxPositionSize decimal.Decimal
	// DailyTradingLimit caps the summed quote value of a user's filled
	// trades per local calendar day.
	DailyTradingLimit decimal.Decimal
}

// DefaultRiskLimits returns the standard ceilings.
func DefaultRiskLimits() RiskLimits {
	return RiskLimits{
		MaxPositionSize:   decimal.NewFromInt(10000),
		DailyTradingLimit: decimal.NewFromInt(5000),
	}
}

// RiskChecker evaluates pre-trade guards.
type RiskChecker struct {
	limits RiskLimits
}

// NewRiskChecker creates a checker with the given limits. Zero limits fall
// back to the defaults.
func NewRiskChecker(limits RiskLimits) *RiskChecker {
	def := DefaultRiskLimits()
	if limits.MaxPositionSize.Sign() <= 0 {
		limits.MaxPositionSize = def.MaxPositionSize
	}
	if limits.DailyTradingLimit.Sign() <= 0 {
		limits.DailyTradingLimit = def.DailyTradingLimit
	}
	return &RiskChecker{limits: limits}
}

// Check runs every guard against a fresh balance and today's filled volume.
// All guards always run so the result reports each one, but the overall
// reason names the first failure in a fixed order (balance, position size,
// daily limit).
func (c *RiskChecker) Check(balance, amount, todayVolume decimal.Decimal) domain.RiskCheckResult {
	balanceCheck := domain.RiskCheck{
		Passed:    balance.GreaterThanOrEqual(amount),
		Available: balance,
		Required:  amount,
	}

	positionCheck := domain.RiskCheck{
		Passed:   amount.LessThanOrEqual(c.limits.MaxPositionSize),
		Required: amount,
		Limit:    c.limits.MaxPositionSize,
	}

	dailyCheck := domain.RiskCheck{
		Passed:    todayVolume.Add(amount).LessThanOrEqual(c.limits.DailyTradingLimit),
		Available: c.limits.DailyTradingLimit.Sub(todayVolume),
		Required:  amount,
		Limit:     c.limits.DailyTradingLimit,
	}

	result := domain.RiskCheckResult{
		Passed:       balanceCheck.Passed && positionCheck.Passed && dailyCheck.Passed,
		Balance:      balanceCheck,
		PositionSize: positionCheck,
		DailyLimit:   dailyCheck,
	}

	switch {
	case !balanceCheck.Passed:
		result.Reason = fmt.Sprintf("insufficient balance: have %s, need %s", balance, amount)
	case !positionCheck.Passed:
		result.Reason = fmt.Sprintf("position size %s exceeds the %s limit", amount, c.limits.MaxPositionSize)
	case !dailyCheck.Passed:
		result.Reason = fmt.Sprintf("daily trading limit reached: %s of %s already used", todayVolume, c.limits.DailyTradingLimit)
	default:
		result.Reason = "all risk checks passed"
	}

	return result
}
