// Package copytrade decides which followers replicate a trader's signal and
// dispatches execution or notification per follower config.
package copytrade

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/copytrade/internal/domain"
)

// Default sizing when the follower's config does not constrain it further.
var (
	defaultMaxPerTrade = decimal.NewFromInt(1000)
	baseTradeAmount    = decimal.NewFromInt(100)
)

// EvaluateDecision checks a signal against one follower's copy-trade config.
// Filters apply in a fixed order (symbol, confidence, type, status) so the
// rejection reason is deterministic when several filters would fail at once.
func EvaluateDecision(config domain.CopyTradeConfig, sig *domain.Signal) domain.Decision {
	if !config.AllowsSymbol(sig.Symbol) {
		return domain.Decision{
			Reason: fmt.Sprintf("symbol %s is not in the follower's symbol filter", sig.Symbol),
		}
	}

	confidence := sig.Confidence * 100
	if config.MinConfidence != nil && confidence < *config.MinConfidence {
		return domain.Decision{
			Reason: fmt.Sprintf("confidence %.1f%% is below the required %.1f%%", confidence, *config.MinConfidence),
		}
	}

	if !config.AllowsSignalType(sig.Type) {
		return domain.Decision{
			Reason: fmt.Sprintf("signal type %s is not in the follower's type filter", sig.Type),
		}
	}

	if sig.Status != domain.SignalStatusPending {
		return domain.Decision{
			Reason: fmt.Sprintf("signal is %s, only pending signals are copied", sig.Status),
		}
	}

	maxAmount := defaultMaxPerTrade
	if config.MaxAmountPerTrade != nil {
		maxAmount = *config.MaxAmountPerTrade
	}
	estimated := decimal.Min(maxAmount, baseTradeAmount)

	return domain.Decision{
		ShouldCopy:      true,
		Reason:          "passed all copy-trade filters",
		EstimatedAmount: estimated,
	}
}
