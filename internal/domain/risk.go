package domain

import "github.com/shopspring/decimal"

// RiskCheck is the result of one individual pre-trade guard.
type RiskCheck struct {
	Passed    bool
	Available decimal.Decimal
	Required  decimal.Decimal
	Limit     decimal.Decimal
}

// RiskCheckResult aggregates all pre-trade guards for one execution attempt.
// Results are computed fresh on every attempt; balances and daily usage
// change between attempts, so they are never cached.
type RiskCheckResult struct {
	Passed       bool
	Reason       string
	Balance      RiskCheck
	PositionSize RiskCheck
	DailyLimit   RiskCheck
}
