package execution

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestRiskCheck(t *testing.T) {
	checker := NewRiskChecker(DefaultRiskLimits())

	cases := []struct {
		name        string
		balance     string
		amount      string
		todayVolume string
		wantPassed  bool
		wantReason  string
	}{
		{
			name:    "all checks pass",
			balance: "1000", amount: "100", todayVolume: "0",
			wantPassed: true,
			wantReason: "all risk checks passed",
		},
		{
			name:    "insufficient balance",
			balance: "50", amount: "100", todayVolume: "0",
			wantPassed: false,
			wantReason: "insufficient balance: have 50, need 100",
		},
		{
			name:    "balance exactly covers the amount",
			balance: "100", amount: "100", todayVolume: "0",
			wantPassed: true,
		},
		{
			name:    "position size exceeds the ceiling",
			balance: "50000", amount: "10001", todayVolume: "0",
			wantPassed: false,
			wantReason: "position size 10001 exceeds the 10000 limit",
		},
		{
			name:    "daily limit exceeded",
			balance: "50000", amount: "3000", todayVolume: "3000",
			wantPassed: false,
			wantReason: "daily trading limit reached: 3000 of 5000 already used",
		},
		{
			name:    "daily limit exactly reached passes",
			balance: "50000", amount: "2000", todayVolume: "3000",
			wantPassed: true,
		},
		{
			name:    "balance failure reported before position size",
			balance: "50", amount: "10001", todayVolume: "6000",
			wantPassed: false,
			wantReason: "insufficient balance: have 50, need 10001",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := checker.Check(d(tc.balance), d(tc.amount), d(tc.todayVolume))
			assert.Equal(t, tc.wantPassed, got.Passed)
			if tc.wantReason != "" {
				assert.Equal(t, tc.wantReason, got.Reason)
			}
		})
	}
}

func TestRiskCheckReportsEveryGuard(t *testing.T) {
	checker := NewRiskChecker(DefaultRiskLimits())

	got := checker.Check(d("50"), d("10001"), d("6000"))

	assert.False(t, got.Passed)
	assert.False(t, got.Balance.Passed)
	assert.False(t, got.PositionSize.Passed)
	assert.False(t, got.DailyLimit.Passed)
	assert.True(t, got.DailyLimit.Available.Equal(d("-1000")))
}

func TestRiskCheckerZeroLimitsFallBack(t *testing.T) {
	checker := NewRiskChecker(RiskLimits{})

	got := checker.Check(d("50000"), d("10001"), d("0"))
	assert.False(t, got.Passed)
	assert.True(t, got.PositionSize.Limit.Equal(d("10000")))
	assert.True(t, got.DailyLimit.Limit.Equal(d("5000")))
}
