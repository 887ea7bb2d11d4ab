package domain

import "github.com/shopspring/decimal"

// Decision is the outcome of evaluating a signal against a follower's config.
// It is computed fresh for every (signal, config) pair and never persisted.
type Decision struct {
	ShouldCopy      bool
	Reason          string
	EstimatedAmount decimal.Decimal
}
