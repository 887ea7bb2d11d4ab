package domain

import (
	"fmt"

	"github.com/pkg/errors"
)

// Sentinel errors of the pipeline's failure taxonomy. Checked with errors.Is.
var (
	// ErrInsufficientData means a price series is shorter than an indicator's
	// warm-up period. Callers skip the symbol, they do not abort the batch.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrSymbolUnresolved means the symbol is not a known trading pair and
	// could not be registered.
	ErrSymbolUnresolved = errors.New("symbol unresolved")
	// ErrRiskCheckFailed means a pre-trade guard rejected the order before
	// any exchange call was made.
	ErrRiskCheckFailed = errors.New("risk check failed")
	// ErrExchange means the exchange (or the network path to it) failed.
	// The order is assumed NOT filled.
	ErrExchange = errors.New("exchange error")
	// ErrNoActiveCredential means the user has no usable API key.
	ErrNoActiveCredential = errors.New("no active credential")
	// ErrNotActionable means the signal classification carries no order side.
	ErrNotActionable = errors.New("signal not actionable")
	// ErrAlreadyProcessed means execution was attempted for a signal that is
	// no longer pending for this user.
	ErrAlreadyProcessed = errors.New("signal already processed")
	// ErrNotFound is returned by repositories for missing records.
	ErrNotFound = errors.New("not found")
)

// InsufficientDataError names the indicator and the minimum it requires.
type InsufficientDataError struct {
	Indicator string
	Required  int
	Got       int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("%s needs at least %d data points, got %d", e.Indicator, e.Required, e.Got)
}

// Is makes errors.Is(err, ErrInsufficientData) match.
func (e *InsufficientDataError) Is(target error) bool { return target == ErrInsufficientData }

// RiskCheckError carries the per-check detail of a failed risk evaluation.
type RiskCheckError struct {
	Result RiskCheckResult
}

func (e *RiskCheckError) Error() string { return e.Result.Reason }

// Is makes errors.Is(err, ErrRiskCheckFailed) match.
func (e *RiskCheckError) Is(target error) bool { return target == ErrRiskCheckFailed }

// ExchangeError records which exchange operation failed; the underlying
// error text is preserved verbatim for the trade record.
type ExchangeError struct {
	Op  string
	Err error
}

func (e *ExchangeError) Error() string {
	return fmt.Sprintf("exchange %s failed: %v", e.Op, e.Err)
}

func (e *ExchangeError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrExchange) match.
func (e *ExchangeError) Is(target error) bool { return target == ErrExchange }
