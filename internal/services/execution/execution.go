// Package execution places orders on the exchange on behalf of followers.
// Every attempt runs the full risk gauntlet first; nothing reaches the
// exchange once a guard fails. Attempts per user are serialized so risk
// checks always see the volume of the previous attempt.
package execution

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/copytrade/internal/domain"
)

// writeTimeout bounds order placement and cancellation. It is deliberately
// longer than the market data read timeout: abandoning an in-flight order
// costs more than a slow price read.
const writeTimeout = 15 * time.Second

// OrderRequest describes one order to place.
type OrderRequest struct {
	Symbol     string
	Side       domain.Side
	Type       domain.OrderType
	Quantity   decimal.Decimal
	LimitPrice *decimal.Decimal // required for limit orders
}

// OrderResult is the exchange's view of an order.
type OrderResult struct {
	ExchangeOrderID string
	Status          string
	ExecutedQty     decimal.Decimal
	ExecutedPrice   decimal.Decimal
	ExecutedValue   decimal.Decimal
	Commission      decimal.Decimal
	CommissionAsset string
}

// Gateway is the exchange trading API scoped to one user's credentials.
type Gateway interface {
	FreeBalance(ctx context.Context, creds domain.Credentials, asset string) (decimal.Decimal, error)
	PlaceOrder(ctx context.Context, creds domain.Credentials, req OrderRequest) (*OrderResult, error)
	GetOrder(ctx context.Context, creds domain.Credentials, symbol, orderID string) (*OrderResult, error)
	CancelOrder(ctx context.Context, creds domain.Credentials, symbol, orderID string) error
}

// CredentialSource resolves a user's decrypted exchange credentials.
type CredentialSource interface {
	// Active returns domain.ErrNoActiveCredential when the user has no
	// usable key.
	Active(ctx context.Context, userID uuid.UUID) (domain.Credentials, error)
}

// AuditLog appends execution events to a durable journal.
type AuditLog interface {
	Append(kind string, payload interface{}) error
}

func withWriteTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, writeTimeout)
}
