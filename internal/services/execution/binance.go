package execution

import (
	"context"
	"strconv"

	"github.com/adshao/go-binance/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/copytrade/internal/domain"
)

// BinanceGateway trades on Binance spot. A fresh client is built per call
// because every user trades under their own credentials.
type BinanceGateway struct {
	newClient func(apiKey, apiSecret string) *binance.Client
}

// NewBinanceGateway creates a Binance trading gateway.
func NewBinanceGateway() *BinanceGateway {
	return &BinanceGateway{newClient: binance.NewClient}
}

// FreeBalance returns the user's free balance for one asset.
func (g *BinanceGateway) FreeBalance(ctx context.Context, creds domain.Credentials, asset string) (decimal.Decimal, error) {
	account, err := g.newClient(creds.APIKey, creds.APISecret).NewGetAccountService().Do(ctx)
	if err != nil {
		return decimal.Decimal{}, &domain.ExchangeError{Op: "get account", Err: err}
	}

	for _, balance := range account.Balances {
		if balance.Asset != asset {
			continue
		}
		free, err := decimal.NewFromString(balance.Free)
		if err != nil {
			return decimal.Decimal{}, errors.Wrapf(err, "failed to parse %s balance", asset)
		}
		return free, nil
	}
	return decimal.Zero, nil
}

// PlaceOrder submits the order and reports the fill.
func (g *BinanceGateway) PlaceOrder(ctx context.Context, creds domain.Credentials, req OrderRequest) (*OrderResult, error) {
	ctx, cancel := withWriteTimeout(ctx)
	defer cancel()

	svc := g.newClient(creds.APIKey, creds.APISecret).NewCreateOrderService().
		Symbol(req.Symbol).
		Side(binance.SideType(req.Side)).
		Type(binance.OrderType(req.Type)).
		Quantity(req.Quantity.String())

	if req.Type == domain.OrderTypeLimit {
		if req.LimitPrice == nil {
			return nil, errors.New("limit order requires a limit price")
		}
		svc = svc.Price(req.LimitPrice.String()).TimeInForce(binance.TimeInForceTypeGTC)
	}

	res, err := svc.Do(ctx)
	if err != nil {
		return nil, &domain.ExchangeError{Op: "create order", Err: err}
	}

	return parseCreateResponse(res)
}

// GetOrder fetches the current state of an order.
func (g *BinanceGateway) GetOrder(ctx context.Context, creds domain.Credentials, symbol, orderID string) (*OrderResult, error) {
	id, err := strconv.ParseInt(orderID, 10, 64)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid exchange order id %q", orderID)
	}

	order, err := g.newClient(creds.APIKey, creds.APISecret).NewGetOrderService().
		Symbol(symbol).
		OrderID(id).
		Do(ctx)
	if err != nil {
		return nil, &domain.ExchangeError{Op: "get order", Err: err}
	}

	executedQty, err := decimal.NewFromString(order.ExecutedQuantity)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse executed quantity")
	}
	executedValue, err := decimal.NewFromString(order.CummulativeQuoteQuantity)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse executed quote value")
	}

	result := &OrderResult{
		ExchangeOrderID: strconv.FormatInt(order.OrderID, 10),
		Status:          string(order.Status),
		ExecutedQty:     executedQty,
		ExecutedValue:   executedValue,
	}
	if executedQty.Sign() > 0 {
		result.ExecutedPrice = executedValue.Div(executedQty)
	}
	return result, nil
}

// CancelOrder cancels an open order.
func (g *BinanceGateway) CancelOrder(ctx context.Context, creds domain.Credentials, symbol, orderID string) error {
	id, err := strconv.ParseInt(orderID, 10, 64)
	if err != nil {
		return errors.Wrapf(err, "invalid exchange order id %q", orderID)
	}

	ctx, cancel := withWriteTimeout(ctx)
	defer cancel()

	_, err = g.newClient(creds.APIKey, creds.APISecret).NewCancelOrderService().
		Symbol(symbol).
		OrderID(id).
		Do(ctx)
	if err != nil {
		return &domain.ExchangeError{Op: "cancel order", Err: err}
	}
	return nil
}

func parseCreateResponse(res *binance.CreateOrderResponse) (*OrderResult, error) {
	executedQty, err := decimal.NewFromString(res.ExecutedQuantity)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse executed quantity")
	}
	executedValue, err := decimal.NewFromString(res.CummulativeQuoteQuantity)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse executed quote value")
	}

	result := &OrderResult{
		ExchangeOrderID: strconv.FormatInt(res.OrderID, 10),
		Status:          string(res.Status),
		ExecutedQty:     executedQty,
		ExecutedValue:   executedValue,
	}
	if executedQty.Sign() > 0 {
		result.ExecutedPrice = executedValue.Div(executedQty)
	}

	for _, fill := range res.Fills {
		commission, err := decimal.NewFromString(fill.Commission)
		if err != nil {
			return nil, errors.Wrap(err, "failed to parse fill commission")
		}
		result.Commission = result.Commission.Add(commission)
		result.CommissionAsset = fill.CommissionAsset
	}

	return result, nil
}
