package execution

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/copytrade/internal/domain"
)

// Journal entry kinds.
const (
	auditOrderExecuted = "order_executed"
	auditOrderFailed   = "order_failed"
	auditRiskRejected  = "risk_rejected"
)

type riskRejection struct {
	UserID   uuid.UUID              `json:"userId"`
	SignalID *uuid.UUID             `json:"signalId,omitempty"`
	Symbol   string                 `json:"symbol"`
	Result   domain.RiskCheckResult `json:"result"`
}

// Request describes one order to execute on behalf of a user. SignalID ties
// the order to its originating signal; without it the order runs as a manual
// trade. Limit orders carry LimitPrice and rest on the book with GTC.
type Request struct {
	UserID     uuid.UUID
	Symbol     string
	Side       domain.Side
	Amount     decimal.Decimal
	Type       domain.OrderType
	LimitPrice *decimal.Decimal
	SignalID   *uuid.UUID
}

func (r Request) validate() error {
	if r.Symbol == "" {
		return errors.New("symbol is required")
	}
	if r.Side != domain.SideBuy && r.Side != domain.SideSell {
		return errors.Errorf("unknown side %q", r.Side)
	}
	if r.Amount.Sign() <= 0 {
		return errors.Errorf("amount must be positive, got %s", r.Amount)
	}
	switch r.Type {
	case domain.OrderTypeMarket:
		return nil
	case domain.OrderTypeLimit:
		if r.LimitPrice == nil || r.LimitPrice.Sign() <= 0 {
			return errors.New("limit orders need a positive limit price")
		}
		return nil
	default:
		return errors.Errorf("unknown order type %q", r.Type)
	}
}

// VolumeSource reports the user's filled quote volume since local midnight.
// The statistics aggregator owns the day-boundary definition.
type VolumeSource interface {
	TodayVolume(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error)
}

// Executor runs the order pipeline: risk checks, credential lookup, quantity
// sizing, exchange submission and trade recording.
type Executor struct {
	trades      domain.TradeRepository
	signals     domain.SignalRepository
	credentials CredentialSource
	market      marketPriceSource
	gateway     Gateway
	risk        *RiskChecker
	volume      VolumeSource
	audit       AuditLog
	logger      *zap.Logger
	now         func() time.Time

	mu        sync.Mutex
	userLocks map[uuid.UUID]*sync.Mutex
}

type marketPriceSource interface {
	GetCurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// NewExecutor creates an order executor. audit may be nil to disable
// journaling.
func NewExecutor(
	trades domain.TradeRepository,
	signals domain.SignalRepository,
	credentials CredentialSource,
	market marketPriceSource,
	gateway Gateway,
	risk *RiskChecker,
	volume VolumeSource,
	audit AuditLog,
	logger *zap.Logger,
) *Executor {
	return &Executor{
		trades:      trades,
		signals:     signals,
		credentials: credentials,
		market:      market,
		gateway:     gateway,
		risk:        risk,
		volume:      volume,
		audit:       audit,
		logger:      logger,
		now:         time.Now,
		userLocks:   make(map[uuid.UUID]*sync.Mutex),
	}
}

// lockFor serializes execution attempts per user. Different users proceed in
// parallel; the same user's attempts queue so each risk check sees the daily
// volume left by the previous one.
func (e *Executor) lockFor(userID uuid.UUID) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()

	lock, ok := e.userLocks[userID]
	if !ok {
		lock = &sync.Mutex{}
		e.userLocks[userID] = lock
	}
	return lock
}

// Execute places the order described by the request. Orders without a
// SignalID run as manual trades; a SignalID ties the order to its pending
// signal and records it as an auto trade.
func (e *Executor) Execute(ctx context.Context, req Request) (*domain.TradeRecord, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	mode := domain.ExecModeManual
	var sig *domain.Signal
	if req.SignalID != nil {
		mode = domain.ExecModeAuto
		loaded, err := e.signals.GetByID(ctx, *req.SignalID)
		if err != nil {
			return nil, errors.Wrap(err, "failed to load the originating signal")
		}
		if loaded.Status != domain.SignalStatusPending {
			return nil, errors.Wrapf(domain.ErrAlreadyProcessed, "signal %s is %s", loaded.ID, loaded.Status)
		}
		sig = loaded
	}

	return e.execute(ctx, req, sig, mode)
}

// ExecuteOrder places a market order derived from the signal. Exactly one
// trade record exists per (user, signal) attempt; a risk rejection produces
// no record at all because no order was ever attempted.
func (e *Executor) ExecuteOrder(ctx context.Context, userID uuid.UUID, sig *domain.Signal, amount decimal.Decimal, mode domain.ExecMode) (*domain.TradeRecord, error) {
	side, ok := sig.Type.OrderSide()
	if !ok {
		return nil, errors.Wrapf(domain.ErrNotActionable, "signal %s is %s", sig.ID, sig.Type)
	}
	if sig.Status != domain.SignalStatusPending {
		return nil, errors.Wrapf(domain.ErrAlreadyProcessed, "signal %s is %s", sig.ID, sig.Status)
	}

	req := Request{
		UserID:   userID,
		Symbol:   sig.Symbol,
		Side:     side,
		Amount:   amount,
		Type:     domain.OrderTypeMarket,
		SignalID: &sig.ID,
	}
	return e.execute(ctx, req, sig, mode)
}

func (e *Executor) execute(ctx context.Context, req Request, sig *domain.Signal, mode domain.ExecMode) (*domain.TradeRecord, error) {
	lock := e.lockFor(req.UserID)
	lock.Lock()
	defer lock.Unlock()

	if sig != nil {
		exists, err := e.trades.ExistsForUserSignal(ctx, req.UserID, sig.ID)
		if err != nil {
			return nil, errors.Wrap(err, "failed to check for an existing trade")
		}
		if exists {
			return nil, errors.Wrapf(domain.ErrAlreadyProcessed, "user %s already has a trade for signal %s", req.UserID, sig.ID)
		}
	}

	creds, err := e.credentials.Active(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	balance, err := e.gateway.FreeBalance(ctx, creds, QuoteAsset(req.Symbol))
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch balance")
	}

	todayVolume, err := e.volume.TodayVolume(ctx, req.UserID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to compute today's volume")
	}

	riskResult := e.risk.Check(balance, req.Amount, todayVolume)
	if !riskResult.Passed {
		e.logger.Warn("risk check rejected order",
			zap.String("user", req.UserID.String()),
			zap.String("symbol", req.Symbol),
			zap.String("reason", riskResult.Reason))
		e.appendAudit(auditRiskRejected, riskRejection{
			UserID:   req.UserID,
			SignalID: req.SignalID,
			Symbol:   req.Symbol,
			Result:   riskResult,
		})
		return nil, &domain.RiskCheckError{Result: riskResult}
	}

	// limit orders size against their own price; market orders against the
	// last traded price
	price := decimal.Decimal{}
	if req.Type == domain.OrderTypeLimit {
		price = *req.LimitPrice
	} else {
		price, err = e.market.GetCurrentPrice(ctx, req.Symbol)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to fetch price for %s", req.Symbol)
		}
	}

	qty, err := CalculateQuantity(req.Symbol, req.Amount, price)
	if err != nil {
		return nil, errors.Wrap(err, "failed to size order")
	}

	now := e.now()
	record := &domain.TradeRecord{
		ID:              uuid.New(),
		UserID:          req.UserID,
		SignalID:        req.SignalID,
		Symbol:          req.Symbol,
		Side:            req.Side,
		OrderType:       req.Type,
		RequestedAmount: req.Amount,
		Mode:            mode,
		CreatedAt:       now,
	}
	if sig != nil {
		record.TraderID = sig.TraderID
	}

	result, err := e.gateway.PlaceOrder(ctx, creds, OrderRequest{
		Symbol:     req.Symbol,
		Side:       req.Side,
		Type:       req.Type,
		Quantity:   qty,
		LimitPrice: req.LimitPrice,
	})
	if err != nil {
		record.Status = domain.TradeStatusFailed
		record.ErrorMessage = err.Error()
		if saveErr := e.trades.Save(ctx, record); saveErr != nil {
			e.logger.Error("failed to record failed trade",
				zap.String("user", req.UserID.String()),
				zap.Error(saveErr))
		}
		e.appendAudit(auditOrderFailed, record)
		return nil, err
	}

	executedAt := e.now()
	record.Status = domain.TradeStatusFilled
	record.ExchangeOrderID = result.ExchangeOrderID
	record.ExecutedQty = result.ExecutedQty
	record.ExecutedPrice = result.ExecutedPrice
	record.ExecutedValue = result.ExecutedValue
	record.Commission = result.Commission
	record.CommissionAsset = result.CommissionAsset
	record.ExecutedAt = &executedAt

	if err := e.trades.Save(ctx, record); err != nil {
		return nil, errors.Wrap(err, "order filled but the trade record could not be saved")
	}

	// the first fill flips the signal; later followers hit the forward-only
	// transition guard, which is expected
	if sig != nil {
		if err := e.signals.UpdateStatus(ctx, sig.ID, domain.SignalStatusExecuted, &result.ExecutedPrice); err != nil {
			e.logger.Debug("signal status not updated",
				zap.String("signal", sig.ID.String()),
				zap.Error(err))
		}
	}

	e.appendAudit(auditOrderExecuted, record)
	e.logger.Info("order executed",
		zap.String("user", req.UserID.String()),
		zap.String("symbol", req.Symbol),
		zap.String("side", string(req.Side)),
		zap.String("mode", string(mode)),
		zap.String("qty", record.ExecutedQty.String()),
		zap.String("value", record.ExecutedValue.String()))

	return record, nil
}

// GetOrderStatus proxies an order lookup under the user's credentials.
func (e *Executor) GetOrderStatus(ctx context.Context, userID uuid.UUID, symbol, orderID string) (*OrderResult, error) {
	creds, err := e.credentials.Active(ctx, userID)
	if err != nil {
		return nil, err
	}
	return e.gateway.GetOrder(ctx, creds, symbol, orderID)
}

// CancelOrder proxies an order cancellation under the user's credentials.
func (e *Executor) CancelOrder(ctx context.Context, userID uuid.UUID, symbol, orderID string) error {
	creds, err := e.credentials.Active(ctx, userID)
	if err != nil {
		return err
	}
	return e.gateway.CancelOrder(ctx, creds, symbol, orderID)
}

func (e *Executor) appendAudit(kind string, payload interface{}) {
	if e.audit == nil {
		return
	}
	if err := e.audit.Append(kind, payload); err != nil {
		e.logger.Error("failed to append audit entry",
			zap.String("kind", kind),
			zap.Error(err))
	}
}
