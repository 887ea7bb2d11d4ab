package copytrade

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vadiminshakov/copytrade/internal/domain"
	"github.com/vadiminshakov/copytrade/internal/events"
)

// fan-out ceiling: a popular trader must not exhaust goroutines or exchange
// rate limits in one burst
const maxConcurrentFollowers = 8

// Executor places orders on behalf of a follower.
type Executor interface {
	ExecuteOrder(ctx context.Context, userID uuid.UUID, sig *domain.Signal, amount decimal.Decimal, mode domain.ExecMode) (*domain.TradeRecord, error)
}

// NotificationPayload is pushed to a follower when a copyable signal needs
// manual confirmation.
type NotificationPayload struct {
	Signal          *domain.Signal  `json:"signal"`
	EstimatedAmount decimal.Decimal `json:"estimatedAmount"`
	Reason          string          `json:"reason"`
}

// ExecutedPayload is pushed to a follower after an auto-execution filled.
type ExecutedPayload struct {
	SignalID uuid.UUID           `json:"signalId"`
	Trade    *domain.TradeRecord `json:"trade"`
}

// FailurePayload is pushed to a follower when an auto-execution did not fill.
type FailurePayload struct {
	SignalID uuid.UUID `json:"signalId"`
	Symbol   string    `json:"symbol"`
	Error    string    `json:"error"`
}

// Engine replicates trader signals to followers.
type Engine struct {
	follows     domain.FollowRepository
	executor    Executor
	broadcaster *events.Broadcaster
	logger      *zap.Logger
	now         func() time.Time
}

// NewEngine creates a copy-trade engine.
func NewEngine(follows domain.FollowRepository, executor Executor, broadcaster *events.Broadcaster, logger *zap.Logger) *Engine {
	return &Engine{
		follows:     follows,
		executor:    executor,
		broadcaster: broadcaster,
		logger:      logger,
		now:         time.Now,
	}
}

// HandleSignal fans a trader's signal out to every follower. Followers are
// processed concurrently and independently: one follower's rejection or
// execution failure never affects the others. Signals without a trader
// attribution have nobody following them and are skipped.
func (e *Engine) HandleSignal(ctx context.Context, sig *domain.Signal) error {
	if sig.TraderID == nil {
		e.logger.Debug("signal has no trader attribution, skipping copy-trade fan-out",
			zap.String("signal", sig.ID.String()))
		return nil
	}

	followers, err := e.follows.ListByTrader(ctx, *sig.TraderID)
	if err != nil {
		return errors.Wrap(err, "failed to list followers")
	}
	if len(followers) == 0 {
		return nil
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(maxConcurrentFollowers)
	for _, follower := range followers {
		eg.Go(func() error {
			e.handleFollower(ctx, follower, sig)
			return nil
		})
	}
	_ = eg.Wait()

	return nil
}

func (e *Engine) handleFollower(ctx context.Context, rel *domain.FollowRelationship, sig *domain.Signal) {
	decision := EvaluateDecision(rel.Config, sig)
	if !decision.ShouldCopy {
		e.logger.Debug("signal filtered out for follower",
			zap.String("follower", rel.FollowerID.String()),
			zap.String("signal", sig.ID.String()),
			zap.String("reason", decision.Reason))
		return
	}

	if !rel.Config.AutoExecute {
		e.publishToUser(rel.FollowerID, events.TypeCopyTradeNotification, NotificationPayload{
			Signal:          sig,
			EstimatedAmount: decision.EstimatedAmount,
			Reason:          decision.Reason,
		})
		return
	}

	record, err := e.executor.ExecuteOrder(ctx, rel.FollowerID, sig, decision.EstimatedAmount, domain.ExecModeAuto)
	if err != nil {
		eventType := events.TypeCopyTradeError
		if errors.Is(err, domain.ErrRiskCheckFailed) {
			eventType = events.TypeCopyTradeFailed
		}
		e.logger.Warn("copy-trade execution failed",
			zap.String("follower", rel.FollowerID.String()),
			zap.String("signal", sig.ID.String()),
			zap.Error(err))
		e.publishToUser(rel.FollowerID, eventType, FailurePayload{
			SignalID: sig.ID,
			Symbol:   sig.Symbol,
			Error:    err.Error(),
		})
		return
	}

	e.logger.Info("copy-trade executed",
		zap.String("follower", rel.FollowerID.String()),
		zap.String("signal", sig.ID.String()),
		zap.String("symbol", sig.Symbol),
		zap.String("qty", record.ExecutedQty.String()))
	e.publishToUser(rel.FollowerID, events.TypeCopyTradeExecuted, ExecutedPayload{
		SignalID: sig.ID,
		Trade:    record,
	})
}

func (e *Engine) publishToUser(userID uuid.UUID, eventType string, payload interface{}) {
	e.broadcaster.Publish(events.UserTopic(userID.String()), events.Event{
		Type:      eventType,
		Payload:   payload,
		Timestamp: e.now(),
	})
}

// Follow subscribes a follower to a trader, replacing any previous config.
func (e *Engine) Follow(ctx context.Context, followerID, traderID uuid.UUID, config domain.CopyTradeConfig) error {
	if followerID == traderID {
		return errors.New("a trader cannot follow themselves")
	}
	rel := &domain.FollowRelationship{
		FollowerID: followerID,
		TraderID:   traderID,
		Config:     config,
		CreatedAt:  e.now(),
	}
	if err := e.follows.Put(ctx, rel); err != nil {
		return errors.Wrap(err, "failed to save follow relationship")
	}
	return nil
}

// Unfollow removes the relationship. Unfollowing a trader who was never
// followed is not an error.
func (e *Engine) Unfollow(ctx context.Context, followerID, traderID uuid.UUID) error {
	return e.follows.Delete(ctx, followerID, traderID)
}

// UpdateConfig replaces the follower's copy-trade config for one trader.
func (e *Engine) UpdateConfig(ctx context.Context, followerID, traderID uuid.UUID, config domain.CopyTradeConfig) error {
	return e.follows.UpdateConfig(ctx, followerID, traderID, config)
}

// Followers lists everyone currently copying the trader.
func (e *Engine) Followers(ctx context.Context, traderID uuid.UUID) ([]*domain.FollowRelationship, error) {
	return e.follows.ListByTrader(ctx, traderID)
}
