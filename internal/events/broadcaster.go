// Package events provides an in-process topic broadcaster used to push live
// updates (new signals, copy-trade outcomes) to subscribers. Publishing is
// fire-and-forget: a slow or absent subscriber never blocks the pipeline.
package events

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Well-known topics and event types.
const (
	TopicSignalNew = "signal:new"

	TypeSignalNew             = "signal:new"
	TypeCopyTradeNotification = "copyTrade:notification"
	TypeCopyTradeExecuted     = "copyTrade:executed"
	TypeCopyTradeFailed       = "copyTrade:failed"
	TypeCopyTradeError        = "copyTrade:error"
)

// SignalTopic is the per-symbol signal channel.
func SignalTopic(symbol string) string {
	return fmt.Sprintf("signal:%s", symbol)
}

// UserTopic is the per-user notification channel.
func UserTopic(userID string) string {
	return fmt.Sprintf("user:%s", userID)
}

// Event is a single live-update message.
type Event struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

const subscriberBuffer = 16

// Broadcaster fans events out to per-topic subscribers.
type Broadcaster struct {
	mu     sync.RWMutex
	topics map[string]map[int]chan Event
	nextID int
	logger *zap.Logger
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster(logger *zap.Logger) *Broadcaster {
	return &Broadcaster{
		topics: make(map[string]map[int]chan Event),
		logger: logger,
	}
}

// Subscribe registers a buffered subscription to one topic. The returned
// cancel func must be called to release the subscription.
func (b *Broadcaster) Subscribe(topic string) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	subs, ok := b.topics[topic]
	if !ok {
		subs = make(map[int]chan Event)
		b.topics[topic] = subs
	}
	subs[id] = ch
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if subs, ok := b.topics[topic]; ok {
			if _, exists := subs[id]; exists {
				delete(subs, id)
				close(ch)
				if len(subs) == 0 {
					delete(b.topics, topic)
				}
			}
		}
		b.mu.Unlock()
	}

	return ch, cancel
}

// Publish delivers the event to every subscriber of the topic without
// blocking. Events to subscribers with full buffers are dropped.
func (b *Broadcaster) Publish(topic string, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.topics[topic] {
		select {
		case ch <- event:
		default:
			b.logger.Debug("dropping event for slow subscriber",
				zap.String("topic", topic),
				zap.String("type", event.Type))
		}
	}
}
