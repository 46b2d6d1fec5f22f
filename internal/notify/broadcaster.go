// ABOUTME: In-memory fan-out of committed notifications to stream watchers
// ABOUTME: Subscribers register per deployment; slow subscribers drop rather than block

package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/2389/coven-acl/internal/accesscontrol"
	"github.com/2389/coven-acl/internal/token"
)

// subscriberBufferSize is the channel buffer for each subscriber.
const subscriberBufferSize = 64

// Notification is one committed event, from either log of a deployment.
// Exactly one of Access and Transfer is set.
type Notification struct {
	DeploymentID string
	Access       *accesscontrol.Event
	Transfer     *token.TransferEvent
	At           time.Time
}

// Kind names the notification for wire encodings.
func (n Notification) Kind() string {
	switch {
	case n.Access != nil:
		return string(n.Access.Kind)
	case n.Transfer != nil:
		return "transfer"
	default:
		return ""
	}
}

// Broadcaster provides pub/sub for committed notifications. Publish is
// called only after the events are persisted, so watchers never see an
// event that a restart would lose.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]map[string]chan Notification // deploymentID -> subID -> ch
	logger      *slog.Logger
}

// NewBroadcaster creates a broadcaster. Pass nil logger for default.
func NewBroadcaster(logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		subscribers: make(map[string]map[string]chan Notification),
		logger:      logger.With("component", "notify"),
	}
}

// Subscribe registers for notifications on a deployment. The subscription is
// removed and its channel closed when ctx is cancelled.
func (b *Broadcaster) Subscribe(ctx context.Context, deploymentID string) (<-chan Notification, string) {
	subID := uuid.New().String()
	ch := make(chan Notification, subscriberBufferSize)

	b.mu.Lock()
	if _, ok := b.subscribers[deploymentID]; !ok {
		b.subscribers[deploymentID] = make(map[string]chan Notification)
	}
	b.subscribers[deploymentID][subID] = ch
	b.mu.Unlock()

	b.logger.Debug("subscriber added", "deployment", deploymentID, "sub_id", subID)

	go func() {
		<-ctx.Done()
		b.Unsubscribe(deploymentID, subID)
	}()

	return ch, subID
}

// Publish delivers notifications in order to every subscriber of their
// deployment. Non-blocking: each notification that does not fit in a
// subscriber's buffer is dropped for that subscriber and logged.
func (b *Broadcaster) Publish(deploymentID string, batch ...Notification) {
	if len(batch) == 0 {
		return
	}

	// Send under the read lock so Unsubscribe cannot close a channel mid-send.
	b.mu.RLock()
	defer b.mu.RUnlock()

	for subID, ch := range b.subscribers[deploymentID] {
		for _, n := range batch {
			select {
			case ch <- n:
			default:
				b.logger.Warn("dropped notification for slow subscriber",
					"deployment", deploymentID,
					"sub_id", subID,
					"kind", n.Kind())
			}
		}
	}
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Broadcaster) Unsubscribe(deploymentID, subID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.subscribers[deploymentID]
	if !ok {
		return
	}
	ch, exists := subs[subID]
	if !exists {
		return
	}

	delete(subs, subID)
	close(ch)
	if len(subs) == 0 {
		delete(b.subscribers, deploymentID)
	}

	b.logger.Debug("subscriber removed", "deployment", deploymentID, "sub_id", subID)
}

// SubscriberCount returns how many watchers a deployment has.
func (b *Broadcaster) SubscriberCount(deploymentID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[deploymentID])
}

// Close shuts down the broadcaster and closes all subscriber channels.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, subs := range b.subscribers {
		for subID, ch := range subs {
			close(ch)
			delete(subs, subID)
		}
		delete(b.subscribers, id)
	}
}
