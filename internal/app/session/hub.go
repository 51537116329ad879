package session

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/dinefind/dinefind/internal/app/observability/metrics"
	"github.com/dinefind/dinefind/internal/pkg/config"
)

// anonymousSession is the session identity of unauthenticated connections
// when auth is not required.
const anonymousSession = "anonymous"

// Hub owns the subscription, ownership and backlog state of the session
// layer and implements the Publisher port. Publish order per key is
// preserved per subscriber; cross-key ordering is not guaranteed.
type Hub struct {
	// mu serializes publishing against subscription activation so a frame
	// can never land in the backlog after the activation drain and strand.
	// Subscriber.Send never blocks, so mu may be held across the send loop.
	mu          sync.Mutex
	subs        *SubscriptionManager
	owners      *OwnerRegistry
	backlog     *Backlog
	requireAuth bool
	logger      *zap.Logger
}

var _ Publisher = (*Hub)(nil)

func NewHub(cfg *config.Config, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		subs:        NewSubscriptionManager(cfg.Session.PendingTTL),
		owners:      NewOwnerRegistry(),
		backlog:     NewBacklog(cfg.Session.BacklogCap, cfg.Session.BacklogTTL, logger),
		requireAuth: cfg.Features.WSRequireAuth,
		logger:      logger,
	}
}

// RegisterJob records job ownership and promotes any pending subscriptions
// whose identity passes the ownership check. Promotion drains the key's
// backlog into the new subscriber in FIFO order.
func (h *Hub) RegisterJob(requestID string, owner OwnerRecord) {
	h.owners.RegisterJob(requestID, owner)

	for _, p := range h.subs.TakePending(requestID) {
		if reason := h.authorize(p.sub.Identity(), requestID); reason != "" {
			// Silent expiry path: the subscriber was told sub_ack is pending
			// promotion; a mismatched owner just never promotes.
			h.logger.Info("ws_pending_rejected",
				zap.String("request_id", requestID),
				zap.String("reason", reason),
			)
			continue
		}
		h.activate(p.sub, p.channel, p.requestID)
	}
}

// Subscribe processes a subscribe frame and returns the ack or nack frame to
// send. Jobs that do not exist yet become pending subscriptions.
func (h *Hub) Subscribe(sub Subscriber, channel Channel, requestID string) ServerMessage {
	id := sub.Identity()
	h.logger.Info("ws_subscribe_attempt",
		zap.String("channel", string(channel)),
		zap.String("request_id", requestID),
		zap.String("user_id", id.UserID),
	)

	if requestID == "" {
		return NewSubNack(channel, requestID, NackMissingRequestID)
	}
	if !ValidChannel(string(channel)) {
		return NewSubNack(channel, requestID, NackInvalidChannel)
	}

	if _, known := h.owners.Owner(requestID); !known {
		h.subs.RegisterPending(sub, channel, requestID)
		metrics.Get().WSPendingSubscriptions.Add(context.Background(), 1)
		return NewSubAck(channel, requestID)
	}

	if reason := h.authorize(id, requestID); reason != "" {
		return NewSubNack(channel, requestID, reason)
	}

	h.activate(sub, channel, requestID)
	return NewSubAck(channel, requestID)
}

// authorize applies the ownership rules. Empty return means allowed.
func (h *Hub) authorize(id Identity, requestID string) string {
	owner, ok := h.owners.Owner(requestID)
	if !ok {
		return ""
	}
	if owner.UserID != "" && owner.UserID != id.UserID {
		return NackUserMismatch
	}
	if owner.SessionID != "" && owner.SessionID != id.SessionID {
		// Dev-only bypass: anonymous subscriber while auth is disabled.
		// Production always enforces the session check.
		if !h.requireAuth && id.SessionID == anonymousSession {
			return ""
		}
		return NackSessionMismatch
	}
	return ""
}

// activate adds the subscription and replays the key's backlog in order.
func (h *Hub) activate(sub Subscriber, channel Channel, requestID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.subs.Add(sub, channel, requestID)
	metrics.Get().WSSubscriptionsActive.Add(context.Background(), 1)

	for _, msg := range h.backlog.Drain(Key(channel, requestID)) {
		if err := sub.Send(msg); err != nil {
			h.logger.Warn("Backlog replay send failed",
				zap.String("request_id", requestID),
				zap.Error(err),
			)
			return
		}
	}
}

// Unsubscribe removes one subscription. Idempotent.
func (h *Hub) Unsubscribe(sub Subscriber, channel Channel, requestID string) {
	if h.subs.Remove(sub, channel, requestID) {
		metrics.Get().WSSubscriptionsActive.Add(context.Background(), -1)
	}
}

// Detach removes a closing connection from every subscription. Idempotent.
func (h *Hub) Detach(sub Subscriber) {
	removed := h.subs.RemoveAll(sub)
	if removed > 0 {
		metrics.Get().WSSubscriptionsActive.Add(context.Background(), -int64(removed))
	}
}

// Publish delivers a frame to the key's subscribers, or backlogs it when
// nobody is listening. Delivery is best-effort; failed sends are counted,
// never retried.
func (h *Hub) Publish(channel Channel, requestID string, msg ServerMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs := h.subs.Subscribers(channel, requestID)
	if len(subs) == 0 {
		h.backlog.Append(Key(channel, requestID), msg)
		metrics.Get().WSMessagesBacklogged.Add(context.Background(), 1)
		return
	}

	sent, failed := 0, 0
	for _, sub := range subs {
		if err := sub.Send(msg); err != nil {
			failed++
			continue
		}
		sent++
	}
	metrics.Get().WSMessagesPublished.Add(context.Background(), int64(sent))
	if failed > 0 {
		h.logger.Warn("Publish partially failed",
			zap.String("channel", string(channel)),
			zap.String("request_id", requestID),
			zap.Int("sent", sent),
			zap.Int("failed", failed),
		)
	}
}

// Stop terminates the janitors.
func (h *Hub) Stop() {
	h.subs.Stop()
	h.owners.Stop()
	h.backlog.Stop()
}
