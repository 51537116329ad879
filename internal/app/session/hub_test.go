package session

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dinefind/dinefind/internal/pkg/config"
)

type fakeSub struct {
	id   Identity
	fail bool

	mu   sync.Mutex
	msgs []ServerMessage
}

func (f *fakeSub) Send(msg ServerMessage) error {
	if f.fail {
		return errors.New("peer gone")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msg)
	return nil
}

func (f *fakeSub) Identity() Identity { return f.id }

func (f *fakeSub) received() []ServerMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]ServerMessage, len(f.msgs))
	copy(out, f.msgs)
	return out
}

func testConfig(requireAuth bool) *config.Config {
	return &config.Config{
		Features: config.FeaturesConfig{WSRequireAuth: requireAuth},
		Session: config.SessionConfig{
			HeartbeatInterval: 30 * time.Second,
			IdleTimeout:       5 * time.Minute,
			WriteTimeout:      10 * time.Second,
			BacklogCap:        50,
			BacklogTTL:        2 * time.Minute,
			PendingTTL:        90 * time.Second,
		},
	}
}

func newTestHub(t *testing.T, requireAuth bool) *Hub {
	t.Helper()
	h := NewHub(testConfig(requireAuth), zap.NewNop())
	t.Cleanup(h.Stop)
	return h
}

func TestSubscribeValidation(t *testing.T) {
	tests := []struct {
		name      string
		channel   Channel
		requestID string
		reason    string
	}{
		{"missing requestId", ChannelSearch, "", NackMissingRequestID},
		{"unknown channel", Channel("events"), "req-1", NackInvalidChannel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHub(t, true)
			reply := h.Subscribe(&fakeSub{}, tt.channel, tt.requestID)
			assert.Equal(t, TypeSubNack, reply.Type)
			assert.Equal(t, tt.reason, reply.Reason)
		})
	}
}

func TestSubscribeOwnership(t *testing.T) {
	owner := OwnerRecord{UserID: "u1", SessionID: "s1"}

	tests := []struct {
		name        string
		requireAuth bool
		identity    Identity
		wantType    string
		wantReason  string
	}{
		{"owner matches", true, Identity{UserID: "u1", SessionID: "s1"}, TypeSubAck, ""},
		{"different user", true, Identity{UserID: "u2", SessionID: "s1"}, TypeSubNack, NackUserMismatch},
		{"same user different session", true, Identity{UserID: "u1", SessionID: "s2"}, TypeSubNack, NackSessionMismatch},
		{"anonymous bypass only without auth", false, Identity{UserID: "u1", SessionID: "anonymous"}, TypeSubAck, ""},
		{"anonymous rejected when auth required", true, Identity{UserID: "u1", SessionID: "anonymous"}, TypeSubNack, NackSessionMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHub(t, tt.requireAuth)
			h.RegisterJob("req-1", owner)

			reply := h.Subscribe(&fakeSub{id: tt.identity}, ChannelSearch, "req-1")
			assert.Equal(t, tt.wantType, reply.Type)
			assert.Equal(t, tt.wantReason, reply.Reason)
		})
	}
}

func TestSubscribeBeforeJobExistsIsPromoted(t *testing.T) {
	h := newTestHub(t, true)
	sub := &fakeSub{id: Identity{UserID: "u1", SessionID: "s1"}}

	reply := h.Subscribe(sub, ChannelSearch, "req-1")
	require.Equal(t, TypeSubAck, reply.Type)

	// Not yet promoted: frames published now are backlogged, not delivered.
	h.Publish(ChannelSearch, "req-1", NewStatus("req-1", StatusPending))
	assert.Empty(t, sub.received())

	h.RegisterJob("req-1", OwnerRecord{UserID: "u1", SessionID: "s1"})

	// Promotion drained the backlog.
	msgs := sub.received()
	require.Len(t, msgs, 1)
	assert.Equal(t, StatusPending, msgs[0].Status)

	// And the subscription is live from here on.
	h.Publish(ChannelSearch, "req-1", NewStatus("req-1", StatusCompleted))
	msgs = sub.received()
	require.Len(t, msgs, 2)
	assert.Equal(t, StatusCompleted, msgs[1].Status)
}

func TestPendingPromotionRechecksOwnership(t *testing.T) {
	h := newTestHub(t, true)
	intruder := &fakeSub{id: Identity{UserID: "u2", SessionID: "s9"}}

	reply := h.Subscribe(intruder, ChannelSearch, "req-1")
	require.Equal(t, TypeSubAck, reply.Type)

	h.RegisterJob("req-1", OwnerRecord{UserID: "u1", SessionID: "s1"})
	h.Publish(ChannelSearch, "req-1", NewStatus("req-1", StatusCompleted))

	assert.Empty(t, intruder.received())
}

func TestBacklogReplayCapsAndOrders(t *testing.T) {
	h := newTestHub(t, true)
	h.RegisterJob("req-1", OwnerRecord{UserID: "u1", SessionID: "s1"})

	for i := 0; i < 60; i++ {
		h.Publish(ChannelSearch, "req-1", NewStatus("req-1", fmt.Sprintf("status-%d", i)))
	}

	sub := &fakeSub{id: Identity{UserID: "u1", SessionID: "s1"}}
	reply := h.Subscribe(sub, ChannelSearch, "req-1")
	require.Equal(t, TypeSubAck, reply.Type)

	// Oldest ten dropped at the cap; the newest fifty replay in order.
	msgs := sub.received()
	require.Len(t, msgs, 50)
	for i, msg := range msgs {
		assert.Equal(t, fmt.Sprintf("status-%d", i+10), msg.Status)
	}
}

func TestBacklogEntryExpiry(t *testing.T) {
	b := NewBacklog(50, 20*time.Millisecond, zap.NewNop())
	defer b.Stop()

	b.Append("search:req-1", NewStatus("req-1", StatusPending))
	time.Sleep(40 * time.Millisecond)
	b.Append("search:req-1", NewStatus("req-1", StatusCompleted))

	msgs := b.Drain("search:req-1")
	require.Len(t, msgs, 1)
	assert.Equal(t, StatusCompleted, msgs[0].Status)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	h := newTestHub(t, true)
	h.RegisterJob("req-1", OwnerRecord{UserID: "u1", SessionID: "s1"})

	sub := &fakeSub{id: Identity{UserID: "u1", SessionID: "s1"}}
	h.Subscribe(sub, ChannelSearch, "req-1")
	h.Unsubscribe(sub, ChannelSearch, "req-1")

	h.Publish(ChannelSearch, "req-1", NewStatus("req-1", StatusCompleted))
	assert.Empty(t, sub.received())
}

func TestPublishSurvivesFailingSubscriber(t *testing.T) {
	h := newTestHub(t, true)
	h.RegisterJob("req-1", OwnerRecord{UserID: "u1", SessionID: "s1"})

	identity := Identity{UserID: "u1", SessionID: "s1"}
	broken := &fakeSub{id: identity, fail: true}
	healthy := &fakeSub{id: identity}
	h.Subscribe(broken, ChannelSearch, "req-1")
	h.Subscribe(healthy, ChannelSearch, "req-1")

	h.Publish(ChannelSearch, "req-1", NewStatus("req-1", StatusCompleted))
	assert.Len(t, healthy.received(), 1)
}

func TestDetachRemovesEverySubscription(t *testing.T) {
	h := newTestHub(t, true)
	h.RegisterJob("req-1", OwnerRecord{UserID: "u1", SessionID: "s1"})
	h.RegisterJob("req-2", OwnerRecord{UserID: "u1", SessionID: "s1"})

	sub := &fakeSub{id: Identity{UserID: "u1", SessionID: "s1"}}
	h.Subscribe(sub, ChannelSearch, "req-1")
	h.Subscribe(sub, ChannelAssistant, "req-2")
	h.Detach(sub)

	h.Publish(ChannelSearch, "req-1", NewStatus("req-1", StatusCompleted))
	h.Publish(ChannelAssistant, "req-2", NewStreamDone("req-2", "done"))
	assert.Empty(t, sub.received())
}

func TestKeyExcludesSession(t *testing.T) {
	assert.Equal(t, "search:req-1", Key(ChannelSearch, "req-1"))
}

func TestOwnerRegistryFirstRecordWins(t *testing.T) {
	r := NewOwnerRegistry()
	defer r.Stop()

	r.RegisterJob("req-1", OwnerRecord{UserID: "u1"})
	r.RegisterJob("req-1", OwnerRecord{UserID: "u2"})

	rec, ok := r.Owner("req-1")
	require.True(t, ok)
	assert.Equal(t, "u1", rec.UserID)
}

func TestConcurrentPublishAndSubscribeNeverStrands(t *testing.T) {
	// A frame published while a subscription activates must reach the
	// subscriber either directly or through the backlog drain, never sit in
	// the backlog behind an active subscription.
	for i := 0; i < 200; i++ {
		h := NewHub(testConfig(false), zap.NewNop())
		requestID := fmt.Sprintf("req-%d", i)
		h.RegisterJob(requestID, OwnerRecord{SessionID: "s1", CreatedAt: time.Now()})
		sub := &fakeSub{id: Identity{SessionID: "s1"}}

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			h.Publish(ChannelSearch, requestID, NewStatus(requestID, StatusCompleted))
		}()
		go func() {
			defer wg.Done()
			h.Subscribe(sub, ChannelSearch, requestID)
		}()
		wg.Wait()

		require.Len(t, sub.received(), 1, "iteration %d", i)
		h.Stop()
	}
}
