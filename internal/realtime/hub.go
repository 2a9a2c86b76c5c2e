// Package realtime fans routed chat messages out to the websocket and SSE
// subscribers of each conversation channel.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/zulandar/switchboard/internal/chat"
	"github.com/zulandar/switchboard/internal/metrics"
	"github.com/zulandar/switchboard/internal/models"
)

// Event is the JSON frame pushed to subscribers.
type Event struct {
	Type           string              `json:"type"`
	ConversationID string              `json:"chat_user_id,omitempty"`
	Message        *models.ChatMessage `json:"message,omitempty"`
	Error          string              `json:"error,omitempty"`
}

// Subscriber receives encoded events. Send must not block.
type Subscriber interface {
	SubscriberID() string
	Send(payload []byte) error
	Close(code int, reason string)
}

// Hub tracks subscribers and the conversation channels they joined.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]Subscriber            // subscriber ID -> subscriber
	rooms       map[string]map[string]Subscriber // conversationID -> subscriber ID -> subscriber
	memberships map[string]map[string]struct{}   // subscriber ID -> conversationIDs
}

var _ chat.Delivery = (*Hub)(nil)

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[string]Subscriber),
		rooms:       make(map[string]map[string]Subscriber),
		memberships: make(map[string]map[string]struct{}),
	}
}

// Attach registers sub. Attaching twice is a no-op.
func (h *Hub) Attach(sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subscribers[sub.SubscriberID()]; ok {
		return
	}
	h.subscribers[sub.SubscriberID()] = sub
	h.memberships[sub.SubscriberID()] = make(map[string]struct{})
	metrics.Subscribers.Inc()
}

// Detach removes sub from every channel it joined.
func (h *Hub) Detach(sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.detachLocked(sub.SubscriberID())
}

// Join subscribes sub to conversationID. It reports false if sub is not
// attached.
func (h *Hub) Join(conversationID string, sub Subscriber) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := sub.SubscriberID()
	if _, ok := h.subscribers[id]; !ok {
		return false
	}
	room := h.rooms[conversationID]
	if room == nil {
		room = make(map[string]Subscriber)
		h.rooms[conversationID] = room
	}
	room[id] = sub
	h.memberships[id][conversationID] = struct{}{}
	return true
}

// Leave unsubscribes sub from conversationID.
func (h *Hub) Leave(conversationID string, sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(conversationID, sub.SubscriberID())
}

// Members returns the number of subscribers on conversationID.
func (h *Hub) Members(conversationID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[conversationID])
}

// Deliver sends msg to every subscriber of conversationID. A channel with
// no subscribers is not an error. Subscribers that fail to accept the event
// are reported in the returned error and stay attached until their own
// handler detaches them.
func (h *Hub) Deliver(ctx context.Context, conversationID string, msg models.ChatMessage) error {
	payload, err := json.Marshal(Event{Type: "message", ConversationID: conversationID, Message: &msg})
	if err != nil {
		return fmt.Errorf("realtime: encode message %d: %w", msg.ID, err)
	}

	var errs []error
	for id, sub := range h.members(conversationID) {
		if err := sub.Send(payload); err != nil {
			errs = append(errs, fmt.Errorf("subscriber %s: %w", id, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("realtime: deliver to %s: %w", conversationID, errors.Join(errs...))
	}
	return nil
}

// members snapshots the room of conversationID so sends happen outside h.mu.
func (h *Hub) members(conversationID string) map[string]Subscriber {
	h.mu.RLock()
	defer h.mu.RUnlock()
	room := h.rooms[conversationID]
	out := make(map[string]Subscriber, len(room))
	for id, sub := range room {
		out[id] = sub
	}
	return out
}

// Close detaches and closes every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	subs := make([]Subscriber, 0, len(h.subscribers))
	for id, sub := range h.subscribers {
		subs = append(subs, sub)
		h.detachLocked(id)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		sub.Close(closeGoingAway, "server shutdown")
	}
}

func (h *Hub) detachLocked(id string) {
	if _, ok := h.subscribers[id]; !ok {
		return
	}
	for conversationID := range h.memberships[id] {
		h.leaveLocked(conversationID, id)
	}
	delete(h.memberships, id)
	delete(h.subscribers, id)
	metrics.Subscribers.Dec()
}

func (h *Hub) leaveLocked(conversationID, id string) {
	room := h.rooms[conversationID]
	if room == nil {
		return
	}
	delete(room, id)
	if len(room) == 0 {
		delete(h.rooms, conversationID)
	}
	if m, ok := h.memberships[id]; ok {
		delete(m, conversationID)
	}
}
