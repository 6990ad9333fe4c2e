package realtime

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

const defaultBuffer = 64

// Publisher is what services use to announce their own mutations
type Publisher interface {
	Emit(table string, event EventType, newRecord, oldRecord any)
}

// Subscription is a scoped delivery handle; Close must be called when the owner goes away
type Subscription struct {
	id      uint64
	channel Channel
	events  chan Change
	hub     *Hub
	once    sync.Once
}

func (s *Subscription) Events() <-chan Change {
	return s.events
}

func (s *Subscription) Channel() Channel {
	return s.channel
}

func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.remove(s.id)
		close(s.events)
	})
}

// Hub fans changes out to matching subscriptions
type Hub struct {
	mu     sync.RWMutex
	subs   map[uint64]*Subscription
	nextID uint64
	buffer int
	log    *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		subs:   make(map[uint64]*Subscription),
		buffer: defaultBuffer,
		log:    log,
	}
}

func (h *Hub) Subscribe(channel Channel) *Subscription {
	if channel.Event == "" {
		channel.Event = EventAll
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	sub := &Subscription{
		id:      h.nextID,
		channel: channel,
		events:  make(chan Change, h.buffer),
		hub:     h,
	}
	h.subs[sub.id] = sub
	return sub
}

// Listen runs fn for every matching change until the returned func is called
func (h *Hub) Listen(channel Channel, fn func(Change)) (unsubscribe func()) {
	sub := h.Subscribe(channel)
	go func() {
		for change := range sub.Events() {
			fn(change)
		}
	}()
	return sub.Close
}

// Publish never blocks; a subscriber with a full buffer misses the change
func (h *Hub) Publish(change Change) {
	if change.CommitTimestamp.IsZero() {
		change.CommitTimestamp = time.Now().UTC()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subs {
		if !sub.channel.Matches(change) {
			continue
		}
		select {
		case sub.events <- change:
		default:
			h.log.Warn("realtime subscriber is slow, dropping change",
				zap.String("table", change.Table),
				zap.String("event", string(change.Event)),
			)
		}
	}
}

func (h *Hub) Emit(table string, event EventType, newRecord, oldRecord any) {
	h.Publish(Change{
		Table: table,
		Event: event,
		New:   ToRow(newRecord),
		Old:   ToRow(oldRecord),
	})
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) remove(id uint64) {
	h.mu.Lock()
	delete(h.subs, id)
	h.mu.Unlock()
}

// NopPublisher is used when changes are sourced from the database instead of the services
type NopPublisher struct{}

func (NopPublisher) Emit(string, EventType, any, any) {}
