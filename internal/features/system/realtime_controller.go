package system

import (
	"encoding/json"
	stdsync "sync"

	"go-glsync/internal/database"
	"go-glsync/internal/features/sync"
	"go-glsync/internal/realtime"

	"github.com/gofiber/contrib/websocket"
	"go.uber.org/zap"
)

const (
	msgSubscribe   = "subscribe"
	msgUnsubscribe = "unsubscribe"
	msgSubscribed  = "subscribed"
	msgChange      = "change"
	msgError       = "error"

	outboxSize = 64
)

// SubscribableTables are the channels a realtime client may listen on
var SubscribableTables = map[string]bool{
	database.ConnectionsCollection: true,
	database.MappingsCollection:    true,
	database.SyncLogsCollection:    true,
	database.SyncErrorsCollection:  true,
	sync.MappingStatusChannel:      true,
}

// ClientMessage is what a socket sends to manage its subscriptions
type ClientMessage struct {
	Type   string `json:"type"`
	ID     string `json:"id"`
	Table  string `json:"table,omitempty"`
	Event  string `json:"event,omitempty"`
	Filter string `json:"filter,omitempty"`
}

type ServerMessage struct {
	Type   string           `json:"type"`
	ID     string           `json:"id,omitempty"`
	Change *realtime.Change `json:"change,omitempty"`
	Error  string           `json:"error,omitempty"`
}

type RealtimeController struct {
	hub    *realtime.Hub
	logger *zap.Logger
}

func NewRealtimeController(hub *realtime.Hub, log *zap.Logger) *RealtimeController {
	return &RealtimeController{hub: hub, logger: log}
}

// socketSession owns the subscriptions of one connection. All writes go
// through outbox so only the writer goroutine touches the socket.
type socketSession struct {
	hub    *realtime.Hub
	outbox chan ServerMessage
	done   chan struct{}

	mu   stdsync.Mutex
	subs map[string]*realtime.Subscription
}

func (s *socketSession) send(msg ServerMessage) {
	select {
	case s.outbox <- msg:
	case <-s.done:
	}
}

func (s *socketSession) handle(msg ClientMessage) {
	switch msg.Type {
	case msgSubscribe:
		s.subscribe(msg)
	case msgUnsubscribe:
		s.unsubscribe(msg.ID)
	default:
		s.send(ServerMessage{Type: msgError, ID: msg.ID, Error: "unknown message type " + msg.Type})
	}
}

func (s *socketSession) subscribe(msg ClientMessage) {
	if msg.ID == "" {
		s.send(ServerMessage{Type: msgError, Error: "subscription id is required"})
		return
	}
	if !SubscribableTables[msg.Table] {
		s.send(ServerMessage{Type: msgError, ID: msg.ID, Error: "unknown table " + msg.Table})
		return
	}
	event, err := realtime.ParseEvent(msg.Event)
	if err != nil {
		s.send(ServerMessage{Type: msgError, ID: msg.ID, Error: err.Error()})
		return
	}
	filter, err := realtime.ParseFilter(msg.Filter)
	if err != nil {
		s.send(ServerMessage{Type: msgError, ID: msg.ID, Error: err.Error()})
		return
	}

	sub := s.hub.Subscribe(realtime.Channel{Table: msg.Table, Event: event, Filter: filter})
	s.mu.Lock()
	if old, ok := s.subs[msg.ID]; ok {
		old.Close()
	}
	s.subs[msg.ID] = sub
	s.mu.Unlock()

	go func(id string) {
		for change := range sub.Events() {
			s.send(ServerMessage{Type: msgChange, ID: id, Change: &change})
		}
	}(msg.ID)

	s.send(ServerMessage{Type: msgSubscribed, ID: msg.ID})
}

func (s *socketSession) unsubscribe(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sub, ok := s.subs[id]; ok {
		sub.Close()
		delete(s.subs, id)
	}
}

func (s *socketSession) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sub := range s.subs {
		sub.Close()
		delete(s.subs, id)
	}
}

// HandleRealtime serves the subscribe/unsubscribe protocol over one socket
func (h *RealtimeController) HandleRealtime(c *websocket.Conn) {
	session := &socketSession{
		hub:    h.hub,
		outbox: make(chan ServerMessage, outboxSize),
		done:   make(chan struct{}),
		subs:   make(map[string]*realtime.Subscription),
	}
	defer session.closeAll()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case msg := <-session.outbox:
				if err := c.WriteJSON(msg); err != nil {
					h.logger.Debug("realtime write failed", zap.Error(err))
					return
				}
			case <-session.done:
				return
			}
		}
	}()

	for {
		_, raw, err := c.ReadMessage()
		if err != nil {
			break
		}
		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			session.send(ServerMessage{Type: msgError, Error: "invalid message"})
			continue
		}
		session.handle(msg)
	}

	close(session.done)
	<-writerDone
}
