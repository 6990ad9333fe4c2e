package system

import (
	"testing"
	"time"

	"go-glsync/internal/database"
	"go-glsync/internal/realtime"

	"go.uber.org/zap"
)

func newSession(hub *realtime.Hub) *socketSession {
	return &socketSession{
		hub:    hub,
		outbox: make(chan ServerMessage, outboxSize),
		done:   make(chan struct{}),
		subs:   make(map[string]*realtime.Subscription),
	}
}

func next(t *testing.T, s *socketSession) ServerMessage {
	t.Helper()
	select {
	case msg := <-s.outbox:
		return msg
	case <-time.After(time.Second):
		t.Fatal("no message")
	}
	return ServerMessage{}
}

func TestSocketSession_SubscribeFilterAndUnsubscribe(t *testing.T) {
	hub := realtime.NewHub(zap.NewNop())
	s := newSession(hub)

	s.handle(ClientMessage{Type: msgSubscribe, ID: "logs", Table: database.SyncLogsCollection, Event: "insert", Filter: "mapping_id=eq.m1"})
	if msg := next(t, s); msg.Type != msgSubscribed || msg.ID != "logs" {
		t.Fatalf("ack = %+v", msg)
	}

	hub.Emit(database.SyncLogsCollection, realtime.EventInsert, map[string]any{"mapping_id": "m2"}, nil)
	hub.Emit(database.SyncLogsCollection, realtime.EventUpdate, map[string]any{"mapping_id": "m1"}, nil)
	hub.Emit(database.SyncLogsCollection, realtime.EventInsert, map[string]any{"mapping_id": "m1", "status": "started"}, nil)

	msg := next(t, s)
	if msg.Type != msgChange || msg.ID != "logs" || msg.Change.New["status"] != "started" {
		t.Errorf("change = %+v", msg)
	}

	s.handle(ClientMessage{Type: msgUnsubscribe, ID: "logs"})
	if hub.Len() != 0 {
		t.Errorf("hub subscriptions = %d, want 0", hub.Len())
	}
}

func TestSocketSession_Rejects(t *testing.T) {
	tests := []struct {
		name string
		msg  ClientMessage
	}{
		{"unknown table", ClientMessage{Type: msgSubscribe, ID: "a", Table: "users"}},
		{"missing id", ClientMessage{Type: msgSubscribe, Table: database.MappingsCollection}},
		{"bad event", ClientMessage{Type: msgSubscribe, ID: "a", Table: database.MappingsCollection, Event: "upsert"}},
		{"bad filter", ClientMessage{Type: msgSubscribe, ID: "a", Table: database.MappingsCollection, Filter: "enabled=gt.1"}},
		{"unknown type", ClientMessage{Type: "ping", ID: "a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hub := realtime.NewHub(zap.NewNop())
			s := newSession(hub)
			s.handle(tt.msg)
			if msg := next(t, s); msg.Type != msgError || msg.Error == "" {
				t.Errorf("reply = %+v, want error", msg)
			}
			if hub.Len() != 0 {
				t.Errorf("hub subscriptions = %d, want 0", hub.Len())
			}
		})
	}
}

func TestSocketSession_CloseAll(t *testing.T) {
	hub := realtime.NewHub(zap.NewNop())
	s := newSession(hub)
	s.handle(ClientMessage{Type: msgSubscribe, ID: "a", Table: database.MappingsCollection})
	s.handle(ClientMessage{Type: msgSubscribe, ID: "b", Table: database.ConnectionsCollection})
	next(t, s)
	next(t, s)

	close(s.done)
	s.closeAll()
	if hub.Len() != 0 {
		t.Errorf("hub subscriptions = %d after disconnect", hub.Len())
	}
}
