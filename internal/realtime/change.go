package realtime

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type EventType string

const (
	EventInsert EventType = "insert"
	EventUpdate EventType = "update"
	EventDelete EventType = "delete"
	EventAll    EventType = "*"
)

// Change is one row-level change delivered to subscribers
type Change struct {
	Table           string         `json:"table"`
	Event           EventType      `json:"event"`
	New             map[string]any `json:"new,omitempty"`
	Old             map[string]any `json:"old,omitempty"`
	CommitTimestamp time.Time      `json:"commit_timestamp"`
}

// Record returns the row a filter is evaluated against
func (c Change) Record() map[string]any {
	if c.Event == EventDelete || c.New == nil {
		return c.Old
	}
	return c.New
}

// Filter is a column predicate in the "column=eq.value" form
type Filter struct {
	Column string
	Value  string
}

func ParseFilter(raw string) (*Filter, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	column, rest, ok := strings.Cut(raw, "=")
	if !ok || column == "" {
		return nil, fmt.Errorf("invalid filter %q: expected column=eq.value", raw)
	}
	value, ok := strings.CutPrefix(rest, "eq.")
	if !ok {
		return nil, fmt.Errorf("invalid filter %q: only eq is supported", raw)
	}
	return &Filter{Column: column, Value: value}, nil
}

func (f *Filter) String() string {
	return f.Column + "=eq." + f.Value
}

func (f *Filter) Matches(row map[string]any) bool {
	if f == nil {
		return true
	}
	v, ok := row[f.Column]
	if !ok || v == nil {
		return false
	}
	return fmt.Sprint(v) == f.Value
}

// Channel scopes a subscription to one table, an event kind and an optional filter
type Channel struct {
	Table  string
	Event  EventType
	Filter *Filter
}

func ParseEvent(raw string) (EventType, error) {
	switch EventType(strings.ToLower(raw)) {
	case "", EventAll:
		return EventAll, nil
	case EventInsert:
		return EventInsert, nil
	case EventUpdate:
		return EventUpdate, nil
	case EventDelete:
		return EventDelete, nil
	}
	return "", fmt.Errorf("unknown event %q", raw)
}

func (c Channel) Matches(change Change) bool {
	if c.Table != change.Table {
		return false
	}
	if c.Event != EventAll && c.Event != "" && c.Event != change.Event {
		return false
	}
	return c.Filter.Matches(change.Record())
}

// ToRow flattens a model into the JSON shape subscribers receive
func ToRow(v any) map[string]any {
	if v == nil {
		return nil
	}
	if m, ok := v.(map[string]any); ok {
		return m
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var row map[string]any
	if err := json.Unmarshal(b, &row); err != nil {
		return nil
	}
	return row
}
