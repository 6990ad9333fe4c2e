package mapping

import (
	"context"
	"fmt"
	"time"

	common_models "go-glsync/internal/common/models"
	"go-glsync/internal/features/connection"
	"go-glsync/internal/realtime"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type MockMappingRepo struct {
	mappings    map[string]*Mapping
	updateCalls []map[string]interface{}
}

func newMockMappingRepo() *MockMappingRepo {
	return &MockMappingRepo{mappings: map[string]*Mapping{}}
}

func (m *MockMappingRepo) Create(ctx context.Context, mapping *Mapping) error {
	mapping.ID = primitive.NewObjectID()
	mapping.CreatedAt = time.Now()
	stored := *mapping
	stored.ColumnMappings = mapping.ColumnMappings.Clone()
	m.mappings[mapping.ID.Hex()] = &stored
	return nil
}

func (m *MockMappingRepo) Get(ctx context.Context, id string) (*Mapping, error) {
	stored, ok := m.mappings[id]
	if !ok {
		return nil, fmt.Errorf("mapping %s: %w", id, common_models.ErrNotFound)
	}
	out := *stored
	out.ColumnMappings = stored.ColumnMappings.Clone()
	return &out, nil
}

func (m *MockMappingRepo) List(ctx context.Context, filter Filter) ([]Mapping, error) {
	out := []Mapping{}
	for _, stored := range m.mappings {
		if filter.ConnectionID != "" && stored.ConnectionID.Hex() != filter.ConnectionID {
			continue
		}
		if filter.Enabled != nil && stored.Enabled != *filter.Enabled {
			continue
		}
		out = append(out, *stored)
	}
	return out, nil
}

func (m *MockMappingRepo) ListIDsByConnection(ctx context.Context, connectionID string) ([]string, error) {
	ids := []string{}
	for id, stored := range m.mappings {
		if stored.ConnectionID.Hex() == connectionID {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *MockMappingRepo) Update(ctx context.Context, id string, updates map[string]interface{}) error {
	stored, ok := m.mappings[id]
	if !ok {
		return common_models.ErrNotFound
	}
	m.updateCalls = append(m.updateCalls, updates)
	for k, v := range updates {
		switch k {
		case "enabled":
			stored.Enabled = v.(bool)
		case "supabase_table":
			stored.SupabaseTable = v.(string)
		case "glide_table":
			stored.GlideTable = v.(string)
		case "glide_table_display_name":
			stored.GlideTableDisplayName = v.(string)
		case "sync_direction":
			stored.SyncDirection = v.(SyncDirection)
		case "column_mappings":
			stored.ColumnMappings = v.(ColumnMappings).Clone()
		}
	}
	return nil
}

func (m *MockMappingRepo) Delete(ctx context.Context, id string) error {
	if _, ok := m.mappings[id]; !ok {
		return common_models.ErrNotFound
	}
	delete(m.mappings, id)
	return nil
}

func (m *MockMappingRepo) DeleteMany(ctx context.Context, ids []string) (int64, error) {
	var n int64
	for _, id := range ids {
		if _, ok := m.mappings[id]; ok {
			delete(m.mappings, id)
			n++
		}
	}
	return n, nil
}

func (m *MockMappingRepo) EnsureIndexes(ctx context.Context) error { return nil }

type MockConnectionRepo struct {
	conns []connection.Connection
}

func (m *MockConnectionRepo) Create(ctx context.Context, conn *connection.Connection) error {
	conn.ID = primitive.NewObjectID()
	m.conns = append(m.conns, *conn)
	return nil
}

func (m *MockConnectionRepo) Get(ctx context.Context, id string) (*connection.Connection, error) {
	for _, c := range m.conns {
		if c.ID.Hex() == id {
			out := c
			return &out, nil
		}
	}
	return nil, fmt.Errorf("connection %s: %w", id, common_models.ErrNotFound)
}

func (m *MockConnectionRepo) List(ctx context.Context) ([]connection.Connection, error) {
	return m.conns, nil
}

func (m *MockConnectionRepo) Count(ctx context.Context) (int64, error) {
	return int64(len(m.conns)), nil
}

func (m *MockConnectionRepo) Update(ctx context.Context, id string, updates map[string]interface{}) error {
	return nil
}

func (m *MockConnectionRepo) SetLastSync(ctx context.Context, id string, at time.Time) error {
	return nil
}

func (m *MockConnectionRepo) Delete(ctx context.Context, id string) error { return nil }

func (m *MockConnectionRepo) EnsureIndexes(ctx context.Context) error { return nil }

type MockTables struct {
	tables map[string]bool
	calls  int
}

func (m *MockTables) Exists(ctx context.Context, table string) (bool, error) {
	m.calls++
	return m.tables[table], nil
}

type MockAuditService struct{}

func (m *MockAuditService) LogChange(ctx context.Context, action common_models.AuditAction, module string, recordID string, changes map[string]common_models.Change) error {
	return nil
}

func (m *MockAuditService) ListLogs(ctx context.Context, filters map[string]interface{}, page, limit int64) ([]common_models.AuditLog, error) {
	return nil, nil
}

type recordingPublisher struct {
	events []realtime.EventType
}

func (p *recordingPublisher) Emit(table string, event realtime.EventType, newRecord, oldRecord any) {
	p.events = append(p.events, event)
}
