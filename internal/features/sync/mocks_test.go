package sync

import (
	"context"
	"fmt"
	stdsync "sync"
	"time"

	common_models "go-glsync/internal/common/models"
	"go-glsync/internal/features/connection"
	"go-glsync/internal/features/mapping"
	"go-glsync/internal/glsync"
	"go-glsync/internal/realtime"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type MockMappingRepo struct {
	mappings map[string]*mapping.Mapping
}

func (m *MockMappingRepo) add(mp mapping.Mapping) *mapping.Mapping {
	if m.mappings == nil {
		m.mappings = map[string]*mapping.Mapping{}
	}
	if mp.ID.IsZero() {
		mp.ID = primitive.NewObjectID()
	}
	m.mappings[mp.ID.Hex()] = &mp
	return &mp
}

func (m *MockMappingRepo) Create(ctx context.Context, mp *mapping.Mapping) error {
	m.add(*mp)
	return nil
}

func (m *MockMappingRepo) Get(ctx context.Context, id string) (*mapping.Mapping, error) {
	stored, ok := m.mappings[id]
	if !ok {
		return nil, fmt.Errorf("mapping %s: %w", id, common_models.ErrNotFound)
	}
	out := *stored
	return &out, nil
}

func (m *MockMappingRepo) List(ctx context.Context, filter mapping.Filter) ([]mapping.Mapping, error) {
	out := []mapping.Mapping{}
	for _, stored := range m.mappings {
		if filter.Enabled != nil && stored.Enabled != *filter.Enabled {
			continue
		}
		out = append(out, *stored)
	}
	return out, nil
}

func (m *MockMappingRepo) ListIDsByConnection(ctx context.Context, connectionID string) ([]string, error) {
	return nil, nil
}

func (m *MockMappingRepo) Update(ctx context.Context, id string, updates map[string]interface{}) error {
	return nil
}

func (m *MockMappingRepo) Delete(ctx context.Context, id string) error {
	return nil
}

func (m *MockMappingRepo) DeleteMany(ctx context.Context, ids []string) (int64, error) {
	return 0, nil
}

func (m *MockMappingRepo) EnsureIndexes(ctx context.Context) error {
	return nil
}

type MockConnectionRepo struct {
	mu          stdsync.Mutex
	connections map[string]*connection.Connection
	getErr      error
}

func (m *MockConnectionRepo) add(c connection.Connection) *connection.Connection {
	if m.connections == nil {
		m.connections = map[string]*connection.Connection{}
	}
	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	m.connections[c.ID.Hex()] = &c
	return &c
}

func (m *MockConnectionRepo) Create(ctx context.Context, c *connection.Connection) error {
	m.add(*c)
	return nil
}

func (m *MockConnectionRepo) Get(ctx context.Context, id string) (*connection.Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	stored, ok := m.connections[id]
	if !ok {
		return nil, fmt.Errorf("connection %s: %w", id, common_models.ErrNotFound)
	}
	out := *stored
	return &out, nil
}

func (m *MockConnectionRepo) List(ctx context.Context) ([]connection.Connection, error) {
	out := []connection.Connection{}
	for _, c := range m.connections {
		out = append(out, *c)
	}
	return out, nil
}

func (m *MockConnectionRepo) Count(ctx context.Context) (int64, error) {
	return int64(len(m.connections)), nil
}

func (m *MockConnectionRepo) Update(ctx context.Context, id string, updates map[string]interface{}) error {
	return nil
}

func (m *MockConnectionRepo) SetLastSync(ctx context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return m.getErr
	}
	stored, ok := m.connections[id]
	if !ok {
		return common_models.ErrNotFound
	}
	stored.LastSync = &at
	return nil
}

func (m *MockConnectionRepo) Delete(ctx context.Context, id string) error {
	return nil
}

func (m *MockConnectionRepo) EnsureIndexes(ctx context.Context) error {
	return nil
}

// MockSyncLogRepo mirrors the stored transitions and the in-flight unique index
type MockSyncLogRepo struct {
	mu   stdsync.Mutex
	logs []*SyncLog
}

func (m *MockSyncLogRepo) Create(ctx context.Context, log *SyncLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	log.InFlight = log.Status.InFlight()
	for _, l := range m.logs {
		if l.MappingID == log.MappingID && l.InFlight && log.InFlight {
			return ErrSyncInProgress
		}
	}
	if log.ID.IsZero() {
		log.ID = primitive.NewObjectID()
	}
	stored := *log
	m.logs = append(m.logs, &stored)
	return nil
}

func (m *MockSyncLogRepo) find(id primitive.ObjectID) *SyncLog {
	for _, l := range m.logs {
		if l.ID == id {
			return l
		}
	}
	return nil
}

func (m *MockSyncLogRepo) Get(ctx context.Context, id string) (*SyncLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	oid, _ := primitive.ObjectIDFromHex(id)
	l := m.find(oid)
	if l == nil {
		return nil, common_models.ErrNotFound
	}
	out := *l
	return &out, nil
}

func (m *MockSyncLogRepo) Latest(ctx context.Context, mappingID string) (*SyncLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *SyncLog
	for _, l := range m.logs {
		if l.MappingID.Hex() != mappingID {
			continue
		}
		if latest == nil || !l.StartedAt.Before(latest.StartedAt) {
			latest = l
		}
	}
	if latest == nil {
		return nil, nil
	}
	out := *latest
	return &out, nil
}

func (m *MockSyncLogRepo) LatestByMappings(ctx context.Context, mappingIDs []string) (map[string]*SyncLog, error) {
	out := map[string]*SyncLog{}
	for _, id := range mappingIDs {
		l, _ := m.Latest(ctx, id)
		if l != nil {
			out[id] = l
		}
	}
	return out, nil
}

func (m *MockSyncLogRepo) List(ctx context.Context, mappingID string, limit int64) ([]SyncLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []SyncLog{}
	for i := len(m.logs) - 1; i >= 0; i-- {
		if mappingID != "" && m.logs[i].MappingID.Hex() != mappingID {
			continue
		}
		out = append(out, *m.logs[i])
		if limit > 0 && int64(len(out)) == limit {
			break
		}
	}
	return out, nil
}

func (m *MockSyncLogRepo) Since(ctx context.Context, since time.Time) ([]SyncLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []SyncLog{}
	for _, l := range m.logs {
		if since.IsZero() || !l.StartedAt.Before(since) {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (m *MockSyncLogRepo) Advance(ctx context.Context, id primitive.ObjectID, to LogStatus, fields map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l := m.find(id)
	if l == nil {
		return ErrInvalidTransition
	}
	allowed := false
	for _, from := range to.Predecessors() {
		if l.Status == from {
			allowed = true
		}
	}
	if !allowed {
		return ErrInvalidTransition
	}

	l.Status = to
	l.InFlight = to.InFlight()
	for k, v := range fields {
		switch k {
		case "message":
			l.Message = v.(string)
		case "records_processed":
			l.RecordsProcessed = v.(int)
		case "failed_records":
			l.FailedRecords = v.(int)
		case "total_records":
			l.TotalRecords = v.(int)
		case "completed_at":
			at := v.(time.Time)
			l.CompletedAt = &at
		case "details":
			l.Details = v.(map[string]any)
		}
	}
	if to.Terminal() && l.CompletedAt == nil {
		at := time.Now().UTC()
		l.CompletedAt = &at
	}
	return nil
}

func (m *MockSyncLogRepo) EnsureIndexes(ctx context.Context) error {
	return nil
}

func (m *MockSyncLogRepo) statuses(mappingID primitive.ObjectID) []LogStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []LogStatus{}
	for _, l := range m.logs {
		if l.MappingID == mappingID {
			out = append(out, l.Status)
		}
	}
	return out
}

type MockErrors struct {
	mu       stdsync.Mutex
	recorded []glsync.RecordFailure
	active   map[string]int
}

func (m *MockErrors) Record(ctx context.Context, mappingID, logID primitive.ObjectID, failures []glsync.RecordFailure) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recorded = append(m.recorded, failures...)
	return len(failures), nil
}

func (m *MockErrors) CountActive(ctx context.Context, mappingIDs []string) (map[string]int, error) {
	out := map[string]int{}
	for _, id := range mappingIDs {
		if n, ok := m.active[id]; ok {
			out[id] = n
		}
	}
	return out, nil
}

// MockGlsync answers SyncData with resp/err; when block is set each call
// signals entered and waits for block to be closed.
type MockGlsync struct {
	mu      stdsync.Mutex
	resp    *glsync.Response
	err     error
	calls   int
	entered chan struct{}
	block   chan struct{}
}

func (m *MockGlsync) TestConnection(ctx context.Context, connectionID string) (*glsync.Response, error) {
	return &glsync.Response{Success: true}, nil
}

func (m *MockGlsync) SyncData(ctx context.Context, connectionID, mappingID, logID string) (*glsync.Response, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.block != nil {
		m.entered <- struct{}{}
		<-m.block
	}
	return m.resp, m.err
}

func (m *MockGlsync) RetryFailure(ctx context.Context, mappingID, errorID string, recordData any) (*glsync.Response, error) {
	return &glsync.Response{Success: true}, nil
}

func (m *MockGlsync) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type MockAuditService struct {
	mu      stdsync.Mutex
	actions []common_models.AuditAction
}

func (m *MockAuditService) LogChange(ctx context.Context, action common_models.AuditAction, module string, recordID string, changes map[string]common_models.Change) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actions = append(m.actions, action)
	return nil
}

func (m *MockAuditService) ListLogs(ctx context.Context, filters map[string]interface{}, page, limit int64) ([]common_models.AuditLog, error) {
	return nil, nil
}

type recordingPublisher struct {
	mu      stdsync.Mutex
	changes []realtime.Change
}

func (p *recordingPublisher) Emit(table string, event realtime.EventType, newRecord, oldRecord any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.changes = append(p.changes, realtime.Change{Table: table, Event: event, New: realtime.ToRow(newRecord)})
}

type MockTracker struct {
	TrackerService
	mu        stdsync.Mutex
	refreshed []string
}

func (m *MockTracker) Refresh(ctx context.Context, mappingID string) (*SyncStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refreshed = append(m.refreshed, mappingID)
	return &SyncStatus{MappingID: mappingID}, nil
}

func intPtr(v int) *int {
	return &v
}
