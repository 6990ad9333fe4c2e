package syncerror

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	common_models "go-glsync/internal/common/models"
	"go-glsync/internal/glsync"
	"go-glsync/internal/realtime"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type MockSyncErrorRepo struct {
	errs map[string]*SyncError
}

func newMockRepo(errs ...SyncError) *MockSyncErrorRepo {
	m := &MockSyncErrorRepo{errs: map[string]*SyncError{}}
	_ = m.InsertMany(context.Background(), errs)
	return m
}

func (m *MockSyncErrorRepo) InsertMany(ctx context.Context, errs []SyncError) error {
	for i := range errs {
		if errs[i].ID.IsZero() {
			errs[i].ID = primitive.NewObjectID()
		}
		stored := errs[i]
		m.errs[stored.ID.Hex()] = &stored
	}
	return nil
}

func (m *MockSyncErrorRepo) Get(ctx context.Context, id string) (*SyncError, error) {
	e, ok := m.errs[id]
	if !ok {
		return nil, fmt.Errorf("sync error %s: %w", id, common_models.ErrNotFound)
	}
	out := *e
	return &out, nil
}

func (m *MockSyncErrorRepo) List(ctx context.Context, mappingID string, includeResolved bool) ([]SyncError, error) {
	out := []SyncError{}
	for _, e := range m.errs {
		if mappingID != "" && e.MappingID.Hex() != mappingID {
			continue
		}
		if !includeResolved && !e.Active() {
			continue
		}
		out = append(out, *e)
	}
	return out, nil
}

func (m *MockSyncErrorRepo) Resolve(ctx context.Context, id, notes string, at time.Time) (bool, error) {
	e, ok := m.errs[id]
	if !ok {
		return false, common_models.ErrNotFound
	}
	if e.ResolvedAt != nil {
		return false, nil
	}
	e.ResolvedAt = &at
	e.ResolutionNotes = notes
	return true, nil
}

func (m *MockSyncErrorRepo) ResolveAll(ctx context.Context, mappingID, notes string, at time.Time) (int64, error) {
	var n int64
	for _, e := range m.errs {
		if e.MappingID.Hex() == mappingID && e.ResolvedAt == nil {
			resolvedAt := at
			e.ResolvedAt = &resolvedAt
			n++
		}
	}
	return n, nil
}

func (m *MockSyncErrorRepo) CountActive(ctx context.Context, mappingIDs []string) (map[string]int, error) {
	counts := map[string]int{}
	for _, e := range m.errs {
		if e.Active() {
			counts[e.MappingID.Hex()]++
		}
	}
	return counts, nil
}

func (m *MockSyncErrorRepo) EnsureIndexes(ctx context.Context) error { return nil }

type MockGlsync struct {
	resp  *glsync.Response
	err   error
	calls int
	data  any
}

func (m *MockGlsync) TestConnection(ctx context.Context, connectionID string) (*glsync.Response, error) {
	return nil, errors.New("not used")
}

func (m *MockGlsync) SyncData(ctx context.Context, connectionID, mappingID, logID string) (*glsync.Response, error) {
	return nil, errors.New("not used")
}

func (m *MockGlsync) RetryFailure(ctx context.Context, mappingID, errorID string, recordData any) (*glsync.Response, error) {
	m.calls++
	m.data = recordData
	return m.resp, m.err
}

type MockAuditService struct{}

func (m *MockAuditService) LogChange(ctx context.Context, action common_models.AuditAction, module string, recordID string, changes map[string]common_models.Change) error {
	return nil
}

func (m *MockAuditService) ListLogs(ctx context.Context, filters map[string]interface{}, page, limit int64) ([]common_models.AuditLog, error) {
	return nil, nil
}

func newService(repo SyncErrorRepository, client glsync.Client) *SyncErrorServiceImpl {
	return NewSyncErrorService(repo, client, &MockAuditService{}, realtime.NopPublisher{}, zap.NewNop()).(*SyncErrorServiceImpl)
}

func TestResolveIsIdempotent(t *testing.T) {
	e := SyncError{MappingID: primitive.NewObjectID(), ErrorType: TypeDatabase}
	repo := newMockRepo(e)
	var id string
	for k := range repo.errs {
		id = k
	}

	svc := newService(repo, &MockGlsync{})
	first := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return first }

	resolved, err := svc.Resolve(context.Background(), id, "fixed upstream")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if resolved.ResolvedAt == nil || !resolved.ResolvedAt.Equal(first) {
		t.Fatalf("resolved_at = %v", resolved.ResolvedAt)
	}

	svc.now = func() time.Time { return first.Add(time.Hour) }
	again, err := svc.Resolve(context.Background(), id, "")
	if err != nil {
		t.Fatalf("second Resolve() error = %v", err)
	}
	if !again.ResolvedAt.Equal(first) {
		t.Errorf("second resolve moved resolved_at to %v", again.ResolvedAt)
	}
	if again.ResolutionNotes != "fixed upstream" {
		t.Errorf("notes = %q", again.ResolutionNotes)
	}
}

func TestRetry(t *testing.T) {
	record := map[string]any{"$rowID": "row-1", "Name": "Ada"}

	tests := []struct {
		name         string
		retryable    bool
		resp         *glsync.Response
		err          error
		wantOK       bool
		wantErr      error
		wantCalls    int
		wantResolved bool
	}{
		{"not retryable", false, nil, nil, false, ErrNotRetryable, 0, false},
		{"success resolves", true, &glsync.Response{Success: true}, nil, true, nil, 1, true},
		{"rejected stays active", true, &glsync.Response{Success: false, Error: "still invalid"}, nil, false, ErrRetryFailed, 1, false},
		{"transport stays active", true, nil, fmt.Errorf("down: %w", glsync.ErrTransport), false, glsync.ErrTransport, 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMockRepo(SyncError{
				MappingID:  primitive.NewObjectID(),
				ErrorType:  TypeTransform,
				RecordData: record,
				Retryable:  tt.retryable,
			})
			var id string
			for k := range repo.errs {
				id = k
			}
			client := &MockGlsync{resp: tt.resp, err: tt.err}

			ok, err := newService(repo, client).Retry(context.Background(), id)
			if ok != tt.wantOK {
				t.Errorf("ok = %v, want %v", ok, tt.wantOK)
			}
			if tt.wantErr == nil && err != nil {
				t.Errorf("unexpected error %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
			if client.calls != tt.wantCalls {
				t.Errorf("remote calls = %d, want %d", client.calls, tt.wantCalls)
			}
			if tt.wantCalls > 0 && client.data.(map[string]any)["$rowID"] != "row-1" {
				t.Errorf("retry sent %v", client.data)
			}
			stored, _ := repo.Get(context.Background(), id)
			if (stored.ResolvedAt != nil) != tt.wantResolved {
				t.Errorf("resolved = %v, want %v", stored.ResolvedAt != nil, tt.wantResolved)
			}
		})
	}
}

func TestRecordDefaultsAndCounts(t *testing.T) {
	repo := newMockRepo()
	svc := newService(repo, &MockGlsync{})
	mappingID, logID := primitive.NewObjectID(), primitive.NewObjectID()

	n, err := svc.Record(context.Background(), mappingID, logID, []glsync.RecordFailure{
		{ErrorMessage: "bad date", RecordData: map[string]any{"a": 1}, Retryable: true},
		{ErrorType: TypeDatabase, ErrorMessage: "constraint"},
	})
	if err != nil || n != 2 {
		t.Fatalf("Record() = %d, %v", n, err)
	}

	counts, _ := svc.CountActive(context.Background(), nil)
	if counts[mappingID.Hex()] != 2 {
		t.Errorf("active count = %d", counts[mappingID.Hex()])
	}
	for _, e := range repo.errs {
		if e.ErrorType == "" {
			t.Error("error type must default")
		}
		if e.LogID == nil || *e.LogID != logID {
			t.Error("log id not linked")
		}
	}

	resolved, _ := svc.ResolveAll(context.Background(), mappingID.Hex(), "")
	if resolved != 2 {
		t.Errorf("ResolveAll() = %d", resolved)
	}
	active, _ := svc.ListErrors(context.Background(), mappingID.Hex(), false)
	if len(active) != 0 {
		t.Errorf("active after ResolveAll = %d", len(active))
	}
}
