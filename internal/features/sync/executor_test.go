package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	common_models "go-glsync/internal/common/models"
	"go-glsync/internal/features/connection"
	"go-glsync/internal/features/mapping"
	"go-glsync/internal/glsync"

	"go.uber.org/zap"
)

type executorFixture struct {
	exec     *ExecutorServiceImpl
	mappings *MockMappingRepo
	conns    *MockConnectionRepo
	logs     *MockSyncLogRepo
	errs     *MockErrors
	remote   *MockGlsync
	tracker  *MockTracker
	audit    *MockAuditService
	pub      *recordingPublisher
	delays   []time.Duration
	now      time.Time
	conn     *connection.Connection
	mapping  *mapping.Mapping
}

func newExecutorFixture(t *testing.T, enabled bool) *executorFixture {
	t.Helper()
	f := &executorFixture{
		mappings: &MockMappingRepo{},
		conns:    &MockConnectionRepo{},
		logs:     &MockSyncLogRepo{},
		errs:     &MockErrors{},
		remote:   &MockGlsync{resp: &glsync.Response{Success: true}},
		tracker:  &MockTracker{},
		audit:    &MockAuditService{},
		pub:      &recordingPublisher{},
		now:      time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
	}
	f.conn = f.conns.add(connection.Connection{AppName: "Inventory", AppID: "app-1", APIKey: "key-1234"})
	f.mapping = f.mappings.add(mapping.Mapping{
		ConnectionID:  f.conn.ID,
		GlideTable:    "native-table-1",
		SupabaseTable: "gl_products",
		Enabled:       enabled,
	})

	f.exec = &ExecutorServiceImpl{
		Mappings:     f.mappings,
		Connections:  f.conns,
		Logs:         f.logs,
		Errors:       f.errs,
		Glsync:       f.remote,
		Tracker:      f.tracker,
		AuditService: f.audit,
		Publisher:    f.pub,
		Logger:       zap.NewNop(),
		RefreshDelay: 2 * time.Second,
		StaleAfter:   10 * time.Minute,
		claims:       map[string]struct{}{},
		now:          func() time.Time { return f.now },
		afterFunc: func(d time.Duration, fn func()) {
			f.delays = append(f.delays, d)
			fn()
		},
	}
	return f
}

func (f *executorFixture) trigger() (*TriggerResult, error) {
	return f.exec.Trigger(context.Background(), f.conn.ID.Hex(), f.mapping.ID.Hex())
}

func TestTrigger_CompletesRun(t *testing.T) {
	f := newExecutorFixture(t, true)
	f.remote.resp = &glsync.Response{
		Success:          true,
		RecordsProcessed: intPtr(40),
		FailedRecords:    intPtr(2),
		Errors: []glsync.RecordFailure{
			{ErrorType: "transform", ErrorMessage: "bad date", Retryable: true},
			{ErrorType: "database", ErrorMessage: "null value", Retryable: false},
		},
	}

	result, err := f.trigger()
	if err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	if !result.Success || *result.RecordsProcessed != 40 || *result.FailedRecords != 2 {
		t.Errorf("result = %+v", result)
	}

	latest, _ := f.logs.Latest(context.Background(), f.mapping.ID.Hex())
	if latest.Status != StatusCompleted {
		t.Errorf("status = %s, want completed", latest.Status)
	}
	if latest.TotalRecords != 42 {
		t.Errorf("total = %d, want processed+failed", latest.TotalRecords)
	}
	if latest.CompletedAt == nil || latest.InFlight {
		t.Error("terminal run should be closed")
	}
	if result.LogID != latest.ID.Hex() {
		t.Errorf("log id = %s, want %s", result.LogID, latest.ID.Hex())
	}
	if len(f.errs.recorded) != 2 {
		t.Errorf("recorded %d errors, want 2", len(f.errs.recorded))
	}

	conn, _ := f.conns.Get(context.Background(), f.conn.ID.Hex())
	if conn.LastSync == nil || !conn.LastSync.Equal(f.now) {
		t.Errorf("last_sync = %v", conn.LastSync)
	}
	if len(f.delays) != 1 || f.delays[0] != 2*time.Second {
		t.Errorf("refresh delays = %v", f.delays)
	}
	if len(f.tracker.refreshed) != 1 || f.tracker.refreshed[0] != f.mapping.ID.Hex() {
		t.Errorf("refreshed = %v", f.tracker.refreshed)
	}
	if len(f.audit.actions) != 1 || f.audit.actions[0] != common_models.AuditActionSync {
		t.Errorf("audit = %v", f.audit.actions)
	}
	// insert, processing, completed
	if len(f.pub.changes) != 3 {
		t.Errorf("published %d changes, want 3", len(f.pub.changes))
	}
}

func TestTrigger_RemoteFailureFailsRun(t *testing.T) {
	f := newExecutorFixture(t, true)
	f.remote.resp = &glsync.Response{Success: false, Error: "Glide API returned 401"}

	result, err := f.trigger()
	if err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	if result.Success || result.Error != "Glide API returned 401" {
		t.Errorf("result = %+v", result)
	}

	latest, _ := f.logs.Latest(context.Background(), f.mapping.ID.Hex())
	if latest.Status != StatusFailed || latest.Message != "Glide API returned 401" {
		t.Errorf("log = %+v", latest)
	}
	conn, _ := f.conns.Get(context.Background(), f.conn.ID.Hex())
	if conn.LastSync == nil {
		t.Error("last_sync should be set after a failed run too")
	}
}

func TestTrigger_TransportErrorReturnsResult(t *testing.T) {
	f := newExecutorFixture(t, true)
	f.remote.resp = nil
	f.remote.err = glsync.ErrTransport

	result, err := f.trigger()
	if !errors.Is(err, glsync.ErrTransport) {
		t.Fatalf("err = %v, want transport error", err)
	}
	if result == nil || result.Success || result.LogID == "" {
		t.Fatalf("result = %+v", result)
	}
	latest, _ := f.logs.Latest(context.Background(), f.mapping.ID.Hex())
	if latest.Status != StatusFailed {
		t.Errorf("status = %s, want failed", latest.Status)
	}
}

func TestTrigger_Guards(t *testing.T) {
	tests := []struct {
		name    string
		enabled bool
		seed    func(f *executorFixture)
		connID  func(f *executorFixture) string
		wantErr error
	}{
		{
			name:    "disabled mapping",
			enabled: false,
			wantErr: ErrMappingDisabled,
		},
		{
			name:    "latest run processing",
			enabled: true,
			seed: func(f *executorFixture) {
				_ = f.logs.Create(context.Background(), &SyncLog{MappingID: f.mapping.ID, Status: StatusProcessing, StartedAt: f.now.Add(-time.Minute)})
			},
			wantErr: ErrSyncInProgress,
		},
		{
			name:    "latest run started",
			enabled: true,
			seed: func(f *executorFixture) {
				_ = f.logs.Create(context.Background(), &SyncLog{MappingID: f.mapping.ID, Status: StatusStarted, StartedAt: f.now})
			},
			wantErr: ErrSyncInProgress,
		},
		{
			name:    "mapping of another connection",
			enabled: true,
			connID:  func(f *executorFixture) string { return "65f0c0ffee0000000000abcd" },
			wantErr: common_models.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newExecutorFixture(t, tt.enabled)
			if tt.seed != nil {
				tt.seed(f)
			}
			connID := f.conn.ID.Hex()
			if tt.connID != nil {
				connID = tt.connID(f)
			}

			_, err := f.exec.Trigger(context.Background(), connID, f.mapping.ID.Hex())
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if f.remote.callCount() != 0 {
				t.Error("remote function must not be called")
			}
		})
	}
}

func TestTrigger_FailsAbandonedRun(t *testing.T) {
	f := newExecutorFixture(t, true)
	_ = f.logs.Create(context.Background(), &SyncLog{MappingID: f.mapping.ID, Status: StatusProcessing, StartedAt: f.now.Add(-time.Hour)})

	result, err := f.trigger()
	if err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	if !result.Success {
		t.Errorf("result = %+v", result)
	}

	got := f.logs.statuses(f.mapping.ID)
	want := []LogStatus{StatusFailed, StatusCompleted}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("statuses = %v, want %v", got, want)
	}
}

func TestTrigger_ConcurrentCallsRunOnce(t *testing.T) {
	f := newExecutorFixture(t, true)
	f.remote.entered = make(chan struct{}, 1)
	f.remote.block = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := f.trigger()
		done <- err
	}()
	<-f.remote.entered

	if _, err := f.trigger(); !errors.Is(err, ErrSyncInProgress) {
		t.Errorf("second trigger err = %v, want ErrSyncInProgress", err)
	}

	close(f.remote.block)
	if err := <-done; err != nil {
		t.Fatalf("first trigger: %v", err)
	}
	if f.remote.callCount() != 1 {
		t.Errorf("remote calls = %d, want 1", f.remote.callCount())
	}

	// finished runs no longer block
	f.remote.block = nil
	if _, err := f.trigger(); err != nil {
		t.Errorf("trigger after completion: %v", err)
	}
}

func TestTriggerEnabled_SkipsDisabledAndInFlight(t *testing.T) {
	f := newExecutorFixture(t, true)
	f.mappings.add(mapping.Mapping{ConnectionID: f.conn.ID, GlideTable: "t2", SupabaseTable: "gl_orders", Enabled: false})
	busy := f.mappings.add(mapping.Mapping{ConnectionID: f.conn.ID, GlideTable: "t3", SupabaseTable: "gl_users", Enabled: true})
	_ = f.logs.Create(context.Background(), &SyncLog{MappingID: busy.ID, Status: StatusProcessing, StartedAt: f.now})

	n, err := f.exec.TriggerEnabled(context.Background())
	if err != nil {
		t.Fatalf("TriggerEnabled: %v", err)
	}
	if n != 1 {
		t.Errorf("triggered = %d, want 1", n)
	}
	if f.remote.callCount() != 1 {
		t.Errorf("remote calls = %d, want 1", f.remote.callCount())
	}
}
