package mapping

import (
	"context"
	"errors"
	"reflect"
	"testing"

	common_models "go-glsync/internal/common/models"
	"go-glsync/internal/features/connection"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type fixture struct {
	svc    MappingService
	repo   *MockMappingRepo
	conns  *MockConnectionRepo
	tables *MockTables
	pub    *recordingPublisher
	connID primitive.ObjectID
}

func newFixture(withConnection bool) *fixture {
	f := &fixture{
		repo:   newMockMappingRepo(),
		conns:  &MockConnectionRepo{},
		tables: &MockTables{tables: map[string]bool{"gl_customers": true, "gl_customers_v2": true}},
		pub:    &recordingPublisher{},
	}
	if withConnection {
		conn := &connection.Connection{AppName: "Sales", AppID: "app-1", APIKey: "k"}
		_ = f.conns.Create(context.Background(), conn)
		f.connID = conn.ID
	}
	f.svc = NewMappingService(f.repo, f.conns, f.tables, &MockAuditService{}, f.pub, zap.NewNop())
	return f
}

func (f *fixture) create(t *testing.T) *Mapping {
	t.Helper()
	m := &Mapping{ConnectionID: f.connID, GlideTable: "native-table-abc", SupabaseTable: "gl_customers"}
	if err := f.svc.Create(context.Background(), m); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return m
}

func TestCreateSeedsRowID(t *testing.T) {
	f := newFixture(true)
	m := f.create(t)

	stored, _ := f.repo.Get(context.Background(), m.ID.Hex())
	got, ok := stored.ColumnMappings[RowIDKey]
	if !ok {
		t.Fatal("created mapping has no $rowID entry")
	}
	if !reflect.DeepEqual(got, RowIDMapping()) {
		t.Errorf("$rowID entry = %+v", got)
	}
	if stored.Enabled {
		t.Error("new mappings must start disabled")
	}
	if stored.SyncDirection != DirectionToSupabase {
		t.Errorf("sync_direction = %q, want to_supabase", stored.SyncDirection)
	}
}

func TestCreateKeepsSuppliedColumns(t *testing.T) {
	f := newFixture(true)
	m := &Mapping{
		ConnectionID:  f.connID,
		GlideTable:    "native-table-abc",
		SupabaseTable: "gl_customers",
		ColumnMappings: ColumnMappings{
			"Name": {GlideColumnName: "Name", SupabaseColumnName: "name", DataType: TypeString},
		},
	}
	if err := f.svc.Create(context.Background(), m); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if len(m.ColumnMappings) != 2 {
		t.Errorf("expected supplied column plus $rowID, got %v", m.ColumnMappings.Keys())
	}
}

func TestCreateValidation(t *testing.T) {
	tests := []struct {
		name    string
		mapping func(f *fixture) *Mapping
	}{
		{"missing connection", func(f *fixture) *Mapping {
			return &Mapping{GlideTable: "t", SupabaseTable: "gl_customers"}
		}},
		{"missing glide table", func(f *fixture) *Mapping {
			return &Mapping{ConnectionID: f.connID, SupabaseTable: "gl_customers"}
		}},
		{"missing target table", func(f *fixture) *Mapping {
			return &Mapping{ConnectionID: f.connID, GlideTable: "t"}
		}},
		{"unknown connection", func(f *fixture) *Mapping {
			return &Mapping{ConnectionID: primitive.NewObjectID(), GlideTable: "t", SupabaseTable: "gl_customers"}
		}},
		{"table does not exist", func(f *fixture) *Mapping {
			return &Mapping{ConnectionID: f.connID, GlideTable: "t", SupabaseTable: "gl_missing"}
		}},
		{"bad direction", func(f *fixture) *Mapping {
			return &Mapping{ConnectionID: f.connID, GlideTable: "t", SupabaseTable: "gl_customers", SyncDirection: "sideways"}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(true)
			err := f.svc.Create(context.Background(), tt.mapping(f))
			if !errors.Is(err, common_models.ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
			if len(f.repo.mappings) != 0 {
				t.Error("invalid mapping was persisted")
			}
		})
	}
}

func TestCreateWithoutConnections(t *testing.T) {
	f := newFixture(false)
	err := f.svc.Create(context.Background(), &Mapping{GlideTable: "t", SupabaseTable: "gl_customers"})
	if !errors.Is(err, ErrNoConnections) {
		t.Fatalf("expected ErrNoConnections, got %v", err)
	}

	form, err := f.svc.NewForm(context.Background())
	if err != nil {
		t.Fatalf("NewForm() error = %v", err)
	}
	if form.Redirect != ConnectionCreatePath {
		t.Errorf("redirect = %q, want %q", form.Redirect, ConnectionCreatePath)
	}
}

func TestToggleRoundTrip(t *testing.T) {
	f := newFixture(true)
	ctx := context.Background()
	m := f.create(t)
	before, _ := f.repo.Get(ctx, m.ID.Hex())

	on, err := f.svc.ToggleEnabled(ctx, m.ID.Hex())
	if err != nil {
		t.Fatalf("ToggleEnabled() error = %v", err)
	}
	if !on.Enabled {
		t.Error("first toggle should enable")
	}
	if _, err := f.svc.ToggleEnabled(ctx, m.ID.Hex()); err != nil {
		t.Fatalf("ToggleEnabled() error = %v", err)
	}

	after, _ := f.repo.Get(ctx, m.ID.Hex())
	if !reflect.DeepEqual(before, after) {
		t.Errorf("double toggle changed the mapping:\nbefore %+v\nafter  %+v", before, after)
	}
	for _, call := range f.repo.updateCalls {
		if len(call) != 1 {
			t.Errorf("toggle updated more than enabled: %v", call)
		}
		if _, ok := call["enabled"]; !ok {
			t.Errorf("toggle update without enabled: %v", call)
		}
	}
}

func TestChangeTargetTable(t *testing.T) {
	f := newFixture(true)
	ctx := context.Background()
	m := f.create(t)

	if _, err := f.svc.ChangeTargetTable(ctx, m.ID.Hex(), "gl_nope"); !errors.Is(err, common_models.ErrValidation) {
		t.Fatalf("expected ErrValidation for unknown table, got %v", err)
	}

	updated, err := f.svc.ChangeTargetTable(ctx, m.ID.Hex(), "gl_customers_v2")
	if err != nil {
		t.Fatalf("ChangeTargetTable() error = %v", err)
	}
	if updated.SupabaseTable != "gl_customers_v2" {
		t.Errorf("supabase_table = %q", updated.SupabaseTable)
	}
}

func TestSaveColumnMappingsReseedsRowID(t *testing.T) {
	f := newFixture(true)
	ctx := context.Background()
	m := f.create(t)

	saved, err := f.svc.SaveColumnMappings(ctx, m.ID.Hex(), ColumnMappings{
		"Email": {GlideColumnName: "Email", SupabaseColumnName: "email", DataType: TypeEmail},
	})
	if err != nil {
		t.Fatalf("SaveColumnMappings() error = %v", err)
	}
	if _, ok := saved.ColumnMappings[RowIDKey]; !ok {
		t.Error("$rowID entry was dropped")
	}
	if len(f.repo.updateCalls) != 1 {
		t.Errorf("expected a single update, got %d", len(f.repo.updateCalls))
	}

	_, err = f.svc.SaveColumnMappings(ctx, m.ID.Hex(), ColumnMappings{
		"a": {GlideColumnName: "A", SupabaseColumnName: "dup", DataType: TypeString},
		"b": {GlideColumnName: "B", SupabaseColumnName: "dup", DataType: TypeString},
	})
	if !errors.Is(err, common_models.ErrValidation) {
		t.Errorf("expected ErrValidation for duplicate target column, got %v", err)
	}
}

func TestDeleteMapping(t *testing.T) {
	f := newFixture(true)
	ctx := context.Background()
	m := f.create(t)

	if err := f.svc.Delete(ctx, m.ID.Hex()); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := f.svc.Get(ctx, m.ID.Hex()); !errors.Is(err, common_models.ErrNotFound) {
		t.Errorf("Get() after delete = %v", err)
	}
	if err := f.svc.Delete(ctx, m.ID.Hex()); !errors.Is(err, common_models.ErrNotFound) {
		t.Errorf("second Delete() = %v, want ErrNotFound", err)
	}
}
