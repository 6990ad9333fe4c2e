package tables

import (
	"context"
	"errors"
	"strings"
	"testing"

	common_models "go-glsync/internal/common/models"

	"go.uber.org/zap"
)

type MockCatalog struct {
	existing map[string]bool
	queries  int
	executed [][]string
	execErr  error
}

func (m *MockCatalog) ListTables(ctx context.Context, prefix string) ([]Table, error) {
	m.queries++
	out := []Table{}
	for name := range m.existing {
		if strings.HasPrefix(name, prefix) {
			out = append(out, Table{Name: name})
		}
	}
	return out, nil
}

func (m *MockCatalog) GetColumns(ctx context.Context, table string) ([]Column, error) {
	m.queries++
	return []Column{{Name: "id", DataType: "uuid"}}, nil
}

func (m *MockCatalog) Exists(ctx context.Context, table string) (bool, error) {
	m.queries++
	return m.existing[table], nil
}

func (m *MockCatalog) ExecTx(ctx context.Context, statements []string) error {
	m.executed = append(m.executed, statements)
	return m.execErr
}

type MockAuditService struct{}

func (m *MockAuditService) LogChange(ctx context.Context, action common_models.AuditAction, module string, recordID string, changes map[string]common_models.Change) error {
	return nil
}

func (m *MockAuditService) ListLogs(ctx context.Context, filters map[string]interface{}, page, limit int64) ([]common_models.AuditLog, error) {
	return nil, nil
}

func newService(catalog *MockCatalog) TableService {
	return &TableServiceImpl{
		Catalog:      catalog,
		Prefix:       "gl_",
		AuditService: &MockAuditService{},
		Logger:       zap.NewNop(),
	}
}

func TestCreateTableRejectsBeforeSQL(t *testing.T) {
	tests := []struct {
		name string
		def  TableDefinition
	}{
		{"empty name", TableDefinition{Name: " "}},
		{"missing prefix", TableDefinition{Name: "customers"}},
		{"prefix only", TableDefinition{Name: "gl_"}},
		{"upper case", TableDefinition{Name: "gl_Customers"}},
		{"injection", TableDefinition{Name: `gl_x"; drop table users; --`}},
		{"reserved column", TableDefinition{Name: "gl_x", Columns: []ColumnDefinition{{Name: "id", Type: TypeUUID}}}},
		{"duplicate column", TableDefinition{Name: "gl_x", Columns: []ColumnDefinition{{Name: "a", Type: TypeText}, {Name: "a", Type: TypeText}}}},
		{"unknown type", TableDefinition{Name: "gl_x", Columns: []ColumnDefinition{{Name: "a", Type: "money"}}}},
		{"blank column", TableDefinition{Name: "gl_x", Columns: []ColumnDefinition{{Name: "", Type: TypeText}}}},
		{"nullable primary key", TableDefinition{Name: "gl_x", Columns: []ColumnDefinition{{Name: "code", Type: TypeText, Nullable: true, PrimaryKey: true}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			catalog := &MockCatalog{}
			_, err := newService(catalog).CreateTable(context.Background(), tt.def)
			if !errors.Is(err, common_models.ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
			if catalog.queries != 0 || len(catalog.executed) != 0 {
				t.Error("database was touched for an invalid definition")
			}
		})
	}
}

func TestCreateTableExecutesOneTransaction(t *testing.T) {
	catalog := &MockCatalog{existing: map[string]bool{}}
	def := TableDefinition{
		Name: "gl_customers",
		Columns: []ColumnDefinition{
			{Name: "name", Type: TypeText},
			{Name: "email", Type: TypeText, Nullable: true, Unique: true},
		},
	}

	table, err := newService(catalog).CreateTable(context.Background(), def)
	if err != nil {
		t.Fatalf("CreateTable() error = %v", err)
	}
	if table.ColumnCount != 6 {
		t.Errorf("column count = %d, want 6", table.ColumnCount)
	}
	if len(catalog.executed) != 1 {
		t.Fatalf("expected one transaction, got %d", len(catalog.executed))
	}
	if len(catalog.executed[0]) != 3 {
		t.Errorf("expected create, rls and trigger statements, got %d", len(catalog.executed[0]))
	}
}

func TestCreateTableAlreadyExists(t *testing.T) {
	catalog := &MockCatalog{existing: map[string]bool{"gl_customers": true}}
	_, err := newService(catalog).CreateTable(context.Background(), TableDefinition{Name: "gl_customers"})
	if !errors.Is(err, common_models.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if len(catalog.executed) != 0 {
		t.Error("DDL ran for an existing table")
	}
}

func TestGetColumnsUnknownTable(t *testing.T) {
	catalog := &MockCatalog{existing: map[string]bool{}}
	if _, err := newService(catalog).GetColumns(context.Background(), "gl_nope"); !errors.Is(err, common_models.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestBuildCreateTableSQL(t *testing.T) {
	stmts := BuildCreateTableSQL(TableDefinition{
		Name: "gl_orders",
		Columns: []ColumnDefinition{
			{Name: "total", Type: TypeNumeric},
			{Name: "note", Type: TypeText, Nullable: true},
		},
	})

	create := stmts[0]
	for _, want := range []string{
		`CREATE TABLE public."gl_orders"`,
		"id uuid PRIMARY KEY DEFAULT gen_random_uuid()",
		"glide_row_id text UNIQUE",
		`"total" numeric NOT NULL`,
		`"note" text`,
	} {
		if !strings.Contains(create, want) {
			t.Errorf("create statement missing %q:\n%s", want, create)
		}
	}
	if strings.Contains(create, `"note" text NOT NULL`) {
		t.Error("nullable column rendered NOT NULL")
	}
	if stmts[1] != `ALTER TABLE public."gl_orders" ENABLE ROW LEVEL SECURITY` {
		t.Errorf("rls statement = %q", stmts[1])
	}
	if !strings.Contains(stmts[2], `"update_gl_orders_updated_at"`) || !strings.Contains(stmts[2], "update_updated_at_column()") {
		t.Errorf("trigger statement = %q", stmts[2])
	}
	if strings.Contains(create, "PRIMARY KEY (") {
		t.Error("composite key rendered without primary_key columns")
	}
}

func TestBuildCreateTableSQLCompositeKey(t *testing.T) {
	stmts := BuildCreateTableSQL(TableDefinition{
		Name: "gl_lines",
		Columns: []ColumnDefinition{
			{Name: "order_no", Type: TypeText, PrimaryKey: true},
			{Name: "line_no", Type: TypeInteger, PrimaryKey: true},
			{Name: "qty", Type: TypeInteger},
		},
	})

	create := stmts[0]
	if !strings.Contains(create, `PRIMARY KEY (id, "order_no", "line_no")`) {
		t.Errorf("composite key missing:\n%s", create)
	}
	if !strings.Contains(create, "id uuid NOT NULL DEFAULT gen_random_uuid()") {
		t.Errorf("id column should lose its inline key:\n%s", create)
	}
	if strings.Count(create, "PRIMARY KEY") != 1 {
		t.Errorf("expected exactly one primary key clause:\n%s", create)
	}
	if !strings.Contains(create, `"order_no" text NOT NULL`) {
		t.Errorf("key column must be NOT NULL:\n%s", create)
	}
}
