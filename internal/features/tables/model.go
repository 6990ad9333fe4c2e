package tables

import (
	"fmt"
	"strings"

	common_models "go-glsync/internal/common/models"
	"go-glsync/pkg/utils"

	"github.com/lib/pq"
)

type SQLType string

const (
	TypeText        SQLType = "text"
	TypeVarchar     SQLType = "varchar"
	TypeInteger     SQLType = "integer"
	TypeBigint      SQLType = "bigint"
	TypeNumeric     SQLType = "numeric"
	TypeBoolean     SQLType = "boolean"
	TypeDate        SQLType = "date"
	TypeTimestamp   SQLType = "timestamp"
	TypeTimestamptz SQLType = "timestamptz"
	TypeJSONB       SQLType = "jsonb"
	TypeUUID        SQLType = "uuid"
)

var SQLTypes = []SQLType{
	TypeText, TypeVarchar, TypeInteger, TypeBigint, TypeNumeric, TypeBoolean,
	TypeDate, TypeTimestamp, TypeTimestamptz, TypeJSONB, TypeUUID,
}

func (t SQLType) Valid() bool {
	for _, known := range SQLTypes {
		if t == known {
			return true
		}
	}
	return false
}

// DefaultColumns exist on every created table and cannot be redefined
var DefaultColumns = []string{
	"id uuid PRIMARY KEY DEFAULT gen_random_uuid()",
	"glide_row_id text UNIQUE",
	"created_at timestamptz NOT NULL DEFAULT now()",
	"updated_at timestamptz NOT NULL DEFAULT now()",
}

const compositeIDColumn = "id uuid NOT NULL DEFAULT gen_random_uuid()"

var reservedColumns = map[string]bool{
	"id":           true,
	"glide_row_id": true,
	"created_at":   true,
	"updated_at":   true,
}

type Table struct {
	Name        string `json:"table_name"`
	ColumnCount int    `json:"column_count"`
}

type Column struct {
	Name     string  `json:"column_name"`
	DataType string  `json:"data_type"`
	Nullable bool    `json:"is_nullable"`
	Default  *string `json:"column_default,omitempty"`
}

type ColumnDefinition struct {
	Name       string  `json:"name"`
	Type       SQLType `json:"type"`
	Nullable   bool    `json:"nullable"`
	Unique     bool    `json:"unique"`
	PrimaryKey bool    `json:"primary_key"`
}

type TableDefinition struct {
	Name    string             `json:"name"`
	Columns []ColumnDefinition `json:"columns"`
}

func invalid(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, common_models.ErrValidation)...)
}

// Validate checks the definition against the naming rules of the relational
// backend. It never touches the database.
func (d *TableDefinition) Validate(prefix string) error {
	d.Name = strings.TrimSpace(d.Name)
	if d.Name == "" {
		return invalid("table name is required")
	}
	if !strings.HasPrefix(d.Name, prefix) || len(d.Name) == len(prefix) {
		return invalid("table name %q must start with %q", d.Name, prefix)
	}
	if !utils.IsIdentifier(d.Name) {
		return invalid("table name %q may only contain lower-case letters, digits and underscores", d.Name)
	}

	seen := map[string]bool{}
	for i := range d.Columns {
		col := &d.Columns[i]
		col.Name = strings.TrimSpace(col.Name)
		if col.Name == "" {
			return invalid("column %d has no name", i+1)
		}
		if !utils.IsIdentifier(col.Name) {
			return invalid("column name %q may only contain lower-case letters, digits and underscores", col.Name)
		}
		if reservedColumns[col.Name] {
			return invalid("column %q is created automatically", col.Name)
		}
		if seen[col.Name] {
			return invalid("duplicate column %q", col.Name)
		}
		seen[col.Name] = true
		if !col.Type.Valid() {
			return invalid("column %q has unknown type %q", col.Name, col.Type)
		}
		if col.PrimaryKey && col.Nullable {
			return invalid("primary key column %q cannot be nullable", col.Name)
		}
	}
	return nil
}

// BuildCreateTableSQL renders the statements that create a validated table,
// enable row level security and attach the updated_at trigger.
// Columns flagged primary_key join id in a composite key.
func BuildCreateTableSQL(d TableDefinition) []string {
	table := "public." + pq.QuoteIdentifier(d.Name)

	cols := append([]string{}, DefaultColumns...)
	keys := []string{"id"}
	for _, c := range d.Columns {
		def := pq.QuoteIdentifier(c.Name) + " " + string(c.Type)
		if !c.Nullable {
			def += " NOT NULL"
		}
		if c.Unique {
			def += " UNIQUE"
		}
		if c.PrimaryKey {
			keys = append(keys, pq.QuoteIdentifier(c.Name))
		}
		cols = append(cols, def)
	}
	if len(keys) > 1 {
		cols[0] = compositeIDColumn
		cols = append(cols, "PRIMARY KEY ("+strings.Join(keys, ", ")+")")
	}

	return []string{
		fmt.Sprintf("CREATE TABLE %s (\n  %s\n)", table, strings.Join(cols, ",\n  ")),
		fmt.Sprintf("ALTER TABLE %s ENABLE ROW LEVEL SECURITY", table),
		fmt.Sprintf("CREATE TRIGGER %s BEFORE UPDATE ON %s FOR EACH ROW EXECUTE FUNCTION public.update_updated_at_column()",
			pq.QuoteIdentifier("update_"+d.Name+"_updated_at"), table),
	}
}
