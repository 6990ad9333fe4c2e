package tables

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go-glsync/internal/database"
)

// Catalog reads the relational schema and runs privileged DDL
type Catalog interface {
	ListTables(ctx context.Context, prefix string) ([]Table, error)
	GetColumns(ctx context.Context, table string) ([]Column, error)
	Exists(ctx context.Context, table string) (bool, error)
	ExecTx(ctx context.Context, statements []string) error
}

type PostgresCatalog struct {
	db *sql.DB
}

func NewCatalog(pg *database.PostgresDB) Catalog {
	return &PostgresCatalog{db: pg.DB}
}

func likePrefix(prefix string) string {
	r := strings.NewReplacer(`\`, `\\`, `_`, `\_`, `%`, `\%`)
	return r.Replace(prefix) + "%"
}

func (r *PostgresCatalog) ListTables(ctx context.Context, prefix string) ([]Table, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT table_name, column_count FROM public.gl_tables_view WHERE table_name LIKE $1 ORDER BY table_name`,
		likePrefix(prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	tables := []Table{}
	for rows.Next() {
		var t Table
		if err := rows.Scan(&t.Name, &t.ColumnCount); err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return tables, rows.Err()
}

func (r *PostgresCatalog) GetColumns(ctx context.Context, table string) ([]Column, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT column_name, data_type, is_nullable = 'YES', column_default
		FROM information_schema.columns
		WHERE table_schema = 'public' AND table_name = $1
		ORDER BY ordinal_position`, table)
	if err != nil {
		return nil, fmt.Errorf("get columns of %s: %w", table, err)
	}
	defer rows.Close()

	columns := []Column{}
	for rows.Next() {
		var (
			c   Column
			def sql.NullString
		)
		if err := rows.Scan(&c.Name, &c.DataType, &c.Nullable, &def); err != nil {
			return nil, err
		}
		if def.Valid {
			c.Default = &def.String
		}
		columns = append(columns, c)
	}
	return columns, rows.Err()
}

func (r *PostgresCatalog) Exists(ctx context.Context, table string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = 'public' AND table_name = $1
		)`, table).Scan(&exists)
	return exists, err
}

// ExecTx runs all statements or none
func (r *PostgresCatalog) ExecTx(ctx context.Context, statements []string) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, stmt := range statements {
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return tx.Commit()
}
