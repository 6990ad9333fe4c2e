package tables

import (
	"context"
	"fmt"
	"strings"

	common_models "go-glsync/internal/common/models"
	"go-glsync/internal/config"
	"go-glsync/internal/features/audit"

	"go.uber.org/zap"
)

type TableService interface {
	ListTables(ctx context.Context) ([]Table, error)
	GetColumns(ctx context.Context, table string) ([]Column, error)
	Exists(ctx context.Context, table string) (bool, error)
	CreateTable(ctx context.Context, def TableDefinition) (*Table, error)
}

type TableServiceImpl struct {
	Catalog      Catalog
	Prefix       string
	AuditService audit.AuditService
	Logger       *zap.Logger
}

func NewTableService(catalog Catalog, cfg *config.Config, auditService audit.AuditService, log *zap.Logger) TableService {
	return &TableServiceImpl{
		Catalog:      catalog,
		Prefix:       cfg.TablePrefix,
		AuditService: auditService,
		Logger:       log,
	}
}

func (s *TableServiceImpl) ListTables(ctx context.Context) ([]Table, error) {
	return s.Catalog.ListTables(ctx, s.Prefix)
}

func (s *TableServiceImpl) GetColumns(ctx context.Context, table string) ([]Column, error) {
	ok, err := s.Exists(ctx, table)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("table %s: %w", table, common_models.ErrNotFound)
	}
	return s.Catalog.GetColumns(ctx, table)
}

func (s *TableServiceImpl) Exists(ctx context.Context, table string) (bool, error) {
	table = strings.TrimSpace(table)
	if table == "" {
		return false, nil
	}
	return s.Catalog.Exists(ctx, table)
}

func (s *TableServiceImpl) CreateTable(ctx context.Context, def TableDefinition) (*Table, error) {
	if err := def.Validate(s.Prefix); err != nil {
		return nil, err
	}

	exists, err := s.Catalog.Exists(ctx, def.Name)
	if err != nil {
		return nil, fmt.Errorf("check table %s: %w", def.Name, err)
	}
	if exists {
		return nil, fmt.Errorf("table %q already exists: %w", def.Name, common_models.ErrValidation)
	}

	if err := s.Catalog.ExecTx(ctx, BuildCreateTableSQL(def)); err != nil {
		s.Logger.Error("create table failed", zap.String("table", def.Name), zap.Error(err))
		return nil, fmt.Errorf("create table %s: %w", def.Name, err)
	}

	s.Logger.Info("table created", zap.String("table", def.Name), zap.Int("columns", len(def.Columns)))
	_ = s.AuditService.LogChange(ctx, common_models.AuditActionTable, "tables", def.Name, map[string]common_models.Change{
		"table": {New: def},
	})
	return &Table{Name: def.Name, ColumnCount: len(DefaultColumns) + len(def.Columns)}, nil
}
