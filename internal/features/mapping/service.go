package mapping

import (
	"context"
	"errors"
	"fmt"
	"strings"

	common_models "go-glsync/internal/common/models"
	"go-glsync/internal/database"
	"go-glsync/internal/features/audit"
	"go-glsync/internal/features/connection"
	"go-glsync/internal/logger"
	"go-glsync/internal/realtime"

	"go.uber.org/zap"
)

// TableChecker reports whether a relational table exists
type TableChecker interface {
	Exists(ctx context.Context, table string) (bool, error)
}

type MappingService interface {
	List(ctx context.Context, filter Filter) ([]Mapping, error)
	Get(ctx context.Context, id string) (*Mapping, error)
	NewForm(ctx context.Context) (*Form, error)
	Create(ctx context.Context, m *Mapping) error
	Update(ctx context.Context, id string, update MappingUpdate) (*Mapping, error)
	Delete(ctx context.Context, id string) error
	ToggleEnabled(ctx context.Context, id string) (*Mapping, error)
	ChangeTargetTable(ctx context.Context, id, table string) (*Mapping, error)
	SaveColumnMappings(ctx context.Context, id string, columns ColumnMappings) (*Mapping, error)
}

type MappingServiceImpl struct {
	Repo         MappingRepository
	Connections  connection.ConnectionRepository
	Tables       TableChecker
	AuditService audit.AuditService
	Publisher    realtime.Publisher
	Logger       *zap.Logger
}

func NewMappingService(
	repo MappingRepository,
	connections connection.ConnectionRepository,
	tables TableChecker,
	auditService audit.AuditService,
	publisher realtime.Publisher,
	log *zap.Logger,
) MappingService {
	return &MappingServiceImpl{
		Repo:         repo,
		Connections:  connections,
		Tables:       tables,
		AuditService: auditService,
		Publisher:    publisher,
		Logger:       log,
	}
}

func (s *MappingServiceImpl) List(ctx context.Context, filter Filter) ([]Mapping, error) {
	return s.Repo.List(ctx, filter)
}

func (s *MappingServiceImpl) Get(ctx context.Context, id string) (*Mapping, error) {
	return s.Repo.Get(ctx, id)
}

// NewForm lists the connections a mapping can be attached to. With none
// configured the form carries a redirect to connection creation instead.
func (s *MappingServiceImpl) NewForm(ctx context.Context) (*Form, error) {
	conns, err := s.Connections.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}

	form := &Form{
		Connections:    make([]FormConnection, 0, len(conns)),
		SyncDirections: SyncDirections,
		DataTypes:      DataTypes,
	}
	if len(conns) == 0 {
		form.Redirect = ConnectionCreatePath
		return form, nil
	}
	for _, c := range conns {
		form.Connections = append(form.Connections, FormConnection{
			ID:      c.ID.Hex(),
			AppName: c.AppName,
			AppID:   c.AppID,
		})
	}
	return form, nil
}

func (s *MappingServiceImpl) checkTable(ctx context.Context, table string) error {
	ok, err := s.Tables.Exists(ctx, table)
	if err != nil {
		return fmt.Errorf("check table %s: %w", table, err)
	}
	if !ok {
		return fmt.Errorf("table %q does not exist: %w", table, common_models.ErrValidation)
	}
	return nil
}

func (s *MappingServiceImpl) Create(ctx context.Context, m *Mapping) error {
	count, err := s.Connections.Count(ctx)
	if err != nil {
		return fmt.Errorf("count connections: %w", err)
	}
	if count == 0 {
		return ErrNoConnections
	}

	if m.SyncDirection == "" {
		m.SyncDirection = DirectionToSupabase
	}
	m.ColumnMappings = m.ColumnMappings.WithRowID()
	m.Enabled = false
	if err := m.Validate(); err != nil {
		return err
	}

	if _, err := s.Connections.Get(ctx, m.ConnectionID.Hex()); err != nil {
		if errors.Is(err, common_models.ErrNotFound) {
			return fmt.Errorf("connection %s does not exist: %w", m.ConnectionID.Hex(), common_models.ErrValidation)
		}
		return err
	}
	if err := s.checkTable(ctx, m.SupabaseTable); err != nil {
		return err
	}

	if err := s.Repo.Create(ctx, m); err != nil {
		return fmt.Errorf("create mapping: %w", err)
	}

	s.Logger.Info("mapping created",
		zap.String(logger.FieldMappingID, m.ID.Hex()),
		zap.String(logger.FieldConnectionID, m.ConnectionID.Hex()),
		zap.String("supabase_table", m.SupabaseTable),
	)
	_ = s.AuditService.LogChange(ctx, common_models.AuditActionCreate, database.MappingsCollection, m.ID.Hex(), map[string]common_models.Change{
		"mapping": {New: m},
	})
	s.Publisher.Emit(database.MappingsCollection, realtime.EventInsert, m, nil)
	return nil
}

func (s *MappingServiceImpl) Update(ctx context.Context, id string, update MappingUpdate) (*Mapping, error) {
	old, err := s.Repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	merged, set := old.Apply(update)
	if len(set) == 0 {
		return old, nil
	}
	if err := merged.Validate(); err != nil {
		return nil, err
	}
	if merged.SupabaseTable != old.SupabaseTable {
		if err := s.checkTable(ctx, merged.SupabaseTable); err != nil {
			return nil, err
		}
	}

	return s.apply(ctx, old, &merged, set, common_models.AuditActionUpdate)
}

func (s *MappingServiceImpl) apply(ctx context.Context, old, merged *Mapping, set map[string]interface{}, action common_models.AuditAction) (*Mapping, error) {
	id := old.ID.Hex()
	if err := s.Repo.Update(ctx, id, set); err != nil {
		return nil, fmt.Errorf("update mapping: %w", err)
	}

	changes := map[string]common_models.Change{}
	for field, v := range set {
		changes[field] = common_models.Change{New: v}
	}
	_ = s.AuditService.LogChange(ctx, action, database.MappingsCollection, id, changes)
	s.Publisher.Emit(database.MappingsCollection, realtime.EventUpdate, merged, old)
	return merged, nil
}

func (s *MappingServiceImpl) Delete(ctx context.Context, id string) error {
	old, err := s.Repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.Repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete mapping: %w", err)
	}

	s.Logger.Info("mapping deleted", zap.String(logger.FieldMappingID, id))
	_ = s.AuditService.LogChange(ctx, common_models.AuditActionDelete, database.MappingsCollection, id, map[string]common_models.Change{
		"mapping": {Old: old, New: "DELETED"},
	})
	s.Publisher.Emit(database.MappingsCollection, realtime.EventDelete, nil, old)
	return nil
}

// ToggleEnabled flips enabled and touches nothing else
func (s *MappingServiceImpl) ToggleEnabled(ctx context.Context, id string) (*Mapping, error) {
	old, err := s.Repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	enabled := !old.Enabled
	merged, set := old.Apply(MappingUpdate{Enabled: &enabled})
	return s.apply(ctx, old, &merged, set, common_models.AuditActionMapping)
}

func (s *MappingServiceImpl) ChangeTargetTable(ctx context.Context, id, table string) (*Mapping, error) {
	table = strings.TrimSpace(table)
	if table == "" {
		return nil, fmt.Errorf("table is required: %w", common_models.ErrValidation)
	}

	old, err := s.Repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if old.SupabaseTable == table {
		return old, nil
	}
	if err := s.checkTable(ctx, table); err != nil {
		return nil, err
	}

	merged, set := old.Apply(MappingUpdate{SupabaseTable: &table})
	return s.apply(ctx, old, &merged, set, common_models.AuditActionMapping)
}

// SaveColumnMappings replaces the whole column map in a single update
func (s *MappingServiceImpl) SaveColumnMappings(ctx context.Context, id string, columns ColumnMappings) (*Mapping, error) {
	old, err := s.Repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	merged, set := old.Apply(MappingUpdate{ColumnMappings: &columns})
	if err := merged.ColumnMappings.Validate(); err != nil {
		return nil, err
	}
	return s.apply(ctx, old, &merged, set, common_models.AuditActionUpdate)
}
