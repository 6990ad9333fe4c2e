package connection

import (
	"context"
	"fmt"
	"strings"

	common_models "go-glsync/internal/common/models"
	"go-glsync/internal/database"
	"go-glsync/internal/features/audit"
	"go-glsync/internal/glsync"
	"go-glsync/internal/logger"
	"go-glsync/internal/realtime"

	"go.uber.org/zap"
)

// MappingStore is the part of the mapping repository a cascade delete needs
type MappingStore interface {
	ListIDsByConnection(ctx context.Context, connectionID string) ([]string, error)
	DeleteMany(ctx context.Context, ids []string) (int64, error)
}

type ConnectionService interface {
	List(ctx context.Context) ([]Connection, error)
	Get(ctx context.Context, id string) (*Connection, error)
	Create(ctx context.Context, conn *Connection) error
	Update(ctx context.Context, id string, update ConnectionUpdate) (*Connection, error)
	Delete(ctx context.Context, id string) error
	Test(ctx context.Context, id string) (*TestResult, error)
}

type ConnectionServiceImpl struct {
	Repo         ConnectionRepository
	Mappings     MappingStore
	Glsync       glsync.Client
	AuditService audit.AuditService
	Publisher    realtime.Publisher
	Logger       *zap.Logger
}

func NewConnectionService(
	repo ConnectionRepository,
	mappings MappingStore,
	client glsync.Client,
	auditService audit.AuditService,
	publisher realtime.Publisher,
	log *zap.Logger,
) ConnectionService {
	return &ConnectionServiceImpl{
		Repo:         repo,
		Mappings:     mappings,
		Glsync:       client,
		AuditService: auditService,
		Publisher:    publisher,
		Logger:       log,
	}
}

func (s *ConnectionServiceImpl) List(ctx context.Context) ([]Connection, error) {
	return s.Repo.List(ctx)
}

func (s *ConnectionServiceImpl) Get(ctx context.Context, id string) (*Connection, error) {
	return s.Repo.Get(ctx, id)
}

func (s *ConnectionServiceImpl) Create(ctx context.Context, conn *Connection) error {
	conn.AppID = strings.TrimSpace(conn.AppID)
	conn.APIKey = strings.TrimSpace(conn.APIKey)
	if conn.Status == "" {
		conn.Status = StatusActive
	}
	if strings.TrimSpace(conn.AppName) == "" {
		conn.AppName = conn.AppID
	}
	conn.LastSync = nil
	if err := conn.Validate(); err != nil {
		return err
	}

	if err := s.Repo.Create(ctx, conn); err != nil {
		return fmt.Errorf("create connection: %w", err)
	}

	s.Logger.Info("connection created", zap.String(logger.FieldConnectionID, conn.ID.Hex()), zap.String("app_id", conn.AppID))
	_ = s.AuditService.LogChange(ctx, common_models.AuditActionCreate, database.ConnectionsCollection, conn.ID.Hex(), map[string]common_models.Change{
		"connection": {New: conn.Masked()},
	})
	s.Publisher.Emit(database.ConnectionsCollection, realtime.EventInsert, conn.Masked(), nil)
	return nil
}

func (s *ConnectionServiceImpl) Update(ctx context.Context, id string, update ConnectionUpdate) (*Connection, error) {
	old, err := s.Repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	merged, set := old.Apply(update)
	if err := merged.Validate(); err != nil {
		return nil, err
	}
	if len(set) == 0 {
		return old, nil
	}

	if err := s.Repo.Update(ctx, id, set); err != nil {
		return nil, fmt.Errorf("update connection: %w", err)
	}

	changes := map[string]common_models.Change{}
	for field, v := range set {
		if field == "api_key" {
			changes[field] = common_models.Change{Old: MaskKey(old.APIKey), New: MaskKey(merged.APIKey)}
			continue
		}
		changes[field] = common_models.Change{New: v}
	}
	_ = s.AuditService.LogChange(ctx, common_models.AuditActionUpdate, database.ConnectionsCollection, id, changes)
	s.Publisher.Emit(database.ConnectionsCollection, realtime.EventUpdate, merged.Masked(), old.Masked())
	return &merged, nil
}

// Delete removes the connection after every mapping that references it
func (s *ConnectionServiceImpl) Delete(ctx context.Context, id string) error {
	old, err := s.Repo.Get(ctx, id)
	if err != nil {
		return err
	}

	mappingIDs, err := s.Mappings.ListIDsByConnection(ctx, id)
	if err != nil {
		return fmt.Errorf("list mappings of connection: %w", err)
	}
	if len(mappingIDs) > 0 {
		deleted, err := s.Mappings.DeleteMany(ctx, mappingIDs)
		if err != nil {
			return fmt.Errorf("delete mappings of connection: %w", err)
		}
		s.Logger.Info("cascade deleted mappings",
			zap.String(logger.FieldConnectionID, id),
			zap.Int64("count", deleted),
		)
		for _, mappingID := range mappingIDs {
			s.Publisher.Emit(database.MappingsCollection, realtime.EventDelete, nil, map[string]any{
				"id":            mappingID,
				"connection_id": id,
			})
		}
	}

	if err := s.Repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete connection: %w", err)
	}

	_ = s.AuditService.LogChange(ctx, common_models.AuditActionDelete, database.ConnectionsCollection, id, map[string]common_models.Change{
		"connection": {Old: old.Masked(), New: "DELETED"},
		"mappings":   {Old: mappingIDs},
	})
	s.Publisher.Emit(database.ConnectionsCollection, realtime.EventDelete, nil, old.Masked())
	return nil
}

// Test asks the sync function to reach Glide with the stored credentials and
// records the outcome in the connection status.
func (s *ConnectionServiceImpl) Test(ctx context.Context, id string) (*TestResult, error) {
	conn, err := s.Repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	result := &TestResult{Success: true, Status: StatusActive}
	resp, err := s.Glsync.TestConnection(ctx, id)
	switch {
	case err != nil:
		result = &TestResult{Status: StatusInactive, Error: err.Error()}
	case !resp.Success:
		result = &TestResult{Status: StatusInactive, Error: resp.Error}
	}

	if conn.Status != result.Status {
		if err := s.Repo.Update(ctx, id, map[string]interface{}{"status": result.Status}); err != nil {
			return nil, fmt.Errorf("update connection status: %w", err)
		}
		updated := *conn
		updated.Status = result.Status
		s.Publisher.Emit(database.ConnectionsCollection, realtime.EventUpdate, updated.Masked(), conn.Masked())
	}

	s.Logger.Info("connection tested",
		zap.String(logger.FieldConnectionID, id),
		zap.Bool("success", result.Success),
		zap.String("error", result.Error),
	)
	_ = s.AuditService.LogChange(ctx, common_models.AuditActionConnection, database.ConnectionsCollection, id, map[string]common_models.Change{
		"status": {Old: conn.Status, New: result.Status},
	})
	return result, nil
}
