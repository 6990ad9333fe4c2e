package syncerror

import (
	"context"
	"fmt"
	"time"

	"go-glsync/internal/common/export"
	common_models "go-glsync/internal/common/models"
	"go-glsync/internal/database"
	"go-glsync/internal/features/audit"
	"go-glsync/internal/glsync"
	"go-glsync/internal/logger"
	"go-glsync/internal/realtime"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const retryResolutionNote = "Resolved by retry"

type SyncErrorService interface {
	ListErrors(ctx context.Context, mappingID string, includeResolved bool) ([]SyncError, error)
	Get(ctx context.Context, id string) (*SyncError, error)
	Resolve(ctx context.Context, id, notes string) (*SyncError, error)
	ResolveAll(ctx context.Context, mappingID, notes string) (int64, error)
	Retry(ctx context.Context, id string) (bool, error)
	Record(ctx context.Context, mappingID, logID primitive.ObjectID, failures []glsync.RecordFailure) (int, error)
	CountActive(ctx context.Context, mappingIDs []string) (map[string]int, error)
	Export(ctx context.Context, mappingID string) ([]byte, string, error)
}

type SyncErrorServiceImpl struct {
	Repo         SyncErrorRepository
	Glsync       glsync.Client
	AuditService audit.AuditService
	Publisher    realtime.Publisher
	Logger       *zap.Logger
	now          func() time.Time
}

func NewSyncErrorService(
	repo SyncErrorRepository,
	client glsync.Client,
	auditService audit.AuditService,
	publisher realtime.Publisher,
	log *zap.Logger,
) SyncErrorService {
	return &SyncErrorServiceImpl{
		Repo:         repo,
		Glsync:       client,
		AuditService: auditService,
		Publisher:    publisher,
		Logger:       log,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (s *SyncErrorServiceImpl) ListErrors(ctx context.Context, mappingID string, includeResolved bool) ([]SyncError, error) {
	return s.Repo.List(ctx, mappingID, includeResolved)
}

func (s *SyncErrorServiceImpl) Get(ctx context.Context, id string) (*SyncError, error) {
	return s.Repo.Get(ctx, id)
}

// Resolve stamps resolved_at once; resolving again leaves the first stamp
func (s *SyncErrorServiceImpl) Resolve(ctx context.Context, id, notes string) (*SyncError, error) {
	changed, err := s.Repo.Resolve(ctx, id, notes, s.now())
	if err != nil {
		return nil, err
	}

	resolved, err := s.Repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if changed {
		s.Logger.Info("sync error resolved",
			zap.String("error_id", id),
			zap.String(logger.FieldMappingID, resolved.MappingID.Hex()),
		)
		_ = s.AuditService.LogChange(ctx, common_models.AuditActionResolve, database.SyncErrorsCollection, id, map[string]common_models.Change{
			"resolved_at": {New: resolved.ResolvedAt},
		})
		s.Publisher.Emit(database.SyncErrorsCollection, realtime.EventUpdate, resolved, nil)
	}
	return resolved, nil
}

func (s *SyncErrorServiceImpl) ResolveAll(ctx context.Context, mappingID, notes string) (int64, error) {
	n, err := s.Repo.ResolveAll(ctx, mappingID, notes, s.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		_ = s.AuditService.LogChange(ctx, common_models.AuditActionResolve, database.SyncErrorsCollection, mappingID, map[string]common_models.Change{
			"resolved": {New: n},
		})
		s.Publisher.Emit(database.SyncErrorsCollection, realtime.EventUpdate, map[string]any{
			"mapping_id": mappingID,
			"resolved":   n,
		}, nil)
	}
	return n, nil
}

// Retry replays the single failed record through the sync function. Only a
// successful replay resolves the error.
func (s *SyncErrorServiceImpl) Retry(ctx context.Context, id string) (bool, error) {
	syncErr, err := s.Repo.Get(ctx, id)
	if err != nil {
		return false, err
	}
	if !syncErr.Retryable {
		return false, ErrNotRetryable
	}
	if !syncErr.Active() {
		return true, nil
	}

	mappingID := syncErr.MappingID.Hex()
	resp, err := s.Glsync.RetryFailure(ctx, mappingID, id, syncErr.RecordData)
	_ = s.AuditService.LogChange(ctx, common_models.AuditActionRetry, database.SyncErrorsCollection, id, nil)
	if err != nil {
		s.Logger.Warn("retry transport failure", zap.String("error_id", id), zap.String(logger.FieldMappingID, mappingID), zap.Error(err))
		return false, err
	}
	if !resp.Success {
		s.Logger.Info("retry rejected", zap.String("error_id", id), zap.String(logger.FieldMappingID, mappingID), zap.String("error", resp.Error))
		return false, fmt.Errorf("%w: %s", ErrRetryFailed, resp.Error)
	}

	if _, err := s.Resolve(ctx, id, retryResolutionNote); err != nil {
		return false, fmt.Errorf("resolve after retry: %w", err)
	}
	return true, nil
}

// Record stores the failures a sync run reported
func (s *SyncErrorServiceImpl) Record(ctx context.Context, mappingID, logID primitive.ObjectID, failures []glsync.RecordFailure) (int, error) {
	if len(failures) == 0 {
		return 0, nil
	}

	now := s.now()
	errs := make([]SyncError, len(failures))
	for i, f := range failures {
		errType := f.ErrorType
		if errType == "" {
			errType = TypeAPI
		}
		errs[i] = SyncError{
			MappingID:    mappingID,
			LogID:        &logID,
			ErrorType:    errType,
			ErrorMessage: f.ErrorMessage,
			RecordData:   asRecord(f.RecordData),
			Retryable:    f.Retryable,
			CreatedAt:    now,
		}
	}
	if err := s.Repo.InsertMany(ctx, errs); err != nil {
		return 0, fmt.Errorf("store sync errors: %w", err)
	}
	for i := range errs {
		s.Publisher.Emit(database.SyncErrorsCollection, realtime.EventInsert, &errs[i], nil)
	}
	return len(errs), nil
}

func asRecord(v any) map[string]any {
	if v == nil {
		return nil
	}
	if m, ok := v.(map[string]any); ok {
		return m
	}
	if row := realtime.ToRow(v); row != nil {
		return row
	}
	return map[string]any{"value": v}
}

func (s *SyncErrorServiceImpl) CountActive(ctx context.Context, mappingIDs []string) (map[string]int, error) {
	return s.Repo.CountActive(ctx, mappingIDs)
}

func (s *SyncErrorServiceImpl) Export(ctx context.Context, mappingID string) ([]byte, string, error) {
	errs, err := s.Repo.List(ctx, mappingID, true)
	if err != nil {
		return nil, "", err
	}

	columns := []string{"ID", "Mapping", "Type", "Message", "Retryable", "Created", "Resolved", "Notes", "Record"}
	rows := make([][]any, len(errs))
	for i, e := range errs {
		rows[i] = []any{e.ID, e.MappingID, e.ErrorType, e.ErrorMessage, e.Retryable, e.CreatedAt, e.ResolvedAt, e.ResolutionNotes, e.RecordData}
	}

	data, err := export.ToExcel("Sync Errors", columns, rows)
	if err != nil {
		return nil, "", err
	}
	return data, export.Filename("sync_errors", s.now()), nil
}
