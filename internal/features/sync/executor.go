package sync

import (
	"context"
	"errors"
	"fmt"
	stdsync "sync"
	"time"

	common_models "go-glsync/internal/common/models"
	"go-glsync/internal/config"
	"go-glsync/internal/database"
	"go-glsync/internal/features/audit"
	"go-glsync/internal/features/connection"
	"go-glsync/internal/features/mapping"
	"go-glsync/internal/glsync"
	"go-glsync/internal/logger"
	"go-glsync/internal/realtime"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const abandonedMessage = "abandoned: run did not finish before timeout"

// ErrorRecorder persists the record-level failures of a run
type ErrorRecorder interface {
	Record(ctx context.Context, mappingID, logID primitive.ObjectID, failures []glsync.RecordFailure) (int, error)
}

type ExecutorService interface {
	Trigger(ctx context.Context, connectionID, mappingID string) (*TriggerResult, error)
	// TriggerEnabled runs every enabled mapping once, skipping those already in flight
	TriggerEnabled(ctx context.Context) (int, error)
}

type ExecutorServiceImpl struct {
	Mappings     mapping.MappingRepository
	Connections  connection.ConnectionRepository
	Logs         SyncLogRepository
	Errors       ErrorRecorder
	Glsync       glsync.Client
	Tracker      TrackerService
	AuditService audit.AuditService
	Publisher    realtime.Publisher
	Logger       *zap.Logger

	RefreshDelay time.Duration
	StaleAfter   time.Duration

	mu     stdsync.Mutex
	claims map[string]struct{}

	now       func() time.Time
	afterFunc func(d time.Duration, f func())
}

func NewExecutorService(
	mappings mapping.MappingRepository,
	connections connection.ConnectionRepository,
	logs SyncLogRepository,
	recorder ErrorRecorder,
	client glsync.Client,
	tracker TrackerService,
	auditService audit.AuditService,
	publisher realtime.Publisher,
	cfg *config.Config,
	log *zap.Logger,
) ExecutorService {
	return &ExecutorServiceImpl{
		Mappings:     mappings,
		Connections:  connections,
		Logs:         logs,
		Errors:       recorder,
		Glsync:       client,
		Tracker:      tracker,
		AuditService: auditService,
		Publisher:    publisher,
		Logger:       log,
		RefreshDelay: cfg.SyncRefreshDelay,
		StaleAfter:   2 * cfg.GlsyncTimeout,
		claims:       make(map[string]struct{}),
		now:          func() time.Time { return time.Now().UTC() },
		afterFunc: func(d time.Duration, f func()) {
			time.AfterFunc(d, f)
		},
	}
}

func (s *ExecutorServiceImpl) Trigger(ctx context.Context, connectionID, mappingID string) (*TriggerResult, error) {
	m, err := s.Mappings.Get(ctx, mappingID)
	if err != nil {
		return nil, err
	}
	if !m.Enabled {
		return nil, ErrMappingDisabled
	}
	if connectionID == "" {
		connectionID = m.ConnectionID.Hex()
	} else if connectionID != m.ConnectionID.Hex() {
		return nil, fmt.Errorf("mapping %s does not belong to connection %s: %w", mappingID, connectionID, common_models.ErrValidation)
	}

	if !s.claim(mappingID) {
		return nil, ErrSyncInProgress
	}
	defer s.release(mappingID)

	if err := s.checkLatest(ctx, mappingID); err != nil {
		return nil, err
	}

	run := &SyncLog{
		MappingID: m.ID,
		Status:    StatusStarted,
		StartedAt: s.now(),
	}
	if err := s.Logs.Create(ctx, run); err != nil {
		return nil, err
	}
	s.Publisher.Emit(database.SyncLogsCollection, realtime.EventInsert, run, nil)

	log := s.Logger.With(
		zap.String(logger.FieldMappingID, mappingID),
		zap.String(logger.FieldConnectionID, connectionID),
		zap.String("log_id", run.ID.Hex()),
	)
	log.Info("sync started")

	// the run outlives the caller once its log exists
	runCtx := context.WithoutCancel(ctx)

	if err := s.advance(runCtx, run, StatusProcessing, nil); err != nil {
		s.finish(runCtx, run, StatusFailed, err.Error(), nil)
		return nil, err
	}

	resp, callErr := s.Glsync.SyncData(runCtx, connectionID, mappingID, run.ID.Hex())
	if callErr == nil && resp == nil {
		callErr = fmt.Errorf("%w: empty response", glsync.ErrTransport)
	}
	result := &TriggerResult{LogID: run.ID.Hex()}

	switch {
	case callErr != nil:
		result.Error = callErr.Error()
		s.finish(runCtx, run, StatusFailed, callErr.Error(), nil)
		log.Error("sync transport failure", zap.Error(callErr))
	case resp.Success:
		processed, failed := s.finish(runCtx, run, StatusCompleted, "", resp)
		result.Success = true
		result.RecordsProcessed = &processed
		result.FailedRecords = &failed
		log.Info("sync completed", zap.Int("records_processed", processed), zap.Int("failed_records", failed))
	default:
		message := resp.Error
		if message == "" {
			message = "sync failed"
		}
		processed, failed := s.finish(runCtx, run, StatusFailed, message, resp)
		result.Error = message
		result.RecordsProcessed = &processed
		result.FailedRecords = &failed
		log.Warn("sync failed", zap.String("error", message))
	}

	if resp != nil && len(resp.Errors) > 0 {
		if _, err := s.Errors.Record(runCtx, m.ID, run.ID, resp.Errors); err != nil {
			log.Error("failed to record sync errors", zap.Error(err))
		}
	}
	if err := s.Connections.SetLastSync(runCtx, connectionID, s.now()); err != nil && !errors.Is(err, common_models.ErrNotFound) {
		log.Warn("failed to update last sync", zap.Error(err))
	}

	_ = s.AuditService.LogChange(runCtx, common_models.AuditActionSync, database.MappingsCollection, mappingID, map[string]common_models.Change{
		"status": {Old: StatusStarted, New: run.Status},
	})
	s.scheduleRefresh(mappingID)

	if callErr != nil {
		return result, callErr
	}
	return result, nil
}

func (s *ExecutorServiceImpl) TriggerEnabled(ctx context.Context) (int, error) {
	enabled := true
	mappings, err := s.Mappings.List(ctx, mapping.Filter{Enabled: &enabled})
	if err != nil {
		return 0, err
	}

	triggered := 0
	for _, m := range mappings {
		if ctx.Err() != nil {
			return triggered, ctx.Err()
		}
		_, err := s.Trigger(ctx, m.ConnectionID.Hex(), m.ID.Hex())
		switch {
		case errors.Is(err, ErrSyncInProgress), errors.Is(err, ErrMappingDisabled):
			s.Logger.Debug("scheduled sync skipped", zap.String(logger.FieldMappingID, m.ID.Hex()), zap.Error(err))
			continue
		case err != nil:
			s.Logger.Warn("scheduled sync failed", zap.String(logger.FieldMappingID, m.ID.Hex()), zap.Error(err))
		}
		triggered++
	}
	return triggered, nil
}

func (s *ExecutorServiceImpl) claim(mappingID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.claims[mappingID]; busy {
		return false
	}
	s.claims[mappingID] = struct{}{}
	return true
}

func (s *ExecutorServiceImpl) release(mappingID string) {
	s.mu.Lock()
	delete(s.claims, mappingID)
	s.mu.Unlock()
}

// checkLatest rejects the trigger while the latest run is in flight, unless
// that run is old enough to be considered lost and is failed here instead.
func (s *ExecutorServiceImpl) checkLatest(ctx context.Context, mappingID string) error {
	latest, err := s.Logs.Latest(ctx, mappingID)
	if err != nil {
		return fmt.Errorf("latest sync log: %w", err)
	}
	if latest == nil || !latest.Status.InFlight() {
		return nil
	}
	if s.StaleAfter <= 0 || s.now().Sub(latest.StartedAt) < s.StaleAfter {
		return ErrSyncInProgress
	}

	s.Logger.Warn("failing abandoned sync run",
		zap.String(logger.FieldMappingID, mappingID),
		zap.String("log_id", latest.ID.Hex()),
	)
	err = s.Logs.Advance(ctx, latest.ID, StatusFailed, map[string]interface{}{"message": abandonedMessage})
	if err != nil && !errors.Is(err, ErrInvalidTransition) {
		return err
	}
	return nil
}

func (s *ExecutorServiceImpl) advance(ctx context.Context, run *SyncLog, to LogStatus, fields map[string]interface{}) error {
	old := *run
	if err := s.Logs.Advance(ctx, run.ID, to, fields); err != nil {
		return err
	}
	run.Status = to
	run.InFlight = to.InFlight()
	s.Publisher.Emit(database.SyncLogsCollection, realtime.EventUpdate, run, &old)
	return nil
}

// finish moves the run to its terminal state and returns the counts stored
func (s *ExecutorServiceImpl) finish(ctx context.Context, run *SyncLog, to LogStatus, message string, resp *glsync.Response) (int, int) {
	completed := s.now()
	fields := map[string]interface{}{"completed_at": completed}
	if message != "" {
		fields["message"] = message
		run.Message = message
	}

	var processed, failed int
	if resp != nil {
		processed = glsync.Count(resp.RecordsProcessed)
		failed = glsync.Count(resp.FailedRecords)
		if resp.FailedRecords == nil {
			failed = len(resp.Errors)
		}
		total := glsync.Count(resp.TotalRecords)
		if total == 0 {
			total = processed + failed
		}
		fields["records_processed"] = processed
		fields["failed_records"] = failed
		fields["total_records"] = total
		run.RecordsProcessed, run.FailedRecords, run.TotalRecords = processed, failed, total
		if len(resp.Details) > 0 {
			fields["details"] = resp.Details
			run.Details = resp.Details
		}
	}
	run.CompletedAt = &completed

	if err := s.advance(ctx, run, to, fields); err != nil {
		s.Logger.Error("failed to close sync log",
			zap.String(logger.FieldMappingID, run.MappingID.Hex()),
			zap.String("log_id", run.ID.Hex()),
			zap.String("status", string(to)),
			zap.Error(err),
		)
	}
	return processed, failed
}

func (s *ExecutorServiceImpl) scheduleRefresh(mappingID string) {
	if s.Tracker == nil {
		return
	}
	s.afterFunc(s.RefreshDelay, func() {
		_, _ = s.Tracker.Refresh(context.Background(), mappingID)
	})
}
