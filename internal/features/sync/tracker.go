package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go-glsync/internal/common/export"
	common_models "go-glsync/internal/common/models"
	"go-glsync/internal/database"
	"go-glsync/internal/features/connection"
	"go-glsync/internal/features/mapping"
	"go-glsync/internal/logger"
	"go-glsync/internal/realtime"

	"go.uber.org/zap"
)

const (
	defaultLogLimit = 50
	recentLogLimit  = 20
)

// ErrorCounter counts unresolved sync errors per mapping
type ErrorCounter interface {
	CountActive(ctx context.Context, mappingIDs []string) (map[string]int, error)
}

type TrackerService interface {
	GetStatus(ctx context.Context, mappingID string) (*SyncStatus, error)
	ListStatuses(ctx context.Context) ([]SyncStatus, error)
	// Subscribe calls back on every mapping or sync log change until unsubscribed
	Subscribe(callback func(realtime.Change)) (unsubscribe func())
	GetStats(ctx context.Context, rangeDays int) (*Stats, error)
	RecentLogs(ctx context.Context, limit int64) ([]SyncLog, error)
	ListLogs(ctx context.Context, mappingID string, limit int64) ([]SyncLog, error)
	Refresh(ctx context.Context, mappingID string) (*SyncStatus, error)
	ExportLogs(ctx context.Context, mappingID string) ([]byte, string, error)
}

type TrackerServiceImpl struct {
	Mappings    mapping.MappingRepository
	Connections connection.ConnectionRepository
	Logs        SyncLogRepository
	Errors      ErrorCounter
	Hub         *realtime.Hub
	Logger      *zap.Logger
	now         func() time.Time
}

func NewTrackerService(
	mappings mapping.MappingRepository,
	connections connection.ConnectionRepository,
	logs SyncLogRepository,
	counter ErrorCounter,
	hub *realtime.Hub,
	log *zap.Logger,
) TrackerService {
	return &TrackerServiceImpl{
		Mappings:    mappings,
		Connections: connections,
		Logs:        logs,
		Errors:      counter,
		Hub:         hub,
		Logger:      log,
		now:         time.Now,
	}
}

func (s *TrackerServiceImpl) GetStatus(ctx context.Context, mappingID string) (*SyncStatus, error) {
	m, err := s.Mappings.Get(ctx, mappingID)
	if err != nil {
		return nil, err
	}

	conn, err := s.Connections.Get(ctx, m.ConnectionID.Hex())
	if err != nil {
		if !errors.Is(err, common_models.ErrNotFound) {
			return nil, fmt.Errorf("mapping connection: %w", err)
		}
		// orphaned mapping, render it without an app name
		conn = nil
	}
	latest, err := s.Logs.Latest(ctx, mappingID)
	if err != nil {
		return nil, fmt.Errorf("latest sync log: %w", err)
	}
	counts, err := s.Errors.CountActive(ctx, []string{mappingID})
	if err != nil {
		return nil, fmt.Errorf("count sync errors: %w", err)
	}

	status := DeriveStatus(*m, conn, latest, counts[mappingID])
	return &status, nil
}

func (s *TrackerServiceImpl) ListStatuses(ctx context.Context) ([]SyncStatus, error) {
	mappings, err := s.Mappings.List(ctx, mapping.Filter{})
	if err != nil {
		return nil, err
	}
	if len(mappings) == 0 {
		return []SyncStatus{}, nil
	}

	conns, err := s.Connections.List(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*connection.Connection, len(conns))
	for i := range conns {
		byID[conns[i].ID.Hex()] = &conns[i]
	}

	ids := make([]string, len(mappings))
	for i, m := range mappings {
		ids[i] = m.ID.Hex()
	}
	latest, err := s.Logs.LatestByMappings(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("latest sync logs: %w", err)
	}
	counts, err := s.Errors.CountActive(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("count sync errors: %w", err)
	}

	statuses := make([]SyncStatus, len(mappings))
	for i, m := range mappings {
		id := m.ID.Hex()
		statuses[i] = DeriveStatus(m, byID[m.ConnectionID.Hex()], latest[id], counts[id])
	}
	return statuses, nil
}

func (s *TrackerServiceImpl) Subscribe(callback func(realtime.Change)) func() {
	unsubMappings := s.Hub.Listen(realtime.Channel{Table: database.MappingsCollection}, callback)
	unsubLogs := s.Hub.Listen(realtime.Channel{Table: database.SyncLogsCollection}, callback)
	return func() {
		unsubMappings()
		unsubLogs()
	}
}

// GetStats reads the whole stats window once and narrows it in memory
func (s *TrackerServiceImpl) GetStats(ctx context.Context, rangeDays int) (*Stats, error) {
	if !ValidRange(rangeDays) {
		return nil, fmt.Errorf("range must be one of 7, 14, 30 or all: %w", common_models.ErrValidation)
	}

	now := s.now().UTC()
	var since time.Time
	if rangeDays > 0 {
		since = now.AddDate(0, 0, -StatsWindowDays)
	}
	logs, err := s.Logs.Since(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("load sync logs: %w", err)
	}

	days := FilterStatsRange(BuildDailyStats(logs), rangeDays, now)
	return &Stats{
		RangeDays: rangeDays,
		Days:      days,
		Totals:    Totals(days),
	}, nil
}

func (s *TrackerServiceImpl) RecentLogs(ctx context.Context, limit int64) ([]SyncLog, error) {
	if limit <= 0 {
		limit = recentLogLimit
	}
	return s.Logs.List(ctx, "", limit)
}

func (s *TrackerServiceImpl) ListLogs(ctx context.Context, mappingID string, limit int64) ([]SyncLog, error) {
	if limit <= 0 {
		limit = defaultLogLimit
	}
	return s.Logs.List(ctx, mappingID, limit)
}

// Refresh recomputes one status and pushes it to status subscribers
func (s *TrackerServiceImpl) Refresh(ctx context.Context, mappingID string) (*SyncStatus, error) {
	status, err := s.GetStatus(ctx, mappingID)
	if err != nil {
		s.Logger.Warn("status refresh failed", zap.String(logger.FieldMappingID, mappingID), zap.Error(err))
		return nil, err
	}
	s.Hub.Publish(realtime.Change{
		Table: MappingStatusChannel,
		Event: realtime.EventUpdate,
		New:   realtime.ToRow(status),
	})
	return status, nil
}

func (s *TrackerServiceImpl) ExportLogs(ctx context.Context, mappingID string) ([]byte, string, error) {
	logs, err := s.Logs.List(ctx, mappingID, 0)
	if err != nil {
		return nil, "", err
	}

	columns := []string{"ID", "Mapping", "Status", "Message", "Processed", "Failed", "Total", "Started", "Completed", "Details"}
	rows := make([][]any, len(logs))
	for i, l := range logs {
		rows[i] = []any{l.ID, l.MappingID, string(l.Status), l.Message, l.RecordsProcessed, l.FailedRecords, l.TotalRecords, l.StartedAt, l.CompletedAt, l.Details}
	}

	data, err := export.ToExcel("Sync Logs", columns, rows)
	if err != nil {
		return nil, "", err
	}
	return data, export.Filename("sync_logs", s.now()), nil
}
