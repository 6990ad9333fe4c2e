package sync

import (
	"math"

	"go-glsync/internal/features/connection"
	"go-glsync/internal/features/mapping"
)

// Progress is a 0..100 percentage for runs still in flight and 0 otherwise
func Progress(status LogStatus, processed, total int) int {
	if !status.InFlight() || total <= 0 || processed <= 0 {
		return 0
	}
	p := int(math.Round(float64(processed) / float64(total) * 100))
	if p > 100 {
		return 100
	}
	return p
}

// DeriveStatus combines a mapping with its latest run. conn and latest may be nil.
func DeriveStatus(m mapping.Mapping, conn *connection.Connection, latest *SyncLog, activeErrors int) SyncStatus {
	status := SyncStatus{
		MappingID:      m.ID.Hex(),
		ConnectionID:   m.ConnectionID.Hex(),
		GlideTable:     m.GlideTable,
		GlideTableName: m.GlideTableDisplayName,
		SupabaseTable:  m.SupabaseTable,
		Enabled:        m.Enabled,
		CurrentStatus:  StatusIdle,
		ErrorCount:     activeErrors,
	}
	if conn != nil {
		status.AppName = conn.AppName
	}
	if latest == nil {
		return status
	}

	started := latest.StartedAt
	status.CurrentStatus = latest.Status
	status.RecordsProcessed = latest.RecordsProcessed
	status.TotalRecords = latest.TotalRecords
	status.LastSyncStartedAt = &started
	status.LastSyncCompletedAt = latest.CompletedAt
	status.Progress = Progress(latest.Status, latest.RecordsProcessed, latest.TotalRecords)
	return status
}
