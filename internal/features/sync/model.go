package sync

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type LogStatus string

const (
	StatusIdle       LogStatus = "idle"
	StatusStarted    LogStatus = "started"
	StatusProcessing LogStatus = "processing"
	StatusCompleted  LogStatus = "completed"
	StatusFailed     LogStatus = "failed"
)

// InFlight reports whether a run with this status still owns its mapping
func (s LogStatus) InFlight() bool {
	return s == StatusStarted || s == StatusProcessing
}

func (s LogStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// MappingStatusChannel carries recomputed statuses to realtime subscribers
const MappingStatusChannel = "gl_mapping_status"

var (
	ErrSyncInProgress    = errors.New("sync already in progress for this mapping")
	ErrMappingDisabled   = errors.New("mapping is disabled")
	ErrInvalidTransition = errors.New("invalid sync status transition")
)

// SyncLog is one sync attempt. InFlight is set while the run is
// started/processing and backs the one-run-per-mapping unique index.
type SyncLog struct {
	ID               primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	MappingID        primitive.ObjectID `json:"mapping_id" bson:"mapping_id"`
	Status           LogStatus          `json:"status" bson:"status"`
	Message          string             `json:"message,omitempty" bson:"message,omitempty"`
	RecordsProcessed int                `json:"records_processed" bson:"records_processed"`
	FailedRecords    int                `json:"failed_records" bson:"failed_records"`
	TotalRecords     int                `json:"total_records" bson:"total_records"`
	StartedAt        time.Time          `json:"started_at" bson:"started_at"`
	CompletedAt      *time.Time         `json:"completed_at" bson:"completed_at"`
	Details          map[string]any     `json:"details,omitempty" bson:"details,omitempty"`
	InFlight         bool               `json:"-" bson:"in_flight,omitempty"`
}

// SyncStatus is derived on read and never stored
type SyncStatus struct {
	MappingID           string     `json:"mapping_id"`
	ConnectionID        string     `json:"connection_id"`
	AppName             string     `json:"app_name"`
	GlideTable          string     `json:"glide_table"`
	GlideTableName      string     `json:"glide_table_display_name,omitempty"`
	SupabaseTable       string     `json:"supabase_table"`
	Enabled             bool       `json:"enabled"`
	CurrentStatus       LogStatus  `json:"current_status"`
	RecordsProcessed    int        `json:"records_processed"`
	TotalRecords        int        `json:"total_records"`
	LastSyncStartedAt   *time.Time `json:"last_sync_started_at"`
	LastSyncCompletedAt *time.Time `json:"last_sync_completed_at"`
	ErrorCount          int        `json:"error_count"`
	Progress            int        `json:"progress"`
}

type TriggerResult struct {
	Success          bool   `json:"success"`
	RecordsProcessed *int   `json:"records_processed,omitempty"`
	FailedRecords    *int   `json:"failed_records,omitempty"`
	Error            string `json:"error,omitempty"`
	LogID            string `json:"log_id,omitempty"`
}

type DailyStats struct {
	Date             string `json:"date"`
	SyncCount        int    `json:"sync_count"`
	SuccessCount     int    `json:"success_count"`
	FailureCount     int    `json:"failure_count"`
	RecordsProcessed int    `json:"records_processed"`
}

type Stats struct {
	RangeDays int          `json:"range_days"`
	Days      []DailyStats `json:"days"`
	Totals    DailyStats   `json:"totals"`
}

// Predecessors lists the states a run may move to s from
func (s LogStatus) Predecessors() []LogStatus {
	switch s {
	case StatusProcessing:
		return []LogStatus{StatusStarted}
	case StatusCompleted, StatusFailed:
		return []LogStatus{StatusStarted, StatusProcessing}
	}
	return nil
}
