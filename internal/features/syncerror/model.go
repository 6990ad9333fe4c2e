package syncerror

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	TypeDatabase  = "DATABASE_ERROR"
	TypeTransform = "TRANSFORM_ERROR"
	TypeAPI       = "API_ERROR"
)

var (
	ErrNotRetryable = errors.New("sync error is not retryable")
	ErrRetryFailed  = errors.New("retry failed")
)

// SyncError is one record-level failure of a sync run
type SyncError struct {
	ID              primitive.ObjectID  `json:"id" bson:"_id,omitempty"`
	MappingID       primitive.ObjectID  `json:"mapping_id" bson:"mapping_id"`
	LogID           *primitive.ObjectID `json:"log_id,omitempty" bson:"log_id,omitempty"`
	ErrorType       string              `json:"error_type" bson:"error_type"`
	ErrorMessage    string              `json:"error_message" bson:"error_message"`
	RecordData      map[string]any      `json:"record_data,omitempty" bson:"record_data,omitempty"`
	Retryable       bool                `json:"retryable" bson:"retryable"`
	CreatedAt       time.Time           `json:"created_at" bson:"created_at"`
	ResolvedAt      *time.Time          `json:"resolved_at" bson:"resolved_at"`
	ResolutionNotes string              `json:"resolution_notes,omitempty" bson:"resolution_notes,omitempty"`
}

func (e *SyncError) Active() bool {
	return e.ResolvedAt == nil
}

// RetryResult is returned by the retry endpoint
type RetryResult struct {
	Success bool       `json:"success"`
	Error   string     `json:"error,omitempty"`
	Record  *SyncError `json:"record,omitempty"`
}
