package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type AuditAction string

const (
	AuditActionCreate     AuditAction = "CREATE"
	AuditActionUpdate     AuditAction = "UPDATE"
	AuditActionDelete     AuditAction = "DELETE"
	AuditActionSync       AuditAction = "SYNC"
	AuditActionRetry      AuditAction = "RETRY"
	AuditActionResolve    AuditAction = "RESOLVE"
	AuditActionConnection AuditAction = "CONNECTION"
	AuditActionMapping    AuditAction = "MAPPING"
	AuditActionTable      AuditAction = "TABLE"
)

type Change struct {
	Old interface{} `bson:"old" json:"old"`
	New interface{} `bson:"new" json:"new"`
}

type AuditLog struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Action    AuditAction        `bson:"action" json:"action"`
	Module    string             `bson:"module" json:"module"`                       // Logical table, e.g. gl_mappings
	RecordID  string             `bson:"record_id" json:"record_id"`                 // The ID of the record being modified
	ActorID   string             `bson:"actor_id" json:"actor_id"`                   // User ID who performed the action
	Changes   map[string]Change  `bson:"changes,omitempty" json:"changes,omitempty"` // For updates: field -> {old, new}
	Timestamp time.Time          `bson:"timestamp" json:"timestamp"`
}

type Log struct {
	Message       string         `bson:"message" json:"message"`
	Level         string         `bson:"level" json:"level"`
	LogLevelId    int            `bson:"log_level_id" json:"log_level_id"`
	Caller        string         `bson:"caller,omitempty" json:"caller,omitempty"`
	IpAddress     string         `bson:"ip_address,omitempty" json:"ip_address,omitempty"`
	MappingID     string         `bson:"mapping_id,omitempty" json:"mapping_id,omitempty"`
	ConnectionID  string         `bson:"connection_id,omitempty" json:"connection_id,omitempty"`
	Fields        map[string]any `bson:"fields,omitempty" json:"fields,omitempty"`
	ApplicationId string         `bson:"application_id" json:"application_id"`
	CreatedOnUtc  time.Time      `bson:"created_on_utc" json:"created_on_utc"`
}
