package connection

import (
	"fmt"
	"strings"
	"time"

	common_models "go-glsync/internal/common/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Connection holds the credentials of one Glide app
type Connection struct {
	ID        primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	AppName   string             `json:"app_name" bson:"app_name"`
	AppID     string             `json:"app_id" bson:"app_id"`
	APIKey    string             `json:"api_key" bson:"api_key"`
	LastSync  *time.Time         `json:"last_sync" bson:"last_sync"`
	Status    Status             `json:"status" bson:"status"`
	CreatedAt time.Time          `json:"created_at" bson:"created_at"`
}

// ConnectionUpdate is a partial update; nil fields are left untouched
type ConnectionUpdate struct {
	AppName *string `json:"app_name,omitempty"`
	AppID   *string `json:"app_id,omitempty"`
	APIKey  *string `json:"api_key,omitempty"`
	Status  *Status `json:"status,omitempty"`
}

type TestResult struct {
	Success bool   `json:"success"`
	Status  Status `json:"status"`
	Error   string `json:"error,omitempty"`
}

func (c *Connection) Validate() error {
	if strings.TrimSpace(c.AppID) == "" {
		return fmt.Errorf("app_id is required: %w", common_models.ErrValidation)
	}
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("api_key is required: %w", common_models.ErrValidation)
	}
	switch c.Status {
	case StatusActive, StatusInactive:
	default:
		return fmt.Errorf("unknown status %q: %w", c.Status, common_models.ErrValidation)
	}
	return nil
}

// Apply merges the update into a copy of c and returns the changed bson fields
func (c Connection) Apply(u ConnectionUpdate) (Connection, map[string]interface{}) {
	set := map[string]interface{}{}
	if u.AppName != nil {
		c.AppName = *u.AppName
		set["app_name"] = c.AppName
	}
	if u.AppID != nil {
		c.AppID = strings.TrimSpace(*u.AppID)
		set["app_id"] = c.AppID
	}
	if u.APIKey != nil {
		c.APIKey = strings.TrimSpace(*u.APIKey)
		set["api_key"] = c.APIKey
	}
	if u.Status != nil {
		c.Status = *u.Status
		set["status"] = c.Status
	}
	return c, set
}

// Masked hides all but the last four characters of the api key
func (c Connection) Masked() Connection {
	c.APIKey = MaskKey(c.APIKey)
	return c
}

func MaskKey(key string) string {
	if len(key) <= 4 {
		return strings.Repeat("*", len(key))
	}
	return strings.Repeat("*", 8) + key[len(key)-4:]
}
