package mapping

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	common_models "go-glsync/internal/common/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	RowIDKey    = "$rowID"
	RowIDColumn = "glide_row_id"

	// ConnectionCreatePath is where clients are sent when no connection exists yet
	ConnectionCreatePath = "/api/connections"
)

var ErrNoConnections = errors.New("no connections configured")

type SyncDirection string

const (
	DirectionToSupabase SyncDirection = "to_supabase"
	DirectionToGlide    SyncDirection = "to_glide"
	DirectionBoth       SyncDirection = "both"
)

var SyncDirections = []SyncDirection{DirectionToSupabase, DirectionToGlide, DirectionBoth}

func (d SyncDirection) Valid() bool {
	switch d {
	case DirectionToSupabase, DirectionToGlide, DirectionBoth:
		return true
	}
	return false
}

type DataType string

const (
	TypeString   DataType = "string"
	TypeNumber   DataType = "number"
	TypeBoolean  DataType = "boolean"
	TypeDateTime DataType = "date-time"
	TypeImageURI DataType = "image-uri"
	TypeEmail    DataType = "email-address"
)

var DataTypes = []DataType{TypeString, TypeNumber, TypeBoolean, TypeDateTime, TypeImageURI, TypeEmail}

func (t DataType) Valid() bool {
	for _, dt := range DataTypes {
		if t == dt {
			return true
		}
	}
	return false
}

type ColumnMapping struct {
	GlideColumnName    string   `json:"glide_column_name" bson:"glide_column_name"`
	SupabaseColumnName string   `json:"supabase_column_name" bson:"supabase_column_name"`
	DataType           DataType `json:"data_type" bson:"data_type"`
}

// RowIDMapping joins Glide rows to their relational copy
func RowIDMapping() ColumnMapping {
	return ColumnMapping{
		GlideColumnName:    RowIDKey,
		SupabaseColumnName: RowIDColumn,
		DataType:           TypeString,
	}
}

// ColumnMappings is keyed by Glide column id or a temporary editor key.
// Keys like "$rowID" are not valid Mongo field names, so the map is stored
// as an array of keyed entries.
type ColumnMappings map[string]ColumnMapping

type columnEntry struct {
	Key           string `bson:"key"`
	ColumnMapping `bson:",inline"`
}

func (m ColumnMappings) MarshalBSONValue() (bsontype.Type, []byte, error) {
	entries := make([]columnEntry, 0, len(m))
	for _, key := range m.Keys() {
		entries = append(entries, columnEntry{Key: key, ColumnMapping: m[key]})
	}
	return bson.MarshalValue(entries)
}

func (m *ColumnMappings) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	out := ColumnMappings{}
	if t != bsontype.Null && t != bsontype.Undefined {
		var entries []columnEntry
		if err := bson.UnmarshalValue(t, data, &entries); err != nil {
			return err
		}
		for _, e := range entries {
			out[e.Key] = e.ColumnMapping
		}
	}
	*m = out
	return nil
}

// Keys returns $rowID first, then the rest sorted
func (m ColumnMappings) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		if k != RowIDKey {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	if _, ok := m[RowIDKey]; ok {
		keys = append([]string{RowIDKey}, keys...)
	}
	return keys
}

func (m ColumnMappings) Clone() ColumnMappings {
	out := make(ColumnMappings, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// WithRowID returns a copy that is guaranteed to carry the $rowID entry
func (m ColumnMappings) WithRowID() ColumnMappings {
	out := m.Clone()
	if _, ok := out[RowIDKey]; !ok {
		out[RowIDKey] = RowIDMapping()
	}
	return out
}

func (m ColumnMappings) Validate() error {
	seen := map[string]string{}
	for _, key := range m.Keys() {
		cm := m[key]
		if strings.TrimSpace(cm.GlideColumnName) == "" {
			return fmt.Errorf("column %s: glide_column_name is required: %w", key, common_models.ErrValidation)
		}
		if strings.TrimSpace(cm.SupabaseColumnName) == "" {
			return fmt.Errorf("column %s: supabase_column_name is required: %w", key, common_models.ErrValidation)
		}
		if !cm.DataType.Valid() {
			return fmt.Errorf("column %s: unknown data_type %q: %w", key, cm.DataType, common_models.ErrValidation)
		}
		if other, dup := seen[cm.SupabaseColumnName]; dup {
			return fmt.Errorf("columns %s and %s both target %q: %w", other, key, cm.SupabaseColumnName, common_models.ErrValidation)
		}
		seen[cm.SupabaseColumnName] = key
	}
	if key := m[RowIDKey]; key.GlideColumnName != RowIDKey {
		return fmt.Errorf("the %s mapping must keep its glide column: %w", RowIDKey, common_models.ErrValidation)
	}
	return nil
}

type Mapping struct {
	ID                    primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	ConnectionID          primitive.ObjectID `json:"connection_id" bson:"connection_id"`
	GlideTable            string             `json:"glide_table" bson:"glide_table"`
	GlideTableDisplayName string             `json:"glide_table_display_name" bson:"glide_table_display_name"`
	SupabaseTable         string             `json:"supabase_table" bson:"supabase_table"`
	ColumnMappings        ColumnMappings     `json:"column_mappings" bson:"column_mappings"`
	SyncDirection         SyncDirection      `json:"sync_direction" bson:"sync_direction"`
	Enabled               bool               `json:"enabled" bson:"enabled"`
	CreatedAt             time.Time          `json:"created_at" bson:"created_at"`
}

func (m *Mapping) Validate() error {
	if m.ConnectionID.IsZero() {
		return fmt.Errorf("connection_id is required: %w", common_models.ErrValidation)
	}
	if strings.TrimSpace(m.GlideTable) == "" {
		return fmt.Errorf("glide_table is required: %w", common_models.ErrValidation)
	}
	if strings.TrimSpace(m.SupabaseTable) == "" {
		return fmt.Errorf("supabase_table is required: %w", common_models.ErrValidation)
	}
	if !m.SyncDirection.Valid() {
		return fmt.Errorf("unknown sync_direction %q: %w", m.SyncDirection, common_models.ErrValidation)
	}
	return m.ColumnMappings.Validate()
}

// CreateMappingRequest is the form body; connection_id arrives as a hex string
type CreateMappingRequest struct {
	ConnectionID          string         `json:"connection_id"`
	GlideTable            string         `json:"glide_table"`
	GlideTableDisplayName string         `json:"glide_table_display_name"`
	SupabaseTable         string         `json:"supabase_table"`
	SyncDirection         SyncDirection  `json:"sync_direction"`
	ColumnMappings        ColumnMappings `json:"column_mappings"`
}

func (r CreateMappingRequest) ToMapping() (*Mapping, error) {
	m := &Mapping{
		GlideTable:            strings.TrimSpace(r.GlideTable),
		GlideTableDisplayName: strings.TrimSpace(r.GlideTableDisplayName),
		SupabaseTable:         strings.TrimSpace(r.SupabaseTable),
		SyncDirection:         r.SyncDirection,
		ColumnMappings:        r.ColumnMappings,
	}
	if r.ConnectionID != "" {
		oid, err := primitive.ObjectIDFromHex(r.ConnectionID)
		if err != nil {
			return nil, fmt.Errorf("invalid connection_id %q: %w", r.ConnectionID, common_models.ErrValidation)
		}
		m.ConnectionID = oid
	}
	return m, nil
}

// MappingUpdate is a partial update; nil fields are left untouched
type MappingUpdate struct {
	GlideTable            *string         `json:"glide_table,omitempty"`
	GlideTableDisplayName *string         `json:"glide_table_display_name,omitempty"`
	SupabaseTable         *string         `json:"supabase_table,omitempty"`
	SyncDirection         *SyncDirection  `json:"sync_direction,omitempty"`
	ColumnMappings        *ColumnMappings `json:"column_mappings,omitempty"`
	Enabled               *bool           `json:"enabled,omitempty"`
}

// Apply merges the update into a copy of m and returns the changed bson fields
func (m Mapping) Apply(u MappingUpdate) (Mapping, map[string]interface{}) {
	set := map[string]interface{}{}
	if u.GlideTable != nil {
		m.GlideTable = strings.TrimSpace(*u.GlideTable)
		set["glide_table"] = m.GlideTable
	}
	if u.GlideTableDisplayName != nil {
		m.GlideTableDisplayName = strings.TrimSpace(*u.GlideTableDisplayName)
		set["glide_table_display_name"] = m.GlideTableDisplayName
	}
	if u.SupabaseTable != nil {
		m.SupabaseTable = strings.TrimSpace(*u.SupabaseTable)
		set["supabase_table"] = m.SupabaseTable
	}
	if u.SyncDirection != nil {
		m.SyncDirection = *u.SyncDirection
		set["sync_direction"] = m.SyncDirection
	}
	if u.ColumnMappings != nil {
		m.ColumnMappings = u.ColumnMappings.WithRowID()
		set["column_mappings"] = m.ColumnMappings
	}
	if u.Enabled != nil {
		m.Enabled = *u.Enabled
		set["enabled"] = m.Enabled
	}
	return m, set
}

type Filter struct {
	ConnectionID string
	Enabled      *bool
}

// Form is what a client needs to render the mapping creation form
type Form struct {
	Connections    []FormConnection `json:"connections"`
	SyncDirections []SyncDirection  `json:"sync_directions"`
	DataTypes      []DataType       `json:"data_types"`
	Redirect       string           `json:"redirect,omitempty"`
}

type FormConnection struct {
	ID      string `json:"id"`
	AppName string `json:"app_name"`
	AppID   string `json:"app_id"`
}
