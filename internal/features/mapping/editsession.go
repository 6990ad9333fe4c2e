package mapping

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	common_models "go-glsync/internal/common/models"
	"go-glsync/pkg/utils"

	"github.com/google/uuid"
)

type EditorState string

const (
	StateViewing EditorState = "viewing"
	StateEditing EditorState = "editing"
)

const TempKeyPrefix = "new_"

var (
	ErrNotEditing     = errors.New("column editor is not editing")
	ErrAlreadyEditing = errors.New("column editor is already editing")
)

// ColumnField names an editable attribute of a ColumnMapping
type ColumnField string

const (
	FieldGlideColumn    ColumnField = "glide_column_name"
	FieldSupabaseColumn ColumnField = "supabase_column_name"
	FieldDataType       ColumnField = "data_type"
)

// ColumnSaver persists a committed column map
type ColumnSaver interface {
	SaveColumnMappings(ctx context.Context, id string, columns ColumnMappings) (*Mapping, error)
}

// ColumnEditor edits a scratch copy of a mapping's columns. Nothing reaches
// the mapping until Commit; Cancel drops the scratch copy.
type ColumnEditor struct {
	mu        sync.Mutex
	state     EditorState
	mappingID string
	draft     ColumnMappings
}

func NewColumnEditor() *ColumnEditor {
	return &ColumnEditor{state: StateViewing}
}

func (e *ColumnEditor) State() EditorState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *ColumnEditor) MappingID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mappingID
}

func (e *ColumnEditor) Begin(m *Mapping) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateEditing {
		return ErrAlreadyEditing
	}
	e.mappingID = m.ID.Hex()
	e.draft = m.ColumnMappings.WithRowID()
	e.state = StateEditing
	return nil
}

// Draft returns a copy of the scratch columns
func (e *ColumnEditor) Draft() (ColumnMappings, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateEditing {
		return nil, ErrNotEditing
	}
	return e.draft.Clone(), nil
}

func (e *ColumnEditor) Set(key string, field ColumnField, value string) error {
	return e.SetFields(key, map[ColumnField]string{field: value})
}

// SetFields changes several fields of one entry; nothing is applied unless all are valid
func (e *ColumnEditor) SetFields(key string, fields map[ColumnField]string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateEditing {
		return ErrNotEditing
	}

	cm, ok := e.draft[key]
	if !ok {
		return fmt.Errorf("column %s: %w", key, common_models.ErrNotFound)
	}

	for field, value := range fields {
		if err := setField(&cm, key, field, value); err != nil {
			return err
		}
	}
	e.draft[key] = cm
	return nil
}

func setField(cm *ColumnMapping, key string, field ColumnField, value string) error {
	value = strings.TrimSpace(value)
	switch field {
	case FieldGlideColumn:
		if key == RowIDKey && value != RowIDKey {
			return fmt.Errorf("the %s glide column cannot change: %w", RowIDKey, common_models.ErrValidation)
		}
		cm.GlideColumnName = value
	case FieldSupabaseColumn:
		cm.SupabaseColumnName = value
	case FieldDataType:
		if !DataType(value).Valid() {
			return fmt.Errorf("unknown data_type %q: %w", value, common_models.ErrValidation)
		}
		cm.DataType = DataType(value)
	default:
		return fmt.Errorf("unknown field %q: %w", field, common_models.ErrValidation)
	}
	return nil
}

// Add inserts an entry under a fresh temporary key. The relational column
// name is derived from the Glide column when one is given.
func (e *ColumnEditor) Add(glideColumn string, dataType DataType) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateEditing {
		return "", ErrNotEditing
	}
	if dataType == "" {
		dataType = TypeString
	}
	if !dataType.Valid() {
		return "", fmt.Errorf("unknown data_type %q: %w", dataType, common_models.ErrValidation)
	}

	key := TempKeyPrefix + uuid.NewString()

	glideColumn = strings.TrimSpace(glideColumn)
	e.draft[key] = ColumnMapping{
		GlideColumnName:    glideColumn,
		SupabaseColumnName: utils.ColumnName(glideColumn),
		DataType:           dataType,
	}
	return key, nil
}

func (e *ColumnEditor) Remove(key string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateEditing {
		return ErrNotEditing
	}
	if key == RowIDKey {
		return fmt.Errorf("the %s mapping cannot be removed: %w", RowIDKey, common_models.ErrValidation)
	}
	if _, ok := e.draft[key]; !ok {
		return fmt.Errorf("column %s: %w", key, common_models.ErrNotFound)
	}
	delete(e.draft, key)
	return nil
}

// Commit saves the scratch columns with one update and returns to viewing.
// On error the editor stays in editing so the draft can be fixed.
func (e *ColumnEditor) Commit(ctx context.Context, saver ColumnSaver) (*Mapping, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateEditing {
		return nil, ErrNotEditing
	}

	saved, err := saver.SaveColumnMappings(ctx, e.mappingID, e.draft.Clone())
	if err != nil {
		return nil, err
	}
	e.reset()
	return saved, nil
}

func (e *ColumnEditor) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reset()
}

func (e *ColumnEditor) reset() {
	e.state = StateViewing
	e.draft = nil
}

// EditSession is a ColumnEditor addressable over HTTP
type EditSession struct {
	ID       string
	Editor   *ColumnEditor
	lastSeen time.Time
}

type SessionView struct {
	ID        string         `json:"id"`
	MappingID string         `json:"mapping_id"`
	State     EditorState    `json:"state"`
	Columns   ColumnMappings `json:"column_mappings"`
}

func (s *EditSession) View() SessionView {
	view := SessionView{
		ID:        s.ID,
		MappingID: s.Editor.MappingID(),
		State:     s.Editor.State(),
	}
	view.Columns, _ = s.Editor.Draft()
	return view
}

// SessionStore keeps open edit sessions in memory until they go idle
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*EditSession
	ttl      time.Duration
	now      func() time.Time
}

func NewSessionStore(ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &SessionStore{
		sessions: make(map[string]*EditSession),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (s *SessionStore) Open(m *Mapping) (*EditSession, error) {
	editor := NewColumnEditor()
	if err := editor.Begin(m); err != nil {
		return nil, err
	}

	session := &EditSession{
		ID:       uuid.NewString(),
		Editor:   editor,
		lastSeen: s.now(),
	}
	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()
	return session, nil
}

func (s *SessionStore) Get(id string) (*EditSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok || s.now().Sub(session.lastSeen) > s.ttl {
		return nil, fmt.Errorf("edit session %s: %w", id, common_models.ErrNotFound)
	}
	session.lastSeen = s.now()
	return session, nil
}

func (s *SessionStore) Close(id string) {
	s.mu.Lock()
	session, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if ok {
		session.Editor.Cancel()
	}
}

// Sweep drops idle sessions and returns how many were removed
func (s *SessionStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, session := range s.sessions {
		if s.now().Sub(session.lastSeen) > s.ttl {
			session.Editor.Cancel()
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
