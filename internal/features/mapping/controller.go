package mapping

import (
	"errors"
	"net/url"
	"strconv"

	"go-glsync/internal/common/api"

	"github.com/gofiber/fiber/v2"
)

type MappingController struct {
	Service  MappingService
	Sessions *SessionStore
}

func NewMappingController(service MappingService, sessions *SessionStore) *MappingController {
	return &MappingController{
		Service:  service,
		Sessions: sessions,
	}
}

func fail(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, ErrNoConnections):
		c.Location(ConnectionCreatePath)
		return c.Status(fiber.StatusSeeOther).JSON(fiber.Map{
			"error":    err.Error(),
			"redirect": ConnectionCreatePath,
		})
	case errors.Is(err, ErrNotEditing), errors.Is(err, ErrAlreadyEditing):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return api.Fail(c, err)
}

func invalidBody(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": "Invalid request body",
	})
}

// ListMappings godoc
// @Summary      List mappings
// @Tags         mappings
// @Param        connection_id query string false "Only mappings of this connection"
// @Param        enabled       query bool   false "Filter by enabled"
// @Success      200 {object} map[string]interface{}
// @Router       /api/mappings [get]
func (ctrl *MappingController) ListMappings(c *fiber.Ctx) error {
	filter := Filter{ConnectionID: c.Query("connection_id")}
	if raw := c.Query("enabled"); raw != "" {
		enabled, err := strconv.ParseBool(raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "enabled must be a boolean",
			})
		}
		filter.Enabled = &enabled
	}

	mappings, err := ctrl.Service.List(c.UserContext(), filter)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"data": mappings})
}

// NewMappingForm godoc
// @Summary      Options for the mapping creation form
// @Description  Redirects (303) to connection creation when no connection exists
// @Tags         mappings
// @Success      200 {object} Form
// @Failure      303 {object} Form
// @Router       /api/mappings/new [get]
func (ctrl *MappingController) NewMappingForm(c *fiber.Ctx) error {
	form, err := ctrl.Service.NewForm(c.UserContext())
	if err != nil {
		return fail(c, err)
	}
	if form.Redirect != "" {
		c.Location(form.Redirect)
		return c.Status(fiber.StatusSeeOther).JSON(form)
	}
	return c.JSON(form)
}

// GetMapping godoc
// @Summary      Get a mapping
// @Tags         mappings
// @Param        id path string true "Mapping ID"
// @Success      200 {object} Mapping
// @Router       /api/mappings/{id} [get]
func (ctrl *MappingController) GetMapping(c *fiber.Ctx) error {
	m, err := ctrl.Service.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(m)
}

// CreateMapping godoc
// @Summary      Create a mapping (starts disabled)
// @Tags         mappings
// @Accept       json
// @Param        mapping body CreateMappingRequest true "connection_id, glide_table and supabase_table are required"
// @Success      201 {object} map[string]interface{}
// @Failure      303 {object} map[string]interface{}
// @Router       /api/mappings [post]
func (ctrl *MappingController) CreateMapping(c *fiber.Ctx) error {
	var req CreateMappingRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}

	m, err := req.ToMapping()
	if err != nil {
		return fail(c, err)
	}
	if err := ctrl.Service.Create(c.UserContext(), m); err != nil {
		return fail(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Mapping created successfully",
		"data":    m,
	})
}

// UpdateMapping godoc
// @Summary      Update a mapping
// @Tags         mappings
// @Accept       json
// @Param        id     path string        true "Mapping ID"
// @Param        update body MappingUpdate true "Fields to change"
// @Success      200 {object} map[string]interface{}
// @Router       /api/mappings/{id} [put]
func (ctrl *MappingController) UpdateMapping(c *fiber.Ctx) error {
	var update MappingUpdate
	if err := c.BodyParser(&update); err != nil {
		return invalidBody(c)
	}

	m, err := ctrl.Service.Update(c.UserContext(), c.Params("id"), update)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"message": "Mapping updated successfully",
		"data":    m,
	})
}

// DeleteMapping godoc
// @Summary      Delete a mapping
// @Tags         mappings
// @Param        id path string true "Mapping ID"
// @Success      200 {object} map[string]interface{}
// @Router       /api/mappings/{id} [delete]
func (ctrl *MappingController) DeleteMapping(c *fiber.Ctx) error {
	if err := ctrl.Service.Delete(c.UserContext(), c.Params("id")); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"message": "Mapping deleted successfully",
	})
}

// ToggleMapping godoc
// @Summary      Flip the enabled flag
// @Tags         mappings
// @Param        id path string true "Mapping ID"
// @Success      200 {object} Mapping
// @Router       /api/mappings/{id}/toggle [post]
func (ctrl *MappingController) ToggleMapping(c *fiber.Ctx) error {
	m, err := ctrl.Service.ToggleEnabled(c.UserContext(), c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(m)
}

type targetTableRequest struct {
	Table string `json:"table"`
}

// ChangeTargetTable godoc
// @Summary      Point a mapping at another relational table
// @Tags         mappings
// @Accept       json
// @Param        id   path string true "Mapping ID"
// @Param        body body targetTableRequest true "New table"
// @Success      200 {object} Mapping
// @Router       /api/mappings/{id}/target-table [put]
func (ctrl *MappingController) ChangeTargetTable(c *fiber.Ctx) error {
	var req targetTableRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}

	m, err := ctrl.Service.ChangeTargetTable(c.UserContext(), c.Params("id"), req.Table)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(m)
}

type columnsRequest struct {
	ColumnMappings ColumnMappings `json:"column_mappings"`
}

// SaveColumns godoc
// @Summary      Replace the column mappings
// @Tags         mappings
// @Accept       json
// @Param        id   path string true "Mapping ID"
// @Param        body body columnsRequest true "Complete column map"
// @Success      200 {object} Mapping
// @Router       /api/mappings/{id}/columns [put]
func (ctrl *MappingController) SaveColumns(c *fiber.Ctx) error {
	var req columnsRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}

	m, err := ctrl.Service.SaveColumnMappings(c.UserContext(), c.Params("id"), req.ColumnMappings)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(m)
}

// OpenColumnEdit godoc
// @Summary      Start a column-mapping edit session
// @Tags         column-edits
// @Param        id path string true "Mapping ID"
// @Success      201 {object} SessionView
// @Router       /api/mappings/{id}/column-edits [post]
func (ctrl *MappingController) OpenColumnEdit(c *fiber.Ctx) error {
	m, err := ctrl.Service.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return fail(c, err)
	}

	session, err := ctrl.Sessions.Open(m)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(session.View())
}

func (ctrl *MappingController) session(c *fiber.Ctx) (*EditSession, error) {
	return ctrl.Sessions.Get(c.Params("session"))
}

func entryKey(c *fiber.Ctx) string {
	key, err := url.PathUnescape(c.Params("key"))
	if err != nil {
		return c.Params("key")
	}
	return key
}

// GetColumnEdit godoc
// @Summary      Show the scratch columns of an edit session
// @Tags         column-edits
// @Param        session path string true "Session ID"
// @Success      200 {object} SessionView
// @Router       /api/column-edits/{session} [get]
func (ctrl *MappingController) GetColumnEdit(c *fiber.Ctx) error {
	session, err := ctrl.session(c)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(session.View())
}

type addEntryRequest struct {
	GlideColumnName string   `json:"glide_column_name"`
	DataType        DataType `json:"data_type"`
}

// AddColumnEntry godoc
// @Summary      Add a scratch column under a new temporary key
// @Tags         column-edits
// @Accept       json
// @Param        session path string true "Session ID"
// @Param        body    body addEntryRequest false "Initial values"
// @Success      201 {object} map[string]interface{}
// @Router       /api/column-edits/{session}/entries [post]
func (ctrl *MappingController) AddColumnEntry(c *fiber.Ctx) error {
	session, err := ctrl.session(c)
	if err != nil {
		return fail(c, err)
	}

	var req addEntryRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return invalidBody(c)
		}
	}

	key, err := session.Editor.Add(req.GlideColumnName, req.DataType)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"key":     key,
		"session": session.View(),
	})
}

// UpdateColumnEntry godoc
// @Summary      Change fields of a scratch column
// @Tags         column-edits
// @Accept       json
// @Param        session path string true "Session ID"
// @Param        key     path string true "Column key"
// @Param        body    body map[string]string true "field -> value"
// @Success      200 {object} SessionView
// @Router       /api/column-edits/{session}/entries/{key} [patch]
func (ctrl *MappingController) UpdateColumnEntry(c *fiber.Ctx) error {
	session, err := ctrl.session(c)
	if err != nil {
		return fail(c, err)
	}

	var fields map[string]string
	if err := c.BodyParser(&fields); err != nil {
		return invalidBody(c)
	}

	changes := make(map[ColumnField]string, len(fields))
	for field, value := range fields {
		changes[ColumnField(field)] = value
	}
	if err := session.Editor.SetFields(entryKey(c), changes); err != nil {
		return fail(c, err)
	}
	return c.JSON(session.View())
}

// RemoveColumnEntry godoc
// @Summary      Remove a scratch column
// @Tags         column-edits
// @Param        session path string true "Session ID"
// @Param        key     path string true "Column key"
// @Success      200 {object} SessionView
// @Router       /api/column-edits/{session}/entries/{key} [delete]
func (ctrl *MappingController) RemoveColumnEntry(c *fiber.Ctx) error {
	session, err := ctrl.session(c)
	if err != nil {
		return fail(c, err)
	}
	if err := session.Editor.Remove(entryKey(c)); err != nil {
		return fail(c, err)
	}
	return c.JSON(session.View())
}

// CommitColumnEdit godoc
// @Summary      Save the scratch columns to the mapping
// @Tags         column-edits
// @Param        session path string true "Session ID"
// @Success      200 {object} Mapping
// @Router       /api/column-edits/{session}/commit [post]
func (ctrl *MappingController) CommitColumnEdit(c *fiber.Ctx) error {
	session, err := ctrl.session(c)
	if err != nil {
		return fail(c, err)
	}

	m, err := session.Editor.Commit(c.UserContext(), ctrl.Service)
	if err != nil {
		return fail(c, err)
	}
	ctrl.Sessions.Close(session.ID)
	return c.JSON(m)
}

// CancelColumnEdit godoc
// @Summary      Discard an edit session
// @Tags         column-edits
// @Param        session path string true "Session ID"
// @Success      204
// @Router       /api/column-edits/{session} [delete]
func (ctrl *MappingController) CancelColumnEdit(c *fiber.Ctx) error {
	ctrl.Sessions.Close(c.Params("session"))
	return c.SendStatus(fiber.StatusNoContent)
}
