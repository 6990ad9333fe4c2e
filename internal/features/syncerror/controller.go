package syncerror

import (
	"errors"
	"strconv"

	"go-glsync/internal/common/api"
	"go-glsync/internal/common/export"

	"github.com/gofiber/fiber/v2"
)

type SyncErrorController struct {
	Service SyncErrorService
}

func NewSyncErrorController(service SyncErrorService) *SyncErrorController {
	return &SyncErrorController{Service: service}
}

type resolveRequest struct {
	Notes string `json:"notes"`
}

func parseNotes(c *fiber.Ctx) string {
	var req resolveRequest
	if len(c.Body()) > 0 {
		_ = c.BodyParser(&req)
	}
	return req.Notes
}

// ListErrors godoc
// @Summary      List sync errors, newest first
// @Tags         sync-errors
// @Param        mapping_id       query string false "Mapping ID"
// @Param        include_resolved query bool   false "Include resolved errors"
// @Success      200 {object} map[string]interface{}
// @Router       /api/sync/errors [get]
func (ctrl *SyncErrorController) ListErrors(c *fiber.Ctx) error {
	includeResolved, _ := strconv.ParseBool(c.Query("include_resolved", "false"))

	errs, err := ctrl.Service.ListErrors(c.UserContext(), c.Query("mapping_id"), includeResolved)
	if err != nil {
		return api.Fail(c, err)
	}
	return c.JSON(fiber.Map{"data": errs})
}

// ResolveError godoc
// @Summary      Mark a sync error resolved
// @Tags         sync-errors
// @Accept       json
// @Param        id   path string         true  "Sync error ID"
// @Param        body body resolveRequest false "Resolution notes"
// @Success      200 {object} SyncError
// @Router       /api/sync/errors/{id}/resolve [post]
func (ctrl *SyncErrorController) ResolveError(c *fiber.Ctx) error {
	resolved, err := ctrl.Service.Resolve(c.UserContext(), c.Params("id"), parseNotes(c))
	if err != nil {
		return api.Fail(c, err)
	}
	return c.JSON(resolved)
}

// ResolveAll godoc
// @Summary      Resolve every active error of a mapping
// @Tags         sync-errors
// @Param        id path string true "Mapping ID"
// @Success      200 {object} map[string]interface{}
// @Router       /api/sync/mappings/{id}/errors/resolve-all [post]
func (ctrl *SyncErrorController) ResolveAll(c *fiber.Ctx) error {
	n, err := ctrl.Service.ResolveAll(c.UserContext(), c.Params("id"), parseNotes(c))
	if err != nil {
		return api.Fail(c, err)
	}
	return c.JSON(fiber.Map{"resolved": n})
}

// RetryError godoc
// @Summary      Replay the failed record
// @Tags         sync-errors
// @Param        id path string true "Sync error ID"
// @Success      200 {object} RetryResult
// @Failure      400 {object} RetryResult
// @Failure      502 {object} RetryResult
// @Router       /api/sync/errors/{id}/retry [post]
func (ctrl *SyncErrorController) RetryError(c *fiber.Ctx) error {
	ok, err := ctrl.Service.Retry(c.UserContext(), c.Params("id"))
	switch {
	case errors.Is(err, ErrNotRetryable):
		return c.Status(fiber.StatusBadRequest).JSON(RetryResult{Error: err.Error()})
	case errors.Is(err, ErrRetryFailed):
		return c.Status(fiber.StatusBadGateway).JSON(RetryResult{Error: err.Error()})
	case err != nil:
		return c.Status(api.ErrorStatus(err)).JSON(RetryResult{Error: err.Error()})
	}

	record, _ := ctrl.Service.Get(c.UserContext(), c.Params("id"))
	return c.JSON(RetryResult{Success: ok, Record: record})
}

// ExportErrors godoc
// @Summary      Download sync errors as XLSX
// @Tags         sync-errors
// @Produce      application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param        mapping_id query string false "Mapping ID"
// @Success      200 {file} file
// @Router       /api/sync/errors/export [get]
func (ctrl *SyncErrorController) ExportErrors(c *fiber.Ctx) error {
	data, filename, err := ctrl.Service.Export(c.UserContext(), c.Query("mapping_id"))
	if err != nil {
		return api.Fail(c, err)
	}

	c.Set(fiber.HeaderContentType, export.ContentTypeXLSX)
	c.Attachment(filename)
	return c.Send(data)
}
