package sync

import (
	"errors"
	"fmt"
	"strconv"

	"go-glsync/internal/common/api"
	"go-glsync/internal/common/export"
	common_models "go-glsync/internal/common/models"
	"go-glsync/internal/realtime"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

const watchBuffer = 32

type SyncController struct {
	Executor ExecutorService
	Tracker  TrackerService
}

func NewSyncController(executor ExecutorService, tracker TrackerService) *SyncController {
	return &SyncController{Executor: executor, Tracker: tracker}
}

type triggerRequest struct {
	ConnectionID string `json:"connection_id"`
}

// TriggerSync godoc
// @Summary      Run a sync for one mapping
// @Tags         sync
// @Accept       json
// @Param        id   path string         true  "Mapping ID"
// @Param        body body triggerRequest false "Owning connection"
// @Success      200 {object} TriggerResult
// @Failure      409 {object} TriggerResult
// @Failure      502 {object} TriggerResult
// @Router       /api/sync/mappings/{id}/trigger [post]
func (ctrl *SyncController) TriggerSync(c *fiber.Ctx) error {
	var req triggerRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}
	}
	if req.ConnectionID == "" {
		req.ConnectionID = c.Query("connection_id")
	}

	result, err := ctrl.Executor.Trigger(c.UserContext(), req.ConnectionID, c.Params("id"))
	switch {
	case errors.Is(err, ErrSyncInProgress), errors.Is(err, ErrMappingDisabled):
		return c.Status(fiber.StatusConflict).JSON(TriggerResult{Error: err.Error()})
	case err != nil && result != nil:
		return c.Status(fiber.StatusBadGateway).JSON(result)
	case err != nil:
		return api.Fail(c, err)
	}
	return c.JSON(result)
}

// ListStatuses godoc
// @Summary      Derived sync status of every mapping
// @Tags         sync
// @Success      200 {object} map[string]interface{}
// @Router       /api/sync/status [get]
func (ctrl *SyncController) ListStatuses(c *fiber.Ctx) error {
	statuses, err := ctrl.Tracker.ListStatuses(c.UserContext())
	if err != nil {
		return api.Fail(c, err)
	}
	return c.JSON(fiber.Map{"data": statuses})
}

// GetStatus godoc
// @Summary      Derived sync status of one mapping
// @Tags         sync
// @Param        id path string true "Mapping ID"
// @Success      200 {object} SyncStatus
// @Router       /api/sync/status/{id} [get]
func (ctrl *SyncController) GetStatus(c *fiber.Ctx) error {
	status, err := ctrl.Tracker.GetStatus(c.UserContext(), c.Params("id"))
	if err != nil {
		return api.Fail(c, err)
	}
	return c.JSON(status)
}

// GetStats godoc
// @Summary      Daily sync statistics
// @Tags         sync
// @Param        range query string false "7, 14, 30 or all" default(30)
// @Success      200 {object} Stats
// @Router       /api/sync/stats [get]
func (ctrl *SyncController) GetStats(c *fiber.Ctx) error {
	rangeDays, err := parseRange(c.Query("range", "30"))
	if err != nil {
		return api.Fail(c, err)
	}

	stats, err := ctrl.Tracker.GetStats(c.UserContext(), rangeDays)
	if err != nil {
		return api.Fail(c, err)
	}
	return c.JSON(stats)
}

func parseRange(raw string) (int, error) {
	if raw == "all" {
		return 0, nil
	}
	days, err := strconv.Atoi(raw)
	if err != nil || !ValidRange(days) || days == 0 {
		return 0, fmt.Errorf("range must be one of 7, 14, 30 or all: %w", common_models.ErrValidation)
	}
	return days, nil
}

// ListLogs godoc
// @Summary      Sync logs, newest first
// @Tags         sync
// @Param        mapping_id query string false "Mapping ID"
// @Param        limit      query int    false "Max rows" default(50)
// @Success      200 {object} map[string]interface{}
// @Router       /api/sync/logs [get]
func (ctrl *SyncController) ListLogs(c *fiber.Ctx) error {
	limit, _ := strconv.ParseInt(c.Query("limit", "0"), 10, 64)

	logs, err := ctrl.Tracker.ListLogs(c.UserContext(), c.Query("mapping_id"), limit)
	if err != nil {
		return api.Fail(c, err)
	}
	return c.JSON(fiber.Map{"data": logs})
}

// RecentLogs godoc
// @Summary      Latest sync logs across mappings
// @Tags         sync
// @Param        limit query int false "Max rows" default(20)
// @Success      200 {object} map[string]interface{}
// @Router       /api/sync/logs/recent [get]
func (ctrl *SyncController) RecentLogs(c *fiber.Ctx) error {
	limit, _ := strconv.ParseInt(c.Query("limit", "0"), 10, 64)

	logs, err := ctrl.Tracker.RecentLogs(c.UserContext(), limit)
	if err != nil {
		return api.Fail(c, err)
	}
	return c.JSON(fiber.Map{"data": logs})
}

// ExportLogs godoc
// @Summary      Download sync logs as XLSX
// @Tags         sync
// @Produce      application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param        mapping_id query string false "Mapping ID"
// @Success      200 {file} file
// @Router       /api/sync/logs/export [get]
func (ctrl *SyncController) ExportLogs(c *fiber.Ctx) error {
	data, filename, err := ctrl.Tracker.ExportLogs(c.UserContext(), c.Query("mapping_id"))
	if err != nil {
		return api.Fail(c, err)
	}

	c.Set(fiber.HeaderContentType, export.ContentTypeXLSX)
	c.Attachment(filename)
	return c.Send(data)
}

// WatchStatus pushes a notice for every mapping or sync log change so the
// client can re-read the statuses it shows.
func (ctrl *SyncController) WatchStatus(conn *websocket.Conn) {
	changes := make(chan realtime.Change, watchBuffer)
	done := make(chan struct{})

	unsubscribe := ctrl.Tracker.Subscribe(func(change realtime.Change) {
		select {
		case changes <- change:
		case <-done:
		default:
		}
	})
	defer unsubscribe()

	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case change := <-changes:
			if err := conn.WriteJSON(fiber.Map{
				"type":  "change",
				"table": change.Table,
				"event": change.Event,
				"new":   change.New,
				"old":   change.Old,
			}); err != nil {
				return
			}
		}
	}
}
