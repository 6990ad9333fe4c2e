package sync

import (
	"go-glsync/internal/common/api"
	"go-glsync/internal/config"
	"go-glsync/internal/middleware"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

type SyncApi struct {
	controller *SyncController
	config     *config.Config
}

func NewSyncApi(controller *SyncController, config *config.Config) api.Route {
	return &SyncApi{
		controller: controller,
		config:     config,
	}
}

func (h *SyncApi) Setup(app *fiber.App) {
	group := app.Group("/api/sync", middleware.AuthMiddleware(h.config.SkipAuth))

	group.Post("/mappings/:id/trigger", h.controller.TriggerSync)
	group.Get("/status", h.controller.ListStatuses)
	group.Get("/status/watch", websocket.New(h.controller.WatchStatus))
	group.Get("/status/:id", h.controller.GetStatus)
	group.Get("/stats", h.controller.GetStats)
	group.Get("/logs", h.controller.ListLogs)
	group.Get("/logs/recent", h.controller.RecentLogs)
	group.Get("/logs/export", h.controller.ExportLogs)
}
