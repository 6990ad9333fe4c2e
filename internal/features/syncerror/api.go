package syncerror

import (
	"go-glsync/internal/common/api"
	"go-glsync/internal/config"
	"go-glsync/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type SyncErrorApi struct {
	controller *SyncErrorController
	config     *config.Config
}

func NewSyncErrorApi(controller *SyncErrorController, config *config.Config) api.Route {
	return &SyncErrorApi{
		controller: controller,
		config:     config,
	}
}

func (h *SyncErrorApi) Setup(app *fiber.App) {
	group := app.Group("/api/sync", middleware.AuthMiddleware(h.config.SkipAuth))

	group.Get("/errors", h.controller.ListErrors)
	group.Get("/errors/export", h.controller.ExportErrors)
	group.Post("/errors/:id/resolve", h.controller.ResolveError)
	group.Post("/errors/:id/retry", h.controller.RetryError)
	group.Post("/mappings/:id/errors/resolve-all", h.controller.ResolveAll)
}
