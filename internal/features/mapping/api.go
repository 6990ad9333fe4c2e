package mapping

import (
	"go-glsync/internal/common/api"
	"go-glsync/internal/config"
	"go-glsync/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type MappingApi struct {
	controller *MappingController
	config     *config.Config
}

func NewMappingApi(controller *MappingController, config *config.Config) api.Route {
	return &MappingApi{
		controller: controller,
		config:     config,
	}
}

// Setup registers mapping and column-edit routes
func (h *MappingApi) Setup(app *fiber.App) {
	auth := middleware.AuthMiddleware(h.config.SkipAuth)

	mappings := app.Group("/api/mappings", auth)
	mappings.Get("/", h.controller.ListMappings)
	mappings.Post("/", h.controller.CreateMapping)
	mappings.Get("/new", h.controller.NewMappingForm)
	mappings.Get("/:id", h.controller.GetMapping)
	mappings.Put("/:id", h.controller.UpdateMapping)
	mappings.Delete("/:id", h.controller.DeleteMapping)
	mappings.Post("/:id/toggle", h.controller.ToggleMapping)
	mappings.Put("/:id/target-table", h.controller.ChangeTargetTable)
	mappings.Put("/:id/columns", h.controller.SaveColumns)
	mappings.Post("/:id/column-edits", h.controller.OpenColumnEdit)

	edits := app.Group("/api/column-edits", auth)
	edits.Get("/:session", h.controller.GetColumnEdit)
	edits.Delete("/:session", h.controller.CancelColumnEdit)
	edits.Post("/:session/entries", h.controller.AddColumnEntry)
	edits.Patch("/:session/entries/:key", h.controller.UpdateColumnEntry)
	edits.Delete("/:session/entries/:key", h.controller.RemoveColumnEntry)
	edits.Post("/:session/commit", h.controller.CommitColumnEdit)
}
