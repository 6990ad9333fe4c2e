package connection

import (
	"go-glsync/internal/common/api"
	"go-glsync/internal/config"
	"go-glsync/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type ConnectionApi struct {
	controller *ConnectionController
	config     *config.Config
}

func NewConnectionApi(controller *ConnectionController, config *config.Config) api.Route {
	return &ConnectionApi{
		controller: controller,
		config:     config,
	}
}

// Setup registers all connection routes
func (h *ConnectionApi) Setup(app *fiber.App) {
	group := app.Group("/api/connections", middleware.AuthMiddleware(h.config.SkipAuth))

	group.Get("/", h.controller.ListConnections)
	group.Post("/", h.controller.CreateConnection)
	group.Get("/:id", h.controller.GetConnection)
	group.Put("/:id", h.controller.UpdateConnection)
	group.Delete("/:id", h.controller.DeleteConnection)
	group.Post("/:id/test", h.controller.TestConnection)
}
