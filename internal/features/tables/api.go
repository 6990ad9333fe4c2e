package tables

import (
	"go-glsync/internal/common/api"
	"go-glsync/internal/config"
	"go-glsync/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type TableApi struct {
	controller *TableController
	config     *config.Config
}

func NewTableApi(controller *TableController, config *config.Config) api.Route {
	return &TableApi{
		controller: controller,
		config:     config,
	}
}

func (h *TableApi) Setup(app *fiber.App) {
	group := app.Group("/api/tables", middleware.AuthMiddleware(h.config.SkipAuth))

	group.Get("/", h.controller.ListTables)
	group.Post("/", h.controller.CreateTable)
	group.Get("/:name/columns", h.controller.GetColumns)
}
