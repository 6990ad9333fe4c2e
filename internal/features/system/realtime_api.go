package system

import (
	"go-glsync/internal/common/api"
	"go-glsync/internal/config"
	"go-glsync/internal/middleware"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

type RealtimeApi struct {
	controller *RealtimeController
	config     *config.Config
}

func NewRealtimeApi(controller *RealtimeController, config *config.Config) api.Route {
	return &RealtimeApi{
		controller: controller,
		config:     config,
	}
}

func (h *RealtimeApi) Setup(app *fiber.App) {
	app.Get("/api/realtime",
		middleware.AuthMiddleware(h.config.SkipAuth),
		func(c *fiber.Ctx) error {
			if !websocket.IsWebSocketUpgrade(c) {
				return fiber.ErrUpgradeRequired
			}
			return c.Next()
		},
		websocket.New(h.controller.HandleRealtime),
	)
}
