package system

import (
	"context"
	"time"

	"go-glsync/internal/common/api"
	"go-glsync/internal/database"

	"github.com/gofiber/fiber/v2"
)

type HealthApi struct {
	mongo    *database.MongodbDB
	postgres *database.PostgresDB
}

func NewHealthApi(mongo *database.MongodbDB, postgres *database.PostgresDB) api.Route {
	return &HealthApi{mongo: mongo, postgres: postgres}
}

// Setup registers health check routes
func (h *HealthApi) Setup(app *fiber.App) {
	app.Get("/health", h.HealthCheck)
	app.Get("/health/ready", h.ReadyCheck)
}

// HealthCheck godoc
// @Summary      Health Check
// @Description  Check if the server is up
// @Tags         health
// @Produce      plain
// @Success      200  {string}  string  "OK"
// @Router       /health [get]
func (h *HealthApi) HealthCheck(c *fiber.Ctx) error {
	return c.SendString("OK")
}

// ReadyCheck godoc
// @Summary      Readiness Check
// @Description  Ping the metadata store and the relational backend
// @Tags         health
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      503  {object}  map[string]interface{}
// @Router       /health/ready [get]
func (h *HealthApi) ReadyCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 3*time.Second)
	defer cancel()

	checks := fiber.Map{"mongo": "ok", "postgres": "ok"}
	ready := true
	if err := h.mongo.Client.Ping(ctx, nil); err != nil {
		checks["mongo"] = err.Error()
		ready = false
	}
	if err := h.postgres.DB.PingContext(ctx); err != nil {
		checks["postgres"] = err.Error()
		ready = false
	}

	if !ready {
		return c.Status(fiber.StatusServiceUnavailable).JSON(checks)
	}
	return c.JSON(checks)
}
