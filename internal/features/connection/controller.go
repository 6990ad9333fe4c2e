package connection

import (
	"go-glsync/internal/common/api"

	"github.com/gofiber/fiber/v2"
)

type ConnectionController struct {
	Service ConnectionService
}

func NewConnectionController(service ConnectionService) *ConnectionController {
	return &ConnectionController{Service: service}
}

func maskAll(conns []Connection) []Connection {
	out := make([]Connection, len(conns))
	for i, c := range conns {
		out[i] = c.Masked()
	}
	return out
}

// ListConnections godoc
// @Summary      List Glide connections
// @Tags         connections
// @Produce      json
// @Success      200 {object} map[string]interface{}
// @Router       /api/connections [get]
func (ctrl *ConnectionController) ListConnections(c *fiber.Ctx) error {
	conns, err := ctrl.Service.List(c.UserContext())
	if err != nil {
		return api.Fail(c, err)
	}
	return c.JSON(fiber.Map{"data": maskAll(conns)})
}

// GetConnection godoc
// @Summary      Get a connection
// @Tags         connections
// @Param        id path string true "Connection ID"
// @Success      200 {object} Connection
// @Router       /api/connections/{id} [get]
func (ctrl *ConnectionController) GetConnection(c *fiber.Ctx) error {
	conn, err := ctrl.Service.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return api.Fail(c, err)
	}
	return c.JSON(conn.Masked())
}

// CreateConnection godoc
// @Summary      Create a connection
// @Tags         connections
// @Accept       json
// @Param        connection body Connection true "app_id and api_key are required"
// @Success      201 {object} map[string]interface{}
// @Failure      400 {object} map[string]interface{}
// @Router       /api/connections [post]
func (ctrl *ConnectionController) CreateConnection(c *fiber.Ctx) error {
	var conn Connection
	if err := c.BodyParser(&conn); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if err := ctrl.Service.Create(c.UserContext(), &conn); err != nil {
		return api.Fail(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Connection created successfully",
		"data":    conn.Masked(),
	})
}

// UpdateConnection godoc
// @Summary      Update a connection
// @Tags         connections
// @Accept       json
// @Param        id     path string           true "Connection ID"
// @Param        update body ConnectionUpdate true "Fields to change"
// @Success      200 {object} map[string]interface{}
// @Router       /api/connections/{id} [put]
func (ctrl *ConnectionController) UpdateConnection(c *fiber.Ctx) error {
	var update ConnectionUpdate
	if err := c.BodyParser(&update); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	conn, err := ctrl.Service.Update(c.UserContext(), c.Params("id"), update)
	if err != nil {
		return api.Fail(c, err)
	}

	return c.JSON(fiber.Map{
		"message": "Connection updated successfully",
		"data":    conn.Masked(),
	})
}

// DeleteConnection godoc
// @Summary      Delete a connection and its mappings
// @Tags         connections
// @Param        id path string true "Connection ID"
// @Success      200 {object} map[string]interface{}
// @Router       /api/connections/{id} [delete]
func (ctrl *ConnectionController) DeleteConnection(c *fiber.Ctx) error {
	if err := ctrl.Service.Delete(c.UserContext(), c.Params("id")); err != nil {
		return api.Fail(c, err)
	}
	return c.JSON(fiber.Map{
		"message": "Connection deleted successfully",
	})
}

// TestConnection godoc
// @Summary      Test a connection against Glide
// @Tags         connections
// @Param        id path string true "Connection ID"
// @Success      200 {object} TestResult
// @Router       /api/connections/{id}/test [post]
func (ctrl *ConnectionController) TestConnection(c *fiber.Ctx) error {
	result, err := ctrl.Service.Test(c.UserContext(), c.Params("id"))
	if err != nil {
		return api.Fail(c, err)
	}
	return c.JSON(result)
}
