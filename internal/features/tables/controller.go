package tables

import (
	"go-glsync/internal/common/api"

	"github.com/gofiber/fiber/v2"
)

type TableController struct {
	Service TableService
}

func NewTableController(service TableService) *TableController {
	return &TableController{Service: service}
}

// ListTables godoc
// @Summary      List gl_ tables of the relational backend
// @Tags         tables
// @Success      200 {object} map[string]interface{}
// @Router       /api/tables [get]
func (ctrl *TableController) ListTables(c *fiber.Ctx) error {
	tables, err := ctrl.Service.ListTables(c.UserContext())
	if err != nil {
		return api.Fail(c, err)
	}
	return c.JSON(fiber.Map{"data": tables})
}

// GetColumns godoc
// @Summary      Columns of a table
// @Tags         tables
// @Param        name path string true "Table name"
// @Success      200 {object} map[string]interface{}
// @Router       /api/tables/{name}/columns [get]
func (ctrl *TableController) GetColumns(c *fiber.Ctx) error {
	columns, err := ctrl.Service.GetColumns(c.UserContext(), c.Params("name"))
	if err != nil {
		return api.Fail(c, err)
	}
	return c.JSON(fiber.Map{"data": columns})
}

// CreateTable godoc
// @Summary      Create a gl_ table
// @Tags         tables
// @Accept       json
// @Param        table body TableDefinition true "Table definition"
// @Success      201 {object} Table
// @Failure      400 {object} map[string]interface{}
// @Router       /api/tables [post]
func (ctrl *TableController) CreateTable(c *fiber.Ctx) error {
	var def TableDefinition
	if err := c.BodyParser(&def); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	table, err := ctrl.Service.CreateTable(c.UserContext(), def)
	if err != nil {
		return api.Fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(table)
}
