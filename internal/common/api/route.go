package api

import "github.com/gofiber/fiber/v2"

// Route is implemented by every feature API so fx can collect them
// into the "routes" group.
type Route interface {
	Setup(app *fiber.App)
}
