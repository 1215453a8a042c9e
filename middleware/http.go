package middleware

import (
	"github.com/gofiber/fiber/v2"
)

// Middleware creates a Fiber middleware that blocks requests while the guard
// reports a non-usable license state. The guard itself polls in the
// background; requests only read the latest snapshot.
func (m *GuardMiddleware) Middleware() fiber.Handler {
	m.Startup()

	return func(ctx *fiber.Ctx) error {
		if m == nil || m.guard == nil {
			return ctx.Next()
		}

		res := m.guard.CurrentStatus()
		if res.Status.Usable() {
			return ctx.Next()
		}

		d := denialFor(res)

		return ctx.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"code":    d.Code,
			"title":   d.Title,
			"message": d.Message,
		})
	}
}
