package middleware

import (
	"github.com/ManuelReschke/stripe-billing/internal/pkg/usercontext"
	"github.com/gofiber/fiber/v2"
)

// RequireAuth ensures a logged-in web session; redirects to /login if missing.
func RequireAuth(c *fiber.Ctx) error {
	if !usercontext.IsLoggedIn(c) {
		return c.Redirect("/login", fiber.StatusSeeOther)
	}
	return c.Next()
}

// RequireAdmin ensures a logged-in admin; redirects otherwise.
func RequireAdmin(c *fiber.Ctx) error {
	if !usercontext.IsLoggedIn(c) {
		return c.Redirect("/login", fiber.StatusSeeOther)
	}
	if !usercontext.IsAdmin(c) {
		return c.Redirect("/", fiber.StatusSeeOther)
	}
	return c.Next()
}
