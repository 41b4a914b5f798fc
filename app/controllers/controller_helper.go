package controllers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sujit-baniya/flash"

	"github.com/ManuelReschke/stripe-billing/internal/pkg/usercontext"
)

// csrfContextKey must match the ContextKey of the router's csrf config.
const csrfContextKey = "csrf"

func csrfToken(c *fiber.Ctx) string {
	if token, ok := c.Locals(csrfContextKey).(string); ok {
		return token
	}
	return ""
}

// pageData adds the values every page template expects.
func pageData(c *fiber.Ctx, data fiber.Map) fiber.Map {
	data["Flash"] = flash.Get(c)
	data["CSRF"] = csrfToken(c)
	if _, ok := data["User"]; !ok {
		data["User"] = usercontext.GetUser(c)
	}
	return data
}
