package usercontext

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/stripe-billing/app/models"
)

// UserContext represents the complete user context for a request
type UserContext struct {
	UserID     uint   `json:"user_id"`
	Username   string `json:"username"`
	IsLoggedIn bool   `json:"is_logged_in"`
	IsAdmin    bool   `json:"is_admin"`
	Plan       string `json:"plan"`
}

// GetUserContext retrieves the user context from fiber context
// Returns a default anonymous context if none is set
func GetUserContext(c *fiber.Ctx) UserContext {
	if ctx, ok := c.Locals("USER_CONTEXT").(UserContext); ok {
		return ctx
	}
	return UserContext{IsLoggedIn: false, IsAdmin: false}
}

// SetUser stores the authenticated user and its summary on the request
func SetUser(c *fiber.Ctx, user *models.User) {
	plan := ""
	if user.PlanName != nil {
		plan = *user.PlanName
	}
	c.Locals(KeyUser, user)
	c.Locals("USER_CONTEXT", UserContext{
		UserID:     user.ID,
		Username:   user.Name,
		IsLoggedIn: true,
		IsAdmin:    user.Role == models.ROLE_ADMIN,
		Plan:       plan,
	})
}

// GetUser returns the authenticated user loaded for this request, or nil
func GetUser(c *fiber.Ctx) *models.User {
	user, _ := c.Locals(KeyUser).(*models.User)
	return user
}

// IsLoggedIn checks if the current user is logged in
func IsLoggedIn(c *fiber.Ctx) bool {
	return GetUserContext(c).IsLoggedIn
}

// IsAdmin checks if the current user is an admin
func IsAdmin(c *fiber.Ctx) bool {
	return GetUserContext(c).IsAdmin
}

// GetUserID returns the current user's ID, or 0 if not logged in
func GetUserID(c *fiber.Ctx) uint {
	return GetUserContext(c).UserID
}
