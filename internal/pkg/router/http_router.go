package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/stripe-billing/app/controllers"
	"github.com/ManuelReschke/stripe-billing/internal/pkg/middleware"
	"github.com/ManuelReschke/stripe-billing/internal/pkg/session"
)

type HttpRouter struct {
	deps    Dependencies
	billing *controllers.BillingController
	auth    *controllers.AuthController
	admin   *controllers.AdminBillingController
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	if session.GetSessionStore() == nil {
		session.NewSessionStore()
	}

	// user context first, the billing gate depends on it
	app.Use(middleware.UserContextMiddleware(h.deps.Repos.User))
	app.Use(middleware.BillingGate(h.deps.Billing.Options()))

	h.registerPublicRoutes(app)
	h.registerAdminRoutes(app)
	h.registerCSRFProtectedRoutes(app)
}

func NewHttpRouter(deps Dependencies) *HttpRouter {
	return &HttpRouter{
		deps:    deps,
		billing: controllers.NewBillingController(deps.Billing, deps.Bus, deps.Repos.WebhookEvent),
		auth:    controllers.NewAuthController(deps.Repos.User, deps.Bus, deps.Captcha),
		admin:   controllers.NewAdminBillingController(deps.Repos.User, deps.Repos.WebhookEvent),
	}
}
