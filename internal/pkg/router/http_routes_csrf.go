package router

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/csrf"

	"github.com/ManuelReschke/stripe-billing/internal/pkg/env"
	"github.com/ManuelReschke/stripe-billing/internal/pkg/middleware"
)

const billingHome = "/billing"

func (h HttpRouter) registerCSRFProtectedRoutes(app *fiber.App) {
	csrfConf := csrf.Config{
		KeyLookup:      "form:_csrf",
		ContextKey:     "csrf",
		CookieName:     "csrf_",
		CookieSameSite: "Lax",
		Expiration:     1 * time.Hour,
		CookieSecure:   !env.IsDev(),
		Next: func(c *fiber.Ctx) bool {
			return strings.HasPrefix(c.Path(), "/api/") || c.Path() == "/stripe-webhook"
		},
	}

	group := app.Group("", csrf.New(csrfConf))
	group.Get("/login", h.auth.HandleLoginView)
	group.Post("/login", h.auth.HandleLogin)
	group.Get("/signup", h.auth.HandleSignupView)
	group.Post("/signup", h.auth.HandleSignup)
	group.Post("/logout", middleware.RequireAuth, h.auth.HandleLogout)

	billingGroup := group.Group(billingHome, middleware.RequireAuth)
	billingGroup.Get("/", h.billing.HandleBillingIndex)
	billingGroup.Get("/card", h.billing.HandleAddCardView)
	billingGroup.Post("/card", h.billing.HandleAddCard)
	billingGroup.Post("/card/remove", h.billing.HandleRemoveCard)
	billingGroup.Post("/subscribe", h.billing.HandleSubscribe)
	billingGroup.Post("/subscription", h.billing.HandleUpdateSubscription)
	billingGroup.Post("/subscription/cancel", h.billing.HandleCancelSubscription)
	billingGroup.Post("/customer", h.billing.HandleCreateCustomer)
}
