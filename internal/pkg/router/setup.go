package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/stripe-billing/app/repository"
	"github.com/ManuelReschke/stripe-billing/internal/pkg/billing"
	"github.com/ManuelReschke/stripe-billing/internal/pkg/hcaptcha"
)

type Router interface {
	InstallRouter(app *fiber.App)
}

// Dependencies are the wired services the routes hand to controllers.
type Dependencies struct {
	Billing *billing.Service
	Bus     *billing.Bus
	Repos   *repository.Repositories
	// Captcha is optional, nil disables the signup challenge.
	Captcha *hcaptcha.Verifier
}

func InstallRouter(app *fiber.App, deps Dependencies) {
	// HttpRouter goes first: it installs the session-backed user context and
	// the billing gate that the API routes rely on as well.
	setup(app, NewHttpRouter(deps), NewApiRouter(deps))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
