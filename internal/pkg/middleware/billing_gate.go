package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/stripe-billing/app/models"
	"github.com/ManuelReschke/stripe-billing/internal/pkg/billing"
	"github.com/ManuelReschke/stripe-billing/internal/pkg/usercontext"
)

var gateExemptPrefixes = []string{"/static/", "/assets/", "/favicon.ico"}

// BillingGate sends logged-in users who must add a card to opts.AddCardView.
// It is a no-op without an add-card view.
func BillingGate(opts billing.Options) fiber.Handler {
	view := strings.TrimSpace(opts.AddCardView)
	return func(c *fiber.Ctx) error {
		if view == "" {
			return c.Next()
		}
		user := usercontext.GetUser(c)
		if user == nil || !NeedsCard(user, opts.UserMustHavePlan) {
			return c.Next()
		}
		if isGateExempt(c.Path(), view) {
			return c.Next()
		}
		return c.Redirect(view, fiber.StatusSeeOther)
	}
}

// NeedsCard reports whether the user has to add a card: no plan although one
// is required, or a plan whose trial ended without a card on file.
func NeedsCard(user *models.User, mustHavePlan bool) bool {
	if !user.HasPlan() {
		return mustHavePlan
	}
	return user.PlanTrialEnded && !user.HasPaymentCard
}

func isGateExempt(path, view string) bool {
	if path == view {
		return true
	}
	for _, p := range gateExemptPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
