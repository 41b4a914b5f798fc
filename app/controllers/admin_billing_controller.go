package controllers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/stripe-billing/app/repository"
	"github.com/ManuelReschke/stripe-billing/internal/pkg/metrics/counter"
)

const (
	defaultWebhookListLimit = 50
	maxWebhookListLimit     = 500
)

// AdminBillingController exposes the webhook audit trail and billing counters.
type AdminBillingController struct {
	users  repository.UserRepository
	events repository.WebhookEventRepository
}

func NewAdminBillingController(users repository.UserRepository, events repository.WebhookEventRepository) *AdminBillingController {
	return &AdminBillingController{users: users, events: events}
}

// HandleWebhookEvents lists the most recent webhook deliveries.
func (ac *AdminBillingController) HandleWebhookEvents(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", defaultWebhookListLimit)
	if limit <= 0 || limit > maxWebhookListLimit {
		limit = defaultWebhookListLimit
	}

	events, err := ac.events.ListRecent(context.Background(), limit)
	if err != nil {
		log.Errorf("[AdminBilling] list webhook events: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load webhook events"})
	}
	return c.JSON(fiber.Map{"events": events, "count": len(events)})
}

// HandleBillingMetrics returns webhook counters, the number of users and plan
// enrollment.
func (ac *AdminBillingController) HandleBillingMetrics(c *fiber.Ctx) error {
	ctx := context.Background()

	webhooks, err := counter.WebhookEventCounts(ctx)
	if err != nil {
		log.Warnf("[AdminBilling] webhook counters: %v", err)
		webhooks = []counter.EventCount{}
	}

	users, err := ac.users.Count()
	if err != nil {
		log.Errorf("[AdminBilling] user count: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to count users"})
	}

	plans, err := ac.users.CountByPlan(ctx)
	if err != nil {
		log.Errorf("[AdminBilling] plan counts: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load plan counts"})
	}

	return c.JSON(fiber.Map{"webhooks": webhooks, "users": users, "plans": plans})
}
