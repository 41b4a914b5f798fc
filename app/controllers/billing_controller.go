package controllers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"github.com/sujit-baniya/flash"

	"github.com/ManuelReschke/stripe-billing/app/models"
	"github.com/ManuelReschke/stripe-billing/app/repository"
	"github.com/ManuelReschke/stripe-billing/internal/pkg/billing"
	"github.com/ManuelReschke/stripe-billing/internal/pkg/billing/stripeprovider"
	"github.com/ManuelReschke/stripe-billing/internal/pkg/metrics/counter"
	"github.com/ManuelReschke/stripe-billing/internal/pkg/middleware"
	"github.com/ManuelReschke/stripe-billing/internal/pkg/usercontext"
)

const (
	billingPage     = "/billing"
	defaultCardView = "/billing/card"
	webhookTimeout  = 15 * time.Second
	actionTimeout   = 20 * time.Second
)

// BillingController serves the Stripe webhook and the user-facing billing actions.
type BillingController struct {
	svc    *billing.Service
	bus    *billing.Bus
	events repository.WebhookEventRepository
	opts   billing.Options
}

// NewBillingController creates the controller. events may be nil to skip the
// webhook audit trail.
func NewBillingController(svc *billing.Service, bus *billing.Bus, events repository.WebhookEventRepository) *BillingController {
	return &BillingController{svc: svc, bus: bus, events: events, opts: svc.Options()}
}

// HandleStripeWebhook receives a Stripe event and dispatches it on the bus.
// Handler failures are logged and never turned into HTTP errors.
func (bc *BillingController) HandleStripeWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	ctx, cancel := context.WithTimeout(context.Background(), webhookTimeout)
	defer cancel()

	signatureValid := false
	if bc.opts.WebhookSecret != "" {
		if err := stripeprovider.VerifySignature(rawBody, c.Get(stripeprovider.SignatureHeader), bc.opts.WebhookSecret); err != nil {
			log.Warnf("[Stripe Webhook] %v", err)
			return c.Status(fiber.StatusBadRequest).SendString("invalid signature")
		}
		signatureValid = true
	}

	event, err := stripeprovider.ParseEvent(rawBody)
	if err != nil {
		log.Warnf("[Stripe Webhook] %v", err)
		return c.Status(fiber.StatusBadRequest).SendString("malformed event")
	}

	if bc.opts.WebhookValidateEvent {
		fetched, err := bc.svc.Provider().GetEvent(ctx, event.ID)
		if errors.Is(err, billing.ErrNotFound) {
			log.Warnf("[Stripe Webhook] event %s does not exist at Stripe", event.ID)
			return c.Status(fiber.StatusBadRequest).SendString("unknown event")
		}
		if err != nil {
			log.Errorf("[Stripe Webhook] fetch event %s: %v", event.ID, err)
			return c.Status(fiber.StatusBadGateway).SendString("event lookup failed")
		}
		event = fetched
	}

	deliveryID := uuid.NewString()
	handled := bc.bus.HasEventHandlers(billing.EventName(event.Type))
	stored := bc.recordDelivery(ctx, &models.BillingWebhookEvent{
		DeliveryID:      deliveryID,
		Provider:        models.BillingProviderStripe,
		ProviderEventID: event.ID,
		EventType:       event.Type,
		PayloadJSON:     string(rawBody),
		SignatureValid:  signatureValid,
		Handled:         handled,
	})
	if err := counter.AddWebhookEvent(ctx, event.Type); err != nil {
		log.Warnf("[Stripe Webhook] count %s: %v", event.Type, err)
	}

	if !handled {
		log.Debugf("[Stripe Webhook] %s (%s, delivery %s) has no handlers", event.Type, event.ID, deliveryID)
	}

	processingError := ""
	if err := bc.bus.PublishEvent(ctx, event); err != nil {
		log.Errorf("[Stripe Webhook] handling %s (%s, delivery %s) failed: %v", event.Type, event.ID, deliveryID, err)
		processingError = err.Error()
		if cerr := counter.AddWebhookError(ctx, event.Type); cerr != nil {
			log.Warnf("[Stripe Webhook] count error %s: %v", event.Type, cerr)
		}
	}
	if stored != nil {
		if err := bc.events.MarkProcessed(ctx, stored.ID, processingError); err != nil {
			log.Warnf("[Stripe Webhook] mark %d processed: %v", stored.ID, err)
		}
	}

	return c.SendString("ok")
}

func (bc *BillingController) recordDelivery(ctx context.Context, stored *models.BillingWebhookEvent) *models.BillingWebhookEvent {
	if bc.events == nil {
		return nil
	}
	if err := bc.events.Create(ctx, stored); err != nil {
		log.Warnf("[Stripe Webhook] record %s (delivery %s): %v", stored.ProviderEventID, stored.DeliveryID, err)
		return nil
	}
	return stored
}

// HandleBillingIndex shows the user's plan and card state.
func (bc *BillingController) HandleBillingIndex(c *fiber.Ctx) error {
	user := usercontext.GetUser(c)
	return c.Render("billing/index", pageData(c, fiber.Map{
		"User":        user,
		"Plan":        derefString(user.PlanName),
		"NextCharge":  user.PlanNextChargeAt,
		"LastCharge":  user.PlanLastChargedAt,
		"LastAmount":  chargeAmount(user),
		"CardView":    bc.cardView(),
		"DefaultPlan": bc.opts.DefaultPlan,
	}))
}

// HandleBillingStatus returns the user's billing fields as JSON.
func (bc *BillingController) HandleBillingStatus(c *fiber.Ctx) error {
	user := usercontext.GetUser(c)
	return c.JSON(fiber.Map{
		"customer_id":                 user.CustomerID(),
		"subscription_id":             user.SubscriptionID(),
		"plan":                        derefString(user.PlanName),
		"has_payment_card":            user.HasPaymentCard,
		"plan_trial_ended":            user.PlanTrialEnded,
		"plan_next_charge_at":         user.PlanNextChargeAt,
		"plan_last_charged_at":        user.PlanLastChargedAt,
		"plan_last_charge_amount":     chargeAmount(user),
		"plan_last_charge_successful": user.PlanLastChargeSuccessful,
	})
}

// HandleAddCardView renders the add-card form.
func (bc *BillingController) HandleAddCardView(c *fiber.Ctx) error {
	user := usercontext.GetUser(c)
	return c.Render("billing/add_card", pageData(c, fiber.Map{
		"User":        user,
		"Action":      bc.cardView(),
		"MustAdd":     middleware.NeedsCard(user, bc.opts.UserMustHavePlan),
		"OnlyOneCard": bc.opts.OnlyOneCard,
	}))
}

// HandleAddCard attaches the submitted card.
func (bc *BillingController) HandleAddCard(c *fiber.Ctx) error {
	var form billing.CardForm
	if err := c.BodyParser(&form); err != nil {
		return bc.fail(c, bc.cardView(), "Invalid card form")
	}

	ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
	defer cancel()

	card, err := bc.svc.AddCardFromForm(ctx, usercontext.GetUser(c), form)
	if err != nil {
		log.Warnf("[Billing] add card for user %d: %v", usercontext.GetUserID(c), err)
		if errors.Is(err, billing.ErrIncompleteCardForm) {
			return bc.fail(c, bc.cardView(), "Please fill in all card fields")
		}
		return bc.fail(c, bc.cardView(), "Your card could not be added")
	}

	return bc.succeed(c, billingPage, fmt.Sprintf("Card ending in %s added", card.Last4))
}

// HandleRemoveCard removes the card given by card_id, or the default card.
func (bc *BillingController) HandleRemoveCard(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
	defer cancel()

	if err := bc.svc.RemoveCard(ctx, usercontext.GetUser(c), strings.TrimSpace(c.FormValue("card_id"))); err != nil {
		log.Warnf("[Billing] remove card for user %d: %v", usercontext.GetUserID(c), err)
		return bc.fail(c, billingPage, "Your card could not be removed")
	}
	return bc.succeed(c, billingPage, "Card removed")
}

// HandleSubscribe subscribes the user to the submitted plan.
func (bc *BillingController) HandleSubscribe(c *fiber.Ctx) error {
	plan := strings.TrimSpace(c.FormValue("plan", bc.opts.DefaultPlan))
	quantity, err := parseQuantity(c.FormValue("quantity"))
	if err != nil {
		return bc.fail(c, billingPage, "Invalid quantity")
	}

	ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
	defer cancel()

	if _, err := bc.svc.Subscribe(ctx, usercontext.GetUser(c), plan, quantity); err != nil {
		log.Warnf("[Billing] subscribe user %d to %q: %v", usercontext.GetUserID(c), plan, err)
		if errors.Is(err, billing.ErrEmptyPlan) {
			return bc.fail(c, billingPage, "Please choose a plan")
		}
		return bc.fail(c, billingPage, "Subscription failed")
	}
	return bc.succeed(c, billingPage, fmt.Sprintf("You are subscribed to %s", plan))
}

// HandleUpdateSubscription applies the submitted changes to the current subscription.
func (bc *BillingController) HandleUpdateSubscription(c *fiber.Ctx) error {
	upd, err := subscriptionUpdateFromForm(c)
	if err != nil {
		return bc.fail(c, billingPage, "Subscription could not be updated: "+err.Error())
	}

	ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
	defer cancel()

	if _, err := bc.svc.UpdateSubscription(ctx, usercontext.GetUser(c), upd); err != nil {
		log.Warnf("[Billing] update subscription of user %d: %v", usercontext.GetUserID(c), err)
		if errors.Is(err, billing.ErrNoSubscription) {
			return bc.fail(c, billingPage, "You have no subscription")
		}
		return bc.fail(c, billingPage, "Subscription could not be updated")
	}
	return bc.succeed(c, billingPage, "Subscription updated")
}

// HandleCancelSubscription cancels the current subscription.
func (bc *BillingController) HandleCancelSubscription(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
	defer cancel()

	if err := bc.svc.CancelSubscription(ctx, usercontext.GetUser(c)); err != nil {
		log.Warnf("[Billing] cancel subscription of user %d: %v", usercontext.GetUserID(c), err)
		return bc.fail(c, billingPage, "Subscription could not be cancelled")
	}
	return bc.succeed(c, billingPage, "Subscription cancelled")
}

// HandleCreateCustomer links a Stripe customer to a user that has none yet.
func (bc *BillingController) HandleCreateCustomer(c *fiber.Ctx) error {
	user := usercontext.GetUser(c)
	if user.CustomerID() != "" {
		return flash.WithInfo(c, fiber.Map{"type": "info", "message": "Your billing account already exists"}).Redirect(billingPage)
	}

	ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
	defer cancel()

	if _, err := bc.svc.CreateCustomer(ctx, user); err != nil {
		log.Warnf("[Billing] create customer for user %d: %v", user.ID, err)
		return bc.fail(c, billingPage, "Billing account could not be created")
	}
	return bc.succeed(c, billingPage, "Billing account created")
}

func (bc *BillingController) cardView() string {
	if bc.opts.AddCardView != "" {
		return bc.opts.AddCardView
	}
	return defaultCardView
}

func (bc *BillingController) fail(c *fiber.Ctx, to, message string) error {
	return flash.WithError(c, fiber.Map{"type": "error", "message": message}).Redirect(to)
}

func (bc *BillingController) succeed(c *fiber.Ctx, to, message string) error {
	return flash.WithSuccess(c, fiber.Map{"type": "success", "message": message}).Redirect(to)
}

func subscriptionUpdateFromForm(c *fiber.Ctx) (billing.SubscriptionUpdate, error) {
	var upd billing.SubscriptionUpdate
	if plan := strings.TrimSpace(c.FormValue("plan")); plan != "" {
		upd.Plan = &plan
	}
	if raw := strings.TrimSpace(c.FormValue("quantity")); raw != "" {
		q, err := parseQuantity(raw)
		if err != nil {
			return upd, errors.New("invalid quantity")
		}
		upd.Quantity = &q
	}
	switch raw := strings.TrimSpace(c.FormValue("trial_end")); raw {
	case "":
	case "now":
		upd.TrialEndNow = true
	default:
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return upd, errors.New("invalid trial end date")
		}
		upd.TrialEnd = &t
	}
	var err error
	if upd.CancelAtPeriodEnd, err = formBool(c, "cancel_at_period_end"); err != nil {
		return upd, err
	}
	if upd.Prorate, err = formBool(c, "prorate"); err != nil {
		return upd, err
	}
	return upd, nil
}

func formBool(c *fiber.Ctx, key string) (*bool, error) {
	raw := strings.TrimSpace(c.FormValue(key))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid value for %s", key)
	}
	return &v, nil
}

func parseQuantity(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 1, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func chargeAmount(user *models.User) string {
	if !user.PlanLastChargeAmount.Valid {
		return ""
	}
	return user.PlanLastChargeAmount.Decimal.StringFixed(2)
}
