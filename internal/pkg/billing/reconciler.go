package billing

import (
	"context"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2/log"
	"github.com/shopspring/decimal"

	"github.com/ManuelReschke/stripe-billing/app/models"
)

// Reconciler applies provider events to local users. Events for unknown
// customers or stale subscriptions are ignored.
type Reconciler struct {
	svc    *Service
	mailer Mailer
}

// NewReconciler creates a reconciler. mailer may be nil, e-mails are then
// skipped.
func NewReconciler(svc *Service, mailer Mailer) *Reconciler {
	return &Reconciler{svc: svc, mailer: mailer}
}

// Register subscribes the reconciler's handlers on bus.
func (r *Reconciler) Register(bus *Bus) {
	bus.OnEvent(EventInvoicePaymentSucceeded, r.OnInvoicePaymentSucceeded)
	bus.OnEvent(EventInvoicePaymentFailed, r.OnInvoicePaymentFailed)
	bus.OnEvent(EventSubscriptionCreated, r.OnSubscriptionCreated)
	bus.OnEvent(EventSubscriptionUpdated, r.OnSubscriptionUpdated)
	bus.OnEvent(EventSubscriptionDeleted, r.OnSubscriptionDeleted)
	bus.OnEvent(EventSubscriptionTrialWillEnd, r.OnTrialWillEnd)
	if r.svc.opts.AutoCreateCustomer {
		bus.OnUserSignup(r.OnUserSignup)
	}
}

// OnInvoicePaymentSucceeded records a successful charge on the current
// subscription and sends the invoice e-mail.
func (r *Reconciler) OnInvoicePaymentSucceeded(ctx context.Context, ev *Event) error {
	user, inv, err := r.invoiceUser(ctx, ev)
	if err != nil || user == nil {
		return err
	}
	if inv.Total.IsZero() {
		return nil
	}

	if err := r.svc.recordCharge(ctx, r.svc.lookupFor(user), inv, true); err != nil {
		return err
	}
	log.Infof("[Billing] recorded charge of %s %s for user %d", formatAmount(inv.Total), strings.ToUpper(inv.Currency), user.ID)

	if !r.svc.opts.SendInvoiceEmail || r.mailer == nil {
		return nil
	}
	if err := r.mailer.SendTemplate(ctx, user.Email, TemplateInvoice, InvoiceEmailData(user, inv)); err != nil {
		return fmt.Errorf("send invoice e-mail to user %d: %w", user.ID, err)
	}
	return nil
}

// OnInvoicePaymentFailed records a failed charge on the current subscription.
func (r *Reconciler) OnInvoicePaymentFailed(ctx context.Context, ev *Event) error {
	user, inv, err := r.invoiceUser(ctx, ev)
	if err != nil || user == nil {
		return err
	}
	log.Warnf("[Billing] charge failed for user %d (invoice %s)", user.ID, inv.ID)
	return r.svc.recordCharge(ctx, r.svc.lookupFor(user), inv, false)
}

// OnSubscriptionCreated mirrors a new subscription of a known customer.
func (r *Reconciler) OnSubscriptionCreated(ctx context.Context, ev *Event) error {
	user, sub, err := r.subscriptionUser(ctx, ev)
	if err != nil || user == nil {
		return err
	}
	return r.svc.SyncSubscriptionDetails(ctx, user, sub)
}

// OnSubscriptionUpdated mirrors changes of the user's current subscription.
func (r *Reconciler) OnSubscriptionUpdated(ctx context.Context, ev *Event) error {
	user, sub, err := r.subscriptionUser(ctx, ev)
	if err != nil || user == nil {
		return err
	}
	if user.SubscriptionID() != sub.ID {
		return nil
	}
	return r.svc.SyncSubscriptionDetails(ctx, user, sub)
}

// OnSubscriptionDeleted clears the plan when the deleted subscription is the
// user's current one.
func (r *Reconciler) OnSubscriptionDeleted(ctx context.Context, ev *Event) error {
	user, sub, err := r.subscriptionUser(ctx, ev)
	if err != nil || user == nil {
		return err
	}
	if user.SubscriptionID() != sub.ID {
		return nil
	}
	return r.svc.SyncSubscriptionDetails(ctx, user, nil)
}

// OnTrialWillEnd reminds users without a card on file that their trial of
// the current subscription ends soon.
func (r *Reconciler) OnTrialWillEnd(ctx context.Context, ev *Event) error {
	if !r.svc.opts.SendTrialWillEndEmail || r.mailer == nil {
		return nil
	}
	user, sub, err := r.subscriptionUser(ctx, ev)
	if err != nil || user == nil {
		return err
	}
	if user.SubscriptionID() != sub.ID || user.HasPaymentCard {
		return nil
	}
	if err := r.mailer.SendTemplate(ctx, user.Email, TemplateTrialWillEnd, map[string]any{"User": user}); err != nil {
		return fmt.Errorf("send trial e-mail to user %d: %w", user.ID, err)
	}
	return nil
}

// OnUserSignup creates the remote customer of a freshly registered user.
func (r *Reconciler) OnUserSignup(ctx context.Context, user *models.User) error {
	if user == nil || user.CustomerID() != "" {
		return nil
	}
	_, err := r.svc.CreateCustomer(ctx, user)
	return err
}

// invoiceUser resolves the user an invoice event applies to. It returns a nil
// user when the invoice has no customer or subscription, the customer is
// unknown or the invoice belongs to another subscription.
func (r *Reconciler) invoiceUser(ctx context.Context, ev *Event) (*models.User, *Invoice, error) {
	inv := ev.Invoice
	if inv == nil || inv.CustomerID == "" || inv.SubscriptionID == "" {
		return nil, nil, nil
	}
	user, err := r.userFor(ctx, inv.CustomerID)
	if err != nil || user == nil {
		return nil, nil, err
	}
	if user.SubscriptionID() != inv.SubscriptionID {
		log.Debugf("[Billing] ignoring invoice %s for stale subscription %s", inv.ID, inv.SubscriptionID)
		return nil, nil, nil
	}
	return user, inv, nil
}

func (r *Reconciler) subscriptionUser(ctx context.Context, ev *Event) (*models.User, *Subscription, error) {
	sub := ev.Subscription
	if sub == nil || sub.CustomerID == "" {
		return nil, nil, nil
	}
	user, err := r.userFor(ctx, sub.CustomerID)
	if err != nil || user == nil {
		return nil, nil, err
	}
	return user, sub, nil
}

func (r *Reconciler) userFor(ctx context.Context, customerID string) (*models.User, error) {
	user, err := r.svc.users.FindByBillingCustomerID(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("find user for customer %s: %w", customerID, err)
	}
	if user == nil {
		log.Debugf("[Billing] no user for customer %s", customerID)
	}
	return user, nil
}

// InvoiceEmailData is the template data of the invoice e-mail.
func InvoiceEmailData(user *models.User, inv *Invoice) map[string]any {
	items := make([]map[string]string, 0, len(inv.Lines))
	for _, line := range inv.Lines {
		items = append(items, map[string]string{
			"Description": line.Description,
			"Amount":      formatAmount(line.Amount),
		})
	}
	return map[string]any{
		"User":            user,
		"InvoiceID":       inv.ID,
		"InvoiceDate":     inv.Date,
		"InvoiceItems":    items,
		"InvoiceCurrency": strings.ToUpper(inv.Currency),
		"InvoiceTotal":    formatAmount(inv.Total),
	}
}

// formatAmount prints whole-unit amounts without decimals and everything
// else with two.
func formatAmount(d decimal.Decimal) string {
	if d.Exponent() >= 0 {
		return d.StringFixed(0)
	}
	return d.StringFixed(2)
}
