package billing

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/stripe-billing/app/models"
)

const (
	// EventNamespace prefixes every provider event name on the bus.
	EventNamespace = "billing_"
	// UserSignupEvent is published by the host application after a user registers.
	UserSignupEvent = "user_signup"
)

// Internal names of the provider events the reconciler consumes.
var (
	EventInvoicePaymentSucceeded  = EventName("invoice.payment_succeeded")
	EventInvoicePaymentFailed     = EventName("invoice.payment_failed")
	EventSubscriptionCreated      = EventName("customer.subscription.created")
	EventSubscriptionUpdated      = EventName("customer.subscription.updated")
	EventSubscriptionDeleted      = EventName("customer.subscription.deleted")
	EventSubscriptionTrialWillEnd = EventName("customer.subscription.trial_will_end")
)

// EventName maps a dotted provider event type onto its bus name, e.g.
// "invoice.payment_succeeded" -> "billing_invoice_payment_succeeded".
func EventName(eventType string) string {
	return EventNamespace + strings.ReplaceAll(eventType, ".", "_")
}

// EventHandler consumes a provider event.
type EventHandler func(ctx context.Context, ev *Event) error

// UserHandler consumes a user lifecycle notification.
type UserHandler func(ctx context.Context, user *models.User) error

// registry keeps handlers per name and dispatches synchronously in
// registration order.
type registry[T any] struct {
	mu       sync.RWMutex
	handlers map[string][]func(context.Context, T) error
}

func newRegistry[T any]() *registry[T] {
	return &registry[T]{handlers: make(map[string][]func(context.Context, T) error)}
}

func (r *registry[T]) register(name string, h func(context.Context, T) error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = append(r.handlers[name], h)
}

func (r *registry[T]) get(name string) []func(context.Context, T) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.handlers[name]
}

// dispatch runs every handler even when one fails and joins the errors.
func (r *registry[T]) dispatch(ctx context.Context, name string, payload T) error {
	handlers := r.get(name)
	if len(handlers) == 0 {
		log.Debugf("[Billing Bus] no handlers for %s", name)
		return nil
	}

	start := time.Now()
	var errs []error
	for _, h := range handlers {
		if err := h(ctx, payload); err != nil {
			log.Errorf("[Billing Bus] handler for %s failed: %v", name, err)
			errs = append(errs, err)
		}
	}
	log.Debugf("[Billing Bus] dispatched %s to %d handlers in %s", name, len(handlers), time.Since(start))
	return errors.Join(errs...)
}

// Bus is the in-process registry that connects the webhook receiver and the
// host application to the reconciler. It is passed explicitly to every
// component that publishes or subscribes.
type Bus struct {
	events *registry[*Event]
	users  *registry[*models.User]
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{
		events: newRegistry[*Event](),
		users:  newRegistry[*models.User](),
	}
}

// OnEvent registers h for the bus name (see EventName).
func (b *Bus) OnEvent(name string, h EventHandler) {
	b.events.register(name, h)
}

// OnUserSignup registers h for UserSignupEvent.
func (b *Bus) OnUserSignup(h UserHandler) {
	b.users.register(UserSignupEvent, h)
}

// PublishEvent dispatches ev under EventName(ev.Type). Handler errors are
// logged and returned joined; all handlers run regardless.
func (b *Bus) PublishEvent(ctx context.Context, ev *Event) error {
	return b.events.dispatch(ctx, EventName(ev.Type), ev)
}

// PublishUserSignup dispatches a freshly registered user.
func (b *Bus) PublishUserSignup(ctx context.Context, user *models.User) error {
	return b.users.dispatch(ctx, UserSignupEvent, user)
}

// HasEventHandlers reports whether anything listens on name.
func (b *Bus) HasEventHandlers(name string) bool {
	return len(b.events.get(name)) > 0
}
