package billing

import (
	"context"
	"errors"

	"github.com/ManuelReschke/stripe-billing/app/models"
)

var (
	// ErrNotFound is returned by a Provider when a referenced remote object
	// (customer, card, subscription, event) does not exist.
	ErrNotFound = errors.New("billing: remote object not found")
	// ErrNoCustomer is returned when an operation needs a remote customer and
	// the user has none.
	ErrNoCustomer = errors.New("billing: user has no customer")
	// ErrNoSubscription is returned when an operation needs a live subscription
	// and the user has none.
	ErrNoSubscription = errors.New("billing: user has no subscription")
)

// Provider is the payment API client. Implementations own auth, transport and
// serialization and map missing remote objects onto ErrNotFound.
type Provider interface {
	CreateCustomer(ctx context.Context, email string) (*Customer, error)
	GetCustomer(ctx context.Context, id string) (*Customer, error)

	AttachCard(ctx context.Context, customerID string, src CardSource) (*Card, error)
	DeleteCard(ctx context.Context, customerID, cardID string) error
	ListCards(ctx context.Context, customerID string) ([]Card, error)

	CreateSubscription(ctx context.Context, customerID string, params SubscriptionParams) (*Subscription, error)
	GetSubscription(ctx context.Context, id string) (*Subscription, error)
	UpdateSubscription(ctx context.Context, sub *Subscription, upd SubscriptionUpdate) (*Subscription, error)
	CancelSubscription(ctx context.Context, id string) error

	GetEvent(ctx context.Context, id string) (*Event, error)
}

// UserStore persists users carrying billing fields.
type UserStore interface {
	// FindByBillingCustomerID returns (nil, nil) when no user matches.
	FindByBillingCustomerID(ctx context.Context, customerID string) (*models.User, error)
	Save(ctx context.Context, user *models.User) error
}

// Mailer sends a named e-mail template rendered with data.
type Mailer interface {
	SendTemplate(ctx context.Context, to, template string, data map[string]any) error
}

// E-mail templates sent by the reconciler.
const (
	TemplateInvoice      = "billing/invoice"
	TemplateTrialWillEnd = "billing/trial_will_end"
)
