package billing

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Customer is the provider-side billable entity linked 1:1 to a local user.
type Customer struct {
	ID            string
	Email         string
	DefaultCardID string
}

// Card is a payment card attached to a customer.
type Card struct {
	ID         string
	CustomerID string
	Brand      string
	Last4      string
	ExpMonth   int
	ExpYear    int
}

// Subscription is the provider-side plan enrollment of a customer.
type Subscription struct {
	ID               string
	CustomerID       string
	PlanID           string
	ItemID           string
	Status           string
	Quantity         int64
	TrialEnd         *time.Time
	CurrentPeriodEnd *time.Time
}

// InvoiceLine is one line item of an invoice.
type InvoiceLine struct {
	Description string
	Amount      decimal.Decimal
}

// Invoice is a provider invoice as delivered by payment webhooks.
type Invoice struct {
	ID                 string
	CustomerID         string
	SubscriptionID     string
	Currency           string
	Total              decimal.Decimal
	Date               time.Time
	NextPaymentAttempt *time.Time
	Lines              []InvoiceLine
}

// Event is a provider webhook event with its embedded object decoded into the
// matching typed struct. Only one of Invoice and Subscription is set, and only
// for invoice.* and customer.subscription.* events.
type Event struct {
	ID           string
	Type         string
	Invoice      *Invoice
	Subscription *Subscription
	Raw          json.RawMessage
}

// CardDetails are raw card fields used when no client-side token is available.
type CardDetails struct {
	Number   string
	ExpMonth string
	ExpYear  string
	CVC      string
	Name     string
}

// CardSource is either an opaque token or raw card details.
type CardSource struct {
	Token   string
	Details *CardDetails
}

// SubscriptionParams describe a subscription to create.
type SubscriptionParams struct {
	Plan        string
	Quantity    int64
	TrialEnd    *time.Time
	TrialEndNow bool
}

// SubscriptionUpdate lists field changes for a live subscription. Nil fields
// are left untouched; every non-nil field is applied.
type SubscriptionUpdate struct {
	Plan              *string
	Quantity          *int64
	TrialEnd          *time.Time
	TrialEndNow       bool
	CancelAtPeriodEnd *bool
	Prorate           *bool
	Metadata          map[string]string
}

// IsEmpty reports whether the update carries no change at all.
func (u SubscriptionUpdate) IsEmpty() bool {
	return u.Plan == nil && u.Quantity == nil && u.TrialEnd == nil && !u.TrialEndNow &&
		u.CancelAtPeriodEnd == nil && u.Prorate == nil && len(u.Metadata) == 0
}
