package stripeprovider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"

	"github.com/ManuelReschke/stripe-billing/internal/pkg/billing"
)

// Provider implements billing.Provider on top of the Stripe API.
type Provider struct {
	sc *client.API
}

var _ billing.Provider = (*Provider)(nil)

// New creates a Stripe provider. backends may be nil to use the default
// Stripe endpoints.
func New(apiKey string, backends *stripe.Backends) *Provider {
	sc := &client.API{}
	sc.Init(apiKey, backends)
	return &Provider{sc: sc}
}

func (p *Provider) CreateCustomer(ctx context.Context, email string) (*billing.Customer, error) {
	params := &stripe.CustomerParams{Email: stripe.String(email)}
	params.Context = ctx
	c, err := p.sc.Customers.New(params)
	if err != nil {
		return nil, mapError(err)
	}
	return toCustomer(c), nil
}

// GetCustomer treats deleted customers as missing.
func (p *Provider) GetCustomer(ctx context.Context, id string) (*billing.Customer, error) {
	params := &stripe.CustomerParams{}
	params.Context = ctx
	c, err := p.sc.Customers.Get(id, params)
	if err != nil {
		return nil, mapError(err)
	}
	if c.Deleted {
		return nil, billing.ErrNotFound
	}
	return toCustomer(c), nil
}

func (p *Provider) AttachCard(ctx context.Context, customerID string, src billing.CardSource) (*billing.Card, error) {
	params := &stripe.CardParams{Customer: stripe.String(customerID)}
	params.Context = ctx
	switch {
	case src.Token != "":
		params.Token = stripe.String(src.Token)
	case src.Details != nil:
		params.Number = stripe.String(src.Details.Number)
		params.ExpMonth = stripe.String(src.Details.ExpMonth)
		params.ExpYear = stripe.String(src.Details.ExpYear)
		params.CVC = stripe.String(src.Details.CVC)
		if src.Details.Name != "" {
			params.Name = stripe.String(src.Details.Name)
		}
	default:
		return nil, billing.ErrEmptyCardSource
	}

	c, err := p.sc.Cards.New(params)
	if err != nil {
		return nil, mapError(err)
	}
	return toCard(c, customerID), nil
}

func (p *Provider) DeleteCard(ctx context.Context, customerID, cardID string) error {
	params := &stripe.CardParams{Customer: stripe.String(customerID)}
	params.Context = ctx
	if _, err := p.sc.Cards.Del(cardID, params); err != nil {
		return mapError(err)
	}
	return nil
}

func (p *Provider) ListCards(ctx context.Context, customerID string) ([]billing.Card, error) {
	params := &stripe.CardListParams{Customer: stripe.String(customerID)}
	params.Context = ctx

	var cards []billing.Card
	it := p.sc.Cards.List(params)
	for it.Next() {
		cards = append(cards, *toCard(it.Card(), customerID))
	}
	if err := it.Err(); err != nil {
		return nil, mapError(err)
	}
	return cards, nil
}

func (p *Provider) CreateSubscription(ctx context.Context, customerID string, in billing.SubscriptionParams) (*billing.Subscription, error) {
	params := &stripe.SubscriptionParams{
		Customer: stripe.String(customerID),
		Items: []*stripe.SubscriptionItemsParams{{
			Plan:     stripe.String(in.Plan),
			Quantity: stripe.Int64(in.Quantity),
		}},
	}
	params.Context = ctx
	switch {
	case in.TrialEndNow:
		params.TrialEndNow = stripe.Bool(true)
	case in.TrialEnd != nil:
		params.TrialEnd = stripe.Int64(in.TrialEnd.Unix())
	}

	s, err := p.sc.Subscriptions.New(params)
	if err != nil {
		return nil, mapError(err)
	}
	return toSubscription(s), nil
}

func (p *Provider) GetSubscription(ctx context.Context, id string) (*billing.Subscription, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	s, err := p.sc.Subscriptions.Get(id, params)
	if err != nil {
		return nil, mapError(err)
	}
	return toSubscription(s), nil
}

// UpdateSubscription sends every field set in upd. Plan and quantity changes
// target the subscription's existing item.
func (p *Provider) UpdateSubscription(ctx context.Context, sub *billing.Subscription, upd billing.SubscriptionUpdate) (*billing.Subscription, error) {
	params := updateParams(sub, upd)
	params.Context = ctx
	s, err := p.sc.Subscriptions.Update(sub.ID, params)
	if err != nil {
		return nil, mapError(err)
	}
	return toSubscription(s), nil
}

func updateParams(sub *billing.Subscription, upd billing.SubscriptionUpdate) *stripe.SubscriptionParams {
	params := &stripe.SubscriptionParams{}
	if upd.Plan != nil || upd.Quantity != nil {
		item := &stripe.SubscriptionItemsParams{}
		if sub.ItemID != "" {
			item.ID = stripe.String(sub.ItemID)
		}
		if upd.Plan != nil {
			item.Plan = upd.Plan
		}
		if upd.Quantity != nil {
			item.Quantity = upd.Quantity
		}
		params.Items = []*stripe.SubscriptionItemsParams{item}
	}
	switch {
	case upd.TrialEndNow:
		params.TrialEndNow = stripe.Bool(true)
	case upd.TrialEnd != nil:
		params.TrialEnd = stripe.Int64(upd.TrialEnd.Unix())
	}
	if upd.CancelAtPeriodEnd != nil {
		params.CancelAtPeriodEnd = upd.CancelAtPeriodEnd
	}
	if upd.Prorate != nil {
		behavior := "none"
		if *upd.Prorate {
			behavior = "create_prorations"
		}
		params.ProrationBehavior = stripe.String(behavior)
	}
	for k, v := range upd.Metadata {
		params.AddMetadata(k, v)
	}
	return params
}

func (p *Provider) CancelSubscription(ctx context.Context, id string) error {
	params := &stripe.SubscriptionCancelParams{}
	params.Context = ctx
	if _, err := p.sc.Subscriptions.Cancel(id, params); err != nil {
		return mapError(err)
	}
	return nil
}

// GetEvent fetches an event from the API, used to trust webhook payloads
// only after re-reading them from Stripe.
func (p *Provider) GetEvent(ctx context.Context, id string) (*billing.Event, error) {
	params := &stripe.EventParams{}
	params.Context = ctx
	ev, err := p.sc.Events.Get(id, params)
	if err != nil {
		return nil, mapError(err)
	}
	return fromStripeEvent(ev)
}

// mapError turns Stripe's "resource missing" answers into billing.ErrNotFound.
func mapError(err error) error {
	var se *stripe.Error
	if errors.As(err, &se) {
		if se.Code == stripe.ErrorCodeResourceMissing || se.HTTPStatusCode == http.StatusNotFound {
			return fmt.Errorf("%w: %s", billing.ErrNotFound, se.Msg)
		}
	}
	return err
}

func toCustomer(c *stripe.Customer) *billing.Customer {
	out := &billing.Customer{ID: c.ID, Email: c.Email}
	if c.DefaultSource != nil {
		out.DefaultCardID = c.DefaultSource.ID
	}
	return out
}

func toCard(c *stripe.Card, customerID string) *billing.Card {
	out := &billing.Card{
		ID:         c.ID,
		CustomerID: customerID,
		Brand:      string(c.Brand),
		Last4:      c.Last4,
		ExpMonth:   int(c.ExpMonth),
		ExpYear:    int(c.ExpYear),
	}
	if c.Customer != nil && c.Customer.ID != "" {
		out.CustomerID = c.Customer.ID
	}
	return out
}

func toSubscription(s *stripe.Subscription) *billing.Subscription {
	out := &billing.Subscription{
		ID:               s.ID,
		Status:           string(s.Status),
		TrialEnd:         unixTime(s.TrialEnd),
		CurrentPeriodEnd: unixTime(s.CurrentPeriodEnd),
	}
	if s.Customer != nil {
		out.CustomerID = s.Customer.ID
	}
	if s.Items != nil && len(s.Items.Data) > 0 {
		item := s.Items.Data[0]
		out.ItemID = item.ID
		out.Quantity = item.Quantity
		switch {
		case item.Plan != nil:
			out.PlanID = item.Plan.ID
		case item.Price != nil:
			out.PlanID = item.Price.ID
		}
	}
	return out
}

func toInvoice(in *stripe.Invoice) *billing.Invoice {
	out := &billing.Invoice{
		ID:                 in.ID,
		Currency:           string(in.Currency),
		Total:              minorUnitAmount(in.Total, string(in.Currency)),
		Date:               time.Unix(in.Created, 0).UTC(),
		NextPaymentAttempt: unixTime(in.NextPaymentAttempt),
	}
	if in.Customer != nil {
		out.CustomerID = in.Customer.ID
	}
	if in.Subscription != nil {
		out.SubscriptionID = in.Subscription.ID
	}
	if in.Lines != nil {
		for _, l := range in.Lines.Data {
			out.Lines = append(out.Lines, billing.InvoiceLine{Description: l.Description, Amount: minorUnitAmount(l.Amount, string(in.Currency))})
		}
	}
	return out
}

// zeroDecimalCurrencies are charged in whole units by Stripe.
var zeroDecimalCurrencies = map[string]bool{
	"bif": true, "clp": true, "djf": true, "gnf": true, "jpy": true,
	"kmf": true, "krw": true, "mga": true, "pyg": true, "rwf": true,
	"ugx": true, "vnd": true, "vuv": true, "xaf": true, "xof": true,
	"xpf": true,
}

// minorUnitAmount converts a Stripe amount into major units of currency.
func minorUnitAmount(v int64, currency string) decimal.Decimal {
	if zeroDecimalCurrencies[strings.ToLower(currency)] {
		return decimal.New(v, 0)
	}
	return decimal.New(v, -2)
}

func unixTime(ts int64) *time.Time {
	if ts == 0 {
		return nil
	}
	t := time.Unix(ts, 0).UTC()
	return &t
}
