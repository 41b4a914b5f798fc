package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/ManuelReschke/stripe-billing/app/models"
)

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// fakeProvider keeps remote state in memory and records every call.
type fakeProvider struct {
	customers     map[string]*Customer
	cards         map[string][]Card
	subscriptions map[string]*Subscription
	events        map[string]*Event

	// nextSub is returned (with a generated id) by CreateSubscription.
	nextSub Subscription

	calls   []string
	created []SubscriptionParams
	updates []SubscriptionUpdate
	seq     int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		customers:     map[string]*Customer{},
		cards:         map[string][]Card{},
		subscriptions: map[string]*Subscription{},
		events:        map[string]*Event{},
	}
}

func (p *fakeProvider) id(prefix string) string {
	p.seq++
	return fmt.Sprintf("%s_%d", prefix, p.seq)
}

func (p *fakeProvider) count(call string) int {
	n := 0
	for _, c := range p.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (p *fakeProvider) CreateCustomer(_ context.Context, email string) (*Customer, error) {
	p.calls = append(p.calls, "CreateCustomer")
	c := &Customer{ID: p.id("cus"), Email: email}
	p.customers[c.ID] = c
	cp := *c
	return &cp, nil
}

func (p *fakeProvider) GetCustomer(_ context.Context, id string) (*Customer, error) {
	p.calls = append(p.calls, "GetCustomer")
	c, ok := p.customers[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (p *fakeProvider) AttachCard(_ context.Context, customerID string, src CardSource) (*Card, error) {
	p.calls = append(p.calls, "AttachCard")
	c, ok := p.customers[customerID]
	if !ok {
		return nil, ErrNotFound
	}
	card := Card{ID: p.id("card"), CustomerID: customerID, Brand: "Visa", Last4: "4242"}
	p.cards[customerID] = append(p.cards[customerID], card)
	if c.DefaultCardID == "" {
		c.DefaultCardID = card.ID
	}
	return &card, nil
}

func (p *fakeProvider) DeleteCard(_ context.Context, customerID, cardID string) error {
	p.calls = append(p.calls, "DeleteCard:"+cardID)
	cards := p.cards[customerID]
	for i, c := range cards {
		if c.ID == cardID {
			p.cards[customerID] = append(cards[:i:i], cards[i+1:]...)
			if cust, ok := p.customers[customerID]; ok && cust.DefaultCardID == cardID {
				cust.DefaultCardID = ""
				if rest := p.cards[customerID]; len(rest) > 0 {
					cust.DefaultCardID = rest[0].ID
				}
			}
			return nil
		}
	}
	return ErrNotFound
}

func (p *fakeProvider) ListCards(_ context.Context, customerID string) ([]Card, error) {
	p.calls = append(p.calls, "ListCards")
	return append([]Card(nil), p.cards[customerID]...), nil
}

func (p *fakeProvider) CreateSubscription(_ context.Context, customerID string, params SubscriptionParams) (*Subscription, error) {
	p.calls = append(p.calls, "CreateSubscription")
	p.created = append(p.created, params)
	sub := p.nextSub
	sub.ID = p.id("sub")
	sub.CustomerID = customerID
	sub.PlanID = params.Plan
	sub.Quantity = params.Quantity
	p.subscriptions[sub.ID] = &sub
	cp := sub
	return &cp, nil
}

func (p *fakeProvider) GetSubscription(_ context.Context, id string) (*Subscription, error) {
	p.calls = append(p.calls, "GetSubscription")
	s, ok := p.subscriptions[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (p *fakeProvider) UpdateSubscription(_ context.Context, sub *Subscription, upd SubscriptionUpdate) (*Subscription, error) {
	p.calls = append(p.calls, "UpdateSubscription")
	p.updates = append(p.updates, upd)
	s, ok := p.subscriptions[sub.ID]
	if !ok {
		return nil, ErrNotFound
	}
	if upd.Plan != nil {
		s.PlanID = *upd.Plan
	}
	if upd.Quantity != nil {
		s.Quantity = *upd.Quantity
	}
	if upd.TrialEnd != nil {
		end := *upd.TrialEnd
		s.TrialEnd = &end
	}
	cp := *s
	return &cp, nil
}

func (p *fakeProvider) CancelSubscription(_ context.Context, id string) error {
	p.calls = append(p.calls, "CancelSubscription")
	if _, ok := p.subscriptions[id]; !ok {
		return ErrNotFound
	}
	delete(p.subscriptions, id)
	return nil
}

func (p *fakeProvider) GetEvent(_ context.Context, id string) (*Event, error) {
	p.calls = append(p.calls, "GetEvent")
	ev, ok := p.events[id]
	if !ok {
		return nil, ErrNotFound
	}
	return ev, nil
}

// fakeStore indexes users by customer id and counts saves.
type fakeStore struct {
	users []*models.User
	saves int
	err   error
}

func (s *fakeStore) FindByBillingCustomerID(_ context.Context, customerID string) (*models.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	for _, u := range s.users {
		if u.CustomerID() == customerID {
			return u, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) Save(_ context.Context, _ *models.User) error {
	s.saves++
	return s.err
}

type sentMail struct {
	to       string
	template string
	data     map[string]any
}

type fakeMailer struct {
	sent []sentMail
}

func (m *fakeMailer) SendTemplate(_ context.Context, to, template string, data map[string]any) error {
	m.sent = append(m.sent, sentMail{to: to, template: template, data: data})
	return nil
}

func newTestService(opts Options) (*Service, *fakeProvider, *fakeStore) {
	p := newFakeProvider()
	store := &fakeStore{}
	svc := NewService(p, store, opts).WithClock(func() time.Time { return testNow })
	return svc, p, store
}

func newTestUser() *models.User {
	return &models.User{ID: 7, Name: "alice", Email: "alice@example.com", PlanLastChargeSuccessful: true}
}

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }
