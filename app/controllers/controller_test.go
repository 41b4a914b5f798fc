package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	fibersession "github.com/gofiber/fiber/v2/middleware/session"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/ManuelReschke/stripe-billing/app/models"
	"github.com/ManuelReschke/stripe-billing/internal/pkg/billing"
	"github.com/ManuelReschke/stripe-billing/internal/pkg/cache"
	"github.com/ManuelReschke/stripe-billing/internal/pkg/session"
	"github.com/ManuelReschke/stripe-billing/internal/pkg/usercontext"
	"github.com/ManuelReschke/stripe-billing/views"
)

// stubProvider answers provider calls from memory.
type stubProvider struct {
	customers map[string]bool
	events    map[string]*billing.Event
	eventErr  error
	nextSub   billing.Subscription
	calls     []string
}

func newStubProvider() *stubProvider {
	return &stubProvider{customers: map[string]bool{"cus_1": true}, events: map[string]*billing.Event{}}
}

func (p *stubProvider) CreateCustomer(_ context.Context, email string) (*billing.Customer, error) {
	p.calls = append(p.calls, "CreateCustomer")
	p.customers["cus_new"] = true
	return &billing.Customer{ID: "cus_new", Email: email}, nil
}

func (p *stubProvider) GetCustomer(_ context.Context, id string) (*billing.Customer, error) {
	if !p.customers[id] {
		return nil, billing.ErrNotFound
	}
	return &billing.Customer{ID: id}, nil
}

func (p *stubProvider) AttachCard(_ context.Context, customerID string, _ billing.CardSource) (*billing.Card, error) {
	p.calls = append(p.calls, "AttachCard")
	return &billing.Card{ID: "card_1", CustomerID: customerID, Brand: "Visa", Last4: "4242"}, nil
}

func (p *stubProvider) DeleteCard(context.Context, string, string) error {
	p.calls = append(p.calls, "DeleteCard")
	return nil
}

func (p *stubProvider) ListCards(context.Context, string) ([]billing.Card, error) {
	return nil, nil
}

func (p *stubProvider) CreateSubscription(_ context.Context, customerID string, params billing.SubscriptionParams) (*billing.Subscription, error) {
	p.calls = append(p.calls, "CreateSubscription")
	sub := p.nextSub
	sub.CustomerID = customerID
	sub.PlanID = params.Plan
	sub.Quantity = params.Quantity
	return &sub, nil
}

func (p *stubProvider) GetSubscription(_ context.Context, id string) (*billing.Subscription, error) {
	if id != "sub_1" {
		return nil, billing.ErrNotFound
	}
	return &billing.Subscription{ID: id, CustomerID: "cus_1", PlanID: "gold", Status: "active"}, nil
}

func (p *stubProvider) UpdateSubscription(_ context.Context, sub *billing.Subscription, _ billing.SubscriptionUpdate) (*billing.Subscription, error) {
	return sub, nil
}

func (p *stubProvider) CancelSubscription(context.Context, string) error {
	p.calls = append(p.calls, "CancelSubscription")
	return nil
}

func (p *stubProvider) GetEvent(_ context.Context, id string) (*billing.Event, error) {
	if p.eventErr != nil {
		return nil, p.eventErr
	}
	ev, ok := p.events[id]
	if !ok {
		return nil, billing.ErrNotFound
	}
	return ev, nil
}

// memUsers is an in-memory UserRepository.
type memUsers struct {
	byID    map[uint]*models.User
	saveErr error
}

func (m *memUsers) Create(user *models.User) error {
	user.ID = uint(len(m.byID) + 1)
	m.byID[user.ID] = user
	return nil
}

func (m *memUsers) GetByID(id uint) (*models.User, error) {
	if u, ok := m.byID[id]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memUsers) GetByEmail(email string) (*models.User, error) {
	for _, u := range m.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memUsers) Update(user *models.User) error {
	m.byID[user.ID] = user
	return nil
}

func (m *memUsers) Count() (int64, error) {
	return int64(len(m.byID)), nil
}

func (m *memUsers) FindByBillingCustomerID(_ context.Context, customerID string) (*models.User, error) {
	for _, u := range m.byID {
		if customerID != "" && u.CustomerID() == customerID {
			return u, nil
		}
	}
	return nil, nil
}

func (m *memUsers) Save(_ context.Context, user *models.User) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.byID[user.ID] = user
	return nil
}

func (m *memUsers) CountByPlan(context.Context) (map[string]int64, error) {
	counts := map[string]int64{}
	for _, u := range m.byID {
		if u.HasPlan() {
			counts[*u.PlanName]++
		}
	}
	return counts, nil
}

// memEvents is an in-memory WebhookEventRepository.
type memEvents struct {
	rows []*models.BillingWebhookEvent
}

func (m *memEvents) Create(_ context.Context, ev *models.BillingWebhookEvent) error {
	ev.ID = uint(len(m.rows) + 1)
	m.rows = append(m.rows, ev)
	return nil
}

func (m *memEvents) MarkProcessed(_ context.Context, id uint, processingError string) error {
	now := time.Now()
	m.rows[id-1].ProcessedAt = &now
	m.rows[id-1].ProcessingError = processingError
	return nil
}

func (m *memEvents) ListRecent(_ context.Context, limit int) ([]models.BillingWebhookEvent, error) {
	out := make([]models.BillingWebhookEvent, 0, len(m.rows))
	for i := len(m.rows) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, *m.rows[i])
	}
	return out, nil
}

type testEnv struct {
	app      *fiber.App
	provider *stubProvider
	users    *memUsers
	events   *memEvents
}

// linkedUser is subscribed to gold with customer cus_1 and subscription sub_1.
func linkedUser() *models.User {
	cus, sub, plan := "cus_1", "sub_1", "gold"
	return &models.User{
		ID:                       1,
		Name:                     "alice",
		Email:                    "alice@example.com",
		Role:                     models.ROLE_USER,
		Status:                   models.STATUS_ACTIVE,
		BillingCustomerID:        &cus,
		BillingSubscriptionID:    &sub,
		PlanName:                 &plan,
		PlanLastChargeSuccessful: true,
	}
}

// newTestEnv wires the controllers like the router does. When current is
// set it is treated as the logged-in user of every request.
func newTestEnv(t *testing.T, opts billing.Options, current *models.User) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	cache.UseClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	session.UseStore(fibersession.New())
	t.Cleanup(func() {
		cache.UseClient(nil)
		session.UseStore(nil)
	})

	env := &testEnv{
		provider: newStubProvider(),
		users:    &memUsers{byID: map[uint]*models.User{}},
		events:   &memEvents{},
	}
	if current != nil {
		env.users.byID[current.ID] = current
	}

	svc := billing.NewService(env.provider, env.users, opts).WithClock(func() time.Time {
		return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	})
	bus := billing.NewBus()
	billing.NewReconciler(svc, nil).Register(bus)

	bc := NewBillingController(svc, bus, env.events)
	ac := NewAuthController(env.users, bus, nil)

	app := fiber.New(fiber.Config{Views: views.NewEngine()})
	app.Use(func(c *fiber.Ctx) error {
		if current != nil {
			usercontext.SetUser(c, current)
		}
		return c.Next()
	})
	app.Post("/stripe-webhook", bc.HandleStripeWebhook)
	app.Get("/billing", bc.HandleBillingIndex)
	app.Get("/billing/status", bc.HandleBillingStatus)
	app.Get("/billing/card", bc.HandleAddCardView)
	app.Post("/billing/card", bc.HandleAddCard)
	app.Post("/billing/card/remove", bc.HandleRemoveCard)
	app.Post("/billing/subscribe", bc.HandleSubscribe)
	app.Post("/billing/subscription", bc.HandleUpdateSubscription)
	app.Post("/billing/subscription/cancel", bc.HandleCancelSubscription)
	app.Post("/billing/customer", bc.HandleCreateCustomer)
	app.Post("/signup", ac.HandleSignup)
	app.Post("/login", ac.HandleLogin)
	app.Post("/logout", ac.HandleLogout)

	env.app = app
	return env
}

func newFormRequest(path string, form url.Values) *http.Request {
	req := httptest.NewRequest(fiber.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationForm)
	return req
}
