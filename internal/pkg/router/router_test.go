package router

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gofiber/fiber/v2"
	fibersession "github.com/gofiber/fiber/v2/middleware/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ManuelReschke/stripe-billing/app/repository"
	"github.com/ManuelReschke/stripe-billing/internal/pkg/billing"
	"github.com/ManuelReschke/stripe-billing/internal/pkg/session"
	"github.com/ManuelReschke/stripe-billing/views"
)

// missingProvider reports every remote object as missing.
type missingProvider struct{}

func (missingProvider) CreateCustomer(context.Context, string) (*billing.Customer, error) {
	return nil, billing.ErrNotFound
}
func (missingProvider) GetCustomer(context.Context, string) (*billing.Customer, error) {
	return nil, billing.ErrNotFound
}
func (missingProvider) AttachCard(context.Context, string, billing.CardSource) (*billing.Card, error) {
	return nil, billing.ErrNotFound
}
func (missingProvider) DeleteCard(context.Context, string, string) error { return billing.ErrNotFound }
func (missingProvider) ListCards(context.Context, string) ([]billing.Card, error) {
	return nil, billing.ErrNotFound
}
func (missingProvider) CreateSubscription(context.Context, string, billing.SubscriptionParams) (*billing.Subscription, error) {
	return nil, billing.ErrNotFound
}
func (missingProvider) GetSubscription(context.Context, string) (*billing.Subscription, error) {
	return nil, billing.ErrNotFound
}
func (missingProvider) UpdateSubscription(context.Context, *billing.Subscription, billing.SubscriptionUpdate) (*billing.Subscription, error) {
	return nil, billing.ErrNotFound
}
func (missingProvider) CancelSubscription(context.Context, string) error { return billing.ErrNotFound }
func (missingProvider) GetEvent(context.Context, string) (*billing.Event, error) {
	return nil, billing.ErrNotFound
}

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	sqlDB, _, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	db, err := gorm.Open(mysql.New(mysql.Config{Conn: sqlDB, SkipInitializeWithVersion: true}),
		&gorm.Config{SkipDefaultTransaction: true, Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	session.UseStore(fibersession.New())
	t.Cleanup(func() { session.UseStore(nil) })

	repos := repository.NewRepositories(db)
	svc := billing.NewService(missingProvider{}, repos.User, billing.DefaultOptions())

	app := fiber.New(fiber.Config{Views: views.NewEngine()})
	InstallRouter(app, Dependencies{Billing: svc, Bus: billing.NewBus(), Repos: repos})
	return app
}

func TestBillingPagesRequireLogin(t *testing.T) {
	app := newTestApp(t)

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/billing", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))
}

func TestWebhookBypassesCSRF(t *testing.T) {
	app := newTestApp(t)

	req := httptest.NewRequest(fiber.MethodPost, "/stripe-webhook", strings.NewReader(`{}`))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestFormPostsNeedCSRFToken(t *testing.T) {
	app := newTestApp(t)

	req := httptest.NewRequest(fiber.MethodPost, "/login", strings.NewReader("email=a%40b.c&password=x"))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationForm)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestLoginPageRenders(t *testing.T) {
	app := newTestApp(t)

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/login", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}
