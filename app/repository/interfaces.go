package repository

import (
	"context"

	"github.com/ManuelReschke/stripe-billing/app/models"
	"gorm.io/gorm"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	Update(user *models.User) error
	Count() (int64, error)

	// FindByBillingCustomerID returns (nil, nil) when no user is linked to
	// the customer.
	FindByBillingCustomerID(ctx context.Context, customerID string) (*models.User, error)
	Save(ctx context.Context, user *models.User) error
	CountByPlan(ctx context.Context) (map[string]int64, error)
}

// WebhookEventRepository stores the audit trail of webhook deliveries
type WebhookEventRepository interface {
	Create(ctx context.Context, event *models.BillingWebhookEvent) error
	MarkProcessed(ctx context.Context, id uint, processingError string) error
	ListRecent(ctx context.Context, limit int) ([]models.BillingWebhookEvent, error)
}

// Repositories struct holds all repository instances
type Repositories struct {
	User         UserRepository
	WebhookEvent WebhookEventRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:         NewUserRepository(db),
		WebhookEvent: NewWebhookEventRepository(db),
	}
}
