package repository

import (
	"context"
	"errors"

	"github.com/ManuelReschke/stripe-billing/app/models"
	"gorm.io/gorm"
)

// userRepository implements the UserRepository interface
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new user repository instance
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// Create creates a new user in the database
func (r *userRepository) Create(user *models.User) error {
	return r.db.Create(user).Error
}

// GetByID retrieves a user by their ID
func (r *userRepository) GetByID(id uint) (*models.User, error) {
	var user models.User
	err := r.db.First(&user, id).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByEmail retrieves a user by their email address
func (r *userRepository) GetByEmail(email string) (*models.User, error) {
	var user models.User
	err := r.db.Where("email = ?", email).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Update updates an existing user in the database
func (r *userRepository) Update(user *models.User) error {
	return r.db.Save(user).Error
}

// Count returns the total number of users
func (r *userRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.User{}).Count(&count).Error
	return count, err
}

// FindByBillingCustomerID resolves the user linked to a provider customer
func (r *userRepository) FindByBillingCustomerID(ctx context.Context, customerID string) (*models.User, error) {
	if customerID == "" {
		return nil, nil
	}
	var user models.User
	err := r.db.WithContext(ctx).Where("billing_customer_id = ?", customerID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Save persists all fields of the user
func (r *userRepository) Save(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Save(user).Error
}

// CountByPlan returns the number of users per plan, users without a plan are
// left out
func (r *userRepository) CountByPlan(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		PlanName string
		Count    int64
	}
	err := r.db.WithContext(ctx).Model(&models.User{}).
		Select("plan_name, COUNT(*) as count").
		Where("plan_name IS NOT NULL AND plan_name <> ''").
		Group("plan_name").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.PlanName] = row.Count
	}
	return counts, nil
}
