package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	ROLE_USER       = "user"
	ROLE_ADMIN      = "admin"
	STATUS_ACTIVE   = "active"
	STATUS_INACTIVE = "inactive"
	STATUS_DISABLED = "disabled"
)

type User struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	Name        string         `gorm:"type:varchar(150)" json:"name" validate:"required,min=3,max=150"`
	Email       string         `gorm:"uniqueIndex;type:varchar(200)" json:"email" validate:"required,email,min=5,max=200"`
	Password    string         `gorm:"type:text" json:"-" validate:"required,min=6"`
	Role        string         `gorm:"type:varchar(50);default:'user'" json:"role" validate:"oneof=user admin"`
	Status      string         `gorm:"type:varchar(50);default:'active'" json:"status" validate:"oneof=active inactive disabled"`
	LastLoginAt *time.Time     `gorm:"type:timestamp;default:null" json:"last_login_at"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`

	// Billing state mirrored from the payment provider.
	BillingCustomerID        *string             `gorm:"type:varchar(191);index" json:"billing_customer_id,omitempty"`
	BillingSubscriptionID    *string             `gorm:"type:varchar(191);index" json:"billing_subscription_id,omitempty"`
	HasPaymentCard           bool                `gorm:"default:false;index" json:"has_payment_card"`
	PlanName                 *string             `gorm:"type:varchar(191);index" json:"plan_name,omitempty"`
	PlanTrialEnded           bool                `gorm:"default:false;index" json:"plan_trial_ended"`
	PlanLastChargedAt        *time.Time          `gorm:"type:timestamp;default:null" json:"plan_last_charged_at,omitempty"`
	PlanLastChargeAmount     decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"plan_last_charge_amount"`
	PlanLastChargeSuccessful bool                `gorm:"default:true;index" json:"plan_last_charge_successful"`
	PlanNextChargeAt         *time.Time          `gorm:"type:timestamp;default:null;index" json:"plan_next_charge_at,omitempty"`
}

func (u *User) Validate() error {
	v := validator.New()

	return v.Struct(u)
}

func CreateUser(username string, email string, password string) (*User, error) {
	pw, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	u := &User{
		Name:                     username,
		Email:                    email,
		Password:                 pw,
		Role:                     ROLE_USER,
		Status:                   STATUS_ACTIVE,
		PlanLastChargeSuccessful: true,
	}

	err = u.Validate()
	if err != nil {
		return nil, err
	}

	return u, nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)

	return string(bytes), err
}

// CheckPasswordHash compares the given password with the stored hash.
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))

	return err == nil
}

// IsActive reports whether the user status is active
func (u *User) IsActive() bool {
	return u.Status == STATUS_ACTIVE
}

// CheckPassword verifies if the provided password matches the user's stored password
func (u *User) CheckPassword(password string) bool {
	return CheckPasswordHash(password, u.Password)
}

// HasPlan reports whether the user is enrolled in a plan.
func (u *User) HasPlan() bool {
	return u.PlanName != nil && *u.PlanName != ""
}

// IsOnPlan reports whether the user is enrolled in exactly the given plan.
func (u *User) IsOnPlan(plan string) bool {
	return u.HasPlan() && *u.PlanName == plan
}

// CustomerID returns the provider customer reference or "" when none is linked.
func (u *User) CustomerID() string {
	if u.BillingCustomerID == nil {
		return ""
	}
	return *u.BillingCustomerID
}

// SubscriptionID returns the provider subscription reference or "".
func (u *User) SubscriptionID() string {
	if u.BillingSubscriptionID == nil {
		return ""
	}
	return *u.BillingSubscriptionID
}
