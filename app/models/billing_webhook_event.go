package models

import "time"

// Billing provider constants used across billing-related models.
const (
	BillingProviderStripe = "stripe"
)

// BillingWebhookEvent is an audit record of one webhook delivery. Redeliveries
// produce additional rows; reconciliation is re-applied for each of them.
type BillingWebhookEvent struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	DeliveryID      string     `gorm:"type:char(36);not null;default:'';index" json:"delivery_id"`
	Provider        string     `gorm:"type:varchar(20);not null;index" json:"provider"`
	ProviderEventID string     `gorm:"type:varchar(191);not null;default:'';index" json:"provider_event_id"`
	EventType       string     `gorm:"type:varchar(100);not null;index" json:"event_type"`
	PayloadJSON     string     `gorm:"type:longtext;not null" json:"payload_json"`
	SignatureValid  bool       `gorm:"default:false;index" json:"signature_valid"`
	Handled         bool       `gorm:"default:false" json:"handled"`
	ProcessedAt     *time.Time `gorm:"type:timestamp;default:null" json:"processed_at,omitempty"`
	ProcessingError string     `gorm:"type:text" json:"processing_error"`
	CreatedAt       time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
