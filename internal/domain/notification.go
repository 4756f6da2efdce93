package domain

import "time"

// NotificationType classifies an in-app notification
type NotificationType string

const (
	NotifyReferralSignup NotificationType = "REFERRAL_SIGNUP"
	NotifyCoinGranted    NotificationType = "COIN_GRANTED"
	NotifySystem         NotificationType = "SYSTEM"
)

// Notification Model. IsRead is the only field mutated after creation.
type Notification struct {
	ID            uint             `gorm:"primaryKey" json:"id"`
	UserID        uint             `gorm:"index;not null" json:"user_id"`
	Type          NotificationType `gorm:"size:20;not null" json:"type"`
	Title         string           `gorm:"size:200;not null" json:"title"`
	Message       string           `gorm:"type:text" json:"message"`
	IsRead        bool             `gorm:"not null;default:false" json:"is_read"`
	RelatedUserID *uint            `json:"related_user_id,omitempty"`
	CreatedAt     time.Time        `gorm:"index" json:"created_at"`
}

// PushSubscription stores a browser push endpoint for a user
type PushSubscription struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	UserID    uint      `gorm:"index;not null" json:"user_id"`
	Endpoint  string    `gorm:"size:500;uniqueIndex;not null" json:"endpoint"`
	P256dh    string    `gorm:"size:255;not null" json:"p256dh"`
	Auth      string    `gorm:"size:255;not null" json:"auth"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
