package domain

import "time"

// Role is the permission tier of a user
type Role string

const (
	RoleAdmin      Role = "ADMIN"       // Platform administrator
	RoleTeamLeader Role = "TEAM_LEADER" // Team leader, downline stats are aggregated
	RoleUser       Role = "USER"        // Regular member
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleTeamLeader || r == RoleUser
}

// Status is the lifecycle state of a user account
type Status string

const (
	StatusActive  Status = "ACTIVE"  // Normal account
	StatusBlocked Status = "BLOCKED" // Blocked by an admin, cannot log in
	StatusDeleted Status = "DELETED" // Withdrawn, kept for the ledger
)

// User Model
type User struct {
	ID            uint      `gorm:"primaryKey" json:"id"`                             // Primary key
	Name          string    `gorm:"size:100;not null" json:"name"`                    // Display name
	Phone         string    `gorm:"size:20;uniqueIndex;not null" json:"phone"`        // Unique phone number, used to log in
	Email         string    `gorm:"size:255" json:"email,omitempty"`                  // Optional email
	IDNumber      string    `gorm:"size:50" json:"id_number,omitempty"`               // Optional identity number
	Password      string    `gorm:"size:255;not null" json:"-"`                       // Bcrypt hash
	ReferralCode  string    `gorm:"size:6;uniqueIndex;not null" json:"referral_code"` // Code this user shares
	ReferrerCode  *string   `gorm:"size:20;index" json:"referrer_code,omitempty"`     // Referral code of the referrer
	SecurityCoins int64     `gorm:"not null;default:0" json:"security_coins"`         // Security coin balance
	DividendCoins int64     `gorm:"not null;default:0" json:"dividend_coins"`         // Dividend coin balance
	MemberNumber  int64     `gorm:"uniqueIndex;not null" json:"member_number"`        // Sequential member number
	Role          Role      `gorm:"size:20;not null;default:USER" json:"role"`        // ADMIN, TEAM_LEADER or USER
	Status        Status    `gorm:"size:20;not null;default:ACTIVE" json:"status"`    // ACTIVE, BLOCKED or DELETED
	CreatedAt     time.Time `json:"created_at"`                                       // Creation time
	UpdatedAt     time.Time `json:"updated_at"`                                       // Last update time
}

// IsAdmin reports whether the user holds the admin role
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Referrer returns the stored referrer code, or "" when the user is unbound
func (u User) Referrer() string {
	if u.ReferrerCode == nil {
		return ""
	}
	return *u.ReferrerCode
}
