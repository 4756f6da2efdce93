package domain

import "time"

// TransactionType classifies a ledger entry
type TransactionType string

const (
	TxSignupBonus   TransactionType = "SIGNUP_BONUS"   // Coins credited to a new member
	TxReferralBonus TransactionType = "REFERRAL_BONUS" // Coins credited to a referrer
	TxAdminGrant    TransactionType = "ADMIN_GRANT"    // Manual grant or correction by an admin
	TxConversion    TransactionType = "CONVERSION"     // Dividend coins converted from a deposit
)

// Transaction Model, append-only
type Transaction struct {
	ID            uint            `gorm:"primaryKey" json:"id"`               // Primary key
	UserID        uint            `gorm:"index;not null" json:"user_id"`      // Owner of the balance
	OperationID   string          `gorm:"size:36;index" json:"operation_id"`  // Groups entries of one logical operation
	Type          TransactionType `gorm:"size:20;index;not null" json:"type"` // Entry type
	CoinType      CoinType        `gorm:"size:10;not null" json:"coin_type"`  // SECURITY or DIVIDEND
	Amount        int64           `gorm:"not null" json:"amount"`             // Signed delta
	Balance       int64           `gorm:"not null" json:"balance"`            // Balance after applying Amount
	Description   string          `gorm:"size:255" json:"description"`        // Free text
	RelatedUserID *uint           `json:"related_user_id,omitempty"`          // Member that caused a referral bonus
	CreatedAt     time.Time       `gorm:"index" json:"created_at"`            // Creation time
}
