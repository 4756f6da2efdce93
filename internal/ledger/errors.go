package ledger

import "errors"

// Errors returned by the ledger; handlers map them to HTTP statuses with errors.Is.
var (
	ErrUserNotFound        = errors.New("user not found")
	ErrNoticeNotFound      = errors.New("notice not found")
	ErrInvalidCoinType     = errors.New("invalid coin type")
	ErrInvalidRole         = errors.New("invalid role")
	ErrNegativeBalance     = errors.New("balance cannot be negative")
	ErrConflict            = errors.New("balance changed concurrently, retry")
	ErrInvalidReferralCode = errors.New("invalid referral code")
	ErrSelfReferral        = errors.New("user cannot refer itself")
	ErrProtectedUser       = errors.New("admin accounts cannot be modified this way")
	ErrPhoneTaken          = errors.New("phone number already registered")
	ErrInvalidConfig       = errors.New("invalid system config")
	ErrInvalidRange        = errors.New("from must not be after to")
	ErrAmountTooLarge      = errors.New("amount exceeds the balance limit")
)
