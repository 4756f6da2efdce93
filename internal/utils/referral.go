package utils

import (
	"crypto/rand" // Unbiased random source
	"math/big"    // Range for rand.Int
)

const (
	ReferralCodeLength   = 6                                      // Length of a referral code
	referralCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789" // Characters used in codes
)

// GenerateReferralCode returns a random 6 character code from [A-Z0-9]
func GenerateReferralCode() (string, error) {
	b := make([]byte, ReferralCodeLength)
	max := big.NewInt(int64(len(referralCodeAlphabet)))
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = referralCodeAlphabet[n.Int64()]
	}
	return string(b), nil
}

// IsReferralCode reports whether s has the shape of a referral code
func IsReferralCode(s string) bool {
	if len(s) != ReferralCodeLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}
