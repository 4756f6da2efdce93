package domain

import "fmt"

// CoinType names one of the two balances a user holds
type CoinType string

const (
	CoinSecurity CoinType = "SECURITY" // Equity-like coin granted at signup and referral
	CoinDividend CoinType = "DIVIDEND" // Coin granted per deposit
)

// Valid reports whether c is a known coin type
func (c CoinType) Valid() bool {
	return c == CoinSecurity || c == CoinDividend
}

// Column returns the users column holding this balance
func (c CoinType) Column() string {
	if c == CoinDividend {
		return "dividend_coins"
	}
	return "security_coins"
}

// Label is the human readable coin name used in notifications
func (c CoinType) Label() string {
	if c == CoinDividend {
		return "dividend coins"
	}
	return "security coins"
}

// Balance returns the user's balance for the coin type
func (u User) Balance(c CoinType) int64 {
	if c == CoinDividend {
		return u.DividendCoins
	}
	return u.SecurityCoins
}

// SetBalance overwrites the in-memory balance for the coin type
func (u *User) SetBalance(c CoinType, v int64) {
	if c == CoinDividend {
		u.DividendCoins = v
		return
	}
	u.SecurityCoins = v
}

// ParseCoinType validates a coin type coming from a request
func ParseCoinType(s string) (CoinType, error) {
	c := CoinType(s)
	if !c.Valid() {
		return "", fmt.Errorf("unknown coin type %q", s)
	}
	return c, nil
}
