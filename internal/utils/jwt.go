package utils

import (
	"errors" // Error values
	"fmt"    // Formatted errors
	"time"   // Time for token expiration

	"github.com/golang-jwt/jwt/v5" // JWT library
)

// ErrUnknownKey is returned when a token names a key id the keyring does not hold
var ErrUnknownKey = errors.New("unknown signing key")

// JWT Claims
type Claims struct {
	UserID               uint   `json:"user_id"`  // Custom claim for user ID
	Phone                string `json:"phone"`    // Phone number at issue time
	IsAdmin              bool   `json:"is_admin"` // Admin flag at issue time
	jwt.RegisteredClaims        // Standard JWT claims
}

// Keyring signs with the active key and verifies with any key it holds, selected by the "kid" header
type Keyring struct {
	keys   map[string][]byte // Secrets by key id
	active string            // Key id used for signing
	ttl    time.Duration     // Lifetime of issued tokens
}

// NewKeyring builds a keyring; the active key id must be present in keys
func NewKeyring(keys map[string]string, active string, ttl time.Duration) (*Keyring, error) {
	if _, ok := keys[active]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKey, active)
	}
	k := &Keyring{keys: make(map[string][]byte, len(keys)), active: active, ttl: ttl}
	for kid, secret := range keys {
		k.keys[kid] = []byte(secret)
	}
	return k, nil
}

// GenerateJWT creates a JWT token for a given user
func (k *Keyring) GenerateJWT(userID uint, phone string, isAdmin bool) (string, error) {
	now := time.Now()
	// Set token claims
	claims := Claims{
		UserID:  userID,  // Custom claim for user ID
		Phone:   phone,   // Phone number
		IsAdmin: isAdmin, // Admin flag
		// Standard claims
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(k.ttl)), // Token expiry
			IssuedAt:  jwt.NewNumericDate(now),            // Issued at current time
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims) // Create token with claims
	token.Header["kid"] = k.active                             // Name the signing key
	return token.SignedString(k.keys[k.active])                // Sign the token with the active secret
}

// ParseJWT parses and validates a JWT token string
func (k *Keyring) ParseJWT(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (any, error) {
		kid, _ := token.Header["kid"].(string) // Key id chosen at signing time
		secret, ok := k.keys[kid]
		if !ok {
			return nil, ErrUnknownKey
		}
		return secret, nil // Return the secret key for validation
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	// Check for parsing errors
	if err != nil {
		return nil, err // Return error if parsing fails
	}
	// Validate token and extract claims
	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil // Return claims if valid
	}
	// Return error if token is invalid
	return nil, jwt.ErrSignatureInvalid
}
