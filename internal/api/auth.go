package api

import (
	"net/http" // HTTP status codes
	"strings"  // String manipulation

	"vcoin/internal/domain"     // Importing domain models
	"vcoin/internal/ledger"     // Signup and account operations
	"vcoin/internal/middleware" // Authenticated user lookup

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging library
)

// SignupRequest is the body of POST /auth/signup
type SignupRequest struct {
	Name         string `json:"name" binding:"required,max=100"`            // Display name
	Phone        string `json:"phone" binding:"required,max=20"`            // Login phone number
	Email        string `json:"email" binding:"omitempty,email"`            // Optional email
	IDNumber     string `json:"id_number" binding:"omitempty,max=50"`       // Optional identity number
	Password     string `json:"password" binding:"required,min=6,max=72"`   // Bcrypt accepts up to 72 bytes
	ReferralCode string `json:"referral_code" binding:"omitempty,alphanum"` // Referrer's code
}

// LoginRequest is the body of POST /auth/login
type LoginRequest struct {
	Phone    string `json:"phone" binding:"required"`    // Phone must be provided
	Password string `json:"password" binding:"required"` // Password must be provided
}

// UpdateProfileRequest is the body of PUT /user
type UpdateProfileRequest struct {
	Name            string `json:"name" binding:"omitempty,max=100"`
	Phone           string `json:"phone" binding:"omitempty,max=20"`
	Email           string `json:"email" binding:"omitempty,email"`
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password" binding:"omitempty,min=6,max=72"`
}

// SignupHandler registers a member, pays signup bonuses and returns a token
func SignupHandler(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req SignupRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			// If binding fails, return bad request
			fail(c, http.StatusBadRequest, "Name, phone and a password of at least 6 characters are required")
			return
		}
		res, err := d.Ledger.Signup(c.Request.Context(), ledger.SignupRequest{
			Name:         strings.TrimSpace(req.Name),
			Phone:        strings.TrimSpace(req.Phone),
			Email:        req.Email,
			IDNumber:     req.IDNumber,
			Password:     req.Password,
			ReferralCode: req.ReferralCode,
		})
		if err != nil {
			handleError(c, err, "Signup")
			return
		}
		ids := []uint{res.User.ID}
		if res.Bonus != nil {
			ids = append(ids, res.Bonus.UserID) // Referrer's history changed too
		}
		invalidateLedger(c.Request.Context(), d.Redis, ids...)

		// Generate JWT token
		token, err := d.Keys.GenerateJWT(res.User.ID, res.User.Phone, res.User.IsAdmin())
		if err != nil {
			handleError(c, err, "Token generation")
			return
		}
		respond(c, http.StatusCreated, "Signup completed", gin.H{"user": res.User, "token": token})
	}
}

// LoginHandler authenticates a member and returns a JWT token
func LoginHandler(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			// If binding fails, return bad request
			fail(c, http.StatusBadRequest, "Phone and password are required")
			return
		}
		user, err := d.Ledger.Authenticate(c.Request.Context(), strings.TrimSpace(req.Phone), req.Password)
		if err != nil {
			handleError(c, err, "Login")
			return
		}
		// Generate JWT token
		token, err := d.Keys.GenerateJWT(user.ID, user.Phone, user.IsAdmin())
		if err != nil {
			handleError(c, err, "Token generation")
			return
		}
		logrus.WithFields(logrus.Fields{"user_id": user.ID, "ip": c.ClientIP()}).Info("User logged in")
		respond(c, http.StatusOK, "Login successful", gin.H{"user": user, "token": token})
	}
}

// SessionHandler reports whether the token still maps to an active account
func SessionHandler(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _ := middleware.UserID(c) // Set by JWTAuthMiddleware
		user, err := d.Ledger.FindUser(c.Request.Context(), userID)
		if err != nil || user.Status != domain.StatusActive {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "valid": false, "error": "Session is no longer valid"})
			return
		}
		respond(c, http.StatusOK, "", gin.H{"valid": true, "user": user})
	}
}

// UpdateProfileHandler lets a member change their own profile and password
func UpdateProfileHandler(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _ := middleware.UserID(c)
		var req UpdateProfileRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, "Invalid request")
			return
		}
		if req.NewPassword != "" && req.CurrentPassword == "" {
			fail(c, http.StatusBadRequest, "Current password is required to set a new password")
			return
		}
		user, err := d.Ledger.UpdateProfile(c.Request.Context(), userID, ledger.ProfileUpdate{
			Name:            strings.TrimSpace(req.Name),
			Phone:           strings.TrimSpace(req.Phone),
			Email:           req.Email,
			CurrentPassword: req.CurrentPassword,
			NewPassword:     req.NewPassword,
		})
		if err != nil {
			handleError(c, err, "Profile update")
			return
		}
		invalidateLedger(c.Request.Context(), d.Redis)
		respond(c, http.StatusOK, "Profile updated", gin.H{"user": user})
	}
}
