package api

import (
	"context"  // Context for Redis operations
	"errors"   // Sentinel error matching
	"net/http" // HTTP status codes
	"strconv"  // String conversion
	"time"     // Time parsing

	"vcoin/internal/ledger" // Ledger errors
	"vcoin/internal/team"   // Team aggregation
	"vcoin/internal/utils"  // Cache helpers and JWT keyring

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logging library
	"gorm.io/gorm"                 // GORM ORM library
)

// Deps are the services shared by every handler
type Deps struct {
	DB       *gorm.DB       // Database handle
	Redis    *redis.Client  // Optional cache, nil disables caching
	Ledger   *ledger.Ledger // Balance mutations and account operations
	Team     *team.Service  // Referral and team statistics
	Keys     *utils.Keyring // JWT signing keys
	CacheTTL time.Duration  // TTL of cached listings
}

// respond writes a success envelope merged with payload
func respond(c *gin.Context, status int, message string, payload gin.H) {
	body := gin.H{"success": true}
	if message != "" {
		body["message"] = message
	}
	for k, v := range payload {
		body[k] = v
	}
	c.JSON(status, body)
}

// fail writes an error envelope
func fail(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"success": false, "error": msg})
}

// statusFor maps ledger errors to HTTP statuses
func statusFor(err error) int {
	switch {
	case errors.Is(err, ledger.ErrUserNotFound), errors.Is(err, ledger.ErrNoticeNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrBadCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, ledger.ErrAccountBlocked), errors.Is(err, ledger.ErrAccountDeleted):
		return http.StatusForbidden
	case errors.Is(err, ledger.ErrPhoneTaken), errors.Is(err, ledger.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrInvalidCoinType),
		errors.Is(err, ledger.ErrInvalidRole),
		errors.Is(err, ledger.ErrNegativeBalance),
		errors.Is(err, ledger.ErrInvalidReferralCode),
		errors.Is(err, ledger.ErrSelfReferral),
		errors.Is(err, ledger.ErrProtectedUser),
		errors.Is(err, ledger.ErrInvalidConfig),
		errors.Is(err, ledger.ErrInvalidRange),
		errors.Is(err, ledger.ErrAmountTooLarge),
		errors.Is(err, ledger.ErrWrongPassword):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// handleError maps err to a status; internal errors are logged and hidden behind action
func handleError(c *gin.Context, err error, action string) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logrus.WithFields(logrus.Fields{
			"path":  c.FullPath(),
			"error": err.Error(),
		}).Error(action + " failed")
		fail(c, status, action+" failed")
		return
	}
	fail(c, status, err.Error())
}

// pageParams reads page and page_size with the ledger's bounds
func pageParams(c *gin.Context) (int, int) {
	page := 1                          // Default page number
	pageSize := ledger.DefaultPageSize // Default page size
	if p := c.Query("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v // Set page if valid
		}
	}
	if ps := c.Query("page_size"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= ledger.MaxPageSize {
			pageSize = v // Set page size within limits
		}
	}
	return page, pageSize
}

func totalPages(total int64, pageSize int) int {
	return (int(total) + pageSize - 1) / pageSize
}

// parseTime accepts RFC 3339 timestamps or plain dates; empty input is the zero time
func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, s)
}

// pathID parses a numeric path parameter
func pathID(c *gin.Context, name string) (uint, bool) {
	v, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || v == 0 {
		return 0, false
	}
	return uint(v), true
}

// invalidateLedger drops cached listings affected by a balance or account change
func invalidateLedger(ctx context.Context, rdb *redis.Client, userIDs ...uint) {
	prefixes := []string{utils.CacheAdminUsers, utils.CacheAdminTransactions}
	for _, id := range userIDs {
		prefixes = append(prefixes, utils.CacheUserTransactions+strconv.FormatUint(uint64(id), 10)+":")
	}
	for _, p := range prefixes {
		if err := utils.DeletePrefix(ctx, rdb, p); err != nil {
			logrus.WithFields(logrus.Fields{"prefix": p, "error": err.Error()}).Warn("Cache invalidation failed")
		}
	}
}

// affected lists the owners of a result's entries
func affected(res ledger.Result) []uint {
	ids := []uint{res.Transaction.UserID}
	if res.Bonus != nil {
		ids = append(ids, res.Bonus.UserID)
	}
	return ids
}
