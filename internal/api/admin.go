package api

import (
	"net/http" // HTTP status codes
	"strconv"  // String conversion
	"strings"  // String manipulation

	"vcoin/internal/domain"     // Importing domain models
	"vcoin/internal/ledger"     // Ledger operations
	"vcoin/internal/middleware" // Acting admin lookup
	"vcoin/internal/utils"      // Cache helpers

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging library
)

// UserRequest names the target of an admin action
type UserRequest struct {
	UserID uint `json:"user_id" binding:"required"` // Target user
}

// GrantRequest is the body of POST /admin/grant-security and /admin/grant-dividend
type GrantRequest struct {
	UserID       uint   `json:"user_id" binding:"required"`              // Target user
	Amount       int64  `json:"amount"`                                  // Signed amount to add
	DepositUnits int64  `json:"deposit_units" binding:"gte=0"`           // Dividend only: converted at the configured rate
	Description  string `json:"description" binding:"omitempty,max=255"` // Free text for the ledger
}

// SetRequest is the body of POST /admin/set-security and /admin/set-dividend
type SetRequest struct {
	UserID      uint   `json:"user_id" binding:"required"`              // Target user
	Amount      *int64 `json:"amount" binding:"required,gte=0"`         // New balance, zero allowed
	Description string `json:"description" binding:"omitempty,max=255"` // Free text for the ledger
}

// SetRoleRequest is the body of POST /admin/set-role
type SetRoleRequest struct {
	UserID uint        `json:"user_id" binding:"required"`
	Role   domain.Role `json:"role" binding:"required"`
}

// BlockUserRequest is the body of POST /admin/block-user
type BlockUserRequest struct {
	UserID uint   `json:"user_id" binding:"required"`
	Action string `json:"action" binding:"required,oneof=block unblock"`
}

// AdminUpdateUserRequest is the body of PATCH /admin/users/:id
type AdminUpdateUserRequest struct {
	Phone    string `json:"phone" binding:"omitempty,max=20"`
	IDNumber string `json:"id_number" binding:"omitempty,max=50"`
}

// SystemConfigRequest is the body of PUT /admin/system-config
type SystemConfigRequest struct {
	Config ledger.SystemConfig `json:"config" binding:"required"`
}

// ListUsersHandler returns one page of users
func ListUsersHandler(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		page, pageSize := pageParams(c)
		// Create a cache key based on pagination parameters
		cacheKey := utils.CacheAdminUsers + "page=" + strconv.Itoa(page) + ":size=" + strconv.Itoa(pageSize)
		var cached struct {
			Users      []domain.User `json:"users"`       // List of users
			Page       int           `json:"page"`        // Current page
			PageSize   int           `json:"page_size"`   // Page size
			Total      int64         `json:"total"`       // Total number of users
			TotalPages int           `json:"total_pages"` // Total pages
		}
		// If cached data found, return it
		if found, err := utils.GetCache(ctx, d.Redis, cacheKey, &cached); err == nil && found {
			respond(c, http.StatusOK, "", gin.H{
				"users":       cached.Users,
				"page":        cached.Page,
				"page_size":   cached.PageSize,
				"total":       cached.Total,
				"total_pages": cached.TotalPages,
				"cached":      true, // Indicate response is from cache
			})
			return
		}
		users, total, err := d.Ledger.ListUsers(ctx, page, pageSize)
		if err != nil {
			handleError(c, err, "User listing")
			return
		}
		respData := gin.H{
			"users":       users,                       // List of users
			"page":        page,                        // Current page
			"page_size":   pageSize,                    // Page size
			"total":       total,                       // Total number of users
			"total_pages": totalPages(total, pageSize), // Total pages
		}
		_ = utils.SetCache(ctx, d.Redis, cacheKey, respData, d.CacheTTL) // Cache the response for future requests
		respData["cached"] = false
		respond(c, http.StatusOK, "", respData)
	}
}

// UpdateUserHandler edits a member's phone and identity number
func UpdateUserHandler(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			fail(c, http.StatusBadRequest, "Invalid user id")
			return
		}
		var req AdminUpdateUserRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, "Invalid request")
			return
		}
		user, err := d.Ledger.AdminUpdate(c.Request.Context(), id, strings.TrimSpace(req.Phone), strings.TrimSpace(req.IDNumber))
		if err != nil {
			handleError(c, err, "User update")
			return
		}
		invalidateLedger(c.Request.Context(), d.Redis)
		respond(c, http.StatusOK, "User updated", gin.H{"user": user})
	}
}

// GrantHandler adds coins of one type. Dividend grants may be given as deposit units.
func GrantHandler(d Deps, coin domain.CoinType) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req GrantRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, "user_id and a non-zero amount are required")
			return
		}
		ctx := c.Request.Context()
		var res ledger.Result
		var err error
		switch {
		case coin == domain.CoinDividend && req.DepositUnits > 0:
			res, err = d.Ledger.GrantDeposit(ctx, req.UserID, req.DepositUnits)
		case req.Amount != 0:
			res, err = d.Ledger.Grant(ctx, ledger.GrantRequest{
				UserID:      req.UserID,
				CoinType:    coin,
				Amount:      req.Amount,
				Description: req.Description,
			})
		default:
			fail(c, http.StatusBadRequest, "user_id and a non-zero amount are required")
			return
		}
		if err != nil {
			handleError(c, err, "Coin grant")
			return
		}
		invalidateLedger(ctx, d.Redis, affected(res)...)
		respond(c, http.StatusOK, strconv.FormatInt(res.Transaction.Amount, 10)+" "+coin.Label()+" granted", gin.H{
			"user":        res.User,
			"transaction": res.Transaction,
			"bonus":       res.Bonus,
		})
	}
}

// SetHandler overwrites a balance of one type
func SetHandler(d Deps, coin domain.CoinType) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req SetRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, "user_id and a non-negative amount are required")
			return
		}
		ctx := c.Request.Context()
		res, err := d.Ledger.Set(ctx, ledger.SetRequest{
			UserID:      req.UserID,
			CoinType:    coin,
			Amount:      *req.Amount,
			Description: req.Description,
		})
		if err != nil {
			handleError(c, err, "Balance update")
			return
		}
		invalidateLedger(ctx, d.Redis, affected(res)...)
		respond(c, http.StatusOK, coin.Label()+" set to "+strconv.FormatInt(*req.Amount, 10), gin.H{
			"user":        res.User,
			"transaction": res.Transaction,
		})
	}
}

// SetRoleHandler changes a member's role
func SetRoleHandler(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req SetRoleRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, "user_id and role are required")
			return
		}
		admin := c.MustGet(middleware.CtxAdmin).(domain.User)
		user, err := d.Ledger.SetRole(c.Request.Context(), admin.ID, req.UserID, req.Role)
		if err != nil {
			handleError(c, err, "Role change")
			return
		}
		invalidateLedger(c.Request.Context(), d.Redis)
		respond(c, http.StatusOK, "Role changed to "+string(user.Role), gin.H{"user": user})
	}
}

// BlockUserHandler blocks or unblocks a member
func BlockUserHandler(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req BlockUserRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, "user_id and action (block or unblock) are required")
			return
		}
		status := domain.StatusActive
		if req.Action == "block" {
			status = domain.StatusBlocked
		}
		user, err := d.Ledger.SetStatus(c.Request.Context(), req.UserID, status)
		if err != nil {
			handleError(c, err, "Status change")
			return
		}
		invalidateLedger(c.Request.Context(), d.Redis)
		respond(c, http.StatusOK, "User "+req.Action+"ed", gin.H{"user": user})
	}
}

// DeleteUserHandler withdraws a member; the account and its ledger stay
func DeleteUserHandler(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req UserRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, "user_id is required")
			return
		}
		user, err := d.Ledger.SetStatus(c.Request.Context(), req.UserID, domain.StatusDeleted)
		if err != nil {
			handleError(c, err, "User deletion")
			return
		}
		invalidateLedger(c.Request.Context(), d.Redis)
		respond(c, http.StatusOK, "User withdrawn", gin.H{"user": user})
	}
}

// PurgeUserHandler permanently removes a member and its records
func PurgeUserHandler(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req UserRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, "user_id is required")
			return
		}
		if err := d.Ledger.Purge(c.Request.Context(), req.UserID); err != nil {
			handleError(c, err, "Permanent deletion")
			return
		}
		invalidateLedger(c.Request.Context(), d.Redis, req.UserID)
		respond(c, http.StatusOK, "User permanently deleted", nil)
	}
}

// FixReferralsHandler migrates legacy id-based referrer values to referral codes
func FixReferralsHandler(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		report, err := d.Ledger.RepairReferrals(c.Request.Context())
		if err != nil {
			handleError(c, err, "Referral repair")
			return
		}
		invalidateLedger(c.Request.Context(), d.Redis)
		respond(c, http.StatusOK, "Referral repair finished", gin.H{"report": report})
	}
}

// GetSystemConfigHandler returns the coin rule tunables
func GetSystemConfigHandler(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		var cfg ledger.SystemConfig
		if found, err := utils.GetCache(ctx, d.Redis, utils.CacheSystemConfig, &cfg); err == nil && found {
			respond(c, http.StatusOK, "", gin.H{"config": cfg, "cached": true})
			return
		}
		cfg, err := d.Ledger.Configs().Get(ctx)
		if err != nil {
			handleError(c, err, "Loading system config")
			return
		}
		_ = utils.SetCache(ctx, d.Redis, utils.CacheSystemConfig, cfg, d.CacheTTL) // Cache the config
		respond(c, http.StatusOK, "", gin.H{"config": cfg, "cached": false})
	}
}

// PutSystemConfigHandler validates and stores the coin rule tunables
func PutSystemConfigHandler(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req SystemConfigRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, "Invalid system config")
			return
		}
		ctx := c.Request.Context()
		if err := d.Ledger.Configs().Put(ctx, req.Config); err != nil {
			handleError(c, err, "Saving system config")
			return
		}
		if err := utils.DeleteCache(ctx, d.Redis, utils.CacheSystemConfig); err != nil {
			logrus.WithField("error", err.Error()).Warn("Cache invalidation failed")
		}
		respond(c, http.StatusOK, "System config saved", gin.H{"config": req.Config})
	}
}

// ListTransactionsHandler returns ledger entries of every member, with optional filters
func ListTransactionsHandler(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		f, err := transactionFilter(c)
		if err != nil {
			fail(c, http.StatusBadRequest, err.Error())
			return
		}
		if v := c.Query("user_id"); v != "" {
			id, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				fail(c, http.StatusBadRequest, "Invalid user_id")
				return
			}
			f.UserID = uint(id)
		}

		ctx := c.Request.Context()
		// Build cache key from all query params
		var keyParts []string
		for _, k := range []string{"user_id", "type", "coin_type", "from", "to"} {
			keyParts = append(keyParts, k+"="+c.Query(k)) // Append key-value pair
		}
		keyParts = append(keyParts, "page="+strconv.Itoa(f.Page), "size="+strconv.Itoa(f.PageSize))
		cacheKey := utils.CacheAdminTransactions + strings.Join(keyParts, ":")

		var cached cachedPage
		if found, err := utils.GetCache(ctx, d.Redis, cacheKey, &cached); err == nil && found {
			respond(c, http.StatusOK, "", pagePayload(cached, true))
			return
		}
		page, err := d.Ledger.Transactions(ctx, f)
		if err != nil {
			handleError(c, err, "Transaction listing")
			return
		}
		out := cachedPage{
			Transactions: page.Transactions,
			Page:         page.Page,
			PageSize:     page.PageSize,
			Total:        page.Total,
			TotalPages:   totalPages(page.Total, page.PageSize),
		}
		_ = utils.SetCache(ctx, d.Redis, cacheKey, out, d.CacheTTL)
		respond(c, http.StatusOK, "", pagePayload(out, false))
	}
}
