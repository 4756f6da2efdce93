package api

import (
	"errors"   // Request validation errors
	"net/http" // HTTP status codes
	"strconv"  // String conversion

	"vcoin/internal/domain"     // Importing domain models
	"vcoin/internal/ledger"     // Transaction queries
	"vcoin/internal/middleware" // Authenticated user lookup
	"vcoin/internal/utils"      // Cache helpers

	"github.com/gin-gonic/gin" // Gin web framework
)

var errBadDate = errors.New("from and to must be dates (YYYY-MM-DD) or RFC 3339 timestamps")

// transactionFilter builds a ledger filter from query parameters
func transactionFilter(c *gin.Context) (ledger.TransactionFilter, error) {
	page, pageSize := pageParams(c)
	from, err := parseTime(c.Query("from"))
	if err != nil {
		return ledger.TransactionFilter{}, errBadDate
	}
	to, err := parseTime(c.Query("to"))
	if err != nil {
		return ledger.TransactionFilter{}, errBadDate
	}
	var coin domain.CoinType // Empty matches both coins
	if raw := c.Query("coin_type"); raw != "" {
		if coin, err = domain.ParseCoinType(raw); err != nil {
			return ledger.TransactionFilter{}, err
		}
	}
	return ledger.TransactionFilter{
		Type:     domain.TransactionType(c.Query("type")),
		CoinType: coin,
		From:     from,
		To:       to,
		Page:     page,
		PageSize: pageSize,
	}, nil
}

// cachedPage is a transaction page as stored in the cache
type cachedPage struct {
	Transactions []domain.Transaction `json:"transactions"` // List of transactions
	Page         int                  `json:"page"`         // Current page
	PageSize     int                  `json:"page_size"`    // Page size
	Total        int64                `json:"total"`        // Total transactions
	TotalPages   int                  `json:"total_pages"`  // Total pages
}

func pagePayload(p cachedPage, cached bool) gin.H {
	return gin.H{
		"transactions": p.Transactions, // List of transactions
		"page":         p.Page,         // Current page
		"page_size":    p.PageSize,     // Page size
		"total":        p.Total,        // Total transactions
		"total_pages":  p.TotalPages,   // Total pages
		"cached":       cached,         // Whether the page came from the cache
	}
}

// TransactionHistoryHandler returns the authenticated member's ledger entries
func TransactionHistoryHandler(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _ := middleware.UserID(c)
		f, err := transactionFilter(c)
		if err != nil {
			fail(c, http.StatusBadRequest, err.Error())
			return
		}
		f.UserID = userID

		ctx := c.Request.Context()
		// Redis cache key, one prefix per user for invalidation
		cacheKey := utils.CacheUserTransactions + strconv.FormatUint(uint64(userID), 10) + ":" + c.Request.URL.RawQuery
		var cached cachedPage
		if found, err := utils.GetCache(ctx, d.Redis, cacheKey, &cached); err == nil && found {
			respond(c, http.StatusOK, "", pagePayload(cached, true))
			return
		}

		page, err := d.Ledger.Transactions(ctx, f)
		if err != nil {
			handleError(c, err, "Transaction history")
			return
		}
		out := cachedPage{
			Transactions: page.Transactions,
			Page:         page.Page,
			PageSize:     page.PageSize,
			Total:        page.Total,
			TotalPages:   totalPages(page.Total, page.PageSize),
		}
		_ = utils.SetCache(ctx, d.Redis, cacheKey, out, d.CacheTTL) // Cache the page
		respond(c, http.StatusOK, "", pagePayload(out, false))
	}
}

// ReferralsHandler lists the member's referrals two levels deep, plus team statistics for team leaders
func ReferralsHandler(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _ := middleware.UserID(c)
		ctx := c.Request.Context()
		user, err := d.Ledger.FindUser(ctx, userID)
		if err != nil {
			handleError(c, err, "Referral listing")
			return
		}
		referred, err := d.Team.Referrals(ctx, user.ReferralCode)
		if err != nil {
			handleError(c, err, "Referral listing")
			return
		}
		isLeader := user.Role == domain.RoleTeamLeader
		var stats any // null for regular members
		if isLeader {
			s, err := d.Team.Stats(ctx, user.ReferralCode)
			if err != nil {
				handleError(c, err, "Team statistics")
				return
			}
			stats = s
		}
		respond(c, http.StatusOK, "", gin.H{
			"referred_users": referred,
			"total":          len(referred),
			"is_team_leader": isLeader,
			"team_stats":     stats,
		})
	}
}
