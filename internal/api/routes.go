package api

import (
	"net/http" // HTTP status codes

	"vcoin/internal/domain"     // Coin types
	"vcoin/internal/middleware" // JWT and admin middleware

	"github.com/gin-gonic/gin" // Gin web framework
)

// Register mounts every route on r
func Register(r *gin.Engine, d Deps) {
	r.GET("/health", HealthHandler(d))

	// Auth routes
	auth := r.Group("/auth")
	auth.POST("/signup", SignupHandler(d)) // Registration endpoint
	auth.POST("/login", LoginHandler(d))   // Login endpoint

	// Session check reports inactive accounts itself
	r.GET("/auth/session", middleware.JWTAuthMiddleware(d.Keys), SessionHandler(d))

	// Member routes (protected by JWT, active accounts only)
	member := r.Group("")
	member.Use(middleware.JWTAuthMiddleware(d.Keys), middleware.ActiveMemberMiddleware(d.DB))
	member.PUT("/user", UpdateProfileHandler(d))
	member.GET("/referrals", ReferralsHandler(d))
	member.GET("/transactions", TransactionHistoryHandler(d))
	member.GET("/notices", ListNoticesHandler(d))
	member.GET("/notices/:id", GetNoticeHandler(d))
	member.GET("/notifications", ListNotificationsHandler(d))
	member.PATCH("/notifications", MarkNotificationsHandler(d))
	member.POST("/notifications/subscribe", SubscribeHandler(d))
	member.DELETE("/notifications/subscribe", UnsubscribeHandler(d))

	// Admin routes (protected, admin only)
	admin := r.Group("/admin")
	admin.Use(middleware.JWTAuthMiddleware(d.Keys), middleware.AdminOnlyMiddleware(d.DB))
	admin.GET("/users", ListUsersHandler(d))
	admin.PATCH("/users/:id", UpdateUserHandler(d))
	admin.GET("/notices", ListNoticesHandler(d))
	admin.POST("/notices", CreateNoticeHandler(d))
	admin.PUT("/notices", UpdateNoticeHandler(d))
	admin.DELETE("/notices", DeleteNoticeHandler(d))
	admin.POST("/grant-security", GrantHandler(d, domain.CoinSecurity))
	admin.POST("/set-security", SetHandler(d, domain.CoinSecurity))
	admin.POST("/grant-dividend", GrantHandler(d, domain.CoinDividend))
	admin.POST("/set-dividend", SetHandler(d, domain.CoinDividend))
	admin.POST("/set-role", SetRoleHandler(d))
	admin.POST("/block-user", BlockUserHandler(d))
	admin.POST("/delete-user", DeleteUserHandler(d))
	admin.POST("/permanently-delete-user", PurgeUserHandler(d))
	admin.POST("/fix-referrals", FixReferralsHandler(d))
	admin.GET("/system-config", GetSystemConfigHandler(d))
	admin.PUT("/system-config", PutSystemConfigHandler(d))
	admin.GET("/transactions", ListTransactionsHandler(d))
}

// HealthHandler pings the database and, when configured, redis
func HealthHandler(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		sqlDB, err := d.DB.DB()
		if err == nil {
			err = sqlDB.PingContext(ctx)
		}
		if err != nil {
			fail(c, http.StatusServiceUnavailable, "database unavailable")
			return
		}
		redisStatus := "disabled"
		if d.Redis != nil {
			redisStatus = "ok"
			if err := d.Redis.Ping(ctx).Err(); err != nil {
				redisStatus = "unavailable"
			}
		}
		respond(c, http.StatusOK, "", gin.H{"database": "ok", "redis": redisStatus})
	}
}
