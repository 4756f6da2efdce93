package api

import (
	"net/http" // HTTP status codes

	"vcoin/internal/domain"     // Importing domain models
	"vcoin/internal/middleware" // Authenticated user lookup

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/google/uuid"     // Subscription ids
	"github.com/sirupsen/logrus" // Logging library
	"gorm.io/gorm/clause"        // Upserts
)

// notificationLimit bounds the notification listing
const notificationLimit = 50

// MarkNotificationsRequest is the body of PATCH /notifications
type MarkNotificationsRequest struct {
	NotificationID uint `json:"notification_id"`  // Single notification to mark
	MarkAllAsRead  bool `json:"mark_all_as_read"` // Mark every notification of the member
}

// SubscribeRequest is the body of POST /notifications/subscribe, shaped like a browser PushSubscription
type SubscribeRequest struct {
	Subscription struct {
		Endpoint string `json:"endpoint" binding:"required,url"`
		Keys     struct {
			P256dh string `json:"p256dh" binding:"required"`
			Auth   string `json:"auth" binding:"required"`
		} `json:"keys" binding:"required"`
	} `json:"subscription" binding:"required"`
}

// UnsubscribeRequest is the body of DELETE /notifications/subscribe
type UnsubscribeRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
}

// ListNotificationsHandler returns the newest notifications and the unread count
func ListNotificationsHandler(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _ := middleware.UserID(c)
		db := d.DB.WithContext(c.Request.Context())
		var notes []domain.Notification
		if err := db.Where("user_id = ?", userID).Order("created_at desc, id desc").
			Limit(notificationLimit).Find(&notes).Error; err != nil {
			handleError(c, err, "Notification listing")
			return
		}
		var unread int64
		if err := db.Model(&domain.Notification{}).Where("user_id = ? AND is_read = ?", userID, false).
			Count(&unread).Error; err != nil {
			handleError(c, err, "Notification listing")
			return
		}
		respond(c, http.StatusOK, "", gin.H{"notifications": notes, "unread_count": unread})
	}
}

// MarkNotificationsHandler marks one or all of the member's notifications as read
func MarkNotificationsHandler(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _ := middleware.UserID(c)
		var req MarkNotificationsRequest
		if err := c.ShouldBindJSON(&req); err != nil || (!req.MarkAllAsRead && req.NotificationID == 0) {
			fail(c, http.StatusBadRequest, "notification_id or mark_all_as_read is required")
			return
		}
		q := d.DB.WithContext(c.Request.Context()).Model(&domain.Notification{}).Where("user_id = ?", userID)
		if !req.MarkAllAsRead {
			q = q.Where("id = ?", req.NotificationID) // Members can only mark their own
		}
		res := q.Update("is_read", true)
		if res.Error != nil {
			handleError(c, res.Error, "Marking notifications")
			return
		}
		respond(c, http.StatusOK, "", gin.H{"updated": res.RowsAffected})
	}
}

// SubscribeHandler stores a push endpoint for the member; a known endpoint is re-assigned
func SubscribeHandler(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _ := middleware.UserID(c)
		var req SubscribeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, "Invalid subscription")
			return
		}
		sub := domain.PushSubscription{
			ID:       uuid.NewString(),
			UserID:   userID,
			Endpoint: req.Subscription.Endpoint,
			P256dh:   req.Subscription.Keys.P256dh,
			Auth:     req.Subscription.Keys.Auth,
		}
		err := d.DB.WithContext(c.Request.Context()).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "endpoint"}},
			DoUpdates: clause.AssignmentColumns([]string{"user_id", "p256dh", "auth", "updated_at"}),
		}).Create(&sub).Error
		if err != nil {
			handleError(c, err, "Saving push subscription")
			return
		}
		logrus.WithField("user_id", userID).Info("Push subscription saved")
		respond(c, http.StatusOK, "Subscribed", nil)
	}
}

// UnsubscribeHandler removes one of the member's push endpoints
func UnsubscribeHandler(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _ := middleware.UserID(c)
		var req UnsubscribeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, "Endpoint is required")
			return
		}
		if err := d.DB.WithContext(c.Request.Context()).
			Where("user_id = ? AND endpoint = ?", userID, req.Endpoint).
			Delete(&domain.PushSubscription{}).Error; err != nil {
			handleError(c, err, "Removing push subscription")
			return
		}
		respond(c, http.StatusOK, "Unsubscribed", nil)
	}
}
