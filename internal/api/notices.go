package api

import (
	"errors"   // Record-not-found checks
	"net/http" // HTTP status codes

	"vcoin/internal/domain"     // Importing domain models
	"vcoin/internal/ledger"     // Broadcasts and errors
	"vcoin/internal/middleware" // Acting admin lookup

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging library
	"gorm.io/gorm"               // GORM ORM library
)

// NoticeRequest is the body of POST and PUT /admin/notices
type NoticeRequest struct {
	NoticeID uint              `json:"notice_id"`                        // Required on update
	Type     domain.NoticeType `json:"type" binding:"required"`          // Category badge
	Title    string            `json:"title" binding:"required,max=200"` // Title
	Content  string            `json:"content" binding:"required"`       // Body
}

// ListNoticesHandler returns every notice, newest first
func ListNoticesHandler(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var notices []domain.Notice
		if err := d.DB.WithContext(c.Request.Context()).Order("created_at desc, id desc").Find(&notices).Error; err != nil {
			handleError(c, err, "Notice listing")
			return
		}
		respond(c, http.StatusOK, "", gin.H{"notices": notices})
	}
}

// GetNoticeHandler returns one notice and counts the view
func GetNoticeHandler(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			fail(c, http.StatusBadRequest, "Invalid notice id")
			return
		}
		var notice domain.Notice
		err := d.DB.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
			res := tx.Model(&domain.Notice{}).Where("id = ?", id).
				UpdateColumn("view_count", gorm.Expr("view_count + 1")) // Atomic increment
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return ledger.ErrNoticeNotFound
			}
			return tx.First(&notice, id).Error
		})
		if err != nil {
			handleError(c, err, "Notice lookup")
			return
		}
		respond(c, http.StatusOK, "", gin.H{"notice": notice})
	}
}

// CreateNoticeHandler publishes a notice and notifies every member
func CreateNoticeHandler(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req NoticeRequest
		if err := c.ShouldBindJSON(&req); err != nil || !req.Type.Valid() {
			fail(c, http.StatusBadRequest, "Type, title and content are required")
			return
		}
		admin := c.MustGet(middleware.CtxAdmin).(domain.User) // Set by AdminOnlyMiddleware
		notice := domain.Notice{
			Type:       req.Type,
			Title:      req.Title,
			Content:    req.Content,
			AuthorID:   admin.ID,
			AuthorName: admin.Name,
		}
		ctx := c.Request.Context()
		if err := d.DB.WithContext(ctx).Create(&notice).Error; err != nil {
			handleError(c, err, "Notice creation")
			return
		}
		// The notice stands even when the broadcast fails
		recipients, err := d.Ledger.Broadcast(ctx, "New notice: "+notice.Title, notice.Content)
		if err != nil {
			logrus.WithFields(logrus.Fields{"notice_id": notice.ID, "error": err.Error()}).Error("Notice broadcast failed")
		}
		logrus.WithFields(logrus.Fields{"notice_id": notice.ID, "author_id": admin.ID}).Info("Notice created")
		respond(c, http.StatusCreated, "Notice created", gin.H{"notice": notice, "notified": recipients})
	}
}

// UpdateNoticeHandler edits a notice
func UpdateNoticeHandler(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req NoticeRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.NoticeID == 0 || !req.Type.Valid() {
			fail(c, http.StatusBadRequest, "Notice id, type, title and content are required")
			return
		}
		ctx := c.Request.Context()
		var notice domain.Notice
		if err := d.DB.WithContext(ctx).First(&notice, req.NoticeID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				err = ledger.ErrNoticeNotFound
			}
			handleError(c, err, "Notice update")
			return
		}
		notice.Type, notice.Title, notice.Content = req.Type, req.Title, req.Content
		if err := d.DB.WithContext(ctx).Save(&notice).Error; err != nil {
			handleError(c, err, "Notice update")
			return
		}
		respond(c, http.StatusOK, "Notice updated", gin.H{"notice": notice})
	}
}

// DeleteNoticeRequest is the body of DELETE /admin/notices
type DeleteNoticeRequest struct {
	NoticeID uint `json:"notice_id" binding:"required"`
}

// DeleteNoticeHandler removes a notice
func DeleteNoticeHandler(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req DeleteNoticeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, "Notice id is required")
			return
		}
		res := d.DB.WithContext(c.Request.Context()).Delete(&domain.Notice{}, req.NoticeID)
		if res.Error != nil {
			handleError(c, res.Error, "Notice deletion")
			return
		}
		if res.RowsAffected == 0 {
			handleError(c, ledger.ErrNoticeNotFound, "Notice deletion")
			return
		}
		respond(c, http.StatusOK, "Notice deleted", nil)
	}
}
