package ledger

import (
	"context"

	"github.com/sirupsen/logrus"

	"vcoin/internal/domain"
)

// broadcastBatch is the insert batch size of a broadcast
const broadcastBatch = 200

// previewLength bounds the notification text of a broadcast
const previewLength = 100

// Preview truncates s to previewLength runes followed by "..."
func Preview(s string) string {
	r := []rune(s)
	if len(r) <= previewLength {
		return s
	}
	return string(r[:previewLength]) + "..."
}

// Broadcast sends a SYSTEM notification to every non-admin member and returns the recipient count
func (l *Ledger) Broadcast(ctx context.Context, title, message string) (int, error) {
	var ids []uint
	if err := l.db.WithContext(ctx).Model(&domain.User{}).
		Where("role <> ? AND status <> ?", domain.RoleAdmin, domain.StatusDeleted).
		Pluck("id", &ids).Error; err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	rows := make([]domain.Notification, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, domain.Notification{
			UserID:  id,
			Type:    domain.NotifySystem,
			Title:   title,
			Message: Preview(message),
		})
	}
	if err := l.db.WithContext(ctx).CreateInBatches(rows, broadcastBatch).Error; err != nil {
		return 0, err
	}
	logrus.WithFields(logrus.Fields{"title": title, "recipients": len(rows)}).Info("Notification broadcast")
	return len(rows), nil
}
