package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"vcoin/internal/domain"
	"vcoin/internal/utils"
)

// ErrBadCredentials is returned by Authenticate for unknown phones and wrong passwords alike
var ErrBadCredentials = errors.New("invalid phone number or password")

// ErrAccountBlocked and ErrAccountDeleted reject logins of inactive accounts
var (
	ErrAccountBlocked = errors.New("account is blocked, contact an administrator")
	ErrAccountDeleted = errors.New("account has been withdrawn")
)

// FindUser loads a user by id
func (l *Ledger) FindUser(ctx context.Context, id uint) (domain.User, error) {
	var user domain.User
	if err := l.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, err
	}
	return user, nil
}

// Authenticate checks a phone/password pair against the bcrypt hash
func (l *Ledger) Authenticate(ctx context.Context, phone, password string) (domain.User, error) {
	var user domain.User
	if err := l.db.WithContext(ctx).Where("phone = ?", phone).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, ErrBadCredentials
		}
		return domain.User{}, err
	}
	if !utils.CheckPassword(password, user.Password) {
		return domain.User{}, ErrBadCredentials
	}
	switch user.Status {
	case domain.StatusBlocked:
		return domain.User{}, ErrAccountBlocked
	case domain.StatusDeleted:
		return domain.User{}, ErrAccountDeleted
	}
	return user, nil
}

// ProfileUpdate changes a member's own profile. Empty fields are left unchanged.
type ProfileUpdate struct {
	Name            string
	Phone           string
	Email           string
	CurrentPassword string
	NewPassword     string
}

// ErrWrongPassword is returned when the current password does not match
var ErrWrongPassword = errors.New("current password does not match")

// UpdateProfile applies a self-service profile change
func (l *Ledger) UpdateProfile(ctx context.Context, userID uint, upd ProfileUpdate) (domain.User, error) {
	var user domain.User
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&user, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return err
		}
		changes := map[string]any{}
		if upd.NewPassword != "" {
			if !utils.CheckPassword(upd.CurrentPassword, user.Password) {
				return ErrWrongPassword
			}
			hash, err := utils.HashPassword(upd.NewPassword)
			if err != nil {
				return err
			}
			changes["password"] = hash
		}
		if upd.Phone != "" && upd.Phone != user.Phone {
			if err := phoneFree(tx, upd.Phone, user.ID); err != nil {
				return err
			}
			changes["phone"] = upd.Phone
		}
		if upd.Name != "" {
			changes["name"] = upd.Name
		}
		if upd.Email != "" {
			changes["email"] = upd.Email
		}
		if len(changes) == 0 {
			return nil
		}
		if err := tx.Model(&user).Updates(changes).Error; err != nil {
			return duplicatePhone(err)
		}
		return tx.First(&user, userID).Error
	})
	return user, err
}

// AdminUpdate changes the contact details an admin may edit
func (l *Ledger) AdminUpdate(ctx context.Context, userID uint, phone, idNumber string) (domain.User, error) {
	var user domain.User
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&user, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return err
		}
		changes := map[string]any{}
		if phone != "" && phone != user.Phone {
			if err := phoneFree(tx, phone, user.ID); err != nil {
				return err
			}
			changes["phone"] = phone
		}
		if idNumber != "" {
			changes["id_number"] = idNumber
		}
		if len(changes) == 0 {
			return nil
		}
		if err := tx.Model(&user).Updates(changes).Error; err != nil {
			return duplicatePhone(err)
		}
		return tx.First(&user, userID).Error
	})
	return user, err
}

func phoneFree(tx *gorm.DB, phone string, self uint) error {
	var n int64
	if err := tx.Model(&domain.User{}).Where("phone = ? AND id <> ?", phone, self).Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return ErrPhoneTaken
	}
	return nil
}

// duplicatePhone maps a unique violation to ErrPhoneTaken when a concurrent
// writer claimed the phone between the availability check and the write.
// Referral codes and member numbers are allocated collision-free beforehand.
func duplicatePhone(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrPhoneTaken
	}
	return err
}

// SetRole changes a user's role. Admins cannot change their own role.
func (l *Ledger) SetRole(ctx context.Context, actorID, userID uint, role domain.Role) (domain.User, error) {
	if !role.Valid() {
		return domain.User{}, ErrInvalidRole
	}
	if actorID == userID {
		return domain.User{}, fmt.Errorf("%w: cannot change your own role", ErrProtectedUser)
	}
	user, err := l.FindUser(ctx, userID)
	if err != nil {
		return domain.User{}, err
	}
	if err := l.db.WithContext(ctx).Model(&user).Update("role", role).Error; err != nil {
		return domain.User{}, err
	}
	user.Role = role
	logrus.WithFields(logrus.Fields{"user_id": userID, "role": role, "actor_id": actorID}).Info("Role changed")
	return user, nil
}

// SetStatus blocks, unblocks or withdraws a user. Admin accounts are protected.
func (l *Ledger) SetStatus(ctx context.Context, userID uint, status domain.Status) (domain.User, error) {
	user, err := l.FindUser(ctx, userID)
	if err != nil {
		return domain.User{}, err
	}
	if user.IsAdmin() && status != domain.StatusActive {
		return domain.User{}, ErrProtectedUser
	}
	if err := l.db.WithContext(ctx).Model(&user).Update("status", status).Error; err != nil {
		return domain.User{}, err
	}
	user.Status = status
	logrus.WithFields(logrus.Fields{"user_id": userID, "status": status}).Info("Status changed")
	return user, nil
}

// Purge removes a user with its transactions, notifications and push
// subscriptions, and unbinds every member that referenced its code.
func (l *Ledger) Purge(ctx context.Context, userID uint) error {
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user domain.User
		if err := tx.First(&user, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return err
		}
		if user.IsAdmin() {
			return ErrProtectedUser
		}
		if err := tx.Model(&domain.User{}).Where("referrer_code = ?", user.ReferralCode).
			Update("referrer_code", nil).Error; err != nil {
			return err
		}
		for _, model := range []any{&domain.Transaction{}, &domain.Notification{}, &domain.PushSubscription{}} {
			if err := tx.Where("user_id = ?", user.ID).Delete(model).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&user).Error
	})
	if err != nil {
		return err
	}
	logrus.WithField("user_id", userID).Warn("User purged")
	return nil
}

// ListUsers returns one page of users, newest first
func (l *Ledger) ListUsers(ctx context.Context, page, pageSize int) ([]domain.User, int64, error) {
	var total int64
	if err := l.db.WithContext(ctx).Model(&domain.User{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var users []domain.User
	err := l.db.WithContext(ctx).Order("created_at desc, id desc").
		Offset((page - 1) * pageSize).Limit(pageSize).Find(&users).Error
	return users, total, err
}
