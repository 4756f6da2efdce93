package ledger

import (
	"context"
	"errors"
	"strconv"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"vcoin/internal/domain"
	"vcoin/internal/utils"
)

// RepairReport counts the outcome of a referral repair run
type RepairReport struct {
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// RepairReferrals rewrites legacy referrer values holding a user id into that
// user's referral code. Values that already name a code are left alone,
// ids of unknown users are cleared, and self references are counted as failed.
func (l *Ledger) RepairReferrals(ctx context.Context) (RepairReport, error) {
	var report RepairReport
	var users []domain.User
	if err := l.db.WithContext(ctx).Where("referrer_code IS NOT NULL AND referrer_code <> ''").Find(&users).Error; err != nil {
		return report, err
	}

	for _, u := range users {
		value := u.Referrer()
		log := logrus.WithFields(logrus.Fields{"user_id": u.ID, "referrer_code": value})
		if value == u.ReferralCode {
			log.WithField("error", ErrSelfReferral.Error()).Warn("Referral repair failed")
			report.Failed++
			continue
		}

		if utils.IsReferralCode(value) {
			var n int64
			if err := l.db.WithContext(ctx).Model(&domain.User{}).Where("referral_code = ?", value).Count(&n).Error; err != nil {
				log.WithField("error", err.Error()).Error("Referral repair lookup failed")
				report.Failed++
				continue
			}
			if n > 0 {
				report.Skipped++
				continue
			}
		}

		id, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			report.Skipped++ // Neither a code nor an id
			continue
		}
		if uint(id) == u.ID {
			log.WithField("error", ErrSelfReferral.Error()).Warn("Referral repair failed")
			report.Failed++
			continue
		}

		var target domain.User
		var next any
		err = l.db.WithContext(ctx).First(&target, id).Error
		switch {
		case err == nil:
			next = target.ReferralCode
		case errors.Is(err, gorm.ErrRecordNotFound):
			next = nil
		default:
			log.WithField("error", err.Error()).Error("Referral repair lookup failed")
			report.Failed++
			continue
		}

		if err := l.db.WithContext(ctx).Model(&domain.User{}).Where("id = ?", u.ID).
			Update("referrer_code", next).Error; err != nil {
			log.WithField("error", err.Error()).Error("Referral repair update failed")
			report.Failed++
			continue
		}
		log.WithField("new_referrer_code", next).Info("Referral repaired")
		report.Updated++
	}
	return report, nil
}
