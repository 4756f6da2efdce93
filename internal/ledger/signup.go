package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"vcoin/internal/domain"
	"vcoin/internal/metrics"
	"vcoin/internal/utils"
)

// referralCodeAttempts bounds regeneration on referral code collisions
const referralCodeAttempts = 10

// SignupRequest carries the fields of a new member
type SignupRequest struct {
	Name         string
	Phone        string
	Email        string
	IDNumber     string
	Password     string
	ReferralCode string
}

// SignupResult is the created user with its bonus entries
type SignupResult struct {
	User        domain.User         `json:"user"`
	Transaction domain.Transaction  `json:"transaction"`
	Bonus       *domain.Transaction `json:"bonus,omitempty"`
}

// Signup creates a member, credits the tier's signup bonus and pays the
// referrer's bonus when a referral code was given.
func (l *Ledger) Signup(ctx context.Context, req SignupRequest) (SignupResult, error) {
	cfg, err := l.configs.Get(ctx)
	if err != nil {
		return SignupResult{}, err
	}
	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		return SignupResult{}, fmt.Errorf("hash password: %w", err)
	}
	refCode := strings.ToUpper(strings.TrimSpace(req.ReferralCode))
	if refCode != "" && !utils.IsReferralCode(refCode) {
		return SignupResult{}, ErrInvalidReferralCode
	}

	opID := uuid.NewString()
	var res SignupResult
	err = l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var taken int64
		if err := tx.Model(&domain.User{}).Where("phone = ?", req.Phone).Count(&taken).Error; err != nil {
			return err
		}
		if taken > 0 {
			return ErrPhoneTaken
		}

		var referrer *domain.User
		if refCode != "" {
			r, ok := findReferrer(tx, refCode)
			if !ok {
				return ErrInvalidReferralCode
			}
			referrer = &r
		}

		number, err := l.seq.Next(ctx, tx)
		if err != nil {
			return fmt.Errorf("member number: %w", err)
		}
		code, err := uniqueReferralCode(tx)
		if err != nil {
			return err
		}

		user := domain.User{
			Name:         req.Name,
			Phone:        req.Phone,
			Email:        req.Email,
			IDNumber:     req.IDNumber,
			Password:     hash,
			ReferralCode: code,
			MemberNumber: number,
			Role:         domain.RoleUser,
			Status:       domain.StatusActive,
		}
		if referrer != nil {
			user.ReferrerCode = &referrer.ReferralCode
		}
		if err := tx.Create(&user).Error; err != nil {
			return duplicatePhone(err)
		}

		tier := cfg.TierFor(number)
		credited, tr, err := applyEntry(tx, entry{
			userID:      user.ID,
			coin:        domain.CoinSecurity,
			next:        add(tier.NewUser),
			txType:      domain.TxSignupBonus,
			description: fmt.Sprintf("Signup bonus (member #%d)", number),
			operationID: opID,
		})
		if err != nil {
			return err
		}
		res.User, res.Transaction = credited, tr

		if referrer != nil {
			res.Bonus = signupReferralBonus(tx, *referrer, credited, tier.Referral, opID)
		}
		return nil
	})
	if err != nil {
		return SignupResult{}, err
	}

	metrics.Signups.Inc()
	metrics.LedgerOperations.WithLabelValues("signup", string(domain.CoinSecurity)).Inc()
	logrus.WithFields(logrus.Fields{
		"user_id":       res.User.ID,
		"member_number": res.User.MemberNumber,
		"referrer_code": res.User.Referrer(),
		"operation_id":  opID,
	}).Info("Member signed up")
	return res, nil
}

// signupReferralBonus credits the referrer's security coins and notifies them, inside a savepoint
func signupReferralBonus(tx *gorm.DB, referrer, newUser domain.User, amount int64, opID string) *domain.Transaction {
	var credited *domain.Transaction
	err := tx.Transaction(func(sp *gorm.DB) error {
		_, tr, err := applyEntry(sp, entry{
			userID:      referrer.ID,
			coin:        domain.CoinSecurity,
			next:        add(amount),
			txType:      domain.TxReferralBonus,
			description: fmt.Sprintf("Referral bonus - %s joined", newUser.Name),
			operationID: opID,
			related:     &newUser.ID,
		})
		if err != nil {
			return err
		}
		credited = &tr
		return nil
	})
	if err != nil {
		metrics.BonusFailures.Inc()
		logrus.WithFields(logrus.Fields{
			"user_id":      newUser.ID,
			"referrer_id":  referrer.ID,
			"operation_id": opID,
			"error":        err.Error(),
		}).Error("Signup referral bonus skipped")
		return nil
	}

	notify(tx, domain.Notification{
		UserID:        referrer.ID,
		Type:          domain.NotifyReferralSignup,
		Title:         "A new member joined with your code",
		Message:       fmt.Sprintf("%s (member #%d) signed up with your referral code.", newUser.Name, newUser.MemberNumber),
		RelatedUserID: &newUser.ID,
	})
	metrics.ReferralBonuses.WithLabelValues(string(domain.CoinSecurity)).Inc()
	logEntry(*credited).Info("Referral bonus credited")
	return credited
}

// uniqueReferralCode generates codes until one is unused
func uniqueReferralCode(tx *gorm.DB) (string, error) {
	for i := 0; i < referralCodeAttempts; i++ {
		code, err := utils.GenerateReferralCode()
		if err != nil {
			return "", err
		}
		var n int64
		if err := tx.Model(&domain.User{}).Where("referral_code = ?", code).Count(&n).Error; err != nil {
			return "", err
		}
		if n == 0 {
			return code, nil
		}
	}
	return "", errors.New("could not allocate a unique referral code")
}
