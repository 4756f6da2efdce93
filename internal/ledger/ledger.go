package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"vcoin/internal/domain"
	"vcoin/internal/metrics"
)

// maxCASAttempts bounds the compare-and-set loop of a single balance update
const maxCASAttempts = 5

// Ledger applies balance changes together with their transaction log entries,
// referral bonuses and notifications.
type Ledger struct {
	db      *gorm.DB
	seq     Sequencer
	configs *ConfigStore
}

// New creates a ledger. A nil sequencer falls back to the metadata counter.
func New(db *gorm.DB, seq Sequencer, configs *ConfigStore) *Ledger {
	if seq == nil {
		seq = MetadataSequencer{}
	}
	if configs == nil {
		configs = NewConfigStore(db, nil)
	}
	return &Ledger{db: db, seq: seq, configs: configs}
}

// Configs exposes the system config store
func (l *Ledger) Configs() *ConfigStore {
	return l.configs
}

// GrantRequest adds Amount to a balance
type GrantRequest struct {
	UserID      uint
	CoinType    domain.CoinType
	Amount      int64
	Description string
	Type        domain.TransactionType // ADMIN_GRANT when empty
}

// SetRequest overwrites a balance with Amount
type SetRequest struct {
	UserID      uint
	CoinType    domain.CoinType
	Amount      int64
	Description string
}

// Result of a grant or set. Bonus is the referrer's entry, when one was credited.
type Result struct {
	User        domain.User         `json:"user"`
	Transaction domain.Transaction  `json:"transaction"`
	Bonus       *domain.Transaction `json:"bonus,omitempty"`
}

// entry describes one balance movement inside a transaction
type entry struct {
	userID      uint
	coin        domain.CoinType
	next        func(old int64) (int64, error)
	txType      domain.TransactionType
	description string
	operationID string
	related     *uint
}

// Grant adds req.Amount to the user's balance. A dividend grant credits the
// direct referrer with the configured percentage.
func (l *Ledger) Grant(ctx context.Context, req GrantRequest) (Result, error) {
	if !req.CoinType.Valid() {
		return Result{}, ErrInvalidCoinType
	}
	if req.Type == "" {
		req.Type = domain.TxAdminGrant
	}
	if req.Description == "" {
		req.Description = "Admin grant"
	}
	cfg, err := l.configs.Get(ctx)
	if err != nil {
		return Result{}, err
	}

	opID := uuid.NewString()
	var res Result
	err = l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, tr, err := applyEntry(tx, entry{
			userID:      req.UserID,
			coin:        req.CoinType,
			next:        add(req.Amount),
			txType:      req.Type,
			description: req.Description,
			operationID: opID,
		})
		if err != nil {
			return err
		}
		res.User, res.Transaction = user, tr

		notify(tx, domain.Notification{
			UserID:  user.ID,
			Type:    domain.NotifyCoinGranted,
			Title:   fmt.Sprintf("%d %s granted", req.Amount, req.CoinType.Label()),
			Message: fmt.Sprintf("%d %s were credited to your account (%s).", req.Amount, req.CoinType.Label(), req.Description),
		})

		if req.CoinType == domain.CoinDividend {
			res.Bonus = dividendBonus(tx, user, req.Amount, cfg, opID)
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	metrics.LedgerOperations.WithLabelValues("grant", string(req.CoinType)).Inc()
	logEntry(res.Transaction).Info("Coins granted")
	return res, nil
}

// Set overwrites the user's balance. The log records amount - previous
// balance, and no referral bonus is paid for corrections.
func (l *Ledger) Set(ctx context.Context, req SetRequest) (Result, error) {
	if !req.CoinType.Valid() {
		return Result{}, ErrInvalidCoinType
	}
	if req.Amount < 0 {
		return Result{}, ErrNegativeBalance
	}
	if req.Description == "" {
		req.Description = fmt.Sprintf("Balance set to %d", req.Amount)
	}

	var res Result
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, tr, err := applyEntry(tx, entry{
			userID:      req.UserID,
			coin:        req.CoinType,
			next:        func(int64) (int64, error) { return req.Amount, nil },
			txType:      domain.TxAdminGrant,
			description: req.Description,
			operationID: uuid.NewString(),
		})
		if err != nil {
			return err
		}
		res.User, res.Transaction = user, tr
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	metrics.LedgerOperations.WithLabelValues("set", string(req.CoinType)).Inc()
	logEntry(res.Transaction).Info("Balance set")
	return res, nil
}

// applyEntry updates one balance with compare-and-set and appends the matching log row
func applyEntry(tx *gorm.DB, e entry) (domain.User, domain.Transaction, error) {
	col := e.coin.Column()
	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		var user domain.User
		if err := lockUser(tx, e.userID, &user).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.User{}, domain.Transaction{}, ErrUserNotFound
			}
			return domain.User{}, domain.Transaction{}, err
		}

		old := user.Balance(e.coin)
		next, err := e.next(old)
		if err != nil {
			return domain.User{}, domain.Transaction{}, err
		}
		if next < 0 {
			return domain.User{}, domain.Transaction{}, ErrNegativeBalance
		}
		if next != old {
			upd := tx.Model(&domain.User{}).
				Where("id = ? AND "+col+" = ?", user.ID, old).
				Update(col, next)
			if upd.Error != nil {
				return domain.User{}, domain.Transaction{}, upd.Error
			}
			if upd.RowsAffected == 0 {
				continue // Lost the race, re-read
			}
		}
		user.SetBalance(e.coin, next)

		tr := domain.Transaction{
			UserID:        user.ID,
			OperationID:   e.operationID,
			Type:          e.txType,
			CoinType:      e.coin,
			Amount:        next - old,
			Balance:       next,
			Description:   e.description,
			RelatedUserID: e.related,
		}
		if err := tx.Create(&tr).Error; err != nil {
			return domain.User{}, domain.Transaction{}, err
		}
		return user, tr, nil
	}
	return domain.User{}, domain.Transaction{}, ErrConflict
}

// lockUser reads the user row with FOR UPDATE. The read is current even under
// REPEATABLE READ, and concurrent writers to the same row queue behind the lock.
func lockUser(tx *gorm.DB, id uint, user *domain.User) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(user, id)
}

// add returns a balance step adding delta, failing instead of wrapping past MaxInt64
func add(delta int64) func(int64) (int64, error) {
	return func(old int64) (int64, error) {
		if delta > 0 && old > math.MaxInt64-delta {
			return 0, ErrAmountTooLarge
		}
		return old + delta, nil
	}
}

// dividendBonus credits the direct referrer inside a savepoint. Any failure
// rolls back only the bonus and is logged.
func dividendBonus(tx *gorm.DB, user domain.User, amount int64, cfg SystemConfig, opID string) *domain.Transaction {
	code := user.Referrer()
	if code == "" {
		return nil
	}
	bonus := cfg.ReferralBonus(amount)
	if bonus == 0 {
		return nil
	}
	referrer, ok := findReferrer(tx, code)
	if !ok {
		return nil
	}

	var credited *domain.Transaction
	err := tx.Transaction(func(sp *gorm.DB) error {
		_, tr, err := applyEntry(sp, entry{
			userID:      referrer.ID,
			coin:        domain.CoinDividend,
			next:        add(bonus),
			txType:      domain.TxReferralBonus,
			description: fmt.Sprintf("Referral bonus - %s received dividend coins (%d%%)", user.Name, cfg.DividendReferralPercentage),
			operationID: opID,
			related:     &user.ID,
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
			"user_id":      user.ID,
			"referrer_id":  referrer.ID,
			"operation_id": opID,
			"error":        err.Error(),
		}).Error("Referral bonus skipped")
		return nil
	}

	notify(tx, domain.Notification{
		UserID:        referrer.ID,
		Type:          domain.NotifyCoinGranted,
		Title:         "Referral bonus received",
		Message:       fmt.Sprintf("%d dividend coins credited because %s received dividend coins.", bonus, user.Name),
		RelatedUserID: &user.ID,
	})
	metrics.ReferralBonuses.WithLabelValues(string(domain.CoinDividend)).Inc()
	logEntry(*credited).Info("Referral bonus credited")
	return credited
}

// findReferrer resolves a referrer code; purged or withdrawn referrers are skipped
func findReferrer(tx *gorm.DB, code string) (domain.User, bool) {
	var referrer domain.User
	err := tx.Where("referral_code = ?", code).First(&referrer).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			logrus.WithFields(logrus.Fields{"referral_code": code, "error": err.Error()}).Error("Referrer lookup failed")
		}
		return domain.User{}, false
	}
	if referrer.Status == domain.StatusDeleted {
		return domain.User{}, false
	}
	return referrer, true
}

// notify inserts a notification inside a savepoint; failures are logged only
func notify(tx *gorm.DB, n domain.Notification) {
	err := tx.Transaction(func(sp *gorm.DB) error {
		return sp.Create(&n).Error
	})
	if err != nil {
		metrics.BonusFailures.Inc()
		logrus.WithFields(logrus.Fields{
			"user_id": n.UserID,
			"type":    n.Type,
			"error":   err.Error(),
		}).Warn("Notification insert failed")
	}
}

func logEntry(tr domain.Transaction) *logrus.Entry {
	return logrus.WithFields(logrus.Fields{
		"user_id":      tr.UserID,
		"coin_type":    tr.CoinType,
		"amount":       tr.Amount,
		"balance":      tr.Balance,
		"type":         tr.Type,
		"operation_id": tr.OperationID,
	})
}

// GrantDeposit converts deposited units into dividend coins at the configured
// rate. It is a dividend grant, so the referrer bonus applies.
func (l *Ledger) GrantDeposit(ctx context.Context, userID uint, units int64) (Result, error) {
	if units <= 0 {
		return Result{}, fmt.Errorf("%w: deposit units must be positive", ErrNegativeBalance)
	}
	cfg, err := l.configs.Get(ctx)
	if err != nil {
		return Result{}, err
	}
	if units > math.MaxInt64/cfg.DividendCoinsPerUnit {
		return Result{}, ErrAmountTooLarge
	}
	return l.Grant(ctx, GrantRequest{
		UserID:      userID,
		CoinType:    domain.CoinDividend,
		Amount:      units * cfg.DividendCoinsPerUnit,
		Description: fmt.Sprintf("Deposit of %d units", units),
		Type:        domain.TxConversion,
	})
}
