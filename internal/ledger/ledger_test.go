package ledger

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"vcoin/internal/domain"
	"vcoin/internal/utils"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent), TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1) // One connection keeps the in-memory database alive and shared
	require.NoError(t, db.AutoMigrate(domain.Models()...))
	return db
}

func newTestLedger(t *testing.T) (*Ledger, *gorm.DB) {
	db := setupTestDB(t)
	return New(db, nil, nil), db
}

var seedCounter int64

// seedUser inserts a member directly, bypassing signup bonuses
func seedUser(t *testing.T, db *gorm.DB, code string, referrer string, role domain.Role) domain.User {
	t.Helper()
	seedCounter++
	hash, err := utils.HashPassword("secret12")
	require.NoError(t, err)
	u := domain.User{
		Name:         "member " + code,
		Phone:        fmt.Sprintf("010%08d", seedCounter),
		Password:     hash,
		ReferralCode: code,
		MemberNumber: 1000 + seedCounter,
		Role:         role,
		Status:       domain.StatusActive,
	}
	if referrer != "" {
		u.ReferrerCode = &referrer
	}
	require.NoError(t, db.Create(&u).Error)
	return u
}

func txCount(t *testing.T, db *gorm.DB, userID uint) int64 {
	var n int64
	require.NoError(t, db.Model(&domain.Transaction{}).Where("user_id = ?", userID).Count(&n).Error)
	return n
}

func reload(t *testing.T, db *gorm.DB, id uint) domain.User {
	var u domain.User
	require.NoError(t, db.First(&u, id).Error)
	return u
}

func TestGrantAppendsOneEntry(t *testing.T) {
	l, db := newTestLedger(t)
	u := seedUser(t, db, "AAAAAA", "", domain.RoleUser)
	ctx := context.Background()

	res, err := l.Grant(ctx, GrantRequest{UserID: u.ID, CoinType: domain.CoinSecurity, Amount: 700})
	require.NoError(t, err)
	assert.Equal(t, int64(700), res.User.SecurityCoins)
	assert.Equal(t, int64(700), res.Transaction.Amount)
	assert.Equal(t, int64(700), res.Transaction.Balance)
	assert.Equal(t, domain.TxAdminGrant, res.Transaction.Type)
	assert.Nil(t, res.Bonus)

	res, err = l.Grant(ctx, GrantRequest{UserID: u.ID, CoinType: domain.CoinSecurity, Amount: -200, Description: "correction"})
	require.NoError(t, err)
	assert.Equal(t, int64(500), res.Transaction.Balance)
	assert.Equal(t, int64(-200), res.Transaction.Amount)
	assert.Equal(t, int64(2), txCount(t, db, u.ID))

	var notes int64
	db.Model(&domain.Notification{}).Where("user_id = ? AND type = ?", u.ID, domain.NotifyCoinGranted).Count(&notes)
	assert.Equal(t, int64(2), notes)
}

func TestGrantRejectsNegativeResult(t *testing.T) {
	l, db := newTestLedger(t)
	u := seedUser(t, db, "AAAAAB", "", domain.RoleUser)

	_, err := l.Grant(context.Background(), GrantRequest{UserID: u.ID, CoinType: domain.CoinDividend, Amount: -1})
	assert.ErrorIs(t, err, ErrNegativeBalance)
	assert.Equal(t, int64(0), txCount(t, db, u.ID))
}

func TestGrantValidation(t *testing.T) {
	l, _ := newTestLedger(t)
	_, err := l.Grant(context.Background(), GrantRequest{UserID: 1, CoinType: "GOLD", Amount: 1})
	assert.ErrorIs(t, err, ErrInvalidCoinType)

	_, err = l.Grant(context.Background(), GrantRequest{UserID: 999, CoinType: domain.CoinSecurity, Amount: 1})
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestDividendGrantPaysReferrer(t *testing.T) {
	l, db := newTestLedger(t)
	ref := seedUser(t, db, "REF001", "", domain.RoleUser)
	u := seedUser(t, db, "USR001", "REF001", domain.RoleUser)

	res, err := l.Grant(context.Background(), GrantRequest{UserID: u.ID, CoinType: domain.CoinDividend, Amount: 1000})
	require.NoError(t, err)
	require.NotNil(t, res.Bonus)
	assert.Equal(t, int64(100), res.Bonus.Amount)
	assert.Equal(t, domain.TxReferralBonus, res.Bonus.Type)
	assert.Equal(t, res.Transaction.OperationID, res.Bonus.OperationID)
	require.NotNil(t, res.Bonus.RelatedUserID)
	assert.Equal(t, u.ID, *res.Bonus.RelatedUserID)

	assert.Equal(t, int64(100), reload(t, db, ref.ID).DividendCoins)
	assert.Equal(t, int64(1000), reload(t, db, u.ID).DividendCoins)
}

func TestDividendBonusFloors(t *testing.T) {
	l, db := newTestLedger(t)
	ref := seedUser(t, db, "REF002", "", domain.RoleUser)
	u := seedUser(t, db, "USR002", "REF002", domain.RoleUser)

	res, err := l.Grant(context.Background(), GrantRequest{UserID: u.ID, CoinType: domain.CoinDividend, Amount: 9})
	require.NoError(t, err)
	assert.Nil(t, res.Bonus) // floor(9 * 10 / 100) == 0
	assert.Equal(t, int64(0), reload(t, db, ref.ID).DividendCoins)

	res, err = l.Grant(context.Background(), GrantRequest{UserID: u.ID, CoinType: domain.CoinDividend, Amount: 155})
	require.NoError(t, err)
	require.NotNil(t, res.Bonus)
	assert.Equal(t, int64(15), res.Bonus.Amount)
}

func TestDividendGrantMissingReferrer(t *testing.T) {
	l, db := newTestLedger(t)
	u := seedUser(t, db, "USR003", "GONE01", domain.RoleUser)

	res, err := l.Grant(context.Background(), GrantRequest{UserID: u.ID, CoinType: domain.CoinDividend, Amount: 1000})
	require.NoError(t, err)
	assert.Nil(t, res.Bonus)
	assert.Equal(t, int64(1000), res.User.DividendCoins)
}

func TestDividendGrantDeletedReferrer(t *testing.T) {
	l, db := newTestLedger(t)
	ref := seedUser(t, db, "REF004", "", domain.RoleUser)
	u := seedUser(t, db, "USR004", "REF004", domain.RoleUser)
	require.NoError(t, db.Model(&ref).Update("status", domain.StatusDeleted).Error)

	res, err := l.Grant(context.Background(), GrantRequest{UserID: u.ID, CoinType: domain.CoinDividend, Amount: 1000})
	require.NoError(t, err)
	assert.Nil(t, res.Bonus)
	assert.Equal(t, int64(0), reload(t, db, ref.ID).DividendCoins)
}

func TestSecurityGrantHasNoBonus(t *testing.T) {
	l, db := newTestLedger(t)
	ref := seedUser(t, db, "REF005", "", domain.RoleUser)
	u := seedUser(t, db, "USR005", "REF005", domain.RoleUser)

	res, err := l.Grant(context.Background(), GrantRequest{UserID: u.ID, CoinType: domain.CoinSecurity, Amount: 1000})
	require.NoError(t, err)
	assert.Nil(t, res.Bonus)
	assert.Equal(t, int64(0), txCount(t, db, ref.ID))
}

func TestSetRecordsDelta(t *testing.T) {
	l, db := newTestLedger(t)
	ref := seedUser(t, db, "REF006", "", domain.RoleUser)
	u := seedUser(t, db, "USR006", "REF006", domain.RoleUser)
	require.NoError(t, db.Model(&u).Update("dividend_coins", 2000).Error)

	res, err := l.Set(context.Background(), SetRequest{UserID: u.ID, CoinType: domain.CoinDividend, Amount: 5000})
	require.NoError(t, err)
	assert.Equal(t, int64(3000), res.Transaction.Amount)
	assert.Equal(t, int64(5000), res.Transaction.Balance)
	assert.Nil(t, res.Bonus)
	assert.Equal(t, int64(0), reload(t, db, ref.ID).DividendCoins)

	res, err = l.Set(context.Background(), SetRequest{UserID: u.ID, CoinType: domain.CoinDividend, Amount: 5000})
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.Transaction.Amount)

	_, err = l.Set(context.Background(), SetRequest{UserID: u.ID, CoinType: domain.CoinDividend, Amount: -5})
	assert.ErrorIs(t, err, ErrNegativeBalance)
}

func TestLogReplaysToBalance(t *testing.T) {
	l, db := newTestLedger(t)
	ref := seedUser(t, db, "REF007", "", domain.RoleUser)
	u := seedUser(t, db, "USR007", "REF007", domain.RoleUser)
	ctx := context.Background()

	ops := []func() error{
		func() error {
			_, err := l.Grant(ctx, GrantRequest{UserID: u.ID, CoinType: domain.CoinDividend, Amount: 1234})
			return err
		},
		func() error {
			_, err := l.Set(ctx, SetRequest{UserID: u.ID, CoinType: domain.CoinDividend, Amount: 50})
			return err
		},
		func() error {
			_, err := l.Grant(ctx, GrantRequest{UserID: u.ID, CoinType: domain.CoinDividend, Amount: 777})
			return err
		},
		func() error {
			_, err := l.GrantDeposit(ctx, u.ID, 2)
			return err
		},
	}
	for _, op := range ops {
		require.NoError(t, op())
	}

	for _, id := range []uint{u.ID, ref.ID} {
		var sum int64
		db.Model(&domain.Transaction{}).Where("user_id = ? AND coin_type = ?", id, domain.CoinDividend).
			Select("COALESCE(SUM(amount), 0)").Scan(&sum)
		assert.Equal(t, reload(t, db, id).DividendCoins, sum)
	}
}

func TestGrantDeposit(t *testing.T) {
	l, db := newTestLedger(t)
	u := seedUser(t, db, "USR008", "", domain.RoleUser)

	res, err := l.GrantDeposit(context.Background(), u.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, domain.TxConversion, res.Transaction.Type)
	assert.Equal(t, int64(30000), res.Transaction.Amount)

	_, err = l.GrantDeposit(context.Background(), u.ID, 0)
	assert.Error(t, err)
}

func TestSignupFifthMember(t *testing.T) {
	l, db := newTestLedger(t)
	ref := seedUser(t, db, "DZ6H6S", "", domain.RoleUser)
	require.NoError(t, db.Create(&domain.Metadata{Key: domain.MetaNextMemberNumber, Counter: 5, UpdatedAt: time.Now()}).Error)

	res, err := l.Signup(context.Background(), SignupRequest{
		Name:         "Kim",
		Phone:        "01099998888",
		Password:     "secret12",
		ReferralCode: "dz6h6s",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(5), res.User.MemberNumber)
	assert.Equal(t, int64(500), res.User.SecurityCoins)
	assert.Equal(t, "DZ6H6S", res.User.Referrer())
	assert.True(t, utils.IsReferralCode(res.User.ReferralCode))
	assert.NotEqual(t, "secret12", reload(t, db, res.User.ID).Password)
	assert.Equal(t, domain.TxSignupBonus, res.Transaction.Type)

	require.NotNil(t, res.Bonus)
	assert.Equal(t, int64(1000), res.Bonus.Amount)
	assert.Equal(t, int64(1000), reload(t, db, ref.ID).SecurityCoins)

	var n domain.Notification
	require.NoError(t, db.Where("user_id = ?", ref.ID).First(&n).Error)
	assert.Equal(t, domain.NotifyReferralSignup, n.Type)
}

func TestSignupTiers(t *testing.T) {
	l, db := newTestLedger(t)
	ref := seedUser(t, db, "TIER01", "", domain.RoleUser)
	require.NoError(t, db.Create(&domain.Metadata{Key: domain.MetaNextMemberNumber, Counter: 10001, UpdatedAt: time.Now()}).Error)

	res, err := l.Signup(context.Background(), SignupRequest{Name: "Lee", Phone: "01077776666", Password: "pw123456", ReferralCode: "TIER01"})
	require.NoError(t, err)
	assert.Equal(t, int64(10001), res.User.MemberNumber)
	assert.Equal(t, int64(300), res.User.SecurityCoins)
	assert.Equal(t, int64(600), reload(t, db, ref.ID).SecurityCoins)
}

func TestSignupErrors(t *testing.T) {
	l, db := newTestLedger(t)
	existing := seedUser(t, db, "ERR001", "", domain.RoleUser)
	ctx := context.Background()

	_, err := l.Signup(ctx, SignupRequest{Name: "a", Phone: existing.Phone, Password: "pw123456"})
	assert.ErrorIs(t, err, ErrPhoneTaken)

	_, err = l.Signup(ctx, SignupRequest{Name: "a", Phone: "01000000001", Password: "pw123456", ReferralCode: "NOPE00"})
	assert.ErrorIs(t, err, ErrInvalidReferralCode)

	_, err = l.Signup(ctx, SignupRequest{Name: "a", Phone: "01000000001", Password: "pw123456", ReferralCode: "ERR-01"})
	assert.ErrorIs(t, err, ErrInvalidReferralCode)

	var users int64
	db.Model(&domain.User{}).Count(&users)
	assert.Equal(t, int64(1), users)
}

func TestSignupWithoutReferrer(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	first, err := l.Signup(ctx, SignupRequest{Name: "a", Phone: "01000000011", Password: "pw123456"})
	require.NoError(t, err)
	second, err := l.Signup(ctx, SignupRequest{Name: "b", Phone: "01000000012", Password: "pw123456"})
	require.NoError(t, err)

	assert.Nil(t, first.Bonus)
	assert.Equal(t, int64(1), first.User.MemberNumber)
	assert.Equal(t, int64(2), second.User.MemberNumber)
	assert.NotEqual(t, first.User.ReferralCode, second.User.ReferralCode)
}

func TestConfigStore(t *testing.T) {
	db := setupTestDB(t)
	store := NewConfigStore(db, nil)
	ctx := context.Background()

	cfg, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, DefaultSystemConfig(), cfg)

	cfg.DividendReferralPercentage = 25
	require.NoError(t, store.Put(ctx, cfg))
	cfg.DividendReferralPercentage = 30
	require.NoError(t, store.Put(ctx, cfg))
	got, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(30), got.DividendReferralPercentage)

	bad := DefaultSystemConfig()
	bad.DividendReferralPercentage = 101
	assert.ErrorIs(t, store.Put(ctx, bad), ErrInvalidConfig)

	bad = DefaultSystemConfig()
	bad.SignupTiers = []Tier{{MaxMember: 0, NewUser: 1}, {MaxMember: 10, NewUser: 1}}
	assert.ErrorIs(t, store.Validate(bad), ErrInvalidConfig)

	bad = DefaultSystemConfig()
	bad.SignupTiers = []Tier{{MaxMember: 10}, {MaxMember: 10}}
	assert.ErrorIs(t, store.Validate(bad), ErrInvalidConfig)
}

func TestTierFor(t *testing.T) {
	cfg := DefaultSystemConfig()
	cases := []struct {
		number            int64
		newUser, referral int64
	}{
		{1, 500, 1000},
		{10000, 500, 1000},
		{10001, 300, 600},
		{20000, 300, 600},
		{20001, 200, 400},
		{100000, 200, 400},
		{100001, 100, 200},
	}
	for _, tc := range cases {
		tier := cfg.TierFor(tc.number)
		assert.Equal(t, tc.newUser, tier.NewUser, "member %d", tc.number)
		assert.Equal(t, tc.referral, tier.Referral, "member %d", tc.number)
	}

	cfg.SignupTiers = nil
	assert.Equal(t, Tier{NewUser: 500, Referral: 1000}, cfg.TierFor(42))
}

func TestMetadataSequencer(t *testing.T) {
	db := setupTestDB(t)
	seedUser(t, db, "SEQ001", "", domain.RoleUser) // member number 1000+n
	var maxNumber int64
	db.Model(&domain.User{}).Select("MAX(member_number)").Scan(&maxNumber)

	seq := MetadataSequencer{}
	var got []int64
	for i := 0; i < 3; i++ {
		err := db.Transaction(func(tx *gorm.DB) error {
			n, err := seq.Next(context.Background(), tx)
			got = append(got, n)
			return err
		})
		require.NoError(t, err)
	}
	assert.Equal(t, []int64{maxNumber + 1, maxNumber + 2, maxNumber + 3}, got)
}

func TestTransactionsFilter(t *testing.T) {
	l, db := newTestLedger(t)
	a := seedUser(t, db, "TXF001", "", domain.RoleUser)
	b := seedUser(t, db, "TXF002", "", domain.RoleUser)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := l.Grant(ctx, GrantRequest{UserID: a.ID, CoinType: domain.CoinSecurity, Amount: 10})
		require.NoError(t, err)
	}
	_, err := l.Grant(ctx, GrantRequest{UserID: a.ID, CoinType: domain.CoinDividend, Amount: 10})
	require.NoError(t, err)
	_, err = l.Grant(ctx, GrantRequest{UserID: b.ID, CoinType: domain.CoinSecurity, Amount: 10})
	require.NoError(t, err)

	page, err := l.Transactions(ctx, TransactionFilter{UserID: a.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(4), page.Total)
	assert.Equal(t, DefaultPageSize, page.PageSize)

	page, err = l.Transactions(ctx, TransactionFilter{UserID: a.ID, CoinType: domain.CoinSecurity, PageSize: 2, Page: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	assert.Len(t, page.Transactions, 1)

	_, err = l.Transactions(ctx, TransactionFilter{From: time.Now(), To: time.Now().Add(-time.Hour)})
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func itoa(id uint) string {
	return fmt.Sprintf("%d", id)
}
