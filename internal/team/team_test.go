package team

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"vcoin/internal/domain"
)

var base = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func member(id uint, code, referrer string, role domain.Role, dividend int64) domain.User {
	u := domain.User{
		ID:            id,
		ReferralCode:  code,
		Role:          role,
		SecurityCoins: 10,
		DividendCoins: dividend,
		CreatedAt:     base.Add(time.Duration(id) * time.Minute),
	}
	if referrer != "" {
		u.ReferrerCode = &referrer
	}
	return u
}

// L1 leads A and B; A refers C; B is a nested leader who refers D; D refers E
func fixture() []domain.User {
	return []domain.User{
		member(1, "L1", "", domain.RoleTeamLeader, 0),
		member(2, "A", "L1", domain.RoleUser, 100),
		member(3, "B", "L1", domain.RoleTeamLeader, 200),
		member(4, "C", "A", domain.RoleUser, 300),
		member(5, "D", "B", domain.RoleUser, 400),
		member(6, "E", "D", domain.RoleUser, 500),
		member(7, "X", "", domain.RoleUser, 900),
	}
}

func codes(users []domain.User) []string {
	out := make([]string, 0, len(users))
	for _, u := range users {
		out = append(out, u.ReferralCode)
	}
	return out
}

func TestDownlinePolicies(t *testing.T) {
	users := fixture()
	assert.Equal(t, []string{"A", "B", "C"}, codes(Downline("L1", users, ExcludeNestedLeaders)))
	assert.Equal(t, []string{"A", "B", "C", "D", "E"}, codes(Downline("L1", users, IncludeNestedLeaders)))
	assert.Empty(t, Downline("X", users, IncludeNestedLeaders))
}

func TestDownlineCycle(t *testing.T) {
	users := []domain.User{
		member(1, "P", "Q", domain.RoleUser, 0),
		member(2, "Q", "P", domain.RoleUser, 0),
		member(3, "R", "R", domain.RoleUser, 0),
	}
	assert.Equal(t, []string{"Q"}, codes(Downline("P", users, IncludeNestedLeaders)))
	assert.Empty(t, Downline("R", users, IncludeNestedLeaders))
}

func TestCompute(t *testing.T) {
	users := fixture()

	s := Compute("L1", users, ExcludeNestedLeaders, 100)
	assert.Equal(t, Stats{
		TotalMembers:       3,
		DirectMembers:      2,
		IndirectMembers:    1,
		TotalSecurityCoins: 30,
		TotalDividendCoins: 600,
		TotalSales:         60000,
	}, s)

	s = Compute("L1", users, IncludeNestedLeaders, 100)
	assert.Equal(t, 5, s.TotalMembers)
	assert.Equal(t, s.DirectMembers+s.IndirectMembers, s.TotalMembers)
	assert.Equal(t, int64(1500), s.TotalDividendCoins)
	assert.Equal(t, int64(150000), s.TotalSales)

	assert.Equal(t, Stats{}, Compute("X", users, IncludeNestedLeaders, 100))
}

func TestReferrals(t *testing.T) {
	users := fixture()
	users = append(users, member(8, "F", "L1", domain.RoleUser, 0))

	got := Referrals("L1", users)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"F", "B", "A"}, []string{got[0].ReferralCode, got[1].ReferralCode, got[2].ReferralCode})
	assert.Empty(t, got[0].Referrals)
	assert.Equal(t, []string{"D"}, codes(got[1].Referrals))
	assert.Equal(t, []string{"C"}, codes(got[2].Referrals))
	assert.Empty(t, Referrals("E", users))
}

func TestParsePolicy(t *testing.T) {
	assert.Equal(t, IncludeNestedLeaders, ParsePolicy("include"))
	assert.Equal(t, ExcludeNestedLeaders, ParsePolicy("exclude"))
	assert.Equal(t, ExcludeNestedLeaders, ParsePolicy(""))
}

func TestServiceLoadsFromDB(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&domain.User{}))

	for i, u := range fixture() {
		u.Name = u.ReferralCode
		u.Phone = "0100000000" + string(rune('0'+i))
		u.Password = "x"
		u.MemberNumber = int64(u.ID)
		u.Status = domain.StatusActive
		require.NoError(t, db.Create(&u).Error)
	}

	svc := NewService(db, IncludeNestedLeaders, 100)
	stats, err := svc.Stats(context.Background(), "L1")
	require.NoError(t, err)
	assert.Equal(t, 5, stats.TotalMembers)

	refs, err := svc.Referrals(context.Background(), "L1")
	require.NoError(t, err)
	assert.Len(t, refs, 2)
}
