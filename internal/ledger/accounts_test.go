package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vcoin/internal/domain"
	"vcoin/internal/utils"
)

func TestAuthenticate(t *testing.T) {
	l, db := newTestLedger(t)
	u := seedUser(t, db, "AUTH01", "", domain.RoleUser)
	ctx := context.Background()

	got, err := l.Authenticate(ctx, u.Phone, "secret12")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = l.Authenticate(ctx, u.Phone, "wrong")
	assert.ErrorIs(t, err, ErrBadCredentials)
	_, err = l.Authenticate(ctx, "000", "secret12")
	assert.ErrorIs(t, err, ErrBadCredentials)

	_, err = l.SetStatus(ctx, u.ID, domain.StatusBlocked)
	require.NoError(t, err)
	_, err = l.Authenticate(ctx, u.Phone, "secret12")
	assert.ErrorIs(t, err, ErrAccountBlocked)

	_, err = l.SetStatus(ctx, u.ID, domain.StatusDeleted)
	require.NoError(t, err)
	_, err = l.Authenticate(ctx, u.Phone, "secret12")
	assert.ErrorIs(t, err, ErrAccountDeleted)
}

func TestSetRole(t *testing.T) {
	l, db := newTestLedger(t)
	admin := seedUser(t, db, "ROLE01", "", domain.RoleAdmin)
	u := seedUser(t, db, "ROLE02", "", domain.RoleUser)
	ctx := context.Background()

	got, err := l.SetRole(ctx, admin.ID, u.ID, domain.RoleTeamLeader)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleTeamLeader, got.Role)
	assert.Equal(t, domain.RoleTeamLeader, reload(t, db, u.ID).Role)

	_, err = l.SetRole(ctx, admin.ID, u.ID, "OWNER")
	assert.ErrorIs(t, err, ErrInvalidRole)

	_, err = l.SetRole(ctx, admin.ID, admin.ID, domain.RoleUser)
	assert.ErrorIs(t, err, ErrProtectedUser)

	_, err = l.SetRole(ctx, admin.ID, 999, domain.RoleUser)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestAdminsAreProtected(t *testing.T) {
	l, db := newTestLedger(t)
	admin := seedUser(t, db, "PROT01", "", domain.RoleAdmin)
	ctx := context.Background()

	_, err := l.SetStatus(ctx, admin.ID, domain.StatusBlocked)
	assert.ErrorIs(t, err, ErrProtectedUser)
	_, err = l.SetStatus(ctx, admin.ID, domain.StatusDeleted)
	assert.ErrorIs(t, err, ErrProtectedUser)
	assert.ErrorIs(t, l.Purge(ctx, admin.ID), ErrProtectedUser)
	assert.Equal(t, domain.StatusActive, reload(t, db, admin.ID).Status)
}

func TestPurge(t *testing.T) {
	l, db := newTestLedger(t)
	victim := seedUser(t, db, "PURG01", "", domain.RoleUser)
	child := seedUser(t, db, "PURG02", "PURG01", domain.RoleUser)
	ctx := context.Background()

	_, err := l.Grant(ctx, GrantRequest{UserID: victim.ID, CoinType: domain.CoinSecurity, Amount: 5})
	require.NoError(t, err)
	require.NoError(t, db.Create(&domain.PushSubscription{ID: "sub-1", UserID: victim.ID, Endpoint: "https://push/1", P256dh: "k", Auth: "a"}).Error)

	require.NoError(t, l.Purge(ctx, victim.ID))

	_, err = l.FindUser(ctx, victim.ID)
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.Equal(t, int64(0), txCount(t, db, victim.ID))
	var n int64
	db.Model(&domain.Notification{}).Where("user_id = ?", victim.ID).Count(&n)
	assert.Equal(t, int64(0), n)
	db.Model(&domain.PushSubscription{}).Where("user_id = ?", victim.ID).Count(&n)
	assert.Equal(t, int64(0), n)
	assert.Nil(t, reload(t, db, child.ID).ReferrerCode)

	assert.ErrorIs(t, l.Purge(ctx, victim.ID), ErrUserNotFound)
}

func TestUpdateProfile(t *testing.T) {
	l, db := newTestLedger(t)
	u := seedUser(t, db, "PROF01", "", domain.RoleUser)
	other := seedUser(t, db, "PROF02", "", domain.RoleUser)
	ctx := context.Background()

	got, err := l.UpdateProfile(ctx, u.ID, ProfileUpdate{Name: "Renamed", Email: "r@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
	assert.Equal(t, "r@example.com", got.Email)

	_, err = l.UpdateProfile(ctx, u.ID, ProfileUpdate{Phone: other.Phone})
	assert.ErrorIs(t, err, ErrPhoneTaken)

	_, err = l.UpdateProfile(ctx, u.ID, ProfileUpdate{CurrentPassword: "nope", NewPassword: "newpass1"})
	assert.ErrorIs(t, err, ErrWrongPassword)

	_, err = l.UpdateProfile(ctx, u.ID, ProfileUpdate{CurrentPassword: "secret12", NewPassword: "newpass1"})
	require.NoError(t, err)
	assert.True(t, utils.CheckPassword("newpass1", reload(t, db, u.ID).Password))
}

func TestAdminUpdate(t *testing.T) {
	l, db := newTestLedger(t)
	u := seedUser(t, db, "ADMU01", "", domain.RoleUser)
	other := seedUser(t, db, "ADMU02", "", domain.RoleUser)
	ctx := context.Background()

	got, err := l.AdminUpdate(ctx, u.ID, "01055554444", "900101-1")
	require.NoError(t, err)
	assert.Equal(t, "01055554444", got.Phone)
	assert.Equal(t, "900101-1", got.IDNumber)

	_, err = l.AdminUpdate(ctx, u.ID, other.Phone, "")
	assert.ErrorIs(t, err, ErrPhoneTaken)
}

func TestListUsers(t *testing.T) {
	l, db := newTestLedger(t)
	for _, code := range []string{"LIST01", "LIST02", "LIST03"} {
		seedUser(t, db, code, "", domain.RoleUser)
	}
	users, total, err := l.ListUsers(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, users, 2)
}

func TestRepairReferrals(t *testing.T) {
	l, db := newTestLedger(t)
	ref := seedUser(t, db, "FIX001", "", domain.RoleUser)
	byID := seedUser(t, db, "FIX002", "", domain.RoleUser)
	require.NoError(t, db.Model(&byID).Update("referrer_code", itoa(ref.ID)).Error)
	seedUser(t, db, "FIX003", "FIX001", domain.RoleUser) // already a code
	orphan := seedUser(t, db, "FIX004", "99999", domain.RoleUser)
	self := seedUser(t, db, "FIX005", "", domain.RoleUser)
	require.NoError(t, db.Model(&self).Update("referrer_code", itoa(self.ID)).Error)
	seedUser(t, db, "FIX006", "n/a", domain.RoleUser) // neither a code nor an id

	report, err := l.RepairReferrals(context.Background())
	require.NoError(t, err)
	assert.Equal(t, RepairReport{Updated: 2, Skipped: 2, Failed: 1}, report)

	assert.Equal(t, "FIX001", reload(t, db, byID.ID).Referrer())
	assert.Nil(t, reload(t, db, orphan.ID).ReferrerCode)
	assert.Equal(t, itoa(self.ID), reload(t, db, self.ID).Referrer())
}

func TestBroadcast(t *testing.T) {
	l, db := newTestLedger(t)
	seedUser(t, db, "BRD001", "", domain.RoleAdmin)
	u1 := seedUser(t, db, "BRD002", "", domain.RoleUser)
	seedUser(t, db, "BRD003", "", domain.RoleTeamLeader)

	long := make([]rune, 150)
	for i := range long {
		long[i] = '가'
	}
	n, err := l.Broadcast(context.Background(), "New notice", string(long))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	var note domain.Notification
	require.NoError(t, db.Where("user_id = ?", u1.ID).First(&note).Error)
	assert.Equal(t, domain.NotifySystem, note.Type)
	assert.Equal(t, string(long[:100])+"...", note.Message)
	assert.Equal(t, "short", Preview("short"))
}
