package repo

import (
	"context"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"easyrent/internal/core/database"
	"easyrent/internal/domain"
	"easyrent/internal/query"
	"easyrent/pkg/apperrors"
	"easyrent/pkg/utils"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.NewGorm(database.Opts{
		Driver:   "sqlite",
		DSN:      filepath.Join(t.TempDir(), "test.db"),
		LogLevel: "silent",
	})
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(db))
	return db
}

func newUser(email string) *domain.User {
	return &domain.User{
		ID:           utils.NewID(),
		Name:         "Ada",
		Email:        email,
		PasswordHash: "hash",
		Role:         domain.RoleUser,
		IsActiveUser: true,
	}
}

func TestUserRepo_CreateDuplicateEmail(t *testing.T) {
	r := NewUserRepo(newTestDB(t))
	ctx := context.Background()

	require.NoError(t, r.Create(ctx, newUser("ada@example.com")))
	err := r.Create(ctx, newUser("ada@example.com"))
	assert.ErrorIs(t, err, apperrors.ErrEmailTaken)
	assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))
}

func TestUserRepo_FindMissingIsNil(t *testing.T) {
	r := NewUserRepo(newTestDB(t))
	u, err := r.FindByID(context.Background(), utils.NewID())
	require.NoError(t, err)
	assert.Nil(t, u)

	u, err = r.FindByResetToken(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, u)
}

func TestUserRepo_ResetTokenRedeemedOnce(t *testing.T) {
	r := NewUserRepo(newTestDB(t))
	ctx := context.Background()
	u := newUser("bob@example.com")
	require.NoError(t, r.Create(ctx, u))

	exp := time.Now().Add(10 * time.Minute)
	require.NoError(t, r.SetResetToken(ctx, u.ID, "digest", &exp))

	found, err := r.FindByResetToken(ctx, "digest")
	require.NoError(t, err)
	require.NotNil(t, found)
	require.NotNil(t, found.PasswordResetExpires)
	assert.WithinDuration(t, exp, *found.PasswordResetExpires, time.Second)

	changed := time.Now().Add(-time.Second)
	ok, err := r.RedeemResetToken(ctx, u.ID, "digest", "new-hash", changed)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.RedeemResetToken(ctx, u.ID, "digest", "other-hash", changed)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := r.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "new-hash", got.PasswordHash)
	assert.Empty(t, got.PasswordResetToken)
	assert.Nil(t, got.PasswordResetExpires)
	require.NotNil(t, got.PasswordChangedAt)
}

func TestUserRepo_ClearResetToken(t *testing.T) {
	r := NewUserRepo(newTestDB(t))
	ctx := context.Background()
	u := newUser("c@example.com")
	require.NoError(t, r.Create(ctx, u))

	exp := time.Now().Add(time.Minute)
	require.NoError(t, r.SetResetToken(ctx, u.ID, "digest", &exp))
	require.NoError(t, r.SetResetToken(ctx, u.ID, "", nil))

	found, err := r.FindByResetToken(ctx, "digest")
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestListingRepo_ListWithQuery(t *testing.T) {
	db := newTestDB(t)
	users := NewUserRepo(db)
	r := NewListingRepo(db)
	ctx := context.Background()

	owner := newUser("owner@example.com")
	require.NoError(t, users.Create(ctx, owner))

	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, price := range []float64{80, 100, 150, 200, 300} {
		require.NoError(t, r.Create(ctx, &domain.Listing{
			ID:           utils.NewID(),
			HouseName:    "House",
			State:        "Lagos",
			LGA:          "Ikeja",
			Price:        price,
			Images:       []string{"a.jpg"},
			UserID:       owner.ID,
			DateUploaded: base.Add(time.Duration(i) * time.Hour),
		}))
	}

	v, _ := url.ParseQuery("price[gt]=90&sort=price&pageSize=2")
	q, err := query.Parse(v, domain.ListingSchema)
	require.NoError(t, err)
	q.Require("isDeleted", false)

	items, total, err := r.List(ctx, q)
	require.NoError(t, err)
	assert.EqualValues(t, 4, total)
	require.Len(t, items, 2)
	assert.Equal(t, 100.0, items[0].Price)
	assert.Equal(t, 150.0, items[1].Price)
	assert.Equal(t, []string{"a.jpg"}, []string(items[0].Images))

	l := items[0]
	l.IsDeleted = true
	require.NoError(t, r.Update(ctx, &l))
	_, total, err = r.List(ctx, q)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
}
