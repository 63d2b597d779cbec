package service_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"easyrent/internal/core/auth"
	"easyrent/internal/core/database"
	"easyrent/internal/domain"
	"easyrent/internal/repo"
	"easyrent/internal/service"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type sentReset struct {
	email string
	url   string
}

type recordingMailer struct {
	mu       sync.Mutex
	welcomed []string
	resets   []sentReset
	fail     error
}

func (m *recordingMailer) Welcome(u *domain.User) {
	m.mu.Lock()
	m.welcomed = append(m.welcomed, u.Email)
	m.mu.Unlock()
}

func (m *recordingMailer) PasswordReset(_ context.Context, u *domain.User, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.resets = append(m.resets, sentReset{email: u.Email, url: url})
	return nil
}

var errSMTPDown = errors.New("smtp down")

type env struct {
	db       *gorm.DB
	clock    *clock
	mailer   *recordingMailer
	jwt      *auth.JWTer
	users    *service.UserService
	guard    *service.Guard
	listings *service.ListingService
}

func newEnv(t *testing.T, lopts service.ListingOptions) *env {
	t.Helper()
	db, err := database.NewGorm(database.Opts{
		Driver:   "sqlite",
		DSN:      filepath.Join(t.TempDir(), "svc.db"),
		LogLevel: "silent",
	})
	require.NoError(t, err)
	require.NoError(t, repo.AutoMigrate(db))

	c := &clock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	jw := &auth.JWTer{Secret: []byte("test-secret"), Issuer: "easyrent", TTL: time.Hour, Now: c.Now}
	m := &recordingMailer{}
	ur := repo.NewUserRepo(db)
	lr := repo.NewListingRepo(db)

	lopts.Now = c.Now
	return &env{
		db:       db,
		clock:    c,
		mailer:   m,
		jwt:      jw,
		users:    service.NewUserService(ur, jw, m, service.UserOptions{ResetTTL: 10 * time.Minute, Now: c.Now}),
		guard:    service.NewGuard(ur, jw),
		listings: service.NewListingService(lr, ur, nil, lopts),
	}
}

func (e *env) signup(t *testing.T, name, email string) *service.AuthResult {
	t.Helper()
	res, err := e.users.Signup(context.Background(), service.SignupInput{
		Name: name, Email: email, Password: "pass1234", ConfirmPassword: "pass1234",
	})
	require.NoError(t, err)
	return res
}

// promote 直接改库，模拟管理员账号
func (e *env) promote(t *testing.T, id string, role domain.Role) *domain.User {
	t.Helper()
	require.NoError(t, e.db.Model(&domain.User{}).Where("id = ?", id).Update("role", role).Error)
	var u domain.User
	require.NoError(t, e.db.First(&u, "id = ?", id).Error)
	return &u
}
