package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/identity_service/internal/autherr"
	"github.com/Skotchmaster/identity_service/internal/hash"
	"github.com/Skotchmaster/identity_service/internal/models"
	"github.com/Skotchmaster/identity_service/internal/notify"
	"github.com/Skotchmaster/identity_service/internal/repo"
	"github.com/Skotchmaster/identity_service/internal/tokens"
)

type recordingNotifier struct {
	events []notify.Event
}

func (r *recordingNotifier) Notify(_ context.Context, e notify.Event) error {
	r.events = append(r.events, e)
	return nil
}

func (r *recordingNotifier) has(eventType string) bool {
	for _, e := range r.events {
		if e.Type == eventType {
			return true
		}
	}
	return false
}

func newTestAuthService(t *testing.T) (*AuthService, *recordingNotifier, *repo.GormRepo) {
	t.Helper()

	r := &repo.GormRepo{DB: newTestDB(t)}
	cfg := testConfig()
	n := &recordingNotifier{}
	tokenSvc := &TokenService{Repo: r, Secret: cfg.JWTSecret, Cfg: cfg}
	roleSvc := &RoleService{Repo: r}

	return &AuthService{
		Repo:     r,
		Tokens:   tokenSvc,
		Roles:    roleSvc,
		Notifier: n,
		Cfg:      cfg,
	}, n, r
}

func createUser(t *testing.T, r *repo.GormRepo, email, password string, attempts int) *models.User {
	t.Helper()

	pwHash, err := hash.HashPassword(password)
	require.NoError(t, err)

	user := &models.User{
		Email:         email,
		Name:          "test user",
		PasswordHash:  pwHash,
		LoginAttempts: attempts,
	}
	require.NoError(t, r.DB.Create(user).Error)
	return user
}

func TestAuthService_Register(t *testing.T) {
	svc, n, r := newTestAuthService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "u1@example.com", "U One", "password123")
	require.NoError(t, err)
	assert.NotZero(t, user.ID)
	assert.Equal(t, svc.Cfg.MaxLoginAttempts, user.LoginAttempts)
	assert.NotEqual(t, "password123", user.PasswordHash)
	assert.True(t, n.has(notify.EventUserRegistered))

	_, err = svc.Register(ctx, "u1@example.com", "U One Again", "password123")
	require.Error(t, err)
	assert.ErrorIs(t, err, autherr.ErrEmailTaken)

	stored, err := r.UserByEmail(ctx, "u1@example.com")
	require.NoError(t, err)
	assert.Equal(t, "U One", stored.Name)
}

func TestAuthService_Login_Success(t *testing.T) {
	svc, n, r := newTestAuthService(t)
	ctx := context.Background()
	createUser(t, r, "u1@example.com", "password123", 3)

	res, err := svc.Login(ctx, "u1@example.com", "password123")
	require.NoError(t, err)
	require.NotNil(t, res.Pair)
	assert.NotEmpty(t, res.Pair.Access.Token)
	assert.NotEmpty(t, res.Pair.Refresh.Token)
	assert.Equal(t, "u1@example.com", res.User.Email)
	assert.True(t, n.has(notify.EventUserLoggedIn))

	var count int64
	require.NoError(t, r.DB.Model(&models.Token{}).
		Where("type = ?", string(tokens.TypeRefresh)).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestAuthService_Login_UnknownEmail(t *testing.T) {
	svc, _, _ := newTestAuthService(t)

	_, err := svc.Login(context.Background(), "ghost@example.com", "whatever")
	require.Error(t, err)
	// Indistinguishable from a wrong password.
	assert.ErrorIs(t, err, autherr.ErrInvalidCredentials)
}

func TestAuthService_Login_LockoutAfterMaxAttempts(t *testing.T) {
	svc, n, r := newTestAuthService(t)
	ctx := context.Background()
	user := createUser(t, r, "u1@example.com", "password123", 3)

	_, err := svc.Login(ctx, "u1@example.com", "wrong")
	require.Error(t, err)
	assert.ErrorIs(t, err, autherr.ErrInvalidCredentials)
	assert.Contains(t, err.Error(), "2 attempts remaining")

	_, err = svc.Login(ctx, "u1@example.com", "wrong")
	require.Error(t, err)
	assert.ErrorIs(t, err, autherr.ErrInvalidCredentials)
	assert.Contains(t, err.Error(), "1 attempts remaining")

	// The attempt that drives the counter to zero locks the account and
	// reports it in the same response, still as invalid credentials.
	_, err = svc.Login(ctx, "u1@example.com", "wrong")
	require.Error(t, err)
	assert.ErrorIs(t, err, autherr.ErrInvalidCredentials)
	assert.Contains(t, err.Error(), "account locked")
	assert.True(t, n.has(notify.EventAccountLocked))

	locked, err := r.UserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, locked.IsLocked)
	require.NotNil(t, locked.LockDuration)
	assert.True(t, locked.LockDuration.After(time.Now().UTC()))

	// Correct password inside the lock window is still rejected.
	_, err = svc.Login(ctx, "u1@example.com", "password123")
	require.Error(t, err)
	assert.ErrorIs(t, err, autherr.ErrAccountLocked)
}

func TestAuthService_Login_LazyLockExpiry(t *testing.T) {
	svc, _, r := newTestAuthService(t)
	ctx := context.Background()
	user := createUser(t, r, "u1@example.com", "password123", 0)

	past := time.Now().UTC().Add(-time.Minute)
	require.NoError(t, r.DB.Model(&models.User{}).Where("id = ?", user.ID).
		Updates(map[string]any{"is_locked": true, "lock_duration": past}).Error)

	res, err := svc.Login(ctx, "u1@example.com", "password123")
	require.NoError(t, err)
	require.NotNil(t, res.Pair)

	unlocked, err := r.UserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, unlocked.IsLocked)
	assert.Nil(t, unlocked.LockDuration)
	assert.Equal(t, svc.Cfg.MaxLoginAttempts, unlocked.LoginAttempts)
}

func TestAuthService_Login_SessionCap(t *testing.T) {
	svc, n, r := newTestAuthService(t)
	ctx := context.Background()
	createUser(t, r, "u1@example.com", "password123", 3)

	// MaxActiveSessions is 2 in the test config.
	_, err := svc.Login(ctx, "u1@example.com", "password123")
	require.NoError(t, err)
	_, err = svc.Login(ctx, "u1@example.com", "password123")
	require.NoError(t, err)

	_, err = svc.Login(ctx, "u1@example.com", "password123")
	require.Error(t, err)
	assert.ErrorIs(t, err, autherr.ErrTooManySessions)
	assert.True(t, n.has(notify.EventTooManySessions))

	// The rejected login must not have minted a token.
	var count int64
	require.NoError(t, r.DB.Model(&models.Token{}).
		Where("type = ?", string(tokens.TypeRefresh)).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestAuthService_Login_PurgesExpiredSessions(t *testing.T) {
	svc, _, r := newTestAuthService(t)
	ctx := context.Background()
	user := createUser(t, r, "u1@example.com", "password123", 3)

	// Two stale sessions that would otherwise hit the cap.
	past := time.Now().UTC().Add(-time.Hour).Unix()
	require.NoError(t, r.CreateToken(ctx, &models.Token{Token: "stale-1", UserID: user.ID, Type: string(tokens.TypeRefresh), ExpiresAt: past}))
	require.NoError(t, r.CreateToken(ctx, &models.Token{Token: "stale-2", UserID: user.ID, Type: string(tokens.TypeRefresh), ExpiresAt: past}))

	res, err := svc.Login(ctx, "u1@example.com", "password123")
	require.NoError(t, err)
	require.NotNil(t, res.Pair)

	var count int64
	require.NoError(t, r.DB.Model(&models.Token{}).
		Where("user_id = ?", user.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestAuthService_Refresh_SingleUse(t *testing.T) {
	svc, _, r := newTestAuthService(t)
	ctx := context.Background()
	createUser(t, r, "u1@example.com", "password123", 3)

	res, err := svc.Login(ctx, "u1@example.com", "password123")
	require.NoError(t, err)

	pair, err := svc.Refresh(ctx, res.Pair.Refresh.Token)
	require.NoError(t, err)
	assert.NotEqual(t, res.Pair.Refresh.Token, pair.Refresh.Token)

	// Rotation consumed the old token.
	_, err = svc.Refresh(ctx, res.Pair.Refresh.Token)
	require.Error(t, err)
	assert.ErrorIs(t, err, autherr.ErrTokenNotFound)

	// The replacement still works.
	_, err = svc.Refresh(ctx, pair.Refresh.Token)
	require.NoError(t, err)
}

func TestAuthService_Logout(t *testing.T) {
	svc, _, r := newTestAuthService(t)
	ctx := context.Background()
	createUser(t, r, "u1@example.com", "password123", 3)

	res, err := svc.Login(ctx, "u1@example.com", "password123")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, res.Pair.Refresh.Token))

	err = svc.Logout(ctx, res.Pair.Refresh.Token)
	require.Error(t, err)
	assert.ErrorIs(t, err, autherr.ErrTokenNotFound)
}

func TestAuthService_ResetPassword_Flow(t *testing.T) {
	svc, n, r := newTestAuthService(t)
	ctx := context.Background()
	user := createUser(t, r, "u1@example.com", "password123", 3)

	_, err := svc.ForgotPassword(ctx, "ghost@example.com")
	require.Error(t, err)
	assert.ErrorIs(t, err, autherr.ErrUserNotFound)

	token, err := svc.ForgotPassword(ctx, "u1@example.com")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.True(t, n.has(notify.EventPasswordResetRequested))

	require.NoError(t, svc.ResetPassword(ctx, token, "newpassword456"))
	assert.True(t, n.has(notify.EventPasswordReset))

	// All reset tokens for the user are gone; the same token cannot be
	// replayed.
	var count int64
	require.NoError(t, r.DB.Model(&models.Token{}).
		Where("user_id = ? AND type = ?", user.ID, string(tokens.TypeResetPassword)).
		Count(&count).Error)
	assert.Equal(t, int64(0), count)

	err = svc.ResetPassword(ctx, token, "anotherpass789")
	require.Error(t, err)
	assert.ErrorIs(t, err, autherr.ErrTokenNotFound)

	_, err = svc.Login(ctx, "u1@example.com", "newpassword456")
	require.NoError(t, err)
	_, err = svc.Login(ctx, "u1@example.com", "password123")
	require.Error(t, err)
	assert.ErrorIs(t, err, autherr.ErrInvalidCredentials)
}

func TestAuthService_VerifyEmail_Flow(t *testing.T) {
	svc, n, r := newTestAuthService(t)
	ctx := context.Background()
	user := createUser(t, r, "u1@example.com", "password123", 3)
	require.False(t, user.IsEmailVerified)

	token, err := svc.SendVerificationEmail(ctx, user)
	require.NoError(t, err)
	assert.True(t, n.has(notify.EventVerifyEmailRequested))

	require.NoError(t, svc.VerifyEmail(ctx, token))
	assert.True(t, n.has(notify.EventEmailVerified))

	verified, err := r.UserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, verified.IsEmailVerified)

	err = svc.VerifyEmail(ctx, token)
	require.Error(t, err)
	assert.ErrorIs(t, err, autherr.ErrTokenNotFound)
}
