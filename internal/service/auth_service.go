package service

import (
	"context"
	"time"

	"github.com/Skotchmaster/identity_service/internal/audit"
	"github.com/Skotchmaster/identity_service/internal/autherr"
	"github.com/Skotchmaster/identity_service/internal/config"
	"github.com/Skotchmaster/identity_service/internal/hash"
	"github.com/Skotchmaster/identity_service/internal/logging"
	"github.com/Skotchmaster/identity_service/internal/models"
	"github.com/Skotchmaster/identity_service/internal/notify"
	"github.com/Skotchmaster/identity_service/internal/repo"
	"github.com/Skotchmaster/identity_service/internal/tokens"
)

type AuthService struct {
	Repo     *repo.GormRepo
	Tokens   *TokenService
	Roles    *RoleService
	Notifier notify.Notifier
	Audit    *audit.Recorder
	Cfg      *config.Config
}

type LoginResult struct {
	User *models.User `json:"user"`
	Role *models.Role `json:"role,omitempty"`
	Pair *TokenPair   `json:"token"`
}

func (s *AuthService) Register(ctx context.Context, email, name, password string) (*models.User, error) {
	l := logging.FromContext(ctx).With("svc", "auth.register")

	pwHash, err := hash.HashPassword(password)
	if err != nil {
		l.Error("register_failed", "status", 500, "reason", "cannot hash the password", "error", err)
		return nil, err
	}

	user := &models.User{
		Email:         email,
		Name:          name,
		PasswordHash:  pwHash,
		LoginAttempts: s.Cfg.MaxLoginAttempts,
	}
	if role, err := s.Repo.RoleByName(ctx, repo.DefaultRoleName); err == nil {
		user.RoleID = &role.ID
	}

	if err := s.Repo.CreateUser(ctx, user); err != nil {
		l.Warn("register_failed", "status", 409, "error", err)
		return nil, err
	}

	s.notify(ctx, notify.Event{Type: notify.EventUserRegistered, UserID: user.ID, Email: user.Email})
	l.Info("register_success", "user_id", user.ID)
	return user, nil
}

// Login runs the credential check and lockout state machine:
//
//	look up -> lock check -> password check -> counter/lock side effects
//	-> session cap -> token pair
//
// A wrong password decrements the attempt counter before the lock decision,
// so the request that drives it to zero is the one that locks the account
// and reports it.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	l := logging.FromContext(ctx).With("svc", "auth.login")

	user, err := s.Repo.UserByEmail(ctx, email)
	if err != nil {
		// Same answer as a wrong password, to avoid user enumeration.
		l.Warn("login_failed", "status", 401, "reason", "unknown_email")
		s.record(ctx, audit.Entry{Event: "login_failed", Email: email, Reason: "unknown_email"})
		return nil, autherr.ErrInvalidCredentials
	}

	if err := s.ensureNotLocked(ctx, user); err != nil {
		l.Warn("login_failed", "status", 423, "reason", "account_locked", "user_id", user.ID)
		return nil, err
	}

	if !hash.CheckPassword(user.PasswordHash, password) {
		return nil, s.recordFailedAttempt(ctx, user)
	}

	if err := s.Repo.ResetLoginAttempts(ctx, user.ID, s.Cfg.MaxLoginAttempts); err != nil {
		return nil, err
	}
	user.LoginAttempts = s.Cfg.MaxLoginAttempts
	user.IsLocked = false
	user.LockDuration = nil

	active, _, err := s.Tokens.PurgeExpired(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if len(active) >= s.Cfg.MaxActiveSessions {
		l.Warn("login_failed", "status", 403, "reason", "too_many_sessions", "user_id", user.ID, "active", len(active))
		s.notify(ctx, notify.Event{Type: notify.EventTooManySessions, UserID: user.ID, Email: user.Email})
		s.record(ctx, audit.Entry{Event: "login_failed", UserID: user.ID, Email: user.Email, Reason: "too_many_sessions"})
		return nil, autherr.WithMessage(autherr.ErrTooManySessions,
			"maximum number of active sessions (%d) reached", s.Cfg.MaxActiveSessions)
	}

	pair, err := s.Tokens.IssuePair(ctx, user.ID)
	if err != nil {
		l.Error("login_failed", "status", 500, "reason", "cannot issue tokens", "error", err)
		return nil, err
	}

	var role *models.Role
	if user.RoleID != nil {
		if role, err = s.Roles.Resolve(ctx, *user.RoleID); err != nil {
			l.Warn("login_role_resolve_failed", "user_id", user.ID, "error", err)
			role = nil
		}
	}

	s.notify(ctx, notify.Event{Type: notify.EventUserLoggedIn, UserID: user.ID, Email: user.Email})
	s.record(ctx, audit.Entry{Event: "login_success", UserID: user.ID, Email: user.Email})
	l.Info("login_success", "user_id", user.ID)

	return &LoginResult{User: user, Role: role, Pair: pair}, nil
}

// ensureNotLocked rejects while an unexpired lock is in place. An expired
// lock is treated as lifted even though the flag is only cleared on the next
// successful login.
func (s *AuthService) ensureNotLocked(ctx context.Context, user *models.User) error {
	now := time.Now().UTC()
	if user.IsLocked && !user.LockExpired(now) {
		remaining := user.LockDuration.Sub(now).Round(time.Second)
		return autherr.WithMessage(autherr.ErrAccountLocked,
			"account is locked, try again in %s", remaining)
	}
	return nil
}

func (s *AuthService) recordFailedAttempt(ctx context.Context, user *models.User) error {
	l := logging.FromContext(ctx).With("svc", "auth.login")

	remaining, err := s.Repo.DecrementLoginAttempts(ctx, user.ID)
	if err != nil {
		return err
	}

	if remaining > 0 {
		l.Warn("login_failed", "status", 401, "reason", "wrong_password", "user_id", user.ID, "attempts_left", remaining)
		s.record(ctx, audit.Entry{Event: "login_failed", UserID: user.ID, Email: user.Email, Reason: "wrong_password"})
		return autherr.WithMessage(autherr.ErrInvalidCredentials,
			"invalid email or password, %d attempts remaining", remaining)
	}

	until := time.Now().UTC().Add(s.Cfg.LockDuration())
	if err := s.Repo.LockUser(ctx, user.ID, until); err != nil {
		return err
	}

	l.Warn("account_locked", "status", 401, "user_id", user.ID, "until", until)
	s.notify(ctx, notify.Event{Type: notify.EventAccountLocked, UserID: user.ID, Email: user.Email,
		Data: map[string]any{"until": until}})
	s.record(ctx, audit.Entry{Event: "account_locked", UserID: user.ID, Email: user.Email})

	// Still classified as invalid credentials; only the message carries the
	// lock notice.
	return autherr.WithMessage(autherr.ErrInvalidCredentials,
		"invalid email or password, account locked for %s", s.Cfg.LockDuration())
}

// Logout consumes one refresh token. A missing or already-consumed token is
// reported rather than silently accepted.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	l := logging.FromContext(ctx).With("svc", "auth.logout")

	stored, err := s.Repo.TokenByDigest(ctx, tokens.Sha256Hex(refreshToken), string(tokens.TypeRefresh))
	if err != nil {
		l.Warn("logout_failed", "status", 404, "reason", "token_not_found")
		return err
	}
	if err := s.Repo.DeleteTokenByID(ctx, stored.ID); err != nil {
		return err
	}
	l.Info("logout_success", "user_id", stored.UserID)
	return nil
}

// Refresh rotates a refresh token: the presented token is verified, consumed
// in the same transaction that stores its replacement, and a fresh pair is
// returned. Each refresh token is single-use.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	l := logging.FromContext(ctx).With("svc", "auth.refresh")

	stored, err := s.Tokens.Verify(ctx, refreshToken, tokens.TypeRefresh)
	if err != nil {
		l.Warn("refresh_failed", "status", 401, "error", err)
		return nil, err
	}

	user, err := s.Repo.UserByID(ctx, stored.UserID)
	if err != nil {
		return nil, err
	}
	if err := s.ensureNotLocked(ctx, user); err != nil {
		l.Warn("refresh_failed", "status", 423, "reason", "account_locked", "user_id", user.ID)
		return nil, err
	}

	now := time.Now().UTC()
	accessExp := now.Add(s.Cfg.AccessTTL())
	refreshExp := now.Add(s.Cfg.RefreshTTL())

	access, err := s.Tokens.Issue(user.ID, tokens.TypeAccess, accessExp)
	if err != nil {
		return nil, err
	}
	refresh, err := s.Tokens.Issue(user.ID, tokens.TypeRefresh, refreshExp)
	if err != nil {
		return nil, err
	}

	claims, err := tokens.Parse(refresh, s.Tokens.Secret)
	if err != nil {
		return nil, autherr.ErrTokenInvalid
	}
	replacement := &models.Token{
		Token:     tokens.Sha256Hex(refresh),
		UserID:    user.ID,
		Type:      string(tokens.TypeRefresh),
		JTI:       claims.ID,
		ExpiresAt: refreshExp.Unix(),
	}
	if err := s.Repo.RotateToken(ctx, stored.ID, replacement); err != nil {
		l.Warn("refresh_failed", "status", 404, "reason", "token_already_consumed")
		return nil, err
	}

	l.Info("refresh_success", "user_id", user.ID)
	return &TokenPair{
		Access:  TokenDetail{Token: access, Expires: accessExp},
		Refresh: TokenDetail{Token: refresh, Expires: refreshExp},
	}, nil
}

// ForgotPassword issues a reset token and hands it to the notification sink.
// The token is also returned so the handler can embed it in a link.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) (string, error) {
	l := logging.FromContext(ctx).With("svc", "auth.forgot_password")

	user, err := s.Repo.UserByEmail(ctx, email)
	if err != nil {
		l.Warn("forgot_password_failed", "status", 404, "reason", "unknown_email")
		return "", err
	}

	expires := time.Now().UTC().Add(s.Cfg.ResetTTL())
	token, err := s.Tokens.Issue(user.ID, tokens.TypeResetPassword, expires)
	if err != nil {
		return "", err
	}
	if _, err := s.Tokens.Persist(ctx, token, user.ID, tokens.TypeResetPassword, expires); err != nil {
		return "", err
	}

	s.notify(ctx, notify.Event{Type: notify.EventPasswordResetRequested, UserID: user.ID, Email: user.Email,
		Data: map[string]any{"token": token}})
	l.Info("forgot_password_success", "user_id", user.ID)
	return token, nil
}

func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	l := logging.FromContext(ctx).With("svc", "auth.reset_password")

	stored, err := s.Tokens.Verify(ctx, token, tokens.TypeResetPassword)
	if err != nil {
		l.Warn("reset_password_failed", "status", 401, "error", err)
		return err
	}

	user, err := s.Repo.UserByID(ctx, stored.UserID)
	if err != nil {
		l.Warn("reset_password_failed", "status", 404, "reason", "user_not_found")
		return err
	}
	if err := s.ensureNotLocked(ctx, user); err != nil {
		return err
	}

	pwHash, err := hash.HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.Repo.UpdatePassword(ctx, user.ID, pwHash); err != nil {
		return err
	}
	if err := s.Repo.DeleteTokensByType(ctx, user.ID, string(tokens.TypeResetPassword)); err != nil {
		return err
	}

	s.notify(ctx, notify.Event{Type: notify.EventPasswordReset, UserID: user.ID, Email: user.Email})
	s.record(ctx, audit.Entry{Event: "password_reset", UserID: user.ID, Email: user.Email})
	l.Info("reset_password_success", "user_id", user.ID)
	return nil
}

func (s *AuthService) SendVerificationEmail(ctx context.Context, user *models.User) (string, error) {
	l := logging.FromContext(ctx).With("svc", "auth.send_verification_email")

	expires := time.Now().UTC().Add(s.Cfg.VerifyTTL())
	token, err := s.Tokens.Issue(user.ID, tokens.TypeVerifyEmail, expires)
	if err != nil {
		return "", err
	}
	if _, err := s.Tokens.Persist(ctx, token, user.ID, tokens.TypeVerifyEmail, expires); err != nil {
		return "", err
	}

	s.notify(ctx, notify.Event{Type: notify.EventVerifyEmailRequested, UserID: user.ID, Email: user.Email,
		Data: map[string]any{"token": token}})
	l.Info("verification_email_sent", "user_id", user.ID)
	return token, nil
}

func (s *AuthService) VerifyEmail(ctx context.Context, token string) error {
	l := logging.FromContext(ctx).With("svc", "auth.verify_email")

	stored, err := s.Tokens.Verify(ctx, token, tokens.TypeVerifyEmail)
	if err != nil {
		l.Warn("verify_email_failed", "status", 401, "error", err)
		return err
	}

	user, err := s.Repo.UserByID(ctx, stored.UserID)
	if err != nil {
		return err
	}
	if err := s.Repo.DeleteTokensByType(ctx, user.ID, string(tokens.TypeVerifyEmail)); err != nil {
		return err
	}
	if err := s.Repo.MarkEmailVerified(ctx, user.ID); err != nil {
		return err
	}

	s.notify(ctx, notify.Event{Type: notify.EventEmailVerified, UserID: user.ID, Email: user.Email})
	l.Info("verify_email_success", "user_id", user.ID)
	return nil
}

// notify publishes best-effort: failures are logged and swallowed so the
// primary operation never fails on a notification error.
func (s *AuthService) notify(ctx context.Context, event notify.Event) {
	if s.Notifier == nil {
		return
	}
	nctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.Notifier.Notify(nctx, event); err != nil {
		logging.FromContext(ctx).Error("notify_failed", "event", event.Type, "error", err)
	}
}

// record indexes an audit entry, also best-effort.
func (s *AuthService) record(ctx context.Context, entry audit.Entry) {
	if err := s.Audit.Record(ctx, entry); err != nil {
		logging.FromContext(ctx).Error("audit_failed", "event", entry.Event, "error", err)
	}
}
