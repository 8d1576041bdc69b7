package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/Skotchmaster/identity_service/internal/autherr"
	"github.com/Skotchmaster/identity_service/internal/models"
)

func (r *GormRepo) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.DB.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, autherr.ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *GormRepo) UserByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.DB.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, autherr.ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *GormRepo) CreateUser(ctx context.Context, u *models.User) error {
	var existing models.User
	err := r.DB.WithContext(ctx).Where("email = ?", u.Email).First(&existing).Error
	if err == nil {
		return autherr.ErrEmailTaken
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return r.DB.WithContext(ctx).Create(u).Error
}

// DecrementLoginAttempts performs a conditional decrement at the storage
// layer (floored at zero) instead of read-then-write, so two concurrent
// failed logins cannot both observe the same counter value. Returns the
// remaining attempts after the decrement.
func (r *GormRepo) DecrementLoginAttempts(ctx context.Context, userID uint) (int, error) {
	err := r.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND login_attempts > 0", userID).
		UpdateColumn("login_attempts", gorm.Expr("login_attempts - 1")).Error
	if err != nil {
		return 0, err
	}

	var user models.User
	if err := r.DB.WithContext(ctx).Select("login_attempts").Where("id = ?", userID).First(&user).Error; err != nil {
		return 0, err
	}
	return user.LoginAttempts, nil
}

// LockUser sets the lock flag and its expiry. The counter guard keeps a
// racing successful login (which resets the counter) from being locked out.
func (r *GormRepo) LockUser(ctx context.Context, userID uint, until time.Time) error {
	return r.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND login_attempts <= 0", userID).
		Updates(map[string]any{
			"is_locked":     true,
			"lock_duration": until,
		}).Error
}

// ResetLoginAttempts restores the configured maximum and clears any lock.
func (r *GormRepo) ResetLoginAttempts(ctx context.Context, userID uint, attempts int) error {
	return r.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]any{
			"login_attempts": attempts,
			"is_locked":      false,
			"lock_duration":  nil,
		}).Error
}

func (r *GormRepo) UpdatePassword(ctx context.Context, userID uint, passwordHash string) error {
	return r.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("password_hash", passwordHash).Error
}

func (r *GormRepo) MarkEmailVerified(ctx context.Context, userID uint) error {
	return r.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("is_email_verified", true).Error
}

func (r *GormRepo) UpdateUser(ctx context.Context, userID uint, fields map[string]any) (*models.User, error) {
	res := r.DB.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Updates(fields)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, autherr.ErrUserNotFound
	}
	return r.UserByID(ctx, userID)
}

func (r *GormRepo) DeleteUser(ctx context.Context, userID uint) error {
	res := r.DB.WithContext(ctx).Where("id = ?", userID).Delete(&models.User{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return autherr.ErrUserNotFound
	}
	return r.DB.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.Token{}).Error
}
