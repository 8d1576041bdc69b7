package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/Skotchmaster/identity_service/internal/autherr"
	"github.com/Skotchmaster/identity_service/internal/models"
)

func (r *GormRepo) CreateToken(ctx context.Context, t *models.Token) error {
	return r.DB.WithContext(ctx).Create(t).Error
}

// TokenByDigest looks up a persisted token of the given type by its sha256
// digest. Blacklisted rows are treated as absent.
func (r *GormRepo) TokenByDigest(ctx context.Context, digest, typ string) (*models.Token, error) {
	var token models.Token
	err := r.DB.WithContext(ctx).
		Where("token = ? AND type = ? AND blacklisted = ?", digest, typ, false).
		First(&token).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, autherr.ErrTokenNotFound
		}
		return nil, err
	}
	return &token, nil
}

func (r *GormRepo) DeleteTokenByID(ctx context.Context, id uint) error {
	return r.DB.WithContext(ctx).Where("id = ?", id).Delete(&models.Token{}).Error
}

func (r *GormRepo) DeleteTokensByIDs(ctx context.Context, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	return r.DB.WithContext(ctx).Where("id IN ?", ids).Delete(&models.Token{}).Error
}

// DeleteTokensByType removes every token of one type for a user, e.g. all
// reset-password tokens after a successful reset.
func (r *GormRepo) DeleteTokensByType(ctx context.Context, userID uint, typ string) error {
	return r.DB.WithContext(ctx).
		Where("user_id = ? AND type = ?", userID, typ).
		Delete(&models.Token{}).Error
}

func (r *GormRepo) TokensByUserAndType(ctx context.Context, userID uint, typ string) ([]models.Token, error) {
	var out []models.Token
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND type = ? AND blacklisted = ?", userID, typ, false).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RotateToken atomically consumes one refresh token and stores its
// replacement. The consumed row must still exist: rotation of an
// already-rotated token fails, which makes refresh tokens single-use.
func (r *GormRepo) RotateToken(ctx context.Context, consumedID uint, replacement *models.Token) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ?", consumedID).Delete(&models.Token{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return autherr.ErrTokenNotFound
		}
		return tx.Create(replacement).Error
	})
}
