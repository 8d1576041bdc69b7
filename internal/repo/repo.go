// Package repo is the gorm-backed store for users, tokens, roles and
// permissions. All multi-row invariants (attempt counting, locking, refresh
// rotation) live here as conditional updates or transactions so concurrent
// requests against the same account cannot interleave a read-then-write.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/Skotchmaster/identity_service/internal/models"
)

// DefaultRoleName is assigned to users on registration.
const DefaultRoleName = "user"

type GormRepo struct {
	DB *gorm.DB
}

// EnsureDefaultRole seeds the registration role if it is missing.
func (r *GormRepo) EnsureDefaultRole(ctx context.Context) (*models.Role, error) {
	role := models.Role{Name: DefaultRoleName, IsActive: true}
	if err := r.DB.WithContext(ctx).Where("name = ?", DefaultRoleName).FirstOrCreate(&role).Error; err != nil {
		return nil, err
	}
	return &role, nil
}
