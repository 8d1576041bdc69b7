package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/Skotchmaster/identity_service/internal/autherr"
	"github.com/Skotchmaster/identity_service/internal/models"
)

type rolePermission struct {
	RoleID       uint
	PermissionID uint
}

func (r *GormRepo) RoleByID(ctx context.Context, id uint) (*models.Role, error) {
	var role models.Role
	if err := r.DB.WithContext(ctx).Where("id = ?", id).First(&role).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, autherr.ErrRoleNotFound
		}
		return nil, err
	}
	return &role, nil
}

func (r *GormRepo) RoleByName(ctx context.Context, name string) (*models.Role, error) {
	var role models.Role
	if err := r.DB.WithContext(ctx).Where("name = ?", name).First(&role).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, autherr.ErrRoleNotFound
		}
		return nil, err
	}
	return &role, nil
}

func (r *GormRepo) CreateRole(ctx context.Context, role *models.Role) error {
	return r.DB.WithContext(ctx).Create(role).Error
}

func (r *GormRepo) CreatePermission(ctx context.Context, p *models.Permission) error {
	return r.DB.WithContext(ctx).Create(p).Error
}

// PermissionIDsByRole reads the join table directly; the role -> permission
// materialization itself happens in the service, as a plain in-memory join.
func (r *GormRepo) PermissionIDsByRole(ctx context.Context, roleID uint) ([]uint, error) {
	var rows []rolePermission
	if err := r.DB.WithContext(ctx).Table("role_permissions").
		Where("role_id = ?", roleID).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	ids := make([]uint, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.PermissionID)
	}
	return ids, nil
}

func (r *GormRepo) PermissionsByIDs(ctx context.Context, ids []uint) ([]models.Permission, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var out []models.Permission
	if err := r.DB.WithContext(ctx).Where("id IN ?", ids).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *GormRepo) AttachPermissions(ctx context.Context, roleID uint, permissionIDs []uint) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, pid := range permissionIDs {
			row := rolePermission{RoleID: roleID, PermissionID: pid}
			if err := tx.Table("role_permissions").
				Where("role_id = ? AND permission_id = ?", roleID, pid).
				FirstOrCreate(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
