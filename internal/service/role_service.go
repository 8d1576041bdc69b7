package service

import (
	"context"
	"net/http"
	"regexp"

	"github.com/Skotchmaster/identity_service/internal/autherr"
	"github.com/Skotchmaster/identity_service/internal/models"
	"github.com/Skotchmaster/identity_service/internal/repo"
)

// Permission names follow <resource>-<action>, e.g. "user-get".
var permissionNameRE = regexp.MustCompile(`^[a-z][a-z0-9_]*-(create|modify|get|update|delete)$`)

type RoleService struct {
	Repo *repo.GormRepo
}

// Resolve materializes a role's permission references into full permission
// objects via explicit lookups and an in-memory join. Inactive permissions
// are kept: the caller sees is_active and the rights gate matches on name
// only.
func (s *RoleService) Resolve(ctx context.Context, roleID uint) (*models.Role, error) {
	role, err := s.Repo.RoleByID(ctx, roleID)
	if err != nil {
		return nil, err
	}

	ids, err := s.Repo.PermissionIDsByRole(ctx, roleID)
	if err != nil {
		return nil, err
	}

	perms, err := s.Repo.PermissionsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	byID := make(map[uint]models.Permission, len(perms))
	for _, p := range perms {
		byID[p.ID] = p
	}

	// Join in reference order, dropping duplicates and dangling references.
	seen := make(map[uint]bool, len(ids))
	role.Permissions = make([]models.Permission, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if p, ok := byID[id]; ok {
			role.Permissions = append(role.Permissions, p)
		}
	}
	return role, nil
}

// HasRight reports whether the resolved role grants any of the required
// rights.
func HasRight(role *models.Role, requiredRights []string) bool {
	if role == nil {
		return false
	}
	for _, required := range requiredRights {
		for _, p := range role.Permissions {
			if p.Name == required {
				return true
			}
		}
	}
	return false
}

func (s *RoleService) CreateRole(ctx context.Context, name string, permissionIDs []uint) (*models.Role, error) {
	role := &models.Role{Name: name, IsActive: true}
	if err := s.Repo.CreateRole(ctx, role); err != nil {
		return nil, err
	}
	if len(permissionIDs) > 0 {
		if err := s.Repo.AttachPermissions(ctx, role.ID, permissionIDs); err != nil {
			return nil, err
		}
	}
	return s.Resolve(ctx, role.ID)
}

func (s *RoleService) CreatePermission(ctx context.Context, name string) (*models.Permission, error) {
	if !permissionNameRE.MatchString(name) {
		return nil, &autherr.Error{
			Status:  http.StatusBadRequest,
			Code:    "invalid_permission_name",
			Message: "permission name must match <resource>-<create|modify|get|update|delete>",
		}
	}
	p := &models.Permission{Name: name, IsActive: true}
	if err := s.Repo.CreatePermission(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}
