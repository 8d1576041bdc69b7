package middleware

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/identity_service/internal/autherr"
	"github.com/Skotchmaster/identity_service/internal/models"
	"github.com/Skotchmaster/identity_service/internal/repo"
	"github.com/Skotchmaster/identity_service/internal/service"
	"github.com/Skotchmaster/identity_service/internal/tokens"
)

const (
	ctxUserKey = "user"
)

type Auth struct {
	Tokens *service.TokenService
	Roles  *service.RoleService
	Repo   *repo.GormRepo
}

// Authenticate validates the bearer access token (signature+expiry only, no
// store round-trip) and loads the acting user into the request context.
func (m *Auth) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get(echo.HeaderAuthorization)
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			return echo.NewHTTPError(autherr.ErrUnauthorized.Status, autherr.ErrUnauthorized.Message)
		}

		verified, err := m.Tokens.Verify(c.Request().Context(), raw, tokens.TypeAccess)
		if err != nil {
			return echo.NewHTTPError(autherr.ErrUnauthorized.Status, autherr.ErrUnauthorized.Message)
		}

		user, err := m.Repo.UserByID(c.Request().Context(), verified.UserID)
		if err != nil {
			return echo.NewHTTPError(autherr.ErrUnauthorized.Status, autherr.ErrUnauthorized.Message)
		}

		c.Set(ctxUserKey, user)
		return next(c)
	}
}

// RequireRights authorizes when the user's resolved role grants any of the
// required rights, or when the :userId path parameter names the acting user
// (self-access bypasses the permission check unconditionally).
func (m *Auth) RequireRights(requiredRights ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user := UserFromContext(c)
			if user == nil {
				return echo.NewHTTPError(autherr.ErrUnauthorized.Status, autherr.ErrUnauthorized.Message)
			}

			if param := c.Param("userId"); param != "" &&
				param == strconv.FormatUint(uint64(user.ID), 10) {
				return next(c)
			}

			if user.RoleID != nil {
				role, err := m.Roles.Resolve(c.Request().Context(), *user.RoleID)
				if err == nil && service.HasRight(role, requiredRights) {
					return next(c)
				}
			}

			return echo.NewHTTPError(autherr.ErrForbidden.Status, autherr.ErrForbidden.Message)
		}
	}
}

func UserFromContext(c echo.Context) *models.User {
	if u, ok := c.Get(ctxUserKey).(*models.User); ok {
		return u
	}
	return nil
}
