package httpserver

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/identity_service/internal/middleware"
	"github.com/Skotchmaster/identity_service/internal/repo"
	"github.com/Skotchmaster/identity_service/internal/service"
)

type UserHTTP struct {
	Repo  *repo.GormRepo
	Roles *service.RoleService
}

func userIDParam(c echo.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("userId"), 10, 64)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid user id")
	}
	return uint(id), nil
}

func (h *UserHTTP) GetUser(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := userIDParam(c)
	if err != nil {
		return err
	}

	user, err := h.Repo.UserByID(ctx, id)
	if err != nil {
		return httpError(err)
	}

	resp := echo.Map{"user": user}
	if user.RoleID != nil {
		if role, err := h.Roles.Resolve(ctx, *user.RoleID); err == nil {
			resp["role"] = role
		}
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *UserHTTP) UpdateUser(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := userIDParam(c)
	if err != nil {
		return err
	}

	var req struct {
		Name  *string `json:"name"`
		Email *string `json:"email"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	fields := map[string]any{}
	if req.Name != nil {
		fields["name"] = *req.Name
	}
	if req.Email != nil {
		// A changed address has to be verified again.
		fields["email"] = *req.Email
		fields["is_email_verified"] = false
	}
	if actor := middleware.UserFromContext(c); actor != nil {
		fields["updated_by"] = actor.ID
	}
	if len(fields) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "nothing to update")
	}

	user, err := h.Repo.UpdateUser(ctx, id, fields)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"user": user})
}

func (h *UserHTTP) DeleteUser(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := userIDParam(c)
	if err != nil {
		return err
	}

	if err := h.Repo.DeleteUser(ctx, id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
