package httpserver

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/identity_service/internal/service"
)

type RoleHTTP struct {
	Svc *service.RoleService
}

func (h *RoleHTTP) CreateRole(c echo.Context) error {
	ctx := c.Request().Context()

	var req struct {
		Name          string `json:"name"`
		PermissionIDs []uint `json:"permission_ids"`
	}
	if err := c.Bind(&req); err != nil || req.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name is required")
	}

	role, err := h.Svc.CreateRole(ctx, req.Name, req.PermissionIDs)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"role": role})
}

func (h *RoleHTTP) GetRole(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid role id")
	}

	role, err := h.Svc.Resolve(ctx, uint(id))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"role": role})
}

func (h *RoleHTTP) CreatePermission(c echo.Context) error {
	ctx := c.Request().Context()

	var req struct {
		Name string `json:"name"`
	}
	if err := c.Bind(&req); err != nil || req.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name is required")
	}

	perm, err := h.Svc.CreatePermission(ctx, req.Name)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"permission": perm})
}
