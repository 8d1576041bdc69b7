package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/identity_service/internal/middleware"
)

type Deps struct {
	AuthHandler *AuthHTTP
	UserHandler *UserHTTP
	RoleHandler *RoleHTTP
	Auth        *middleware.Auth
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	v1 := e.Group("/api/v1")

	auth := v1.Group("/auth")
	auth.POST("/register", d.AuthHandler.Register)
	auth.POST("/login", d.AuthHandler.Login)
	auth.POST("/logout", d.AuthHandler.Logout)
	auth.POST("/refresh-tokens", d.AuthHandler.Refresh)
	auth.POST("/forgot-password", d.AuthHandler.ForgotPassword)
	auth.POST("/reset-password", d.AuthHandler.ResetPassword)
	auth.GET("/verify-email", d.AuthHandler.VerifyEmail)
	auth.POST("/send-verification-email", d.AuthHandler.SendVerificationEmail, d.Auth.Authenticate)

	users := v1.Group("/users", d.Auth.Authenticate)
	users.GET("/:userId", d.UserHandler.GetUser, d.Auth.RequireRights("user-get"))
	users.PATCH("/:userId", d.UserHandler.UpdateUser, d.Auth.RequireRights("user-update"))
	users.DELETE("/:userId", d.UserHandler.DeleteUser, d.Auth.RequireRights("user-delete"))

	roles := v1.Group("/roles", d.Auth.Authenticate)
	roles.POST("", d.RoleHandler.CreateRole, d.Auth.RequireRights("role-create"))
	roles.GET("/:id", d.RoleHandler.GetRole, d.Auth.RequireRights("role-get"))

	perms := v1.Group("/permissions", d.Auth.Authenticate)
	perms.POST("", d.RoleHandler.CreatePermission, d.Auth.RequireRights("permission-create"))
}
