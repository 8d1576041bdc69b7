package httpserver

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/identity_service/internal/autherr"
)

// httpError maps typed domain errors to their HTTP shape. Anything untyped
// becomes an opaque 500; internals are never exposed to callers.
func httpError(err error) error {
	var ae *autherr.Error
	if errors.As(err, &ae) {
		return echo.NewHTTPError(ae.Status, ae.Message)
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
}
