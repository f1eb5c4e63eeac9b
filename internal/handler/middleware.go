package handler

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/locvowork/chartdata/internal/logger"
)

// RequestID propagates X-Request-ID, generating one when the client sends
// none, and attaches it to the request context for logging.
func RequestID(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		id := req.Header.Get(echo.HeaderXRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Response().Header().Set(echo.HeaderXRequestID, id)
		c.SetRequest(req.WithContext(logger.WithRequestID(req.Context(), id)))
		return next(c)
	}
}
