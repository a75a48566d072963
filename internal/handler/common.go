package handler

import (
	"errors"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/notebook-reservation/internal/middleware"
	"github.com/iliyamo/notebook-reservation/internal/service"
)

// identity rebuilds the verified caller from the context values the
// JWT middleware stored.  Claim values decoded from JSON arrive as
// float64; tokens issued by older builds may carry strings.
func identity(c echo.Context) (service.Identity, error) {
	var id service.Identity
	switch t := c.Get(middleware.CtxUserID).(type) {
	case uint64:
		id.ID = t
	case int64:
		id.ID = uint64(t)
	case float64:
		id.ID = uint64(t)
	case string:
		n, err := strconv.ParseUint(t, 10, 64)
		if err != nil {
			return id, errors.New("invalid user_id in context")
		}
		id.ID = n
	default:
		return id, errors.New("missing user_id in context")
	}
	if v, ok := c.Get(middleware.CtxUsername).(string); ok {
		id.Username = v
	}
	if v, ok := c.Get(middleware.CtxRole).(string); ok {
		id.Role = v
	}
	return id, nil
}
