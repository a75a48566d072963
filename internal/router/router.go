// Package router maps the HTTP surface onto handlers and middleware.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/notebook-reservation/internal/handler"
	"github.com/iliyamo/notebook-reservation/internal/middleware"
)

// RegisterRoutes registers the unauthenticated endpoints.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the auth endpoints.  Register, login, refresh
// and logout live under /v1/auth without a session; /v1/me requires a
// valid access token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout)

	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.GET("/me", a.Me)
	// Authenticated logout without a body revokes every session of the
	// caller.
	auth.POST("/logout", a.Logout)
}

// RegisterNotebooks registers the inventory endpoints.  Listings are
// open to any authenticated user and may be served from the response
// cache; mutations and the report require the admin role.
func RegisterNotebooks(e *echo.Echo, h *handler.NotebookHandler, jwtSecret string, cache echo.MiddlewareFunc) {
	g := e.Group("/v1/notebooks")
	g.Use(middleware.JWTAuth(jwtSecret))

	g.GET("", h.List, cache)
	g.GET("/available", h.ListAvailable, cache)
	g.GET("/:id", h.Get)

	admin := middleware.RequireRole("admin")
	g.GET("/retired", h.ListRetired, admin)
	g.GET("/report", h.Report, admin)
	g.POST("", h.Create, admin)
	g.PUT("/:id", h.Update, admin)
	g.DELETE("/:id", h.Retire, admin)
}

// RegisterReservations registers the booking endpoints.  Every route
// requires a valid access token; any authenticated user may book and
// cancel.
func RegisterReservations(e *echo.Echo, h *handler.ReservationHandler, jwtSecret string) {
	g := e.Group("/v1/reservations")
	g.Use(middleware.JWTAuth(jwtSecret))

	g.POST("", h.Create)
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.DELETE("/:id", h.Cancel)
}
