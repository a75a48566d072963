package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/notebook-reservation/internal/service"
)

// ReservationHandler exposes the booking core over HTTP.
type ReservationHandler struct {
	Booking *service.BookingService
}

func NewReservationHandler(b *service.BookingService) *ReservationHandler {
	return &ReservationHandler{Booking: b}
}

// createReservationReq is the booking request body.  Timestamps are
// RFC3339 strings; the core parses them so range errors surface as 400
// instead of bind failures.
type createReservationReq struct {
	Responsible string   `json:"responsible" validate:"required"`
	StartsAt    string   `json:"starts_at" validate:"required"`
	EndsAt      string   `json:"ends_at" validate:"required"`
	NotebookIDs []uint64 `json:"notebook_ids" validate:"required,min=1"`
}

// Create books one reservation covering every requested notebook, or
// nothing at all.
func (h *ReservationHandler) Create(c echo.Context) error {
	var req createReservationReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation failed", "detail": err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	detail, err := h.Booking.CreateReservation(ctx, service.CreateReservationInput{
		Responsible: req.Responsible,
		Start:       req.StartsAt,
		End:         req.EndsAt,
		NotebookIDs: req.NotebookIDs,
	})
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, detail)
}

// List returns reservations, optionally filtered by ?notebook_id= and
// ?responsible= (substring match).
func (h *ReservationHandler) List(c echo.Context) error {
	var filter service.ReservationFilter
	if raw := c.QueryParam("notebook_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid notebook_id"})
		}
		filter.NotebookID = id
	}
	filter.Responsible = c.QueryParam("responsible")

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	items, err := h.Booking.ListReservations(ctx, filter)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, items)
}

// Get returns one reservation with its notebook summaries.
func (h *ReservationHandler) Get(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	detail, err := h.Booking.GetReservation(ctx, c.Param("id"))
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, detail)
}

// Cancel deletes a reservation and frees its notebooks.
func (h *ReservationHandler) Cancel(c echo.Context) error {
	who, err := identity(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	if err := h.Booking.CancelReservation(ctx, c.Param("id"), who); err != nil {
		return writeServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// writeServiceError maps the core's typed and sentinel errors onto HTTP
// responses.  Unexpected storage failures stay opaque; the cause is
// already logged server-side.
func writeServiceError(c echo.Context, err error) error {
	var notFound *service.NotebookNotFoundError
	if errors.As(err, &notFound) {
		return c.JSON(http.StatusNotFound, echo.Map{
			"error":        "notebooks not found",
			"notebook_ids": notFound.IDs,
		})
	}
	var unavailable *service.NotebookUnavailableError
	if errors.As(err, &unavailable) {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error":             "notebooks unavailable",
			"under_maintenance": unavailable.UnderMaintenance,
			"retired":           unavailable.Retired,
		})
	}
	var conflict *service.SchedulingConflictError
	if errors.As(err, &conflict) {
		return c.JSON(http.StatusConflict, echo.Map{
			"error":           "scheduling conflict",
			"notebook_ids":    conflict.NotebookIDs,
			"reservation_ids": conflict.ReservationIDs,
		})
	}
	switch {
	case errors.Is(err, service.ErrInvalidRequest):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	case errors.Is(err, service.ErrInvalidDateRange):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "end must be after start"})
	case errors.Is(err, service.ErrReservationNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
	default:
		c.Logger().Errorf("reservation: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}
