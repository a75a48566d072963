package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/notebook-reservation/internal/model"
	"github.com/iliyamo/notebook-reservation/internal/repository"
	"github.com/iliyamo/notebook-reservation/internal/service"
)

// NotebookHandler exposes the inventory CRUD and the availability
// listing.  Mutations are admin-only; the role gate sits in the router.
type NotebookHandler struct {
	Notebooks *repository.NotebookRepo
	Booking   *service.BookingService
}

func NewNotebookHandler(n *repository.NotebookRepo, b *service.BookingService) *NotebookHandler {
	return &NotebookHandler{Notebooks: n, Booking: b}
}

type notebookReq struct {
	Name     string  `json:"name" validate:"required,max=120"`
	AssetTag *string `json:"patrimonio"`
	Status   string  `json:"status"`
}

// Create registers a notebook in the pool.  Status defaults to
// "available".
func (h *NotebookHandler) Create(c echo.Context) error {
	var req notebookReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation failed", "detail": err.Error()})
	}
	status := strings.TrimSpace(req.Status)
	if status == "" {
		status = model.StatusAvailable
	}
	if !model.ValidStatus(status) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid status"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	n := &model.Notebook{Name: strings.TrimSpace(req.Name), AssetTag: req.AssetTag, Status: status}
	if err := h.Notebooks.Create(ctx, n); err != nil {
		if err == repository.ErrAssetTagExists {
			return c.JSON(http.StatusConflict, echo.Map{"error": "patrimonio already registered"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create notebook failed"})
	}
	return c.JSON(http.StatusCreated, n)
}

// List returns every notebook regardless of status.
func (h *NotebookHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := h.Notebooks.List(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list notebooks failed"})
	}
	return c.JSON(http.StatusOK, items)
}

// ListAvailable returns bookable notebooks.  With ?start= and ?end=
// (RFC3339, both or neither) notebooks covered by an overlapping
// reservation are filtered out.
func (h *NotebookHandler) ListAvailable(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	items, err := h.Booking.AvailableNotebooks(ctx, c.QueryParam("start"), c.QueryParam("end"))
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, items)
}

// ListRetired returns soft-deleted notebooks for the admin inventory
// view.
func (h *NotebookHandler) ListRetired(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := h.Notebooks.ListByStatus(ctx, model.StatusRetired)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list notebooks failed"})
	}
	return c.JSON(http.StatusOK, items)
}

// Get returns one notebook by id.
func (h *NotebookHandler) Get(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	n, err := h.Notebooks.GetByID(ctx, id)
	if err != nil {
		if err == repository.ErrNotebookNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "notebook not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load notebook failed"})
	}
	return c.JSON(http.StatusOK, n)
}

// Update changes name, patrimônio and status.  Leaving "available" is
// refused while future reservations still cover the notebook.
func (h *NotebookHandler) Update(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req notebookReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation failed", "detail": err.Error()})
	}
	if !model.ValidStatus(req.Status) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid status"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	n, err := h.Notebooks.Update(ctx, id, strings.TrimSpace(req.Name), req.AssetTag, req.Status)
	if err != nil {
		switch err {
		case repository.ErrNotebookNotFound:
			return c.JSON(http.StatusNotFound, echo.Map{"error": "notebook not found"})
		case repository.ErrAssetTagExists:
			return c.JSON(http.StatusConflict, echo.Map{"error": "patrimonio already registered"})
		case repository.ErrHasFutureReservations:
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "notebook has future reservations"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update notebook failed"})
	}
	return c.JSON(http.StatusOK, n)
}

// Retire soft-deletes a notebook.  Refused while future reservations
// cover it; past reservation history is kept.
func (h *NotebookHandler) Retire(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	n, err := h.Notebooks.Retire(ctx, id)
	if err != nil {
		switch err {
		case repository.ErrNotebookNotFound:
			return c.JSON(http.StatusNotFound, echo.Map{"error": "notebook not found"})
		case repository.ErrHasFutureReservations:
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "notebook has future reservations"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "retire notebook failed"})
	}
	return c.JSON(http.StatusOK, n)
}

// Report returns inventory counts grouped by status.
func (h *NotebookHandler) Report(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	rep, err := h.Notebooks.Report(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "report failed"})
	}
	return c.JSON(http.StatusOK, rep)
}

func pathID(c echo.Context) (uint64, error) {
	return strconv.ParseUint(c.Param("id"), 10, 64)
}
