package booking

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/carebridge/booking-api/internal/handler"
	"github.com/carebridge/booking-api/internal/middleware"
	"github.com/carebridge/booking-api/internal/model"
	"github.com/carebridge/booking-api/internal/service/booking"
	apperrors "github.com/carebridge/booking-api/pkg/errors"
)

type Handler struct {
	service *booking.Service
}

func NewHandler(service *booking.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	bookings := r.Group("/bookings")
	{
		bookings.POST("", h.Create)
		bookings.POST("/series", h.CreateSeries)
		bookings.GET("", h.List)
		bookings.GET("/:id", h.Get)
		bookings.POST("/:id/cancel", h.Cancel)
		bookings.POST("/:id/reschedule", h.Reschedule)
		bookings.POST("/:id/confirm", h.Confirm)
		bookings.POST("/:id/complete", h.Complete)
		bookings.POST("/:id/no-show", h.MarkNoShow)
		bookings.POST("/series/:id/cancel", h.CancelSeries)
	}
}

func (h *Handler) Create(c *gin.Context) {
	var req model.CreateReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, apperrors.Validation(err.Error(), err))
		return
	}

	actor, _ := middleware.ActorFromContext(c)
	reservation, err := h.service.CreateSingle(c.Request.Context(), actor, &req)
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(reservation))
}

func (h *Handler) CreateSeries(c *gin.Context) {
	var req model.CreateSeriesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, apperrors.Validation(err.Error(), err))
		return
	}

	actor, _ := middleware.ActorFromContext(c)
	reservations, err := h.service.CreateSeries(c.Request.Context(), actor, &req)
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(gin.H{
		"series_id":    reservations[0].SeriesID,
		"reservations": reservations,
	}))
}

func (h *Handler) Get(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		abort(c, err)
		return
	}

	actor, _ := middleware.ActorFromContext(c)
	reservation, err := h.service.Get(c.Request.Context(), actor, id)
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(reservation))
}

func (h *Handler) List(c *gin.Context) {
	filters, err := parseFilters(c)
	if err != nil {
		abort(c, err)
		return
	}

	actor, _ := middleware.ActorFromContext(c)
	reservations, err := h.service.List(c.Request.Context(), actor, filters)
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(reservations))
}

func (h *Handler) Cancel(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		abort(c, err)
		return
	}

	var req model.CancelRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		abort(c, apperrors.Validation(err.Error(), err))
		return
	}

	actor, _ := middleware.ActorFromContext(c)
	reservation, err := h.service.Cancel(c.Request.Context(), actor, id, req.Reason)
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(reservation))
}

func (h *Handler) CancelSeries(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		abort(c, err)
		return
	}

	var req model.CancelRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		abort(c, apperrors.Validation(err.Error(), err))
		return
	}

	actor, _ := middleware.ActorFromContext(c)
	cancelled, err := h.service.CancelSeries(c.Request.Context(), actor, id, req.Reason)
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{
		"cancelled": cancelled,
	}))
}

func (h *Handler) Reschedule(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		abort(c, err)
		return
	}

	var req model.RescheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, apperrors.Validation(err.Error(), err))
		return
	}

	actor, _ := middleware.ActorFromContext(c)
	reservation, err := h.service.Reschedule(c.Request.Context(), actor, id, req.ScheduledAt)
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(reservation))
}

func (h *Handler) Confirm(c *gin.Context) {
	h.transition(c, h.service.Confirm)
}

func (h *Handler) Complete(c *gin.Context) {
	h.transition(c, h.service.Complete)
}

func (h *Handler) MarkNoShow(c *gin.Context) {
	h.transition(c, h.service.MarkNoShow)
}

func (h *Handler) transition(c *gin.Context, op func(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Reservation, error)) {
	id, err := parseID(c)
	if err != nil {
		abort(c, err)
		return
	}

	actor, _ := middleware.ActorFromContext(c)
	reservation, err := op(c.Request.Context(), actor, id)
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(reservation))
}

func parseID(c *gin.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, apperrors.Validation("invalid reservation ID", err)
	}
	return id, nil
}

func parseFilters(c *gin.Context) (*model.ReservationFilters, error) {
	filters := &model.ReservationFilters{}

	if v := c.Query("provider_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return nil, apperrors.Validation("invalid provider ID", err)
		}
		filters.ProviderID = id
	}
	if v := c.Query("status"); v != "" {
		filters.Status = model.ReservationStatus(v)
	}
	if v := c.Query("start_date"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, apperrors.Validation("invalid start_date", err)
		}
		filters.StartDate = t
	}
	if v := c.Query("end_date"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, apperrors.Validation("invalid end_date", err)
		}
		filters.EndDate = t
	}
	return filters, nil
}

func abort(c *gin.Context, err error) {
	c.Error(err)
	c.Abort()
}
