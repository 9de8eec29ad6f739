package provider

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/carebridge/booking-api/internal/handler"
	"github.com/carebridge/booking-api/internal/middleware"
	"github.com/carebridge/booking-api/internal/model"
	"github.com/carebridge/booking-api/internal/service/provider"
	apperrors "github.com/carebridge/booking-api/pkg/errors"
)

type Handler struct {
	service *provider.Service
}

func NewHandler(service *provider.Service) *Handler {
	return &Handler{service: service}
}

// RegisterPublicRoutes wires the unauthenticated provider reads.
func (h *Handler) RegisterPublicRoutes(r *gin.RouterGroup) {
	r.GET("/providers/:id", h.Get)
	r.GET("/providers/:id/schedule", h.GetSchedule)
}

// RegisterRoutes wires the owner-side schedule management.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.PUT("/providers/:id/schedule", middleware.RequireRole(model.RoleProvider), h.UpdateSchedule)
}

func (h *Handler) Get(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		abort(c, err)
		return
	}

	p, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(p))
}

func (h *Handler) GetSchedule(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		abort(c, err)
		return
	}

	schedule, err := h.service.GetSchedule(c.Request.Context(), id)
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(schedule))
}

type updateScheduleRequest struct {
	Opening  string   `json:"opening" binding:"required,clock"`
	Closing  string   `json:"closing" binding:"required,clock"`
	Weekdays []string `json:"weekdays" binding:"required,dive,weekday"`
}

func (h *Handler) UpdateSchedule(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		abort(c, err)
		return
	}

	var req updateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, apperrors.Validation(err.Error(), err))
		return
	}

	actor, _ := middleware.ActorFromContext(c)
	schedule, err := h.service.UpdateSchedule(c.Request.Context(), actor, &model.OperatingSchedule{
		ProviderID: id,
		Opening:    req.Opening,
		Closing:    req.Closing,
		Weekdays:   pq.StringArray(req.Weekdays),
	})
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(schedule))
}

func parseID(c *gin.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, apperrors.Validation("invalid provider ID", err)
	}
	return id, nil
}

func abort(c *gin.Context, err error) {
	c.Error(err)
	c.Abort()
}
