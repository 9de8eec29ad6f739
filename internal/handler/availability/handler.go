package availability

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/carebridge/booking-api/internal/handler"
	"github.com/carebridge/booking-api/internal/service/availability"
	apperrors "github.com/carebridge/booking-api/pkg/errors"
)

type Handler struct {
	service *availability.Service
}

func NewHandler(service *availability.Service) *Handler {
	return &Handler{service: service}
}

// RegisterPublicRoutes wires the public availability read path. No auth:
// parents browse open slots before they have an account.
func (h *Handler) RegisterPublicRoutes(r *gin.RouterGroup) {
	r.GET("/providers/:id/availability", h.GetAvailability)
}

func (h *Handler) GetAvailability(c *gin.Context) {
	providerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.Error(apperrors.Validation("invalid provider ID", err))
		c.Abort()
		return
	}

	days := 0
	if v := c.Query("days"); v != "" {
		days, err = strconv.Atoi(v)
		if err != nil || days < 1 {
			c.Error(apperrors.Validation("days must be a positive integer", err))
			c.Abort()
			return
		}
	}

	grid, err := h.service.GetAvailability(c.Request.Context(), providerID, days)
	if err != nil {
		c.Error(err)
		c.Abort()
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{
		"provider_id": providerID,
		"days":        grid,
	}))
}
