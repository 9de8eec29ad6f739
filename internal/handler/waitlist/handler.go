package waitlist

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/carebridge/booking-api/internal/handler"
	"github.com/carebridge/booking-api/internal/middleware"
	"github.com/carebridge/booking-api/internal/model"
	"github.com/carebridge/booking-api/internal/service/waitlist"
	apperrors "github.com/carebridge/booking-api/pkg/errors"
)

type Handler struct {
	service *waitlist.Service
}

func NewHandler(service *waitlist.Service) *Handler {
	return &Handler{service: service}
}

// RegisterPublicRoutes wires the join endpoint. Parents can queue up
// before they have an account; the entry is keyed by email.
func (h *Handler) RegisterPublicRoutes(r *gin.RouterGroup) {
	r.POST("/providers/:id/waitlist", h.Join)
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/providers/:id/waitlist", middleware.RequireRole(model.RoleProvider), h.List)

	entries := r.Group("/waitlist")
	{
		entries.DELETE("/:id", h.Delete)
		entries.POST("/:id/reorder", middleware.RequireRole(model.RoleProvider), h.Reorder)
		entries.POST("/:id/promote", middleware.RequireRole(model.RoleProvider), h.Promote)
	}
}

func (h *Handler) Join(c *gin.Context) {
	providerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		abort(c, apperrors.Validation("invalid provider ID", err))
		return
	}

	var req model.JoinWaitlistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, apperrors.Validation(err.Error(), err))
		return
	}

	entry, err := h.service.Join(c.Request.Context(), providerID, &req)
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(entry))
}

func (h *Handler) List(c *gin.Context) {
	providerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		abort(c, apperrors.Validation("invalid provider ID", err))
		return
	}

	actor, _ := middleware.ActorFromContext(c)
	entries, err := h.service.ListActive(c.Request.Context(), actor, providerID)
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(entries))
}

// Delete removes an entry. Providers remove entries from their own list;
// clients leave a list they joined.
func (h *Handler) Delete(c *gin.Context) {
	entryID, err := parseEntryID(c)
	if err != nil {
		abort(c, err)
		return
	}

	actor, _ := middleware.ActorFromContext(c)
	if actor.Role == model.RoleProvider {
		err = h.service.Remove(c.Request.Context(), actor, entryID)
	} else {
		err = h.service.Leave(c.Request.Context(), actor, entryID)
	}
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(nil))
}

func (h *Handler) Reorder(c *gin.Context) {
	entryID, err := parseEntryID(c)
	if err != nil {
		abort(c, err)
		return
	}

	var req model.ReorderWaitlistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, apperrors.Validation(err.Error(), err))
		return
	}

	actor, _ := middleware.ActorFromContext(c)
	entry, err := h.service.Reorder(c.Request.Context(), actor, entryID, req.Position)
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(entry))
}

func (h *Handler) Promote(c *gin.Context) {
	entryID, err := parseEntryID(c)
	if err != nil {
		abort(c, err)
		return
	}

	actor, _ := middleware.ActorFromContext(c)
	result, err := h.service.Promote(c.Request.Context(), actor, entryID)
	if err != nil {
		abort(c, err)
		return
	}

	data := gin.H{"entry": result.Entry}
	if result.DeliveryError != nil {
		// The promotion committed; only the notification failed.
		data["delivery_error"] = result.DeliveryError.Error()
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(data))
}

func parseEntryID(c *gin.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, apperrors.Validation("invalid waitlist entry ID", err)
	}
	return id, nil
}

func abort(c *gin.Context, err error) {
	c.Error(err)
	c.Abort()
}
