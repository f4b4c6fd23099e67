package notification

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"pulse/internal/common"
	"pulse/internal/middleware"
)

// Handler handles HTTP requests for the notification domain.
type Handler struct {
	service  *Service
	settings *SettingsService
}

// NewHandler creates a new notification handler.
func NewHandler(service *Service, settings *SettingsService) *Handler {
	return &Handler{service: service, settings: settings}
}

// List handles GET /api/v1/notifications
// Returns one page of the current user's notifications, newest first.
func (h *Handler) List(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		common.Error(c, http.StatusUnauthorized, "missing user identity")
		return
	}

	var q ListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		common.Error(c, http.StatusBadRequest, "invalid query parameters: "+err.Error())
		return
	}

	items, total, err := h.service.ListUserNotifications(c.Request.Context(), userID, q.Page, q.Limit)
	if err != nil {
		common.HandleError(c, err)
		return
	}

	totalPages := 0
	if total > 0 {
		totalPages = (total + q.Limit - 1) / q.Limit
	}
	common.Success(c, http.StatusOK, ListResponse{
		Items:      items,
		Total:      total,
		Page:       q.Page,
		Limit:      q.Limit,
		TotalPages: totalPages,
	})
}

// SendToUser handles POST /api/v1/users/:user_id/notifications
// Responds 200 when every requested channel was permitted, 202 when one or
// more were suppressed by the recipient's preferences.
func (h *Handler) SendToUser(c *gin.Context) {
	senderID, ok := middleware.CurrentUserID(c)
	if !ok {
		common.Error(c, http.StatusUnauthorized, "missing user identity")
		return
	}

	recipientID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil {
		common.Error(c, http.StatusBadRequest, "invalid user id")
		return
	}

	var req SendToUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Error(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	n, code, err := h.service.SendToUser(
		c.Request.Context(),
		recipientID,
		&senderID,
		req.TemplateKey,
		req.Payload,
		req.ProjectID,
		req.Channels,
	)
	if err != nil {
		slog.Error("send notification failed",
			"recipient_id", recipientID,
			"template_key", req.TemplateKey,
			"error", err,
		)
		common.HandleError(c, err)
		return
	}

	common.Success(c, code.HTTPStatus(), n)
}

// SendToProject handles POST /api/v1/projects/:project_id/notifications
func (h *Handler) SendToProject(c *gin.Context) {
	senderID, ok := middleware.CurrentUserID(c)
	if !ok {
		common.Error(c, http.StatusUnauthorized, "missing user identity")
		return
	}

	projectID, err := strconv.ParseInt(c.Param("project_id"), 10, 64)
	if err != nil {
		common.Error(c, http.StatusBadRequest, "invalid project id")
		return
	}

	var req SendToProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Error(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	includeAuthor := true
	if req.IncludeAuthor != nil {
		includeAuthor = *req.IncludeAuthor
	}

	ns, code, err := h.service.SendToProjectParticipants(
		c.Request.Context(),
		projectID,
		&senderID,
		req.TemplateKey,
		req.Payload,
		includeAuthor,
		req.Channels,
	)
	if err != nil {
		slog.Error("project notification fan-out failed",
			"project_id", projectID,
			"template_key", req.TemplateKey,
			"error", err,
		)
		common.HandleError(c, err)
		return
	}

	common.Success(c, code.HTTPStatus(), ns)
}

// Templates handles GET /api/v1/notifications/templates
// Advertises the template contract for client-side form validation.
func (h *Handler) Templates(c *gin.Context) {
	common.Success(c, http.StatusOK, h.service.Templates())
}

// GetSettings handles GET /api/v1/notifications/settings
func (h *Handler) GetSettings(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		common.Error(c, http.StatusUnauthorized, "missing user identity")
		return
	}

	settings, err := h.settings.Get(c.Request.Context(), userID)
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.Success(c, http.StatusOK, settings)
}

// UpdateSettings handles PATCH /api/v1/notifications/settings
// Accepts a partial object; unset fields keep their prior value.
func (h *Handler) UpdateSettings(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		common.Error(c, http.StatusUnauthorized, "missing user identity")
		return
	}

	var req SettingsUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Error(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	settings, err := h.settings.Update(c.Request.Context(), userID, &req)
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.Success(c, http.StatusOK, settings)
}

// MarkRead handles PATCH /api/v1/notifications/:id
// Only an explicit is_read=true is accepted.
func (h *Handler) MarkRead(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		common.Error(c, http.StatusUnauthorized, "missing user identity")
		return
	}

	var req MarkReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Error(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if !*req.IsRead {
		common.Error(c, http.StatusBadRequest, "only is_read=true is supported")
		return
	}

	n, err := h.service.MarkRead(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.Success(c, http.StatusOK, n)
}

// MarkAllRead handles PATCH /api/v1/notifications
// Only an explicit mark_all_read=true is accepted.
func (h *Handler) MarkAllRead(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		common.Error(c, http.StatusUnauthorized, "missing user identity")
		return
	}

	var req MarkAllReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Error(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if !*req.MarkAllRead {
		common.Error(c, http.StatusBadRequest, "only mark_all_read=true is supported")
		return
	}

	updated, err := h.service.MarkAllRead(c.Request.Context(), userID)
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.Success(c, http.StatusOK, MarkAllReadResponse{Updated: updated})
}

// RegisterRoutes registers notification routes on the given router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/notifications", h.List)
	rg.GET("/notifications/templates", h.Templates)
	rg.GET("/notifications/settings", h.GetSettings)
	rg.PATCH("/notifications/settings", h.UpdateSettings)
	rg.PATCH("/notifications/:id", h.MarkRead)
	rg.PATCH("/notifications", h.MarkAllRead)
	rg.POST("/users/:user_id/notifications", h.SendToUser)
	rg.POST("/projects/:project_id/notifications", h.SendToProject)
}
