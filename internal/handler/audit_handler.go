package handler

import (
	"net/http"

	"taxservice/internal/middleware"
	"taxservice/internal/service"
	"taxservice/pkg/pagination"
	"taxservice/pkg/response"

	"github.com/gin-gonic/gin"
)

type AuditHandler struct {
	auditService service.AuditService
	secret       []byte
}

func NewAuditHandler(auditService service.AuditService, secret []byte) *AuditHandler {
	return &AuditHandler{auditService: auditService, secret: secret}
}

func (h *AuditHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/api/users/:id/audit-logs", middleware.RequireSelf(h.secret, "id"), h.GetAuditLogs)
}

// GetAuditLogs lists the caller's account events
// @Summary      Get audit logs
// @Description  Retrieves the registration and login events of the authenticated user
// @Tags         audit
// @Security     BearerAuth
// @Produce      json
// @Param        id     path      string  true   "User ID"
// @Param        page   query     int     false  "Page number (default 1)"
// @Param        limit  query     int     false  "Number of items per page (default 20)"
// @Success      200    {object}  response.Response{data=object}
// @Router       /api/users/{id}/audit-logs [get]
func (h *AuditHandler) GetAuditLogs(c *gin.Context) {
	p := pagination.Parse(c)

	logs, total, err := h.auditService.ListByUser(c.Request.Context(), c.GetString(middleware.ContextUserID), p.Page, p.Limit)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, "Failed to retrieve audit logs: "+err.Error())
		return
	}

	response.JSON(c, http.StatusOK, map[string]interface{}{
		"logs":  logs,
		"total": total,
		"page":  p.Page,
		"limit": p.Limit,
	})
}
