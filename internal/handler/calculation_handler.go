package handler

import (
	"errors"
	"net/http"

	"taxservice/internal/middleware"
	"taxservice/internal/service"
	"taxservice/internal/taxcalc"
	"taxservice/pkg/pagination"
	"taxservice/pkg/response"

	"github.com/gin-gonic/gin"
)

type CalculationHandler struct {
	calcService service.CalculationService
	secret      []byte
	limiter     *middleware.RateLimiter
}

func NewCalculationHandler(calcService service.CalculationService, secret []byte, limiter *middleware.RateLimiter) *CalculationHandler {
	return &CalculationHandler{calcService: calcService, secret: secret, limiter: limiter}
}

// RegisterRoutes binds both the legacy paths and their /api equivalents
func (h *CalculationHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/raschet/:id", middleware.RequireSelf(h.secret, "id"), h.limiter.Handler(), h.Calculate)
	router.GET("/calculations/:user_id", middleware.RequireSelf(h.secret, "user_id"), h.History)

	users := router.Group("/api/users/:id")
	users.Use(middleware.RequireSelf(h.secret, "id"))
	{
		users.POST("/calculations", h.limiter.Handler(), h.Calculate)
		users.GET("/calculations", h.History)
	}
}

// calculationStatus maps service and engine errors to HTTP status codes
func calculationStatus(err error) int {
	switch {
	case taxcalc.IsClientError(err),
		errors.Is(err, service.ErrInvalidUserID),
		errors.Is(err, service.ErrMissingAmount),
		errors.Is(err, service.ErrNegativeAmount),
		errors.Is(err, service.ErrRateOutOfRange),
		errors.Is(err, service.ErrInvalidOperation),
		errors.Is(err, service.ErrInvalidRegime):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrNoCalculations):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// failCalculation writes the mapped status. Internal errors get the generic message.
func failCalculation(c *gin.Context, err error, internal string) {
	status := calculationStatus(err)
	if status == http.StatusInternalServerError {
		response.Fail(c, status, internal)
		return
	}
	response.Fail(c, status, err.Error())
}

// Calculate computes a tax and records it in the caller's history
// @Summary      Calculate tax
// @Description  Computes the tax for the given regime and stores the calculation. tax_type: 1 personal income, 2 dividends, 3 non-resident income, 4 winnings, 5 custom rate, 6 property sale. operation: 0 gross, 1 net to gross. new: 0 legacy, 1 current rates.
// @Tags         calculations
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                    true  "User ID"
// @Param        payload  body      service.CalculateRequest  true  "Calculation Payload"
// @Success      200      {object}  response.Response{data=service.CalculationResponse}
// @Failure      400      {object}  response.Response
// @Failure      401      {object}  response.Response
// @Failure      403      {object}  response.Response
// @Failure      429      {object}  response.Response
// @Router       /raschet/{id} [post]
// @Router       /api/users/{id}/calculations [post]
func (h *CalculationHandler) Calculate(c *gin.Context) {
	var req service.CalculateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}

	res, err := h.calcService.Calculate(c.Request.Context(), c.GetString(middleware.ContextUserID), req)
	if err != nil {
		failCalculation(c, err, "Failed to calculate tax")
		return
	}

	response.JSON(c, http.StatusOK, res)
}

// History lists the caller's calculations, newest first
// @Summary      List calculations
// @Description  Returns the user's calculation history newest first. Without page/limit the full history is returned.
// @Tags         calculations
// @Produce      json
// @Security     BearerAuth
// @Param        user_id  path      string  true   "User ID"
// @Param        page     query     int     false  "Page number"
// @Param        limit    query     int     false  "Number of items per page"
// @Success      200      {object}  response.Response{data=object}
// @Failure      404      {object}  response.Response
// @Router       /calculations/{user_id} [get]
func (h *CalculationHandler) History(c *gin.Context) {
	page, limit := 0, 0
	if p, ok := pagination.ParseOptional(c); ok {
		page, limit = p.Page, p.Limit
	}

	items, total, err := h.calcService.History(c.Request.Context(), c.GetString(middleware.ContextUserID), page, limit)
	if err != nil {
		failCalculation(c, err, "Failed to retrieve calculations")
		return
	}

	data := map[string]interface{}{
		"calculations": items,
		"total":        total,
	}
	if limit > 0 {
		data["page"] = page
		data["limit"] = limit
	}
	response.JSON(c, http.StatusOK, data)
}
