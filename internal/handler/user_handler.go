package handler

import (
	"errors"
	"net/http"
	"time"

	"taxservice/internal/middleware"
	"taxservice/internal/service"
	"taxservice/pkg/response"

	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	userService   service.UserService
	secret        []byte
	tokenTTL      time.Duration
	secureCookies bool
}

// NewUserHandler sets up the routing dependencies for account endpoints
func NewUserHandler(userService service.UserService, secret []byte, tokenTTL time.Duration, secureCookies bool) *UserHandler {
	return &UserHandler{
		userService:   userService,
		secret:        secret,
		tokenTTL:      tokenTTL,
		secureCookies: secureCookies,
	}
}

// RegisterRoutes binds the endpoints to the gin Engine or RouterGroup
func (h *UserHandler) RegisterRoutes(router *gin.RouterGroup) {
	// Public routes
	router.POST("/register", h.Register)
	router.POST("/auth", h.Auth)

	router.GET("/api/users/:id", middleware.RequireSelf(h.secret, "id"), h.GetUser)
}

// Register handles POST /register
// @Summary      Register user
// @Description  Creates an account. Login and email must be unique.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.RegisterRequest  true  "Registration Payload"
// @Success      201      {object}  response.Response{data=service.RegisterResponse}
// @Failure      400      {object}  response.Response
// @Failure      500      {object}  response.Response
// @Router       /register [post]
func (h *UserHandler) Register(c *gin.Context) {
	var req service.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}

	res, err := h.userService.Register(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrUserExists) {
			response.Fail(c, http.StatusBadRequest, err.Error())
			return
		}
		response.Fail(c, http.StatusInternalServerError, "Failed to register user")
		return
	}

	response.JSON(c, http.StatusCreated, res)
}

// Auth handles POST /auth and returns a bearer token
// @Summary      Login user
// @Description  Authenticates by login and password, returning the user id and a JWT token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.AuthRequest  true  "Login Credentials"
// @Success      200      {object}  response.Response{data=service.AuthResponse}
// @Failure      400      {object}  response.Response
// @Router       /auth [post]
func (h *UserHandler) Auth(c *gin.Context) {
	var req service.AuthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, "Invalid request payload")
		return
	}

	res, err := h.userService.Authenticate(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			response.Fail(c, http.StatusBadRequest, err.Error())
			return
		}
		response.Fail(c, http.StatusInternalServerError, "Failed to authenticate")
		return
	}

	middleware.SetTokenCookie(c, res.Token, h.tokenTTL, h.secureCookies)
	response.JSON(c, http.StatusOK, res)
}

// GetUser handles GET /api/users/:id
// @Summary      Get user
// @Description  Returns the authenticated user's account
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "User ID"
// @Success      200  {object}  response.Response{data=service.UserResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/users/{id} [get]
func (h *UserHandler) GetUser(c *gin.Context) {
	user, err := h.userService.GetUserByID(c.Request.Context(), c.GetString(middleware.ContextUserID))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUserNotFound):
			response.Fail(c, http.StatusNotFound, "User not found")
		case errors.Is(err, service.ErrInvalidUserID):
			response.Fail(c, http.StatusBadRequest, err.Error())
		default:
			response.Fail(c, http.StatusInternalServerError, "Failed to retrieve user")
		}
		return
	}

	response.JSON(c, http.StatusOK, user)
}
