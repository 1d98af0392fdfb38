// Package api provides the HTTP endpoints for signing up, in and out.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/taskflow/taskflow/internal/board/models"
	"github.com/taskflow/taskflow/internal/common/errors"
	"github.com/taskflow/taskflow/internal/common/httpmw"
	"github.com/taskflow/taskflow/internal/common/logger"
	"github.com/taskflow/taskflow/internal/identity"
	v1 "github.com/taskflow/taskflow/pkg/api/v1"
)

// SignUpRequest registers an account.
type SignUpRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Name     string `json:"name" binding:"required"`
}

// SignInRequest opens a session.
type SignInRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Handler contains HTTP handlers for the identity API
type Handler struct {
	service *identity.Service
	logger  *logger.Logger
}

// NewHandler creates a new identity handler
func NewHandler(svc *identity.Service, log *logger.Logger) *Handler {
	return &Handler{
		service: svc,
		logger:  log.WithFields(zap.String("component", "identity-api")),
	}
}

// SetupRoutes registers /auth routes. Sign-out and the current user need a
// session; sign-up and sign-in do not.
func SetupRoutes(router *gin.RouterGroup, svc *identity.Service, log *logger.Logger) {
	handler := NewHandler(svc, log)

	auth := router.Group("/auth")
	{
		auth.POST("/signup", handler.SignUp)
		auth.POST("/signin", handler.SignIn)

		session := auth.Group("", httpmw.Authenticate(svc))
		session.POST("/signout", handler.SignOut)
		session.GET("/me", handler.Me)
	}
}

func userToResponse(u *models.User) *v1.User {
	resp := &v1.User{
		ID:             u.ID,
		Name:           u.Name,
		Email:          u.Email,
		Favorites:      u.Favorites,
		RecentlyViewed: u.RecentlyViewed,
		CreatedAt:      u.CreatedAt,
	}
	if resp.Favorites == nil {
		resp.Favorites = []string{}
	}
	if resp.RecentlyViewed == nil {
		resp.RecentlyViewed = []string{}
	}
	return resp
}

// SignUp creates an account and signs it in
// POST /api/v1/auth/signup
func (h *Handler) SignUp(c *gin.Context) {
	var req SignUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errors.BadRequest(err.Error()))
		return
	}

	ctx := c.Request.Context()
	user, err := h.service.SignUp(ctx, req.Email, req.Password, req.Name)
	if err != nil {
		_ = c.Error(err)
		return
	}
	session, err := h.service.SignIn(ctx, req.Email, req.Password)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, v1.Session{
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
		User:      userToResponse(user),
	})
}

// SignIn opens a session
// POST /api/v1/auth/signin
func (h *Handler) SignIn(c *gin.Context) {
	var req SignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errors.BadRequest(err.Error()))
		return
	}

	ctx := c.Request.Context()
	session, err := h.service.SignIn(ctx, req.Email, req.Password)
	if err != nil {
		_ = c.Error(err)
		return
	}
	user, err := h.service.CurrentUser(ctx, session.Token)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, v1.Session{
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
		User:      userToResponse(user),
	})
}

// SignOut ends the caller's session
// POST /api/v1/auth/signout
func (h *Handler) SignOut(c *gin.Context) {
	if err := h.service.SignOut(c.Request.Context(), c.GetString(httpmw.TokenKey)); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Me returns the signed-in user
// GET /api/v1/auth/me
func (h *Handler) Me(c *gin.Context) {
	user, err := h.service.CurrentUser(c.Request.Context(), c.GetString(httpmw.TokenKey))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, userToResponse(user))
}
