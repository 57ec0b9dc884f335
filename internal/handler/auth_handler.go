package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/coursevault-api/internal/models"
	"github.com/noah-isme/coursevault-api/pkg/response"
)

type currentUserService interface {
	CurrentUser(ctx context.Context, claims *models.JWTClaims) (*models.User, error)
}

// AuthHandler exposes the identity behind the presented access token.
type AuthHandler struct {
	service currentUserService
}

// NewAuthHandler creates a new handler.
func NewAuthHandler(svc currentUserService) *AuthHandler {
	return &AuthHandler{service: svc}
}

// Me godoc
// @Summary Get current user
// @Description Returns the authenticated user's info
// @Tags Authentication
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}

	user, err := h.service.CurrentUser(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, models.UserInfo{
		ID:       user.ID,
		Email:    user.Email,
		FullName: user.FullName,
		Role:     user.Role,
	}, nil)
}
