package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/coursevault-api/internal/middleware"
	"github.com/noah-isme/coursevault-api/internal/models"
	appErrors "github.com/noah-isme/coursevault-api/pkg/errors"
	"github.com/noah-isme/coursevault-api/pkg/response"
)

// requireClaims returns the caller's token claims. When the auth middleware
// left none behind it writes a 401 and reports false.
func requireClaims(c *gin.Context) (*models.JWTClaims, bool) {
	value, exists := c.Get(middleware.ContextUserKey)
	if exists {
		if claims, ok := value.(*models.JWTClaims); ok && claims != nil {
			return claims, true
		}
	}
	response.Error(c, appErrors.ErrUnauthorized)
	return nil, false
}
