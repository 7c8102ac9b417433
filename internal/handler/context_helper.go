package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/campushq/edu-portal-api/internal/middleware"
	"github.com/campushq/edu-portal-api/internal/models"
)

func requestMeta(c *gin.Context) models.RequestMeta {
	return models.RequestMeta{IP: c.ClientIP(), UserAgent: c.GetHeader("User-Agent")}
}

func actorID(c *gin.Context) string {
	if claims := middleware.ClaimsFromContext(c); claims != nil {
		return claims.UserID
	}
	return ""
}
