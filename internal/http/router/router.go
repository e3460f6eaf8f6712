package router

import (
	"github.com/gin-gonic/gin"

	"parley.app/server/internal/http/handler"
	"parley.app/server/internal/http/middleware"
	"parley.app/server/internal/service"
)

type RouterConfig struct {
	JWTSecret string
	JWTIssuer string
}

func SetupRoutes(router *gin.Engine, services *service.Services, cfg RouterConfig) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")
	v1.Use(middleware.RequireAuth(cfg.JWTSecret, cfg.JWTIssuer))
	{
		chatHandler := handler.NewChatHandler(services.Chat)
		ChatRouter(v1.Group("/chats"), chatHandler)

		modelsHandler := handler.NewModelsHandler(services.Models)
		ModelsRouter(v1.Group("/models"), modelsHandler)
	}
}
