package router

import (
	"github.com/gin-gonic/gin"

	"parley.app/server/internal/http/handler"
)

func ChatRouter(router *gin.RouterGroup, handler *handler.ChatHandler) {
	router.POST("", handler.Create)
	router.GET("", handler.List)
	router.DELETE("/:id", handler.Delete)
	router.GET("/:id/messages", handler.GetMessages)
	router.POST("/:id/messages", handler.SendMessage)
}
