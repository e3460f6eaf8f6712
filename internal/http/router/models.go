package router

import (
	"github.com/gin-gonic/gin"

	"parley.app/server/internal/http/handler"
)

func ModelsRouter(router *gin.RouterGroup, handler *handler.ModelsHandler) {
	router.GET("", handler.List)
}
