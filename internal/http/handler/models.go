package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"parley.app/server/internal/http/dto"
	"parley.app/server/internal/service"
)

type ModelsHandler struct {
	modelService service.ModelService
}

func NewModelsHandler(modelService service.ModelService) *ModelsHandler {
	return &ModelsHandler{modelService: modelService}
}

func (h *ModelsHandler) List(c *gin.Context) {
	models := h.modelService.ListModels(c.Request.Context())
	c.JSON(http.StatusOK, dto.ListModelsResponse{Models: models})
}
