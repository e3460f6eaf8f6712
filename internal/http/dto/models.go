package dto

import "parley.app/server/internal/catalog"

type ListModelsResponse struct {
	Models []catalog.ModelDescriptor `json:"models"`
}
