package service

import (
	"context"

	"parley.app/server/internal/catalog"
)

// ModelService exposes the provider model catalog to the transport layer.
type ModelService interface {
	ListModels(ctx context.Context) []catalog.ModelDescriptor
}

type modelService struct {
	registry *catalog.Registry
}

func NewModelService(registry *catalog.Registry) ModelService {
	return &modelService{registry: registry}
}

func (s *modelService) ListModels(ctx context.Context) []catalog.ModelDescriptor {
	return s.registry.ListAvailableModels(ctx)
}
