package service

import (
	"context"
	"fmt"
	"net/url"

	"github.com/nutrifact/console/internal/backend"
	"github.com/nutrifact/console/internal/models"
)

// FoodsService passes nutrition lookups through to the data API using the
// caller's credentials (bearer token for the dashboard playground, API key
// for programmatic access).
type FoodsService interface {
	Search(ctx context.Context, creds backend.Credentials, query string, skip, limit int) ([]models.Food, backend.PageInfo, error)
	Get(ctx context.Context, creds backend.Credentials, foodID string) (*models.Food, error)
}

type foodsService struct {
	api *backend.Client
}

// NewFoodsService creates a foods passthrough service.
func NewFoodsService(api *backend.Client) FoodsService {
	return &foodsService{api: api}
}

func (s *foodsService) Search(ctx context.Context, creds backend.Credentials, query string, skip, limit int) ([]models.Food, backend.PageInfo, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	path := fmt.Sprintf("search/foods?q=%s&skip=%d&limit=%d", url.QueryEscape(query), skip, limit)

	var foods []models.Food
	info, err := s.api.GetPage(ctx, creds, path, &foods)
	if err != nil {
		return nil, backend.PageInfo{}, err
	}
	return foods, info, nil
}

func (s *foodsService) Get(ctx context.Context, creds backend.Credentials, foodID string) (*models.Food, error) {
	var food models.Food
	if err := s.api.Get(ctx, creds, "foods/"+foodID, &food); err != nil {
		return nil, err
	}
	return &food, nil
}
