package analytics

import (
	"context"
	"fmt"

	"github.com/taskiq-ai/taskiq-backend/internal/analytics/query"
	"github.com/taskiq-ai/taskiq-backend/internal/analytics/types"
	"github.com/taskiq-ai/taskiq-backend/pkg/bigquery"
)

// Service provides analytics reports based on usage events.
type Service interface {
	// Query returns usage KPIs for the provided request.
	Query(ctx context.Context, req types.UsageQueryRequest) (*types.UsageQueryResponse, error)
}

type service struct {
	usage query.UsageService
}

// NewService builds an analytics service backed by BigQuery.
func NewService(client *bigquery.Client, project, dataset, table string) (Service, error) {
	if client == nil {
		return nil, fmt.Errorf("bigquery client required")
	}

	usage, err := query.NewUsageService(client, project, dataset, table)
	if err != nil {
		return nil, err
	}

	return &service{usage: usage}, nil
}

func (s *service) Query(ctx context.Context, req types.UsageQueryRequest) (*types.UsageQueryResponse, error) {
	return s.usage.Query(ctx, req)
}
