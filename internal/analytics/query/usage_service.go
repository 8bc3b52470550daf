package query

import (
	"context"
	"fmt"

	cloudbigquery "cloud.google.com/go/bigquery"
	"github.com/taskiq-ai/taskiq-backend/internal/analytics/types"
	"github.com/taskiq-ai/taskiq-backend/pkg/bigquery"
	pkgerrors "github.com/taskiq-ai/taskiq-backend/pkg/errors"
	"google.golang.org/api/iterator"
)

const (
	timeSeriesConsumedSQL = `
SELECT
  FORMAT_DATE('%%F', DATE_TRUNC(occurred_at, DAY)) AS day,
  SUM(COALESCE(amount, 0)) AS value
FROM %s
WHERE event_type = 'credit_consumed'
  AND occurred_at BETWEEN @start AND @end
GROUP BY day
ORDER BY day ASC
`

	timeSeriesActiveUsersSQL = `
SELECT
  FORMAT_DATE('%%F', DATE_TRUNC(occurred_at, DAY)) AS day,
  COUNT(DISTINCT user_id) AS value
FROM %s
WHERE event_type = 'credit_consumed'
  AND user_id IS NOT NULL
  AND occurred_at BETWEEN @start AND @end
GROUP BY day
ORDER BY day ASC
`

	topConsumersSQL = `
SELECT user_id AS label, SUM(COALESCE(amount, 0)) AS value
FROM %s
WHERE event_type = 'credit_consumed'
  AND user_id IS NOT NULL
  AND occurred_at BETWEEN @start AND @end
GROUP BY user_id
ORDER BY value DESC
LIMIT 5
`

	claimsByOfferSQL = `
SELECT offer_id AS label, COUNT(*) AS value
FROM %s
WHERE event_type = 'offer_claimed'
  AND offer_id IS NOT NULL
  AND occurred_at BETWEEN @start AND @end
GROUP BY offer_id
ORDER BY value DESC
LIMIT 5
`

	totalConsumedSQL = `
SELECT SUM(COALESCE(amount, 0)) AS value
FROM %s
WHERE event_type = 'credit_consumed'
  AND occurred_at BETWEEN @start AND @end
`
)

// UsageService provides dashboard data from BigQuery usage_events.
type UsageService interface {
	Query(ctx context.Context, req types.UsageQueryRequest) (*types.UsageQueryResponse, error)
}

type usageService struct {
	client   *bigquery.Client
	tableRef string
}

// NewUsageService builds a service backed by BigQuery.
func NewUsageService(client *bigquery.Client, project, dataset, table string) (UsageService, error) {
	if client == nil {
		return nil, fmt.Errorf("bigquery client required")
	}
	if project == "" || dataset == "" || table == "" {
		return nil, fmt.Errorf("project, dataset, and table are required")
	}
	return &usageService{
		client:   client,
		tableRef: fmt.Sprintf("`%s.%s.%s`", project, dataset, table),
	}, nil
}

func (s *usageService) Query(ctx context.Context, req types.UsageQueryRequest) (*types.UsageQueryResponse, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	params := s.baseParams(req)

	consumed, err := s.querySeries(ctx, fmt.Sprintf(timeSeriesConsumedSQL, s.tableRef), params)
	if err != nil {
		return nil, err
	}
	activeUsers, err := s.querySeries(ctx, fmt.Sprintf(timeSeriesActiveUsersSQL, s.tableRef), params)
	if err != nil {
		return nil, err
	}

	topConsumers, err := s.queryTopLabels(ctx, fmt.Sprintf(topConsumersSQL, s.tableRef), params)
	if err != nil {
		return nil, err
	}
	claimsByOffer, err := s.queryTopLabels(ctx, fmt.Sprintf(claimsByOfferSQL, s.tableRef), params)
	if err != nil {
		return nil, err
	}

	totalConsumed, err := s.queryTotal(ctx, fmt.Sprintf(totalConsumedSQL, s.tableRef), params)
	if err != nil {
		return nil, err
	}

	return &types.UsageQueryResponse{
		ConsumedSeries: consumed,
		ActiveUsers:    activeUsers,
		TopConsumers:   topConsumers,
		ClaimsByOffer:  claimsByOffer,
		TotalConsumed:  totalConsumed,
	}, nil
}

func validateRequest(req types.UsageQueryRequest) error {
	if req.Start.IsZero() || req.End.IsZero() {
		return pkgerrors.New(pkgerrors.CodeValidation, "start and end are required")
	}
	if req.End.Before(req.Start) {
		return pkgerrors.New(pkgerrors.CodeValidation, "end must be after start")
	}
	return nil
}

func (s *usageService) baseParams(req types.UsageQueryRequest) []cloudbigquery.QueryParameter {
	return []cloudbigquery.QueryParameter{
		{Name: "start", Value: req.Start},
		{Name: "end", Value: req.End},
	}
}

func (s *usageService) querySeries(ctx context.Context, sql string, params []cloudbigquery.QueryParameter) ([]types.TimeSeriesPoint, error) {
	iter, err := s.client.Query(ctx, sql, params)
	if err != nil {
		return nil, fmt.Errorf("query series: %w", err)
	}

	var points []types.TimeSeriesPoint
	for {
		var row struct {
			Day   string `bigquery:"day"`
			Value int64  `bigquery:"value"`
		}
		if err := iter.Next(&row); err != nil {
			if err == iterator.Done {
				break
			}
			return nil, fmt.Errorf("reading series row: %w", err)
		}
		points = append(points, types.TimeSeriesPoint{Date: row.Day, Value: row.Value})
	}
	return points, nil
}

func (s *usageService) queryTopLabels(ctx context.Context, sql string, params []cloudbigquery.QueryParameter) ([]types.LabelValue, error) {
	iter, err := s.client.Query(ctx, sql, params)
	if err != nil {
		return nil, fmt.Errorf("query top labels: %w", err)
	}

	var result []types.LabelValue
	for {
		var row struct {
			Label string `bigquery:"label"`
			Value int64  `bigquery:"value"`
		}
		if err := iter.Next(&row); err != nil {
			if err == iterator.Done {
				break
			}
			return nil, fmt.Errorf("reading top label row: %w", err)
		}
		result = append(result, types.LabelValue{Label: row.Label, Value: row.Value})
	}
	return result, nil
}

func (s *usageService) queryTotal(ctx context.Context, sql string, params []cloudbigquery.QueryParameter) (int64, error) {
	iter, err := s.client.Query(ctx, sql, params)
	if err != nil {
		return 0, fmt.Errorf("query total: %w", err)
	}
	var row struct {
		Value cloudbigquery.NullInt64 `bigquery:"value"`
	}
	if err := iter.Next(&row); err != nil {
		if err == iterator.Done {
			return 0, nil
		}
		return 0, fmt.Errorf("reading total row: %w", err)
	}
	if !row.Value.Valid {
		return 0, nil
	}
	return row.Value.Int64, nil
}
