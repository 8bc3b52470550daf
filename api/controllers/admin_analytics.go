package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/taskiq-ai/taskiq-backend/api/responses"
	"github.com/taskiq-ai/taskiq-backend/internal/analytics"
	analyticstypes "github.com/taskiq-ai/taskiq-backend/internal/analytics/types"
	pkgerrors "github.com/taskiq-ai/taskiq-backend/pkg/errors"
	"github.com/taskiq-ai/taskiq-backend/pkg/logger"
)

const defaultAnalyticsWindow = 30 * 24 * time.Hour

// AdminUsageAnalytics returns usage KPIs aggregated from the analytics sink.
func AdminUsageAnalytics(svc analytics.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "analytics service unavailable"))
			return
		}

		end := time.Now().UTC()
		start := end.Add(-defaultAnalyticsWindow)

		var err error
		if raw := strings.TrimSpace(r.URL.Query().Get("start")); raw != "" {
			start, err = parseAnalyticsTime(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("end")); raw != "" {
			end, err = parseAnalyticsTime(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		result, err := svc.Query(r.Context(), analyticstypes.UsageQueryRequest{
			Start: start,
			End:   end,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func parseAnalyticsTime(raw string) (time.Time, error) {
	if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
		return parsed.UTC(), nil
	}
	if parsed, err := time.Parse("2006-01-02", raw); err == nil {
		return parsed.UTC(), nil
	}
	return time.Time{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid time format, expected RFC3339 or YYYY-MM-DD")
}
