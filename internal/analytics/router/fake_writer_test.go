package router

import (
	"context"

	"github.com/taskiq-ai/taskiq-backend/internal/analytics/types"
)

type fakeWriter struct {
	inserted []types.UsageEventRow
}

func (f *fakeWriter) InsertUsage(_ context.Context, row types.UsageEventRow) error {
	f.inserted = append(f.inserted, row)
	return nil
}
