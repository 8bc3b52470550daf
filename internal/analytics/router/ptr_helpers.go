package router

import "strings"

// BigQuery row structs use pointers for nullable columns; these helpers keep
// the row builders readable.

func stringPtr(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func int64Ptr(value int64) *int64 {
	return &value
}
