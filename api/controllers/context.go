package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/taskiq-ai/taskiq-backend/api/middleware"
	pkgerrors "github.com/taskiq-ai/taskiq-backend/pkg/errors"
)

// authedUserID pulls the authenticated user's id out of the request context.
// The auth middleware guarantees it is present on protected routes; a missing
// or malformed value means the route was wired without that middleware.
func authedUserID(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing user context")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user context")
	}
	return id, nil
}
