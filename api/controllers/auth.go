package controllers

import (
	"net/http"

	"github.com/taskiq-ai/taskiq-backend/api/responses"
	"github.com/taskiq-ai/taskiq-backend/api/validators"
	"github.com/taskiq-ai/taskiq-backend/internal/auth"
	"github.com/taskiq-ai/taskiq-backend/pkg/enums"
	pkgerrors "github.com/taskiq-ai/taskiq-backend/pkg/errors"
	"github.com/taskiq-ai/taskiq-backend/pkg/logger"
)

// login decodes credentials and runs the login flow, returning nil when a
// response has already been written.
func login(svc auth.Service, logg *logger.Logger, w http.ResponseWriter, r *http.Request) *auth.LoginResponse {
	if svc == nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "auth service unavailable"))
		return nil
	}
	var body auth.LoginRequest
	if err := validators.DecodeJSONBody(r, &body); err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return nil
	}
	result, err := svc.Login(r.Context(), body)
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return nil
	}
	return result
}

// AuthLogin wires the login endpoint into the HTTP layer.
func AuthLogin(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result := login(svc, logg, w, r)
		if result == nil {
			return
		}
		w.Header().Set("X-TIQ-Token", result.AccessToken)
		responses.WriteSuccess(w, result)
	}
}

// AdminAuthLogin authenticates like AuthLogin but only lets admins through.
// Credentials are verified before the role check so the response does not
// leak which accounts are admins.
func AdminAuthLogin(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result := login(svc, logg, w, r)
		if result == nil {
			return
		}
		if result.User == nil || result.User.Role != enums.UserRoleAdmin {
			// Tear the freshly minted session back down before rejecting.
			if err := svc.Logout(r.Context(), result.AccessToken); err != nil && logg != nil {
				logg.Error(r.Context(), "revoke non-admin session", err)
			}
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "admin access required"))
			return
		}
		w.Header().Set("X-TIQ-Token", result.AccessToken)
		responses.WriteSuccess(w, result)
	}
}
