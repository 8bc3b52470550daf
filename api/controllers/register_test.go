package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/google/uuid"

	"github.com/taskiq-ai/taskiq-backend/internal/auth"
	"github.com/taskiq-ai/taskiq-backend/internal/users"
	"github.com/taskiq-ai/taskiq-backend/pkg/enums"
	pkgerrors "github.com/taskiq-ai/taskiq-backend/pkg/errors"
)

type stubRegisterService struct {
	dto  *users.UserDTO
	err  error
	reqs []auth.RegisterRequest
}

func (s *stubRegisterService) Register(_ context.Context, req auth.RegisterRequest) (*users.UserDTO, error) {
	s.reqs = append(s.reqs, req)
	if s.err != nil {
		return nil, s.err
	}
	return s.dto, nil
}

func registerBody() auth.RegisterRequest {
	return auth.RegisterRequest{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     "ada@example.com",
		Password:  "correct-horse",
		AcceptTOS: true,
	}
}

func TestAuthRegister_Success(t *testing.T) {
	reg := &stubRegisterService{dto: &users.UserDTO{
		ID:    uuid.New(),
		Email: "ada@example.com",
		Role:  enums.UserRoleMember,
	}}
	svc := &stubAuthService{loginResp: loginResponseForRole(enums.UserRoleMember)}
	handler := AuthRegister(reg, svc, nil)

	rec := postJSON(t, handler, "/api/v1/auth/register", registerBody())
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if len(reg.reqs) != 1 || reg.reqs[0].Email != "ada@example.com" {
		t.Fatalf("expected one register call, got %+v", reg.reqs)
	}
	if len(svc.loginReqs) != 1 {
		t.Fatalf("expected auto-login after register, got %d calls", len(svc.loginReqs))
	}
	if svc.loginReqs[0].Email != "ada@example.com" || svc.loginReqs[0].Password != "correct-horse" {
		t.Fatalf("auto-login should reuse the registration credentials, got %+v", svc.loginReqs[0])
	}
	if got := rec.Header().Get("X-TIQ-Token"); got != svc.loginResp.AccessToken {
		t.Fatalf("expected access token header, got %q", got)
	}

	var envelope struct {
		Data auth.LoginResponse `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.RefreshToken != svc.loginResp.RefreshToken {
		t.Fatalf("expected token pair in body, got %+v", envelope.Data)
	}
}

func TestAuthRegister_InvalidBody(t *testing.T) {
	reg := &stubRegisterService{}
	svc := &stubAuthService{}
	handler := AuthRegister(reg, svc, nil)

	body := registerBody()
	body.Password = "short"
	rec := postJSON(t, handler, "/api/v1/auth/register", body)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d (%s)", rec.Code, rec.Body.String())
	}
	if len(reg.reqs) != 0 {
		t.Fatalf("register should not be called on invalid body")
	}
}

func TestAuthRegister_DuplicateEmail(t *testing.T) {
	reg := &stubRegisterService{err: pkgerrors.New(pkgerrors.CodeConflict, "email already registered")}
	svc := &stubAuthService{}
	handler := AuthRegister(reg, svc, nil)

	rec := postJSON(t, handler, "/api/v1/auth/register", registerBody())
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d (%s)", rec.Code, rec.Body.String())
	}
	if len(svc.loginReqs) != 0 {
		t.Fatalf("login should not run when registration fails")
	}
}

func TestAuthRegister_NilService(t *testing.T) {
	handler := AuthRegister(nil, nil, nil)

	rec := postJSON(t, handler, "/api/v1/auth/register", registerBody())
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}
