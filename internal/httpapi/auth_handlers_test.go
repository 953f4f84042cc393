package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"

	"github.com/steinfletcher/apitest"

	"gatehouse.org/internal/audit"
)

func TestLoginSuccessPayload(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "a@x.com", "correct", "admin", true)

	req := httptest.NewRequest(http.MethodPost, "/v1/auth/login",
		strings.NewReader(`{"email":"a@x.com","password":"correct"}`))
	rr := httptest.NewRecorder()
	h.api.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(rr.Body.Bytes(), &raw); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, key := range []string{"accessToken", "tokenType", "expiresIn", "identity"} {
		if _, ok := raw[key]; !ok {
			t.Fatalf("response missing %q key: %s", key, rr.Body.String())
		}
	}
	var resp loginResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.AccessToken == "" || resp.TokenType != "bearer" {
		t.Fatalf("bad token payload: %+v", resp)
	}
	if resp.ExpiresIn <= 0 || resp.ExpiresIn > 3600 {
		t.Fatalf("expiresIn out of range: %d", resp.ExpiresIn)
	}
	if resp.Identity.Email != "a@x.com" || resp.Identity.Role != "admin" {
		t.Fatalf("bad identity payload: %+v", resp.Identity)
	}
	if !slices.Contains(resp.Identity.Permissions, "manage_users") {
		t.Fatalf("admin identity must list manage_users: %v", resp.Identity.Permissions)
	}
}

func TestLoginFailuresShareOneMessage(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "a@x.com", "correct", "admin", true)
	handler := h.api.Handler()

	body := `{"error":"invalid email or password"}`
	apitest.Handler(handler).
		Post("/v1/auth/login").
		JSON(`{"email":"nobody@x.com","password":"whatever"}`).
		Expect(t).
		Status(http.StatusUnauthorized).
		Body(body).
		End()
	apitest.Handler(handler).
		Post("/v1/auth/login").
		JSON(`{"email":"a@x.com","password":"wrong"}`).
		Expect(t).
		Status(http.StatusUnauthorized).
		Body(body).
		End()

	// Identical responses, distinct audit reasons.
	var reasons []string
	for _, rec := range h.sink.all() {
		if rec.Action == audit.ActionLoginFailed {
			reasons = append(reasons, rec.Metadata["reason"].(string))
		}
	}
	if len(reasons) != 2 || reasons[0] != "invalid_credentials" || reasons[1] != "invalid_password" {
		t.Fatalf("unexpected audit reasons: %v", reasons)
	}
}

func TestLoginInactiveAccountMessage(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "gone@x.com", "correct", "guard", false)

	apitest.Handler(h.api.Handler()).
		Post("/v1/auth/login").
		JSON(`{"email":"gone@x.com","password":"correct"}`).
		Expect(t).
		Status(http.StatusUnauthorized).
		Body(`{"error":"account inactive, contact administrator"}`).
		End()

	var found bool
	for _, rec := range h.sink.all() {
		if rec.Action == audit.ActionLoginFailed && rec.Metadata["reason"] == "user_inactive" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected a user_inactive audit record")
	}
}

func TestRegisterAndDuplicate(t *testing.T) {
	h := newHarness(t)
	handler := h.api.Handler()

	payload := `{"name":"New User","email":"new@x.com","password":"secret-password","roleId":2}`
	apitest.Handler(handler).
		Post("/v1/auth/register").
		JSON(payload).
		Expect(t).
		Status(http.StatusCreated).
		End()
	apitest.Handler(handler).
		Post("/v1/auth/register").
		JSON(payload).
		Expect(t).
		Status(http.StatusBadRequest).
		Body(`{"error":"email already registered"}`).
		End()
}

func TestLogoutRequiresToken(t *testing.T) {
	h := newHarness(t)
	acc := h.seed(t, "a@x.com", "correct", "admin", true)
	handler := h.api.Handler()

	apitest.Handler(handler).
		Post("/v1/auth/logout").
		Expect(t).
		Status(http.StatusUnauthorized).
		End()

	apitest.Handler(handler).
		Post("/v1/auth/logout").
		Header("Authorization", "Bearer "+h.token(t, acc)).
		Expect(t).
		Status(http.StatusOK).
		End()

	var logout *audit.Record
	for _, rec := range h.sink.all() {
		if rec.Action == audit.ActionLogout {
			logout = rec
		}
	}
	if logout == nil {
		t.Fatal("expected a logout audit record")
	}
	if logout.ActorID == nil || *logout.ActorID != acc.ID {
		t.Fatalf("logout actor = %v, want %d", logout.ActorID, acc.ID)
	}
}

func TestStatsRequiresPermission(t *testing.T) {
	h := newHarness(t)
	admin := h.seed(t, "a@x.com", "correct", "admin", true)
	aux := h.seed(t, "aux@x.com", "correct", "guard", true)
	handler := h.api.Handler()

	apitest.Handler(handler).
		Get("/v1/stats/visits").
		Header("Authorization", "Bearer "+h.token(t, admin)).
		Expect(t).
		Status(http.StatusOK).
		End()

	// Guards have no view_stats permission.
	apitest.Handler(handler).
		Get("/v1/stats/visits").
		Header("Authorization", "Bearer "+h.token(t, aux)).
		Expect(t).
		Status(http.StatusForbidden).
		End()

	apitest.Handler(handler).
		Get("/v1/stats/visits").
		Expect(t).
		Status(http.StatusUnauthorized).
		End()
}

func TestMethodNotAllowed(t *testing.T) {
	h := newHarness(t)
	apitest.Handler(h.api.Handler()).
		Get("/v1/auth/login").
		Expect(t).
		Status(http.StatusMethodNotAllowed).
		End()
}
