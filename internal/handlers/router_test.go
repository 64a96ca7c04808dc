package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/olushako/vaulty/internal/config"
	"github.com/olushako/vaulty/internal/services"
	"github.com/olushako/vaulty/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const testMasterToken = "handler-test-master-token-000001"

var testKeyMaterial = []byte("0123456789abcdef0123456789abcdef")

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	s, err := store.NewBoltStore(filepath.Join(t.TempDir(), "vaulty.db"))
	if err != nil {
		t.Fatalf("NewBoltStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	tokens := services.NewTokenService(s)
	if err := tokens.Bootstrap(context.Background(), testMasterToken); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}

	cfg := &config.Config{}
	cfg.Server.RequestTimeout = 30 * time.Second

	return NewRouter(&Dependencies{
		Config:          cfg,
		Store:           s,
		Logger:          testLogger(),
		AuthService:     services.NewAuthService(s),
		TokenService:    tokens,
		ProjectService:  services.NewProjectService(s),
		SecretService:   services.NewSecretService(s, testKeyMaterial),
		DeviceService:   services.NewDeviceService(s, testKeyMaterial),
		ActivityService: services.NewActivityService(s, 7*24*time.Hour),
	})
}

// do performs a request against the router and decodes the JSON body.
func do(t *testing.T, router http.Handler, method, path, token string, body any) (*httptest.ResponseRecorder, map[string]json.RawMessage) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	decoded := map[string]json.RawMessage{}
	if w.Body.Len() > 0 {
		json.Unmarshal(w.Body.Bytes(), &decoded)
	}
	return w, decoded
}

func TestHealth_NoAuthRequired(t *testing.T) {
	router := newTestRouter(t)

	w, _ := do(t, router, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("health status = %d, want 200", w.Code)
	}
}

func TestAPI_RejectsMissingToken(t *testing.T) {
	router := newTestRouter(t)

	w, body := do(t, router, http.MethodGet, "/api/projects", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}

	var apiErr struct {
		Code string `json:"code"`
	}
	json.Unmarshal(body["error"], &apiErr)
	if apiErr.Code != "UNAUTHORIZED" {
		t.Fatalf("error code = %q, want UNAUTHORIZED", apiErr.Code)
	}
}

func TestAPI_RejectsUnknownToken(t *testing.T) {
	router := newTestRouter(t)

	w, _ := do(t, router, http.MethodGet, "/api/projects", "not-a-valid-token-aaaaaaaaaaaaaa", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestProjects_CreateAndGet(t *testing.T) {
	router := newTestRouter(t)

	w, body := do(t, router, http.MethodPost, "/api/projects", testMasterToken, map[string]any{
		"name":        "backend",
		"description": "backend services",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", w.Code, w.Body.String())
	}

	var project struct {
		Name string `json:"name"`
	}
	json.Unmarshal(body["data"], &project)
	if project.Name != "backend" {
		t.Fatalf("project name = %q", project.Name)
	}

	w, _ = do(t, router, http.MethodGet, "/api/projects/backend", testMasterToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}

	// Duplicate names conflict.
	w, _ = do(t, router, http.MethodPost, "/api/projects", testMasterToken, map[string]any{"name": "backend"})
	if w.Code != http.StatusConflict {
		t.Fatalf("duplicate status = %d, want 409", w.Code)
	}
}

func TestSecrets_RoundTripOverHTTP(t *testing.T) {
	router := newTestRouter(t)

	do(t, router, http.MethodPost, "/api/projects", testMasterToken, map[string]any{"name": "backend"})

	w, _ := do(t, router, http.MethodPut, "/api/projects/backend/secrets/API_KEY", testMasterToken, map[string]any{
		"value": "secret-value-xyz",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("set status = %d: %s", w.Code, w.Body.String())
	}

	w, body := do(t, router, http.MethodGet, "/api/projects/backend/secrets/API_KEY", testMasterToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	var secret struct {
		Value string `json:"value"`
	}
	json.Unmarshal(body["data"], &secret)
	if secret.Value != "secret-value-xyz" {
		t.Fatalf("value = %q", secret.Value)
	}

	w, _ = do(t, router, http.MethodDelete, "/api/projects/backend/secrets/API_KEY", testMasterToken, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", w.Code)
	}

	w, _ = do(t, router, http.MethodGet, "/api/projects/backend/secrets/API_KEY", testMasterToken, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("get after delete status = %d, want 404", w.Code)
	}
}

func TestSecrets_ImplicitProjectRoutes(t *testing.T) {
	router := newTestRouter(t)

	do(t, router, http.MethodPost, "/api/projects", testMasterToken, map[string]any{"name": "backend"})

	// Issue a project token.
	w, body := do(t, router, http.MethodPost, "/api/projects/backend/tokens", testMasterToken, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("create token status = %d: %s", w.Code, w.Body.String())
	}
	var created struct {
		Token string `json:"token"`
	}
	json.Unmarshal(body["data"], &created)
	if created.Token == "" {
		t.Fatal("expected raw token in creation response")
	}

	// The project token works against /api/secrets with no project in the path.
	w, _ = do(t, router, http.MethodPut, "/api/secrets/DB_URL", created.Token, map[string]any{"value": "postgres://"})
	if w.Code != http.StatusOK {
		t.Fatalf("implicit set status = %d: %s", w.Code, w.Body.String())
	}

	w, body = do(t, router, http.MethodGet, "/api/secrets/DB_URL", created.Token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("implicit get status = %d", w.Code)
	}
	var secret struct {
		Value string `json:"value"`
	}
	json.Unmarshal(body["data"], &secret)
	if secret.Value != "postgres://" {
		t.Fatalf("value = %q", secret.Value)
	}

	// Master tokens have no implicit project.
	w, _ = do(t, router, http.MethodGet, "/api/secrets", testMasterToken, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("master implicit status = %d, want 400", w.Code)
	}
}

func TestProjectToken_CannotTouchForeignProject(t *testing.T) {
	router := newTestRouter(t)

	do(t, router, http.MethodPost, "/api/projects", testMasterToken, map[string]any{"name": "backend"})
	do(t, router, http.MethodPost, "/api/projects", testMasterToken, map[string]any{"name": "frontend"})

	_, body := do(t, router, http.MethodPost, "/api/projects/backend/tokens", testMasterToken, nil)
	var created struct {
		Token string `json:"token"`
	}
	json.Unmarshal(body["data"], &created)

	w, _ := do(t, router, http.MethodGet, "/api/projects/frontend/secrets", created.Token, nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("foreign project status = %d, want 403", w.Code)
	}
}

func TestDevices_RegisterAuthorizeStatus(t *testing.T) {
	router := newTestRouter(t)

	do(t, router, http.MethodPost, "/api/projects", testMasterToken, map[string]any{"name": "backend"})

	w, body := do(t, router, http.MethodPost, "/api/projects/backend/devices", testMasterToken, map[string]any{
		"device_id":   "machine-1",
		"name":        "build-agent",
		"working_dir": "/srv/app",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("register status = %d: %s", w.Code, w.Body.String())
	}
	var registered struct {
		Token  string `json:"token"`
		Device struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"device"`
	}
	json.Unmarshal(body["data"], &registered)
	if registered.Device.Status != "pending" {
		t.Fatalf("status = %q, want pending", registered.Device.Status)
	}

	// A pending device token cannot use the API.
	w, _ = do(t, router, http.MethodGet, "/api/secrets", registered.Token, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("pending device API status = %d, want 401", w.Code)
	}

	// But it can poll its own approval status.
	w, body = do(t, router, http.MethodGet, "/api/devices/status?device_id=machine-1", registered.Token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status poll = %d: %s", w.Code, w.Body.String())
	}

	// Authorize and retry.
	path := fmt.Sprintf("/api/projects/backend/devices/%s/authorize", registered.Device.ID)
	w, _ = do(t, router, http.MethodPost, path, testMasterToken, map[string]any{"authorized_by": "admin"})
	if w.Code != http.StatusOK {
		t.Fatalf("authorize status = %d: %s", w.Code, w.Body.String())
	}

	w, _ = do(t, router, http.MethodGet, "/api/secrets", registered.Token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("authorized device list status = %d", w.Code)
	}

	// Devices read, never write.
	w, _ = do(t, router, http.MethodPut, "/api/secrets/NEW", registered.Token, map[string]any{"value": "v"})
	if w.Code != http.StatusForbidden {
		t.Fatalf("device write status = %d, want 403", w.Code)
	}
}

func TestDevices_DeleteRoute(t *testing.T) {
	router := newTestRouter(t)

	do(t, router, http.MethodPost, "/api/projects", testMasterToken, map[string]any{"name": "backend"})

	_, body := do(t, router, http.MethodPost, "/api/projects/backend/devices", testMasterToken, map[string]any{
		"device_id":   "machine-1",
		"working_dir": "/srv/app",
	})
	var registered struct {
		Device struct {
			ID string `json:"id"`
		} `json:"device"`
	}
	json.Unmarshal(body["data"], &registered)

	path := "/api/projects/backend/devices/" + registered.Device.ID
	w, _ := do(t, router, http.MethodDelete, path, testMasterToken, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d, want 204", w.Code)
	}

	w, _ = do(t, router, http.MethodGet, path, testMasterToken, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("get after delete status = %d, want 404", w.Code)
	}
}

func TestActivities_RecordedAndRedacted(t *testing.T) {
	router := newTestRouter(t)

	do(t, router, http.MethodPost, "/api/projects", testMasterToken, map[string]any{"name": "backend"})
	do(t, router, http.MethodPut, "/api/projects/backend/secrets/API_KEY", testMasterToken, map[string]any{
		"value": "super-secret-value",
	})
	do(t, router, http.MethodGet, "/api/projects/backend/secrets/API_KEY", testMasterToken, nil)

	w, body := do(t, router, http.MethodGet, "/api/activities", testMasterToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("activities status = %d", w.Code)
	}

	var page struct {
		Activities []struct {
			Action  string `json:"action"`
			Exposed bool   `json:"exposed_confidential_data"`
		} `json:"activities"`
		Total int `json:"total"`
	}
	json.Unmarshal(body["data"], &page)
	if page.Total < 3 {
		t.Fatalf("expected at least 3 recorded calls, got %d", page.Total)
	}

	// The raw request value must never appear in the stored log.
	if bytes.Contains(body["data"], []byte("super-secret-value")) {
		t.Fatal("plaintext secret leaked into the activity log")
	}

	// The secret read exposed the value in its response.
	var sawExposure bool
	for _, a := range page.Activities {
		if a.Action == "get_secret" && a.Exposed {
			sawExposure = true
		}
	}
	if !sawExposure {
		t.Fatal("expected the secret read to be flagged as an exposure")
	}
}

func TestActivities_CaptureMaskedHeadersAndClientIP(t *testing.T) {
	router := newTestRouter(t)

	do(t, router, http.MethodPost, "/api/projects", testMasterToken, map[string]any{"name": "backend"})

	w, body := do(t, router, http.MethodGet, "/api/activities", testMasterToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("activities status = %d", w.Code)
	}

	var page struct {
		Activities []struct {
			RequestHeaders map[string]string `json:"request_headers"`
			ClientIP       string            `json:"client_ip"`
		} `json:"activities"`
	}
	json.Unmarshal(body["data"], &page)
	if len(page.Activities) == 0 {
		t.Fatal("expected recorded activities")
	}

	a := page.Activities[0]
	authz := a.RequestHeaders["authorization"]
	if authz == "" {
		t.Fatal("expected the authorization header to be captured")
	}
	if strings.Contains(authz, testMasterToken) {
		t.Fatalf("raw bearer token persisted: %s", authz)
	}
	if !strings.HasPrefix(authz, "Bearer hand") || !strings.HasSuffix(authz, "0001") {
		t.Fatalf("expected first/last four of the token kept, got %s", authz)
	}
	if strings.Contains(a.ClientIP, ":") {
		t.Fatalf("client ip kept its port: %q", a.ClientIP)
	}
}

func TestMasterTokens_SelfRevocationRejected(t *testing.T) {
	router := newTestRouter(t)

	w, body := do(t, router, http.MethodGet, "/api/master-tokens", testMasterToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	var tokens []struct {
		ID string `json:"id"`
	}
	json.Unmarshal(body["data"], &tokens)
	if len(tokens) != 1 {
		t.Fatalf("expected 1 master token, got %d", len(tokens))
	}

	w, _ = do(t, router, http.MethodDelete, "/api/master-tokens/"+tokens[0].ID, testMasterToken, nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("self revoke status = %d, want 409", w.Code)
	}
}

func TestUnknownRoute_JSONEnvelope(t *testing.T) {
	router := newTestRouter(t)

	w, body := do(t, router, http.MethodGet, "/nope", "", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	var apiErr struct {
		Code string `json:"code"`
	}
	json.Unmarshal(body["error"], &apiErr)
	if apiErr.Code != "NOT_FOUND" {
		t.Fatalf("error code = %q", apiErr.Code)
	}
}
