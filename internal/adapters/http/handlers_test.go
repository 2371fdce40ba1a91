package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/justinzzc/vision-box/internal/adapters/detector"
	"github.com/justinzzc/vision-box/internal/adapters/memory"
	"github.com/justinzzc/vision-box/internal/adapters/security"
	"github.com/justinzzc/vision-box/internal/adapters/storage"
	"github.com/justinzzc/vision-box/internal/application"
	"github.com/justinzzc/vision-box/internal/ports"
)

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Code    string          `json:"code"`
	Data    json.RawMessage `json:"data"`
}

func newTestRouter(t *testing.T) (http.Handler, *security.JWTSigner) {
	t.Helper()
	repos := memory.NewRepositories()
	vault, err := security.NewHMACVault("test-pepper")
	if err != nil {
		t.Fatalf("init vault: %v", err)
	}
	signer, err := security.NewJWTSigner("test-signing-key", "vision-box")
	if err != nil {
		t.Fatalf("init signer: %v", err)
	}
	service := application.NewService(application.Dependencies{
		Config:   application.Config{ServiceName: "vision-box-test"},
		Tasks:    repos.Tasks,
		Services: repos.Services,
		Tokens:   repos.Tokens,
		Usage:    repos.Usage,
		Queue:    memory.NewTaskQueue(),
		Detector: detector.NewStubDetector(),
		Files:    storage.NewMemoryStore(),
		Limiter:  memory.NewRateLimiter(),
		Vault:    vault,
	})
	return NewRouter(NewHandler(service, signer, nil)), signer
}

func ownerBearer(t *testing.T, signer *security.JWTSigner, ownerID string) string {
	t.Helper()
	now := time.Now().UTC()
	raw, err := signer.Sign(ports.OwnerClaims{
		OwnerID:   ownerID,
		Role:      "user",
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("sign owner token: %v", err)
	}
	return "Bearer " + raw
}

func doJSON(t *testing.T, router http.Handler, method, target, bearer string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", bearer)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("%s %s: decode envelope from %q: %v", method, target, rec.Body.String(), err)
	}
	return rec, env
}

func TestHealthEndpoints(t *testing.T) {
	router, _ := newTestRouter(t)

	rec, env := doJSON(t, router, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK || env.Status != "success" {
		t.Fatalf("healthz: code=%d status=%q", rec.Code, env.Status)
	}
	rec, _ = doJSON(t, router, http.MethodGet, "/readyz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("readyz: code=%d", rec.Code)
	}
}

func TestListModels(t *testing.T) {
	router, _ := newTestRouter(t)
	rec, env := doJSON(t, router, http.MethodGet, "/api/v1/models", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("models: code=%d", rec.Code)
	}
	var data struct {
		Models []struct {
			Name    string `json:"name"`
			Default bool   `json:"default"`
		} `json:"models"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decode models: %v", err)
	}
	if len(data.Models) == 0 {
		t.Fatalf("expected at least one model")
	}
	var hasDefault bool
	for _, m := range data.Models {
		hasDefault = hasDefault || m.Default
	}
	if !hasDefault {
		t.Fatalf("expected a default model in the listing")
	}
}

func TestOwnerRoutesRequireBearer(t *testing.T) {
	router, _ := newTestRouter(t)
	rec, env := doJSON(t, router, http.MethodGet, "/api/v1/tasks", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if env.Status != "error" {
		t.Fatalf("expected error envelope, got %q", env.Status)
	}

	rec, _ = doJSON(t, router, http.MethodGet, "/api/v1/tasks", "Bearer not-a-jwt", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("garbage bearer: expected 401, got %d", rec.Code)
	}
}

func TestSubmitAndPollTask(t *testing.T) {
	router, signer := newTestRouter(t)
	bearer := ownerBearer(t, signer, "owner-1")

	rec, env := doJSON(t, router, http.MethodPost, "/api/v1/tasks", bearer, map[string]any{
		"file_reference": "2026/08/01/clip.jpg",
	})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("submit: code=%d body=%s", rec.Code, rec.Body.String())
	}
	var task struct {
		TaskID string `json:"task_id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(env.Data, &task); err != nil {
		t.Fatalf("decode task: %v", err)
	}
	if task.Status != "pending" {
		t.Fatalf("expected pending task, got %q", task.Status)
	}

	rec, _ = doJSON(t, router, http.MethodGet, "/api/v1/tasks/"+task.TaskID, bearer, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("poll: code=%d", rec.Code)
	}

	// Another owner cannot read it.
	rec, _ = doJSON(t, router, http.MethodGet, "/api/v1/tasks/"+task.TaskID, ownerBearer(t, signer, "owner-2"), nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("foreign poll: expected 403, got %d", rec.Code)
	}
}

func TestSubmitTaskRejectsUnknownField(t *testing.T) {
	router, signer := newTestRouter(t)
	rec, _ := doJSON(t, router, http.MethodPost, "/api/v1/tasks", ownerBearer(t, signer, "owner-1"), map[string]any{
		"file_reference": "clip.jpg",
		"confidense":     0.5,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", rec.Code)
	}
}

func createServiceViaAPI(t *testing.T, router http.Handler, bearer string, body map[string]any) string {
	t.Helper()
	if body == nil {
		body = map[string]any{}
	}
	if _, ok := body["service_name"]; !ok {
		body["service_name"] = "street-cam"
	}
	rec, env := doJSON(t, router, http.MethodPost, "/api/v1/services", bearer, body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create service: code=%d body=%s", rec.Code, rec.Body.String())
	}
	var svc struct {
		ServiceID string `json:"service_id"`
	}
	if err := json.Unmarshal(env.Data, &svc); err != nil {
		t.Fatalf("decode service: %v", err)
	}
	return svc.ServiceID
}

func issueTokenViaAPI(t *testing.T, router http.Handler, bearer, serviceID string) string {
	t.Helper()
	rec, env := doJSON(t, router, http.MethodPost, "/api/v1/services/"+serviceID+"/tokens", bearer, map[string]any{
		"display_name": "default",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("issue token: code=%d body=%s", rec.Code, rec.Body.String())
	}
	var token struct {
		Secret string `json:"secret"`
	}
	if err := json.Unmarshal(env.Data, &token); err != nil {
		t.Fatalf("decode token: %v", err)
	}
	if token.Secret == "" {
		t.Fatalf("expected the raw secret in the issue response")
	}
	return token.Secret
}

func detectRequest(t *testing.T, serviceID, secret string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	part, err := form.CreateFormFile("file", "frame.jpg")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte("fake image bytes")); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := form.Close(); err != nil {
		t.Fatalf("close form: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/services/"+serviceID+"/detect", &buf)
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+secret)
	return req
}

func TestGatewayDetectEndToEnd(t *testing.T) {
	router, signer := newTestRouter(t)
	bearer := ownerBearer(t, signer, "owner-1")
	serviceID := createServiceViaAPI(t, router, bearer, nil)
	secret := issueTokenViaAPI(t, router, bearer, serviceID)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, detectRequest(t, serviceID, secret))
	if rec.Code != http.StatusOK {
		t.Fatalf("detect: code=%d body=%s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-RateLimit-Limit") == "" {
		t.Fatalf("expected rate headers on success")
	}
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	var result struct {
		RequestID string `json:"request_id"`
		Result    struct {
			Detections []json.RawMessage `json:"detections"`
		} `json:"result"`
	}
	if err := json.Unmarshal(env.Data, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.RequestID == "" || len(result.Result.Detections) == 0 {
		t.Fatalf("unexpected detect payload: %s", env.Data)
	}

	// A bad secret gets the same 401 regardless of why it is bad.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, detectRequest(t, serviceID, "vb_"+strings.Repeat("0", 64)))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad secret: expected 401, got %d", rec.Code)
	}
}

func TestGatewayDetectRateLimitHeaders(t *testing.T) {
	router, signer := newTestRouter(t)
	bearer := ownerBearer(t, signer, "owner-1")
	serviceID := createServiceViaAPI(t, router, bearer, map[string]any{
		"service_name":          "throttled-cam",
		"rate_limit_per_minute": 1,
	})
	secret := issueTokenViaAPI(t, router, bearer, serviceID)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, detectRequest(t, serviceID, secret))
	if rec.Code != http.StatusOK {
		t.Fatalf("first call: code=%d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, detectRequest(t, serviceID, secret))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second call: expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After on 429")
	}
	if rec.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Fatalf("expected zero remaining, got %q", rec.Header().Get("X-RateLimit-Remaining"))
	}
}

func TestServiceInfoIsPublicAndRedacted(t *testing.T) {
	router, signer := newTestRouter(t)
	bearer := ownerBearer(t, signer, "owner-1")
	serviceID := createServiceViaAPI(t, router, bearer, nil)

	rec, env := doJSON(t, router, http.MethodGet, fmt.Sprintf("/api/v1/services/%s/info", serviceID), "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("info: code=%d", rec.Code)
	}
	if strings.Contains(string(env.Data), "owner_id") {
		t.Fatalf("public info must not leak owner identity: %s", env.Data)
	}
	var info struct {
		ServiceName string `json:"service_name"`
		Status      string `json:"status"`
	}
	if err := json.Unmarshal(env.Data, &info); err != nil {
		t.Fatalf("decode info: %v", err)
	}
	if info.ServiceName != "street-cam" || info.Status != "active" {
		t.Fatalf("unexpected info: %+v", info)
	}

	rec, env = doJSON(t, router, http.MethodGet, fmt.Sprintf("/api/v1/services/%s/health", serviceID), "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("health: code=%d", rec.Code)
	}
	var health struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(env.Data, &health); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if health.Status != "healthy" {
		t.Fatalf("expected healthy, got %q", health.Status)
	}

	rec, _ = doJSON(t, router, http.MethodGet, "/api/v1/services/nope/health", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown service health: expected 404, got %d", rec.Code)
	}
}

func TestRequestIDPropagates(t *testing.T) {
	router, _ := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-Id", "req-fixed-123")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-Id"); got != "req-fixed-123" {
		t.Fatalf("expected request id echo, got %q", got)
	}
}
