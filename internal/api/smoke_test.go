// Package api_test runs HTTP-level smoke tests using net/http/httptest.
// These tests do NOT require a PostgreSQL database — they verify:
//   - Gin router routing and middleware wiring
//   - Request validation error responses (400)
//   - Signature-auth middleware (400 without the signature fields, 401 with a bad signature)
//   - Response envelope format (success/error)
//   - CORS preflight handling
package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mitra-labs/predcore/internal/api"
	"github.com/mitra-labs/predcore/internal/auth"
	"github.com/mitra-labs/predcore/internal/config"
)

// ── Test helpers ──────────────────────────────────────────────────────────────

func testCfg() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Env:  "development",
			Port: "8080",
		},
	}
}

// buildTestRouter creates a Gin engine with a real Verifier (no DB needed
// for signature verification) and nil for everything that requires a DB.
func buildTestRouter(t *testing.T) http.Handler {
	t.Helper()
	cfg := testCfg()
	verifier := auth.NewVerifier(false) // real verification, not dev-mode bypass

	return api.SetupRouter(api.RouterDeps{
		Verifier:   verifier,
		Groups:     nil,
		Events:     nil,
		Betting:    nil,
		Settlement: nil,
		Reports:    nil,
		Committer:  nil,
		Audit:      nil,
		Hub:        nil,
		Cfg:        cfg,
	})
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var buf *bytes.Buffer
	if body != "" {
		buf = bytes.NewBufferString(body)
	} else {
		buf = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&m); err != nil {
		t.Fatalf("response is not valid JSON: %v — body: %s", err, rr.Body.String())
	}
	return m
}

// ── /health ───────────────────────────────────────────────────────────────────

func TestHealthEndpoint(t *testing.T) {
	h := buildTestRouter(t)
	rr := do(t, h, http.MethodGet, "/health", "")
	if rr.Code != http.StatusOK {
		t.Errorf("GET /health = %d, want 200", rr.Code)
	}
}

// ── Signature middleware — missing envelope fields ────────────────────────────

func TestCreateGroup_MissingSignatureFields(t *testing.T) {
	h := buildTestRouter(t)
	rr := do(t, h, http.MethodPost, "/api/groups", `{"name":"friends"}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("POST /api/groups without wallet/signature/timestamp = %d, want 400", rr.Code)
	}
}

func TestPlaceBet_MissingSignatureFields(t *testing.T) {
	h := buildTestRouter(t)
	rr := do(t, h, http.MethodPost, "/api/events/11111111-1111-1111-1111-111111111111/bets", `{}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("POST .../bets empty body = %d, want 400", rr.Code)
	}
}

// ── Signature middleware — well-formed but unverifiable signature → 401 ──────

func TestCreateGroup_InvalidSignature_Returns401(t *testing.T) {
	h := buildTestRouter(t)
	payload := `{"wallet":"not-a-real-wallet","timestamp":9999999999,"signature":"bogus","name":"friends"}`
	rr := do(t, h, http.MethodPost, "/api/groups", payload)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("POST /api/groups with bogus signature = %d, want 401", rr.Code)
	}
}

func TestSettleEvent_InvalidSignature_Returns401(t *testing.T) {
	h := buildTestRouter(t)
	payload := `{"wallet":"not-a-real-wallet","timestamp":9999999999,"signature":"bogus","winning_outcome":"yes"}`
	rr := do(t, h, http.MethodPost, "/api/events/11111111-1111-1111-1111-111111111111/settle", payload)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("POST .../settle with bogus signature = %d, want 401", rr.Code)
	}
}

// ── Public read endpoints — no signature required ─────────────────────────────

func TestGetEventPrices_IsPublic(t *testing.T) {
	h := buildTestRouter(t)
	// No signature envelope at all: should NOT be 401. Will be 500 (nil
	// EventService) since there's nothing behind it in this test — that's
	// acceptable, the point is the route isn't gated by signature auth.
	rr := do(t, h, http.MethodGet, "/api/events/11111111-1111-1111-1111-111111111111/prices", "")
	if rr.Code == http.StatusUnauthorized {
		t.Error("GET /api/events/:id/prices should be a public endpoint (no 401)")
	}
}

func TestListMyGroups_IsPublic(t *testing.T) {
	h := buildTestRouter(t)
	rr := do(t, h, http.MethodGet, "/api/groups/mine?wallet=abc", "")
	if rr.Code == http.StatusUnauthorized {
		t.Error("GET /api/groups/mine should be a public, query-param-authenticated read")
	}
}

// ── Error envelope format ─────────────────────────────────────────────────────

func TestErrorEnvelope_HasRequiredFields(t *testing.T) {
	h := buildTestRouter(t)
	rr := do(t, h, http.MethodPost, "/api/groups", `{}`)
	body := decodeBody(t, rr)

	for _, field := range []string{"success", "error", "code"} {
		if _, ok := body[field]; !ok {
			t.Errorf("error envelope missing field %q, got: %v", field, body)
		}
	}
	if body["success"] != false {
		t.Errorf("error envelope.success = %v, want false", body["success"])
	}
}

// ── CORS headers ──────────────────────────────────────────────────────────────

func TestCORSOptionsRequest(t *testing.T) {
	h := buildTestRouter(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/groups", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Errorf("OPTIONS /api/groups = %d, want 204", rr.Code)
	}
	allow := rr.Header().Get("Access-Control-Allow-Methods")
	if !strings.Contains(allow, "POST") {
		t.Errorf("Access-Control-Allow-Methods missing POST, got %q", allow)
	}
}

func TestCORSAllowOrigin_Dev(t *testing.T) {
	h := buildTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	origin := rr.Header().Get("Access-Control-Allow-Origin")
	if origin != "*" {
		t.Errorf("Dev CORS origin = %q, want *", origin)
	}
}
