package server_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/sarvbloom/sarv-api/internal/config"
	"github.com/sarvbloom/sarv-api/internal/logging"
	"github.com/sarvbloom/sarv-api/internal/server"
)

const testPhone = "09170000000"

func testConfig() config.Config {
	return config.Config{
		AppName:       "sarv-api-test",
		AppEnv:        "development",
		AccessSecret:  "access-secret",
		RefreshSecret: "refresh-secret",
		AccessTTL:     time.Hour,
		RefreshTTL:    24 * time.Hour,
		OTPTTL:        2 * time.Minute,
		OTPPerMinute:  5,
	}
}

// newTestServer wires the full application with in-memory stores.
func newTestServer(t *testing.T) *fiber.App {
	t.Helper()
	srv, err := server.New(testConfig(), nil, nil, logging.Discard())
	if err != nil {
		t.Fatalf("server.New: %v", err)
	}
	return srv.App()
}

func doJSON(t *testing.T, app *fiber.App, method, path, token string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	var payload map[string]any
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &payload); err != nil {
			t.Fatalf("decode %s %s body %q: %v", method, path, raw, err)
		}
	}
	return resp, payload
}

func stringField(t *testing.T, payload map[string]any, key string) string {
	t.Helper()
	v, ok := payload[key].(string)
	if !ok || v == "" {
		t.Fatalf("missing %q in %v", key, payload)
	}
	return v
}

// loginFlow runs send-otp followed by check-otp and returns the token pair.
// Development mode echoes the generated code in the send-otp response, so the
// flow is drivable through HTTP alone.
func loginFlow(t *testing.T, app *fiber.App, phone string) (access, refresh string) {
	t.Helper()
	resp, payload := doJSON(t, app, fiber.MethodPost, "/api/v1/auth/send-otp", "", fiber.Map{"phone": phone})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("send-otp: expected 200, got %d (%v)", resp.StatusCode, payload)
	}
	code := stringField(t, payload, "code")

	resp, payload = doJSON(t, app, fiber.MethodPost, "/api/v1/auth/check-otp", "", fiber.Map{"phone": phone, "code": code})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("check-otp: expected 200, got %d (%v)", resp.StatusCode, payload)
	}
	return stringField(t, payload, "accessToken"), stringField(t, payload, "refreshToken")
}

func TestOTPLoginAndLogout(t *testing.T) {
	app := newTestServer(t)

	// Unknown phone does not exist yet.
	resp, payload := doJSON(t, app, fiber.MethodPost, "/api/v1/auth/exists", "", fiber.Map{"phone": testPhone})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("exists: expected 200, got %d", resp.StatusCode)
	}
	if exists, _ := payload["exists"].(bool); exists {
		t.Fatal("expected phone to be unregistered")
	}

	access, _ := loginFlow(t, app, testPhone)

	// The access token reaches the profile.
	resp, payload = doJSON(t, app, fiber.MethodGet, "/api/v1/user/me", access, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("me: expected 200, got %d (%v)", resp.StatusCode, payload)
	}
	if got := stringField(t, payload, "phone"); got != testPhone {
		t.Fatalf("expected phone %q, got %q", testPhone, got)
	}

	// Logout invalidates the pair even though the signature stays valid.
	resp, _ = doJSON(t, app, fiber.MethodGet, "/api/v1/auth/logout", access, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("logout: expected 200, got %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, app, fiber.MethodGet, "/api/v1/user/me", access, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("post-logout: expected 401, got %d", resp.StatusCode)
	}

	// The account survives the logout.
	resp, payload = doJSON(t, app, fiber.MethodPost, "/api/v1/auth/exists", "", fiber.Map{"phone": testPhone})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("exists: expected 200, got %d", resp.StatusCode)
	}
	if exists, _ := payload["exists"].(bool); !exists {
		t.Fatal("expected phone to be registered after first login")
	}
}

func TestSendOTPWhilePending(t *testing.T) {
	app := newTestServer(t)

	resp, _ := doJSON(t, app, fiber.MethodPost, "/api/v1/auth/send-otp", "", fiber.Map{"phone": testPhone})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("first send-otp: expected 200, got %d", resp.StatusCode)
	}

	resp, payload := doJSON(t, app, fiber.MethodPost, "/api/v1/auth/send-otp", "", fiber.Map{"phone": testPhone})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("second send-otp: expected 409, got %d", resp.StatusCode)
	}
	assertFailureBody(t, payload, http.StatusConflict)
}

func TestCheckOTPWrongCode(t *testing.T) {
	app := newTestServer(t)

	resp, _ := doJSON(t, app, fiber.MethodPost, "/api/v1/auth/send-otp", "", fiber.Map{"phone": testPhone})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("send-otp: expected 200, got %d", resp.StatusCode)
	}

	resp, payload := doJSON(t, app, fiber.MethodPost, "/api/v1/auth/check-otp", "", fiber.Map{"phone": testPhone, "code": "00000"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("wrong code: expected 401, got %d", resp.StatusCode)
	}
	assertFailureBody(t, payload, http.StatusUnauthorized)
}

func TestRefreshRotation(t *testing.T) {
	app := newTestServer(t)
	_, refresh := loginFlow(t, app, testPhone)

	// Tokens signed within the same second are byte-identical; wait so the
	// rotated pair is distinguishable.
	time.Sleep(time.Second)

	resp, payload := doJSON(t, app, fiber.MethodPost, "/api/v1/auth/refresh", "", fiber.Map{"refreshToken": refresh})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("refresh: expected 200, got %d (%v)", resp.StatusCode, payload)
	}
	rotated := stringField(t, payload, "refreshToken")
	if rotated == refresh {
		t.Fatal("expected refresh token to rotate")
	}

	// The superseded token is no longer accepted.
	resp, payload = doJSON(t, app, fiber.MethodPost, "/api/v1/auth/refresh", "", fiber.Map{"refreshToken": refresh})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("stale refresh: expected 401, got %d", resp.StatusCode)
	}
	assertFailureBody(t, payload, http.StatusUnauthorized)

	resp, _ = doJSON(t, app, fiber.MethodPost, "/api/v1/auth/refresh", "", fiber.Map{"refreshToken": rotated})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("rotated refresh: expected 200, got %d", resp.StatusCode)
	}
}

func TestPersianDigitsNormalized(t *testing.T) {
	app := newTestServer(t)

	resp, payload := doJSON(t, app, fiber.MethodPost, "/api/v1/auth/send-otp", "", fiber.Map{"phone": "۰۹۱۷۰۰۰۰۰۰۰"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("send-otp: expected 200, got %d (%v)", resp.StatusCode, payload)
	}

	// The same phone written in ASCII digits hits the pending-challenge guard,
	// proving both spellings map to one account.
	resp, _ = doJSON(t, app, fiber.MethodPost, "/api/v1/auth/send-otp", "", fiber.Map{"phone": testPhone})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for same normalized phone, got %d", resp.StatusCode)
	}
}

func TestRoleRoutesRequirePermission(t *testing.T) {
	app := newTestServer(t)
	access, _ := loginFlow(t, app, testPhone)

	// A fresh account carries the default role and is denied.
	resp, payload := doJSON(t, app, fiber.MethodGet, "/api/v1/role", access, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d (%v)", resp.StatusCode, payload)
	}
	assertFailureBody(t, payload, http.StatusForbidden)

	// Anonymous callers never reach the permission check.
	resp, _ = doJSON(t, app, fiber.MethodGet, "/api/v1/role", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func assertFailureBody(t *testing.T, payload map[string]any, wantStatus int) {
	t.Helper()
	if got, ok := payload["statusCode"].(float64); !ok || int(got) != wantStatus {
		t.Fatalf("expected statusCode %d, got %v", wantStatus, payload["statusCode"])
	}
	if success, ok := payload["success"].(bool); !ok || success {
		t.Fatalf("expected success=false, got %v", payload["success"])
	}
	if _, ok := payload["message"].(string); !ok {
		t.Fatalf("expected message string, got %v", payload["message"])
	}
	ts := stringField(t, payload, "timestamp")
	if _, err := time.Parse(time.RFC3339, ts); err != nil {
		t.Fatalf("timestamp %q is not RFC3339: %v", ts, err)
	}
}
