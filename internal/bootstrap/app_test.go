package bootstrap

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"sparefinder-backend/internal/shared/config"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

func devConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		Env:                "dev",
		ObjectStoreType:    "local",
		LocalStoreDir:      t.TempDir(),
		UsageTimezone:      "UTC",
		SignupBonusCredits: 3,
	}
}

func TestBuildRequiresDatabaseOutsideDev(t *testing.T) {
	cfg := devConfig(t)
	cfg.Env = "production"
	cfg.JWTSecret = "secret"
	if _, err := Build(context.Background(), cfg); err == nil {
		t.Fatalf("expected error without DATABASE_URL in production")
	}
}

func TestBuildRejectsUnknownTimezone(t *testing.T) {
	cfg := devConfig(t)
	cfg.UsageTimezone = "Mars/Olympus"
	if _, err := Build(context.Background(), cfg); err == nil {
		t.Fatalf("expected error for unknown timezone")
	}
}

func TestFailedAnalysisIsRefundedEndToEnd(t *testing.T) {
	app, err := Build(context.Background(), devConfig(t))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(func() { _ = app.Close() })

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req.Header.Set("X-User-Id", "user_1")
	resp := httptest.NewRecorder()
	app.Router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected me 200, got %d", resp.Code)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("image", "bearing.png")
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	_, _ = part.Write(pngHeader)
	_ = mw.Close()

	req = httptest.NewRequest(http.MethodPost, "/api/v1/analyses", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-User-Id", "user_1")
	resp = httptest.NewRecorder()
	app.Router.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadGateway {
		t.Fatalf("expected 502 from placeholder inference, got %d: %s", resp.Code, resp.Body.String())
	}

	ctx := context.Background()
	if got := app.CreditService.GetUserCredits(ctx, "user_1").Credits; got != 3 {
		t.Fatalf("expected refunded balance 3, got %d", got)
	}
	verification, err := app.CreditService.VerifyLedger(ctx, "user_1")
	if err != nil || !verification.Consistent {
		t.Fatalf("ledger not consistent: %+v, %v", verification, err)
	}
	if got := app.UsageService.GetUsageRow(ctx, "user_1"); got.SearchesCount != 0 || got.StorageUsed != int64(len(pngHeader)) {
		t.Fatalf("unexpected usage %+v", got)
	}

	var envelope map[string]map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope["error"]["code"] != "analysis_failed" {
		t.Fatalf("unexpected error body %v", envelope)
	}
}
