package analyses

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"sparefinder-backend/internal/shared/server/middleware"
	"sparefinder-backend/internal/shared/server/respond"
)

func setupAnalysisRouter(t *testing.T, balance int) (*gin.Engine, fixture) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	fx := newFixture(t, balance)
	router := gin.New()
	router.Use(middleware.RequestID(), middleware.Auth(nil, true))
	NewHandler(fx.svc).RegisterRoutes(router.Group("/api/v1"))
	return router, fx
}

func uploadRequest(t *testing.T, field string, payload []byte) *http.Request {
	t.Helper()
	return uploadRequestNamed(t, field, "pump.png", payload)
}

func uploadRequestNamed(t *testing.T, field, fileName string, payload []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile(field, fileName)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	if _, err := part.Write(payload); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyses", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-User-Id", "user_1")
	return req
}

func TestStartAnalysisCreated(t *testing.T) {
	router, _ := setupAnalysisRouter(t, 5)

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, uploadRequest(t, "image", testPNG))

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var a Analysis
	if err := json.NewDecoder(resp.Body).Decode(&a); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if a.ID == "" || a.Status != StatusCompleted {
		t.Fatalf("unexpected analysis %+v", a)
	}

	get := httptest.NewRequest(http.MethodGet, "/api/v1/analyses/"+a.ID, nil)
	get.Header.Set("X-User-Id", "user_1")
	getResp := httptest.NewRecorder()
	router.ServeHTTP(getResp, get)
	if getResp.Code != http.StatusOK {
		t.Fatalf("expected 200 on get, got %d", getResp.Code)
	}
}

func TestStartAnalysisInsufficientCredits(t *testing.T) {
	router, _ := setupAnalysisRouter(t, 0)

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, uploadRequest(t, "image", testPNG))

	if resp.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d", resp.Code)
	}
	var body respond.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error.Code != "insufficient_credits" || body.Error.Message != "not enough credits, required 1, have 0" {
		t.Fatalf("unexpected error body %+v", body.Error)
	}
}

func TestStartAnalysisFailureRefunds(t *testing.T) {
	router, fx := setupAnalysisRouter(t, 1)
	fx.inference.err = errors.New("model not loaded")

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, uploadRequest(t, "image", testPNG))

	if resp.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", resp.Code)
	}
	var body respond.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	details, _ := body.Error.Details.(map[string]any)
	if details["refunded"] != true {
		t.Fatalf("expected refunded=true, got %#v", body.Error.Details)
	}
}

func TestStartAnalysisValidation(t *testing.T) {
	router, _ := setupAnalysisRouter(t, 1)

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, uploadRequest(t, "photo", testPNG))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing image field, got %d", resp.Code)
	}

	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, uploadRequest(t, "image", []byte("plain text")))
	if resp.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("expected 415 for non-image, got %d", resp.Code)
	}
}

func TestStartAnalysisOversizedBody(t *testing.T) {
	router, fx := setupAnalysisRouter(t, 1)
	payload := append(append([]byte{}, testPNG...), bytes.Repeat([]byte{0}, 12<<20)...)

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, uploadRequest(t, "image", payload))

	if resp.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d: %s", resp.Code, resp.Body.String())
	}
	var body respond.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error.Code != "image_too_large" {
		t.Fatalf("unexpected error code %q", body.Error.Code)
	}
	if got := fx.credits.GetUserCredits(context.Background(), "user_1").Credits; got != 1 {
		t.Fatalf("expected balance untouched, got %d", got)
	}
}

func TestStartAnalysisOversizedChunkedBody(t *testing.T) {
	router, _ := setupAnalysisRouter(t, 1)
	payload := append(append([]byte{}, testPNG...), bytes.Repeat([]byte{0}, 12<<20)...)

	req := uploadRequest(t, "image", payload)
	req.ContentLength = -1
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestStartAnalysisDottedFileName(t *testing.T) {
	router, fx := setupAnalysisRouter(t, 2)

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, uploadRequestNamed(t, "image", "seal..v2.png", testPNG))

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	if got := fx.credits.GetUserCredits(context.Background(), "user_1").Credits; got != 1 {
		t.Fatalf("expected one credit spent, got balance %d", got)
	}
}

func TestListAnalysesClampsPage(t *testing.T) {
	router, _ := setupAnalysisRouter(t, 1)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/analyses?limit=500&offset=-3", nil)
	req.Header.Set("X-User-Id", "user_1")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var page struct {
		Analyses []Analysis `json:"analyses"`
		Limit    int        `json:"limit"`
		Offset   int        `json:"offset"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if page.Limit != maxListLimit || page.Offset != 0 {
		t.Fatalf("expected limit %d offset 0, got %d/%d", maxListLimit, page.Limit, page.Offset)
	}
}
