package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"sort"
	"strings"
	"time"

	"sparefinder-backend/internal/inference"
)

const maxErrorBody = 2048

// Client calls the part-identification service over HTTP.
type Client struct {
	url        string
	apiKey     string
	httpClient *http.Client
}

// New constructs a client for the service at url.
func New(url, apiKey string, timeout time.Duration) (*Client, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("INFERENCE_URL is required")
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		url:        strings.TrimSpace(url),
		apiKey:     strings.TrimSpace(apiKey),
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

type identifyResponse struct {
	Success      bool                   `json:"success"`
	Predictions  []inference.Prediction `json:"predictions"`
	ModelVersion string                 `json:"model_version"`
	Error        string                 `json:"error"`
}

// Identify posts the image as multipart field "file" and returns predictions sorted by confidence.
func (c *Client) Identify(ctx context.Context, req inference.Request) (inference.Result, error) {
	if req.Image == nil {
		return inference.Result{}, errors.New("image is required")
	}
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	fileName := req.FileName
	if fileName == "" {
		fileName = "photo"
	}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, fileName))
	contentType := req.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	if err != nil {
		return inference.Result{}, err
	}
	if _, err := io.Copy(part, req.Image); err != nil {
		return inference.Result{}, fmt.Errorf("buffer image: %w", err)
	}
	if err := mw.Close(); err != nil {
		return inference.Result{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, &buf)
	if err != nil {
		return inference.Result{}, err
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())
	httpReq.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "Client.Timeout") {
			return inference.Result{}, fmt.Errorf("inference request timeout: %w", err)
		}
		return inference.Result{}, fmt.Errorf("inference request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return inference.Result{}, fmt.Errorf("inference service status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed identifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return inference.Result{}, fmt.Errorf("inference response parse: %w", err)
	}
	if !parsed.Success {
		msg := parsed.Error
		if msg == "" {
			msg = "unsuccessful response"
		}
		return inference.Result{}, fmt.Errorf("inference service error: %s", msg)
	}
	sort.SliceStable(parsed.Predictions, func(i, j int) bool {
		return parsed.Predictions[i].Confidence > parsed.Predictions[j].Confidence
	})
	return inference.Result{Predictions: parsed.Predictions, ModelVersion: parsed.ModelVersion}, nil
}

var _ inference.Client = (*Client)(nil)
