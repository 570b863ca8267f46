// Package client - HTTP client for a remote cacao-scan service.
package client

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/nvr-ai/cacao-scan/api"
	"github.com/pkg/errors"
)

// DefaultTimeout bounds one request, upload included.
const DefaultTimeout = 60 * time.Second

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	RequestID  string
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned %d: %s (request %s)", e.StatusCode, e.Message, e.RequestID)
}

// Client talks to the detection service.
type Client struct {
	http *resty.Client
}

// New creates a client for the service at baseURL.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(timeout).
			SetHeader("Accept", "application/json"),
	}
}

// Detect uploads the image at path and returns the detections scoring at least minScore.
func (c *Client) Detect(ctx context.Context, path string, minScore float32) (*api.DetectResponse, error) {
	req := c.http.R().SetFile(api.FormFieldImage, path)
	return c.detect(ctx, req, minScore)
}

// DetectBytes uploads an encoded image held in memory.
func (c *Client) DetectBytes(ctx context.Context, name string, data []byte, minScore float32) (*api.DetectResponse, error) {
	req := c.http.R().SetFileReader(api.FormFieldImage, name, bytes.NewReader(data))
	return c.detect(ctx, req, minScore)
}

func (c *Client) detect(ctx context.Context, req *resty.Request, minScore float32) (*api.DetectResponse, error) {
	if minScore > 0 {
		req.SetQueryParam(api.QueryMinScore, strconv.FormatFloat(float64(minScore), 'f', -1, 32))
	}
	var out api.DetectResponse
	resp, err := req.
		SetContext(ctx).
		SetResult(&out).
		SetError(&api.ErrorResponse{}).
		Post(api.PathDetect)
	if err != nil {
		return nil, errors.Wrap(err, "detect request failed")
	}
	if err := statusError(resp); err != nil {
		return nil, err
	}
	return &out, nil
}

// Decode sends a raw network output for post-processing on the server.
func (c *Client) Decode(ctx context.Context, body api.DecodeRequest) (*api.DetectResponse, error) {
	var out api.DetectResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		SetResult(&out).
		SetError(&api.ErrorResponse{}).
		Post(api.PathDecode)
	if err != nil {
		return nil, errors.Wrap(err, "decode request failed")
	}
	if err := statusError(resp); err != nil {
		return nil, err
	}
	return &out, nil
}

// Health returns the service status.
func (c *Client) Health(ctx context.Context) (*api.HealthResponse, error) {
	var out api.HealthResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		SetError(&api.ErrorResponse{}).
		Get(api.PathHealth)
	if err != nil {
		return nil, errors.Wrap(err, "health request failed")
	}
	if err := statusError(resp); err != nil {
		return nil, err
	}
	return &out, nil
}

func statusError(resp *resty.Response) error {
	if !resp.IsError() {
		return nil
	}
	e := &StatusError{
		StatusCode: resp.StatusCode(),
		RequestID:  resp.Header().Get(api.RequestIDHeader),
		Message:    resp.Status(),
	}
	if body, ok := resp.Error().(*api.ErrorResponse); ok && body.Error != "" {
		e.Message = body.Error
	}
	return e
}
