// Package api - Request and response bodies of the cacao-scan HTTP service.
package api

import (
	"github.com/nvr-ai/cacao-scan/models/postprocess"
)

// Route paths.
const (
	PathDetect  = "/v1/detect"
	PathDecode  = "/v1/decode"
	PathHealth  = "/healthz"
	PathMetrics = "/metrics"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

// FormFieldImage is the multipart field holding the uploaded image.
const FormFieldImage = "image"

// QueryMinScore is the display threshold query parameter.
const QueryMinScore = "min_score"

// AnalysisFailed is the message returned for outputs that cannot be decoded.
const AnalysisFailed = "analysis failed: the model output could not be interpreted"

// Timings reports stage durations in milliseconds.
type Timings struct {
	PreprocessMS  float64 `json:"preprocess_ms"`
	InferenceMS   float64 `json:"inference_ms"`
	PostprocessMS float64 `json:"postprocess_ms"`
}

// DetectResponse is returned by the detect and decode endpoints.
type DetectResponse struct {
	RequestID  string                  `json:"request_id"`
	Model      string                  `json:"model"`
	Detections []postprocess.Detection `json:"detections"`
	Summary    postprocess.Summary     `json:"summary"`
	Timings    Timings                 `json:"timings"`
}

// DecodeRequest carries a raw network output produced by a client that runs inference
// itself.
type DecodeRequest struct {
	Output    postprocess.RawOutput `json:"output"`
	Letterbox postprocess.Letterbox `json:"letterbox"`
	MinScore  float32               `json:"min_score"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	RequestID string `json:"request_id,omitempty"`
	Error     string `json:"error"`
}

// HealthResponse is returned by the health endpoint.
type HealthResponse struct {
	Status  string   `json:"status"`
	Model   string   `json:"model"`
	Classes []string `json:"classes"`
}
