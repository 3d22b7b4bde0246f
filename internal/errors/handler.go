package errors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"runtime/debug"

	"github.com/go-chi/render"

	"geodash/internal/dataprocessing"
	"geodash/internal/infrastructure"
	"geodash/internal/services"
)

// Common error types following RFC 7807
const (
	TypeValidation       = "/errors/validation"
	TypeNotFound         = "/errors/not-found"
	TypeRateLimit        = "/errors/rate-limit"
	TypeInternal         = "/errors/internal"
	TypeServiceDown      = "/errors/service-unavailable"
	TypeTimeout          = "/errors/timeout"
	TypePayloadTooLarge  = "/errors/payload-too-large"
	TypeUnsupportedMedia = "/errors/unsupported-media-type"
	TypeMethodNotAllowed = "/errors/method-not-allowed"
)

// Domain-specific error types
const (
	TypeSessionNotFound   = "/errors/session/not-found"
	TypeNoDataset         = "/errors/dataset/not-loaded"
	TypeMissingField      = "/errors/dataset/missing-field"
	TypeCoordinateType    = "/errors/dataset/coordinate-type"
	TypeUnsupportedFormat = "/errors/dataset/unsupported-format"
	TypeDecode            = "/errors/dataset/decode"
	TypeDatasetTooLarge   = "/errors/dataset/too-large"
	TypeProcessing        = "/errors/dataset/processing"
	TypeWebSocketUpgrade  = "/errors/websocket/upgrade-failed"
)

// ErrorHandler provides centralized error handling
type ErrorHandler struct {
	logger       *slog.Logger
	metrics      *infrastructure.BusinessMetrics
	includeStack bool
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger *slog.Logger, includeStack bool) *ErrorHandler {
	return &ErrorHandler{
		logger:       logger.With(slog.String("component", "error_handler")),
		includeStack: includeStack,
	}
}

// WithMetrics makes the handler count server errors
func (h *ErrorHandler) WithMetrics(metrics *infrastructure.BusinessMetrics) *ErrorHandler {
	h.metrics = metrics
	return h
}

// HandleError converts any error to RFC 7807 format and responds
func (h *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	ctx := r.Context()
	traceID := requestTraceID(ctx)
	problem := h.ErrorToProblem(err, r)
	problem.WithExtension("trace_id", traceID)

	level := slog.LevelWarn
	if problem.Status >= http.StatusInternalServerError {
		level = slog.LevelError
		infrastructure.RecordSystemError(ctx, h.metrics, problem.Type, "http")
		if h.includeStack {
			problem.WithExtension("stack", getStackTrace())
		}
	}

	h.logger.Log(ctx, level, "request failed",
		slog.String("error", err.Error()),
		slog.Int("status", problem.Status),
		slog.String("type", problem.Type),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("remote_addr", r.RemoteAddr),
	)

	render.Render(w, r, problem)
}

// ErrorToProblem converts an error to RFC 7807 Problem Details
func (h *ErrorHandler) ErrorToProblem(err error, r *http.Request) *ProblemDetails {
	var pErr *dataprocessing.PipelineError
	if errors.As(err, &pErr) {
		return pipelineProblem(pErr, r)
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return h.apiErrorToProblem(apiErr, r)
	}

	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return NewProblemDetails(
			http.StatusRequestEntityTooLarge,
			TypePayloadTooLarge,
			"Payload Too Large",
			fmt.Sprintf("The request body exceeds the limit of %d bytes", maxBytesErr.Limit),
			r.URL.Path,
		)
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return NewProblemDetails(
			http.StatusGatewayTimeout,
			TypeTimeout,
			"Request Timeout",
			"The request took too long to process and was cancelled",
			r.URL.Path,
		)

	case errors.Is(err, services.ErrSessionNotFound):
		return NewProblemDetails(
			http.StatusNotFound,
			TypeSessionNotFound,
			"Session Not Found",
			"The session does not exist or has expired",
			r.URL.Path,
		)

	case errors.Is(err, services.ErrNoDataset):
		return NewProblemDetails(
			http.StatusNotFound,
			TypeNoDataset,
			"No Dataset",
			"No dataset has been uploaded to this session",
			r.URL.Path,
		)

	case errors.Is(err, services.ErrUploadTooLarge):
		return NewProblemDetails(
			http.StatusRequestEntityTooLarge,
			TypePayloadTooLarge,
			"Payload Too Large",
			err.Error(),
			r.URL.Path,
		)

	case errors.Is(err, services.ErrEmptyUpload), errors.Is(err, services.ErrInvalidInput):
		return NewProblemDetails(
			http.StatusBadRequest,
			TypeValidation,
			"Bad Request",
			err.Error(),
			r.URL.Path,
		)

	case errors.Is(err, services.ErrServiceUnavailable):
		return NewProblemDetails(
			http.StatusServiceUnavailable,
			TypeServiceDown,
			"Service Unavailable",
			"The service is temporarily unavailable",
			r.URL.Path,
		)

	default:
		return NewProblemDetails(
			http.StatusInternalServerError,
			TypeInternal,
			"Internal Server Error",
			"An unexpected error occurred while processing your request",
			r.URL.Path,
		)
	}
}

// pipelineProblem maps a pipeline failure onto a status. The detail is the
// fixed message shown to the uploader.
func pipelineProblem(pErr *dataprocessing.PipelineError, r *http.Request) *ProblemDetails {
	status, problemType, title := http.StatusInternalServerError, TypeProcessing, "Processing Failed"
	switch pErr.Kind {
	case dataprocessing.KindMissingRequiredField:
		status, problemType, title = http.StatusUnprocessableEntity, TypeMissingField, "Missing Required Field"
	case dataprocessing.KindCoordinateType:
		status, problemType, title = http.StatusUnprocessableEntity, TypeCoordinateType, "Invalid Coordinates"
	case dataprocessing.KindUnsupportedFormat:
		status, problemType, title = http.StatusUnsupportedMediaType, TypeUnsupportedFormat, "Unsupported Format"
	case dataprocessing.KindDecode:
		status, problemType, title = http.StatusBadRequest, TypeDecode, "Undecodable File"
	case dataprocessing.KindDatasetTooLarge:
		status, problemType, title = http.StatusRequestEntityTooLarge, TypeDatasetTooLarge, "Dataset Too Large"
	}

	problem := NewProblemDetails(status, problemType, title, pErr.UserMessage(), r.URL.Path).
		WithExtension("kind", pErr.Kind)
	if pErr.Field != "" {
		problem.WithExtension("field", pErr.Field)
	}
	if pErr.Stage != "" {
		problem.WithExtension("stage", pErr.Stage)
	}
	return problem
}

// apiErrorToProblem converts APIError to ProblemDetails
func (h *ErrorHandler) apiErrorToProblem(apiErr *APIError, r *http.Request) *ProblemDetails {
	problemType := TypeInternal
	switch apiErr.ErrorCode {
	case "INVALID_REQUEST", "VALIDATION_FAILED", "MISSING_PARAMETER", "INVALID_PARAMETER", "INVALID_JSON":
		problemType = TypeValidation
	case "NOT_FOUND":
		problemType = TypeNotFound
	case "PAYLOAD_TOO_LARGE":
		problemType = TypePayloadTooLarge
	case "UNSUPPORTED_MEDIA_TYPE", "MISSING_CONTENT_TYPE":
		problemType = TypeUnsupportedMedia
	case "RATE_LIMIT_EXCEEDED":
		problemType = TypeRateLimit
	case "SERVICE_UNAVAILABLE":
		problemType = TypeServiceDown
	case "WEBSOCKET_UPGRADE_FAILED":
		problemType = TypeWebSocketUpgrade
	}

	problem := NewProblemDetails(
		apiErr.StatusCode,
		problemType,
		http.StatusText(apiErr.StatusCode),
		apiErr.Message,
		r.URL.Path,
	).WithExtension("error_code", apiErr.ErrorCode)

	if apiErr.Details != nil {
		problem.WithExtension("details", apiErr.Details)
	}

	return problem
}

// HandlePanic recovers from panics and returns RFC 7807 error
func (h *ErrorHandler) HandlePanic(w http.ResponseWriter, r *http.Request, recovered interface{}) {
	ctx := r.Context()
	traceID := requestTraceID(ctx)

	h.logger.ErrorContext(ctx, "panic recovered",
		slog.Any("panic", recovered),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("stack", string(debug.Stack())),
	)
	infrastructure.RecordSystemError(ctx, h.metrics, "panic", "http")

	problem := NewProblemDetails(
		http.StatusInternalServerError,
		TypeInternal,
		"Internal Server Error",
		"An unexpected error occurred",
		r.URL.Path,
	).WithExtension("trace_id", traceID)

	if h.includeStack {
		problem.WithExtension("panic", fmt.Sprintf("%v", recovered))
		problem.WithExtension("stack", getStackTrace())
	}

	render.Render(w, r, problem)
}

// NotFound returns a standard 404 error
func (h *ErrorHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	problem := NewProblemDetails(
		http.StatusNotFound,
		TypeNotFound,
		"Not Found",
		"The requested resource was not found",
		r.URL.Path,
	).WithExtension("trace_id", requestTraceID(r.Context()))

	render.Render(w, r, problem)
}

// MethodNotAllowed returns a standard 405 error
func (h *ErrorHandler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	problem := NewProblemDetails(
		http.StatusMethodNotAllowed,
		TypeMethodNotAllowed,
		"Method Not Allowed",
		fmt.Sprintf("Method %s is not allowed for this endpoint", r.Method),
		r.URL.Path,
	).WithExtension("trace_id", requestTraceID(r.Context()))

	render.Render(w, r, problem)
}

// requestTraceID prefers the request's log trace ID and falls back to the
// OpenTelemetry trace of the active span.
func requestTraceID(ctx context.Context) string {
	if traceID := infrastructure.GetTraceID(ctx); traceID != "" {
		return traceID
	}
	return infrastructure.TraceIDFromContext(ctx)
}

func getStackTrace() string {
	buf := make([]byte, 1024*8)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}
