package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"geodash/internal/dataprocessing"
	apierrors "geodash/internal/errors"
	"geodash/internal/infrastructure"
	"geodash/internal/middleware"
	"geodash/internal/session"
	"geodash/pkg/contracts/domain"
)

type sessionContextKey struct{}

// multipartMemory is the part of a multipart upload kept in memory
const multipartMemory = 32 << 20

// UploadRequest is the JSON form of an upload: a browser data URL plus the
// original file name, which selects the decoder.
type UploadRequest struct {
	Filename string `json:"filename" validate:"required,filename"`
	Contents string `json:"contents" validate:"required,startswith=data:"`
}

// DatasetResponse carries the prepared dataset in split orientation
type DatasetResponse struct {
	SessionID   string            `json:"session_id"`
	Version     int               `json:"version"`
	Fingerprint string            `json:"fingerprint"`
	Dataset     domain.SplitFrame `json:"dataset"`
}

// CategoriesResponse lists the fields a chart may group or color by
type CategoriesResponse struct {
	SessionID  string                      `json:"session_id"`
	Categories []domain.CategoryDescriptor `json:"categories"`
}

// DatasetHandler serves session, upload, chart and export endpoints
type DatasetHandler struct {
	service      DatasetServiceInterface
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
	validator    *middleware.Validator
	params       *middleware.QueryParamValidator
	maxUpload    int64
}

// NewDatasetHandler creates a dataset handler. maxUpload bounds the decoded
// file size; the request body limit is derived from it. A non-positive value
// disables the body limit.
func NewDatasetHandler(service DatasetServiceInterface, logger *slog.Logger, errorHandler *apierrors.ErrorHandler, maxUpload int64) *DatasetHandler {
	return &DatasetHandler{
		service:      service,
		logger:       logger.With(slog.String("component", "dataset_handler")),
		errorHandler: errorHandler,
		validator:    middleware.NewValidator(logger),
		params:       middleware.NewQueryParamValidator(errorHandler),
		maxUpload:    maxUpload,
	}
}

// Routes returns the session routes
func (h *DatasetHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Post("/", h.CreateSession)

	r.Route("/{sessionID}", func(r chi.Router) {
		r.Use(h.SessionCtx)
		r.Get("/", h.GetSession)
		r.Delete("/", h.EndSession)

		r.With(middleware.ContentTypeValidator(h.errorHandler, "multipart/form-data", "application/json")).
			Post("/dataset", h.UploadDataset)
		r.Get("/dataset", h.GetDataset)
		r.Get("/categories", h.GetCategories)

		r.Route("/charts", func(r chi.Router) {
			r.Get("/histogram", h.GetHistogram)
			r.Get("/pie", h.GetPie)
			r.Get("/map", h.GetMap)
		})

		r.Get("/export", h.Export)
	})

	return r
}

// SessionCtx loads the session named in the path into the request context
func (h *DatasetHandler) SessionCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "sessionID")
		if id == "" {
			h.errorHandler.HandleError(w, r, apierrors.ErrValidation("sessionID", "session id is required"))
			return
		}

		sess, err := h.service.Session(r.Context(), id)
		if err != nil {
			h.errorHandler.HandleError(w, r, err)
			return
		}

		ctx := context.WithValue(infrastructure.WithSessionID(r.Context(), sess.ID), sessionContextKey{}, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sessionFromContext(ctx context.Context) *session.Session {
	sess, _ := ctx.Value(sessionContextKey{}).(*session.Session)
	return sess
}

// CreateSession handles POST /api/v1/sessions
func (h *DatasetHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.service.CreateSession(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, sess)
}

// GetSession handles GET /api/v1/sessions/{sessionID}
func (h *DatasetHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, sessionFromContext(r.Context()))
}

// EndSession handles DELETE /api/v1/sessions/{sessionID}
func (h *DatasetHandler) EndSession(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())
	if err := h.service.EndSession(r.Context(), sess.ID); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UploadDataset handles POST /api/v1/sessions/{sessionID}/dataset. The body
// is either a multipart form with a "file" part or an UploadRequest.
func (h *DatasetHandler) UploadDataset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := sessionFromContext(ctx)

	if h.maxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, bodyLimit(h.maxUpload))
	}

	var err error
	var summary interface{}
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		var filename string
		var data []byte
		filename, data, err = h.readMultipart(r)
		if err == nil {
			summary, err = h.service.Upload(ctx, sess.ID, filename, data)
		}
	} else {
		var req UploadRequest
		if err = json.NewDecoder(r.Body).Decode(&req); err != nil {
			var maxErr *http.MaxBytesError
			if !errors.As(err, &maxErr) {
				err = apierrors.InvalidRequestWithError(err)
			}
		} else if err = h.validator.ValidateStruct(&req); err == nil {
			summary, err = h.service.UploadDataURL(ctx, sess.ID, req.Filename, req.Contents)
		}
	}

	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, summary)
}

func (h *DatasetHandler) readMultipart(r *http.Request) (string, []byte, error) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return "", nil, err
		}
		return "", nil, apierrors.InvalidRequestWithError(err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return "", nil, apierrors.ErrValidation("file", "file is required")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return "", nil, fmt.Errorf("read upload: %w", err)
	}
	return header.Filename, data, nil
}

// bodyLimit allows for base64 expansion and form framing around a file of
// maxUpload bytes.
func bodyLimit(maxUpload int64) int64 {
	return maxUpload/3*4 + 4 + 1<<16
}

// GetDataset handles GET /api/v1/sessions/{sessionID}/dataset
func (h *DatasetHandler) GetDataset(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())

	view, err := h.service.Dataset(r.Context(), sess.ID)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	etag := fmt.Sprintf("%q", view.Fingerprint)
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "private, no-cache")
	if match := r.Header.Get("If-None-Match"); match != "" && etagMatches(match, etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	render.JSON(w, r, DatasetResponse{
		SessionID:   sess.ID,
		Version:     view.Version,
		Fingerprint: view.Fingerprint,
		Dataset:     view.Frame,
	})
}

func etagMatches(header, etag string) bool {
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimPrefix(strings.TrimSpace(candidate), "W/")
		if candidate == "*" || candidate == etag {
			return true
		}
	}
	return false
}

// GetCategories handles GET /api/v1/sessions/{sessionID}/categories
func (h *DatasetHandler) GetCategories(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())

	categories, err := h.service.Categories(r.Context(), sess.ID)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, CategoriesResponse{SessionID: sess.ID, Categories: categories})
}

// GetHistogram handles GET /api/v1/sessions/{sessionID}/charts/histogram
func (h *DatasetHandler) GetHistogram(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())
	query := r.URL.Query()

	opts := dataprocessing.HistogramOptions{
		X:     query.Get("x"),
		Color: query.Get("color"),
		Sort:  dataprocessing.SortOrder(query.Get("sort")),
	}
	if err := h.validator.ValidateStruct(&opts); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	histogram, err := h.service.Histogram(r.Context(), sess.ID, opts)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, histogram)
}

// GetPie handles GET /api/v1/sessions/{sessionID}/charts/pie
func (h *DatasetHandler) GetPie(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())

	field := r.URL.Query().Get("field")
	if field == "" {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("field", "field is required"))
		return
	}

	pie, err := h.service.Pie(r.Context(), sess.ID, field)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, pie)
}

// GetMap handles GET /api/v1/sessions/{sessionID}/charts/map
func (h *DatasetHandler) GetMap(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())

	radius, ok := h.params.ValidateEnum(w, r, "radius", radiusParams(), string(domain.RadiusHalfKm))
	if !ok {
		return
	}

	features, err := h.service.MapFeatures(r.Context(), sess.ID, domain.RadiusLevel(radius))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, features)
}

func radiusParams() []string {
	levels := domain.RadiusLevels()
	names := make([]string, len(levels))
	for i, l := range levels {
		names[i] = string(l)
	}
	return names
}

// Export handles GET /api/v1/sessions/{sessionID}/export?format=csv|xlsx
func (h *DatasetHandler) Export(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())

	format, ok := h.params.ValidateEnum(w, r, "format", []string{"csv", "xlsx"}, "csv")
	if !ok {
		return
	}

	var buf bytes.Buffer
	var err error
	contentType := "text/csv; charset=utf-8"
	if format == "xlsx" {
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		err = h.service.ExportWorkbook(r.Context(), sess.ID, &buf)
	} else {
		err = h.service.Export(r.Context(), sess.ID, &buf)
	}
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", exportName(sess, format)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logger.WarnContext(r.Context(), "failed to write export",
			slog.String("session_id", sess.ID),
			slog.String("error", err.Error()))
	}
}

func exportName(sess *session.Session, format string) string {
	base := "specimens"
	if sess.Filename != "" {
		base = strings.TrimSuffix(sess.Filename, filepath.Ext(sess.Filename))
	}
	return base + "_prepared." + format
}

