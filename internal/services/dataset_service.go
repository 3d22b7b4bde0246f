package services

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/paulmach/orb/geojson"
	"golang.org/x/crypto/blake2b"

	"geodash/internal/dataprocessing"
	"geodash/internal/exporter"
	"geodash/internal/infrastructure"
	"geodash/internal/session"
	ws "geodash/internal/websocket"
	"geodash/pkg/contracts/domain"
)

// UploadSummary describes the dataset produced by a successful upload.
type UploadSummary struct {
	SessionID         string                      `json:"session_id"`
	Filename          string                      `json:"filename"`
	Version           int                         `json:"version"`
	Fingerprint       string                      `json:"fingerprint"`
	Records           int                         `json:"records"`
	SentinelLocations int                         `json:"sentinel_locations"`
	Fields            []string                    `json:"fields"`
	Categories        []domain.CategoryDescriptor `json:"categories"`
	DurationMS        int64                       `json:"duration_ms"`
}

// UploadFailure is published to session clients when an upload is rejected.
type UploadFailure struct {
	Filename string                   `json:"filename"`
	Kind     dataprocessing.ErrorKind `json:"kind"`
	Field    string                   `json:"field,omitempty"`
	Message  string                   `json:"message"`
}

// DatasetView is the current dataset of a session in split orientation.
type DatasetView struct {
	Frame       domain.SplitFrame
	Fingerprint string
	Version     int
}

// DatasetService runs uploads through the pipeline and serves the results
type DatasetService struct {
	store     session.Store
	pipeline  dataprocessing.Processor
	publisher ws.Publisher
	metrics   *infrastructure.BusinessMetrics
	maxBytes  int64
	logger    *slog.Logger
}

// NewDatasetService creates a dataset service. publisher and metrics may be
// nil; maxBytes <= 0 disables the upload size check.
func NewDatasetService(store session.Store, pipeline dataprocessing.Processor, publisher ws.Publisher, metrics *infrastructure.BusinessMetrics, maxBytes int64, logger *slog.Logger) *DatasetService {
	if logger == nil {
		logger = slog.Default()
	}
	return &DatasetService{
		store:     store,
		pipeline:  pipeline,
		publisher: publisher,
		metrics:   metrics,
		maxBytes:  maxBytes,
		logger:    logger.With(slog.String("component", "dataset_service")),
	}
}

// CreateSession starts a new dashboard session
func (s *DatasetService) CreateSession(ctx context.Context) (*session.Session, error) {
	sess, err := s.store.Create()
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	infrastructure.RecordActiveSessionChange(ctx, s.metrics, 1)
	s.logger.InfoContext(ctx, "Session created", slog.String("session_id", sess.ID))
	return sess, nil
}

// EndSession discards a session and its dataset
func (s *DatasetService) EndSession(ctx context.Context, sessionID string) error {
	if err := s.store.Delete(sessionID); err != nil {
		return s.sessionError(err)
	}
	infrastructure.RecordActiveSessionChange(ctx, s.metrics, -1)
	s.publish(ctx, sessionID, ws.TypeSessionEnded, nil)
	s.logger.InfoContext(ctx, "Session ended", slog.String("session_id", sessionID))
	return nil
}

// Session returns the session snapshot
func (s *DatasetService) Session(ctx context.Context, sessionID string) (*session.Session, error) {
	sess, err := s.store.Get(sessionID)
	if err != nil {
		return nil, s.sessionError(err)
	}
	return sess, nil
}

// Upload decodes data, runs the pipeline and, on success, replaces the
// session dataset. On failure the previous dataset is kept.
func (s *DatasetService) Upload(ctx context.Context, sessionID, filename string, data []byte) (*UploadSummary, error) {
	if _, err := s.store.Get(sessionID); err != nil {
		return nil, s.sessionError(err)
	}

	start := time.Now()
	ctx = infrastructure.WithSessionID(ctx, sessionID)
	logger := infrastructure.WithComponent(infrastructure.LoggerWithContext(ctx), "dataset_service").With(
		slog.String("filename", filename),
		slog.Int("size", len(data)),
	)

	summary, err := s.process(ctx, sessionID, filename, data, start)
	if err != nil {
		logger.WarnContext(ctx, "Upload rejected", slog.String("error", err.Error()))
		s.publish(ctx, sessionID, ws.TypeDatasetError, failureOf(filename, err))
		return nil, err
	}

	logger.InfoContext(ctx, "Upload processed",
		slog.Int("records", summary.Records),
		slog.Int("version", summary.Version),
		slog.Int64("duration_ms", summary.DurationMS))
	s.publish(ctx, sessionID, ws.TypeDatasetReady, summary)
	return summary, nil
}

func (s *DatasetService) process(ctx context.Context, sessionID, filename string, data []byte, start time.Time) (*UploadSummary, error) {
	if len(data) == 0 {
		return nil, ErrEmptyUpload
	}
	if s.maxBytes > 0 && int64(len(data)) > s.maxBytes {
		return nil, fmt.Errorf("%w: %d bytes, limit is %d", ErrUploadTooLarge, len(data), s.maxBytes)
	}

	format, err := dataprocessing.DetectFormat(filename)
	if err != nil {
		return nil, err
	}
	infrastructure.RecordUpload(ctx, s.metrics, string(format), len(data))

	table, err := dataprocessing.Decode(filename, data)
	if err != nil {
		return nil, err
	}

	result, err := s.pipeline.Run(ctx, table)
	if err != nil {
		return nil, err
	}

	fingerprint := Fingerprint(data)
	sess, err := s.store.SetResult(sessionID, filename, fingerprint, result)
	if err != nil {
		return nil, s.sessionError(err)
	}

	return &UploadSummary{
		SessionID:         sess.ID,
		Filename:          filename,
		Version:           sess.Version,
		Fingerprint:       fingerprint,
		Records:           result.Stats.Records,
		SentinelLocations: result.Stats.SentinelLocations,
		Fields:            result.Fields,
		Categories:        result.Categories,
		DurationMS:        time.Since(start).Milliseconds(),
	}, nil
}

// UploadDataURL is Upload for a browser data URL ("data:<mime>;base64,...")
func (s *DatasetService) UploadDataURL(ctx context.Context, sessionID, filename, contents string) (*UploadSummary, error) {
	data, err := dataprocessing.DecodeDataURL(contents)
	if err != nil {
		if _, serr := s.store.Get(sessionID); serr != nil {
			return nil, s.sessionError(serr)
		}
		s.publish(ctx, sessionID, ws.TypeDatasetError, failureOf(filename, err))
		return nil, err
	}
	return s.Upload(ctx, sessionID, filename, data)
}

// Dataset returns the session dataset in split orientation
func (s *DatasetService) Dataset(ctx context.Context, sessionID string) (*DatasetView, error) {
	sess, err := s.current(sessionID)
	if err != nil {
		return nil, err
	}
	return &DatasetView{
		Frame:       sess.Result.Dataset.Split(),
		Fingerprint: sess.Fingerprint,
		Version:     sess.Version,
	}, nil
}

// Categories returns the fields a chart may be grouped by
func (s *DatasetService) Categories(ctx context.Context, sessionID string) ([]domain.CategoryDescriptor, error) {
	sess, err := s.current(sessionID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.CategoryDescriptor, len(sess.Result.Categories))
	copy(out, sess.Result.Categories)
	return out, nil
}

// Histogram returns the histogram feed for the session dataset
func (s *DatasetService) Histogram(ctx context.Context, sessionID string, opts dataprocessing.HistogramOptions) (*dataprocessing.Histogram, error) {
	sess, err := s.current(sessionID)
	if err != nil {
		return nil, err
	}
	h, err := dataprocessing.BuildHistogram(sess.Result.Dataset, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return h, nil
}

// Pie returns the breakdown feed of field for the session dataset
func (s *DatasetService) Pie(ctx context.Context, sessionID, field string) (*dataprocessing.PieChart, error) {
	sess, err := s.current(sessionID)
	if err != nil {
		return nil, err
	}
	pie, err := dataprocessing.BuildPie(sess.Result.Dataset, field)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return pie, nil
}

// MapFeatures returns the GeoJSON map feed sized by the counts at radius
func (s *DatasetService) MapFeatures(ctx context.Context, sessionID string, radius domain.RadiusLevel) (*geojson.FeatureCollection, error) {
	sess, err := s.current(sessionID)
	if err != nil {
		return nil, err
	}
	fc, err := dataprocessing.BuildMap(sess.Result.Dataset, dataprocessing.MapOptions{Radius: radius})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return fc, nil
}

// Export writes the session dataset as CSV
func (s *DatasetService) Export(ctx context.Context, sessionID string, w io.Writer) error {
	sess, err := s.current(sessionID)
	if err != nil {
		return err
	}
	if err := exporter.WriteCSV(w, sess.Result.Dataset, exporter.WriteOptions{BOMPrefix: true}); err != nil {
		return fmt.Errorf("export dataset: %w", err)
	}
	return nil
}

// ExportWorkbook writes the session dataset as an Excel workbook
func (s *DatasetService) ExportWorkbook(ctx context.Context, sessionID string, w io.Writer) error {
	sess, err := s.current(sessionID)
	if err != nil {
		return err
	}
	if err := exporter.WriteWorkbook(w, sess.Result.Dataset, exporter.WriteOptions{SheetName: "specimens"}); err != nil {
		return fmt.Errorf("export workbook: %w", err)
	}
	return nil
}

// ActiveSessions returns the number of live sessions
func (s *DatasetService) ActiveSessions() int {
	return s.store.Len()
}

func (s *DatasetService) current(sessionID string) (*session.Session, error) {
	sess, err := s.store.Get(sessionID)
	if err != nil {
		return nil, s.sessionError(err)
	}
	if !sess.HasResult() {
		return nil, ErrNoDataset
	}
	return sess, nil
}

func (s *DatasetService) sessionError(err error) error {
	if errors.Is(err, session.ErrNotFound) {
		return fmt.Errorf("%w: %v", ErrSessionNotFound, err)
	}
	return err
}

func (s *DatasetService) publish(ctx context.Context, sessionID, eventType string, data interface{}) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(ctx, sessionID, eventType, data)
}

func failureOf(filename string, err error) UploadFailure {
	f := UploadFailure{Filename: filename, Kind: dataprocessing.KindGenericProcessing}
	var pErr *dataprocessing.PipelineError
	switch {
	case errors.As(err, &pErr):
		f.Kind = pErr.Kind
		f.Field = pErr.Field
		f.Message = pErr.UserMessage()
	case errors.Is(err, ErrUploadTooLarge):
		f.Kind = dataprocessing.KindDatasetTooLarge
		f.Message = "The dataset is too large to process."
	default:
		f.Message = "There was an error processing this file."
	}
	return f
}

// Fingerprint returns the hex BLAKE2b-256 digest of an upload
func Fingerprint(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}
