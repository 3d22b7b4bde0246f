package http

import (
	"context"
	"io"

	"github.com/paulmach/orb/geojson"

	"geodash/internal/dataprocessing"
	"geodash/internal/services"
	"geodash/internal/session"
	"geodash/pkg/contracts/domain"
)

// DatasetServiceInterface defines the interface for dataset operations
type DatasetServiceInterface interface {
	CreateSession(ctx context.Context) (*session.Session, error)
	EndSession(ctx context.Context, sessionID string) error
	Session(ctx context.Context, sessionID string) (*session.Session, error)
	Upload(ctx context.Context, sessionID, filename string, data []byte) (*services.UploadSummary, error)
	UploadDataURL(ctx context.Context, sessionID, filename, contents string) (*services.UploadSummary, error)
	Dataset(ctx context.Context, sessionID string) (*services.DatasetView, error)
	Categories(ctx context.Context, sessionID string) ([]domain.CategoryDescriptor, error)
	Histogram(ctx context.Context, sessionID string, opts dataprocessing.HistogramOptions) (*dataprocessing.Histogram, error)
	Pie(ctx context.Context, sessionID, field string) (*dataprocessing.PieChart, error)
	MapFeatures(ctx context.Context, sessionID string, radius domain.RadiusLevel) (*geojson.FeatureCollection, error)
	Export(ctx context.Context, sessionID string, w io.Writer) error
	ExportWorkbook(ctx context.Context, sessionID string, w io.Writer) error
}

var _ DatasetServiceInterface = (*services.DatasetService)(nil)
