package export

import (
	"context"

	"github.com/traveldata/hotel-exporter/internal/errors"
	"github.com/traveldata/hotel-exporter/internal/model"
)

// Dataset is the materialized result of an export query: a header row and
// the records beneath it, in render order.
type Dataset struct {
	Header  []string
	Records [][]string
}

// DataSource yields the rows for one export run. Implementations live with
// the hotel-content owners; the worker only consumes the contract.
type DataSource interface {
	Rows(ctx context.Context, exportType model.ExportType, filters model.ExportFilters) (*Dataset, error)
}

// Renderer turns a dataset into output bytes for a single format.
type Renderer interface {
	Render(ds *Dataset) ([]byte, error)
}

// Notifier is told about every successfully completed export.
type Notifier interface {
	ExportCompleted(ctx context.Context, userID int64, jobID string, exportType model.ExportType, filePath string) error
}

// Registry maps formats to renderers. CSV and JSON are built in; excel must
// be registered by the embedding service.
type Registry struct {
	renderers map[model.ExportFormat]Renderer
}

func NewRegistry() *Registry {
	return &Registry{
		renderers: map[model.ExportFormat]Renderer{
			model.ExportFormatCSV:  CSVRenderer{},
			model.ExportFormatJSON: JSONRenderer{},
		},
	}
}

func (r *Registry) Register(format model.ExportFormat, renderer Renderer) {
	r.renderers[format] = renderer
}

func (r *Registry) Renderer(format model.ExportFormat) (Renderer, error) {
	renderer, ok := r.renderers[format]
	if !ok {
		return nil, errors.New("no renderer registered for format "+string(format),
			errors.WithID("exporter.export.renderer_missing"))
	}
	return renderer, nil
}
