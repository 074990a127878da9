package scandoc

import (
	"context"
)

// pageExtractor builds the structural model of a page. PdfiumPool implements
// it; tests substitute fixed pages.
type pageExtractor interface {
	ExtractPage(ctx context.Context, path string, page int) (*Page, error)
}

// GeometryBackend finds tables in the document's own structure: ruling
// lines first, word alignment when a page has none. It runs on any PDF.
type GeometryBackend struct {
	pages    pageExtractor
	settings TableSettings
}

// NewGeometryBackend returns a geometry backend reading pages through pages.
func NewGeometryBackend(pages pageExtractor, settings TableSettings) *GeometryBackend {
	return &GeometryBackend{
		pages:    pages,
		settings: settings.WithStrategy(StrategyLines),
	}
}

func (b *GeometryBackend) Kind() BackendKind { return BackendGeometry }

// Compatible always succeeds.
func (b *GeometryBackend) Compatible(context.Context, string) error { return nil }

// Extract detects the tables on a page and promotes a fully populated first
// row to the header.
func (b *GeometryBackend) Extract(ctx context.Context, path string, page int) ([]TableCandidate, error) {
	p, err := b.pages.ExtractPage(ctx, path, page)
	if err != nil {
		return nil, err
	}

	tables := DetectTables(p, b.settings)
	for i := range tables {
		tables[i].Source = BackendGeometry
		promoteHeader(&tables[i])
	}
	return tables, nil
}
