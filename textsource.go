package scandoc

import (
	"context"

	"github.com/tidwall/rtree"
)

// PageTextSource opens documents for reading their text blocks.
type PageTextSource interface {
	Open(ctx context.Context, path string) (TextDocument, error)
}

// TextDocument gives per-page text blocks and detected table regions.
type TextDocument interface {
	PageCount() int
	TextBlocks(ctx context.Context, page int) ([]TextBlock, error)
	TableRegions(ctx context.Context, page int) ([]Rect, error)
	Close() error
}

// PdfiumTextSource reads text through a pdfium pool.
type PdfiumTextSource struct {
	pool     *PdfiumPool
	settings TableSettings
}

// NewPdfiumTextSource returns a text source using pool. settings drive the
// table regions reported by TableRegions.
func NewPdfiumTextSource(pool *PdfiumPool, settings TableSettings) *PdfiumTextSource {
	return &PdfiumTextSource{pool: pool, settings: settings.WithStrategy(StrategyLines)}
}

// Open reads the page count; pages are extracted lazily and cached.
func (s *PdfiumTextSource) Open(ctx context.Context, path string) (TextDocument, error) {
	count, err := s.pool.PageCount(ctx, path)
	if err != nil {
		return nil, err
	}
	return &pdfiumTextDocument{
		path:     path,
		count:    count,
		pages:    s.pool,
		settings: s.settings,
		cache:    make(map[int]*Page),
	}, nil
}

type pdfiumTextDocument struct {
	path     string
	count    int
	pages    pageExtractor
	settings TableSettings
	cache    map[int]*Page
}

func (d *pdfiumTextDocument) PageCount() int { return d.count }

func (d *pdfiumTextDocument) page(ctx context.Context, index int) (*Page, error) {
	if p, ok := d.cache[index]; ok {
		return p, nil
	}
	p, err := d.pages.ExtractPage(ctx, d.path, index)
	if err != nil {
		return nil, err
	}
	d.cache[index] = p
	return p, nil
}

func (d *pdfiumTextDocument) TextBlocks(ctx context.Context, page int) ([]TextBlock, error) {
	p, err := d.page(ctx, page)
	if err != nil {
		return nil, err
	}
	return p.Blocks, nil
}

// TableRegions returns the boxes of the tables the edge finder sees on the
// page, followed by segment-based regions that overlap none of them.
func (d *pdfiumTextDocument) TableRegions(ctx context.Context, page int) ([]Rect, error) {
	p, err := d.page(ctx, page)
	if err != nil {
		return nil, err
	}
	var regions []Rect
	var index rtree.RTreeG[Rect]
	for _, t := range DetectTables(p, d.settings) {
		if t.BBox != nil {
			regions = append(regions, *t.BBox)
			insertRect(&index, *t.BBox)
		}
	}
	for _, r := range segmentRegions(p) {
		if !overlapsAny(&index, r) {
			regions = append(regions, r)
			insertRect(&index, r)
		}
	}
	return regions, nil
}

func (d *pdfiumTextDocument) Close() error {
	d.cache = nil
	return nil
}
