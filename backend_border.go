package scandoc

import (
	"context"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pkg/errors"
)

// DefaultAccuracyThreshold is the lattice accuracy below which the border
// backend also runs a stream pass.
const DefaultAccuracyThreshold = 80.0

// BorderBackend detects tables in two passes: a lattice pass over ruling
// lines, then a stream pass over word alignment when the lattice pass finds
// nothing or scores below the accuracy threshold. It needs a text layer.
type BorderBackend struct {
	pages     pageExtractor
	settings  TableSettings
	threshold float64

	// firstPageText reads the first page's text for the compatibility check.
	firstPageText func(path string) (string, error)
}

// NewBorderBackend returns a border backend. A threshold of zero uses
// DefaultAccuracyThreshold.
func NewBorderBackend(pages pageExtractor, settings TableSettings, threshold float64) *BorderBackend {
	if threshold <= 0 {
		threshold = DefaultAccuracyThreshold
	}
	return &BorderBackend{
		pages:         pages,
		settings:      settings,
		threshold:     threshold,
		firstPageText: firstPageText,
	}
}

func (b *BorderBackend) Kind() BackendKind { return BackendBorder }

// Compatible requires non-empty text on the first page, so pure image scans
// are rejected.
func (b *BorderBackend) Compatible(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	text, err := b.firstPageText(path)
	if err != nil {
		return errors.Wrap(err, "failed to read first page text")
	}
	if strings.TrimSpace(text) == "" {
		return errors.New("first page has no extractable text")
	}
	return nil
}

// Extract runs the lattice pass and, when needed, the stream pass.
func (b *BorderBackend) Extract(ctx context.Context, path string, page int) ([]TableCandidate, error) {
	p, err := b.pages.ExtractPage(ctx, path, page)
	if err != nil {
		return nil, err
	}

	lattice := DetectTables(p, b.settings.WithStrategy(StrategyLinesStrict))

	var stream []TableCandidate
	if len(lattice) == 0 || lattice[0].Accuracy < b.threshold {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		stream = DetectTables(p, b.settings.WithStrategy(StrategyText))
	}

	tables := choosePass(lattice, stream)
	for i := range tables {
		tables[i].Source = BackendBorder
	}
	return tables, nil
}

// choosePass keeps the lattice tables unless the stream pass found tables
// and either lattice found none or stream scored strictly higher.
func choosePass(lattice, stream []TableCandidate) []TableCandidate {
	if len(stream) == 0 {
		return lattice
	}
	if len(lattice) == 0 || stream[0].Accuracy > lattice[0].Accuracy {
		return stream
	}
	return lattice
}

// firstPageText extracts the plain text of page 1 without pdfium, so the
// probe stays independent of the page extraction pool.
func firstPageText(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", errors.Wrap(err, "failed to open PDF")
	}
	defer f.Close()

	if r.NumPage() < 1 {
		return "", nil
	}
	page := r.Page(1)
	if page.V.IsNull() {
		return "", nil
	}
	return page.GetPlainText(nil)
}
