package scandoc

import (
	"context"
	"time"

	"github.com/klippa-app/go-pdfium"
	"github.com/klippa-app/go-pdfium/references"
	"github.com/klippa-app/go-pdfium/webassembly"
	"github.com/pkg/errors"
)

// PdfiumPool hands out pdfium WebAssembly instances. Every document operation
// takes its own instance, so backends can share one pool concurrently.
type PdfiumPool struct {
	pool    pdfium.Pool
	timeout time.Duration
}

// NewPdfiumPool starts a pool of up to size pdfium instances.
func NewPdfiumPool(size int) (*PdfiumPool, error) {
	if size < 1 {
		size = 1
	}
	pool, err := webassembly.Init(webassembly.Config{
		MinIdle:  1,
		MaxIdle:  size,
		MaxTotal: size,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to initialise pdfium")
	}
	return &PdfiumPool{pool: pool, timeout: 30 * time.Second}, nil
}

// Close shuts the pool down.
func (p *PdfiumPool) Close() error {
	return p.pool.Close()
}

// withDocument opens path on a pooled instance and calls fn with it.
func (p *PdfiumPool) withDocument(ctx context.Context, path string, fn func(pdfium.Pdfium, references.FPDF_DOCUMENT) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	instance, err := p.pool.GetInstance(p.timeout)
	if err != nil {
		return errors.Wrap(err, "failed to get pdfium instance")
	}
	defer instance.Close()

	doc, closeDoc, err := openDocument(instance, path)
	if err != nil {
		return err
	}
	defer closeDoc()

	return fn(instance, doc)
}

// PageCount returns the number of pages in the PDF at path.
func (p *PdfiumPool) PageCount(ctx context.Context, path string) (int, error) {
	var count int
	err := p.withDocument(ctx, path, func(instance pdfium.Pdfium, doc references.FPDF_DOCUMENT) error {
		var err error
		count, err = pageCount(instance, doc)
		return err
	})
	return count, err
}

// ExtractPage builds the structural model of one 0-based page.
func (p *PdfiumPool) ExtractPage(ctx context.Context, path string, page int) (*Page, error) {
	var result *Page
	err := p.withDocument(ctx, path, func(instance pdfium.Pdfium, doc references.FPDF_DOCUMENT) error {
		count, err := pageCount(instance, doc)
		if err != nil {
			return err
		}
		if page < 0 || page >= count {
			return errors.Errorf("page %d out of range (document has %d pages)", page, count)
		}
		result, err = extractPage(instance, doc, page)
		return err
	})
	return result, err
}
