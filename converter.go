package scandoc

import (
	"bufio"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// ConversionMetrics contains timing and statistics for one conversion.
type ConversionMetrics struct {
	TotalTime  time.Duration
	OCRTime    time.Duration
	TableTime  time.Duration
	OutputTime time.Duration

	Pages      int
	Tables     int
	TextBlocks int
	Occluded   int
}

// ConvertOptions are the per-job choices.
type ConvertOptions struct {
	Format       OutputFormat
	TableStyle   TableStyle
	OCR          OCROptions
	DetectTables bool

	// ExportFormat and ExportDir enable writing tables next to the output
	ExportFormat ExportFormat
	ExportDir    string
}

// DefaultConvertOptions derives job options from the configuration.
func DefaultConvertOptions(config Config) ConvertOptions {
	format, err := ParseOutputFormat(config.Output.Format)
	if err != nil {
		format = FormatPDF
	}
	return ConvertOptions{
		Format:     format,
		TableStyle: ParseTableStyle(config.Output.TableStyle),
		OCR: OCROptions{
			Language: config.OCR.Language,
			DPI:      config.OCR.DPI,
			Deskew:   config.OCR.Deskew,
			Clean:    config.OCR.Clean,
		},
		DetectTables: config.Tables.Enabled,
		ExportFormat: ExportFormat(config.Output.ExportFormat),
	}
}

// ProgressFunc receives progress updates from 0 to 100.
type ProgressFunc func(percent int, message string)

// ConvertRequest describes one conversion.
type ConvertRequest struct {
	InputPath  string
	OutputPath string
	Options    ConvertOptions
	Progress   ProgressFunc
}

// ConvertResult describes a finished conversion.
type ConvertResult struct {
	OutputPath string
	Tables     []ReconciledTable
	Exported   []string
	Metrics    ConversionMetrics
}

// TableFinder extracts reconciled tables from every page of a PDF.
type TableFinder interface {
	ExtractAll(ctx context.Context, path string, pageCount int) ([]ReconciledTable, error)
}

// Converter turns scans into searchable PDFs or editable documents.
type Converter struct {
	ocr    OCREngine
	text   PageTextSource
	tables TableFinder
	config Config
	log    logrus.FieldLogger
}

// NewConverter creates a converter from its collaborators.
func NewConverter(ocr OCREngine, text PageTextSource, tables TableFinder, config Config, log logrus.FieldLogger) *Converter {
	if log == nil {
		log = discardLogger()
	}
	return &Converter{ocr: ocr, text: text, tables: tables, config: config, log: log}
}

// NewConverterWithConfig wires the standard collaborators: ocrmypdf, pdfium
// text extraction and all three table backends.
func NewConverterWithConfig(pool *PdfiumPool, config Config, log logrus.FieldLogger) *Converter {
	if log == nil {
		log = discardLogger()
	}
	return NewConverter(
		NewOCRmyPDF(config.OCR),
		NewPdfiumTextSource(pool, config.Tables.Settings),
		NewStandardTableExtractor(pool, config.Tables, log),
		config,
		log,
	)
}

// NewStandardTableExtractor builds the extractor over the geometry, border
// and heuristic backends with geometry as the fallback.
func NewStandardTableExtractor(pool *PdfiumPool, config TablesConfig, log logrus.FieldLogger) *TableExtractor {
	settings := config.Settings
	if settings == (TableSettings{}) {
		settings = DefaultTableSettings()
	}
	geometry := NewGeometryBackend(pool, settings)
	backends := []Backend{
		geometry,
		NewBorderBackend(pool, settings, config.AccuracyThreshold),
		NewHeuristicBackend(config.Java, config.TabulaJar),
	}
	return NewTableExtractor(backends, geometry, ExtractorOptions{
		Method:  config.Method,
		Timeout: config.BackendTimeout,
		Logger:  log,
	})
}

// Convert runs one conversion. The output appears at OutputPath only when
// the whole conversion succeeds.
func (c *Converter) Convert(ctx context.Context, req ConvertRequest) (*ConvertResult, error) {
	start := time.Now()
	progress := req.Progress
	if progress == nil {
		progress = func(int, string) {}
	}
	opts := req.Options
	if opts.Format == "" {
		opts.Format = FormatPDF
	}
	log := c.log.WithField("input", filepath.Base(req.InputPath))

	if !SupportedInput(req.InputPath) {
		return nil, markf(ErrUnsupportedInput, nil, "%q", filepath.Ext(req.InputPath))
	}

	tmp, err := os.MkdirTemp("", "scandoc-*")
	if err != nil {
		return nil, errors.Wrap(err, "failed to create temporary directory")
	}
	defer os.RemoveAll(tmp)

	progress(10, "Preparing input")
	source := req.InputPath
	if isImage(source) {
		wrapped := filepath.Join(tmp, "input.pdf")
		if err := imageToPDF(source, wrapped, opts.OCR.DPI); err != nil {
			return nil, markf(ErrOCRFailure, err, "failed to prepare image")
		}
		source = wrapped
	}

	progress(30, "Running OCR")
	metrics := ConversionMetrics{}
	ocrStart := time.Now()
	searchable := filepath.Join(tmp, "searchable.pdf")
	if err := c.ocr.MakeSearchable(ctx, source, searchable, opts.OCR); err != nil {
		return nil, err
	}
	metrics.OCRTime = time.Since(ocrStart)

	var doc TextDocument
	if opts.DetectTables || opts.Format != FormatPDF {
		doc, err = c.text.Open(ctx, searchable)
		if err != nil {
			if opts.Format != FormatPDF {
				return nil, markf(ErrEmitFailure, err, "failed to read searchable PDF")
			}
			// The PDF itself is still a valid result without tables
			log.WithError(err).Warn("cannot read searchable PDF, skipping table detection")
		} else {
			defer doc.Close()
			metrics.Pages = doc.PageCount()
		}
	}

	result := &ConvertResult{OutputPath: req.OutputPath}

	if opts.DetectTables && doc != nil {
		progress(60, "Detecting tables")
		tableStart := time.Now()
		result.Tables, err = c.tables.ExtractAll(ctx, searchable, doc.PageCount())
		if err != nil {
			return nil, errors.Wrap(err, "table detection interrupted")
		}
		metrics.TableTime = time.Since(tableStart)
		metrics.Tables = len(result.Tables)
		log.WithField("tables", len(result.Tables)).Info("table detection finished")
	}

	progress(80, "Writing output")
	outputStart := time.Now()
	partial := req.OutputPath + ".partial"
	if err := c.writeOutput(ctx, partial, searchable, doc, result.Tables, opts, &metrics); err != nil {
		os.Remove(partial)
		return nil, err
	}
	if err := os.Rename(partial, req.OutputPath); err != nil {
		os.Remove(partial)
		return nil, markf(ErrEmitFailure, err, "failed to move output into place")
	}
	metrics.OutputTime = time.Since(outputStart)

	// Exports follow the output so a failed conversion leaves nothing behind
	if opts.ExportFormat != ExportNone && opts.ExportDir != "" && len(result.Tables) > 0 {
		base := strings.TrimSuffix(filepath.Base(req.OutputPath), filepath.Ext(req.OutputPath))
		result.Exported, err = ExportTables(result.Tables, opts.ExportDir, base, opts.ExportFormat)
		if err != nil {
			log.WithError(err).Warn("table export failed")
		}
	}

	metrics.TotalTime = time.Since(start)
	result.Metrics = metrics
	if c.config.EnableMetricsLogging {
		logConversionMetrics(log, metrics)
	}

	progress(100, "Conversion completed")
	return result, nil
}

func (c *Converter) writeOutput(ctx context.Context, path, searchable string, doc TextDocument, tables []ReconciledTable, opts ConvertOptions, metrics *ConversionMetrics) error {
	if opts.Format == FormatPDF {
		if err := validatePDF(searchable); err != nil {
			c.log.WithError(err).Warn("searchable PDF did not validate")
		}
		return copyFile(searchable, path)
	}

	plan, err := c.buildPlan(ctx, doc, tables)
	if err != nil {
		return err
	}
	for _, page := range plan.Pages {
		for _, unit := range page.Units {
			if unit.Kind == UnitText {
				metrics.TextBlocks++
			}
		}
		metrics.TextBlocks += len(page.Occluded)
		metrics.Occluded += len(page.Occluded)
	}

	emitter, err := NewEmitter(opts.Format)
	if err != nil {
		return markf(ErrEmitFailure, err, "unsupported output")
	}

	f, err := os.Create(path)
	if err != nil {
		return markf(ErrEmitFailure, err, "failed to create output")
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if err := emitter.Emit(ctx, plan, opts.TableStyle, w); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return markf(ErrEmitFailure, err, "failed to write output")
	}
	if err := f.Close(); err != nil {
		return markf(ErrEmitFailure, err, "failed to close output")
	}
	return nil
}

// buildPlan composes every page of the document with its tables.
func (c *Converter) buildPlan(ctx context.Context, doc TextDocument, tables []ReconciledTable) (RenderPlan, error) {
	byPage := make(map[int][]ReconciledTable)
	for _, t := range tables {
		byPage[t.Page] = append(byPage[t.Page], t)
	}

	var plan RenderPlan
	for page := range doc.PageCount() {
		blocks, err := doc.TextBlocks(ctx, page)
		if err != nil {
			return RenderPlan{}, markf(ErrEmitFailure, err, "failed to read text of page %d", page+1)
		}

		// Regions only hide text on pages whose tables replace it
		var regions []Rect
		if c.config.Tables.UseDetectedRegions && len(byPage[page]) > 0 {
			regions, err = doc.TableRegions(ctx, page)
			if err != nil {
				c.log.WithError(err).WithField("page", page).Warn("failed to read table regions")
				regions = nil
			}
		}

		plan.Pages = append(plan.Pages, Compose(page, blocks, byPage[page], regions))
	}
	return plan, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return markf(ErrEmitFailure, err, "failed to open searchable PDF")
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return markf(ErrEmitFailure, err, "failed to create output")
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return markf(ErrEmitFailure, err, "failed to copy searchable PDF")
	}
	if err := out.Close(); err != nil {
		return markf(ErrEmitFailure, err, "failed to close output")
	}
	return nil
}

// logConversionMetrics logs a conversion's metrics as structured fields.
func logConversionMetrics(log logrus.FieldLogger, metrics ConversionMetrics) {
	fields := logrus.Fields{
		"total":       metrics.TotalTime.Round(time.Millisecond).String(),
		"ocr":         metrics.OCRTime.Round(time.Millisecond).String(),
		"tables_time": metrics.TableTime.Round(time.Millisecond).String(),
		"output_time": metrics.OutputTime.Round(time.Millisecond).String(),
		"pages":       metrics.Pages,
		"tables":      metrics.Tables,
		"text_blocks": metrics.TextBlocks,
		"occluded":    metrics.Occluded,
	}
	if metrics.Pages > 0 {
		fields["avg_per_page"] = (metrics.TotalTime / time.Duration(metrics.Pages)).Round(time.Millisecond).String()
	}
	log.WithFields(fields).Info("conversion metrics")
}
