package scandoc

import (
	"context"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pkg/errors"
)

// OCROptions control a single OCR run.
type OCROptions struct {
	Language string // Tesseract language, "+" separated for several
	DPI      int    // Image resolution hint; zero lets the engine decide
	Deskew   bool
	Clean    bool
}

// OCREngine turns a scanned PDF into a searchable one.
type OCREngine interface {
	MakeSearchable(ctx context.Context, in, out string, opts OCROptions) error
}

// OCRmyPDF runs the ocrmypdf command line tool and produces PDF/A.
type OCRmyPDF struct {
	Command  string
	Optimize int

	run      commandRunner
	lookPath func(string) (string, error)
}

// NewOCRmyPDF returns an engine running the configured ocrmypdf command.
func NewOCRmyPDF(config OCRConfig) *OCRmyPDF {
	command := config.Command
	if command == "" {
		command = "ocrmypdf"
	}
	return &OCRmyPDF{
		Command:  command,
		Optimize: config.Optimize,
		run:      execRunner,
		lookPath: exec.LookPath,
	}
}

// MakeSearchable OCRs in and writes the result to out.
func (o *OCRmyPDF) MakeSearchable(ctx context.Context, in, out string, opts OCROptions) error {
	if _, err := o.lookPath(o.Command); err != nil {
		return markf(ErrOCRFailure, err, "%s not found", o.Command)
	}
	if _, err := o.run(ctx, o.Command, o.args(in, out, opts)...); err != nil {
		return markf(ErrOCRFailure, err, "ocr of %s", filepath.Base(in))
	}
	return nil
}

func (o *OCRmyPDF) args(in, out string, opts OCROptions) []string {
	language := opts.Language
	if language == "" {
		language = "eng"
	}
	args := []string{
		"--language", language,
		"--output-type", "pdfa",
		"--optimize", strconv.Itoa(o.Optimize),
	}
	if opts.Deskew {
		args = append(args, "--deskew")
	}
	if opts.Clean {
		args = append(args, "--clean")
	}
	if opts.DPI > 0 {
		args = append(args, "--image-dpi", strconv.Itoa(opts.DPI))
	}
	return append(args, in, out)
}

// imageExtensions are the raster inputs wrapped into a PDF before OCR.
var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".tif":  true,
	".tiff": true,
}

// SupportedInput reports whether a file name has an accepted extension.
func SupportedInput(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".pdf" || imageExtensions[ext]
}

func isImage(name string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(name))]
}

// imageToPDF wraps a raster image into a single page PDF at dpi.
func imageToPDF(image, out string, dpi int) error {
	imp := pdfcpu.DefaultImportConfig()
	if dpi > 0 {
		imp.DPI = dpi
	}
	if err := api.ImportImagesFile([]string{image}, out, imp, model.NewDefaultConfiguration()); err != nil {
		return errors.Wrapf(err, "failed to convert %s to PDF", filepath.Base(image))
	}
	return nil
}

// validatePDF checks a PDF's structure with pdfcpu.
func validatePDF(path string) error {
	return api.ValidateFile(path, model.NewDefaultConfiguration())
}

// PageCount returns the number of pages of a PDF without opening it in pdfium.
func PageCount(path string) (int, error) {
	n, err := api.PageCountFile(path)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to count pages of %s", filepath.Base(path))
	}
	return n, nil
}
