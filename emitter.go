package scandoc

import (
	"context"
	"io"
	"strings"

	"github.com/pkg/errors"
)

// Emitter writes a render plan as an output document.
type Emitter interface {
	Emit(ctx context.Context, plan RenderPlan, style TableStyle, w io.Writer) error
}

// OutputFormat is the kind of document a conversion produces.
type OutputFormat string

const (
	FormatPDF      OutputFormat = "pdf"
	FormatDocx     OutputFormat = "docx"
	FormatMarkdown OutputFormat = "md"
)

// ParseOutputFormat validates an output format name. An empty name is pdf.
func ParseOutputFormat(name string) (OutputFormat, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "pdf":
		return FormatPDF, nil
	case "docx", "word":
		return FormatDocx, nil
	case "md", "markdown":
		return FormatMarkdown, nil
	}
	return "", errors.Errorf("unknown output format %q", name)
}

// Extension returns the file extension for the format, with the dot.
func (f OutputFormat) Extension() string {
	return "." + string(f)
}

// TableStyle selects how tables look in word-processor output.
type TableStyle string

const (
	StyleBasic TableStyle = "basic"
	StyleGrid  TableStyle = "grid"
	StyleLight TableStyle = "light"
	StyleFancy TableStyle = "fancy"
)

// ParseTableStyle maps a style name onto a TableStyle. Unknown names give
// the grid style.
func ParseTableStyle(name string) TableStyle {
	switch s := TableStyle(strings.ToLower(strings.TrimSpace(name))); s {
	case StyleBasic, StyleGrid, StyleLight, StyleFancy:
		return s
	}
	return StyleGrid
}

// wordStyle is a table style as defined in styles.xml.
type wordStyle struct {
	ID   string
	Name string
}

// WordStyleName returns the Word table style name for the style.
func (s TableStyle) WordStyleName() string {
	return s.wordStyle().Name
}

func (s TableStyle) wordStyle() wordStyle {
	switch s {
	case StyleBasic:
		return wordStyle{ID: "TableNormal", Name: "Table Normal"}
	case StyleLight:
		return wordStyle{ID: "LightList", Name: "Light List"}
	case StyleFancy:
		return wordStyle{ID: "MediumShading1-Accent1", Name: "Medium Shading 1 Accent 1"}
	default:
		return wordStyle{ID: "TableGrid", Name: "Table Grid"}
	}
}

// NewEmitter returns the emitter for a document format. PDF output is the
// searchable PDF itself and has no emitter.
func NewEmitter(format OutputFormat) (Emitter, error) {
	switch format {
	case FormatDocx:
		return DocxEmitter{}, nil
	case FormatMarkdown:
		return MarkdownEmitter{}, nil
	}
	return nil, errors.Errorf("no emitter for output format %q", format)
}
