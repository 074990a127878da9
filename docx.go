package scandoc

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/gomutex/godocx"
	"github.com/gomutex/godocx/docx"
	"github.com/gomutex/godocx/wml/ctypes"
	"github.com/gomutex/godocx/wml/stypes"
)

// DocxEmitter writes a plan as a WordprocessingML (.docx) package. The
// package starts from godocx's default template, which defines the Heading1
// paragraph style and every table style a TableStyle maps to.
type DocxEmitter struct{}

const (
	// Text width of the template's letter page with 1.25in side margins
	docxTextWidth = 8640

	headerFill = "D9D9D9"
)

// Emit writes the package to w.
func (DocxEmitter) Emit(ctx context.Context, plan RenderPlan, style TableStyle, w io.Writer) error {
	doc, err := godocx.NewDocument()
	if err != nil {
		return markf(ErrEmitFailure, err, "failed to open docx template")
	}
	defer doc.Close()

	for i, page := range plan.Pages {
		if err := ctx.Err(); err != nil {
			return markf(ErrEmitFailure, err, "docx emit cancelled")
		}
		if i > 0 {
			doc.AddPageBreak()
		}

		if _, err := doc.AddHeading(fmt.Sprintf("Page %d", page.Page+1), 1); err != nil {
			return markf(ErrEmitFailure, err, "failed to add page heading")
		}

		for _, unit := range page.Units {
			switch unit.Kind {
			case UnitText:
				addLines(doc.AddEmptyParagraph(), unit.Block.Text, false)
			case UnitTable:
				doc.AddEmptyParagraph().AddText("Table").Bold(true).Size(12)
				addDocxTable(doc, unit.Table.TableCandidate, style)
				doc.AddEmptyParagraph()
			}
		}
	}

	if err := doc.Write(w); err != nil {
		return markf(ErrEmitFailure, err, "failed to write docx package")
	}
	return nil
}

// addLines turns newlines into line breaks inside one paragraph.
func addLines(p *docx.Paragraph, text string, bold bool) {
	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			p.AddRun().AddBreak(nil)
		}
		run := p.AddText(line)
		if bold {
			run.Bold(true)
		}
	}
}

func addDocxTable(doc *docx.RootDoc, t TableCandidate, style TableStyle) {
	table := doc.AddTable()
	table.Style(style.wordStyle().ID)
	table.Width(0, stypes.TableWidthAuto)

	cols := t.NumCols()
	widths := make([]uint64, cols)
	for i := range widths {
		widths[i] = uint64(docxTextWidth / max(cols, 1))
	}
	table.Grid(widths...)

	for r, row := range t.Rows {
		header := r == 0 && t.Header
		tr := table.AddRow()
		for _, text := range row {
			cell := tr.AddCell()
			if header {
				cell.BackgroundColor(headerFill)
			}
			addLines(cell.AddEmptyPara(), text, header)
		}
	}

	// Cells start with a white fill that would hide the table style's own
	// banding; the header row repeats on every page it spans.
	ct := table.GetCT()
	for r, content := range ct.RowContents {
		if content.Row == nil {
			continue
		}
		if r == 0 && t.Header {
			content.Row.Property.Header = &ctypes.OnOff{}
			continue
		}
		for _, c := range content.Row.Contents {
			if c.Cell != nil && c.Cell.Property != nil {
				c.Cell.Property.Shading = nil
			}
		}
	}
}
