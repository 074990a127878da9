package scandoc

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ivanvanderbyl/markdown"
)

// MarkdownEmitter renders a plan as Markdown. Each page starts with a level
// one heading; pages are separated by horizontal rules.
type MarkdownEmitter struct{}

// Emit writes the plan. The table style has no Markdown equivalent and is
// ignored.
func (MarkdownEmitter) Emit(ctx context.Context, plan RenderPlan, _ TableStyle, w io.Writer) error {
	md := markdown.NewMarkdown(w)

	for i, page := range plan.Pages {
		if err := ctx.Err(); err != nil {
			return markf(ErrEmitFailure, err, "markdown emit cancelled")
		}
		if i > 0 {
			md.HorizontalRule().LF()
		}

		md.H1(fmt.Sprintf("Page %d", page.Page+1))
		md.LF()

		for _, unit := range page.Units {
			switch unit.Kind {
			case UnitText:
				writeMarkdownText(md, unit.Block.Text)
			case UnitTable:
				writeMarkdownTable(md, unit.Table.TableCandidate)
			}
			md.LF()
		}
	}

	if err := md.Build(); err != nil {
		return markf(ErrEmitFailure, err, "failed to write markdown")
	}
	return nil
}

// writeMarkdownText keeps the block's line breaks as hard breaks.
func writeMarkdownText(md *markdown.Markdown, text string) {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	md.PlainText(strings.Join(lines, "  \n"))
}

// writeMarkdownTable renders a grid. Markdown tables always have a header
// row, so a table without one gets a blank header.
func writeMarkdownTable(md *markdown.Markdown, table TableCandidate) {
	if table.NumRows() == 0 {
		return
	}

	clean := func(row []string) []string {
		cells := make([]string, len(row))
		for i, cell := range row {
			cells[i] = strings.ReplaceAll(cell, "\n", " ")
		}
		return cells
	}

	var header []string
	var rows [][]string
	body := table.Rows
	if table.Header {
		header = clean(table.Rows[0])
		body = table.Rows[1:]
	} else {
		header = make([]string, table.NumCols())
	}
	for _, row := range body {
		rows = append(rows, clean(row))
	}

	// A header without data rows still needs one row to form a table
	if len(rows) == 0 {
		rows = [][]string{make([]string, len(header))}
	}

	md.Table(markdown.TableSet{
		Header: header,
		Rows:   rows,
	})
}
