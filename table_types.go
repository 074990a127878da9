package scandoc

import "fmt"

// Orientation of a ruling edge.
type Orientation string

const (
	Horizontal Orientation = "h"
	Vertical   Orientation = "v"
)

// Edge represents a horizontal or vertical line segment used for table detection.
// Based on pdfplumber's edge structure.
type Edge struct {
	X0          float64
	X1          float64
	Top         float64
	Bottom      float64
	Width       float64 // Width (for horizontal edges)
	Height      float64 // Height (for vertical edges)
	Orientation Orientation
}

// Point represents an (x, y) coordinate where edges intersect.
type Point struct {
	X float64
	Y float64
}

// EdgeStrategy selects where the table finder takes its edges from.
type EdgeStrategy string

const (
	// StrategyLines uses ruling lines and falls back to word alignment when
	// the page has none.
	StrategyLines EdgeStrategy = "lines"
	// StrategyLinesStrict uses ruling lines only (lattice).
	StrategyLinesStrict EdgeStrategy = "lines_strict"
	// StrategyText infers edges from word alignment only (stream).
	StrategyText EdgeStrategy = "text"
)

// TableSettings configures the edge-based table finder.
// Based on pdfplumber's TableSettings.
type TableSettings struct {
	VerticalStrategy   EdgeStrategy
	HorizontalStrategy EdgeStrategy

	// Tolerances for snapping close edges together
	SnapXTolerance float64
	SnapYTolerance float64

	// Tolerances for joining edges on the same line
	JoinXTolerance float64
	JoinYTolerance float64

	// Minimum edge length to consider
	EdgeMinLength float64

	// Minimum number of words required to infer edges from text alignment
	MinWordsVertical   int
	MinWordsHorizontal int

	// Tolerances for finding edge intersections
	IntersectionXTolerance float64
	IntersectionYTolerance float64
}

// DefaultTableSettings returns the settings of a pdfplumber style find_tables
// call: ruling lines first, word alignment when a page has none.
func DefaultTableSettings() TableSettings {
	return TableSettings{
		VerticalStrategy:       StrategyLines,
		HorizontalStrategy:     StrategyLines,
		SnapXTolerance:         3.0,
		SnapYTolerance:         3.0,
		JoinXTolerance:         3.0,
		JoinYTolerance:         3.0,
		EdgeMinLength:          3.0,
		MinWordsVertical:       3,
		MinWordsHorizontal:     1,
		IntersectionXTolerance: 3.0,
		IntersectionYTolerance: 3.0,
	}
}

// WithStrategy returns a copy of the settings using strategy on both axes.
func (s TableSettings) WithStrategy(strategy EdgeStrategy) TableSettings {
	s.VerticalStrategy = strategy
	s.HorizontalStrategy = strategy
	return s
}

// BackendKind identifies a table detection backend. The set is closed: adding
// a backend means adding a kind here and a case in selectionRank.
type BackendKind int

const (
	// BackendGeometry works on the document's own structural model and
	// runs on any PDF, scanned or not.
	BackendGeometry BackendKind = iota
	// BackendBorder needs an extractable text layer; lattice then stream.
	BackendBorder
	// BackendHeuristic needs the Java runtime for tabula.
	BackendHeuristic
)

func (k BackendKind) String() string {
	switch k {
	case BackendGeometry:
		return "geometry"
	case BackendBorder:
		return "border"
	case BackendHeuristic:
		return "heuristic"
	default:
		return fmt.Sprintf("backend(%d)", int(k))
	}
}

// ParseBackendKind maps a configured method name onto a backend kind.
func ParseBackendKind(name string) (BackendKind, bool) {
	switch name {
	case "geometry", "pymupdf":
		return BackendGeometry, true
	case "border", "camelot":
		return BackendBorder, true
	case "heuristic", "tabula":
		return BackendHeuristic, true
	}
	return 0, false
}

// TableCandidate is a table reported by one backend, before reconciliation.
type TableCandidate struct {
	// BBox is nil when the backend does not report geometry.
	BBox *Rect
	// Rows is rectangular: every row has the same number of cells.
	Rows [][]string
	// Header marks the first row as a header row.
	Header bool
	// Accuracy is the backend's 0-100 confidence, when it has one.
	Accuracy float64
	// Source is kept for diagnostics only.
	Source BackendKind
}

// NumRows returns the number of rows in the grid.
func (c TableCandidate) NumRows() int {
	return len(c.Rows)
}

// NumCols returns the number of columns in the grid.
func (c TableCandidate) NumCols() int {
	if len(c.Rows) == 0 {
		return 0
	}
	return len(c.Rows[0])
}

// IsEmpty reports whether the grid has no rows or no non-empty cell.
func (c TableCandidate) IsEmpty() bool {
	for _, row := range c.Rows {
		for _, cell := range row {
			if cell != "" {
				return false
			}
		}
	}
	return true
}

// normalizeGrid pads short rows with empty cells so the grid is rectangular.
func normalizeGrid(rows [][]string) [][]string {
	width := 0
	for _, row := range rows {
		if len(row) > width {
			width = len(row)
		}
	}
	out := make([][]string, 0, len(rows))
	for _, row := range rows {
		if len(row) == width {
			out = append(out, row)
			continue
		}
		padded := make([]string, width)
		copy(padded, row)
		out = append(out, padded)
	}
	return out
}

// promoteHeader marks the first row as a header when every cell in it has text.
func promoteHeader(c *TableCandidate) {
	if len(c.Rows) == 0 || len(c.Rows[0]) == 0 {
		return
	}
	for _, cell := range c.Rows[0] {
		if cell == "" {
			return
		}
	}
	c.Header = true
}

// ReconciledTable is a candidate accepted into the output, owned by one page.
type ReconciledTable struct {
	TableCandidate
	Page int
}
