package scandoc

import (
	"math"
	"sort"
)

// alignmentTolerance is how far apart two word positions may be and still
// count as aligned.
const alignmentTolerance = 1.0

// wordCluster is a group of words sharing an aligned coordinate.
type wordCluster struct {
	pos   float64
	words []Word
}

// clusterWords groups words whose key lies within alignmentTolerance of a
// cluster's first member.
func clusterWords(words []Word, key func(Word) float64) []wordCluster {
	var clusters []wordCluster
	for _, word := range words {
		v := key(word)
		placed := false
		for i := range clusters {
			if math.Abs(clusters[i].pos-v) < alignmentTolerance {
				clusters[i].words = append(clusters[i].words, word)
				placed = true
				break
			}
		}
		if !placed {
			clusters = append(clusters, wordCluster{pos: v, words: []Word{word}})
		}
	}
	return clusters
}

func wordsBounds(words []Word) Rect {
	box := words[0].Box
	for _, w := range words[1:] {
		box = mergeRects(box, w.Box)
	}
	return box
}

// textEdgesHorizontal infers horizontal rules from rows of words sharing a
// top coordinate. Every qualifying row contributes a rule at its top and one
// at its bottom, spanning the horizontal extent of all qualifying rows.
// Based on pdfplumber's words_to_edges_h.
func textEdgesHorizontal(words []Word, minWords int) []Edge {
	if len(words) == 0 {
		return nil
	}

	var rows []wordCluster
	for _, c := range clusterWords(words, func(w Word) float64 { return w.Box.Y0 }) {
		if len(c.words) >= minWords {
			rows = append(rows, c)
		}
	}
	if len(rows) == 0 {
		return nil
	}

	var all []Word
	for _, r := range rows {
		all = append(all, r.words...)
	}
	span := wordsBounds(all)

	edges := make([]Edge, 0, 2*len(rows))
	for _, r := range rows {
		bottom := wordsBounds(r.words).Y1
		edges = append(edges,
			horizontalEdge(span.X0, span.X1, r.pos),
			horizontalEdge(span.X0, span.X1, bottom),
		)
	}
	return edges
}

// textEdgesVertical infers vertical rules from columns of words aligned on
// their left edge, right edge or center. Overlapping column boxes are
// condensed so each column yields one rule at its left, plus a closing rule
// at the rightmost extent.
// Based on pdfplumber's words_to_edges_v.
func textEdgesVertical(words []Word, minWords int) []Edge {
	if len(words) == 0 {
		return nil
	}

	clusters := clusterWords(words, func(w Word) float64 { return w.Box.X0 })
	clusters = append(clusters, clusterWords(words, func(w Word) float64 { return w.Box.X1 })...)
	clusters = append(clusters, clusterWords(words, func(w Word) float64 { return w.Box.CenterX() })...)

	// Largest clusters claim their region first
	sort.SliceStable(clusters, func(i, j int) bool {
		return len(clusters[i].words) > len(clusters[j].words)
	})

	var columns []Rect
	for _, c := range clusters {
		if len(c.words) < minWords {
			continue
		}
		box := wordsBounds(c.words)
		overlaps := false
		for _, existing := range columns {
			if !(box.X1 < existing.X0 || box.X0 > existing.X1 ||
				box.Y1 < existing.Y0 || box.Y0 > existing.Y1) {
				overlaps = true
				break
			}
		}
		if !overlaps {
			columns = append(columns, box)
		}
	}
	if len(columns) == 0 {
		return nil
	}

	sort.Slice(columns, func(i, j int) bool {
		return columns[i].X0 < columns[j].X0
	})

	span := columns[0]
	for _, c := range columns[1:] {
		span = mergeRects(span, c)
	}

	edges := make([]Edge, 0, len(columns)+1)
	for _, c := range columns {
		edges = append(edges, verticalEdge(c.X0, span.Y0, span.Y1))
	}
	return append(edges, verticalEdge(span.X1, span.Y0, span.Y1))
}

func horizontalEdge(x0, x1, y float64) Edge {
	return Edge{X0: x0, X1: x1, Top: y, Bottom: y, Width: x1 - x0, Orientation: Horizontal}
}

func verticalEdge(x, top, bottom float64) Edge {
	return Edge{X0: x, X1: x, Top: top, Bottom: bottom, Height: bottom - top, Orientation: Vertical}
}

// edgesForAxis collects the edges of one orientation for a strategy. The
// lines strategy falls back to word alignment when the page has no ruling
// lines on that axis; lines_strict never does.
func edgesForAxis(page *Page, strategy EdgeStrategy, orientation Orientation, settings TableSettings) []Edge {
	var edges []Edge
	if strategy == StrategyLines || strategy == StrategyLinesStrict {
		for _, e := range page.Edges {
			if e.Orientation == orientation {
				edges = append(edges, e)
			}
		}
	}

	if len(edges) > 0 || strategy == StrategyLinesStrict {
		return edges
	}

	if orientation == Vertical {
		return textEdgesVertical(page.Words, settings.MinWordsVertical)
	}
	return textEdgesHorizontal(page.Words, settings.MinWordsHorizontal)
}

// DetectTables finds tables on a page from ruling lines, word alignment or
// both, depending on the strategies in settings. Each table's Accuracy is the
// percentage of words inside its box that landed in a cell.
// Based on pdfplumber's TableFinder.
func DetectTables(page *Page, settings TableSettings) []TableCandidate {
	if page == nil || len(page.Words) == 0 {
		return nil
	}

	edges := edgesForAxis(page, settings.VerticalStrategy, Vertical, settings)
	edges = append(edges, edgesForAxis(page, settings.HorizontalStrategy, Horizontal, settings)...)
	if len(edges) == 0 {
		return nil
	}

	edges = mergeEdges(edges, settings)
	edges = filterEdgesByLength(edges, settings.EdgeMinLength)

	intersections := findIntersections(edges, settings)
	cells := intersectionsToCells(intersections)
	groups := cellsToTables(cells)

	tables := make([]TableCandidate, 0, len(groups))
	for _, group := range groups {
		table := createTable(group, page.Words)
		if len(table.Rows) == 0 {
			continue
		}
		tables = append(tables, table)
	}

	// Document order: top to bottom, then left to right
	sort.SliceStable(tables, func(i, j int) bool {
		a, b := tables[i].BBox, tables[j].BBox
		if a.Y0 != b.Y0 {
			return a.Y0 < b.Y0
		}
		return a.X0 < b.X0
	})

	return tables
}
