package scandoc

import (
	"math"
	"sort"
	"strings"
)

// mergeEdges snaps nearby parallel edges onto a shared coordinate, then joins
// collinear edges separated by less than the join tolerance.
func mergeEdges(edges []Edge, settings TableSettings) []Edge {
	if settings.SnapXTolerance > 0 || settings.SnapYTolerance > 0 {
		edges = snapEdges(edges, settings.SnapXTolerance, settings.SnapYTolerance)
	}

	type lineKey struct {
		orientation Orientation
		position    float64
	}

	// Keys are collected in first-seen order so the output is deterministic
	var keys []lineKey
	grouped := make(map[lineKey][]Edge)
	for _, edge := range edges {
		key := lineKey{orientation: edge.Orientation, position: edge.X0}
		if edge.Orientation == Horizontal {
			key.position = edge.Top
		}
		if _, ok := grouped[key]; !ok {
			keys = append(keys, key)
		}
		grouped[key] = append(grouped[key], edge)
	}

	var result []Edge
	for _, key := range keys {
		result = append(result, joinCollinear(grouped[key], key.orientation, settings)...)
	}
	return result
}

// snapEdges moves vertical edges onto shared x positions and horizontal
// edges onto shared y positions.
func snapEdges(edges []Edge, xTol, yTol float64) []Edge {
	var vertical, horizontal []Edge
	for _, e := range edges {
		if e.Orientation == Vertical {
			vertical = append(vertical, e)
		} else {
			horizontal = append(horizontal, e)
		}
	}

	return append(snapAlong(vertical, Vertical, xTol), snapAlong(horizontal, Horizontal, yTol)...)
}

// snapAlong clusters edges whose position (x for vertical, top for
// horizontal) lies within tolerance of a running cluster mean and moves every
// member onto that mean.
func snapAlong(edges []Edge, orientation Orientation, tolerance float64) []Edge {
	if len(edges) == 0 {
		return edges
	}

	position := func(e Edge) float64 {
		if orientation == Vertical {
			return e.X0
		}
		return e.Top
	}

	type cluster struct {
		mean    float64
		members []int
	}

	var clusters []cluster
	for i, edge := range edges {
		v := position(edge)
		placed := false
		for j := range clusters {
			if math.Abs(clusters[j].mean-v) <= tolerance {
				n := float64(len(clusters[j].members))
				clusters[j].members = append(clusters[j].members, i)
				clusters[j].mean = (clusters[j].mean*n + v) / (n + 1)
				placed = true
				break
			}
		}
		if !placed {
			clusters = append(clusters, cluster{mean: v, members: []int{i}})
		}
	}

	out := make([]Edge, len(edges))
	copy(out, edges)
	for _, c := range clusters {
		for _, idx := range c.members {
			if orientation == Vertical {
				shift := c.mean - out[idx].X0
				out[idx].X0 = c.mean
				out[idx].X1 += shift
			} else {
				shift := c.mean - out[idx].Top
				out[idx].Top = c.mean
				out[idx].Bottom += shift
			}
		}
	}
	return out
}

// joinCollinear joins edges lying on the same line when the gap between them
// is within tolerance.
func joinCollinear(edges []Edge, orientation Orientation, settings TableSettings) []Edge {
	if len(edges) == 0 {
		return edges
	}

	start := func(e Edge) float64 { return e.Top }
	end := func(e Edge) float64 { return e.Bottom }
	tolerance := settings.JoinYTolerance
	if orientation == Horizontal {
		start = func(e Edge) float64 { return e.X0 }
		end = func(e Edge) float64 { return e.X1 }
		tolerance = settings.JoinXTolerance
	}

	sorted := make([]Edge, len(edges))
	copy(sorted, edges)
	sort.SliceStable(sorted, func(i, j int) bool {
		return start(sorted[i]) < start(sorted[j])
	})

	joined := []Edge{sorted[0]}
	for _, current := range sorted[1:] {
		last := &joined[len(joined)-1]
		if start(current) > end(*last)+tolerance {
			joined = append(joined, current)
			continue
		}
		if end(current) <= end(*last) {
			continue
		}
		if orientation == Horizontal {
			last.X1 = current.X1
			last.Width = last.X1 - last.X0
		} else {
			last.Bottom = current.Bottom
			last.Height = last.Bottom - last.Top
		}
	}
	return joined
}

// filterEdgesByLength drops edges shorter than minLength.
func filterEdgesByLength(edges []Edge, minLength float64) []Edge {
	if minLength <= 0 {
		return edges
	}

	result := make([]Edge, 0, len(edges))
	for _, edge := range edges {
		length := edge.Width
		if edge.Orientation == Vertical {
			length = edge.Height
		}
		if length >= minLength {
			result = append(result, edge)
		}
	}
	return result
}

// crossing records the edges meeting at an intersection point.
type crossing struct {
	vertical   []Edge
	horizontal []Edge
}

// findIntersections finds the points where a vertical and a horizontal edge
// cross, within the intersection tolerances.
func findIntersections(edges []Edge, settings TableSettings) map[Point]*crossing {
	intersections := make(map[Point]*crossing)

	var vertical, horizontal []Edge
	for _, e := range edges {
		if e.Orientation == Vertical {
			vertical = append(vertical, e)
		} else {
			horizontal = append(horizontal, e)
		}
	}

	xTol := settings.IntersectionXTolerance
	yTol := settings.IntersectionYTolerance

	for _, v := range vertical {
		for _, h := range horizontal {
			if v.Top > h.Top+yTol || v.Bottom < h.Top-yTol {
				continue
			}
			if v.X0 < h.X0-xTol || v.X0 > h.X1+xTol {
				continue
			}

			point := Point{X: v.X0, Y: h.Top}
			c, ok := intersections[point]
			if !ok {
				c = &crossing{}
				intersections[point] = c
			}
			c.vertical = append(c.vertical, v)
			c.horizontal = append(c.horizontal, h)
		}
	}

	return intersections
}

// intersectionsToCells builds the minimal rectangular cells whose four
// corners are intersections connected by shared edges.
func intersectionsToCells(intersections map[Point]*crossing) []Rect {
	if len(intersections) == 0 {
		return nil
	}

	points := make([]Point, 0, len(intersections))
	for p := range intersections {
		points = append(points, p)
	}
	sort.Slice(points, func(i, j int) bool {
		if points[i].Y == points[j].Y {
			return points[i].X < points[j].X
		}
		return points[i].Y < points[j].Y
	})

	connected := func(a, b Point) bool {
		ca, cb := intersections[a], intersections[b]
		if a.X == b.X {
			for _, e1 := range ca.vertical {
				for _, e2 := range cb.vertical {
					if e1.X0 == e2.X0 && e1.Top == e2.Top && e1.Bottom == e2.Bottom {
						return true
					}
				}
			}
		}
		if a.Y == b.Y {
			for _, e1 := range ca.horizontal {
				for _, e2 := range cb.horizontal {
					if e1.Top == e2.Top && e1.X0 == e2.X0 && e1.X1 == e2.X1 {
						return true
					}
				}
			}
		}
		return false
	}

	var cells []Rect
	for i, pt := range points {
		var right, below *Point
		for j := i + 1; j < len(points); j++ {
			p := &points[j]
			if p.X == pt.X && p.Y > pt.Y && (below == nil || p.Y < below.Y) {
				below = p
			}
			if p.Y == pt.Y && p.X > pt.X && (right == nil || p.X < right.X) {
				right = p
			}
		}
		if right == nil || below == nil {
			continue
		}
		if !connected(pt, *below) || !connected(pt, *right) {
			continue
		}

		corner := Point{X: right.X, Y: below.Y}
		if _, ok := intersections[corner]; !ok {
			continue
		}
		if connected(corner, *right) && connected(corner, *below) {
			cells = append(cells, Rect{X0: pt.X, Y0: pt.Y, X1: corner.X, Y1: corner.Y})
		}
	}

	return cells
}

// cellsToTables groups cells that share corners into tables. Groups of a
// single cell are not tables.
func cellsToTables(cells []Rect) [][]Rect {
	remaining := make([]Rect, len(cells))
	copy(remaining, cells)

	cornersOf := func(c Rect) [4]Point {
		return [4]Point{{c.X0, c.Y0}, {c.X0, c.Y1}, {c.X1, c.Y0}, {c.X1, c.Y1}}
	}

	var tables [][]Rect
	for len(remaining) > 0 {
		table := []Rect{remaining[0]}
		corners := make(map[Point]bool)
		for _, p := range cornersOf(remaining[0]) {
			corners[p] = true
		}
		remaining = remaining[1:]

		// Keep sweeping until no remaining cell touches the table
		for grew := true; grew; {
			grew = false
			rest := remaining[:0]
			for _, cell := range remaining {
				touches := false
				for _, p := range cornersOf(cell) {
					if corners[p] {
						touches = true
						break
					}
				}
				if !touches {
					rest = append(rest, cell)
					continue
				}
				table = append(table, cell)
				for _, p := range cornersOf(cell) {
					corners[p] = true
				}
				grew = true
			}
			remaining = rest
		}

		if len(table) > 1 {
			tables = append(tables, table)
		}
	}

	return tables
}

// createTable reads the text of every cell and builds a rectangular grid.
// Rows without any text are dropped.
func createTable(cells []Rect, words []Word) TableCandidate {
	if len(cells) == 0 {
		return TableCandidate{}
	}

	bbox := cells[0]
	for _, cell := range cells[1:] {
		bbox = mergeRects(bbox, cell)
	}

	type rowGroup struct {
		top   float64
		cells []Rect
	}

	var rows []rowGroup
	for _, cell := range cells {
		placed := false
		for i := range rows {
			if math.Abs(rows[i].top-cell.Y0) < 1.0 {
				rows[i].cells = append(rows[i].cells, cell)
				placed = true
				break
			}
		}
		if !placed {
			rows = append(rows, rowGroup{top: cell.Y0, cells: []Rect{cell}})
		}
	}

	sort.Slice(rows, func(i, j int) bool {
		return rows[i].top < rows[j].top
	})

	assigned := make(map[int]bool)
	var grid [][]string
	for _, row := range rows {
		sort.Slice(row.cells, func(j, k int) bool {
			return row.cells[j].X0 < row.cells[k].X0
		})

		texts := make([]string, 0, len(row.cells))
		hasText := false
		for _, cell := range row.cells {
			text := cellText(cell, words, assigned)
			if text != "" {
				hasText = true
			}
			texts = append(texts, text)
		}
		if hasText {
			grid = append(grid, texts)
		}
	}

	return TableCandidate{
		BBox:     &bbox,
		Rows:     normalizeGrid(grid),
		Accuracy: tableAccuracy(bbox, words, assigned),
	}
}

// cellText joins the words whose center falls inside the cell, reading top to
// bottom and left to right. Matched word indexes are recorded in assigned.
func cellText(cell Rect, words []Word, assigned map[int]bool) string {
	const tolerance = 1.0

	var inside []int
	for i, word := range words {
		cx, cy := word.Box.CenterX(), word.Box.CenterY()
		if cx >= cell.X0-tolerance && cx <= cell.X1+tolerance &&
			cy >= cell.Y0-tolerance && cy <= cell.Y1+tolerance {
			inside = append(inside, i)
		}
	}

	sort.SliceStable(inside, func(a, b int) bool {
		wa, wb := words[inside[a]].Box, words[inside[b]].Box
		if math.Abs(wa.Y0-wb.Y0) < 2.0 {
			return wa.X0 < wb.X0
		}
		return wa.Y0 < wb.Y0
	})

	var sb strings.Builder
	for n, idx := range inside {
		assigned[idx] = true
		if n > 0 {
			prev := words[inside[n-1]].Box
			if words[idx].Box.Y0-prev.Y1 > 2.0 {
				sb.WriteString("\n")
			} else {
				sb.WriteString(" ")
			}
		}
		sb.WriteString(words[idx].Text)
	}
	return sb.String()
}

// tableAccuracy is the percentage of words inside bbox that were assigned to
// a cell. A box containing no words scores 0.
func tableAccuracy(bbox Rect, words []Word, assigned map[int]bool) float64 {
	total, hit := 0, 0
	for i, word := range words {
		cx, cy := word.Box.CenterX(), word.Box.CenterY()
		if cx < bbox.X0 || cx > bbox.X1 || cy < bbox.Y0 || cy > bbox.Y1 {
			continue
		}
		total++
		if assigned[i] {
			hit++
		}
	}
	if total == 0 {
		return 0
	}
	return 100 * float64(hit) / float64(total)
}
