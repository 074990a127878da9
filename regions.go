package scandoc

import "sort"

// Segment-based region finding after PDF-TREX: words on a line are clustered
// into segments, lines with several segments are table lines, and runs of
// table lines between full-width text lines form table regions. It finds
// borderless tables the edge finder misses when words do not align well.

const (
	defaultSegmentGap = 20.0
	defaultLineGap    = 5.0

	// minRegionTableLines is the number of multi-segment lines a region
	// needs before it counts as a table.
	minRegionTableLines = 2
)

type lineKind int

const (
	lineUnknown lineKind = iota // one narrow segment
	lineText                    // one segment spanning more than half the page
	lineTable                   // several segments
)

// segment is a run of words on a line separated by small gaps.
type segment struct {
	words []Word
	box   Rect
}

// gapThresholds derives the segment gap and line gap limits from the page's
// own spacing: median plus 1.5 standard deviations, clamped to 5-100pt.
func gapThresholds(lines []Line) (horizontal, vertical float64) {
	var hGaps, vGaps []float64
	for i, line := range lines {
		for j := 1; j < len(line.Words); j++ {
			gap := line.Words[j].Box.X0 - line.Words[j-1].Box.X1
			if gap > 0 && gap < 200 {
				hGaps = append(hGaps, gap)
			}
		}
		if i > 0 {
			gap := line.Box.Y0 - lines[i-1].Box.Y1
			if gap > 0 && gap < 200 {
				vGaps = append(vGaps, gap)
			}
		}
	}
	return thresholdFromGaps(hGaps, defaultSegmentGap), thresholdFromGaps(vGaps, defaultLineGap)
}

func thresholdFromGaps(gaps []float64, fallback float64) float64 {
	if len(gaps) < 3 {
		return fallback
	}
	return clamp(calculateMedian(gaps)+1.5*calculateStdDev(gaps), 5.0, 100.0)
}

// lineSegments splits a line wherever two neighbouring words are more than
// maxGap apart. Line words are ordered left to right, so this is the single
// linkage clustering of the words.
func lineSegments(line Line, maxGap float64) []segment {
	if len(line.Words) == 0 {
		return nil
	}

	words := make([]Word, len(line.Words))
	copy(words, line.Words)
	sort.Slice(words, func(i, j int) bool { return words[i].Box.X0 < words[j].Box.X0 })

	segments := []segment{{words: words[:1], box: words[0].Box}}
	for _, w := range words[1:] {
		last := &segments[len(segments)-1]
		if w.Box.X0-last.box.X1 > maxGap {
			segments = append(segments, segment{words: []Word{w}, box: w.Box})
			continue
		}
		last.words = append(last.words, w)
		last.box = mergeRects(last.box, w.Box)
	}
	return segments
}

func classifyLine(segments []segment, pageWidth float64) lineKind {
	switch {
	case len(segments) > 1:
		return lineTable
	case len(segments) == 1 && segments[0].box.Width() > pageWidth*0.5:
		return lineText
	default:
		return lineUnknown
	}
}

// segmentRegions returns the boxes of table-like regions of a page.
func segmentRegions(page *Page) []Rect {
	if page == nil || len(page.Words) < 2 {
		return nil
	}

	lines := groupWordsIntoLines(readingOrder(page.Words))
	hGap, vGap := gapThresholds(lines)

	var regions []Rect
	var run []Line
	tableLines := 0

	flush := func() {
		if tableLines >= minRegionTableLines {
			box := run[0].Box
			for _, l := range run[1:] {
				box = mergeRects(box, l.Box)
			}
			regions = append(regions, box)
		}
		run = nil
		tableLines = 0
	}

	for i, line := range lines {
		kind := classifyLine(lineSegments(line, hGap), page.Width)

		// A text line or a wide vertical gap closes the current region
		if kind == lineText || (len(run) > 0 && line.Box.Y0-lines[i-1].Box.Y1 > 3*vGap) {
			flush()
		}
		if kind == lineText {
			continue
		}

		run = append(run, line)
		if kind == lineTable {
			tableLines++
		}
	}
	flush()

	return regions
}
