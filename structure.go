package scandoc

import (
	"math"
	"sort"
	"strings"
)

// buildTextBlocks groups a page's words into lines and the lines into text
// blocks, returned top to bottom.
func buildTextBlocks(words []Word, pageIndex int) []TextBlock {
	if len(words) == 0 {
		return nil
	}

	lines := groupWordsIntoLines(readingOrder(words))
	groups := groupLinesIntoBlocks(lines)

	blocks := make([]TextBlock, 0, len(groups))
	for i, group := range groups {
		texts := make([]string, 0, len(group))
		box := group[0].Box
		for _, line := range group {
			texts = append(texts, line.Text())
			box = mergeRects(box, line.Box)
		}
		blocks = append(blocks, TextBlock{
			Page:  pageIndex,
			Index: i,
			Box:   box,
			Text:  strings.Join(texts, "\n"),
		})
	}
	return blocks
}

// readingOrder returns a copy of words sorted by baseline, left to right
// within a baseline.
func readingOrder(words []Word) []Word {
	sorted := make([]Word, len(words))
	copy(sorted, words)
	sort.SliceStable(sorted, func(i, j int) bool {
		if math.Abs(sorted[i].Baseline-sorted[j].Baseline) < 3 {
			return sorted[i].Box.X0 < sorted[j].Box.X0
		}
		return sorted[i].Baseline < sorted[j].Baseline
	})
	return sorted
}

// groupWordsIntoLines groups baseline-sorted words into lines. A word joins
// the current line when its baseline is within 40% of the font size.
func groupWordsIntoLines(words []Word) []Line {
	var lines []Line
	var current Line

	flush := func() {
		if len(current.Words) == 0 {
			return
		}
		sort.Slice(current.Words, func(i, j int) bool {
			return current.Words[i].Box.X0 < current.Words[j].Box.X0
		})
		lines = append(lines, current)
		current = Line{}
	}

	for _, word := range words {
		if len(current.Words) == 0 {
			current = Line{Words: []Word{word}, Box: word.Box, Baseline: word.Baseline}
			continue
		}

		threshold := 0.4 * word.FontSize
		if threshold == 0 {
			threshold = 3.0
		}
		if math.Abs(word.Baseline-current.Baseline) >= threshold {
			flush()
			current = Line{Words: []Word{word}, Box: word.Box, Baseline: word.Baseline}
			continue
		}

		n := float64(len(current.Words))
		current.Words = append(current.Words, word)
		current.Box = mergeRects(current.Box, word.Box)
		current.Baseline = (current.Baseline*n + word.Baseline) / (n + 1)
	}
	flush()

	return lines
}

// groupLinesIntoBlocks splits lines into blocks wherever the gap between two
// lines, relative to the font size, exceeds an adaptive threshold.
func groupLinesIntoBlocks(lines []Line) [][]Line {
	if len(lines) == 0 {
		return nil
	}

	threshold := blockGapThreshold(lines)

	var blocks [][]Line
	current := []Line{lines[0]}
	for i := 1; i < len(lines); i++ {
		prev := lines[i-1]
		line := lines[i]

		fontSize := lineFontSize(prev)
		if fontSize == 0 {
			fontSize = 12
		}
		gap := (line.Box.Y0 - prev.Box.Y1) / fontSize

		ratio := lineFontSize(line) / fontSize
		if gap > threshold || ratio < 0.8 || ratio > 1.2 {
			blocks = append(blocks, current)
			current = nil
		}
		current = append(current, line)
	}
	blocks = append(blocks, current)

	return blocks
}

// blockGapThreshold is median + 1.5 stddev of the normalised line gaps,
// clamped to 0.6-1.5 line heights.
func blockGapThreshold(lines []Line) float64 {
	if len(lines) < 3 {
		return 0.9
	}

	var gaps, sizes []float64
	for i := 0; i < len(lines)-1; i++ {
		gaps = append(gaps, lines[i+1].Box.Y0-lines[i].Box.Y1)
		sizes = append(sizes, lineFontSize(lines[i]))
	}

	medianSize := calculateMedian(sizes)
	if medianSize == 0 {
		medianSize = 12
	}

	return clamp((calculateMedian(gaps)+1.5*calculateStdDev(gaps))/medianSize, 0.6, 1.5)
}

func lineFontSize(line Line) float64 {
	if len(line.Words) == 0 {
		return 0
	}
	var total float64
	for _, w := range line.Words {
		total += w.FontSize
	}
	return total / float64(len(line.Words))
}
