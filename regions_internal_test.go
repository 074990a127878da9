package scandoc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func proseLine(y float64) []Word {
	var words []Word
	for i := range 10 {
		words = append(words, textWord("lorem", 50+34*float64(i), y))
	}
	return words
}

func TestSegmentRegions(t *testing.T) {
	page := &Page{Width: 612, Height: 792}
	page.Words = append(page.Words, proseLine(20)...)
	for _, y := range []float64{40, 55, 70} {
		page.Words = append(page.Words,
			textWord("alpha", 50, y),
			textWord("beta", 200, y),
			textWord("gamma", 350, y),
		)
	}
	page.Words = append(page.Words, proseLine(85)...)

	regions := segmentRegions(page)
	require.Len(t, regions, 1)
	assert.Equal(t, Rect{X0: 50, Y0: 40, X1: 380, Y1: 80}, regions[0])
}

func TestSegmentRegions_ProseOnly(t *testing.T) {
	page := &Page{Width: 612, Height: 792}
	for _, y := range []float64{20, 35, 50, 65} {
		page.Words = append(page.Words, proseLine(y)...)
	}
	assert.Empty(t, segmentRegions(page))
	assert.Empty(t, segmentRegions(nil))
}

func TestLineSegments(t *testing.T) {
	line := Line{Words: []Word{
		textWord("c", 300, 0),
		textWord("a", 10, 0),
		textWord("b", 20, 0),
	}}

	segments := lineSegments(line, 20)
	require.Len(t, segments, 2)
	assert.Len(t, segments[0].words, 2)
	assert.Equal(t, Rect{X0: 10, Y0: 0, X1: 26, Y1: 10}, segments[0].box)

	assert.Equal(t, lineTable, classifyLine(segments, 612))
	assert.Equal(t, lineUnknown, classifyLine(segments[:1], 612))
	assert.Equal(t, lineText, classifyLine([]segment{{box: Rect{X0: 0, X1: 400}}}, 612))
}
