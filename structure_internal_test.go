package scandoc

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func textWord(text string, x0, y0 float64) Word {
	width := 6 * float64(len(text))
	return Word{
		Text:     text,
		Box:      Rect{X0: x0, Y0: y0, X1: x0 + width, Y1: y0 + 10},
		FontSize: 10,
		Baseline: y0 + 8.5,
	}
}

func TestBuildTextBlocks(t *testing.T) {
	words := []Word{
		textWord("Totals", 50, 160),
		textWord("world", 90, 100),
		textWord("line", 50, 112),
		textWord("Hello", 50, 100),
		textWord("second", 80, 112),
	}

	blocks := buildTextBlocks(words, 3)
	require.Len(t, blocks, 2)

	assert.Equal(t, "Hello world\nline second", blocks[0].Text)
	assert.Equal(t, 3, blocks[0].Page)
	assert.Equal(t, 0, blocks[0].Index)
	assert.Equal(t, Rect{X0: 50, Y0: 100, X1: 120, Y1: 122}, blocks[0].Box)

	assert.Equal(t, "Totals", blocks[1].Text)
	assert.Equal(t, 1, blocks[1].Index)

	assert.Empty(t, buildTextBlocks(nil, 0))
}

func TestGroupLinesIntoBlocks_FontChangeSplits(t *testing.T) {
	heading := Word{Text: "Summary", Box: Rect{X0: 50, Y0: 100, X1: 150, Y1: 120}, FontSize: 20, Baseline: 117}
	body := textWord("details", 50, 122)

	lines := groupWordsIntoLines([]Word{heading, body})
	require.Len(t, lines, 2)
	assert.Len(t, groupLinesIntoBlocks(lines), 2)
}

func TestStatHelpers(t *testing.T) {
	assert.Equal(t, 2.5, calculateMedian([]float64{4, 1, 3, 2}))
	assert.Equal(t, 3.0, calculateMedian([]float64{5, 3, 1}))
	assert.Zero(t, calculateMedian(nil))
	assert.InDelta(t, 2.0, calculateStdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9}), 0.0001)
	assert.Equal(t, 1.5, clamp(4.7, 0.6, 1.5))
	assert.Equal(t, 0.6, clamp(0.1, 0.6, 1.5))
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLoggerTo(&buf, LogConfig{Level: "warn", Format: "json"})
	require.NoError(t, err)
	assert.Equal(t, logrus.WarnLevel, logger.GetLevel())

	logger.Info("hidden")
	logger.WithField("page", 2).Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"page":2`)

	logger, err = newLoggerTo(&buf, LogConfig{})
	require.NoError(t, err)
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())

	_, err = newLoggerTo(&buf, LogConfig{Level: "loud"})
	assert.Error(t, err)
	_, err = newLoggerTo(&buf, LogConfig{Format: "xml"})
	assert.Error(t, err)
}
