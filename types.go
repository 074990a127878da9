package scandoc

// Rect represents a bounding box in PDF points.
type Rect struct {
	X0 float64 // Left
	Y0 float64 // Top (after conversion from PDF coordinates)
	X1 float64 // Right
	Y1 float64 // Bottom (after conversion from PDF coordinates)
}

// Width returns the width of the rectangle.
func (r Rect) Width() float64 {
	return r.X1 - r.X0
}

// Height returns the height of the rectangle.
func (r Rect) Height() float64 {
	return r.Y1 - r.Y0
}

// CenterX returns the horizontal center of the rectangle.
func (r Rect) CenterX() float64 {
	return (r.X0 + r.X1) / 2
}

// CenterY returns the vertical center of the rectangle.
func (r Rect) CenterY() float64 {
	return (r.Y0 + r.Y1) / 2
}

// Intersects reports whether two rectangles share a region of non-zero area.
// Rectangles that only touch along an edge do not intersect.
func (r Rect) Intersects(o Rect) bool {
	return !(r.X1 <= o.X0 || o.X1 <= r.X0 || r.Y1 <= o.Y0 || o.Y1 <= r.Y0)
}

// Char is a single character with its position and font metrics.
type Char struct {
	Text     rune
	Box      Rect
	FontSize float64
}

// Word is a run of characters between whitespace.
type Word struct {
	Text     string
	Box      Rect
	FontSize float64 // Average font size
	Baseline float64 // Y-coordinate of the text baseline
}

// Line represents a horizontal line of text.
type Line struct {
	Words    []Word
	Box      Rect
	Baseline float64
}

// Text joins the words of the line with single spaces.
func (l Line) Text() string {
	var text string
	for i, word := range l.Words {
		if i > 0 {
			text += " "
		}
		text += word.Text
	}
	return text
}

// TextBlock is a rectangle of text on a page, the unit the layout compositor
// orders and occludes.
type TextBlock struct {
	Page  int    // 0-based page index
	Index int    // Position in the page's original block order
	Box   Rect
	Text  string
}

// Page is the extracted structural model of a single PDF page.
type Page struct {
	Index  int // 0-based
	Width  float64
	Height float64
	Words  []Word
	Blocks []TextBlock
	Edges  []Edge // Ruling lines drawn on the page
}
