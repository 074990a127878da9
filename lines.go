package scandoc

import (
	"github.com/klippa-app/go-pdfium"
	"github.com/klippa-app/go-pdfium/enums"
	"github.com/klippa-app/go-pdfium/references"
	"github.com/klippa-app/go-pdfium/requests"
	"github.com/pkg/errors"
)

// extractLinesFromPage reads the ruling lines drawn on a page from its path
// objects. Single segments become one edge, rectangles become four. Page
// borders are dropped so a framed page is not mistaken for one big table.
func extractLinesFromPage(instance pdfium.Pdfium, page references.FPDF_PAGE, pageWidth, pageHeight float64) ([]Edge, error) {
	countResp, err := instance.FPDFPage_CountObjects(&requests.FPDFPage_CountObjects{
		Page: requests.Page{ByReference: &page},
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to count page objects")
	}

	var edges []Edge
	keep := func(e Edge) {
		if !isPageBorder(e, pageWidth, pageHeight) {
			edges = append(edges, e)
		}
	}

	for i := range countResp.Count {
		objResp, err := instance.FPDFPage_GetObject(&requests.FPDFPage_GetObject{
			Page:  requests.Page{ByReference: &page},
			Index: i,
		})
		if err != nil {
			continue
		}

		typeResp, err := instance.FPDFPageObj_GetType(&requests.FPDFPageObj_GetType{
			PageObject: objResp.PageObject,
		})
		if err != nil || typeResp.Type != enums.FPDF_PAGEOBJ_PATH {
			continue
		}

		boundsResp, err := instance.FPDFPageObj_GetBounds(&requests.FPDFPageObj_GetBounds{
			PageObject: objResp.PageObject,
		})
		if err != nil {
			continue
		}

		segResp, err := instance.FPDFPath_CountSegments(&requests.FPDFPath_CountSegments{
			PageObject: objResp.PageObject,
		})
		if err != nil || segResp.Count < 2 {
			continue
		}

		// Flip to a top-left origin
		bounds := Rect{
			X0: float64(boundsResp.Left),
			Y0: pageHeight - float64(boundsResp.Top),
			X1: float64(boundsResp.Right),
			Y1: pageHeight - float64(boundsResp.Bottom),
		}

		switch {
		case segResp.Count == 2:
			if edge, ok := pathToEdge(bounds); ok {
				keep(edge)
			}
		case segResp.Count >= 4:
			for _, edge := range boundsToEdges(bounds) {
				keep(edge)
			}
		}
	}

	return edges, nil
}

// isPageBorder reports whether an edge hugs the page boundary or spans
// nearly the whole page.
func isPageBorder(edge Edge, pageWidth, pageHeight float64) bool {
	const margin = 20.0
	const fullSpan = 0.90

	switch edge.Orientation {
	case Horizontal:
		return edge.Top < margin || edge.Top > pageHeight-margin || edge.Width > pageWidth*fullSpan
	case Vertical:
		return edge.X0 < margin || edge.X0 > pageWidth-margin || edge.Height > pageHeight*fullSpan
	}
	return false
}

// pathToEdge turns a thin path into a horizontal or vertical edge.
func pathToEdge(b Rect) (Edge, bool) {
	width, height := b.Width(), b.Height()

	switch {
	case height < 2.0 && width > 1.0:
		return Edge{X0: b.X0, X1: b.X1, Top: b.Y0, Bottom: b.Y1, Width: width, Height: height, Orientation: Horizontal}, true
	case width < 2.0 && height > 1.0:
		return Edge{X0: b.X0, X1: b.X1, Top: b.Y0, Bottom: b.Y1, Width: width, Height: height, Orientation: Vertical}, true
	}
	return Edge{}, false
}

// boundsToEdges returns the four sides of a rectangle.
func boundsToEdges(b Rect) []Edge {
	return []Edge{
		horizontalEdge(b.X0, b.X1, b.Y0),
		horizontalEdge(b.X0, b.X1, b.Y1),
		verticalEdge(b.X0, b.Y0, b.Y1),
		verticalEdge(b.X1, b.Y0, b.Y1),
	}
}
