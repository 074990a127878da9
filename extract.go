package scandoc

import (
	"math"

	"github.com/klippa-app/go-pdfium"
	"github.com/klippa-app/go-pdfium/references"
	"github.com/klippa-app/go-pdfium/requests"
	"github.com/pkg/errors"
)

// openDocument opens a PDF with pdfium and returns a function closing it.
func openDocument(instance pdfium.Pdfium, path string) (references.FPDF_DOCUMENT, func(), error) {
	doc, err := instance.OpenDocument(&requests.OpenDocument{
		FilePath: &path,
	})
	if err != nil {
		return "", nil, errors.Wrap(err, "failed to open PDF document")
	}
	closeDoc := func() {
		instance.FPDF_CloseDocument(&requests.FPDF_CloseDocument{
			Document: doc.Document,
		})
	}
	return doc.Document, closeDoc, nil
}

// pageCount returns the number of pages of an open document.
func pageCount(instance pdfium.Pdfium, doc references.FPDF_DOCUMENT) (int, error) {
	resp, err := instance.FPDF_GetPageCount(&requests.FPDF_GetPageCount{
		Document: doc,
	})
	if err != nil {
		return 0, errors.Wrap(err, "failed to get page count")
	}
	return resp.PageCount, nil
}

// extractPage loads one page and builds its structural model: words, text
// blocks and ruling edges.
func extractPage(instance pdfium.Pdfium, doc references.FPDF_DOCUMENT, pageIndex int) (*Page, error) {
	pageResp, err := instance.FPDF_LoadPage(&requests.FPDF_LoadPage{
		Document: doc,
		Index:    pageIndex,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load page %d", pageIndex)
	}
	defer instance.FPDF_ClosePage(&requests.FPDF_ClosePage{
		Page: pageResp.Page,
	})

	page := pageResp.Page

	widthResp, err := instance.FPDF_GetPageWidthF(&requests.FPDF_GetPageWidthF{
		Page: requests.Page{ByReference: &page},
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get page width")
	}
	heightResp, err := instance.FPDF_GetPageHeightF(&requests.FPDF_GetPageHeightF{
		Page: requests.Page{ByReference: &page},
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get page height")
	}

	width := float64(widthResp.PageWidth)
	height := float64(heightResp.PageHeight)

	result := &Page{
		Index:  pageIndex,
		Width:  width,
		Height: height,
	}

	textPage, err := instance.FPDFText_LoadPage(&requests.FPDFText_LoadPage{
		Page: requests.Page{ByReference: &page},
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to load text page")
	}
	defer instance.FPDFText_ClosePage(&requests.FPDFText_ClosePage{
		TextPage: textPage.TextPage,
	})

	charCount, err := instance.FPDFText_CountChars(&requests.FPDFText_CountChars{
		TextPage: textPage.TextPage,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to count characters")
	}

	if charCount.Count > 0 {
		chars := extractChars(instance, textPage.TextPage, charCount.Count, height)
		result.Words = groupCharsIntoWords(chars)
		result.Blocks = buildTextBlocks(result.Words, pageIndex)
	}

	// Ruling lines are optional: a page without them still has text.
	edges, err := extractLinesFromPage(instance, page, width, height)
	if err == nil {
		result.Edges = edges
	}

	return result, nil
}

// extractChars reads every character with its box and font size. Characters
// pdfium cannot describe are skipped.
func extractChars(instance pdfium.Pdfium, textPage references.FPDF_TEXTPAGE, count int, pageHeight float64) []Char {
	chars := make([]Char, 0, count)

	for i := range count {
		unicodeRes, err := instance.FPDFText_GetUnicode(&requests.FPDFText_GetUnicode{
			TextPage: textPage,
			Index:    i,
		})
		if err != nil || unicodeRes.Unicode == 0 {
			continue
		}

		charBox, err := instance.FPDFText_GetCharBox(&requests.FPDFText_GetCharBox{
			TextPage: textPage,
			Index:    i,
		})
		if err != nil {
			continue
		}

		fontSize := 12.0
		sizeRes, err := instance.FPDFText_GetFontSize(&requests.FPDFText_GetFontSize{
			TextPage: textPage,
			Index:    i,
		})
		if err == nil {
			fontSize = sizeRes.FontSize
		}

		// Convert PDF coordinates (origin bottom-left) to top-left
		chars = append(chars, Char{
			Text: rune(unicodeRes.Unicode),
			Box: Rect{
				X0: charBox.Left,
				Y0: pageHeight - charBox.Top,
				X1: charBox.Right,
				Y1: pageHeight - charBox.Bottom,
			},
			FontSize: fontSize,
		})
	}

	return chars
}

func isWhitespace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

// groupCharsIntoWords splits the character stream on whitespace.
func groupCharsIntoWords(chars []Char) []Word {
	var words []Word
	var current []Char

	flush := func() {
		if len(current) == 0 {
			return
		}
		words = append(words, aggregateWord(current))
		current = nil
	}

	for _, char := range chars {
		if isWhitespace(char.Text) {
			flush()
			continue
		}
		current = append(current, char)
	}
	flush()

	return words
}

// aggregateWord builds a word from its characters.
func aggregateWord(chars []Char) Word {
	box := chars[0].Box
	var text []rune
	var totalSize float64
	for _, char := range chars {
		text = append(text, expandLigature(char.Text)...)
		totalSize += char.FontSize
		box = Rect{
			X0: math.Min(box.X0, char.Box.X0),
			Y0: math.Min(box.Y0, char.Box.Y0),
			X1: math.Max(box.X1, char.Box.X1),
			Y1: math.Max(box.Y1, char.Box.Y1),
		}
	}

	fontSize := totalSize / float64(len(chars))
	return Word{
		Text:     string(text),
		Box:      box,
		FontSize: fontSize,
		// Baseline sits slightly above the box bottom to allow for descenders
		Baseline: box.Y1 - fontSize*0.15,
	}
}

// ligatureMap maps ligature unicode codepoints to their expanded forms
var ligatureMap = map[rune]string{
	0xFB00: "ff",
	0xFB01: "fi",
	0xFB02: "fl",
	0xFB03: "ffi",
	0xFB04: "ffl",
	0xFB05: "ft",
	0xFB06: "st",
}

func expandLigature(r rune) []rune {
	if expansion, ok := ligatureMap[r]; ok {
		return []rune(expansion)
	}
	return []rune{r}
}
