package scandoc_test

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	"github.com/ivanvanderbyl/scandoc"
)

func samplePlan() scandoc.RenderPlan {
	invoice := scandoc.ReconciledTable{
		TableCandidate: scandoc.TableCandidate{
			BBox:   &scandoc.Rect{X0: 50, Y0: 200, X1: 500, Y1: 300},
			Rows:   [][]string{{"Item", "Qty"}, {"Apple", "3"}},
			Header: true,
		},
	}
	return scandoc.RenderPlan{Pages: []scandoc.PagePlan{
		scandoc.Compose(0,
			[]scandoc.TextBlock{{Text: "Quarterly report\nDraft", Box: scandoc.Rect{X0: 50, Y0: 50, X1: 500, Y1: 90}}},
			[]scandoc.ReconciledTable{invoice}, nil),
		scandoc.Compose(1,
			[]scandoc.TextBlock{{Page: 1, Text: "Closing notes", Box: scandoc.Rect{X0: 50, Y0: 50, X1: 500, Y1: 70}}},
			nil, nil),
	}}
}

func TestParseOutputFormat(t *testing.T) {
	cases := map[string]scandoc.OutputFormat{
		"":         scandoc.FormatPDF,
		"PDF":      scandoc.FormatPDF,
		"word":     scandoc.FormatDocx,
		"docx":     scandoc.FormatDocx,
		"markdown": scandoc.FormatMarkdown,
		" md ":     scandoc.FormatMarkdown,
	}
	for name, want := range cases {
		got, err := scandoc.ParseOutputFormat(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	_, err := scandoc.ParseOutputFormat("rtf")
	assert.Error(t, err)

	assert.Equal(t, ".docx", scandoc.FormatDocx.Extension())
	assert.Equal(t, ".md", scandoc.FormatMarkdown.Extension())
}

func TestParseTableStyle(t *testing.T) {
	assert.Equal(t, scandoc.StyleFancy, scandoc.ParseTableStyle("Fancy"))
	assert.Equal(t, scandoc.StyleGrid, scandoc.ParseTableStyle("plaid"))

	assert.Equal(t, "Table Normal", scandoc.StyleBasic.WordStyleName())
	assert.Equal(t, "Table Grid", scandoc.StyleGrid.WordStyleName())
	assert.Equal(t, "Light List", scandoc.StyleLight.WordStyleName())
	assert.Equal(t, "Medium Shading 1 Accent 1", scandoc.StyleFancy.WordStyleName())
}

func TestNewEmitter(t *testing.T) {
	e, err := scandoc.NewEmitter(scandoc.FormatDocx)
	require.NoError(t, err)
	assert.IsType(t, scandoc.DocxEmitter{}, e)

	e, err = scandoc.NewEmitter(scandoc.FormatMarkdown)
	require.NoError(t, err)
	assert.IsType(t, scandoc.MarkdownEmitter{}, e)

	_, err = scandoc.NewEmitter(scandoc.FormatPDF)
	assert.Error(t, err)
}

func TestMarkdownEmitter(t *testing.T) {
	var buf bytes.Buffer
	err := scandoc.MarkdownEmitter{}.Emit(context.Background(), samplePlan(), scandoc.StyleGrid, &buf)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "# Page 1")
	assert.Contains(t, out, "# Page 2")
	assert.Contains(t, out, "---")
	assert.Contains(t, out, "Quarterly report  \nDraft")
	assert.Contains(t, out, "Item")
	assert.Contains(t, out, "Apple")

	// Reading order: heading, text, table, then the next page
	report := strings.Index(out, "Quarterly report")
	apple := strings.Index(out, "Apple")
	closing := strings.Index(out, "Closing notes")
	assert.Less(t, report, apple)
	assert.Less(t, apple, closing)

	// The output parses as GitHub flavoured Markdown with one table
	src := buf.Bytes()
	doc := goldmark.New(goldmark.WithExtensions(extension.Table)).Parser().Parse(text.NewReader(src))
	var tables, headings int
	err = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *east.Table:
			tables++
		case *ast.Heading:
			if node.Level == 1 {
				headings++
			}
		}
		return ast.WalkContinue, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, tables)
	assert.Equal(t, 2, headings)
}

func TestMarkdownEmitter_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := scandoc.MarkdownEmitter{}.Emit(ctx, samplePlan(), scandoc.StyleGrid, io.Discard)
	assert.ErrorIs(t, err, scandoc.ErrEmitFailure)
}

func readZip(t *testing.T, data []byte) map[string]string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	parts := make(map[string]string)
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		body, err := io.ReadAll(rc)
		require.NoError(t, err)
		rc.Close()
		parts[f.Name] = string(body)
	}
	return parts
}

func TestDocxEmitter(t *testing.T) {
	var buf bytes.Buffer
	err := scandoc.DocxEmitter{}.Emit(context.Background(), samplePlan(), scandoc.StyleFancy, &buf)
	require.NoError(t, err)

	parts := readZip(t, buf.Bytes())
	for _, name := range []string{
		"[Content_Types].xml",
		"_rels/.rels",
		"word/_rels/document.xml.rels",
		"word/document.xml",
		"word/styles.xml",
	} {
		assert.Contains(t, parts, name)
	}

	document := parts["word/document.xml"]

	dec := xml.NewDecoder(strings.NewReader(document))
	for {
		_, err := dec.Token()
		if err == io.EOF {
			break
		}
		require.NoError(t, err, "document.xml must be well formed")
	}

	assert.Contains(t, document, `<w:pStyle w:val="Heading1">`)
	assert.Contains(t, document, ">Page 1</w:t>")
	assert.Contains(t, document, ">Page 2</w:t>")
	assert.Contains(t, document, ">Table</w:t>")
	assert.Contains(t, document, `<w:tblStyle w:val="MediumShading1-Accent1">`)
	assert.Contains(t, document, "<w:tblHeader>")
	assert.Contains(t, document, `w:fill="D9D9D9"`)
	assert.Contains(t, document, ">Apple</w:t>")
	assert.Contains(t, document, `<w:br w:type="page">`)
	assert.Contains(t, document, `<w:sz w:val="24">`, "the table label is 12pt")
	assert.Equal(t, 2, strings.Count(document, "<w:gridCol "))

	assert.Contains(t, parts["word/styles.xml"], `w:styleId="MediumShading1-Accent1"`)
}

func TestDocxEmitter_NoHeaderRow(t *testing.T) {
	plan := scandoc.RenderPlan{Pages: []scandoc.PagePlan{
		scandoc.Compose(0, nil, []scandoc.ReconciledTable{{
			TableCandidate: scandoc.TableCandidate{Rows: [][]string{{"1", "2"}, {"3", "4"}}},
		}}, nil),
	}}

	var buf bytes.Buffer
	require.NoError(t, scandoc.DocxEmitter{}.Emit(context.Background(), plan, scandoc.StyleBasic, &buf))

	document := readZip(t, buf.Bytes())["word/document.xml"]
	assert.NotContains(t, document, "tblHeader")
	assert.NotContains(t, document, "D9D9D9")
	assert.NotContains(t, document, `w:fill="FFFFFF"`, "body cells take their fill from the table style")
	assert.Contains(t, document, `<w:tblStyle w:val="TableNormal">`)
}
