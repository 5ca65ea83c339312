// -----------------------------------------------------------------------
// PDF - renders report Markdown to A4 PDF by walking the goldmark AST
// -----------------------------------------------------------------------

package report

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"
	"github.com/ternarybob/arbor"
	"github.com/yuin/goldmark/ast"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// Page geometry in millimetres.
const (
	pageMargin   = 12.0
	pageWidth    = 210.0 - 2*pageMargin
	pageBottom   = 297.0 - pageMargin
	bodyFont     = "Arial"
	bodySize     = 9.0
	lineHeight   = 5.0
	tableSize    = 8.0
	tableLine    = 4.0
	minColWidth  = 14.0
	listIndentMM = 5.0
)

// Service renders reports. It is stateless apart from its logger.
type Service struct {
	logger arbor.ILogger
}

// NewService creates a report service.
func NewService(logger arbor.ILogger) *Service {
	return &Service{logger: logger}
}

// Markdown renders the Markdown report.
func (s *Service) Markdown(in Input) string {
	return Markdown(in)
}

// HTML renders the report as a standalone HTML page.
func (s *Service) HTML(in Input) ([]byte, error) {
	return Document(fmt.Sprintf("%s options analysis", in.Context.Ticker), Markdown(in))
}

// PDF renders the report as a PDF document.
func (s *Service) PDF(in Input) ([]byte, error) {
	return s.MarkdownToPDF(Markdown(in), fmt.Sprintf("%s options analysis", in.Context.Ticker))
}

// MarkdownToPDF converts arbitrary Markdown to PDF bytes.
func (s *Service) MarkdownToPDF(markdown, title string) ([]byte, error) {
	s.logger.Debug().Int("markdown_len", len(markdown)).Str("title", title).Msg("Rendering PDF")

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(title, true)
	pdf.SetCreator("optionalpha", true)
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(true, pageMargin)
	pdf.AddPage()
	pdf.SetFont(bodyFont, "", bodySize)

	source := []byte(markdown)
	doc := markdownConverter.Parser().Parse(text.NewReader(source))

	r := &pdfRenderer{
		pdf:       pdf,
		source:    source,
		translate: pdf.UnicodeTranslatorFromDescriptor(""),
	}
	if err := ast.Walk(doc, r.walk); err != nil {
		return nil, fmt.Errorf("failed to render PDF: %w", err)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		s.logger.Error().Err(err).Msg("Failed to write PDF output")
		return nil, fmt.Errorf("failed to write PDF output: %w", err)
	}

	s.logger.Debug().Int("pdf_size", buf.Len()).Int("pages", pdf.PageCount()).Msg("PDF rendered")
	return buf.Bytes(), nil
}

type pdfRenderer struct {
	pdf       *fpdf.Fpdf
	source    []byte
	translate func(string) string
	bold      bool
	italic    bool
	quoted    bool
	lists     []listState
}

type listState struct {
	ordered bool
	next    int
}

func (r *pdfRenderer) setFont() {
	style := ""
	if r.bold {
		style += "B"
	}
	if r.italic || r.quoted {
		style += "I"
	}
	r.pdf.SetFont(bodyFont, style, bodySize)
}

func (r *pdfRenderer) write(s string) {
	r.pdf.Write(lineHeight, r.translate(s))
}

func (r *pdfRenderer) walk(n ast.Node, entering bool) (ast.WalkStatus, error) {
	switch node := n.(type) {
	case *ast.Heading:
		r.heading(node, entering)
	case *ast.Paragraph:
		if !entering {
			r.pdf.Ln(lineHeight + 2)
		}
	case *ast.Text:
		if entering {
			r.write(string(node.Segment.Value(r.source)))
			if node.SoftLineBreak() {
				r.write(" ")
			}
			if node.HardLineBreak() {
				r.pdf.Ln(lineHeight)
			}
		}
	case *ast.String:
		if entering {
			r.write(string(node.Value))
		}
	case *ast.Emphasis:
		if node.Level == 2 {
			r.bold = entering
		} else {
			r.italic = entering
		}
		r.setFont()
	case *ast.CodeSpan:
		if entering {
			r.pdf.SetFont("Courier", "", bodySize)
			r.write(inlineText(node, r.source))
			r.setFont()
		}
		return ast.WalkSkipChildren, nil
	case *ast.FencedCodeBlock:
		if entering {
			r.codeBlock(node.Lines())
		}
		return ast.WalkSkipChildren, nil
	case *ast.CodeBlock:
		if entering {
			r.codeBlock(node.Lines())
		}
		return ast.WalkSkipChildren, nil
	case *ast.Blockquote:
		r.quoted = entering
		if entering {
			r.pdf.SetTextColor(90, 90, 90)
		} else {
			r.pdf.SetTextColor(0, 0, 0)
		}
		r.setFont()
	case *ast.List:
		if entering {
			r.lists = append(r.lists, listState{ordered: node.IsOrdered(), next: node.Start})
		} else {
			r.lists = r.lists[:len(r.lists)-1]
			if len(r.lists) == 0 {
				r.pdf.Ln(lineHeight)
			}
		}
	case *ast.ListItem:
		if entering {
			r.listItem()
		}
	case *ast.ThematicBreak:
		if entering {
			r.pdf.Ln(2)
			y := r.pdf.GetY()
			r.pdf.Line(pageMargin, y, pageMargin+pageWidth, y)
			r.pdf.Ln(3)
		}
	case *extast.Table:
		if entering {
			r.table(node)
		}
		return ast.WalkSkipChildren, nil
	}
	return ast.WalkContinue, nil
}

func (r *pdfRenderer) heading(n *ast.Heading, entering bool) {
	if !entering {
		r.pdf.Ln(lineHeight + 2)
		r.setFont()
		return
	}
	size := 10.0
	switch n.Level {
	case 1:
		size = 15
	case 2:
		size = 12
	case 3:
		size = 10.5
	}
	r.pdf.Ln(3)
	r.pdf.SetFont(bodyFont, "B", size)
}

func (r *pdfRenderer) listItem() {
	r.pdf.Ln(lineHeight)
	depth := len(r.lists)
	r.pdf.SetX(pageMargin + float64(depth)*listIndentMM)
	if depth == 0 {
		r.write("- ")
		return
	}
	current := &r.lists[depth-1]
	if current.ordered {
		r.write(fmt.Sprintf("%d. ", current.next))
		current.next++
		return
	}
	r.write("- ")
}

func (r *pdfRenderer) codeBlock(lines *text.Segments) {
	r.pdf.SetFont("Courier", "", bodySize)
	r.pdf.SetFillColor(245, 245, 245)
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		r.pdf.MultiCell(0, lineHeight-0.5, r.translate(string(line.Value(r.source))), "", "L", true)
	}
	r.pdf.SetFillColor(255, 255, 255)
	r.pdf.Ln(2)
	r.setFont()
}

func (r *pdfRenderer) table(n *extast.Table) {
	var rows [][]string
	for child := n.FirstChild(); child != nil; child = child.NextSibling() {
		switch row := child.(type) {
		case *extast.TableHeader, *extast.TableRow:
			var cells []string
			for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
				cells = append(cells, r.translate(inlineText(cell, r.source)))
			}
			rows = append(rows, cells)
		}
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return
	}

	widths := r.columnWidths(rows)
	r.pdf.Ln(1)
	for i, row := range rows {
		style := ""
		if i == 0 {
			style = "B"
			r.pdf.SetFillColor(230, 230, 230)
		}
		r.pdf.SetFont(bodyFont, style, tableSize)

		lines := make([][]string, len(widths))
		height := 1
		for j := range widths {
			cell := ""
			if j < len(row) {
				cell = row[j]
			}
			lines[j] = r.pdf.SplitText(cell, widths[j]-2)
			height = max(height, len(lines[j]))
		}
		rowHeight := float64(height)*tableLine + 2

		x, y := pageMargin, r.pdf.GetY()
		if y+rowHeight > pageBottom {
			r.pdf.AddPage()
			y = r.pdf.GetY()
		}
		for j, w := range widths {
			border := "D"
			if i == 0 {
				border = "FD"
			}
			r.pdf.Rect(x, y, w, rowHeight, border)
			for k, line := range lines[j] {
				r.pdf.SetXY(x+1, y+1+float64(k)*tableLine)
				r.pdf.CellFormat(w-2, tableLine, line, "", 0, "L", false, 0, "")
			}
			x += w
		}
		r.pdf.SetXY(pageMargin, y+rowHeight)
	}
	r.pdf.SetFillColor(255, 255, 255)
	r.pdf.Ln(3)
	r.setFont()
}

// columnWidths sizes columns to their widest cell, then scales the table
// to fit the page.
func (r *pdfRenderer) columnWidths(rows [][]string) []float64 {
	widths := make([]float64, len(rows[0]))
	for i, row := range rows {
		style := ""
		if i == 0 {
			style = "B"
		}
		r.pdf.SetFont(bodyFont, style, tableSize)
		for j := range widths {
			if j < len(row) {
				widths[j] = max(widths[j], r.pdf.GetStringWidth(row[j])+4, minColWidth)
			}
		}
	}

	total := 0.0
	for _, w := range widths {
		total += w
	}
	if total > pageWidth {
		scale := pageWidth / total
		for j := range widths {
			widths[j] *= scale
		}
	}
	return widths
}

// inlineText concatenates the text beneath an inline container.
func inlineText(n ast.Node, source []byte) string {
	var buf bytes.Buffer
	_ = ast.Walk(n, func(child ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := child.(type) {
		case *ast.Text:
			buf.Write(t.Segment.Value(source))
			if t.SoftLineBreak() {
				buf.WriteByte(' ')
			}
		case *ast.String:
			buf.Write(t.Value)
		}
		return ast.WalkContinue, nil
	})
	return buf.String()
}
