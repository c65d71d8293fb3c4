package app

import (
	"bufio"
	"fmt"
	"regexp"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

var linkRe = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)

// pdfMeta is written to the document properties and the page footer.
type pdfMeta struct {
	Title  string
	Author string
	Source string
}

// writeSimplePDF renders Markdown to an A4 PDF. Headings, bullet items and
// links [text](url) are recognised; everything else is set as paragraphs.
// Core fonts only cover cp1252, so text outside it is replaced.
func writeSimplePDF(markdown string, meta pdfMeta, outPath string) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	if meta.Title != "" {
		pdf.SetTitle(meta.Title, true)
	}
	if meta.Author != "" {
		pdf.SetAuthor(meta.Author, true)
	}
	pdf.SetCreator("depdf", true)
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.CellFormat(0, 10, tr(fmt.Sprintf("%s  %d", meta.Source, pdf.PageNo())), "", 0, "C", false, 0, "")
	})
	pdf.SetFont("Helvetica", "", 11)
	pdf.AddPage()

	scanner := bufio.NewScanner(strings.NewReader(markdown))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		s := strings.TrimSpace(scanner.Text())
		switch {
		case s == "":
			pdf.Ln(3)
		case strings.HasPrefix(s, "#"):
			level := 0
			for level < len(s) && s[level] == '#' {
				level++
			}
			text := strings.TrimSpace(s[level:])
			if text == "" {
				continue
			}
			pdf.SetFont("Helvetica", "B", headingSize(level))
			pdf.MultiCell(0, 8, tr(text), "", "L", false)
			pdf.SetFont("Helvetica", "", 11)
		case strings.HasPrefix(s, "- ") || strings.HasPrefix(s, "* "):
			writeInline(pdf, tr, "• "+strings.TrimSpace(s[2:]))
		default:
			writeInline(pdf, tr, strings.Trim(s, "*_"))
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read markdown: %w", err)
	}
	return pdf.OutputFileAndClose(outPath)
}

func headingSize(level int) float64 {
	switch level {
	case 1:
		return 16
	case 2:
		return 14
	default:
		return 12
	}
}

// writeInline writes one paragraph, turning Markdown links into PDF links.
func writeInline(pdf *gofpdf.Fpdf, tr func(string) string, s string) {
	parts := linkRe.FindAllStringSubmatchIndex(s, -1)
	if len(parts) == 0 {
		pdf.MultiCell(0, 5, tr(s), "", "L", false)
		return
	}
	pos := 0
	for _, m := range parts {
		if m[0] > pos {
			pdf.Write(5, tr(s[pos:m[0]]))
		}
		text, url := s[m[2]:m[3]], s[m[4]:m[5]]
		if strings.HasPrefix(url, "#") {
			pdf.Write(5, tr(text))
		} else {
			pdf.WriteLinkString(5, tr(text), url)
		}
		pos = m[1]
	}
	if pos < len(s) {
		pdf.Write(5, tr(s[pos:]))
	}
	pdf.Ln(6)
}
