package render

import (
	"regexp"
	"strings"
	"time"

	"github.com/johnfercher/maroto/pkg/consts"
	"github.com/johnfercher/maroto/pkg/pdf"
	"github.com/johnfercher/maroto/pkg/props"
	"github.com/jung-kurt/gofpdf"
)

var (
	breakTags = regexp.MustCompile(`(?i)<br\s*/?>|</p>`)
	htmlTags  = regexp.MustCompile(`<[^>]+>`)
)

// gofpdf stamps /CreationDate and /ModDate from the wall clock unless a
// default is pinned, which would make identical renders differ. The only
// date in a letter comes through the template context.
func init() {
	epoch := time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)
	gofpdf.SetDefaultCreationDate(epoch)
	gofpdf.SetDefaultModificationDate(epoch)
}

// RenderPDF renders a template to text and paginates it into an A4 PDF.
// Output is deterministic for identical template and context; the
// current date must arrive through the context.
func (e *Engine) RenderPDF(src string, ctx map[string]interface{}) ([]byte, error) {
	text, err := e.RenderText(src, ctx)
	if err != nil {
		return nil, err
	}
	return textToPDF(text), nil
}

// textToPDF lays rendered letter text out on A4 pages
func textToPDF(text string) []byte {
	m := pdf.NewMaroto(consts.Portrait, consts.A4)
	m.SetPageMargins(25, 25, 25)

	for _, line := range strings.Split(stripMarkup(text), "\n") {
		line = strings.TrimRight(line, " \t")
		if line == "" {
			m.Row(4, func() {})
			continue
		}
		textLine := line
		m.Row(6, func() {
			m.Col(12, func() {
				m.Text(textLine, props.Text{Size: 11, Family: consts.Helvetica})
			})
		})
	}

	buf, err := m.Output()
	if err != nil {
		// maroto only fails on an unwritable output stream; a bytes
		// buffer never is
		return nil
	}
	return buf.Bytes()
}

// stripMarkup converts the letter HTML templates to plain lines: break
// tags become newlines, remaining tags are dropped.
func stripMarkup(s string) string {
	s = breakTags.ReplaceAllString(s, "\n")
	return htmlTags.ReplaceAllString(s, "")
}
