package render

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/cancelkit/cancelkit/internal/catalog"
)

func TestRenderText(t *testing.T) {
	e := NewEngine()

	out, err := e.RenderText("Hello {{ name }}", map[string]interface{}{"name": "World"})
	if err != nil {
		t.Fatalf("RenderText: %v", err)
	}
	if out != "Hello World" {
		t.Errorf("RenderText = %q, want %q", out, "Hello World")
	}
}

func TestRenderTextUnknownPlaceholderEmpty(t *testing.T) {
	e := NewEngine()

	out, err := e.RenderText("Hello {{ nobody }}!", map[string]interface{}{})
	if err != nil {
		t.Fatalf("RenderText: %v", err)
	}
	if out != "Hello !" {
		t.Errorf("unknown placeholder rendered as %q, want empty", out)
	}
}

func TestRenderSandboxRejectsIncludeTags(t *testing.T) {
	e := NewEngine()

	for _, src := range []string{
		`{% include "secret.html" %}`,
		`{%- render "partial" -%}`,
	} {
		_, err := e.Render(src, map[string]interface{}{}, true)
		var syntaxErr *SyntaxError
		if !errors.As(err, &syntaxErr) {
			t.Errorf("Render(%q) error = %v, want *SyntaxError", src, err)
		}
	}
}

func TestRenderSyntaxErrorSurfaced(t *testing.T) {
	e := NewEngine()

	_, err := e.RenderText("{% if %}broken", map[string]interface{}{})
	var syntaxErr *SyntaxError
	if !errors.As(err, &syntaxErr) {
		t.Fatalf("malformed template error = %v, want *SyntaxError", err)
	}
	if syntaxErr.Message == "" {
		t.Error("syntax error carries no message")
	}
}

func TestValidate(t *testing.T) {
	e := NewEngine()

	if err := e.Validate("Dear {{ firstname }},", true); err != nil {
		t.Errorf("Validate on valid template: %v", err)
	}
	if err := e.Validate(`{% include "x" %}`, true); err == nil {
		t.Error("Validate should reject include tags in sandboxed mode")
	}
	if err := e.Validate("{% endif %}", true); err == nil {
		t.Error("Validate should reject unbalanced tags")
	}
}

func TestRenderDefaultEmailTemplate(t *testing.T) {
	e := NewEngine()
	contact := Contact{FirstName: "Jane", LastName: "Doe", PostalCode: "1111AA", Residence: "Amsterdam"}

	// Forward mode: the forward notice appears at the top
	ctx := EmailContext(contact, "Netflix", "support@netflix.com", "2026-08-31")
	out, err := e.RenderText(catalog.DefaultTemplate(catalog.TemplateEmail), ctx)
	if err != nil {
		t.Fatalf("RenderText: %v", err)
	}
	if !strings.Contains(out, "Forward it to support@netflix.com") {
		t.Errorf("forward notice missing:\n%s", out)
	}
	if !strings.Contains(out, "Dear Netflix customer service,") {
		t.Errorf("salutation missing:\n%s", out)
	}
	if strings.Contains(out, "Address:") {
		t.Errorf("empty address should be omitted:\n%s", out)
	}

	// Direct mode: no forward notice
	ctx = EmailContext(contact, "Netflix", false, "2026-08-31")
	out, err = e.RenderText(catalog.DefaultTemplate(catalog.TemplateEmail), ctx)
	if err != nil {
		t.Fatalf("RenderText: %v", err)
	}
	if strings.Contains(out, "Forward it to") {
		t.Errorf("direct send should not carry a forward notice:\n%s", out)
	}
}

func TestRenderPDF(t *testing.T) {
	e := NewEngine()

	sub := &catalog.Subscription{
		Name:               "Netflix",
		SupportReplyNumber: "12345",
		SupportPostalCode:  "1111AA",
		SupportCity:        "Amsterdam",
	}
	contact := Contact{FirstName: "Jane", LastName: "Doe", Address: "Main St 1", PostalCode: "2222BB", Residence: "Utrecht"}

	data, err := e.RenderPDF(catalog.DefaultTemplate(catalog.TemplateLetter), LetterContext(contact, sub, "2026-08-31"))
	if err != nil {
		t.Fatalf("RenderPDF: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Errorf("output does not look like a PDF (first bytes %q)", data[:min(8, len(data))])
	}

	// Deterministic for identical template and context
	again, err := e.RenderPDF(catalog.DefaultTemplate(catalog.TemplateLetter), LetterContext(contact, sub, "2026-08-31"))
	if err != nil {
		t.Fatalf("RenderPDF: %v", err)
	}
	if !bytes.Equal(data, again) {
		t.Error("RenderPDF is not deterministic for identical input")
	}
}

func TestRenderPDFStableAcrossClockTicks(t *testing.T) {
	e := NewEngine()

	sub := &catalog.Subscription{
		Name:               "Netflix",
		SupportReplyNumber: "12345",
		SupportPostalCode:  "1111AA",
		SupportCity:        "Amsterdam",
	}
	contact := Contact{FirstName: "Jane", LastName: "Doe", Address: "Main St 1", PostalCode: "2222BB", Residence: "Utrecht"}
	tctx := LetterContext(contact, sub, "2026-08-31")

	first, err := e.RenderPDF(catalog.DefaultTemplate(catalog.TemplateLetter), tctx)
	if err != nil {
		t.Fatalf("RenderPDF: %v", err)
	}

	// Cross a wall-clock second so an unpinned document date would differ
	time.Sleep(1100 * time.Millisecond)

	second, err := e.RenderPDF(catalog.DefaultTemplate(catalog.TemplateLetter), tctx)
	if err != nil {
		t.Fatalf("RenderPDF: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Error("renders on either side of a second boundary differ")
	}
	if !bytes.Contains(first, []byte("D:20000101")) {
		t.Error("document dates are not pinned to the fixed epoch")
	}
}

func TestStripMarkup(t *testing.T) {
	in := "line one<br>line two<br/>\n<b>bold</b> stays"
	got := stripMarkup(in)
	want := "line one\nline two\n\nbold stays"
	if got != want {
		t.Errorf("stripMarkup = %q, want %q", got, want)
	}
}

func TestRenderDOCXUnavailable(t *testing.T) {
	e := NewEngine()
	converter := NewDocxConverter("")

	_, err := e.RenderDOCX(context.Background(), converter, "Hello {{ name }}", map[string]interface{}{"name": "x"})
	if !errors.Is(err, ErrDocxUnavailable) {
		t.Errorf("RenderDOCX error = %v, want ErrDocxUnavailable", err)
	}
}
