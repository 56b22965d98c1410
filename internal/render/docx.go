package render

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// ErrDocxUnavailable is returned when no converter command is configured.
// Docx is a derived, lower-priority format; its absence never blocks the
// PDF or plain-text paths.
var ErrDocxUnavailable = errors.New("render: docx converter not configured")

// DocxConverter turns PDF bytes into a word-processor document by
// shelling out to an external converter (LibreOffice-compatible CLI).
type DocxConverter struct {
	command string
}

// NewDocxConverter creates a converter; an empty command disables it
func NewDocxConverter(command string) *DocxConverter {
	return &DocxConverter{command: command}
}

// Available reports whether a converter command is configured
func (c *DocxConverter) Available() bool {
	return c.command != ""
}

// Convert runs the external converter on the given PDF bytes
func (c *DocxConverter) Convert(ctx context.Context, pdfData []byte) ([]byte, error) {
	if !c.Available() {
		return nil, ErrDocxUnavailable
	}

	dir, err := os.MkdirTemp("", "cancelkit-docx-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "letter.pdf")
	if err := os.WriteFile(in, pdfData, 0600); err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, c.command, "--headless", "--convert-to", "docx", "--outdir", dir, in)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("docx conversion failed: %w (%s)", err, out)
	}

	return os.ReadFile(filepath.Join(dir, "letter.docx"))
}

// RenderDOCX renders the template to PDF first, then converts the PDF
func (e *Engine) RenderDOCX(ctx context.Context, converter *DocxConverter, src string, tctx map[string]interface{}) ([]byte, error) {
	pdfData, err := e.RenderPDF(src, tctx)
	if err != nil {
		return nil, err
	}
	return converter.Convert(ctx, pdfData)
}
