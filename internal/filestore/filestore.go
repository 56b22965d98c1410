// Package filestore stores uploaded template overrides as byte blobs
// addressed by a {kind}/{slug}/{filename} path.
package filestore

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned when no blob exists at the requested path.
var ErrNotFound = errors.New("filestore: blob not found")

// Store reads and writes byte blobs by path
type Store interface {
	Read(ctx context.Context, path string) ([]byte, error)
	Write(ctx context.Context, path string, data []byte) error
	Delete(ctx context.Context, path string) error
}

// TemplatePath builds the canonical storage path for a template override,
// e.g. "subscription/netflix/letter_template.html".
func TemplatePath(kind, slug, filename string) string {
	return fmt.Sprintf("%s/%s/%s", kind, slug, filename)
}
