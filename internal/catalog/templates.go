package catalog

import (
	"context"
	_ "embed"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/cancelkit/cancelkit/internal/filestore"
)

//go:embed templates/deregister_letter.html
var defaultLetterTemplate string

//go:embed templates/deregister_email.txt
var defaultEmailTemplate string

// ErrorTemplate replaces an override that is recorded but unreadable, so
// the batch still renders instead of failing.
const ErrorTemplate = "there was an error rendering the template"

// CategoryGetter loads categories for the inheritance walk
type CategoryGetter interface {
	GetCategory(ctx context.Context, id uuid.UUID) (*Category, error)
}

// TemplateResolver finds the template source for a catalog object: the
// nearest non-empty override along the object's category chain wins,
// falling back to the built-in default.
type TemplateResolver struct {
	categories CategoryGetter
	files      filestore.Store
	logger     *log.Logger
}

// NewTemplateResolver creates a template resolver
func NewTemplateResolver(categories CategoryGetter, files filestore.Store, logger *log.Logger) *TemplateResolver {
	if logger == nil {
		logger = log.Default()
	}
	return &TemplateResolver{categories: categories, files: files, logger: logger}
}

// Resolve returns the template source text for the given kind
// (TemplateLetter or TemplateEmail). The walk is iterative with a
// visited set, so an accidental category cycle terminates.
func (r *TemplateResolver) Resolve(ctx context.Context, obj TemplateOverrides, kind string) (string, error) {
	if kind != TemplateLetter && kind != TemplateEmail {
		return "", fmt.Errorf("unknown template kind %q", kind)
	}

	visited := make(map[uuid.UUID]bool)
	var cur TemplateOverrides = obj

	for cur != nil {
		if key := cur.OverrideKey(kind); key != "" {
			data, err := r.files.Read(ctx, key)
			if err != nil {
				r.logger.Printf("[TemplateResolver] override %s unreadable: %v", key, err)
				return ErrorTemplate, nil
			}
			return string(data), nil
		}

		parentID, ok := cur.ParentCategory()
		if !ok || visited[parentID] {
			break
		}
		visited[parentID] = true

		parent, err := r.categories.GetCategory(ctx, parentID)
		if err != nil {
			return "", fmt.Errorf("loading category %s: %w", parentID, err)
		}
		if parent == nil {
			break
		}
		cur = parent
	}

	return DefaultTemplate(kind), nil
}

// ResolveLetter returns the letter template source for obj
func (r *TemplateResolver) ResolveLetter(ctx context.Context, obj TemplateOverrides) (string, error) {
	return r.Resolve(ctx, obj, TemplateLetter)
}

// ResolveEmail returns the email template source for obj
func (r *TemplateResolver) ResolveEmail(ctx context.Context, obj TemplateOverrides) (string, error) {
	return r.Resolve(ctx, obj, TemplateEmail)
}

// DefaultTemplate returns the built-in template for a kind
func DefaultTemplate(kind string) string {
	if kind == TemplateLetter {
		return defaultLetterTemplate
	}
	return defaultEmailTemplate
}
