// Package render turns deregistration template sources into text, PDF
// and docx documents using the Liquid template language.
package render

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/osteele/liquid"
)

// SyntaxError reports a malformed template. It is surfaced to whoever is
// editing or previewing the template, never swallowed.
type SyntaxError struct {
	Message string
}

func (e *SyntaxError) Error() string {
	return "template syntax error: " + e.Message
}

// Templates are partially admin/user supplied, so filesystem-reaching
// tags are rejected before the parser ever sees them.
var disallowedTags = regexp.MustCompile(`\{%-?\s*(include|render)\b`)

// Engine renders Liquid templates with caching
type Engine struct {
	engine *liquid.Engine
	cache  sync.Map // map[string]*liquid.Template
}

// NewEngine creates a template engine with the letter/email filters
func NewEngine() *Engine {
	e := &Engine{engine: liquid.NewEngine()}
	e.registerFilters()
	return e
}

func (e *Engine) registerFilters() {
	// Fallback value: {{ lastname | default: "" }}
	e.engine.RegisterFilter("default", func(value interface{}, defaultVal string) interface{} {
		if value == nil {
			return defaultVal
		}
		strVal := fmt.Sprintf("%v", value)
		if strVal == "" || strVal == "<nil>" {
			return defaultVal
		}
		return value
	})

	// Capitalize first letter: {{ firstname | capitalize }}
	e.engine.RegisterFilter("capitalize", func(s string) string {
		if len(s) == 0 {
			return s
		}
		return strings.ToUpper(string(s[0])) + s[1:]
	})

	// Uppercase, for address lines: {{ residence | upcase }}
	e.engine.RegisterFilter("upcase", strings.ToUpper)
}

// Validate compiles a template and returns a *SyntaxError when malformed
func (e *Engine) Validate(src string, sandboxed bool) error {
	if sandboxed {
		if tag := disallowedTags.FindString(src); tag != "" {
			return &SyntaxError{Message: fmt.Sprintf("tag %q is not allowed", strings.TrimSpace(strings.TrimPrefix(tag, "{%")))}
		}
	}
	if _, err := e.engine.ParseString(src); err != nil {
		return &SyntaxError{Message: err.Error()}
	}
	return nil
}

// Render processes a template with the given context. Unknown
// placeholders render as empty strings. Sandboxed mode rejects
// filesystem-reaching tags with a *SyntaxError.
func (e *Engine) Render(src string, ctx map[string]interface{}, sandboxed bool) (string, error) {
	if sandboxed {
		if tag := disallowedTags.FindString(src); tag != "" {
			return "", &SyntaxError{Message: fmt.Sprintf("tag %q is not allowed", strings.TrimSpace(strings.TrimPrefix(tag, "{%")))}
		}
	}

	tpl, err := e.parse(src)
	if err != nil {
		return "", &SyntaxError{Message: err.Error()}
	}

	out, err := tpl.RenderString(ctx)
	if err != nil {
		return "", &SyntaxError{Message: err.Error()}
	}
	return out, nil
}

// RenderText renders a template in sandboxed mode
func (e *Engine) RenderText(src string, ctx map[string]interface{}) (string, error) {
	return e.Render(src, ctx, true)
}

func (e *Engine) parse(src string) (*liquid.Template, error) {
	if cached, ok := e.cache.Load(src); ok {
		return cached.(*liquid.Template), nil
	}
	tpl, err := e.engine.ParseString(src)
	if err != nil {
		return nil, err
	}
	e.cache.Store(src, tpl)
	return tpl, nil
}

// ClearCache removes all cached templates
func (e *Engine) ClearCache() {
	e.cache = sync.Map{}
}
