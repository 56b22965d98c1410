package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cancelkit/cancelkit/internal/render"
)

// previewContact is the placeholder identity shown in previews
var previewContact = render.Contact{
	FirstName:  "John",
	LastName:   "Doe",
	Email:      "john.doe@example.com",
	Address:    "Example Street 1",
	PostalCode: "1234 AB",
	Residence:  "Springfield",
}

// PreviewLetter renders the cancellation letter for a provider with
// placeholder contact details. `format` selects pdf (default), text or
// docx output.
func (h *Handlers) PreviewLetter(w http.ResponseWriter, r *http.Request) {
	sub, err := h.catalog.GetSubscriptionBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		h.logger.Printf("[API] loading subscription: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to load subscription")
		return
	}
	if sub == nil {
		respondError(w, http.StatusNotFound, "subscription not found")
		return
	}

	src, err := h.templates.ResolveLetter(r.Context(), sub)
	if err != nil {
		h.logger.Printf("[API] resolving letter template for %s: %v", sub.Slug, err)
		respondError(w, http.StatusInternalServerError, "failed to resolve template")
		return
	}

	tctx := render.LetterContext(previewContact, sub, time.Now().Format("2 January 2006"))

	switch r.URL.Query().Get("format") {
	case "text":
		text, err := h.engine.RenderText(src, tctx)
		if err != nil {
			h.renderFailure(w, err)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte(text))

	case "docx":
		if !h.docx.Available() {
			respondError(w, http.StatusNotImplemented, "docx output is not configured")
			return
		}
		data, err := h.engine.RenderDOCX(r.Context(), h.docx, src, tctx)
		if err != nil {
			h.renderFailure(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.wordprocessingml.document")
		w.Header().Set("Content-Disposition", `attachment; filename="`+sub.Slug+`.docx"`)
		w.Write(data)

	case "", "pdf":
		data, err := h.engine.RenderPDF(src, tctx)
		if err != nil {
			h.renderFailure(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", `inline; filename="`+sub.Slug+`.pdf"`)
		w.Write(data)

	default:
		respondError(w, http.StatusBadRequest, "unknown format")
	}
}

// PreviewEmail renders the cancellation email for a provider with
// placeholder contact details.
func (h *Handlers) PreviewEmail(w http.ResponseWriter, r *http.Request) {
	sub, err := h.catalog.GetSubscriptionBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		h.logger.Printf("[API] loading subscription: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to load subscription")
		return
	}
	if sub == nil {
		respondError(w, http.StatusNotFound, "subscription not found")
		return
	}

	src, err := h.templates.ResolveEmail(r.Context(), sub)
	if err != nil {
		h.logger.Printf("[API] resolving email template for %s: %v", sub.Slug, err)
		respondError(w, http.StatusInternalServerError, "failed to resolve template")
		return
	}

	var forwardAddress interface{}
	if sub.SupportEmail != "" {
		forwardAddress = sub.SupportEmail
	}
	text, err := h.engine.RenderText(src, render.EmailContext(previewContact, sub.Name, forwardAddress, time.Now().Format("2 January 2006")))
	if err != nil {
		h.renderFailure(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(text))
}

// renderRequest is the admin test-render payload
type renderRequest struct {
	Template string                 `json:"template"`
	Context  map[string]interface{} `json:"context"`
	Format   string                 `json:"format"`
}

// RenderTemplate test-renders an arbitrary template, for editing
// uploaded overrides. Syntax errors come back as a 400 with the parser
// message.
func (h *Handlers) RenderTemplate(w http.ResponseWriter, r *http.Request) {
	var req renderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Template == "" {
		respondError(w, http.StatusBadRequest, "template is required")
		return
	}

	switch req.Format {
	case "pdf":
		data, err := h.engine.RenderPDF(req.Template, req.Context)
		if err != nil {
			h.renderFailure(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Write(data)

	case "", "text":
		text, err := h.engine.RenderText(req.Template, req.Context)
		if err != nil {
			h.renderFailure(w, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]string{"result": text})

	default:
		respondError(w, http.StatusBadRequest, "unknown format")
	}
}

// renderFailure maps template errors to responses: syntax problems are
// the caller's to fix, anything else is ours.
func (h *Handlers) renderFailure(w http.ResponseWriter, err error) {
	var syntaxErr *render.SyntaxError
	if errors.As(err, &syntaxErr) {
		respondError(w, http.StatusBadRequest, syntaxErr.Error())
		return
	}
	h.logger.Printf("[API] rendering template: %v", err)
	respondError(w, http.StatusInternalServerError, "failed to render template")
}
