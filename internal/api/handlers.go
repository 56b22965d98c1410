package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/cancelkit/cancelkit/internal/catalog"
	"github.com/cancelkit/cancelkit/internal/pending"
	"github.com/cancelkit/cancelkit/internal/render"
)

// CatalogStore is the catalog surface the handlers need
type CatalogStore interface {
	GetSubscriptionBySlug(ctx context.Context, slug string) (*catalog.Subscription, error)
	ListSubscriptions(ctx context.Context, limit, offset int) ([]*catalog.Subscription, error)
	TopSubscriptions(ctx context.Context, limit int) ([]*catalog.Subscription, error)
	SearchSubscriptions(ctx context.Context, term string, limit int) ([]*catalog.Subscription, error)
	GetCategoryBySlug(ctx context.Context, slug string) (*catalog.Category, error)
	TopLevelCategories(ctx context.Context) ([]*catalog.Category, error)
	Subcategories(ctx context.Context, parentID uuid.UUID) ([]*catalog.Category, error)
}

// TemplateSource resolves template text for previews
type TemplateSource interface {
	ResolveLetter(ctx context.Context, obj catalog.TemplateOverrides) (string, error)
	ResolveEmail(ctx context.Context, obj catalog.TemplateOverrides) (string, error)
}

// Dispatcher runs the deregistration flow
type Dispatcher interface {
	HandleVerificationRequest(ctx context.Context, contact pending.Contact, ids []uuid.UUID) (*pending.Request, error)
	HandleDeregisterRequest(ctx context.Context, req *pending.Request) bool
}

// Enqueuer hands a confirmed batch to the worker pool
type Enqueuer interface {
	Enqueue(ctx context.Context, token string) error
}

// PendingLookup resolves tokens to pending requests
type PendingLookup interface {
	Lookup(ctx context.Context, token string) (*pending.Request, error)
}

// NoticeSender sends the contact form and provider request mails
type NoticeSender interface {
	SendContactEmail(ctx context.Context, name, email, title, message string) error
	SendRequestEmail(ctx context.Context, name, email, subscription, message string) error
}

// Handlers holds the HTTP handler dependencies
type Handlers struct {
	catalog    CatalogStore
	templates  TemplateSource
	engine     *render.Engine
	docx       *render.DocxConverter
	dispatcher Dispatcher
	queue      Enqueuer
	pending    PendingLookup
	notices    NoticeSender
	logger     *log.Logger
}

// HandlersConfig wires the handler dependencies
type HandlersConfig struct {
	Catalog    CatalogStore
	Templates  TemplateSource
	Engine     *render.Engine
	Docx       *render.DocxConverter
	Dispatcher Dispatcher
	Queue      Enqueuer
	Pending    PendingLookup
	Notices    NoticeSender
	Logger     *log.Logger
}

// NewHandlers creates the handler set
func NewHandlers(cfg HandlersConfig) *Handlers {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	docx := cfg.Docx
	if docx == nil {
		docx = render.NewDocxConverter("")
	}
	return &Handlers{
		catalog:    cfg.Catalog,
		templates:  cfg.Templates,
		engine:     cfg.Engine,
		docx:       docx,
		dispatcher: cfg.Dispatcher,
		queue:      cfg.Queue,
		pending:    cfg.Pending,
		notices:    cfg.Notices,
		logger:     logger,
	}
}

// HealthCheck reports service liveness
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Response helpers

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// queryInt parses an integer query parameter with a default
func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return def
	}
	return v
}
