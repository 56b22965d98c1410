package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cancelkit/cancelkit/internal/catalog"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// ListSubscriptions lists catalog entries. `search` filters by name or
// search term, `top=true` orders by usage, otherwise pagination applies.
func (h *Handlers) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", defaultPageSize)
	if limit > maxPageSize {
		limit = maxPageSize
	}

	var (
		subs []*catalog.Subscription
		err  error
	)
	switch {
	case r.URL.Query().Get("search") != "":
		subs, err = h.catalog.SearchSubscriptions(r.Context(), r.URL.Query().Get("search"), limit)
	case r.URL.Query().Get("top") == "true":
		subs, err = h.catalog.TopSubscriptions(r.Context(), limit)
	default:
		subs, err = h.catalog.ListSubscriptions(r.Context(), limit, queryInt(r, "offset", 0))
	}
	if err != nil {
		h.logger.Printf("[API] listing subscriptions: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to list subscriptions")
		return
	}

	if subs == nil {
		subs = []*catalog.Subscription{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"subscriptions": subs})
}

// GetSubscription returns one catalog entry by slug
func (h *Handlers) GetSubscription(w http.ResponseWriter, r *http.Request) {
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
	respondJSON(w, http.StatusOK, sub)
}

// ListCategories returns the top-level categories
func (h *Handlers) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.catalog.TopLevelCategories(r.Context())
	if err != nil {
		h.logger.Printf("[API] listing categories: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to list categories")
		return
	}
	if categories == nil {
		categories = []*catalog.Category{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"categories": categories})
}

// GetCategory returns one category with its direct subcategories
func (h *Handlers) GetCategory(w http.ResponseWriter, r *http.Request) {
	category, err := h.catalog.GetCategoryBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		h.logger.Printf("[API] loading category: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to load category")
		return
	}
	if category == nil {
		respondError(w, http.StatusNotFound, "category not found")
		return
	}

	subcategories, err := h.catalog.Subcategories(r.Context(), category.ID)
	if err != nil {
		h.logger.Printf("[API] loading subcategories: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to load category")
		return
	}
	if subcategories == nil {
		subcategories = []*catalog.Category{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"category":      category,
		"subcategories": subcategories,
	})
}
