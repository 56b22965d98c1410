package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/cancelkit/cancelkit/internal/pending"
)

// deregisterRequest is the batch submission payload
type deregisterRequest struct {
	FirstName       string   `json:"first_name"`
	LastName        string   `json:"last_name"`
	Email           string   `json:"email"`
	Address         string   `json:"address"`
	PostalCode      string   `json:"postal_code"`
	Residence       string   `json:"residence"`
	SubscriptionIDs []string `json:"subscription_ids"`
}

// Deregister accepts a cancellation batch and mails the user a
// verification link. The batch is not dispatched until the link is
// followed.
func (h *Handlers) Deregister(w http.ResponseWriter, r *http.Request) {
	var req deregisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// Malformed ids are dropped the same way unknown ids are
	ids := make([]uuid.UUID, 0, len(req.SubscriptionIDs))
	for _, raw := range req.SubscriptionIDs {
		if id, err := uuid.Parse(raw); err == nil {
			ids = append(ids, id)
		}
	}

	contact := pending.Contact{
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Email:      req.Email,
		Address:    req.Address,
		PostalCode: req.PostalCode,
		Residence:  req.Residence,
	}

	if _, err := h.dispatcher.HandleVerificationRequest(r.Context(), contact, ids); err != nil {
		if errors.Is(err, pending.ErrMissingContact) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Printf("[API] verification request for %s: %v", req.Email, err)
		respondError(w, http.StatusBadGateway, "failed to send verification email")
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]string{"status": "verification email sent"})
}

// Verify consumes a verification token and runs the batch. The response
// reflects the real outcome: 404 for unknown or expired tokens, 502 when
// the summary mail could not be delivered.
func (h *Handlers) Verify(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	req, err := h.pending.Lookup(r.Context(), token)
	if errors.Is(err, pending.ErrNotFound) {
		respondError(w, http.StatusNotFound, "verification link is invalid or has expired")
		return
	}
	if err != nil {
		h.logger.Printf("[API] looking up token: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to look up request")
		return
	}

	if ok := h.dispatcher.HandleDeregisterRequest(r.Context(), req); !ok {
		respondError(w, http.StatusBadGateway, "failed to send summary email")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "processed"})
}

// EnqueueDispatch re-drives a confirmed batch through the worker pool
// instead of processing it in-request, for when a Verify call timed out
// before finishing.
func (h *Handlers) EnqueueDispatch(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	if _, err := h.pending.Lookup(r.Context(), token); err != nil {
		if errors.Is(err, pending.ErrNotFound) {
			respondError(w, http.StatusNotFound, "no pending request for token")
			return
		}
		h.logger.Printf("[API] looking up token: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to look up request")
		return
	}

	if err := h.queue.Enqueue(r.Context(), token); err != nil {
		h.logger.Printf("[API] enqueueing dispatch: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to enqueue dispatch")
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{"token": token})
}

// contactRequest is the contact form payload
type contactRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

// Contact forwards a contact form submission to the service inbox
func (h *Handlers) Contact(w http.ResponseWriter, r *http.Request) {
	var req contactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" || req.Email == "" || req.Message == "" {
		respondError(w, http.StatusBadRequest, "name, email and message are required")
		return
	}

	if err := h.notices.SendContactEmail(r.Context(), req.Name, req.Email, req.Title, req.Message); err != nil {
		h.logger.Printf("[API] contact email from %s: %v", req.Email, err)
		respondError(w, http.StatusBadGateway, "failed to send contact email")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}

// subscriptionRequest is the missing-provider form payload
type subscriptionRequest struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	Subscription string `json:"subscription"`
	Message      string `json:"message"`
}

// RequestSubscription forwards a request to add a provider to the catalog
func (h *Handlers) RequestSubscription(w http.ResponseWriter, r *http.Request) {
	var req subscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.Subscription == "" {
		respondError(w, http.StatusBadRequest, "email and subscription are required")
		return
	}

	if err := h.notices.SendRequestEmail(r.Context(), req.Name, req.Email, req.Subscription, req.Message); err != nil {
		h.logger.Printf("[API] request email from %s: %v", req.Email, err)
		respondError(w, http.StatusBadGateway, "failed to send request email")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}
