// internal/circulation/handler.go
package circulation

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"libris/internal/loans"
)

// Handler exposes the circulation service over HTTP.
type Handler struct {
	service Service
}

// NewHandler creates a handler for the given service.
func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// Routes mounts the circulation endpoints.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/reservations", h.handleReserve)
	r.Post("/checkouts", h.handleCheckout)
	r.Post("/items/{identifier}/checkin", h.handleCheckIn)
	return r
}

func (h *Handler) handleReserve(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MemberIdentifier string `json:"member_identifier"`
		ItemIdentifier   string `json:"item_identifier"`
		ExpiryDate       *int64 `json:"expiry_date,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	reservation, err := h.service.Reserve(r.Context(), req.MemberIdentifier, req.ItemIdentifier, req.ExpiryDate)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, reservation)
}

func (h *Handler) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MemberIdentifier string   `json:"member_identifier"`
		ItemIdentifiers  []string `json:"item_identifiers"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	if len(req.ItemIdentifiers) == 0 {
		writeError(w, http.StatusBadRequest, "bad_request", "item_identifiers is required")
		return
	}

	checkouts, err := h.service.Checkout(r.Context(), req.MemberIdentifier, req.ItemIdentifiers)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, checkouts)
}

func (h *Handler) handleCheckIn(w http.ResponseWriter, r *http.Request) {
	identifier := chi.URLParam(r, "identifier")

	checkout, err := h.service.CheckIn(r.Context(), identifier)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if checkout == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, checkout)
}

// writeServiceError maps each failure kind to a distinct status and code.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrMemberNotFound):
		writeError(w, http.StatusNotFound, "member_not_found", err.Error())
	case errors.Is(err, ErrItemNotFound):
		writeError(w, http.StatusNotFound, "item_not_found", err.Error())
	case errors.Is(err, ErrMemberInactive):
		writeError(w, http.StatusConflict, "member_inactive", err.Error())
	case errors.Is(err, ErrItemRestricted):
		writeError(w, http.StatusConflict, "item_restricted", err.Error())
	case errors.Is(err, ErrLoanLimitExceeded):
		writeError(w, http.StatusConflict, "loan_limit_exceeded", err.Error())
	case errors.Is(err, loans.ErrConditionNotFound):
		writeError(w, http.StatusInternalServerError, "loan_condition_not_found", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"code": code, "error": message})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
