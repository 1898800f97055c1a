package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mindgrid/psyconsult/internal/booking"
	"github.com/mindgrid/psyconsult/internal/model"
	"github.com/mindgrid/psyconsult/internal/schedule"
	"github.com/mindgrid/psyconsult/libs/auth"
)

type ConsultationHandler struct {
	svc    *booking.Service
	logger *slog.Logger
}

func NewConsultationHandler(svc *booking.Service, logger *slog.Logger) *ConsultationHandler {
	return &ConsultationHandler{svc: svc, logger: logger}
}

type bookRequest struct {
	ProviderID string           `json:"provider_id"`
	ClientID   string           `json:"client_id,omitempty"`
	Slot       schedule.SlotKey `json:"slot"`
	ChildID    *string          `json:"child_id,omitempty"`
	Notes      string           `json:"notes,omitempty"`
}

type transitionRequest struct {
	ConsultationID string `json:"consultation_id"`
	Event          string `json:"event"`
	Reason         string `json:"reason,omitempty"`
}

// Consultations dispatches the collection route: GET lists, POST books.
func (h *ConsultationHandler) Consultations(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.list(w, r)
	case http.MethodPost:
		h.book(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *ConsultationHandler) list(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	now := h.svc.Now()
	from := now.AddDate(0, 0, -30)
	to := now.AddDate(0, 0, 90)
	if raw := strings.TrimSpace(r.URL.Query().Get("from")); raw != "" {
		t, err := time.ParseInLocation(schedule.DateLayout, raw, time.UTC)
		if err != nil {
			http.Error(w, "invalid from date", http.StatusBadRequest)
			return
		}
		from = t
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("to")); raw != "" {
		t, err := time.ParseInLocation(schedule.DateLayout, raw, time.UTC)
		if err != nil {
			http.Error(w, "invalid to date", http.StatusBadRequest)
			return
		}
		to = t.AddDate(0, 0, 1) // inclusive end date
	}

	limit := 100
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	var (
		items []model.Consultation
		err   error
	)
	switch claims.Role {
	case auth.RoleProvider:
		items, err = h.svc.ListForProvider(r.Context(), claims.Sub, from, to, limit)
	case auth.RoleClient:
		items, err = h.svc.ListForClient(r.Context(), claims.Sub, from, to, limit)
	case auth.RoleAdmin:
		if providerID := strings.TrimSpace(r.URL.Query().Get("provider_id")); providerID != "" {
			items, err = h.svc.ListForProvider(r.Context(), providerID, from, to, limit)
		} else if clientID := strings.TrimSpace(r.URL.Query().Get("client_id")); clientID != "" {
			items, err = h.svc.ListForClient(r.Context(), clientID, from, to, limit)
		} else {
			http.Error(w, "provider_id or client_id required", http.StatusBadRequest)
			return
		}
	default:
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	if err != nil {
		h.logger.Error("consultation list failed", "err", err)
		http.Error(w, "failed to list consultations", http.StatusInternalServerError)
		return
	}

	out := make([]consultationItem, 0, len(items))
	for _, c := range items {
		out = append(out, toConsultationItem(c))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *ConsultationHandler) book(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	var req bookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.ProviderID = strings.TrimSpace(req.ProviderID)
	if req.ProviderID == "" {
		http.Error(w, "provider_id required", http.StatusBadRequest)
		return
	}
	if !req.Slot.Valid() {
		http.Error(w, "invalid slot", http.StatusBadRequest)
		return
	}

	// The client identity comes from the verified token, never the body;
	// admins may book on a client's behalf.
	clientID := claims.Sub
	switch claims.Role {
	case auth.RoleClient:
	case auth.RoleAdmin:
		if id := strings.TrimSpace(req.ClientID); id != "" {
			clientID = id
		}
	default:
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	c, err := h.svc.Book(r.Context(), booking.BookRequest{
		ProviderID:     req.ProviderID,
		ClientID:       clientID,
		Slot:           req.Slot,
		ChildID:        req.ChildID,
		Notes:          strings.TrimSpace(req.Notes),
		IdempotencyKey: strings.TrimSpace(r.Header.Get("Idempotency-Key")),
	})
	if err != nil {
		if !writeDomainError(w, err) {
			h.logger.Error("booking failed", "err", err, "provider_id", req.ProviderID)
			http.Error(w, "failed to book consultation", http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, http.StatusCreated, toConsultationItem(*c))
}

// Transition applies a lifecycle event (confirm, reject, cancel, start,
// complete, no_show) to one consultation.
func (h *ConsultationHandler) Transition(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.ConsultationID = strings.TrimSpace(req.ConsultationID)
	event := model.TransitionEvent(strings.TrimSpace(req.Event))
	if req.ConsultationID == "" || !knownEvent(event) {
		http.Error(w, "consultation_id and a valid event are required", http.StatusBadRequest)
		return
	}

	c, err := h.svc.Transition(r.Context(), req.ConsultationID, event, claims, strings.TrimSpace(req.Reason))
	if err != nil {
		if !writeDomainError(w, err) {
			h.logger.Error("transition failed", "err", err, "consultation_id", req.ConsultationID)
			http.Error(w, "failed to apply transition", http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, http.StatusOK, toConsultationItem(*c))
}

func knownEvent(e model.TransitionEvent) bool {
	switch e {
	case model.EventConfirm, model.EventReject, model.EventCancel,
		model.EventStart, model.EventComplete, model.EventNoShow:
		return true
	}
	return false
}
