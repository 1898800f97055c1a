package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mindgrid/psyconsult/internal/booking"
	"github.com/mindgrid/psyconsult/internal/schedule"
	"github.com/mindgrid/psyconsult/libs/auth"
)

type ScheduleHandler struct {
	svc    *booking.Service
	logger *slog.Logger
}

func NewScheduleHandler(svc *booking.Service, logger *slog.Logger) *ScheduleHandler {
	return &ScheduleHandler{svc: svc, logger: logger}
}

type saveScheduleRequest struct {
	ProviderID string                `json:"provider_id"`
	Slots      []schedule.SlotChange `json:"slots"`
}

type weekResponse struct {
	ProviderID string         `json:"provider_id"`
	WeekOffset int            `json:"week_offset"`
	Days       []schedule.Day `json:"days"`
}

// Schedule serves the schedule collection route: GET returns slots for a
// date range, POST persists a batched availability edit.
func (h *ScheduleHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.rangeSlots(w, r)
	case http.MethodPost:
		h.save(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *ScheduleHandler) rangeSlots(w http.ResponseWriter, r *http.Request) {
	providerID := strings.TrimSpace(r.URL.Query().Get("provider_id"))
	startStr := strings.TrimSpace(r.URL.Query().Get("start_date"))
	endStr := strings.TrimSpace(r.URL.Query().Get("end_date"))
	if providerID == "" || startStr == "" || endStr == "" {
		http.Error(w, "provider_id, start_date, and end_date are required", http.StatusBadRequest)
		return
	}

	from, err := time.ParseInLocation(schedule.DateLayout, startStr, time.UTC)
	if err != nil {
		http.Error(w, "invalid start_date", http.StatusBadRequest)
		return
	}
	to, err := time.ParseInLocation(schedule.DateLayout, endStr, time.UTC)
	if err != nil || to.Before(from) {
		http.Error(w, "invalid end_date", http.StatusBadRequest)
		return
	}

	slots, err := h.svc.RangeSlots(r.Context(), providerID, from, to)
	if err != nil {
		if !writeDomainError(w, err) {
			h.logger.Error("schedule range failed", "err", err)
			http.Error(w, "failed to load schedule", http.StatusInternalServerError)
		}
		return
	}
	if slots == nil {
		slots = []schedule.Slot{}
	}
	writeJSON(w, http.StatusOK, slots)
}

// Week renders the provider editing grid for a week offset (0 = current
// week, negative = past weeks).
func (h *ScheduleHandler) Week(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	providerID := strings.TrimSpace(r.URL.Query().Get("provider_id"))
	if providerID == "" {
		http.Error(w, "provider_id required", http.StatusBadRequest)
		return
	}
	weekOffset := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("week_offset")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < -260 || n > 260 {
			http.Error(w, "invalid week_offset", http.StatusBadRequest)
			return
		}
		weekOffset = n
	}

	days, err := h.svc.WeekGrid(r.Context(), providerID, weekOffset)
	if err != nil {
		if !writeDomainError(w, err) {
			h.logger.Error("week grid failed", "err", err)
			http.Error(w, "failed to load schedule", http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, http.StatusOK, weekResponse{ProviderID: providerID, WeekOffset: weekOffset, Days: days})
}

func (h *ScheduleHandler) save(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	var req saveScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.ProviderID = strings.TrimSpace(req.ProviderID)
	if req.ProviderID == "" && claims.Role == auth.RoleProvider {
		req.ProviderID = claims.Sub
	}
	if req.ProviderID == "" || len(req.Slots) == 0 {
		http.Error(w, "provider_id and slots required", http.StatusBadRequest)
		return
	}

	// Providers edit only their own grid; admins may edit any.
	if claims.Role != auth.RoleAdmin && (claims.Role != auth.RoleProvider || claims.Sub != req.ProviderID) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	for _, change := range req.Slots {
		if !change.Key.Valid() {
			http.Error(w, "invalid slot key", http.StatusBadRequest)
			return
		}
	}

	if err := h.svc.SaveAvailability(r.Context(), req.ProviderID, req.Slots); err != nil {
		if !writeDomainError(w, err) {
			h.logger.Error("availability save failed", "err", err, "provider_id", req.ProviderID)
			http.Error(w, "failed to save availability", http.StatusInternalServerError)
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
