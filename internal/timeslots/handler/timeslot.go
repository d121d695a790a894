package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"pitchside/internal/timeslots/service"
	apperrors "pitchside/pkg/errors"
	httputil "pitchside/pkg/http"
	"pitchside/pkg/logger"
	"pitchside/pkg/middleware"
	"pitchside/pkg/model"

	"github.com/julienschmidt/httprouter"
)

const dateLayout = "2006-01-02"

type TimeSlotHandler struct {
	service service.TimeSlotService
	log     *logger.Logger
}

func NewTimeSlotHandler(service service.TimeSlotService, log *logger.Logger) *TimeSlotHandler {
	return &TimeSlotHandler{
		service: service,
		log:     log,
	}
}

func (h *TimeSlotHandler) GetAvailability(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	query := r.URL.Query()
	coachID := query.Get("coach_id")

	from, to, err := parseDateRange(query.Get("start_date"), query.Get("end_date"))
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetAvailability", "error", writeErr)
		}
		return
	}

	slots, err := h.service.GetAvailability(r.Context(), coachID, from, to)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetAvailability", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, slots); err != nil {
		h.log.Error("failed to write success response", "handler", "GetAvailability", "error", err)
	}
}

func (h *TimeSlotHandler) GetCoachSlots(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	query := r.URL.Query()

	from, to, err := parseDateRange(query.Get("start_date"), query.Get("end_date"))
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetCoachSlots", "error", writeErr)
		}
		return
	}

	identity := middleware.IdentityFrom(r.Context())
	slots, err := h.service.GetCoachSlots(r.Context(), identity, from, to)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetCoachSlots", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, slots); err != nil {
		h.log.Error("failed to write success response", "handler", "GetCoachSlots", "error", err)
	}
}

func (h *TimeSlotHandler) CreateSlot(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var slot model.TimeSlot
	if err := json.NewDecoder(r.Body).Decode(&slot); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "CreateSlot", "error", writeErr)
		}
		return
	}

	identity := middleware.IdentityFrom(r.Context())
	if err := h.service.CreateSlot(r.Context(), identity, &slot); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "CreateSlot", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteCreated(w, slot); err != nil {
		h.log.Error("failed to write created response", "handler", "CreateSlot", "error", err)
	}
}

func (h *TimeSlotHandler) UpdateSlot(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	var updates model.TimeSlotUpdate
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "UpdateSlot", "error", writeErr)
		}
		return
	}

	identity := middleware.IdentityFrom(r.Context())
	slot, err := h.service.UpdateSlot(r.Context(), identity, id, &updates)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "UpdateSlot", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, slot); err != nil {
		h.log.Error("failed to write success response", "handler", "UpdateSlot", "error", err)
	}
}

func (h *TimeSlotHandler) DeleteSlot(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	identity := middleware.IdentityFrom(r.Context())
	if err := h.service.DeleteSlot(r.Context(), identity, id); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "DeleteSlot", "error", writeErr)
		}
		return
	}

	httputil.WriteNoContent(w)
}

func (h *TimeSlotHandler) GenerateRecurring(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var body struct {
		Templates []model.RecurringTemplate `json:"templates"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "GenerateRecurring", "error", writeErr)
		}
		return
	}

	identity := middleware.IdentityFrom(r.Context())
	result, err := h.service.GenerateRecurring(r.Context(), identity, body.Templates)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GenerateRecurring", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteCreated(w, result); err != nil {
		h.log.Error("failed to write created response", "handler", "GenerateRecurring", "error", err)
	}
}

func (h *TimeSlotHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/availability", h.GetAvailability)
	router.GET("/api/v1/schedule/slots", h.GetCoachSlots)
	router.POST("/api/v1/schedule/slot", h.CreateSlot)
	router.PUT("/api/v1/schedule/slot/:id", h.UpdateSlot)
	router.DELETE("/api/v1/schedule/slot/:id", h.DeleteSlot)
	router.POST("/api/v1/schedule/recurring", h.GenerateRecurring)
}

func parseDateRange(startStr, endStr string) (*time.Time, *time.Time, error) {
	var from, to *time.Time
	if startStr != "" {
		parsed, err := time.Parse(dateLayout, startStr)
		if err != nil {
			return nil, nil, apperrors.InvalidInput("invalid start_date format, must be YYYY-MM-DD")
		}
		from = &parsed
	}
	if endStr != "" {
		parsed, err := time.Parse(dateLayout, endStr)
		if err != nil {
			return nil, nil, apperrors.InvalidInput("invalid end_date format, must be YYYY-MM-DD")
		}
		to = &parsed
	}
	return from, to, nil
}
