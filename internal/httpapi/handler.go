package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Gabyy47/Marina-Mercante-sub000/internal/models"
	"github.com/Gabyy47/Marina-Mercante-sub000/internal/queue"
	"github.com/Gabyy47/Marina-Mercante-sub000/internal/store"

	"github.com/google/uuid"
)

type Handler struct {
	store        store.TicketStore
	location     *time.Location
	historyLimit int
	now          func() time.Time
}

type Options struct {
	Location     *time.Location
	HistoryLimit int
	Now          func() time.Time
}

func NewHandler(store store.TicketStore, options Options) *Handler {
	loc := options.Location
	if loc == nil {
		loc = time.UTC
	}
	limit := options.HistoryLimit
	if limit <= 0 {
		limit = 5
	}
	now := options.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Handler{
		store:        store,
		location:     loc,
		historyLimit: limit,
		now:          now,
	}
}

func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.handleHealth)
	mux.HandleFunc("/api/tickets", h.handleIssueTicket)
	mux.HandleFunc("/api/tickets/queue", h.handleQueue)
	mux.HandleFunc("/api/tickets/active", h.handleActiveTicket)
	mux.HandleFunc("/api/tickets/actions/call-next", h.handleCallNext)
	mux.HandleFunc("/api/tickets/", h.handleTicketSubpath)
	mux.HandleFunc("/api/monitor", h.handleMonitor)
	mux.HandleFunc("/api/stations", h.handleStations)
	mux.HandleFunc("/api/tramites", h.handleTramites)
	mux.HandleFunc("/api/events", h.handleEvents)
	return mux
}

func (h *Handler) dayStart() time.Time {
	local := h.now().In(h.location)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, h.location)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.WriteHeader(http.StatusOK)
}

type issueTicketRequest struct {
	RequestID     string `json:"request_id"`
	PriorityClass string `json:"priority_class"`
	TramiteID     string `json:"tramite_id"`
	Note          string `json:"note"`
}

func (h *Handler) handleIssueTicket(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req issueTicketRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}

	req.RequestID = strings.TrimSpace(req.RequestID)
	req.PriorityClass = strings.TrimSpace(req.PriorityClass)
	req.TramiteID = strings.TrimSpace(req.TramiteID)
	req.Note = strings.TrimSpace(req.Note)

	if req.RequestID == "" || req.TramiteID == "" {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "request_id and tramite_id are required")
		return
	}
	if !isValidUUID(req.RequestID) || !isValidUUID(req.TramiteID) {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "request_id and tramite_id must be UUIDs")
		return
	}
	if req.PriorityClass == "" {
		req.PriorityClass = models.PriorityNormal
	}
	if req.PriorityClass != models.PriorityNormal && req.PriorityClass != models.PriorityPreferential {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "priority_class must be normal or preferential")
		return
	}

	ticket, _, err := h.store.IssueTicket(r.Context(), store.IssueTicketInput{
		RequestID:     req.RequestID,
		PriorityClass: req.PriorityClass,
		TramiteID:     req.TramiteID,
		Note:          req.Note,
		CreatedAt:     h.now(),
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, req.RequestID, status, code, msg)
		return
	}

	writeJSON(w, http.StatusOK, ticket)
}

func (h *Handler) handleQueue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	tickets, err := h.store.ListQueue(r.Context(), h.dayStart())
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}
	if tickets == nil {
		tickets = []models.Ticket{}
	}
	// Callers see the queue in call order regardless of how the store
	// returned it.
	queue.Sort(tickets)

	writeJSON(w, http.StatusOK, tickets)
}

func (h *Handler) handleActiveTicket(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	stationID := strings.TrimSpace(r.URL.Query().Get("station_id"))
	if stationID == "" {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "station_id is required")
		return
	}
	if !isValidUUID(stationID) {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "station_id must be a UUID")
		return
	}

	ticket, found, err := h.store.GetActiveTicket(r.Context(), stationID)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}
	if !found {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	writeJSON(w, http.StatusOK, ticket)
}

type callNextRequest struct {
	RequestID string `json:"request_id"`
	StationID string `json:"station_id"`
}

func (h *Handler) handleCallNext(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req callNextRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}

	req.RequestID = strings.TrimSpace(req.RequestID)
	req.StationID = strings.TrimSpace(req.StationID)

	if req.RequestID == "" || req.StationID == "" {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "request_id and station_id are required")
		return
	}
	if !isValidUUID(req.RequestID) || !isValidUUID(req.StationID) {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "request_id and station_id must be UUIDs")
		return
	}

	ticket, _, err := h.store.CallNext(r.Context(), store.CallNextInput{
		RequestID: req.RequestID,
		StationID: req.StationID,
		CalledAt:  h.now(),
		DayStart:  h.dayStart(),
	})
	if err != nil {
		if errors.Is(err, store.ErrEmptyQueue) {
			writeError(w, req.RequestID, http.StatusConflict, "queue_empty", "no tickets available")
			return
		}
		status, code, msg := mapError(err)
		writeError(w, req.RequestID, status, code, msg)
		return
	}

	writeJSON(w, http.StatusOK, ticket)
}

func (h *Handler) handleTicketSubpath(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/tickets/")
	parts := strings.Split(strings.Trim(path, "/"), "/")

	switch {
	case len(parts) == 1:
		h.handleGetTicket(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "events":
		h.handleTicketEvents(w, r, parts[0])
	case len(parts) == 3 && parts[1] == "actions":
		h.handleTicketAction(w, r, parts[0], parts[2])
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleGetTicket(w http.ResponseWriter, r *http.Request, ticketID string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !isValidUUID(ticketID) {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "ticket_id must be a UUID")
		return
	}

	ticket, _, err := h.store.GetTicket(r.Context(), ticketID)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}

	writeJSON(w, http.StatusOK, ticket)
}

func (h *Handler) handleTicketEvents(w http.ResponseWriter, r *http.Request, ticketID string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !isValidUUID(ticketID) {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "ticket_id must be a UUID")
		return
	}

	events, err := h.store.ListTicketEvents(r.Context(), ticketID)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}
	if events == nil {
		events = []store.TicketEvent{}
	}

	chainErr := store.VerifyTicketEvents(events)
	if chainErr != nil {
		log.Printf("ticket %s event chain broken: %v", ticketID, chainErr)
	}
	writeJSON(w, http.StatusOK, ticketEventsResponse{
		Events:  events,
		ChainOK: chainErr == nil,
	})
}

type ticketEventsResponse struct {
	Events  []store.TicketEvent `json:"events"`
	ChainOK bool                `json:"chain_ok"`
}

type ticketActionRequest struct {
	RequestID string `json:"request_id"`
	StationID string `json:"station_id"`
}

func (h *Handler) handleTicketAction(w http.ResponseWriter, r *http.Request, ticketID, action string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !isValidUUID(ticketID) {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "ticket_id must be a UUID")
		return
	}

	var req ticketActionRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, "", http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}
	req.RequestID = strings.TrimSpace(req.RequestID)
	req.StationID = strings.TrimSpace(req.StationID)

	if req.RequestID == "" {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "request_id is required")
		return
	}
	if !isValidUUID(req.RequestID) {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "request_id must be a UUID")
		return
	}
	if req.StationID != "" && !isValidUUID(req.StationID) {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "station_id must be a UUID when provided")
		return
	}

	input := store.TicketActionInput{
		RequestID:  req.RequestID,
		TicketID:   ticketID,
		StationID:  req.StationID,
		OccurredAt: h.now(),
	}

	var ticket models.Ticket
	var err error
	switch action {
	case "repeat":
		if req.StationID == "" {
			writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "station_id is required")
			return
		}
		ticket, _, err = h.store.RepeatCall(r.Context(), input)
	case "finalize":
		ticket, _, err = h.store.FinalizeTicket(r.Context(), input)
	case "cancel":
		ticket, _, err = h.store.CancelTicket(r.Context(), input)
	default:
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, req.RequestID, status, code, msg)
		return
	}

	writeJSON(w, http.StatusOK, ticket)
}

func (h *Handler) handleMonitor(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	state, err := h.store.MonitorState(r.Context(), h.dayStart(), h.historyLimit)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}
	if state.History == nil {
		state.History = []models.Ticket{}
	}

	writeJSON(w, http.StatusOK, state)
}

func (h *Handler) handleStations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	stations, err := h.store.ListStations(r.Context())
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}
	if stations == nil {
		stations = []models.Station{}
	}

	writeJSON(w, http.StatusOK, stations)
}

func (h *Handler) handleTramites(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	tramites, err := h.store.ListTramites(r.Context())
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}
	if tramites == nil {
		tramites = []models.Tramite{}
	}

	writeJSON(w, http.StatusOK, tramites)
}

func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	afterRaw := strings.TrimSpace(r.URL.Query().Get("after"))
	var after time.Time
	if afterRaw != "" {
		parsed, err := time.Parse(time.RFC3339, afterRaw)
		if err != nil {
			writeError(w, "", http.StatusBadRequest, "invalid_request", "after must be RFC3339 timestamp")
			return
		}
		after = parsed
	}

	limit := 100
	if limitRaw := strings.TrimSpace(r.URL.Query().Get("limit")); limitRaw != "" {
		parsed, err := strconv.Atoi(limitRaw)
		if err != nil || parsed <= 0 {
			writeError(w, "", http.StatusBadRequest, "invalid_request", "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	events, err := h.store.ListOutboxEvents(r.Context(), after, limit)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}
	if events == nil {
		events = []store.OutboxEvent{}
	}

	writeJSON(w, http.StatusOK, events)
}

func isValidUUID(value string) bool {
	_, err := uuid.Parse(value)
	return err == nil
}

func mapError(err error) (int, string, string) {
	switch {
	case errors.Is(err, store.ErrTicketNotFound):
		return http.StatusNotFound, "ticket_not_found", "ticket not found"
	case errors.Is(err, store.ErrTramiteNotFound):
		return http.StatusNotFound, "tramite_not_found", "tramite not found or inactive"
	case errors.Is(err, store.ErrStationNotFound):
		return http.StatusNotFound, "station_not_found", "station not found or inactive"
	case errors.Is(err, store.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition", "ticket state does not allow this action"
	case errors.Is(err, store.ErrStationBusy):
		return http.StatusConflict, "station_busy", "station is already serving a ticket"
	case errors.Is(err, store.ErrStationMismatch):
		return http.StatusConflict, "station_mismatch", "ticket assigned to a different station"
	case errors.Is(err, store.ErrEmptyQueue):
		return http.StatusConflict, "queue_empty", "no tickets available"
	default:
		return http.StatusInternalServerError, "internal_error", "internal server error"
	}
}

type errorResponse struct {
	RequestID string        `json:"request_id"`
	Error     responseError `json:"error"`
}

type responseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, requestID string, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		RequestID: requestID,
		Error: responseError{
			Code:    code,
			Message: message,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}
