package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Gabyy47/Marina-Mercante-sub000/internal/models"
	"github.com/Gabyy47/Marina-Mercante-sub000/internal/store"
)

type fakeStore struct {
	issueFn        func(ctx context.Context, input store.IssueTicketInput) (models.Ticket, bool, error)
	getTicketFn    func(ctx context.Context, ticketID string) (models.Ticket, bool, error)
	listQueueFn    func(ctx context.Context, dayStart time.Time) ([]models.Ticket, error)
	callFn         func(ctx context.Context, input store.CallNextInput) (models.Ticket, bool, error)
	repeatFn       func(ctx context.Context, input store.TicketActionInput) (models.Ticket, bool, error)
	finalizeFn     func(ctx context.Context, input store.TicketActionInput) (models.Ticket, bool, error)
	cancelFn       func(ctx context.Context, input store.TicketActionInput) (models.Ticket, bool, error)
	activeFn       func(ctx context.Context, stationID string) (models.Ticket, bool, error)
	monitorFn      func(ctx context.Context, dayStart time.Time, historyLimit int) (store.MonitorState, error)
	stationsFn     func(ctx context.Context) ([]models.Station, error)
	tramitesFn     func(ctx context.Context) ([]models.Tramite, error)
	outboxFn       func(ctx context.Context, after time.Time, limit int) ([]store.OutboxEvent, error)
	ticketEventsFn func(ctx context.Context, ticketID string) ([]store.TicketEvent, error)
}

func (f fakeStore) IssueTicket(ctx context.Context, input store.IssueTicketInput) (models.Ticket, bool, error) {
	if f.issueFn == nil {
		return models.Ticket{}, false, nil
	}
	return f.issueFn(ctx, input)
}

func (f fakeStore) GetTicket(ctx context.Context, ticketID string) (models.Ticket, bool, error) {
	if f.getTicketFn == nil {
		return models.Ticket{}, false, nil
	}
	return f.getTicketFn(ctx, ticketID)
}

func (f fakeStore) ListQueue(ctx context.Context, dayStart time.Time) ([]models.Ticket, error) {
	if f.listQueueFn == nil {
		return nil, nil
	}
	return f.listQueueFn(ctx, dayStart)
}

func (f fakeStore) CallNext(ctx context.Context, input store.CallNextInput) (models.Ticket, bool, error) {
	if f.callFn == nil {
		return models.Ticket{}, false, nil
	}
	return f.callFn(ctx, input)
}

func (f fakeStore) RepeatCall(ctx context.Context, input store.TicketActionInput) (models.Ticket, bool, error) {
	if f.repeatFn == nil {
		return models.Ticket{}, false, nil
	}
	return f.repeatFn(ctx, input)
}

func (f fakeStore) FinalizeTicket(ctx context.Context, input store.TicketActionInput) (models.Ticket, bool, error) {
	if f.finalizeFn == nil {
		return models.Ticket{}, false, nil
	}
	return f.finalizeFn(ctx, input)
}

func (f fakeStore) CancelTicket(ctx context.Context, input store.TicketActionInput) (models.Ticket, bool, error) {
	if f.cancelFn == nil {
		return models.Ticket{}, false, nil
	}
	return f.cancelFn(ctx, input)
}

func (f fakeStore) GetActiveTicket(ctx context.Context, stationID string) (models.Ticket, bool, error) {
	if f.activeFn == nil {
		return models.Ticket{}, false, nil
	}
	return f.activeFn(ctx, stationID)
}

func (f fakeStore) MonitorState(ctx context.Context, dayStart time.Time, historyLimit int) (store.MonitorState, error) {
	if f.monitorFn == nil {
		return store.MonitorState{}, nil
	}
	return f.monitorFn(ctx, dayStart, historyLimit)
}

func (f fakeStore) ListStations(ctx context.Context) ([]models.Station, error) {
	if f.stationsFn == nil {
		return nil, nil
	}
	return f.stationsFn(ctx)
}

func (f fakeStore) ListTramites(ctx context.Context) ([]models.Tramite, error) {
	if f.tramitesFn == nil {
		return nil, nil
	}
	return f.tramitesFn(ctx)
}

func (f fakeStore) ListOutboxEvents(ctx context.Context, after time.Time, limit int) ([]store.OutboxEvent, error) {
	if f.outboxFn == nil {
		return nil, nil
	}
	return f.outboxFn(ctx, after, limit)
}

func (f fakeStore) ListTicketEvents(ctx context.Context, ticketID string) ([]store.TicketEvent, error) {
	if f.ticketEventsFn == nil {
		return nil, nil
	}
	return f.ticketEventsFn(ctx, ticketID)
}

func TestIssueTicketSuccess(t *testing.T) {
	createdAt := time.Date(2026, 3, 9, 8, 0, 0, 0, time.UTC)
	st := fakeStore{
		issueFn: func(ctx context.Context, input store.IssueTicketInput) (models.Ticket, bool, error) {
			return models.Ticket{
				TicketID:      "ticket-1",
				DisplayCode:   "N-001",
				PriorityClass: input.PriorityClass,
				Status:        models.StatusQueued,
				CreatedAt:     createdAt,
				RequestID:     input.RequestID,
			}, true, nil
		},
	}

	h := NewHandler(st, Options{})

	payload := map[string]string{
		"request_id": "11111111-1111-1111-1111-111111111111",
		"tramite_id": "22222222-2222-2222-2222-222222222222",
	}
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, "/api/tickets", bytes.NewReader(body))
	resp := httptest.NewRecorder()

	h.Routes().ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}

	var ticket models.Ticket
	if err := json.NewDecoder(resp.Body).Decode(&ticket); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if ticket.DisplayCode != "N-001" || ticket.Status != models.StatusQueued {
		t.Fatalf("unexpected ticket response: %+v", ticket)
	}
	if ticket.PriorityClass != models.PriorityNormal {
		t.Fatalf("expected default priority normal, got %s", ticket.PriorityClass)
	}
}

func TestIssueTicketInvalidPriority(t *testing.T) {
	h := NewHandler(fakeStore{}, Options{})

	payload := map[string]string{
		"request_id":     "11111111-1111-1111-1111-111111111111",
		"tramite_id":     "22222222-2222-2222-2222-222222222222",
		"priority_class": "vip",
	}
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, "/api/tickets", bytes.NewReader(body))
	resp := httptest.NewRecorder()

	h.Routes().ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
}

func TestIssueTicketUnknownTramite(t *testing.T) {
	st := fakeStore{
		issueFn: func(ctx context.Context, input store.IssueTicketInput) (models.Ticket, bool, error) {
			return models.Ticket{}, false, store.ErrTramiteNotFound
		},
	}
	h := NewHandler(st, Options{})

	payload := map[string]string{
		"request_id": "11111111-1111-1111-1111-111111111111",
		"tramite_id": "22222222-2222-2222-2222-222222222222",
	}
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, "/api/tickets", bytes.NewReader(body))
	resp := httptest.NewRecorder()

	h.Routes().ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", resp.Code)
	}
	var errResp errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if errResp.Error.Code != "tramite_not_found" {
		t.Fatalf("expected tramite_not_found, got %s", errResp.Error.Code)
	}
}

func TestCallNextSuccess(t *testing.T) {
	calledAt := time.Date(2026, 3, 9, 8, 1, 0, 0, time.UTC)
	stationID := "55555555-5555-5555-5555-555555555555"
	st := fakeStore{
		callFn: func(ctx context.Context, input store.CallNextInput) (models.Ticket, bool, error) {
			return models.Ticket{
				TicketID:        "ticket-2",
				DisplayCode:     "P-002",
				Status:          models.StatusInService,
				RequestID:       input.RequestID,
				StationID:       &input.StationID,
				CalledAt:        &calledAt,
				LastAnnouncedAt: &calledAt,
			}, true, nil
		},
	}

	h := NewHandler(st, Options{})
	payload := map[string]string{
		"request_id": "11111111-1111-1111-1111-111111111111",
		"station_id": stationID,
	}
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, "/api/tickets/actions/call-next", bytes.NewReader(body))
	resp := httptest.NewRecorder()

	h.Routes().ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
}

func TestCallNextEmptyQueue(t *testing.T) {
	st := fakeStore{
		callFn: func(ctx context.Context, input store.CallNextInput) (models.Ticket, bool, error) {
			return models.Ticket{}, false, store.ErrEmptyQueue
		},
	}

	h := NewHandler(st, Options{})
	payload := map[string]string{
		"request_id": "11111111-1111-1111-1111-111111111111",
		"station_id": "55555555-5555-5555-5555-555555555555",
	}
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, "/api/tickets/actions/call-next", bytes.NewReader(body))
	resp := httptest.NewRecorder()

	h.Routes().ServeHTTP(resp, req)

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", resp.Code)
	}
	var errResp errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if errResp.Error.Code != "queue_empty" {
		t.Fatalf("expected queue_empty, got %s", errResp.Error.Code)
	}
}

func TestCallNextStationBusy(t *testing.T) {
	st := fakeStore{
		callFn: func(ctx context.Context, input store.CallNextInput) (models.Ticket, bool, error) {
			return models.Ticket{}, false, store.ErrStationBusy
		},
	}

	h := NewHandler(st, Options{})
	payload := map[string]string{
		"request_id": "11111111-1111-1111-1111-111111111111",
		"station_id": "55555555-5555-5555-5555-555555555555",
	}
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, "/api/tickets/actions/call-next", bytes.NewReader(body))
	resp := httptest.NewRecorder()

	h.Routes().ServeHTTP(resp, req)

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", resp.Code)
	}
}

func TestFinalizeInvalidTransition(t *testing.T) {
	st := fakeStore{
		finalizeFn: func(ctx context.Context, input store.TicketActionInput) (models.Ticket, bool, error) {
			return models.Ticket{}, false, store.ErrInvalidTransition
		},
	}

	h := NewHandler(st, Options{})
	payload := map[string]string{
		"request_id": "11111111-1111-1111-1111-111111111111",
	}
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, "/api/tickets/aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa/actions/finalize", bytes.NewReader(body))
	resp := httptest.NewRecorder()

	h.Routes().ServeHTTP(resp, req)

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", resp.Code)
	}
	var errResp errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if errResp.Error.Code != "invalid_transition" {
		t.Fatalf("expected invalid_transition, got %s", errResp.Error.Code)
	}
}

func TestRepeatRequiresStation(t *testing.T) {
	h := NewHandler(fakeStore{}, Options{})
	payload := map[string]string{
		"request_id": "11111111-1111-1111-1111-111111111111",
	}
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, "/api/tickets/aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa/actions/repeat", bytes.NewReader(body))
	resp := httptest.NewRecorder()

	h.Routes().ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
}

func TestCancelSuccess(t *testing.T) {
	finishedAt := time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC)
	st := fakeStore{
		cancelFn: func(ctx context.Context, input store.TicketActionInput) (models.Ticket, bool, error) {
			return models.Ticket{
				TicketID:    input.TicketID,
				DisplayCode: "N-004",
				Status:      models.StatusCancelled,
				RequestID:   input.RequestID,
				FinishedAt:  &finishedAt,
			}, true, nil
		},
	}

	h := NewHandler(st, Options{})
	payload := map[string]string{
		"request_id": "11111111-1111-1111-1111-111111111111",
	}
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, "/api/tickets/aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa/actions/cancel", bytes.NewReader(body))
	resp := httptest.NewRecorder()

	h.Routes().ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
}

func TestActiveTicketNoContent(t *testing.T) {
	st := fakeStore{
		activeFn: func(ctx context.Context, stationID string) (models.Ticket, bool, error) {
			return models.Ticket{}, false, nil
		},
	}

	h := NewHandler(st, Options{})
	req := httptest.NewRequest(http.MethodGet, "/api/tickets/active?station_id=55555555-5555-5555-5555-555555555555", nil)
	resp := httptest.NewRecorder()

	h.Routes().ServeHTTP(resp, req)

	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", resp.Code)
	}
}

func TestActiveTicketMissingStation(t *testing.T) {
	h := NewHandler(fakeStore{}, Options{})
	req := httptest.NewRequest(http.MethodGet, "/api/tickets/active", nil)
	resp := httptest.NewRecorder()

	h.Routes().ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
}

func TestMonitorStateUsesDayStart(t *testing.T) {
	loc := time.UTC
	now := time.Date(2026, 3, 9, 14, 30, 0, 0, loc)
	var gotDayStart time.Time
	st := fakeStore{
		monitorFn: func(ctx context.Context, dayStart time.Time, historyLimit int) (store.MonitorState, error) {
			gotDayStart = dayStart
			return store.MonitorState{}, nil
		},
	}

	h := NewHandler(st, Options{Location: loc, Now: func() time.Time { return now }})
	req := httptest.NewRequest(http.MethodGet, "/api/monitor", nil)
	resp := httptest.NewRecorder()

	h.Routes().ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	want := time.Date(2026, 3, 9, 0, 0, 0, 0, loc)
	if !gotDayStart.Equal(want) {
		t.Fatalf("expected day start %v, got %v", want, gotDayStart)
	}

	var state store.MonitorState
	if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if state.History == nil {
		t.Fatal("expected empty history slice, got null")
	}
}

func TestQueueListSuccess(t *testing.T) {
	st := fakeStore{
		listQueueFn: func(ctx context.Context, dayStart time.Time) ([]models.Ticket, error) {
			return []models.Ticket{{TicketID: "ticket-1", Status: models.StatusQueued}}, nil
		},
	}

	h := NewHandler(st, Options{})
	req := httptest.NewRequest(http.MethodGet, "/api/tickets/queue", nil)
	resp := httptest.NewRecorder()

	h.Routes().ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
}

func TestQueueListSortedByPolicy(t *testing.T) {
	base := time.Date(2026, 3, 9, 8, 0, 0, 0, time.UTC)
	st := fakeStore{
		listQueueFn: func(ctx context.Context, dayStart time.Time) ([]models.Ticket, error) {
			return []models.Ticket{
				{TicketID: "n1", DisplayCode: "N-001", PriorityClass: models.PriorityNormal, Status: models.StatusQueued, CreatedAt: base},
				{TicketID: "p1", DisplayCode: "P-001", PriorityClass: models.PriorityPreferential, Status: models.StatusQueued, CreatedAt: base.Add(time.Minute)},
			}, nil
		},
	}

	h := NewHandler(st, Options{})
	req := httptest.NewRequest(http.MethodGet, "/api/tickets/queue", nil)
	resp := httptest.NewRecorder()

	h.Routes().ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	var tickets []models.Ticket
	if err := json.NewDecoder(resp.Body).Decode(&tickets); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(tickets) != 2 || tickets[0].DisplayCode != "P-001" {
		t.Fatalf("expected preferential first, got %+v", tickets)
	}
}

func TestTicketEventsReportsChainStatus(t *testing.T) {
	payload := []byte(`{"ticket_id":"t1","status":"queued"}`)
	createdAt := time.Date(2026, 3, 9, 8, 0, 0, 0, time.UTC)
	event := store.TicketEvent{
		TicketID:  "t1",
		TicketSeq: 1,
		Type:      store.EventTicketIssued,
		Payload:   payload,
		CreatedAt: createdAt,
	}
	event.Hash = store.ComputeTicketEventHash("", "t1", store.EventTicketIssued, payload, createdAt, 1)
	st := fakeStore{
		ticketEventsFn: func(ctx context.Context, ticketID string) ([]store.TicketEvent, error) {
			return []store.TicketEvent{event}, nil
		},
	}

	h := NewHandler(st, Options{})
	req := httptest.NewRequest(http.MethodGet, "/api/tickets/aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa/events", nil)
	resp := httptest.NewRecorder()

	h.Routes().ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	var body struct {
		Events  []store.TicketEvent `json:"events"`
		ChainOK bool                `json:"chain_ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !body.ChainOK {
		t.Fatal("expected intact chain")
	}
	if len(body.Events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(body.Events))
	}
}

func TestEventsInvalidAfter(t *testing.T) {
	h := NewHandler(fakeStore{}, Options{})
	req := httptest.NewRequest(http.MethodGet, "/api/events?after=yesterday", nil)
	resp := httptest.NewRecorder()

	h.Routes().ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
}

func TestUnknownActionNotFound(t *testing.T) {
	h := NewHandler(fakeStore{}, Options{})
	payload := map[string]string{
		"request_id": "11111111-1111-1111-1111-111111111111",
	}
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, "/api/tickets/aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa/actions/hold", bytes.NewReader(body))
	resp := httptest.NewRecorder()

	h.Routes().ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", resp.Code)
	}
}
