package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Gabyy47/Marina-Mercante-sub000/internal/models"
	"github.com/Gabyy47/Marina-Mercante-sub000/internal/store"
)

// TransientError marks failures worth retrying: network errors,
// timeouts, and 5xx responses. API-level rejections come back as the
// store sentinel errors instead.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient: %v", e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

type Client struct {
	baseURL string
	http    *http.Client
}

type Options struct {
	Timeout time.Duration
}

func New(baseURL string, options Options) *Client {
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

type issueRequest struct {
	RequestID     string `json:"request_id"`
	PriorityClass string `json:"priority_class,omitempty"`
	TramiteID     string `json:"tramite_id"`
	Note          string `json:"note,omitempty"`
}

func (c *Client) IssueTicket(ctx context.Context, requestID, tramiteID, priorityClass, note string) (models.Ticket, error) {
	var ticket models.Ticket
	err := c.post(ctx, "/api/tickets", issueRequest{
		RequestID:     requestID,
		PriorityClass: priorityClass,
		TramiteID:     tramiteID,
		Note:          note,
	}, &ticket)
	return ticket, err
}

type callNextRequest struct {
	RequestID string `json:"request_id"`
	StationID string `json:"station_id"`
}

func (c *Client) CallNext(ctx context.Context, requestID, stationID string) (models.Ticket, error) {
	var ticket models.Ticket
	err := c.post(ctx, "/api/tickets/actions/call-next", callNextRequest{
		RequestID: requestID,
		StationID: stationID,
	}, &ticket)
	return ticket, err
}

type actionRequest struct {
	RequestID string `json:"request_id"`
	StationID string `json:"station_id,omitempty"`
}

func (c *Client) RepeatCall(ctx context.Context, requestID, ticketID, stationID string) (models.Ticket, error) {
	var ticket models.Ticket
	err := c.post(ctx, "/api/tickets/"+ticketID+"/actions/repeat", actionRequest{
		RequestID: requestID,
		StationID: stationID,
	}, &ticket)
	return ticket, err
}

func (c *Client) FinalizeTicket(ctx context.Context, requestID, ticketID, stationID string) (models.Ticket, error) {
	var ticket models.Ticket
	err := c.post(ctx, "/api/tickets/"+ticketID+"/actions/finalize", actionRequest{
		RequestID: requestID,
		StationID: stationID,
	}, &ticket)
	return ticket, err
}

func (c *Client) CancelTicket(ctx context.Context, requestID, ticketID, stationID string) (models.Ticket, error) {
	var ticket models.Ticket
	err := c.post(ctx, "/api/tickets/"+ticketID+"/actions/cancel", actionRequest{
		RequestID: requestID,
		StationID: stationID,
	}, &ticket)
	return ticket, err
}

// ActiveTicket returns false without error when the station has no
// ticket in service.
func (c *Client) ActiveTicket(ctx context.Context, stationID string) (models.Ticket, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/api/tickets/active?station_id="+url.QueryEscape(stationID), nil)
	if err != nil {
		return models.Ticket{}, false, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return models.Ticket{}, false, &TransientError{Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNoContent {
		return models.Ticket{}, false, nil
	}
	if err := checkStatus(resp); err != nil {
		return models.Ticket{}, false, err
	}
	var ticket models.Ticket
	if err := json.NewDecoder(resp.Body).Decode(&ticket); err != nil {
		return models.Ticket{}, false, err
	}
	return ticket, true, nil
}

func (c *Client) MonitorState(ctx context.Context) (store.MonitorState, error) {
	var state store.MonitorState
	if err := c.get(ctx, "/api/monitor", &state); err != nil {
		return store.MonitorState{}, err
	}
	return state, nil
}

func (c *Client) Queue(ctx context.Context) ([]models.Ticket, error) {
	var tickets []models.Ticket
	if err := c.get(ctx, "/api/tickets/queue", &tickets); err != nil {
		return nil, err
	}
	return tickets, nil
}

func (c *Client) Tramites(ctx context.Context) ([]models.Tramite, error) {
	var tramites []models.Tramite
	if err := c.get(ctx, "/api/tramites", &tramites); err != nil {
		return nil, err
	}
	return tramites, nil
}

func (c *Client) Stations(ctx context.Context) ([]models.Station, error) {
	var stations []models.Station
	if err := c.get(ctx, "/api/stations", &stations); err != nil {
		return nil, err
	}
	return stations, nil
}

func (c *Client) post(ctx context.Context, path string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &TransientError{Err: err}
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return &TransientError{Err: err}
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return err
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type errorResponse struct {
	RequestID string `json:"request_id"`
	Error     struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode < 300 {
		return nil
	}
	if resp.StatusCode >= 500 {
		return &TransientError{Err: fmt.Errorf("server error: status %d", resp.StatusCode)}
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var errResp errorResponse
	if err := json.Unmarshal(body, &errResp); err != nil {
		return fmt.Errorf("request rejected: status %d", resp.StatusCode)
	}
	if mapped := mapCode(errResp.Error.Code); mapped != nil {
		return mapped
	}
	return fmt.Errorf("request rejected: %s (%s)", errResp.Error.Message, errResp.Error.Code)
}

func mapCode(code string) error {
	switch code {
	case "queue_empty":
		return store.ErrEmptyQueue
	case "invalid_transition":
		return store.ErrInvalidTransition
	case "ticket_not_found":
		return store.ErrTicketNotFound
	case "tramite_not_found":
		return store.ErrTramiteNotFound
	case "station_not_found":
		return store.ErrStationNotFound
	case "station_busy":
		return store.ErrStationBusy
	case "station_mismatch":
		return store.ErrStationMismatch
	default:
		return nil
	}
}
