package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Gabyy47/Marina-Mercante-sub000/internal/models"
)

type IssueTicketInput struct {
	RequestID     string
	PriorityClass string
	TramiteID     string
	Note          string
	CreatedAt     time.Time
}

type CallNextInput struct {
	RequestID string
	StationID string
	CalledAt  time.Time
	// DayStart bounds the candidate set to tickets issued on the current
	// local day; zero means "derive it from CalledAt".
	DayStart time.Time
}

type TicketActionInput struct {
	RequestID  string
	TicketID   string
	StationID  string
	OccurredAt time.Time
}

// MonitorState is the combined read the TV display polls: the most recently
// announced ticket plus a bounded recent-call history for the current day.
type MonitorState struct {
	Current *models.Ticket  `json:"current"`
	History []models.Ticket `json:"history"`
}

type TicketStore interface {
	IssueTicket(ctx context.Context, input IssueTicketInput) (models.Ticket, bool, error)
	GetTicket(ctx context.Context, ticketID string) (models.Ticket, bool, error)
	ListQueue(ctx context.Context, dayStart time.Time) ([]models.Ticket, error)
	CallNext(ctx context.Context, input CallNextInput) (models.Ticket, bool, error)
	RepeatCall(ctx context.Context, input TicketActionInput) (models.Ticket, bool, error)
	FinalizeTicket(ctx context.Context, input TicketActionInput) (models.Ticket, bool, error)
	CancelTicket(ctx context.Context, input TicketActionInput) (models.Ticket, bool, error)
	GetActiveTicket(ctx context.Context, stationID string) (models.Ticket, bool, error)
	MonitorState(ctx context.Context, dayStart time.Time, historyLimit int) (MonitorState, error)
	ListStations(ctx context.Context) ([]models.Station, error)
	ListTramites(ctx context.Context) ([]models.Tramite, error)
	ListOutboxEvents(ctx context.Context, after time.Time, limit int) ([]OutboxEvent, error)
	ListTicketEvents(ctx context.Context, ticketID string) ([]TicketEvent, error)
}

type OutboxEvent struct {
	EventID   string          `json:"event_id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

const (
	EventTicketIssued    = "ticket.issued"
	EventTicketCalled    = "ticket.called"
	EventTicketFinalized = "ticket.finalized"
	EventTicketCancelled = "ticket.cancelled"
)
