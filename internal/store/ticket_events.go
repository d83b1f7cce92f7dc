package store

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Gabyy47/Marina-Mercante-sub000/internal/models"
)

// TicketEvent is one entry of the per-ticket audit log. Events form a hash
// chain so the lifecycle of a ticket can be verified after the fact.
type TicketEvent struct {
	TicketID  string          `json:"ticket_id"`
	TicketSeq int             `json:"ticket_seq"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
	PrevHash  string          `json:"prev_hash"`
	Hash      string          `json:"hash"`
}

type eventPayload struct {
	TicketID        string     `json:"ticket_id"`
	DisplayCode     string     `json:"display_code"`
	PriorityClass   string     `json:"priority_class"`
	TramiteID       string     `json:"tramite_id"`
	Status          string     `json:"status"`
	DailySeq        int        `json:"daily_seq"`
	CreatedAt       *time.Time `json:"created_at"`
	CalledAt        *time.Time `json:"called_at"`
	LastAnnouncedAt *time.Time `json:"last_announced_at"`
	FinishedAt      *time.Time `json:"finished_at"`
	StationID       *string    `json:"station_id"`
}

func ComputeTicketEventHash(prevHash, ticketID, eventType string, payload json.RawMessage, createdAt time.Time, seq int) string {
	raw := fmt.Sprintf("%s|%s|%s|%s|%d|%s", prevHash, ticketID, eventType, createdAt.UTC().Format(time.RFC3339Nano), seq, payload)
	sum := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%x", sum)
}

// VerifyTicketEvents recomputes the hash chain and reports the first broken
// link, if any.
func VerifyTicketEvents(events []TicketEvent) error {
	prev := ""
	for i, event := range events {
		if event.PrevHash != prev {
			return fmt.Errorf("event %d: prev_hash mismatch", i)
		}
		want := ComputeTicketEventHash(event.PrevHash, event.TicketID, event.Type, event.Payload, event.CreatedAt, event.TicketSeq)
		if event.Hash != want {
			return fmt.Errorf("event %d: hash mismatch", i)
		}
		prev = event.Hash
	}
	return nil
}

// RehydrateTicket folds an ordered event log back into a ticket snapshot.
// Each event must describe a transition the state machine allows from the
// status accumulated so far.
func RehydrateTicket(events []TicketEvent) (models.Ticket, error) {
	var ticket models.Ticket
	for i, event := range events {
		if action, ok := actionForEvent(event.Type, ticket.Status); ok {
			if !ValidTransition(action, ticket.Status) {
				return models.Ticket{}, fmt.Errorf("event %d: %s not allowed from status %q", i, event.Type, ticket.Status)
			}
		}
		if len(event.Payload) == 0 {
			continue
		}
		var payload eventPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return models.Ticket{}, err
		}
		if payload.TicketID != "" {
			ticket.TicketID = payload.TicketID
		}
		if payload.DisplayCode != "" {
			ticket.DisplayCode = payload.DisplayCode
		}
		if payload.PriorityClass != "" {
			ticket.PriorityClass = payload.PriorityClass
		}
		if payload.TramiteID != "" {
			ticket.TramiteID = payload.TramiteID
		}
		if payload.Status != "" {
			ticket.Status = payload.Status
		}
		if payload.DailySeq != 0 {
			ticket.DailySeq = payload.DailySeq
		}
		if payload.CreatedAt != nil {
			ticket.CreatedAt = *payload.CreatedAt
		}
		if payload.CalledAt != nil {
			ticket.CalledAt = payload.CalledAt
		}
		if payload.LastAnnouncedAt != nil {
			ticket.LastAnnouncedAt = payload.LastAnnouncedAt
		}
		if payload.FinishedAt != nil {
			ticket.FinishedAt = payload.FinishedAt
		}
		if payload.StationID != nil {
			ticket.StationID = payload.StationID
		}
	}
	return ticket, nil
}

func actionForEvent(eventType, currentStatus string) (string, bool) {
	switch eventType {
	case EventTicketCalled:
		if currentStatus == models.StatusInService {
			return "repeat", true
		}
		return "call_next", true
	case EventTicketFinalized:
		return "finalize", true
	case EventTicketCancelled:
		return "cancel", true
	default:
		return "", false
	}
}
