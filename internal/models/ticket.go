package models

import "time"

type Ticket struct {
	TicketID        string     `json:"ticket_id"`
	DisplayCode     string     `json:"display_code"`
	PriorityClass   string     `json:"priority_class"`
	TramiteID       string     `json:"tramite_id"`
	Note            string     `json:"note,omitempty"`
	Status          string     `json:"status"`
	DailySeq        int        `json:"daily_seq"`
	CreatedAt       time.Time  `json:"created_at"`
	RequestID       string     `json:"request_id,omitempty"`
	StationID       *string    `json:"station_id,omitempty"`
	CalledAt        *time.Time `json:"called_at,omitempty"`
	LastAnnouncedAt *time.Time `json:"last_announced_at,omitempty"`
	FinishedAt      *time.Time `json:"finished_at,omitempty"`
}

const (
	StatusQueued    = "queued"
	StatusInService = "in_service"
	StatusFinished  = "finished"
	StatusCancelled = "cancelled"
)

const (
	PriorityNormal       = "normal"
	PriorityPreferential = "preferential"
)

// CodePrefix returns the display-code prefix for a priority class.
func CodePrefix(priorityClass string) string {
	if priorityClass == PriorityPreferential {
		return "P"
	}
	return "N"
}
