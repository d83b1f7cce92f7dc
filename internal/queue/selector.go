// Package queue implements the call-next selection policy: preferential
// tickets before normal ones, FIFO within a class. The policy is pure so it
// can be exercised without persistence; the postgres store applies the same
// ordering in SQL.
package queue

import (
	"sort"

	"github.com/Gabyy47/Marina-Mercante-sub000/internal/models"
)

// Next returns the ticket to call from the given queued set, or false when
// the set holds no queued ticket. Tickets in other states are ignored.
func Next(tickets []models.Ticket) (models.Ticket, bool) {
	var best models.Ticket
	found := false
	for _, ticket := range tickets {
		if ticket.Status != models.StatusQueued {
			continue
		}
		if !found || Less(ticket, best) {
			best = ticket
			found = true
		}
	}
	return best, found
}

// Sort orders tickets by call policy. Used by read-side consumers when the
// store does not guarantee policy order.
func Sort(tickets []models.Ticket) {
	sort.SliceStable(tickets, func(i, j int) bool {
		return Less(tickets[i], tickets[j])
	})
}

// Less reports whether a should be called before b. Priority class wins,
// then creation time; identical timestamps break on the daily sequence and
// finally the display code, so the order is total and deterministic.
func Less(a, b models.Ticket) bool {
	if a.PriorityClass != b.PriorityClass {
		return a.PriorityClass == models.PriorityPreferential
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	if a.DailySeq != b.DailySeq {
		return a.DailySeq < b.DailySeq
	}
	return a.DisplayCode < b.DisplayCode
}
