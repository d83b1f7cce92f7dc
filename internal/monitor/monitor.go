package monitor

import (
	"context"
	"log"
	"time"

	"github.com/Gabyy47/Marina-Mercante-sub000/internal/models"
	"github.com/Gabyy47/Marina-Mercante-sub000/internal/store"
)

// Source is the slice of the API client the monitor polls.
type Source interface {
	MonitorState(ctx context.Context) (store.MonitorState, error)
}

// Announcer plays the call announcement for a ticket. The monitor
// guarantees it fires once per announcement, keyed by display code
// and announcement time, so a repeat from the agent panel announces
// again while plain polling does not.
type Announcer interface {
	Announce(ctx context.Context, ticket models.Ticket) error
}

type LogAnnouncer struct{}

func (LogAnnouncer) Announce(ctx context.Context, ticket models.Ticket) error {
	station := ""
	if ticket.StationID != nil {
		station = *ticket.StationID
	}
	log.Printf("announce code=%s station=%s", ticket.DisplayCode, station)
	return nil
}

type NoopAnnouncer struct{}

func (NoopAnnouncer) Announce(ctx context.Context, ticket models.Ticket) error {
	return nil
}

type announceKey struct {
	displayCode string
	announcedAt time.Time
}

const seenLimit = 5

type Monitor struct {
	source    Source
	announcer Announcer
	interval  time.Duration
	location  *time.Location
	now       func() time.Time
	onUpdate  func(store.MonitorState)

	seen    []announceKey
	lastDay time.Time
}

type Options struct {
	PollInterval time.Duration
	Location     *time.Location
	Now          func() time.Time
	OnUpdate     func(store.MonitorState)
}

func New(source Source, announcer Announcer, options Options) *Monitor {
	interval := options.PollInterval
	if interval <= 0 {
		interval = 900 * time.Millisecond
	}
	loc := options.Location
	if loc == nil {
		loc = time.UTC
	}
	now := options.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	onUpdate := options.OnUpdate
	if onUpdate == nil {
		onUpdate = func(store.MonitorState) {}
	}
	return &Monitor{
		source:    source,
		announcer: announcer,
		interval:  interval,
		location:  loc,
		now:       now,
		onUpdate:  onUpdate,
	}
}

// Run polls until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	m.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Tick(ctx)
		}
	}
}

// Tick fetches the monitor state, announces any new call, and pushes
// the state to the display. Crossing midnight clears the dedup
// history so the new day's codes announce fresh.
func (m *Monitor) Tick(ctx context.Context) {
	day := m.dayOf(m.now())
	if !day.Equal(m.lastDay) {
		m.seen = nil
		m.lastDay = day
	}

	state, err := m.source.MonitorState(ctx)
	if err != nil {
		log.Printf("monitor poll: %v", err)
		return
	}

	if state.Current != nil && state.Current.LastAnnouncedAt != nil {
		key := announceKey{
			displayCode: state.Current.DisplayCode,
			announcedAt: state.Current.LastAnnouncedAt.UTC(),
		}
		if !m.hasSeen(key) {
			if err := m.announcer.Announce(ctx, *state.Current); err != nil {
				log.Printf("announce %s: %v", state.Current.DisplayCode, err)
			}
			m.remember(key)
		}
	}

	m.onUpdate(state)
}

func (m *Monitor) hasSeen(key announceKey) bool {
	for _, item := range m.seen {
		if item.displayCode == key.displayCode && item.announcedAt.Equal(key.announcedAt) {
			return true
		}
	}
	return false
}

func (m *Monitor) remember(key announceKey) {
	m.seen = append(m.seen, key)
	if len(m.seen) > seenLimit {
		m.seen = m.seen[len(m.seen)-seenLimit:]
	}
}

func (m *Monitor) dayOf(t time.Time) time.Time {
	local := t.In(m.location)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, m.location)
}
