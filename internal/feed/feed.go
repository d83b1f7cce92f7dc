package feed

import (
	"context"
	"encoding/json"
	"log"
	"sync/atomic"
	"time"

	"github.com/Gabyy47/Marina-Mercante-sub000/internal/hub"
	"github.com/Gabyy47/Marina-Mercante-sub000/internal/store"
)

// Source is the slice of the ticket store the poller reads from.
type Source interface {
	ListOutboxEvents(ctx context.Context, after time.Time, limit int) ([]store.OutboxEvent, error)
}

type Envelope struct {
	EventID   string          `json:"event_id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

type Poller struct {
	source    Source
	hub       *hub.Hub
	interval  time.Duration
	batchSize int

	running   int32
	lastSeen  time.Time
	lastID    string
	published int64
}

type Options struct {
	Interval  time.Duration
	BatchSize int
	// Since bounds the first poll; zero starts from the Unix epoch.
	Since time.Time
}

func NewPoller(source Source, h *hub.Hub, options Options) *Poller {
	interval := options.Interval
	if interval <= 0 {
		interval = time.Second
	}
	batch := options.BatchSize
	if batch <= 0 {
		batch = 100
	}
	since := options.Since
	if since.IsZero() {
		since = time.Unix(0, 0).UTC()
	}
	return &Poller{
		source:    source,
		hub:       h,
		interval:  interval,
		batchSize: batch,
		lastSeen:  since,
	}
}

// Run polls until ctx is cancelled. One poll at a time even if a
// tick fires while the previous poll is still in flight.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !atomic.CompareAndSwapInt32(&p.running, 0, 1) {
				continue
			}
			if err := p.Poll(ctx); err != nil && ctx.Err() == nil {
				log.Printf("feed poll error: %v", err)
			}
			atomic.StoreInt32(&p.running, 0)
		}
	}
}

// Poll reads one batch of outbox events and broadcasts them.
func (p *Poller) Poll(ctx context.Context) error {
	pollCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	events, err := p.source.ListOutboxEvents(pollCtx, p.lastSeen, p.batchSize)
	if err != nil {
		return err
	}
	for _, event := range events {
		if event.EventID == p.lastID {
			continue
		}
		p.lastSeen = event.CreatedAt
		p.lastID = event.EventID

		env := Envelope{
			EventID:   event.EventID,
			Type:      event.Type,
			Payload:   event.Payload,
			CreatedAt: event.CreatedAt,
		}
		payload, err := json.Marshal(env)
		if err != nil {
			log.Printf("feed marshal event %s: %v", event.EventID, err)
			continue
		}
		meta := extractMeta(event.Payload)
		meta.EventType = event.Type
		p.hub.Broadcast(payload, meta)
		atomic.AddInt64(&p.published, 1)
	}
	return nil
}

// Published reports how many events have been broadcast so far.
func (p *Poller) Published() int64 {
	return atomic.LoadInt64(&p.published)
}

func extractMeta(payload []byte) hub.Subscription {
	var data struct {
		StationID string `json:"station_id"`
	}
	if err := json.Unmarshal(payload, &data); err != nil {
		return hub.Subscription{}
	}
	return hub.Subscription{StationID: data.StationID}
}
