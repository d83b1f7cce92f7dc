package panel

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Gabyy47/Marina-Mercante-sub000/internal/models"
	"github.com/Gabyy47/Marina-Mercante-sub000/internal/store"

	"github.com/google/uuid"
)

// API is the slice of the ticket client the panel drives.
type API interface {
	CallNext(ctx context.Context, requestID, stationID string) (models.Ticket, error)
	RepeatCall(ctx context.Context, requestID, ticketID, stationID string) (models.Ticket, error)
	FinalizeTicket(ctx context.Context, requestID, ticketID, stationID string) (models.Ticket, error)
	CancelTicket(ctx context.Context, requestID, ticketID, stationID string) (models.Ticket, error)
	ActiveTicket(ctx context.Context, stationID string) (models.Ticket, bool, error)
	Queue(ctx context.Context) ([]models.Ticket, error)
}

type Action string

const (
	ActionCallNext Action = "call_next"
	ActionRepeat   Action = "repeat"
	ActionFinalize Action = "finalize"
	ActionCancel   Action = "cancel"
)

// State is what the panel renders: the ticket in service at this
// station, the queue depth, and a transient notice line.
type State struct {
	Current     *models.Ticket
	QueueLength int
	Notice      string
}

type Panel struct {
	api       API
	stationID string
	interval  time.Duration
	onUpdate  func(State)

	mu      sync.Mutex
	state   State
	version uint64

	inFlight int32
}

type Options struct {
	PollInterval time.Duration
	OnUpdate     func(State)
}

func New(api API, stationID string, options Options) *Panel {
	interval := options.PollInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	onUpdate := options.OnUpdate
	if onUpdate == nil {
		onUpdate = func(State) {}
	}
	return &Panel{
		api:       api,
		stationID: stationID,
		interval:  interval,
		onUpdate:  onUpdate,
	}
}

// Run refreshes the panel until ctx is cancelled.
func (p *Panel) Run(ctx context.Context) {
	p.Refresh(ctx)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Refresh(ctx)
		}
	}
}

// Refresh polls the server for the station's active ticket and the
// queue depth. A response that raced with a local command is
// discarded: commands bump the state version, and a poll only applies
// if the version it started from is still current.
func (p *Panel) Refresh(ctx context.Context) {
	p.mu.Lock()
	startVersion := p.version
	p.mu.Unlock()

	ticket, found, err := p.api.ActiveTicket(ctx, p.stationID)
	if err != nil {
		log.Printf("panel refresh station %s: %v", p.stationID, err)
		return
	}
	queue, err := p.api.Queue(ctx)
	if err != nil {
		log.Printf("panel queue refresh: %v", err)
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.version != startVersion {
		return
	}
	if found {
		p.state.Current = &ticket
	} else {
		p.state.Current = nil
	}
	p.state.QueueLength = len(queue)
	p.notifyLocked()
}

// HandleKey maps the panel shortcuts to commands: n calls the next
// ticket, r repeats the announcement, f finalizes, c cancels.
func (p *Panel) HandleKey(ctx context.Context, key rune) {
	switch key {
	case 'n':
		p.Execute(ctx, ActionCallNext)
	case 'r':
		p.Execute(ctx, ActionRepeat)
	case 'f':
		p.Execute(ctx, ActionFinalize)
	case 'c':
		p.Execute(ctx, ActionCancel)
	}
}

// Execute runs one command against the server. A second command while
// one is still in flight is dropped rather than queued.
func (p *Panel) Execute(ctx context.Context, action Action) {
	if !atomic.CompareAndSwapInt32(&p.inFlight, 0, 1) {
		return
	}
	defer atomic.StoreInt32(&p.inFlight, 0)

	requestID := uuid.NewString()

	p.mu.Lock()
	current := p.state.Current
	p.mu.Unlock()

	var ticket models.Ticket
	var err error
	switch action {
	case ActionCallNext:
		ticket, err = p.api.CallNext(ctx, requestID, p.stationID)
	case ActionRepeat, ActionFinalize, ActionCancel:
		if current == nil {
			p.setNotice("no ticket in service")
			return
		}
		switch action {
		case ActionRepeat:
			ticket, err = p.api.RepeatCall(ctx, requestID, current.TicketID, p.stationID)
		case ActionFinalize:
			ticket, err = p.api.FinalizeTicket(ctx, requestID, current.TicketID, p.stationID)
		case ActionCancel:
			ticket, err = p.api.CancelTicket(ctx, requestID, current.TicketID, p.stationID)
		}
	default:
		return
	}

	if err != nil {
		if errors.Is(err, store.ErrEmptyQueue) {
			p.setNotice("queue is empty")
			return
		}
		p.setNotice(err.Error())
		log.Printf("panel %s station %s: %v", action, p.stationID, err)
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.version++
	p.state.Notice = ""
	switch ticket.Status {
	case models.StatusInService:
		p.state.Current = &ticket
	default:
		p.state.Current = nil
	}
	p.notifyLocked()
}

func (p *Panel) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Panel) setNotice(notice string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.version++
	p.state.Notice = notice
	p.notifyLocked()
}

func (p *Panel) notifyLocked() {
	snapshot := p.state
	p.onUpdate(snapshot)
}
