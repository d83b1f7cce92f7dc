package kiosk

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/Gabyy47/Marina-Mercante-sub000/internal/models"

	"github.com/google/uuid"
)

var ErrInvalidPriority = errors.New("kiosk: invalid priority class")

// Issuer is the slice of the API client the kiosk needs.
type Issuer interface {
	IssueTicket(ctx context.Context, requestID, tramiteID, priorityClass, note string) (models.Ticket, error)
}

type Kiosk struct {
	issuer     Issuer
	printer    Printer
	resetDelay time.Duration
	onReset    func()
	newRequest func() string
}

type Options struct {
	// ResetDelay bounds how long the kiosk waits for the printer
	// before returning to the idle screen anyway.
	ResetDelay time.Duration
	OnReset    func()
	// NewRequestID overrides request ID generation in tests.
	NewRequestID func() string
}

func New(issuer Issuer, printer Printer, options Options) *Kiosk {
	delay := options.ResetDelay
	if delay <= 0 {
		delay = 10 * time.Second
	}
	onReset := options.OnReset
	if onReset == nil {
		onReset = func() {}
	}
	newRequest := options.NewRequestID
	if newRequest == nil {
		newRequest = uuid.NewString
	}
	return &Kiosk{
		issuer:     issuer,
		printer:    printer,
		resetDelay: delay,
		onReset:    onReset,
		newRequest: newRequest,
	}
}

// Issue requests a new ticket with a fresh request ID, hands it to the
// printer, and arms the idle reset. The reset fires exactly once, on
// print completion or on the fallback timer, whichever comes first.
func (k *Kiosk) Issue(ctx context.Context, tramiteID, priorityClass, note string) (models.Ticket, error) {
	switch priorityClass {
	case "":
		priorityClass = models.PriorityNormal
	case models.PriorityNormal, models.PriorityPreferential:
	default:
		return models.Ticket{}, ErrInvalidPriority
	}

	requestID := k.newRequest()
	ticket, err := k.issuer.IssueTicket(ctx, requestID, tramiteID, priorityClass, note)
	if err != nil {
		k.onReset()
		return models.Ticket{}, err
	}

	var once sync.Once
	reset := func() {
		once.Do(k.onReset)
	}
	timer := time.AfterFunc(k.resetDelay, reset)

	go func() {
		defer timer.Stop()
		printCtx, cancel := context.WithTimeout(context.Background(), k.resetDelay)
		defer cancel()
		if err := k.printer.Print(printCtx, ticket); err != nil {
			log.Printf("print ticket %s: %v", ticket.DisplayCode, err)
		}
		reset()
	}()

	return ticket, nil
}
