package store

import "errors"

var (
	ErrEmptyQueue        = errors.New("no ticket available")
	ErrInvalidTransition = errors.New("invalid ticket transition")
	ErrTicketNotFound    = errors.New("ticket not found")
	ErrTramiteNotFound   = errors.New("tramite not found")
	ErrStationNotFound   = errors.New("station not found")
	ErrStationBusy       = errors.New("station already serving a ticket")
	ErrStationMismatch   = errors.New("ticket assigned to a different station")
)
