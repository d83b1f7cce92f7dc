package kiosk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/Gabyy47/Marina-Mercante-sub000/internal/models"
)

type Printer interface {
	Print(ctx context.Context, ticket models.Ticket) error
}

// NewPrinter selects a printer backend by kind. Unknown kinds fall
// back to the log printer so a misconfigured kiosk still issues
// tickets.
func NewPrinter(kind string) Printer {
	switch kind {
	case "", "stub", "log":
		return logPrinter{}
	case "noop":
		return noopPrinter{}
	case "fail":
		return failPrinter{}
	case "webhook":
		url := os.Getenv("KIOSK_PRINTER_WEBHOOK_URL")
		token := os.Getenv("KIOSK_PRINTER_WEBHOOK_TOKEN")
		if url == "" {
			return logPrinter{}
		}
		return webhookPrinter{url: url, token: token}
	default:
		if strings.HasPrefix(kind, "http://") || strings.HasPrefix(kind, "https://") {
			return webhookPrinter{url: kind}
		}
		return logPrinter{}
	}
}

type logPrinter struct{}

func (logPrinter) Print(ctx context.Context, ticket models.Ticket) error {
	log.Printf("print ticket code=%s priority=%s", ticket.DisplayCode, ticket.PriorityClass)
	return nil
}

type noopPrinter struct{}

func (noopPrinter) Print(ctx context.Context, ticket models.Ticket) error {
	return nil
}

type failPrinter struct{}

func (failPrinter) Print(ctx context.Context, ticket models.Ticket) error {
	return errors.New("printer failure")
}

type webhookPrinter struct {
	url   string
	token string
}

func (p webhookPrinter) Print(ctx context.Context, ticket models.Ticket) error {
	payload := map[string]string{
		"display_code":   ticket.DisplayCode,
		"priority_class": ticket.PriorityClass,
		"issued_at":      ticket.CreatedAt.Format(time.RFC3339),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return errors.New("printer rejected request")
	}
	return nil
}
