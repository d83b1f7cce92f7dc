package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Gabyy47/Marina-Mercante-sub000/internal/client"
	"github.com/Gabyy47/Marina-Mercante-sub000/internal/config"
	"github.com/Gabyy47/Marina-Mercante-sub000/internal/monitor"
	"github.com/Gabyy47/Marina-Mercante-sub000/internal/store"
	"github.com/Gabyy47/Marina-Mercante-sub000/internal/telemetry"
)

func main() {
	cfg := config.Load()
	location := cfg.Location()

	shutdownTelemetry := telemetry.Setup("turnero-monitor")
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTelemetry(ctx)
	}()

	api := client.New(cfg.APIBaseURL, client.Options{})
	m := monitor.New(api, monitor.LogAnnouncer{}, monitor.Options{
		PollInterval: cfg.MonitorPollInterval,
		Location:     location,
		OnUpdate:     render,
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		<-stop
		cancel()
	}()

	log.Printf("turnero-monitor polling %s", cfg.APIBaseURL)
	m.Run(ctx)
}

func render(state store.MonitorState) {
	var b strings.Builder
	if state.Current != nil {
		station := ""
		if state.Current.StationID != nil {
			station = *state.Current.StationID
		}
		fmt.Fprintf(&b, "AHORA: %s -> %s", state.Current.DisplayCode, station)
	} else {
		b.WriteString("AHORA: -")
	}
	if len(state.History) > 0 {
		codes := make([]string, 0, len(state.History))
		for _, ticket := range state.History {
			codes = append(codes, ticket.DisplayCode)
		}
		fmt.Fprintf(&b, " | ULTIMOS: %s", strings.Join(codes, " "))
	}
	log.Print(b.String())
}
