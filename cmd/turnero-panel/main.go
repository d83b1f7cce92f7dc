package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gabyy47/Marina-Mercante-sub000/internal/client"
	"github.com/Gabyy47/Marina-Mercante-sub000/internal/config"
	"github.com/Gabyy47/Marina-Mercante-sub000/internal/panel"
	"github.com/Gabyy47/Marina-Mercante-sub000/internal/telemetry"
)

func main() {
	cfg := config.Load()
	if cfg.StationID == "" {
		log.Fatal("STATION_ID is required")
	}

	shutdownTelemetry := telemetry.Setup("turnero-panel")
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTelemetry(ctx)
	}()

	api := client.New(cfg.APIBaseURL, client.Options{})
	p := panel.New(api, cfg.StationID, panel.Options{
		PollInterval: cfg.PanelPollInterval,
		OnUpdate:     render,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		<-stop
		cancel()
	}()

	go p.Run(ctx)

	log.Printf("turnero-panel station %s, keys: n=llamar r=repetir f=finalizar c=cancelar", cfg.StationID)
	reader := bufio.NewReader(os.Stdin)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		for _, key := range line {
			if key == '\n' || key == '\r' {
				continue
			}
			p.HandleKey(ctx, key)
		}
	}
}

func render(state panel.State) {
	current := "-"
	if state.Current != nil {
		current = state.Current.DisplayCode
	}
	line := fmt.Sprintf("atendiendo=%s en_cola=%d", current, state.QueueLength)
	if state.Notice != "" {
		line += " aviso=" + state.Notice
	}
	log.Print(line)
}
