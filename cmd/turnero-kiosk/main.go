package main

import (
	"bufio"
	"context"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Gabyy47/Marina-Mercante-sub000/internal/client"
	"github.com/Gabyy47/Marina-Mercante-sub000/internal/config"
	"github.com/Gabyy47/Marina-Mercante-sub000/internal/kiosk"
	"github.com/Gabyy47/Marina-Mercante-sub000/internal/models"
	"github.com/Gabyy47/Marina-Mercante-sub000/internal/telemetry"
)

func main() {
	cfg := config.Load()

	shutdownTelemetry := telemetry.Setup("turnero-kiosk")
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTelemetry(ctx)
	}()

	api := client.New(cfg.APIBaseURL, client.Options{})
	printer := kiosk.NewPrinter(cfg.PrinterKind)

	idle := make(chan struct{}, 1)
	k := kiosk.New(api, printer, kiosk.Options{
		ResetDelay: cfg.KioskResetDelay,
		OnReset: func() {
			select {
			case idle <- struct{}{}:
			default:
			}
		},
	})

	ctx := context.Background()
	tramites, err := api.Tramites(ctx)
	if err != nil {
		log.Fatalf("load tramites: %v", err)
	}
	if len(tramites) == 0 {
		log.Fatal("no active tramites")
	}

	reader := bufio.NewReader(os.Stdin)
	for {
		showMenu(tramites)
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		choice := strings.TrimSpace(line)
		index, err := strconv.Atoi(choice)
		if err != nil || index < 1 || index > len(tramites) {
			log.Printf("opcion invalida: %s", choice)
			continue
		}
		tramite := tramites[index-1]

		priority := models.PriorityNormal
		log.Print("atencion preferencial? [s/N]")
		answer, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		if strings.EqualFold(strings.TrimSpace(answer), "s") {
			priority = models.PriorityPreferential
		}

		select {
		case <-idle:
		default:
		}

		ticket, err := k.Issue(ctx, tramite.TramiteID, priority, "")
		if err != nil {
			log.Printf("no se pudo emitir el turno: %v", err)
			continue
		}
		log.Printf("turno emitido: %s (%s)", ticket.DisplayCode, tramite.Name)
		<-idle
	}
}

func showMenu(tramites []models.Tramite) {
	log.Print("seleccione un tramite:")
	for i, tramite := range tramites {
		log.Printf("  %d. %s", i+1, tramite.Name)
	}
}
