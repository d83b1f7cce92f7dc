package main

import (
	"context"
	"expvar"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gabyy47/Marina-Mercante-sub000/internal/config"
	"github.com/Gabyy47/Marina-Mercante-sub000/internal/feed"
	"github.com/Gabyy47/Marina-Mercante-sub000/internal/httpapi"
	"github.com/Gabyy47/Marina-Mercante-sub000/internal/hub"
	"github.com/Gabyy47/Marina-Mercante-sub000/internal/store/postgres"
	"github.com/Gabyy47/Marina-Mercante-sub000/internal/telemetry"

	"github.com/google/uuid"
	"github.com/igm/sockjs-go/sockjs"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	cfg := config.Load()
	location := cfg.Location()

	shutdownTelemetry := telemetry.Setup("turnero")
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTelemetry(ctx)
	}()

	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer pool.Close()

	ticketStore := postgres.NewStore(pool, postgres.Options{Location: location})
	handler := httpapi.NewHandler(ticketStore, httpapi.Options{
		Location:     location,
		HistoryLimit: cfg.HistoryLimit,
	})
	limiter := httpapi.NewRateLimiter(httpapi.RateLimitConfig{
		IPPerMinute:      cfg.RateLimitPerMinute,
		IPBurst:          cfg.RateLimitBurst,
		StationPerMinute: cfg.StationRateLimitPerMinute,
		StationBurst:     cfg.StationRateLimitBurst,
	})

	h := hub.New()

	mux := http.NewServeMux()
	mux.Handle("/metrics", expvar.Handler())
	mux.Handle("/", handler.Routes())
	mux.Handle("/realtime/", newRealtimeHandler(h))

	otelHandler := otelhttp.NewHandler(httpapi.LoggingMiddleware(limiter.Middleware(mux)), "turnero")
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      otelHandler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	pollCtx, cancelPoll := context.WithCancel(context.Background())
	defer cancelPoll()
	poller := feed.NewPoller(ticketStore, h, feed.Options{
		Interval:  cfg.FeedPollInterval,
		BatchSize: cfg.FeedBatchSize,
	})
	go poller.Run(pollCtx)

	go func() {
		log.Printf("turnero listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	cancelPoll()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

func newRealtimeHandler(h *hub.Hub) http.Handler {
	return sockjs.NewHandler("/realtime", sockjs.DefaultOptions, func(session sockjs.Session) {
		client := &hub.Client{ID: uuid.NewString(), Send: make(chan []byte, 16)}
		h.Register(client)
		defer h.Unregister(client)

		go func() {
			for msg := range client.Send {
				_ = session.Send(string(msg))
			}
		}()

		for {
			msg, err := session.Recv()
			if err != nil {
				return
			}
			parsed, ok := hub.ParseSubscribe([]byte(msg))
			if !ok {
				continue
			}
			if parsed.Action == "unsubscribe" {
				h.UpdateSubscription(client, hub.Subscription{})
				continue
			}
			h.UpdateSubscription(client, hub.Subscription{
				StationID: parsed.StationID,
				EventType: parsed.EventType,
			})
		}
	})
}
