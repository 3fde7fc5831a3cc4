package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chat-backend/internal/auth"
	"chat-backend/internal/config"
	"chat-backend/internal/database"
	"chat-backend/internal/handlers"
	"chat-backend/internal/rooms"
	"chat-backend/internal/router"
	"chat-backend/internal/session"
	"chat-backend/internal/sink"
	ws "chat-backend/internal/websocket"
	"chat-backend/pkg/logger"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.Init(logger.Options{})
		bootLog.Fatal().Err(err).Msg("failed to load configuration")
	}

	log := logger.Init(logger.Options{
		Level:  cfg.Log.Level,
		Pretty: cfg.Log.Pretty,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := database.NewPostgresStore(ctx, cfg.Database.URL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer store.Close()
	log.Info().Msg("connected to database")

	// Shared chat state: registry, directory, router, processing sink.
	sessions := session.NewRegistry()
	directory := rooms.NewDirectory(sessions, log)
	sessions.OnTerminate(directory.RemoveFromAll)

	processor := sink.NewProcessor(cfg.Chat.SinkBuffer, log)
	go processor.Run(ctx)

	msgRouter := router.New(store, directory, sessions, processor, log)

	authService := auth.NewService(store, []byte(cfg.JWT.Secret), cfg.JWT.ExpiresIn)

	authHandlers := handlers.NewAuthHandlers(authService, log)
	wsHandlers := handlers.NewWebSocketHandlers(authService, ws.Deps{
		Sessions:     sessions,
		Rooms:        directory,
		Router:       msgRouter,
		Store:        store,
		SendBuffer:   cfg.Chat.SendBuffer,
		HistoryLimit: cfg.Chat.HistoryLimit,
		Log:          log,
	}, log)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/register", authHandlers.Register)
	mux.HandleFunc("POST /api/login", authHandlers.Login)
	mux.HandleFunc("GET /ws", wsHandlers.HandleWebSocket)
	mux.HandleFunc("GET /healthz", handlers.Health)
	mux.Handle("GET /metrics", promhttp.Handler())

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      corsMiddleware(mux),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Server.Port).Msg("server started")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("server shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
