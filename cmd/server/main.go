package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"study-buddy/internal/api"
	"study-buddy/internal/config"
	"study-buddy/internal/db"
	"study-buddy/internal/services"
	"study-buddy/internal/web"
)

func main() {
	cfg := config.Load()
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	backend, err := services.NewBackend(context.Background(), cfg)
	if err != nil {
		log.Fatalf("create backend: %v", err)
	}
	backend = services.WithTimeout(backend, cfg.BackendTimeout)

	study := services.NewStudyService(
		backend,
		services.NewPDFService(),
		services.NewYouTubeCaptions(logger),
		services.StudyOptions{
			CaptionLanguages: cfg.CaptionLanguages,
			CaptionFallback:  cfg.CaptionFallback,
		},
		logger,
	)
	documents := services.NewDocumentService(cfg.UploadDir)

	var history *services.HistoryService
	var flashcards *services.FlashcardService
	if cfg.Database != "" {
		conn, err := db.Open(cfg.Database)
		if err != nil {
			log.Fatalf("open database: %v", err)
		}
		defer conn.Close()
		history = services.NewHistoryService(conn)
		flashcards = services.NewFlashcardService(conn)
	}

	server := api.NewServer(study, documents, history, flashcards, logger)

	r := mux.NewRouter()
	r.HandleFunc("/", web.Index()).Methods(http.MethodGet, http.MethodHead)
	r.PathPrefix("/api/").Handler(server.Handler())

	logger.Info("listening",
		"port", cfg.Port,
		"backend", cfg.Backend,
		"history", cfg.Database != "",
		"caption_fallback", cfg.CaptionFallback,
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server failed: %v", err)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
