package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/deepak6009/khetsaathi-sub000/internal/agent"
	"github.com/deepak6009/khetsaathi-sub000/internal/api"
	"github.com/deepak6009/khetsaathi-sub000/internal/casedb"
	"github.com/deepak6009/khetsaathi-sub000/internal/config"
	"github.com/deepak6009/khetsaathi-sub000/internal/diagnosis"
	"github.com/deepak6009/khetsaathi-sub000/internal/pdf"
	"github.com/deepak6009/khetsaathi-sub000/internal/speech"
	"github.com/deepak6009/khetsaathi-sub000/internal/voice"
)

func main() {
	// Load .env file if present (ignored if missing)
	_ = godotenv.Load()

	cfg := config.Load()
	if cfg.Gemini.APIKey == "" {
		log.Fatal("GEMINI_API_KEY is required")
	}
	if cfg.Voice.TokenSecret == "" {
		log.Fatal("VOICE_TOKEN_SECRET is required")
	}

	ctx := context.Background()
	ag, err := agent.New(ctx, cfg.Gemini.APIKey, cfg.Gemini.ChatModel, cfg.Gemini.FastModel)
	if err != nil {
		log.Fatalf("agent init: %v", err)
	}

	cases, err := casedb.Open(cfg.Case.DBPath)
	if err != nil {
		log.Fatalf("casedb init: %v", err)
	}
	defer cases.Close()

	if err := os.MkdirAll(cfg.PDF.OutputDir, 0o755); err != nil {
		log.Fatalf("plan dir: %v", err)
	}

	events := voice.NewEventLog()
	dep := voice.Deps{
		STT:    speech.NewTranscriber(ag.GenAI(), cfg.Gemini.ChatModel),
		TTS:    speech.NewSynthesizer(ag.GenAI(), cfg.Gemini.TTSModel),
		Agent:  ag,
		Diag:   diagnosis.NewClient(cfg.Diagnosis.BaseURL, cfg.Diagnosis.APIKey, time.Duration(cfg.Diagnosis.TimeoutSecs)*time.Second),
		PDF:    pdf.NewRenderer(cfg.PDF.ServiceURL, cfg.PDF.OutputDir, time.Duration(cfg.PDF.TimeoutSecs)*time.Second),
		Cases:  cases,
		Events: events,

		BaseURL:         cfg.Server.BaseURL,
		DiagTimeout:     time.Duration(cfg.Diagnosis.TimeoutSecs) * time.Second,
		MaxDiagAttempts: cfg.Diagnosis.MaxAttempts,
	}

	mgr := voice.NewManager()
	wsHandler := voice.NewHandler(cfg, mgr, dep)
	handlers := api.NewHandlers(cfg, mgr, events, cases)
	router := api.NewRouter(handlers, wsHandler.HandleVoiceWS, cfg.PDF.OutputDir)

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           logMiddleware(router),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Graceful shutdown on SIGINT/SIGTERM
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigc
		log.Printf("shutdown signal received; stopping server...")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}()

	log.Printf("server starting on %s", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Println("server error:", err)
		os.Exit(1)
	}
}

func logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(start))
	})
}
