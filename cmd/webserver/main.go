package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pdfquiz"
)

func main() {
	cfg, err := pdfquiz.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	pdfquiz.SetVerbose(cfg.Verbose)

	if cfg.OpenAIKey == "" {
		log.Fatal("OPENAI_API_KEY environment variable is required")
	}

	db, err := pdfquiz.OpenDB(context.Background(), cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	generator := pdfquiz.NewQuizGenerator(
		pdfquiz.NewQuestionMaker(cfg.OpenAIKey, cfg.Model, cfg.LLMLogDir),
		pdfquiz.NewTitleGenerator(cfg.OpenAIKey, cfg.Model),
		db,
		cfg.NumQuestions,
	)

	server := NewServer(cfg, db, generator)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Starting server on port %s (db driver %s)", cfg.Port, cfg.DBDriver)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Printf("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
	// let in-flight result saves reach the database before it is closed
	server.attempts.waitAll()
}
