package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"triageroom/internal/config"
	"triageroom/internal/core"
	"triageroom/internal/db"
	"triageroom/internal/engine"
	"triageroom/internal/escalation"
	httpserver "triageroom/internal/http"
	"triageroom/internal/llm"
	"triageroom/internal/store"
	"triageroom/internal/sweep"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	detector := escalation.NewDetector(escalation.DefaultPhrases)
	if cfg.EscalationPhrasesFile != "" {
		detector, err = escalation.LoadFile(cfg.EscalationPhrasesFile)
		if err != nil {
			log.Fatalf("load escalation phrases: %v", err)
		}
		log.Printf("loaded %d escalation phrases from %s",
			len(detector.Phrases()), cfg.EscalationPhrasesFile)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eng := engine.New(nil, detector, cfg.SoftTimeout, cfg.GracePeriod)

	if cfg.DatabaseURL != "" {
		dbConn, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("open database: %v", err)
		}
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := dbConn.PingContext(pingCtx); err != nil {
			log.Fatalf("ping database: %v", err)
		}
		cancel()
		if err := db.Migrate(ctx, dbConn); err != nil {
			log.Fatalf("run migrations: %v", err)
		}
		pgStore := db.NewStore(dbConn)
		eng.Store = pgStore
		eng.Alerter = db.NewNotifier(pgStore, cfg.DatabaseURL, cfg.NotifyChannel)
	} else {
		log.Printf("DATABASE_URL not set, using in-memory session store")
		eng.Store = store.NewMemory()
	}

	if cfg.OpenAIAPIKey != "" {
		eng.Summarizer = core.NewSummarizer(llm.NewOpenAIClient(), cfg.SummaryModels)
	} else {
		log.Printf("OPENAI_API_KEY not set, intake summaries disabled")
	}

	go sweep.New(eng, cfg.SweepInterval).Run(ctx)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: httpserver.NewServer(eng).Router(),
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("listening on %s (soft timeout %s, grace %s, sweep every %s)",
		srv.Addr, cfg.SoftTimeout, cfg.GracePeriod, cfg.SweepInterval)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}
