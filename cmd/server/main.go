// cartscope server - conversational analysis agent over HTTP.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/cartscope/cartscope/internal/catalog"
	"github.com/cartscope/cartscope/internal/config"
	"github.com/cartscope/cartscope/internal/dataset"
	"github.com/cartscope/cartscope/internal/dispatch"
	"github.com/cartscope/cartscope/internal/llm"
	"github.com/cartscope/cartscope/internal/policy"
	"github.com/cartscope/cartscope/internal/query"
	"github.com/cartscope/cartscope/internal/session"
	transport "github.com/cartscope/cartscope/internal/transport/http"
	"github.com/cartscope/cartscope/internal/viz"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found, using environment variables")
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	log.Printf("Starting cartscope server...")
	log.Printf("HTTP Port: %d", cfg.HTTPPort)
	log.Printf("Model: %s", cfg.ModelID)

	// Load the dataset
	store, err := dataset.Open(cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("Failed to open dataset store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	if cfg.DatasetURL != "" {
		err = store.LoadURL(ctx, cfg.DatasetURL, nil)
	} else {
		err = store.LoadDir(ctx, cfg.DatasetDir)
	}
	if err != nil {
		log.Fatalf("Failed to load dataset: %v", err)
	}

	summary, err := store.Summary(ctx)
	if err != nil {
		log.Fatalf("Failed to summarize dataset: %v", err)
	}
	for _, tc := range summary {
		log.Printf("  %s: %d rows", tc.Table, tc.Rows)
	}

	// Wire the agent
	renderer := viz.NewRenderer(cfg.ChartDir)
	data := query.New(store, renderer)
	cat := catalog.New()

	policyEngine, err := policy.NewEngine(ctx, policy.DefaultPolicy)
	if err != nil {
		log.Fatalf("Failed to initialize policy engine: %v", err)
	}

	dispatcher := dispatch.New(cat, data, policyEngine, cfg.ToolTimeout)
	client := llm.NewClient(cfg.AnthropicBaseURL, cfg.AnthropicAPIKey, cfg.ModelID, cfg.MaxOutputTokens, cfg.LLMTimeout)
	sess := session.New(client, cat, dispatcher, cfg.MaxToolRounds)

	e := transport.NewServer(transport.NewHandler(sess, cat, store))

	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	log.Printf("API started on port %d", cfg.HTTPPort)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to shutdown server gracefully: %v", err)
	}

	log.Println("Server stopped")
}
