// cartscope chat - interactive conversational analysis over the loaded
// dataset.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/cartscope/cartscope/internal/catalog"
	"github.com/cartscope/cartscope/internal/config"
	"github.com/cartscope/cartscope/internal/dataset"
	"github.com/cartscope/cartscope/internal/dispatch"
	"github.com/cartscope/cartscope/internal/llm"
	"github.com/cartscope/cartscope/internal/persona"
	"github.com/cartscope/cartscope/internal/policy"
	"github.com/cartscope/cartscope/internal/query"
	"github.com/cartscope/cartscope/internal/session"
	"github.com/cartscope/cartscope/internal/viz"
)

const personaOutputFile = "user_personas_output.txt"

func main() {
	personas := flag.Int("personas", 0, "generate N user personas instead of starting the chat")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found, using environment variables")
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	store, err := dataset.Open(cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("Failed to open dataset store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()

	fmt.Println("Loading dataset...")
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
	fmt.Println("\nLoaded dataset:")
	for _, tc := range summary {
		fmt.Printf("  - %s: %d rows\n", tc.Table, tc.Rows)
	}

	client := llm.NewClient(cfg.AnthropicBaseURL, cfg.AnthropicAPIKey, cfg.ModelID, cfg.MaxOutputTokens, cfg.LLMTimeout)

	if *personas > 0 {
		runPersonas(ctx, store, client, *personas)
		return
	}

	renderer := viz.NewRenderer(cfg.ChartDir)
	data := query.New(store, renderer)
	cat := catalog.New()

	policyEngine, err := policy.NewEngine(ctx, policy.DefaultPolicy)
	if err != nil {
		log.Fatalf("Failed to initialize policy engine: %v", err)
	}

	dispatcher := dispatch.New(cat, data, policyEngine, cfg.ToolTimeout)
	sess := session.New(client, cat, dispatcher, cfg.MaxToolRounds)

	runChat(ctx, sess)
}

func runChat(ctx context.Context, sess *session.Session) {
	fmt.Println("\nAsk me anything about the order data!")
	fmt.Println("Examples:")
	fmt.Println("  - What are the top 10 most ordered products?")
	fmt.Println("  - Which products are frequently bought together with bananas?")
	fmt.Println("  - What's the reorder rate for organic products?")
	fmt.Println("  - Analyze user 12345's shopping behavior")
	fmt.Println("\nType 'quit' to exit")
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("You: ")
		if !scanner.Scan() {
			break
		}

		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		switch strings.ToLower(question) {
		case "quit", "exit", "q":
			fmt.Println("\nGoodbye!")
			return
		}

		answer, err := sess.Ask(ctx, question)
		if err != nil {
			// A failed question does not end the session.
			fmt.Printf("\nError: %v\n\n", err)
			continue
		}
		fmt.Printf("\nAgent: %s\n\n", answer)
	}

	if err := scanner.Err(); err != nil {
		log.Fatalf("Failed to read input: %v", err)
	}
}

func runPersonas(ctx context.Context, store *dataset.Store, client *llm.Client, n int) {
	fmt.Printf("\nGenerating %d user personas...\n", n)

	gen := persona.NewGenerator(store, client)
	text, profiles, err := gen.Generate(ctx, n)
	if err != nil {
		log.Fatalf("Failed to generate personas: %v", err)
	}

	fmt.Println("\n" + text)

	out := fmt.Sprintf("AI-GENERATED USER PERSONAS (%d users)\n\n%s\n", len(profiles), text)
	if err := os.WriteFile(personaOutputFile, []byte(out), 0o644); err != nil {
		log.Fatalf("Failed to write personas: %v", err)
	}
	fmt.Printf("\nPersonas saved to %s\n", personaOutputFile)
}
