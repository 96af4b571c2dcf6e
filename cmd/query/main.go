package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/brainzmonster/os/internal/config"
	"github.com/brainzmonster/os/internal/engine"
)

func main() {
	var (
		prompt       = flag.String("prompt", "", "Input prompt for the model (required)")
		maxTokens    = flag.Int("max-tokens", 100, "Maximum tokens to generate")
		temperature  = flag.Float64("temperature", 0.7, "Sampling temperature")
		systemPrompt = flag.String("system-prompt", "", "Optional system prompt to prepend")
		dryRun       = flag.Bool("dry-run", false, "Print parameters without generating")
		outputFile   = flag.String("output-file", "", "Optional path to write the response to")
		showTokens   = flag.Bool("show-tokens", false, "Print prompt/output/total token counts")
	)
	flag.Parse()

	if *prompt == "" {
		flag.Usage()
		log.Fatal("-prompt is required")
	}

	godotenv.Load()
	if err := config.LoadConfig(); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	sessionID := uuid.New().String()

	if *dryRun {
		fmt.Println("[✓] Dry run, no generation performed.")
		fmt.Printf("[Info] Session: %s\n", sessionID)
		fmt.Printf("[Info] Prompt: %s\n", *prompt)
		fmt.Printf("[Info] Max tokens: %d, temperature: %.2f\n", *maxTokens, *temperature)
		return
	}

	e := engine.Boot(config.GetAppConfig().LLM)
	if !e.Ready() {
		log.Fatal("engine not ready, set OPENAI_API_KEY")
	}

	temp := float32(*temperature)
	start := time.Now()
	result, err := e.Query(context.Background(), *prompt, engine.QueryOptions{
		MaxTokens:   *maxTokens,
		Temperature: &temp,
		System:      *systemPrompt,
	})
	if err != nil {
		log.Fatalf("inference failed: %v", err)
	}

	fmt.Printf("[Session %s] %.2fs\n\n%s\n", sessionID, time.Since(start).Seconds(), result.Text)

	if *showTokens {
		fmt.Printf("\n[Tokens] prompt=%d output=%d total=%d\n",
			result.InputTokens, result.OutputTokens, result.TotalTokens)
	}

	if *outputFile != "" {
		if err := os.WriteFile(*outputFile, []byte(result.Text), 0o644); err != nil {
			log.Fatalf("failed to write output: %v", err)
		}
		fmt.Printf("[✓] Response written to %s\n", *outputFile)
	}
}
