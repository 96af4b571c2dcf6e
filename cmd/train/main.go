package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/brainzmonster/os/internal/config"
	"github.com/brainzmonster/os/internal/engine"
	"github.com/brainzmonster/os/internal/services"
)

// loadTxt 每个非空行一条训练样本
func loadTxt(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var texts []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			texts = append(texts, line)
		}
	}
	return texts, scanner.Err()
}

// loadJSONL 支持{"text": ...}和{"prompt","completion"}两种行格式
func loadJSONL(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var texts []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	for scanner.Scan() {
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}
		var obj struct {
			Text       string `json:"text"`
			Prompt     string `json:"prompt"`
			Completion string `json:"completion"`
		}
		if err := json.Unmarshal([]byte(raw), &obj); err != nil {
			return nil, fmt.Errorf("invalid jsonl line: %w", err)
		}
		switch {
		case strings.TrimSpace(obj.Text) != "":
			texts = append(texts, strings.TrimSpace(obj.Text))
		case obj.Prompt != "" || obj.Completion != "":
			texts = append(texts, engine.FlattenPair(strings.TrimSpace(obj.Prompt), strings.TrimSpace(obj.Completion)))
		}
	}
	return texts, scanner.Err()
}

func main() {
	var (
		file      = flag.String("file", "", "Path to training data file (required)")
		format    = flag.String("format", "txt", "File format: txt or jsonl")
		dryRun    = flag.Bool("dry-run", false, "Preview only, do not train")
		tags      = flag.String("tags", "cli", "Comma separated metadata tags for the samples")
		source    = flag.String("source", "cli", "Training data origin")
		minWords  = flag.Int("min-words", 1, "Filter out samples shorter than N words")
		dedupe    = flag.Bool("dedupe", false, "Remove duplicate samples before training")
		batchSize = flag.Int("batch-size", 0, "Micro-batch size; 0 means single-shot")
		sleep     = flag.Float64("sleep", 0, "Seconds to sleep between batches")
		preview   = flag.Int("preview", 3, "Show the first N samples as a preview")
	)
	flag.Parse()

	if *file == "" {
		flag.Usage()
		log.Fatal("-file is required")
	}

	godotenv.Load()
	if err := config.LoadConfig(); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	cfg := config.GetAppConfig()

	sessionID := uuid.New().String()
	start := time.Now()

	var texts []string
	var err error
	switch *format {
	case "jsonl":
		texts, err = loadJSONL(*file)
	case "txt":
		texts, err = loadTxt(*file)
	default:
		log.Fatalf("unknown format: %s", *format)
	}
	if err != nil {
		log.Fatalf("failed to load file: %v", err)
	}
	if len(texts) == 0 {
		log.Fatal("no valid training texts found")
	}

	prepared, stats := services.SanitizeTexts(texts, *minWords, *dedupe)
	if len(prepared) == 0 {
		log.Fatal("no samples left after filtering, adjust -min-words or remove -dedupe")
	}

	if *preview > 0 {
		fmt.Println("\n--- Preview Samples ---")
		for i, s := range prepared {
			if i >= *preview {
				break
			}
			if len(s) > 200 {
				s = s[:200] + "..."
			}
			fmt.Printf("[%d] %s\n", i+1, s)
		}
		fmt.Println("-----------------------")
	}

	e := engine.Boot(cfg.LLM)
	tokens := e.Counter().TryCountBatch(prepared)
	fmt.Printf("\n[%s] Loaded %d -> %d samples (removed %d, min_words=%d, deduped=%v); estimated tokens: %d\n",
		sessionID, stats.Original, stats.AfterMinWords, stats.Removed, stats.MinWords, stats.Deduped, tokens)

	if *dryRun {
		fmt.Println("[✓] Dry run complete. Training skipped.")
		return
	}
	if !e.Ready() {
		log.Fatal("engine not ready, set OPENAI_API_KEY")
	}

	trainCfg := cfg.Train
	if *batchSize > 0 {
		trainCfg.BatchSize = *batchSize
	}
	if *sleep > 0 {
		trainCfg.InterBatchSleepSec = *sleep
	}
	training := services.NewTrainingService(e.Client(), nil, trainCfg)

	tag := ""
	if parts := strings.Split(*tags, ","); len(parts) > 0 {
		tag = strings.TrimSpace(parts[0])
	}

	result, err := training.Train(context.Background(), services.TrainInput{
		Texts:  prepared,
		Tag:    tag,
		Source: *source,
	})
	if err != nil {
		log.Fatalf("training failed: %v", err)
	}

	fmt.Printf("[✓] Trained %d samples in %d batch(es), job=%s (%.2fs)\n",
		result.Trained, result.Batches, result.JobID, time.Since(start).Seconds())
}
