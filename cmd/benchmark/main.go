package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/brainzmonster/os/internal/config"
	"github.com/brainzmonster/os/internal/engine"
)

// percentileStats 最近秩法计算分位数
func percentileStats(values []float64) map[string]float64 {
	out := map[string]float64{"p50": math.NaN(), "p90": math.NaN(), "p95": math.NaN(), "p99": math.NaN()}
	n := len(values)
	if n == 0 {
		return out
	}

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	pct := func(p float64) float64 {
		// 半值取偶，保证整数秩上的取位稳定
		idx := int(math.RoundToEven(p*float64(n)+0.5)) - 1
		if idx < 0 {
			idx = 0
		}
		if idx >= n {
			idx = n - 1
		}
		return sorted[idx]
	}

	out["p50"] = pct(0.50)
	out["p90"] = pct(0.90)
	out["p95"] = pct(0.95)
	out["p99"] = pct(0.99)
	return out
}

type report struct {
	SessionID     string             `json:"session_id"`
	Timestamp     string             `json:"timestamp"`
	Prompt        string             `json:"prompt"`
	Runs          int                `json:"runs"`
	Errors        int                `json:"errors"`
	Latencies     []float64          `json:"latencies"`
	AvgLatency    float64            `json:"avg_latency"`
	MedianLatency float64            `json:"median_latency"`
	MinLatency    float64            `json:"min_latency"`
	MaxLatency    float64            `json:"max_latency"`
	Percentiles   map[string]float64 `json:"percentiles"`
	TotalTokens   int                `json:"total_tokens"`
	Throughput    float64            `json:"throughput"`
}

func main() {
	var (
		prompt      = flag.String("prompt", "Define Solana in 1 sentence.", "Benchmark prompt")
		runs        = flag.Int("runs", 5, "Number of timed runs")
		warmup      = flag.Bool("warmup", true, "Run one untimed warm-up request first")
		maxTokens   = flag.Int("max-tokens", 100, "Maximum tokens per generation")
		temperature = flag.Float64("temperature", 0.7, "Sampling temperature")
		savePath    = flag.String("save", "", "Optional path to write JSON results")
	)
	flag.Parse()

	godotenv.Load()
	if err := config.LoadConfig(); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	e := engine.Boot(config.GetAppConfig().LLM)
	if !e.Ready() {
		log.Fatal("engine not ready, set OPENAI_API_KEY")
	}

	sessionID := uuid.New().String()
	fmt.Printf("\n[brainz-os] Starting benchmark session: %s\n", sessionID)

	temp := float32(*temperature)
	opts := engine.QueryOptions{MaxTokens: *maxTokens, Temperature: &temp}
	ctx := context.Background()

	if *warmup {
		if _, err := e.Query(ctx, *prompt, opts); err != nil {
			fmt.Println("[!] Warm-up run failed.")
		} else {
			fmt.Println("[✓] Warm-up run complete.")
		}
	}

	var latencies []float64
	totalTokens := 0
	errCount := 0

	for i := 0; i < *runs; i++ {
		start := time.Now()
		result, err := e.Query(ctx, *prompt, opts)
		if err != nil {
			fmt.Printf("[✗] Error during run %d: %v\n", i+1, err)
			errCount++
			continue
		}
		latencies = append(latencies, time.Since(start).Seconds())
		totalTokens += result.OutputTokens
	}

	if len(latencies) == 0 {
		log.Fatal("no successful runs, benchmark aborted")
	}

	sorted := make([]float64, len(latencies))
	copy(sorted, latencies)
	sort.Float64s(sorted)

	sum := 0.0
	for _, d := range latencies {
		sum += d
	}
	avg := sum / float64(len(latencies))
	median := sorted[len(sorted)/2]
	if len(sorted)%2 == 0 {
		median = (sorted[len(sorted)/2-1] + sorted[len(sorted)/2]) / 2
	}
	pct := percentileStats(latencies)
	throughput := 0.0
	if sum > 0 {
		throughput = float64(totalTokens) / sum
	}

	fmt.Println("\n--- Benchmark Results ---")
	fmt.Printf("Prompt: %s\n", *prompt)
	fmt.Printf("Runs: %d (errors: %d)\n", *runs, errCount)
	fmt.Printf("Average Latency: %.2fs\n", avg)
	fmt.Printf("Median: %.2fs\n", median)
	fmt.Printf("Min: %.2fs  Max: %.2fs\n", sorted[0], sorted[len(sorted)-1])
	fmt.Printf("p50: %.2fs  p90: %.2fs  p95: %.2fs  p99: %.2fs\n",
		pct["p50"], pct["p90"], pct["p95"], pct["p99"])
	fmt.Printf("Total Tokens: %d\n", totalTokens)
	fmt.Printf("Throughput: %.2f tokens/sec\n", throughput)

	if *savePath != "" {
		out := report{
			SessionID:     sessionID,
			Timestamp:     time.Now().UTC().Format(time.RFC3339),
			Prompt:        *prompt,
			Runs:          *runs,
			Errors:        errCount,
			Latencies:     latencies,
			AvgLatency:    avg,
			MedianLatency: median,
			MinLatency:    sorted[0],
			MaxLatency:    sorted[len(sorted)-1],
			Percentiles:   pct,
			TotalTokens:   totalTokens,
			Throughput:    throughput,
		}
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			log.Fatalf("failed to encode results: %v", err)
		}
		if err := os.WriteFile(*savePath, data, 0o644); err != nil {
			log.Fatalf("failed to save results: %v", err)
		}
		fmt.Printf("[✓] Benchmark results saved to: %s\n", *savePath)
	}
}
