package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/urfave/cli/v2"
)

var defaultLoadQueries = []string{
	"red sea shipping",
	"supply chain",
	"panama canal drought",
	"interest rates",
	"election results",
	"climate summit",
	"semiconductor exports",
	"oil prices",
	"container freight",
	"central bank",
}

type loadConfig struct {
	BaseURL     string
	Concurrency int
	Duration    time.Duration
	Limit       int
	UseAI       bool
	Queries     []string
}

type loadStats struct {
	total       atomic.Int64
	success     atomic.Int64
	errors      atomic.Int64
	zeroResults atomic.Int64

	mu          sync.Mutex
	latencies   []time.Duration
	statusCodes map[int]int64
}

func newLoadStats() *loadStats {
	return &loadStats{
		latencies:   make([]time.Duration, 0, 4096),
		statusCodes: make(map[int]int64),
	}
}

func (s *loadStats) record(d time.Duration, status int, total int, err error) {
	s.total.Add(1)
	if err != nil {
		s.errors.Add(1)
		return
	}
	if status >= 200 && status < 300 {
		s.success.Add(1)
		if total == 0 {
			s.zeroResults.Add(1)
		}
	} else {
		s.errors.Add(1)
	}

	s.mu.Lock()
	s.latencies = append(s.latencies, d)
	s.statusCodes[status]++
	s.mu.Unlock()
}

func loadCommand(c *cli.Context) error {
	queries := defaultLoadQueries
	if q := c.StringSlice("query"); len(q) > 0 {
		queries = q
	}
	cfg := loadConfig{
		BaseURL:     strings.TrimRight(c.String("url"), "/"),
		Concurrency: max(c.Int("concurrency"), 1),
		Duration:    c.Duration("duration"),
		Limit:       c.Int("limit"),
		UseAI:       c.Bool("ai"),
		Queries:     queries,
	}

	w := c.App.Writer
	fmt.Fprintln(w, "=== Article Search Load Test ===")
	fmt.Fprintf(w, "Target:      %s\n", cfg.BaseURL)
	fmt.Fprintf(w, "Concurrency: %d\n", cfg.Concurrency)
	fmt.Fprintf(w, "Duration:    %s\n", cfg.Duration)
	fmt.Fprintf(w, "Queries:     %d unique\n\n", len(cfg.Queries))

	stats := runLoad(c.Context, cfg)
	printLoadReport(w, stats, cfg.Duration)
	if stats.success.Load() == 0 {
		return fmt.Errorf("no request succeeded; is the search service running at %s?", cfg.BaseURL)
	}
	return nil
}

func runLoad(parent context.Context, cfg loadConfig) *loadStats {
	stats := newLoadStats()
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        cfg.Concurrency * 2,
			MaxIdleConnsPerHost: cfg.Concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	ctx, cancel := context.WithTimeout(parent, cfg.Duration)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < cfg.Concurrency; i++ {
		wg.Add(1)
		go func(next int) {
			defer wg.Done()
			for ctx.Err() == nil {
				query := cfg.Queries[next%len(cfg.Queries)]
				next++

				start := time.Now()
				status, total, err := doSearch(ctx, client, cfg, query)
				if ctx.Err() != nil {
					return
				}
				stats.record(time.Since(start), status, total, err)
			}
		}(i)
	}
	wg.Wait()
	return stats
}

func doSearch(ctx context.Context, client *http.Client, cfg loadConfig, query string) (int, int, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("useAI", fmt.Sprint(cfg.UseAI))
	if cfg.Limit > 0 {
		params.Set("limit", fmt.Sprint(cfg.Limit))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.BaseURL+"/api/v1/search?"+params.Encode(), nil)
	if err != nil {
		return 0, 0, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, 0, err
	}
	defer resp.Body.Close()

	var body struct {
		Total int `json:"total"`
	}
	if resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return resp.StatusCode, 0, fmt.Errorf("decoding response: %w", err)
		}
	}
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, body.Total, nil
}

func printLoadReport(w io.Writer, stats *loadStats, duration time.Duration) {
	total := stats.total.Load()
	fmt.Fprintln(w, "=== Results ===")
	fmt.Fprintf(w, "Total Requests:  %d\n", total)
	fmt.Fprintf(w, "Successful:      %d\n", stats.success.Load())
	fmt.Fprintf(w, "Zero Results:    %d\n", stats.zeroResults.Load())
	fmt.Fprintf(w, "Errors:          %d\n", stats.errors.Load())
	if total > 0 {
		fmt.Fprintf(w, "Error Rate:      %.2f%%\n", float64(stats.errors.Load())/float64(total)*100)
		fmt.Fprintf(w, "Requests/sec:    %.2f\n", float64(total)/duration.Seconds())
	}

	stats.mu.Lock()
	latencies := append([]time.Duration(nil), stats.latencies...)
	codes := make([]int, 0, len(stats.statusCodes))
	for code := range stats.statusCodes {
		codes = append(codes, code)
	}
	counts := make(map[int]int64, len(stats.statusCodes))
	for code, n := range stats.statusCodes {
		counts[code] = n
	}
	stats.mu.Unlock()

	if len(latencies) > 0 {
		sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
		var sum time.Duration
		for _, l := range latencies {
			sum += l
		}
		fmt.Fprintln(w)
		fmt.Fprintln(w, "=== Latency ===")
		fmt.Fprintf(w, "Min:    %s\n", latencies[0])
		fmt.Fprintf(w, "Avg:    %s\n", sum/time.Duration(len(latencies)))
		fmt.Fprintf(w, "P50:    %s\n", percentile(latencies, 50))
		fmt.Fprintf(w, "P95:    %s\n", percentile(latencies, 95))
		fmt.Fprintf(w, "P99:    %s\n", percentile(latencies, 99))
		fmt.Fprintf(w, "Max:    %s\n", latencies[len(latencies)-1])
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "=== Status Codes ===")
	sort.Ints(codes)
	for _, code := range codes {
		fmt.Fprintf(w, "  %d: %d\n", code, counts[code])
	}
}

// percentile expects sorted input.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	idx = max(0, min(idx, len(sorted)-1))
	return sorted[idx]
}
