// Loadtest drives concurrent requests at the relay and reports throughput,
// latency percentiles and how many responses carried a failure envelope.
//
// Usage:
//
//	go run ./scripts/loadtest -url http://localhost:8080/api/stats/refresh -concurrency 10 -requests 500
//	go run ./scripts/loadtest -concurrency 50 -requests 5000 -csv results.csv -out summary.json
//
// When -metrics is set the relay's /metrics snapshot is fetched after the run
// and printed next to the client-side numbers.
package main

import (
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/angeloszaimis/engagement-relay/internal/envelope"
	"github.com/angeloszaimis/engagement-relay/internal/metrics"
)

type result struct {
	idx      int
	status   int
	failed   bool
	duration time.Duration
}

type summary struct {
	Target        string        `json:"target"`
	Requests      int           `json:"requests"`
	Concurrency   int           `json:"concurrency"`
	Success       int64         `json:"success"`
	Failure       int64         `json:"failure"`
	DurationMS    int64         `json:"duration_ms"`
	ThroughputRPS float64       `json:"throughput_rps"`
	StatusCodes   map[int]int64 `json:"status_codes"`
	P50MS         float64       `json:"p50_ms"`
	P90MS         float64       `json:"p90_ms"`
	P95MS         float64       `json:"p95_ms"`
	P99MS         float64       `json:"p99_ms"`
}

func main() {
	var (
		url         = flag.String("url", "http://localhost:8080/api/stats/refresh", "Target URL")
		method      = flag.String("method", http.MethodPost, "HTTP method")
		concurrency = flag.Int("concurrency", 10, "Number of concurrent workers")
		requests    = flag.Int("requests", 100, "Total number of requests to send")
		timeout     = flag.Duration("timeout", 10*time.Second, "Per-request timeout")
		metricsURL  = flag.String("metrics", "", "Relay /metrics URL to print after the run (optional)")
		outJSON     = flag.String("out", "", "Write JSON summary to this file (optional)")
		outCSV      = flag.String("csv", "", "Write per-request CSV to this file (optional)")
		verbose     = flag.Bool("v", false, "Verbose per-request logging to stdout")
	)
	flag.Parse()

	client := &http.Client{Timeout: *timeout}

	jobs := make(chan int)
	results := make(chan result, *concurrency)

	var success, failure atomic.Int64
	var wg sync.WaitGroup

	testStart := time.Now()

	for i := 0; i < *concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for idx := range jobs {
				res := send(client, *method, *url)
				res.idx = idx

				if res.failed {
					failure.Add(1)
				} else {
					success.Add(1)
				}
				if *verbose {
					fmt.Printf("[%d] idx=%d status=%d failed=%t dur=%v\n", workerID, idx, res.status, res.failed, res.duration)
				}
				results <- res
			}
		}(i)
	}

	go func() {
		for i := 0; i < *requests; i++ {
			jobs <- i
		}
		close(jobs)
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	var collected []result
	for res := range results {
		collected = append(collected, res)
	}
	totalDuration := time.Since(testStart)

	if *outCSV != "" {
		if err := writeCSV(*outCSV, collected); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write csv: %v\n", err)
			os.Exit(1)
		}
	}

	s := summarize(collected)
	s.Target = *url
	s.Requests = *requests
	s.Concurrency = *concurrency
	s.Success = success.Load()
	s.Failure = failure.Load()
	s.DurationMS = totalDuration.Milliseconds()
	s.ThroughputRPS = float64(len(collected)) / totalDuration.Seconds()

	printSummary(s)

	if *metricsURL != "" {
		if err := printRelayMetrics(client, *metricsURL); err != nil {
			fmt.Fprintf(os.Stderr, "failed to fetch relay metrics: %v\n", err)
		}
	}

	if *outJSON != "" {
		if err := writeJSON(*outJSON, s); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write json: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("\nWrote JSON summary to %s\n", *outJSON)
	}

	if s.Failure > 0 {
		os.Exit(2)
	}
}

// send counts a response as failed when the status is not 2xx or the
// body is a failure envelope.
func send(client *http.Client, method, url string) result {
	start := time.Now()

	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		return result{failed: true}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return result{failed: true, duration: time.Since(start)}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	res := result{status: resp.StatusCode, duration: time.Since(start)}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		res.failed = true
		return res
	}

	var env envelope.Failure
	if err := json.Unmarshal(body, &env); err == nil && env.Error != "" {
		res.failed = true
	}
	return res
}

func summarize(results []result) summary {
	s := summary{StatusCodes: make(map[int]int64)}

	latencies := make([]time.Duration, 0, len(results))
	for _, r := range results {
		if r.status != 0 {
			s.StatusCodes[r.status]++
		}
		latencies = append(latencies, r.duration)
	}
	if len(latencies) == 0 {
		return s
	}

	slices.Sort(latencies)
	pick := func(p float64) float64 {
		return float64(latencies[int(float64(len(latencies)-1)*p)].Microseconds()) / 1000.0
	}
	s.P50MS = pick(0.50)
	s.P90MS = pick(0.90)
	s.P95MS = pick(0.95)
	s.P99MS = pick(0.99)

	return s
}

func printSummary(s summary) {
	fmt.Println("--- Load Test Summary ---")
	fmt.Printf("Target: %s\n", s.Target)
	fmt.Printf("Requests: %d  Concurrency: %d\n", s.Requests, s.Concurrency)
	fmt.Printf("Success: %d  Failure: %d\n", s.Success, s.Failure)
	fmt.Printf("Duration: %dms  Throughput: %.2f req/s\n", s.DurationMS, s.ThroughputRPS)

	fmt.Println("\nStatus codes:")
	codes := make([]int, 0, len(s.StatusCodes))
	for k := range s.StatusCodes {
		codes = append(codes, k)
	}
	slices.Sort(codes)
	for _, k := range codes {
		fmt.Printf("  %d -> %d\n", k, s.StatusCodes[k])
	}

	fmt.Println("\nLatencies:")
	fmt.Printf("  p50=%.3fms p90=%.3fms p95=%.3fms p99=%.3fms\n", s.P50MS, s.P90MS, s.P95MS, s.P99MS)
}

func printRelayMetrics(client *http.Client, url string) error {
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var snap metrics.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}

	fmt.Println("\nRelay metrics:")
	fmt.Printf("  upstream=%s state=%s uptime=%s\n", snap.Upstream.URL, snap.Upstream.State, snap.Uptime)
	fmt.Printf("  total=%d failures=%d\n", snap.TotalRequests, snap.TotalFailures)
	for route, rm := range snap.Routes {
		fmt.Printf("  %s -> requests=%d failures=%d avg=%s p95=%s\n",
			route, rm.Requests, rm.Failures, rm.AvgLatency, rm.P95Latency)
	}
	return nil
}

func writeCSV(path string, results []result) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	w.Write([]string{"idx", "status", "failed", "duration_ms"})
	for _, r := range results {
		w.Write([]string{
			strconv.Itoa(r.idx),
			strconv.Itoa(r.status),
			strconv.FormatBool(r.failed),
			fmt.Sprintf("%.3f", float64(r.duration.Microseconds())/1000.0),
		})
	}
	w.Flush()
	return w.Error()
}

func writeJSON(path string, s summary) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}
