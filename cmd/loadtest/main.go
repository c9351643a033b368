// Command loadtest drives POST /api/v1/recommendations with a rotating set
// of student profiles and reports throughput, latency percentiles and how
// often the service returned no recommendations. With -max-p99 it exits
// non-zero when the tail latency budget is missed, for use in CI.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/Rajat083/Internship-Recommender/internal/recommend"
	"golang.org/x/sync/errgroup"
)

type Config struct {
	BaseURL     string
	Concurrency int
	Duration    time.Duration
	TopK        int
	// RPS caps the combined request rate; zero sends as fast as the
	// workers can.
	RPS      int
	Students []recommend.StudentDetails
}

var defaultStudents = []recommend.StudentDetails{
	{Name: "Asha", Domain: "Data Science", Skills: []string{"Python", "Pandas", "SQL"}},
	{Name: "Ravi", Domain: "Web Development", Skills: []string{"JavaScript", "React", "Node.js"}},
	{Name: "Meera", Domain: "Machine Learning", Skills: []string{"Python", "TensorFlow", "Deep Learning"}},
	{Name: "Karan", Domain: "Backend", Skills: []string{"Java", "Spring Boot", "PostgreSQL"}},
	{Name: "Neha", Domain: "Finance", Skills: []string{"Excel", "Financial Modeling", "Accounting"}},
	{Name: "Arjun", Domain: "Cloud", Skills: []string{"AWS", "Docker", "Kubernetes"}},
	{Name: "Isha", Domain: "Design", Skills: []string{"Figma", "UI/UX", "Prototyping"}},
	{Name: "Vikram", Domain: "Marketing", Skills: []string{"SEO", "Content Writing", "Analytics"}},
	{Name: "Priya", Domain: "Mobile Development", Skills: []string{"Kotlin", "Android", "Firebase"}},
	{Name: "Dev", Domain: "Security", Skills: []string{"Networking", "Linux", "Penetration Testing"}},
}

type sample struct {
	latency  time.Duration
	status   int
	returned int
	failed   bool
}

// Recorder collects one sample per completed request.
type Recorder struct {
	mu      sync.Mutex
	samples []sample
}

// Record adds a request outcome. A transport error or a non-2xx status
// counts as a failure; returned is only meaningful for successes.
func (r *Recorder) Record(latency time.Duration, status, returned int, err error) {
	s := sample{latency: latency, status: status, returned: returned}
	s.failed = err != nil || status < 200 || status > 299
	r.mu.Lock()
	r.samples = append(r.samples, s)
	r.mu.Unlock()
}

// Summary is the load test outcome, printable or JSON-encodable.
type Summary struct {
	Requests      int           `json:"requests"`
	Succeeded     int           `json:"succeeded"`
	Failed        int           `json:"failed"`
	Empty         int           `json:"empty_results"`
	AvgReturned   float64       `json:"avg_returned"`
	RequestsPerS  float64       `json:"requests_per_second"`
	Min           time.Duration `json:"min_ns"`
	Mean          time.Duration `json:"mean_ns"`
	StdDev        time.Duration `json:"stddev_ns"`
	P50           time.Duration `json:"p50_ns"`
	P90           time.Duration `json:"p90_ns"`
	P95           time.Duration `json:"p95_ns"`
	P99           time.Duration `json:"p99_ns"`
	Max           time.Duration `json:"max_ns"`
	StatusCounts  map[int]int   `json:"status_counts"`
	TransportErrs int           `json:"transport_errors"`
}

func (r *Recorder) Summary(elapsed time.Duration) Summary {
	r.mu.Lock()
	samples := slices.Clone(r.samples)
	r.mu.Unlock()

	sum := Summary{Requests: len(samples), StatusCounts: make(map[int]int)}
	var returned int
	latencies := make([]time.Duration, 0, len(samples))
	for _, s := range samples {
		if s.status == 0 {
			sum.TransportErrs++
		} else {
			sum.StatusCounts[s.status]++
			latencies = append(latencies, s.latency)
		}
		if s.failed {
			sum.Failed++
			continue
		}
		sum.Succeeded++
		returned += s.returned
		if s.returned == 0 {
			sum.Empty++
		}
	}
	if sum.Succeeded > 0 {
		sum.AvgReturned = float64(returned) / float64(sum.Succeeded)
	}
	if elapsed > 0 {
		sum.RequestsPerS = float64(sum.Requests) / elapsed.Seconds()
	}
	if len(latencies) > 0 {
		slices.Sort(latencies)
		sum.Min, sum.Max = latencies[0], latencies[len(latencies)-1]
		sum.Mean, sum.StdDev = meanStdDev(latencies)
		sum.P50 = percentile(latencies, 50)
		sum.P90 = percentile(latencies, 90)
		sum.P95 = percentile(latencies, 95)
		sum.P99 = percentile(latencies, 99)
	}
	return sum
}

func main() {
	cfg := Config{Students: defaultStudents}
	flag.StringVar(&cfg.BaseURL, "url", "http://localhost:8000", "base URL of the recommender service")
	flag.IntVar(&cfg.Concurrency, "concurrency", 10, "number of concurrent workers")
	flag.DurationVar(&cfg.Duration, "duration", 30*time.Second, "test duration")
	flag.IntVar(&cfg.TopK, "top-k", 5, "recommendations requested per call")
	flag.IntVar(&cfg.RPS, "rps", 0, "target requests per second across all workers (0 = unthrottled)")
	maxP99 := flag.Duration("max-p99", 0, "fail when p99 latency exceeds this (0 = no check)")
	asJSON := flag.Bool("json", false, "print the summary as JSON")
	flag.Parse()

	if !*asJSON {
		fmt.Printf("load testing %s: %d workers for %s, top_k=%d, %d profiles\n",
			cfg.BaseURL, cfg.Concurrency, cfg.Duration, cfg.TopK, len(cfg.Students))
	}
	start := time.Now()
	rec := runLoadTest(cfg)
	sum := rec.Summary(time.Since(start))

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		enc.Encode(sum)
	} else {
		printReport(os.Stdout, sum)
	}
	if err := check(sum, *maxP99); err != nil {
		fmt.Fprintln(os.Stderr, "FAIL:", err)
		os.Exit(1)
	}
}

// check applies the pass criteria: at least one request answered, and p99
// within budget when one is set.
func check(sum Summary, maxP99 time.Duration) error {
	if sum.Requests == 0 || sum.Requests == sum.TransportErrs {
		return fmt.Errorf("no responses received; is the service running?")
	}
	if maxP99 > 0 && sum.P99 > maxP99 {
		return fmt.Errorf("p99 %s exceeds budget %s", sum.P99, maxP99)
	}
	return nil
}

func runLoadTest(cfg Config) *Recorder {
	rec := &Recorder{}
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConnsPerHost: cfg.Concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}
	bodies := make([][]byte, len(cfg.Students))
	for i, s := range cfg.Students {
		bodies[i], _ = json.Marshal(s)
	}
	endpoint := fmt.Sprintf("%s/api/v1/recommendations?top_k=%d", cfg.BaseURL, cfg.TopK)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	var pace <-chan time.Time
	if cfg.RPS > 0 {
		t := time.NewTicker(time.Second / time.Duration(cfg.RPS))
		defer t.Stop()
		pace = t.C
	}

	var g errgroup.Group
	for w := range cfg.Concurrency {
		g.Go(func() error {
			for i := w; ; i++ {
				if pace != nil {
					select {
					case <-pace:
					case <-ctx.Done():
						return nil
					}
				}
				if ctx.Err() != nil {
					return nil
				}
				start := time.Now()
				status, returned, err := recommendOnce(ctx, client, endpoint, bodies[i%len(bodies)])
				if ctx.Err() != nil {
					return nil
				}
				rec.Record(time.Since(start), status, returned, err)
			}
		})
	}
	g.Wait()
	return rec
}

func recommendOnce(ctx context.Context, client *http.Client, endpoint string, body []byte) (status, returned int, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return 0, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, 0, nil
	}
	var out recommend.StudentRecommendation
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return resp.StatusCode, 0, fmt.Errorf("decoding response: %w", err)
	}
	return resp.StatusCode, len(out.Recommendations), nil
}

func printReport(w io.Writer, s Summary) {
	fmt.Fprintf(w, "\nrequests   %d (%.1f/s)\n", s.Requests, s.RequestsPerS)
	fmt.Fprintf(w, "succeeded  %d\n", s.Succeeded)
	fmt.Fprintf(w, "failed     %d (%d transport errors)\n", s.Failed, s.TransportErrs)
	fmt.Fprintf(w, "empty      %d\n", s.Empty)
	fmt.Fprintf(w, "returned   %.2f per success\n", s.AvgReturned)
	if s.Max > 0 {
		fmt.Fprintf(w, "\nlatency    min %s  mean %s  stddev %s\n", s.Min, s.Mean, s.StdDev)
		fmt.Fprintf(w, "           p50 %s  p90 %s  p95 %s  p99 %s  max %s\n", s.P50, s.P90, s.P95, s.P99, s.Max)
	}
	codes := make([]int, 0, len(s.StatusCounts))
	for code := range s.StatusCounts {
		codes = append(codes, code)
	}
	slices.Sort(codes)
	fmt.Fprintln(w)
	for _, code := range codes {
		fmt.Fprintf(w, "HTTP %d     %d\n", code, s.StatusCounts[code])
	}
}

func meanStdDev(latencies []time.Duration) (time.Duration, time.Duration) {
	var sum float64
	for _, l := range latencies {
		sum += float64(l)
	}
	mean := sum / float64(len(latencies))
	var sq float64
	for _, l := range latencies {
		d := float64(l) - mean
		sq += d * d
	}
	return time.Duration(mean), time.Duration(math.Sqrt(sq / float64(len(latencies))))
}

// percentile uses the nearest-rank method on sorted.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	return sorted[max(0, min(idx, len(sorted)-1))]
}
