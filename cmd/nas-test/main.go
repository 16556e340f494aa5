package main

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
)

const (
	defaultServerURL      = "http://127.0.0.1:8080"
	defaultFileSize       = 64 * 1024
	defaultMultiPassCount = 5
	defaultParallelInfo   = 10
	defaultParallelPasses = 5
	defaultHTTPTimeout    = 2 * time.Minute
	defaultRetries        = 3

	rangeStart           = 10
	rangeEnd             = 99
	separatorLineLength  = 80
	microsecondsToMillis = 1000.0
)

type config struct {
	serverURL      string
	apiKey         string
	fileSize       int
	multiPassCount int
	parallelInfo   int
	parallelPasses int
	httpTimeout    time.Duration
	retries        int
	showSummary    bool
}

type tester struct {
	cfg     config
	client  *nasClient
	metrics *metricsCollector
}

// Operation metrics.
type operationMetrics struct {
	Name     string
	Duration time.Duration
	Size     int64
	Error    error
}

// Step metrics for a complete test step.
type stepMetrics struct {
	Name       string
	StartTime  time.Time
	Duration   time.Duration
	Operations []operationMetrics
	Success    bool
	Error      error
}

type metricsCollector struct {
	mu          sync.Mutex
	steps       []stepMetrics
	currentStep *stepMetrics
	showSummary bool
	totals      map[string]int
	totalBytes  int64
}

type uploadResponse struct {
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	Checksum string `json:"checksum"`
	Path     string `json:"path"`
}

type fileInfoResponse struct {
	Path     string `json:"path"`
	Size     int64  `json:"size"`
	Checksum string `json:"checksum_sha256"`
}

type listResponse struct {
	Items []struct {
		Name string `json:"name"`
		Path string `json:"path"`
	} `json:"items"`
}

type searchResponse struct {
	Results []struct {
		Path string `json:"path"`
	} `json:"results"`
}

// statusError is returned for non-2xx responses.
type statusError struct {
	StatusCode int
	Body       string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("request returned %d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.Body)
}

// nasClient talks to the NAS API, retrying only when no response arrived.
type nasClient struct {
	baseURL    string
	apiKey     string
	httpClient *retryablehttp.Client
}

func newNASClient(cfg config) *nasClient {
	client := retryablehttp.NewClient()
	client.RetryMax = cfg.retries
	client.RetryWaitMin = 200 * time.Millisecond
	client.RetryWaitMax = 2 * time.Second
	client.HTTPClient.Timeout = cfg.httpTimeout
	client.Logger = nil
	client.CheckRetry = retryOnConnectionError

	return &nasClient{
		baseURL:    strings.TrimRight(cfg.serverURL, "/"),
		apiKey:     cfg.apiKey,
		httpClient: client,
	}
}

// retryOnConnectionError retries transport failures only. Error responses are
// returned to the caller as they are.
func retryOnConnectionError(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if resp != nil {
		return false, nil
	}
	return err != nil, nil
}

// do performs a request. body must be nil or a []byte so retries can replay it.
func (c *nasClient) do(ctx context.Context, method, path string, body []byte, headers map[string]string) (*http.Response, []byte, error) {
	var payload any
	if body != nil {
		payload = body
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return nil, nil, fmt.Errorf("create request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp, nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, respBody, &statusError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	return resp, respBody, nil
}

func (c *nasClient) doJSON(ctx context.Context, method, path string, body []byte, headers map[string]string, result any) error {
	_, respBody, err := c.do(ctx, method, path, body, headers)
	if err != nil {
		return err
	}
	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("parse response: %w", err)
		}
	}
	return nil
}

func main() {
	cfg := parseFlags()
	t := newTester(cfg)

	if err := t.run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "nas-test failed: %v\n", err)
		t.metrics.printSummary()
		os.Exit(1)
	}

	fmt.Println("\n✅ All test scenarios completed successfully")
	t.metrics.printSummary()
}

func parseFlags() config {
	server := flag.String("server", defaultServerURL, "NAS server base URL")
	apiKey := flag.String("api-key", os.Getenv("API_KEY"), "API key sent as X-API-Key")
	size := flag.Int("size", defaultFileSize, "Test file size in bytes")
	passes := flag.Int("passes", defaultMultiPassCount, "Number of sequential passes")
	parallelInfo := flag.Int("parallel-info", defaultParallelInfo, "Number of parallel info requests")
	parallelPasses := flag.Int("parallel-passes", defaultParallelPasses, "Number of concurrent full passes")
	timeout := flag.Duration("http-timeout", defaultHTTPTimeout, "HTTP client timeout")
	retries := flag.Int("retries", defaultRetries, "Retries for requests that got no response")
	noSummary := flag.Bool("no-summary", false, "Disable metrics summary")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nTest Steps:\n")
		fmt.Fprintf(os.Stderr, "  Step 1: Single pass (mkdir, upload, list, info, stream range, download, search, delete)\n")
		fmt.Fprintf(os.Stderr, "  Step 2: Multiple sequential passes\n")
		fmt.Fprintf(os.Stderr, "  Step 3: Parallel info requests with checksums\n")
		fmt.Fprintf(os.Stderr, "  Step 4: Full passes in parallel\n")
		fmt.Fprintf(os.Stderr, "\nFlags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg := config{
		serverURL:      strings.TrimRight(*server, "/"),
		apiKey:         *apiKey,
		fileSize:       *size,
		multiPassCount: *passes,
		parallelInfo:   *parallelInfo,
		parallelPasses: *parallelPasses,
		httpTimeout:    *timeout,
		retries:        *retries,
		showSummary:    !*noSummary,
	}

	if cfg.serverURL == "" {
		cfg.serverURL = defaultServerURL
	}
	if cfg.fileSize <= rangeEnd {
		fmt.Fprintf(os.Stderr, "file size must be larger than %d bytes, got %d\n", rangeEnd, cfg.fileSize)
		os.Exit(1)
	}
	if cfg.multiPassCount <= 0 {
		cfg.multiPassCount = defaultMultiPassCount
	}
	if cfg.parallelInfo <= 0 {
		cfg.parallelInfo = defaultParallelInfo
	}
	if cfg.parallelPasses <= 0 {
		cfg.parallelPasses = defaultParallelPasses
	}
	return cfg
}

func newTester(cfg config) *tester {
	return &tester{
		cfg:    cfg,
		client: newNASClient(cfg),
		metrics: &metricsCollector{
			showSummary: cfg.showSummary,
			totals:      make(map[string]int),
		},
	}
}

func (m *metricsCollector) startStep(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.currentStep = &stepMetrics{Name: name, StartTime: time.Now()}
}

func (m *metricsCollector) endStep(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.currentStep == nil {
		return
	}
	m.currentStep.Duration = time.Since(m.currentStep.StartTime)
	m.currentStep.Success = err == nil
	m.currentStep.Error = err
	m.steps = append(m.steps, *m.currentStep)
	m.currentStep = nil
}

func (m *metricsCollector) record(name string, start time.Time, size int64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.currentStep != nil {
		m.currentStep.Operations = append(m.currentStep.Operations, operationMetrics{
			Name:     name,
			Duration: time.Since(start),
			Size:     size,
			Error:    err,
		})
	}
	m.totals[name]++
	if size > 0 {
		m.totalBytes += size
	}
}

func (m *metricsCollector) printSummary() {
	if !m.showSummary {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	fmt.Println("\n" + strings.Repeat("=", separatorLineLength))
	fmt.Println("METRICS SUMMARY")
	fmt.Println(strings.Repeat("=", separatorLineLength))

	fmt.Printf("\nOverall Statistics:\n")
	names := make([]string, 0, len(m.totals))
	for name := range m.totals {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %-10s %d\n", name+":", m.totals[name])
	}
	fmt.Printf("  Total bytes: %s\n", humanize.IBytes(uint64(m.totalBytes))) //nolint:gosec // never negative

	var total time.Duration
	fmt.Printf("\nStep-by-Step Breakdown:\n")
	for _, step := range m.steps {
		total += step.Duration
		status := "✓"
		if !step.Success {
			status = "✗"
		}
		fmt.Printf("\n  %s %s (%.2fs)\n", status, step.Name, step.Duration.Seconds())

		counts := make(map[string]int)
		durations := make(map[string]time.Duration)
		for _, op := range step.Operations {
			counts[op.Name]++
			durations[op.Name] += op.Duration
		}
		for name, count := range counts {
			avg := durations[name] / time.Duration(count)
			fmt.Printf("    - %s: %d operations, avg %.3fms\n", name, count, float64(avg.Microseconds())/microsecondsToMillis)
		}
		if step.Error != nil {
			fmt.Printf("    Error: %v\n", step.Error)
		}
	}

	fmt.Printf("\nTiming Summary:\n")
	fmt.Printf("  Total execution time: %.2fs\n", total.Seconds())
	if total > 0 {
		fmt.Printf("  Average throughput:   %s/s\n", humanize.IBytes(uint64(float64(m.totalBytes)/total.Seconds())))
	}
}

type testStep struct {
	name string
	run  func(context.Context) error
}

func (t *tester) run(ctx context.Context) error {
	steps := []testStep{
		{"Step 1: Single pass", t.runSinglePass},
		{"Step 2: Sequential passes", t.runMultiPass},
		{"Step 3: Parallel info requests", t.runParallelInfo},
		{"Step 4: Parallel passes", t.runParallelPasses},
	}

	for _, step := range steps {
		fmt.Printf("\n%s\n", step.name)
		t.metrics.startStep(step.name)
		err := step.run(ctx)
		t.metrics.endStep(err)
		if err != nil {
			return fmt.Errorf("%s: %w", step.name, err)
		}
	}
	return nil
}

func (t *tester) runSinglePass(ctx context.Context) error {
	return t.performPass(ctx)
}

func (t *tester) runMultiPass(ctx context.Context) error {
	for i := 1; i <= t.cfg.multiPassCount; i++ {
		fmt.Printf("  Pass %d/%d...\n", i, t.cfg.multiPassCount)
		if err := t.performPass(ctx); err != nil {
			return fmt.Errorf("pass %d: %w", i, err)
		}
	}
	return nil
}

func (t *tester) runParallelInfo(ctx context.Context) error {
	folder, err := t.createFolder(ctx)
	if err != nil {
		return err
	}
	defer t.cleanup(ctx, folder)

	data, checksum, err := randomData(t.cfg.fileSize)
	if err != nil {
		return err
	}
	uploaded, err := t.upload(ctx, folder, "info.txt", data)
	if err != nil {
		return err
	}

	return runParallel(t.cfg.parallelInfo, func(int) error {
		return t.verifyInfo(ctx, uploaded.Path, checksum, int64(len(data)))
	})
}

func (t *tester) runParallelPasses(ctx context.Context) error {
	return runParallel(t.cfg.parallelPasses, func(int) error {
		return t.performPass(ctx)
	})
}

// performPass exercises every file endpoint inside a fresh folder and removes it.
func (t *tester) performPass(ctx context.Context) error {
	folder, err := t.createFolder(ctx)
	if err != nil {
		return err
	}
	defer t.cleanup(ctx, folder)

	data, checksum, err := randomData(t.cfg.fileSize)
	if err != nil {
		return err
	}

	name := "clip-" + uuid.NewString()[:8] + ".mp4"
	uploaded, err := t.upload(ctx, folder, name, data)
	if err != nil {
		return err
	}
	if uploaded.Checksum != checksum {
		return fmt.Errorf("upload checksum mismatch: expected %s, got %s", checksum, uploaded.Checksum)
	}

	if err := t.verifyListing(ctx, folder, name); err != nil {
		return err
	}
	if err := t.verifyInfo(ctx, uploaded.Path, checksum, int64(len(data))); err != nil {
		return err
	}
	if err := t.verifyRange(ctx, uploaded.Path, data); err != nil {
		return err
	}
	if err := t.verifyDownload(ctx, uploaded.Path, data); err != nil {
		return err
	}
	return t.verifySearch(ctx, name, uploaded.Path)
}

func randomData(size int) ([]byte, string, error) {
	data := make([]byte, size)
	if _, err := rand.Read(data); err != nil {
		return nil, "", fmt.Errorf("generate test data: %w", err)
	}
	sum := sha256.Sum256(data)
	return data, hex.EncodeToString(sum[:]), nil
}

func escapePath(rel string) string {
	return (&url.URL{Path: rel}).EscapedPath()
}

func (t *tester) createFolder(ctx context.Context) (string, error) {
	start := time.Now()
	name := "nas-test-" + uuid.NewString()

	payload, err := json.Marshal(map[string]string{"folder_path": "", "folder_name": name})
	if err != nil {
		return "", err
	}

	var resp struct {
		Path string `json:"path"`
	}
	err = t.client.doJSON(ctx, http.MethodPost, "/api/folders/create", payload,
		map[string]string{"Content-Type": "application/json"}, &resp)
	t.metrics.record("mkdir", start, 0, err)
	if err != nil {
		return "", fmt.Errorf("create folder failed: %w", err)
	}
	return resp.Path, nil
}

func (t *tester) upload(ctx context.Context, folder, name string, data []byte) (*uploadResponse, error) {
	start := time.Now()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", name)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("write form data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	var resp uploadResponse
	path := "/api/upload?path=" + url.QueryEscape(folder)
	err = t.client.doJSON(ctx, http.MethodPost, path, body.Bytes(),
		map[string]string{"Content-Type": writer.FormDataContentType()}, &resp)
	t.metrics.record("upload", start, int64(len(data)), err)
	if err != nil {
		return nil, fmt.Errorf("upload failed: %w", err)
	}
	if resp.Path == "" {
		return nil, errors.New("upload response missing path")
	}
	return &resp, nil
}

func (t *tester) verifyListing(ctx context.Context, folder, name string) error {
	start := time.Now()
	var resp listResponse
	err := t.client.doJSON(ctx, http.MethodGet, "/api/files?path="+url.QueryEscape(folder), nil, nil, &resp)
	t.metrics.record("list", start, 0, err)
	if err != nil {
		return fmt.Errorf("list failed: %w", err)
	}
	for _, item := range resp.Items {
		if item.Name == name {
			return nil
		}
	}
	return fmt.Errorf("listing of %s does not contain %s", folder, name)
}

func (t *tester) verifyInfo(ctx context.Context, rel, checksum string, size int64) error {
	start := time.Now()
	var info fileInfoResponse
	err := t.client.doJSON(ctx, http.MethodGet, "/api/file/info/"+escapePath(rel)+"?include_checksum=true", nil, nil, &info)
	if err == nil {
		switch {
		case info.Size != size:
			err = fmt.Errorf("info size mismatch: expected %d, got %d", size, info.Size)
		case !strings.EqualFold(info.Checksum, checksum):
			err = fmt.Errorf("info checksum mismatch: expected %s, got %s", checksum, info.Checksum)
		}
	}
	t.metrics.record("info", start, 0, err)
	return err
}

func (t *tester) verifyRange(ctx context.Context, rel string, data []byte) error {
	start := time.Now()
	headers := map[string]string{"Range": fmt.Sprintf("bytes=%d-%d", rangeStart, rangeEnd)}
	resp, body, err := t.client.do(ctx, http.MethodGet, "/api/stream/"+escapePath(rel), nil, headers)
	if err == nil {
		want := fmt.Sprintf("bytes %d-%d/%d", rangeStart, rangeEnd, len(data))
		switch {
		case resp.StatusCode != http.StatusPartialContent:
			err = fmt.Errorf("range status: expected 206, got %d", resp.StatusCode)
		case resp.Header.Get("Content-Range") != want:
			err = fmt.Errorf("content range: expected %q, got %q", want, resp.Header.Get("Content-Range"))
		case !bytes.Equal(body, data[rangeStart:rangeEnd+1]):
			err = errors.New("range data mismatch")
		}
	}
	t.metrics.record("stream", start, int64(len(body)), err)
	return err
}

func (t *tester) verifyDownload(ctx context.Context, rel string, expected []byte) error {
	start := time.Now()
	_, body, err := t.client.do(ctx, http.MethodGet, "/api/download?path="+url.QueryEscape(rel), nil, nil)
	if err == nil && !bytes.Equal(body, expected) {
		err = errors.New("downloaded data mismatch")
	}
	t.metrics.record("download", start, int64(len(body)), err)
	return err
}

func (t *tester) verifySearch(ctx context.Context, name, rel string) error {
	start := time.Now()
	var resp searchResponse
	err := t.client.doJSON(ctx, http.MethodGet, "/api/search?limit=0&q="+url.QueryEscape(name), nil, nil, &resp)
	if err == nil {
		found := false
		for _, hit := range resp.Results {
			found = found || hit.Path == rel
		}
		if !found {
			err = fmt.Errorf("search for %s did not return %s", name, rel)
		}
	}
	t.metrics.record("search", start, 0, err)
	return err
}

func (t *tester) cleanup(ctx context.Context, folder string) {
	start := time.Now()
	_, _, err := t.client.do(ctx, http.MethodDelete, "/api/delete/"+escapePath(folder)+"?force=true", nil, nil)
	t.metrics.record("delete", start, 0, err)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to clean up %s: %v\n", folder, err)
	}
}

func runParallel(count int, function func(int) error) error {
	var waitGroup sync.WaitGroup
	errCh := make(chan error, count)

	for index := range count {
		waitGroup.Add(1)
		go func(idx int) {
			defer waitGroup.Done()
			if err := function(idx); err != nil {
				errCh <- err
			}
		}(index)
	}

	waitGroup.Wait()
	close(errCh)

	for err := range errCh {
		if err != nil {
			return err
		}
	}
	return nil
}
