package main

import (
	"encoding/json"
	"flag"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
)

func withCLIArgs(t *testing.T, args []string, fn func()) {
	t.Helper()

	oldArgs := os.Args
	oldCommandLine := flag.CommandLine

	os.Args = append([]string{"loadtest"}, args...)
	fs := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	flag.CommandLine = fs

	defer func() {
		os.Args = oldArgs
		flag.CommandLine = oldCommandLine
	}()

	fn()
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    loadMode
		wantErr string
	}{
		{name: "checkout", input: "checkout", want: modeCheckout},
		{name: "checkout-pay", input: "checkout-pay", want: modeCheckoutPay},
		{name: "checkout-pay-cancel", input: "checkout-pay-cancel", want: modeCheckoutPayCancel},
		{name: "trims whitespace", input: " checkout ", want: modeCheckout},
		{name: "unsupported", input: "bad", wantErr: "unsupported mode"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseMode(tc.input)
			if tc.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestParseConfig_Defaults(t *testing.T) {
	withCLIArgs(t, nil, func() {
		cfg, err := parseConfig()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg.baseURL != "http://localhost:8080" {
			t.Errorf("unexpected baseURL: %s", cfg.baseURL)
		}
		if cfg.total != 400 {
			t.Errorf("unexpected total: %d", cfg.total)
		}
		if cfg.mode != modeCheckout {
			t.Errorf("unexpected mode: %s", cfg.mode)
		}
		if cfg.productID != defaultProductID {
			t.Errorf("unexpected product id: %s", cfg.productID)
		}
		if cfg.timeout != 5*time.Second {
			t.Errorf("unexpected timeout: %s", cfg.timeout)
		}
		if cfg.totalSet {
			t.Error("totalSet should be false when -total is not passed")
		}
	})
}

func TestParseConfig_Validation(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{name: "zero total", args: []string{"-total=0"}, wantErr: "total must be > 0"},
		{name: "negative concurrency", args: []string{"-concurrency=-1"}, wantErr: "concurrency must be > 0"},
		{name: "zero clients", args: []string{"-clients=0"}, wantErr: "clients must be > 0"},
		{name: "bad timeout", args: []string{"-timeout=0s"}, wantErr: "timeout must be > 0"},
		{name: "bad qty", args: []string{"-qty=0"}, wantErr: "qty must be > 0"},
		{name: "bad cancel rate", args: []string{"-cancel-rate=150"}, wantErr: "cancel-rate must be between 0 and 100"},
		{name: "empty product", args: []string{"-product-id="}, wantErr: "product-id is required"},
		{name: "empty user tag", args: []string{"-user-tag="}, wantErr: "user-tag is required"},
		{name: "bad mode", args: []string{"-mode=wat"}, wantErr: "unsupported mode"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			withCLIArgs(t, tc.args, func() {
				_, err := parseConfig()
				if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
				}
			})
		})
	}
}

func TestCollector_RecordAndReport(t *testing.T) {
	col := newCollector()

	col.record("scenario", 10*time.Millisecond, 200)
	col.record("scenario", 20*time.Millisecond, 500)
	col.record("Checkout", 5*time.Millisecond, 201)
	col.record("Checkout", 7*time.Millisecond, 409)
	col.record("Checkout", 3*time.Millisecond, 0)

	result := col.buildReport(time.Now(), 2*time.Second)

	if result.TotalScenarios != 2 {
		t.Errorf("expected 2 scenarios, got %d", result.TotalScenarios)
	}
	if result.SuccessScenarios != 1 || result.FailedScenarios != 1 {
		t.Errorf("unexpected scenario split: success=%d failed=%d", result.SuccessScenarios, result.FailedScenarios)
	}
	if result.ErrorRate != 0.5 {
		t.Errorf("expected error rate 0.5, got %f", result.ErrorRate)
	}
	if result.RPS != 1 {
		t.Errorf("expected rps 1, got %f", result.RPS)
	}

	checkoutStats, ok := result.Methods["Checkout"]
	if !ok {
		t.Fatal("expected Checkout method stats")
	}
	if checkoutStats.Calls != 3 || checkoutStats.Success != 1 || checkoutStats.Failed != 2 {
		t.Errorf("unexpected checkout stats: %+v", checkoutStats)
	}
	if checkoutStats.Codes["201"] != 1 || checkoutStats.Codes["409"] != 1 {
		t.Errorf("unexpected codes: %v", checkoutStats.Codes)
	}
	if checkoutStats.Codes["transport-error"] != 1 {
		t.Errorf("expected transport-error code, got %v", checkoutStats.Codes)
	}
}

func TestStatusLabel(t *testing.T) {
	if statusLabel(0) != "transport-error" {
		t.Errorf("unexpected label for 0: %s", statusLabel(0))
	}
	if statusLabel(404) != "404" {
		t.Errorf("unexpected label for 404: %s", statusLabel(404))
	}
}

func TestShouldCancelScenario(t *testing.T) {
	if shouldCancelScenario(5, 0) {
		t.Error("cancel rate 0 should never cancel")
	}
	if !shouldCancelScenario(5, 100) {
		t.Error("cancel rate 100 should always cancel")
	}
	if !shouldCancelScenario(10, 50) {
		t.Error("index 10 with rate 50 should cancel")
	}
	if shouldCancelScenario(60, 50) {
		t.Error("index 60 with rate 50 should not cancel")
	}
}

func TestBuildLatencySummary(t *testing.T) {
	summary := buildLatencySummary([]float64{1, 2, 3, 4, 5})

	if summary.Min != 1 || summary.Max != 5 {
		t.Errorf("unexpected min/max: %+v", summary)
	}
	if summary.Avg != 3 {
		t.Errorf("unexpected avg: %f", summary.Avg)
	}
	if summary.P50 != 3 {
		t.Errorf("unexpected p50: %f", summary.P50)
	}

	empty := buildLatencySummary(nil)
	if empty != (latencySummary{}) {
		t.Errorf("expected zero summary for empty input, got %+v", empty)
	}
}

func TestPercentile(t *testing.T) {
	sorted := []float64{10, 20, 30, 40}

	if got := percentile(sorted, 100); got != 40 {
		t.Errorf("p100 expected 40, got %f", got)
	}
	if got := percentile(sorted, 0); got != 10 {
		t.Errorf("p0 expected 10, got %f", got)
	}
	if got := percentile([]float64{7}, 95); got != 7 {
		t.Errorf("single value p95 expected 7, got %f", got)
	}
}

func TestWriteJSONReport(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.json")

	result := report{TotalScenarios: 3, SuccessScenarios: 3}
	if err := writeJSONReport(path, result); err != nil {
		t.Fatalf("writeJSONReport failed: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report failed: %v", err)
	}

	var decoded report
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("decode report failed: %v", err)
	}
	if decoded.TotalScenarios != 3 {
		t.Errorf("unexpected decoded report: %+v", decoded)
	}
}

func TestWriteJSONReport_RejectsBadPaths(t *testing.T) {
	if err := writeJSONReport(".", report{}); err == nil {
		t.Error("expected error for current directory path")
	}
	if err := writeJSONReport("../outside.json", report{}); err == nil {
		t.Error("expected error for path outside current directory")
	}
}

// newStorefrontStub поднимает httptest-сервер, имитирующий минимальный
// контракт витрины для сценариев нагрузочного теста.
func newStorefrontStub(t *testing.T, checkoutStatus int) (*httptest.Server, *int64) {
	t.Helper()

	var cancels int64
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/cart/items", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-User-Id") == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"lines":[{"product_id":"prod-1","qty":1}]}`))
	})
	mux.HandleFunc("POST /v1/checkout", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(checkoutStatus)
		_, _ = w.Write([]byte(`{"id":"order-1","number":"ORD-1","status":"pending"}`))
	})
	mux.HandleFunc("POST /v1/orders/order-1/payments", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"payment":{"id":"pay-1","status":"pending"}}`))
	})
	mux.HandleFunc("POST /v1/orders/order-1/cancel", func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt64(&cancels, 1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"order-1","status":"cancelled"}`))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, &cancels
}

func TestRunScenario_CheckoutMode(t *testing.T) {
	server, _ := newStorefrontStub(t, http.StatusCreated)

	client := resty.New().SetBaseURL(server.URL)
	cfg := config{mode: modeCheckout, productID: "prod-1", qty: 1, userTag: "load"}
	col := newCollector()

	if err := runScenario(client, cfg, 0, "run-1", col); err != nil {
		t.Fatalf("scenario failed: %v", err)
	}

	result := col.buildReport(time.Now(), time.Second)
	if result.SuccessScenarios != 1 {
		t.Errorf("expected 1 success scenario, got %+v", result)
	}
	if _, ok := result.Methods["AddCartItem"]; !ok {
		t.Error("expected AddCartItem stats")
	}
	if _, ok := result.Methods["Checkout"]; !ok {
		t.Error("expected Checkout stats")
	}
	if _, ok := result.Methods["InitiatePayment"]; ok {
		t.Error("checkout mode should not initiate payment")
	}
}

func TestRunScenario_CheckoutPayCancelMode(t *testing.T) {
	server, cancels := newStorefrontStub(t, http.StatusCreated)

	client := resty.New().SetBaseURL(server.URL)
	cfg := config{mode: modeCheckoutPayCancel, productID: "prod-1", qty: 1, userTag: "load", phone: "0700123456"}
	col := newCollector()

	if err := runScenario(client, cfg, 0, "run-2", col); err != nil {
		t.Fatalf("scenario failed: %v", err)
	}

	if atomic.LoadInt64(cancels) != 1 {
		t.Errorf("expected 1 cancel call, got %d", atomic.LoadInt64(cancels))
	}

	result := col.buildReport(time.Now(), time.Second)
	for _, method := range []string{"AddCartItem", "Checkout", "InitiatePayment", "CancelOrder"} {
		if _, ok := result.Methods[method]; !ok {
			t.Errorf("expected %s stats", method)
		}
	}
}

func TestRunScenario_CheckoutFailureIsReported(t *testing.T) {
	server, _ := newStorefrontStub(t, http.StatusConflict)

	client := resty.New().SetBaseURL(server.URL)
	cfg := config{mode: modeCheckout, productID: "prod-1", qty: 1, userTag: "load"}
	col := newCollector()

	err := runScenario(client, cfg, 0, "run-3", col)
	if err == nil || !strings.Contains(err.Error(), "unexpected status 409") {
		t.Fatalf("expected checkout status error, got %v", err)
	}

	result := col.buildReport(time.Now(), time.Second)
	if result.FailedScenarios != 1 {
		t.Errorf("expected 1 failed scenario, got %+v", result)
	}
}

func TestDispatchJobs_CountMode(t *testing.T) {
	jobs := make(chan int, 16)
	dispatchJobs(jobs, config{total: 5})

	var got []int
	for id := range jobs {
		got = append(got, id)
	}
	if len(got) != 5 {
		t.Fatalf("expected 5 jobs, got %d", len(got))
	}
}

func TestDispatchJobs_DurationModeWithCap(t *testing.T) {
	jobs := make(chan int, 16)
	dispatchJobs(jobs, config{duration: time.Second, total: 3, totalSet: true})

	var count int
	for range jobs {
		count++
	}
	if count != 3 {
		t.Fatalf("expected 3 jobs with explicit total cap, got %d", count)
	}
}
