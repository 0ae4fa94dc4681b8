package integration

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/oculairmedia/Claudecode-graphiti-hook/pkg/models"
)

func testConfig(url string) models.GraphitiConfig {
	return models.GraphitiConfig{
		URL:          url,
		Timeout:      2 * time.Second,
		GroupID:      "claude_conversations",
		MaxRetries:   2,
		RetryBackoff: time.Millisecond,
	}
}

func testMessage() models.Message {
	return models.Message{
		Content:           "Claude read file: /a/b.py",
		RoleType:          "system",
		Role:              "claude_code",
		Name:              "Claude_Read_2025-01-15T10:00:00Z",
		SourceDescription: "Claude Code conversation",
		Timestamp:         time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC),
	}
}

func TestGraphitiClient_SubmitDelivered(t *testing.T) {
	var got messagesRequest
	var gotPath, gotRequestID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotRequestID = r.Header.Get("X-Request-ID")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decoding body: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	out := NewGraphitiClient(testConfig(srv.URL)).Submit(context.Background(), testMessage())

	if !out.Delivered() {
		t.Fatalf("expected delivered, got %+v", out)
	}
	if out.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", out.Attempts)
	}
	if gotPath != "/messages" {
		t.Errorf("path = %s, want /messages", gotPath)
	}
	if gotRequestID == "" {
		t.Error("expected X-Request-ID header")
	}
	if got.GroupID != "claude_conversations" {
		t.Errorf("group_id = %s", got.GroupID)
	}
	if len(got.Messages) != 1 {
		t.Fatalf("expected one message, got %d", len(got.Messages))
	}
	m := got.Messages[0]
	if m.Content != "Claude read file: /a/b.py" || m.RoleType != "system" || m.Role != "claude_code" {
		t.Errorf("unexpected wire message: %+v", m)
	}
	if m.Timestamp != "2025-01-15T10:00:00Z" {
		t.Errorf("timestamp = %s", m.Timestamp)
	}
}

func TestGraphitiClient_RejectedIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad payload", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	out := NewGraphitiClient(testConfig(srv.URL)).Submit(context.Background(), testMessage())

	if out.Status != models.OutcomeRejected {
		t.Fatalf("expected rejected, got %+v", out)
	}
	if calls.Load() != 1 || out.Attempts != 1 {
		t.Errorf("expected a single attempt, calls=%d attempts=%d", calls.Load(), out.Attempts)
	}
	if out.StatusCode != http.StatusUnprocessableEntity || !strings.Contains(out.Reason, "bad payload") {
		t.Errorf("unexpected outcome: %+v", out)
	}
}

func TestGraphitiClient_ServerErrorRetriedThenUnreachable(t *testing.T) {
	var calls atomic.Int32
	var mu sync.Mutex
	ids := map[string]bool{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		mu.Lock()
		ids[r.Header.Get("X-Request-ID")] = true
		mu.Unlock()
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	out := NewGraphitiClient(testConfig(srv.URL)).Submit(context.Background(), testMessage())

	if out.Status != models.OutcomeUnreachable {
		t.Fatalf("expected unreachable, got %+v", out)
	}
	if calls.Load() != 3 || out.Attempts != 3 {
		t.Errorf("expected 3 attempts, calls=%d attempts=%d", calls.Load(), out.Attempts)
	}
	if len(ids) != 1 {
		t.Errorf("X-Request-ID should be constant across retries, saw %d ids", len(ids))
	}
}

func TestGraphitiClient_RecoversAfterTransientFailure(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	out := NewGraphitiClient(testConfig(srv.URL)).Submit(context.Background(), testMessage())
	if !out.Delivered() || out.Attempts != 2 {
		t.Fatalf("expected delivery on second attempt, got %+v", out)
	}
}

func TestGraphitiClient_TimeoutIsUnreachableAndBounded(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	tests := []struct {
		name    string
		backoff time.Duration
	}{
		{"short backoff", time.Millisecond},
		// Backoff waits alone would overrun timeout x (max_retries+1).
		{"long backoff", 500 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(srv.URL)
			cfg.Timeout = 100 * time.Millisecond
			cfg.MaxRetries = 2
			cfg.RetryBackoff = tt.backoff
			bound := cfg.Timeout * time.Duration(cfg.MaxRetries+1)

			start := time.Now()
			out := NewGraphitiClient(cfg).Submit(context.Background(), testMessage())
			elapsed := time.Since(start)

			if out.Status != models.OutcomeUnreachable {
				t.Fatalf("expected unreachable, got %+v", out)
			}
			if out.Attempts < 1 || out.Attempts > cfg.MaxRetries+1 {
				t.Errorf("Attempts = %d, want 1..%d", out.Attempts, cfg.MaxRetries+1)
			}
			if elapsed > bound+150*time.Millisecond {
				t.Errorf("submission took %v, want at most %v", elapsed, bound)
			}
		})
	}
}

func TestGraphitiClient_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	cfg := testConfig(url)
	cfg.MaxRetries = 0
	out := NewGraphitiClient(cfg).Submit(context.Background(), testMessage())
	if out.Status != models.OutcomeUnreachable || out.Attempts != 1 {
		t.Fatalf("expected a single unreachable attempt, got %+v", out)
	}
}

func TestGraphitiClient_FallbackEndpoint(t *testing.T) {
	var gotAlt addMemoryRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/messages":
			w.WriteHeader(http.StatusNotFound)
		case "/add-memory":
			_ = json.NewDecoder(r.Body).Decode(&gotAlt)
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.FallbackEndpoint = true
	out := NewGraphitiClient(cfg).Submit(context.Background(), testMessage())

	if !out.Delivered() {
		t.Fatalf("expected fallback delivery, got %+v", out)
	}
	if out.Attempts != 2 || !strings.HasSuffix(out.Endpoint, "/add-memory") {
		t.Errorf("unexpected outcome: %+v", out)
	}
	if len(gotAlt.Messages) != 1 || gotAlt.Messages[0].Metadata.AgentID != "claude_conversations" {
		t.Errorf("unexpected add-memory body: %+v", gotAlt)
	}

	cfg.FallbackEndpoint = false
	out = NewGraphitiClient(cfg).Submit(context.Background(), testMessage())
	if out.Status != models.OutcomeRejected || out.Attempts != 1 {
		t.Errorf("fallback disabled should reject, got %+v", out)
	}
}

func TestGraphitiClient_FallbackCountsAgainstRetries(t *testing.T) {
	var altCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/add-memory" {
			altCalls.Add(1)
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusMethodNotAllowed)
	}))
	defer srv.Close()

	tests := []struct {
		maxRetries   int
		wantStatus   models.OutcomeStatus
		wantAttempts int
		wantAlt      int32
	}{
		{0, models.OutcomeRejected, 1, 0},
		{1, models.OutcomeDelivered, 2, 1},
	}
	for _, tt := range tests {
		altCalls.Store(0)
		cfg := testConfig(srv.URL)
		cfg.FallbackEndpoint = true
		cfg.MaxRetries = tt.maxRetries

		out := NewGraphitiClient(cfg).Submit(context.Background(), testMessage())
		if out.Status != tt.wantStatus || out.Attempts != tt.wantAttempts {
			t.Errorf("max_retries=%d: got %s after %d attempt(s), want %s after %d",
				tt.maxRetries, out.Status, out.Attempts, tt.wantStatus, tt.wantAttempts)
		}
		if out.Attempts > tt.maxRetries+1 {
			t.Errorf("max_retries=%d: %d attempts exceed the configured maximum", tt.maxRetries, out.Attempts)
		}
		if altCalls.Load() != tt.wantAlt {
			t.Errorf("max_retries=%d: /add-memory called %d times, want %d", tt.maxRetries, altCalls.Load(), tt.wantAlt)
		}
	}
}

func TestGraphitiClient_ZstdCompression(t *testing.T) {
	var encoding string
	var decoded messagesRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		encoding = r.Header.Get("Content-Encoding")
		raw, _ := io.ReadAll(r.Body)
		if encoding == "zstd" {
			dec, _ := zstd.NewReader(nil)
			defer dec.Close()
			var err error
			raw, err = dec.DecodeAll(raw, nil)
			if err != nil {
				t.Errorf("decompressing: %v", err)
			}
		}
		_ = json.Unmarshal(raw, &decoded)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.Compression = "zstd"
	msg := testMessage()
	msg.Content = strings.Repeat("Claude modified file: /src/main.go\n", 60)

	out := NewGraphitiClient(cfg).Submit(context.Background(), msg)
	if !out.Delivered() {
		t.Fatalf("expected delivered, got %+v", out)
	}
	if encoding != "zstd" {
		t.Errorf("Content-Encoding = %q, want zstd", encoding)
	}
	if len(decoded.Messages) != 1 || decoded.Messages[0].Content != msg.Content {
		t.Error("compressed body did not round-trip")
	}

	// Small payloads stay uncompressed.
	out = NewGraphitiClient(cfg).Submit(context.Background(), testMessage())
	if !out.Delivered() || encoding != "" {
		t.Errorf("small payload should not be compressed, encoding=%q", encoding)
	}
}

func TestGraphitiClient_Search(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req searchRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if len(req.GroupIDs) != 1 || req.GroupIDs[0] != "claude_conversations" {
			t.Errorf("unexpected group ids: %v", req.GroupIDs)
		}
		switch r.URL.Path {
		case "/search/nodes":
			_, _ = w.Write([]byte(`{"nodes":[{"uuid":"n1","name":"auth service","summary":"Handles login"}]}`))
		case "/search":
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	res, err := NewGraphitiClient(testConfig(srv.URL)).Search(context.Background(), "auth", 3, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Nodes) != 1 || res.Nodes[0].Name != "auth service" {
		t.Errorf("unexpected nodes: %+v", res.Nodes)
	}
	if len(res.Facts) != 0 {
		t.Errorf("failed fact search should yield no facts, got %+v", res.Facts)
	}
}

func TestGraphitiClient_SearchBothFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	if _, err := NewGraphitiClient(testConfig(srv.URL)).Search(context.Background(), "x", 0, 0); err == nil {
		t.Fatal("expected error when both searches fail")
	}
}
