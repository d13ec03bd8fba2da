package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yanisfaquir/weatherboard/internal/models"
	"github.com/yanisfaquir/weatherboard/internal/observability"
)

func newTestClient(t *testing.T, baseURL string) *RESTClient {
	t.Helper()
	c, err := NewRESTClientWithRetry(baseURL, 2*time.Second, 3, time.Millisecond, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("NewRESTClientWithRetry: %v", err)
	}
	return c
}

func recordsJSON() []models.WeatherRecord {
	return []models.WeatherRecord{
		{ID: "1", City: "Porto", Temperature: 18, NetworkPower: 4},
		{ID: "2", City: "Lisboa", Temperature: 22, NetworkPower: 3},
	}
}

func TestNewRESTClient_RequiresBaseURL(t *testing.T) {
	if _, err := NewRESTClient("", time.Second); err == nil {
		t.Error("NewRESTClient(\"\") expected error, got nil")
	}
	if _, err := NewRESTClient("   ", time.Second); err == nil {
		t.Error("NewRESTClient with blank URL expected error, got nil")
	}
}

func TestList_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/weatherData" {
			t.Errorf("path = %q, want /weatherData", r.URL.Path)
		}
		if r.Method != http.MethodGet {
			t.Errorf("method = %q, want GET", r.Method)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(recordsJSON())
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	records, err := c.List(context.Background(), "weatherData")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(records) != 2 || records[0].City != "Porto" {
		t.Errorf("List() = %+v, want 2 records starting with Porto", records)
	}
}

func TestList_NotFoundIsTerminal(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.List(context.Background(), "weatherData")
	if !errors.Is(err, ErrResourceNotFound) {
		t.Errorf("List() error = %v, want ErrResourceNotFound", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("server hit %d times for 404, want 1 (no retry)", got)
	}
}

func TestList_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(recordsJSON())
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	records, err := c.List(context.Background(), "weatherData")
	if err != nil {
		t.Fatalf("List() error = %v, want success after retries", err)
	}
	if len(records) != 2 {
		t.Errorf("List() returned %d records, want 2", len(records))
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("server hit %d times, want 3", got)
	}
}

func TestList_ExhaustsRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.List(context.Background(), "weatherData")
	if !errors.Is(err, ErrUpstreamFailure) {
		t.Errorf("List() error = %v, want wrapped ErrUpstreamFailure", err)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("server hit %d times, want all 3 attempts", got)
	}
}

func TestList_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.List(context.Background(), "weatherData")
	if !errors.Is(err, ErrRateLimited) {
		t.Errorf("List() error = %v, want wrapped ErrRateLimited", err)
	}
}

func TestList_MalformedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("{not json"))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	if _, err := c.List(context.Background(), "weatherData"); err == nil {
		t.Error("List() expected parse error, got nil")
	}
}

func TestList_PropagatesCorrelationID(t *testing.T) {
	var gotHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("X-Correlation-ID")
		_ = json.NewEncoder(w).Encode([]models.WeatherRecord{})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	ctx := observability.WithCorrelationID(context.Background(), "corr-123")
	if _, err := c.List(ctx, "weatherData"); err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if gotHeader != "corr-123" {
		t.Errorf("X-Correlation-ID = %q, want corr-123", gotHeader)
	}
}

func TestCreate_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %q, want POST", r.Method)
		}
		var rec models.WeatherRecord
		if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
			t.Errorf("decode body: %v", err)
		}
		rec.ID = "srv_9"
		rec.CreatedAt = time.Now()
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(rec)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	created, err := c.Create(context.Background(), "weatherData", models.WeatherRecord{City: "Porto", NetworkPower: 4})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if created.ID != "srv_9" {
		t.Errorf("created.ID = %q, want srv_9", created.ID)
	}
	if created.City != "Porto" {
		t.Errorf("created.City = %q, want Porto", created.City)
	}
}

func TestCreate_NeverRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.Create(context.Background(), "weatherData", models.WeatherRecord{City: "Porto", NetworkPower: 4})
	if !errors.Is(err, ErrUpstreamFailure) {
		t.Errorf("Create() error = %v, want ErrUpstreamFailure", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("server hit %d times for failed create, want 1 (never retried)", got)
	}
}

func TestCreate_InvalidPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.Create(context.Background(), "weatherData", models.WeatherRecord{City: "Porto", NetworkPower: 4})
	if !errors.Is(err, ErrInvalidPayload) {
		t.Errorf("Create() error = %v, want ErrInvalidPayload", err)
	}
}

func TestList_ContextTimeout(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	c, err := NewRESTClientWithRetry(srv.URL, 50*time.Millisecond, 1, time.Millisecond, time.Millisecond)
	if err != nil {
		t.Fatalf("NewRESTClientWithRetry: %v", err)
	}
	if _, err := c.List(context.Background(), "weatherData"); err == nil {
		t.Error("List() expected timeout error, got nil")
	}
}
