package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Sternrassler/catproxy/internal/testutil"
	"github.com/Sternrassler/catproxy/pkg/catapi"
	"github.com/Sternrassler/catproxy/pkg/pagination"
	"github.com/rs/zerolog"
)

type fakeImages struct {
	image catapi.Image
	err   error
}

func (f *fakeImages) RandomImage(ctx context.Context) (catapi.Image, error) {
	return f.image, f.err
}

type fakeBatch struct {
	images  []catapi.Image
	err     error
	gotRaw  string
	callCnt int
}

func (f *fakeBatch) FetchLimit(ctx context.Context, rawLimit string) ([]catapi.Image, error) {
	f.callCnt++
	f.gotRaw = rawLimit
	return f.images, f.err
}

func doRequest(t *testing.T, h http.Handler, method, target string, header map[string]string) (*http.Response, string) {
	t.Helper()

	req := httptest.NewRequest(method, target, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	resp := w.Result()
	body, _ := io.ReadAll(resp.Body)
	return resp, string(body)
}

func TestHealthEndpoint(t *testing.T) {
	s := New(&fakeImages{}, &fakeBatch{}, zerolog.Nop())

	resp, body := doRequest(t, s.Handler(), "GET", "/health", nil)

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	if body != "OK" {
		t.Errorf("Expected body 'OK', got %s", body)
	}
}

func TestCreateCat(t *testing.T) {
	s := New(&fakeImages{}, &fakeBatch{}, zerolog.Nop())

	resp, body := doRequest(t, s.Handler(), "POST", "/cats", nil)

	if resp.StatusCode != http.StatusCreated {
		t.Errorf("Expected status 201, got %d", resp.StatusCode)
	}
	if body != CatAddedMessage {
		t.Errorf("Expected %q, got %q", CatAddedMessage, body)
	}
}

func TestGetCatImage(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		s := New(&fakeImages{image: catapi.Image{URL: "https://cdn2.thecatapi.com/images/abc.jpg"}}, &fakeBatch{}, zerolog.Nop())

		resp, body := doRequest(t, s.Handler(), "GET", "/cats", nil)

		if resp.StatusCode != http.StatusOK {
			t.Errorf("Expected status 200, got %d", resp.StatusCode)
		}
		if body != `<img src="https://cdn2.thecatapi.com/images/abc.jpg"/>` {
			t.Errorf("Unexpected body %q", body)
		}
	})

	t.Run("upstream_error", func(t *testing.T) {
		s := New(&fakeImages{err: catapi.ErrNoImages}, &fakeBatch{}, zerolog.Nop())

		resp, body := doRequest(t, s.Handler(), "GET", "/cats", nil)

		if resp.StatusCode != http.StatusBadGateway {
			t.Errorf("Expected status 502, got %d", resp.StatusCode)
		}
		if body != DefaultErrorMessage {
			t.Errorf("Expected default error, got %q", body)
		}
	})
}

func TestGetManyImages(t *testing.T) {
	images := []catapi.Image{{URL: "a.jpg"}, {URL: "b.jpg"}}

	tests := []struct {
		name       string
		target     string
		batch      *fakeBatch
		wantStatus int
		wantBody   string
	}{
		{
			name:       "success",
			target:     "/cats/count?limit=2",
			batch:      &fakeBatch{images: images},
			wantStatus: http.StatusOK,
			wantBody:   `<img src="a.jpg"/><br><img src="b.jpg"/>`,
		},
		{
			name:       "empty",
			target:     "/cats/count?limit=0",
			batch:      &fakeBatch{images: []catapi.Image{}},
			wantStatus: http.StatusOK,
			wantBody:   "",
		},
		{
			name:       "missing_limit",
			target:     "/cats/count",
			batch:      &fakeBatch{err: pagination.ErrMissingLimit},
			wantStatus: http.StatusBadRequest,
			wantBody:   MissingLimitMessage,
		},
		{
			name:       "invalid_limit",
			target:     "/cats/count?limit=abc",
			batch:      &fakeBatch{err: pagination.ErrInvalidLimit},
			wantStatus: http.StatusBadRequest,
			wantBody:   InvalidLimitMessage,
		},
		{
			name:       "upstream_error",
			target:     "/cats/count?limit=15",
			batch:      &fakeBatch{err: &pagination.PageError{Page: 2, Err: errors.New("boom")}},
			wantStatus: http.StatusBadGateway,
			wantBody:   DefaultErrorMessage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(&fakeImages{}, tt.batch, zerolog.Nop())

			resp, body := doRequest(t, s.Handler(), "GET", tt.target, nil)

			if resp.StatusCode != tt.wantStatus {
				t.Errorf("Expected status %d, got %d", tt.wantStatus, resp.StatusCode)
			}
			if body != tt.wantBody {
				t.Errorf("Body = %q, want %q", body, tt.wantBody)
			}
			if tt.batch.callCnt != 1 {
				t.Errorf("Expected one batch call, got %d", tt.batch.callCnt)
			}
		})
	}
}

func TestGetManyImages_PassesRawLimit(t *testing.T) {
	batch := &fakeBatch{images: nil}
	s := New(&fakeImages{}, batch, zerolog.Nop())

	doRequest(t, s.Handler(), "GET", "/cats/count?limit=1e2", nil)

	if batch.gotRaw != "1e2" {
		t.Errorf("Expected raw limit 1e2, got %q", batch.gotRaw)
	}
}

func TestGetManyImages_JSON(t *testing.T) {
	batch := &fakeBatch{images: []catapi.Image{{ID: "x", URL: "a.jpg", Width: 10}}}
	s := New(&fakeImages{}, batch, zerolog.Nop())

	resp, body := doRequest(t, s.Handler(), "GET", "/cats/count?limit=1", map[string]string{
		"Accept": "application/json",
	})

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var got []map[string]any
	if err := json.Unmarshal([]byte(body), &got); err != nil {
		t.Fatalf("Invalid JSON %q: %v", body, err)
	}
	if len(got) != 1 || got[0]["url"] != "a.jpg" || len(got[0]) != 1 {
		t.Errorf("Unexpected JSON %v", got)
	}
}

func TestRenderImages_EscapesURL(t *testing.T) {
	got := renderImages([]catapi.Image{{URL: `x.jpg" onerror="alert(1)`}})
	want := `<img src="x.jpg&#34; onerror=&#34;alert(1)"/>`
	if got != want {
		t.Errorf("renderImages = %q, want %q", got, want)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	s := New(&fakeImages{}, &fakeBatch{}, zerolog.Nop())

	resp, _ := doRequest(t, s.Handler(), "DELETE", "/cats", nil)

	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("Expected status 405, got %d", resp.StatusCode)
	}
}

func TestRequestID(t *testing.T) {
	buf := &bytes.Buffer{}
	s := New(&fakeImages{}, &fakeBatch{}, zerolog.New(buf))

	t.Run("generated", func(t *testing.T) {
		buf.Reset()
		resp, _ := doRequest(t, s.Handler(), "GET", "/health", nil)

		id := resp.Header.Get(RequestIDHeader)
		if len(id) != 36 {
			t.Errorf("Expected UUID request id, got %q", id)
		}
		if !strings.Contains(buf.String(), id) {
			t.Errorf("Expected access log to contain request id, got %q", buf.String())
		}
	})

	t.Run("propagated", func(t *testing.T) {
		buf.Reset()
		resp, _ := doRequest(t, s.Handler(), "GET", "/health", map[string]string{
			RequestIDHeader: "abc-123",
		})

		if got := resp.Header.Get(RequestIDHeader); got != "abc-123" {
			t.Errorf("Expected request id abc-123, got %q", got)
		}
		if !strings.Contains(buf.String(), `"route":"GET /health"`) {
			t.Errorf("Expected route in access log, got %q", buf.String())
		}
	})
}

func TestMetricsEndpoint(t *testing.T) {
	s := New(&fakeImages{}, &fakeBatch{}, zerolog.Nop())

	// generate at least one sample
	doRequest(t, s.Handler(), "GET", "/health", nil)

	resp, body := doRequest(t, s.Handler(), "GET", "/metrics", nil)

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	if !strings.Contains(body, "# HELP") || !strings.Contains(body, "# TYPE") {
		t.Error("Expected Prometheus format metrics output")
	}
	if !strings.Contains(body, "catproxy_http_requests_total") {
		t.Error("Expected metrics output to contain catproxy_http_requests_total")
	}
}

func TestCountEndpoint_EndToEnd(t *testing.T) {
	mock := testutil.NewMockCatAPI()
	defer mock.Close()

	cfg := catapi.DefaultConfig()
	cfg.BaseURL = mock.URL()
	client, err := catapi.New(cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	s := New(client, pagination.NewBatchFetcher(client, pagination.DefaultConfig()), zerolog.Nop())

	t.Run("limit_15", func(t *testing.T) {
		mock.Reset()
		resp, body := doRequest(t, s.Handler(), "GET", "/cats/count?limit=15", nil)

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", resp.StatusCode)
		}
		if got := strings.Count(body, "<img "); got != 15 {
			t.Errorf("Expected 15 images, got %d", got)
		}
		if got := strings.Count(body, "<br>"); got != 14 {
			t.Errorf("Expected 14 separators, got %d", got)
		}
		if mock.GetRequestCount() != 6 {
			t.Errorf("Expected 6 upstream calls, got %d", mock.GetRequestCount())
		}
	})

	t.Run("limit_100_under_fetches", func(t *testing.T) {
		mock.Reset()
		_, body := doRequest(t, s.Handler(), "GET", "/cats/count?limit=100", nil)

		if got := strings.Count(body, "<img "); got != 10 {
			t.Errorf("Expected 10 images, got %d", got)
		}
		if mock.GetRequestCount() != 1 {
			t.Errorf("Expected 1 upstream call, got %d", mock.GetRequestCount())
		}
	})

	t.Run("missing_limit_no_calls", func(t *testing.T) {
		mock.Reset()
		_, body := doRequest(t, s.Handler(), "GET", "/cats/count", nil)

		if body != MissingLimitMessage {
			t.Errorf("Expected missing limit message, got %q", body)
		}
		if mock.GetRequestCount() != 0 {
			t.Errorf("Expected 0 upstream calls, got %d", mock.GetRequestCount())
		}
	})

	t.Run("invalid_limit_no_calls", func(t *testing.T) {
		mock.Reset()
		_, body := doRequest(t, s.Handler(), "GET", "/cats/count?limit=abc", nil)

		if body != InvalidLimitMessage {
			t.Errorf("Expected invalid limit message, got %q", body)
		}
		if mock.GetRequestCount() != 0 {
			t.Errorf("Expected 0 upstream calls, got %d", mock.GetRequestCount())
		}
	})

	t.Run("one_upstream_failure", func(t *testing.T) {
		mock.Reset()
		mock.SetResponseForRequest(2, testutil.NewServerErrorResponse())

		resp, body := doRequest(t, s.Handler(), "GET", "/cats/count?limit=13", nil)

		if resp.StatusCode != http.StatusBadGateway {
			t.Errorf("Expected status 502, got %d", resp.StatusCode)
		}
		if body != DefaultErrorMessage {
			t.Errorf("Expected default error message, got %q", body)
		}
		if mock.GetRequestCount() != 4 {
			t.Errorf("Expected 4 upstream calls, got %d", mock.GetRequestCount())
		}
	})
}

func TestServe_Shutdown(t *testing.T) {
	s := New(&fakeImages{}, &fakeBatch{}, zerolog.Nop())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.Serve(ctx, ln, time.Second)
	}()

	resp, err := http.Get("http://" + ln.Addr().String() + "/health")
	if err != nil {
		t.Fatalf("Health request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve returned error: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
