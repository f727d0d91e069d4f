// Package testutil provides testing utilities for the cat API proxy.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"
)

// MockResponse defines the behavior for a single mock search response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockCatAPI is a configurable mock of the cat image search API.
//
// By default every GET /images/search returns `limit` images (1 when the
// parameter is absent) with URLs numbered across the server's lifetime.
type MockCatAPI struct {
	server *httptest.Server
	mu     sync.Mutex

	// scripted responses by 1-based request number
	scripted map[int]MockResponse
	fallback *MockResponse
	served   int

	requestCount int
	lastQuery    string
	lastHeader   http.Header
}

// NewMockCatAPI creates and starts a new mock server.
func NewMockCatAPI() *MockCatAPI {
	mock := &MockCatAPI{
		scripted: make(map[int]MockResponse),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/images/search" || r.Method != http.MethodGet {
			http.NotFound(w, r)
			return
		}

		mock.mu.Lock()
		mock.requestCount++
		n := mock.requestCount
		mock.lastQuery = r.URL.RawQuery
		mock.lastHeader = r.Header.Clone()
		resp, scripted := mock.scripted[n]
		if !scripted && mock.fallback != nil {
			resp, scripted = *mock.fallback, true
		}
		mock.mu.Unlock()

		if scripted {
			writeResponse(w, resp)
			return
		}

		mock.defaultHandler(w, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockCatAPI) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockCatAPI) Close() {
	m.server.Close()
}

// Reset clears tracking counters and scripted responses.
func (m *MockCatAPI) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripted = make(map[int]MockResponse)
	m.fallback = nil
	m.served = 0
	m.requestCount = 0
	m.lastQuery = ""
	m.lastHeader = nil
}

// SetResponseForRequest scripts the response for the n-th request (1-based).
func (m *MockCatAPI) SetResponseForRequest(n int, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripted[n] = resp
}

// SetResponse scripts the response for every request without a per-request script.
func (m *MockCatAPI) SetResponse(resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = &resp
}

// GetRequestCount returns the number of search requests made to the server.
func (m *MockCatAPI) GetRequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requestCount
}

// LastQuery returns the raw query string of the most recent request.
func (m *MockCatAPI) LastQuery() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastQuery
}

// LastHeader returns the headers of the most recent request.
func (m *MockCatAPI) LastHeader() http.Header {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastHeader
}

// defaultHandler serves `limit` numbered images.
func (m *MockCatAPI) defaultHandler(w http.ResponseWriter, r *http.Request) {
	limit := 1
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	m.mu.Lock()
	start := m.served
	m.served += limit
	m.mu.Unlock()

	images := make([]map[string]any, 0, limit)
	for i := 0; i < limit; i++ {
		images = append(images, map[string]any{
			"id":     fmt.Sprintf("cat%d", start+i),
			"url":    CatURL(start + i),
			"width":  640,
			"height": 480,
		})
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(images)
}

func writeResponse(w http.ResponseWriter, resp MockResponse) {
	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		_, _ = w.Write([]byte(resp.Body))
	}
}

// CatURL is the image URL the default handler assigns to the n-th served image.
func CatURL(n int) string {
	return fmt.Sprintf("https://cdn2.thecatapi.com/images/cat%d.jpg", n)
}

// NewImagesResponse creates a 200 OK response carrying the given image URLs.
func NewImagesResponse(urls ...string) MockResponse {
	images := make([]map[string]string, 0, len(urls))
	for _, u := range urls {
		images = append(images, map[string]string{"url": u})
	}
	body, _ := json.Marshal(images)
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       string(body),
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"message": "Internal server error"}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"message": "Rate limit exceeded"}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}
