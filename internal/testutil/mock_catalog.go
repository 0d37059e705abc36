// Package testutil provides testing utilities for the game pass service.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
)

// MockResponse defines the behavior for a mock catalog endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockPass is a game pass entry as served by the catalog.
type MockPass struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	DisplayName string  `json:"displayName,omitempty"`
	Price       *int64  `json:"price"`
	ImageURL    *string `json:"imageUrl,omitempty"`
}

// MockCatalog is a configurable mock of the game catalog API.
type MockCatalog struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)

	// Tracking
	RequestCount int
	pathCounts   map[string]int
}

// NewMockCatalog creates a new mock catalog server.
func NewMockCatalog() *MockCatalog {
	mock := &MockCatalog{
		handlers:   make(map[string]func(w http.ResponseWriter, r *http.Request)),
		pathCounts: make(map[string]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.pathCounts[r.URL.Path]++
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		if exists {
			handler(w, r)
			return
		}

		mock.defaultHandler(w, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockCatalog) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockCatalog) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockCatalog) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.pathCounts = make(map[string]int)
}

// SetHandler sets a custom handler for a specific path.
func (m *MockCatalog) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a simple response for a path.
func (m *MockCatalog) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}

		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}

		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// SetGames serves the given game ID pages for a user. Page i is reached with cursor "page-i".
func (m *MockCatalog) SetGames(userID string, pages ...[]int64) {
	encoded := make([][]any, len(pages))
	for i, page := range pages {
		items := make([]any, len(page))
		for j, id := range page {
			items[j] = map[string]any{"id": id, "name": fmt.Sprintf("Game %d", id)}
		}
		encoded[i] = items
	}
	m.SetHandler(GamesPath(userID), cursorHandler(encoded))
}

// SetGamePasses serves the given pass pages for a game.
func (m *MockCatalog) SetGamePasses(gameID int64, pages ...[]MockPass) {
	encoded := make([][]any, len(pages))
	for i, page := range pages {
		items := make([]any, len(page))
		for j, pass := range page {
			items[j] = pass
		}
		encoded[i] = items
	}
	m.SetHandler(GamePassesPath(gameID), cursorHandler(encoded))
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockCatalog) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetPathCount returns the number of requests made to one path.
func (m *MockCatalog) GetPathCount(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pathCounts[path]
}

// GetPassRequestCount returns the number of requests made to any game pass listing.
func (m *MockCatalog) GetPassRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	total := 0
	for path, count := range m.pathCounts {
		if strings.HasPrefix(path, "/v1/games/") && strings.HasSuffix(path, "/game-passes") {
			total += count
		}
	}
	return total
}

// defaultHandler mimics the catalog's not-found response.
func (m *MockCatalog) defaultHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	w.Write([]byte(`{"errors":[{"code":0,"message":"NotFound"}]}`))
}

// GamesPath returns the catalog path listing a user's games.
func GamesPath(userID string) string {
	return "/v2/users/" + userID + "/games"
}

// GamePassesPath returns the catalog path listing a game's passes.
func GamePassesPath(gameID int64) string {
	return "/v1/games/" + strconv.FormatInt(gameID, 10) + "/game-passes"
}

// Price returns a pointer to v, for building MockPass literals.
func Price(v int64) *int64 {
	return &v
}

// cursorHandler serves pages keyed by the "cursor" query parameter.
func cursorHandler(pages [][]any) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		index := 0
		if cursor := r.URL.Query().Get("cursor"); cursor != "" {
			n, err := strconv.Atoi(strings.TrimPrefix(cursor, "page-"))
			if err != nil || n < 0 || n >= len(pages) {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(`{"errors":[{"code":1,"message":"Invalid cursor"}]}`))
				return
			}
			index = n
		}

		body := map[string]any{
			"previousPageCursor": nil,
			"nextPageCursor":     nil,
			"data":               []any{},
		}
		if index < len(pages) && pages[index] != nil {
			body["data"] = pages[index]
		}
		if index+1 < len(pages) {
			body["nextPageCursor"] = fmt.Sprintf("page-%d", index+1)
		}

		data, err := sonic.Marshal(body)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write(data)
	}
}

// NewHealthyResponse creates a standard 200 OK JSON response.
func NewHealthyResponse(data string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       data,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"errors":[{"code":0,"message":"InternalServerError"}]}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"errors":[{"code":0,"message":"TooManyRequests"}]}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
			"Retry-After":  "30",
		},
	}
}

// NewEmptyResponse creates a 200 OK response without a body.
func NewEmptyResponse() MockResponse {
	return MockResponse{StatusCode: http.StatusOK}
}
