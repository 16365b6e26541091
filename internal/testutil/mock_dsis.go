// Package testutil provides testing utilities for the DSIS client.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
)

// ServicePrefix is the path under which the mock serves entity data.
const ServicePrefix = "/dsl.svc/recall"

// MockDSIS is a configurable in-process DSIS data server plus token endpoint.
//
// Collections honour $skip and $top the way an OData service does: $top is a
// record count starting at $skip.
type MockDSIS struct {
	server *httptest.Server
	mu     sync.RWMutex

	handlers    map[string]http.HandlerFunc
	collections map[string][]map[string]any
	entities    map[string]map[string]any
	projects    []string

	username string
	password string
	tokenSeq int
	valid    map[string]bool

	// Tracking
	RequestCount      int
	TokenRequestCount int
	Queries           []string
	LastRequestHeader http.Header
}

// NewMockDSIS creates a mock server accepting the given credentials.
func NewMockDSIS(username, password string) *MockDSIS {
	mock := &MockDSIS{
		handlers:    make(map[string]http.HandlerFunc),
		collections: make(map[string][]map[string]any),
		entities:    make(map[string]map[string]any),
		valid:       make(map[string]bool),
		username:    username,
		password:    password,
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/token" {
			mock.tokenHandler(w, r)
			return
		}

		mock.mu.Lock()
		mock.RequestCount++
		mock.LastRequestHeader = r.Header.Clone()
		mock.Queries = append(mock.Queries, r.URL.RawQuery)
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		if exists {
			handler(w, r)
			return
		}

		if !mock.authorized(r) {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error": "invalid token"}`))
			return
		}

		mock.dataHandler(w, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockDSIS) URL() string {
	return m.server.URL
}

// BaseURL returns the service base URL to configure a client model with.
func (m *MockDSIS) BaseURL() string {
	return m.server.URL + ServicePrefix
}

// TokenURL returns the token endpoint URL.
func (m *MockDSIS) TokenURL() string {
	return m.server.URL + "/token"
}

// Close shuts down the mock server.
func (m *MockDSIS) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockDSIS) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.TokenRequestCount = 0
	m.Queries = nil
	m.LastRequestHeader = nil
}

// SetHandler overrides handling of an exact path. Overridden paths skip the
// token check.
func (m *MockDSIS) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetCollection registers the records served for project/entity.
func (m *MockDSIS) SetCollection(project, entity string, records []map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.collections[project+"/"+entity] = records
}

// SetEntity registers a single entity served by id.
func (m *MockDSIS) SetEntity(project, entity, id string, record map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entities[project+"/"+entity+"/"+id] = record
}

// SetProjects sets the project names returned by the service root.
func (m *MockDSIS) SetProjects(names ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.projects = names
}

// ExpireTokens invalidates every issued token, so the next data request
// answers 401.
func (m *MockDSIS) ExpireTokens() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.valid = make(map[string]bool)
}

// GetRequestCount returns the number of data requests made to the server.
func (m *MockDSIS) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetTokenRequestCount returns the number of token requests.
func (m *MockDSIS) GetTokenRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.TokenRequestCount
}

// GetQueries returns the raw query strings of all data requests.
func (m *MockDSIS) GetQueries() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.Queries...)
}

func (m *MockDSIS) tokenHandler(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.TokenRequestCount++
	m.mu.Unlock()

	if err := r.ParseForm(); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if r.PostForm.Get("grant_type") != "password" || r.PostForm.Get("client_id") != "dsis-data" {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": "unsupported_grant_type"}`))
		return
	}
	if r.PostForm.Get("username") != m.username || r.PostForm.Get("password") != m.password {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error": "invalid_grant"}`))
		return
	}

	m.mu.Lock()
	m.tokenSeq++
	token := fmt.Sprintf("token-%d", m.tokenSeq)
	m.valid[token] = true
	m.mu.Unlock()

	writeJSON(w, map[string]any{
		"access_token": token,
		"expires_in":   300,
		"token_type":   "Bearer",
	})
}

func (m *MockDSIS) authorized(r *http.Request) bool {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.valid[token]
}

// dataHandler serves the service root, collections and entities by id.
func (m *MockDSIS) dataHandler(w http.ResponseWriter, r *http.Request) {
	rest, ok := strings.CutPrefix(r.URL.Path, ServicePrefix)
	if !ok {
		http.NotFound(w, r)
		return
	}
	rest = strings.TrimPrefix(rest, "/")

	if rest == "" {
		m.mu.RLock()
		values := make([]map[string]any, 0, len(m.projects))
		for _, name := range m.projects {
			values = append(values, map[string]any{"ProjectName": name})
		}
		m.mu.RUnlock()
		writeJSON(w, map[string]any{"value": values})
		return
	}

	project, entityExpr, ok := strings.Cut(rest, "/")
	if !ok {
		http.NotFound(w, r)
		return
	}

	if entity, idExpr, isByID := strings.Cut(entityExpr, "('"); isByID {
		id := strings.ReplaceAll(strings.TrimSuffix(idExpr, "')"), "''", "'")
		m.mu.RLock()
		record, exists := m.entities[project+"/"+entity+"/"+id]
		m.mu.RUnlock()
		if !exists {
			http.NotFound(w, r)
			return
		}
		writeJSON(w, record)
		return
	}

	m.mu.RLock()
	records, exists := m.collections[project+"/"+entityExpr]
	m.mu.RUnlock()
	if !exists {
		http.NotFound(w, r)
		return
	}

	query := r.URL.Query()
	skip, err := queryInt(query, "$skip", 0)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	top, err := queryInt(query, "$top", len(records))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	start := min(skip, len(records))
	end := min(start+top, len(records))
	writeJSON(w, map[string]any{"value": records[start:end]})
}

// queryInt reads a non-negative integer query option, returning def when absent.
func queryInt(query url.Values, name string, def int) (int, error) {
	v := query.Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s option %q", name, v)
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(v)
}

// LogRecord builds a raw LOG record with the given ExtendedProperties string.
func LogRecord(id, extendedProperties string) map[string]any {
	return map[string]any{
		"Id":                 id,
		"ExtendedProperties": extendedProperties,
	}
}

// LogRecords builds n LOG records named STAT-1..STAT-n.
func LogRecords(n int) []map[string]any {
	records := make([]map[string]any, 0, n)
	for i := 1; i <= n; i++ {
		records = append(records, LogRecord(
			strconv.Itoa(i),
			fmt.Sprintf("NAME=STAT-%d;LOG TYPE=WIRELINE;STATION NUMBER=%d", i, i),
		))
	}
	return records
}
