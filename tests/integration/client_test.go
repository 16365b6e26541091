//go:build integration

package integration

import (
	"context"
	"errors"
	"io"
	"iter"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Sternrassler/dsis-recall-client/internal/testutil"
	"github.com/Sternrassler/dsis-recall-client/pkg/auth"
	"github.com/Sternrassler/dsis-recall-client/pkg/cache"
	"github.com/Sternrassler/dsis-recall-client/pkg/client"
	"github.com/Sternrassler/dsis-recall-client/pkg/export"
	"github.com/Sternrassler/dsis-recall-client/pkg/header"
	"github.com/Sternrassler/dsis-recall-client/pkg/pagination"
	"github.com/Sternrassler/dsis-recall-client/pkg/repository"
	"github.com/klauspost/compress/gzip"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis creates a Redis container for integration testing.
func setupRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	cleanup := func() {
		redisClient.Close()
		container.Terminate(ctx)
	}

	return redisClient, cleanup
}

// testTransport redirects requests for the production service root to the
// mock server.
type testTransport struct {
	from string
	to   string
}

func (t *testTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	raw := req.URL.String()
	if strings.HasPrefix(raw, t.from) {
		u, err := url.Parse(t.to + strings.TrimPrefix(raw, t.from))
		if err != nil {
			return nil, err
		}
		req = req.Clone(req.Context())
		req.URL = u
		req.Host = u.Host
	}
	return http.DefaultTransport.RoundTrip(req)
}

// newClient builds a native-model client for the production base URL whose
// traffic is redirected to mock.
func newClient(t *testing.T, mock *testutil.MockDSIS, cacheManager *cache.Manager) *client.Client {
	t.Helper()

	provider, err := auth.NewPasswordGrant(auth.Config{
		TokenURL:    mock.TokenURL(),
		Credentials: auth.Credentials{Username: "alice", Password: "s3cret"},
	})
	if err != nil {
		t.Fatalf("Failed to create token provider: %v", err)
	}

	cfg := client.DefaultConfig(client.NativeModel(), provider)
	cfg.Cache = cacheManager
	c, err := client.New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	c.SetHTTPClient(&http.Client{
		Transport: &testTransport{from: client.DefaultNativeBaseURL, to: mock.BaseURL()},
		Timeout:   30 * time.Second,
	})
	return c
}

// TestFullExportFlow tests the complete flow: Token → Pages → Headers → CSV.
func TestFullExportFlow(t *testing.T) {
	mock := testutil.NewMockDSIS("alice", "s3cret")
	defer mock.Close()
	mock.SetCollection("NORWAY_WELLDB", "LOG", testutil.LogRecords(230))

	c := newClient(t, mock, nil)
	defer c.Close()

	repo := repository.NewDSISLogs(c, pagination.DefaultConfig())
	out := filepath.Join(t.TempDir(), "headers.csv")

	stats, err := export.NewExporter(repo, export.Config{Atomic: true}).
		Export(context.Background(), []string{"NAME", "STATION NUMBER"}, "NORWAY_WELLDB", out)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	// Windows [0,100) [100,230) [200,230) then an empty page: the widening
	// window re-reads overlapping records.
	if stats.Pages != 3 {
		t.Errorf("Pages = %d, want 3", stats.Pages)
	}
	if stats.Written != 100+130+30 {
		t.Errorf("Written = %d, want 260", stats.Written)
	}
	if mock.GetRequestCount() != 4 {
		t.Errorf("Requests = %d, want 4", mock.GetRequestCount())
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("Failed to read export: %v", err)
	}
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	if lines[0] != "NAME,STATION NUMBER" {
		t.Errorf("Header line = %q", lines[0])
	}
	if lines[1] != "STAT-1,1" {
		t.Errorf("First record = %q", lines[1])
	}
	if len(lines) != 1+stats.Written {
		t.Errorf("Lines = %d, want %d", len(lines), 1+stats.Written)
	}
}

// expiringRepo invalidates all tokens after the first page.
type expiringRepo struct {
	repository.LogRepository
	mock *testutil.MockDSIS
}

func (r *expiringRepo) HeaderPages(ctx context.Context, project string) iter.Seq2[[]header.Header, error] {
	return func(yield func([]header.Header, error) bool) {
		first := true
		for headers, err := range r.LogRepository.HeaderPages(ctx, project) {
			if !yield(headers, err) {
				return
			}
			if first {
				r.mock.ExpireTokens()
				first = false
			}
		}
	}
}

// TestTokenExpiryDuringExport refreshes the token once and keeps exporting.
func TestTokenExpiryDuringExport(t *testing.T) {
	mock := testutil.NewMockDSIS("alice", "s3cret")
	defer mock.Close()
	mock.SetCollection("NORWAY_WELLDB", "LOG", testutil.LogRecords(150))

	c := newClient(t, mock, nil)
	defer c.Close()

	repo := &expiringRepo{
		LogRepository: repository.NewDSISLogs(c, pagination.DefaultConfig()),
		mock:          mock,
	}
	out := filepath.Join(t.TempDir(), "headers.csv.gz")

	stats, err := export.NewExporter(repo, export.Config{}).
		Export(context.Background(), []string{"NAME"}, "NORWAY_WELLDB", out)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	if got := mock.GetTokenRequestCount(); got != 2 {
		t.Errorf("Token requests = %d, want 2 (initial + one refresh)", got)
	}
	// page 0, 401, page 1 retried, empty page 2
	if got := mock.GetRequestCount(); got != 4 {
		t.Errorf("Requests = %d, want 4", got)
	}
	if stats.Written != 150 {
		t.Errorf("Written = %d, want 150", stats.Written)
	}

	f, err := os.Open(out)
	if err != nil {
		t.Fatalf("Failed to open export: %v", err)
	}
	defer f.Close()
	zr, err := gzip.NewReader(f)
	if err != nil {
		t.Fatalf("Export is not gzip: %v", err)
	}
	data, err := io.ReadAll(zr)
	if err != nil {
		t.Fatalf("Failed to decompress export: %v", err)
	}
	if !strings.HasPrefix(string(data), "NAME\nSTAT-1\n") {
		t.Errorf("Export starts with %q", string(data[:min(len(data), 40)]))
	}
}

// TestCachedHeaderLookup tests Header by id through the Redis cache.
func TestCachedHeaderLookup(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	mock := testutil.NewMockDSIS("alice", "s3cret")
	defer mock.Close()
	mock.SetEntity("NORWAY_WELLDB", "LOG", "9", testutil.LogRecord("9", "NAME=STAT-9;LOG RUN=1"))

	c := newClient(t, mock, cache.NewManager(redisClient, time.Minute))
	defer c.Close()

	repo := repository.NewDSISLogs(c, pagination.DefaultConfig())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		h, err := repo.Header(ctx, "NORWAY_WELLDB", "9")
		if err != nil {
			t.Fatalf("Lookup %d failed: %v", i, err)
		}
		if h["NAME"] != "STAT-9" || h["LOG RUN"] != "1" {
			t.Errorf("Lookup %d header = %v", i, h)
		}
	}

	if mock.GetRequestCount() != 1 {
		t.Errorf("Requests = %d, want 1 (later lookups from cache)", mock.GetRequestCount())
	}
}

// TestMissingAttributeAbortsExport leaves the partial file in place.
func TestMissingAttributeAbortsExport(t *testing.T) {
	mock := testutil.NewMockDSIS("alice", "s3cret")
	defer mock.Close()
	records := testutil.LogRecords(3)
	records[1] = testutil.LogRecord("2", "LOG TYPE=WIRELINE")
	mock.SetCollection("NORWAY_WELLDB", "LOG", records)

	c := newClient(t, mock, nil)
	defer c.Close()

	repo := repository.NewDSISLogs(c, pagination.DefaultConfig())
	out := filepath.Join(t.TempDir(), "headers.csv")

	_, err := export.NewExporter(repo, export.Config{}).
		Export(context.Background(), []string{"NAME"}, "NORWAY_WELLDB", out)

	var notFound *export.AttributeNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("Expected AttributeNotFoundError, got %v", err)
	}
	if notFound.Page != 0 || notFound.Record != 1 {
		t.Errorf("Failure at page %d record %d, want page 0 record 1", notFound.Page, notFound.Record)
	}

	data, _ := os.ReadFile(out)
	if string(data) != "NAME\nSTAT-1\n" {
		t.Errorf("Partial export = %q", data)
	}
	if mock.GetRequestCount() != 1 {
		t.Errorf("Requests = %d, want 1", mock.GetRequestCount())
	}
}
