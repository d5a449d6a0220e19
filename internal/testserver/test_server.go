// Package testserver runs the full HTTP stack against a private SQLite
// database for end-to-end tests.
package testserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rpggio/annotask/internal/domain/activity"
	"github.com/rpggio/annotask/internal/domain/assignment"
	"github.com/rpggio/annotask/internal/domain/catalog"
	"github.com/rpggio/annotask/internal/mcp"
	"github.com/rpggio/annotask/internal/metrics"
	"github.com/rpggio/annotask/internal/sqlite"
	"github.com/rpggio/annotask/internal/transport"
	"github.com/stretchr/testify/require"
)

type TestServer struct {
	Server   *httptest.Server
	DB       *sqlite.DB
	Engine   *assignment.Service
	Catalog  *catalog.Catalog
	Registry *prometheus.Registry
}

// New serves the REST API, /mcp and /metrics for the JSONL catalog in data.
func New(t *testing.T, data string, batchSize int) *TestServer {
	t.Helper()

	cat, err := catalog.Load(strings.NewReader(data))
	require.NoError(t, err)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := sqlite.New(dsn)
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations())

	settings := sqlite.NewSettingsRepository(db)
	_, err = settings.EnsureBatchSize(context.Background(), batchSize)
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	activitySvc := activity.NewService(sqlite.NewActivityRepository(db), nil)
	engine := assignment.NewService(sqlite.NewStore(db), settings, nil,
		assignment.WithRecordLookup(cat),
		assignment.WithMetrics(metrics.NewPrometheus(reg, "annotask")),
		assignment.WithActivityLog(activitySvc),
	)

	mcpServer := mcp.NewServer(mcp.Config{Engine: engine, Catalog: cat})
	mcpHandler := sdkmcp.NewStreamableHTTPHandler(
		func(*http.Request) *sdkmcp.Server { return mcpServer },
		nil,
	)

	router := transport.NewServer(transport.Config{
		Engine:   engine,
		Activity: activitySvc,
		Catalog:  cat,
	})
	router.Handle("/mcp", mcpHandler)
	router.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	server := httptest.NewServer(router)
	t.Cleanup(func() {
		server.Close()
		_ = db.Close()
	})

	return &TestServer{
		Server:   server,
		DB:       db,
		Engine:   engine,
		Catalog:  cat,
		Registry: reg,
	}
}

// Do sends a JSON request as username and decodes the response into out
// when out is non-nil. It returns the status code.
func (ts *TestServer) Do(t *testing.T, method, path, username string, body, out any) int {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, ts.Server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if username != "" {
		req.Header.Set(transport.UsernameHeader, username)
	}

	resp, err := ts.Server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

// Connect opens an MCP client session over streamable HTTP.
func (ts *TestServer) Connect(t *testing.T) *sdkmcp.ClientSession {
	t.Helper()

	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "testserver", Version: "0.0.1"}, nil)
	session, err := client.Connect(context.Background(), &sdkmcp.StreamableClientTransport{
		Endpoint:   ts.Server.URL + "/mcp",
		HTTPClient: ts.Server.Client(),
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })
	return session
}
