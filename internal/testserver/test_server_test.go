package testserver

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rpggio/annotask/internal/domain/activity"
	"github.com/rpggio/annotask/internal/domain/annotation"
	"github.com/rpggio/annotask/internal/export"
	"github.com/stretchr/testify/require"
)

const data = `{"id": "r1", "source_text": "Good morning", "pidgin_translation": "Gud mawnin"}
{"id": "r2", "source_text": "Thank you", "pidgin_translation": "Tank you"}
{"id": "r3", "source_text": "Come here", "pidgin_translation": "Kom hia"}
{"id": "r4", "source_text": "Go home", "pidgin_translation": "Go house"}
`

type next struct {
	Status   string                     `json:"status"`
	RecordID string                     `json:"record_id"`
	Count    int                        `json:"count"`
	Record   map[string]json.RawMessage `json:"record"`
}

type submitted struct {
	Count         int  `json:"count"`
	LimitReached  bool `json:"limit_reached"`
	BatchComplete bool `json:"batch_complete"`
}

type apiError struct {
	Error struct {
		Code string `json:"code"`
	} `json:"error"`
}

func TestEndToEnd_TwoAnnotators(t *testing.T) {
	ts := New(t, data, 2)

	var n next
	require.Equal(t, http.StatusOK, ts.Do(t, http.MethodPost, "/api/users/u1/next", "Alice", nil, &n))
	require.Equal(t, "needs_batch", n.Status)

	var batch struct {
		Assigned []string `json:"assigned"`
	}
	require.Equal(t, http.StatusOK, ts.Do(t, http.MethodPost, "/api/users/u1/batch", "Alice", nil, &batch))
	require.Equal(t, []string{"r1", "r2"}, batch.Assigned)

	require.Equal(t, http.StatusOK, ts.Do(t, http.MethodPost, "/api/users/u2/batch", "Bola", nil, &batch))
	require.Equal(t, []string{"r3", "r4"}, batch.Assigned)

	require.Equal(t, http.StatusOK, ts.Do(t, http.MethodPost, "/api/users/u1/next", "Alice", nil, &n))
	require.Equal(t, "record", n.Status)
	require.Equal(t, "r1", n.RecordID)
	require.JSONEq(t, `"Gud mawnin"`, string(n.Record["pidgin_translation"]))

	var e apiError
	require.Equal(t, http.StatusForbidden, ts.Do(t, http.MethodPost, "/api/users/u1/annotations", "Alice",
		map[string]any{"record_id": "r3", "is_correct": true}, &e))
	require.Equal(t, "NOT_IN_BATCH", e.Error.Code)

	require.Equal(t, http.StatusUnprocessableEntity, ts.Do(t, http.MethodPost, "/api/users/u1/annotations", "Alice",
		map[string]any{"record_id": "r1", "is_correct": false, "edited_translation": "  Gud mawnin "}, &e))
	require.Equal(t, "EMPTY_CORRECTION", e.Error.Code)

	var s submitted
	require.Equal(t, http.StatusOK, ts.Do(t, http.MethodPost, "/api/users/u1/annotations", "Alice",
		map[string]any{"record_id": "r1", "is_correct": false, "edited_translation": "Gud morning o"}, &s))
	require.Equal(t, 1, s.Count)
	require.False(t, s.LimitReached)

	require.Equal(t, http.StatusOK, ts.Do(t, http.MethodPost, "/api/users/u1/annotations", "Alice",
		map[string]any{"record_id": "r2", "is_correct": true}, &s))
	require.True(t, s.LimitReached)
	require.True(t, s.BatchComplete)

	require.Equal(t, http.StatusConflict, ts.Do(t, http.MethodPost, "/api/users/u1/annotations", "Alice",
		map[string]any{"record_id": "r2", "is_correct": true}, &e))
	require.Equal(t, "QUOTA_EXCEEDED", e.Error.Code)

	require.Equal(t, http.StatusOK, ts.Do(t, http.MethodPost, "/api/users/u1/next", "Alice", nil, &n))
	require.Equal(t, "limit_reached", n.Status)

	var progress []annotation.Progress
	require.Equal(t, http.StatusOK, ts.Do(t, http.MethodGet, "/api/progress", "", nil, &progress))
	require.Len(t, progress, 1)
	require.Equal(t, "Alice", progress[0].Username)
	require.Equal(t, 50.0, progress[0].Percentage)

	var entries []activity.ActivityEntry
	require.Equal(t, http.StatusOK, ts.Do(t, http.MethodGet, "/api/activity?user_id=u1&type=annotation_submitted", "", nil, &entries))
	require.Len(t, entries, 2)

	// ok, not_in_batch, invalid_correction and quota_exceeded
	series, err := testutil.GatherAndCount(ts.Registry, "annotask_annotation_submissions_total")
	require.NoError(t, err)
	require.Equal(t, 4, series)
}

func TestEndToEnd_BatchSizeSetting(t *testing.T) {
	ts := New(t, data, 2)

	var size struct {
		BatchSize int `json:"batch_size"`
	}
	require.Equal(t, http.StatusOK, ts.Do(t, http.MethodGet, "/api/settings/batch-size", "", nil, &size))
	require.Equal(t, 2, size.BatchSize)

	var e apiError
	require.Equal(t, http.StatusBadRequest, ts.Do(t, http.MethodPut, "/api/settings/batch-size", "",
		map[string]any{"batch_size": 0}, &e))
	require.Equal(t, "INVALID_BATCH_SIZE", e.Error.Code)

	require.Equal(t, http.StatusOK, ts.Do(t, http.MethodPut, "/api/settings/batch-size", "",
		map[string]any{"batch_size": 3}, &size))

	var batch struct {
		Assigned []string `json:"assigned"`
	}
	require.Equal(t, http.StatusOK, ts.Do(t, http.MethodPost, "/api/users/u1/batch", "Alice", nil, &batch))
	require.Len(t, batch.Assigned, 3)
}

func TestEndToEnd_RequestedBatchSizeIsCapped(t *testing.T) {
	ts := New(t, data, 2)

	var batch struct {
		Assigned []string `json:"assigned"`
	}
	require.Equal(t, http.StatusOK, ts.Do(t, http.MethodPost, "/api/users/u1/batch", "Alice",
		map[string]any{"batch_size": 4}, &batch))
	require.Equal(t, []string{"r1", "r2"}, batch.Assigned)

	for _, id := range batch.Assigned {
		require.Equal(t, http.StatusOK, ts.Do(t, http.MethodPost, "/api/users/u1/annotations", "Alice",
			map[string]any{"record_id": id, "is_correct": true}, nil))
	}

	require.Equal(t, http.StatusOK, ts.Do(t, http.MethodPost, "/api/users/u1/batch", "Alice",
		map[string]any{"batch_size": 4}, &batch))
	require.Empty(t, batch.Assigned)

	require.Equal(t, http.StatusOK, ts.Do(t, http.MethodPost, "/api/users/u2/batch", "Bola", nil, &batch))
	require.Equal(t, []string{"r3", "r4"}, batch.Assigned)
}

func TestEndToEnd_MCPOverHTTP(t *testing.T) {
	ts := New(t, data, 1)
	session := ts.Connect(t)
	ctx := context.Background()

	_, err := session.CallTool(ctx, &sdkmcp.CallToolParams{
		Name:      "assign_batch",
		Arguments: map[string]any{"user_id": "u9"},
	})
	require.NoError(t, err)

	res, err := session.CallTool(ctx, &sdkmcp.CallToolParams{
		Name:      "submit_annotation",
		Arguments: map[string]any{"user_id": "u9", "username": "Chidi", "record_id": "r1", "is_correct": true},
	})
	require.NoError(t, err)
	require.False(t, res.IsError)

	list, err := ts.Engine.Annotations(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "Chidi", list[0].Username)
}

func TestEndToEnd_ExportAfterAnnotating(t *testing.T) {
	ts := New(t, data, 2)
	ctx := context.Background()

	require.Equal(t, http.StatusOK, ts.Do(t, http.MethodPost, "/api/users/u1/batch", "Alice", nil, nil))
	require.Equal(t, http.StatusOK, ts.Do(t, http.MethodPost, "/api/users/u1/annotations", "Alice",
		map[string]any{"record_id": "r2", "is_correct": false, "edited_translation": "Tank yu"}, nil))

	var buf bytes.Buffer
	res, err := export.Write(ctx, &buf, ts.Catalog, ts.Engine, export.Options{IncludeMetadata: true})
	require.NoError(t, err)
	require.Equal(t, export.Result{Exported: 1, Annotated: 1, Skipped: 3}, res)
	require.Contains(t, buf.String(), `"pidgin_translation":"Tank yu"`)
	require.Contains(t, buf.String(), `"annotated_by":"Alice"`)
}

func TestEndToEnd_MetricsEndpoint(t *testing.T) {
	ts := New(t, data, 2)
	require.Equal(t, http.StatusOK, ts.Do(t, http.MethodPost, "/api/users/u1/batch", "Alice", nil, nil))

	resp, err := ts.Server.Client().Get(ts.Server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(body), "annotask_assignment_batches_total"))
}
