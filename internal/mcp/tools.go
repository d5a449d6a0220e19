package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/annotask/internal/domain/annotation"
	"github.com/rpggio/annotask/internal/domain/assignment"
)

type tools struct {
	engine  Engine
	catalog Catalog
	logger  *slog.Logger
}

func registerTools(server *sdkmcp.Server, t *tools) {
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "next_record",
		Description: "Get the next record the user should review, or whether they need a batch or are done",
	}, t.nextRecord)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "assign_batch",
		Description: "Assign a new batch of records to the user; empty when nothing is available or the current batch is unfinished",
	}, t.assignBatch)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "submit_annotation",
		Description: "Record the user's verdict for a record in their batch, with a correction when it is wrong",
	}, t.submitAnnotation)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "annotation_count",
		Description: "Get how many records the user has annotated and whether they reached the limit",
	}, t.annotationCount)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "progress",
		Description: "Get completion for every user who has annotated something",
	}, t.progress)
}

func (t *tools) nextRecord(ctx context.Context, _ *sdkmcp.CallToolRequest, in UserParams) (*sdkmcp.CallToolResult, NextRecordResponse, error) {
	next, err := t.engine.NextRecord(ctx, in.UserID)
	if err != nil {
		return nil, NextRecordResponse{}, err
	}

	resp := NextRecordResponse{
		Status:         string(next.Status),
		RecordID:       next.RecordID,
		Position:       next.Position,
		BatchTotal:     next.BatchTotal,
		BatchCompleted: next.BatchCompleted,
		Count:          next.Count,
	}
	if next.Status == assignment.StatusRecord {
		if rec, ok := t.catalog.Record(next.RecordID); ok {
			resp.Record, err = recordFields(rec.Fields)
			if err != nil {
				return nil, NextRecordResponse{}, err
			}
		}
	}
	return nil, resp, nil
}

func (t *tools) assignBatch(ctx context.Context, _ *sdkmcp.CallToolRequest, in AssignBatchParams) (*sdkmcp.CallToolResult, AssignBatchResponse, error) {
	ids, err := t.engine.AssignBatch(ctx, assignment.AssignRequest{
		UserID:    in.UserID,
		BatchSize: in.BatchSize,
		RecordIDs: t.catalog.IDs(),
	})
	if err != nil {
		return nil, AssignBatchResponse{}, err
	}
	if ids == nil {
		ids = []string{}
	}
	return nil, AssignBatchResponse{Assigned: ids}, nil
}

func (t *tools) submitAnnotation(ctx context.Context, _ *sdkmcp.CallToolRequest, in SubmitAnnotationParams) (*sdkmcp.CallToolResult, SubmitAnnotationResponse, error) {
	username := in.Username
	if username == "" {
		username = getUsername(ctx)
	}
	if username == "" {
		username = in.UserID
	}

	req := assignment.SubmitRequest{
		RecordID:  in.RecordID,
		UserID:    in.UserID,
		Username:  username,
		IsCorrect: in.IsCorrect,
	}
	if !in.IsCorrect && (in.EditedTranslation != nil || in.EditedConversations != nil) {
		req.Correction = &annotation.Correction{
			Translation:   in.EditedTranslation,
			Conversations: in.EditedConversations,
		}
	}

	result, err := t.engine.Submit(ctx, req)
	if err != nil {
		if apiErr := MapError(err); apiErr != nil {
			t.logger.Debug("submission rejected", "user_id", in.UserID, "record_id", in.RecordID, "code", apiErr.Code)
			return nil, SubmitAnnotationResponse{Status: apiErr.Code, Error: apiErr}, nil
		}
		return nil, SubmitAnnotationResponse{}, err
	}
	return nil, SubmitAnnotationResponse{
		Status:        "ok",
		Count:         result.Count,
		LimitReached:  result.LimitReached,
		BatchComplete: result.BatchComplete,
	}, nil
}

func (t *tools) annotationCount(ctx context.Context, _ *sdkmcp.CallToolRequest, in UserParams) (*sdkmcp.CallToolResult, AnnotationCountResponse, error) {
	count, err := t.engine.AnnotationCount(ctx, in.UserID)
	if err != nil {
		return nil, AnnotationCountResponse{}, err
	}
	size, err := t.engine.BatchSize(ctx)
	if err != nil {
		return nil, AnnotationCountResponse{}, err
	}
	return nil, AnnotationCountResponse{
		Count:        count,
		BatchSize:    size,
		LimitReached: assignment.ReachedLimit(count, size),
	}, nil
}

func (t *tools) progress(ctx context.Context, _ *sdkmcp.CallToolRequest, _ ProgressParams) (*sdkmcp.CallToolResult, ProgressResponse, error) {
	total := t.catalog.Len()
	all, err := t.engine.AllUsersProgress(ctx, total)
	if err != nil {
		return nil, ProgressResponse{}, err
	}
	users := make([]annotation.Progress, 0, len(all))
	for _, p := range all {
		users = append(users, p)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].UserID < users[j].UserID })
	return nil, ProgressResponse{TotalRecords: total, Users: users}, nil
}

func recordFields(fields map[string]json.RawMessage) (map[string]any, error) {
	out := make(map[string]any, len(fields))
	for k, raw := range fields {
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("decoding record field %s: %w", k, err)
		}
		out[k] = v
	}
	return out, nil
}
