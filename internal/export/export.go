// Package export writes the catalog back out as JSONL with annotator
// corrections applied.
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/rpggio/annotask/internal/domain/annotation"
	"github.com/rpggio/annotask/internal/domain/catalog"
)

// AnnotationSource iterates stored annotations.
type AnnotationSource interface {
	Annotations(ctx context.Context) ([]annotation.Annotation, error)
}

// RecordSource lists catalog records in order.
type RecordSource interface {
	Records() []catalog.Record
}

// Options controls which records are written.
type Options struct {
	// IncludeAll writes unannotated records unchanged.
	IncludeAll bool
	// IncludeMetadata adds an _annotation object to annotated records.
	IncludeMetadata bool
}

// Result counts what was written.
type Result struct {
	Exported  int `json:"exported"`
	Annotated int `json:"annotated"`
	Skipped   int `json:"skipped"`
}

type metadata struct {
	AnnotatedBy string `json:"annotated_by"`
	IsCorrect   bool   `json:"is_correct"`
}

// Write emits one JSON line per exported record in catalog order.
func Write(ctx context.Context, w io.Writer, records RecordSource, source AnnotationSource, opts Options) (Result, error) {
	list, err := source.Annotations(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("loading annotations: %w", err)
	}
	byRecord := make(map[string]annotation.Annotation, len(list))
	for _, a := range list {
		byRecord[a.RecordID] = a
	}

	var res Result
	for _, rec := range records.Records() {
		a, annotated := byRecord[rec.ID]
		if !annotated && !opts.IncludeAll {
			res.Skipped++
			continue
		}

		line, err := encode(merge(rec, a, annotated, opts.IncludeMetadata))
		if err != nil {
			return res, fmt.Errorf("record %s: %w", rec.ID, err)
		}
		if _, err := w.Write(line); err != nil {
			return res, fmt.Errorf("writing export: %w", err)
		}

		res.Exported++
		if annotated {
			res.Annotated++
		}
	}
	return res, nil
}

func merge(rec catalog.Record, a annotation.Annotation, annotated, withMetadata bool) map[string]any {
	out := make(map[string]any, len(rec.Fields)+2)
	for k, v := range rec.Fields {
		out[k] = v
	}
	if _, ok := out["id"]; !ok {
		out["id"] = rec.ID
	}
	if !annotated {
		return out
	}

	if c := a.Correction; c != nil {
		if len(c.Conversations) > 0 {
			out["conversations"] = c.Conversations
		}
		if c.Translation != nil && *c.Translation != "" {
			out["pidgin_translation"] = *c.Translation
		}
	}
	if withMetadata {
		out["_annotation"] = metadata{AnnotatedBy: a.Username, IsCorrect: a.IsCorrect}
	}
	return out
}

func encode(fields map[string]any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(fields); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
