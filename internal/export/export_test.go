package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rpggio/annotask/internal/domain/annotation"
	"github.com/rpggio/annotask/internal/domain/catalog"
	"github.com/stretchr/testify/require"
)

const source = `{"id": "r1", "source_text": "Good morning", "pidgin_translation": "Gud mawnin", "tag": "greeting"}
{"id": "r2", "source_text": "Thank you", "pidgin_translation": "Tank you"}
{"conversations": [{"role": "user", "content": "How far?"}, {"role": "assistant", "content": "I dey"}]}
`

type staticAnnotations []annotation.Annotation

func (s staticAnnotations) Annotations(context.Context) ([]annotation.Annotation, error) {
	return s, nil
}

type failingAnnotations struct{}

func (failingAnnotations) Annotations(context.Context) ([]annotation.Annotation, error) {
	return nil, errors.New("storage unavailable")
}

func lines(t *testing.T, out string) []map[string]any {
	t.Helper()
	var result []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		result = append(result, m)
	}
	return result
}

func TestWrite_AppliesCorrections(t *testing.T) {
	cat, err := catalog.Load(strings.NewReader(source))
	require.NoError(t, err)
	convID := cat.IDs()[2]
	edited := "Gud morning o"

	annotations := staticAnnotations{
		{RecordID: "r1", UserID: "u1", Username: "Alice", Correction: &annotation.Correction{Translation: &edited}},
		{RecordID: convID, UserID: "u2", Username: "Bola", Correction: &annotation.Correction{
			Conversations: []catalog.Turn{{Role: catalog.RoleUser, Content: "How far?"}, {Role: catalog.RoleAssistant, Content: "I dey kampe"}},
		}},
	}

	var buf bytes.Buffer
	res, err := Write(context.Background(), &buf, cat, annotations, Options{IncludeMetadata: true})
	require.NoError(t, err)
	require.Equal(t, Result{Exported: 2, Annotated: 2, Skipped: 1}, res)

	out := lines(t, buf.String())
	require.Len(t, out, 2)
	require.Equal(t, "Gud morning o", out[0]["pidgin_translation"])
	require.Equal(t, "greeting", out[0]["tag"])
	require.Equal(t, map[string]any{"annotated_by": "Alice", "is_correct": false}, out[0]["_annotation"])

	require.Equal(t, convID, out[1]["id"])
	turns := out[1]["conversations"].([]any)
	require.Equal(t, "I dey kampe", turns[1].(map[string]any)["content"])
}

func TestWrite_IncludeAllWithoutMetadata(t *testing.T) {
	cat, err := catalog.Load(strings.NewReader(source))
	require.NoError(t, err)
	annotations := staticAnnotations{{RecordID: "r2", UserID: "u1", Username: "Alice", IsCorrect: true}}

	var buf bytes.Buffer
	res, err := Write(context.Background(), &buf, cat, annotations, Options{IncludeAll: true})
	require.NoError(t, err)
	require.Equal(t, Result{Exported: 3, Annotated: 1}, res)

	out := lines(t, buf.String())
	require.Len(t, out, 3)
	require.Equal(t, "Tank you", out[1]["pidgin_translation"])
	for _, m := range out {
		require.NotContains(t, m, "_annotation")
	}
}

func TestWrite_SourceError(t *testing.T) {
	cat, err := catalog.Load(strings.NewReader(source))
	require.NoError(t, err)

	_, err = Write(context.Background(), &bytes.Buffer{}, cat, failingAnnotations{}, Options{})
	require.ErrorContains(t, err, "loading annotations")
}
