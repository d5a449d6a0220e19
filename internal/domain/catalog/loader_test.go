package catalog_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rpggio/annotask/internal/domain/catalog"
	"github.com/stretchr/testify/require"
)

const mixedJSONL = `{"id": "a1", "source_text": "Good morning", "pidgin_translation": "Gud mawnin"}

{"conversations": [{"role": "user", "content": "How far?"}, {"role": "assistant", "content": "I dey fine"}]}
{"id": 42, "conversations": [{"role": "user", "content": "hi"}]}
`

func TestLoad_MixedShapes(t *testing.T) {
	cat, err := catalog.Load(strings.NewReader(mixedJSONL))
	require.NoError(t, err)
	require.Equal(t, 3, cat.Len())

	ids := cat.IDs()
	require.Equal(t, "a1", ids[0])
	require.True(t, strings.HasPrefix(ids[1], "record_1_"))
	require.Len(t, ids[1], len("record_1_")+12)
	require.Equal(t, "42", ids[2])

	first, ok := cat.Record("a1")
	require.True(t, ok)
	legacy, ok := first.Payload.(catalog.Legacy)
	require.True(t, ok)
	require.Equal(t, "Gud mawnin", legacy.Translation)

	second, ok := cat.Record(ids[1])
	require.True(t, ok)
	conv, ok := second.Payload.(catalog.Conversation)
	require.True(t, ok)
	require.Len(t, conv.Turns, 2)
	require.Equal(t, catalog.RoleAssistant, conv.Turns[1].Role)
}

func TestLoad_DerivedIDIsStable(t *testing.T) {
	first, err := catalog.Load(strings.NewReader(mixedJSONL))
	require.NoError(t, err)
	second, err := catalog.Load(strings.NewReader(mixedJSONL))
	require.NoError(t, err)
	require.Equal(t, first.IDs(), second.IDs())

	reordered := `{"conversations": [{"content": "How far?", "role": "user"}, {"role": "assistant", "content": "I dey fine"}]}`
	other, err := catalog.Load(strings.NewReader("\n" + reordered))
	require.NoError(t, err)
	require.Equal(t, "record_0_"+first.IDs()[1][len("record_1_"):], other.IDs()[0])
}

func TestLoad_ValidationErrors(t *testing.T) {
	input := strings.Join([]string{
		`{"conversations": []}`,
		`{"conversations": "nope"}`,
		`{"conversations": [{"role": "system", "content": "x"}]}`,
		`{"conversations": [{"role": "user"}]}`,
		`{"id": "x", "source_text": "only source"}`,
		`{"id": "ok", "source_text": "s", "pidgin_translation": "t"}`,
	}, "\n")

	_, err := catalog.Load(strings.NewReader(input))
	require.Error(t, err)
	require.True(t, errors.Is(err, catalog.ErrInvalidRecord))

	var verr *catalog.ValidationError
	require.True(t, errors.As(err, &verr))
	require.Len(t, verr.Records, 5)
	require.Equal(t, "conversations list cannot be empty", verr.Records[0].Reason)
	require.Equal(t, "conversations must be a list", verr.Records[1].Reason)
	require.Equal(t, 4, verr.Records[4].Index)
}

func TestLoad_Errors(t *testing.T) {
	_, err := catalog.Load(strings.NewReader("\n\n"))
	require.ErrorIs(t, err, catalog.ErrEmptyCatalog)

	_, err = catalog.Load(strings.NewReader("{\"id\": \"a\"\nnot json"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "line 1")

	dup := `{"id": "a", "source_text": "s", "pidgin_translation": "t"}
{"id": "a", "source_text": "s2", "pidgin_translation": "t2"}`
	_, err = catalog.Load(strings.NewReader(dup))
	require.ErrorIs(t, err, catalog.ErrDuplicateID)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(mixedJSONL), 0o644))

	cat, err := catalog.LoadFile(path)
	require.NoError(t, err)
	require.Equal(t, 3, cat.Len())

	_, err = catalog.LoadFile(filepath.Join(t.TempDir(), "missing.jsonl"))
	require.Error(t, err)
}
