package data

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/sqlite-docstore/docstore"
)

func TestLoad(t *testing.T) {
	ctx := context.Background()
	s, err := docstore.New(ctx, docstore.Config{Database: filepath.Join(t.TempDir(), "load.sqlite"), Partitions: 4})
	require.NoError(t, err)
	defer s.Close()

	input := `{"id": "a", "content": "first", "embedding": [1, 2]}

{"id": "b", "metadata": "m"}
{"id": "c", "embedding": [3]}
`
	n, err := Load(ctx, s, strings.NewReader(input), 2)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	found, err := s.Search(ctx, []string{"a", "b", "c"}, true)
	require.NoError(t, err)
	assert.Equal(t, "first", found[0].Content)
	assert.Equal(t, []float64{1, 2}, found[0].Embedding)
	assert.Equal(t, "m", found[1].Metadata)
	assert.Nil(t, found[1].Embedding)
	assert.Equal(t, []float64{3}, found[2].Embedding)

	_, err = Load(ctx, s, strings.NewReader(`{"content": "no id"}`), 2)
	assert.ErrorContains(t, err, "line 1")
	_, err = Load(ctx, s, strings.NewReader(`not json`), 2)
	assert.Error(t, err)
}
