package index

import (
	"path/filepath"
	"testing"

	"github.com/driftcast/driftcast/internal/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildFromCatalogRootFiltersByExtension(t *testing.T) {
	root := testutil.MustRepoRoot(t)
	catalogDir := filepath.Join(root, "testdata", "catalog")

	tracks, err := BuildFromCatalogRoot(zerolog.Nop(), catalogDir, []string{".mp3", ".flac"})
	require.NoError(t, err)
	require.Len(t, tracks, 2)

	titles := map[string]bool{}
	for _, tr := range tracks {
		titles[tr.Title] = true
		assert.NotEmpty(t, tr.ID)
		assert.NotEmpty(t, tr.Path)
	}
	assert.True(t, titles["Aurora"])
	assert.True(t, titles["Nightfall"])
}

func TestBuildFromCatalogRootIsContentAddressed(t *testing.T) {
	root := testutil.MustRepoRoot(t)
	catalogDir := filepath.Join(root, "testdata", "catalog")

	first, err := BuildFromCatalogRoot(zerolog.Nop(), catalogDir, []string{".mp3"})
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := BuildFromCatalogRoot(zerolog.Nop(), catalogDir, []string{".mp3"})
	require.NoError(t, err)
	require.Len(t, second, 1)

	assert.Equal(t, first[0].ID, second[0].ID)
}
