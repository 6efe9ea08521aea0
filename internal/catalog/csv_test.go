package catalog

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const artistsCSV = `id,name,classification,country,tags,begin,end,image
queen, Queen ,Group,GB,Rock; Classic Rock ,1970,,
bjork,Björk,solo,IS,electronic,1965-11-21,,https://img.example/bjork.jpg
,Nameless,solo,,,,,
short
`

func TestReadArtistsCSV(t *testing.T) {
	artists, err := ReadArtistsCSV(strings.NewReader(artistsCSV))
	require.NoError(t, err)
	require.Len(t, artists, 2)

	queen := artists[0]
	assert.Equal(t, "Queen", queen.Name)
	assert.Equal(t, ClassificationGroup, queen.Detail.Classification)
	assert.Equal(t, []string{"rock", "classic rock"}, queen.Detail.Tags)
	assert.Equal(t, "1970", queen.Detail.LifespanBegin)

	assert.Equal(t, "https://img.example/bjork.jpg", artists[1].Image)
}

func TestReadArtistsCSVRejectsUnknownClassification(t *testing.T) {
	_, err := ReadArtistsCSV(strings.NewReader("id,name,classification\nx,X,orchestra\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "orchestra")
}

func TestWriteStaticRoundTripsThroughLoadStatic(t *testing.T) {
	artists, err := ReadArtistsCSV(strings.NewReader(artistsCSV))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteStatic(&buf, artists))
	path := filepath.Join(t.TempDir(), "catalog.json")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	cat, err := LoadStatic(path)
	require.NoError(t, err)
	info, err := Describe(context.Background(), cat, Candidate{ID: "bjork", Name: "Björk"})
	require.NoError(t, err)
	assert.Equal(t, "Solo artist", info.Kind)
	assert.Equal(t, "1965", info.BeginYear)
	assert.Equal(t, "Active", info.EndYear)
	assert.Equal(t, "https://img.example/bjork.jpg", info.Image)
}
