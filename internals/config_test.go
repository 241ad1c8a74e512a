package internals

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
auto_sync: true
auto_refresh: true
default_in: main
in:
  main:
    driver: postgresql
    host: localhost
    database: app
default_out:
  - search
out:
  search:
    driver: elastic
    endpoints:
      - http://localhost:9200
mappings:
  - index: posts
    table: posts
    reference_field: uuid
    chunk_size: 250
    relations:
      - table: authors
        foreign_key: author_id
  - index: comments
    table: comments
    ignore_signals: true
    out:
      - search
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFromYaml(t *testing.T) {
	config := &Config{}
	require.NoError(t, config.LoadFromYaml(writeConfig(t, sampleConfig)))

	assert.True(t, config.AutoSync)
	assert.True(t, config.AutoRefresh)
	assert.Equal(t, "main", config.DefaultIn)
	assert.Equal(t, []string{"search"}, config.DefaultOut)
	assert.Equal(t, "postgresql", config.In["main"]["driver"])
	assert.Equal(t, "elastic", config.Out["search"]["driver"])

	require.Len(t, config.Mappings, 2)
	posts := config.Mappings[0]
	assert.Equal(t, "posts", posts.Index)
	assert.Equal(t, "uuid", posts.ReferenceField)
	assert.Equal(t, 250, posts.ChunkSize)
	require.Len(t, posts.Relations, 1)
	assert.Equal(t, "authors", posts.Relations[0].Table)
	assert.Equal(t, "author_id", posts.Relations[0].ForeignKey)

	comments := config.Mappings[1]
	assert.True(t, comments.IgnoreSignals)
	assert.Equal(t, []string{"search"}, comments.Out)
}

func TestLoadFromYamlMissingFile(t *testing.T) {
	config := &Config{}
	err := config.LoadFromYaml(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorContains(t, err, "cannot find config file")
}

func TestLoadFromYamlInvalidContent(t *testing.T) {
	config := &Config{}
	err := config.LoadFromYaml(writeConfig(t, "mappings: {not: [valid"))
	assert.ErrorContains(t, err, "cannot parse config file")
}
