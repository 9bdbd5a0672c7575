package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadJSONAppliesDefaults(t *testing.T) {
	t.Setenv("TEST_OLLAMA_KEY", "secret")
	path := writeFile(t, "config.json", `{"chat": {"provider": "ollama", "api_key": "${TEST_OLLAMA_KEY}"}}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "secret", cfg.Chat.APIKey)
	assert.Equal(t, ":8090", cfg.BasicConfig.ServerAddress)
	assert.Equal(t, 500, cfg.Index.ChunkSize)
	assert.Equal(t, 50, cfg.Index.ChunkOverlap)
	assert.Equal(t, 3, cfg.Index.TopK)
	assert.Equal(t, "memory", cfg.Memory.Backend)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "data", "index.db"), cfg.Index.DSN)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "data", "resume.docx"), cfg.Index.SourcePath)
	assert.Empty(t, cfg.Generator.Facts)
}

func TestLoadKeepsExplicitZeroOverlap(t *testing.T) {
	path := writeFile(t, "config.json", `{"index": {"chunk_size": 200, "chunk_overlap": 0}}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.Index.ChunkOverlap)
	assert.Equal(t, 200, cfg.Index.ChunkSize)

	yamlPath := writeFile(t, "config.yaml", "index:\n  chunk_overlap: 0\n")
	cfg, err = Load(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.Index.ChunkOverlap)

	_, err = Load(writeFile(t, "neg.json", `{"index": {"chunk_overlap": -1}}`))
	assert.Error(t, err)
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "config.yaml", `
chat:
  provider: openai
  model: gpt-4o-mini
memory:
  backend: redis
  session_ttl: 30
generator:
  facts:
    - "Based in Toronto"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.Chat.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.Chat.Model)
	assert.Equal(t, "redis", cfg.Memory.Backend)
	assert.Equal(t, 30, cfg.Memory.SessionTTL)
	assert.Equal(t, []string{"Based in Toronto"}, cfg.Generator.Facts)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"provider": `{"chat": {"provider": "bard"}}`,
		"overlap":  `{"index": {"chunk_size": 100, "chunk_overlap": 100}}`,
		"memory":   `{"memory": {"backend": "disk"}}`,
		"tracing":  `{"tracing": {"exporter": "jaeger"}}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeFile(t, "config.json", body))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}
