package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	s, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", s.Addr)
	assert.Equal(t, 1, s.MBToStream)
	assert.EqualValues(t, 1<<20, s.ChunkSizeBytes())
	assert.Equal(t, 30*time.Minute, s.StreamTimeout)
	assert.Equal(t, 10*time.Second, s.ShutdownTimeout)
	assert.Equal(t, BackendFS, s.StorageBackend)
	assert.False(t, s.HonorClientEnd)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("MB_TO_STREAM", "4")
	t.Setenv("STREAM_TIMEOUT", "90s")
	t.Setenv("STREAM_HONOR_CLIENT_END", "true")
	t.Setenv("STREAM_MAX_BYTES_PER_SEC", "1048576")
	t.Setenv("MEDIA_ROOT", "/srv/videos")

	s, err := Load("")
	require.NoError(t, err)

	assert.EqualValues(t, 4<<20, s.ChunkSizeBytes())
	assert.Equal(t, 90*time.Second, s.StreamTimeout)
	assert.Equal(t, "/srv/videos", s.MediaRoot)

	cfg := s.StreamingConfig()
	assert.EqualValues(t, 4<<20, cfg.ChunkSizeBytes)
	assert.True(t, cfg.HonorClientEnd)
	assert.EqualValues(t, 1<<20, cfg.MaxBytesPerSecond)
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("APP_ADDR=:9090\nMB_TO_STREAM=2\n"), 0o600))
	// godotenv does not override variables that are already set.
	t.Setenv("APP_ADDR", ":7070")
	t.Cleanup(func() { os.Unsetenv("MB_TO_STREAM") })

	s, err := Load(envFile)
	require.NoError(t, err)
	assert.Equal(t, ":7070", s.Addr)
	assert.Equal(t, 2, s.MBToStream)
}

func TestValidate(t *testing.T) {
	base, err := Load("")
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*Settings)
	}{
		{"zero chunk", func(s *Settings) { s.MBToStream = 0 }},
		{"unknown backend", func(s *Settings) { s.StorageBackend = "ftp" }},
		{"fs without root", func(s *Settings) { s.MediaRoot = " " }},
		{"s3 without bucket", func(s *Settings) { s.StorageBackend = BackendS3; s.S3Endpoint = "minio:9000" }},
		{"watch without catalog", func(s *Settings) { s.CatalogWatch = true }},
		{"negative conns", func(s *Settings) { s.MaxConns = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := base
			tt.mutate(&s)
			assert.Error(t, s.Validate())
		})
	}
	assert.NoError(t, base.Validate())
}

func TestLoadRejectsInvalidChunk(t *testing.T) {
	t.Setenv("MB_TO_STREAM", "0")
	_, err := Load("")
	assert.Error(t, err)
}

func TestStringMasksSecrets(t *testing.T) {
	s := Settings{S3AccessKey: "AKIA123", S3SecretKey: "hunter2"}
	out := s.String()
	assert.NotContains(t, out, "AKIA123")
	assert.NotContains(t, out, "hunter2")
	assert.Contains(t, out, "S3SecretKey: ********")
}
