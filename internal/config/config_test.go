package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Pratik1445/skillfolio/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadJSONAppliesDefaults(t *testing.T) {
	path := writeFile(t, "config.json", `{"Port":"8080","JwtSecret":"s","SelfContained":true,"PresenceHeartbeat":"10s"}`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.True(t, cfg.SelfContained)
	assert.Equal(t, 10*time.Second, cfg.PresenceHeartbeat.Duration)
	assert.Equal(t, 2*time.Minute, cfg.PresenceStaleAfter.Duration)
	assert.Equal(t, 100, cfg.ChatWindow)
	assert.Equal(t, int64(5*1024*1024), cfg.MaxUploadBytes)
	assert.True(t, cfg.Cascade())
	assert.Equal(t, "http://0.0.0.0:8080/cdn", cfg.PublicBaseURL)
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "config.yaml", `
port: "9000"
selfContained: true
cascadeCommunityDelete: false
presenceStaleAfter: 45s
timezone: UTC
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Port)
	assert.False(t, cfg.Cascade())
	assert.Equal(t, 45*time.Second, cfg.PresenceStaleAfter.Duration)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "UTC", loc.String())
}

func TestLoadRejectsBadDuration(t *testing.T) {
	path := writeFile(t, "config.json", `{"PresenceHeartbeat":"soon"}`)

	_, err := config.Load(path)
	assert.Error(t, err)
}
