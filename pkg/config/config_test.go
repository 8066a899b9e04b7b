package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_AppliesDefaultsAndOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "uaphone.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
username: alice
domain: example.com
registrar: sip.example.com
audio_codec: PCMA
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "alice", cfg.Username)
	assert.Equal(t, 5060, cfg.RegistrarPort, "unset field should fall back to default")
	assert.Equal(t, "PCMA", cfg.AudioCodec)
	assert.Equal(t, 20, cfg.FrameDurationMs)
}

func TestConfig_ProjectsOntoAgentAndMedia(t *testing.T) {
	cfg := &Config{Username: "bob", Domain: "example.com", Registrar: "sip.example.com", AudioCodec: "PCMU"}
	ac := cfg.AgentConfig()
	assert.Equal(t, "bob", ac.Username)
	mc := cfg.MediaConfig()
	assert.Equal(t, "PCMU", mc.AudioCodec)
}
