package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_WritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "config.json")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultServerConfig(), cfg.Server)
	assert.FileExists(t, path)
}

func TestLoadConfig_Comments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{
		// Site server only.
		"server_config": {
			"server_addr": ":9000",
			"log_level": "debug", /* noisy */
		},
		"view_config": null,
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Server.ServerAddr)
	assert.Equal(t, "debug", cfg.Server.LogLevel)
	// Keys absent from the file keep their defaults.
	assert.Equal(t, ":7378", cfg.Server.ApiAddr)
	require.NotNil(t, cfg.View)
	assert.True(t, cfg.View.PassThrough)
	assert.Equal(t, cfg.Templates.Extension, cfg.View.Extension)
}

func TestLoadConfig_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"server_config": [}`), 0644))
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestThemeRoots(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.ThemeDir = "/srv/theme"
	cfg.Server.ChildThemeDir = "/srv/child"
	assert.Equal(t, []string{"/srv/child", "/srv/theme"}, cfg.ThemeRoots())

	cfg.Server.ChildThemeDir = "/srv/theme/"
	assert.Equal(t, []string{"/srv/theme"}, cfg.ThemeRoots())
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, "DEBUG", parseLogLevel("Debug").String())
	assert.Equal(t, "WARN", parseLogLevel("warn").String())
	assert.Equal(t, "INFO", parseLogLevel("bogus").String())
}
