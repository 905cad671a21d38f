package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.json", `{}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "jp", cfg.TranslationSettings.OriginLanguage)
	assert.Equal(t, "zh-cn", cfg.TranslationSettings.TargetLanguage)
	assert.Equal(t, 4, cfg.TranslationSettings.MaxWorkers)
	assert.Equal(t, 2200, cfg.TranslationSettings.MaxCharsPerBatch)
	assert.Equal(t, 3, cfg.TranslationSettings.MaxRetries)
	assert.Equal(t, 60, cfg.TranslationSettings.Timeout)
	assert.Equal(t, []string{"KR_", "JP_", "EN_"}, cfg.TranslationSettings.StripFilenamePrefixes)
	assert.True(t, cfg.Options.ConfirmBeforeTranslation)
	assert.True(t, cfg.Options.KeepBackupFiles)
	assert.Equal(t, "models.json", cfg.ConfigFiles.Models)
	assert.Equal(t, dir, cfg.BaseDir)
}

func TestLoadConfigOverrides(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.json", `{
		"file_paths": {"input_dir": "in", "output_dir": "out"},
		"translation_settings": {
			"origin_language": "kr",
			"target_language": "en",
			"max_workers": 16,
			"max_chars_per_batch": 4000,
			"max_retries": 4,
			"timeout": 180
		},
		"options": {"confirm_before_translation": false, "keep_backup_files": false}
	}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "kr", cfg.TranslationSettings.OriginLanguage)
	assert.Equal(t, 16, cfg.TranslationSettings.MaxWorkers)
	assert.Equal(t, 4, cfg.TranslationSettings.MaxRetries)
	assert.Equal(t, 180, cfg.TranslationSettings.Timeout)
	assert.False(t, cfg.Options.ConfirmBeforeTranslation)
	assert.False(t, cfg.Options.KeepBackupFiles)

	assert.Equal(t, filepath.Join(dir, "in", "kr"), cfg.InputRoot())
	assert.Equal(t, filepath.Join(dir, "out", "en"), cfg.OutputRoot())
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("LOCTREE_TRANSLATION_SETTINGS_MAX_WORKERS", "9")

	dir := t.TempDir()
	path := writeFile(t, dir, "config.json", `{}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.TranslationSettings.MaxWorkers)
}

func TestLoadConfigInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"零工作协程", `{"translation_settings": {"max_workers": 0}}`},
		{"负重试次数", `{"translation_settings": {"max_retries": -1}}`},
		{"零批次预算", `{"translation_settings": {"max_chars_per_batch": 0}}`},
		{"空源语言", `{"translation_settings": {"origin_language": ""}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			path := writeFile(t, dir, "config.json", tt.content)
			_, err := LoadConfig(path)
			assert.Error(t, err)
		})
	}
}

func TestResolvePath(t *testing.T) {
	cfg := &Config{BaseDir: "/data/loctree"}

	assert.Equal(t, filepath.Join("/data/loctree", "models.json"), cfg.ResolvePath("models.json"))
	assert.Equal(t, "/abs/models.json", cfg.ResolvePath("/abs/models.json"))
	assert.Equal(t, "", cfg.ResolvePath(""))
}
