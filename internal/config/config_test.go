package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var keys = []string{
	"PORT", "LOG_LEVEL", "LOG_FORMAT", "COMPILE_ENGINE", "LATEX_BINARY", "LATEX_EXTRA_ARGS",
	"CHROME_PATH", "HTML_STYLESHEET", "COMPILE_TIMEOUT", "COMPILE_TEMP_DIR", "CLEANUP_DELAY",
	"MAX_SOURCE_BYTES", "MAX_CONCURRENT_JOBS",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "3000", cfg.Port)
	assert.Equal(t, "latex", cfg.Engine)
	assert.Equal(t, "pdflatex", cfg.LatexBinary)
	assert.Equal(t, 30*time.Second, cfg.CompileTimeout)
	assert.Equal(t, 2*time.Second, cfg.CleanupDelay)
	assert.Equal(t, 1<<20, cfg.MaxSourceBytes)
	assert.Equal(t, 8, cfg.MaxConcurrentJobs)
	assert.Equal(t, filepath.Join(os.TempDir(), "resume-compiler"), cfg.TempDir)
}

func TestLoadFromEnvFile(t *testing.T) {
	clearEnv(t)
	// godotenv does not override variables that are already set, even to "".
	for _, k := range []string{"COMPILE_TIMEOUT", "COMPILE_ENGINE", "MAX_CONCURRENT_JOBS"} {
		require.NoError(t, os.Unsetenv(k))
	}
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("COMPILE_TIMEOUT=45s\nCOMPILE_ENGINE=html\nMAX_CONCURRENT_JOBS=0\n"), 0o600))
	t.Cleanup(func() {
		for _, k := range []string{"COMPILE_TIMEOUT", "COMPILE_ENGINE", "MAX_CONCURRENT_JOBS"} {
			_ = os.Unsetenv(k)
		}
	})

	cfg, err := Load(envFile)
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, cfg.CompileTimeout)
	assert.Equal(t, "html", cfg.Engine)
	assert.Equal(t, 0, cfg.MaxConcurrentJobs)
}

func TestLoadMissingEnvFileIsFine(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	assert.NoError(t, err)
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"COMPILE_TIMEOUT", "soon"},
		{"COMPILE_TIMEOUT", "-1s"},
		{"COMPILE_ENGINE", "word"},
		{"MAX_SOURCE_BYTES", "lots"},
		{"MAX_CONCURRENT_JOBS", "-2"},
		{"LOG_FORMAT", "xml"},
		{"PORT", "http"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)
			_, err := Load("")
			assert.Error(t, err)
		})
	}
}
