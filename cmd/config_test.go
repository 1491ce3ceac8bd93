package cmd

import (
	"log/slog"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestConfigConstants(t *testing.T) {
	assert.Equal(t, "testforge", configBaseName)
	assert.Equal(t, "testforge.yaml", configFileName)
	assert.Equal(t, ".", configFolderPath)
	assert.Equal(t, "output", outputFlagName)
	assert.Equal(t, "exclude", excludeFlagName)
	assert.Equal(t, "audit.max_iterations", maxIterationsConfigKey)
	assert.Equal(t, "audit.threshold", thresholdConfigKey)
	assert.Equal(t, "paths.exclude", excludeConfigKey)
	assert.Equal(t, ".testforge-reports", defaultReportsDir)
	assert.Equal(t, "TESTFORGE", envPrefix)
}

func TestConfigDefaults(t *testing.T) {
	assert.Equal(t, 3, viper.GetInt(maxIterationsConfigKey))
	assert.InDelta(t, 7.0, viper.GetFloat64(thresholdConfigKey), 1e-9)
	assert.Equal(t, 5, viper.GetInt(targetsConfigKey))
	assert.Equal(t, 1, viper.GetInt(parallelConfigKey))
	assert.Empty(t, viper.GetString(mutationCommandKey))
}

func TestParseSlogLevel(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  slog.Level
	}{
		{"empty uses default", "", slog.LevelWarn},
		{"debug", "debug", slog.LevelDebug},
		{"info", "info", slog.LevelInfo},
		{"warn", "warn", slog.LevelWarn},
		{"warning alias", "warning", slog.LevelWarn},
		{"error", "error", slog.LevelError},
		{"numeric", "-4", slog.LevelDebug},
		{"garbage uses default", "loud", slog.LevelWarn},
		{"mixed case", "ERROR", slog.LevelError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseSlogLevel(tt.value, slog.LevelWarn))
		})
	}
}

func TestMutationTimeout(t *testing.T) {
	viper.Set(mutationTimeoutKey, 30)
	t.Cleanup(func() { viper.Set(mutationTimeoutKey, int64(defaultMutationTimeout.Seconds())) })

	assert.Equal(t, 30*time.Second, mutationTimeout())

	viper.Set(mutationTimeoutKey, 0)
	assert.Equal(t, defaultMutationTimeout, mutationTimeout())
}
