package cmd

import (
	"errors"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"testforge.dev/pkg/testforge/internal/adapter"
)

const (
	configVersionKey     = "version"
	currentConfigVersion = 1

	configBaseName   = "testforge"
	configFileName   = configBaseName + ".yaml"
	configFolderPath = "."

	outputFlagName        = "output"
	excludeFlagName       = "exclude"
	maxIterationsFlagName = "max-iterations"
	thresholdFlagName     = "threshold"
	targetsFlagName       = "targets"
	parallelFlagName      = "parallel"
	noMutationFlagName    = "no-mutation"
	noGenerateFlagName    = "no-generate"
	modelFlagName         = "model"
	verboseFlagName       = "verbose"

	sourceRootConfigKey = "paths.source"
	testRootConfigKey   = "paths.tests"
	excludeConfigKey    = "paths.exclude"

	maxIterationsConfigKey = "audit.max_iterations"
	thresholdConfigKey     = "audit.threshold"
	targetsConfigKey       = "audit.targets"
	parallelConfigKey      = "audit.parallel"

	llmAPIKeyConfigKey = "llm.api_key"
	llmModelConfigKey  = "llm.model"

	mutationCommandKey = "mutation.command"
	mutationArgsKey    = "mutation.args"
	mutationTimeoutKey = "mutation.timeout"

	defaultReportsDir    = ".testforge-reports"
	defaultSourceRoot    = "."
	defaultMaxIterations = 3
	defaultThreshold     = 7.0
	defaultTargets       = 5
	defaultParallel      = 1

	defaultMutationTimeout = adapter.DefaultMutationTimeout

	envPrefix = "TESTFORGE"

	logFilenameKey   = "log.filename"
	logLevelKey      = "log.level"
	logVerboseKey    = "log.verbose"
	logMaxSizeKey    = "log.max_size"
	logMaxBackupsKey = "log.max_backups"
	logMaxAgeKey     = "log.max_age"
	logCompressKey   = "log.compress"

	defaultLogFilename   = ".testforge.log"
	defaultLogLevel      = int(slog.LevelInfo)
	defaultLogVerbose    = false
	defaultLogMaxSize    = 10
	defaultLogMaxBackups = 3
	defaultLogMaxAge     = 28
	defaultLogCompress   = true
)

var globalLogger *slog.Logger

func init() {
	viper.SetConfigName(configBaseName)
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configFolderPath)
	viper.SetConfigFile(filepath.Join(configFolderPath, configFileName))
	viper.AutomaticEnv()
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	viper.SetDefault(configVersionKey, currentConfigVersion)
	viper.SetDefault(outputFlagName, defaultReportsDir)
	viper.SetDefault(sourceRootConfigKey, defaultSourceRoot)
	viper.SetDefault(testRootConfigKey, "")
	viper.SetDefault(excludeConfigKey, []string{})

	viper.SetDefault(maxIterationsConfigKey, defaultMaxIterations)
	viper.SetDefault(thresholdConfigKey, defaultThreshold)
	viper.SetDefault(targetsConfigKey, defaultTargets)
	viper.SetDefault(parallelConfigKey, defaultParallel)

	viper.SetDefault(llmModelConfigKey, adapter.DefaultGeminiModel)

	viper.SetDefault(mutationCommandKey, "")
	viper.SetDefault(mutationArgsKey, []string{})
	viper.SetDefault(mutationTimeoutKey, int64(defaultMutationTimeout.Seconds()))

	// Logging defaults (used by config/env and as fallbacks for flags).
	viper.SetDefault(logFilenameKey, defaultLogFilename)
	viper.SetDefault(logLevelKey, defaultLogLevel)
	viper.SetDefault(logVerboseKey, defaultLogVerbose)
	viper.SetDefault(logMaxSizeKey, defaultLogMaxSize)
	viper.SetDefault(logMaxBackupsKey, defaultLogMaxBackups)
	viper.SetDefault(logMaxAgeKey, defaultLogMaxAge)
	viper.SetDefault(logCompressKey, defaultLogCompress)

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return
		}

		return
	}
}

func mutationTimeout() time.Duration {
	seconds := viper.GetInt64(mutationTimeoutKey)
	if seconds <= 0 {
		return defaultMutationTimeout
	}

	return time.Duration(seconds) * time.Second
}

func parseSlogLevel(value string, defaultLevel slog.Level) slog.Level {
	level := strings.ToLower(strings.TrimSpace(value))
	if level == "" {
		return defaultLevel
	}

	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}

	// Allow numeric slog levels as well (e.g. -4 for debug).
	if n, err := strconv.Atoi(level); err == nil {
		return slog.Level(n)
	}

	return defaultLevel
}

// configureLogger configures the global slog logger.
//
// By default it logs at Info; if verbose is true it logs at Debug.
func configureLogger(logPath string, verbose bool) {
	if strings.TrimSpace(logPath) == "" {
		logPath = viper.GetString(logFilenameKey)
	}

	if strings.TrimSpace(logPath) == "" {
		logPath = defaultLogFilename
	}

	var logLevel slog.Level
	if verbose {
		logLevel = slog.LevelDebug
	} else {
		logLevel = parseSlogLevel(viper.GetString(logLevelKey), slog.LevelInfo)
	}

	logWriter := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    viper.GetInt(logMaxSizeKey),
		MaxBackups: viper.GetInt(logMaxBackupsKey),
		MaxAge:     viper.GetInt(logMaxAgeKey),
		Compress:   viper.GetBool(logCompressKey),
	}

	handler := slog.NewTextHandler(logWriter, &slog.HandlerOptions{
		AddSource: true,
		Level:     logLevel,
	})

	globalLogger = slog.New(handler)
	slog.SetDefault(globalLogger)
}
