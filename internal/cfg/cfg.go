package cfg

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"loan-predictor/internal/common"
)

type Settings struct {
	ScalerPath       string
	ModelPath        string
	MetadataPath     string
	PythonPath       string
	InferenceTimeout time.Duration
	APIPort          int
	FormPort         int
	EnableMetrics    bool
	DataPath         string
	LogLevel         string
	LogFormat        string
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	ShutdownTimeout  time.Duration
}

type ConfigFile struct {
	Server struct {
		APIPort         int    `yaml:"apiPort"`
		FormPort        int    `yaml:"formPort"`
		EnableMetrics   *bool  `yaml:"enableMetrics"`
		ReadTimeout     string `yaml:"readTimeout"`
		WriteTimeout    string `yaml:"writeTimeout"`
		ShutdownTimeout string `yaml:"shutdownTimeout"`
	} `yaml:"server"`

	Model struct {
		ScalerPath       string `yaml:"scalerPath"`
		ModelPath        string `yaml:"modelPath"`
		MetadataPath     string `yaml:"metadataPath"`
		PythonPath       string `yaml:"pythonPath"`
		InferenceTimeout string `yaml:"inferenceTimeout"`
	} `yaml:"model"`

	Storage struct {
		DataPath string `yaml:"dataPath"`
	} `yaml:"storage"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
}

// Load reads settings from CONFIG_FILE when set, otherwise from the
// environment. A .env file in the working directory is loaded first if present;
// it never overrides variables that are already set.
func Load() (Settings, error) {
	_ = godotenv.Load()

	if configPath := os.Getenv(common.EnvConfigFile); configPath != "" {
		return loadFromYAML(configPath)
	}
	return loadFromEnv()
}

func loadFromYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	enableMetrics := true
	if config.Server.EnableMetrics != nil {
		enableMetrics = *config.Server.EnableMetrics
	}

	// Environment variables override the file
	settings := Settings{
		ScalerPath:       getEnvOrDefault(common.EnvScalerPath, orDefault(config.Model.ScalerPath, common.DefaultScalerPath)),
		ModelPath:        getEnvOrDefault(common.EnvModelPath, orDefault(config.Model.ModelPath, common.DefaultModelPath)),
		MetadataPath:     getEnvOrDefault(common.EnvMetadataPath, config.Model.MetadataPath),
		PythonPath:       getEnvOrDefault(common.EnvPythonPath, config.Model.PythonPath),
		InferenceTimeout: getDurationFromEnvOrConfig(common.EnvInferenceTimeout, config.Model.InferenceTimeout, common.DefaultInferenceTimeout),
		APIPort:          getIntFromEnvOrConfig(common.EnvAPIPort, config.Server.APIPort, common.DefaultAPIPort),
		FormPort:         getIntFromEnvOrConfig(common.EnvFormPort, config.Server.FormPort, common.DefaultFormPort),
		EnableMetrics:    getBoolOrDefault(common.EnvEnableMetrics, enableMetrics),
		DataPath:         getEnvOrDefault(common.EnvDataPath, config.Storage.DataPath),
		LogLevel:         getEnvOrDefault(common.EnvLogLevel, orDefault(config.Logging.Level, common.DefaultLogLevel)),
		LogFormat:        getEnvOrDefault(common.EnvLogFormat, orDefault(config.Logging.Format, common.DefaultLogFormat)),
		ReadTimeout:      getDurationFromEnvOrConfig(common.EnvReadTimeout, config.Server.ReadTimeout, common.DefaultReadTimeout),
		WriteTimeout:     getDurationFromEnvOrConfig(common.EnvWriteTimeout, config.Server.WriteTimeout, common.DefaultWriteTimeout),
		ShutdownTimeout:  getDurationFromEnvOrConfig(common.EnvShutdownTimeout, config.Server.ShutdownTimeout, common.DefaultShutdownTimeout),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return settings, nil
}

func loadFromEnv() (Settings, error) {
	settings := Settings{
		ScalerPath:       getEnvOrDefault(common.EnvScalerPath, common.DefaultScalerPath),
		ModelPath:        getEnvOrDefault(common.EnvModelPath, common.DefaultModelPath),
		MetadataPath:     os.Getenv(common.EnvMetadataPath), // optional
		PythonPath:       os.Getenv(common.EnvPythonPath),   // discovered when empty
		InferenceTimeout: getDurationOrDefault(common.EnvInferenceTimeout, common.DefaultInferenceTimeout),
		APIPort:          getIntOrDefault(common.EnvAPIPort, common.DefaultAPIPort),
		FormPort:         getIntOrDefault(common.EnvFormPort, common.DefaultFormPort),
		EnableMetrics:    getBoolOrDefault(common.EnvEnableMetrics, true),
		DataPath:         os.Getenv(common.EnvDataPath), // journal disabled when empty
		LogLevel:         getEnvOrDefault(common.EnvLogLevel, common.DefaultLogLevel),
		LogFormat:        getEnvOrDefault(common.EnvLogFormat, common.DefaultLogFormat),
		ReadTimeout:      getDurationOrDefault(common.EnvReadTimeout, common.DefaultReadTimeout),
		WriteTimeout:     getDurationOrDefault(common.EnvWriteTimeout, common.DefaultWriteTimeout),
		ShutdownTimeout:  getDurationOrDefault(common.EnvShutdownTimeout, common.DefaultShutdownTimeout),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return settings, nil
}

func orDefault(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

func getIntFromEnvOrConfig(key string, configValue, defaultValue int) int {
	if configValue != 0 {
		defaultValue = configValue
	}
	return getIntOrDefault(key, defaultValue)
}

func getDurationFromEnvOrConfig(key, configValue string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(configValue); err == nil {
		defaultValue = d
	}
	return getDurationOrDefault(key, defaultValue)
}

// validateSettings range-checks ports and timeouts and requires the artifacts
func validateSettings(settings *Settings) error {
	if settings.ScalerPath == "" {
		return fmt.Errorf("scaler path cannot be empty")
	}
	if settings.ModelPath == "" {
		return fmt.Errorf("model path cannot be empty")
	}

	if settings.APIPort < 1024 || settings.APIPort > 65535 {
		return fmt.Errorf("API port must be between 1024 and 65535, got %d", settings.APIPort)
	}
	if settings.FormPort < 1024 || settings.FormPort > 65535 {
		return fmt.Errorf("form port must be between 1024 and 65535, got %d", settings.FormPort)
	}

	if settings.InferenceTimeout < 100*time.Millisecond || settings.InferenceTimeout > time.Minute {
		return fmt.Errorf("inference timeout must be between 100ms and 1m, got %v", settings.InferenceTimeout)
	}
	if settings.ReadTimeout < time.Second || settings.ReadTimeout > 5*time.Minute {
		return fmt.Errorf("read timeout must be between 1s and 5m, got %v", settings.ReadTimeout)
	}
	if settings.WriteTimeout < time.Second || settings.WriteTimeout > 5*time.Minute {
		return fmt.Errorf("write timeout must be between 1s and 5m, got %v", settings.WriteTimeout)
	}
	if settings.WriteTimeout <= settings.InferenceTimeout {
		return fmt.Errorf("write timeout (%v) must exceed inference timeout (%v)", settings.WriteTimeout, settings.InferenceTimeout)
	}
	if settings.ShutdownTimeout < time.Second || settings.ShutdownTimeout > 5*time.Minute {
		return fmt.Errorf("shutdown timeout must be between 1s and 5m, got %v", settings.ShutdownTimeout)
	}

	if _, err := zerolog.ParseLevel(settings.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q", settings.LogLevel)
	}
	if settings.LogFormat != common.LogFormatConsole && settings.LogFormat != common.LogFormatJSON {
		return fmt.Errorf("log format must be %q or %q, got %q", common.LogFormatConsole, common.LogFormatJSON, settings.LogFormat)
	}

	return nil
}
