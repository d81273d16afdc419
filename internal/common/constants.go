package common

import "time"

// Environment variable keys
const (
	EnvConfigFile       = "CONFIG_FILE"
	EnvScalerPath       = "SCALER_PATH"
	EnvModelPath        = "MODEL_PATH"
	EnvMetadataPath     = "METADATA_PATH"
	EnvPythonPath       = "PYTHON_PATH"
	EnvInferenceTimeout = "INFERENCE_TIMEOUT"
	EnvAPIPort          = "API_PORT"
	EnvFormPort         = "FORM_PORT"
	EnvEnableMetrics    = "ENABLE_METRICS"
	EnvDataPath         = "DATA_PATH"
	EnvLogLevel         = "LOG_LEVEL"
	EnvLogFormat        = "LOG_FORMAT"
	EnvReadTimeout      = "READ_TIMEOUT"
	EnvWriteTimeout     = "WRITE_TIMEOUT"
	EnvShutdownTimeout  = "SHUTDOWN_TIMEOUT"
)

// Configuration defaults
const (
	DefaultScalerPath       = "models/scaler.json"
	DefaultModelPath        = "models/model.json"
	DefaultAPIPort          = 8000
	DefaultFormPort         = 8501
	DefaultInferenceTimeout = 5 * time.Second
	DefaultReadTimeout      = 10 * time.Second
	DefaultWriteTimeout     = 15 * time.Second
	DefaultShutdownTimeout  = 10 * time.Second
	DefaultLogLevel         = "info"
	DefaultLogFormat        = LogFormatConsole
)

// Log output formats
const (
	LogFormatConsole = "console"
	LogFormatJSON    = "json"
)

// Journal sources, recorded with every stored prediction
const (
	SourceAPI  = "api"
	SourceForm = "form"
	SourceCLI  = "cli"
)
