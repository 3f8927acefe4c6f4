package envvar

const (
	// SamplegenEnv is the environment variable used to determine the environment
	SamplegenEnv = "SAMPLEGEN_ENV"

	// SamplegenModelsPath overrides the directory models are downloaded into
	SamplegenModelsPath = "SAMPLEGEN_MODELS_PATH"

	// SamplegenOutputDir overrides the directory generated audio is written to
	SamplegenOutputDir = "SAMPLEGEN_OUTPUT_DIR"

	// SamplegenLogLevel sets the minimum log level (debug, info, warn, error)
	SamplegenLogLevel = "SAMPLEGEN_LOG_LEVEL"
)
