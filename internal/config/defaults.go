package config

const (
	defaultInputDir          = "~/.local/share/transvox/input"
	defaultOutputDir         = "~/.local/share/transvox/output"
	defaultLogDir            = "~/.local/share/transvox/logs"
	defaultAPIBind           = "127.0.0.1:8300"
	defaultPython            = "python3"
	defaultScript            = "full_auto_pipeline.py"
	defaultTranscribeEngine  = "whisperx"
	defaultTTSEngine         = "indextts"
	defaultMaxVideoMinutes   = 20
	defaultMaxVideoBytes     = int64(1024 * 1024 * 1024)
	defaultQueuePollInterval = 1
	defaultCancelPollMillis  = 500
	defaultJobTimeout        = 0
	defaultTerminateGrace    = 3
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			InputDir:  defaultInputDir,
			OutputDir: defaultOutputDir,
			LogDir:    defaultLogDir,
			APIBind:   defaultAPIBind,
		},
		Pipeline: Pipeline{
			Python:           defaultPython,
			Script:           defaultScript,
			TranscribeEngine: defaultTranscribeEngine,
			TTSEngine:        defaultTTSEngine,
		},
		Limits: Limits{
			MaxVideoMinutes: defaultMaxVideoMinutes,
			MaxVideoBytes:   defaultMaxVideoBytes,
		},
		Workflow: Workflow{
			QueuePollInterval: defaultQueuePollInterval,
			CancelPollMillis:  defaultCancelPollMillis,
			JobTimeout:        defaultJobTimeout,
			TerminateGrace:    defaultTerminateGrace,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
