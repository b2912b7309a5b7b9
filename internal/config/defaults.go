package config

const (
	defaultLogDir              = "~/.local/share/eva/logs"
	defaultAPIBind             = "127.0.0.1:7718"
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	defaultLogRetentionDays    = 30
	defaultLLMBaseURL          = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel            = "google/gemini-3-flash-preview"
	defaultLLMReferer          = "https://github.com/eva-project/eva"
	defaultLLMTitle            = "EVA Meeting Facilitator"
	defaultLLMTimeoutSeconds   = 30
	defaultFacilitationMode    = "enforcer"
	defaultTimeboxMinutes      = 2
	defaultWarnThreshold       = 80
	defaultSpeakerAccounting   = "session"
	defaultMaxSegmentSeconds   = 60
	defaultBusCapacity         = 512
	defaultIdleTimeoutSeconds  = 600
	defaultLaneBuffer          = 128
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Referer:        defaultLLMReferer,
			Title:          defaultLLMTitle,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		Facilitation: Facilitation{
			DefaultMode:           defaultFacilitationMode,
			DefaultTimeboxMinutes: defaultTimeboxMinutes,
			WarnThresholdPercent:  defaultWarnThreshold,
			SpeakerAccounting:     defaultSpeakerAccounting,
			MaxSegmentSeconds:     defaultMaxSegmentSeconds,
		},
		Team: Team{
			DefaultAgents: []string{"eva", "sop", "cro", "scrum"},
			BusCapacity:   defaultBusCapacity,
		},
		Session: Session{
			IdleTimeoutSeconds: defaultIdleTimeoutSeconds,
			LaneBuffer:         defaultLaneBuffer,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
