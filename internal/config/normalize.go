package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLLM()
	c.normalizeFacilitation()
	c.normalizeTeam()
	c.normalizeSession()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	return nil
}

func (c *Config) normalizeLLM() {
	if key := strings.TrimSpace(os.Getenv("EVA_LLM_API_KEY")); key != "" && strings.TrimSpace(c.LLM.APIKey) == "" {
		c.LLM.APIKey = key
	}
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.Model == "" {
		c.LLM.Model = defaultLLMModel
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
}

func (c *Config) normalizeFacilitation() {
	c.Facilitation.DefaultMode = strings.ToLower(strings.TrimSpace(c.Facilitation.DefaultMode))
	if c.Facilitation.DefaultMode == "" {
		c.Facilitation.DefaultMode = defaultFacilitationMode
	}
	if c.Facilitation.DefaultTimeboxMinutes <= 0 {
		c.Facilitation.DefaultTimeboxMinutes = defaultTimeboxMinutes
	}
	if c.Facilitation.WarnThresholdPercent <= 0 {
		c.Facilitation.WarnThresholdPercent = defaultWarnThreshold
	}
	c.Facilitation.SpeakerAccounting = strings.ToLower(strings.TrimSpace(c.Facilitation.SpeakerAccounting))
	if c.Facilitation.SpeakerAccounting == "" {
		c.Facilitation.SpeakerAccounting = defaultSpeakerAccounting
	}
	if c.Facilitation.MaxSegmentSeconds <= 0 {
		c.Facilitation.MaxSegmentSeconds = defaultMaxSegmentSeconds
	}
}

func (c *Config) normalizeTeam() {
	agents := make([]string, 0, len(c.Team.DefaultAgents))
	for _, agent := range c.Team.DefaultAgents {
		trimmed := strings.ToLower(strings.TrimSpace(agent))
		if trimmed != "" {
			agents = append(agents, trimmed)
		}
	}
	if len(agents) == 0 {
		agents = Default().Team.DefaultAgents
	}
	c.Team.DefaultAgents = agents
	if c.Team.BusCapacity <= 0 {
		c.Team.BusCapacity = defaultBusCapacity
	}
}

func (c *Config) normalizeSession() {
	if c.Session.IdleTimeoutSeconds <= 0 {
		c.Session.IdleTimeoutSeconds = defaultIdleTimeoutSeconds
	}
	if c.Session.LaneBuffer <= 0 {
		c.Session.LaneBuffer = defaultLaneBuffer
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays <= 0 {
		c.Logging.RetentionDays = defaultLogRetentionDays
	}
}
