package config

import (
	"errors"
	"fmt"
)

var validModes = map[string]struct{}{
	"observer": {},
	"enforcer": {},
	"hardcore": {},
}

var validAccounting = map[string]struct{}{
	"session": {},
	"turn":    {},
}

var knownAgents = map[string]struct{}{
	"eva":   {},
	"sop":   {},
	"cro":   {},
	"scrum": {},
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateFacilitation(); err != nil {
		return err
	}
	if err := c.validateTeam(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateFacilitation() error {
	if _, ok := validModes[c.Facilitation.DefaultMode]; !ok {
		return fmt.Errorf("facilitation.default_mode must be one of observer, enforcer, hardcore (got %q)", c.Facilitation.DefaultMode)
	}
	if _, ok := validAccounting[c.Facilitation.SpeakerAccounting]; !ok {
		return fmt.Errorf("facilitation.speaker_accounting must be session or turn (got %q)", c.Facilitation.SpeakerAccounting)
	}
	if c.Facilitation.WarnThresholdPercent >= 100 {
		return errors.New("facilitation.warn_threshold_percent must be below 100")
	}
	return nil
}

func (c *Config) validateTeam() error {
	for _, agent := range c.Team.DefaultAgents {
		if _, ok := knownAgents[agent]; !ok {
			return fmt.Errorf("team.default_agents contains unknown agent %q", agent)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
		return nil
	default:
		return fmt.Errorf("logging.format must be console or json (got %q)", c.Logging.Format)
	}
}
