package validatetemplate

import (
	"fmt"
	"time"
)

type Config struct {
	Enabled       bool          `mapstructure:"enabled"`
	MaxJobsActive int           `mapstructure:"max_jobs_active"`
	Timeout       time.Duration `mapstructure:"timeout"`
	// TemplateVariable names the process variable holding the template object. When it is
	// absent from a job, the job's top-level variables are used instead.
	TemplateVariable string `mapstructure:"template_variable"`
	// CommandTimeout bounds the complete and fail commands sent back to Zeebe. It is
	// independent of Timeout so a job that ran out of time can still be reported.
	CommandTimeout time.Duration `mapstructure:"command_timeout"`
}

func DefaultConfig() *Config {
	return &Config{
		Enabled:          true,
		MaxJobsActive:    5,
		Timeout:          30 * time.Second,
		TemplateVariable: "template",
		CommandTimeout:   10 * time.Second,
	}
}

func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxJobsActive <= 0 {
		return fmt.Errorf("max_jobs_active must be positive")
	}
	if c.CommandTimeout <= 0 {
		return fmt.Errorf("command_timeout must be positive")
	}
	if c.TemplateVariable == "" {
		return fmt.Errorf("template_variable is required")
	}
	return nil
}
