package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config models dutyline.yml.
type Config struct {
	Telegram struct {
		Token        string `yaml:"token"`
		PollInterval int    `yaml:"poll_interval_seconds"`
	} `yaml:"telegram"`
	Auth struct {
		AdminCode     string `yaml:"admin_code"`
		PersonnelCode string `yaml:"personnel_code"`
	} `yaml:"auth"`
	Timezone string `yaml:"timezone"`
	Reminder struct {
		Hour   int `yaml:"hour"`
		Minute int `yaml:"minute"`
	} `yaml:"reminder"`
	Attachments struct {
		Dir string `yaml:"dir"`
	} `yaml:"attachments"`
	Server struct {
		Addr      string `yaml:"addr"`
		BasePath  string `yaml:"base_path"`
		JWTSecret string `yaml:"jwt_secret"`
	} `yaml:"server"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with dutyline config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Auth.AdminCode == "" {
		return fmt.Errorf("config.auth.admin_code is required")
	}
	if c.Auth.PersonnelCode == "" {
		return fmt.Errorf("config.auth.personnel_code is required")
	}
	if c.Auth.AdminCode == c.Auth.PersonnelCode {
		return fmt.Errorf("admin and personnel codes must differ")
	}
	if c.Timezone == "" {
		return fmt.Errorf("config.timezone is required")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("config.timezone invalid: %w", err)
	}
	if c.Reminder.Hour < 0 || c.Reminder.Hour > 23 {
		return fmt.Errorf("config.reminder.hour must be 0-23")
	}
	if c.Reminder.Minute < 0 || c.Reminder.Minute > 59 {
		return fmt.Errorf("config.reminder.minute must be 0-59")
	}
	if c.Telegram.PollInterval < 0 {
		return fmt.Errorf("config.telegram.poll_interval_seconds must be >= 0")
	}
	return nil
}

// Location resolves the configured timezone. Validate has already checked it.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// PollInterval returns the Telegram poll cadence with a sane default.
func (c *Config) PollInterval() time.Duration {
	if c.Telegram.PollInterval <= 0 {
		return 2 * time.Second
	}
	return time.Duration(c.Telegram.PollInterval) * time.Second
}

// AttachmentsDir resolves the photo storage dir relative to the workspace.
func (c *Config) AttachmentsDir(workspace string) string {
	dir := c.Attachments.Dir
	if dir == "" {
		dir = "photos"
	}
	if filepath.IsAbs(dir) {
		return dir
	}
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, dir)
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "dutyline.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if cfg.Reminder.Hour == 0 && cfg.Reminder.Minute == 0 {
		cfg.Reminder.Hour = 8
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `telegram:
  token: ""
  poll_interval_seconds: 2

auth:
  admin_code: ""
  personnel_code: ""

timezone: Asia/Tehran

reminder:
  hour: 8
  minute: 0

attachments:
  dir: photos

server:
  addr: ""
  base_path: /v0
  jwt_secret: ""
`
