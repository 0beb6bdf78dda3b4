// Package config provides YAML-based configuration loading for the CTC controller.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level controller configuration, loaded from ctc.yaml.
type Config struct {
	Controller    ControllerConfig       `yaml:"controller"`
	Database      DatabaseConfig         `yaml:"database"`
	HTTP          HTTPConfig             `yaml:"http"`
	Collaborators []CollaboratorConfig   `yaml:"collaborators"`
	Lines         []LineConfig           `yaml:"lines"`
	Schedule      []ScheduledTrainConfig `yaml:"schedule"`
	Services      []ServiceConfig        `yaml:"services"`
	Alerts        AlertsConfig           `yaml:"alerts"`
}

// ControllerConfig holds tick loop and safety parameters.
type ControllerConfig struct {
	TickInterval    time.Duration `yaml:"tick_interval"`
	Step            time.Duration `yaml:"step"`
	Speed           float64       `yaml:"speed"`
	StartTime       time.Time     `yaml:"start_time"`
	AutoStart       bool          `yaml:"auto_start"`
	LookaheadBlocks int           `yaml:"lookahead_blocks"`
	ServiceBrake    float64       `yaml:"service_brake"`   // m/s²
	MaxTrainSpeed   float64       `yaml:"max_train_speed"` // m/s
	QueueCapacity   int           `yaml:"queue_capacity"`
	SnapshotEvery   int           `yaml:"snapshot_every"` // ticks; 0 disables persistence
}

// DatabaseConfig selects the persistence backend.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // sqlite or mysql
	Path     string `yaml:"path"`   // sqlite file
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

// HTTPConfig holds the operator surface listener settings.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// AlertTokenEnv supplies alerts.token when the file leaves it empty, so the
// bot token can stay out of ctc.yaml.
const AlertTokenEnv = "CTC_ALERT_TOKEN"

// AlertsConfig selects the chat platform controller faults are posted to.
// An empty platform disables alerting.
type AlertsConfig struct {
	Platform string        `yaml:"platform"` // slack, discord or empty
	Channel  string        `yaml:"channel"`
	Token    string        `yaml:"token"`
	Cooldown time.Duration `yaml:"cooldown"` // repeat suppression for one-shot faults
	Pulse    time.Duration `yaml:"pulse"`    // periodic summary; 0 disables
}

// Enabled reports whether alerts should be sent.
func (a AlertsConfig) Enabled() bool { return a.Platform != "" }

// CollaboratorConfig registers an external link and its staleness bound.
type CollaboratorConfig struct {
	Name         string        `yaml:"name"`
	Kind         string        `yaml:"kind"` // wayside, train, operator
	MaxStaleness time.Duration `yaml:"max_staleness"`
}

// LineConfig describes the static topology of one line.
type LineConfig struct {
	Name       string         `yaml:"name"`
	Yard       int            `yaml:"yard"`        // block number trains are dispatched onto
	SpeedLimit float64        `yaml:"speed_limit"` // default block limit, m/s
	Blocks     []BlockConfig  `yaml:"blocks"`
	Switches   []SwitchConfig `yaml:"switches"`
	Gates      []GateConfig   `yaml:"gates"`
	Signals    []int          `yaml:"signals"` // block numbers carrying a signal
}

// BlockConfig describes a single block. Next lists successor block numbers.
type BlockConfig struct {
	Section    string  `yaml:"section"`
	Number     int     `yaml:"number"`
	Length     float64 `yaml:"length"`      // metres
	SpeedLimit float64 `yaml:"speed_limit"` // m/s
	Station    string  `yaml:"station"`
	Next       []int   `yaml:"next"`
}

// SwitchConfig describes a switch by its common block and two legs.
type SwitchConfig struct {
	Section string `yaml:"section"`
	Number  int    `yaml:"number"`
	Block   int    `yaml:"block"`
	Normal  int    `yaml:"normal"`
	Reverse int    `yaml:"reverse"`
}

// GateConfig describes a crossing gate and the block it guards.
type GateConfig struct {
	Section string `yaml:"section"`
	Number  int    `yaml:"number"`
	Block   int    `yaml:"block"`
}

// ScheduledTrainConfig is one explicit schedule entry.
type ScheduledTrainConfig struct {
	ID          int       `yaml:"id"`
	Line        string    `yaml:"line"`
	Destination string    `yaml:"destination"`
	Departure   time.Time `yaml:"departure"`
	Arrival     time.Time `yaml:"arrival"`
}

// ServiceConfig is a recurring service expanded from a cron expression.
type ServiceConfig struct {
	Name        string        `yaml:"name"`
	Line        string        `yaml:"line"`
	Destination string        `yaml:"destination"`
	Cron        string        `yaml:"cron"`
	RunTime     time.Duration `yaml:"run_time"`
	FirstID     int           `yaml:"first_id"`
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	ctl := &c.Controller
	if ctl.TickInterval == 0 {
		ctl.TickInterval = time.Second
	}
	if ctl.Step == 0 {
		ctl.Step = time.Second
	}
	if ctl.Speed == 0 {
		ctl.Speed = 1
	}
	if ctl.StartTime.IsZero() {
		ctl.StartTime = time.Date(2026, 1, 1, 5, 0, 0, 0, time.UTC)
	}
	if ctl.LookaheadBlocks == 0 {
		ctl.LookaheadBlocks = 8
	}
	if ctl.ServiceBrake == 0 {
		ctl.ServiceBrake = 1.2
	}
	if ctl.MaxTrainSpeed == 0 {
		ctl.MaxTrainSpeed = 19.44 // 70 km/h
	}
	if ctl.QueueCapacity == 0 {
		ctl.QueueCapacity = 1024
	}

	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			c.Database.Path = "ctc.db"
		}
	case "mysql":
		if c.Database.Host == "" {
			c.Database.Host = "127.0.0.1"
		}
		if c.Database.Port == 0 {
			c.Database.Port = 3306
		}
		if c.Database.User == "" {
			c.Database.User = "root"
		}
		if c.Database.Name == "" {
			c.Database.Name = "ctc"
		}
	}

	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}

	if c.Alerts.Enabled() {
		if c.Alerts.Token == "" {
			c.Alerts.Token = os.Getenv(AlertTokenEnv)
		}
		if c.Alerts.Cooldown == 0 {
			c.Alerts.Cooldown = time.Minute
		}
	}

	for i := range c.Collaborators {
		if c.Collaborators[i].MaxStaleness == 0 {
			c.Collaborators[i].MaxStaleness = 10 * time.Second
		}
	}

	for i := range c.Lines {
		ln := &c.Lines[i]
		if ln.SpeedLimit == 0 {
			ln.SpeedLimit = ctl.MaxTrainSpeed
		}
		for j := range ln.Blocks {
			if ln.Blocks[j].SpeedLimit == 0 {
				ln.Blocks[j].SpeedLimit = ln.SpeedLimit
			}
		}
	}
}

// validate checks that all required fields are present and consistent.
// Topology wiring (successors, switch legs) is checked when the track model
// is built.
func (c *Config) validate() error {
	var errs []string
	if c.Controller.Speed < 0 {
		errs = append(errs, "controller.speed must be positive")
	}
	if c.Controller.ServiceBrake < 0 {
		errs = append(errs, "controller.service_brake must be positive")
	}
	if c.Controller.QueueCapacity < 0 {
		errs = append(errs, "controller.queue_capacity must be positive")
	}
	if c.Database.Driver != "sqlite" && c.Database.Driver != "mysql" {
		errs = append(errs, fmt.Sprintf("database.driver %q must be sqlite or mysql", c.Database.Driver))
	}
	if a := c.Alerts; a.Enabled() {
		if a.Platform != "slack" && a.Platform != "discord" {
			errs = append(errs, fmt.Sprintf("alerts.platform %q must be slack or discord", a.Platform))
		}
		if a.Channel == "" {
			errs = append(errs, "alerts.channel is required")
		}
		if a.Token == "" {
			errs = append(errs, fmt.Sprintf("alerts.token is required (or set %s)", AlertTokenEnv))
		}
		if a.Cooldown < 0 || a.Pulse < 0 {
			errs = append(errs, "alerts.cooldown and alerts.pulse must not be negative")
		}
	}
	for i, cc := range c.Collaborators {
		if cc.Name == "" {
			errs = append(errs, fmt.Sprintf("collaborators[%d].name is required", i))
		}
		switch cc.Kind {
		case "wayside", "train", "operator":
		default:
			errs = append(errs, fmt.Sprintf("collaborators[%d].kind %q must be wayside, train or operator", i, cc.Kind))
		}
	}

	if len(c.Lines) == 0 {
		errs = append(errs, "at least one line is required")
	}
	lines := make(map[string]bool)
	for i, ln := range c.Lines {
		if ln.Name == "" {
			errs = append(errs, fmt.Sprintf("lines[%d].name is required", i))
		}
		if lines[ln.Name] {
			errs = append(errs, fmt.Sprintf("lines[%d].name %q is duplicated", i, ln.Name))
		}
		lines[ln.Name] = true
		if len(ln.Blocks) == 0 {
			errs = append(errs, fmt.Sprintf("lines[%d].blocks: at least one block is required", i))
		}
		if ln.Yard == 0 {
			errs = append(errs, fmt.Sprintf("lines[%d].yard is required", i))
		}
		for j, b := range ln.Blocks {
			if b.Section == "" {
				errs = append(errs, fmt.Sprintf("lines[%d].blocks[%d].section is required", i, j))
			}
			if b.Number <= 0 {
				errs = append(errs, fmt.Sprintf("lines[%d].blocks[%d].number must be positive", i, j))
			}
			if b.Length <= 0 {
				errs = append(errs, fmt.Sprintf("lines[%d].blocks[%d].length must be positive", i, j))
			}
		}
	}

	for i, s := range c.Schedule {
		if s.ID <= 0 {
			errs = append(errs, fmt.Sprintf("schedule[%d].id must be positive", i))
		}
		if !lines[s.Line] {
			errs = append(errs, fmt.Sprintf("schedule[%d].line %q is not configured", i, s.Line))
		}
		if s.Destination == "" {
			errs = append(errs, fmt.Sprintf("schedule[%d].destination is required", i))
		}
		if !s.Arrival.IsZero() && s.Arrival.Before(s.Departure) {
			errs = append(errs, fmt.Sprintf("schedule[%d].arrival is before departure", i))
		}
	}
	for i, s := range c.Services {
		if s.Cron == "" {
			errs = append(errs, fmt.Sprintf("services[%d].cron is required", i))
		}
		if !lines[s.Line] {
			errs = append(errs, fmt.Sprintf("services[%d].line %q is not configured", i, s.Line))
		}
		if s.Destination == "" {
			errs = append(errs, fmt.Sprintf("services[%d].destination is required", i))
		}
		if s.FirstID <= 0 {
			errs = append(errs, fmt.Sprintf("services[%d].first_id must be positive", i))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
