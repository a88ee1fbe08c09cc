package config

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/enneadtab/revit-worker/internal/bridge"
	"github.com/enneadtab/revit-worker/internal/fileio"
	"github.com/enneadtab/revit-worker/internal/util"
	"sigs.k8s.io/yaml"
)

const (
	// DefaultConfigDir is the default directory where the worker's configuration is stored
	DefaultConfigDir = "/etc/revit-worker"
	// DefaultConfigFile is the default path to the worker's configuration file
	DefaultConfigFile = DefaultConfigDir + "/config.yaml"
	// DefaultDataDir is the default directory watched for job descriptors
	DefaultDataDir = "/var/lib/revit-worker"
	// DefaultPollInterval is the default interval between two job file checks
	DefaultPollInterval = time.Duration(5 * time.Second)
	// DefaultPollTimeout bounds how long a single wait for a job descriptor lasts
	DefaultPollTimeout = time.Duration(10 * time.Minute)
	// DefaultHeartbeatInterval is the default interval between two heartbeat lines
	DefaultHeartbeatInterval = time.Duration(15 * time.Second)
	// DefaultServerPort is the default port of the worker's status server
	DefaultServerPort = 8321
	// DefaultDatabaseFile is the run history database, resolved under DataDir
	// unless absolute
	DefaultDatabaseFile = "runs.db"
)

type Config struct {
	// DataDir is the directory watched for job descriptors; the debug
	// directory and run history database live under it unless overridden
	DataDir string `json:"data-dir"`
	// TaskOutputDir is where result files and exports are written; defaults
	// to DataDir/output
	TaskOutputDir string `json:"task-output-dir,omitempty"`
	// DebugDir holds the heartbeat, the error registry and failure payloads;
	// defaults to DataDir/debug
	DebugDir string `json:"debug-dir,omitempty"`
	// MappingFile is an optional xlsx sheet mapping used to route exports
	// into per-discipline subfolders
	MappingFile string `json:"mapping-file,omitempty"`
	// DatabaseFile is the sqlite run history database
	DatabaseFile string `json:"database-file,omitempty"`

	// Bridge is the client configuration for connecting to the automation bridge
	Bridge bridge.Config `json:"bridge,omitempty"`

	// PollInterval is the interval between two job file checks
	PollInterval util.Duration `json:"poll-interval,omitempty"`
	// PollTimeout bounds how long a single wait for a job descriptor lasts
	PollTimeout util.Duration `json:"poll-timeout,omitempty"`
	// HeartbeatInterval is the interval between two heartbeat lines
	HeartbeatInterval util.Duration `json:"heartbeat-interval,omitempty"`

	// ServerPort is the port of the worker's status server; 0 disables it
	ServerPort int `json:"server-port,omitempty"`

	// LogLevel is the level of logging: "debug", "info", "warn" or "error",
	// any other will be treated as "info"
	LogLevel string `json:"log-level,omitempty"`

	reader *fileio.Reader
}

func NewDefault() *Config {
	return &Config{
		DataDir:           DefaultDataDir,
		DatabaseFile:      DefaultDatabaseFile,
		Bridge:            *bridge.NewDefaultConfig(),
		PollInterval:      util.Duration{Duration: DefaultPollInterval},
		PollTimeout:       util.Duration{Duration: DefaultPollTimeout},
		HeartbeatInterval: util.Duration{Duration: DefaultHeartbeatInterval},
		ServerPort:        DefaultServerPort,
		LogLevel:          "info",
		reader:            fileio.NewReader(),
	}
}

// Validate checks required fields, fills the derived directories and overlays
// bridge environment variables.
func (cfg *Config) Validate() error {
	if cfg.DataDir == "" {
		return fmt.Errorf("data-dir is required")
	}
	if cfg.reader == nil {
		cfg.reader = fileio.NewReader()
	}
	if err := cfg.reader.CheckPathExists(cfg.DataDir); err != nil {
		return fmt.Errorf("data-dir: %w", err)
	}

	if cfg.TaskOutputDir == "" {
		cfg.TaskOutputDir = filepath.Join(cfg.DataDir, "output")
	}
	if cfg.DebugDir == "" {
		cfg.DebugDir = filepath.Join(cfg.DataDir, "debug")
	}
	if cfg.DatabaseFile == "" {
		cfg.DatabaseFile = DefaultDatabaseFile
	}
	if !filepath.IsAbs(cfg.DatabaseFile) {
		cfg.DatabaseFile = filepath.Join(cfg.DataDir, cfg.DatabaseFile)
	}
	if cfg.PollInterval.Duration <= 0 {
		return fmt.Errorf("poll-interval must be positive")
	}
	if cfg.HeartbeatInterval.Duration <= 0 {
		return fmt.Errorf("heartbeat-interval must be positive")
	}

	if err := cfg.Bridge.ApplyEnv(); err != nil {
		return fmt.Errorf("bridge environment: %w", err)
	}
	return cfg.Bridge.Validate()
}

// ParseConfigFile reads the config file and unmarshals it into the Config struct
func (cfg *Config) ParseConfigFile(cfgFile string) error {
	contents, err := cfg.reader.ReadFile(cfgFile)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(contents, cfg); err != nil {
		return fmt.Errorf("unmarshalling config file: %w", err)
	}
	return nil
}

func (cfg *Config) String() string {
	contents, err := json.Marshal(cfg)
	if err != nil {
		return "<error>"
	}
	return string(contents)
}
