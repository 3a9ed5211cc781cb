package config

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/m4xw311/they/errors"
	"gopkg.in/yaml.v3"
)

// ErrMissingSetting matches the error Validate returns when required settings are absent.
var ErrMissingSetting = stderrors.New("missing required setting")

// MissingSettingsError names every required setting that has no value.
type MissingSettingsError struct {
	Names []string
}

func (e *MissingSettingsError) Error() string {
	return strings.Join(e.Names, ", ") + " required. Set in .env or as environment variables."
}

func (e *MissingSettingsError) Is(target error) bool { return target == ErrMissingSetting }

// Defaults applied before any file or environment is read.
const (
	DefaultTemperature    = 0.7
	DefaultMaxTokens      = 16384
	DefaultMaxIterations  = 50
	DefaultPasteThreshold = 5
	DefaultCommandTimeout = 120
)

// Environment variable names.
const (
	EnvProvider    = "PROVIDER"
	EnvAPIKey      = "API_KEY"
	EnvModel       = "MODEL"
	EnvBaseURL     = "BASE_URL"
	EnvTemperature = "TEMPERATURE"
	EnvMaxTokens   = "MAX_TOKENS"
)

const dirName = ".they"

type FilesystemAccess struct {
	Hidden []string `yaml:"hidden"`
}

type MCPServer struct {
	Name    string   `yaml:"name"`
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
}

type Config struct {
	Provider         string           `yaml:"provider"`
	Model            string           `yaml:"model"`
	BaseURL          string           `yaml:"base_url"`
	Temperature      float64          `yaml:"temperature"`
	MaxTokens        int64            `yaml:"max_tokens"`
	MaxIterations    int              `yaml:"max_iterations"`
	PasteThreshold   int              `yaml:"paste_threshold"`
	CommandTimeout   int              `yaml:"command_timeout"`
	AllowedCommands  []string         `yaml:"allowed_commands"`
	FilesystemAccess FilesystemAccess `yaml:"filesystem_access"`
	MCPServers       []MCPServer      `yaml:"mcp_servers"`

	// APIKey only ever comes from the environment or a .env file.
	APIKey string `yaml:"-"`

	// Sources lists the files that contributed to this configuration.
	Sources []string `yaml:"-"`
}

// LoadOptions controls where Load looks for configuration.
type LoadOptions struct {
	// HomeDir overrides the user's home directory. Empty means os.UserHomeDir.
	HomeDir string
	// WorkDir overrides the project directory. Empty means os.Getwd.
	WorkDir string
	// EnvFile names a dotenv file. Empty means ".env" in WorkDir, which may be absent.
	EnvFile string
}

// Default returns a configuration holding only defaults.
func Default() *Config {
	cfg := &Config{
		Temperature:    DefaultTemperature,
		MaxTokens:      DefaultMaxTokens,
		MaxIterations:  DefaultMaxIterations,
		PasteThreshold: DefaultPasteThreshold,
		CommandTimeout: DefaultCommandTimeout,
	}
	// The tool's own directory stays hidden from the model.
	cfg.FilesystemAccess.Hidden = append(cfg.FilesystemAccess.Hidden, dirName, dirName+"/**")
	return cfg
}

// Load builds the configuration from the user-level file, the project-level
// file, the dotenv file and the environment, each overriding the previous one.
// The result is not validated; call Validate once command-line overrides are applied.
func Load(opts LoadOptions) (*Config, error) {
	cfg := Default()

	home := opts.HomeDir
	if home == "" {
		if h, err := os.UserHomeDir(); err == nil {
			home = h
		}
	}
	if home != "" {
		if err := cfg.mergeFile(filepath.Join(home, dirName, "config.yaml")); err != nil {
			return nil, errors.Wrapf(err, "error loading user config")
		}
	}

	wd := opts.WorkDir
	if wd == "" {
		var err error
		if wd, err = os.Getwd(); err != nil {
			return nil, errors.Wrapf(err, "could not get working directory")
		}
	}
	if err := cfg.mergeFile(filepath.Join(wd, dirName, "config.yaml")); err != nil {
		return nil, errors.Wrapf(err, "error loading project config")
	}

	envFile := opts.EnvFile
	explicit := envFile != ""
	if !explicit {
		envFile = filepath.Join(wd, ".env")
	}
	if err := godotenv.Load(envFile); err == nil {
		cfg.Sources = append(cfg.Sources, envFile)
	} else if explicit || !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "error loading env file %s", envFile)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	hidden := c.FilesystemAccess.Hidden
	// Unmarshal overwrites fields present in the YAML, so project-level
	// values replace user-level ones. Hidden patterns accumulate instead.
	if err := yaml.Unmarshal(data, c); err != nil {
		return errors.Wrapf(err, "could not parse %s", path)
	}
	c.FilesystemAccess.Hidden = mergeUnique(hidden, c.FilesystemAccess.Hidden)
	c.Sources = append(c.Sources, path)
	return nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvProvider); v != "" {
		c.Provider = v
	}
	if v := os.Getenv(EnvAPIKey); v != "" {
		c.APIKey = v
	}
	if v := os.Getenv(EnvModel); v != "" {
		c.Model = v
	}
	if v := os.Getenv(EnvBaseURL); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv(EnvTemperature); v != "" {
		t, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return errors.Wrapf(err, "invalid %s %q", EnvTemperature, v)
		}
		c.Temperature = t
	}
	if v := os.Getenv(EnvMaxTokens); v != "" {
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return errors.Wrapf(err, "invalid %s %q", EnvMaxTokens, v)
		}
		c.MaxTokens = n
	}
	return nil
}

// NeedsAPIKey reports whether the configured provider authenticates with API_KEY.
func (c *Config) NeedsAPIKey() bool {
	switch strings.ToLower(c.Provider) {
	case "bedrock", "mock":
		return false
	}
	return true
}

// Validate checks that the settings needed to reach a model are present.
func (c *Config) Validate() error {
	var missing []string
	if c.Provider == "" {
		missing = append(missing, EnvProvider)
	}
	if c.APIKey == "" && c.NeedsAPIKey() {
		missing = append(missing, EnvAPIKey)
	}
	if c.Model == "" {
		missing = append(missing, EnvModel)
	}
	if len(missing) > 0 {
		return &MissingSettingsError{Names: missing}
	}
	if c.Temperature < 0 {
		return errors.New("%s must not be negative, got %v", EnvTemperature, c.Temperature)
	}
	if c.MaxTokens <= 0 {
		return errors.New("%s must be positive, got %d", EnvMaxTokens, c.MaxTokens)
	}
	if c.MaxIterations <= 0 {
		c.MaxIterations = DefaultMaxIterations
	}
	if c.PasteThreshold <= 0 {
		c.PasteThreshold = DefaultPasteThreshold
	}
	if c.CommandTimeout <= 0 {
		c.CommandTimeout = DefaultCommandTimeout
	}
	return nil
}

// CommandTimeoutDuration returns the default execute_command timeout.
func (c *Config) CommandTimeoutDuration() time.Duration {
	return time.Duration(c.CommandTimeout) * time.Second
}

func mergeUnique(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	var out []string
	for _, s := range append(append([]string(nil), a...), b...) {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
