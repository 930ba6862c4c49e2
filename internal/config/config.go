// Package config handles loading pmmail2eml configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/BurntSushi/toml"
)

// DefaultLogFileName is the run log written into the target directory
// when no log file is configured.
const DefaultLogFileName = "conversion_log.txt"

// Config represents the pmmail2eml configuration.
type Config struct {
	Convert ConvertConfig `toml:"convert"`

	// Computed paths (not from config file)
	HomeDir    string `toml:"-"`
	configPath string
}

// ConvertConfig holds the defaults for the convert command.
type ConvertConfig struct {
	SourceDir string `toml:"source_dir"` // PMMail archive root
	TargetDir string `toml:"target_dir"` // Where .eml files are written
	LogFile   string `toml:"log_file"`   // Default: <target_dir>/conversion_log.txt
	Workers   int    `toml:"workers"`    // Files converted concurrently (default: 1)
}

// DefaultHome returns the default pmmail2eml home directory.
// Respects the PMMAIL2EML_HOME environment variable.
func DefaultHome() string {
	if h := os.Getenv("PMMAIL2EML_HOME"); h != "" {
		return expandPath(h)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".pmmail2eml"
	}
	return filepath.Join(home, ".pmmail2eml")
}

// NewDefaultConfig returns a configuration with default values and no
// file loaded.
func NewDefaultConfig() *Config {
	return newConfig(DefaultHome())
}

func newConfig(homeDir string) *Config {
	return &Config{
		HomeDir: homeDir,
		Convert: ConvertConfig{
			Workers: 1,
		},
		configPath: filepath.Join(homeDir, "config.toml"),
	}
}

// Load reads the configuration. homeDir overrides the home directory
// (the --home flag); empty means DefaultHome. path names the config file
// explicitly (the --config flag); empty means <home>/config.toml, which
// is optional. An explicit path that does not exist is an error.
func Load(path, homeDir string) (*Config, error) {
	if homeDir == "" {
		homeDir = DefaultHome()
	} else {
		homeDir = expandPath(homeDir)
	}
	cfg := newConfig(homeDir)

	explicit := path != ""
	if explicit {
		cfg.configPath = expandPath(path)
	}

	if _, err := os.Stat(cfg.configPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			if explicit {
				return nil, fmt.Errorf("config file not found: %s", cfg.configPath)
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("stat config: %w", err)
	}

	if _, err := toml.DecodeFile(cfg.configPath, cfg); err != nil {
		return nil, fmt.Errorf("decode config %s: %w%s", cfg.configPath, err, backslashHint(err))
	}

	cfg.Convert.SourceDir = expandPath(cfg.Convert.SourceDir)
	cfg.Convert.TargetDir = expandPath(cfg.Convert.TargetDir)
	cfg.Convert.LogFile = expandPath(cfg.Convert.LogFile)
	if cfg.Convert.Workers < 1 {
		cfg.Convert.Workers = 1
	}

	return cfg, nil
}

// ConfigFilePath returns the config file that was (or would be) loaded.
func (c *Config) ConfigFilePath() string {
	return c.configPath
}

// LogFilePath returns the run log location for a conversion into
// targetDir.
func (c *Config) LogFilePath(targetDir string) string {
	if c.Convert.LogFile != "" {
		return c.Convert.LogFile
	}
	return filepath.Join(targetDir, DefaultLogFileName)
}

// backslashHint explains the usual cause of TOML escape errors: Windows
// paths written in double quotes.
func backslashHint(err error) string {
	msg := err.Error()
	if !strings.Contains(msg, "escape") && !strings.Contains(msg, "hexadecimal digits") {
		return ""
	}
	return "\nhint: use forward slashes (C:/PMMail) or single quotes ('C:\\PMMail') for Windows paths"
}

// expandPath expands a leading ~ or ~/ to the user's home directory and,
// on Windows, strips quotes left around a path by CMD.
func expandPath(path string) string {
	if runtime.GOOS == "windows" {
		path = stripQuotes(path)
	}
	if path == "" {
		return path
	}
	tilde := path == "~" || strings.HasPrefix(path, "~/") ||
		(runtime.GOOS == "windows" && strings.HasPrefix(path, `~\`))
	if !tilde {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}

func stripQuotes(s string) string {
	if len(s) >= 2 && (s[0] == '\'' || s[0] == '"') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}
