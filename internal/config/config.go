// internal/config/config.go
//
// This package handles configuration and the .twindeck directory structure.
// Every project that uses twindeck gets a .twindeck/ folder created in its root.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// ProjectDirName is the name of the directory we create in each project.
	ProjectDirName = ".twindeck"

	defaultNetwork      = "testnet"
	defaultAuthURL      = "https://accounts.google.com/o/oauth2/v2/auth"
	defaultCallbackPort = 8970
	defaultReplyDelayMS = 2000
)

const defaultProjectConfigYAML = `# twindeck project configuration
version: 1

# Chain endpoint settings. The package id points at the deployed twin contracts.
chain:
  network: testnet
  package_id: ""

# zkLogin OAuth settings. client_id must come from your OAuth provider console.
auth:
  client_id: ""
  auth_url: https://accounts.google.com/o/oauth2/v2/auth
  callback_port: 8970

# Simulated chat behaviour.
chat:
  reply_delay_ms: 2000
`

// ChainConfig holds blockchain endpoint settings.
type ChainConfig struct {
	Network   string `yaml:"network"`
	PackageID string `yaml:"package_id,omitempty"`
}

// AuthConfig holds the zkLogin OAuth settings.
type AuthConfig struct {
	ClientID     string `yaml:"client_id,omitempty"`
	AuthURL      string `yaml:"auth_url,omitempty"`
	CallbackPort int    `yaml:"callback_port,omitempty"`
}

// ChatConfig captures simulated chat behaviour.
type ChatConfig struct {
	ReplyDelayMS int `yaml:"reply_delay_ms,omitempty"`
}

// ProjectConfig models .twindeck/config.yaml.
type ProjectConfig struct {
	Version int         `yaml:"version"`
	Chain   ChainConfig `yaml:"chain"`
	Auth    AuthConfig  `yaml:"auth"`
	Chat    ChatConfig  `yaml:"chat"`
}

// Config holds the runtime configuration for twindeck.
type Config struct {
	// ProjectDir is the directory where the user ran `twindeck` from.
	ProjectDir string

	// TwindeckDir is ProjectDir/.twindeck
	TwindeckDir string

	Project ProjectConfig
}

// InitProjectDir creates the .twindeck directory structure in the given
// project directory. This is called when the TUI starts up.
//
// Structure created:
// .twindeck/
// ├── state/   <- Twin and listing collections, pending auth request
// └── logs/    <- Activity journal
func InitProjectDir(projectDir string) error {
	root := filepath.Join(projectDir, ProjectDirName)
	dirs := []string{
		filepath.Join(root, "state"),
		filepath.Join(root, "logs"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return ensureProjectConfig(filepath.Join(root, "config.yaml"))
}

// NewConfig creates a new Config instance populated with project settings.
func NewConfig(projectDir string) (*Config, error) {
	cfg := &Config{
		ProjectDir:  projectDir,
		TwindeckDir: filepath.Join(projectDir, ProjectDirName),
		Project:     defaultProjectConfig(),
	}
	if err := cfg.loadProjectConfig(); err != nil {
		return nil, err
	}
	cfg.applyEnvOverrides()
	return cfg, nil
}

// StateDir returns the path to the durable state directory.
func (c *Config) StateDir() string {
	return filepath.Join(c.TwindeckDir, "state")
}

// LogsDir returns the path to the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.TwindeckDir, "logs")
}

// JournalPath returns the activity journal file path.
func (c *Config) JournalPath() string {
	return filepath.Join(c.LogsDir(), "activity.log")
}

// ProjectConfigPath returns the on-disk location for the project config file.
func (c *Config) ProjectConfigPath() string {
	return filepath.Join(c.TwindeckDir, "config.yaml")
}

// ReplyDelay returns the simulated chat reply latency.
func (c *Config) ReplyDelay() time.Duration {
	return time.Duration(c.Project.Chat.ReplyDelayMS) * time.Millisecond
}

// CallbackAddr returns the loopback bind address for the OAuth callback server.
func (c *Config) CallbackAddr() string {
	return fmt.Sprintf("127.0.0.1:%d", c.Project.Auth.CallbackPort)
}

// RedirectURI returns the redirect_uri registered with the OAuth provider.
func (c *Config) RedirectURI() string {
	return fmt.Sprintf("http://%s/auth/callback", c.CallbackAddr())
}

func (c *Config) loadProjectConfig() error {
	path := c.ProjectConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	var parsed ProjectConfig
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	parsed.applyDefaults()
	parsed.normalize()
	if err := parsed.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	c.Project = parsed
	return nil
}

func (c *Config) applyEnvOverrides() {
	if value := strings.TrimSpace(os.Getenv("TWINDECK_CLIENT_ID")); value != "" {
		c.Project.Auth.ClientID = value
	}
	if value := strings.TrimSpace(os.Getenv("TWINDECK_AUTH_URL")); value != "" {
		c.Project.Auth.AuthURL = value
	}
	if value := strings.TrimSpace(os.Getenv("TWINDECK_PACKAGE_ID")); value != "" {
		c.Project.Chain.PackageID = value
	}
}

func defaultProjectConfig() ProjectConfig {
	return ProjectConfig{
		Version: 1,
		Chain:   ChainConfig{Network: defaultNetwork},
		Auth: AuthConfig{
			AuthURL:      defaultAuthURL,
			CallbackPort: defaultCallbackPort,
		},
		Chat: ChatConfig{ReplyDelayMS: defaultReplyDelayMS},
	}
}

func (pc *ProjectConfig) applyDefaults() {
	if pc.Version == 0 {
		pc.Version = 1
	}
	if strings.TrimSpace(pc.Chain.Network) == "" {
		pc.Chain.Network = defaultNetwork
	}
	if strings.TrimSpace(pc.Auth.AuthURL) == "" {
		pc.Auth.AuthURL = defaultAuthURL
	}
	if pc.Auth.CallbackPort == 0 {
		pc.Auth.CallbackPort = defaultCallbackPort
	}
	if pc.Chat.ReplyDelayMS == 0 {
		pc.Chat.ReplyDelayMS = defaultReplyDelayMS
	}
}

func (pc *ProjectConfig) normalize() {
	pc.Chain.Network = strings.ToLower(strings.TrimSpace(pc.Chain.Network))
	pc.Chain.PackageID = strings.TrimSpace(pc.Chain.PackageID)
	pc.Auth.ClientID = strings.TrimSpace(pc.Auth.ClientID)
	pc.Auth.AuthURL = strings.TrimSpace(pc.Auth.AuthURL)
}

func (pc *ProjectConfig) validate() error {
	if pc.Version < 1 {
		return fmt.Errorf("config version must be >= 1")
	}
	switch pc.Chain.Network {
	case "mainnet", "testnet", "devnet", "localnet":
	default:
		return fmt.Errorf("chain.network must be one of mainnet, testnet, devnet, localnet")
	}
	if !isValidPort(pc.Auth.CallbackPort) {
		return fmt.Errorf("auth.callback_port must be between 1 and 65535")
	}
	if pc.Chat.ReplyDelayMS < 0 {
		return fmt.Errorf("chat.reply_delay_ms must not be negative")
	}
	return nil
}

func isValidPort(port int) bool {
	return port > 0 && port <= 65535
}

func ensureProjectConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.WriteFile(path, []byte(defaultProjectConfigYAML), 0o644)
}
