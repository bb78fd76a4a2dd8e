package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// EnvPrefix names environment overrides, e.g. RELAYCTL_BRIDGE_URL.
const EnvPrefix = "RELAYCTL_"

// Development defaults matching the services' own defaults.
const (
	DefaultBridgeURL = "http://localhost:3001"
	DefaultSinkURL   = "http://localhost:3002"
	DefaultJWTSecret = "1234567890"
	DefaultCallerID  = "source-service"
)

type Config struct {
	CurrentProfile string              `yaml:"current_profile"`
	Profiles       map[string]*Profile `yaml:"profiles"`
	path           string
}

// Profile is one deployment target. Empty fields fall back to the defaults.
type Profile struct {
	BridgeURL string `yaml:"bridge_url,omitempty"`
	SinkURL   string `yaml:"sink_url,omitempty"`
	JWTSecret string `yaml:"jwt_secret,omitempty"`
	CallerID  string `yaml:"caller_id,omitempty"`
}

func Default() *Config {
	return &Config{
		CurrentProfile: "default",
		Profiles:       make(map[string]*Profile),
	}
}

func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".relayctl", "config.yaml"), nil
}

// Load reads cfgFile, or ~/.relayctl/config.yaml when empty. A missing file
// yields the default config.
func Load(cfgFile string) (*Config, error) {
	if cfgFile == "" {
		path, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		cfgFile = path
	}

	cfg := Default()
	cfg.path = cfgFile

	data, err := os.ReadFile(cfgFile)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", cfgFile, err)
	}
	if cfg.Profiles == nil {
		cfg.Profiles = make(map[string]*Profile)
	}
	return cfg, nil
}

func (c *Config) Path() string { return c.path }

func (c *Config) Save() error {
	if c.path == "" {
		path, err := DefaultPath()
		if err != nil {
			return err
		}
		c.path = path
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0700); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	// profiles carry the signing secret
	return os.WriteFile(c.path, data, 0600)
}

// SaveProfile stores p under name, makes it current and writes the file.
func (c *Config) SaveProfile(name string, p Profile) error {
	if c.Profiles == nil {
		c.Profiles = make(map[string]*Profile)
	}
	c.Profiles[name] = &p
	c.CurrentProfile = name
	return c.Save()
}

func (c *Config) GetProfile(name string) (*Profile, error) {
	if name == "" {
		name = c.CurrentProfile
	}

	profile, ok := c.Profiles[name]
	if !ok {
		return nil, fmt.Errorf("profile '%s' not found", name)
	}
	return profile, nil
}

func (c *Config) RemoveProfile(name string) error {
	if _, ok := c.Profiles[name]; !ok {
		return fmt.Errorf("profile '%s' not found", name)
	}

	delete(c.Profiles, name)

	if c.CurrentProfile == name {
		c.CurrentProfile = ""
	}
	return c.Save()
}

// ProfileNames returns stored profile names in sorted order.
func (c *Config) ProfileNames() []string {
	names := make([]string, 0, len(c.Profiles))
	for name := range c.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve layers defaults, the named profile (current when empty; a missing
// profile is not an error) and RELAYCTL_* environment variables, in that order.
func (c *Config) Resolve(name string) Profile {
	resolved := Profile{
		BridgeURL: DefaultBridgeURL,
		SinkURL:   DefaultSinkURL,
		JWTSecret: DefaultJWTSecret,
		CallerID:  DefaultCallerID,
	}

	if p, err := c.GetProfile(name); err == nil {
		resolved.merge(*p)
	}

	if secret, ok := os.LookupEnv("JWT_SECRET"); ok && secret != "" {
		resolved.JWTSecret = secret
	}
	resolved.merge(Profile{
		BridgeURL: os.Getenv(EnvPrefix + "BRIDGE_URL"),
		SinkURL:   os.Getenv(EnvPrefix + "SINK_URL"),
		JWTSecret: os.Getenv(EnvPrefix + "JWT_SECRET"),
		CallerID:  os.Getenv(EnvPrefix + "CALLER_ID"),
	})
	return resolved
}

func (p *Profile) merge(o Profile) {
	if o.BridgeURL != "" {
		p.BridgeURL = o.BridgeURL
	}
	if o.SinkURL != "" {
		p.SinkURL = o.SinkURL
	}
	if o.JWTSecret != "" {
		p.JWTSecret = o.JWTSecret
	}
	if o.CallerID != "" {
		p.CallerID = o.CallerID
	}
}
