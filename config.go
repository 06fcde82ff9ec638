package webdriver

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is a serializable description of which driver to start and how.
//
// It is typically loaded from a YAML file:
//
//	browser: chrome
//	exec_path: /usr/bin/chromium
//	headless: true
//	no_sandbox: true
//	page_load_timeout: 10s
//	flags:
//	  window-size: "1024,768"
type Config struct {
	Browser         string                 `yaml:"browser"`
	ExecPath        string                 `yaml:"exec_path,omitempty"`
	RemoteURL       string                 `yaml:"remote_url,omitempty"`
	Headless        bool                   `yaml:"headless,omitempty"`
	NoSandbox       bool                   `yaml:"no_sandbox,omitempty"`
	Debug           bool                   `yaml:"debug,omitempty"`
	PageLoadTimeout time.Duration          `yaml:"page_load_timeout,omitempty"`
	Flags           map[string]interface{} `yaml:"flags,omitempty"`
}

// ParseConfig decodes a YAML config.
func ParseConfig(buf []byte) (*Config, error) {
	c := new(Config)
	if err := c.decode(buf); err != nil {
		return nil, err
	}
	return c, nil
}

// decode decodes buf over c, keeping the fields buf doesn't set.
func (c *Config) decode(buf []byte) error {
	if err := yaml.Unmarshal(buf, c); err != nil {
		return fmt.Errorf("webdriver: parsing config: %w", err)
	}
	for name, value := range c.Flags {
		switch v := value.(type) {
		case string, bool:
		case int:
			c.Flags[name] = strconv.Itoa(v)
		default:
			return fmt.Errorf("webdriver: config flag %q: unsupported value %v", name, value)
		}
	}
	return nil
}

// LoadConfig reads and decodes the YAML config at path.
func LoadConfig(path string) (*Config, error) {
	c := new(Config)
	if err := c.load(path); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) load(path string) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return c.decode(buf)
}

// Environment variables read by ConfigFromEnv.
const (
	EnvBrowser   = "WEBDRIVER_TEST_BROWSER"
	EnvConfig    = "WEBDRIVER_TEST_CONFIG"
	EnvExecPath  = "WEBDRIVER_TEST_EXEC"
	EnvNoSandbox = "WEBDRIVER_NO_SANDBOX"
	EnvDebug     = "WEBDRIVER_DEBUG"
)

// ConfigFromEnv builds a config for test harnesses. It starts from a headless,
// unsandboxed config for browser. If WEBDRIVER_TEST_CONFIG names a file, the
// file is decoded over those defaults; the other variables then override it.
// The sandbox is disabled unless WEBDRIVER_NO_SANDBOX is "false", as that
// vastly speeds up tests.
func ConfigFromEnv(browser string) (*Config, error) {
	c := &Config{Browser: browser, Headless: true, NoSandbox: true}
	if path := os.Getenv(EnvConfig); path != "" {
		if err := c.load(path); err != nil {
			return nil, err
		}
	}
	if c.Browser == "" {
		c.Browser = browser
	}
	if s := os.Getenv(EnvBrowser); s != "" {
		c.Browser = s
	}
	if s := os.Getenv(EnvExecPath); s != "" {
		c.ExecPath = s
	}
	if s := os.Getenv(EnvNoSandbox); s != "" {
		c.NoSandbox = s != "false"
	}
	if s := os.Getenv(EnvDebug); s != "" && s != "false" {
		c.Debug = true
	}
	return c, nil
}

// Options converts the config into driver options.
func (c *Config) Options() []Option {
	var opts []Option
	if c.ExecPath != "" {
		opts = append(opts, ExecPath(c.ExecPath))
	}
	if c.RemoteURL != "" {
		opts = append(opts, RemoteURL(c.RemoteURL))
	}
	if c.Headless {
		opts = append(opts, Headless)
	}
	if c.NoSandbox {
		opts = append(opts, NoSandbox)
	}
	if c.Debug {
		opts = append(opts, WithDebugf(log.Printf))
	}
	if c.PageLoadTimeout > 0 {
		opts = append(opts, PageLoadTimeout(c.PageLoadTimeout))
	}
	for name, value := range c.Flags {
		opts = append(opts, Flag(name, value))
	}
	return opts
}
