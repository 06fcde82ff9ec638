package webdriver

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseConfig(t *testing.T) {
	t.Parallel()

	c, err := ParseConfig([]byte(`
browser: chromium
exec_path: /usr/bin/chromium
headless: true
page_load_timeout: 10s
flags:
  window-size: "1024,768"
  mute-audio: true
  remote-debugging-port: 9222
`))
	if err != nil {
		t.Fatal(err)
	}
	if c.Browser != "chromium" || c.ExecPath != "/usr/bin/chromium" || !c.Headless {
		t.Fatalf("unexpected config: %+v", c)
	}
	if c.PageLoadTimeout != 10*time.Second {
		t.Errorf("want 10s page load timeout, got %v", c.PageLoadTimeout)
	}
	if got := c.Flags["remote-debugging-port"]; got != "9222" {
		t.Errorf("want int flag converted to string, got %#v", got)
	}

	o := NewOptions(c.Options()...)
	if o.ExecPath != "/usr/bin/chromium" {
		t.Errorf("want exec path forwarded, got %q", o.ExecPath)
	}
	if o.Flags["headless"] != true || o.Flags["mute-audio"] != true {
		t.Errorf("want headless and mute-audio flags, got %v", o.Flags)
	}
	if o.Flags["window-size"] != "1024,768" {
		t.Errorf("want window-size flag, got %v", o.Flags["window-size"])
	}
	if o.PageLoadTimeout != 10*time.Second {
		t.Errorf("want page load timeout forwarded, got %v", o.PageLoadTimeout)
	}
}

func TestParseConfigBadFlag(t *testing.T) {
	t.Parallel()

	if _, err := ParseConfig([]byte("flags:\n  foo: [1, 2]\n")); err == nil {
		t.Fatal("want error for list flag value")
	}
	if _, err := ParseConfig([]byte("browser: [")); err == nil {
		t.Fatal("want error for malformed yaml")
	}
}

func TestConfigFromEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "webdriver.yaml")
	if err := os.WriteFile(path, []byte("browser: chrome\nexec_path: /opt/chrome\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv(EnvConfig, path)
	t.Setenv(EnvBrowser, "")
	t.Setenv(EnvExecPath, "/usr/local/bin/headless_shell")
	t.Setenv(EnvNoSandbox, "false")
	t.Setenv(EnvDebug, "")

	c, err := ConfigFromEnv("htmlunit")
	if err != nil {
		t.Fatal(err)
	}
	if c.Browser != "chrome" {
		t.Errorf("want browser from config file, got %q", c.Browser)
	}
	if c.ExecPath != "/usr/local/bin/headless_shell" {
		t.Errorf("want exec path from env, got %q", c.ExecPath)
	}
	if c.NoSandbox {
		t.Error("want sandbox enabled")
	}
	if !c.Headless {
		t.Error("want headless default kept when the config file doesn't set it")
	}

	t.Setenv(EnvConfig, "")
	t.Setenv(EnvBrowser, "")
	c, err = ConfigFromEnv("htmlunit")
	if err != nil {
		t.Fatal(err)
	}
	if c.Browser != "htmlunit" || !c.Headless {
		t.Errorf("want defaults, got %+v", c)
	}
}

func TestConfigFromEnvFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "webdriver.yaml")
	if err := os.WriteFile(path, []byte("headless: false\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvConfig, path)
	t.Setenv(EnvBrowser, "")
	t.Setenv(EnvNoSandbox, "")

	c, err := ConfigFromEnv("chrome")
	if err != nil {
		t.Fatal(err)
	}
	if c.Browser != "chrome" {
		t.Errorf("want browser argument kept, got %q", c.Browser)
	}
	if c.Headless {
		t.Error("want headless disabled by the config file")
	}
	if !c.NoSandbox {
		t.Error("want no-sandbox default kept")
	}
}

func TestNewOptionsDefaults(t *testing.T) {
	t.Parallel()

	var logged []string
	o := NewOptions(WithLogf(func(s string, v ...interface{}) { logged = append(logged, s) }))
	if o.PageLoadTimeout != DefaultPageLoadTimeout {
		t.Errorf("want default page load timeout, got %v", o.PageLoadTimeout)
	}
	o.Errorf("boom %d", 1)
	o.Debugf("ignored")
	if len(logged) != 1 || logged[0] != "ERROR: boom %d" {
		t.Fatalf("want error routed through logf with prefix, got %q", logged)
	}
}
