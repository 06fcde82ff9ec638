package drivertest

import (
	"context"
	"errors"
	"testing"

	"github.com/chromedp/webdriver"
)

// quitCounter is a driver that only counts Quit calls.
type quitCounter struct {
	webdriver.Driver
	quits int
}

func (d *quitCounter) Quit(context.Context) error {
	d.quits++
	return nil
}

var lastQuitCounter *quitCounter

func init() {
	webdriver.Register("drivertest-quitcounter", func(context.Context, *webdriver.Options) (webdriver.Driver, error) {
		lastQuitCounter = new(quitCounter)
		return lastQuitCounter, nil
	})
}

func TestStartUnsupported(t *testing.T) {
	_, err := Start(context.Background(), "drivertest-nosuchbrowser")
	if !errors.Is(err, webdriver.ErrUnsupportedDriver) {
		t.Fatalf("Start() returned error %v, want %v", err, webdriver.ErrUnsupportedDriver)
	}
}

func TestStopOnce(t *testing.T) {
	env, err := Start(context.Background(), "drivertest-quitcounter")
	if err != nil {
		t.Fatal(err)
	}
	if env.Server.Port() == 0 {
		t.Fatal("webserver not running after Start")
	}
	d := lastQuitCounter
	for i := 0; i < 3; i++ {
		if err := env.Stop(context.Background()); err != nil {
			t.Fatalf("Stop() #%d returned error: %v", i+1, err)
		}
	}
	if d.quits != 1 {
		t.Errorf("driver quit %d times, want 1", d.quits)
	}
	if port := env.Server.Port(); port != 0 {
		t.Errorf("webserver still listening on %d after Stop", port)
	}
}

func TestOnlineFromEnv(t *testing.T) {
	tests := []struct {
		val  string
		want bool
	}{
		{"", false},
		{"false", false},
		{"true", true},
		{"1", true},
	}
	for _, test := range tests {
		t.Setenv(EnvOnline, test.val)
		if got := onlineFromEnv(); got != test.want {
			t.Errorf("with %s=%q, onlineFromEnv() = %v, want %v", EnvOnline, test.val, got, test.want)
		}
	}
}
