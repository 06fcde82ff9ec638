package chrome

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// DefaultFlags are the flags every started browser gets, unless overridden
// through webdriver.Flag.
var DefaultFlags = map[string]interface{}{
	"no-first-run":             true,
	"no-default-browser-check": true,

	"disable-background-networking":                      true,
	"enable-features":                                    "NetworkService,NetworkServiceInProcess",
	"disable-background-timer-throttling":                true,
	"disable-backgrounding-occluded-windows":             true,
	"disable-breakpad":                                   true,
	"disable-client-side-phishing-detection":             true,
	"disable-default-apps":                               true,
	"disable-dev-shm-usage":                              true,
	"disable-extensions":                                 true,
	"disable-features":                                   "site-per-process,Translate,BlinkGenPropertyTrees",
	"disable-hang-monitor":                               true,
	"disable-ipc-flooding-protection":                    true,
	"disable-popup-blocking":                             true,
	"disable-prompt-on-repost":                           true,
	"disable-renderer-backgrounding":                     true,
	"disable-sync":                                       true,
	"force-color-profile":                                "srgb",
	"metrics-recording-only":                             true,
	"safebrowsing-disable-auto-update":                   true,
	"enable-automation":                                  true,
	"password-store":                                     "basic",
	"use-mock-keychain":                                  true,
	"hide-scrollbars":                                    true,
	"mute-audio":                                         true,
	"disable-component-extensions-with-background-pages": true,
}

// allocator starts a browser process and cleans up after it.
type allocator struct {
	execPath string
	flags    map[string]interface{}
	logf     func(string, ...interface{})

	cmd       *exec.Cmd
	dataDir   string
	removeDir bool

	waitOnce sync.Once
	waitErr  error
}

func newAllocator(execPath string, flags map[string]interface{}, logf func(string, ...interface{})) *allocator {
	all := maps.Clone(DefaultFlags)
	maps.Copy(all, flags)
	return &allocator{
		execPath: execPath,
		flags:    all,
		logf:     logf,
	}
}

// args builds the command line, sorted by flag name.
func (a *allocator) args() ([]string, error) {
	names := maps.Keys(a.flags)
	slices.Sort(names)

	var args []string
	for _, name := range names {
		switch value := a.flags[name].(type) {
		case string:
			args = append(args, fmt.Sprintf("--%s=%s", name, value))
		case bool:
			if value {
				args = append(args, fmt.Sprintf("--%s", name))
			}
		default:
			return nil, fmt.Errorf("invalid flag %q: %T is not a string or bool", name, value)
		}
	}
	return args, nil
}

// start runs the browser and returns its websocket url. ctx bounds the
// startup only; the process runs until wait is called.
func (a *allocator) start(ctx context.Context) (string, error) {
	if dir, ok := a.flags["user-data-dir"].(string); ok && dir != "" {
		a.dataDir = dir
	} else {
		dir, err := os.MkdirTemp("", "webdriver-chrome")
		if err != nil {
			return "", err
		}
		a.flags["user-data-dir"] = dir
		a.dataDir, a.removeDir = dir, true
	}
	a.flags["remote-debugging-port"] = "0"

	args, err := a.args()
	if err != nil {
		a.cleanup()
		return "", err
	}
	// about:blank keeps the browser from opening its new tab page.
	args = append(args, "about:blank")

	a.cmd = exec.Command(a.execPath, args...)
	killWithParent(a.cmd)
	stderr, err := a.cmd.StderrPipe()
	if err != nil {
		a.cleanup()
		return "", err
	}
	if err := a.cmd.Start(); err != nil {
		a.cleanup()
		return "", err
	}

	type result struct {
		urlstr string
		err    error
	}
	ch := make(chan result, 1)
	go func() {
		urlstr, err := readOutput(stderr, a.logf)
		ch <- result{urlstr, err}
	}()

	select {
	case res := <-ch:
		if res.err != nil {
			a.kill()
			return "", res.err
		}
		return res.urlstr, nil
	case <-ctx.Done():
		a.cmd.Process.Kill()
		<-ch
		a.wait()
		return "", ctx.Err()
	}
}

// readOutput picks up the browser's websocket url from its stderr, then
// keeps draining the output in the background.
func readOutput(rc io.ReadCloser, logf func(string, ...interface{})) (string, error) {
	const prefix = "DevTools listening on"
	var lines []string
	scanner := bufio.NewScanner(rc)
	for scanner.Scan() {
		line := scanner.Text()
		if s := strings.TrimPrefix(line, prefix); s != line {
			go io.Copy(io.Discard, rc)
			return strings.TrimSpace(s), nil
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	if len(lines) > 0 {
		logf("browser output:\n%s", strings.Join(lines, "\n"))
	}
	return "", ErrNoWebsocketURL
}

func (a *allocator) kill() {
	if a.cmd.Process != nil {
		a.cmd.Process.Kill()
	}
	a.wait()
}

// wait waits for the process to exit, then removes the temporary user data
// directory.
func (a *allocator) wait() error {
	a.waitOnce.Do(func() {
		if a.cmd != nil && a.cmd.Process != nil {
			a.waitErr = a.cmd.Wait()
			var exitErr *exec.ExitError
			if errors.As(a.waitErr, &exitErr) {
				// Killed or closed after Browser.close; not an error.
				a.waitErr = nil
			}
		}
		a.cleanup()
	})
	return a.waitErr
}

func (a *allocator) cleanup() {
	if a.removeDir {
		if err := os.RemoveAll(a.dataDir); err != nil {
			a.logf("could not remove user data dir %s: %v", a.dataDir, err)
		}
		a.removeDir = false
	}
}

// findExecPath returns the first of names found in PATH, or the first name
// to give a useful error message.
func findExecPath(names ...string) string {
	for _, name := range names {
		if found, err := exec.LookPath(name); err == nil {
			return found
		}
	}
	return names[0]
}

// Exec path candidates per browser kind.
var (
	chromeExecPaths = []string{
		"google-chrome",
		"google-chrome-stable",
		"google-chrome-beta",
		"google-chrome-unstable",
		"/usr/bin/google-chrome",
		"chrome",
		"chrome.exe",
		`C:\Program Files\Google\Chrome\Application\chrome.exe`,
		`C:\Program Files (x86)\Google\Chrome\Application\chrome.exe`,
		`/Applications/Google Chrome.app/Contents/MacOS/Google Chrome`,
	}
	chromiumExecPaths = []string{
		"chromium",
		"chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		`/Applications/Chromium.app/Contents/MacOS/Chromium`,
	}
	headlessShellExecPaths = []string{
		"headless-shell",
		"headless_shell",
		"/headless-shell/headless-shell",
	}
)
