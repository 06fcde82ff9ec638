package webdriver

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// NewFunc constructs a driver from the options forwarded by New.
type NewFunc func(ctx context.Context, opts *Options) (Driver, error)

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]NewFunc)
)

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Register makes a driver constructor available by the provided browser
// name. Register panics if fn is nil or if it is called twice for the same
// name. It is meant to be called from a driver package's init.
func Register(name string, fn NewFunc) {
	driversMu.Lock()
	defer driversMu.Unlock()
	if fn == nil {
		panic("webdriver: Register constructor is nil")
	}
	key := normalizeName(name)
	if key == "" {
		panic("webdriver: Register name is empty")
	}
	if _, dup := drivers[key]; dup {
		panic("webdriver: Register called twice for driver " + key)
	}
	drivers[key] = fn
}

// Drivers returns the sorted names of the registered drivers.
func Drivers() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()
	names := maps.Keys(drivers)
	slices.Sort(names)
	return names
}

// New constructs a fresh driver for the browser name, forwarding opts to its
// constructor. Each call returns a new driver; nothing is cached.
//
// When no driver is registered for name, the returned error matches
// ErrUnsupportedDriver. Errors from the constructor itself are wrapped with
// the driver name.
func New(ctx context.Context, name string, opts ...Option) (Driver, error) {
	driversMu.RLock()
	fn, ok := drivers[normalizeName(name)]
	driversMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: there's no driver for %q browser", ErrUnsupportedDriver, name)
	}
	d, err := fn(ctx, NewOptions(opts...))
	if err != nil {
		return nil, fmt.Errorf("webdriver: %s: %w", normalizeName(name), err)
	}
	return d, nil
}
