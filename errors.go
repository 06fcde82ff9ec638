package webdriver

// Error is a webdriver error.
type Error string

// Error satisfies the error interface.
func (err Error) Error() string {
	return string(err)
}

// Error values.
const (
	// ErrUnsupportedDriver is returned by New when no driver is registered
	// for the requested browser name.
	ErrUnsupportedDriver Error = "unsupported driver"

	// ErrNoPage is returned by cookie operations before any page has been
	// loaded.
	ErrNoPage Error = "no page loaded"

	// ErrInvalidCookie is returned when adding a cookie without a name.
	ErrInvalidCookie Error = "invalid cookie"

	// ErrInvalidExpiry is returned when a cookie's expires field is not a
	// whole second timestamp in milliseconds.
	ErrInvalidExpiry Error = "invalid cookie expiry"

	// ErrNoResults is returned when no element matches a selector.
	ErrNoResults Error = "no results"

	// ErrInvalidNavigation is returned when moving back or forward past the
	// ends of the session history.
	ErrInvalidNavigation Error = "invalid navigation entry"

	// ErrSessionClosed is returned when using a driver after Quit.
	ErrSessionClosed Error = "session closed"
)
