package chrome

// Error is a chrome driver error.
type Error string

// Error satisfies the error interface.
func (err Error) Error() string {
	return string(err)
}

// Error types.
const (
	// ErrInvalidWebsocketMessage is the invalid websocket message.
	ErrInvalidWebsocketMessage Error = "invalid websocket message"

	// ErrBrowserClosed is returned for commands sent after the browser
	// connection is gone.
	ErrBrowserClosed Error = "browser closed"

	// ErrNoWebsocketURL is returned when a started browser exits before
	// reporting its websocket url.
	ErrNoWebsocketURL Error = "browser did not report a websocket url"

	// ErrNoRemoteURL is returned by NewRemote without a remote url option.
	ErrNoRemoteURL Error = "no remote url"
)
