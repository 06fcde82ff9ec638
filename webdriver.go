package webdriver

import (
	"context"
)

// Driver is a controllable browser session.
//
// A Driver is owned by whoever created it, and must be released with Quit.
// Drivers are not safe for concurrent use by multiple test runners.
type Driver interface {
	// SessionID returns an identifier for the browser session.
	SessionID() string

	// Get navigates to urlstr and waits for the page to load.
	Get(ctx context.Context, urlstr string) error

	// CurrentURL returns the URL of the current page.
	CurrentURL(ctx context.Context) (string, error)

	// Title returns the current document's title.
	Title(ctx context.Context) (string, error)

	// PageSource returns the serialized current document.
	PageSource(ctx context.Context) (string, error)

	// Text returns the trimmed text content of the first element matching
	// the CSS selector sel. It returns ErrNoResults when nothing matches.
	Text(ctx context.Context, sel string) (string, error)

	// Back, Forward and Refresh move through the session history.
	Back(ctx context.Context) error
	Forward(ctx context.Context) error
	Refresh(ctx context.Context) error

	// AddCookie sets a cookie for the current page. An empty Domain makes a
	// host-only cookie for the page's host and an empty Path defaults to "/";
	// GetCookies reports the filled in values. Expires must be empty or a
	// value ParseExpires accepts, otherwise ErrInvalidExpiry is returned.
	AddCookie(ctx context.Context, cookie Cookie) error

	// GetCookies returns the cookies visible to the current page.
	GetCookies(ctx context.Context) ([]Cookie, error)

	// DeleteCookie deletes the cookie named name visible to the current
	// page. Other cookies are left untouched.
	DeleteCookie(ctx context.Context, name string) error

	// DeleteAllCookies deletes every cookie visible to the current page.
	DeleteAllCookies(ctx context.Context) error

	// Quit ends the session and releases its resources, such as a browser
	// process or a network connection.
	Quit(ctx context.Context) error
}

// Screenshotter is implemented by drivers that can capture the viewport.
type Screenshotter interface {
	// Screenshot returns a PNG encoded capture of the current viewport.
	Screenshot(ctx context.Context) ([]byte, error)
}

// PDFPrinter is implemented by drivers that can print pages.
type PDFPrinter interface {
	// PrintToPDF returns the current page printed as a PDF document.
	PrintToPDF(ctx context.Context) ([]byte, error)
}
