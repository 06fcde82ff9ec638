// Package webdriver provides a common Driver interface for controlling web
// browsers, and a registry to construct drivers by browser name.
//
// Driver implementations register themselves when imported, in the same way
// as database/sql drivers:
//
//	import (
//		"github.com/chromedp/webdriver"
//		_ "github.com/chromedp/webdriver/chrome"
//	)
//
//	d, err := webdriver.New(ctx, "chrome", webdriver.Headless)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer d.Quit(ctx)
//
// Names that were never registered fail with ErrUnsupportedDriver.
package webdriver
