package webdriver_test

import (
	"context"
	"fmt"
	"log"

	"github.com/chromedp/webdriver"
	_ "github.com/chromedp/webdriver/htmlunit"
	"github.com/chromedp/webdriver/webserver"
)

func ExampleNew() {
	srv := webserver.New(webserver.WithLogf(func(string, ...interface{}) {}))
	if err := srv.Start(); err != nil {
		log.Fatal(err)
	}
	defer srv.Stop()

	ctx := context.Background()
	d, err := webdriver.New(ctx, "htmlunit")
	if err != nil {
		log.Fatal(err)
	}
	defer d.Quit(ctx)

	if err := d.Get(ctx, srv.URL("simpleTest.html")); err != nil {
		log.Fatal(err)
	}
	title, err := d.Title(ctx)
	if err != nil {
		log.Fatal(err)
	}
	text, err := d.Text(ctx, "#oneline")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(title)
	fmt.Println(text)

	// Output:
	// Hello WebDriver
	// A single line of text
}

func ExampleNew_unsupported() {
	_, err := webdriver.New(context.Background(), "netscape")
	fmt.Println(err)

	// Output:
	// unsupported driver: there's no driver for "netscape" browser
}

func ExampleCookie() {
	srv := webserver.New(webserver.WithLogf(func(string, ...interface{}) {}))
	if err := srv.Start(); err != nil {
		log.Fatal(err)
	}
	defer srv.Stop()

	ctx := context.Background()
	d, err := webdriver.New(ctx, "htmlunit")
	if err != nil {
		log.Fatal(err)
	}
	defer d.Quit(ctx)

	if err := d.Get(ctx, srv.URL("simpleTest.html")); err != nil {
		log.Fatal(err)
	}
	if err := d.AddCookie(ctx, webdriver.Cookie{Name: "foo", Value: "bar"}); err != nil {
		log.Fatal(err)
	}
	cookies, err := d.GetCookies(ctx)
	if err != nil {
		log.Fatal(err)
	}
	for _, c := range cookies {
		fmt.Printf("%s=%s domain=%s path=%s\n", c.Name, c.Value, c.Domain, c.Path)
	}

	// Output:
	// foo=bar domain=localhost path=/
}
