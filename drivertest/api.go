package drivertest

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/ledongthuc/pdf"
	"github.com/orisano/pixelmatch"

	"github.com/chromedp/webdriver"
)

// RunAPIExampleTests runs the suite of basic navigation and page inspection
// examples.
func RunAPIExampleTests(t *testing.T, env *Env) {
	t.Run("GetTitle", runTest(testGetTitle, env))
	t.Run("GetCurrentURL", runTest(testGetCurrentURL, env))
	t.Run("FindElementText", runTest(testFindElementText, env))
	t.Run("FindMissingElement", runTest(testFindMissingElement, env))
	t.Run("PageSource", runTest(testPageSource, env))
	t.Run("Redirect", runTest(testRedirect, env))
	t.Run("MetaRedirect", runTest(testMetaRedirect, env))
	t.Run("BackAndForward", runTest(testBackAndForward, env))
	t.Run("Refresh", runTest(testRefresh, env))
	t.Run("Fragment", runTest(testFragment, env))
	t.Run("NumberedPage", runTest(testNumberedPage, env))
	t.Run("SlowPage", runTest(testSlowPage, env))
	t.Run("Screenshot", runTest(testScreenshot, env))
	t.Run("PrintToPDF", runTest(testPrintToPDF, env))
}

func get(ctx context.Context, t *testing.T, env *Env, path string) {
	t.Helper()
	urlstr := env.Server.URL(path)
	if err := env.Driver.Get(ctx, urlstr); err != nil {
		t.Fatalf("Get(%q) returned error: %v", urlstr, err)
	}
}

// waitTitle polls until the page title is want. Drivers that follow
// redirects asynchronously may report the previous page for a short while.
func waitTitle(ctx context.Context, t *testing.T, d webdriver.Driver, want string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	var title string
	for {
		var err error
		if title, err = d.Title(ctx); err == nil && title == want {
			return
		}
		select {
		case <-ctx.Done():
			t.Fatalf("Title() = %q, want %q", title, want)
		case <-ticker.C:
		}
	}
}

func testGetTitle(t *testing.T, env *Env) {
	ctx := testContext(t, env)
	get(ctx, t, env, "simpleTest.html")
	title, err := env.Driver.Title(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if want := "Hello WebDriver"; title != want {
		t.Errorf("Title() = %q, want %q", title, want)
	}
}

func testGetCurrentURL(t *testing.T, env *Env) {
	ctx := testContext(t, env)
	get(ctx, t, env, "simpleTest.html")
	urlstr, err := env.Driver.CurrentURL(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if want := env.Server.URL("simpleTest.html"); urlstr != want {
		t.Errorf("CurrentURL() = %q, want %q", urlstr, want)
	}
}

func testFindElementText(t *testing.T, env *Env) {
	ctx := testContext(t, env)
	get(ctx, t, env, "simpleTest.html")
	text, err := env.Driver.Text(ctx, "#oneline")
	if err != nil {
		t.Fatal(err)
	}
	if want := "A single line of text"; text != want {
		t.Errorf("Text(%q) = %q, want %q", "#oneline", text, want)
	}
}

func testFindMissingElement(t *testing.T, env *Env) {
	ctx := testContext(t, env)
	get(ctx, t, env, "simpleTest.html")
	if _, err := env.Driver.Text(ctx, "#doesnotexist"); !errors.Is(err, webdriver.ErrNoResults) {
		t.Errorf("Text(%q) returned error %v, want %v", "#doesnotexist", err, webdriver.ErrNoResults)
	}
}

func testPageSource(t *testing.T, env *Env) {
	ctx := testContext(t, env)
	get(ctx, t, env, "simpleTest.html")
	source, err := env.Driver.PageSource(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if want := "<h1>Heading</h1>"; !strings.Contains(source, want) {
		t.Errorf("PageSource() = %q, want it to contain %q", source, want)
	}
}

func testRedirect(t *testing.T, env *Env) {
	ctx := testContext(t, env)
	get(ctx, t, env, "redirect")
	waitTitle(ctx, t, env.Driver, "We Arrive Here")
}

func testMetaRedirect(t *testing.T, env *Env) {
	ctx := testContext(t, env)
	get(ctx, t, env, "metaRedirect.html")
	waitTitle(ctx, t, env.Driver, "We Arrive Here")
}

func testBackAndForward(t *testing.T, env *Env) {
	ctx := testContext(t, env)
	get(ctx, t, env, "formPage.html")
	get(ctx, t, env, "resultPage.html")
	waitTitle(ctx, t, env.Driver, "We Arrive Here")

	if err := env.Driver.Back(ctx); err != nil {
		t.Fatalf("Back() returned error: %v", err)
	}
	waitTitle(ctx, t, env.Driver, "We Leave From Here")

	if err := env.Driver.Forward(ctx); err != nil {
		t.Fatalf("Forward() returned error: %v", err)
	}
	waitTitle(ctx, t, env.Driver, "We Arrive Here")
}

func testRefresh(t *testing.T, env *Env) {
	ctx := testContext(t, env)
	get(ctx, t, env, "xhtmlTest.html")
	if err := env.Driver.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() returned error: %v", err)
	}
	waitTitle(ctx, t, env.Driver, "XHTML Test Page")
}

func testFragment(t *testing.T, env *Env) {
	ctx := testContext(t, env)
	get(ctx, t, env, "xhtmlTest.html")
	get(ctx, t, env, "xhtmlTest.html#text")
	urlstr, err := env.Driver.CurrentURL(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(urlstr, "#text") {
		t.Errorf("CurrentURL() = %q, want it to end with %q", urlstr, "#text")
	}
	waitTitle(ctx, t, env.Driver, "XHTML Test Page")
}

func testNumberedPage(t *testing.T, env *Env) {
	ctx := testContext(t, env)
	get(ctx, t, env, "page/1")
	text, err := env.Driver.Text(ctx, "#pageNumber")
	if err != nil {
		t.Fatal(err)
	}
	if text != "1" {
		t.Errorf("Text(%q) = %q, want %q", "#pageNumber", text, "1")
	}
	waitTitle(ctx, t, env.Driver, "Page1")
}

func testSlowPage(t *testing.T, env *Env) {
	ctx := testContext(t, env)
	get(ctx, t, env, "sleep?time=1")
	waitTitle(ctx, t, env.Driver, "Done")
}

// testScreenshot takes two screenshots of the same static page, which must
// not differ.
func testScreenshot(t *testing.T, env *Env) {
	s, ok := env.Driver.(webdriver.Screenshotter)
	if !ok {
		t.Skipf("%s driver does not take screenshots", env.Browser)
	}
	ctx := testContext(t, env)
	get(ctx, t, env, "simpleTest.html")

	var bufs [2][]byte
	for i := range bufs {
		var err error
		if bufs[i], err = s.Screenshot(ctx); err != nil {
			t.Fatalf("Screenshot() returned error: %v", err)
		}
	}
	img1, err := png.Decode(bytes.NewReader(bufs[0]))
	if err != nil {
		t.Fatalf("decoding first screenshot: %v", err)
	}
	img2, err := png.Decode(bytes.NewReader(bufs[1]))
	if err != nil {
		t.Fatalf("decoding second screenshot: %v", err)
	}
	diff, err := pixelmatch.MatchPixel(img1, img2, pixelmatch.Threshold(0.1))
	if err != nil {
		t.Fatal(err)
	}
	if diff != 0 {
		t.Errorf("screenshots differ by %d pixels", diff)
	}
}

func testPrintToPDF(t *testing.T, env *Env) {
	p, ok := env.Driver.(webdriver.PDFPrinter)
	if !ok {
		t.Skipf("%s driver does not print to PDF", env.Browser)
	}
	ctx := testContext(t, env)
	get(ctx, t, env, "simpleTest.html")

	buf, err := p.PrintToPDF(ctx)
	if err != nil {
		t.Fatalf("PrintToPDF() returned error: %v", err)
	}
	r, err := pdf.NewReader(bytes.NewReader(buf), int64(len(buf)))
	if err != nil {
		t.Fatalf("reading PDF: %v", err)
	}
	if n := r.NumPage(); n != 1 {
		t.Errorf("PDF has %d pages, want 1", n)
	}
	text, err := r.GetPlainText()
	if err != nil {
		t.Fatal(err)
	}
	b, err := io.ReadAll(text)
	if err != nil {
		t.Fatal(err)
	}
	// Extracted text loses inter-word spacing.
	got := strings.Join(strings.Fields(string(b)), "")
	if want := "Asinglelineoftext"; !strings.Contains(got, want) {
		t.Errorf("PDF text = %q, want it to contain %q", b, "A single line of text")
	}
}
