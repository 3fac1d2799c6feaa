// Package render drives a headless Chrome session for pages whose menu
// content only appears after script execution.
package render

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/menuscout/backend/internal/domain"
)

const (
	defaultSettleTime  = 3 * time.Second
	defaultPageTimeout = 25 * time.Second
)

// menuSelectorProbe checks for menu-indicative markup after scripts run.
const menuSelectorProbe = `document.querySelector(".menu, .menu-item, .menu-section, #menu, [class*='menu']") !== null`

// anchorScript harvests visible anchors as {href, text} pairs.
const anchorScript = `Array.from(document.querySelectorAll("a[href]")).map(a => ({href: a.href, text: (a.textContent || "").trim()}))`

// ChromeRenderer implements domain.Renderer with chromedp. A shared exec
// allocator keeps one browser process; each RenderPage call gets its own tab
// context that is released on every exit path.
type ChromeRenderer struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	settleTime  time.Duration
	pageTimeout time.Duration
}

// NewChromeRenderer starts the shared browser allocator.
func NewChromeRenderer() *ChromeRenderer {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &ChromeRenderer{
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		settleTime:  defaultSettleTime,
		pageTimeout: defaultPageTimeout,
	}
}

// Close shuts down the shared browser process.
func (r *ChromeRenderer) Close() {
	r.allocCancel()
}

// RenderPage navigates to url with scripts enabled, waits for menu-indicative
// selectors (falling back to a fixed settle time), optionally follows one
// in-page anchor containing a menu keyword, and returns the page text and
// anchors.
func (r *ChromeRenderer) RenderPage(ctx context.Context, url string, followMenuAnchor bool) (*domain.RenderedPage, error) {
	tabCtx, tabCancel := chromedp.NewContext(r.allocCtx)
	defer tabCancel()

	tabCtx, timeoutCancel := context.WithTimeout(tabCtx, r.pageTimeout)
	defer timeoutCancel()

	// Propagate the caller's cancellation into the tab.
	stop := context.AfterFunc(ctx, tabCancel)
	defer stop()

	if err := chromedp.Run(tabCtx, chromedp.Navigate(url)); err != nil {
		return nil, err
	}
	r.waitForMenuMarkup(tabCtx)

	page, err := r.extract(tabCtx)
	if err != nil {
		return nil, err
	}

	if followMenuAnchor {
		if target := findMenuAnchor(page.Anchors, url); target != "" {
			log.Printf("[RENDER] Following post-render menu anchor: %s", target)
			if err := chromedp.Run(tabCtx, chromedp.Navigate(target)); err == nil {
				r.waitForMenuMarkup(tabCtx)
				if followed, err := r.extract(tabCtx); err == nil && len(followed.Text) > len(page.Text) {
					return followed, nil
				}
			}
		}
	}

	return page, nil
}

// waitForMenuMarkup polls for menu-ish selectors up to the settle time.
// Timing out is not an error; some menus never match the probe.
func (r *ChromeRenderer) waitForMenuMarkup(tabCtx context.Context) {
	var found bool
	err := chromedp.Run(tabCtx,
		chromedp.Poll(menuSelectorProbe, &found, chromedp.WithPollingTimeout(r.settleTime)),
	)
	if err != nil && !errors.Is(err, chromedp.ErrPollingTimeout) && !errors.Is(err, context.DeadlineExceeded) {
		log.Printf("[RENDER] selector poll error: %v", err)
	}
}

// extract pulls visible text and anchors out of the current page.
func (r *ChromeRenderer) extract(tabCtx context.Context) (*domain.RenderedPage, error) {
	var text string
	var anchors []domain.Anchor
	err := chromedp.Run(tabCtx,
		chromedp.Text("body", &text, chromedp.ByQuery),
		chromedp.Evaluate(anchorScript, &anchors),
	)
	if err != nil {
		return nil, err
	}
	return &domain.RenderedPage{Text: text, Anchors: anchors}, nil
}

// menuAnchorKeywords mark an anchor as menu-bearing.
var menuAnchorKeywords = []string{"menu", "dinner", "food"}

// findMenuAnchor returns the first anchor whose text or href contains a menu
// keyword and that does not point back at the current page.
func findMenuAnchor(anchors []domain.Anchor, currentURL string) string {
	for _, a := range anchors {
		if a.Href == "" || strings.EqualFold(strings.TrimRight(a.Href, "/"), strings.TrimRight(currentURL, "/")) {
			continue
		}
		haystack := strings.ToLower(a.Text + " " + a.Href)
		for _, kw := range menuAnchorKeywords {
			if strings.Contains(haystack, kw) {
				return a.Href
			}
		}
	}
	return ""
}
