// Copyright 2025 Agentic World, LLC (Sherin Thomas)
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package feedsnake

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

const blankDocument = "<html><head></head><body></body></html>"

// MockPage is a page served by MockBrowser.
type MockPage struct {
	// Snapshots are the successive renderings of the document. Every
	// scroll-to-bottom advances to the next one; the last one sticks.
	Snapshots []string
	// Extents overrides the page extent reported for each snapshot.
	// By default snapshot i reports 1000*(i+1).
	Extents []int64
	// Error is returned when the page is navigated to.
	Error error
}

func (p *MockPage) extent(i int) int64 {
	if i < len(p.Extents) {
		return p.Extents[i]
	}
	if n := len(p.Extents); n > 0 {
		return p.Extents[n-1]
	}
	return int64(1000 * (i + 1))
}

// MockBrowser implements Browser over in-memory HTML documents.
// It lets the engine run without Chrome: register the pages a harvest will
// visit, then inspect which navigations and tabs it produced.
type MockBrowser struct {
	mu          sync.Mutex
	pages       map[string]*MockPage
	main        *mockTab
	open        []*mockTab
	navigations []string
	opened      []string
	scrolls     int
	cookies     []Cookie
	lost        bool
	closed      bool
}

// NewMockBrowser creates a MockBrowser with an empty primary tab.
func NewMockBrowser() *MockBrowser {
	b := &MockBrowser{pages: make(map[string]*MockPage)}
	b.main = &mockTab{browser: b}
	return b
}

// RegisterPage registers the page served for an exact URL.
func (b *MockBrowser) RegisterPage(url string, page *MockPage) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(page.Snapshots) == 0 {
		page.Snapshots = []string{blankDocument}
	}
	b.pages[url] = page
}

// RegisterHTML registers a static page.
func (b *MockBrowser) RegisterHTML(url, document string) {
	b.RegisterPage(url, &MockPage{Snapshots: []string{document}})
}

// RegisterFeed registers an infinite-scroll page rendered as snapshots.
func (b *MockBrowser) RegisterFeed(url string, snapshots ...string) {
	b.RegisterPage(url, &MockPage{Snapshots: snapshots})
}

// RegisterError makes navigation to url fail with err.
func (b *MockBrowser) RegisterError(url string, err error) {
	b.RegisterPage(url, &MockPage{Error: err})
}

// SetLost simulates a crashed browser: every later call fails with ErrDriverLost.
func (b *MockBrowser) SetLost(lost bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lost = lost
}

// Navigations returns every URL loaded in any tab, in order.
func (b *MockBrowser) Navigations() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.navigations...)
}

// OpenedPages returns the URLs passed to OpenPage, in order.
func (b *MockBrowser) OpenedPages() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.opened...)
}

// OpenTabs counts the secondary tabs that were opened and not closed yet.
func (b *MockBrowser) OpenTabs() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.open)
}

// Scrolls counts scroll-to-bottom actions across all tabs.
func (b *MockBrowser) Scrolls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.scrolls
}

// Closed reports whether Close was called.
func (b *MockBrowser) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

func (b *MockBrowser) Page() Page {
	return b.main
}

func (b *MockBrowser) OpenPage(ctx context.Context, url string) (Page, error) {
	b.mu.Lock()
	if b.lost {
		b.mu.Unlock()
		return nil, ErrDriverLost
	}
	tab := &mockTab{browser: b}
	b.opened = append(b.opened, url)
	b.open = append(b.open, tab)
	b.mu.Unlock()

	if err := tab.Navigate(ctx, url); err != nil {
		return tab, err
	}
	return tab, nil
}

func (b *MockBrowser) Cookies(ctx context.Context) ([]Cookie, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.lost {
		return nil, ErrDriverLost
	}
	return append([]Cookie(nil), b.cookies...), nil
}

func (b *MockBrowser) SetCookies(ctx context.Context, cookies []Cookie) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.lost {
		return ErrDriverLost
	}
	for _, c := range cookies {
		replaced := false
		for i, existing := range b.cookies {
			if existing.Name == c.Name && existing.Domain == c.Domain && existing.Path == c.Path {
				b.cookies[i] = c
				replaced = true
				break
			}
		}
		if !replaced {
			b.cookies = append(b.cookies, c)
		}
	}
	return nil
}

func (b *MockBrowser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

// mockTab is one tab of a MockBrowser. It shares the browser's mutex.
type mockTab struct {
	browser *MockBrowser
	url     string
	page    *MockPage
	index   int
	doc     *html.Node
	closed  bool
}

// checkLocked must be called with the browser mutex held.
func (t *mockTab) checkLocked() error {
	if t.browser.lost {
		return ErrDriverLost
	}
	if t.closed {
		return fmt.Errorf("tab %s is closed: %w", t.url, ErrDriverLost)
	}
	return nil
}

func (t *mockTab) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b := t.browser
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := t.checkLocked(); err != nil {
		return err
	}

	b.navigations = append(b.navigations, url)
	page, ok := b.pages[url]
	if !ok {
		page = &MockPage{Snapshots: []string{blankDocument}}
	}
	if page.Error != nil {
		return page.Error
	}

	doc, err := html.Parse(strings.NewReader(page.Snapshots[0]))
	if err != nil {
		return fmt.Errorf("failed to parse page %s: %w", url, err)
	}
	t.url, t.page, t.index, t.doc = url, page, 0, doc
	return nil
}

func (t *mockTab) URL(ctx context.Context) (string, error) {
	t.browser.mu.Lock()
	defer t.browser.mu.Unlock()
	if err := t.checkLocked(); err != nil {
		return "", err
	}
	return t.url, nil
}

func (t *mockTab) Find(ctx context.Context, selector string) (Element, error) {
	all, err := t.FindAll(ctx, selector)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("%s: %w", selector, ErrNotFound)
	}
	return all[0], nil
}

func (t *mockTab) FindAll(ctx context.Context, selector string) ([]Element, error) {
	t.browser.mu.Lock()
	defer t.browser.mu.Unlock()
	if err := t.checkLocked(); err != nil {
		return nil, err
	}
	if t.doc == nil {
		return nil, nil
	}
	return queryNodes(t.browser, t.doc, selector)
}

func (t *mockTab) Eval(ctx context.Context, script string, out any) error {
	b := t.browser
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := t.checkLocked(); err != nil {
		return err
	}
	if t.page == nil {
		return fmt.Errorf("eval on a blank tab")
	}

	switch script {
	case ScrollToBottomScript:
		b.scrolls++
		if t.index < len(t.page.Snapshots)-1 {
			doc, err := html.Parse(strings.NewReader(t.page.Snapshots[t.index+1]))
			if err != nil {
				return fmt.Errorf("failed to parse snapshot %d of %s: %w", t.index+1, t.url, err)
			}
			t.index++
			t.doc = doc
		}
		return nil
	case PageExtentScript:
		extent := t.page.extent(t.index)
		switch o := out.(type) {
		case *int64:
			*o = extent
		case *int:
			*o = int(extent)
		case *float64:
			*o = float64(extent)
		case nil:
		default:
			return fmt.Errorf("unsupported eval result type %T", out)
		}
		return nil
	default:
		return fmt.Errorf("mock browser cannot evaluate %q", script)
	}
}

func (t *mockTab) Activate(ctx context.Context) error {
	t.browser.mu.Lock()
	defer t.browser.mu.Unlock()
	return t.checkLocked()
}

func (t *mockTab) Close() error {
	b := t.browser
	b.mu.Lock()
	defer b.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	for i, open := range b.open {
		if open == t {
			b.open = append(b.open[:i], b.open[i+1:]...)
			break
		}
	}
	return nil
}

type mockElement struct {
	browser *MockBrowser
	node    *html.Node
}

func (e *mockElement) Find(ctx context.Context, selector string) (Element, error) {
	all, err := e.FindAll(ctx, selector)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("%s: %w", selector, ErrNotFound)
	}
	return all[0], nil
}

func (e *mockElement) FindAll(ctx context.Context, selector string) ([]Element, error) {
	e.browser.mu.Lock()
	defer e.browser.mu.Unlock()
	if e.browser.lost {
		return nil, ErrDriverLost
	}
	return queryNodes(e.browser, e.node, selector)
}

func (e *mockElement) Attr(ctx context.Context, name string) (string, error) {
	e.browser.mu.Lock()
	defer e.browser.mu.Unlock()
	if e.browser.lost {
		return "", ErrDriverLost
	}
	for _, a := range e.node.Attr {
		if a.Key == name {
			return a.Val, nil
		}
	}
	return "", fmt.Errorf("attribute %s: %w", name, ErrNotFound)
}

func (e *mockElement) Text(ctx context.Context) (string, error) {
	e.browser.mu.Lock()
	defer e.browser.mu.Unlock()
	if e.browser.lost {
		return "", ErrDriverLost
	}
	return goquery.NewDocumentFromNode(e.node).Text(), nil
}

// queryNodes runs a CSS or XPath selector below root.
func queryNodes(b *MockBrowser, root *html.Node, selector string) ([]Element, error) {
	var nodes []*html.Node
	if isXPath(selector) {
		found, err := htmlquery.QueryAll(root, selector)
		if err != nil {
			return nil, fmt.Errorf("invalid xpath %q: %w", selector, err)
		}
		nodes = found
	} else {
		nodes = goquery.NewDocumentFromNode(root).Find(selector).Nodes
	}

	elements := make([]Element, 0, len(nodes))
	for _, n := range nodes {
		elements = append(elements, &mockElement{browser: b, node: n})
	}
	return elements, nil
}
