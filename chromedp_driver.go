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
	"encoding/json"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/go-rod/stealth"
)

// BrowserConfig configures a Chrome instance.
type BrowserConfig struct {
	// Headless hides the window. Logging in by hand needs a visible one.
	Headless bool `mapstructure:"headless" yaml:"headless"`
	// UserDataDir keeps the Chrome profile between runs when set.
	UserDataDir string `mapstructure:"user_data_dir" yaml:"user_data_dir"`
	ExecPath    string `mapstructure:"exec_path" yaml:"exec_path"`
	// RemoteURL attaches to a running Chrome (ws://host:9222) instead of
	// launching one.
	RemoteURL    string `mapstructure:"remote_url" yaml:"remote_url"`
	UserAgent    string `mapstructure:"user_agent" yaml:"user_agent"`
	WindowWidth  int    `mapstructure:"window_width" yaml:"window_width"`
	WindowHeight int    `mapstructure:"window_height" yaml:"window_height"`
	// Stealth patches the automation fingerprints of every new document.
	Stealth bool `mapstructure:"stealth" yaml:"stealth"`
}

// DefaultBrowserConfig returns a visible, stealthy Chrome.
func DefaultBrowserConfig() BrowserConfig {
	return BrowserConfig{
		WindowWidth:  1280,
		WindowHeight: 900,
		Stealth:      true,
	}
}

// execOptions builds the allocator flags.
func execOptions(cfg BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("enable-automation", false),
	)
	if cfg.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(cfg.UserDataDir))
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	if cfg.WindowWidth > 0 && cfg.WindowHeight > 0 {
		opts = append(opts, chromedp.WindowSize(cfg.WindowWidth, cfg.WindowHeight))
	}
	return opts
}

// ChromedpBrowser drives Chrome over the DevTools protocol.
type ChromedpBrowser struct {
	allocCancel context.CancelFunc
	ctx         context.Context
	cancel      context.CancelFunc
	stealth     bool
	main        *chromedpTab
}

// NewChromedpBrowser launches Chrome, or attaches to it when cfg.RemoteURL
// is set. The browser outlives ctx and stays up until Close.
func NewChromedpBrowser(ctx context.Context, cfg BrowserConfig) (*ChromedpBrowser, error) {
	base := context.WithoutCancel(ctx)

	var allocCtx context.Context
	var allocCancel context.CancelFunc
	if cfg.RemoteURL != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(base, cfg.RemoteURL)
	} else {
		allocCtx, allocCancel = chromedp.NewExecAllocator(base, execOptions(cfg)...)
	}

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	b := &ChromedpBrowser{
		allocCancel: allocCancel,
		ctx:         browserCtx,
		cancel:      cancel,
		stealth:     cfg.Stealth,
	}
	b.main = &chromedpTab{browser: b, ctx: browserCtx, primary: true}

	// The first Run starts the browser and must use the context itself.
	if err := chromedp.Run(browserCtx, b.setupActions()...); err != nil {
		cancel()
		allocCancel()
		return nil, fmt.Errorf("failed to start chrome: %w", err)
	}
	return b, nil
}

// NewChromedpFactory returns a factory launching one Chrome per call. Each
// browser after the first gets its own profile directory, since Chrome
// refuses to share one between processes.
func NewChromedpFactory(cfg BrowserConfig) BrowserFactory {
	var launched atomic.Int64
	return func(ctx context.Context) (Browser, error) {
		c := cfg
		c.UserDataDir = workerDataDir(cfg.UserDataDir, int(launched.Add(1))-1)
		return NewChromedpBrowser(ctx, c)
	}
}

func workerDataDir(dir string, n int) string {
	if dir == "" || n == 0 {
		return dir
	}
	return fmt.Sprintf("%s-%d", dir, n)
}

func (b *ChromedpBrowser) setupActions() []chromedp.Action {
	actions := []chromedp.Action{network.Enable()}
	if b.stealth {
		actions = append(actions, chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(stealth.JS).Do(ctx)
			return err
		}))
	}
	return actions
}

func (b *ChromedpBrowser) Page() Page {
	return b.main
}

func (b *ChromedpBrowser) OpenPage(ctx context.Context, url string) (Page, error) {
	if b.ctx.Err() != nil {
		return nil, ErrDriverLost
	}
	tabCtx, cancel := chromedp.NewContext(b.ctx)
	tab := &chromedpTab{browser: b, ctx: tabCtx, cancel: cancel}
	if err := chromedp.Run(tabCtx, b.setupActions()...); err != nil {
		cancel()
		return nil, tab.wrap(ctx, fmt.Errorf("failed to open tab: %w", err))
	}
	if err := tab.Activate(ctx); err != nil {
		return tab, err
	}
	if err := tab.Navigate(ctx, url); err != nil {
		return tab, err
	}
	return tab, nil
}

func (b *ChromedpBrowser) Cookies(ctx context.Context) ([]Cookie, error) {
	var raw []*network.Cookie
	err := b.main.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		raw, err = network.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return nil, err
	}
	cookies := make([]Cookie, 0, len(raw))
	for _, c := range raw {
		cookies = append(cookies, cookieFromNetwork(c))
	}
	return cookies, nil
}

func (b *ChromedpBrowser) SetCookies(ctx context.Context, cookies []Cookie) error {
	params := make([]*network.CookieParam, 0, len(cookies))
	for _, c := range cookies {
		params = append(params, cookieParam(c))
	}
	return b.main.run(ctx, network.SetCookies(params))
}

// Close shuts the browser down. Chrome launched by the allocator exits.
func (b *ChromedpBrowser) Close() error {
	b.cancel()
	b.allocCancel()
	return nil
}

func cookieFromNetwork(c *network.Cookie) Cookie {
	cookie := Cookie{
		Name:     c.Name,
		Value:    c.Value,
		Domain:   c.Domain,
		Path:     c.Path,
		HTTPOnly: c.HTTPOnly,
		Secure:   c.Secure,
		SameSite: string(c.SameSite),
	}
	if !c.Session && c.Expires > 0 {
		sec, frac := math.Modf(c.Expires)
		cookie.Expires = time.Unix(int64(sec), int64(frac*1e9)).UTC()
	}
	return cookie
}

func cookieParam(c Cookie) *network.CookieParam {
	p := &network.CookieParam{
		Name:     c.Name,
		Value:    c.Value,
		Domain:   c.Domain,
		Path:     c.Path,
		HTTPOnly: c.HTTPOnly,
		Secure:   c.Secure,
		SameSite: network.CookieSameSite(c.SameSite),
	}
	if !c.Expires.IsZero() {
		exp := cdp.TimeSinceEpoch(c.Expires)
		p.Expires = &exp
	}
	return p
}

type chromedpTab struct {
	browser *ChromedpBrowser
	ctx     context.Context
	cancel  context.CancelFunc
	primary bool
}

// run executes actions on the tab while honouring cancellation of the
// caller's ctx. Cancelling ctx never closes the tab itself.
func (t *chromedpTab) run(ctx context.Context, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	runCtx, cancel := context.WithCancel(t.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return t.wrap(ctx, chromedp.Run(runCtx, actions...))
}

// wrap maps errors caused by a dead browser or tab to ErrDriverLost and
// errors caused by the caller giving up to the caller's context error.
func (t *chromedpTab) wrap(ctx context.Context, err error) error {
	switch {
	case err == nil:
		return nil
	case t.browser.ctx.Err() != nil:
		return fmt.Errorf("%w: %w", ErrDriverLost, err)
	case t.ctx.Err() != nil:
		return fmt.Errorf("tab closed: %w: %w", ErrDriverLost, err)
	case ctx.Err() != nil:
		return ctx.Err()
	default:
		return err
	}
}

func (t *chromedpTab) Navigate(ctx context.Context, url string) error {
	return t.run(ctx, chromedp.Navigate(url))
}

func (t *chromedpTab) URL(ctx context.Context) (string, error) {
	var loc string
	if err := t.run(ctx, chromedp.Location(&loc)); err != nil {
		return "", err
	}
	return loc, nil
}

func (t *chromedpTab) Find(ctx context.Context, selector string) (Element, error) {
	return firstElement(t.FindAll(ctx, selector))
}

func (t *chromedpTab) FindAll(ctx context.Context, selector string) ([]Element, error) {
	by := chromedp.ByQueryAll
	if isXPath(selector) {
		by = chromedp.BySearch
	}
	return t.nodes(ctx, selector, by)
}

func (t *chromedpTab) nodes(ctx context.Context, selector string, opts ...chromedp.QueryOption) ([]Element, error) {
	var nodes []*cdp.Node
	opts = append(opts, chromedp.AtLeast(0))
	if err := t.run(ctx, chromedp.Nodes(selector, &nodes, opts...)); err != nil {
		return nil, err
	}
	elements := make([]Element, 0, len(nodes))
	for _, n := range nodes {
		elements = append(elements, &chromedpElement{tab: t, node: n})
	}
	return elements, nil
}

func (t *chromedpTab) Eval(ctx context.Context, script string, out any) error {
	return t.run(ctx, chromedp.Evaluate(script, out))
}

func (t *chromedpTab) Activate(ctx context.Context) error {
	return t.run(ctx, page.BringToFront())
}

// Close closes a secondary tab. The primary tab lives as long as the browser.
func (t *chromedpTab) Close() error {
	if t.primary || t.cancel == nil {
		return nil
	}
	t.cancel()
	return nil
}

type chromedpElement struct {
	tab  *chromedpTab
	node *cdp.Node
}

func (e *chromedpElement) Find(ctx context.Context, selector string) (Element, error) {
	return firstElement(e.FindAll(ctx, selector))
}

func (e *chromedpElement) FindAll(ctx context.Context, selector string) ([]Element, error) {
	if isXPath(selector) {
		return nil, fmt.Errorf("xpath %q below an element is not supported", selector)
	}
	return e.tab.nodes(ctx, selector, chromedp.ByQueryAll, chromedp.FromNode(e.node))
}

// Attr reads the attributes captured with the node; no round trip.
func (e *chromedpElement) Attr(ctx context.Context, name string) (string, error) {
	if v, ok := e.node.Attribute(name); ok {
		return v, nil
	}
	return "", fmt.Errorf("attribute %s: %w", name, ErrNotFound)
}

// Text returns the rendered text of the node, as the user would see it.
func (e *chromedpElement) Text(ctx context.Context) (string, error) {
	var text string
	err := e.tab.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		obj, err := dom.ResolveNode().WithNodeID(e.node.NodeID).Do(ctx)
		if err != nil {
			return err
		}
		res, exc, err := runtime.CallFunctionOn(`function() { return this.innerText || this.textContent || ""; }`).
			WithObjectID(obj.ObjectID).
			WithReturnByValue(true).
			Do(ctx)
		if err != nil {
			return err
		}
		if exc != nil {
			return fmt.Errorf("reading text failed: %s", exc.Text)
		}
		return json.Unmarshal([]byte(res.Value), &text)
	}))
	if err != nil {
		return "", err
	}
	return text, nil
}

func firstElement(all []Element, err error) (Element, error) {
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, ErrNotFound
	}
	return all[0], nil
}
