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
	"errors"
	"strings"
	"time"
)

// ErrNotFound is returned by Find and Attr when nothing matches.
var ErrNotFound = errors.New("feedsnake: element not found")

// Scripts understood by every Browser implementation.
const (
	ScrollToBottomScript = "window.scrollTo(0, document.body.scrollHeight)"
	PageExtentScript     = "document.body.scrollHeight"
)

// Browser is one automation handle. It owns a primary page, the feed tab,
// and can open isolated pages next to it. A Browser is used by one
// harvest at a time.
type Browser interface {
	// Page returns the primary tab.
	Page() Page
	// OpenPage opens url in a new tab and makes it the active one.
	OpenPage(ctx context.Context, url string) (Page, error)
	Cookies(ctx context.Context) ([]Cookie, error)
	SetCookies(ctx context.Context, cookies []Cookie) error
	Close() error
}

// Page is a browser tab.
type Page interface {
	Navigate(ctx context.Context, url string) error
	// URL returns the address of the document currently loaded.
	URL(ctx context.Context) (string, error)
	// Find returns the first element matching selector, or ErrNotFound.
	// Selectors starting with "/" or "(" are XPath, everything else is CSS.
	Find(ctx context.Context, selector string) (Element, error)
	// FindAll returns every match in document order; no match is not an error.
	FindAll(ctx context.Context, selector string) ([]Element, error)
	// Eval runs script and decodes its result into out, which may be nil.
	Eval(ctx context.Context, script string, out any) error
	// Activate brings the tab to the front.
	Activate(ctx context.Context) error
	Close() error
}

// Element is a node found on a Page.
type Element interface {
	Find(ctx context.Context, selector string) (Element, error)
	FindAll(ctx context.Context, selector string) ([]Element, error)
	// Attr returns the attribute value, or ErrNotFound when the attribute is absent.
	Attr(ctx context.Context, name string) (string, error)
	Text(ctx context.Context) (string, error)
}

// Cookie is a browser cookie in a driver independent shape.
type Cookie struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Domain   string    `json:"domain"`
	Path     string    `json:"path"`
	Expires  time.Time `json:"expires,omitzero"`
	HTTPOnly bool      `json:"httpOnly"`
	Secure   bool      `json:"secure"`
	SameSite string    `json:"sameSite,omitempty"`
}

// BrowserFactory launches a fresh automation handle.
type BrowserFactory func(ctx context.Context) (Browser, error)

func isXPath(selector string) bool {
	return strings.HasPrefix(selector, "/") || strings.HasPrefix(selector, "(")
}
