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
	"net/url"
	"strings"

	whatwgUrl "github.com/nlnwa/whatwg-url/url"
)

var urlParser = whatwgUrl.NewParser(whatwgUrl.WithPercentEncodeSinglePercentSign())

// Canonicalize rewrites an item link to its stable form.
//
// Profile-embedded item paths (/user/profile/{owner}/{item}) become
// /explore/{item}, and HTML-escaped query separators (&amp;) become plain
// ampersands, however often they were escaped. Fragments are dropped.
// Links that cannot be parsed are returned unchanged.
// Canonicalize is idempotent.
func Canonicalize(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return raw
	}
	unescaped := trimmed
	for strings.Contains(unescaped, "&amp;") {
		unescaped = strings.ReplaceAll(unescaped, "&amp;", "&")
	}

	u, err := parseLink(unescaped)
	if err != nil {
		return raw
	}

	segments := strings.Split(u.Path, "/")
	if len(segments) >= 5 && segments[0] == "" && segments[1] == "user" && segments[2] == "profile" &&
		segments[3] != "" && segments[4] != "" {
		u.Path = "/explore/" + segments[4]
		u.RawPath = ""
	}
	u.Fragment = ""
	u.RawFragment = ""

	return u.String()
}

// Identity is the deduplication key of a link: its canonical form without the query.
func Identity(raw string) string {
	canonical := Canonicalize(raw)
	identity, _, _ := strings.Cut(canonical, "?")
	return identity
}

// ResolveLink resolves an href found on a page against the page URL.
// The href is returned as is when either side cannot be parsed.
func ResolveLink(base, href string) string {
	if base == "" {
		return href
	}
	u, err := urlParser.ParseRef(base, href)
	if err != nil {
		return href
	}
	return u.Href(false)
}

// parseLink runs absolute links through the WHATWG parser first so that the
// result matches what a browser would report. Relative links, which the
// WHATWG parser rejects without a base, go straight to net/url.
func parseLink(s string) (*url.URL, error) {
	if parsed, err := urlParser.Parse(s); err == nil {
		return url.Parse(parsed.Href(false))
	}
	return url.Parse(s)
}

// linkPath returns the path of an absolute or relative link.
func linkPath(href string) string {
	u, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		path, _, _ := strings.Cut(href, "?")
		return path
	}
	return u.Path
}
