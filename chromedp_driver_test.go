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
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCookieConversion(t *testing.T) {
	expires := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	raw := &network.Cookie{
		Name:     "web_session",
		Value:    "abc",
		Domain:   ".xiaohongshu.com",
		Path:     "/",
		Expires:  float64(expires.Unix()),
		HTTPOnly: true,
		Secure:   true,
		SameSite: network.CookieSameSiteLax,
	}

	c := cookieFromNetwork(raw)
	assert.Equal(t, "web_session", c.Name)
	assert.Equal(t, ".xiaohongshu.com", c.Domain)
	assert.True(t, c.Expires.Equal(expires))
	assert.Equal(t, "Lax", c.SameSite)

	p := cookieParam(c)
	assert.Equal(t, raw.Name, p.Name)
	assert.Equal(t, raw.Value, p.Value)
	assert.Equal(t, raw.Domain, p.Domain)
	assert.True(t, p.HTTPOnly)
	assert.Equal(t, network.CookieSameSiteLax, p.SameSite)
	require.NotNil(t, p.Expires)
	assert.True(t, time.Time(*p.Expires).Equal(expires))
}

func TestSessionCookieHasNoExpiry(t *testing.T) {
	c := cookieFromNetwork(&network.Cookie{Name: "a1", Expires: -1, Session: true})
	assert.True(t, c.Expires.IsZero())
	assert.Nil(t, cookieParam(c).Expires)
}

func TestWorkerDataDir(t *testing.T) {
	assert.Equal(t, "", workerDataDir("", 3))
	assert.Equal(t, "/tmp/chrome", workerDataDir("/tmp/chrome", 0))
	assert.Equal(t, "/tmp/chrome-2", workerDataDir("/tmp/chrome", 2))
}

func TestExecOptionsGrowWithConfig(t *testing.T) {
	base := len(execOptions(BrowserConfig{}))
	full := len(execOptions(BrowserConfig{
		UserDataDir:  "/tmp/x",
		ExecPath:     "/usr/bin/chromium",
		UserAgent:    "ua",
		WindowWidth:  800,
		WindowHeight: 600,
	}))
	assert.Equal(t, base+4, full)
}
