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

package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/agentberlin/feedsnake"
	"github.com/agentberlin/feedsnake/internal/version"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the CLI against an isolated home directory and archive.
func execute(t *testing.T, db string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	if db != "" {
		args = append(args, "--db", db)
	}
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "FeedSnake CLI "+version.CurrentVersion+"\n", out)
}

func TestProfilesAddAndList(t *testing.T) {
	db := filepath.Join(t.TempDir(), "archive.db")

	out, err := execute(t, db, "profiles", "add", "www.xiaohongshu.com/user/profile/aaa", "--name", "brand", "--policy", "full", "--priority", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "Profile 1: brand (full, priority 3)")

	// Same feed URL updates the profile.
	_, err = execute(t, db, "profiles", "add", "https://www.xiaohongshu.com/user/profile/aaa", "--name", "brand", "--policy", "quick")
	require.NoError(t, err)

	out, err = execute(t, db, "profiles", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "brand")
	assert.Contains(t, out, "quick")
	assert.Contains(t, out, "never")
	assert.Contains(t, out, "https://www.xiaohongshu.com/user/profile/aaa")
	assert.NotContains(t, out, "full")
}

func TestProfilesAddRejectsUnknownPolicy(t *testing.T) {
	_, err := execute(t, filepath.Join(t.TempDir(), "archive.db"), "profiles", "add", "https://x/1", "--policy", "sometimes")
	assert.Error(t, err)
}

func TestProfilesListEmpty(t *testing.T) {
	out, err := execute(t, filepath.Join(t.TempDir(), "archive.db"), "profiles", "list")
	require.NoError(t, err)
	assert.Equal(t, "No profiles found.\n", out)
}

func TestProfilesSeedAndDisable(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "archive.db")
	seedFile := filepath.Join(dir, "profiles.yaml")
	require.NoError(t, os.WriteFile(seedFile, []byte(`
defaults:
  policy: quick
profiles:
  - name: one
    feed_url: https://www.xiaohongshu.com/user/profile/one
  - name: two
    feed_url: https://www.xiaohongshu.com/user/profile/two
    policy: full
`), 0644))

	out, err := execute(t, db, "profiles", "seed", seedFile)
	require.NoError(t, err)
	assert.Contains(t, out, "Seeded 2 of 2 profiles.")

	out, err = execute(t, db, "profiles", "disable", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "Profile 2 disabled.")

	out, err = execute(t, db, "profiles", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "one")
	assert.Contains(t, out, "two")

	_, err = execute(t, db, "profiles", "enable", "99")
	assert.Error(t, err)
	_, err = execute(t, db, "profiles", "enable", "abc")
	assert.ErrorContains(t, err, `invalid profile id "abc"`)
}

func TestItemsListEmpty(t *testing.T) {
	out, err := execute(t, filepath.Join(t.TempDir(), "archive.db"), "items", "list")
	require.NoError(t, err)
	assert.Equal(t, "No items found.\n", out)
}

func TestReplayIntoArchive(t *testing.T) {
	dir := t.TempDir()
	feed := `<html><body><div class="feeds-container">
		<section class="note-item">
			<a class="cover mask ld" href="/user/profile/ccc/c1?xsec_token=t1&amp;xsec_source=pc_user"><img src="https://sns-img.xhscdn.com/c1.jpg"></a>
			<div class="footer"><a class="title"><span>first card</span></a></div>
		</section>
		<section class="note-item">
			<a class="cover mask ld" href="/user/profile/ccc/c2?xsec_token=t2&amp;xsec_source=pc_user"><img src="https://sns-img.xhscdn.com/c2.jpg"></a>
			<div class="footer"><a class="title"><span>second card</span></a></div>
		</section>
	</div></body></html>`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "feed.html"), []byte(feed), 0644))
	manifest := filepath.Join(dir, "replay.yaml")
	require.NoError(t, os.WriteFile(manifest, []byte(`
profiles:
  - name: cards
    feed_url: https://www.xiaohongshu.com/user/profile/ccc
    policy: quick
pages:
  - url: https://www.xiaohongshu.com/user/profile/ccc
    files: [feed.html]
`), 0644))

	into := filepath.Join(dir, "replay.db")
	out, err := execute(t, "", "replay", manifest, "--into", into, "-q")
	require.NoError(t, err)
	assert.Contains(t, out, "1/1 done")
	assert.Contains(t, out, "2 items in "+into)

	out, err = execute(t, into, "items", "list", "--limit", "10")
	require.NoError(t, err)
	assert.Contains(t, out, "https://www.xiaohongshu.com/explore/c1")
	assert.Contains(t, out, "second card")
	assert.Contains(t, out, "quick")
}

func TestReplayScratchArchive(t *testing.T) {
	_, err := execute(t, "", "replay", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to open manifest")
}

func TestBatchError(t *testing.T) {
	assert.NoError(t, batchError(nil))
	assert.NoError(t, batchError(fmt.Errorf("batch: %w", feedsnake.ErrStopped)))

	err := batchError(feedsnake.ErrSessionExpired)
	assert.ErrorIs(t, err, feedsnake.ErrSessionExpired)
	assert.ErrorContains(t, err, "feedsnake login")

	assert.ErrorIs(t, batchError(feedsnake.ErrDriverLost), feedsnake.ErrDriverLost)
}
