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

package seed

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/agentberlin/feedsnake"
	"github.com/agentberlin/feedsnake/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const seedYAML = `
defaults:
  policy: quick
  priority: 1
profiles:
  - name: brand
    feed_url: https://www.xiaohongshu.com/user/profile/aaa
    policy: full
    priority: 5
  - feed_url: " https://www.xiaohongshu.com/user/profile/bbb "
  - name: paused
    feed_url: https://www.xiaohongshu.com/user/profile/ccc
    policy: 3
    priority: 0
`

func TestParse(t *testing.T) {
	profiles, err := Parse(strings.NewReader(seedYAML))
	require.NoError(t, err)
	require.Len(t, profiles, 3)

	assert.Equal(t, feedsnake.SourceProfile{
		Name: "brand", FeedURL: "https://www.xiaohongshu.com/user/profile/aaa",
		Policy: feedsnake.PolicyFull, Priority: 5,
	}, profiles[0])

	assert.Equal(t, "https://www.xiaohongshu.com/user/profile/bbb", profiles[1].FeedURL)
	assert.Equal(t, profiles[1].FeedURL, profiles[1].Name, "unnamed profiles are named after their feed")
	assert.Equal(t, feedsnake.PolicyQuickCapture, profiles[1].Policy)
	assert.Equal(t, 1, profiles[1].Priority)

	assert.Equal(t, feedsnake.PolicySkip, profiles[2].Policy)
	assert.Equal(t, 0, profiles[2].Priority, "an explicit zero priority overrides the default")
}

func TestParseDefaultsToSkip(t *testing.T) {
	profiles, err := Parse(strings.NewReader("profiles:\n  - feed_url: https://x/1\n"))
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.Equal(t, feedsnake.PolicySkip, profiles[0].Policy)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr []string
	}{
		{
			name:    "unknown policy",
			input:   "profiles:\n  - feed_url: https://x/1\n    policy: sometimes\n",
			wantErr: []string{`unknown policy "sometimes"`},
		},
		{
			name:    "unknown field",
			input:   "profiles:\n  - feed_url: https://x/1\n    polcy: full\n",
			wantErr: []string{"polcy"},
		},
		{
			name:    "missing feed and duplicate",
			input:   "profiles:\n  - name: a\n  - feed_url: https://x/1\n  - feed_url: https://x/1\n",
			wantErr: []string{"profile 1 (a): feed_url is required", "profile 3: feed_url https://x/1 repeats profile 2"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.input))
			require.Error(t, err)
			for _, want := range tt.wantErr {
				assert.ErrorContains(t, err, want)
			}
		})
	}
}

func TestParseEmpty(t *testing.T) {
	profiles, err := Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, profiles)
}

func TestApplyIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(seedYAML), 0644))

	archive, err := store.NewStore(filepath.Join(dir, "seed.db"))
	require.NoError(t, err)
	defer archive.Close()

	profiles, err := ParseFile(path)
	require.NoError(t, err)

	ctx := context.Background()
	first, err := Apply(ctx, archive, profiles)
	require.NoError(t, err)
	second, err := Apply(ctx, archive, profiles)
	require.NoError(t, err)

	require.Len(t, second, 3)
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
	}
	all, err := archive.ListProfiles(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

type failingWriter struct{ calls int }

func (w *failingWriter) UpsertProfile(ctx context.Context, p feedsnake.SourceProfile) (feedsnake.SourceProfile, error) {
	w.calls++
	if w.calls == 2 {
		return p, errors.New("disk full")
	}
	p.ID = uint(w.calls)
	return p, nil
}

func TestApplyStopsAtFirstError(t *testing.T) {
	profiles, err := Parse(strings.NewReader(seedYAML))
	require.NoError(t, err)

	w := &failingWriter{}
	stored, err := Apply(context.Background(), w, profiles)
	assert.ErrorContains(t, err, "failed to seed https://www.xiaohongshu.com/user/profile/bbb: disk full")
	assert.Len(t, stored, 1)
	assert.Equal(t, 2, w.calls)
}

func TestParseFileMissing(t *testing.T) {
	_, err := ParseFile(filepath.Join(t.TempDir(), "none.yaml"))
	assert.ErrorContains(t, err, "failed to open seed file")
}
