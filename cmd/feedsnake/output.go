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
	"fmt"
	"io"
	"time"

	"github.com/agentberlin/feedsnake"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	return t
}

// profileRow is a profile with the numbers shown next to it.
type profileRow struct {
	feedsnake.SourceProfile
	Items int64
	Due   bool
}

func renderProfiles(w io.Writer, rows []profileRow) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "No profiles found.")
		return
	}
	t := newTable(w)
	t.AppendHeader(table.Row{"ID", "Name", "Policy", "Priority", "Items", "Last Harvest", "Due", "Feed"})
	for _, r := range rows {
		due := "no"
		if r.Due {
			due = "yes"
		}
		t.AppendRow(table.Row{
			r.ID, truncate(r.Name, 24), r.Policy, r.Priority, r.Items,
			formatUnix(r.LastHarvest), due, r.FeedURL,
		})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Priority", Align: text.AlignRight},
		{Name: "Items", Align: text.AlignRight},
	})
	t.Render()
}

func renderItems(w io.Writer, items []feedsnake.ContentItem) {
	if len(items) == 0 {
		fmt.Fprintln(w, "No items found.")
		return
	}
	t := newTable(w)
	t.AppendHeader(table.Row{"Profile", "Published", "Likes", "Media", "Kind", "Title", "URL"})
	for _, item := range items {
		kind := "quick"
		if item.Complete {
			kind = "full"
		}
		t.AppendRow(table.Row{
			item.ProfileID, formatUnix(item.PublishedAt), item.Likes, len(item.Media), kind,
			truncate(item.Title, 40), feedsnake.Identity(item.URL),
		})
	}
	t.Render()
}

func renderBatch(w io.Writer, batch feedsnake.BatchResult) {
	if len(batch.Results) == 0 {
		fmt.Fprintf(w, "Batch %s: no profiles harvested.\n", batch.RunID)
		return
	}
	t := newTable(w)
	t.SetTitle("Batch %s", batch.RunID)
	t.AppendHeader(table.Row{"Profile", "Mode", "Scrolls", "Links", "New", "Skipped", "Failed", "Duration"})
	var ingested, skipped, failed int
	for _, r := range batch.Results {
		mode := r.Plan.Mode.String()
		if r.Plan.Probe {
			mode += " (probe)"
		}
		if r.Stopped {
			mode += " (stopped)"
		}
		t.AppendRow(table.Row{r.ProfileID, mode, r.Ticks, r.Discovered, r.Ingested, r.Skipped, r.Failed, r.Duration.Round(time.Second)})
		ingested += r.Ingested
		skipped += r.Skipped
		failed += r.Failed
	}
	t.AppendFooter(table.Row{
		fmt.Sprintf("%d/%d done", batch.Completed, batch.Profiles), "", "", "", ingested, skipped, failed, "",
	})
	t.Render()
}

func formatUnix(ts int64) string {
	if ts == 0 {
		return "never"
	}
	return time.Unix(ts, 0).Format("2006-01-02 15:04")
}

// truncate shortens s to n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
