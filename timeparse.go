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
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// yearRollbackWindow is how far in the future a year-less date may land
// before it is assumed to belong to the previous year.
const yearRollbackWindow = 60 * 24 * time.Hour

var (
	editedPrefix = regexp.MustCompile(`^编辑于\s*`)
	// trailing location label such as "05-01 广东"
	trailingAnnotation = regexp.MustCompile(`\s+\p{Han}{2,5}$`)

	relativeMinutes = regexp.MustCompile(`(?i)^(\d+)\s*(?:分钟前|minutes?\s+ago|mins?\s+ago)$`)
	relativeHours   = regexp.MustCompile(`(?i)^(\d+)\s*(?:小时前|hours?\s+ago)$`)
	relativeDays    = regexp.MustCompile(`(?i)^(\d+)\s*(?:天前|days?\s+ago)$`)

	dayWord = regexp.MustCompile(`^(昨天|今天|yesterday|today)`)
)

// absoluteLayouts are tried in order; the first full match wins.
var absoluteLayouts = []struct {
	re      *regexp.Regexp
	hasYear bool
	hasTime bool
}{
	{regexp.MustCompile(`^(\d{1,2})-(\d{1,2})\s+(\d{1,2}):(\d{2})$`), false, true},
	{regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})\s+(\d{1,2}):(\d{2})$`), true, true},
	{regexp.MustCompile(`^(\d{1,2})-(\d{1,2})$`), false, false},
	{regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})$`), true, false},
}

// NormalizeTime converts a publish-time label to unix seconds, interpreting
// it relative to now and in now's location. It returns 0 and logs a warning
// when the label matches none of the known forms.
func NormalizeTime(text string, now time.Time) int64 {
	ts, err := parsePublishTime(text, now)
	if err != nil {
		zap.L().Warn("unparseable publish time", zap.String("text", text), zap.Error(err))
		return 0
	}
	return ts
}

func parsePublishTime(text string, now time.Time) (int64, error) {
	s := strings.TrimSpace(text)
	s = editedPrefix.ReplaceAllString(s, "")
	s = strings.TrimSpace(trailingAnnotation.ReplaceAllString(s, ""))
	if s == "" {
		return 0, fmt.Errorf("empty time label")
	}

	if s == "刚刚" || strings.EqualFold(s, "just now") {
		return now.Unix(), nil
	}
	for _, rel := range []struct {
		re   *regexp.Regexp
		unit time.Duration
	}{
		{relativeMinutes, time.Minute},
		{relativeHours, time.Hour},
		{relativeDays, 24 * time.Hour},
	} {
		if m := rel.re.FindStringSubmatch(s); m != nil {
			n, err := strconv.Atoi(m[1])
			if err != nil {
				return 0, fmt.Errorf("failed to parse count %q: %w", m[1], err)
			}
			return now.Add(-time.Duration(n) * rel.unit).Unix(), nil
		}
	}

	if m := dayWord.FindString(s); m != "" {
		day := now
		if m == "昨天" || strings.EqualFold(m, "yesterday") {
			day = now.AddDate(0, 0, -1)
		}
		s = strings.TrimSpace(day.Format("2006-01-02") + " " + strings.TrimSpace(s[len(m):]))
	}

	for _, layout := range absoluteLayouts {
		m := layout.re.FindStringSubmatch(s)
		if m == nil {
			continue
		}
		nums := make([]int, 0, len(m)-1)
		for _, part := range m[1:] {
			n, err := strconv.Atoi(part)
			if err != nil {
				return 0, fmt.Errorf("failed to parse %q: %w", part, err)
			}
			nums = append(nums, n)
		}

		year := now.Year()
		if layout.hasYear {
			year, nums = nums[0], nums[1:]
		}
		month, day := nums[0], nums[1]
		hour, minute := 0, 0
		if layout.hasTime {
			hour, minute = nums[2], nums[3]
		}

		t, err := buildDate(year, month, day, hour, minute, now.Location())
		if err != nil {
			return 0, err
		}
		if !layout.hasYear && t.Sub(now) > yearRollbackWindow {
			if t, err = buildDate(year-1, month, day, hour, minute, now.Location()); err != nil {
				return 0, err
			}
		}
		return t.Unix(), nil
	}

	return 0, fmt.Errorf("no known format matches %q", s)
}

// buildDate is time.Date without the silent normalization of out-of-range fields.
func buildDate(year, month, day, hour, minute int, loc *time.Location) (time.Time, error) {
	if month < 1 || month > 12 || hour > 23 || minute > 59 {
		return time.Time{}, fmt.Errorf("invalid date %04d-%02d-%02d %02d:%02d", year, month, day, hour, minute)
	}
	t := time.Date(year, time.Month(month), day, hour, minute, 0, 0, loc)
	if day < 1 || t.Day() != day {
		return time.Time{}, fmt.Errorf("invalid date %04d-%02d-%02d", year, month, day)
	}
	return t, nil
}
