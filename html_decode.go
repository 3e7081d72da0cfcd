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
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/net/html/charset"
)

// DecodeHTML converts a saved page to UTF-8.
//
// An encoding declared through a BOM, the content type or a meta tag wins.
// Undeclared bytes that are already valid UTF-8 are kept as is, anything
// else goes through charset detection.
func DecodeHTML(body []byte, contentType string) (string, error) {
	enc, name, certain := charset.DetermineEncoding(body, contentType)
	declared := certain || (name != "windows-1252" && name != "utf-8")

	if !declared {
		if utf8.Valid(body) {
			return string(body), nil
		}
		if result, err := chardet.NewHtmlDetector().DetectBest(body); err == nil {
			if detected, _ := charset.Lookup(result.Charset); detected != nil {
				enc, name = detected, result.Charset
			}
		}
	}

	decoded, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return "", fmt.Errorf("failed to decode page as %s: %w", name, err)
	}
	return string(decoded), nil
}
