// Printlink Core
// Copyright (c) 2026 The Printlink Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Printlink Core.
//
// Printlink Core is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Printlink Core is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Printlink Core.  If not, see <http://www.gnu.org/licenses/>.

package gcode

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/printlink/printlink-core/pkg/helpers"
)

// quotedPart matches one double-quoted field, allowing \" escapes.
var quotedPart = regexp.MustCompile(`"((?:[^"\\]|\\.)*)"`)

// RewriteRule replaces lines matching Pattern. The replacement is split on
// commas: the first group rewrites the matching line, every further group is
// emitted as an extra line after it.
type RewriteRule struct {
	Pattern     *regexp.Regexp
	Replacement string
	Extra       []string
}

// RewriteTable is an ordered set of rules; the first matching rule wins.
type RewriteTable struct {
	rules []RewriteRule
}

// ParseRewriteTable reads rules written as pairs of quoted fields,
// "search","replace" on one line or "search" and "replace" on consecutive
// lines. Literal "\n" sequences are treated as newlines.
func ParseRewriteTable(def string) (*RewriteTable, error) {
	def = strings.ReplaceAll(def, `\n`, "\n")
	parts := quotedPart.FindAllStringSubmatch(def, -1)
	if len(parts)%2 != 0 {
		return nil, fmt.Errorf("rewrite rules must come in search/replace pairs, got %d fields", len(parts))
	}

	table := &RewriteTable{rules: make([]RewriteRule, 0, len(parts)/2)}
	for i := 0; i < len(parts); i += 2 {
		search := unescapeQuoted(parts[i][1])
		re, err := helpers.CachedCompile(search)
		if err != nil {
			return nil, fmt.Errorf("invalid rewrite pattern %q: %w", search, err)
		}
		groups := strings.Split(unescapeQuoted(parts[i+1][1]), ",")
		table.rules = append(table.rules, RewriteRule{
			Pattern:     re,
			Replacement: groups[0],
			Extra:       groups[1:],
		})
	}
	return table, nil
}

func unescapeQuoted(s string) string {
	return strings.ReplaceAll(s, `\"`, `"`)
}

// Len is the number of rules in the table.
func (t *RewriteTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.rules)
}

// Apply rewrites line with the first matching rule. extra holds the
// additional lines to emit after primary, in order.
func (t *RewriteTable) Apply(line string) (primary string, extra []string) {
	if t == nil {
		return line, nil
	}
	for _, rule := range t.rules {
		if !rule.Pattern.MatchString(line) {
			continue
		}
		primary = rule.Pattern.ReplaceAllString(line, rule.Replacement)
		if len(rule.Extra) > 0 {
			extra = make([]string, 0, len(rule.Extra))
			for _, e := range rule.Extra {
				extra = append(extra, strings.TrimSpace(e))
			}
		}
		return primary, extra
	}
	return line, nil
}
