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

package helpers

import (
	"fmt"
	"regexp"

	"github.com/printlink/printlink-core/pkg/helpers/syncutil"
)

// RegexCache keeps compiled patterns. User rewrite tables are recompiled on
// every settings update and reconnect, usually with the same patterns.
type RegexCache struct {
	cache map[string]*regexp.Regexp
	mu    syncutil.RWMutex
}

var GlobalRegexCache = NewRegexCache()

func NewRegexCache() *RegexCache {
	return &RegexCache{
		cache: make(map[string]*regexp.Regexp),
	}
}

// Compile returns the cached pattern, compiling it on first use.
func (rc *RegexCache) Compile(pattern string) (*regexp.Regexp, error) {
	rc.mu.RLock()
	if re, ok := rc.cache[pattern]; ok {
		rc.mu.RUnlock()
		return re, nil
	}
	rc.mu.RUnlock()

	rc.mu.Lock()
	defer rc.mu.Unlock()
	if re, ok := rc.cache[pattern]; ok {
		return re, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to compile regex pattern %q: %w", pattern, err)
	}
	rc.cache[pattern] = re
	return re, nil
}

// MustCompile is Compile for patterns known at build time.
func (rc *RegexCache) MustCompile(pattern string) *regexp.Regexp {
	re, err := rc.Compile(pattern)
	if err != nil {
		panic(err)
	}
	return re
}

func (rc *RegexCache) Clear() {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.cache = make(map[string]*regexp.Regexp)
}

func (rc *RegexCache) Size() int {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	return len(rc.cache)
}

func CachedCompile(pattern string) (*regexp.Regexp, error) {
	return GlobalRegexCache.Compile(pattern)
}

func CachedMustCompile(pattern string) *regexp.Regexp {
	return GlobalRegexCache.MustCompile(pattern)
}
