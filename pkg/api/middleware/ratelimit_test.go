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

package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIPRateLimiter_Burst(t *testing.T) {
	t.Parallel()
	limiter := NewIPRateLimiter()

	rl := limiter.GetLimiter("192.168.1.100")
	require.NotNil(t, rl)
	for i := range BurstSize {
		assert.True(t, rl.Allow(), "request %d within burst", i+1)
	}
	assert.False(t, rl.Allow())
}

func TestIPRateLimiter_PerIP(t *testing.T) {
	t.Parallel()
	limiter := NewIPRateLimiter()

	rl1 := limiter.GetLimiter("192.168.1.100")
	rl2 := limiter.GetLimiter("192.168.1.101")
	assert.NotSame(t, rl1, rl2)
	assert.Same(t, rl1, limiter.GetLimiter("192.168.1.100"))

	for range BurstSize {
		rl1.Allow()
	}
	assert.False(t, rl1.Allow())
	assert.True(t, rl2.Allow())
}

func TestIPRateLimiter_Cleanup(t *testing.T) {
	t.Parallel()
	clock := clockwork.NewFakeClock()
	limiter := NewIPRateLimiterWithClock(clock)

	limiter.GetLimiter("10.0.0.1")
	clock.Advance(limiterMaxAge - time.Minute)
	limiter.GetLimiter("10.0.0.2")
	clock.Advance(2 * time.Minute)

	limiter.Cleanup()
	assert.Equal(t, 1, limiter.Len())
	limiter.mu.RLock()
	defer limiter.mu.RUnlock()
	assert.Contains(t, limiter.limiters, "10.0.0.2")
}

func TestIPRateLimiter_StartCleanup(t *testing.T) {
	t.Parallel()
	clock := clockwork.NewFakeClock()
	limiter := NewIPRateLimiterWithClock(clock)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	limiter.GetLimiter("10.0.0.1")
	limiter.StartCleanup(ctx)
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(limiterMaxAge + limiterCleanupInterval)

	assert.Eventually(t, func() bool { return limiter.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestHTTPRateLimitMiddleware(t *testing.T) {
	t.Parallel()
	limiter := NewIPRateLimiter()
	calls := 0
	handler := HTTPRateLimitMiddleware(limiter)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))

	for range BurstSize {
		req := httptest.NewRequest(http.MethodGet, "/api", http.NoBody)
		req.RemoteAddr = "192.168.1.100:12345"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api", http.NoBody)
	req.RemoteAddr = "192.168.1.100:23456"
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, BurstSize, calls)
}

func TestParseRemoteIP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		remoteAddr string
		want       string
		loopback   bool
	}{
		{name: "with port", remoteAddr: "192.168.1.100:12345", want: "192.168.1.100"},
		{name: "without port", remoteAddr: "192.168.1.100", want: "192.168.1.100"},
		{name: "ipv6 with port", remoteAddr: "[2001:db8::1]:8080", want: "2001:db8::1"},
		{name: "loopback", remoteAddr: "127.0.0.1:5000", want: "127.0.0.1", loopback: true},
		{name: "ipv6 loopback", remoteAddr: "[::1]:5000", want: "::1", loopback: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ParseRemoteIP(tt.remoteAddr).String())
			assert.Equal(t, tt.loopback, IsLoopbackAddr(tt.remoteAddr))
		})
	}
	assert.Nil(t, ParseRemoteIP("not-an-ip"))
	assert.False(t, IsLoopbackAddr("not-an-ip"))
}
