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

package service

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/printlink/printlink-core/pkg/api/models"
	"github.com/printlink/printlink-core/pkg/config"
	"github.com/printlink/printlink-core/pkg/testing/emulator"
	testhelpers "github.com/printlink/printlink-core/pkg/testing/helpers"
	"github.com/printlink/printlink-core/pkg/testing/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func listen(t *testing.T) net.Listener {
	t.Helper()
	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", "127.0.0.1:0")
	require.NoError(t, err)
	return ln
}

func rpc(t *testing.T, addr, method string) (models.ResponseObject, json.RawMessage) {
	t.Helper()
	body := `{"jsonrpc":"2.0","id":1,"method":"` + method + `"}`
	resp, err := http.Post("http://"+addr+"/api", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var raw struct {
		Result json.RawMessage `json:"result"`
		models.ResponseObject
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&raw))
	return raw.ResponseObject, raw.Result
}

func TestServiceConnectsToEmulator(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	emuLn := listen(t)
	go func() { _ = emulator.Serve(ctx, emuLn, emulator.DefaultProfile()) }()

	disabled := false
	defaults := config.BaseDefaults
	defaults.Printer = config.DefaultPrinter
	defaults.Printer.Network = true
	defaults.Printer.Address = emuLn.Addr().String()
	defaults.Service.Discovery.Enabled = &disabled
	cfg := testhelpers.NewTestConfig(t, defaults)

	apiLn := listen(t)
	stop, done, err := Start(Options{
		Config:   cfg,
		Listener: apiLn,
		DataDir:  t.TempDir(),
		LogDir:   t.TempDir(),
	})
	require.NoError(t, err)

	addr := apiLn.Addr().String()
	require.Eventually(t, func() bool {
		_, result := rpc(t, addr, models.MethodPrinterStatus)
		var status models.StatusResponse
		return json.Unmarshal(result, &status) == nil && status.State == "connected"
	}, 5*time.Second, 50*time.Millisecond)

	resp, result := rpc(t, addr, models.MethodJobsHistory)
	assert.Nil(t, resp.Error)
	assert.JSONEq(t, `{"jobs":[]}`, string(result))

	require.NoError(t, stop())
	select {
	case <-done:
	default:
		t.Fatal("done not closed after stop")
	}
}

func TestServiceFailsOnBadDataDir(t *testing.T) {
	t.Parallel()
	cfg := testhelpers.NewTestConfig(t, config.BaseDefaults)
	_, _, err := Start(Options{
		Config:   cfg,
		Listener: listen(t),
		DataDir:  "/dev/null/printlink",
	})
	require.Error(t, err)
}

func TestRunJobCleanup(t *testing.T) {
	t.Parallel()
	clock := clockwork.NewFakeClock()
	jobs := &mocks.MockJobDB{}
	called := make(chan struct{}, 1)
	jobs.On("Cleanup", mock.Anything, jobRetentionDays).Return(int64(3), nil).Run(func(mock.Arguments) {
		called <- struct{}{}
	}).Once()

	ctx, cancel := context.WithCancel(context.Background())
	exited := make(chan struct{})
	go func() {
		runJobCleanup(ctx, clock, jobs)
		close(exited)
	}()

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(cleanupInterval)
	select {
	case <-called:
	case <-time.After(time.Second):
		t.Fatal("cleanup not run")
	}
	cancel()
	<-exited
	jobs.AssertExpectations(t)
}

func TestAutoConnectSkipsUnconfigured(t *testing.T) {
	t.Parallel()
	defaults := config.BaseDefaults
	defaults.Printer = config.DefaultPrinter
	defaults.Printer.Port = ""
	cfg := testhelpers.NewTestConfig(t, defaults)
	// a nil connection would panic if autoConnect tried to use it
	assert.NotPanics(t, func() { autoConnect(cfg, nil) })
}
