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

package client

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/olahol/melody"
	"github.com/printlink/printlink-core/pkg/api/models"
	"github.com/printlink/printlink-core/pkg/config"
	testhelpers "github.com/printlink/printlink-core/pkg/testing/helpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type wsServer struct {
	melody *melody.Melody
	http   *httptest.Server
}

func newWSServer(t *testing.T, handler func(*melody.Session, []byte)) *wsServer {
	t.Helper()
	m := melody.New()
	if handler != nil {
		m.HandleMessage(handler)
	}
	mux := http.NewServeMux()
	mux.HandleFunc(APIPath, func(w http.ResponseWriter, r *http.Request) {
		_ = m.HandleRequest(w, r)
	})
	s := &wsServer{melody: m, http: httptest.NewServer(mux)}
	t.Cleanup(func() {
		_ = m.Close()
		s.http.Close()
	})
	return s
}

func (s *wsServer) config(t *testing.T) *config.Instance {
	t.Helper()
	u, err := url.Parse(s.http.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)
	return configWithPort(t, port)
}

func configWithPort(t *testing.T, port int) *config.Instance {
	t.Helper()
	cfg := testhelpers.NewTestConfig(t, config.BaseDefaults)
	cfg.SetAPIPort(port)
	return cfg
}

// unusedPort returns a port with nothing listening on it.
func unusedPort(t *testing.T) int {
	t.Helper()
	var lc net.ListenConfig
	listener, err := lc.Listen(context.Background(), "tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := listener.Addr().(*net.TCPAddr).Port
	require.NoError(t, listener.Close())
	return port
}

func respond(result any) func(*melody.Session, []byte) {
	return func(session *melody.Session, msg []byte) {
		var req models.RequestObject
		if err := json.Unmarshal(msg, &req); err != nil {
			return
		}
		data, _ := json.Marshal(models.ResponseObject{JSONRPC: "2.0", ID: req.ID, Result: result})
		_ = session.Write(data)
	}
}

func TestLocalClient_ValidRequest(t *testing.T) {
	t.Parallel()

	received := make(chan models.RequestObject, 1)
	server := newWSServer(t, func(session *melody.Session, msg []byte) {
		var req models.RequestObject
		if err := json.Unmarshal(msg, &req); err != nil {
			return
		}
		received <- req
		respond(map[string]any{"state": "operational"})(session, msg)
	})

	result, err := LocalClient(context.Background(), server.config(t), models.MethodPrinterStatus, `{"a":1}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"state":"operational"}`, result)
	req := <-received
	assert.Equal(t, models.MethodPrinterStatus, req.Method)
	assert.JSONEq(t, `{"a":1}`, string(req.Params))
}

func TestLocalClient_InvalidParams(t *testing.T) {
	t.Parallel()
	_, err := LocalClient(context.Background(), configWithPort(t, unusedPort(t)), "version", "{nope")
	require.ErrorIs(t, err, ErrInvalidParams)
}

func TestLocalClient_ErrorResponse(t *testing.T) {
	t.Parallel()

	server := newWSServer(t, func(session *melody.Session, msg []byte) {
		var req models.RequestObject
		if err := json.Unmarshal(msg, &req); err != nil {
			return
		}
		data, _ := json.Marshal(models.ResponseErrorObject{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error:   &models.ErrorObject{Code: -32000, Message: "printer is not connected"},
		})
		_ = session.Write(data)
	})

	_, err := LocalClient(context.Background(), server.config(t), models.MethodPrintPause, "")
	var rpcErr *RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, -32000, rpcErr.Code)
	assert.Equal(t, "printer is not connected", err.Error())
}

func TestLocalClient_IgnoresMismatchedIDs(t *testing.T) {
	t.Parallel()

	server := newWSServer(t, func(session *melody.Session, msg []byte) {
		var req models.RequestObject
		if err := json.Unmarshal(msg, &req); err != nil {
			return
		}
		wrong, _ := json.Marshal(models.ResponseObject{
			JSONRPC: "2.0", ID: models.NewStringID("other"), Result: "wrong",
		})
		badVersion, _ := json.Marshal(models.ResponseObject{
			JSONRPC: "1.0", ID: req.ID, Result: "old",
		})
		right, _ := json.Marshal(models.ResponseObject{JSONRPC: "2.0", ID: req.ID, Result: "right"})
		_ = session.Write(wrong)
		_ = session.Write(badVersion)
		_ = session.Write(right)
	})

	result, err := LocalClient(context.Background(), server.config(t), "version", "")
	require.NoError(t, err)
	assert.JSONEq(t, `"right"`, result)
}

func TestLocalClient_ContextCancellation(t *testing.T) {
	t.Parallel()

	server := newWSServer(t, func(*melody.Session, []byte) {})
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := LocalClient(ctx, server.config(t), "version", "")
	require.ErrorIs(t, err, ErrRequestCancelled)
}

func TestLocalClient_ConnectionFailure(t *testing.T) {
	t.Parallel()
	_, err := LocalClient(context.Background(), configWithPort(t, unusedPort(t)), "version", "")
	require.Error(t, err)
}

func broadcastUntilDone(s *wsServer, done <-chan struct{}, msgs ...any) {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			for _, msg := range msgs {
				data, _ := json.Marshal(msg)
				_ = s.melody.Broadcast(data)
			}
		}
	}
}

func TestWaitNotification(t *testing.T) {
	t.Parallel()

	server := newWSServer(t, nil)
	done := make(chan struct{})
	defer close(done)
	go broadcastUntilDone(server, done,
		models.RequestObject{
			JSONRPC: "2.0",
			ID:      models.NewStringID("1"),
			Method:  models.NotificationPrintFinished,
			Params:  json.RawMessage(`{"fileName":"request.gcode"}`),
		},
		models.NotificationObject{
			JSONRPC: "2.0",
			Method:  models.NotificationPrintProgress,
			Params:  json.RawMessage(`{"percentComplete":5}`),
		},
		models.NotificationObject{
			JSONRPC: "2.0",
			Method:  models.NotificationPrintFinished,
			Params:  json.RawMessage(`{"fileName":"cube.gcode"}`),
		},
	)

	params, err := WaitNotification(context.Background(), 2*time.Second, server.config(t),
		models.NotificationPrintFinished)
	require.NoError(t, err)
	assert.JSONEq(t, `{"fileName":"cube.gcode"}`, params)
}

func TestWaitNotifications_AnyOf(t *testing.T) {
	t.Parallel()

	server := newWSServer(t, nil)
	done := make(chan struct{})
	defer close(done)
	go broadcastUntilDone(server, done, models.NotificationObject{
		JSONRPC: "2.0",
		Method:  models.NotificationPrintCanceled,
	})

	method, params, err := WaitNotifications(context.Background(), 2*time.Second, server.config(t),
		models.NotificationPrintFinished, models.NotificationPrintCanceled)
	require.NoError(t, err)
	assert.Equal(t, models.NotificationPrintCanceled, method)
	assert.Equal(t, "null", params)
}

func TestWaitNotification_Timeout(t *testing.T) {
	t.Parallel()

	server := newWSServer(t, nil)
	_, err := WaitNotification(context.Background(), 50*time.Millisecond, server.config(t),
		models.NotificationPrintFinished)
	require.ErrorIs(t, err, ErrRequestTimeout)
}

func TestLocalAPIClient(t *testing.T) {
	t.Parallel()

	server := newWSServer(t, respond("1.0.0"))
	c := NewLocalAPIClient(server.config(t))
	var _ APIClient = c

	result, err := c.Call(context.Background(), models.MethodVersion, "")
	require.NoError(t, err)
	assert.JSONEq(t, `"1.0.0"`, result)

	_, err = NewLocalAPIClient(configWithPort(t, unusedPort(t))).Call(context.Background(), models.MethodVersion, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), models.MethodVersion)
}

func TestIsServiceRunning(t *testing.T) {
	t.Parallel()

	server := newWSServer(t, respond(models.VersionResponse{Version: "1.0.0"}))
	assert.True(t, IsServiceRunning(server.config(t)))
	assert.False(t, IsServiceRunning(configWithPort(t, unusedPort(t))))
}

func TestWaitForAPI(t *testing.T) {
	t.Parallel()

	server := newWSServer(t, respond("ok"))
	start := time.Now()
	assert.True(t, WaitForAPI(server.config(t), 5*time.Second, 100*time.Millisecond))
	assert.Less(t, time.Since(start), time.Second)

	start = time.Now()
	assert.False(t, WaitForAPI(configWithPort(t, unusedPort(t)), 200*time.Millisecond, 50*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond)
}
