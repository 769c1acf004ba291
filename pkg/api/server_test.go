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

package api

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/printlink/printlink-core/pkg/api/models"
	"github.com/printlink/printlink-core/pkg/api/validation"
	"github.com/printlink/printlink-core/pkg/config"
	"github.com/printlink/printlink-core/pkg/printer"
	testhelpers "github.com/printlink/printlink-core/pkg/testing/helpers"
	"github.com/printlink/printlink-core/pkg/testing/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	printer       *mocks.MockPrinter
	jobs          *mocks.MockJobDB
	server        *Server
	http          *httptest.Server
	notifications chan models.Notification
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{
		printer:       mocks.NewMockPrinter(),
		jobs:          &mocks.MockJobDB{},
		notifications: make(chan models.Notification, 10),
	}
	ts.server = NewServer(ServerArgs{
		Printer:       ts.printer,
		Jobs:          ts.jobs,
		Config:        testhelpers.NewTestConfig(t, config.BaseDefaults),
		Notifications: ts.notifications,
	})
	ts.http = httptest.NewServer(ts.server.Handler())
	t.Cleanup(ts.http.Close)
	return ts
}

func (ts *testServer) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(ts.http.URL, "http") + "/api"
	conn, resp, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, v))
}

func TestProcessMessage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		setup    func(p *mocks.MockPrinter)
		name     string
		msg      string
		wantID   string
		wantCode int
		wantNil  bool
	}{
		{
			name:     "parse error",
			msg:      `{"jsonrpc":`,
			wantID:   "null",
			wantCode: JSONRPCErrorParseError.Code,
		},
		{
			name:     "wrong version",
			msg:      `{"jsonrpc":"1.0","id":4,"method":"version"}`,
			wantID:   "4",
			wantCode: JSONRPCErrorInvalidRequest.Code,
		},
		{
			name:     "object id",
			msg:      `{"jsonrpc":"2.0","id":{},"method":"version"}`,
			wantID:   "null",
			wantCode: JSONRPCErrorInvalidRequest.Code,
		},
		{
			name:     "unknown method",
			msg:      `{"jsonrpc":"2.0","id":"a","method":"printer.explode"}`,
			wantID:   `"a"`,
			wantCode: JSONRPCErrorMethodNotFound.Code,
		},
		{
			name:    "notification is ignored",
			msg:     `{"jsonrpc":"2.0","method":"printer.status"}`,
			wantNil: true,
		},
		{
			name:    "client response is ignored",
			msg:     `{"jsonrpc":"2.0","id":1,"result":null}`,
			wantNil: true,
		},
		{
			name:     "invalid params",
			msg:      `{"jsonrpc":"2.0","id":7,"method":"printer.queue","params":{"line":""}}`,
			wantID:   "7",
			wantCode: JSONRPCErrorInvalidParams.Code,
		},
		{
			name: "handler error",
			msg:  `{"jsonrpc":"2.0","id":8,"method":"print.pause"}`,
			setup: func(p *mocks.MockPrinter) {
				p.On("RequestPause").Return(printer.ErrNotPrinting).Once()
			},
			wantID:   "8",
			wantCode: jsonRPCServerErrorCode,
		},
		{
			name: "method names are case insensitive",
			msg:  `{"jsonrpc":"2.0","id":9,"method":"Printer.Status"}`,
			setup: func(p *mocks.MockPrinter) {
				p.On("Status").Return(models.StatusResponse{State: "operational"}).Once()
			},
			wantID: "9",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ts := newTestServer(t)
			if tt.setup != nil {
				tt.setup(ts.printer)
			}

			reply := ts.server.processMessage(context.Background(), []byte(tt.msg), "192.168.1.5:4000")
			ts.printer.AssertExpectations(t)
			if tt.wantNil {
				assert.Nil(t, reply)
				return
			}
			require.NotNil(t, reply)

			var resp struct {
				Error  *models.ErrorObject `json:"error"`
				Result json.RawMessage     `json:"result"`
				ID     json.RawMessage     `json:"id"`
			}
			require.NoError(t, json.Unmarshal(reply, &resp))
			assert.JSONEq(t, tt.wantID, string(resp.ID))
			if tt.wantCode == 0 {
				assert.Nil(t, resp.Error)
				return
			}
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
		})
	}
}

func TestErrorObject(t *testing.T) {
	t.Parallel()

	obj := errorObject(validation.ErrMissingParams)
	assert.Equal(t, JSONRPCErrorInvalidParams.Code, obj.Code)
	assert.Equal(t, "missing params", obj.Message)

	obj = errorObject(printer.ErrNotConnected)
	assert.Equal(t, jsonRPCServerErrorCode, obj.Code)
	assert.Equal(t, printer.ErrNotConnected.Error(), obj.Message)
}

func TestWebSocketRequest(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	ts.printer.On("Status").Return(models.StatusResponse{State: "printing", PercentComplete: 42.5}).Once()
	conn := ts.dial(t)

	require.NoError(t, conn.WriteJSON(models.RequestObject{
		JSONRPC: "2.0",
		ID:      models.NewStringID("status-1"),
		Method:  models.MethodPrinterStatus,
	}))

	var resp struct {
		ID     string                `json:"id"`
		Result models.StatusResponse `json:"result"`
	}
	readJSON(t, conn, &resp)
	assert.Equal(t, "status-1", resp.ID)
	assert.Equal(t, "printing", resp.Result.State)
	assert.InDelta(t, 42.5, resp.Result.PercentComplete, 1e-9)
	ts.printer.AssertExpectations(t)
}

func TestWebSocketPingPong(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	conn := ts.dial(t)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("ping")))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "pong", string(data))
}

func TestBroadcastNotifications(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ts.server.broadcastNotifications(ctx)
	conn := ts.dial(t)

	// the session registers after the upgrade completes
	require.Eventually(t, func() bool { return ts.server.melody.Len() == 1 }, 2*time.Second, 10*time.Millisecond)

	ts.notifications <- models.Notification{
		Method: models.NotificationPrintProgress,
		Params: json.RawMessage(`{"percentComplete":12.3}`),
	}

	var notif models.NotificationObject
	readJSON(t, conn, &notif)
	assert.Equal(t, "2.0", notif.JSONRPC)
	assert.Equal(t, models.NotificationPrintProgress, notif.Method)
	assert.JSONEq(t, `{"percentComplete":12.3}`, string(notif.Params))
}

func TestHTTPPost(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	ts.printer.On("Stop", true).Return(nil).Once()

	resp, err := http.Post(ts.http.URL+"/api", "application/json",
		strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"print.stop"}`))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var body models.ResponseObject
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Nil(t, body.Error)
	ts.printer.AssertExpectations(t)

	notif, err := http.Post(ts.http.URL+"/api", "application/json",
		strings.NewReader(`{"jsonrpc":"2.0","method":"print.stop"}`))
	require.NoError(t, err)
	_ = notif.Body.Close()
	assert.Equal(t, http.StatusNoContent, notif.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	resp, err := http.Get(ts.http.URL + "/metrics")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "printlink_printer_lines_sent_total")
}

func TestCheckOrigin(t *testing.T) {
	t.Parallel()
	defaults := config.BaseDefaults
	defaults.Service.AllowedOrigins = []string{"http://printer.local"}
	cfg := testhelpers.NewTestConfig(t, defaults)
	s := NewServer(ServerArgs{Config: cfg, Printer: mocks.NewMockPrinter()})

	tests := []struct {
		name   string
		origin string
		remote string
		want   bool
	}{
		{name: "no origin", remote: "192.168.1.9:1000", want: true},
		{name: "allowed", origin: "http://printer.local", remote: "192.168.1.9:1000", want: true},
		{name: "loopback", origin: "http://evil.example", remote: "127.0.0.1:1000", want: true},
		{name: "rejected", origin: "http://evil.example", remote: "192.168.1.9:1000", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := httptest.NewRequest(http.MethodGet, "/api", http.NoBody)
			r.RemoteAddr = tt.remote
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, s.checkOrigin(r))
		})
	}
}

func TestStartAndShutdown(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ts.server.Start(ctx, ln) }()

	ts.printer.On("Status").Return(models.StatusResponse{State: "disconnected"})
	require.Eventually(t, func() bool {
		resp, err := http.Post("http://"+ln.Addr().String()+"/api", "application/json",
			strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"printer.status"}`))
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(shutdownTimeout + time.Second):
		t.Fatal("server did not shut down")
	}
}
