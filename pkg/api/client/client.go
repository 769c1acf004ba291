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

// Package client talks to a running printlink service over its local
// websocket API. The CLI uses it to drive the service.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/printlink/printlink-core/pkg/api/models"
	"github.com/printlink/printlink-core/pkg/config"
	"github.com/rs/zerolog/log"
)

var (
	ErrRequestTimeout   = errors.New("request timed out")
	ErrInvalidParams    = errors.New("invalid params")
	ErrRequestCancelled = errors.New("request cancelled")
)

const APIPath = "/api"

// RPCError is an error object returned by the service.
type RPCError struct {
	Message string
	Code    int
}

func (e *RPCError) Error() string {
	return e.Message
}

func localURL(cfg *config.Instance) string {
	u := url.URL{
		Scheme: "ws",
		Host:   "localhost:" + strconv.Itoa(cfg.APIPort()),
		Path:   APIPath,
	}
	return u.String()
}

func dial(ctx context.Context, cfg *config.Instance) (*websocket.Conn, error) {
	c, resp, err := websocket.DefaultDialer.DialContext(ctx, localURL(cfg), nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to api: %w", err)
	}
	return c, nil
}

func closeConn(c *websocket.Conn) {
	if err := c.Close(); err != nil {
		log.Debug().Err(err).Msg("error closing websocket")
	}
}

// waitTimer returns a channel that fires after timeout. Zero means the API
// request timeout and a negative value never fires.
func waitTimer(timeout time.Duration) (<-chan time.Time, func()) {
	if timeout < 0 {
		return nil, func() {}
	}
	if timeout == 0 {
		timeout = config.APIRequestTimeout
	}
	timer := time.NewTimer(timeout)
	return timer.C, func() { timer.Stop() }
}

// LocalClient sends a single method with params to the local running API
// service, waits for a response until timeout then disconnects.
func LocalClient(
	ctx context.Context,
	cfg *config.Instance,
	method string,
	params string,
) (string, error) {
	id := models.NewStringID(uuid.New().String())
	req := models.RequestObject{
		JSONRPC: "2.0",
		ID:      id,
		Method:  method,
	}
	if params != "" {
		if !json.Valid([]byte(params)) {
			return "", ErrInvalidParams
		}
		req.Params = json.RawMessage(params)
	}

	c, err := dial(ctx, cfg)
	if err != nil {
		return "", err
	}
	defer closeConn(c)

	done := make(chan struct{})
	var resp *models.ResponseObject

	go func() {
		defer close(done)
		for {
			_, message, err := c.ReadMessage()
			if err != nil {
				log.Debug().Err(err).Msg("websocket read ended")
				return
			}

			var m models.ResponseObject
			if err := json.Unmarshal(message, &m); err != nil {
				continue
			}
			if m.JSONRPC != "2.0" {
				log.Warn().Msg("invalid jsonrpc version")
				continue
			}
			if m.ID.String() != id.String() {
				continue
			}

			resp = &m
			return
		}
	}()

	if err := c.WriteJSON(req); err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}

	timerChan, stop := waitTimer(0)
	defer stop()
	select {
	case <-done:
	case <-timerChan:
		closeConn(c)
		return "", ErrRequestTimeout
	case <-ctx.Done():
		closeConn(c)
		return "", ErrRequestCancelled
	}

	if resp == nil {
		return "", ErrRequestTimeout
	}
	if resp.Error != nil {
		return "", &RPCError{Code: resp.Error.Code, Message: resp.Error.Message}
	}

	b, err := json.Marshal(resp.Result)
	if err != nil {
		return "", fmt.Errorf("failed to encode result: %w", err)
	}
	return string(b), nil
}

// WaitNotification blocks until the service broadcasts a notification with
// the given method and returns its params.
func WaitNotification(
	ctx context.Context,
	timeout time.Duration,
	cfg *config.Instance,
	method string,
) (string, error) {
	_, params, err := WaitNotifications(ctx, timeout, cfg, method)
	return params, err
}

// WaitNotifications blocks until any of the given notification methods is
// received and returns which one arrived with its params.
func WaitNotifications(
	ctx context.Context,
	timeout time.Duration,
	cfg *config.Instance,
	methods ...string,
) (method, params string, err error) {
	c, err := dial(ctx, cfg)
	if err != nil {
		return "", "", err
	}
	defer closeConn(c)

	done := make(chan struct{})
	var notif *models.NotificationObject

	go func() {
		defer close(done)
		for {
			_, message, err := c.ReadMessage()
			if err != nil {
				log.Debug().Err(err).Msg("websocket read ended")
				return
			}

			// requests carry an id, notifications never do
			var probe struct {
				ID *json.RawMessage `json:"id"`
			}
			if err := json.Unmarshal(message, &probe); err != nil || probe.ID != nil {
				continue
			}

			var m models.NotificationObject
			if err := json.Unmarshal(message, &m); err != nil {
				continue
			}
			if m.JSONRPC != "2.0" || !slices.Contains(methods, m.Method) {
				continue
			}

			notif = &m
			return
		}
	}()

	timerChan, stop := waitTimer(timeout)
	defer stop()
	select {
	case <-done:
	case <-timerChan:
		closeConn(c)
		return "", "", ErrRequestTimeout
	case <-ctx.Done():
		closeConn(c)
		return "", "", ErrRequestCancelled
	}

	if notif == nil {
		return "", "", ErrRequestTimeout
	}
	if len(notif.Params) == 0 {
		return notif.Method, "null", nil
	}
	return notif.Method, string(notif.Params), nil
}

// IsServiceRunning reports whether the local API answers a version request.
func IsServiceRunning(cfg *config.Instance) bool {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := LocalClient(ctx, cfg, models.MethodVersion, "")
	return err == nil
}

// WaitForAPI polls the local API until it responds or timeout passes.
func WaitForAPI(cfg *config.Instance, timeout, interval time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if IsServiceRunning(cfg) {
			return true
		}
		if time.Now().Add(interval).After(deadline) {
			time.Sleep(time.Until(deadline))
			return IsServiceRunning(cfg)
		}
		time.Sleep(interval)
	}
}
