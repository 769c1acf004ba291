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
	"fmt"

	"github.com/printlink/printlink-core/pkg/config"
)

// APIClient is what the command line needs from a running service.
type APIClient interface {
	Call(ctx context.Context, method, params string) (string, error)
	// WaitAny blocks until one of the notification methods arrives and
	// returns which one with its params. It does not time out.
	WaitAny(ctx context.Context, methods ...string) (method, params string, err error)
}

// LocalAPIClient talks to the service on this machine.
type LocalAPIClient struct {
	cfg *config.Instance
}

func NewLocalAPIClient(cfg *config.Instance) *LocalAPIClient {
	return &LocalAPIClient{cfg: cfg}
}

func (c *LocalAPIClient) Call(ctx context.Context, method, params string) (string, error) {
	resp, err := LocalClient(ctx, c.cfg, method, params)
	if err != nil {
		return "", fmt.Errorf("%s failed: %w", method, err)
	}
	return resp, nil
}

func (c *LocalAPIClient) WaitAny(ctx context.Context, methods ...string) (method, params string, err error) {
	method, params, err = WaitNotifications(ctx, -1, c.cfg, methods...)
	if err != nil {
		return "", "", fmt.Errorf("waiting for notification failed: %w", err)
	}
	return method, params, nil
}
