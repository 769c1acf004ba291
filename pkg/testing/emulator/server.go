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

package emulator

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/rs/zerolog/log"
)

// Serve accepts TCP connections on ln and gives each one a freshly booted
// emulator until ctx is done.
//
//nolint:gocritic // profile copied per connection
func Serve(ctx context.Context, ln net.Listener, profile Profile) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("failed to accept connection: %w", err)
		}
		log.Info().Str("remote", conn.RemoteAddr().String()).Msg("emulator client connected")
		wg.Add(1)
		go func() {
			defer wg.Done()
			serveConn(ctx, conn, New(profile))
		}()
	}
}

func serveConn(ctx context.Context, conn net.Conn, e *Emulator) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer func() {
		_ = e.Close()
		_ = conn.Close()
	}()

	go func() {
		<-ctx.Done()
		_ = conn.Close()
		_ = e.Close()
	}()

	go func() {
		defer cancel()
		buf := make([]byte, 1024)
		for {
			n, err := conn.Read(buf)
			if n > 0 {
				if _, werr := e.Write(buf[:n]); werr != nil {
					return
				}
			}
			if err != nil {
				return
			}
		}
	}()

	buf := make([]byte, 1024)
	for ctx.Err() == nil {
		n, err := e.Read(buf)
		if err != nil {
			return
		}
		if n == 0 {
			continue
		}
		if _, err := conn.Write(buf[:n]); err != nil {
			log.Debug().Err(err).Msg("emulator client went away")
			return
		}
	}
}
