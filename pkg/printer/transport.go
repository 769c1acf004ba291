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

package printer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/printlink/printlink-core/pkg/config"
	"go.bug.st/serial"
)

// readTimeout bounds each Read so the read loop notices shutdown promptly.
const readTimeout = 100 * time.Millisecond

// Transport is an open link to the printer. Read returns (0, nil) when no
// data arrived within the read timeout.
type Transport interface {
	Read(p []byte) (n int, err error)
	Write(p []byte) (n int, err error)
	Close() error
	SetReadTimeout(t time.Duration) error
	// ResetBoard pulses the reset lines of boards that reboot on DTR.
	ResetBoard() error
}

// TransportFactory opens the transport described by the printer settings.
type TransportFactory func(ctx context.Context, settings *config.Printer) (Transport, error)

// SerialPort is the subset of serial.Port used here (for mocking in tests).
type SerialPort interface {
	Read(p []byte) (n int, err error)
	Write(p []byte) (n int, err error)
	Close() error
	SetReadTimeout(t time.Duration) error
	SetDTR(dtr bool) error
	SetRTS(rts bool) error
}

// SerialPortFactory creates a serial port connection.
type SerialPortFactory func(path string, mode *serial.Mode) (SerialPort, error)

// DefaultSerialPortFactory is the default factory that opens real serial ports.
func DefaultSerialPortFactory(path string, mode *serial.Mode) (SerialPort, error) {
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port: %w", err)
	}
	return port, nil
}

type serialTransport struct {
	SerialPort
}

func (t serialTransport) ResetBoard() error {
	for _, level := range []bool{false, true} {
		if err := t.SetDTR(level); err != nil {
			return fmt.Errorf("failed to set DTR: %w", err)
		}
		if err := t.SetRTS(level); err != nil {
			return fmt.Errorf("failed to set RTS: %w", err)
		}
	}
	return nil
}

// NewSerialTransport opens the configured port at the configured baud rate.
func NewSerialTransport(factory SerialPortFactory) TransportFactory {
	if factory == nil {
		factory = DefaultSerialPortFactory
	}
	return func(_ context.Context, settings *config.Printer) (Transport, error) {
		port, err := factory(settings.Port, &serial.Mode{
			BaudRate: settings.BaudRate,
			DataBits: 8,
			Parity:   serial.NoParity,
			StopBits: serial.OneStopBit,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open serial port %s: %w", settings.Port, err)
		}
		return serialTransport{SerialPort: port}, nil
	}
}

type netTransport struct {
	conn    net.Conn
	timeout time.Duration
}

// NewNetTransport wraps an established connection, e.g. to a serial-to-TCP
// bridge.
func NewNetTransport(conn net.Conn) Transport {
	return &netTransport{conn: conn, timeout: readTimeout}
}

func (t *netTransport) Read(p []byte) (int, error) {
	if err := t.conn.SetReadDeadline(time.Now().Add(t.timeout)); err != nil {
		return 0, fmt.Errorf("failed to set read deadline: %w", err)
	}
	n, err := t.conn.Read(p)
	var ne net.Error
	if err != nil && errors.As(err, &ne) && ne.Timeout() {
		return n, nil
	}
	return n, err //nolint:wrapcheck // io errors are classified by the caller
}

func (t *netTransport) Write(p []byte) (int, error) {
	return t.conn.Write(p) //nolint:wrapcheck // io errors are classified by the caller
}

func (t *netTransport) Close() error {
	return t.conn.Close() //nolint:wrapcheck // close errors are ignored on disconnect
}

func (t *netTransport) SetReadTimeout(d time.Duration) error {
	t.timeout = d
	return nil
}

func (*netTransport) ResetBoard() error {
	return ErrResetUnsupported
}

// DialNetwork connects to settings.Address over TCP.
func DialNetwork(ctx context.Context, settings *config.Printer) (Transport, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", settings.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", settings.Address, err)
	}
	return NewNetTransport(conn), nil
}

// DefaultTransportFactory picks the network or serial transport from the
// settings.
func DefaultTransportFactory(serialFactory SerialPortFactory) TransportFactory {
	openSerial := NewSerialTransport(serialFactory)
	return func(ctx context.Context, settings *config.Printer) (Transport, error) {
		if settings.Network {
			return DialNetwork(ctx, settings)
		}
		return openSerial(ctx, settings)
	}
}
