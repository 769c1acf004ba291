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
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"

	"go.bug.st/serial"
)

var (
	ErrNotConnected       = errors.New("printer not connected")
	ErrPrintActive        = errors.New("a print is already active")
	ErrNotPrinting        = errors.New("no print is active")
	ErrNotPaused          = errors.New("print is not paused")
	ErrPrintingFromSd     = errors.New("printer is printing from sd card")
	ErrLineNotRecoverable = errors.New("requested resend line is no longer buffered")
	ErrResetUnsupported   = errors.New("board reset is not supported on this transport")
)

// ConnectionFailure is the reason a connection attempt failed or a live
// connection was dropped.
type ConnectionFailure int

const (
	FailureUnknown ConnectionFailure = iota
	PortUnavailable
	PortInUse
	UnsupportedBaudRate
	IOException
	ConnectionTimeout
	UnauthorizedAccess
	AlreadyConnected
	MaximumErrorsReached
)

func (f ConnectionFailure) String() string {
	switch f {
	case PortUnavailable:
		return "portUnavailable"
	case PortInUse:
		return "portInUse"
	case UnsupportedBaudRate:
		return "unsupportedBaudRate"
	case IOException:
		return "ioException"
	case ConnectionTimeout:
		return "connectionTimeout"
	case UnauthorizedAccess:
		return "unauthorizedAccess"
	case AlreadyConnected:
		return "alreadyConnected"
	case MaximumErrorsReached:
		return "maximumErrorsReached"
	default:
		return "unknown"
	}
}

// ConnectError carries the failure reason alongside the underlying error.
type ConnectError struct {
	Err     error
	Message string
	Reason  ConnectionFailure
}

func (e *ConnectError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Reason.String()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

func newConnectError(reason ConnectionFailure, msg string, err error) *ConnectError {
	return &ConnectError{Reason: reason, Message: msg, Err: err}
}

// classifyOpenError maps an error from opening or using a transport onto a
// ConnectionFailure.
func classifyOpenError(err error) ConnectionFailure {
	if err == nil {
		return FailureUnknown
	}

	var ce *ConnectError
	if errors.As(err, &ce) {
		return ce.Reason
	}

	var pe *serial.PortError
	if errors.As(err, &pe) {
		switch pe.Code() {
		case serial.PortBusy:
			return PortInUse
		case serial.PortNotFound, serial.InvalidSerialPort:
			return PortUnavailable
		case serial.PermissionDenied:
			return UnauthorizedAccess
		case serial.InvalidSpeed:
			return UnsupportedBaudRate
		case serial.PortClosed:
			return IOException
		default:
			return FailureUnknown
		}
	}

	switch {
	case errors.Is(err, os.ErrNotExist), errors.Is(err, syscall.ECONNREFUSED):
		return PortUnavailable
	case errors.Is(err, os.ErrPermission):
		return UnauthorizedAccess
	case errors.Is(err, syscall.EBUSY):
		return PortInUse
	case errors.Is(err, os.ErrDeadlineExceeded):
		return ConnectionTimeout
	}

	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return ConnectionTimeout
	}
	var oe *net.OpError
	if errors.As(err, &oe) {
		return IOException
	}
	return FailureUnknown
}
