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

// Package printer drives a single FDM printer over a serial port or a network
// socket: connection lifecycle, the outbound write loop with checksum and
// resend handling, the inbound read loop and reply dispatcher, and print
// start, pause, resume and cancel.
package printer

import "fmt"

// CommunicationState is the connection and print lifecycle state.
type CommunicationState int

const (
	Disconnected CommunicationState = iota
	AttemptingToConnect
	Connected
	PreparingToPrint
	Printing
	PrintingFromSd
	Paused
	FinishedPrint
	Disconnecting
	ConnectionLost
	FailedToConnect
)

// AllStates lists every state value, in declaration order.
func AllStates() []CommunicationState {
	return []CommunicationState{
		Disconnected, AttemptingToConnect, Connected, PreparingToPrint, Printing,
		PrintingFromSd, Paused, FinishedPrint, Disconnecting, ConnectionLost, FailedToConnect,
	}
}

func (s CommunicationState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case AttemptingToConnect:
		return "attemptingToConnect"
	case Connected:
		return "connected"
	case PreparingToPrint:
		return "preparingToPrint"
	case Printing:
		return "printing"
	case PrintingFromSd:
		return "printingFromSd"
	case Paused:
		return "paused"
	case FinishedPrint:
		return "finishedPrint"
	case Disconnecting:
		return "disconnecting"
	case ConnectionLost:
		return "connectionLost"
	case FailedToConnect:
		return "failedToConnect"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// IsConnected reports whether the transport is open and usable. It panics on
// a state it does not know: every new state must be classified here, in
// Printing and in PrintIsActive.
func (s CommunicationState) IsConnected() bool {
	switch s {
	case Connected, PreparingToPrint, Printing, PrintingFromSd, Paused, FinishedPrint:
		return true
	case Disconnected, AttemptingToConnect, Disconnecting, ConnectionLost, FailedToConnect:
		return false
	default:
		panic(fmt.Sprintf("unclassified communication state %d", int(s)))
	}
}

// Printing reports whether lines of a print are currently being executed.
func (s CommunicationState) Printing() bool {
	switch s {
	case Printing, PrintingFromSd:
		return true
	case Disconnected, AttemptingToConnect, Connected, PreparingToPrint, Paused,
		FinishedPrint, Disconnecting, ConnectionLost, FailedToConnect:
		return false
	default:
		panic(fmt.Sprintf("unclassified communication state %d", int(s)))
	}
}

// PrintIsActive reports whether a print has been started and not yet ended,
// including while it is paused.
func (s CommunicationState) PrintIsActive() bool {
	switch s {
	case PreparingToPrint, Printing, PrintingFromSd, Paused:
		return true
	case Disconnected, AttemptingToConnect, Connected, FinishedPrint, Disconnecting,
		ConnectionLost, FailedToConnect:
		return false
	default:
		panic(fmt.Sprintf("unclassified communication state %d", int(s)))
	}
}

// DetailedState breaks Printing down by what the printer is doing for the
// line most recently sent.
type DetailedState int

const (
	DetailNone DetailedState = iota
	DetailHoming
	DetailHeatingBed
	DetailHeatingExtruder
	DetailPrinting
)

func (d DetailedState) String() string {
	switch d {
	case DetailHoming:
		return "homing"
	case DetailHeatingBed:
		return "heatingBed"
	case DetailHeatingExtruder:
		return "heatingExtruder"
	case DetailPrinting:
		return "printing"
	default:
		return ""
	}
}

// FirmwareType is the firmware dialect reported by M115.
type FirmwareType int

const (
	FirmwareUnknown FirmwareType = iota
	FirmwareMarlin
	FirmwareRepetier
	FirmwareSprinter
	FirmwareSmoothie
)

func (f FirmwareType) String() string {
	switch f {
	case FirmwareMarlin:
		return "Marlin"
	case FirmwareRepetier:
		return "Repetier"
	case FirmwareSprinter:
		return "Sprinter"
	case FirmwareSmoothie:
		return "Smoothie"
	default:
		return "Unknown"
	}
}
