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

import "github.com/prometheus/client_golang/prometheus"

var (
	linesSent = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "printlink",
		Subsystem: "printer",
		Name:      "lines_sent_total",
		Help:      "Lines written to the printer, resends included.",
	})
	linesReceived = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "printlink",
		Subsystem: "printer",
		Name:      "lines_received_total",
		Help:      "Reply lines read from the printer.",
	})
	resends = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "printlink",
		Subsystem: "printer",
		Name:      "resends_total",
		Help:      "Lines resent, by reason.",
	}, []string{"reason"})
	ackTimeouts = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "printlink",
		Subsystem: "printer",
		Name:      "ack_timeouts_total",
		Help:      "Lines that were not acknowledged in time.",
	})
	malformedReplies = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "printlink",
		Subsystem: "printer",
		Name:      "malformed_replies_total",
		Help:      "Reply lines with fields that failed to parse.",
	})
	stateGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "printlink",
		Subsystem: "printer",
		Name:      "state",
		Help:      "Current communication state as its numeric value.",
	})
	temperatures = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "printlink",
		Subsystem: "printer",
		Name:      "temperature_celsius",
		Help:      "Last reported heater temperature.",
	}, []string{"heater"})
)

const (
	resendFirmware      = "firmware"
	resendTimeout       = "timeout"
	resendUnrecoverable = "unrecoverable"
)

func init() {
	prometheus.MustRegister(linesSent, linesReceived, resends, ackTimeouts, malformedReplies, stateGauge, temperatures)
}
