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
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/printlink/printlink-core/pkg/api/models"
	"github.com/printlink/printlink-core/pkg/api/notifications"
	"github.com/printlink/printlink-core/pkg/config"
	"github.com/printlink/printlink-core/pkg/gcode"
	"github.com/printlink/printlink-core/pkg/helpers/syncutil"
	"github.com/printlink/printlink-core/pkg/printer/streams"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

const (
	probeCommand   = "M105"
	maxProbeErrors = 3
)

// Options configure a Connection. Settings, Transports and Fs are required
// in practice; the rest fall back to working defaults.
type Options struct {
	Transports    TransportFactory
	Fs            afero.Fs
	Clock         clockwork.Clock
	Jobs          JobRepository
	Leveler       streams.Leveler
	Notifications chan<- models.Notification
	Settings      config.Printer
}

// transmission is the last line written, kept so an unanswered line can be
// sent again.
type transmission struct {
	text  string
	plain string
	// index is the ring line number, 0 for raw lines outside the ring
	index int
}

// Connection owns one printer link. All fields below mu are guarded by it;
// the stream chain is only ever driven with mu held.
type Connection struct {
	transports TransportFactory
	fs         afero.Fs
	clock      clockwork.Clock
	jobs       JobRepository
	ns         chan<- models.Notification
	// leveler overrides the plane built from the leveling settings.
	leveler streams.Leveler

	// loops tracks the read and write loops of the current generation;
	// tasks tracks connect attempts, progress and SD polling.
	loops sync.WaitGroup
	tasks sync.WaitGroup
	wake  chan struct{}

	mu syncutil.Mutex

	settings     config.Printer
	readRewrite  *gcode.RewriteTable
	writeRewrite *gcode.RewriteTable
	plane        *PlaneLeveler

	transport     Transport
	state         CommunicationState
	detail        DetailedState
	generation    uint64
	cancelLoops   context.CancelFunc
	cancelConnect context.CancelFunc

	chain           *streams.Chain
	ring            *lineRing
	sendIndex       int
	needsReset      bool
	waitingForOK    bool
	lastTransmitted transmission
	lastWrite       time.Time
	lastRead        time.Time
	lastOK          time.Time
	timeoutResends  int
	readBuf         []byte

	waitingForPosition  bool
	positionWaitStarted time.Time
	homingRequested     bool

	rt runtimeState

	job             *PrintJob
	printStarted    time.Time
	cancelRequested bool
	markCanceled    bool
	sdPrint         bool
	sdPercent       float64
	stopProgress    context.CancelFunc
	stopSdPoll      context.CancelFunc
	heatTimer       clockwork.Timer
	errorReported   bool
	lastError       string
	linesSent       int
}

// NewConnection returns a disconnected Connection.
//
//nolint:gocritic // options struct copied so the caller keeps ownership
func NewConnection(opts Options) (*Connection, error) {
	c := &Connection{
		transports: opts.Transports,
		fs:         opts.Fs,
		clock:      opts.Clock,
		jobs:       opts.Jobs,
		ns:         opts.Notifications,
		leveler:    opts.Leveler,
		wake:       make(chan struct{}, 1),
		ring:       newLineRing(),
	}
	if c.transports == nil {
		c.transports = DefaultTransportFactory(nil)
	}
	if c.fs == nil {
		c.fs = afero.NewOsFs()
	}
	if c.clock == nil {
		c.clock = clockwork.NewRealClock()
	}
	if err := c.applySettingsLocked(opts.Settings); err != nil {
		return nil, err
	}
	c.rt.reset()
	c.replaceChainLocked(streams.NotPrinting{}, nil, false)
	stateGauge.Set(float64(Disconnected))
	return c, nil
}

// applySettingsLocked stores a settings snapshot. A running print keeps the
// settings it started with; port settings apply at the next connect.
//
//nolint:gocritic // settings snapshot copied on purpose
func (c *Connection) applySettingsLocked(settings config.Printer) error {
	readRewrite, err := gcode.ParseRewriteTable(settings.ReadRegex)
	if err != nil {
		return fmt.Errorf("invalid read_regex: %w", err)
	}
	writeRewrite, err := gcode.ParseRewriteTable(settings.WriteRegex)
	if err != nil {
		return fmt.Errorf("invalid write_regex: %w", err)
	}
	c.plane = nil
	if settings.Leveling.Enabled {
		l, err := NewPlaneLeveler(settings.Leveling.Points)
		if err != nil {
			return err
		}
		c.plane = l
	}
	c.settings = settings
	c.readRewrite = readRewrite
	c.writeRewrite = writeRewrite
	return nil
}

// UpdateSettings replaces the printer settings, e.g. after a config reload.
//
//nolint:gocritic // settings snapshot copied on purpose
func (c *Connection) UpdateSettings(settings config.Printer) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.applySettingsLocked(settings); err != nil {
		return err
	}
	if !c.state.PrintIsActive() {
		c.replaceChainLocked(streams.NotPrinting{}, nil, true)
	}
	return nil
}

func (c *Connection) Settings() config.Printer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings
}

func (c *Connection) State() CommunicationState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect starts connecting in the background. Progress is reported through
// state notifications; failures through a connection failed notification.
// Calling Connect while a link is open or opening returns an AlreadyConnected
// error and changes nothing.
func (c *Connection) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case Disconnected, FailedToConnect, ConnectionLost:
	default:
		return newConnectError(AlreadyConnected, "already connected", nil)
	}

	c.generation++
	gen := c.generation
	settings := c.settings
	ctx, cancel := context.WithCancel(context.Background())
	c.cancelConnect = cancel
	c.setStateLocked(AttemptingToConnect)

	c.tasks.Add(1)
	go func() {
		defer c.tasks.Done()
		c.connect(ctx, gen, &settings)
	}()
	return nil
}

func (c *Connection) connect(ctx context.Context, gen uint64, settings *config.Printer) {
	if !settings.Network && runtime.GOOS != "windows" {
		if _, err := c.fs.Stat(settings.Port); err != nil {
			c.failConnect(gen, newConnectError(PortUnavailable, "port "+settings.Port+" not found", err))
			return
		}
	}

	log.Info().Str("port", settings.Port).Int("baud", settings.BaudRate).
		Bool("network", settings.Network).Msg("connecting to printer")

	t, err := c.transports(ctx, settings)
	if err != nil {
		c.failConnect(gen, newConnectError(classifyOpenError(err), "failed to open printer port", err))
		return
	}

	if err := t.SetReadTimeout(readTimeout); err != nil {
		_ = t.Close()
		c.failConnect(gen, newConnectError(IOException, "failed to set read timeout", err))
		return
	}

	leftover, err := c.probe(ctx, t, settings.ConnectTimeout())
	if err != nil {
		_ = t.Close()
		if ctx.Err() != nil {
			return
		}
		c.failConnect(gen, err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation || c.state != AttemptingToConnect {
		_ = t.Close()
		return
	}
	c.cancelConnect = nil
	c.startLocked(t, leftover)
}

// probe writes a temperature request and waits for the first reply line. A
// silent printer is accepted once timeout has passed; a link producing
// garbage, which is what a wrong baud rate looks like, is rejected.
func (c *Connection) probe(ctx context.Context, t Transport, timeout time.Duration) ([]byte, error) {
	if _, err := t.Write([]byte(probeCommand + "\n")); err != nil {
		return nil, newConnectError(classifyWriteError(err), "failed to write probe", err)
	}

	started := c.clock.Now()
	buf := make([]byte, 1024)
	var got []byte
	for {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("connect canceled: %w", err)
		}
		n, err := t.Read(buf)
		if err != nil {
			return nil, newConnectError(classifyWriteError(err), "failed to read probe reply", err)
		}
		got = append(got, buf[:n]...)
		if strings.Count(string(got), "?") > maxProbeErrors {
			return nil, newConnectError(MaximumErrorsReached,
				"too many invalid characters, check the baud rate", nil)
		}
		if strings.ContainsRune(string(got), '\n') {
			return got, nil
		}
		if c.clock.Since(started) >= timeout {
			log.Warn().Msg("printer did not answer the probe, continuing anyway")
			return got, nil
		}
	}
}

func classifyWriteError(err error) ConnectionFailure {
	if r := classifyOpenError(err); r != FailureUnknown {
		return r
	}
	return IOException
}

// failConnect reports a failed attempt and drops back to Disconnected.
func (c *Connection) failConnect(gen uint64, cerr error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		return
	}
	c.cancelConnect = nil
	c.reportFailureLocked(cerr)
	c.setStateLocked(FailedToConnect)
	c.setStateLocked(Disconnected)
}

func (c *Connection) reportFailureLocked(err error) {
	var ce *ConnectError
	if !errors.As(err, &ce) {
		ce = newConnectError(FailureUnknown, "connection failed", err)
	}
	log.Error().Err(err).Str("reason", ce.Reason.String()).Msg("printer connection failed")
	params := models.ConnectionFailedParams{Reason: ce.Reason.String(), Message: ce.Message}
	if ce.Err != nil {
		params.Error = ce.Err.Error()
	}
	notifications.ConnectionFailed(c.ns, params)
}

// startLocked takes over an opened transport: runtime state is reset, the
// idle chain is built with heaters off and the connect G-code queued, and
// the loops are started.
func (c *Connection) startLocked(t Transport, leftover []byte) {
	c.transport = t
	c.rt.reset()
	c.resetProtocolLocked()
	now := c.clock.Now()
	c.lastRead, c.lastOK, c.lastWrite = now, now, now
	c.readBuf = nil
	c.errorReported = false
	c.lastError = ""

	c.replaceChainLocked(streams.NotPrinting{}, nil, false)
	for _, l := range c.heatersOffLines() {
		c.chain.Queued.Add(l, false)
	}
	c.chain.Queued.Add(c.settings.ConnectGCode, false)

	ctx, cancel := context.WithCancel(context.Background())
	c.cancelLoops = cancel
	gen := c.generation
	c.loops.Add(2)
	go c.readLoop(ctx, gen, t)
	go c.writeLoop(ctx, gen)

	c.setStateLocked(Connected)
	if len(leftover) > 0 {
		c.feedLocked(leftover)
	}
	log.Info().Msg("printer connected")
}

// resetProtocolLocked restarts line numbering; with checksums on an M110 N0
// goes out before the next numbered line.
func (c *Connection) resetProtocolLocked() {
	c.ring.Reset(1)
	c.sendIndex = 1
	c.needsReset = c.settings.Checksums
	c.waitingForOK = false
	c.timeoutResends = 0
}

func (c *Connection) heatersOffLines() []string {
	lines := make([]string, 0, c.settings.ExtruderCount+1)
	for i := range max(1, c.settings.ExtruderCount) {
		lines = append(lines, fmt.Sprintf("M104 T%d S0", i))
	}
	return append(lines, "M140 S0")
}

// Disable disconnects. Motors are released and heaters switched off first,
// written directly so they go out ahead of anything queued. It is a no-op
// while the printer runs a print from its SD card.
func (c *Connection) Disable() error {
	c.mu.Lock()
	switch c.state {
	case PrintingFromSd:
		c.mu.Unlock()
		log.Warn().Msg("not disconnecting while printing from sd card")
		return nil
	case Disconnected, Disconnecting:
		c.mu.Unlock()
		return nil
	case AttemptingToConnect, FailedToConnect, ConnectionLost:
		c.generation++
		if c.cancelConnect != nil {
			c.cancelConnect()
			c.cancelConnect = nil
		}
		c.setStateLocked(Disconnected)
		c.mu.Unlock()
		c.loops.Wait()
		c.tasks.Wait()
		return nil
	case Connected, PreparingToPrint, Printing, Paused, FinishedPrint:
	}

	c.persistJobLocked()
	c.setStateLocked(Disconnecting)
	t := c.transport
	c.writeRawLocked("M84")
	for _, l := range c.heatersOffLines() {
		c.writeRawLocked(l)
	}
	c.job = nil
	c.shutdownLocked()
	c.mu.Unlock()

	if t != nil {
		if err := t.Close(); err != nil {
			log.Debug().Err(err).Msg("error closing printer port")
		}
	}
	c.loops.Wait()
	c.tasks.Wait()

	c.mu.Lock()
	c.transport = nil
	c.rt.reset()
	c.setStateLocked(Disconnected)
	c.mu.Unlock()
	log.Info().Msg("printer disconnected")
	return nil
}

// Close disconnects even if an SD print is running. It is meant for service
// shutdown.
func (c *Connection) Close() error {
	c.mu.Lock()
	if c.state == PrintingFromSd {
		c.setStateLocked(Connected)
	}
	c.mu.Unlock()
	return c.Disable()
}

// shutdownLocked invalidates the running loops and stops every timer. It
// does not wait; the loops exit on their own once they see the generation
// change or their context end.
func (c *Connection) shutdownLocked() {
	c.generation++
	if c.cancelLoops != nil {
		c.cancelLoops()
		c.cancelLoops = nil
	}
	c.stopProgressLocked()
	c.stopSdPollLocked()
	c.stopHeatTimerLocked()
	c.sdPrint = false
	c.cancelRequested = false
	c.waitingForOK = false
	c.waitingForPosition = false
	c.replaceChainLocked(streams.NotPrinting{}, nil, false)
}

// connectionLostLocked drops a connection after an I/O failure. The job is
// kept on disk so the print can be recovered.
func (c *Connection) connectionLostLocked(err error) {
	if !c.state.IsConnected() {
		return
	}
	c.reportFailureLocked(err)
	c.persistJobLocked()
	c.job = nil
	t := c.transport
	c.transport = nil
	c.shutdownLocked()
	if t != nil {
		if cerr := t.Close(); cerr != nil {
			log.Debug().Err(cerr).Msg("error closing lost printer port")
		}
	}
	c.rt.reset()
	c.setStateLocked(ConnectionLost)
}

// setStateLocked is the only place the state changes.
func (c *Connection) setStateLocked(s CommunicationState) {
	if c.state == s {
		return
	}
	prev := c.state
	c.state = s
	if !s.Printing() {
		c.detail = DetailNone
	}
	stateGauge.Set(float64(s))
	log.Debug().Str("from", prev.String()).Str("to", s.String()).Msg("printer state changed")
	notifications.PrinterState(c.ns, models.StateParams{State: s.String(), Detail: c.detail.String()})
}

func (c *Connection) setDetailLocked(d DetailedState) {
	if c.detail == d {
		return
	}
	c.detail = d
	notifications.PrinterState(c.ns, models.StateParams{State: c.state.String(), Detail: d.String()})
}

func (c *Connection) wakeWriter() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}
