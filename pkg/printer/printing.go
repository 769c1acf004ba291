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
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/printlink/printlink-core/pkg/api/models"
	"github.com/printlink/printlink-core/pkg/api/notifications"
	"github.com/printlink/printlink-core/pkg/printer/streams"
	"github.com/rs/zerolog/log"
)

const (
	progressInterval = time.Second
	sdPollInterval   = 2 * time.Second
	jobSaveTimeout   = 5 * time.Second
)

// StartPrint streams src to the printer. The connection takes ownership of
// src and closes it, also when the print is rejected. job may be nil for an
// unrecorded print; a job with progress is resumed through the recovery
// stage when recovery is enabled.
func (c *Connection) StartPrint(ctx context.Context, src streams.Source, job *PrintJob) error {
	c.mu.Lock()
	switch {
	case !c.state.IsConnected():
		c.mu.Unlock()
		closeSource(src)
		return ErrNotConnected
	case c.state.PrintIsActive():
		c.mu.Unlock()
		closeSource(src)
		return ErrPrintActive
	}
	c.setStateLocked(PreparingToPrint)
	gen := c.generation
	now := c.clock.Now()

	var j *PrintJob
	var recovery *streams.RecoverySettings
	if job != nil {
		cp := *job
		if cp.ID == "" {
			cp.ID = uuid.New().String()
		}
		if cp.Started.IsZero() {
			cp.Started = now
		}
		cp.Ended = time.Time{}
		if cp.PercentComplete > 0 && c.settings.RecoveryEnabled {
			cp.RecoveryCount++
			recovery = &streams.RecoverySettings{
				TargetPercent: cp.PercentComplete,
				RaiseZ:        c.settings.RecoveryRaiseZ,
				PrimeLength:   c.settings.RecoveryPrimeLength,
				FeedRateRatio: c.settings.RecoveryFeedRateRatio,
				ZHomesToMax:   c.settings.ZHomesToMax,
			}
		} else {
			cp.PercentComplete = 0
		}
		j = &cp
	}
	c.mu.Unlock()

	if j != nil && c.jobs != nil {
		saved := *j
		if err := c.jobs.Save(ctx, &saved); err != nil {
			log.Error().Err(err).Str("job", j.ID).Msg("failed to save print job")
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation || c.state != PreparingToPrint {
		closeSource(src)
		return ErrNotConnected
	}

	c.stopHeatTimerLocked()
	c.errorReported = false
	c.lastError = ""
	c.cancelRequested = false
	c.markCanceled = false
	c.waitingForPosition = false
	c.sdPrint = false
	c.job = j
	c.printStarted = c.clock.Now()
	c.replaceChainLocked(src, recovery, true)
	c.setStateLocked(Printing)
	c.startProgressLocked()
	c.wakeWriter()

	ev := log.Info().Bool("recovery", recovery != nil)
	if j != nil {
		ev = ev.Str("job", j.ID).Str("file", j.FileName)
	}
	ev.Msg("print started")
	return nil
}

// StartPrintFile prints a G-code file from the connection's filesystem.
// previous, when it is a resumable job for the same path, is continued.
func (c *Connection) StartPrintFile(ctx context.Context, path string, previous *PrintJob) error {
	src, err := streams.OpenFileSource(c.fs, path)
	if err != nil {
		return fmt.Errorf("failed to open print file: %w", err)
	}
	job := &PrintJob{FileName: filepath.Base(path), Path: path}
	if previous != nil && previous.Resumable() && previous.Path == path {
		cp := *previous
		job = &cp
	}
	return c.StartPrint(ctx, src, job)
}

func closeSource(src streams.Source) {
	if src == nil {
		return
	}
	if err := src.Close(); err != nil {
		log.Debug().Err(err).Msg("error closing print source")
	}
}

// streamEndedLocked runs when the print chain is exhausted, either because
// the file ended or because the print was canceled.
func (c *Connection) streamEndedLocked() {
	canceled := c.cancelRequested
	c.cancelRequested = false
	c.stopProgressLocked()
	c.replaceChainLocked(streams.NotPrinting{}, nil, true)

	now := c.clock.Now()
	elapsed := now.Sub(c.printStarted)
	params := models.PrintParams{Seconds: elapsed.Seconds()}

	if canceled {
		c.chain.Queued.Add(c.settings.CancelGCode, false)
		c.chain.Queued.Add("M84", false)
		c.turnOffHeatersLocked(true)
		if c.job != nil {
			c.job.Ended = now
			c.job.Canceled = c.markCanceled
			c.fillPrintParams(&params)
			c.saveJobAsyncLocked(*c.job)
			c.job = nil
		}
		c.setStateLocked(Connected)
		log.Info().Dur("elapsed", elapsed).Msg("print canceled")
		notifications.PrintCanceled(c.ns, params)
		return
	}

	if c.state != Printing {
		c.setStateLocked(Connected)
		return
	}

	c.chain.Queued.Add("M84", false)
	c.turnOffHeatersLocked(elapsed < c.settings.HeatHoldPrintThreshold())
	if c.job != nil {
		c.job.Ended = now
		c.job.Finished = true
		c.job.PercentComplete = 100
		c.fillPrintParams(&params)
		c.saveJobAsyncLocked(*c.job)
	}
	params.Percent = 100
	c.setStateLocked(FinishedPrint)
	log.Info().Dur("elapsed", elapsed).Msg("print finished")
	notifications.PrintFinished(c.ns, params)
}

func (c *Connection) fillPrintParams(p *models.PrintParams) {
	p.JobID = c.job.ID
	p.FileName = c.job.FileName
	p.Percent = c.job.PercentComplete
}

// Stop cancels the running print. The chain is cut off and the write loop
// runs the cancel G-code on its next step. markCanceled records the job as
// canceled, which excludes it from recovery.
func (c *Connection) Stop(markCanceled bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.sdPrint && (c.state == PrintingFromSd || c.state == Paused):
		c.chain.Queued.Add("M25", true)
		c.endSdPrintLocked(false, markCanceled)
		return nil
	case c.state == Printing || c.state == Paused:
		c.cancelRequested = true
		c.markCanceled = markCanceled
		c.chain.Cancel()
		c.wakeWriter()
		log.Info().Msg("print cancel requested")
		return nil
	default:
		return ErrNotPrinting
	}
}

// RequestPause pauses the print. For a streamed print the pause completes
// once the pause G-code has gone out.
func (c *Connection) RequestPause() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case PrintingFromSd:
		c.chain.Queued.Add("M25", true)
		c.setStateLocked(Paused)
		c.pauseRequestedLocked(streams.PauseUserRequested)
	case Printing:
		c.chain.Pause.DoPause(streams.PauseUserRequested)
	case Paused:
	default:
		return ErrNotPrinting
	}
	c.wakeWriter()
	return nil
}

func (c *Connection) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Paused {
		return ErrNotPaused
	}
	if c.sdPrint {
		c.chain.Queued.Add("M24", true)
		c.setStateLocked(PrintingFromSd)
	} else {
		c.chain.Pause.Resume()
		c.setStateLocked(Printing)
	}
	c.wakeWriter()
	log.Info().Msg("print resumed")
	return nil
}

func (c *Connection) pauseRequestedLocked(reason streams.PauseReason) {
	log.Info().Str("reason", reason.String()).Msg("print pause requested")
	notifications.PauseRequested(c.ns, reason.String())
}

// StartSdCardPrint starts a file stored on the printer's SD card. Progress is
// polled with M27.
func (c *Connection) StartSdCardPrint(file string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case !c.state.IsConnected():
		return ErrNotConnected
	case c.state.PrintIsActive():
		return ErrPrintActive
	}
	c.stopHeatTimerLocked()
	c.chain.Queued.Add("M23 "+file, false)
	c.chain.Queued.Add("M24", false)
	c.sdPrint = true
	c.sdPercent = 0
	c.errorReported = false
	c.printStarted = c.clock.Now()
	c.job = &PrintJob{
		ID:       uuid.New().String(),
		FileName: file,
		Started:  c.printStarted,
		SdCard:   true,
	}
	c.saveJobAsyncLocked(*c.job)
	c.setStateLocked(PrintingFromSd)
	c.startProgressLocked()
	c.startSdPollLocked()
	c.wakeWriter()
	log.Info().Str("file", file).Msg("sd card print started")
	return nil
}

func (c *Connection) finishSdPrintLocked() {
	if !c.sdPrint {
		return
	}
	c.endSdPrintLocked(true, false)
}

func (c *Connection) endSdPrintLocked(finished, markCanceled bool) {
	c.stopSdPollLocked()
	c.stopProgressLocked()
	c.sdPrint = false
	now := c.clock.Now()
	params := models.PrintParams{Seconds: now.Sub(c.printStarted).Seconds()}
	if c.job != nil {
		c.job.Ended = now
		if finished {
			c.job.Finished = true
			c.job.PercentComplete = 100
		} else {
			c.job.Canceled = markCanceled
		}
		c.fillPrintParams(&params)
		c.saveJobAsyncLocked(*c.job)
		if !finished {
			c.job = nil
		}
	}
	if finished {
		params.Percent = 100
		c.setStateLocked(FinishedPrint)
		notifications.PrintFinished(c.ns, params)
		return
	}
	c.setStateLocked(Connected)
	notifications.PrintCanceled(c.ns, params)
}

func (c *Connection) DeleteFileFromSdCard(file string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.state.IsConnected() {
		return ErrNotConnected
	}
	if c.state == PrintingFromSd {
		return ErrPrintingFromSd
	}
	c.chain.Queued.Add("M30 "+file, false)
	c.wakeWriter()
	return nil
}

func (c *Connection) printPercentLocked() float64 {
	if c.sdPrint {
		return c.sdPercent
	}
	return c.chain.PercentComplete()
}

func (c *Connection) startProgressLocked() {
	c.stopProgressLocked()
	ctx, cancel := context.WithCancel(context.Background())
	c.stopProgress = cancel
	gen := c.generation
	c.tasks.Add(1)
	go func() {
		defer c.tasks.Done()
		ticker := c.clock.NewTicker(progressInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.Chan():
				c.syncProgress(ctx, gen)
			}
		}
	}()
}

func (c *Connection) stopProgressLocked() {
	if c.stopProgress != nil {
		c.stopProgress()
		c.stopProgress = nil
	}
}

// syncProgress stores the print percentage when it grew by at least a
// tenth of a percent. It never holds the lock while talking to the
// repository.
func (c *Connection) syncProgress(ctx context.Context, gen uint64) {
	c.mu.Lock()
	if gen != c.generation || c.job == nil || !c.state.PrintIsActive() {
		c.mu.Unlock()
		return
	}
	percent, changed := nextPercent(c.job.PercentComplete, c.printPercentLocked())
	if !changed {
		c.mu.Unlock()
		return
	}
	c.job.PercentComplete = percent
	params := models.ProgressParams{
		JobID:   c.job.ID,
		Percent: percent,
		Layer:   c.chain.Progress.Layer(),
	}
	c.mu.Unlock()

	notifications.PrintProgress(c.ns, params)
	if c.jobs == nil {
		return
	}
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), jobSaveTimeout)
	defer cancel()
	if err := c.jobs.UpdateProgress(saveCtx, params.JobID, percent); err != nil {
		log.Warn().Err(err).Str("job", params.JobID).Msg("failed to store print progress")
	}
}

func (c *Connection) startSdPollLocked() {
	c.stopSdPollLocked()
	ctx, cancel := context.WithCancel(context.Background())
	c.stopSdPoll = cancel
	gen := c.generation
	c.tasks.Add(1)
	go func() {
		defer c.tasks.Done()
		ticker := c.clock.NewTicker(sdPollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.Chan():
				c.mu.Lock()
				if gen == c.generation && c.sdPrint && c.state == PrintingFromSd {
					c.chain.Queued.Add("M27", false)
					c.wakeWriter()
				}
				c.mu.Unlock()
			}
		}
	}()
}

func (c *Connection) stopSdPollLocked() {
	if c.stopSdPoll != nil {
		c.stopSdPoll()
		c.stopSdPoll = nil
	}
}

// persistJobLocked saves an interrupted print so it can be recovered later.
func (c *Connection) persistJobLocked() {
	if c.job == nil || !c.state.PrintIsActive() || c.job.Finished || c.job.Canceled {
		return
	}
	if p, ok := nextPercent(c.job.PercentComplete, c.printPercentLocked()); ok {
		c.job.PercentComplete = p
	}
	c.job.Ended = c.clock.Now()
	c.saveJobAsyncLocked(*c.job)
}

//nolint:gocritic // job copied so the save cannot race later updates
func (c *Connection) saveJobAsyncLocked(job PrintJob) {
	if c.jobs == nil {
		return
	}
	c.tasks.Add(1)
	go func() {
		defer c.tasks.Done()
		ctx, cancel := context.WithTimeout(context.Background(), jobSaveTimeout)
		defer cancel()
		if err := c.jobs.Save(ctx, &job); err != nil {
			log.Error().Err(err).Str("job", job.ID).Msg("failed to save print job")
		}
	}()
}

// TurnOffHeaters switches every heater off, now or after the heat hold
// period. A print started in the meantime keeps its heaters.
func (c *Connection) TurnOffHeaters(afterDelay bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.state.IsConnected() {
		return ErrNotConnected
	}
	c.turnOffHeatersLocked(afterDelay)
	c.wakeWriter()
	return nil
}

func (c *Connection) turnOffHeatersLocked(afterDelay bool) {
	c.stopHeatTimerLocked()
	hold := c.settings.HeatHold()
	if !afterDelay || hold <= 0 {
		for _, l := range c.heatersOffLines() {
			c.chain.Queued.Add(l, false)
		}
		return
	}
	gen := c.generation
	log.Debug().Dur("hold", hold).Msg("holding heaters")
	c.heatTimer = c.clock.AfterFunc(hold, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if gen != c.generation || !c.state.IsConnected() || c.state.PrintIsActive() {
			return
		}
		c.heatTimer = nil
		for _, l := range c.heatersOffLines() {
			c.chain.Queued.Add(l, false)
		}
		c.wakeWriter()
	})
}

func (c *Connection) stopHeatTimerLocked() {
	if c.heatTimer != nil {
		c.heatTimer.Stop()
		c.heatTimer = nil
	}
}
