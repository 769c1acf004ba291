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

// Package service wires the printer connection, job store, API server and
// publishers into one running process.
package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/printlink/printlink-core/pkg/api"
	"github.com/printlink/printlink-core/pkg/api/models"
	"github.com/printlink/printlink-core/pkg/config"
	"github.com/printlink/printlink-core/pkg/database/jobdb"
	"github.com/printlink/printlink-core/pkg/helpers"
	"github.com/printlink/printlink-core/pkg/printer"
	"github.com/printlink/printlink-core/pkg/service/broker"
	"github.com/printlink/printlink-core/pkg/service/discovery"
	"github.com/printlink/printlink-core/pkg/service/publishers"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
)

const (
	notificationBuffer = 256
	subscriberBuffer   = 100
	jobRetentionDays   = 90
	cleanupInterval    = 24 * time.Hour
)

type Options struct {
	Config *config.Instance
	// Transports defaults to serial or TCP depending on the printer settings.
	Transports printer.TransportFactory
	// Listener defaults to the configured API address.
	Listener net.Listener
	Fs       afero.Fs
	Clock    clockwork.Clock
	Ports    func() ([]helpers.SerialPort, error)
	DataDir  string
	LogDir   string
}

func (o *Options) setDefaults() {
	if o.Transports == nil {
		o.Transports = printer.DefaultTransportFactory(printer.DefaultSerialPortFactory)
	}
	if o.Fs == nil {
		o.Fs = afero.NewOsFs()
	}
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	if o.DataDir == "" {
		o.DataDir = helpers.DataDir()
	}
	if o.LogDir == "" {
		o.LogDir = helpers.LogDir()
	}
}

// Start brings the service up and returns a function that stops it and a
// channel closed once everything has shut down.
func Start(opts Options) (stop func() error, done <-chan struct{}, err error) { //nolint:gocritic // options passed once
	opts.setDefaults()
	cfg := opts.Config
	log.Info().Msgf("version: %s", config.AppVersion)

	ctx, cancel := context.WithCancel(context.Background())
	var cleanups []func()
	fail := func(err error) (func() error, <-chan struct{}, error) {
		cancel()
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
		return nil, nil, err
	}

	log.Info().Str("dir", opts.DataDir).Msg("opening job database")
	jobs, err := jobdb.OpenJobDB(ctx, opts.DataDir)
	if err != nil {
		return fail(fmt.Errorf("failed to open job database: %w", err))
	}
	cleanups = append(cleanups, func() {
		if err := jobs.Close(); err != nil {
			log.Warn().Err(err).Msg("error closing job database")
		}
	})
	cleanupJobs(ctx, jobs)

	ns := make(chan models.Notification, notificationBuffer)
	notifBroker := broker.NewBroker(ns)
	notifBroker.Start(ctx)

	conn, err := printer.NewConnection(printer.Options{
		Transports:    opts.Transports,
		Fs:            opts.Fs,
		Clock:         opts.Clock,
		Jobs:          jobs,
		Notifications: ns,
		Settings:      cfg.Printer(),
	})
	if err != nil {
		return fail(fmt.Errorf("failed to create printer connection: %w", err))
	}
	cleanups = append(cleanups, func() {
		if err := conn.Close(); err != nil {
			log.Warn().Err(err).Msg("error closing printer connection")
		}
	})

	ln := opts.Listener
	if ln == nil {
		ln, err = api.Listen(cfg)
		if err != nil {
			return fail(err)
		}
	}

	apiNotifications, _ := notifBroker.Subscribe(subscriberBuffer)
	server := api.NewServer(api.ServerArgs{
		Printer:       conn,
		Jobs:          jobs,
		Config:        cfg,
		Ports:         opts.Ports,
		Notifications: apiNotifications,
		LogDir:        opts.LogDir,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start(gctx, ln)
	})
	g.Go(func() error {
		runJobCleanup(gctx, opts.Clock, jobs)
		return nil
	})

	log.Info().Msg("starting publishers")
	activePublishers := startPublishers(cfg, notifBroker)

	log.Info().Msg("starting mDNS discovery service")
	discoveryService := discovery.New(cfg)
	if err := discoveryService.Start(); err != nil {
		log.Error().Err(err).Msg("mDNS discovery failed to start (continuing without discovery)")
	}

	if err := cfg.Watch(ctx, func() { applyConfig(cfg, conn) }); err != nil {
		log.Warn().Err(err).Msg("config file changes will not be picked up")
	}

	autoConnect(cfg, conn)

	doneCh := make(chan struct{})
	go func() {
		<-gctx.Done()
		log.Info().Msg("service context cancelled, running cleanup")

		discoveryService.Stop()
		for _, p := range activePublishers {
			p.Stop()
		}
		if err := g.Wait(); err != nil {
			log.Error().Err(err).Msg("service task failed")
		}
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}

		log.Info().Msg("service cleanup completed")
		close(doneCh)
	}()

	stop = func() error {
		cancel()
		<-doneCh
		return nil
	}
	return stop, doneCh, nil
}

func startPublishers(cfg *config.Instance, b *broker.Broker) []*publishers.MQTTPublisher {
	var active []*publishers.MQTTPublisher
	for _, p := range publishers.FromConfig(cfg.GetMQTTPublishers()) {
		sub, id := b.Subscribe(subscriberBuffer)
		if err := p.Start(sub); err != nil {
			log.Error().Err(err).Msg("failed to start MQTT publisher")
			b.Unsubscribe(id)
			continue
		}
		active = append(active, p)
	}
	if len(active) > 0 {
		log.Info().Msgf("started %d MQTT publisher(s)", len(active))
	}
	return active
}

// applyConfig pushes reloaded printer settings into the connection. Settings
// the printer rejects stay at their previous values.
func applyConfig(cfg *config.Instance, conn *printer.Connection) {
	if err := conn.UpdateSettings(cfg.Printer()); err != nil {
		log.Error().Err(err).Msg("reloaded printer settings rejected")
	}
}

func autoConnect(cfg *config.Instance, conn *printer.Connection) {
	p := cfg.Printer()
	if p.Port == "" && !(p.Network && p.Address != "") {
		log.Info().Msg("no printer configured, waiting for a connect request")
		return
	}
	if err := conn.Connect(); err != nil {
		log.Error().Err(err).Msg("printer auto connect failed")
	}
}

type jobCleaner interface {
	Cleanup(ctx context.Context, retentionDays int) (int64, error)
}

func cleanupJobs(ctx context.Context, jobs jobCleaner) {
	removed, err := jobs.Cleanup(ctx, jobRetentionDays)
	switch {
	case errors.Is(err, context.Canceled):
	case err != nil:
		log.Error().Err(err).Msg("failed to clean up job history")
	case removed > 0:
		log.Info().Int64("removed", removed).Msg("cleaned up old print jobs")
	}
}

func runJobCleanup(ctx context.Context, clock clockwork.Clock, jobs jobCleaner) {
	ticker := clock.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			cleanupJobs(ctx, jobs)
		}
	}
}
