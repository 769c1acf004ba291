//go:build linux

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

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/printlink/printlink-core/internal/telemetry"
	"github.com/printlink/printlink-core/pkg/api/client"
	"github.com/printlink/printlink-core/pkg/cli"
	"github.com/printlink/printlink-core/pkg/config"
	"github.com/printlink/printlink-core/pkg/helpers"
	"github.com/printlink/printlink-core/pkg/service"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := run(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		telemetry.Flush()
		os.Exit(1)
	}
}

func run() error {
	flags := cli.SetupFlags(flag.CommandLine)
	flag.Parse()

	if flags.Pre(os.Stdout) {
		return nil
	}

	if os.Geteuid() == 0 {
		return errors.New("printlink should not be run as root, add the user to the dialout group instead")
	}

	var logWriters []io.Writer
	if *flags.Service == "" {
		logWriters = []io.Writer{os.Stderr}
	}

	cfg, err := cli.Setup(config.BaseDefaults, logWriters, *flags.Debug)
	if err != nil {
		return err
	}
	defer telemetry.Close()

	defer func() {
		if err := recover(); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Panic: %s\n", err)
			log.Fatal().Msgf("panic: %v", err)
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if handled, err := flags.Post(ctx, cfg); handled {
		return err
	}

	entry := func() (func() error, error) {
		stop, _, err := service.Start(service.Options{Config: cfg})
		if err != nil {
			return nil, fmt.Errorf("error starting service: %w", err)
		}
		return stop, nil
	}

	if *flags.Service != "" {
		svc, err := helpers.NewService(helpers.ServiceArgs{Entry: entry})
		if err != nil {
			return fmt.Errorf("error creating service: %w", err)
		}
		return svc.ServiceHandler(*flags.Service)
	}

	if client.IsServiceRunning(cfg) {
		return helpers.ErrServiceRunning
	}

	stop, done, err := service.Start(service.Options{Config: cfg})
	if err != nil {
		log.Error().Err(err).Msg("error starting service")
		return fmt.Errorf("error starting service: %w", err)
	}
	log.Info().Msg("started in foreground mode")

	select {
	case <-ctx.Done():
	case <-done:
		log.Warn().Msg("service stopped unexpectedly")
	}

	if err := stop(); err != nil {
		log.Error().Err(err).Msg("error stopping service")
		return fmt.Errorf("error stopping service: %w", err)
	}
	return nil
}
