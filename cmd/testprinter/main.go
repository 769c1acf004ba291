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

// Command testprinter serves an emulated Marlin printer over TCP so the
// service can be exercised without hardware. Point printer.network at the
// listen address.
package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/printlink/printlink-core/pkg/testing/emulator"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type options struct {
	listen  string
	profile string
	level   string
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	if err := rootCmd(afero.NewOsFs(), os.Stdout).Execute(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func rootCmd(fs afero.Fs, out io.Writer) *cobra.Command {
	opts := &options{listen: "127.0.0.1:7491", level: "info"}

	root := &cobra.Command{
		Use:           "testprinter",
		Short:         "Emulated 3D printer for development",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.level, "log-level", opts.level, "log level: debug|info|warn|error")
	root.PersistentPreRunE = func(*cobra.Command, []string) error {
		lvl, err := zerolog.ParseLevel(opts.level)
		if err != nil {
			return fmt.Errorf("invalid log level: %w", err)
		}
		zerolog.SetGlobalLevel(lvl)
		return nil
	}

	serve := &cobra.Command{
		Use:     "serve",
		Short:   "Listen for printer connections",
		Example: "  testprinter serve --listen 127.0.0.1:7491 --profile prusa.yaml",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return runServe(ctx, fs, opts)
		},
	}
	serve.Flags().StringVar(&opts.listen, "listen", opts.listen, "TCP address to listen on")
	serve.Flags().StringVar(&opts.profile, "profile", "", "YAML firmware profile")

	profile := &cobra.Command{
		Use:   "profile",
		Short: "Print the default firmware profile as YAML",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			enc := yaml.NewEncoder(out)
			defer func() { _ = enc.Close() }()
			if err := enc.Encode(emulator.DefaultProfile()); err != nil {
				return fmt.Errorf("failed to encode profile: %w", err)
			}
			return nil
		},
	}

	root.AddCommand(serve, profile)
	return root
}

func runServe(ctx context.Context, fs afero.Fs, opts *options) error {
	profile := emulator.DefaultProfile()
	if opts.profile != "" {
		var err error
		profile, err = emulator.LoadProfile(fs, opts.profile)
		if err != nil {
			return err //nolint:wrapcheck // already describes the profile
		}
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", opts.listen)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	log.Info().
		Str("addr", ln.Addr().String()).
		Str("profile", profile.Name).
		Msg("emulated printer listening")

	return emulator.Serve(ctx, ln, profile) //nolint:wrapcheck // serve errors are already wrapped
}
