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

package cli

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/printlink/printlink-core/internal/telemetry"
	"github.com/printlink/printlink-core/pkg/api/client"
	"github.com/printlink/printlink-core/pkg/api/models"
	"github.com/printlink/printlink-core/pkg/config"
	"github.com/printlink/printlink-core/pkg/helpers"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Flags struct {
	API       *string
	Print     *string
	Service   *string
	Version   *bool
	ListPorts *bool
	Status    *bool
	Stop      *bool
	Wait      *bool
	Reload    *bool
	Debug     *bool
}

// SetupFlags defines all common CLI flags.
func SetupFlags(fs *flag.FlagSet) *Flags {
	return &Flags{
		API: fs.String(
			"api",
			"",
			"send method and params to API and print response (method:params)",
		),
		Print: fs.String(
			"print",
			"",
			"start printing a G-code file",
		),
		Service: fs.String(
			"service",
			"",
			"manage background service (start|stop|restart|status)",
		),
		Version: fs.Bool(
			"version",
			false,
			"print version and exit",
		),
		ListPorts: fs.Bool(
			"list-ports",
			false,
			"list serial ports that look like printers",
		),
		Status: fs.Bool(
			"status",
			false,
			"print printer status",
		),
		Stop: fs.Bool(
			"stop",
			false,
			"stop the current print",
		),
		Wait: fs.Bool(
			"wait",
			false,
			"with -print, wait until the print ends",
		),
		Reload: fs.Bool(
			"reload",
			false,
			"reload config from disk",
		),
		Debug: fs.Bool(
			"debug",
			false,
			"enable debug logging",
		),
	}
}

type Env struct {
	API   client.APIClient
	Ports func() ([]helpers.SerialPort, error)
	Out   io.Writer
}

// Pre handles flags that need no config or logging. Returns true if the
// process should exit.
func (f *Flags) Pre(out io.Writer) bool {
	if *f.Version {
		_, _ = fmt.Fprintf(out, "Printlink v%s\n", config.AppVersion)
		return true
	}
	return false
}

// Post actions the flags which talk to a running service. Returns true if a
// flag was handled and the process should exit.
func (f *Flags) Post(ctx context.Context, cfg *config.Instance) (bool, error) {
	return f.post(ctx, Env{
		API:   client.NewLocalAPIClient(cfg),
		Ports: helpers.ListSerialPorts,
		Out:   os.Stdout,
	})
}

//nolint:gocritic // env copied per call
func (f *Flags) post(ctx context.Context, env Env) (bool, error) {
	switch {
	case *f.ListPorts:
		return true, writePorts(env.Out, env.Ports)
	case *f.API != "":
		method, params := splitAPIArg(*f.API)
		return true, callAndPrint(ctx, env, method, params)
	case *f.Status:
		return true, callAndPrint(ctx, env, models.MethodPrinterStatus, "")
	case *f.Stop:
		return true, callAndPrint(ctx, env, models.MethodPrintStop, "")
	case *f.Reload:
		return true, callAndPrint(ctx, env, models.MethodSettingsReload, "")
	case *f.Print != "":
		return true, startPrint(ctx, env, *f.Print, *f.Wait)
	}
	return false, nil
}

func splitAPIArg(arg string) (method, params string) {
	method, params, _ = strings.Cut(arg, ":")
	return method, params
}

//nolint:gocritic // env copied per call
func callAndPrint(ctx context.Context, env Env, method, params string) error {
	resp, err := env.API.Call(ctx, method, params)
	if err != nil {
		log.Error().Err(err).Str("method", method).Msg("error calling API")
		return err //nolint:wrapcheck // client errors name the method

	}
	_, _ = fmt.Fprintln(env.Out, resp)
	return nil
}

//nolint:gocritic // env copied per call
func startPrint(ctx context.Context, env Env, path string, wait bool) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}
	data, err := json.Marshal(&models.PrintStartParams{Path: abs})
	if err != nil {
		return fmt.Errorf("error encoding params: %w", err)
	}

	type waitResult struct {
		err    error
		method string
		params string
	}
	var done chan waitResult
	if wait {
		done = make(chan waitResult, 1)
		go func() {
			m, p, err := env.API.WaitAny(ctx,
				models.NotificationPrintFinished,
				models.NotificationPrintCanceled,
				models.NotificationPrinterError,
			)
			done <- waitResult{method: m, params: p, err: err}
		}()
	}

	if err := callAndPrint(ctx, env, models.MethodPrintStart, string(data)); err != nil {
		return err
	}
	if !wait {
		return nil
	}

	res := <-done
	if res.err != nil {
		return fmt.Errorf("error waiting for print: %w", res.err)
	}
	_, _ = fmt.Fprintf(env.Out, "%s %s\n", res.method, res.params)
	if res.method != models.NotificationPrintFinished {
		return fmt.Errorf("print ended with %s", res.method)
	}
	return nil
}

func writePorts(out io.Writer, list func() ([]helpers.SerialPort, error)) error {
	ports, err := list()
	if err != nil {
		return fmt.Errorf("failed to list serial ports: %w", err)
	}
	if len(ports) == 0 {
		_, _ = fmt.Fprintln(out, "no serial ports found")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "PORT\tVID:PID\tPRODUCT")
	for _, p := range ports {
		ids := "-"
		if p.IsUSB {
			ids = p.VID + ":" + p.PID
		}
		product := p.Product
		if product == "" {
			product = "-"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", p.Name, ids, product)
	}
	return w.Flush() //nolint:wrapcheck // tabwriter only returns the underlying write error
}

// Setup initializes logging, the user config and error reporting.
//
//nolint:gocritic // config struct copied for immutability
func Setup(defaultConfig config.Values, writers []io.Writer, debug bool) (*config.Instance, error) {
	if err := helpers.InitLogging(helpers.LogDir(), writers); err != nil {
		return nil, fmt.Errorf("error initializing logging: %w", err)
	}

	cfg, err := config.NewConfig(helpers.ConfigDir(), defaultConfig)
	if err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}

	if debug || cfg.DebugLogging() {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	if err := telemetry.Init(cfg.ErrorReporting(), cfg.DeviceID()); err != nil {
		log.Warn().Err(err).Msg("failed to initialize error reporting")
	}

	return cfg, nil
}
