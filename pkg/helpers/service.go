//go:build unix

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

package helpers

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/printlink/printlink-core/pkg/config"
	"github.com/rs/zerolog/log"
)

var (
	ErrServiceRunning    = errors.New("service already running")
	ErrServiceNotRunning = errors.New("service not running")
)

// ServiceEntry starts the service and returns its stop function.
type ServiceEntry func() (func() error, error)

// Service runs the daemon in the background, tracked by a pid file.
type Service struct {
	start   ServiceEntry
	stop    func() error
	tempDir string
	daemon  bool
}

type ServiceArgs struct {
	Entry    ServiceEntry
	TempDir  string
	NoDaemon bool
}

func NewService(args ServiceArgs) (*Service, error) {
	if args.TempDir == "" {
		args.TempDir = TempDir()
	}
	if err := os.MkdirAll(args.TempDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	return &Service{
		daemon:  !args.NoDaemon,
		start:   args.Entry,
		tempDir: args.TempDir,
	}, nil
}

func (s *Service) pidPath() string {
	return filepath.Join(s.tempDir, config.PidFile)
}

func (s *Service) createPidFile() error {
	err := os.WriteFile(s.pidPath(), []byte(strconv.Itoa(os.Getpid())), 0o600)
	if err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}
	return nil
}

func (s *Service) removePidFile() error {
	if err := os.Remove(s.pidPath()); err != nil {
		return fmt.Errorf("failed to remove PID file: %w", err)
	}
	return nil
}

// Pid returns the pid recorded by the running daemon, or 0.
func (s *Service) Pid() (int, error) {
	data, err := os.ReadFile(s.pidPath())
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	} else if err != nil {
		return 0, fmt.Errorf("error reading pid file: %w", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("error parsing pid: %w", err)
	}
	return pid, nil
}

func (s *Service) Running() bool {
	pid, err := s.Pid()
	if err != nil || pid == 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}

func (s *Service) stopService() error {
	log.Info().Msg("stopping service")
	if err := s.stop(); err != nil {
		log.Error().Err(err).Msg("error stopping service")
		return err
	}
	if err := s.removePidFile(); err != nil {
		log.Error().Err(err).Msg("error removing pid file")
		return err
	}
	return nil
}

// startService runs the entry in this process and blocks until SIGINT or
// SIGTERM.
func (s *Service) startService() error {
	if s.Running() {
		return ErrServiceRunning
	}

	log.Info().Msg("starting service")
	if err := s.createPidFile(); err != nil {
		return err
	}

	stop, err := s.start()
	if err != nil {
		if rmErr := s.removePidFile(); rmErr != nil {
			log.Error().Err(rmErr).Msg("error removing pid file")
		}
		return fmt.Errorf("error starting service: %w", err)
	}
	s.stop = stop

	if !s.daemon {
		return s.stopService()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	<-ctx.Done()
	return s.stopService()
}

// Start launches a detached copy of this binary running the service.
func (s *Service) Start() error {
	if s.Running() {
		return ErrServiceRunning
	}

	binPath := os.Getenv(config.AppEnv)
	if binPath == "" {
		exe, err := os.Executable()
		if err != nil {
			return fmt.Errorf("error getting absolute binary path: %w", err)
		}
		binPath = exe
	}

	//nolint:gosec // re-executes this binary
	cmd := exec.Command(binPath, "-service", "exec")
	cmd.Env = append(os.Environ(), config.AppEnv+"="+binPath)
	cfgPath := filepath.Join(ConfigDir(), config.CfgFile)
	if _, err := os.Stat(cfgPath); err == nil && os.Getenv(config.CfgEnv) == "" {
		cmd.Env = append(cmd.Env, config.CfgEnv+"="+cfgPath)
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("error starting service: %w", err)
	}
	return cmd.Process.Release() //nolint:wrapcheck // release only fails on an invalid process
}

func (s *Service) Stop() error {
	if !s.Running() {
		return ErrServiceNotRunning
	}
	pid, err := s.Pid()
	if err != nil {
		return err
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process: %w", err)
	}
	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to send SIGTERM to process: %w", err)
	}
	return nil
}

func (s *Service) Restart() error {
	if s.Running() {
		if err := s.Stop(); err != nil {
			return err
		}
	}
	for s.Running() {
		time.Sleep(time.Second)
	}
	return s.Start()
}

func (s *Service) ServiceHandler(cmd string) error {
	switch cmd {
	case "exec":
		return s.startService()
	case "start":
		return s.Start()
	case "stop":
		return s.Stop()
	case "restart":
		return s.Restart()
	case "status":
		if s.Running() {
			_, _ = fmt.Println("started")
			return nil
		}
		_, _ = fmt.Println("stopped")
		return ErrServiceNotRunning
	case "":
		return nil
	default:
		return fmt.Errorf("unknown service argument: %s", cmd)
	}
}
