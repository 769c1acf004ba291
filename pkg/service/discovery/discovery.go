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

// Package discovery advertises the API over mDNS so clients on the local
// network can find printers without knowing their address.
package discovery

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/grandcat/zeroconf"
	"github.com/jonboulle/clockwork"
	"github.com/printlink/printlink-core/pkg/config"
	"github.com/printlink/printlink-core/pkg/helpers/syncutil"
	"github.com/rs/zerolog/log"
)

const (
	ServiceType = "_printlink._tcp"
	domain      = "local."

	retryInterval    = 30 * time.Second
	maxRetryDuration = 5 * time.Minute
)

// virtual and container interfaces never carry useful mDNS traffic
var virtualInterfacePrefixes = []string{
	"docker", "br-", "veth", "virbr", "lxc", "lxd",
	"cni", "flannel", "cali", "tunl", "wg",
}

type registerFunc func(
	instance, service, domain string,
	port int,
	txt []string,
	ifaces []net.Interface,
) (shutdowner, error)

type shutdowner interface {
	Shutdown()
}

func zeroconfRegister(
	instance, service, domain string,
	port int,
	txt []string,
	ifaces []net.Interface,
) (shutdowner, error) {
	return zeroconf.Register(instance, service, domain, port, txt, ifaces)
}

func filterInterfaces(ifaces []net.Interface) []net.Interface {
	var preferred []net.Interface
	for _, iface := range ifaces {
		switch {
		case iface.Flags&net.FlagUp == 0,
			iface.Flags&net.FlagLoopback != 0,
			iface.Flags&net.FlagMulticast == 0,
			isVirtualInterface(iface.Name):
			continue
		}
		preferred = append(preferred, iface)
	}
	return preferred
}

func isVirtualInterface(name string) bool {
	lowerName := strings.ToLower(name)
	for _, prefix := range virtualInterfacePrefixes {
		if strings.HasPrefix(lowerName, prefix) {
			return true
		}
	}
	return false
}

type Service struct {
	server       shutdowner
	cfg          *config.Instance
	clock        clockwork.Clock
	register     registerFunc
	interfaces   func() ([]net.Interface, error)
	hostname     func() (string, error)
	cancelFunc   context.CancelFunc
	instanceName string
	stopped      bool
	mu           syncutil.Mutex
}

func New(cfg *config.Instance) *Service {
	return &Service{
		cfg:        cfg,
		clock:      clockwork.NewRealClock(),
		register:   zeroconfRegister,
		interfaces: net.Interfaces,
		hostname:   os.Hostname,
	}
}

// Start begins advertising. When the network is not ready yet, registration
// is retried in the background for maxRetryDuration.
func (s *Service) Start() error {
	if !s.cfg.DiscoveryEnabled() {
		log.Info().Msg("mDNS discovery disabled by configuration")
		return nil
	}

	s.instanceName = s.resolveInstanceName()
	if s.tryRegister() {
		return nil
	}

	log.Info().
		Dur("retryInterval", retryInterval).
		Dur("maxDuration", maxRetryDuration).
		Msg("mDNS registration failed, retrying in background")

	ctx, cancel := context.WithTimeout(context.Background(), maxRetryDuration)
	s.mu.Lock()
	s.cancelFunc = cancel
	s.mu.Unlock()
	go s.retryLoop(ctx)
	return nil
}

func (s *Service) txtRecords() []string {
	return []string{
		"id=" + s.cfg.DeviceID(),
		"version=" + config.AppVersion,
		"port=" + strconv.Itoa(s.cfg.APIPort()),
	}
}

func (s *Service) tryRegister() bool {
	all, err := s.interfaces()
	if err != nil {
		log.Debug().Err(err).Msg("failed to list network interfaces")
		return false
	}
	ifaces := filterInterfaces(all)
	if len(ifaces) == 0 {
		log.Debug().Msg("no suitable network interfaces found for mDNS")
		return false
	}

	ifaceNames := make([]string, len(ifaces))
	for i, iface := range ifaces {
		ifaceNames[i] = iface.Name
	}

	port := s.cfg.APIPort()
	server, err := s.register(s.instanceName, ServiceType, domain, port, s.txtRecords(), ifaces)
	if err != nil {
		log.Debug().Err(err).Msg("mDNS registration attempt failed")
		return false
	}

	s.mu.Lock()
	if s.stopped {
		// Stop raced the registration
		s.mu.Unlock()
		server.Shutdown()
		return false
	}
	s.server = server
	s.mu.Unlock()

	log.Info().
		Str("instance", s.instanceName).
		Int("port", port).
		Str("type", ServiceType).
		Strs("interfaces", ifaceNames).
		Msg("mDNS service advertising started")
	return true
}

func (s *Service) retryLoop(ctx context.Context) {
	ticker := s.clock.NewTicker(retryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			if s.tryRegister() {
				log.Info().Msg("mDNS registration succeeded after retry")
				return
			}
		case <-ctx.Done():
			if ctx.Err() == context.DeadlineExceeded {
				log.Warn().Msg("mDNS registration retry timed out, discovery will not be available")
			}
			return
		}
	}
}

// Stop sends goodbye packets. It is safe to call more than once.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = true
	if s.cancelFunc != nil {
		s.cancelFunc()
		s.cancelFunc = nil
	}
	if s.server != nil {
		log.Debug().Msg("stopping mDNS service advertising")
		s.server.Shutdown()
		s.server = nil
	}
}

func (s *Service) InstanceName() string {
	return s.instanceName
}

// resolveInstanceName prefers the configured name, then the hostname, then
// a name derived from the device id.
func (s *Service) resolveInstanceName() string {
	if name := s.cfg.DiscoveryInstanceName(); name != "" {
		return name
	}
	hostname, err := s.hostname()
	if err == nil && hostname != "" {
		return hostname
	}
	log.Warn().Err(err).Msg("failed to get hostname, using fallback")
	if id := s.cfg.DeviceID(); len(id) >= 8 {
		return fmt.Sprintf("%s-%s", config.AppName, id[:8])
	}
	return config.AppName
}
