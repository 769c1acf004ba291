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

// Package publishers forwards printer notifications to external systems.
package publishers

import (
	"fmt"
	"slices"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/printlink/printlink-core/pkg/api/models"
	"github.com/printlink/printlink-core/pkg/config"
	"github.com/rs/zerolog/log"
)

const (
	connectTimeout    = 10 * time.Second
	publishTimeout    = 5 * time.Second
	disconnectQuiesce = 250
)

// retainedMethods describe current printer state, so a subscriber that
// connects late still sees them.
var retainedMethods = []string{
	models.NotificationPrinterState,
	models.NotificationFirmware,
	models.NotificationTemperature,
	models.NotificationPrintProgress,
}

// trafficMethods are only published when a filter names them.
var trafficMethods = []string{
	models.NotificationLineSent,
	models.NotificationLineReceived,
}

// MQTTPublisher publishes each notification's params to <topic>/<method>.
type MQTTPublisher struct {
	client    mqtt.Client
	newClient func(*mqtt.ClientOptions) mqtt.Client
	stopCh    chan struct{}
	done      chan struct{}
	broker    string
	topic     string
	filter    []string
}

func NewMQTTPublisher(broker, topic string, filter []string) *MQTTPublisher {
	return &MQTTPublisher{
		broker:    broker,
		topic:     strings.TrimSuffix(topic, "/"),
		filter:    filter,
		newClient: mqtt.NewClient,
		stopCh:    make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// FromConfig builds a publisher for every enabled entry.
func FromConfig(entries []config.MQTTPublisher) []*MQTTPublisher {
	pubs := make([]*MQTTPublisher, 0, len(entries))
	for _, e := range entries {
		if !e.IsEnabled() {
			continue
		}
		if e.Broker == "" || e.Topic == "" {
			log.Warn().Str("broker", e.Broker).Msg("mqtt publisher missing broker or topic, skipping")
			continue
		}
		pubs = append(pubs, NewMQTTPublisher(e.Broker, e.Topic, e.Filter))
	}
	return pubs
}

func brokerURL(broker string) string {
	if strings.Contains(broker, "://") {
		return broker
	}
	return "tcp://" + broker
}

// Start connects to the broker and forwards notifications until Stop is
// called or the channel closes.
func (p *MQTTPublisher) Start(notifications <-chan models.Notification) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(brokerURL(p.broker))
	opts.SetClientID(config.AppName + "-" + uuid.New().String()[:8])
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectTimeout(connectTimeout)
	opts.SetWill(p.topic+"/"+models.NotificationPrinterState, `{"state":"offline"}`, 1, true)
	opts.OnConnect = func(_ mqtt.Client) {
		log.Info().Str("broker", p.broker).Msg("mqtt publisher: connected")
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		log.Warn().Err(err).Str("broker", p.broker).Msg("mqtt publisher: connection lost")
	}

	p.client = p.newClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		log.Warn().Str("broker", p.broker).Msg("mqtt publisher: broker not reachable yet, retrying in background")
	} else if err := token.Error(); err != nil {
		close(p.done)
		return fmt.Errorf("failed to connect to MQTT broker: %w", err)
	}

	go p.publishNotifications(notifications)
	return nil
}

func (p *MQTTPublisher) Stop() {
	select {
	case <-p.stopCh:
		return
	default:
		close(p.stopCh)
	}
	if p.client != nil {
		<-p.done
		if p.client.IsConnected() {
			log.Debug().Msg("mqtt publisher: disconnecting")
			p.client.Disconnect(disconnectQuiesce)
		}
	}
}

func (p *MQTTPublisher) publishNotifications(notifications <-chan models.Notification) {
	defer close(p.done)
	for {
		select {
		case <-p.stopCh:
			return
		case notif, ok := <-notifications:
			if !ok {
				log.Debug().Msg("mqtt publisher: notification channel closed")
				return
			}
			if !p.matchesFilter(notif.Method) {
				continue
			}
			p.publish(notif)
		}
	}
}

func (p *MQTTPublisher) publish(notif models.Notification) {
	payload := []byte(notif.Params)
	if len(payload) == 0 {
		payload = []byte("null")
	}

	topic := p.topic + "/" + notif.Method
	token := p.client.Publish(topic, 0, slices.Contains(retainedMethods, notif.Method), payload)
	if !token.WaitTimeout(publishTimeout) {
		log.Warn().Str("topic", topic).Msg("mqtt publisher: publish timed out")
		return
	}
	if err := token.Error(); err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("mqtt publisher: failed to publish")
		return
	}
	log.Debug().Str("topic", topic).Msg("mqtt publisher: published")
}

// matchesFilter passes every method named in the filter. An empty filter
// passes everything except per-line traffic.
func (p *MQTTPublisher) matchesFilter(method string) bool {
	if len(p.filter) == 0 {
		return !slices.Contains(trafficMethods, method)
	}
	return slices.Contains(p.filter, method)
}
