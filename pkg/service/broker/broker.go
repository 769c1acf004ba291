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

// Package broker fans printer notifications out to the API server and the
// publishers. A slow subscriber loses notifications, it never blocks the
// printer.
package broker

import (
	"context"
	"slices"

	"github.com/printlink/printlink-core/pkg/api/models"
	"github.com/printlink/printlink-core/pkg/helpers/syncutil"
	"github.com/rs/zerolog/log"
)

type subscriber struct {
	ch      chan models.Notification
	methods []string
	dropped int
}

func (s *subscriber) wants(method string) bool {
	return len(s.methods) == 0 || slices.Contains(s.methods, method)
}

type Broker struct {
	source      <-chan models.Notification
	subscribers map[int]*subscriber
	latest      map[string]models.Notification
	mu          syncutil.RWMutex
	nextID      int
}

func NewBroker(source <-chan models.Notification) *Broker {
	return &Broker{
		source:      source,
		subscribers: make(map[int]*subscriber),
		latest:      make(map[string]models.Notification),
	}
}

// Start runs the broadcast loop until ctx is done or the source closes. All
// subscriber channels are closed on exit.
func (b *Broker) Start(ctx context.Context) {
	go func() {
		defer b.closeAll()
		for {
			select {
			case notif, ok := <-b.source:
				if !ok {
					log.Debug().Msg("broker: source channel closed")
					return
				}
				b.broadcast(notif)
			case <-ctx.Done():
				log.Debug().Msg("broker: context cancelled")
				return
			}
		}
	}()
}

func (b *Broker) broadcast(notif models.Notification) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.latest[notif.Method] = notif
	for id, sub := range b.subscribers {
		if !sub.wants(notif.Method) {
			continue
		}
		select {
		case sub.ch <- notif:
		default:
			sub.dropped++
			log.Warn().
				Int("subscriber_id", id).
				Int("dropped", sub.dropped).
				Str("method", notif.Method).
				Msg("subscriber channel full, dropping notification")
		}
	}
}

// Subscribe registers a consumer. With no methods given every notification
// is delivered.
func (b *Broker) Subscribe(bufferSize int, methods ...string) (notifChan <-chan models.Notification, id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id = b.nextID
	b.nextID++
	sub := &subscriber{
		ch:      make(chan models.Notification, bufferSize),
		methods: slices.Clone(methods),
	}
	b.subscribers[id] = sub

	log.Debug().
		Int("subscriber_id", id).
		Int("buffer_size", bufferSize).
		Strs("methods", methods).
		Msg("new subscriber registered")
	return sub.ch, id
}

// Unsubscribe is safe to call more than once.
func (b *Broker) Unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if sub, ok := b.subscribers[id]; ok {
		delete(b.subscribers, id)
		close(sub.ch)
		log.Debug().Int("subscriber_id", id).Msg("subscriber unsubscribed")
	}
}

// Latest returns the last notification broadcast for method.
func (b *Broker) Latest(method string) (models.Notification, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n, ok := b.latest[method]
	return n, ok
}

func (b *Broker) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, sub := range b.subscribers {
		close(sub.ch)
		log.Debug().Int("subscriber_id", id).Msg("closed subscriber channel on shutdown")
	}
	b.subscribers = make(map[int]*subscriber)
}
