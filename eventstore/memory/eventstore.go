// Copyright (c) 2024 - The Eventfold authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package memory

import (
	"context"
	"sync"

	ef "github.com/eventfold/eventfold"
)

// EventStore is an ef.EventStore where all events are stored in memory. It
// implements the full optimistic concurrency semantics and is mainly useful
// in testing.
type EventStore struct {
	streams map[string][]ef.Event
	mu      sync.RWMutex
}

// NewEventStore creates a new EventStore.
func NewEventStore() *EventStore {
	return &EventStore{
		streams: map[string][]ef.Event{},
	}
}

// Save implements the Save method of the ef.EventStore interface.
func (s *EventStore) Save(ctx context.Context, streamKey string, events []ef.Event, originalVersion int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if len(events) == 0 {
		return &ef.EventStoreError{
			Err:       ef.ErrMissingEvents,
			Op:        ef.EventStoreOpSave,
			StreamKey: streamKey,
		}
	}

	id := events[0].AggregateID()
	at := events[0].AggregateType()

	for i, event := range events {
		// Only accept events belonging to the same aggregate.
		if event.AggregateID() != id {
			return &ef.EventStoreError{
				Err:              ef.ErrMismatchedEventAggregateIDs,
				Op:               ef.EventStoreOpSave,
				StreamKey:        streamKey,
				AggregateVersion: originalVersion,
			}
		}

		if event.AggregateType() != at {
			return &ef.EventStoreError{
				Err:              ef.ErrMismatchedEventAggregateTypes,
				Op:               ef.EventStoreOpSave,
				StreamKey:        streamKey,
				AggregateVersion: originalVersion,
			}
		}

		// Only accept events that apply to the correct aggregate version.
		if event.Version() != originalVersion+i+1 {
			return &ef.EventStoreError{
				Err:              ef.ErrIncorrectEventVersion,
				Op:               ef.EventStoreOpSave,
				StreamKey:        streamKey,
				AggregateVersion: originalVersion,
			}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stream := s.streams[streamKey]
	if len(stream)-1 != originalVersion {
		return &ef.EventStoreError{
			Err:              ef.ErrVersionConflict,
			Op:               ef.EventStoreOpSave,
			StreamKey:        streamKey,
			AggregateVersion: originalVersion,
		}
	}

	s.streams[streamKey] = append(stream, events...)

	return nil
}

// Load implements the Load method of the ef.EventStore interface.
func (s *EventStore) Load(ctx context.Context, streamKey string, fromVersion int) ([]ef.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	stream, ok := s.streams[streamKey]
	if !ok {
		// A missing stream is a new aggregate, not an error.
		return nil, nil
	}

	var events []ef.Event

	for _, event := range stream {
		if event.Version() >= fromVersion {
			events = append(events, event)
		}
	}

	return events, nil
}
