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

package tracing

import (
	"context"

	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"

	ef "github.com/eventfold/eventfold"
)

// EventStore is an ef.EventStore that adds tracing with Open Tracing.
type EventStore struct {
	ef.EventStore
}

// NewEventStore creates a new EventStore wrapping another event store.
func NewEventStore(eventStore ef.EventStore) *EventStore {
	if eventStore == nil {
		return nil
	}

	return &EventStore{
		EventStore: eventStore,
	}
}

// Save implements the Save method of the ef.EventStore interface.
func (s *EventStore) Save(ctx context.Context, streamKey string, events []ef.Event, originalVersion int) error {
	sp, ctx := opentracing.StartSpanFromContext(ctx, "EventStore.Save")

	err := s.EventStore.Save(ctx, streamKey, events, originalVersion)

	sp.SetTag("ef.stream_key", streamKey)
	sp.SetTag("ef.original_version", originalVersion)

	// Use the first event for tracing metadata.
	if len(events) > 0 {
		sp.SetTag("ef.event_type", events[0].EventType())
		sp.SetTag("ef.aggregate_type", events[0].AggregateType())
		sp.SetTag("ef.aggregate_id", events[0].AggregateID())
		sp.SetTag("ef.version", events[0].Version())
	}

	if err != nil {
		ext.LogError(sp, err)
	}

	sp.Finish()

	return err
}

// Load implements the Load method of the ef.EventStore interface.
func (s *EventStore) Load(ctx context.Context, streamKey string, fromVersion int) ([]ef.Event, error) {
	sp, ctx := opentracing.StartSpanFromContext(ctx, "EventStore.Load")

	events, err := s.EventStore.Load(ctx, streamKey, fromVersion)

	sp.SetTag("ef.stream_key", streamKey)
	sp.SetTag("ef.from_version", fromVersion)

	// Use the first event for tracing metadata.
	if len(events) > 0 {
		sp.SetTag("ef.event_type", events[0].EventType())
		sp.SetTag("ef.aggregate_type", events[0].AggregateType())
		sp.SetTag("ef.aggregate_id", events[0].AggregateID())
		sp.SetTag("ef.version", events[0].Version())
	}

	if err != nil {
		ext.LogError(sp, err)
	}

	sp.Finish()

	return events, err
}
