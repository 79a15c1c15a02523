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

package eventstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	ef "github.com/eventfold/eventfold"
	"github.com/eventfold/eventfold/mocks"
	"github.com/eventfold/eventfold/uuid"
)

// AcceptanceTest is the acceptance test that all implementations of
// EventStore should pass. It should manually be called from a test case in
// each implementation:
//
//	func TestEventStore(t *testing.T) {
//	    store := NewEventStore()
//	    eventstore.AcceptanceTest(t, store, context.Background())
//	}
func AcceptanceTest(t *testing.T, store ef.EventStore, ctx context.Context) []ef.Event {
	savedEvents := []ef.Event{}

	id := uuid.New()
	streamKey := ef.StreamKey("Mock", id)
	timestamp := time.Date(2009, time.November, 10, 23, 0, 0, 0, time.UTC)

	// Save no events.
	eventStoreErr := &ef.EventStoreError{}

	err := store.Save(ctx, streamKey, []ef.Event{}, -1)
	if !errors.As(err, &eventStoreErr) || !errors.Is(err, ef.ErrMissingEvents) {
		t.Error("there should be a event store error:", err)
	}

	// Save event, version 0, to a new stream.
	event1 := ef.NewEvent(mocks.EventType, &mocks.EventData{Content: "event1"}, timestamp,
		ef.ForAggregate(mocks.AggregateType, id, 0))

	err = store.Save(ctx, streamKey, []ef.Event{event1}, -1)
	if err != nil {
		t.Error("there should be no error:", err)
	}

	savedEvents = append(savedEvents, event1)

	// Try to save same event twice.
	err = store.Save(ctx, streamKey, []ef.Event{event1}, 0)
	if !errors.As(err, &eventStoreErr) || !errors.Is(err, ef.ErrIncorrectEventVersion) {
		t.Error("there should be a event store error:", err)
	}

	// Save event, version 1, with metadata.
	event2 := ef.NewEvent(mocks.EventType, &mocks.EventData{Content: "event2"}, timestamp,
		ef.ForAggregate(mocks.AggregateType, id, 1),
		ef.WithMetadata(map[string]interface{}{"meta": "data", "num": 42.0}),
	)

	err = store.Save(ctx, streamKey, []ef.Event{event2}, 0)
	if err != nil {
		t.Error("there should be no error:", err)
	}

	savedEvents = append(savedEvents, event2)

	// Save event without data, version 2.
	event3 := ef.NewEvent(mocks.EventOtherType, nil, timestamp,
		ef.ForAggregate(mocks.AggregateType, id, 2))

	err = store.Save(ctx, streamKey, []ef.Event{event3}, 1)
	if err != nil {
		t.Error("there should be no error:", err)
	}

	savedEvents = append(savedEvents, event3)

	// Save multiple events, version 3, 4 and 5.
	event4 := ef.NewEvent(mocks.EventOtherType, nil, timestamp,
		ef.ForAggregate(mocks.AggregateType, id, 3))
	event5 := ef.NewEvent(mocks.EventOtherType, nil, timestamp,
		ef.ForAggregate(mocks.AggregateType, id, 4))
	event6 := ef.NewEvent(mocks.EventOtherType, nil, timestamp,
		ef.ForAggregate(mocks.AggregateType, id, 5))

	err = store.Save(ctx, streamKey, []ef.Event{event4, event5, event6}, 2)
	if err != nil {
		t.Error("there should be no error:", err)
	}

	savedEvents = append(savedEvents, event4, event5, event6)

	// Save events for different aggregate IDs in one batch.
	eventSameAggID := ef.NewEvent(mocks.EventOtherType, nil, timestamp,
		ef.ForAggregate(mocks.AggregateType, id, 6))
	eventOtherAggID := ef.NewEvent(mocks.EventOtherType, nil, timestamp,
		ef.ForAggregate(mocks.AggregateType, uuid.New(), 7))

	err = store.Save(ctx, streamKey, []ef.Event{eventSameAggID, eventOtherAggID}, 5)
	if !errors.As(err, &eventStoreErr) || !errors.Is(err, ef.ErrMismatchedEventAggregateIDs) {
		t.Error("there should be a event store error:", err)
	}

	// Save events of different aggregate types in one batch.
	eventSameAggType := ef.NewEvent(mocks.EventOtherType, nil, timestamp,
		ef.ForAggregate(mocks.AggregateType, id, 6))
	eventOtherAggType := ef.NewEvent(mocks.EventOtherType, nil, timestamp,
		ef.ForAggregate(ef.AggregateType("OtherAggregate"), id, 7))

	err = store.Save(ctx, streamKey, []ef.Event{eventSameAggType, eventOtherAggType}, 5)
	if !errors.As(err, &eventStoreErr) || !errors.Is(err, ef.ErrMismatchedEventAggregateTypes) {
		t.Error("there should be a event store error:", err)
	}

	// Save with a stale original version.
	staleEvent := ef.NewEvent(mocks.EventType, &mocks.EventData{Content: "stale"}, timestamp,
		ef.ForAggregate(mocks.AggregateType, id, 3))

	err = store.Save(ctx, streamKey, []ef.Event{staleEvent}, 2)
	if !errors.As(err, &eventStoreErr) || !errors.Is(err, ef.ErrVersionConflict) {
		t.Error("there should be a version conflict error:", err)
	}

	// Save event to another stream.
	id2 := uuid.New()
	streamKey2 := ef.StreamKey("Mock", id2)
	event7 := ef.NewEvent(mocks.EventType, &mocks.EventData{Content: "event7"}, timestamp,
		ef.ForAggregate(mocks.AggregateType, id2, 0))

	err = store.Save(ctx, streamKey2, []ef.Event{event7}, -1)
	if err != nil {
		t.Error("there should be no error:", err)
	}

	savedEvents = append(savedEvents, event7)

	// Load events from a non-existing stream; a new aggregate, not an error.
	events, err := store.Load(ctx, ef.StreamKey("Mock", uuid.New()), 0)
	if err != nil {
		t.Error("there should be no error:", err)
	}

	if len(events) != 0 {
		t.Error("there should be no loaded events:", eventsToString(events))
	}

	// Load the full stream.
	events, err = store.Load(ctx, streamKey, 0)
	if err != nil {
		t.Error("there should be no error:", err)
	}

	expectedEvents := []ef.Event{
		event1,                 // Version 0
		event2,                 // Version 1 with metadata
		event3,                 // Version 2 with no data
		event4, event5, event6, // Version 3, 4 and 5 as a batch
	}

	if len(events) != len(expectedEvents) {
		t.Errorf("incorrect number of loaded events: %d", len(events))
	}

	for i, event := range events {
		if err := compareEvents(event, expectedEvents[i]); err != nil {
			t.Error("the event was incorrect:", err)
		}

		if event.Version() != i {
			t.Error("the event version should be correct:", event, event.Version())
		}
	}

	// Load the tail of the stream.
	events, err = store.Load(ctx, streamKey, 4)
	if err != nil {
		t.Error("there should be no error:", err)
	}

	if len(events) != 2 {
		t.Errorf("incorrect number of loaded events: %d", len(events))
	}

	for i, event := range events {
		if event.Version() != 4+i {
			t.Error("the event version should be correct:", event, event.Version())
		}
	}

	return savedEvents
}

// compareEvents compares two events for equality of the fields an event store
// must round-trip.
func compareEvents(event, expected ef.Event) error {
	if event.EventType() != expected.EventType() {
		return fmt.Errorf("incorrect event type: %s", event.EventType())
	}

	if event.AggregateType() != expected.AggregateType() {
		return fmt.Errorf("incorrect aggregate type: %s", event.AggregateType())
	}

	if event.AggregateID() != expected.AggregateID() {
		return fmt.Errorf("incorrect aggregate ID: %s", event.AggregateID())
	}

	if event.Version() != expected.Version() {
		return fmt.Errorf("incorrect version: %d", event.Version())
	}

	if !event.Timestamp().Equal(expected.Timestamp()) {
		return fmt.Errorf("incorrect timestamp: %s", event.Timestamp())
	}

	if expected.Data() != nil {
		data, ok := event.Data().(*mocks.EventData)
		if !ok {
			return fmt.Errorf("incorrect event data type: %T", event.Data())
		}

		expectedData := expected.Data().(*mocks.EventData)
		if data.Content != expectedData.Content {
			return fmt.Errorf("incorrect event data: %s", data.Content)
		}
	} else if event.Data() != nil {
		return fmt.Errorf("unexpected event data: %v", event.Data())
	}

	return nil
}

func eventsToString(events []ef.Event) string {
	parts := make([]string, len(events))
	for i, event := range events {
		parts[i] = event.String()
	}

	return strings.Join(parts, ", ")
}
