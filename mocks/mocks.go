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

// Package mocks provides mocked implementations of the core interfaces,
// useful in testing.
package mocks

import (
	"context"
	"sync"

	ef "github.com/eventfold/eventfold"
	"github.com/eventfold/eventfold/aggregatestore/events"
	"github.com/eventfold/eventfold/uuid"
)

func init() {
	ef.RegisterAggregate(func(id uuid.UUID) ef.Aggregate {
		return NewAggregate(id)
	})

	ef.RegisterEventData(EventType, func() ef.EventData { return &EventData{} })
}

const (
	// AggregateType is the type for Aggregate.
	AggregateType ef.AggregateType = "MockAggregate"

	// EventType is the type for Event.
	EventType ef.EventType = "MockEvent"
	// EventOtherType is the type for EventOther.
	EventOtherType ef.EventType = "MockEventOther"
)

// Aggregate is a mocked events.Aggregate, useful in testing. It records every
// event passed to When and keeps the content of the last one.
type Aggregate struct {
	*events.AggregateBase

	Content string     `json:"content"`
	Applied []ef.Event `json:"-"`

	// Used to simulate errors in When.
	Err error `json:"-"`
}

// NewAggregate returns a new Aggregate.
func NewAggregate(id uuid.UUID) *Aggregate {
	return &Aggregate{
		AggregateBase: events.NewAggregateBase(AggregateType, id),
	}
}

// When implements the When method of the events.Aggregate interface.
func (a *Aggregate) When(ctx context.Context, event ef.Event) error {
	if a.Err != nil {
		return a.Err
	}

	if data, ok := event.Data().(*EventData); ok {
		a.Content = data.Content
	}

	a.Applied = append(a.Applied, event)

	return nil
}

// EventData is a mocked event data, useful in testing.
type EventData struct {
	Content string `json:"content" bson:"content"`
}

// EventStore is a mocked ef.EventStore, useful in testing. It records the
// calls made to it and returns the injected error, if any.
type EventStore struct {
	Events    []ef.Event
	StreamKey string
	Err       error
}

// Save implements the Save method of the ef.EventStore interface.
func (s *EventStore) Save(ctx context.Context, streamKey string, events []ef.Event, originalVersion int) error {
	if s.Err != nil {
		return s.Err
	}

	s.StreamKey = streamKey
	s.Events = append(s.Events, events...)

	return nil
}

// Load implements the Load method of the ef.EventStore interface.
func (s *EventStore) Load(ctx context.Context, streamKey string, fromVersion int) ([]ef.Event, error) {
	if s.Err != nil {
		return nil, s.Err
	}

	s.StreamKey = streamKey

	var events []ef.Event

	for _, event := range s.Events {
		if event.Version() >= fromVersion {
			events = append(events, event)
		}
	}

	return events, nil
}

// SnapshotStore is a mocked ef.SnapshotStore, useful in testing. It holds at
// most one snapshot and returns the injected error, if any.
type SnapshotStore struct {
	Snapshot *ef.Snapshot
	Err      error
}

// Save implements the Save method of the ef.SnapshotStore interface.
func (s *SnapshotStore) Save(ctx context.Context, snapshot *ef.Snapshot) error {
	if s.Err != nil {
		return s.Err
	}

	s.Snapshot = snapshot

	return nil
}

// Load implements the Load method of the ef.SnapshotStore interface.
func (s *SnapshotStore) Load(ctx context.Context, streamKey string) (*ef.Snapshot, error) {
	if s.Err != nil {
		return nil, s.Err
	}

	if s.Snapshot == nil || s.Snapshot.StreamKey != streamKey {
		return nil, nil
	}

	return s.Snapshot, nil
}

// CheckpointStore is a mocked ef.CheckpointStore, useful in testing.
type CheckpointStore struct {
	Checkpoints map[string]*ef.Checkpoint
	Err         error
}

// Save implements the Save method of the ef.CheckpointStore interface.
func (s *CheckpointStore) Save(ctx context.Context, checkpoint *ef.Checkpoint) error {
	if s.Err != nil {
		return s.Err
	}

	if s.Checkpoints == nil {
		s.Checkpoints = map[string]*ef.Checkpoint{}
	}

	c := *checkpoint
	s.Checkpoints[checkpoint.ID] = &c

	return nil
}

// Load implements the Load method of the ef.CheckpointStore interface.
func (s *CheckpointStore) Load(ctx context.Context, id string) (*ef.Checkpoint, error) {
	if s.Err != nil {
		return nil, s.Err
	}

	return s.Checkpoints[id], nil
}

// EventHandler is a mocked projector event handler, useful in testing. It is
// safe for concurrent use.
type EventHandler struct {
	Events []ef.Event
	Err    error

	mu sync.Mutex
}

// HandleEvent handles an event by recording it.
func (h *EventHandler) HandleEvent(ctx context.Context, event ef.Event) error {
	if h.Err != nil {
		return h.Err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.Events = append(h.Events, event)

	return nil
}

// Handled returns a copy of the handled events.
func (h *EventHandler) Handled() []ef.Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	events := make([]ef.Event, len(h.Events))
	copy(events, h.Events)

	return events
}
