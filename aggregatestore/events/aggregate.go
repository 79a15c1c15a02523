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

package events

import (
	"context"
	"errors"
	"time"

	ef "github.com/eventfold/eventfold"
)

// ErrMissingHistory is when a replay is attempted with a nil history. An
// empty history is valid; a nil one is a programming error.
var ErrMissingHistory = errors.New("missing history to replay")

// ErrMismatchedEventType occurs when an event in a replayed history does not
// match the aggregate type.
var ErrMismatchedEventType = errors.New("mismatched event type and aggregate type")

// ApplyEventError is when an event could not be applied. It contains the
// error and the event that caused it.
type ApplyEventError struct {
	// Event is the event that caused the error.
	Event ef.Event
	// Err is the error that happened when applying the event.
	Err error
}

// Error implements the Error method of the errors.Error interface.
func (a *ApplyEventError) Error() string {
	return "failed to apply event " + a.Event.String() + ": " + a.Err.Error()
}

// Unwrap implements the errors.Unwrap method.
func (a *ApplyEventError) Unwrap() error {
	return a.Err
}

// Aggregate is an interface representing a versioned data entity created from
// events. A domain specific aggregate embeds *AggregateBase for the
// bookkeeping methods and implements When for its state transitions; the
// unexported methods make the base the only way to satisfy the interface, so
// no external code can mutate the bookkeeping directly.
type Aggregate interface {
	// Provides the ID and type of the aggregate.
	ef.Aggregate

	// AggregateVersion returns the version of the aggregate: the count of
	// events applied to it minus one, or -1 before any events.
	AggregateVersion() int
	// SetAggregateVersion sets the version of the aggregate directly. It is
	// used by replay, which restores state without growing the history.
	SetAggregateVersion(version int)

	// SchemaVersion returns the declared schema version of the aggregate's
	// snapshot payload, used to detect incompatible payload shapes across
	// code changes.
	SchemaVersion() int

	// History returns the events applied in the aggregate's in-memory
	// lifetime that are not yet saved.
	History() []ef.Event
	// ClearHistory clears the history after saving.
	ClearHistory()

	// When applies an event to the aggregate by setting its state. It must
	// return an error for event types it does not recognize; silently
	// ignoring one would corrupt reconstructed state.
	When(ctx context.Context, event ef.Event) error

	// Bookkeeping hooks provided by AggregateBase.
	recordEvent(event ef.Event)
	snapshotTaken() (version int, at time.Time)
	setSnapshotTaken(version int, at time.Time)
}

// Apply creates an event for the aggregate's next version, applies it with
// When and records it in the history. It must be used for every new, not yet
// persisted event generated by domain logic.
func Apply(ctx context.Context, a Aggregate, eventType ef.EventType, data ef.EventData, timestamp time.Time, options ...ef.EventOption) (ef.Event, error) {
	options = append(options, ef.ForAggregate(
		a.AggregateType(),
		a.EntityID(),
		a.AggregateVersion()+1,
	))

	e := ef.NewEvent(eventType, data, timestamp, options...)
	if err := a.When(ctx, e); err != nil {
		return nil, &ApplyEventError{
			Event: e,
			Err:   err,
		}
	}

	a.recordEvent(e)

	return e, nil
}

// Load replays a history of already persisted events through When, without
// recording them in the aggregate's history, and then sets the version to the
// supplied value directly. It is used by the aggregate store when
// reconstructing state from a snapshot plus subsequent events, or from the
// full stream.
func Load(ctx context.Context, a Aggregate, version int, history []ef.Event) error {
	if history == nil {
		return ErrMissingHistory
	}

	for _, event := range history {
		if event.AggregateType() != a.AggregateType() {
			return ErrMismatchedEventType
		}

		if err := a.When(ctx, event); err != nil {
			return &ApplyEventError{
				Event: event,
				Err:   err,
			}
		}
	}

	a.SetAggregateVersion(version)

	return nil
}

// Snapshottable is an optional interface for aggregates that serialize their
// own snapshot state. Aggregates that do not implement it have their exported
// state marshaled as JSON.
type Snapshottable interface {
	// SnapshotData returns the serialized snapshot state. A nil result is
	// valid for aggregates without snapshot-worthy state.
	SnapshotData() ([]byte, error)
	// RestoreSnapshot restores the aggregate state from serialized data.
	RestoreSnapshot(data []byte) error
}
