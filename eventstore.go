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

package eventfold

import (
	"context"
	"errors"
	"fmt"
)

// EventStore is an interface for an event sourcing event store, addressing
// streams by their stream key.
type EventStore interface {
	// Save appends all events to the stream. The originalVersion is the
	// version of the stream before the new events (-1 for a new stream) and
	// is used as an optimistic concurrency check: the append must fail with
	// ErrVersionConflict if another writer has advanced the stream past it.
	Save(ctx context.Context, streamKey string, events []Event, originalVersion int) error

	// Load loads all events with a version at or after fromVersion, in
	// version order. A stream that does not exist loads as an empty result,
	// not an error; a new aggregate is indistinguishable from one that has
	// never been saved.
	Load(ctx context.Context, streamKey string, fromVersion int) ([]Event, error)
}

// ErrVersionConflict is when the optimistic concurrency check fails because
// another save advanced the stream past the expected version.
var ErrVersionConflict = errors.New("version conflict from other save")

// ErrMissingEvents is when no events are available to append.
var ErrMissingEvents = errors.New("missing events")

// ErrMismatchedEventAggregateIDs is when a batch of events contains events
// for different aggregate IDs.
var ErrMismatchedEventAggregateIDs = errors.New("mismatched event aggregate IDs")

// ErrMismatchedEventAggregateTypes is when a batch of events contains events
// for different aggregate types.
var ErrMismatchedEventAggregateTypes = errors.New("mismatched event aggregate types")

// ErrIncorrectEventVersion is when an event is not the next in the version
// sequence starting at the original version.
var ErrIncorrectEventVersion = errors.New("mismatched event version")

// EventStoreOperation is the operation done when an error happened.
type EventStoreOperation string

const (
	// EventStoreOpLoad is when an error happened in the Load operation.
	EventStoreOpLoad = EventStoreOperation("load")
	// EventStoreOpSave is when an error happened in the Save operation.
	EventStoreOpSave = EventStoreOperation("save")
)

// EventStoreError is an error in the event store.
type EventStoreError struct {
	// Err is the error.
	Err error
	// Op is the operation for the error.
	Op EventStoreOperation
	// StreamKey of the stream related to the error.
	StreamKey string
	// AggregateVersion of the aggregate related to the error.
	AggregateVersion int
}

// Error implements the Error method of the errors.Error interface.
func (e *EventStoreError) Error() string {
	str := "event store: "

	if e.Op != "" {
		str += string(e.Op) + ": "
	}

	if e.Err != nil {
		str += e.Err.Error()
	} else {
		str += "unknown error"
	}

	if e.StreamKey != "" {
		str += fmt.Sprintf(" [%s@%d]", e.StreamKey, e.AggregateVersion)
	}

	return str
}

// Unwrap implements the errors.Unwrap method.
func (e *EventStoreError) Unwrap() error {
	return e.Err
}

// Cause implements the github.com/pkg/errors Unwrap method.
func (e *EventStoreError) Cause() error {
	return e.Unwrap()
}
