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
	"time"
)

// Snapshot is a compacted serialization of an aggregate's state at a given
// event position, used to bound replay cost. At most one snapshot exists per
// stream key; saving overwrites the prior one.
type Snapshot struct {
	// StreamKey is the key of the aggregate the snapshot belongs to.
	StreamKey string
	// AggregateType of the snapshotted aggregate.
	AggregateType AggregateType
	// SchemaVersion is the aggregate's declared schema version at the time
	// the snapshot was taken. A snapshot with a schema version other than the
	// aggregate's current one is discarded on load and the stream is
	// replayed from the start.
	SchemaVersion int
	// Version is the aggregate version the snapshot was taken at; replay
	// resumes at Version+1.
	Version int
	// RawState is the serialized aggregate state. It is nil when the
	// aggregate legitimately has no snapshot-worthy state.
	RawState []byte
	// Timestamp of when the snapshot was taken. Stores stamp this with the
	// current time on save when left unset.
	Timestamp time.Time
	// TakeAfterEvents is the event-count threshold after which the next
	// snapshot should be taken. Zero when the cadence is not event based.
	TakeAfterEvents int
}

// ErrMissingStreamKey is when a snapshot operation is attempted without a
// stream key.
var ErrMissingStreamKey = errors.New("missing stream key")

// ErrAmbiguousSnapshot is when more than one snapshot record matches a stream
// key. The store invariant is at most one record per key, so this is an
// unrecoverable storage-layer violation.
var ErrAmbiguousSnapshot = errors.New("multiple snapshots for stream key")

// SnapshotStore is a durable store for one snapshot per stream key with
// upsert semantics.
type SnapshotStore interface {
	// Save inserts the snapshot, or updates the existing record for its
	// stream key in place. Saving twice with identical arguments leaves
	// exactly one record with the latest values.
	Save(ctx context.Context, snapshot *Snapshot) error

	// Load returns the snapshot for the stream key, or nil if none exists.
	// The absence of a snapshot is a normal, non-error outcome. More than
	// one matching record fails with ErrAmbiguousSnapshot.
	Load(ctx context.Context, streamKey string) (*Snapshot, error)
}
