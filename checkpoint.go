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

// Checkpoint is the last acknowledged position within an event stream for a
// named consumer, used to resume projections after a restart.
type Checkpoint struct {
	// ID names the consumer/subscription the checkpoint belongs to.
	ID string
	// Position is the last processed position in the stream.
	Position uint64
	// UpdatedAt is when the checkpoint was last saved. Stores stamp this
	// with the current time on save when left unset.
	UpdatedAt time.Time
}

// ErrMissingCheckpointID is when a checkpoint operation is attempted without
// a checkpoint ID.
var ErrMissingCheckpointID = errors.New("missing checkpoint ID")

// CheckpointStore is a durable store for one position per checkpoint ID with
// upsert semantics.
type CheckpointStore interface {
	// Save inserts the checkpoint, or updates the existing record for its ID
	// in place.
	Save(ctx context.Context, checkpoint *Checkpoint) error

	// Load returns the checkpoint for the ID, or nil if none exists. A
	// consumer without a checkpoint starts from the beginning of its stream.
	Load(ctx context.Context, id string) (*Checkpoint, error)
}
