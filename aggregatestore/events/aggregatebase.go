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
	"time"

	ef "github.com/eventfold/eventfold"
	"github.com/eventfold/eventfold/uuid"
)

// AggregateBase is an event sourced aggregate base to embed in a domain
// aggregate.
//
// A typical example:
//   type OrderAggregate struct {
//       *events.AggregateBase
//
//       Lines []OrderLine `json:"lines"`
//   }
//
// Using a new function to create aggregates and setting up the aggregate base
// is recommended:
//   func NewOrderAggregate(id uuid.UUID) *OrderAggregate {
//       return &OrderAggregate{
//           AggregateBase: events.NewAggregateBase(OrderAggregateType, id),
//       }
//   }
//
// The aggregate must also be registered, in this case:
//   func init() {
//       ef.RegisterAggregate(func(id uuid.UUID) ef.Aggregate {
//           return NewOrderAggregate(id)
//       })
//   }
//
// The aggregate mutates its state only in When, which must return an error
// for unrecognized events:
//   func (a *OrderAggregate) When(ctx context.Context, event ef.Event) error {
//       switch event.EventType() {
//       case OrderPlacedEvent:
//           // Apply the event data to the aggregate.
//       }
//   }
type AggregateBase struct {
	id uuid.UUID
	t  ef.AggregateType
	v  int

	schemaVersion int
	history       []ef.Event

	// Snapshot bookkeeping from the last load/save, used by the snapshot
	// cadence decision.
	snapshotVersion int
	snapshotAt      time.Time
}

// AggregateBaseOption is an option to use when creating an aggregate base.
type AggregateBaseOption func(*AggregateBase)

// WithSchemaVersion declares the schema version of the aggregate's snapshot
// payload. Bump it when the payload shape changes incompatibly; snapshots
// with another schema version are discarded on load. Defaults to 1.
func WithSchemaVersion(version int) AggregateBaseOption {
	return func(b *AggregateBase) {
		b.schemaVersion = version
	}
}

// NewAggregateBase creates an aggregate base with a version of -1, meaning no
// events have been applied.
func NewAggregateBase(t ef.AggregateType, id uuid.UUID, options ...AggregateBaseOption) *AggregateBase {
	b := &AggregateBase{
		id:              id,
		t:               t,
		v:               -1,
		schemaVersion:   1,
		snapshotVersion: -1,
	}

	for _, option := range options {
		option(b)
	}

	return b
}

// EntityID implements the EntityID method of the ef.Entity and ef.Aggregate
// interface.
func (b *AggregateBase) EntityID() uuid.UUID {
	return b.id
}

// AggregateType implements the AggregateType method of the ef.Aggregate
// interface.
func (b *AggregateBase) AggregateType() ef.AggregateType {
	return b.t
}

// AggregateVersion implements the AggregateVersion method of the Aggregate
// interface.
func (b *AggregateBase) AggregateVersion() int {
	return b.v
}

// SetAggregateVersion implements the SetAggregateVersion method of the
// Aggregate interface.
func (b *AggregateBase) SetAggregateVersion(version int) {
	b.v = version
}

// SchemaVersion implements the SchemaVersion method of the Aggregate
// interface.
func (b *AggregateBase) SchemaVersion() int {
	return b.schemaVersion
}

// History implements the History method of the Aggregate interface.
func (b *AggregateBase) History() []ef.Event {
	return b.history
}

// ClearHistory implements the ClearHistory method of the Aggregate interface.
func (b *AggregateBase) ClearHistory() {
	b.history = nil
}

// recordEvent appends an event to the history and increments the version,
// keeping the invariant that the version equals the count of applied events
// minus one.
func (b *AggregateBase) recordEvent(event ef.Event) {
	b.history = append(b.history, event)
	b.v++
}

func (b *AggregateBase) snapshotTaken() (int, time.Time) {
	return b.snapshotVersion, b.snapshotAt
}

func (b *AggregateBase) setSnapshotTaken(version int, at time.Time) {
	b.snapshotVersion = version
	b.snapshotAt = at
}
