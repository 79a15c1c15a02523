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
	"encoding/json"
	"errors"
	"fmt"

	ef "github.com/eventfold/eventfold"
	"github.com/eventfold/eventfold/uuid"
)

// ErrInvalidEventStore is when an aggregate store is created with a nil event
// store.
var ErrInvalidEventStore = errors.New("invalid event store")

// ErrInvalidAggregateType is when the aggregate does not implement
// events.Aggregate.
var ErrInvalidAggregateType = errors.New("invalid aggregate type")

// AggregateStore is an aggregate store using event sourcing. It reconstructs
// aggregates from a snapshot plus the tail of their event stream, and saves
// newly applied events with an optimistic concurrency check, conditionally
// refreshing the snapshot.
type AggregateStore struct {
	store     ef.EventStore
	snapshots ef.SnapshotStore
	resolver  ef.StreamNameResolver
	strategy  SnapshotStrategy
}

// Option is an option setter used to configure creation.
type Option func(*AggregateStore) error

// WithSnapshotStore enables snapshotting with a snapshot store. Without one,
// aggregates are always reconstructed from the full event stream.
func WithSnapshotStore(snapshots ef.SnapshotStore) Option {
	return func(s *AggregateStore) error {
		if snapshots == nil {
			return fmt.Errorf("missing snapshot store")
		}

		s.snapshots = snapshots

		return nil
	}
}

// WithSnapshotStrategy sets the strategy deciding when a snapshot is taken
// after a save. Defaults to never.
func WithSnapshotStrategy(strategy SnapshotStrategy) Option {
	return func(s *AggregateStore) error {
		if strategy == nil {
			return fmt.Errorf("missing snapshot strategy")
		}

		s.strategy = strategy

		return nil
	}
}

// WithStreamNameResolver sets the resolver mapping aggregate type names to
// stream names. Defaults to ef.DefaultResolver.
func WithStreamNameResolver(resolver ef.StreamNameResolver) Option {
	return func(s *AggregateStore) error {
		if resolver == nil {
			return fmt.Errorf("missing stream name resolver")
		}

		s.resolver = resolver

		return nil
	}
}

// NewAggregateStore creates an aggregate store with an event store.
func NewAggregateStore(store ef.EventStore, options ...Option) (*AggregateStore, error) {
	if store == nil {
		return nil, ErrInvalidEventStore
	}

	s := &AggregateStore{
		store:    store,
		resolver: ef.DefaultResolver{},
		strategy: &NoSnapshotStrategy{},
	}

	for _, option := range options {
		if err := option(s); err != nil {
			return nil, fmt.Errorf("error while applying option: %w", err)
		}
	}

	return s, nil
}

// Load implements the Load method of the ef.AggregateStore interface. It
// creates a new aggregate of the type with the ID, restores it from a
// snapshot when one with a matching schema version exists, and replays the
// remaining events on top, making it the most current version of the
// aggregate. An aggregate without a stream loads as a fresh, version -1
// aggregate.
func (s *AggregateStore) Load(ctx context.Context, aggregateType ef.AggregateType, id uuid.UUID) (ef.Aggregate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if id == uuid.Nil {
		return nil, &ef.AggregateStoreError{
			Err:           ef.ErrMissingAggregateID,
			Op:            ef.AggregateStoreOpLoad,
			AggregateType: aggregateType,
		}
	}

	agg, err := ef.CreateAggregate(aggregateType, id)
	if err != nil {
		return nil, &ef.AggregateStoreError{
			Err:           err,
			Op:            ef.AggregateStoreOpLoad,
			AggregateType: aggregateType,
			AggregateID:   id,
		}
	}

	a, ok := agg.(Aggregate)
	if !ok {
		return nil, &ef.AggregateStoreError{
			Err:           ErrInvalidAggregateType,
			Op:            ef.AggregateStoreOpLoad,
			AggregateType: aggregateType,
			AggregateID:   id,
		}
	}

	streamKey, err := s.streamKey(a)
	if err != nil {
		return nil, &ef.AggregateStoreError{
			Err:           err,
			Op:            ef.AggregateStoreOpLoad,
			AggregateType: aggregateType,
			AggregateID:   id,
		}
	}

	fromVersion := 0

	if s.snapshots != nil {
		snapshot, err := s.snapshots.Load(ctx, streamKey)
		if err != nil {
			return nil, err
		}

		// A snapshot with another schema version is discarded and the
		// stream replayed from the start; no migration is attempted.
		if snapshot != nil && snapshot.SchemaVersion == a.SchemaVersion() {
			if err := restoreSnapshot(a, snapshot); err != nil {
				return nil, &ef.AggregateStoreError{
					Err:           err,
					Op:            ef.AggregateStoreOpLoad,
					AggregateType: aggregateType,
					AggregateID:   id,
				}
			}

			a.SetAggregateVersion(snapshot.Version)
			a.setSnapshotTaken(snapshot.Version, snapshot.Timestamp)
			fromVersion = snapshot.Version + 1
		}
	}

	events, err := s.store.Load(ctx, streamKey, fromVersion)
	if err != nil {
		return nil, err
	}

	if len(events) > 0 {
		version := events[len(events)-1].Version()
		if err := Load(ctx, a, version, events); err != nil {
			return nil, err
		}
	}

	return a, nil
}

// Save implements the Save method of the ef.AggregateStore interface. It
// appends the aggregate's history to its event stream using the version from
// before the history as the optimistic concurrency check, and then takes a
// snapshot when the strategy says so. A concurrency conflict is surfaced as
// ef.ErrVersionConflict and never retried here; the caller is expected to
// reload and retry. The snapshot write is not transactional with the append:
// a crash in between leaves the snapshot stale but not corrupt, since the
// next load replays the missing tail events on top of it.
func (s *AggregateStore) Save(ctx context.Context, agg ef.Aggregate) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if agg == nil {
		return &ef.AggregateStoreError{
			Err: ef.ErrMissingAggregate,
			Op:  ef.AggregateStoreOpSave,
		}
	}

	a, ok := agg.(Aggregate)
	if !ok {
		return &ef.AggregateStoreError{
			Err:           ErrInvalidAggregateType,
			Op:            ef.AggregateStoreOpSave,
			AggregateType: agg.AggregateType(),
			AggregateID:   agg.EntityID(),
		}
	}

	history := a.History()
	if len(history) == 0 {
		return nil
	}

	streamKey, err := s.streamKey(a)
	if err != nil {
		return &ef.AggregateStoreError{
			Err:           err,
			Op:            ef.AggregateStoreOpSave,
			AggregateType: a.AggregateType(),
			AggregateID:   a.EntityID(),
		}
	}

	originalVersion := a.AggregateVersion() - len(history)
	if err := s.store.Save(ctx, streamKey, history, originalVersion); err != nil {
		return err
	}

	a.ClearHistory()

	if s.snapshots == nil {
		return nil
	}

	lastSnapshotVersion, lastSnapshotAt := a.snapshotTaken()
	if !s.strategy.ShouldTakeSnapshot(lastSnapshotVersion, lastSnapshotAt, history[len(history)-1]) {
		return nil
	}

	return s.takeSnapshot(ctx, a, streamKey)
}

func (s *AggregateStore) streamKey(a Aggregate) (string, error) {
	name, err := s.resolver.AggregateName(a.AggregateType().String())
	if err != nil {
		return "", err
	}

	return ef.StreamKey(name, a.EntityID()), nil
}

func (s *AggregateStore) takeSnapshot(ctx context.Context, a Aggregate, streamKey string) error {
	rawState, err := snapshotData(a)
	if err != nil {
		return &ef.AggregateStoreError{
			Err:           fmt.Errorf("could not serialize snapshot state: %w", err),
			Op:            ef.AggregateStoreOpSave,
			AggregateType: a.AggregateType(),
			AggregateID:   a.EntityID(),
		}
	}

	snapshot := &ef.Snapshot{
		StreamKey:     streamKey,
		AggregateType: a.AggregateType(),
		SchemaVersion: a.SchemaVersion(),
		Version:       a.AggregateVersion(),
		RawState:      rawState,
	}

	if t, ok := s.strategy.(interface{ Threshold() int }); ok {
		snapshot.TakeAfterEvents = t.Threshold()
	}

	if err := s.snapshots.Save(ctx, snapshot); err != nil {
		return err
	}

	a.setSnapshotTaken(snapshot.Version, snapshot.Timestamp)

	return nil
}

func snapshotData(a Aggregate) ([]byte, error) {
	if s, ok := a.(Snapshottable); ok {
		return s.SnapshotData()
	}

	return json.Marshal(a)
}

func restoreSnapshot(a Aggregate, snapshot *ef.Snapshot) error {
	// A nil state is valid for aggregates without snapshot-worthy state.
	if snapshot.RawState == nil {
		return nil
	}

	if s, ok := a.(Snapshottable); ok {
		return s.RestoreSnapshot(snapshot.RawState)
	}

	return json.Unmarshal(snapshot.RawState, a)
}
