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

package events_test

import (
	"context"
	"errors"
	"testing"
	"time"

	ef "github.com/eventfold/eventfold"
	"github.com/eventfold/eventfold/aggregatestore/events"
	eventstorememory "github.com/eventfold/eventfold/eventstore/memory"
	"github.com/eventfold/eventfold/mocks"
	snapshotstorememory "github.com/eventfold/eventfold/snapshotstore/memory"
	"github.com/eventfold/eventfold/uuid"
)

func TestNewAggregateStore(t *testing.T) {
	_, err := events.NewAggregateStore(nil)
	if !errors.Is(err, events.ErrInvalidEventStore) {
		t.Error("there should be an invalid event store error:", err)
	}

	store, err := events.NewAggregateStore(eventstorememory.NewEventStore())
	if err != nil {
		t.Error("there should be no error:", err)
	}

	if store == nil {
		t.Error("there should be a store")
	}
}

func TestAggregateStoreLoadNotFound(t *testing.T) {
	store, err := events.NewAggregateStore(eventstorememory.NewEventStore())
	if err != nil {
		t.Fatal("there should be no error:", err)
	}

	ctx := context.Background()

	// An aggregate without a stream loads as a fresh aggregate.
	agg, err := store.Load(ctx, mocks.AggregateType, uuid.New())
	if err != nil {
		t.Error("there should be no error:", err)
	}

	a, ok := agg.(*mocks.Aggregate)
	if !ok {
		t.Fatalf("the aggregate should be of the correct type: %T", agg)
	}

	if a.AggregateVersion() != -1 {
		t.Error("the aggregate version should be -1:", a.AggregateVersion())
	}
}

func TestAggregateStoreLoadMissingID(t *testing.T) {
	store, err := events.NewAggregateStore(eventstorememory.NewEventStore())
	if err != nil {
		t.Fatal("there should be no error:", err)
	}

	_, err = store.Load(context.Background(), mocks.AggregateType, uuid.Nil)

	storeErr := &ef.AggregateStoreError{}
	if !errors.As(err, &storeErr) || !errors.Is(err, ef.ErrMissingAggregateID) {
		t.Error("there should be a missing aggregate ID error:", err)
	}
}

func TestAggregateStoreSaveMissingAggregate(t *testing.T) {
	store, err := events.NewAggregateStore(eventstorememory.NewEventStore())
	if err != nil {
		t.Fatal("there should be no error:", err)
	}

	err = store.Save(context.Background(), nil)

	storeErr := &ef.AggregateStoreError{}
	if !errors.As(err, &storeErr) || !errors.Is(err, ef.ErrMissingAggregate) {
		t.Error("there should be a missing aggregate error:", err)
	}
}

func TestAggregateStoreRoundtrip(t *testing.T) {
	store, err := events.NewAggregateStore(eventstorememory.NewEventStore())
	if err != nil {
		t.Fatal("there should be no error:", err)
	}

	ctx := context.Background()
	id := uuid.New()
	timestamp := time.Date(2009, time.November, 10, 23, 0, 0, 0, time.UTC)

	agg := mocks.NewAggregate(id)

	if _, err := events.Apply(ctx, agg, mocks.EventType,
		&mocks.EventData{Content: "event1"}, timestamp); err != nil {
		t.Fatal("there should be no error:", err)
	}

	if _, err := events.Apply(ctx, agg, mocks.EventType,
		&mocks.EventData{Content: "event2"}, timestamp); err != nil {
		t.Fatal("there should be no error:", err)
	}

	if err := store.Save(ctx, agg); err != nil {
		t.Error("there should be no error:", err)
	}

	// Saving clears the history but keeps the version.
	if len(agg.History()) != 0 {
		t.Error("the history should be cleared:", agg.History())
	}

	if agg.AggregateVersion() != 1 {
		t.Error("the aggregate version should be correct:", agg.AggregateVersion())
	}

	// Saving again with no new events is a no-op.
	if err := store.Save(ctx, agg); err != nil {
		t.Error("there should be no error:", err)
	}

	// Load it back.
	loadedAgg, err := store.Load(ctx, mocks.AggregateType, id)
	if err != nil {
		t.Fatal("there should be no error:", err)
	}

	loaded, ok := loadedAgg.(*mocks.Aggregate)
	if !ok {
		t.Fatalf("the aggregate should be of the correct type: %T", loadedAgg)
	}

	if loaded.AggregateVersion() != 1 {
		t.Error("the aggregate version should be correct:", loaded.AggregateVersion())
	}

	if loaded.Content != "event2" {
		t.Error("the state should be reconstructed:", loaded.Content)
	}

	if len(loaded.History()) != 0 {
		t.Error("a loaded aggregate should have no history:", loaded.History())
	}
}

func TestAggregateStoreVersionConflict(t *testing.T) {
	store, err := events.NewAggregateStore(eventstorememory.NewEventStore())
	if err != nil {
		t.Fatal("there should be no error:", err)
	}

	ctx := context.Background()
	id := uuid.New()
	timestamp := time.Date(2009, time.November, 10, 23, 0, 0, 0, time.UTC)

	agg := mocks.NewAggregate(id)
	if _, err := events.Apply(ctx, agg, mocks.EventType,
		&mocks.EventData{Content: "event1"}, timestamp); err != nil {
		t.Fatal("there should be no error:", err)
	}

	if err := store.Save(ctx, agg); err != nil {
		t.Fatal("there should be no error:", err)
	}

	// Two copies loaded at the same version.
	first, err := store.Load(ctx, mocks.AggregateType, id)
	if err != nil {
		t.Fatal("there should be no error:", err)
	}

	second, err := store.Load(ctx, mocks.AggregateType, id)
	if err != nil {
		t.Fatal("there should be no error:", err)
	}

	if _, err := events.Apply(ctx, first.(*mocks.Aggregate), mocks.EventType,
		&mocks.EventData{Content: "first"}, timestamp); err != nil {
		t.Fatal("there should be no error:", err)
	}

	if _, err := events.Apply(ctx, second.(*mocks.Aggregate), mocks.EventType,
		&mocks.EventData{Content: "second"}, timestamp); err != nil {
		t.Fatal("there should be no error:", err)
	}

	if err := store.Save(ctx, first); err != nil {
		t.Error("there should be no error:", err)
	}

	// The second save lost the race and must surface the conflict untouched.
	err = store.Save(ctx, second)
	if !errors.Is(err, ef.ErrVersionConflict) {
		t.Error("there should be a version conflict error:", err)
	}
}

func TestAggregateStoreSnapshotCadence(t *testing.T) {
	snapshots := snapshotstorememory.NewSnapshotStore()

	store, err := events.NewAggregateStore(eventstorememory.NewEventStore(),
		events.WithSnapshotStore(snapshots),
		events.WithSnapshotStrategy(events.NewEveryNumberEventSnapshotStrategy(3)),
	)
	if err != nil {
		t.Fatal("there should be no error:", err)
	}

	ctx := context.Background()
	id := uuid.New()
	streamKey := ef.StreamKey("Mock", id)
	timestamp := time.Date(2009, time.November, 10, 23, 0, 0, 0, time.UTC)

	agg := mocks.NewAggregate(id)

	// Two events below the threshold; no snapshot yet.
	for _, content := range []string{"event1", "event2"} {
		if _, err := events.Apply(ctx, agg, mocks.EventType,
			&mocks.EventData{Content: content}, timestamp); err != nil {
			t.Fatal("there should be no error:", err)
		}
	}

	if err := store.Save(ctx, agg); err != nil {
		t.Fatal("there should be no error:", err)
	}

	snapshot, err := snapshots.Load(ctx, streamKey)
	if err != nil {
		t.Error("there should be no error:", err)
	}

	if snapshot != nil {
		t.Error("there should be no snapshot below the threshold:", snapshot)
	}

	// The third event crosses the threshold.
	if _, err := events.Apply(ctx, agg, mocks.EventType,
		&mocks.EventData{Content: "event3"}, timestamp); err != nil {
		t.Fatal("there should be no error:", err)
	}

	if err := store.Save(ctx, agg); err != nil {
		t.Fatal("there should be no error:", err)
	}

	snapshot, err = snapshots.Load(ctx, streamKey)
	if err != nil {
		t.Error("there should be no error:", err)
	}

	if snapshot == nil {
		t.Fatal("there should be a snapshot at the threshold")
	}

	if snapshot.Version != 2 {
		t.Error("the snapshot version should be correct:", snapshot.Version)
	}

	if snapshot.SchemaVersion != 1 {
		t.Error("the snapshot schema version should be correct:", snapshot.SchemaVersion)
	}

	if snapshot.AggregateType != mocks.AggregateType {
		t.Error("the snapshot aggregate type should be correct:", snapshot.AggregateType)
	}

	if snapshot.TakeAfterEvents != 3 {
		t.Error("the snapshot cadence should be recorded:", snapshot.TakeAfterEvents)
	}

	if snapshot.Timestamp.IsZero() {
		t.Error("the snapshot timestamp should be set")
	}

	// A load restores from the snapshot plus the (empty) tail.
	loadedAgg, err := store.Load(ctx, mocks.AggregateType, id)
	if err != nil {
		t.Fatal("there should be no error:", err)
	}

	loaded := loadedAgg.(*mocks.Aggregate)

	if loaded.AggregateVersion() != 2 {
		t.Error("the aggregate version should be correct:", loaded.AggregateVersion())
	}

	if loaded.Content != "event3" {
		t.Error("the state should be restored from the snapshot:", loaded.Content)
	}
}

func TestAggregateStoreSnapshotPlusTail(t *testing.T) {
	eventStore := eventstorememory.NewEventStore()
	snapshots := snapshotstorememory.NewSnapshotStore()

	store, err := events.NewAggregateStore(eventStore,
		events.WithSnapshotStore(snapshots),
		events.WithSnapshotStrategy(events.NewEveryNumberEventSnapshotStrategy(2)),
	)
	if err != nil {
		t.Fatal("there should be no error:", err)
	}

	ctx := context.Background()
	id := uuid.New()
	timestamp := time.Date(2009, time.November, 10, 23, 0, 0, 0, time.UTC)

	// Two events trigger a snapshot at version 1, then one more event is
	// appended after it.
	agg := mocks.NewAggregate(id)
	for _, content := range []string{"event1", "event2"} {
		if _, err := events.Apply(ctx, agg, mocks.EventType,
			&mocks.EventData{Content: content}, timestamp); err != nil {
			t.Fatal("there should be no error:", err)
		}
	}

	if err := store.Save(ctx, agg); err != nil {
		t.Fatal("there should be no error:", err)
	}

	if _, err := events.Apply(ctx, agg, mocks.EventType,
		&mocks.EventData{Content: "event3"}, timestamp); err != nil {
		t.Fatal("there should be no error:", err)
	}

	if err := store.Save(ctx, agg); err != nil {
		t.Fatal("there should be no error:", err)
	}

	loadedAgg, err := store.Load(ctx, mocks.AggregateType, id)
	if err != nil {
		t.Fatal("there should be no error:", err)
	}

	loaded := loadedAgg.(*mocks.Aggregate)

	if loaded.AggregateVersion() != 2 {
		t.Error("the aggregate version should be correct:", loaded.AggregateVersion())
	}

	if loaded.Content != "event3" {
		t.Error("the state should include the tail event:", loaded.Content)
	}

	// Only the tail after the snapshot should have been replayed.
	if len(loaded.Applied) != 1 {
		t.Error("only the tail should be replayed:", len(loaded.Applied))
	}
}

func TestAggregateStoreSnapshotSchemaMismatch(t *testing.T) {
	eventStore := eventstorememory.NewEventStore()
	snapshots := &mocks.SnapshotStore{}

	store, err := events.NewAggregateStore(eventStore,
		events.WithSnapshotStore(snapshots),
	)
	if err != nil {
		t.Fatal("there should be no error:", err)
	}

	ctx := context.Background()
	id := uuid.New()
	streamKey := ef.StreamKey("Mock", id)
	timestamp := time.Date(2009, time.November, 10, 23, 0, 0, 0, time.UTC)

	agg := mocks.NewAggregate(id)
	for _, content := range []string{"event1", "event2", "event3"} {
		if _, err := events.Apply(ctx, agg, mocks.EventType,
			&mocks.EventData{Content: content}, timestamp); err != nil {
			t.Fatal("there should be no error:", err)
		}
	}

	if err := store.Save(ctx, agg); err != nil {
		t.Fatal("there should be no error:", err)
	}

	// A snapshot from an older schema version of the aggregate.
	snapshots.Snapshot = &ef.Snapshot{
		StreamKey:     streamKey,
		AggregateType: mocks.AggregateType,
		SchemaVersion: 99,
		Version:       1,
		RawState:      []byte(`{"content":"stale"}`),
		Timestamp:     timestamp,
	}

	loadedAgg, err := store.Load(ctx, mocks.AggregateType, id)
	if err != nil {
		t.Fatal("there should be no error:", err)
	}

	loaded := loadedAgg.(*mocks.Aggregate)

	// The mismatched snapshot is discarded and the full stream replayed.
	if len(loaded.Applied) != 3 {
		t.Error("the full stream should be replayed:", len(loaded.Applied))
	}

	if loaded.AggregateVersion() != 2 {
		t.Error("the aggregate version should be correct:", loaded.AggregateVersion())
	}

	if loaded.Content != "event3" {
		t.Error("the state should come from the events, not the snapshot:", loaded.Content)
	}
}
