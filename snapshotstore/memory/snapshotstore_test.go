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

package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	ef "github.com/eventfold/eventfold"
	"github.com/eventfold/eventfold/uuid"
)

func TestSnapshotStore(t *testing.T) {
	store := NewSnapshotStore()
	ctx := context.Background()

	streamKey := ef.StreamKey("Order", uuid.New())

	// Load of a missing snapshot is not an error.
	snapshot, err := store.Load(ctx, streamKey)
	if err != nil {
		t.Error("there should be no error:", err)
	}

	if snapshot != nil {
		t.Error("there should be no snapshot:", snapshot)
	}

	// Save a snapshot without a timestamp; the store stamps it.
	saved := &ef.Snapshot{
		StreamKey:     streamKey,
		AggregateType: ef.AggregateType("OrderAggregate"),
		SchemaVersion: 1,
		Version:       2,
		RawState:      []byte(`{"lines":3}`),
	}

	if err := store.Save(ctx, saved); err != nil {
		t.Error("there should be no error:", err)
	}

	if saved.Timestamp.IsZero() {
		t.Error("the timestamp should have been stamped")
	}

	snapshot, err = store.Load(ctx, streamKey)
	if err != nil {
		t.Error("there should be no error:", err)
	}

	if snapshot == nil {
		t.Fatal("there should be a snapshot")
	}

	if snapshot.Version != 2 {
		t.Error("the snapshot version should be correct:", snapshot.Version)
	}

	if string(snapshot.RawState) != `{"lines":3}` {
		t.Error("the snapshot state should be correct:", string(snapshot.RawState))
	}

	// A newer snapshot replaces the previous one.
	timestamp := time.Date(2009, time.November, 10, 23, 0, 0, 0, time.UTC)

	if err := store.Save(ctx, &ef.Snapshot{
		StreamKey:     streamKey,
		AggregateType: ef.AggregateType("OrderAggregate"),
		SchemaVersion: 1,
		Version:       5,
		RawState:      []byte(`{"lines":7}`),
		Timestamp:     timestamp,
	}); err != nil {
		t.Error("there should be no error:", err)
	}

	snapshot, err = store.Load(ctx, streamKey)
	if err != nil {
		t.Error("there should be no error:", err)
	}

	if snapshot == nil || snapshot.Version != 5 {
		t.Error("the newer snapshot should replace the older:", snapshot)
	}

	if !snapshot.Timestamp.Equal(timestamp) {
		t.Error("a set timestamp should be kept:", snapshot.Timestamp)
	}
}

func TestSnapshotStoreMissingStreamKey(t *testing.T) {
	store := NewSnapshotStore()
	ctx := context.Background()

	if err := store.Save(ctx, &ef.Snapshot{}); !errors.Is(err, ef.ErrMissingStreamKey) {
		t.Error("there should be a missing stream key error:", err)
	}

	if _, err := store.Load(ctx, ""); !errors.Is(err, ef.ErrMissingStreamKey) {
		t.Error("there should be a missing stream key error:", err)
	}
}
