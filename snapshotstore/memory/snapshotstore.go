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
	"sync"
	"time"

	ef "github.com/eventfold/eventfold"
)

// SnapshotStore is an ef.SnapshotStore where snapshots are stored in memory,
// one per stream key. It is mainly useful in testing.
type SnapshotStore struct {
	snapshots map[string]ef.Snapshot
	mu        sync.RWMutex
}

// NewSnapshotStore creates a new SnapshotStore.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{
		snapshots: map[string]ef.Snapshot{},
	}
}

// Save implements the Save method of the ef.SnapshotStore interface. Saving
// replaces any previous snapshot for the stream.
func (s *SnapshotStore) Save(ctx context.Context, snapshot *ef.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if snapshot == nil || snapshot.StreamKey == "" {
		return ef.ErrMissingStreamKey
	}

	if snapshot.Timestamp.IsZero() {
		snapshot.Timestamp = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshots[snapshot.StreamKey] = *snapshot

	return nil
}

// Load implements the Load method of the ef.SnapshotStore interface. A
// missing snapshot is not an error; it loads as nil.
func (s *SnapshotStore) Load(ctx context.Context, streamKey string) (*ef.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if streamKey == "" {
		return nil, ef.ErrMissingStreamKey
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot, ok := s.snapshots[streamKey]
	if !ok {
		return nil, nil
	}

	return &snapshot, nil
}
