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

// CheckpointStore is an ef.CheckpointStore where checkpoints are stored in
// memory. It is mainly useful in testing.
type CheckpointStore struct {
	checkpoints map[string]ef.Checkpoint
	mu          sync.RWMutex
}

// NewCheckpointStore creates a new CheckpointStore.
func NewCheckpointStore() *CheckpointStore {
	return &CheckpointStore{
		checkpoints: map[string]ef.Checkpoint{},
	}
}

// Save implements the Save method of the ef.CheckpointStore interface.
func (s *CheckpointStore) Save(ctx context.Context, checkpoint *ef.Checkpoint) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if checkpoint == nil || checkpoint.ID == "" {
		return ef.ErrMissingCheckpointID
	}

	if checkpoint.UpdatedAt.IsZero() {
		checkpoint.UpdatedAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.checkpoints[checkpoint.ID] = *checkpoint

	return nil
}

// Load implements the Load method of the ef.CheckpointStore interface. A
// missing checkpoint is not an error; it loads as nil so that a consumer
// starts from the beginning.
func (s *CheckpointStore) Load(ctx context.Context, id string) (*ef.Checkpoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if id == "" {
		return nil, ef.ErrMissingCheckpointID
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	checkpoint, ok := s.checkpoints[id]
	if !ok {
		return nil, nil
	}

	return &checkpoint, nil
}
