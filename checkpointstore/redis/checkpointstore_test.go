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

package redis

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	ef "github.com/eventfold/eventfold"
)

func TestCheckpointStoreIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR is not set")
	}

	// A per-run key prefix to not conflict with other test runs.
	prefix := fmt.Sprintf("eventfold_test_%d:", time.Now().UnixNano())

	store, err := NewCheckpointStore(addr, WithKeyPrefix(prefix))
	if err != nil {
		t.Fatal("there should be no error:", err)
	}

	defer store.Close()

	ctx := context.Background()

	// Load of a missing checkpoint is not an error.
	checkpoint, err := store.Load(ctx, "projector:Order-1")
	if err != nil {
		t.Error("there should be no error:", err)
	}

	if checkpoint != nil {
		t.Error("there should be no checkpoint:", checkpoint)
	}

	// Save and load a checkpoint.
	updatedAt := time.Date(2009, time.November, 10, 23, 0, 0, 0, time.UTC)

	if err := store.Save(ctx, &ef.Checkpoint{
		ID:        "projector:Order-1",
		Position:  42,
		UpdatedAt: updatedAt,
	}); err != nil {
		t.Error("there should be no error:", err)
	}

	checkpoint, err = store.Load(ctx, "projector:Order-1")
	if err != nil {
		t.Error("there should be no error:", err)
	}

	if checkpoint == nil {
		t.Fatal("there should be a checkpoint")
	}

	if checkpoint.Position != 42 {
		t.Error("the position should be correct:", checkpoint.Position)
	}

	if !checkpoint.UpdatedAt.Equal(updatedAt) {
		t.Error("the update time should be correct:", checkpoint.UpdatedAt)
	}

	// Saving again advances the position.
	if err := store.Save(ctx, &ef.Checkpoint{
		ID:       "projector:Order-1",
		Position: 43,
	}); err != nil {
		t.Error("there should be no error:", err)
	}

	checkpoint, err = store.Load(ctx, "projector:Order-1")
	if err != nil {
		t.Error("there should be no error:", err)
	}

	if checkpoint == nil || checkpoint.Position != 43 {
		t.Error("the position should have advanced:", checkpoint)
	}
}
