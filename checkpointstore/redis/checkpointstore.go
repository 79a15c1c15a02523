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
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	ef "github.com/eventfold/eventfold"
)

// CheckpointStore is an ef.CheckpointStore for Redis, storing each checkpoint
// as a hash with the position and update time. Useful when consumers are
// short-lived and the checkpoint needs to survive them.
type CheckpointStore struct {
	client          *redis.Client
	clientOwnership clientOwnership
	keyPrefix       string
}

type clientOwnership int

const (
	internalClient clientOwnership = iota
	externalClient
)

// NewCheckpointStore creates a new CheckpointStore with a Redis address:
// `hostname:port`.
func NewCheckpointStore(addr string, options ...Option) (*CheckpointStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	return newCheckpointStoreWithClient(client, internalClient, options...)
}

// NewCheckpointStoreWithClient creates a new CheckpointStore with a client.
// The caller owns the client and is responsible for closing it.
func NewCheckpointStoreWithClient(client *redis.Client, options ...Option) (*CheckpointStore, error) {
	return newCheckpointStoreWithClient(client, externalClient, options...)
}

func newCheckpointStoreWithClient(client *redis.Client, clientOwnership clientOwnership, options ...Option) (*CheckpointStore, error) {
	if client == nil {
		return nil, fmt.Errorf("missing Redis client")
	}

	s := &CheckpointStore{
		client:          client,
		clientOwnership: clientOwnership,
		keyPrefix:       "checkpoints:",
	}

	for _, option := range options {
		if err := option(s); err != nil {
			return nil, fmt.Errorf("error while applying option: %w", err)
		}
	}

	if res, err := s.client.Ping(context.Background()).Result(); err != nil {
		return nil, fmt.Errorf("could not check Redis server: %w", err)
	} else if res != "PONG" {
		return nil, fmt.Errorf("could not check Redis server: %s", res)
	}

	return s, nil
}

// Option is an option setter used to configure creation.
type Option func(*CheckpointStore) error

// WithKeyPrefix uses a different Redis key prefix from the default
// "checkpoints:".
func WithKeyPrefix(prefix string) Option {
	return func(s *CheckpointStore) error {
		if prefix == "" {
			return fmt.Errorf("missing key prefix")
		}

		s.keyPrefix = prefix

		return nil
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

	if err := s.client.HSet(ctx, s.keyPrefix+checkpoint.ID,
		"position", strconv.FormatUint(checkpoint.Position, 10),
		"updated_at", checkpoint.UpdatedAt.Format(time.RFC3339Nano),
	).Err(); err != nil {
		return fmt.Errorf("could not save checkpoint: %w", err)
	}

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

	fields, err := s.client.HGetAll(ctx, s.keyPrefix+id).Result()
	if err != nil {
		return nil, fmt.Errorf("could not load checkpoint: %w", err)
	}

	if len(fields) == 0 {
		return nil, nil
	}

	position, err := strconv.ParseUint(fields["position"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("could not parse checkpoint position: %w", err)
	}

	updatedAt, err := time.Parse(time.RFC3339Nano, fields["updated_at"])
	if err != nil {
		return nil, fmt.Errorf("could not parse checkpoint update time: %w", err)
	}

	return &ef.Checkpoint{
		ID:        id,
		Position:  position,
		UpdatedAt: updatedAt,
	}, nil
}

// Close closes the Redis client, if the store owns it.
func (s *CheckpointStore) Close() error {
	if s.clientOwnership == externalClient {
		// Don't close a client we don't own.
		return nil
	}

	return s.client.Close()
}
