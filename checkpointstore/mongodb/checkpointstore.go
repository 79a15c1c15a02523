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

package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
	"go.mongodb.org/mongo-driver/v2/mongo/writeconcern"

	ef "github.com/eventfold/eventfold"
)

// CheckpointStore is an ef.CheckpointStore for MongoDB, storing one document
// per checkpoint ID. Saving upserts the document, so a consumer always sees
// its latest committed position.
type CheckpointStore struct {
	client          *mongo.Client
	clientOwnership clientOwnership
	checkpoints     *mongo.Collection
}

type clientOwnership int

const (
	internalClient clientOwnership = iota
	externalClient
)

// NewCheckpointStore creates a new CheckpointStore with a MongoDB URI:
// `mongodb://hostname`.
func NewCheckpointStore(uri, dbName string, opts ...Option) (*CheckpointStore, error) {
	clientOpts := options.Client().
		ApplyURI(uri).
		SetWriteConcern(writeconcern.Majority()).
		SetReadPreference(readpref.Primary())

	client, err := mongo.Connect(clientOpts)
	if err != nil {
		return nil, fmt.Errorf("could not connect to DB: %w", err)
	}

	return newCheckpointStoreWithClient(client, internalClient, dbName, opts...)
}

// NewCheckpointStoreWithClient creates a new CheckpointStore with a client.
// The caller owns the client and is responsible for disconnecting it.
func NewCheckpointStoreWithClient(client *mongo.Client, dbName string, opts ...Option) (*CheckpointStore, error) {
	return newCheckpointStoreWithClient(client, externalClient, dbName, opts...)
}

func newCheckpointStoreWithClient(client *mongo.Client, clientOwnership clientOwnership, dbName string, opts ...Option) (*CheckpointStore, error) {
	if client == nil {
		return nil, fmt.Errorf("missing DB client")
	}

	s := &CheckpointStore{
		client:          client,
		clientOwnership: clientOwnership,
		checkpoints:     client.Database(dbName).Collection("checkpoints"),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, fmt.Errorf("error while applying option: %w", err)
		}
	}

	if err := s.client.Ping(context.Background(), readpref.Primary()); err != nil {
		return nil, fmt.Errorf("could not connect to MongoDB: %w", err)
	}

	return s, nil
}

// Option is an option setter used to configure creation.
type Option func(*CheckpointStore) error

// WithCollectionName uses a different collection from the default
// "checkpoints" collection.
func WithCollectionName(checkpointsColl string) Option {
	return func(s *CheckpointStore) error {
		if checkpointsColl == "" {
			return fmt.Errorf("missing collection name")
		}

		s.checkpoints = s.checkpoints.Database().Collection(checkpointsColl)

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

	if _, err := s.checkpoints.ReplaceOne(ctx,
		bson.M{"_id": checkpoint.ID},
		bson.M{
			"_id":        checkpoint.ID,
			"position":   int64(checkpoint.Position),
			"updated_at": checkpoint.UpdatedAt,
		},
		options.Replace().SetUpsert(true),
	); err != nil {
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

	var record struct {
		ID        string    `bson:"_id"`
		Position  int64     `bson:"position"`
		UpdatedAt time.Time `bson:"updated_at"`
	}

	if err := s.checkpoints.FindOne(ctx, bson.M{"_id": id}).Decode(&record); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}

		return nil, fmt.Errorf("could not load checkpoint: %w", err)
	}

	return &ef.Checkpoint{
		ID:        record.ID,
		Position:  uint64(record.Position),
		UpdatedAt: record.UpdatedAt,
	}, nil
}

// Close disconnects the client, if the store owns it.
func (s *CheckpointStore) Close() error {
	if s.clientOwnership == externalClient {
		// Don't close a client we don't own.
		return nil
	}

	return s.client.Disconnect(context.Background())
}
