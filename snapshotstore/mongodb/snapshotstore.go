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
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
	"go.mongodb.org/mongo-driver/v2/mongo/writeconcern"

	ef "github.com/eventfold/eventfold"
)

// SnapshotStore is an ef.SnapshotStore for MongoDB, keeping at most one
// snapshot document per stream key. Saving a new snapshot replaces the
// previous one with an upsert, so a stream never accumulates snapshots.
type SnapshotStore struct {
	client          *mongo.Client
	clientOwnership clientOwnership
	snapshots       *mongo.Collection
}

type clientOwnership int

const (
	internalClient clientOwnership = iota
	externalClient
)

// NewSnapshotStore creates a new SnapshotStore with a MongoDB URI:
// `mongodb://hostname`.
func NewSnapshotStore(uri, dbName string, opts ...Option) (*SnapshotStore, error) {
	clientOpts := options.Client().
		ApplyURI(uri).
		SetWriteConcern(writeconcern.Majority()).
		SetReadPreference(readpref.Primary())

	client, err := mongo.Connect(clientOpts)
	if err != nil {
		return nil, fmt.Errorf("could not connect to DB: %w", err)
	}

	return newSnapshotStoreWithClient(client, internalClient, dbName, opts...)
}

// NewSnapshotStoreWithClient creates a new SnapshotStore with a client. The
// caller owns the client and is responsible for disconnecting it.
func NewSnapshotStoreWithClient(client *mongo.Client, dbName string, opts ...Option) (*SnapshotStore, error) {
	return newSnapshotStoreWithClient(client, externalClient, dbName, opts...)
}

func newSnapshotStoreWithClient(client *mongo.Client, clientOwnership clientOwnership, dbName string, opts ...Option) (*SnapshotStore, error) {
	if client == nil {
		return nil, fmt.Errorf("missing DB client")
	}

	s := &SnapshotStore{
		client:          client,
		clientOwnership: clientOwnership,
		snapshots:       client.Database(dbName).Collection("snapshots"),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, fmt.Errorf("error while applying option: %w", err)
		}
	}

	ctx := context.Background()

	if err := s.client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("could not connect to MongoDB: %w", err)
	}

	if _, err := s.snapshots.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "stream_key", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return nil, fmt.Errorf("could not ensure snapshots index: %w", err)
	}

	return s, nil
}

// Option is an option setter used to configure creation.
type Option func(*SnapshotStore) error

// WithCollectionName uses a different collection from the default
// "snapshots" collection.
func WithCollectionName(snapshotsColl string) Option {
	return func(s *SnapshotStore) error {
		if snapshotsColl == "" {
			return fmt.Errorf("missing collection name")
		}

		s.snapshots = s.snapshots.Database().Collection(snapshotsColl)

		return nil
	}
}

// Save implements the Save method of the ef.SnapshotStore interface.
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

	if _, err := s.snapshots.ReplaceOne(ctx,
		bson.M{"stream_key": snapshot.StreamKey},
		newRecord(snapshot),
		options.Replace().SetUpsert(true),
	); err != nil {
		return fmt.Errorf("could not save snapshot: %w", err)
	}

	return nil
}

// Load implements the Load method of the ef.SnapshotStore interface. A
// missing snapshot is not an error; it loads as nil. More than one document
// for the same stream key means the unique index was bypassed and loads as
// ef.ErrAmbiguousSnapshot.
func (s *SnapshotStore) Load(ctx context.Context, streamKey string) (*ef.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if streamKey == "" {
		return nil, ef.ErrMissingStreamKey
	}

	cursor, err := s.snapshots.Find(ctx,
		bson.M{"stream_key": streamKey},
		options.Find().SetLimit(2),
	)
	if err != nil {
		return nil, fmt.Errorf("could not find snapshot: %w", err)
	}

	defer cursor.Close(ctx)

	var records []record
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("could not decode snapshot: %w", err)
	}

	switch len(records) {
	case 0:
		return nil, nil
	case 1:
		return records[0].snapshot(), nil
	default:
		return nil, ef.ErrAmbiguousSnapshot
	}
}

// Close disconnects the client, if the store owns it.
func (s *SnapshotStore) Close() error {
	if s.clientOwnership == externalClient {
		// Don't close a client we don't own.
		return nil
	}

	return s.client.Disconnect(context.Background())
}

// record is the internal snapshot record used to save and load snapshots
// from the DB.
type record struct {
	StreamKey       string           `bson:"stream_key"`
	AggregateType   ef.AggregateType `bson:"aggregate_type"`
	SchemaVersion   int              `bson:"schema_version"`
	Version         int              `bson:"version"`
	RawState        []byte           `bson:"state,omitempty"`
	Timestamp       time.Time        `bson:"timestamp"`
	TakeAfterEvents int              `bson:"take_after_events,omitempty"`
}

func newRecord(snapshot *ef.Snapshot) *record {
	return &record{
		StreamKey:       snapshot.StreamKey,
		AggregateType:   snapshot.AggregateType,
		SchemaVersion:   snapshot.SchemaVersion,
		Version:         snapshot.Version,
		RawState:        snapshot.RawState,
		Timestamp:       snapshot.Timestamp,
		TakeAfterEvents: snapshot.TakeAfterEvents,
	}
}

func (r *record) snapshot() *ef.Snapshot {
	return &ef.Snapshot{
		StreamKey:       r.StreamKey,
		AggregateType:   r.AggregateType,
		SchemaVersion:   r.SchemaVersion,
		Version:         r.Version,
		RawState:        r.RawState,
		Timestamp:       r.Timestamp,
		TakeAfterEvents: r.TakeAfterEvents,
	}
}
