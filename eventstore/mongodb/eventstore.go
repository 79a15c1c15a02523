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
	"go.mongodb.org/mongo-driver/v2/mongo/readconcern"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
	"go.mongodb.org/mongo-driver/v2/mongo/writeconcern"

	ef "github.com/eventfold/eventfold"
	"github.com/eventfold/eventfold/uuid"
)

// EventStore is an ef.EventStore for MongoDB, using one collection for all
// events and another to keep track of all streams. The stream document
// carries the current version; appending updates it with the expected
// version in the filter, so a concurrent save that advanced the stream makes
// the update match nothing and the save fails with ef.ErrVersionConflict.
// Append and stream update run in one transaction, which requires a replica
// set or a sharded cluster.
type EventStore struct {
	client          *mongo.Client
	clientOwnership clientOwnership
	events          *mongo.Collection
	streams         *mongo.Collection
}

type clientOwnership int

const (
	internalClient clientOwnership = iota
	externalClient
)

// NewEventStore creates a new EventStore with a MongoDB URI:
// `mongodb://hostname`.
func NewEventStore(uri, dbName string, opts ...Option) (*EventStore, error) {
	clientOpts := options.Client().
		ApplyURI(uri).
		SetWriteConcern(writeconcern.Majority()).
		SetReadConcern(readconcern.Majority()).
		SetReadPreference(readpref.Primary())

	client, err := mongo.Connect(clientOpts)
	if err != nil {
		return nil, fmt.Errorf("could not connect to DB: %w", err)
	}

	return newEventStoreWithClient(client, internalClient, dbName, opts...)
}

// NewEventStoreWithClient creates a new EventStore with a client. The caller
// owns the client and is responsible for disconnecting it.
func NewEventStoreWithClient(client *mongo.Client, dbName string, opts ...Option) (*EventStore, error) {
	return newEventStoreWithClient(client, externalClient, dbName, opts...)
}

func newEventStoreWithClient(client *mongo.Client, clientOwnership clientOwnership, dbName string, opts ...Option) (*EventStore, error) {
	if client == nil {
		return nil, fmt.Errorf("missing DB client")
	}

	db := client.Database(dbName)
	s := &EventStore{
		client:          client,
		clientOwnership: clientOwnership,
		events:          db.Collection("events"),
		streams:         db.Collection("streams"),
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

	if _, err := s.events.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "stream_key", Value: 1}, {Key: "version", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return nil, fmt.Errorf("could not ensure events index: %w", err)
	}

	return s, nil
}

// Option is an option setter used to configure creation.
type Option func(*EventStore) error

// WithCollectionNames uses different collections from the default "events"
// and "streams" collections. Will return an error if provided parameters are
// equal.
func WithCollectionNames(eventsColl, streamsColl string) Option {
	return func(s *EventStore) error {
		if err := validateCollectionNames(eventsColl, streamsColl); err != nil {
			return err
		}

		db := s.events.Database()
		s.events = db.Collection(eventsColl)
		s.streams = db.Collection(streamsColl)

		return nil
	}
}

func validateCollectionNames(eventsColl, streamsColl string) error {
	if eventsColl == "" || streamsColl == "" {
		return fmt.Errorf("missing collection name")
	} else if eventsColl == streamsColl {
		return fmt.Errorf("custom collection names are equal")
	}

	return nil
}

// Save implements the Save method of the ef.EventStore interface.
func (s *EventStore) Save(ctx context.Context, streamKey string, events []ef.Event, originalVersion int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if len(events) == 0 {
		return &ef.EventStoreError{
			Err:       ef.ErrMissingEvents,
			Op:        ef.EventStoreOpSave,
			StreamKey: streamKey,
		}
	}

	id := events[0].AggregateID()
	at := events[0].AggregateType()

	dbEvents := make([]interface{}, len(events))

	for i, event := range events {
		// Only accept events belonging to the same aggregate.
		if event.AggregateID() != id {
			return &ef.EventStoreError{
				Err:              ef.ErrMismatchedEventAggregateIDs,
				Op:               ef.EventStoreOpSave,
				StreamKey:        streamKey,
				AggregateVersion: originalVersion,
			}
		}

		if event.AggregateType() != at {
			return &ef.EventStoreError{
				Err:              ef.ErrMismatchedEventAggregateTypes,
				Op:               ef.EventStoreOpSave,
				StreamKey:        streamKey,
				AggregateVersion: originalVersion,
			}
		}

		// Only accept events that apply to the correct aggregate version.
		if event.Version() != originalVersion+i+1 {
			return &ef.EventStoreError{
				Err:              ef.ErrIncorrectEventVersion,
				Op:               ef.EventStoreOpSave,
				StreamKey:        streamKey,
				AggregateVersion: originalVersion,
			}
		}

		e, err := newEvt(streamKey, event)
		if err != nil {
			return &ef.EventStoreError{
				Err:              err,
				Op:               ef.EventStoreOpSave,
				StreamKey:        streamKey,
				AggregateVersion: originalVersion,
			}
		}

		dbEvents[i] = e
	}

	sess, err := s.client.StartSession()
	if err != nil {
		return &ef.EventStoreError{
			Err:              fmt.Errorf("could not start transaction: %w", err),
			Op:               ef.EventStoreOpSave,
			StreamKey:        streamKey,
			AggregateVersion: originalVersion,
		}
	}

	defer sess.EndSession(ctx)

	newVersion := originalVersion + len(events)
	updatedAt := events[len(events)-1].Timestamp()

	if _, err := sess.WithTransaction(ctx, func(txCtx context.Context) (interface{}, error) {
		if originalVersion == -1 {
			if _, err := s.streams.InsertOne(txCtx, bson.M{
				"_id":            streamKey,
				"aggregate_type": at.String(),
				"version":        newVersion,
				"updated_at":     updatedAt,
			}); err != nil {
				if mongo.IsDuplicateKeyError(err) {
					return nil, ef.ErrVersionConflict
				}

				return nil, fmt.Errorf("could not insert stream: %w", err)
			}
		} else {
			r, err := s.streams.UpdateOne(txCtx,
				bson.M{
					"_id":     streamKey,
					"version": originalVersion,
				},
				bson.M{
					"$set": bson.M{
						"version":    newVersion,
						"updated_at": updatedAt,
					},
				},
			)
			if err != nil {
				return nil, fmt.Errorf("could not update stream: %w", err)
			} else if r.MatchedCount == 0 {
				return nil, ef.ErrVersionConflict
			}
		}

		if _, err := s.events.InsertMany(txCtx, dbEvents); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return nil, ef.ErrVersionConflict
			}

			return nil, fmt.Errorf("could not insert events: %w", err)
		}

		return nil, nil
	}); err != nil {
		return &ef.EventStoreError{
			Err:              err,
			Op:               ef.EventStoreOpSave,
			StreamKey:        streamKey,
			AggregateVersion: originalVersion,
		}
	}

	return nil
}

// Load implements the Load method of the ef.EventStore interface.
func (s *EventStore) Load(ctx context.Context, streamKey string, fromVersion int) ([]ef.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cursor, err := s.events.Find(ctx,
		bson.M{"stream_key": streamKey, "version": bson.M{"$gte": fromVersion}},
		options.Find().SetSort(bson.D{{Key: "version", Value: 1}}),
	)
	if err != nil {
		return nil, &ef.EventStoreError{
			Err:       fmt.Errorf("could not find events: %w", err),
			Op:        ef.EventStoreOpLoad,
			StreamKey: streamKey,
		}
	}

	defer cursor.Close(ctx)

	var events []ef.Event

	for cursor.Next(ctx) {
		var e evt
		if err := cursor.Decode(&e); err != nil {
			return nil, &ef.EventStoreError{
				Err:       fmt.Errorf("could not decode event: %w", err),
				Op:        ef.EventStoreOpLoad,
				StreamKey: streamKey,
			}
		}

		event, err := e.event()
		if err != nil {
			return nil, &ef.EventStoreError{
				Err:       err,
				Op:        ef.EventStoreOpLoad,
				StreamKey: streamKey,
			}
		}

		events = append(events, event)
	}

	if err := cursor.Err(); err != nil {
		return nil, &ef.EventStoreError{
			Err:       fmt.Errorf("could not read events: %w", err),
			Op:        ef.EventStoreOpLoad,
			StreamKey: streamKey,
		}
	}

	return events, nil
}

// Close disconnects the client, if the store owns it.
func (s *EventStore) Close() error {
	if s.clientOwnership == externalClient {
		// Don't close a client we don't own.
		return nil
	}

	return s.client.Disconnect(context.Background())
}

// evt is the internal event record for the MongoDB event store used to save
// and load events from the DB.
type evt struct {
	StreamKey     string                 `bson:"stream_key"`
	EventType     ef.EventType           `bson:"event_type"`
	Timestamp     time.Time              `bson:"timestamp"`
	AggregateType ef.AggregateType       `bson:"aggregate_type"`
	AggregateID   string                 `bson:"aggregate_id"`
	Version       int                    `bson:"version"`
	RawData       bson.Raw               `bson:"data,omitempty"`
	Metadata      map[string]interface{} `bson:"metadata,omitempty"`
}

// newEvt returns a new evt for an event.
func newEvt(streamKey string, event ef.Event) (*evt, error) {
	e := &evt{
		StreamKey:     streamKey,
		EventType:     event.EventType(),
		Timestamp:     event.Timestamp(),
		AggregateType: event.AggregateType(),
		AggregateID:   event.AggregateID().String(),
		Version:       event.Version(),
		Metadata:      event.Metadata(),
	}

	// Marshal event data if there is any.
	if event.Data() != nil {
		raw, err := bson.Marshal(event.Data())
		if err != nil {
			return nil, fmt.Errorf("could not marshal event data: %w", err)
		}

		e.RawData = raw
	}

	return e, nil
}

// event creates an ef.Event of the registered type from the record.
func (e *evt) event() (ef.Event, error) {
	id, err := uuid.Parse(e.AggregateID)
	if err != nil {
		return nil, fmt.Errorf("could not parse aggregate ID: %w", err)
	}

	var data ef.EventData

	if len(e.RawData) > 0 {
		if data, err = ef.CreateEventData(e.EventType); err != nil {
			return nil, fmt.Errorf("could not create event data: %w", err)
		}

		if err := bson.Unmarshal(e.RawData, data); err != nil {
			return nil, fmt.Errorf("could not unmarshal event data: %w", err)
		}
	}

	return ef.NewEvent(
		e.EventType,
		data,
		e.Timestamp,
		ef.ForAggregate(
			e.AggregateType,
			id,
			e.Version,
		),
		ef.WithMetadata(e.Metadata),
	), nil
}
