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

package bolt

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	ef "github.com/eventfold/eventfold"
	"github.com/eventfold/eventfold/uuid"
)

// streamsBucket is the root bucket holding one nested bucket per stream.
var streamsBucket = []byte("streams")

// EventStore is an ef.EventStore backed by an embedded BoltDB file. Streams
// are nested buckets keyed by stream key; events are keyed by their version
// in big endian so that bucket order is version order. The version check of
// a save runs inside the update transaction, which BoltDB serializes, giving
// the optimistic concurrency guarantee without extra locking.
type EventStore struct {
	db *bbolt.DB
}

// NewEventStore creates a new EventStore with a BoltDB file path.
func NewEventStore(path string) (*EventStore, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 10 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("could not open DB: %w", err)
	}

	return NewEventStoreWithDB(db)
}

// NewEventStoreWithDB creates a new EventStore with a DB. The caller owns
// the DB and is responsible for closing it.
func NewEventStoreWithDB(db *bbolt.DB) (*EventStore, error) {
	if db == nil {
		return nil, fmt.Errorf("missing DB")
	}

	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(streamsBucket)

		return err
	}); err != nil {
		return nil, fmt.Errorf("could not create streams bucket: %w", err)
	}

	return &EventStore{db: db}, nil
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

	dbEvents := make([][]byte, len(events))

	for i, event := range events {
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

		if event.Version() != originalVersion+i+1 {
			return &ef.EventStoreError{
				Err:              ef.ErrIncorrectEventVersion,
				Op:               ef.EventStoreOpSave,
				StreamKey:        streamKey,
				AggregateVersion: originalVersion,
			}
		}

		e, err := newEvt(event)
		if err != nil {
			return &ef.EventStoreError{
				Err:              err,
				Op:               ef.EventStoreOpSave,
				StreamKey:        streamKey,
				AggregateVersion: originalVersion,
			}
		}

		b, err := json.Marshal(e)
		if err != nil {
			return &ef.EventStoreError{
				Err:              fmt.Errorf("could not marshal event: %w", err),
				Op:               ef.EventStoreOpSave,
				StreamKey:        streamKey,
				AggregateVersion: originalVersion,
			}
		}

		dbEvents[i] = b
	}

	if err := s.db.Update(func(tx *bbolt.Tx) error {
		stream, err := tx.Bucket(streamsBucket).CreateBucketIfNotExists([]byte(streamKey))
		if err != nil {
			return fmt.Errorf("could not create stream bucket: %w", err)
		}

		currentVersion := -1
		if k, _ := stream.Cursor().Last(); k != nil {
			currentVersion = int(binary.BigEndian.Uint64(k))
		}

		if currentVersion != originalVersion {
			return ef.ErrVersionConflict
		}

		for i, b := range dbEvents {
			if err := stream.Put(versionKey(originalVersion+i+1), b); err != nil {
				return fmt.Errorf("could not put event: %w", err)
			}
		}

		return nil
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

	var events []ef.Event

	if err := s.db.View(func(tx *bbolt.Tx) error {
		stream := tx.Bucket(streamsBucket).Bucket([]byte(streamKey))
		if stream == nil {
			// A missing stream is a new aggregate, not an error.
			return nil
		}

		c := stream.Cursor()
		for k, v := c.Seek(versionKey(fromVersion)); k != nil; k, v = c.Next() {
			event, err := loadEvt(v)
			if err != nil {
				return err
			}

			events = append(events, event)
		}

		return nil
	}); err != nil {
		return nil, &ef.EventStoreError{
			Err:       err,
			Op:        ef.EventStoreOpLoad,
			StreamKey: streamKey,
		}
	}

	return events, nil
}

// Close closes the database file.
func (s *EventStore) Close() error {
	return s.db.Close()
}

func versionKey(version int) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, uint64(version))

	return k
}

// evt is the internal event record used to save and load events from the DB.
type evt struct {
	EventType     ef.EventType           `json:"event_type"`
	Timestamp     time.Time              `json:"timestamp"`
	AggregateType ef.AggregateType       `json:"aggregate_type"`
	AggregateID   string                 `json:"aggregate_id"`
	Version       int                    `json:"version"`
	RawData       json.RawMessage        `json:"data,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

func newEvt(event ef.Event) (*evt, error) {
	e := &evt{
		EventType:     event.EventType(),
		Timestamp:     event.Timestamp(),
		AggregateType: event.AggregateType(),
		AggregateID:   event.AggregateID().String(),
		Version:       event.Version(),
		Metadata:      event.Metadata(),
	}

	if event.Data() != nil {
		raw, err := json.Marshal(event.Data())
		if err != nil {
			return nil, fmt.Errorf("could not marshal event data: %w", err)
		}

		e.RawData = raw
	}

	return e, nil
}

func loadEvt(b []byte) (ef.Event, error) {
	var e evt
	if err := json.Unmarshal(b, &e); err != nil {
		return nil, fmt.Errorf("could not unmarshal event: %w", err)
	}

	id, err := uuid.Parse(e.AggregateID)
	if err != nil {
		return nil, fmt.Errorf("could not parse aggregate ID: %w", err)
	}

	var data ef.EventData

	if len(e.RawData) > 0 {
		var err error
		if data, err = ef.CreateEventData(e.EventType); err != nil {
			return nil, fmt.Errorf("could not create event data: %w", err)
		}

		if err := json.Unmarshal(e.RawData, data); err != nil {
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
