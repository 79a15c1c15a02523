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

package projector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jpillora/backoff"
	"go.uber.org/zap"

	ef "github.com/eventfold/eventfold"
)

// ErrMissingProjectorName is when a projector is created without a name.
var ErrMissingProjectorName = errors.New("missing projector name")

// EventHandler handles events fed to a projector, building a read model or
// triggering side effects. Handlers must be idempotent: an event can be
// redelivered when a crash happens between handling it and committing the
// checkpoint.
type EventHandler interface {
	// HandleEvent handles an event. Returning an error stops the projector's
	// current catch-up pass; the event is redelivered on the next pass.
	HandleEvent(ctx context.Context, event ef.Event) error
}

// EventHandlerFunc is a function that can be used as an EventHandler.
type EventHandlerFunc func(ctx context.Context, event ef.Event) error

// HandleEvent implements the HandleEvent method of the EventHandler interface.
func (f EventHandlerFunc) HandleEvent(ctx context.Context, event ef.Event) error {
	return f(ctx, event)
}

// Projector feeds the events of a stream to an event handler, keeping track
// of its progress in a checkpoint store so that it resumes where it left off
// after a restart. It polls the event store, backing off while the stream is
// idle.
type Projector struct {
	name        string
	store       ef.EventStore
	checkpoints ef.CheckpointStore
	handler     EventHandler
	backoff     *backoff.Backoff
	logger      *zap.Logger
}

// Option is an option setter used to configure creation.
type Option func(*Projector) error

// WithBackoff sets the backoff used while the stream is idle. Defaults to
// 100ms growing to 10s.
func WithBackoff(b *backoff.Backoff) Option {
	return func(p *Projector) error {
		if b == nil {
			return fmt.Errorf("missing backoff")
		}

		p.backoff = b

		return nil
	}
}

// WithLogger sets the logger used for progress and errors. Defaults to a
// no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Projector) error {
		if logger == nil {
			return fmt.Errorf("missing logger")
		}

		p.logger = logger

		return nil
	}
}

// NewProjector creates a projector with a name, the event store to read
// from, the checkpoint store to commit progress to and the handler to feed.
// The name partitions checkpoints: two projectors with different names over
// the same stream progress independently.
func NewProjector(name string, store ef.EventStore, checkpoints ef.CheckpointStore, handler EventHandler, options ...Option) (*Projector, error) {
	if name == "" {
		return nil, ErrMissingProjectorName
	}

	if store == nil {
		return nil, fmt.Errorf("missing event store")
	}

	if checkpoints == nil {
		return nil, fmt.Errorf("missing checkpoint store")
	}

	if handler == nil {
		return nil, fmt.Errorf("missing event handler")
	}

	p := &Projector{
		name:        name,
		store:       store,
		checkpoints: checkpoints,
		handler:     handler,
		backoff: &backoff.Backoff{
			Min:    100 * time.Millisecond,
			Max:    10 * time.Second,
			Factor: 2,
			Jitter: true,
		},
		logger: zap.NewNop(),
	}

	for _, option := range options {
		if err := option(p); err != nil {
			return nil, fmt.Errorf("error while applying option: %w", err)
		}
	}

	return p, nil
}

// CheckpointID returns the checkpoint ID used for a stream, which is the
// projector name and the stream key.
func (p *Projector) CheckpointID(streamKey string) string {
	return p.name + ":" + streamKey
}

// Run projects the events of a stream until the context is canceled. It
// resumes from the stored checkpoint, handles every new event in version
// order and commits the checkpoint after each handled event. Handler and
// store errors are logged and retried with backoff rather than terminating
// the run.
func (p *Projector) Run(ctx context.Context, streamKey string) error {
	checkpoint, err := p.checkpoints.Load(ctx, p.CheckpointID(streamKey))
	if err != nil {
		return fmt.Errorf("could not load checkpoint: %w", err)
	}

	var position uint64
	if checkpoint != nil {
		position = checkpoint.Position
	}

	p.logger.Info("projector starting",
		zap.String("projector", p.name),
		zap.String("stream_key", streamKey),
		zap.Uint64("position", position),
	)

	for {
		n, err := p.catchUp(ctx, streamKey, &position)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			p.logger.Error("projection pass failed",
				zap.String("projector", p.name),
				zap.String("stream_key", streamKey),
				zap.Error(err),
			)
		} else if n > 0 {
			p.backoff.Reset()

			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.backoff.Duration()):
		}
	}
}

// catchUp handles all currently stored events from the position, advancing
// and committing it per event. It returns the number of events handled.
func (p *Projector) catchUp(ctx context.Context, streamKey string, position *uint64) (int, error) {
	events, err := p.store.Load(ctx, streamKey, int(*position))
	if err != nil {
		return 0, fmt.Errorf("could not load events: %w", err)
	}

	for i, event := range events {
		if err := p.handler.HandleEvent(ctx, event); err != nil {
			return i, fmt.Errorf("could not handle event %s: %w", event, err)
		}

		*position = uint64(event.Version()) + 1

		if err := p.checkpoints.Save(ctx, &ef.Checkpoint{
			ID:       p.CheckpointID(streamKey),
			Position: *position,
		}); err != nil {
			return i, fmt.Errorf("could not save checkpoint: %w", err)
		}
	}

	return len(events), nil
}
