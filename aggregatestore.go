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

package eventfold

import (
	"context"
	"errors"
	"fmt"

	"github.com/eventfold/eventfold/uuid"
)

// AggregateStore is responsible for loading and saving aggregates.
type AggregateStore interface {
	// Load loads the most recent version of an aggregate with a type and ID.
	Load(ctx context.Context, aggregateType AggregateType, id uuid.UUID) (Aggregate, error)

	// Save saves the uncommitted events of an aggregate.
	Save(ctx context.Context, aggregate Aggregate) error
}

// ErrMissingAggregate is when a save is attempted with a nil aggregate.
var ErrMissingAggregate = errors.New("missing aggregate")

// ErrMissingAggregateID is when a load is attempted with the nil UUID.
var ErrMissingAggregateID = errors.New("missing aggregate ID")

// AggregateStoreOperation is the operation done when an error happened.
type AggregateStoreOperation string

const (
	// AggregateStoreOpLoad is when an error happened in the Load operation.
	AggregateStoreOpLoad = AggregateStoreOperation("load")
	// AggregateStoreOpSave is when an error happened in the Save operation.
	AggregateStoreOpSave = AggregateStoreOperation("save")
)

// AggregateStoreError is an error in the aggregate store.
type AggregateStoreError struct {
	// Err is the error.
	Err error
	// Op is the operation for the error.
	Op AggregateStoreOperation
	// AggregateType of the aggregate related to the error.
	AggregateType AggregateType
	// AggregateID of the aggregate related to the error.
	AggregateID uuid.UUID
}

// Error implements the Error method of the errors.Error interface.
func (e *AggregateStoreError) Error() string {
	str := "aggregate store: "

	if e.Op != "" {
		str += string(e.Op) + ": "
	}

	if e.Err != nil {
		str += e.Err.Error()
	} else {
		str += "unknown error"
	}

	if e.AggregateType != "" {
		str += fmt.Sprintf(", %s", e.AggregateType)
	}

	if e.AggregateID != uuid.Nil {
		str += fmt.Sprintf("(%s)", e.AggregateID)
	}

	return str
}

// Unwrap implements the errors.Unwrap method.
func (e *AggregateStoreError) Unwrap() error {
	return e.Err
}

// Cause implements the github.com/pkg/errors Unwrap method.
func (e *AggregateStoreError) Cause() error {
	return e.Unwrap()
}
