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
	"errors"
	"strings"

	"github.com/eventfold/eventfold/uuid"
)

// ErrEmptyAggregateName is when a stream name is resolved from an empty type
// name, or when resolving leaves nothing of the name.
var ErrEmptyAggregateName = errors.New("empty aggregate name")

// StreamNameResolver resolves the canonical, storage-safe stream name for an
// aggregate type name. Decoupling the persisted name from the in-memory type
// name means that renaming a type does not silently orphan its event streams.
type StreamNameResolver interface {
	// AggregateName returns the stream name for an aggregate type name.
	AggregateName(typeName string) (string, error)
}

// DefaultResolver resolves stream names by removing every occurrence of the
// word "Aggregate" from the type name: "OrderAggregate" resolves to "Order".
type DefaultResolver struct{}

// AggregateName implements the AggregateName method of the StreamNameResolver
// interface.
func (DefaultResolver) AggregateName(typeName string) (string, error) {
	if typeName == "" {
		return "", ErrEmptyAggregateName
	}

	name := strings.ReplaceAll(typeName, "Aggregate", "")
	if name == "" {
		return "", ErrEmptyAggregateName
	}

	return name, nil
}

// StreamKey returns the key addressing an aggregate's event stream, snapshot
// and checkpoint records: the resolved stream name joined with the ID.
func StreamKey(name string, id uuid.UUID) string {
	return name + "-" + id.String()
}
