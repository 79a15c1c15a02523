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
	"testing"

	"github.com/eventfold/eventfold/uuid"
)

func TestCreateAggregate(t *testing.T) {
	// Create of non-registered type.
	_, err := CreateAggregate(TestAggregateRegisterType, uuid.New())
	if !errors.Is(err, ErrAggregateNotRegistered) {
		t.Error("there should be a not registered error:", err)
	}

	// Register.
	RegisterAggregate(func(id uuid.UUID) Aggregate {
		return &TestAggregateRegister{id: id}
	})

	id := uuid.New()

	aggregate, err := CreateAggregate(TestAggregateRegisterType, id)
	if err != nil {
		t.Error("there should be no error:", err)
	}

	if aggregate.AggregateType() != TestAggregateRegisterType {
		t.Error("the aggregate type should be correct:", aggregate.AggregateType())
	}

	if aggregate.EntityID() != id {
		t.Error("the aggregate ID should be correct:", aggregate.EntityID())
	}
}

func TestRegisterAggregateEmptyName(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("there should be a panic when registering an empty aggregate type")
		}
	}()

	RegisterAggregate(func(id uuid.UUID) Aggregate {
		return &TestAggregateRegisterEmpty{id: id}
	})
}

func TestRegisterAggregateNil(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("there should be a panic when registering a nil aggregate")
		}
	}()

	RegisterAggregate(func(id uuid.UUID) Aggregate { return nil })
}

func TestRegisterAggregateTwice(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("there should be a panic when registering a duplicate aggregate type")
		}
	}()

	RegisterAggregate(func(id uuid.UUID) Aggregate {
		return &TestAggregateRegisterTwice{id: id}
	})
	RegisterAggregate(func(id uuid.UUID) Aggregate {
		return &TestAggregateRegisterTwice{id: id}
	})
}

const (
	TestAggregateRegisterType      AggregateType = "TestAggregateRegister"
	TestAggregateRegisterTwiceType AggregateType = "TestAggregateRegisterTwice"
)

type TestAggregateRegister struct {
	id uuid.UUID
}

func (a *TestAggregateRegister) EntityID() uuid.UUID { return a.id }
func (a *TestAggregateRegister) AggregateType() AggregateType {
	return TestAggregateRegisterType
}

type TestAggregateRegisterEmpty struct {
	id uuid.UUID
}

func (a *TestAggregateRegisterEmpty) EntityID() uuid.UUID          { return a.id }
func (a *TestAggregateRegisterEmpty) AggregateType() AggregateType { return AggregateType("") }

type TestAggregateRegisterTwice struct {
	id uuid.UUID
}

func (a *TestAggregateRegisterTwice) EntityID() uuid.UUID { return a.id }
func (a *TestAggregateRegisterTwice) AggregateType() AggregateType {
	return TestAggregateRegisterTwiceType
}
