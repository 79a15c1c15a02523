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

// Package eventfold is an event sourcing toolkit built around a small set of
// contracts: aggregates that derive their state from an ordered event stream,
// an event store with optimistic concurrency, a snapshot store that bounds
// replay cost and a checkpoint store for resumable stream consumers.
//
// The root package contains only the contracts and shared types. Store
// implementations live in subpackages (eventstore/..., snapshotstore/...,
// checkpointstore/...) and the aggregate orchestration in
// aggregatestore/events.
package eventfold
