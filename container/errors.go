// Copyright (c) 2025-present deep.rent GmbH (https://deep.rent)
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

package container

import (
	"fmt"
)

// ConfigError signals an illegal registration, such as installing a second
// provider for a resource that already has one. It is reported before any
// instance is requested, so the client can correct the configuration.
type ConfigError struct {
	ID     ID
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration of %s: %s", e.ID, e.Reason)
}

// InstantiationError signals that a request for an instance failed: a
// provider, injector, or initializer returned an error or panicked, a
// dependency was never declared, or the dependency graph contains a cycle
// that no injector can break. The originating failure, if any, is preserved
// as the chained cause.
type InstantiationError struct {
	ID     ID
	Reason string
	Cause  error
}

func (e *InstantiationError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("instantiation of %s: %s", e.ID, e.Reason)
	}
	return fmt.Sprintf("instantiation of %s: %s: %v", e.ID, e.Reason, e.Cause)
}

func (e *InstantiationError) Unwrap() error { return e.Cause }

// DisposalError signals that an asset could not be disposed cleanly: its
// disposer failed, or no manager was found for its resource. Disposal of the
// remaining assets in the same context continues regardless.
type DisposalError struct {
	ID     ID
	Reason string
	Cause  error
}

func (e *DisposalError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("disposal of %s: %s", e.ID, e.Reason)
	}
	return fmt.Sprintf("disposal of %s: %s: %v", e.ID, e.Reason, e.Cause)
}

func (e *DisposalError) Unwrap() error { return e.Cause }

// InactiveScopeError signals a request against a scope with no live
// activation. The client recovers by entering the scope first.
type InactiveScopeError struct {
	Scope string
}

func (e *InactiveScopeError) Error() string {
	return fmt.Sprintf("scope %q is not active", e.Scope)
}

// Failure reasons shared between the engine and the checker.
const (
	reasonCycle      = "cyclical dependency"
	reasonUndeclared = "undeclared resource"
	reasonNoProvider = "no provider registered"
)
