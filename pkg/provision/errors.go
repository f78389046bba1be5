// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package provision

import (
	"fmt"

	"github.com/platform-engineering-labs/searchprov/pkg/search"
	"github.com/platform-engineering-labs/searchprov/pkg/synchronizer"
)

// DependencyNotReadyError means a step was reached while a resource it depends
// on had not converged. Strict ordering makes this an internal invariant
// violation rather than a user error.
type DependencyNotReadyError struct {
	Kind       search.Kind
	Dependency search.Kind
	// Name is the referenced resource name, empty for ordering checks.
	Name string
	// Outcome of the dependency, empty when it never ran.
	Outcome synchronizer.Outcome
}

func (e *DependencyNotReadyError) Error() string {
	if e.Name != "" {
		outcome := e.Outcome
		if outcome == "" {
			outcome = "not synchronized"
		}
		return fmt.Sprintf("%s cannot be synchronized: referenced %s %q is %s", e.Kind.Label(), e.Dependency.Label(), e.Name, outcome)
	}
	if e.Outcome == "" {
		return fmt.Sprintf("%s cannot be synchronized: %s has not been synchronized", e.Kind.Label(), e.Dependency.Label())
	}
	return fmt.Sprintf("%s cannot be synchronized: %s is %s", e.Kind.Label(), e.Dependency.Label(), e.Outcome)
}
