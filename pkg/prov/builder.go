// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package prov

import (
	"github.com/platform-engineering-labs/searchprov/pkg/config"
	"github.com/platform-engineering-labs/searchprov/pkg/naming"
	"github.com/platform-engineering-labs/searchprov/pkg/search"
)

// Builder is the interface that every search resource kind must implement.
// Builders are pure: Build reads cfg and names and performs no I/O.
type Builder interface {
	Kind() search.Kind
	// DependsOn lists the kinds that must be converged before this one.
	DependsOn() []search.Kind
	// Optional reports whether the kind may be left out of a run.
	Optional() bool
	// Enabled reports whether cfg asks for this kind. Non-optional kinds are always enabled.
	Enabled(cfg *config.Config) bool
	Build(cfg *config.Config, names naming.Names) (search.Definition, error)
}
