// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package registry

import (
	"github.com/platform-engineering-labs/searchprov/pkg/prov"
	"github.com/platform-engineering-labs/searchprov/pkg/search"
)

// BuilderFactory is a function that creates a Builder instance.
type BuilderFactory func() prov.Builder

// registry stores builder factories for each resource kind.
var registry = make(map[search.Kind]BuilderFactory)

// Register registers a builder factory for a resource kind.
func Register(kind search.Kind, factory BuilderFactory) {
	registry[kind] = factory
}

// Get returns a Builder instance for the given resource kind.
func Get(kind search.Kind) prov.Builder {
	factory, ok := registry[kind]
	if !ok {
		return nil
	}
	return factory()
}

// HasBuilder returns true if a builder is registered for the given resource kind.
func HasBuilder(kind search.Kind) bool {
	_, ok := registry[kind]
	return ok
}

// Ordered returns the registered builders in provisioning order.
func Ordered() []prov.Builder {
	builders := make([]prov.Builder, 0, len(search.ProvisionOrder))
	for _, kind := range search.ProvisionOrder {
		if b := Get(kind); b != nil {
			builders = append(builders, b)
		}
	}
	return builders
}
