// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package search

import (
	"context"
	"encoding/json"
)

// Resource is a resource as stored by the service.
type Resource struct {
	Kind Kind
	Name string
	ETag string
	Body json.RawMessage
}

// Service is the subset of the search management API the provisioner needs.
// Get and Delete return a *RemoteError with ReasonNotFound when the resource
// does not exist.
type Service interface {
	Get(ctx context.Context, kind Kind, name string) (*Resource, error)
	// Create fails with ReasonResourceConflict when the resource already exists.
	Create(ctx context.Context, kind Kind, name string, body json.RawMessage) (*Resource, error)
	// Update replaces the resource. An empty etag disables the precondition.
	Update(ctx context.Context, kind Kind, name string, body json.RawMessage, etag string) (*Resource, error)
	Delete(ctx context.Context, kind Kind, name string) error
	IndexerStatus(ctx context.Context, name string) (*IndexerStatus, error)
}

// Encode renders a definition as the JSON body sent to the service.
func Encode(def Definition) (json.RawMessage, error) {
	return json.Marshal(def)
}
