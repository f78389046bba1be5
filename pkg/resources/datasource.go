// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package resources

import (
	"github.com/platform-engineering-labs/searchprov/pkg/config"
	"github.com/platform-engineering-labs/searchprov/pkg/naming"
	"github.com/platform-engineering-labs/searchprov/pkg/prov"
	"github.com/platform-engineering-labs/searchprov/pkg/registry"
	"github.com/platform-engineering-labs/searchprov/pkg/search"
)

const dataSourceTypeBlob = "azureblob"

func init() {
	registry.Register(search.KindDataSource, func() prov.Builder {
		return &DataSource{}
	})
}

// DataSource builds the blob data source the indexer reads from.
type DataSource struct{}

func (d *DataSource) Kind() search.Kind               { return search.KindDataSource }
func (d *DataSource) DependsOn() []search.Kind        { return nil }
func (d *DataSource) Optional() bool                  { return false }
func (d *DataSource) Enabled(cfg *config.Config) bool { return true }

func (d *DataSource) Build(cfg *config.Config, names naming.Names) (search.Definition, error) {
	// The connection string is a managed identity reference, so it is derived
	// from the storage account id and never carries a key.
	connectionString := cfg.StorageConnectionString()
	if err := config.Required("storageAccount", connectionString); err != nil {
		return nil, err
	}
	if err := config.Required("container", cfg.Container); err != nil {
		return nil, err
	}

	ds := search.DataSource{
		Name:        names.DataSource,
		Description: "Blob documents for " + names.Base,
		Type:        dataSourceTypeBlob,
		Credentials: search.DataSourceCredentials{
			ConnectionString: connectionString,
		},
		Container: search.DataContainer{
			Name:  cfg.Container,
			Query: cfg.ContainerQuery,
		},
		Identity: identity(cfg),
		DataDeletionDetectionPolicy: &search.DataDeletionDetectionPolicy{
			ODataType: search.ODataNativeBlobSoftDelete,
		},
		EncryptionKey: encryptionKey(cfg),
	}
	return ds, nil
}
