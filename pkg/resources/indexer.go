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

func init() {
	registry.Register(search.KindIndexer, func() prov.Builder {
		return &Indexer{}
	})
}

// Indexer builds the resource that runs the pipeline. It is the only builder
// that references other resources, and it does so by the derived names only.
type Indexer struct{}

func (i *Indexer) Kind() search.Kind { return search.KindIndexer }
func (i *Indexer) DependsOn() []search.Kind {
	return []search.Kind{search.KindDataSource, search.KindSkillset, search.KindIndex}
}
func (i *Indexer) Optional() bool                  { return false }
func (i *Indexer) Enabled(cfg *config.Config) bool { return true }

func (i *Indexer) Build(cfg *config.Config, names naming.Names) (search.Definition, error) {
	indexer := search.Indexer{
		Name:            names.Indexer,
		Description:     "Blob to index pipeline for " + names.Base,
		DataSourceName:  names.DataSource,
		TargetIndexName: names.Index,
		Parameters: &search.IndexingParameters{
			Configuration: map[string]any{
				"dataToExtract":             "contentAndMetadata",
				"parsingMode":               "default",
				"indexedFileNameExtensions": defaultIndexedSuffix,
			},
		},
		// Blob paths are not valid document keys, so they are base64 encoded.
		FieldMappings: []search.FieldMapping{
			{
				SourceFieldName: "metadata_storage_path",
				TargetFieldName: fieldID,
				MappingFunction: &search.FieldMappingFunction{Name: "base64Encode"},
			},
			{SourceFieldName: "metadata_storage_name", TargetFieldName: fieldTitle},
			{SourceFieldName: "metadata_storage_path", TargetFieldName: fieldURL},
			{SourceFieldName: "metadata_storage_last_modified", TargetFieldName: fieldLastModified},
		},
		OutputFieldMappings: []search.FieldMapping{},
		EncryptionKey:       encryptionKey(cfg),
	}

	if cfg.SkillsetEnabled {
		skillset := names.Skillset
		indexer.SkillsetName = &skillset
		indexer.OutputFieldMappings = []search.FieldMapping{
			{SourceFieldName: documentVectorPath, TargetFieldName: contentVectorField},
			{SourceFieldName: documentPagesPath, TargetFieldName: chunksField},
		}
	}

	if cfg.IndexerSchedule != "" {
		indexer.Schedule = &search.IndexingSchedule{Interval: cfg.IndexerSchedule}
	}
	return indexer, nil
}
