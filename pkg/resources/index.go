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

// Field names of the index schema. The indexer maps blob metadata onto them.
const (
	fieldID           = "id"
	fieldContent      = "content"
	fieldTitle        = "title"
	fieldURL          = "url"
	fieldLastModified = "lastModified"
)

func init() {
	registry.Register(search.KindIndex, func() prov.Builder {
		return &Index{}
	})
}

// Index builds the searchable schema. When the skillset is enabled the index
// also gets the chunk and vector fields it populates.
type Index struct{}

// DependsOn puts the skillset first because it fills the vector field.
func (i *Index) DependsOn() []search.Kind        { return []search.Kind{search.KindSkillset} }
func (i *Index) Kind() search.Kind               { return search.KindIndex }
func (i *Index) Optional() bool                  { return false }
func (i *Index) Enabled(cfg *config.Config) bool { return true }

func (i *Index) Build(cfg *config.Config, names naming.Names) (search.Definition, error) {
	fields := []search.Field{
		{Name: fieldID, Type: "Edm.String", Key: boolPtr(true), Filterable: boolPtr(true), Searchable: boolPtr(false)},
		{Name: fieldContent, Type: "Edm.String", Searchable: boolPtr(true), Analyzer: "standard.lucene"},
		{Name: fieldTitle, Type: "Edm.String", Searchable: boolPtr(true), Filterable: boolPtr(true), Sortable: boolPtr(true)},
		{Name: fieldURL, Type: "Edm.String", Searchable: boolPtr(false), Filterable: boolPtr(true)},
		{Name: fieldLastModified, Type: "Edm.DateTimeOffset", Filterable: boolPtr(true), Sortable: boolPtr(true)},
	}

	index := search.Index{
		Name:   names.Index,
		Fields: fields,
		Semantic: &search.SemanticSettings{
			DefaultConfiguration: semanticConfigName,
			Configurations: []search.SemanticConfiguration{
				{
					Name: semanticConfigName,
					PrioritizedFields: search.SemanticPrioritizedFields{
						TitleField:               &search.SemanticField{FieldName: fieldTitle},
						PrioritizedContentFields: []search.SemanticField{{FieldName: fieldContent}},
					},
				},
			},
		},
		EncryptionKey: encryptionKey(cfg),
	}

	if !cfg.SkillsetEnabled {
		return index, nil
	}

	// Vector search needs the embedding endpoint for query-time vectorization.
	if err := config.Required("openaiEndpoint", cfg.OpenAIEndpoint); err != nil {
		return nil, err
	}
	if cfg.EmbeddingDimensions <= 0 {
		return nil, &config.ConfigurationError{Field: "embeddingDimensions", Reason: "must be positive"}
	}

	index.Fields = append(index.Fields,
		search.Field{Name: chunksField, Type: "Collection(Edm.String)", Searchable: boolPtr(true)},
		search.Field{
			Name:                contentVectorField,
			Type:                "Collection(Edm.Single)",
			Searchable:          boolPtr(true),
			Dimensions:          cfg.EmbeddingDimensions,
			VectorSearchProfile: vectorProfileName,
		},
	)
	index.VectorSearch = &search.VectorSearch{
		Algorithms: []search.VectorAlgorithm{
			{
				Name: vectorAlgorithmName,
				Kind: "hnsw",
				HNSWParameters: &search.HNSWParameters{
					M:              4,
					EfConstruction: 400,
					EfSearch:       500,
					Metric:         "cosine",
				},
			},
		},
		Profiles: []search.VectorProfile{
			{Name: vectorProfileName, Algorithm: vectorAlgorithmName, Vectorizer: vectorizerName},
		},
		Vectorizers: []search.VectorVectorizer{
			{
				Name: vectorizerName,
				Kind: "azureOpenAI",
				AzureOpenAIParameters: &search.AzureOpenAIParameters{
					ResourceURI:  cfg.OpenAIEndpoint,
					DeploymentID: cfg.EmbeddingDeployment,
					ModelName:    cfg.EmbeddingModel,
				},
			},
		},
	}
	index.Semantic.Configurations[0].PrioritizedFields.PrioritizedKeywordsFields = []search.SemanticField{{FieldName: chunksField}}
	return index, nil
}
