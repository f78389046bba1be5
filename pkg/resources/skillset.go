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
	registry.Register(search.KindSkillset, func() prov.Builder {
		return &Skillset{}
	})
}

// Skillset builds the enrichment pipeline: the document is split into pages
// and its content is embedded with Azure OpenAI.
type Skillset struct{}

func (s *Skillset) Kind() search.Kind               { return search.KindSkillset }
func (s *Skillset) DependsOn() []search.Kind        { return nil }
func (s *Skillset) Optional() bool                  { return true }
func (s *Skillset) Enabled(cfg *config.Config) bool { return cfg.SkillsetEnabled }

func (s *Skillset) Build(cfg *config.Config, names naming.Names) (search.Definition, error) {
	if err := config.Required("openaiEndpoint", cfg.OpenAIEndpoint); err != nil {
		return nil, err
	}
	if err := config.Required("embeddingDeployment", cfg.EmbeddingDeployment); err != nil {
		return nil, err
	}

	split := search.Skill{
		ODataType:         search.ODataSplitSkill,
		Name:              splitSkillName,
		Description:       "Split content into pages",
		Context:           "/document",
		TextSplitMode:     "pages",
		MaximumPageLength: maximumPageLength,
		PageOverlapLength: pageOverlapLength,
		Inputs: []search.SkillInput{
			{Name: "text", Source: documentContentPath},
		},
		Outputs: []search.SkillOutput{
			{Name: splitOutputName, TargetName: "pages"},
		},
	}

	embedding := search.Skill{
		ODataType:    search.ODataAzureOpenAIEmbeddingSkill,
		Name:         embeddingSkillName,
		Description:  "Embed document content",
		Context:      "/document",
		ResourceURI:  cfg.OpenAIEndpoint,
		DeploymentID: cfg.EmbeddingDeployment,
		ModelName:    cfg.EmbeddingModel,
		Inputs: []search.SkillInput{
			{Name: "text", Source: documentContentPath},
		},
		Outputs: []search.SkillOutput{
			{Name: embeddingOutputName, TargetName: contentVectorField},
		},
	}
	if supportsDimensions(cfg.EmbeddingModel) {
		embedding.Dimensions = cfg.EmbeddingDimensions
	}

	return search.Skillset{
		Name:          names.Skillset,
		Description:   "Chunking and embedding for " + names.Base,
		Skills:        []search.Skill{split, embedding},
		EncryptionKey: encryptionKey(cfg),
	}, nil
}
