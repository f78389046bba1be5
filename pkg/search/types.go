// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package search

import "time"

// Definition is a desired resource payload.
type Definition interface {
	Kind() Kind
	ResourceName() string
}

// Referencer is a Definition that names other resources it needs to exist.
type Referencer interface {
	Definition
	References() map[Kind]string
}

// OData type discriminators used in the payloads below.
const (
	ODataUserAssignedIdentity      = "#Microsoft.Azure.Search.DataUserAssignedIdentity"
	ODataNativeBlobSoftDelete      = "#Microsoft.Azure.Search.NativeBlobSoftDeleteDeletionDetectionPolicy"
	ODataSplitSkill                = "#Microsoft.Skills.Text.SplitSkill"
	ODataAzureOpenAIEmbeddingSkill = "#Microsoft.Skills.Text.AzureOpenAIEmbeddingSkill"
)

// Identity selects the managed identity the service uses for an outbound connection.
type Identity struct {
	ODataType            string `json:"@odata.type"`
	UserAssignedIdentity string `json:"userAssignedIdentity,omitempty"`
}

// EncryptionKey references a customer-managed key in Key Vault.
type EncryptionKey struct {
	KeyVaultKeyName    string    `json:"keyVaultKeyName"`
	KeyVaultKeyVersion string    `json:"keyVaultKeyVersion,omitempty"`
	KeyVaultURI        string    `json:"keyVaultUri"`
	Identity           *Identity `json:"identity,omitempty"`
}

// DataSource points the service at the blob container holding raw documents.
type DataSource struct {
	Name                        string                       `json:"name"`
	Description                 string                       `json:"description,omitempty"`
	Type                        string                       `json:"type"`
	Credentials                 DataSourceCredentials        `json:"credentials"`
	Container                   DataContainer                `json:"container"`
	Identity                    *Identity                    `json:"identity"`
	DataDeletionDetectionPolicy *DataDeletionDetectionPolicy `json:"dataDeletionDetectionPolicy,omitempty"`
	EncryptionKey               *EncryptionKey               `json:"encryptionKey"`
}

type DataSourceCredentials struct {
	ConnectionString string `json:"connectionString"`
}

type DataContainer struct {
	Name  string `json:"name"`
	Query string `json:"query,omitempty"`
}

type DataDeletionDetectionPolicy struct {
	ODataType string `json:"@odata.type"`
}

func (d DataSource) Kind() Kind           { return KindDataSource }
func (d DataSource) ResourceName() string { return d.Name }

// Skillset is the enrichment pipeline applied before indexing.
type Skillset struct {
	Name          string         `json:"name"`
	Description   string         `json:"description,omitempty"`
	Skills        []Skill        `json:"skills"`
	EncryptionKey *EncryptionKey `json:"encryptionKey"`
}

// Skill covers the properties of the skills this module emits.
type Skill struct {
	ODataType         string        `json:"@odata.type"`
	Name              string        `json:"name,omitempty"`
	Description       string        `json:"description,omitempty"`
	Context           string        `json:"context,omitempty"`
	TextSplitMode     string        `json:"textSplitMode,omitempty"`
	MaximumPageLength int           `json:"maximumPageLength,omitempty"`
	PageOverlapLength int           `json:"pageOverlapLength,omitempty"`
	ResourceURI       string        `json:"resourceUri,omitempty"`
	DeploymentID      string        `json:"deploymentId,omitempty"`
	ModelName         string        `json:"modelName,omitempty"`
	Dimensions        int           `json:"dimensions,omitempty"`
	Inputs            []SkillInput  `json:"inputs"`
	Outputs           []SkillOutput `json:"outputs"`
}

type SkillInput struct {
	Name   string `json:"name"`
	Source string `json:"source"`
}

type SkillOutput struct {
	Name       string `json:"name"`
	TargetName string `json:"targetName,omitempty"`
}

func (s Skillset) Kind() Kind           { return KindSkillset }
func (s Skillset) ResourceName() string { return s.Name }

// Index is the searchable schema.
type Index struct {
	Name          string            `json:"name"`
	Fields        []Field           `json:"fields"`
	VectorSearch  *VectorSearch     `json:"vectorSearch"`
	Semantic      *SemanticSettings `json:"semantic,omitempty"`
	EncryptionKey *EncryptionKey    `json:"encryptionKey"`
}

// Field uses pointers for the attribute flags because the service defaults
// several of them to true.
type Field struct {
	Name                string `json:"name"`
	Type                string `json:"type"`
	Key                 *bool  `json:"key,omitempty"`
	Searchable          *bool  `json:"searchable,omitempty"`
	Filterable          *bool  `json:"filterable,omitempty"`
	Sortable            *bool  `json:"sortable,omitempty"`
	Facetable           *bool  `json:"facetable,omitempty"`
	Retrievable         *bool  `json:"retrievable,omitempty"`
	Analyzer            string `json:"analyzer,omitempty"`
	Dimensions          int    `json:"dimensions,omitempty"`
	VectorSearchProfile string `json:"vectorSearchProfile,omitempty"`
}

type VectorSearch struct {
	Algorithms  []VectorAlgorithm  `json:"algorithms"`
	Profiles    []VectorProfile    `json:"profiles"`
	Vectorizers []VectorVectorizer `json:"vectorizers,omitempty"`
}

type VectorAlgorithm struct {
	Name           string          `json:"name"`
	Kind           string          `json:"kind"`
	HNSWParameters *HNSWParameters `json:"hnswParameters,omitempty"`
}

type HNSWParameters struct {
	M              int    `json:"m"`
	EfConstruction int    `json:"efConstruction"`
	EfSearch       int    `json:"efSearch"`
	Metric         string `json:"metric"`
}

type VectorProfile struct {
	Name       string `json:"name"`
	Algorithm  string `json:"algorithm"`
	Vectorizer string `json:"vectorizer,omitempty"`
}

type VectorVectorizer struct {
	Name                  string                 `json:"name"`
	Kind                  string                 `json:"kind"`
	AzureOpenAIParameters *AzureOpenAIParameters `json:"azureOpenAIParameters,omitempty"`
}

type AzureOpenAIParameters struct {
	ResourceURI  string `json:"resourceUri"`
	DeploymentID string `json:"deploymentId"`
	ModelName    string `json:"modelName,omitempty"`
}

type SemanticSettings struct {
	DefaultConfiguration string                  `json:"defaultConfiguration,omitempty"`
	Configurations       []SemanticConfiguration `json:"configurations"`
}

type SemanticConfiguration struct {
	Name              string                    `json:"name"`
	PrioritizedFields SemanticPrioritizedFields `json:"prioritizedFields"`
}

type SemanticPrioritizedFields struct {
	TitleField                *SemanticField  `json:"titleField,omitempty"`
	PrioritizedContentFields  []SemanticField `json:"prioritizedContentFields,omitempty"`
	PrioritizedKeywordsFields []SemanticField `json:"prioritizedKeywordsFields,omitempty"`
}

type SemanticField struct {
	FieldName string `json:"fieldName"`
}

func (i Index) Kind() Kind           { return KindIndex }
func (i Index) ResourceName() string { return i.Name }

// Indexer runs the pipeline from data source through skillset into the index.
//
// Optional properties are sent as null or [] when unset so that turning a
// setting off is compared against, and cleared on, the live resource.
type Indexer struct {
	Name                string              `json:"name"`
	Description         string              `json:"description,omitempty"`
	DataSourceName      string              `json:"dataSourceName"`
	SkillsetName        *string             `json:"skillsetName"`
	TargetIndexName     string              `json:"targetIndexName"`
	Schedule            *IndexingSchedule   `json:"schedule"`
	Parameters          *IndexingParameters `json:"parameters,omitempty"`
	FieldMappings       []FieldMapping      `json:"fieldMappings"`
	OutputFieldMappings []FieldMapping      `json:"outputFieldMappings"`
	EncryptionKey       *EncryptionKey      `json:"encryptionKey"`
}

type IndexingSchedule struct {
	Interval string `json:"interval"`
}

type IndexingParameters struct {
	Configuration map[string]any `json:"configuration,omitempty"`
}

type FieldMapping struct {
	SourceFieldName string                `json:"sourceFieldName"`
	TargetFieldName string                `json:"targetFieldName,omitempty"`
	MappingFunction *FieldMappingFunction `json:"mappingFunction,omitempty"`
}

type FieldMappingFunction struct {
	Name       string         `json:"name"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

func (i Indexer) Kind() Kind           { return KindIndexer }
func (i Indexer) ResourceName() string { return i.Name }

// References returns the kinds and names the indexer points at.
func (i Indexer) References() map[Kind]string {
	refs := map[Kind]string{
		KindDataSource: i.DataSourceName,
		KindIndex:      i.TargetIndexName,
	}
	if i.SkillsetName != nil && *i.SkillsetName != "" {
		refs[KindSkillset] = *i.SkillsetName
	}
	return refs
}

// IndexerStatus is the execution status returned by GET /indexers('name')/status.
type IndexerStatus struct {
	Status     string                  `json:"status"`
	LastResult *IndexerExecutionResult `json:"lastResult,omitempty"`
}

type IndexerExecutionResult struct {
	Status         string     `json:"status"`
	ErrorMessage   string     `json:"errorMessage,omitempty"`
	StartTime      *time.Time `json:"startTime,omitempty"`
	EndTime        *time.Time `json:"endTime,omitempty"`
	ItemsProcessed int        `json:"itemsProcessed"`
	ItemsFailed    int        `json:"itemsFailed"`
}
