// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package config

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"gopkg.in/yaml.v3"
)

const (
	DefaultAPIVersion          = "2024-07-01"
	DefaultEmbeddingDeployment = "text-embedding-ada-002"
	DefaultEmbeddingModel      = "text-embedding-ada-002"
	DefaultEmbeddingDimensions = 1536

	// DiffFields compares only the values present in the desired definition.
	DiffFields = "fields"
	// DiffDocument compares whole documents.
	DiffDocument = "document"
)

var storageAccountPattern = regexp.MustCompile(`^[a-z0-9]{3,24}$`)

// Config is the provisioning input. It is read-only once validated.
type Config struct {
	BaseName string `yaml:"baseName"`

	SearchService  string `yaml:"searchService"`
	SearchEndpoint string `yaml:"searchEndpoint"`
	SearchAPIKey   string `yaml:"searchApiKey"`
	APIVersion     string `yaml:"apiVersion"`

	OpenAIEndpoint      string `yaml:"openaiEndpoint"`
	EmbeddingDeployment string `yaml:"embeddingDeployment"`
	EmbeddingModel      string `yaml:"embeddingModel"`
	EmbeddingDimensions int    `yaml:"embeddingDimensions"`

	SubscriptionId string `yaml:"subscriptionId"`
	ResourceGroup  string `yaml:"resourceGroup"`
	StorageAccount string `yaml:"storageAccount"`
	Container      string `yaml:"container"`
	ContainerQuery string `yaml:"containerQuery"`

	SkillsetEnabled      bool          `yaml:"skillsetEnabled"`
	UserAssignedIdentity string        `yaml:"userAssignedIdentity"`
	EncryptionKey        EncryptionKey `yaml:"encryptionKey"`
	IndexerSchedule      string        `yaml:"indexerSchedule"`

	Retry     RetryConfig   `yaml:"retry"`
	Timeout   time.Duration `yaml:"timeout"`
	DiffMode  string        `yaml:"diffMode"`
	Preflight bool          `yaml:"preflight"`
	DryRun    bool          `yaml:"-"`

	Log LogConfig `yaml:"log"`
}

// EncryptionKey names a customer-managed key used to encrypt the search resources.
type EncryptionKey struct {
	VaultName  string `yaml:"vaultName"`
	VaultURI   string `yaml:"vaultUri"`
	KeyName    string `yaml:"keyName"`
	KeyVersion string `yaml:"keyVersion"`
}

// Enabled reports whether a key is configured.
func (k EncryptionKey) Enabled() bool {
	return k.KeyName != ""
}

// URI returns the vault URI, deriving it from the vault name when not set.
func (k EncryptionKey) URI() string {
	if k.VaultURI != "" {
		return k.VaultURI
	}
	if k.VaultName == "" {
		return ""
	}
	return fmt.Sprintf("https://%s.vault.azure.net/", k.VaultName)
}

// RetryConfig bounds the synchronizer's backoff on transient failures.
type RetryConfig struct {
	Attempts int           `yaml:"attempts"`
	Delay    time.Duration `yaml:"delay"`
	MaxDelay time.Duration `yaml:"maxDelay"`
	Factor   float64       `yaml:"factor"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Defaults returns a Config with every optional setting filled in.
func Defaults() *Config {
	return &Config{
		APIVersion:          DefaultAPIVersion,
		EmbeddingDeployment: DefaultEmbeddingDeployment,
		EmbeddingModel:      DefaultEmbeddingModel,
		EmbeddingDimensions: DefaultEmbeddingDimensions,
		SkillsetEnabled:     true,
		Retry: RetryConfig{
			Attempts: 3,
			Delay:    time.Second,
			MaxDelay: 30 * time.Second,
			Factor:   2,
		},
		Timeout:  2 * time.Minute,
		DiffMode: DiffFields,
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadFile overlays the YAML file at path onto c.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// Load builds a Config from defaults, an optional YAML file and the environment.
// envFile may be empty or missing.
func Load(path, envFile string) (*Config, error) {
	cfg := Defaults()
	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(envFile); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SearchURL returns the search service endpoint.
func (c *Config) SearchURL() string {
	if c.SearchEndpoint != "" {
		return strings.TrimRight(c.SearchEndpoint, "/")
	}
	if c.SearchService == "" {
		return ""
	}
	return fmt.Sprintf("https://%s.search.windows.net", c.SearchService)
}

// StorageAccountID returns the ARM id of the storage account holding the documents.
func (c *Config) StorageAccountID() string {
	return fmt.Sprintf("/subscriptions/%s/resourceGroups/%s/providers/Microsoft.Storage/storageAccounts/%s",
		c.SubscriptionId, c.ResourceGroup, c.StorageAccount)
}

// StorageConnectionString returns the managed identity connection string for the data source.
func (c *Config) StorageConnectionString() string {
	if c.SubscriptionId == "" || c.ResourceGroup == "" || c.StorageAccount == "" {
		return ""
	}
	return "ResourceId=" + c.StorageAccountID() + ";"
}

// IdentityID returns the ARM id of the user-assigned identity, or "" if none is configured.
func (c *Config) IdentityID() string {
	if c.UserAssignedIdentity == "" {
		return ""
	}
	if strings.HasPrefix(c.UserAssignedIdentity, "/") {
		return c.UserAssignedIdentity
	}
	return fmt.Sprintf("/subscriptions/%s/resourceGroups/%s/providers/Microsoft.ManagedIdentity/userAssignedIdentities/%s",
		c.SubscriptionId, c.ResourceGroup, c.UserAssignedIdentity)
}

// ValidateSearch checks the settings needed to reach the search service.
// Status and teardown need nothing else.
func (c *Config) ValidateSearch() error {
	if c.SearchURL() == "" {
		return &ConfigurationError{Field: "searchService", Reason: "search service name or endpoint is required"}
	}
	if err := absoluteURL("searchEndpoint", c.SearchURL()); err != nil {
		return err
	}
	if c.APIVersion == "" {
		return &ConfigurationError{Field: "apiVersion", Reason: "is required"}
	}
	return nil
}

// Validate checks every field the provisioning run depends on.
func (c *Config) Validate() error {
	if err := c.ValidateSearch(); err != nil {
		return err
	}
	if c.SkillsetEnabled {
		if err := c.validateEmbedding(); err != nil {
			return err
		}
	}
	for _, f := range []struct{ field, value string }{
		{"subscriptionId", c.SubscriptionId},
		{"resourceGroup", c.ResourceGroup},
		{"storageAccount", c.StorageAccount},
		{"container", c.Container},
	} {
		if err := Required(f.field, f.value); err != nil {
			return err
		}
	}
	if !storageAccountPattern.MatchString(c.StorageAccount) {
		return &ConfigurationError{Field: "storageAccount", Reason: "must be 3-24 lowercase letters and digits"}
	}
	if c.EncryptionKey.Enabled() && c.EncryptionKey.URI() == "" {
		return &ConfigurationError{Field: "encryptionKey.vaultName", Reason: "vault name or URI is required when a key name is set"}
	}
	if c.Retry.Attempts < 1 {
		return &ConfigurationError{Field: "retry.attempts", Reason: "must be at least 1"}
	}
	if c.Retry.Delay <= 0 {
		return &ConfigurationError{Field: "retry.delay", Reason: "must be positive"}
	}
	if c.Retry.MaxDelay < c.Retry.Delay {
		return &ConfigurationError{Field: "retry.maxDelay", Reason: "must not be smaller than retry.delay"}
	}
	if c.Retry.Factor < 1 {
		return &ConfigurationError{Field: "retry.factor", Reason: "must be at least 1"}
	}
	if c.Timeout <= 0 {
		return &ConfigurationError{Field: "timeout", Reason: "must be positive"}
	}
	switch c.DiffMode {
	case DiffFields, DiffDocument:
	default:
		return &ConfigurationError{Field: "diffMode", Reason: fmt.Sprintf("must be %q or %q", DiffFields, DiffDocument)}
	}
	return nil
}

// validateEmbedding checks the Azure OpenAI settings the skillset and the
// index vectorizer use.
func (c *Config) validateEmbedding() error {
	if err := Required("openaiEndpoint", c.OpenAIEndpoint); err != nil {
		return err
	}
	if err := absoluteURL("openaiEndpoint", c.OpenAIEndpoint); err != nil {
		return err
	}
	if err := Required("embeddingDeployment", c.EmbeddingDeployment); err != nil {
		return err
	}
	if c.EmbeddingDimensions <= 0 {
		return &ConfigurationError{Field: "embeddingDimensions", Reason: "must be positive"}
	}
	return nil
}

// Required returns a ConfigurationError when value is blank.
func Required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return &ConfigurationError{Field: field, Reason: "is required"}
	}
	return nil
}

func absoluteURL(field, value string) error {
	u, err := url.Parse(value)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return &ConfigurationError{Field: field, Reason: fmt.Sprintf("%q is not a valid absolute URL", value)}
	}
	return nil
}

// ToAzureCredential creates Azure credentials using the default credential chain.
// This uses DefaultAzureCredential which tries multiple authentication methods:
// - Environment variables (AZURE_CLIENT_ID, AZURE_CLIENT_SECRET, AZURE_TENANT_ID)
// - Managed Identity
// - Azure CLI
// - Azure PowerShell
// - etc.
func (c *Config) ToAzureCredential() (azcore.TokenCredential, error) {
	return azidentity.NewDefaultAzureCredential(nil)
}
