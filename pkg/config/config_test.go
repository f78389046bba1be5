// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := Defaults()
	cfg.BaseName = "contoso-docs"
	cfg.SearchService = "contoso-search"
	cfg.OpenAIEndpoint = "https://contoso-openai.openai.azure.com/"
	cfg.SubscriptionId = "00000000-0000-0000-0000-000000000001"
	cfg.ResourceGroup = "rg-search"
	cfg.StorageAccount = "contosodocs"
	cfg.Container = "documents"
	return cfg
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestValidate_Valid(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidateSearch(t *testing.T) {
	cfg := Defaults()
	cfg.SearchEndpoint = "http://127.0.0.1:8080/"
	require.NoError(t, cfg.ValidateSearch())
	assert.Equal(t, "http://127.0.0.1:8080", cfg.SearchURL())

	cfg = Defaults()
	var cfgErr *ConfigurationError
	require.True(t, errors.As(cfg.ValidateSearch(), &cfgErr))
	assert.Equal(t, "searchService", cfgErr.Field)
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		field  string
		mutate func(*Config)
	}{
		{"searchService", func(c *Config) { c.SearchService = "" }},
		{"searchEndpoint", func(c *Config) { c.SearchService = ""; c.SearchEndpoint = "not a url" }},
		{"openaiEndpoint", func(c *Config) { c.OpenAIEndpoint = "" }},
		{"openaiEndpoint", func(c *Config) { c.OpenAIEndpoint = "contoso-openai" }},
		{"embeddingDimensions", func(c *Config) { c.EmbeddingDimensions = 0 }},
		{"subscriptionId", func(c *Config) { c.SubscriptionId = "" }},
		{"resourceGroup", func(c *Config) { c.ResourceGroup = " " }},
		{"storageAccount", func(c *Config) { c.StorageAccount = "" }},
		{"storageAccount", func(c *Config) { c.StorageAccount = "Contoso_Docs" }},
		{"container", func(c *Config) { c.Container = "" }},
		{"encryptionKey.vaultName", func(c *Config) { c.EncryptionKey.KeyName = "cmk" }},
		{"retry.attempts", func(c *Config) { c.Retry.Attempts = 0 }},
		{"retry.delay", func(c *Config) { c.Retry.Delay = 0 }},
		{"retry.maxDelay", func(c *Config) { c.Retry.MaxDelay = time.Millisecond }},
		{"retry.factor", func(c *Config) { c.Retry.Factor = 0.5 }},
		{"timeout", func(c *Config) { c.Timeout = 0 }},
		{"diffMode", func(c *Config) { c.DiffMode = "patch" }},
	}
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)

			var cfgErr *ConfigurationError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestValidate_WithoutSkillsetSkipsEmbedding(t *testing.T) {
	cfg := validConfig()
	cfg.SkillsetEnabled = false
	cfg.OpenAIEndpoint = ""
	cfg.EmbeddingDeployment = ""
	cfg.EmbeddingDimensions = 0
	require.NoError(t, cfg.Validate())

	cfg.SkillsetEnabled = true
	var cfgErr *ConfigurationError
	require.True(t, errors.As(cfg.Validate(), &cfgErr))
	assert.Equal(t, "openaiEndpoint", cfgErr.Field)
}

func TestToAzureCredential(t *testing.T) {
	cred, err := validConfig().ToAzureCredential()
	require.NoError(t, err)
	assert.NotNil(t, cred)
}

func TestDerivedValues(t *testing.T) {
	cfg := validConfig()

	assert.Equal(t, "https://contoso-search.search.windows.net", cfg.SearchURL())
	assert.Equal(t,
		"ResourceId=/subscriptions/00000000-0000-0000-0000-000000000001/resourceGroups/rg-search/providers/Microsoft.Storage/storageAccounts/contosodocs;",
		cfg.StorageConnectionString())
	assert.Empty(t, cfg.IdentityID())

	cfg.SearchEndpoint = "http://127.0.0.1:8080/"
	assert.Equal(t, "http://127.0.0.1:8080", cfg.SearchURL())

	cfg.UserAssignedIdentity = "search-reader"
	assert.Equal(t,
		"/subscriptions/00000000-0000-0000-0000-000000000001/resourceGroups/rg-search/providers/Microsoft.ManagedIdentity/userAssignedIdentities/search-reader",
		cfg.IdentityID())

	cfg.UserAssignedIdentity = "/subscriptions/x/resourceGroups/y/providers/Microsoft.ManagedIdentity/userAssignedIdentities/z"
	assert.Equal(t, cfg.UserAssignedIdentity, cfg.IdentityID())

	cfg.EncryptionKey = EncryptionKey{VaultName: "contoso-kv", KeyName: "cmk"}
	assert.Equal(t, "https://contoso-kv.vault.azure.net/", cfg.EncryptionKey.URI())
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, "searchprov.yaml", `
baseName: contoso-docs
searchService: contoso-search
openaiEndpoint: https://contoso-openai.openai.azure.com/
subscriptionId: sub-1
resourceGroup: rg-search
storageAccount: contosodocs
container: documents
skillsetEnabled: false
timeout: 45s
retry:
  attempts: 5
  delay: 250ms
diffMode: document
`)

	cfg, err := Load(path, "")
	require.NoError(t, err)

	assert.Equal(t, "contoso-docs", cfg.BaseName)
	assert.False(t, cfg.SkillsetEnabled)
	assert.Equal(t, 45*time.Second, cfg.Timeout)
	assert.Equal(t, 5, cfg.Retry.Attempts)
	assert.Equal(t, 250*time.Millisecond, cfg.Retry.Delay)
	// untouched defaults survive the overlay
	assert.Equal(t, 30*time.Second, cfg.Retry.MaxDelay)
	assert.Equal(t, DefaultAPIVersion, cfg.APIVersion)
	assert.Equal(t, DiffDocument, cfg.DiffMode)
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), "")
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	envFile := writeFile(t, ".env", "SEARCHPROV_BASE_NAME=from-file\nSEARCHPROV_CONTAINER=docs\nSEARCHPROV_RETRY_ATTEMPTS=4\n")
	t.Setenv("SEARCHPROV_BASE_NAME", "from-env")
	t.Setenv("SEARCHPROV_TIMEOUT", "10s")
	t.Setenv("SEARCHPROV_SKILLSET_ENABLED", "false")

	cfg := Defaults()
	require.NoError(t, cfg.ApplyEnv(envFile))

	assert.Equal(t, "from-env", cfg.BaseName)
	assert.Equal(t, "docs", cfg.Container)
	assert.Equal(t, 4, cfg.Retry.Attempts)
	assert.Equal(t, 10*time.Second, cfg.Timeout)
	assert.False(t, cfg.SkillsetEnabled)
}

func TestApplyEnv_MissingFileIsIgnored(t *testing.T) {
	cfg := Defaults()
	assert.NoError(t, cfg.ApplyEnv(filepath.Join(t.TempDir(), ".env")))
}

func TestApplyEnv_BadValue(t *testing.T) {
	t.Setenv("SEARCHPROV_RETRY_ATTEMPTS", "three")

	err := Defaults().ApplyEnv("")
	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "SEARCHPROV_RETRY_ATTEMPTS", cfgErr.Field)
}
