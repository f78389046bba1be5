// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package resources

import (
	"strings"

	"github.com/platform-engineering-labs/searchprov/pkg/config"
	"github.com/platform-engineering-labs/searchprov/pkg/search"
)

// Names of the sub-objects the builders wire together.
const (
	vectorAlgorithmName  = "hnsw-default"
	vectorProfileName    = "vector-profile-default"
	vectorizerName       = "openai-vectorizer"
	semanticConfigName   = "semantic-default"
	embeddingSkillName   = "content-embedding"
	splitSkillName       = "content-split"
	contentVectorField   = "contentVector"
	chunksField          = "chunks"
	embeddingOutputName  = "embedding"
	splitOutputName      = "textItems"
	documentContentPath  = "/document/content"
	documentPagesPath    = "/document/pages"
	documentVectorPath   = "/document/" + contentVectorField
	maximumPageLength    = 2000
	pageOverlapLength    = 500
	defaultIndexedSuffix = ".pdf"
)

// encryptionKey converts the configured customer-managed key to its wire form.
// Returns nil when no key is configured.
func encryptionKey(cfg *config.Config) *search.EncryptionKey {
	if !cfg.EncryptionKey.Enabled() {
		return nil
	}
	key := &search.EncryptionKey{
		KeyVaultKeyName:    cfg.EncryptionKey.KeyName,
		KeyVaultKeyVersion: cfg.EncryptionKey.KeyVersion,
		KeyVaultURI:        cfg.EncryptionKey.URI(),
	}
	// The service reaches Key Vault with the same identity it uses for storage.
	key.Identity = identity(cfg)
	return key
}

// identity returns the user-assigned identity reference, or nil to use the
// service's system-assigned identity.
func identity(cfg *config.Config) *search.Identity {
	id := cfg.IdentityID()
	if id == "" {
		return nil
	}
	return &search.Identity{
		ODataType:            search.ODataUserAssignedIdentity,
		UserAssignedIdentity: id,
	}
}

// supportsDimensions reports whether the embedding model accepts a dimensions
// parameter. Only the text-embedding-3 family does.
func supportsDimensions(model string) bool {
	return strings.HasPrefix(strings.ToLower(model), "text-embedding-3")
}

func boolPtr(b bool) *bool {
	return &b
}
