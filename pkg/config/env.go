// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment variable read by ApplyEnv.
const EnvPrefix = "SEARCHPROV_"

// ApplyEnv overlays environment variables onto c. Values from envFile are used
// when the variable is not set in the process environment. A missing envFile is
// not an error.
func (c *Config) ApplyEnv(envFile string) error {
	fileVars := map[string]string{}
	if envFile != "" {
		vars, err := godotenv.Read(envFile)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
		if vars != nil {
			fileVars = vars
		}
	}
	e := envReader{file: fileVars}

	e.str("BASE_NAME", &c.BaseName)
	e.str("SEARCH_SERVICE", &c.SearchService)
	e.str("SEARCH_ENDPOINT", &c.SearchEndpoint)
	e.str("SEARCH_API_KEY", &c.SearchAPIKey)
	e.str("API_VERSION", &c.APIVersion)
	e.str("OPENAI_ENDPOINT", &c.OpenAIEndpoint)
	e.str("EMBEDDING_DEPLOYMENT", &c.EmbeddingDeployment)
	e.str("EMBEDDING_MODEL", &c.EmbeddingModel)
	e.int("EMBEDDING_DIMENSIONS", &c.EmbeddingDimensions)
	e.str("SUBSCRIPTION_ID", &c.SubscriptionId)
	e.str("RESOURCE_GROUP", &c.ResourceGroup)
	e.str("STORAGE_ACCOUNT", &c.StorageAccount)
	e.str("CONTAINER", &c.Container)
	e.str("CONTAINER_QUERY", &c.ContainerQuery)
	e.bool("SKILLSET_ENABLED", &c.SkillsetEnabled)
	e.str("USER_ASSIGNED_IDENTITY", &c.UserAssignedIdentity)
	e.str("KEY_VAULT_NAME", &c.EncryptionKey.VaultName)
	e.str("KEY_VAULT_URI", &c.EncryptionKey.VaultURI)
	e.str("ENCRYPTION_KEY_NAME", &c.EncryptionKey.KeyName)
	e.str("ENCRYPTION_KEY_VERSION", &c.EncryptionKey.KeyVersion)
	e.str("INDEXER_SCHEDULE", &c.IndexerSchedule)
	e.int("RETRY_ATTEMPTS", &c.Retry.Attempts)
	e.duration("RETRY_DELAY", &c.Retry.Delay)
	e.duration("RETRY_MAX_DELAY", &c.Retry.MaxDelay)
	e.float("RETRY_FACTOR", &c.Retry.Factor)
	e.duration("TIMEOUT", &c.Timeout)
	e.str("DIFF_MODE", &c.DiffMode)
	e.bool("PREFLIGHT", &c.Preflight)
	e.str("LOG_LEVEL", &c.Log.Level)
	e.str("LOG_FORMAT", &c.Log.Format)

	// The subscription is commonly exported for the Azure CLI already.
	if c.SubscriptionId == "" {
		c.SubscriptionId = os.Getenv("AZURE_SUBSCRIPTION_ID")
	}

	return e.err
}

type envReader struct {
	file map[string]string
	err  error
}

func (e *envReader) lookup(key string) (string, bool) {
	key = EnvPrefix + key
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v, true
	}
	v, ok := e.file[key]
	return v, ok && v != ""
}

func (e *envReader) fail(key string, err error) {
	if e.err == nil {
		e.err = &ConfigurationError{Field: EnvPrefix + key, Reason: err.Error()}
	}
}

func (e *envReader) str(key string, dst *string) {
	if v, ok := e.lookup(key); ok {
		*dst = v
	}
}

func (e *envReader) int(key string, dst *int) {
	if v, ok := e.lookup(key); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			e.fail(key, err)
			return
		}
		*dst = n
	}
}

func (e *envReader) float(key string, dst *float64) {
	if v, ok := e.lookup(key); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			e.fail(key, err)
			return
		}
		*dst = f
	}
}

func (e *envReader) bool(key string, dst *bool) {
	if v, ok := e.lookup(key); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			e.fail(key, err)
			return
		}
		*dst = b
	}
}

func (e *envReader) duration(key string, dst *time.Duration) {
	if v, ok := e.lookup(key); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			e.fail(key, err)
			return
		}
		*dst = d
	}
}
