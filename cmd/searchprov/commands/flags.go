// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package commands

import (
	"github.com/urfave/cli/v3"

	"github.com/platform-engineering-labs/searchprov/pkg/config"
)

func commonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "config",
			Usage: "YAML configuration file",
		},
		&cli.StringFlag{
			Name:  "env",
			Usage: "Environment variable file",
			Value: ".env",
		},
		&cli.StringFlag{
			Name:  "base-index-name",
			Usage: "Base name the four resource names are derived from",
		},
		&cli.StringFlag{
			Name:  "aisearch-name",
			Usage: "Search service name",
		},
		&cli.StringFlag{
			Name:  "search-endpoint",
			Usage: "Search service endpoint, overrides --aisearch-name",
		},
		&cli.StringFlag{
			Name:  "api-key",
			Usage: "Search admin API key (default: Microsoft Entra authentication)",
		},
		&cli.StringFlag{
			Name:  "openai-api-base",
			Usage: "Azure OpenAI endpoint used for embeddings",
		},
		&cli.StringFlag{
			Name:  "embedding-deployment",
			Usage: "Azure OpenAI embedding deployment",
		},
		&cli.StringFlag{
			Name:  "subscription-id",
			Usage: "Azure subscription holding the storage account",
		},
		&cli.StringFlag{
			Name:  "resource-group-name",
			Usage: "Resource group holding the storage account",
		},
		&cli.StringFlag{
			Name:  "storage-name",
			Usage: "Storage account holding the documents",
		},
		&cli.StringFlag{
			Name:  "container-name",
			Usage: "Blob container holding the documents",
		},
		&cli.BoolFlag{
			Name:  "no-skillset",
			Usage: "Provision without the chunking and embedding skillset",
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "Deadline for each resource",
		},
		&cli.IntFlag{
			Name:  "retry-attempts",
			Usage: "Attempts per call on transient failures",
		},
		&cli.StringFlag{
			Name:  "diff-mode",
			Usage: "Drift comparison: fields or document",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Log level (debug, info, warn, error)",
		},
		&cli.StringFlag{
			Name:  "log-format",
			Usage: "Log format (text, json)",
		},
	}
}

func dryRunFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  "dry-run",
		Usage: "Report what would change without writing",
	}
}

func preflightFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  "preflight",
		Usage: "Check the storage account, identity and key vault before provisioning",
	}
}

// applyFlags overlays the flags the user set onto cfg. Flags take precedence
// over the configuration file and the environment.
func applyFlags(cmd *cli.Command, cfg *config.Config) {
	stringFlags := map[string]*string{
		"base-index-name":      &cfg.BaseName,
		"aisearch-name":        &cfg.SearchService,
		"search-endpoint":      &cfg.SearchEndpoint,
		"api-key":              &cfg.SearchAPIKey,
		"openai-api-base":      &cfg.OpenAIEndpoint,
		"embedding-deployment": &cfg.EmbeddingDeployment,
		"subscription-id":      &cfg.SubscriptionId,
		"resource-group-name":  &cfg.ResourceGroup,
		"storage-name":         &cfg.StorageAccount,
		"container-name":       &cfg.Container,
		"diff-mode":            &cfg.DiffMode,
		"log-level":            &cfg.Log.Level,
		"log-format":           &cfg.Log.Format,
	}
	for name, dst := range stringFlags {
		if cmd.IsSet(name) {
			*dst = cmd.String(name)
		}
	}

	if cmd.IsSet("no-skillset") {
		cfg.SkillsetEnabled = !cmd.Bool("no-skillset")
	}
	if cmd.IsSet("timeout") {
		cfg.Timeout = cmd.Duration("timeout")
	}
	if cmd.IsSet("retry-attempts") {
		cfg.Retry.Attempts = cmd.Int("retry-attempts")
	}
	if cmd.IsSet("dry-run") {
		cfg.DryRun = cmd.Bool("dry-run")
	}
	if cmd.IsSet("preflight") {
		cfg.Preflight = cmd.Bool("preflight")
	}
}
