// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package client

import (
	"fmt"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/arm"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/authorization/armauthorization/v2"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/keyvault/armkeyvault"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/msi/armmsi"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armresources"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/storage/armstorage"

	"github.com/platform-engineering-labs/searchprov/pkg/config"
	"github.com/platform-engineering-labs/searchprov/pkg/preflight"
	"github.com/platform-engineering-labs/searchprov/pkg/search"
)

// Client wraps the Azure SDK clients used by a provisioning run.
//
// The search service has no management SDK client for its data plane
// resources, so Search is a REST client on the azcore pipeline. The typed ARM
// clients are only used by preflight checks and are nil when no subscription
// is configured.
type Client struct {
	Config                       *config.Config
	Search                       *search.Client
	ResourceGroupsClient         *armresources.ResourceGroupsClient
	StorageAccountsClient        *armstorage.AccountsClient
	BlobContainersClient         *armstorage.BlobContainersClient
	UserAssignedIdentitiesClient *armmsi.UserAssignedIdentitiesClient
	RoleAssignmentsClient        *armauthorization.RoleAssignmentsClient
	VaultsClient                 *armkeyvault.VaultsClient
}

// NewClient creates a new Azure client wrapper
func NewClient(cfg *config.Config) (*Client, error) {
	cred, err := cfg.ToAzureCredential()
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure credential: %w", err)
	}

	// Plain HTTP endpoints are local emulators and test servers.
	searchOptions := &search.ClientOptions{
		APIVersion: cfg.APIVersion,
		AllowHTTP:  strings.HasPrefix(cfg.SearchURL(), "http://"),
	}
	var searchClient *search.Client
	if cfg.SearchAPIKey != "" {
		searchClient, err = search.NewClientWithKey(cfg.SearchURL(), cfg.SearchAPIKey, searchOptions)
	} else {
		searchClient, err = search.NewClient(cfg.SearchURL(), cred, searchOptions)
	}
	if err != nil {
		return nil, err
	}

	c := &Client{
		Config: cfg,
		Search: searchClient,
	}
	if cfg.SubscriptionId == "" {
		return c, nil
	}

	clientOptions := &arm.ClientOptions{}

	c.ResourceGroupsClient, err = armresources.NewResourceGroupsClient(cfg.SubscriptionId, cred, clientOptions)
	if err != nil {
		return nil, err
	}

	c.StorageAccountsClient, err = armstorage.NewAccountsClient(cfg.SubscriptionId, cred, clientOptions)
	if err != nil {
		return nil, err
	}

	c.BlobContainersClient, err = armstorage.NewBlobContainersClient(cfg.SubscriptionId, cred, clientOptions)
	if err != nil {
		return nil, err
	}

	c.UserAssignedIdentitiesClient, err = armmsi.NewUserAssignedIdentitiesClient(cfg.SubscriptionId, cred, clientOptions)
	if err != nil {
		return nil, err
	}

	c.RoleAssignmentsClient, err = armauthorization.NewRoleAssignmentsClient(cfg.SubscriptionId, cred, clientOptions)
	if err != nil {
		return nil, err
	}

	c.VaultsClient, err = armkeyvault.NewVaultsClient(cfg.SubscriptionId, cred, clientOptions)
	if err != nil {
		return nil, err
	}

	return c, nil
}

// PreflightClients returns the ARM clients in the shape the preflight checks expect.
func (c *Client) PreflightClients() (preflight.Clients, error) {
	if c.ResourceGroupsClient == nil {
		return preflight.Clients{}, &config.ConfigurationError{Field: "subscriptionId", Reason: "is required for preflight checks"}
	}
	return preflight.Clients{
		ResourceGroups:  c.ResourceGroupsClient,
		StorageAccounts: c.StorageAccountsClient,
		BlobContainers:  c.BlobContainersClient,
		Identities:      c.UserAssignedIdentitiesClient,
		RoleAssignments: c.RoleAssignmentsClient,
		Vaults:          c.VaultsClient,
	}, nil
}
