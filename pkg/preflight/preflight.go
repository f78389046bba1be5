// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

// Package preflight verifies, through Azure Resource Manager, that the
// resources the search topology points at exist before anything is written.
package preflight

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/authorization/armauthorization/v2"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/keyvault/armkeyvault"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/msi/armmsi"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armresources"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/storage/armstorage"

	"github.com/platform-engineering-labs/searchprov/pkg/config"
	"github.com/platform-engineering-labs/searchprov/pkg/logger"
)

// Check names.
const (
	CheckResourceGroup  = "resource-group"
	CheckStorageAccount = "storage-account"
	CheckBlobContainer  = "blob-container"
	CheckIdentity       = "identity"
	CheckRoleAssignment = "role-assignment"
	CheckKeyVault       = "key-vault"
)

// Status of a single check.
type Status string

const (
	StatusOK      Status = "ok"
	StatusWarning Status = "warning"
	StatusSkipped Status = "skipped"
)

// The typed ARM clients satisfy these interfaces.
type (
	ResourceGroupsAPI interface {
		Get(ctx context.Context, resourceGroupName string, options *armresources.ResourceGroupsClientGetOptions) (armresources.ResourceGroupsClientGetResponse, error)
	}
	StorageAccountsAPI interface {
		GetProperties(ctx context.Context, resourceGroupName string, accountName string, options *armstorage.AccountsClientGetPropertiesOptions) (armstorage.AccountsClientGetPropertiesResponse, error)
	}
	BlobContainersAPI interface {
		Get(ctx context.Context, resourceGroupName string, accountName string, containerName string, options *armstorage.BlobContainersClientGetOptions) (armstorage.BlobContainersClientGetResponse, error)
	}
	IdentitiesAPI interface {
		Get(ctx context.Context, resourceGroupName string, resourceName string, options *armmsi.UserAssignedIdentitiesClientGetOptions) (armmsi.UserAssignedIdentitiesClientGetResponse, error)
	}
	RoleAssignmentsAPI interface {
		NewListForScopePager(scope string, options *armauthorization.RoleAssignmentsClientListForScopeOptions) *runtime.Pager[armauthorization.RoleAssignmentsClientListForScopeResponse]
	}
	VaultsAPI interface {
		Get(ctx context.Context, resourceGroupName string, vaultName string, options *armkeyvault.VaultsClientGetOptions) (armkeyvault.VaultsClientGetResponse, error)
	}
)

// Clients groups the ARM clients the checks use.
type Clients struct {
	ResourceGroups  ResourceGroupsAPI
	StorageAccounts StorageAccountsAPI
	BlobContainers  BlobContainersAPI
	Identities      IdentitiesAPI
	RoleAssignments RoleAssignmentsAPI
	Vaults          VaultsAPI
}

// Result records the outcome of one check.
type Result struct {
	Check    string
	Resource string
	Status   Status
	Detail   string
}

// Report is the list of checks that ran, in order.
type Report struct {
	Results []Result
}

func (r *Report) add(check, resource string, status Status, detail string) {
	r.Results = append(r.Results, Result{Check: check, Resource: resource, Status: status, Detail: detail})
}

// Warnings returns the checks that passed with a warning.
func (r *Report) Warnings() []Result {
	var out []Result
	for _, res := range r.Results {
		if res.Status == StatusWarning {
			out = append(out, res)
		}
	}
	return out
}

// CheckError means a required Azure resource is missing or unreadable.
type CheckError struct {
	Check    string
	Resource string
	Err      error
}

func (e *CheckError) Error() string {
	return fmt.Sprintf("preflight check %s failed for %s: %v", e.Check, e.Resource, e.Err)
}

func (e *CheckError) Unwrap() error {
	return e.Err
}

// NotFound reports whether the resource under check does not exist.
func (e *CheckError) NotFound() bool {
	var respErr *azcore.ResponseError
	return errors.As(e.Err, &respErr) && respErr.StatusCode == http.StatusNotFound
}

// Run executes every check that applies to cfg and stops at the first failure.
// The report holds the checks run so far even when an error is returned.
func Run(ctx context.Context, cfg *config.Config, clients Clients) (*Report, error) {
	log := logger.FromContext(ctx)
	report := &Report{}

	rg := cfg.ResourceGroup
	if _, err := clients.ResourceGroups.Get(ctx, rg, nil); err != nil {
		return report, &CheckError{Check: CheckResourceGroup, Resource: rg, Err: err}
	}
	report.add(CheckResourceGroup, rg, StatusOK, "")

	account, err := clients.StorageAccounts.GetProperties(ctx, rg, cfg.StorageAccount, nil)
	if err != nil {
		return report, &CheckError{Check: CheckStorageAccount, Resource: cfg.StorageAccount, Err: err}
	}
	report.add(CheckStorageAccount, cfg.StorageAccount, StatusOK, storageDetail(account.Account))

	containerRef := cfg.StorageAccount + "/" + cfg.Container
	if _, err := clients.BlobContainers.Get(ctx, rg, cfg.StorageAccount, cfg.Container, nil); err != nil {
		return report, &CheckError{Check: CheckBlobContainer, Resource: containerRef, Err: err}
	}
	report.add(CheckBlobContainer, containerRef, StatusOK, "")

	if err := checkIdentity(ctx, cfg, clients, report); err != nil {
		return report, err
	}
	if err := checkKeyVault(ctx, cfg, clients, report); err != nil {
		return report, err
	}

	for _, w := range report.Warnings() {
		log.Warn("Preflight warning", "check", w.Check, "resource", w.Resource, "detail", w.Detail)
	}
	log.Info("Preflight checks passed", "checks", len(report.Results))
	return report, nil
}

func checkIdentity(ctx context.Context, cfg *config.Config, clients Clients, report *Report) error {
	id := cfg.IdentityID()
	if id == "" {
		report.add(CheckIdentity, "", StatusSkipped, "system-assigned identity")
		report.add(CheckRoleAssignment, cfg.StorageAccount, StatusSkipped, "system-assigned identity")
		return nil
	}

	parts := splitResourceID(id)
	rgName, name := parts["resourcegroups"], parts["userassignedidentities"]
	if rgName == "" || name == "" {
		return &CheckError{Check: CheckIdentity, Resource: id, Err: errors.New("not a user-assigned identity resource id")}
	}

	identity, err := clients.Identities.Get(ctx, rgName, name, nil)
	if err != nil {
		return &CheckError{Check: CheckIdentity, Resource: name, Err: err}
	}
	report.add(CheckIdentity, name, StatusOK, "")

	if identity.Properties == nil || identity.Properties.PrincipalID == nil {
		report.add(CheckRoleAssignment, cfg.StorageAccount, StatusWarning, "identity has no principal id")
		return nil
	}
	principalID := *identity.Properties.PrincipalID

	// Without a role on the storage account the indexer fails at run time,
	// not at creation, so a missing assignment is only a warning.
	pager := clients.RoleAssignments.NewListForScopePager(cfg.StorageAccountID(), &armauthorization.RoleAssignmentsClientListForScopeOptions{
		Filter: to.Ptr(fmt.Sprintf("assignedTo('%s')", principalID)),
	})
	assignments := 0
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return &CheckError{Check: CheckRoleAssignment, Resource: cfg.StorageAccount, Err: err}
		}
		for _, a := range page.Value {
			if a != nil && a.Properties != nil && a.Properties.PrincipalID != nil &&
				strings.EqualFold(*a.Properties.PrincipalID, principalID) {
				assignments++
			}
		}
	}
	if assignments == 0 {
		report.add(CheckRoleAssignment, cfg.StorageAccount, StatusWarning,
			fmt.Sprintf("identity %s has no role assignment on the storage account", name))
		return nil
	}
	report.add(CheckRoleAssignment, cfg.StorageAccount, StatusOK, fmt.Sprintf("%d assignment(s)", assignments))
	return nil
}

func checkKeyVault(ctx context.Context, cfg *config.Config, clients Clients, report *Report) error {
	vaultName := cfg.EncryptionKey.VaultName
	if !cfg.EncryptionKey.Enabled() || vaultName == "" {
		report.add(CheckKeyVault, vaultName, StatusSkipped, "no customer-managed key")
		return nil
	}

	vault, err := clients.Vaults.Get(ctx, cfg.ResourceGroup, vaultName, nil)
	if err != nil {
		return &CheckError{Check: CheckKeyVault, Resource: vaultName, Err: err}
	}
	if vault.Properties != nil && vault.Properties.VaultURI != nil {
		live := strings.TrimRight(*vault.Properties.VaultURI, "/")
		want := strings.TrimRight(cfg.EncryptionKey.URI(), "/")
		if !strings.EqualFold(live, want) {
			return &CheckError{Check: CheckKeyVault, Resource: vaultName,
				Err: fmt.Errorf("vault URI is %s, configuration uses %s", live, want)}
		}
	}
	report.add(CheckKeyVault, vaultName, StatusOK, "")
	return nil
}

func storageDetail(account armstorage.Account) string {
	if account.Kind == nil {
		return ""
	}
	return string(*account.Kind)
}

// splitResourceID splits an Azure resource ID into its component parts.
// Example: /subscriptions/xxx/resourceGroups/yyy returns map["subscriptions"]="xxx", map["resourcegroups"]="yyy"
// Keys are lowercased for case-insensitive matching since Azure returns inconsistent casing.
func splitResourceID(resourceID string) map[string]string {
	parts := make(map[string]string)

	segments := []string{}
	for _, seg := range strings.Split(resourceID, "/") {
		if seg != "" {
			segments = append(segments, seg)
		}
	}

	for i := 0; i < len(segments)-1; i += 2 {
		parts[strings.ToLower(segments[i])] = segments[i+1]
	}

	return parts
}
