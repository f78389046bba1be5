// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/streaming"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/platform-engineering-labs/searchprov/pkg/logger"
)

const (
	// Module name and version reported in the User-Agent header
	moduleName    = "github.com/platform-engineering-labs/searchprov"
	moduleVersion = "v0.1.0"

	// DefaultAPIVersion is the search management API version used when none is configured.
	DefaultAPIVersion = "2024-07-01"

	// Scope requested for Microsoft Entra tokens.
	tokenScope = "https://search.azure.com/.default"

	headerAPIKey          = "api-key"
	headerClientRequestID = "x-ms-client-request-id"
	headerRequestID       = "request-id"
)

// ClientOptions configures a Client.
type ClientOptions struct {
	APIVersion string
	// Transport overrides the HTTP transport. Tests point it at an httptest server.
	Transport policy.Transporter
	// AllowHTTP permits credentials over plain HTTP endpoints.
	AllowHTTP bool
}

// Client talks to the search service management REST API.
// Retries are left to the caller so that the synchronizer owns the backoff policy.
type Client struct {
	endpoint   string
	apiVersion string
	internal   *azcore.Client
}

var _ Service = (*Client)(nil)

// NewClient creates a client that authenticates with Microsoft Entra tokens.
func NewClient(endpoint string, cred azcore.TokenCredential, opts *ClientOptions) (*Client, error) {
	if cred == nil {
		return nil, errors.New("search client requires a credential")
	}
	o := normalizeOptions(opts)
	auth := runtime.NewBearerTokenPolicy(cred, []string{tokenScope}, &policy.BearerTokenOptions{
		InsecureAllowCredentialWithHTTP: o.AllowHTTP,
	})
	return newClient(endpoint, auth, o)
}

// NewClientWithKey creates a client that authenticates with an admin API key.
func NewClientWithKey(endpoint, key string, opts *ClientOptions) (*Client, error) {
	if key == "" {
		return nil, errors.New("search client requires an api key")
	}
	o := normalizeOptions(opts)
	auth := runtime.NewKeyCredentialPolicy(azcore.NewKeyCredential(key), headerAPIKey, &runtime.KeyCredentialPolicyOptions{
		InsecureAllowCredentialWithHTTP: o.AllowHTTP,
	})
	return newClient(endpoint, auth, o)
}

func normalizeOptions(opts *ClientOptions) ClientOptions {
	var o ClientOptions
	if opts != nil {
		o = *opts
	}
	if o.APIVersion == "" {
		o.APIVersion = DefaultAPIVersion
	}
	return o
}

func newClient(endpoint string, auth policy.Policy, o ClientOptions) (*Client, error) {
	if endpoint == "" {
		return nil, errors.New("search client requires an endpoint")
	}
	clientOptions := &azcore.ClientOptions{
		Retry: policy.RetryOptions{MaxRetries: -1},
	}
	if o.Transport != nil {
		clientOptions.Transport = o.Transport
	}
	internal, err := azcore.NewClient(moduleName, moduleVersion, runtime.PipelineOptions{
		PerRetry: []policy.Policy{auth},
	}, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to create search client: %w", err)
	}
	return &Client{
		endpoint:   strings.TrimRight(endpoint, "/"),
		apiVersion: o.APIVersion,
		internal:   internal,
	}, nil
}

// Endpoint returns the service URL the client targets.
func (c *Client) Endpoint() string {
	return c.endpoint
}

func (c *Client) Get(ctx context.Context, kind Kind, name string) (*Resource, error) {
	resp, requestID, err := c.do(ctx, http.MethodGet, resourcePath(kind, name), nil, nil)
	if err != nil {
		return nil, wrapTransportError(OpGet, kind, name, requestID, err)
	}
	if !runtime.HasStatusCode(resp, http.StatusOK) {
		return nil, responseError(OpGet, kind, name, requestID, resp)
	}
	return readResource(kind, name, resp)
}

func (c *Client) Create(ctx context.Context, kind Kind, name string, body json.RawMessage) (*Resource, error) {
	headers := map[string]string{
		"If-None-Match": "*",
		"Prefer":        "return=representation",
	}
	return c.put(ctx, OpCreate, kind, name, body, headers)
}

func (c *Client) Update(ctx context.Context, kind Kind, name string, body json.RawMessage, etag string) (*Resource, error) {
	headers := map[string]string{
		"Prefer": "return=representation",
	}
	if etag != "" {
		headers["If-Match"] = etag
	}
	return c.put(ctx, OpUpdate, kind, name, body, headers)
}

func (c *Client) put(ctx context.Context, op string, kind Kind, name string, body json.RawMessage, headers map[string]string) (*Resource, error) {
	resp, requestID, err := c.do(ctx, http.MethodPut, resourcePath(kind, name), body, headers)
	if err != nil {
		return nil, wrapTransportError(op, kind, name, requestID, err)
	}
	switch {
	case runtime.HasStatusCode(resp, http.StatusOK, http.StatusCreated):
		return readResource(kind, name, resp)
	case runtime.HasStatusCode(resp, http.StatusNoContent):
		// The service ignored the Prefer header.
		return c.Get(ctx, kind, name)
	default:
		return nil, responseError(op, kind, name, requestID, resp)
	}
}

func (c *Client) Delete(ctx context.Context, kind Kind, name string) error {
	resp, requestID, err := c.do(ctx, http.MethodDelete, resourcePath(kind, name), nil, nil)
	if err != nil {
		return wrapTransportError(OpDelete, kind, name, requestID, err)
	}
	if !runtime.HasStatusCode(resp, http.StatusOK, http.StatusNoContent) {
		return responseError(OpDelete, kind, name, requestID, resp)
	}
	return nil
}

func (c *Client) IndexerStatus(ctx context.Context, name string) (*IndexerStatus, error) {
	resp, requestID, err := c.do(ctx, http.MethodGet, resourcePath(KindIndexer, name)+"/status", nil, nil)
	if err != nil {
		return nil, wrapTransportError(OpStatus, KindIndexer, name, requestID, err)
	}
	if !runtime.HasStatusCode(resp, http.StatusOK) {
		return nil, responseError(OpStatus, KindIndexer, name, requestID, resp)
	}
	payload, err := runtime.Payload(resp)
	if err != nil {
		return nil, wrapTransportError(OpStatus, KindIndexer, name, requestID, err)
	}
	var status IndexerStatus
	if err := json.Unmarshal(payload, &status); err != nil {
		return nil, fmt.Errorf("failed to decode status of indexer %q: %w", name, err)
	}
	return &status, nil
}

func (c *Client) do(ctx context.Context, method, path string, body json.RawMessage, headers map[string]string) (*http.Response, string, error) {
	req, err := runtime.NewRequest(ctx, method, runtime.JoinPaths(c.endpoint, path))
	if err != nil {
		return nil, "", err
	}
	q := req.Raw().URL.Query()
	q.Set("api-version", c.apiVersion)
	req.Raw().URL.RawQuery = q.Encode()

	requestID := uuid.NewString()
	req.Raw().Header.Set(headerClientRequestID, requestID)
	req.Raw().Header.Set("Accept", "application/json;odata.metadata=minimal")
	for k, v := range headers {
		req.Raw().Header.Set(k, v)
	}
	if body != nil {
		if err := req.SetBody(streaming.NopCloser(bytes.NewReader(body)), "application/json"); err != nil {
			return nil, requestID, err
		}
	}

	logger.FromContext(ctx).Debug("Search request",
		"method", method,
		"path", path,
		"requestId", requestID)

	resp, err := c.internal.Pipeline().Do(req)
	if err != nil {
		return nil, requestID, err
	}
	return resp, requestID, nil
}

// resourcePath addresses a single resource, e.g. indexes('docs-index').
func resourcePath(kind Kind, name string) string {
	return fmt.Sprintf("%s('%s')", kind, strings.ReplaceAll(name, "'", "''"))
}

func readResource(kind Kind, name string, resp *http.Response) (*Resource, error) {
	payload, err := runtime.Payload(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s %q: %w", kind.Label(), name, err)
	}
	etag := resp.Header.Get("ETag")
	if etag == "" {
		var meta struct {
			ETag string `json:"@odata.etag"`
		}
		if err := json.Unmarshal(payload, &meta); err == nil {
			etag = meta.ETag
		}
	}
	return &Resource{
		Kind: kind,
		Name: name,
		ETag: etag,
		Body: json.RawMessage(payload),
	}, nil
}

// responseError builds a RemoteError from a non-success response.
func responseError(op string, kind Kind, name, requestID string, resp *http.Response) error {
	payload, _ := runtime.Payload(resp)
	code := gjson.GetBytes(payload, "error.code").String()
	message := gjson.GetBytes(payload, "error.message").String()

	remote := NewRemoteError(op, kind, name, resp.StatusCode, code, message, runtime.NewResponseError(resp))
	if id := resp.Header.Get(headerRequestID); id != "" {
		remote.RequestID = id
	} else {
		remote.RequestID = requestID
	}
	return remote
}

// wrapTransportError classifies a failure that produced no response. Context
// errors pass through so callers can tell cancellation from service faults.
func wrapTransportError(op string, kind Kind, name, requestID string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("search %s %s/%s: %w", op, kind, name, err)
	}
	remote := NewRemoteError(op, kind, name, 0, "", "", err)
	if remote.Reason == ReasonGeneralServiceException {
		remote.Reason = ReasonNetworkFailure
	}
	remote.RequestID = requestID
	return remote
}
