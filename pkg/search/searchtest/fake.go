// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

// Package searchtest provides an in-memory search service for tests.
package searchtest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"

	"github.com/platform-engineering-labs/searchprov/pkg/search"
)

// Call is one recorded invocation of the fake.
type Call struct {
	Op   string
	Kind search.Kind
	Name string
}

type key struct {
	kind search.Kind
	name string
}

type stored struct {
	etag string
	doc  map[string]any
}

type failure struct {
	op        string
	kind      search.Kind
	status    int
	remaining int // <= 0 fails forever
}

// Fake is a goroutine-safe in-memory search.Service. It mimics the service
// closely enough for convergence tests: it adds metadata and server defaults
// to stored documents, redacts data source secrets on read and rejects
// indexers whose references are missing.
type Fake struct {
	mu        sync.Mutex
	resources map[key]*stored
	statuses  map[string]search.IndexerStatus
	calls     []Call
	failures  []*failure
	etagSeq   int
}

var _ search.Service = (*Fake)(nil)

func New() *Fake {
	return &Fake{
		resources: make(map[key]*stored),
		statuses:  make(map[string]search.IndexerStatus),
	}
}

// FailOn makes the next times calls of op on kind fail with status. A times
// value of zero or less fails every call.
func (f *Fake) FailOn(op string, kind search.Kind, status int, times int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = append(f.failures, &failure{op: op, kind: kind, status: status, remaining: times})
}

// ClearFailures removes every injected failure.
func (f *Fake) ClearFailures() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = nil
}

// Put stores body as-is, bypassing validation. Used to seed drifted state.
func (f *Fake) Put(kind search.Kind, name string, body json.RawMessage) error {
	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.store(kind, name, doc)
	return nil
}

// Document returns the stored document without redaction.
func (f *Fake) Document(kind search.Kind, name string) (map[string]any, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.resources[key{kind, name}]
	if !ok {
		return nil, false
	}
	return cloneDoc(s.doc), true
}

// Has reports whether the resource exists.
func (f *Fake) Has(kind search.Kind, name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.resources[key{kind, name}]
	return ok
}

// Names returns the names stored for kind, sorted.
func (f *Fake) Names(kind search.Kind) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var names []string
	for k := range f.resources {
		if k.kind == kind {
			names = append(names, k.name)
		}
	}
	sort.Strings(names)
	return names
}

// SetIndexerStatus sets the status returned for an indexer.
func (f *Fake) SetIndexerStatus(name string, status search.IndexerStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[name] = status
}

// Calls returns every recorded call in order.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// Count returns how many times op was called. An empty kind matches all kinds.
func (f *Fake) Count(op string, kind search.Kind) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.Op == op && (kind == "" || c.Kind == kind) {
			n++
		}
	}
	return n
}

// Writes returns the number of create, update and delete calls.
func (f *Fake) Writes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		switch c.Op {
		case search.OpCreate, search.OpUpdate, search.OpDelete:
			n++
		}
	}
	return n
}

// ResetCalls clears the call log.
func (f *Fake) ResetCalls() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

func (f *Fake) Get(ctx context.Context, kind search.Kind, name string) (*search.Resource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(ctx, search.OpGet, kind, name); err != nil {
		return nil, err
	}
	s, ok := f.resources[key{kind, name}]
	if !ok {
		return nil, notFound(search.OpGet, kind, name)
	}
	return f.resource(kind, name, s)
}

func (f *Fake) Create(ctx context.Context, kind search.Kind, name string, body json.RawMessage) (*search.Resource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(ctx, search.OpCreate, kind, name); err != nil {
		return nil, err
	}
	if _, ok := f.resources[key{kind, name}]; ok {
		return nil, search.NewRemoteError(search.OpCreate, kind, name, http.StatusPreconditionFailed,
			"PreconditionFailed", fmt.Sprintf("The %s '%s' already exists.", kind.Label(), name), nil)
	}
	doc, err := f.validate(search.OpCreate, kind, name, body)
	if err != nil {
		return nil, err
	}
	return f.resource(kind, name, f.store(kind, name, doc))
}

func (f *Fake) Update(ctx context.Context, kind search.Kind, name string, body json.RawMessage, etag string) (*search.Resource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(ctx, search.OpUpdate, kind, name); err != nil {
		return nil, err
	}
	if s, ok := f.resources[key{kind, name}]; ok && etag != "" && etag != s.etag {
		return nil, search.NewRemoteError(search.OpUpdate, kind, name, http.StatusPreconditionFailed,
			"PreconditionFailed", "The resource has been modified since it was read.", nil)
	}
	doc, err := f.validate(search.OpUpdate, kind, name, body)
	if err != nil {
		return nil, err
	}
	if kind == search.KindDataSource {
		// A null secret on update keeps the stored one.
		if prev, ok := f.resources[key{kind, name}]; ok && connectionString(doc) == nil {
			setConnectionString(doc, connectionString(prev.doc))
		}
	}
	return f.resource(kind, name, f.store(kind, name, doc))
}

func (f *Fake) Delete(ctx context.Context, kind search.Kind, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(ctx, search.OpDelete, kind, name); err != nil {
		return err
	}
	if _, ok := f.resources[key{kind, name}]; !ok {
		return notFound(search.OpDelete, kind, name)
	}
	delete(f.resources, key{kind, name})
	if kind == search.KindIndexer {
		delete(f.statuses, name)
	}
	return nil
}

func (f *Fake) IndexerStatus(ctx context.Context, name string) (*search.IndexerStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(ctx, search.OpStatus, search.KindIndexer, name); err != nil {
		return nil, err
	}
	if _, ok := f.resources[key{search.KindIndexer, name}]; !ok {
		return nil, notFound(search.OpStatus, search.KindIndexer, name)
	}
	status, ok := f.statuses[name]
	if !ok {
		status = search.IndexerStatus{Status: "running"}
	}
	return &status, nil
}

// begin records the call and applies cancellation and injected failures.
// Callers hold f.mu.
func (f *Fake) begin(ctx context.Context, op string, kind search.Kind, name string) error {
	f.calls = append(f.calls, Call{Op: op, Kind: kind, Name: name})
	if err := ctx.Err(); err != nil {
		return err
	}
	for i, fl := range f.failures {
		if fl.op != op || fl.kind != kind {
			continue
		}
		if fl.remaining > 0 {
			fl.remaining--
			if fl.remaining == 0 {
				f.failures = append(f.failures[:i], f.failures[i+1:]...)
			}
		}
		return search.NewRemoteError(op, kind, name, fl.status, http.StatusText(fl.status), "injected failure", nil)
	}
	return nil
}

func (f *Fake) validate(op string, kind search.Kind, name string, body json.RawMessage) (map[string]any, error) {
	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, invalid(op, kind, name, "The request is invalid: "+err.Error())
	}
	if got, _ := doc["name"].(string); got != name {
		return nil, invalid(op, kind, name, fmt.Sprintf("The name in the body %q does not match %q.", got, name))
	}
	if kind == search.KindIndexer {
		refs := map[string]search.Kind{
			"dataSourceName":  search.KindDataSource,
			"skillsetName":    search.KindSkillset,
			"targetIndexName": search.KindIndex,
		}
		for field, refKind := range refs {
			ref, _ := doc[field].(string)
			if ref == "" {
				if field == "skillsetName" {
					continue
				}
				return nil, invalid(op, kind, name, fmt.Sprintf("The %s field is required.", field))
			}
			if _, ok := f.resources[key{refKind, ref}]; !ok {
				return nil, invalid(op, kind, name, fmt.Sprintf("The %s '%s' does not exist.", refKind.Label(), ref))
			}
		}
	}
	return doc, nil
}

// store saves doc with server-side defaults and a fresh etag.
func (f *Fake) store(kind search.Kind, name string, doc map[string]any) *stored {
	f.etagSeq++
	applyDefaults(kind, doc)
	s := &stored{etag: fmt.Sprintf("\"0x8DD%08X\"", f.etagSeq), doc: doc}
	f.resources[key{kind, name}] = s
	return s
}

func (f *Fake) resource(kind search.Kind, name string, s *stored) (*search.Resource, error) {
	doc := cloneDoc(s.doc)
	doc["@odata.context"] = fmt.Sprintf("https://fake.search.windows.net/$metadata#%s/$entity", kind)
	doc["@odata.etag"] = s.etag
	if kind == search.KindDataSource {
		setConnectionString(doc, nil)
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	return &search.Resource{Kind: kind, Name: name, ETag: s.etag, Body: body}, nil
}

// applyDefaults adds the properties the real service fills in on write.
func applyDefaults(kind search.Kind, doc map[string]any) {
	setDefault := func(m map[string]any, k string, v any) {
		if _, ok := m[k]; !ok {
			m[k] = v
		}
	}
	switch kind {
	case search.KindDataSource:
		setDefault(doc, "description", nil)
		setDefault(doc, "dataChangeDetectionPolicy", nil)
	case search.KindSkillset:
		setDefault(doc, "cognitiveServices", nil)
		setDefault(doc, "knowledgeStore", nil)
	case search.KindIndex:
		setDefault(doc, "scoringProfiles", []any{})
		setDefault(doc, "corsOptions", nil)
		if fields, ok := doc["fields"].([]any); ok {
			for _, raw := range fields {
				if field, ok := raw.(map[string]any); ok {
					setDefault(field, "retrievable", true)
					setDefault(field, "stored", true)
					setDefault(field, "synonymMaps", []any{})
				}
			}
		}
	case search.KindIndexer:
		setDefault(doc, "disabled", false)
		setDefault(doc, "cache", nil)
	}
}

func connectionString(doc map[string]any) any {
	if creds, ok := doc["credentials"].(map[string]any); ok {
		return creds["connectionString"]
	}
	return nil
}

func setConnectionString(doc map[string]any, v any) {
	if creds, ok := doc["credentials"].(map[string]any); ok {
		creds["connectionString"] = v
	}
}

func cloneDoc(doc map[string]any) map[string]any {
	b, _ := json.Marshal(doc)
	var out map[string]any
	_ = json.Unmarshal(b, &out)
	return out
}

func notFound(op string, kind search.Kind, name string) error {
	return search.NewRemoteError(op, kind, name, http.StatusNotFound, "ResourceNotFound",
		fmt.Sprintf("No %s with the name '%s' was found in the service.", kind.Label(), name), nil)
}

func invalid(op string, kind search.Kind, name, message string) error {
	return search.NewRemoteError(op, kind, name, http.StatusBadRequest, "InvalidRequestParameter", message, nil)
}
