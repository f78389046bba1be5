// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package synchronizer

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/tidwall/sjson"

	"github.com/platform-engineering-labs/searchprov/pkg/config"
	"github.com/platform-engineering-labs/searchprov/pkg/search"
)

// RedactedPaths lists the properties the service accepts on write but never
// returns on read. They are left out of every comparison.
var RedactedPaths = map[search.Kind][]string{
	search.KindDataSource: {"credentials.connectionString"},
}

// Differ compares a desired definition with the live one. It returns the paths
// that differ; an empty result means the resource has converged.
type Differ interface {
	Diff(kind search.Kind, desired, live json.RawMessage) ([]string, error)
}

// NewDiffer returns the differ for a config.DiffFields or config.DiffDocument mode.
func NewDiffer(mode string) (Differ, error) {
	switch mode {
	case "", config.DiffFields:
		return fieldDiffer{}, nil
	case config.DiffDocument:
		return documentDiffer{}, nil
	default:
		return nil, &config.ConfigurationError{Field: "diffMode", Reason: fmt.Sprintf("unknown mode %q", mode)}
	}
}

// fieldDiffer treats the desired document as a subset of the live one:
// properties the service fills in are ignored, while every value the caller
// set must match.
type fieldDiffer struct{}

func (fieldDiffer) Diff(kind search.Kind, desired, live json.RawMessage) ([]string, error) {
	d, l, err := normalizePair(kind, desired, live)
	if err != nil {
		return nil, err
	}
	var paths []string
	subset("", d, l, &paths)
	sort.Strings(paths)
	return paths, nil
}

// documentDiffer requires both documents to be equal, apart from metadata,
// redacted secrets and null values.
type documentDiffer struct{}

func (documentDiffer) Diff(kind search.Kind, desired, live json.RawMessage) ([]string, error) {
	d, l, err := normalizePair(kind, desired, live)
	if err != nil {
		return nil, err
	}
	d, l = dropNulls(d), dropNulls(l)
	var paths []string
	subset("", d, l, &paths)
	// Anything only the live side has is a difference too.
	subset("", l, d, &paths)
	return dedupe(paths), nil
}

func normalizePair(kind search.Kind, desired, live json.RawMessage) (any, any, error) {
	d, err := normalize(kind, desired)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse desired %s: %w", kind.Label(), err)
	}
	l, err := normalize(kind, live)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse live %s: %w", kind.Label(), err)
	}
	return d, l, nil
}

// normalize removes redacted paths and top-level OData annotations.
func normalize(kind search.Kind, doc json.RawMessage) (any, error) {
	var err error
	for _, path := range RedactedPaths[kind] {
		if doc, err = sjson.DeleteBytes(doc, path); err != nil {
			return nil, err
		}
	}
	var v any
	if err := json.Unmarshal(doc, &v); err != nil {
		return nil, err
	}
	if m, ok := v.(map[string]any); ok {
		for k := range m {
			if strings.HasPrefix(k, "@odata.") && k != "@odata.type" {
				delete(m, k)
			}
		}
	}
	return v, nil
}

// subset appends to paths every location where want is not contained in got.
func subset(path string, want, got any, paths *[]string) {
	switch w := want.(type) {
	case map[string]any:
		g, ok := got.(map[string]any)
		if !ok {
			*paths = append(*paths, orRoot(path))
			return
		}
		for k, wv := range w {
			gv, present := g[k]
			child := joinPath(path, k)
			if wv == nil {
				if present && gv != nil {
					*paths = append(*paths, child)
				}
				continue
			}
			if !present {
				*paths = append(*paths, child)
				continue
			}
			subset(child, wv, gv, paths)
		}
	case []any:
		g, ok := got.([]any)
		if !ok || len(g) != len(w) {
			*paths = append(*paths, orRoot(path))
			return
		}
		for i := range w {
			subset(fmt.Sprintf("%s[%d]", path, i), w[i], g[i], paths)
		}
	default:
		if !reflect.DeepEqual(want, got) {
			*paths = append(*paths, orRoot(path))
		}
	}
}

func dropNulls(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			if val == nil {
				continue
			}
			out[k] = dropNulls(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = dropNulls(val)
		}
		return out
	default:
		return v
	}
}

func joinPath(parent, key string) string {
	if parent == "" {
		return key
	}
	return parent + "." + key
}

func orRoot(path string) string {
	if path == "" {
		return "$"
	}
	return path
}

func dedupe(paths []string) []string {
	if len(paths) == 0 {
		return nil
	}
	sort.Strings(paths)
	out := paths[:1]
	for _, p := range paths[1:] {
		if p != out[len(out)-1] {
			out = append(out, p)
		}
	}
	return out
}
