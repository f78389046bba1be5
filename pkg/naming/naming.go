// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

// Package naming derives the search resource names from a base name.
package naming

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	DataSourceSuffix = "ds"
	SkillsetSuffix   = "skills"
	IndexSuffix      = "index"
	IndexerSuffix    = "indexer"

	// MaxResourceNameLength is the search service limit for index, indexer,
	// data source and skillset names.
	MaxResourceNameLength = 128

	// MaxBaseNameLength leaves room for the longest suffix.
	MaxBaseNameLength = MaxResourceNameLength - len("-"+IndexerSuffix)
)

var baseNamePattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?$`)

// Names is the set of resource names derived from one base name.
type Names struct {
	Base       string
	DataSource string
	Skillset   string
	Index      string
	Indexer    string
}

// All returns the four names in provisioning order.
func (n Names) All() []string {
	return []string{n.DataSource, n.Skillset, n.Index, n.Indexer}
}

// InvalidNameError reports a base name the search service would reject.
type InvalidNameError struct {
	Name   string
	Reason string
}

func (e *InvalidNameError) Error() string {
	return fmt.Sprintf("invalid base name %q: %s", e.Name, e.Reason)
}

// Validate checks base against the search service naming rules.
func Validate(base string) error {
	switch {
	case base == "":
		return &InvalidNameError{Name: base, Reason: "must not be empty"}
	case len(base) > MaxBaseNameLength:
		return &InvalidNameError{Name: base, Reason: fmt.Sprintf("must be at most %d characters", MaxBaseNameLength)}
	case !baseNamePattern.MatchString(base):
		return &InvalidNameError{Name: base, Reason: "must contain only lowercase letters, digits and hyphens, and start and end with a letter or digit"}
	case strings.Contains(base, "--"):
		return &InvalidNameError{Name: base, Reason: "must not contain consecutive hyphens"}
	}
	return nil
}

// Derive returns the data source, skillset, index and indexer names for base.
func Derive(base string) (Names, error) {
	if err := Validate(base); err != nil {
		return Names{}, err
	}
	return Names{
		Base:       base,
		DataSource: base + "-" + DataSourceSuffix,
		Skillset:   base + "-" + SkillsetSuffix,
		Index:      base + "-" + IndexSuffix,
		Indexer:    base + "-" + IndexerSuffix,
	}, nil
}
