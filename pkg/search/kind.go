// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package search

// Kind is a search service resource collection. The value is the REST
// collection name.
type Kind string

const (
	KindDataSource Kind = "datasources"
	KindSkillset   Kind = "skillsets"
	KindIndex      Kind = "indexes"
	KindIndexer    Kind = "indexers"
)

// ProvisionOrder is the order in which resources must be converged. Teardown
// walks it backwards.
var ProvisionOrder = []Kind{KindDataSource, KindSkillset, KindIndex, KindIndexer}

func (k Kind) String() string {
	return string(k)
}

// Label returns a human readable name for log lines and tables.
func (k Kind) Label() string {
	switch k {
	case KindDataSource:
		return "data source"
	case KindSkillset:
		return "skillset"
	case KindIndex:
		return "index"
	case KindIndexer:
		return "indexer"
	default:
		return string(k)
	}
}

// Valid reports whether k is one of the four known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindDataSource, KindSkillset, KindIndex, KindIndexer:
		return true
	}
	return false
}
