// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package runid

import (
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/ksuid"
)

const prefix = "searchprov:v1:"

// RunID identifies one provisioning run.
// Format: searchprov:v1:{ksuid}:{base}
//
// Runs against the same base name are repeated by design, so the base name
// alone cannot tell two runs apart in the logs. The KSUID makes each run
// unique and sorts by start time.
type RunID string

// New returns a fresh RunID for base.
func New(base string) RunID {
	return RunID(fmt.Sprintf("%s%s:%s", prefix, ksuid.New().String(), base))
}

// Parse validates s and returns it as a RunID.
func Parse(s string) (RunID, error) {
	id := RunID(s)
	if _, err := ksuid.Parse(id.KSUID()); err != nil || !strings.HasPrefix(s, prefix) {
		return "", fmt.Errorf("invalid run id %q", s)
	}
	return id, nil
}

// KSUID returns the unique part of the id.
func (r RunID) KSUID() string {
	if parts := strings.SplitN(strings.TrimPrefix(string(r), prefix), ":", 2); len(parts) == 2 {
		return parts[0]
	}
	return ""
}

// Base returns the base name the run provisioned.
func (r RunID) Base() string {
	if parts := strings.SplitN(strings.TrimPrefix(string(r), prefix), ":", 2); len(parts) == 2 {
		return parts[1]
	}
	return ""
}

// Started returns the time embedded in the KSUID, or the zero time if r is malformed.
func (r RunID) Started() time.Time {
	id, err := ksuid.Parse(r.KSUID())
	if err != nil {
		return time.Time{}
	}
	return id.Time()
}

// String returns the encoded RunID string.
func (r RunID) String() string {
	return string(r)
}
