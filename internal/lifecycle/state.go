package lifecycle

import (
	"fmt"
	"strings"

	"asset-store/internal/metrics"
)

// State is a step of an asset's lifecycle.
type State string

const (
	// StateUncommitted: provisional record exists, no primary file yet.
	StateUncommitted State = "uncommitted"
	// StateStored: primary file written to its repository.
	StateStored State = "stored"
	// StateThumbnailed: thumbnail generated.
	StateThumbnailed State = "thumbnailed"
	// StateNoThumbnail: no thumbnail applies, or generation failed under PolicyKeep.
	StateNoThumbnail State = "no_thumbnail"
	// StateActive: final record fields persisted.
	StateActive State = "active"
	// StateDeleted: record and files removed.
	StateDeleted State = "deleted"
)

// FailurePolicy decides what a thumbnail failure does to a create or
// replace.
type FailurePolicy string

const (
	// PolicyRollback aborts the operation and removes what it wrote.
	PolicyRollback FailurePolicy = "rollback"
	// PolicyKeep keeps the primary file and clears HasThumbnail.
	PolicyKeep FailurePolicy = "keep"
)

// ParseFailurePolicy parses a policy name. Empty selects PolicyRollback.
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch FailurePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyRollback:
		return PolicyRollback, nil
	case PolicyKeep:
		return PolicyKeep, nil
	default:
		return "", fmt.Errorf("unknown thumbnail failure policy %q (want %q or %q)", s, PolicyRollback, PolicyKeep)
	}
}

func (m *Manager) transition(id string, to State) {
	metrics.LifecycleTransitionsTotal.WithLabelValues(string(to)).Inc()
	m.log.Debug("Asset %s -> %s", id, to)
}
