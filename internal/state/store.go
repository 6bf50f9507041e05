// ./internal/state/store.go
package state

import (
	"fmt"

	"github.com/ammforge/dfc/internal/types"
)

// ControllerStore adapts the package-level persistence functions to the
// controller's Store interface.
type ControllerStore struct{}

// NewControllerStore returns the Postgres-backed controller store.
func NewControllerStore() *ControllerStore {
	return &ControllerStore{}
}

// SaveParams persists params as the next active version for the category.
func (ControllerStore) SaveParams(params types.FeeParams, category string) error {
	version, err := NextFeeParamsVersion(category)
	if err != nil {
		return err
	}
	_, err = SaveFeeParams(params, category, version, true)
	return err
}

// SavePoolState persists the full fee state of one pool.
func (ControllerStore) SavePoolState(s types.FeeState) error {
	return UpsertPoolState(s)
}

// RecordTransition appends one transition to the audit log.
func (ControllerStore) RecordTransition(t types.Transition) error {
	return InsertTransition(t)
}

// NextFeeParamsVersion returns one past the highest stored version for a
// category (1 for a category with no stored bundles).
func NextFeeParamsVersion(category string) (int, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	var version int
	query := `SELECT COALESCE(MAX(version), 0) + 1 FROM fee_parameters WHERE category = $1;`
	if err := DB.QueryRow(query, category).Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to determine next parameters version for category '%s': %w", category, err)
	}
	return version, nil
}
