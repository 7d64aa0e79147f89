package approval

import (
	"encoding/json"
	"fmt"

	"github.com/aozorakai/taxflow/internal/models"
)

// ChainResolver maps a payment amount to the ordered list of roles that
// must approve it. Thresholds come from configuration; the defaults
// reproduce firm policy (1M and 10M).
type ChainResolver struct {
	managerThreshold  float64
	directorThreshold float64
}

// NewChainResolver creates a resolver with the given policy thresholds
func NewChainResolver(managerThreshold, directorThreshold float64) *ChainResolver {
	return &ChainResolver{
		managerThreshold:  managerThreshold,
		directorThreshold: directorThreshold,
	}
}

// Resolve returns the approval chain for the amount, in approval order
func (r *ChainResolver) Resolve(amount float64) []models.Role {
	chain := []models.Role{models.RoleAssociate}
	if amount >= r.managerThreshold {
		chain = append(chain, models.RoleManager)
	}
	if amount >= r.directorThreshold {
		chain = append(chain, models.RoleDirector)
	}
	return chain
}

// encodeChain serializes a role chain for storage
func encodeChain(chain []models.Role) (string, error) {
	data, err := json.Marshal(chain)
	if err != nil {
		return "", fmt.Errorf("failed to encode approval chain: %w", err)
	}
	return string(data), nil
}

// decodeChain deserializes a stored role chain
func decodeChain(raw string) ([]models.Role, error) {
	var chain []models.Role
	if err := json.Unmarshal([]byte(raw), &chain); err != nil {
		return nil, fmt.Errorf("failed to decode approval chain: %w", err)
	}
	if len(chain) == 0 {
		return nil, fmt.Errorf("approval chain is empty")
	}
	return chain, nil
}
