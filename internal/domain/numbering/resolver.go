package numbering

import (
	"context"

	"docseries/internal/core/apperror"
	"docseries/internal/core/numerator"
)

// Resolver maps a document type to its numbering configuration.
type Resolver struct {
	configs numerator.ConfigStore
}

// NewResolver creates a Resolver.
func NewResolver(configs numerator.ConfigStore) *Resolver {
	return &Resolver{configs: configs}
}

// ResolveActive returns the first active configuration of the type, else the
// first one in creation order. A type without configurations yields a soft
// CONFIGURATION_MISSING error.
func (r *Resolver) ResolveActive(ctx context.Context, documentType string) (*numerator.ModuleConfig, error) {
	list, err := r.configs.ListConfigs(ctx, documentType)
	if err != nil {
		return nil, apperror.NewDatabase("list configurations", err).
			WithDetail("document_type", documentType)
	}
	cfg := PickActive(list)
	if cfg == nil {
		return nil, apperror.NewConfigurationMissing(documentType)
	}
	return cfg, nil
}

// PickActive applies the tie-break to configurations listed in creation order.
func PickActive(list []*numerator.ModuleConfig) *numerator.ModuleConfig {
	for _, c := range list {
		if c.IsActive {
			return c
		}
	}
	if len(list) > 0 {
		return list[0]
	}
	return nil
}
