package provider

import (
	"fmt"
	"sort"
	"strings"

	"github.com/finmsg/sms-gateway/internal/domain"
)

// Registry maps provider keys to implementations. It is populated once at
// process start and read-only afterwards, so lookups need no locking.
type Registry struct {
	providers map[string]Provider
}

func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

func (r *Registry) Register(key string, p Provider) error {
	normalized := strings.ToLower(strings.TrimSpace(key))
	if normalized == "" {
		return fmt.Errorf("provider key is required")
	}
	if p == nil {
		return fmt.Errorf("provider %q is nil", normalized)
	}
	if _, exists := r.providers[normalized]; exists {
		return fmt.Errorf("provider %q already registered", normalized)
	}

	r.providers[normalized] = p
	return nil
}

// Resolve returns the provider registered under key, by exact match.
func (r *Registry) Resolve(key string) (Provider, error) {
	normalized := strings.ToLower(strings.TrimSpace(key))
	p, ok := r.providers[normalized]
	if !ok {
		return nil, &domain.ProviderNotDefinedError{ProviderKey: key}
	}
	return p, nil
}

// Keys returns the registered provider keys in sorted order.
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.providers))
	for key := range r.providers {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
