package domain

import (
	"fmt"
	"strings"
	"time"
)

// SMSBridge binds a tenant to one third-party delivery provider, including
// the settings the provider needs. Bridges are created by the admin path;
// the gateway core only reads them.
type SMSBridge struct {
	ID          string
	TenantID    string
	ProviderKey string
	Endpoint    string
	APIKey      string
	SenderID    string
	Default     bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (b *SMSBridge) Validate() error {
	if strings.TrimSpace(b.TenantID) == "" {
		return fmt.Errorf("%w: tenant id is required", ErrValidation)
	}
	if strings.TrimSpace(b.ProviderKey) == "" {
		return fmt.Errorf("%w: provider key is required", ErrValidation)
	}
	if strings.TrimSpace(b.Endpoint) == "" {
		return fmt.Errorf("%w: endpoint is required", ErrValidation)
	}
	return nil
}
