package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
)

// BridgeNotFoundError reports that no bridge matches both the bridge id and
// the tenant. A bridge id alone never resolves; the double key is the
// tenant-isolation boundary.
type BridgeNotFoundError struct {
	BridgeID string
	TenantID string
}

func (e *BridgeNotFoundError) Error() string {
	return fmt.Sprintf("sms bridge %s not found for tenant %s", e.BridgeID, e.TenantID)
}

func (e *BridgeNotFoundError) Unwrap() error { return ErrNotFound }

// ProviderNotDefinedError reports that a bridge references a provider key
// with no registered implementation.
type ProviderNotDefinedError struct {
	ProviderKey string
}

func (e *ProviderNotDefinedError) Error() string {
	return fmt.Sprintf("no sms provider registered under key %q", e.ProviderKey)
}

func (e *ProviderNotDefinedError) Unwrap() error { return ErrNotFound }
