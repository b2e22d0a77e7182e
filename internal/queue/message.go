package queue

import (
	"fmt"
	"strings"
)

// SubmissionMessage is the broker payload for one message awaiting
// provider submission.
type SubmissionMessage struct {
	MessageID     string `json:"messageId"`
	TenantID      string `json:"tenantId"`
	BridgeID      string `json:"bridgeId"`
	ProviderKey   string `json:"providerKey"`
	CorrelationID string `json:"correlationId,omitempty"`
}

func (m SubmissionMessage) Validate() error {
	if strings.TrimSpace(m.MessageID) == "" {
		return fmt.Errorf("messageId is required")
	}
	if strings.TrimSpace(m.TenantID) == "" {
		return fmt.Errorf("tenantId is required")
	}
	if strings.TrimSpace(m.BridgeID) == "" {
		return fmt.Errorf("bridgeId is required")
	}
	if strings.TrimSpace(m.ProviderKey) == "" {
		return fmt.Errorf("providerKey is required")
	}
	return nil
}
