package provider

import (
	"context"

	"github.com/finmsg/sms-gateway/internal/domain"
)

// Provider is the outbound SMS delivery port. One implementation exists per
// integrated third-party gateway; the bridge supplies credentials and
// endpoint, so a single implementation can serve many tenants.
type Provider interface {
	// Send submits one message through the bridge and returns the
	// provider-assigned external id.
	Send(ctx context.Context, bridge domain.SMSBridge, message domain.OutboundMessage) (*SendResponse, error)

	// UpdateStatusByMessageID queries the provider for the current delivery
	// status of a previously submitted message. The orchestrator hint is
	// forwarded when the caller supplied one.
	UpdateStatusByMessageID(ctx context.Context, bridge domain.SMSBridge, externalID string, orchestrator string) (domain.DeliveryStatus, error)
}

// SendResponse stores provider call metadata for audit and persistence.
type SendResponse struct {
	ExternalID string
	Status     domain.DeliveryStatus
	StatusCode int
	Body       string
}
