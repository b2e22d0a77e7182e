package provider

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/finmsg/sms-gateway/internal/domain"
	"github.com/google/uuid"
)

// Sandbox accepts every message and reports it delivered on the first
// status query. Used for local development and tenant onboarding tests.
type Sandbox struct {
	mu      sync.Mutex
	queried map[string]bool
}

func NewSandbox() *Sandbox {
	return &Sandbox{queried: make(map[string]bool)}
}

func (s *Sandbox) Send(ctx context.Context, bridge domain.SMSBridge, message domain.OutboundMessage) (*SendResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := message.Validate(); err != nil {
		return nil, fmt.Errorf("invalid outbound message: %w", err)
	}

	return &SendResponse{
		ExternalID: uuid.NewString(),
		Status:     domain.StatusWaitingForReport,
		StatusCode: http.StatusOK,
	}, nil
}

func (s *Sandbox) UpdateStatusByMessageID(ctx context.Context, bridge domain.SMSBridge, externalID string, orchestrator string) (domain.DeliveryStatus, error) {
	if err := ctx.Err(); err != nil {
		return domain.StatusInvalid, err
	}
	if externalID == "" {
		return domain.StatusInvalid, fmt.Errorf("external id is required for a status query")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// First query reports sent, anything after that delivered.
	if !s.queried[externalID] {
		s.queried[externalID] = true
		return domain.StatusSent, nil
	}
	return domain.StatusDelivered, nil
}
