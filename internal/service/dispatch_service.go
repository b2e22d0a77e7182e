package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/finmsg/sms-gateway/internal/domain"
	"github.com/finmsg/sms-gateway/internal/observability"
	"github.com/finmsg/sms-gateway/internal/queue"
	"github.com/finmsg/sms-gateway/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxBatchSize = 1000

// SendRequest is one message submitted through the API.
type SendRequest struct {
	MobileNumber string
	Message      string
}

// AcceptedMessage reports how one request entry fared during acceptance.
type AcceptedMessage struct {
	InternalID     string
	TenantID       string
	MobileNumber   string
	DeliveryStatus domain.DeliveryStatus
}

// DispatchService accepts outbound messages on behalf of a tenant,
// persists them as pending and hands them to the submission queue. The
// actual provider call happens asynchronously in the worker.
type DispatchService struct {
	messages  repository.MessageRepository
	bridges   repository.BridgeRepository
	publisher queue.Publisher
	logger    *zap.Logger
	metrics   *observability.Metrics
}

func NewDispatchService(
	messages repository.MessageRepository,
	bridges repository.BridgeRepository,
	publisher queue.Publisher,
	logger *zap.Logger,
) (*DispatchService, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &DispatchService{
		messages:  messages,
		bridges:   bridges,
		publisher: publisher,
		logger:    logger,
	}, nil
}

func (s *DispatchService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// SendShortMessage accepts a batch for delivery through the tenant's
// default bridge.
func (s *DispatchService) SendShortMessage(
	ctx context.Context,
	tenantID string,
	requests []SendRequest,
) ([]AcceptedMessage, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenant id is required", domain.ErrValidation)
	}

	bridge, err := s.bridges.FindDefaultByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	return s.sendViaBridge(ctx, tenantID, bridge, requests)
}

// SendShortMessageToProvider accepts a batch for delivery through an
// explicitly named bridge of the tenant instead of the default one. Bridge
// resolution is scoped to the tenant, so a bridge id belonging to another
// tenant resolves to not found.
func (s *DispatchService) SendShortMessageToProvider(
	ctx context.Context,
	tenantID string,
	bridgeID string,
	requests []SendRequest,
) ([]AcceptedMessage, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenant id is required", domain.ErrValidation)
	}
	bridgeID = strings.TrimSpace(bridgeID)
	if bridgeID == "" {
		return nil, fmt.Errorf("%w: bridge id is required", domain.ErrValidation)
	}

	bridge, err := s.bridges.FindByIDAndTenant(ctx, bridgeID, tenantID)
	if err != nil {
		return nil, err
	}

	return s.sendViaBridge(ctx, tenantID, bridge, requests)
}

func (s *DispatchService) sendViaBridge(
	ctx context.Context,
	tenantID string,
	bridge *domain.SMSBridge,
	requests []SendRequest,
) ([]AcceptedMessage, error) {
	if len(requests) == 0 {
		return nil, fmt.Errorf("%w: request must include at least one message", domain.ErrValidation)
	}
	if len(requests) > maxBatchSize {
		return nil, fmt.Errorf("%w: batch size exceeds %d", domain.ErrValidation, maxBatchSize)
	}

	messages := make([]*domain.OutboundMessage, len(requests))
	for i, req := range requests {
		m := &domain.OutboundMessage{
			InternalID:     uuid.NewString(),
			TenantID:       tenantID,
			BridgeID:       bridge.ID,
			MobileNumber:   strings.TrimSpace(req.MobileNumber),
			Message:        strings.TrimSpace(req.Message),
			DeliveryStatus: domain.StatusPending,
		}
		if err := m.Validate(); err != nil {
			return nil, fmt.Errorf("message %d: %w", i, err)
		}
		messages[i] = m
	}

	if err := s.messages.CreateBatch(ctx, messages); err != nil {
		return nil, err
	}

	correlationID, _ := observability.CorrelationIDFromContext(ctx)

	failed := 0
	accepted := make([]AcceptedMessage, 0, len(messages))
	for _, m := range messages {
		job := queue.SubmissionMessage{
			MessageID:     m.InternalID,
			TenantID:      m.TenantID,
			BridgeID:      bridge.ID,
			ProviderKey:   bridge.ProviderKey,
			CorrelationID: correlationID,
		}

		if err := s.publisher.Publish(ctx, queue.SubmissionQueue, job); err != nil {
			s.logger.Error("failed to publish submission",
				zap.String("messageId", m.InternalID),
				zap.String("tenantId", m.TenantID),
				zap.String("bridgeId", bridge.ID),
				zap.Error(err),
			)
			failed++
			if markErr := s.messages.MarkFailed(ctx, m.InternalID, "failed to enqueue for submission"); markErr != nil {
				s.logger.Error("failed to mark message as failed after publish error",
					zap.String("messageId", m.InternalID),
					zap.Error(markErr),
				)
			}
			m.DeliveryStatus = domain.StatusFailed
			if s.metrics != nil {
				s.metrics.IncMessageFailed(bridge.ProviderKey, "publish_error")
			}
		} else if s.metrics != nil {
			s.metrics.IncMessageAccepted(bridge.ProviderKey)
		}

		accepted = append(accepted, AcceptedMessage{
			InternalID:     m.InternalID,
			TenantID:       m.TenantID,
			MobileNumber:   m.MobileNumber,
			DeliveryStatus: m.DeliveryStatus,
		})
	}

	if failed > 0 {
		s.logger.Warn("batch accepted with partial failure",
			zap.String("tenantId", tenantID),
			zap.Int("failed", failed),
			zap.Int("total", len(messages)),
		)
		return accepted, fmt.Errorf("batch accepted with partial failure: %d/%d failed to enqueue", failed, len(messages))
	}

	return accepted, nil
}
