package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/finmsg/sms-gateway/internal/domain"
	"github.com/finmsg/sms-gateway/internal/observability"
	"github.com/finmsg/sms-gateway/internal/provider"
	"github.com/finmsg/sms-gateway/internal/repository"
	"go.uber.org/zap"
)

const defaultProviderTimeout = 10 * time.Second

// ReconciliationService refreshes delivery statuses on demand. Status
// queries pull the current state from the provider for every requested
// message that has not reached a terminal status, persist what came back
// and answer from storage.
type ReconciliationService struct {
	messages        repository.MessageRepository
	bridges         repository.BridgeRepository
	registry        *provider.Registry
	logger          *zap.Logger
	metrics         *observability.Metrics
	providerTimeout time.Duration
}

func NewReconciliationService(
	messages repository.MessageRepository,
	bridges repository.BridgeRepository,
	registry *provider.Registry,
	providerTimeout time.Duration,
	logger *zap.Logger,
) (*ReconciliationService, error) {
	if registry == nil {
		return nil, fmt.Errorf("provider registry is required")
	}
	if providerTimeout <= 0 {
		providerTimeout = defaultProviderTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ReconciliationService{
		messages:        messages,
		bridges:         bridges,
		registry:        registry,
		logger:          logger,
		providerTimeout: providerTimeout,
	}, nil
}

func (s *ReconciliationService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// GetDeliveryStatus returns the current delivery status of each requested
// message belonging to the tenant. Non-terminal statuses are refreshed from
// the owning provider before the answer is assembled; a failed refresh
// degrades that one entry to its stored status instead of failing the call.
// A missing bridge is surfaced as an error only for single-id requests,
// matching the isolation rule for batches.
func (s *ReconciliationService) GetDeliveryStatus(
	ctx context.Context,
	tenantID string,
	orchestrator string,
	ids []string,
) ([]repository.DeliveryStatusData, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenant id is required", domain.ErrValidation)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: at least one message id is required", domain.ErrValidation)
	}

	rows, err := s.messages.FindStatusByTenant(ctx, ids, tenantID)
	if err != nil {
		return nil, err
	}

	singleID := countDistinct(ids) == 1

	for _, row := range rows {
		if row.DeliveryStatus.IsTerminal() {
			continue
		}
		if err := s.refreshOne(ctx, tenantID, orchestrator, row); err != nil {
			var notFound *domain.BridgeNotFoundError
			if errors.As(err, &notFound) && singleID {
				return nil, err
			}
			s.logger.Warn("status refresh failed, answering with stored status",
				zap.String("messageId", row.ID),
				zap.String("tenantId", tenantID),
				zap.Error(err),
			)
		}
	}

	// Re-read after refreshing so the answer reflects exactly what was
	// persisted, including statuses another caller updated concurrently.
	refreshed, err := s.messages.FindStatusByTenant(ctx, ids, tenantID)
	if err != nil {
		return nil, err
	}

	return alignToRequested(ids, tenantID, refreshed), nil
}

func countDistinct(ids []string) int {
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		seen[id] = struct{}{}
	}
	return len(seen)
}

// alignToRequested shapes the answer as exactly one entry per requested
// id: duplicates collapse, order follows the request, and an id the tenant
// does not own comes back with the invalid status instead of being omitted.
func alignToRequested(ids []string, tenantID string, rows []repository.DeliveryStatusData) []repository.DeliveryStatusData {
	byID := make(map[string]repository.DeliveryStatusData, len(rows))
	for _, row := range rows {
		byID[row.ID] = row
	}

	seen := make(map[string]struct{}, len(ids))
	result := make([]repository.DeliveryStatusData, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		if row, ok := byID[id]; ok {
			result = append(result, row)
			continue
		}
		result = append(result, repository.DeliveryStatusData{
			ID:             id,
			TenantID:       tenantID,
			DeliveryStatus: domain.StatusInvalid,
		})
	}
	return result
}

func (s *ReconciliationService) refreshOne(
	ctx context.Context,
	tenantID string,
	orchestrator string,
	row repository.DeliveryStatusData,
) error {
	if row.ExternalID == nil || strings.TrimSpace(*row.ExternalID) == "" {
		// Not yet submitted to a provider; nothing to ask for.
		return nil
	}

	bridge, err := s.bridges.FindByIDAndTenant(ctx, row.BridgeID, tenantID)
	if err != nil {
		return err
	}

	prov, err := s.registry.Resolve(bridge.ProviderKey)
	if err != nil {
		// An unregistered provider key means the bridge points at an
		// integration this deployment does not carry. The stored status
		// stays authoritative.
		if s.metrics != nil {
			s.metrics.IncStatusRefresh(bridge.ProviderKey, "provider_not_defined")
		}
		return err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.providerTimeout)
	defer cancel()

	start := time.Now()
	status, err := prov.UpdateStatusByMessageID(callCtx, *bridge, *row.ExternalID, orchestrator)
	if s.metrics != nil {
		s.metrics.ObserveProviderCallDuration(bridge.ProviderKey, "status", time.Since(start))
	}
	if err != nil {
		if s.metrics != nil {
			s.metrics.IncStatusRefresh(bridge.ProviderKey, "error")
		}
		return fmt.Errorf("provider status query failed: %w", err)
	}

	if status == row.DeliveryStatus {
		if s.metrics != nil {
			s.metrics.IncStatusRefresh(bridge.ProviderKey, "unchanged")
		}
		return nil
	}

	// Delivery statuses only move forward through the lifecycle. A
	// provider answering with an older code than what is stored (a lagging
	// replica, a gateway that lost track of the message) must not rewind
	// the record.
	if status < row.DeliveryStatus {
		s.logger.Warn("provider reported a stale delivery status, keeping stored one",
			zap.String("messageId", row.ID),
			zap.String("provider", bridge.ProviderKey),
			zap.Int("stored", row.DeliveryStatus.Int()),
			zap.Int("reported", status.Int()),
		)
		if s.metrics != nil {
			s.metrics.IncStatusRefresh(bridge.ProviderKey, "stale_report")
		}
		return nil
	}

	if err := s.messages.UpdateDeliveryStatus(ctx, row.ID, status); err != nil {
		return fmt.Errorf("failed to persist refreshed status: %w", err)
	}
	if s.metrics != nil {
		s.metrics.IncStatusRefresh(bridge.ProviderKey, "refreshed")
	}

	s.logger.Info("delivery status refreshed",
		zap.String("messageId", row.ID),
		zap.String("provider", bridge.ProviderKey),
		zap.Int("from", row.DeliveryStatus.Int()),
		zap.Int("to", status.Int()),
	)
	return nil
}

// GetMessageDetails returns the full message record. Lookup is scoped to
// the tenant so one tenant cannot read another tenant's messages by id.
func (s *ReconciliationService) GetMessageDetails(
	ctx context.Context,
	tenantID string,
	internalID string,
) (*domain.OutboundMessage, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenant id is required", domain.ErrValidation)
	}
	internalID = strings.TrimSpace(internalID)
	if internalID == "" {
		return nil, fmt.Errorf("%w: message id is required", domain.ErrValidation)
	}

	return s.messages.GetByInternalIDAndTenant(ctx, internalID, tenantID)
}
