package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/finmsg/sms-gateway/internal/domain"
	"github.com/finmsg/sms-gateway/internal/observability"
	"github.com/finmsg/sms-gateway/internal/provider"
	"github.com/finmsg/sms-gateway/internal/queue"
	"github.com/finmsg/sms-gateway/internal/ratelimit"
	"github.com/finmsg/sms-gateway/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const minWorkerConcurrency = 1

// SubmissionWorker drains the submission queue and performs the actual
// provider calls. Transient provider failures are surfaced to the consumer
// so the broker redelivers; permanent ones mark the message failed and ack.
type SubmissionWorker struct {
	messages    repository.MessageRepository
	bridges     repository.BridgeRepository
	registry    *provider.Registry
	consumer    queue.Consumer
	rateLimiter ratelimit.RateLimiter
	logger      *zap.Logger
	metrics     *observability.Metrics
	concurrency int
	now         func() time.Time
}

func NewSubmissionWorker(
	messages repository.MessageRepository,
	bridges repository.BridgeRepository,
	registry *provider.Registry,
	consumer queue.Consumer,
	rateLimiter ratelimit.RateLimiter,
	concurrency int,
	logger *zap.Logger,
) (*SubmissionWorker, error) {
	if registry == nil {
		return nil, fmt.Errorf("provider registry is required")
	}
	if concurrency < minWorkerConcurrency {
		concurrency = minWorkerConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &SubmissionWorker{
		messages:    messages,
		bridges:     bridges,
		registry:    registry,
		consumer:    consumer,
		rateLimiter: rateLimiter,
		logger:      logger,
		concurrency: concurrency,
		now:         time.Now,
	}, nil
}

func (s *SubmissionWorker) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// Start consumes the submission queue until context cancellation.
func (s *SubmissionWorker) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	g, groupCtx := errgroup.WithContext(ctx)
	for i := 0; i < s.concurrency; i++ {
		workerID := i + 1

		g.Go(func() error {
			s.logger.Info("submission worker started",
				zap.Int("workerId", workerID),
				zap.String("queue", queue.SubmissionQueue),
			)

			err := s.consumer.Consume(groupCtx, queue.SubmissionQueue, s.processMessage)
			if err != nil {
				s.logger.Error("submission worker stopped with error",
					zap.Int("workerId", workerID),
					zap.Error(err),
				)
				return err
			}

			s.logger.Info("submission worker stopped", zap.Int("workerId", workerID))
			return nil
		})
	}

	return g.Wait()
}

func (s *SubmissionWorker) processMessage(ctx context.Context, msg queue.SubmissionMessage) error {
	logger := s.logger.With(
		zap.String("messageId", msg.MessageID),
		zap.String("tenantId", msg.TenantID),
	)
	if msg.CorrelationID != "" {
		logger = logger.With(zap.String("correlationId", msg.CorrelationID))
	}

	record, err := s.messages.GetByInternalID(ctx, msg.MessageID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			logger.Warn("message not found, skipping submission")
			return nil
		}
		return fmt.Errorf("failed to load message: %w", err)
	}

	// Only pending messages are submitted; anything else already went
	// through a provider (redelivered job) or was marked failed.
	if record.DeliveryStatus != domain.StatusPending {
		logger.Info("message no longer pending, skipping submission",
			zap.Int("status", record.DeliveryStatus.Int()),
		)
		return nil
	}

	bridge, err := s.bridges.FindByIDAndTenant(ctx, msg.BridgeID, msg.TenantID)
	if err != nil {
		var notFound *domain.BridgeNotFoundError
		if errors.As(err, &notFound) {
			logger.Error("bridge no longer resolvable, failing message", zap.Error(err))
			if s.metrics != nil {
				s.metrics.IncMessageFailed(msg.ProviderKey, "bridge_not_found")
			}
			return s.failMessage(ctx, logger, msg.MessageID, err.Error())
		}
		return fmt.Errorf("failed to resolve bridge: %w", err)
	}

	prov, err := s.registry.Resolve(bridge.ProviderKey)
	if err != nil {
		logger.Error("no provider registered for bridge, failing message",
			zap.String("providerKey", bridge.ProviderKey),
			zap.Error(err),
		)
		if s.metrics != nil {
			s.metrics.IncMessageFailed(bridge.ProviderKey, "provider_not_defined")
		}
		return s.failMessage(ctx, logger, msg.MessageID, err.Error())
	}

	if s.metrics != nil {
		s.metrics.IncWorkerInFlight(bridge.ProviderKey)
		defer s.metrics.DecWorkerInFlight(bridge.ProviderKey)
	}

	if err := s.rateLimiter.Wait(ctx, bridge.ProviderKey); err != nil {
		return fmt.Errorf("rate limiter wait failed: %w", err)
	}

	sendStart := s.now()
	resp, sendErr := prov.Send(ctx, *bridge, *record)
	if s.metrics != nil {
		s.metrics.ObserveProviderCallDuration(bridge.ProviderKey, "send", s.now().Sub(sendStart))
	}

	if sendErr != nil {
		if provider.IsTransient(sendErr) {
			logger.Warn("transient provider error, requeueing submission", zap.Error(sendErr))
			return fmt.Errorf("transient provider error: %w", sendErr)
		}

		logger.Error("permanent provider error, failing message", zap.Error(sendErr))
		if s.metrics != nil {
			s.metrics.IncMessageFailed(bridge.ProviderKey, "provider_error")
		}
		return s.failMessage(ctx, logger, msg.MessageID, sendErr.Error())
	}

	err = s.messages.SetSubmissionResult(ctx, msg.MessageID, resp.ExternalID, resp.Status, s.now().UTC())
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			// Redelivered job raced a completed submission; the first
			// result wins and the duplicate is acked.
			logger.Warn("external id already recorded, ignoring duplicate submission",
				zap.String("externalId", resp.ExternalID),
			)
			return nil
		}
		return fmt.Errorf("failed to record submission result: %w", err)
	}

	if s.metrics != nil {
		s.metrics.IncMessageSent(bridge.ProviderKey)
	}
	logger.Info("message submitted",
		zap.String("provider", bridge.ProviderKey),
		zap.String("externalId", resp.ExternalID),
		zap.Int("status", resp.Status.Int()),
	)
	return nil
}

func (s *SubmissionWorker) failMessage(ctx context.Context, logger *zap.Logger, id string, reason string) error {
	if err := s.messages.MarkFailed(ctx, id, reason); err != nil {
		logger.Error("failed to mark message as failed", zap.Error(err))
		return fmt.Errorf("failed to mark message as failed: %w", err)
	}
	return nil
}
