package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/finmsg/sms-gateway/internal/domain"
	"github.com/finmsg/sms-gateway/internal/repository"
	"github.com/finmsg/sms-gateway/internal/service"
	"github.com/gofiber/fiber/v2"
)

// Request headers carried by every tenant-scoped call. The app key is
// opaque transport metadata for the upstream platform; it is required but
// not interpreted here.
const (
	HeaderTenantID     = "X-Tenant-ID"
	HeaderTenantAppKey = "X-Tenant-App-Key"
	HeaderOrchestrator = "X-Orchestrator"
)

type DispatchService interface {
	SendShortMessage(ctx context.Context, tenantID string, requests []service.SendRequest) ([]service.AcceptedMessage, error)
	SendShortMessageToProvider(ctx context.Context, tenantID string, bridgeID string, requests []service.SendRequest) ([]service.AcceptedMessage, error)
}

type ReconciliationService interface {
	GetDeliveryStatus(ctx context.Context, tenantID string, orchestrator string, ids []string) ([]repository.DeliveryStatusData, error)
	GetMessageDetails(ctx context.Context, tenantID string, internalID string) (*domain.OutboundMessage, error)
}

type SMSHandler struct {
	dispatch       DispatchService
	reconciliation ReconciliationService
}

func NewSMSHandler(dispatch DispatchService, reconciliation ReconciliationService) (*SMSHandler, error) {
	if dispatch == nil {
		return nil, fmt.Errorf("dispatch service is required")
	}
	if reconciliation == nil {
		return nil, fmt.Errorf("reconciliation service is required")
	}
	return &SMSHandler{dispatch: dispatch, reconciliation: reconciliation}, nil
}

func RegisterSMSRoutes(router fiber.Router, dispatch DispatchService, reconciliation ReconciliationService) error {
	h, err := NewSMSHandler(dispatch, reconciliation)
	if err != nil {
		return err
	}

	router.Post("/sms", h.SendShortMessage)
	router.Post("/sms/send", h.SendShortMessageToProvider)
	router.Post("/sms/report", h.GetDeliveryStatus)
	router.Get("/sms/details/:internalId", h.GetMessageDetails)

	return nil
}

type sendMessageRequest struct {
	MobileNumber string `json:"mobileNumber"`
	Message      string `json:"message"`
}

type acceptedMessageResponse struct {
	InternalID     string `json:"internalId"`
	TenantID       string `json:"tenantId"`
	MobileNumber   string `json:"mobileNumber"`
	DeliveryStatus int    `json:"deliveryStatus"`
}

type sendBatchResponse struct {
	Messages []acceptedMessageResponse `json:"messages"`
	Warning  string                    `json:"warning,omitempty"`
}

type deliveryStatusRequest struct {
	InternalIDs []string `json:"internalIds"`
}

type deliveryStatusResponse struct {
	ID             string  `json:"id"`
	TenantID       string  `json:"tenantId"`
	BridgeID       string  `json:"bridgeId,omitempty"`
	ExternalID     *string `json:"externalId,omitempty"`
	DeliveryStatus int     `json:"deliveryStatus"`
}

type messageDetailsResponse struct {
	InternalID     string     `json:"internalId"`
	ExternalID     *string    `json:"externalId,omitempty"`
	TenantID       string     `json:"tenantId"`
	BridgeID       string     `json:"bridgeId"`
	MobileNumber   string     `json:"mobileNumber"`
	Message        string     `json:"message"`
	DeliveryStatus int        `json:"deliveryStatus"`
	ErrorMessage   *string    `json:"errorMessage,omitempty"`
	SubmittedOn    *time.Time `json:"submittedOn,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

func (h *SMSHandler) SendShortMessage(c *fiber.Ctx) error {
	tenantID, err := tenantFromHeaders(c)
	if err != nil {
		return err
	}

	requests, err := parseSendBatch(c)
	if err != nil {
		return err
	}

	accepted, err := h.dispatch.SendShortMessage(c.UserContext(), tenantID, requests)
	return sendBatchResult(c, accepted, err)
}

func (h *SMSHandler) SendShortMessageToProvider(c *fiber.Ctx) error {
	tenantID, err := tenantFromHeaders(c)
	if err != nil {
		return err
	}

	orchestrator := strings.TrimSpace(c.Get(HeaderOrchestrator))
	if orchestrator == "" {
		return fiber.NewError(fiber.StatusBadRequest, HeaderOrchestrator+" header is required")
	}

	requests, err := parseSendBatch(c)
	if err != nil {
		return err
	}

	accepted, err := h.dispatch.SendShortMessageToProvider(c.UserContext(), tenantID, orchestrator, requests)
	return sendBatchResult(c, accepted, err)
}

func (h *SMSHandler) GetDeliveryStatus(c *fiber.Ctx) error {
	tenantID, err := tenantFromHeaders(c)
	if err != nil {
		return err
	}

	var req deliveryStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	orchestrator := strings.TrimSpace(c.Get(HeaderOrchestrator))

	statuses, err := h.reconciliation.GetDeliveryStatus(c.UserContext(), tenantID, orchestrator, req.InternalIDs)
	if err != nil {
		return toHTTPError(err)
	}

	result := make([]deliveryStatusResponse, 0, len(statuses))
	for _, s := range statuses {
		result = append(result, deliveryStatusResponse{
			ID:             s.ID,
			TenantID:       s.TenantID,
			BridgeID:       s.BridgeID,
			ExternalID:     s.ExternalID,
			DeliveryStatus: s.DeliveryStatus.Int(),
		})
	}

	return c.Status(fiber.StatusOK).JSON(result)
}

func (h *SMSHandler) GetMessageDetails(c *fiber.Ctx) error {
	tenantID, err := tenantFromHeaders(c)
	if err != nil {
		return err
	}

	internalID := strings.TrimSpace(c.Params("internalId"))
	message, err := h.reconciliation.GetMessageDetails(c.UserContext(), tenantID, internalID)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(messageDetailsResponse{
		InternalID:     message.InternalID,
		ExternalID:     message.ExternalID,
		TenantID:       message.TenantID,
		BridgeID:       message.BridgeID,
		MobileNumber:   message.MobileNumber,
		Message:        message.Message,
		DeliveryStatus: message.DeliveryStatus.Int(),
		ErrorMessage:   message.ErrorMessage,
		SubmittedOn:    message.SubmittedOn,
		CreatedAt:      message.CreatedAt,
		UpdatedAt:      message.UpdatedAt,
	})
}

func tenantFromHeaders(c *fiber.Ctx) (string, error) {
	tenantID := strings.TrimSpace(c.Get(HeaderTenantID))
	if tenantID == "" {
		return "", fiber.NewError(fiber.StatusBadRequest, HeaderTenantID+" header is required")
	}
	if strings.TrimSpace(c.Get(HeaderTenantAppKey)) == "" {
		return "", fiber.NewError(fiber.StatusBadRequest, HeaderTenantAppKey+" header is required")
	}
	return tenantID, nil
}

func parseSendBatch(c *fiber.Ctx) ([]service.SendRequest, error) {
	var req []sendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	requests := make([]service.SendRequest, 0, len(req))
	for _, item := range req {
		requests = append(requests, service.SendRequest{
			MobileNumber: item.MobileNumber,
			Message:      item.Message,
		})
	}
	return requests, nil
}

func sendBatchResult(c *fiber.Ctx, accepted []service.AcceptedMessage, err error) error {
	if err != nil {
		if len(accepted) == 0 {
			return toHTTPError(err)
		}
		// Partial enqueue failure still returns the batch; per-message
		// outcomes carry the failed entries.
		return c.Status(fiber.StatusAccepted).JSON(sendBatchResponse{
			Messages: toAcceptedResponses(accepted),
			Warning:  err.Error(),
		})
	}

	return c.Status(fiber.StatusAccepted).JSON(sendBatchResponse{
		Messages: toAcceptedResponses(accepted),
	})
}

func toAcceptedResponses(accepted []service.AcceptedMessage) []acceptedMessageResponse {
	responses := make([]acceptedMessageResponse, 0, len(accepted))
	for _, a := range accepted {
		responses = append(responses, acceptedMessageResponse{
			InternalID:     a.InternalID,
			TenantID:       a.TenantID,
			MobileNumber:   a.MobileNumber,
			DeliveryStatus: a.DeliveryStatus.Int(),
		})
	}
	return responses
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	default:
		return err
	}
}
