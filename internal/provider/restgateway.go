package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/finmsg/sms-gateway/internal/domain"
	"github.com/go-resty/resty/v2"
)

const defaultGatewayTimeout = 10 * time.Second

const (
	apiKeyHeader       = "X-API-Key"
	orchestratorHeader = "X-Orchestrator"
)

type sendRequest struct {
	To       string `json:"to"`
	Message  string `json:"message"`
	SenderID string `json:"senderId,omitempty"`
}

type sendResult struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type statusResult struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// RESTGateway talks to HTTP SMS gateways that expose a message-submit and a
// message-status endpoint. The bridge carries the base URL and credentials,
// so one instance serves every tenant whose bridge points at a compatible
// gateway.
type RESTGateway struct {
	client *resty.Client
}

func NewRESTGateway() *RESTGateway {
	client := resty.New()
	client.SetTimeout(defaultGatewayTimeout)
	client.SetRetryCount(0)

	return &RESTGateway{client: client}
}

// NewRESTGatewayWithClient injects a preconfigured client, used by tests.
func NewRESTGatewayWithClient(client *resty.Client) (*RESTGateway, error) {
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}
	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultGatewayTimeout)
	}
	client.SetRetryCount(0)

	return &RESTGateway{client: client}, nil
}

func (g *RESTGateway) Send(ctx context.Context, bridge domain.SMSBridge, message domain.OutboundMessage) (*SendResponse, error) {
	if g == nil || g.client == nil {
		return nil, fmt.Errorf("provider is not initialized")
	}
	if err := message.Validate(); err != nil {
		return nil, fmt.Errorf("invalid outbound message: %w", err)
	}

	endpoint, err := gatewayURL(bridge, "/messages")
	if err != nil {
		return nil, err
	}

	reqBody := sendRequest{
		To:       message.MobileNumber,
		Message:  message.Message,
		SenderID: bridge.SenderID,
	}

	response, err := g.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader(apiKeyHeader, bridge.APIKey).
		SetBody(reqBody).
		Post(endpoint)
	if err != nil {
		return nil, &CallError{
			Message:   "gateway submit request failed",
			Transient: !errors.Is(err, context.Canceled),
			Cause:     err,
		}
	}

	statusCode := response.StatusCode()
	responseBody := strings.TrimSpace(response.String())

	if statusCode < http.StatusOK || statusCode >= http.StatusMultipleChoices {
		return nil, &CallError{
			StatusCode: statusCode,
			Message:    callErrorMessage(statusCode, responseBody),
			Transient:  isTransientHTTPStatus(statusCode),
		}
	}

	var result sendResult
	if err := json.Unmarshal(response.Body(), &result); err != nil {
		return nil, &CallError{
			StatusCode: statusCode,
			Message:    "gateway returned malformed submit response",
			Cause:      err,
		}
	}
	if strings.TrimSpace(result.ID) == "" {
		return nil, &CallError{
			StatusCode: statusCode,
			Message:    "gateway submit response is missing the message id",
		}
	}

	return &SendResponse{
		ExternalID: result.ID,
		Status:     submissionStatus(result.Status),
		StatusCode: statusCode,
		Body:       responseBody,
	}, nil
}

func (g *RESTGateway) UpdateStatusByMessageID(ctx context.Context, bridge domain.SMSBridge, externalID string, orchestrator string) (domain.DeliveryStatus, error) {
	if g == nil || g.client == nil {
		return domain.StatusInvalid, fmt.Errorf("provider is not initialized")
	}
	if strings.TrimSpace(externalID) == "" {
		return domain.StatusInvalid, fmt.Errorf("external id is required for a status query")
	}

	endpoint, err := gatewayURL(bridge, "/messages/"+url.PathEscape(externalID))
	if err != nil {
		return domain.StatusInvalid, err
	}

	req := g.client.R().
		SetContext(ctx).
		SetHeader(apiKeyHeader, bridge.APIKey)
	if trimmed := strings.TrimSpace(orchestrator); trimmed != "" {
		req.SetHeader(orchestratorHeader, trimmed)
	}

	response, err := req.Get(endpoint)
	if err != nil {
		return domain.StatusInvalid, &CallError{
			Message:   "gateway status request failed",
			Transient: !errors.Is(err, context.Canceled),
			Cause:     err,
		}
	}

	statusCode := response.StatusCode()
	responseBody := strings.TrimSpace(response.String())

	if statusCode < http.StatusOK || statusCode >= http.StatusMultipleChoices {
		return domain.StatusInvalid, &CallError{
			StatusCode: statusCode,
			Message:    callErrorMessage(statusCode, responseBody),
			Transient:  isTransientHTTPStatus(statusCode),
		}
	}

	var result statusResult
	if err := json.Unmarshal(response.Body(), &result); err != nil {
		return domain.StatusInvalid, &CallError{
			StatusCode: statusCode,
			Message:    "gateway returned malformed status response",
			Cause:      err,
		}
	}

	status, ok := deliveryStatusFromGateway(result.Status)
	if !ok {
		return domain.StatusInvalid, &CallError{
			StatusCode: statusCode,
			Message:    fmt.Sprintf("gateway reported unknown status %q", result.Status),
		}
	}

	return status, nil
}

func gatewayURL(bridge domain.SMSBridge, path string) (string, error) {
	base := strings.TrimRight(strings.TrimSpace(bridge.Endpoint), "/")
	if base == "" {
		return "", fmt.Errorf("bridge %s has no endpoint configured", bridge.ID)
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return "", fmt.Errorf("bridge %s endpoint is invalid: %w", bridge.ID, err)
	}
	return base + path, nil
}

// submissionStatus maps the gateway's synchronous submit acknowledgement.
// Gateways that deliver reports asynchronously answer "queued".
func submissionStatus(raw string) domain.DeliveryStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "queued", "accepted":
		return domain.StatusWaitingForReport
	default:
		return domain.StatusSent
	}
}

func deliveryStatusFromGateway(raw string) (domain.DeliveryStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "pending":
		return domain.StatusPending, true
	case "queued", "accepted":
		return domain.StatusWaitingForReport, true
	case "sent":
		return domain.StatusSent, true
	case "delivered":
		return domain.StatusDelivered, true
	case "failed", "rejected", "expired":
		return domain.StatusFailed, true
	}
	return domain.StatusInvalid, false
}

func isTransientHTTPStatus(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || (statusCode >= http.StatusInternalServerError && statusCode <= 599)
}

func callErrorMessage(statusCode int, body string) string {
	base := fmt.Sprintf("gateway returned status %d", statusCode)
	if body == "" {
		return base
	}
	return fmt.Sprintf("%s: %s", base, body)
}
