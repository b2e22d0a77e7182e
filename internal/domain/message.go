package domain

import (
	"fmt"
	"strings"
	"time"
)

// DeliveryStatus is the numeric delivery lifecycle code of an outbound message.
type DeliveryStatus int

const (
	StatusInvalid          DeliveryStatus = 0
	StatusPending          DeliveryStatus = 100
	StatusWaitingForReport DeliveryStatus = 150
	StatusSent             DeliveryStatus = 200
	StatusDelivered        DeliveryStatus = 300
	StatusFailed           DeliveryStatus = 400
)

func (s DeliveryStatus) Int() int { return int(s) }

func (s DeliveryStatus) IsValid() bool {
	switch s {
	case StatusInvalid, StatusPending, StatusWaitingForReport, StatusSent, StatusDelivered, StatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether the status is final. Delivered is the only
// code a provider never revises, so it is the only refresh cut-off.
func (s DeliveryStatus) IsTerminal() bool {
	return s == StatusDelivered
}

func (s DeliveryStatus) String() string {
	switch s {
	case StatusInvalid:
		return "INVALID"
	case StatusPending:
		return "PENDING"
	case StatusWaitingForReport:
		return "WAITING_FOR_REPORT"
	case StatusSent:
		return "SENT"
	case StatusDelivered:
		return "DELIVERED"
	case StatusFailed:
		return "FAILED"
	}
	return fmt.Sprintf("UNKNOWN(%d)", int(s))
}

func ParseDeliveryStatus(code int) (DeliveryStatus, error) {
	s := DeliveryStatus(code)
	if !s.IsValid() {
		return StatusInvalid, fmt.Errorf("%w: invalid delivery status %d", ErrValidation, code)
	}
	return s, nil
}

// Maximum SMS payload length in characters.
const MaxMessageLength = 160

// OutboundMessage is the core domain entity: one SMS accepted for delivery
// on behalf of a tenant through one of its bridges.
type OutboundMessage struct {
	InternalID     string
	ExternalID     *string
	TenantID       string
	BridgeID       string
	MobileNumber   string
	Message        string
	DeliveryStatus DeliveryStatus
	ErrorMessage   *string
	SubmittedOn    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (m *OutboundMessage) Validate() error {
	if strings.TrimSpace(m.TenantID) == "" {
		return fmt.Errorf("%w: tenant id is required", ErrValidation)
	}
	if strings.TrimSpace(m.BridgeID) == "" {
		return fmt.Errorf("%w: bridge id is required", ErrValidation)
	}
	if strings.TrimSpace(m.MobileNumber) == "" {
		return fmt.Errorf("%w: mobile number is required", ErrValidation)
	}
	if m.Message == "" {
		return fmt.Errorf("%w: message is required", ErrValidation)
	}
	if contentLen := len([]rune(m.Message)); contentLen > MaxMessageLength {
		return fmt.Errorf("%w: message exceeds %d characters (got %d)", ErrValidation, MaxMessageLength, contentLen)
	}
	if !m.DeliveryStatus.IsValid() {
		return fmt.Errorf("%w: invalid delivery status %d", ErrValidation, m.DeliveryStatus)
	}
	return nil
}
