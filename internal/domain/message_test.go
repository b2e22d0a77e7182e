package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestParseDeliveryStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   int
		want    DeliveryStatus
		wantErr bool
	}{
		{name: "pending", input: 100, want: StatusPending},
		{name: "waiting for report", input: 150, want: StatusWaitingForReport},
		{name: "sent", input: 200, want: StatusSent},
		{name: "delivered", input: 300, want: StatusDelivered},
		{name: "failed", input: 400, want: StatusFailed},
		{name: "unknown code", input: 250, wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseDeliveryStatus(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("ParseDeliveryStatus() error = %v, want ErrValidation", err)
				}
				return
			}

			if err != nil {
				t.Fatalf("ParseDeliveryStatus() unexpected error = %v", err)
			}
			if got != tt.want {
				t.Fatalf("ParseDeliveryStatus() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestDeliveryStatusIsTerminal(t *testing.T) {
	t.Parallel()

	if !StatusDelivered.IsTerminal() {
		t.Fatal("DELIVERED should be terminal")
	}

	for _, status := range []DeliveryStatus{StatusInvalid, StatusPending, StatusWaitingForReport, StatusSent, StatusFailed} {
		if status.IsTerminal() {
			t.Fatalf("%s should not be terminal", status)
		}
	}
}

func TestOutboundMessageValidate(t *testing.T) {
	t.Parallel()

	valid := OutboundMessage{
		TenantID:       "t1",
		BridgeID:       "7b8e8a60-1111-4f6e-9a55-0f2a2d2c0001",
		MobileNumber:   "+256700123456",
		Message:        "your balance is 1200",
		DeliveryStatus: StatusPending,
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("Validate() unexpected error = %v", err)
	}

	tests := []struct {
		name   string
		mutate func(m *OutboundMessage)
	}{
		{name: "missing tenant", mutate: func(m *OutboundMessage) { m.TenantID = " " }},
		{name: "missing bridge", mutate: func(m *OutboundMessage) { m.BridgeID = "" }},
		{name: "missing recipient", mutate: func(m *OutboundMessage) { m.MobileNumber = "" }},
		{name: "missing message", mutate: func(m *OutboundMessage) { m.Message = "" }},
		{name: "message too long", mutate: func(m *OutboundMessage) { m.Message = strings.Repeat("a", MaxMessageLength+1) }},
		{name: "invalid status", mutate: func(m *OutboundMessage) { m.DeliveryStatus = DeliveryStatus(123) }},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			m := valid
			tt.mutate(&m)
			if err := m.Validate(); !errors.Is(err, ErrValidation) {
				t.Fatalf("Validate() error = %v, want ErrValidation", err)
			}
		})
	}
}

func TestBridgeNotFoundErrorUnwrapsNotFound(t *testing.T) {
	t.Parallel()

	var err error = &BridgeNotFoundError{BridgeID: "b1", TenantID: "t1"}
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("BridgeNotFoundError should unwrap to ErrNotFound, got %v", err)
	}

	var bridgeErr *BridgeNotFoundError
	if !errors.As(err, &bridgeErr) || bridgeErr.BridgeID != "b1" {
		t.Fatalf("errors.As should expose bridge id, got %+v", bridgeErr)
	}
}

func TestProviderNotDefinedError(t *testing.T) {
	t.Parallel()

	var err error = &ProviderNotDefinedError{ProviderKey: "acme"}
	if !strings.Contains(err.Error(), "acme") {
		t.Fatalf("error should carry the provider key, got %q", err.Error())
	}
	if !errors.Is(err, ErrNotFound) {
		t.Fatal("ProviderNotDefinedError should unwrap to ErrNotFound")
	}
}
