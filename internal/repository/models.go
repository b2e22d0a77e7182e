package repository

import (
	"time"

	"github.com/finmsg/sms-gateway/internal/domain"
)

// MessageModel is the persistence model for the sms_messages table.
type MessageModel struct {
	InternalID     string                `gorm:"type:uuid;primaryKey;column:internal_id"`
	ExternalID     *string               `gorm:"type:varchar(255)"`
	TenantID       string                `gorm:"type:varchar(100);not null"`
	BridgeID       string                `gorm:"type:uuid;not null"`
	MobileNumber   string                `gorm:"type:varchar(32);not null"`
	Message        string                `gorm:"type:text;not null"`
	DeliveryStatus domain.DeliveryStatus `gorm:"type:int;not null"`
	ErrorMessage   *string               `gorm:"type:text"`
	SubmittedOn    *time.Time            `gorm:"type:timestamptz"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (MessageModel) TableName() string {
	return "sms_messages"
}

// BridgeModel is the persistence model for the sms_bridges table.
type BridgeModel struct {
	ID          string `gorm:"type:uuid;primaryKey"`
	TenantID    string `gorm:"type:varchar(100);not null"`
	ProviderKey string `gorm:"type:varchar(50);not null"`
	Endpoint    string `gorm:"type:varchar(500);not null"`
	APIKey      string `gorm:"type:varchar(255);not null"`
	SenderID    string `gorm:"type:varchar(32)"`
	Default     bool   `gorm:"column:is_default;not null;default:false"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (BridgeModel) TableName() string {
	return "sms_bridges"
}

func messageModelFromDomain(m *domain.OutboundMessage) *MessageModel {
	if m == nil {
		return nil
	}

	return &MessageModel{
		InternalID:     m.InternalID,
		ExternalID:     m.ExternalID,
		TenantID:       m.TenantID,
		BridgeID:       m.BridgeID,
		MobileNumber:   m.MobileNumber,
		Message:        m.Message,
		DeliveryStatus: m.DeliveryStatus,
		ErrorMessage:   m.ErrorMessage,
		SubmittedOn:    m.SubmittedOn,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

func messageModelToDomain(m *MessageModel) *domain.OutboundMessage {
	if m == nil {
		return nil
	}

	return &domain.OutboundMessage{
		InternalID:     m.InternalID,
		ExternalID:     m.ExternalID,
		TenantID:       m.TenantID,
		BridgeID:       m.BridgeID,
		MobileNumber:   m.MobileNumber,
		Message:        m.Message,
		DeliveryStatus: m.DeliveryStatus,
		ErrorMessage:   m.ErrorMessage,
		SubmittedOn:    m.SubmittedOn,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

func bridgeModelFromDomain(b *domain.SMSBridge) *BridgeModel {
	if b == nil {
		return nil
	}

	return &BridgeModel{
		ID:          b.ID,
		TenantID:    b.TenantID,
		ProviderKey: b.ProviderKey,
		Endpoint:    b.Endpoint,
		APIKey:      b.APIKey,
		SenderID:    b.SenderID,
		Default:     b.Default,
		CreatedAt:   b.CreatedAt,
		UpdatedAt:   b.UpdatedAt,
	}
}

func bridgeModelToDomain(m *BridgeModel) *domain.SMSBridge {
	if m == nil {
		return nil
	}

	return &domain.SMSBridge{
		ID:          m.ID,
		TenantID:    m.TenantID,
		ProviderKey: m.ProviderKey,
		Endpoint:    m.Endpoint,
		APIKey:      m.APIKey,
		SenderID:    m.SenderID,
		Default:     m.Default,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}
