package repository

import (
	"context"
	"errors"
	"time"

	"github.com/finmsg/sms-gateway/internal/domain"
	"gorm.io/gorm"
)

// DeliveryStatusData is the status-query projection of an outbound message.
type DeliveryStatusData struct {
	ID             string                `gorm:"column:internal_id"`
	TenantID       string                `gorm:"column:tenant_id"`
	BridgeID       string                `gorm:"column:bridge_id"`
	ExternalID     *string               `gorm:"column:external_id"`
	DeliveryStatus domain.DeliveryStatus `gorm:"column:delivery_status"`
}

type MessageRepository interface {
	Create(ctx context.Context, m *domain.OutboundMessage) error
	CreateBatch(ctx context.Context, messages []*domain.OutboundMessage) error
	GetByInternalID(ctx context.Context, id string) (*domain.OutboundMessage, error)
	GetByInternalIDAndTenant(ctx context.Context, id string, tenantID string) (*domain.OutboundMessage, error)
	FindStatusByTenant(ctx context.Context, ids []string, tenantID string) ([]DeliveryStatusData, error)
	UpdateDeliveryStatus(ctx context.Context, id string, status domain.DeliveryStatus) error
	SetSubmissionResult(ctx context.Context, id string, externalID string, status domain.DeliveryStatus, submittedOn time.Time) error
	MarkFailed(ctx context.Context, id string, errorMessage string) error
}

type GormMessageRepo struct {
	db *gorm.DB
}

func NewGormMessageRepo(db *gorm.DB) *GormMessageRepo {
	return &GormMessageRepo{db: db}
}

func (r *GormMessageRepo) Create(ctx context.Context, m *domain.OutboundMessage) error {
	model := messageModelFromDomain(m)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if m != nil {
		*m = *messageModelToDomain(model)
	}
	return nil
}

func (r *GormMessageRepo) CreateBatch(ctx context.Context, messages []*domain.OutboundMessage) error {
	models := make([]MessageModel, 0, len(messages))
	modelIndexes := make([]int, 0, len(messages))
	for i, m := range messages {
		model := messageModelFromDomain(m)
		if model != nil {
			models = append(models, *model)
			modelIndexes = append(modelIndexes, i)
		}
	}

	if len(models) == 0 {
		return nil
	}

	if err := r.db.WithContext(ctx).CreateInBatches(&models, 100).Error; err != nil {
		return err
	}

	for i := range models {
		idx := modelIndexes[i]
		if idx < len(messages) && messages[idx] != nil {
			*messages[idx] = *messageModelToDomain(&models[i])
		}
	}

	return nil
}

func (r *GormMessageRepo) GetByInternalID(ctx context.Context, id string) (*domain.OutboundMessage, error) {
	var model MessageModel
	err := r.db.WithContext(ctx).First(&model, "internal_id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return messageModelToDomain(&model), nil
}

func (r *GormMessageRepo) GetByInternalIDAndTenant(ctx context.Context, id string, tenantID string) (*domain.OutboundMessage, error) {
	var model MessageModel
	err := r.db.WithContext(ctx).
		Where("internal_id = ? AND tenant_id = ?", id, tenantID).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return messageModelToDomain(&model), nil
}

func (r *GormMessageRepo) FindStatusByTenant(ctx context.Context, ids []string, tenantID string) ([]DeliveryStatusData, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var statuses []DeliveryStatusData
	err := r.db.WithContext(ctx).
		Model(&MessageModel{}).
		Select("internal_id, tenant_id, bridge_id, external_id, delivery_status").
		Where("internal_id IN ? AND tenant_id = ?", ids, tenantID).
		Scan(&statuses).Error
	if err != nil {
		return nil, err
	}
	return statuses, nil
}

func (r *GormMessageRepo) UpdateDeliveryStatus(ctx context.Context, id string, status domain.DeliveryStatus) error {
	result := r.db.WithContext(ctx).
		Model(&MessageModel{}).
		Where("internal_id = ?", id).
		Update("delivery_status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SetSubmissionResult records the provider-assigned external id and the
// post-submission status. The external id is written at most once: a row
// that already carries one is left untouched and the call reports a
// conflict so redeliveries cannot overwrite the original submission.
func (r *GormMessageRepo) SetSubmissionResult(ctx context.Context, id string, externalID string, status domain.DeliveryStatus, submittedOn time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&MessageModel{}).
		Where("internal_id = ? AND external_id IS NULL", id).
		Updates(map[string]any{
			"external_id":     externalID,
			"delivery_status": status,
			"submitted_on":    submittedOn,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrConflict
	}
	return nil
}

func (r *GormMessageRepo) MarkFailed(ctx context.Context, id string, errorMessage string) error {
	result := r.db.WithContext(ctx).
		Model(&MessageModel{}).
		Where("internal_id = ?", id).
		Updates(map[string]any{
			"delivery_status": domain.StatusFailed,
			"error_message":   errorMessage,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
