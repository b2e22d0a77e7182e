package repository

import (
	"context"
	"errors"

	"github.com/finmsg/sms-gateway/internal/domain"
	"gorm.io/gorm"
)

type BridgeRepository interface {
	FindByIDAndTenant(ctx context.Context, bridgeID string, tenantID string) (*domain.SMSBridge, error)
	FindDefaultByTenant(ctx context.Context, tenantID string) (*domain.SMSBridge, error)
	Create(ctx context.Context, b *domain.SMSBridge) error
}

type GormBridgeRepo struct {
	db *gorm.DB
}

func NewGormBridgeRepo(db *gorm.DB) *GormBridgeRepo {
	return &GormBridgeRepo{db: db}
}

// FindByIDAndTenant resolves a bridge by id scoped to the tenant. The
// double key is the only resolution path; a bridge belonging to another
// tenant is indistinguishable from a missing one.
func (r *GormBridgeRepo) FindByIDAndTenant(ctx context.Context, bridgeID string, tenantID string) (*domain.SMSBridge, error) {
	var model BridgeModel
	err := r.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", bridgeID, tenantID).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &domain.BridgeNotFoundError{BridgeID: bridgeID, TenantID: tenantID}
	}
	if err != nil {
		return nil, err
	}
	return bridgeModelToDomain(&model), nil
}

func (r *GormBridgeRepo) FindDefaultByTenant(ctx context.Context, tenantID string) (*domain.SMSBridge, error) {
	var model BridgeModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND is_default = true", tenantID).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &domain.BridgeNotFoundError{BridgeID: "default", TenantID: tenantID}
	}
	if err != nil {
		return nil, err
	}
	return bridgeModelToDomain(&model), nil
}

func (r *GormBridgeRepo) Create(ctx context.Context, b *domain.SMSBridge) error {
	model := bridgeModelFromDomain(b)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if b != nil {
		*b = *bridgeModelToDomain(model)
	}
	return nil
}
