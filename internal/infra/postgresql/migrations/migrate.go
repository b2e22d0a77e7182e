package migrations

import (
	"github.com/finmsg/sms-gateway/internal/repository"
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "000001_create_sms_bridges",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&repository.BridgeModel{}); err != nil {
					return err
				}
				indexes := []string{
					`CREATE INDEX IF NOT EXISTS idx_sms_bridges_tenant_id ON sms_bridges (tenant_id)`,
					// At most one default bridge per tenant.
					`CREATE UNIQUE INDEX IF NOT EXISTS idx_sms_bridges_tenant_default ON sms_bridges (tenant_id) WHERE is_default`,
				}
				for _, sql := range indexes {
					if err := tx.Exec(sql).Error; err != nil {
						return err
					}
				}
				return nil
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.BridgeModel{})
			},
		},
		{
			ID: "000002_create_sms_messages",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&repository.MessageModel{}); err != nil {
					return err
				}
				indexes := []string{
					`CREATE INDEX IF NOT EXISTS idx_sms_messages_tenant_id ON sms_messages (tenant_id)`,
					`CREATE INDEX IF NOT EXISTS idx_sms_messages_tenant_status ON sms_messages (tenant_id, delivery_status)`,
					`CREATE INDEX IF NOT EXISTS idx_sms_messages_bridge_id ON sms_messages (bridge_id)`,
					`CREATE INDEX IF NOT EXISTS idx_sms_messages_external_id ON sms_messages (external_id) WHERE external_id IS NOT NULL`,
				}
				for _, sql := range indexes {
					if err := tx.Exec(sql).Error; err != nil {
						return err
					}
				}
				return nil
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.MessageModel{})
			},
		},
	})

	return m.Migrate()
}
