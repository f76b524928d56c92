package repository

import (
	"fmt"

	"github.com/blues/cfl/internal/config"
	"github.com/blues/cfl/internal/model"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

// Init 连接 postgres 并迁移记录表
func Init(cfg config.DatabaseConfig) (*gorm.DB, error) {
	return Open(postgres.Open(cfg.DSN()))
}

// Open 使用任意方言打开数据库，测试中传入 sqlite
func Open(dialector gorm.Dialector) (*gorm.DB, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent), // 禁用 GORM 的默认日志输出
		NamingStrategy: &schema.NamingStrategy{
			SingularTable: true, // 禁用复数表名
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate 自动迁移
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.CampaignModel{},
		&model.ContributeRecordModel{},
		&model.RefundRecordModel{},
		&model.SettlementRecordModel{},
		&model.EscrowRecordModel{},
		&model.EventModel{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}
