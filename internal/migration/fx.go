package migration

import (
	"github.com/authorstack/authorstack/internal/config"
	salesdomain "github.com/authorstack/authorstack/internal/sales/domain"
	synclogdomain "github.com/authorstack/authorstack/internal/synclog/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
		return Apply(conn, cfg.DBType, log)
	}),
)

// Apply brings the relational schema up to date. Postgres uses the embedded
// SQL migrations; sqlite, used for local runs, is auto-migrated from the
// models.
func Apply(conn *gorm.DB, dbType string, log *zap.Logger) error {
	if dbType == "sqlite" {
		log.Info("auto-migrating sqlite schema")
		return conn.AutoMigrate(
			&salesdomain.SaleRecord{},
			&salesdomain.DailyAggregate{},
			&synclogdomain.SyncLog{},
		)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	return RunMigrations(sqlDB)
}
