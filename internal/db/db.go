// Package db opens the local sqlite store backing the audit trail. The
// service holds no other persistent state: working views and drafts are
// in-memory by design, and the remote menu platform owns the assignments.
package db

import (
	"github.com/glebarez/sqlite"
	"github.com/mesaops/mesa/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func New(cfg config.Config, log *zap.Logger) (*gorm.DB, error) {
	gdb, err := gorm.Open(sqlite.Open(cfg.AuditDBPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	log.Info("audit store opened", zap.String("path", cfg.AuditDBPath))
	return gdb, nil
}

var Module = fx.Module("db",
	fx.Provide(New),
)
