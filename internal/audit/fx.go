package audit

import (
	"github.com/mesaops/mesa/internal/audit/domain"
	"github.com/mesaops/mesa/internal/audit/repository"
	"github.com/mesaops/mesa/internal/audit/service"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("audit.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
	fx.Invoke(migrate),
)

func migrate(db *gorm.DB) error {
	return db.AutoMigrate(&domain.AuditLog{})
}
