package addon

import (
	"github.com/mesaops/mesa/internal/addon/cache"
	"github.com/mesaops/mesa/internal/addon/service"
	"github.com/mesaops/mesa/internal/addon/transport"
	"go.uber.org/fx"
)

var Module = fx.Module("addon.service",
	fx.Provide(cache.NewRedisClient),
	fx.Provide(cache.NewCatalogCache),
	fx.Provide(transport.New),
	fx.Provide(service.New),
)
